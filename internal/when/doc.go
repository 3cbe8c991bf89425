// Package when parses "in <minutes>" / "at <HH:MM>" reminder requests and
// resolves them to an absolute instant in a fixed timezone.
package when
