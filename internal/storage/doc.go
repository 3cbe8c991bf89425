// Package storage keeps the append-only audit trail of reminder events.
//
// Drivers: "none" (disabled), "file" (JSON lines) and "sqlite".
package storage
