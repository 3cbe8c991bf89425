// Package scheduler fires one-shot reminder jobs at their due instant.
//
// Jobs live in a min-heap ordered by (FireAt, Seq). A single timing loop
// sleeps until the head is due, pops every due job and hands them, in order,
// to a small pool of delivery workers. A job is handed out exactly once and
// there is no cancellation: the delivery handler is expected to cope with a
// task that disappeared in the meantime.
package scheduler
