package scheduler

import (
	"context"
	"time"

	"remindbot/internal/todo"
)

// Job is a single pending reminder. It carries only the task's stable id;
// the task itself is resolved at fire time.
type Job struct {
	FireAt time.Time
	Owner  todo.Owner
	TaskID uint64

	// Seq is assigned by ScheduleAt and breaks FireAt ties in insertion order.
	Seq uint64
}

// Handle identifies a scheduled job. It is informational only.
type Handle uint64

// Handler delivers a due job. It runs on a delivery worker, never on the
// timing loop.
type Handler func(ctx context.Context, job Job)

type Config struct {
	// Workers is the number of delivery workers (default 2).
	Workers int
	// QueueSize bounds the hand-off queue between the timing loop and the
	// workers (default 64). A full queue blocks the timing loop.
	QueueSize int
	// MaxSleep caps a single timing-loop sleep so wall-clock jumps are
	// noticed (default 30s).
	MaxSleep time.Duration
}

func (c Config) withDefaults() Config {
	if c.Workers <= 0 {
		c.Workers = 2
	}
	if c.QueueSize <= 0 {
		c.QueueSize = 64
	}
	if c.MaxSleep <= 0 {
		c.MaxSleep = 30 * time.Second
	}
	return c
}

// Stats is a point-in-time view used by /status.
type Stats struct {
	Pending int       `json:"pending"`
	Next    time.Time `json:"next,omitempty"`
	Fired   uint64    `json:"fired"`
	Running bool      `json:"running"`
}
