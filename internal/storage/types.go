package storage

import (
	"context"
	"errors"
	"time"
)

var ErrDisabled = errors.New("storage disabled")

// Config configures storage.
//
// If Driver is empty or "none", storage is disabled.
type Config struct {
	Driver      string
	Path        string
	BusyTimeout time.Duration // sqlite only; 0 means default
}

// Entry is one audit record. Keep it compact and schema-stable.
type Entry struct {
	At      time.Time `json:"at"`
	Type    string    `json:"type"`
	Owner   int64     `json:"owner"`
	TaskID  uint64    `json:"task_id,omitempty"`
	Text    string    `json:"text,omitempty"`
	Token   string    `json:"token,omitempty"`
	FireAt  time.Time `json:"fire_at,omitzero"`
	Minutes int       `json:"minutes,omitempty"`
	Error   string    `json:"error,omitempty"`
}

// Store is the audit persistence API.
type Store interface {
	Append(ctx context.Context, e Entry) error
	// Recent returns up to limit entries, newest first.
	Recent(ctx context.Context, limit int) ([]Entry, error)
	Close() error
}
