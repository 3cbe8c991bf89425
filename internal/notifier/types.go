package notifier

import "time"

type Config struct {
	// RatePerSec is the sustained outbound message rate (default 20).
	RatePerSec int
	// SendTimeout bounds a single transport call (default 10s).
	SendTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.RatePerSec <= 0 {
		c.RatePerSec = 20
	}
	if c.SendTimeout <= 0 {
		c.SendTimeout = 10 * time.Second
	}
	return c
}

// Counters is reported by /status.
type Counters struct {
	Sent   uint64 `json:"sent"`
	Failed uint64 `json:"failed"`
}
