package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"remindbot/internal/when"
	logx "remindbot/pkg/logx"
)

var ErrNoToken = errors.New("telegram token missing: set TOKEN or telegram.token")

// Settings is Config with defaults applied and strings parsed.
type Settings struct {
	Token          string
	PollTimeout    time.Duration
	AllowedUserIDs []int64

	Logging logx.Config

	Location        *time.Location
	SnoozeChoices   []int
	PendingTTL      time.Duration
	DeliveryWorkers int

	RatePerSec  int
	SendTimeout time.Duration

	StorageDriver      string
	StoragePath        string
	StorageBusyTimeout time.Duration
}

func parseDuration(path, raw string, def time.Duration) (time.Duration, error) {
	s := strings.TrimSpace(raw)
	if s == "" {
		return def, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, fmt.Errorf("%s: invalid duration %q: %w", path, raw, err)
	}
	if d < 0 {
		return 0, fmt.Errorf("%s: duration must be >= 0", path)
	}
	return d, nil
}

// Resolve validates cfg and returns typed settings. Every problem found is
// reported, joined.
func (c *Config) Resolve() (Settings, error) {
	var (
		s    Settings
		errs []error
		err  error
	)
	check := func(e error) {
		if e != nil {
			errs = append(errs, e)
		}
	}

	s.Token = strings.TrimSpace(c.Telegram.Token)
	if s.Token == "" {
		check(ErrNoToken)
	}
	s.PollTimeout, err = parseDuration("telegram.poll_timeout", c.Telegram.PollTimeout, 10*time.Second)
	check(err)
	for _, id := range c.Telegram.AllowedUserIDs {
		if id <= 0 {
			check(fmt.Errorf("telegram.allowed_user_ids: invalid user id %d", id))
		}
	}
	s.AllowedUserIDs = append([]int64(nil), c.Telegram.AllowedUserIDs...)

	level := strings.TrimSpace(c.Logging.Level)
	if level == "" {
		level = "info"
	}
	if !logx.ValidLevel(level) {
		check(fmt.Errorf("logging.level: unknown level %q", c.Logging.Level))
	}
	if c.Logging.File.Enabled && strings.TrimSpace(c.Logging.File.Path) == "" {
		check(errors.New("logging.file.path: required when file logging is enabled"))
	}
	s.Logging = logx.Config{
		Level:   level,
		Console: c.Logging.Console || !c.Logging.File.Enabled,
		File:    logx.FileConfig{Enabled: c.Logging.File.Enabled, Path: strings.TrimSpace(c.Logging.File.Path)},
	}

	s.Location, err = when.LoadLocation(c.Reminder.Timezone)
	if err != nil {
		check(fmt.Errorf("reminder.timezone: %w", err))
	}
	for _, m := range c.Reminder.SnoozeChoices {
		if m <= 0 || m > when.MaxRelativeMinutes {
			check(fmt.Errorf("reminder.snooze_choices: %d is not a valid minute count", m))
		}
	}
	if len(c.Reminder.SnoozeChoices) > 8 {
		check(errors.New("reminder.snooze_choices: at most 8 choices fit one keyboard row"))
	}
	s.SnoozeChoices = append([]int(nil), c.Reminder.SnoozeChoices...)
	if len(s.SnoozeChoices) == 0 {
		s.SnoozeChoices = []int{5, 10, 30}
	}
	s.PendingTTL, err = parseDuration("reminder.pending_ttl", c.Reminder.PendingTTL, 24*time.Hour)
	check(err)
	s.DeliveryWorkers = c.Reminder.DeliveryWorkers
	if s.DeliveryWorkers < 0 || s.DeliveryWorkers > 64 {
		check(fmt.Errorf("reminder.delivery_workers: %d out of range 0..64", s.DeliveryWorkers))
	}
	if s.DeliveryWorkers == 0 {
		s.DeliveryWorkers = 2
	}

	s.RatePerSec = c.Notifier.RatePerSec
	if s.RatePerSec < 0 {
		check(errors.New("notifier.rate_per_sec: must be >= 0"))
	}
	if s.RatePerSec == 0 {
		s.RatePerSec = 20
	}
	s.SendTimeout, err = parseDuration("notifier.send_timeout", c.Notifier.SendTimeout, 10*time.Second)
	check(err)

	s.StorageDriver = strings.ToLower(strings.TrimSpace(c.Storage.Driver))
	switch s.StorageDriver {
	case "", "none":
		s.StorageDriver = "none"
	case "file", "sqlite":
		if strings.TrimSpace(c.Storage.Path) == "" {
			check(fmt.Errorf("storage.path: required for driver %q", s.StorageDriver))
		}
	default:
		check(fmt.Errorf("storage.driver: unknown driver %q (use none, file or sqlite)", c.Storage.Driver))
	}
	s.StoragePath = strings.TrimSpace(c.Storage.Path)
	s.StorageBusyTimeout, err = parseDuration("storage.busy_timeout", c.Storage.BusyTimeout, 5*time.Second)
	check(err)

	if len(errs) > 0 {
		return Settings{}, errors.Join(errs...)
	}
	return s, nil
}
