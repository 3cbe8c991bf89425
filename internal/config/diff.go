package config

import (
	"slices"

	logx "remindbot/pkg/logx"
)

// Change lists which sections differ between two resolved settings, plus
// fields that only take effect after a restart. Tokens are never logged.
type Change struct {
	Sections      []string
	RestartNeeded []string
	Fields        []logx.Field
}

func (c Change) Empty() bool { return len(c.Sections) == 0 && len(c.RestartNeeded) == 0 }

func Diff(old, cur Settings) Change {
	var ch Change
	if old.Logging != cur.Logging {
		ch.Sections = append(ch.Sections, "logging")
		ch.Fields = append(ch.Fields, logx.String("logging.level", cur.Logging.Level))
	}
	if !slices.Equal(old.AllowedUserIDs, cur.AllowedUserIDs) {
		ch.Sections = append(ch.Sections, "telegram.allowed_user_ids")
		ch.Fields = append(ch.Fields, logx.Int("telegram.allowed_count", len(cur.AllowedUserIDs)))
	}
	if !slices.Equal(old.SnoozeChoices, cur.SnoozeChoices) || old.PendingTTL != cur.PendingTTL {
		ch.Sections = append(ch.Sections, "reminder")
		ch.Fields = append(ch.Fields,
			logx.Any("reminder.snooze_choices", cur.SnoozeChoices),
			logx.Duration("reminder.pending_ttl", cur.PendingTTL),
		)
	}
	if old.RatePerSec != cur.RatePerSec || old.SendTimeout != cur.SendTimeout {
		ch.Sections = append(ch.Sections, "notifier")
		ch.Fields = append(ch.Fields, logx.Int("notifier.rate_per_sec", cur.RatePerSec))
	}

	if old.Token != cur.Token {
		ch.RestartNeeded = append(ch.RestartNeeded, "telegram.token")
	}
	if old.PollTimeout != cur.PollTimeout {
		ch.RestartNeeded = append(ch.RestartNeeded, "telegram.poll_timeout")
	}
	if old.Location.String() != cur.Location.String() {
		ch.RestartNeeded = append(ch.RestartNeeded, "reminder.timezone")
	}
	if old.DeliveryWorkers != cur.DeliveryWorkers {
		ch.RestartNeeded = append(ch.RestartNeeded, "reminder.delivery_workers")
	}
	if old.StorageDriver != cur.StorageDriver || old.StoragePath != cur.StoragePath || old.StorageBusyTimeout != cur.StorageBusyTimeout {
		ch.RestartNeeded = append(ch.RestartNeeded, "storage")
	}
	return ch
}
