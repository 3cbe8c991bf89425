package config

// Config is the on-disk configuration (JSON or YAML). Durations are Go
// duration strings such as "10s" or "24h".
type Config struct {
	Telegram TelegramConfig `json:"telegram"`
	Logging  LoggingConfig  `json:"logging"`
	Reminder ReminderConfig `json:"reminder"`
	Notifier NotifierConfig `json:"notifier"`
	Storage  StorageConfig  `json:"storage"`
}

type TelegramConfig struct {
	// Token is overridden by the TOKEN environment variable.
	Token       string `json:"token,omitempty"`
	PollTimeout string `json:"poll_timeout,omitempty"`
	// AllowedUserIDs restricts the bot to these users. Empty allows everyone.
	AllowedUserIDs []int64 `json:"allowed_user_ids,omitempty"`
}

type LoggingConfig struct {
	Level   string      `json:"level"`
	Console bool        `json:"console"`
	File    LoggingFile `json:"file"`
}

type LoggingFile struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// ReminderConfig controls scheduling and the interaction flow.
//
// Defaults: timezone "Asia/Jakarta", snooze_choices [5, 10, 30],
// pending_ttl "24h" ("0s" keeps tokens forever), delivery_workers 2.
type ReminderConfig struct {
	Timezone        string `json:"timezone,omitempty"`
	SnoozeChoices   []int  `json:"snooze_choices,omitempty"`
	PendingTTL      string `json:"pending_ttl,omitempty"`
	DeliveryWorkers int    `json:"delivery_workers,omitempty"`
}

type NotifierConfig struct {
	RatePerSec  int    `json:"rate_per_sec,omitempty"`
	SendTimeout string `json:"send_timeout,omitempty"`
}

// StorageConfig selects the audit trail backend: "none" (default), "file"
// (JSON lines) or "sqlite".
type StorageConfig struct {
	Driver      string `json:"driver,omitempty"`
	Path        string `json:"path,omitempty"`
	BusyTimeout string `json:"busy_timeout,omitempty"`
}
