package config

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const sampleYAML = `
telegram:
  token: "file-token"
  allowed_user_ids: [111, 222]
logging:
  level: debug
  console: true
reminder:
  timezone: Asia/Jakarta
  snooze_choices: [5, 15]
  pending_ttl: 12h
notifier:
  rate_per_sec: 10
storage:
  driver: file
  path: ./data/audit.jsonl
`

func writeFile(t *testing.T, dir, name, body string) string {
	t.Helper()
	p := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(p, []byte(body), 0o600))
	return p
}

func TestParseYAML(t *testing.T) {
	t.Setenv(TokenEnv, "")
	p := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	cfg, err := NewConfigManager(p).Parse()
	require.NoError(t, err)
	assert.Equal(t, "file-token", cfg.Telegram.Token)
	assert.Equal(t, []int64{111, 222}, cfg.Telegram.AllowedUserIDs)
	assert.Equal(t, []int{5, 15}, cfg.Reminder.SnoozeChoices)
	assert.Equal(t, "file", cfg.Storage.Driver)
}

func TestParseJSON(t *testing.T) {
	t.Setenv(TokenEnv, "")
	p := writeFile(t, t.TempDir(), "config.json", `{"telegram":{"token":"abc"},"logging":{"level":"warn","console":true}}`)

	cfg, err := NewConfigManager(p).Parse()
	require.NoError(t, err)
	assert.Equal(t, "abc", cfg.Telegram.Token)
	assert.Equal(t, "warn", cfg.Logging.Level)
}

func TestParseRejectsUnknownFields(t *testing.T) {
	dir := t.TempDir()
	for name, body := range map[string]string{
		"a.yaml": "telegram:\n  tokn: x\n",
		"b.json": `{"reminders":{}}`,
		"c.json": `{"telegram":{}} {"telegram":{}}`,
	} {
		_, err := NewConfigManager(writeFile(t, dir, name, body)).Parse()
		assert.Error(t, err, name)
	}
}

func TestTokenEnvOverridesFile(t *testing.T) {
	t.Setenv(TokenEnv, " env-token ")
	p := writeFile(t, t.TempDir(), "config.yaml", sampleYAML)

	cfg, err := NewConfigManager(p).Parse()
	require.NoError(t, err)
	assert.Equal(t, "env-token", cfg.Telegram.Token)
}

func TestLoadDotEnvNextToConfig(t *testing.T) {
	dir := t.TempDir()
	t.Setenv(TokenEnv, "")
	require.NoError(t, os.Unsetenv(TokenEnv))
	writeFile(t, dir, ".env", "TOKEN=dotenv-token\n")
	p := writeFile(t, dir, "config.yaml", "telegram: {}\n")

	m := NewConfigManager(p)
	require.NoError(t, m.LoadDotEnv())
	cfg, err := m.Parse()
	require.NoError(t, err)
	assert.Equal(t, "dotenv-token", cfg.Telegram.Token)
}

func TestResolveDefaults(t *testing.T) {
	cfg := &Config{Telegram: TelegramConfig{Token: "t"}}
	s, err := cfg.Resolve()
	require.NoError(t, err)

	assert.Equal(t, 10*time.Second, s.PollTimeout)
	assert.Equal(t, "info", s.Logging.Level)
	assert.True(t, s.Logging.Console)
	assert.Equal(t, "Asia/Jakarta", s.Location.String())
	assert.Equal(t, []int{5, 10, 30}, s.SnoozeChoices)
	assert.Equal(t, 24*time.Hour, s.PendingTTL)
	assert.Equal(t, 2, s.DeliveryWorkers)
	assert.Equal(t, 20, s.RatePerSec)
	assert.Equal(t, 10*time.Second, s.SendTimeout)
	assert.Equal(t, "none", s.StorageDriver)
}

func TestResolveReportsEveryProblem(t *testing.T) {
	cfg := &Config{
		Logging:  LoggingConfig{Level: "loud"},
		Reminder: ReminderConfig{Timezone: "Mars/Olympus", SnoozeChoices: []int{0}, PendingTTL: "soon"},
		Storage:  StorageConfig{Driver: "sqlite"},
	}
	_, err := cfg.Resolve()
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoToken))
	for _, want := range []string{"logging.level", "reminder.timezone", "reminder.snooze_choices", "reminder.pending_ttl", "storage.path"} {
		assert.Contains(t, err.Error(), want)
	}
}

func TestDiffFlagsRestartSections(t *testing.T) {
	base := &Config{Telegram: TelegramConfig{Token: "t"}}
	old, err := base.Resolve()
	require.NoError(t, err)

	live := *base
	live.Reminder.SnoozeChoices = []int{1, 2}
	live.Telegram.AllowedUserIDs = []int64{9}
	cur, err := live.Resolve()
	require.NoError(t, err)

	ch := Diff(old, cur)
	assert.False(t, ch.Empty())
	assert.Empty(t, ch.RestartNeeded)

	moved := live
	moved.Reminder.Timezone = "UTC"
	cur2, err := moved.Resolve()
	require.NoError(t, err)
	assert.NotEmpty(t, Diff(cur, cur2).RestartNeeded)

	assert.True(t, Diff(cur, cur).Empty())
}

func TestWatchPublishesReload(t *testing.T) {
	t.Setenv(TokenEnv, "")
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", "telegram:\n  token: one\n")

	m := NewConfigManager(p)
	m.debounce = 10 * time.Millisecond
	_, err := m.Load()
	require.NoError(t, err)

	ch := m.Subscribe(1)
	defer m.Unsubscribe(ch)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() { _ = m.Watch(ctx); close(done) }()
	defer func() { cancel(); <-done }()

	// Give the watcher a moment to register the directory.
	time.Sleep(50 * time.Millisecond)
	writeFile(t, dir, "config.yaml", "telegram:\n  token: two\n")

	select {
	case cfg := <-ch:
		assert.Equal(t, "two", cfg.Telegram.Token)
	case <-time.After(5 * time.Second):
		t.Fatal("reload not published")
	}
	assert.Equal(t, "two", m.Get().Telegram.Token)
}

func TestReloadSkipsUnchangedAndRejected(t *testing.T) {
	t.Setenv(TokenEnv, "")
	dir := t.TempDir()
	p := writeFile(t, dir, "config.yaml", "telegram:\n  token: one\n")
	m := NewConfigManager(p)
	_, err := m.Load()
	require.NoError(t, err)
	m.SetValidator(func(_ context.Context, cfg *Config) error {
		if cfg.Telegram.Token == "bad" {
			return errors.New("nope")
		}
		return nil
	})

	assert.False(t, m.reload(context.Background()), "unchanged file")

	writeFile(t, dir, "config.yaml", "telegram:\n  token: bad\n")
	assert.False(t, m.reload(context.Background()))
	assert.Equal(t, "one", m.Get().Telegram.Token)

	writeFile(t, dir, "config.yaml", "telegram: [broken\n")
	assert.False(t, m.reload(context.Background()))
	assert.Equal(t, "one", m.Get().Telegram.Token)
}
