package app

import (
	"context"
	"strings"

	"remindbot/internal/config"
	"remindbot/internal/notifier"
	logx "remindbot/pkg/logx"
)

func (a *App) reloadLoop(ctx context.Context, sub <-chan *config.Config) {
	for {
		select {
		case <-ctx.Done():
			return
		case cfg, ok := <-sub:
			if !ok {
				return
			}
			// Coalesce bursts: keep only the latest config in the channel.
		drain:
			for {
				select {
				case newer := <-sub:
					if newer != nil {
						cfg = newer
					}
				default:
					break drain
				}
			}
			if cfg != nil {
				a.applyConfig(cfg)
			}
		}
	}
}

// applyConfig switches the hot-reloadable settings over to cfg. Sections that
// need a restart are only reported.
func (a *App) applyConfig(cfg *config.Config) {
	cur, err := cfg.Resolve()
	if err != nil {
		a.log.Warn("invalid config; keeping previous", logx.Err(err))
		return
	}

	a.mu.Lock()
	old := a.settings
	ch := config.Diff(old, cur)
	if ch.Empty() {
		a.mu.Unlock()
		a.log.Info("config reloaded (no changes)")
		return
	}
	// Restart-only fields keep their running values.
	next := cur
	next.Token = old.Token
	next.PollTimeout = old.PollTimeout
	next.Location = old.Location
	next.DeliveryWorkers = old.DeliveryWorkers
	next.StorageDriver, next.StoragePath, next.StorageBusyTimeout = old.StorageDriver, old.StoragePath, old.StorageBusyTimeout
	a.settings = next
	a.mu.Unlock()

	for _, section := range ch.Sections {
		switch section {
		case "logging":
			if a.logs != nil {
				a.logs.Apply(next.Logging)
			}
		case "telegram.allowed_user_ids":
			a.router.SetAllowed(next.AllowedUserIDs)
		case "reminder":
			a.engine.SetSnoozeChoices(next.SnoozeChoices)
		case "notifier":
			a.notif.Apply(notifier.Config{RatePerSec: next.RatePerSec, SendTimeout: next.SendTimeout})
		}
	}
	if len(ch.RestartNeeded) > 0 {
		a.log.Warn("config changes need a restart to take effect", logx.String("fields", strings.Join(ch.RestartNeeded, ",")))
	}
	if len(ch.Sections) > 0 {
		fields := append([]logx.Field{logx.String("changed", strings.Join(ch.Sections, ","))}, ch.Fields...)
		a.log.Info("config reloaded", fields...)
	}
}
