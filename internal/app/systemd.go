package app

import (
	"context"
	"time"

	"github.com/coreos/go-systemd/v22/daemon"

	logx "remindbot/pkg/logx"
)

const (
	sdReady    = daemon.SdNotifyReady
	sdStopping = daemon.SdNotifyStopping
	sdWatchdog = daemon.SdNotifyWatchdog
)

// readiness reports service state to the init system.
type readiness interface {
	Notify(state string) (bool, error)
	WatchdogInterval() time.Duration
}

// sdNotifier talks to systemd through $NOTIFY_SOCKET. Outside systemd every
// call is a no-op.
type sdNotifier struct{}

func (sdNotifier) Notify(state string) (bool, error) { return daemon.SdNotify(false, state) }

func (sdNotifier) WatchdogInterval() time.Duration {
	d, err := daemon.SdWatchdogEnabled(false)
	if err != nil {
		return 0
	}
	return d
}

func (a *App) sdNotify(state string) {
	if a.notify == nil {
		return
	}
	sent, err := a.notify.Notify(state)
	if err != nil {
		a.log.Warn("sd_notify failed", logx.String("state", state), logx.Err(err))
		return
	}
	if sent {
		a.log.Debug("sd_notify sent", logx.String("state", state))
	}
}

// systemdLoop announces readiness, then pings the watchdog at half its
// interval when one is configured.
func (a *App) systemdLoop(ctx context.Context) {
	if a.notify == nil {
		return
	}
	a.sdNotify(sdReady)

	every := a.notify.WatchdogInterval() / 2
	if every <= 0 {
		return
	}
	t := time.NewTicker(every)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if _, err := a.notify.Notify(sdWatchdog); err != nil {
				a.log.Debug("watchdog ping failed", logx.Err(err))
			}
		}
	}
}
