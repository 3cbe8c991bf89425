// Package app wires configuration, logging, storage, the reminder engine and
// the Telegram transport into one runnable unit.
package app

import (
	"context"
	"fmt"
	"sync"
	"time"

	"remindbot/internal/bot"
	"remindbot/internal/config"
	"remindbot/internal/eventbus"
	"remindbot/internal/notifier"
	"remindbot/internal/pending"
	"remindbot/internal/reminder"
	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/storage"
	"remindbot/internal/task/scheduler"
	"remindbot/internal/todo"
	kit "remindbot/internal/transport"
	telegram "remindbot/internal/transport/telegram/adapter"
	"remindbot/internal/transport/telegram/router"
	"remindbot/internal/when"
	logx "remindbot/pkg/logx"
)

// pruneEvery is how often expired pending notifications are dropped.
const pruneEvery = time.Minute

type App struct {
	cfgm *config.ConfigManager

	mu       sync.RWMutex
	settings config.Settings

	sup  *rtsup.Supervisor
	log  logx.Logger
	logs *logx.Service

	bus   eventbus.Bus
	store storage.Store

	adapter kit.Adapter
	updates chan kit.Update

	tasks   *todo.Store
	pending *pending.Registry
	sched   *scheduler.Service
	engine  *reminder.Engine
	notif   *notifier.Service
	router  *router.Router

	notify readiness
	now    func() time.Time
}

// New loads the config held by cfgm, opens the Telegram bot and assembles
// every component. Nothing runs until Start.
func New(cfgm *config.ConfigManager) (*App, error) {
	cfg := cfgm.Get()
	if cfg == nil {
		var err error
		if cfg, err = cfgm.Load(); err != nil {
			return nil, err
		}
	}
	s, err := cfg.Resolve()
	if err != nil {
		return nil, err
	}

	logSvc, log := logx.New(s.Logging)
	ad, err := telegram.New(telegram.Config{Token: s.Token, PollTimeout: s.PollTimeout}, log)
	if err != nil {
		_ = logSvc.Close()
		return nil, fmt.Errorf("telegram: %w", err)
	}
	a, err := assemble(cfgm, s, logSvc, log, ad)
	if err != nil {
		_ = logSvc.Close()
		return nil, err
	}
	return a, nil
}

func assemble(cfgm *config.ConfigManager, s config.Settings, logSvc *logx.Service, log logx.Logger, ad kit.Adapter) (*App, error) {
	if log.IsZero() {
		log = logx.Nop()
	}
	store, err := storage.Open(storage.Config{
		Driver:      s.StorageDriver,
		Path:        s.StoragePath,
		BusyTimeout: s.StorageBusyTimeout,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("storage: %w", err)
	}
	if store != nil {
		log.Info("audit storage enabled", logx.String("driver", s.StorageDriver), logx.String("path", s.StoragePath))
	}

	a := &App{
		cfgm:     cfgm,
		settings: s,
		log:      log.With(logx.String("comp", "app")),
		logs:     logSvc,
		bus:      eventbus.New(),
		store:    store,
		adapter:  ad,
		updates:  make(chan kit.Update, 256),
		tasks:    todo.NewStore(),
		pending:  pending.NewRegistry(),
		notify:   sdNotifier{},
		now:      time.Now,
	}

	// The scheduler needs the engine's Fire and the engine needs the
	// scheduler, so the handler resolves a.engine at call time.
	a.sched = scheduler.New(scheduler.Config{Workers: s.DeliveryWorkers}, func(ctx context.Context, j scheduler.Job) {
		a.engine.Fire(ctx, j)
	}, log)
	a.notif = notifier.New(notifier.Config{RatePerSec: s.RatePerSec, SendTimeout: s.SendTimeout}, ad, log)

	names := router.NewNames()
	a.engine = reminder.NewEngine(reminder.Deps{
		Tasks:     a.tasks,
		Pending:   a.pending,
		Scheduler: a.sched,
		Resolver:  when.NewResolver(s.Location),
		Notifier:  a.notif,
		Names:     names,
		Bus:       a.bus,
		Log:       log,
		Clock:     func() time.Time { return a.now() },
	}, s.SnoozeChoices)

	a.router = router.New(router.Config{}, ad, a.notif, names, log)
	h := bot.New(a.engine, a.pending, a.sched, a.notif, names, log)
	a.router.SetRoutes(h.Routes())
	a.router.SetFallback(h.Fallback)
	a.router.SetAllowed(s.AllowedUserIDs)
	return a, nil
}

// Done is closed when the app supervisor context is canceled (fatal error or Stop()).
func (a *App) Done() <-chan struct{} {
	if a.sup == nil {
		ch := make(chan struct{})
		close(ch)
		return ch
	}
	return a.sup.Context().Done()
}

// Err returns the first fatal error observed by the supervisor (if any).
func (a *App) Err() error {
	if a.sup == nil {
		return nil
	}
	return a.sup.Err()
}

func (a *App) Start(ctx context.Context) error {
	a.sup = rtsup.NewSupervisor(ctx, rtsup.WithLogger(a.log), rtsup.WithCancelOnError(true))

	if a.cfgm != nil {
		a.cfgm.SetLogger(a.log)
		a.cfgm.SetValidator(func(_ context.Context, cfg *config.Config) error {
			_, err := cfg.Resolve()
			return err
		})
	}

	if a.store != nil {
		events, unsub := a.bus.Subscribe(256)
		a.sup.Go0("audit.writer", func(c context.Context) {
			defer unsub()
			a.auditLoop(c, events)
		})
	}

	a.sup.GoRestart("scheduler", a.sched.Run, rtsup.WithMaxRestarts(10), rtsup.WithPublishFirstError(true))
	a.sup.Go0("pending.prune", a.pruneLoop)

	if err := a.adapter.Start(a.sup.Context(), a.updates); err != nil {
		a.sup.Cancel()
		return err
	}
	a.sup.Go("router.dispatch", func(c context.Context) error {
		return a.router.DispatchLoop(c, a.updates)
	})
	a.sup.Go0("router.menu", func(c context.Context) {
		if err := a.router.PublishMenu(c); err != nil {
			a.log.Warn("command menu update failed", logx.Err(err))
		}
	})

	if a.cfgm != nil {
		sub := a.cfgm.Subscribe(8)
		a.sup.Go0("config.reload", func(c context.Context) {
			defer a.cfgm.Unsubscribe(sub)
			a.reloadLoop(c, sub)
		})
		a.sup.Go("config.watch", a.cfgm.Watch)
	}

	a.sup.Go0("systemd", a.systemdLoop)
	a.log.Info("app started",
		logx.String("timezone", a.settings.Location.String()),
		logx.Any("snooze_choices", a.settings.SnoozeChoices),
		logx.Int("delivery_workers", a.settings.DeliveryWorkers),
	)
	return nil
}

// pruneLoop drops pending notifications older than the configured TTL.
func (a *App) pruneLoop(ctx context.Context) {
	t := time.NewTicker(pruneEvery)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			ttl := a.currentTTL()
			if ttl <= 0 {
				continue
			}
			if n := a.pending.Prune(a.now(), ttl); n > 0 {
				a.log.Debug("pending notifications pruned", logx.Int("count", n), logx.Duration("ttl", ttl))
			}
		}
	}
}

func (a *App) currentTTL() time.Duration {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return a.settings.PendingTTL
}

func (a *App) Stop(ctx context.Context, reason StopReason) error {
	if a.sup == nil {
		return nil
	}
	a.log.Info("stopping", logx.String("reason", string(reason)))
	a.sdNotify(sdStopping)

	// Cancel first so every loop starts unwinding immediately.
	a.sup.Cancel()

	step := func(name string, max time.Duration, fn func(context.Context) error) {
		start := time.Now()
		stepCtx, cancel := context.WithTimeout(ctx, max)
		defer cancel()

		done := make(chan error, 1)
		go func() {
			defer func() {
				if r := recover(); r != nil {
					done <- fmt.Errorf("panic in stop step %s: %v", name, r)
				}
			}()
			done <- fn(stepCtx)
		}()

		select {
		case err := <-done:
			if err != nil {
				a.log.Warn("stop step error", logx.String("name", name), logx.Err(err))
			}
			a.log.Debug("stop step end", logx.String("name", name), logx.Duration("took", time.Since(start)))
		case <-stepCtx.Done():
			a.log.Warn("stop step deadline reached (continuing)",
				logx.String("name", name),
				logx.Err(stepCtx.Err()),
				logx.Duration("elapsed", time.Since(start)),
			)
		}
	}

	step("adapter", 2*time.Second, a.adapter.Stop)
	step("supervisor", 3*time.Second, a.sup.Wait)
	step("storage", time.Second, func(context.Context) error {
		if a.store != nil {
			return a.store.Close()
		}
		return nil
	})

	st := a.sched.Snapshot()
	a.log.Info("stopped",
		logx.Int("reminders_dropped", st.Pending),
		logx.Uint64("reminders_fired", st.Fired),
	)
	if a.logs != nil {
		_ = a.logs.Close()
	}
	return nil
}
