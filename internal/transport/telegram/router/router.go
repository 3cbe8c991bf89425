package router

import (
	"context"
	"runtime/debug"
	"slices"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"

	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/todo"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

const (
	textUnknownCommand = "❓ Unknown command. Try /help"
	textNotAllowed     = "⛔ Sorry, this bot is private."
	textBusy           = "⏳ Busy, please try again in a moment."
)

type Config struct {
	Workers        int           // default 4
	QueueSize      int           // default 256
	DefaultTimeout time.Duration // default 15s
}

type Router struct {
	mu       sync.RWMutex
	routes   map[string]Route
	list     []Route
	cbs      map[string]CallbackRoute
	allowed  []int64
	fallback HandlerFunc

	cfg     Config
	log     logx.Logger
	adapter kit.Adapter
	replier Replier
	names   *Names

	jobs chan func()
}

func New(cfg Config, adapter kit.Adapter, replier Replier, names *Names, log logx.Logger) *Router {
	if log.IsZero() {
		log = logx.Nop()
	}
	if cfg.Workers <= 0 {
		cfg.Workers = 4
	}
	if cfg.QueueSize <= 0 {
		cfg.QueueSize = 256
	}
	if cfg.DefaultTimeout <= 0 {
		cfg.DefaultTimeout = 15 * time.Second
	}
	if names == nil {
		names = NewNames()
	}
	return &Router{
		routes:  map[string]Route{},
		cbs:     map[string]CallbackRoute{},
		cfg:     cfg,
		log:     log.With(logx.String("comp", "router")),
		adapter: adapter,
		replier: replier,
		names:   names,
		jobs:    make(chan func(), cfg.QueueSize),
	}
}

func (r *Router) Names() *Names { return r.names }

// SetRoutes replaces the command and callback tables.
func (r *Router) SetRoutes(routes []Route, cbs []CallbackRoute) {
	table := map[string]Route{}
	list := make([]Route, 0, len(routes))
	for _, rt := range routes {
		verb := sanitizeCommand(rt.Verb)
		if verb == "" || rt.Handle == nil {
			continue
		}
		rt.Verb = verb
		table[verb] = rt
		list = append(list, rt)
		for _, a := range rt.Aliases {
			if a = sanitizeCommand(a); a != "" {
				if _, taken := table[a]; !taken {
					table[a] = rt
				}
			}
		}
	}
	cbTable := map[string]CallbackRoute{}
	for _, cb := range cbs {
		if s := strings.TrimSpace(cb.Scope); s != "" && cb.Handle != nil {
			cbTable[s] = cb
		}
	}

	r.mu.Lock()
	r.routes = table
	r.list = list
	r.cbs = cbTable
	r.mu.Unlock()
}

// SetFallback sets the handler for plain (non-command) text. Nil ignores it.
func (r *Router) SetFallback(h HandlerFunc) {
	r.mu.Lock()
	r.fallback = h
	r.mu.Unlock()
}

// SetAllowed restricts the bot to the given user ids. Empty allows everyone.
func (r *Router) SetAllowed(ids []int64) {
	cp := slices.Clone(ids)
	r.mu.Lock()
	r.allowed = cp
	r.mu.Unlock()
}

func (r *Router) isAllowed(id int64) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.allowed) == 0 || slices.Contains(r.allowed, id)
}

// Routes returns the registered routes in registration order.
func (r *Router) Routes() []Route {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return slices.Clone(r.list)
}

// PublishMenu pushes the command menu when the adapter supports it.
func (r *Router) PublishMenu(ctx context.Context) error {
	up, ok := r.adapter.(kit.CommandMenuUpdater)
	if !ok {
		return nil
	}
	cctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	return up.UpdateMenuCommands(cctx, menuCommands(r.Routes()))
}

// DispatchLoop reads updates until ctx is cancelled or updates is closed.
// Handlers run on a fixed worker pool; a full queue answers "busy".
func (r *Router) DispatchLoop(ctx context.Context, updates <-chan kit.Update) error {
	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(r.log))
	for i := 0; i < r.cfg.Workers; i++ {
		idx := i
		sup.GoRestart("router.worker."+strconv.Itoa(idx), func(c context.Context) error {
			for {
				select {
				case <-c.Done():
					return nil
				case job := <-r.jobs:
					r.runJob(idx, job)
				}
			}
		}, rtsup.WithRestartBackoff(200*time.Millisecond, 5*time.Second))
	}
	r.log.Info("dispatcher started", logx.Int("workers", r.cfg.Workers), logx.Int("queue_cap", cap(r.jobs)))

	defer func() {
		wctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
		defer cancel()
		_ = sup.Stop(wctx)
		r.log.Info("dispatcher stopped")
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case up, ok := <-updates:
			if !ok {
				return nil
			}
			r.Route(ctx, up)
		}
	}
}

func (r *Router) runJob(worker int, job func()) {
	defer func() {
		if p := recover(); p != nil {
			r.log.Error("panic in router job", logx.Int("worker", worker), logx.Any("panic", p), logx.String("stack", string(debug.Stack())))
		}
	}()
	job()
}

func (r *Router) enqueue(fn func()) bool {
	select {
	case r.jobs <- fn:
		return true
	default:
		return false
	}
}

// Route dispatches one update. It never blocks on a handler.
func (r *Router) Route(ctx context.Context, up kit.Update) {
	switch up.Kind {
	case kit.UpdateMessage:
		if up.Message != nil {
			r.routeMessage(ctx, up.Message)
		}
	case kit.UpdateCallback:
		if up.Callback != nil {
			r.routeCallback(ctx, up.Callback)
		}
	}
}

func (r *Router) newRequest(owner todo.Owner, chatID int64) *Request {
	rid := uuid.NewString()[:8]
	req := NewRequest(owner, chatID, r.replier, r.log.With(
		logx.String("rid", rid),
		logx.Int64("owner", int64(owner)),
		logx.Int64("chat_id", chatID),
	))
	req.ReqID = rid
	return req
}

func (r *Router) routeMessage(ctx context.Context, msg *kit.Message) {
	owner := todo.Owner(msg.FromID)
	cmd, isCmd := ParseCommand(owner, msg.Text)

	if !r.isAllowed(msg.FromID) {
		if isCmd {
			r.log.Info("rejected user not in allowlist", logx.Int64("from_id", msg.FromID))
			_ = r.replier.Reply(ctx, msg.ChatID, textNotAllowed)
		}
		return
	}
	r.names.Remember(owner, msg.FromName)

	req := r.newRequest(owner, msg.ChatID)
	var (
		h       HandlerFunc
		timeout time.Duration
	)
	r.mu.RLock()
	if isCmd {
		rt, ok := r.routes[cmd.Verb]
		if ok {
			cmd.Verb = rt.Verb
			h, timeout = rt.Handle, rt.Timeout
		}
	} else {
		h = r.fallback
	}
	r.mu.RUnlock()

	if isCmd {
		req.Command = &cmd
		req.Log = req.Log.With(logx.String("cmd", cmd.Verb))
		if h == nil {
			_ = r.replier.Reply(ctx, msg.ChatID, textUnknownCommand)
			return
		}
	} else {
		if h == nil {
			return
		}
		req.Command = &Command{Owner: owner, Text: strings.TrimSpace(msg.Text), Args: strings.Fields(msg.Text)}
	}

	final := r.chain(h, timeout)
	if !r.enqueue(func() { _ = final(ctx, req) }) {
		req.Log.Warn("router queue full")
		_ = r.replier.Reply(ctx, msg.ChatID, textBusy)
	}
}

func (r *Router) routeCallback(ctx context.Context, cb *kit.Callback) {
	if !r.isAllowed(cb.FromID) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "forbidden")
		return
	}
	owner := todo.Owner(cb.FromID)
	r.names.Remember(owner, cb.FromName)

	scope, action, _, ok := tgui.SplitData(cb.Data)
	r.mu.RLock()
	route, found := r.cbs[scope]
	r.mu.RUnlock()
	if !ok || !found {
		r.log.Debug("unroutable callback", logx.String("data", cb.Data))
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
		return
	}

	req := r.newRequest(owner, cb.ChatID)
	req.Callback = cb
	req.Log = req.Log.With(logx.String("cb", scope+":"+action))

	final := r.chain(route.Handle, route.Timeout)
	if !r.enqueue(func() {
		_ = final(ctx, req)
		// Stops the client's loading spinner.
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "")
	}) {
		_ = r.adapter.AnswerCallback(ctx, cb.ID, "busy")
	}
}

func (r *Router) chain(h HandlerFunc, timeout time.Duration) HandlerFunc {
	if timeout <= 0 {
		timeout = r.cfg.DefaultTimeout
	}
	return Chain(h,
		MWPanicRecover(),
		MWRequestLog(),
		MWTimeout(timeout),
	)
}
