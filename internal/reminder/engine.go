// Package reminder is the interaction state machine around a reminder:
// firing it, and reacting to the done / not yet / snooze / back buttons.
//
// A notification moves DELIVERED -> COMPLETED, or DELIVERED ->
// AWAITING_SNOOZE -> (rescheduled), with Back returning to DELIVERED. Any
// token that is no longer registered is EXPIRED.
package reminder

import (
	"context"
	"slices"
	"sync/atomic"
	"time"

	"remindbot/internal/eventbus"
	"remindbot/internal/pending"
	"remindbot/internal/task/scheduler"
	"remindbot/internal/todo"
	"remindbot/internal/when"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

// DefaultSnoozeChoices are the minute buttons offered after "not yet".
var DefaultSnoozeChoices = []int{5, 10, 30}

// Delivery describes a sent notification.
type Delivery struct {
	ChatID    int64
	MessageID int
}

// Notifier delivers a prompt to an owner. It is called without any engine
// lock held and may block.
type Notifier interface {
	Send(ctx context.Context, owner todo.Owner, p Prompt) (Delivery, error)
}

// Scheduler is the subset of the scheduler the engine needs.
type Scheduler interface {
	ScheduleAt(at time.Time, job scheduler.Job) scheduler.Handle
}

// NameSource returns the name used to greet an owner; "" means unknown.
type NameSource interface {
	DisplayName(owner todo.Owner) string
}

type Result int

const (
	ResultInvalid Result = iota
	ResultCompleted
	ResultTaskMissing
	ResultDeferred
	ResultSnoozed
	ResultBack
	ResultExpired
)

var resultNames = [...]string{"invalid", "completed", "task_missing", "deferred", "snoozed", "back", "expired"}

func (r Result) String() string {
	if int(r) < len(resultNames) {
		return resultNames[r]
	}
	return "unknown"
}

// Outcome is what Handle decided. Prompt replaces the message the button was
// pressed on.
type Outcome struct {
	Result Result
	Prompt Prompt
	TaskID uint64
	FireAt time.Time
}

// Err maps failure results to sentinel errors.
func (o Outcome) Err() error {
	switch o.Result {
	case ResultExpired:
		return ErrExpired
	case ResultInvalid:
		return ErrInvalidAction
	default:
		return nil
	}
}

type Deps struct {
	Tasks     *todo.Store
	Pending   *pending.Registry
	Scheduler Scheduler
	Resolver  *when.Resolver
	Notifier  Notifier
	Names     NameSource
	Bus       eventbus.Bus
	Log       logx.Logger
	// Clock resolves "in"/"at" requests and snoozes; nil is time.Now.
	Clock func() time.Time
}

type Engine struct {
	tasks    *todo.Store
	pending  *pending.Registry
	sched    Scheduler
	resolver *when.Resolver
	notifier Notifier
	names    NameSource
	bus      eventbus.Bus
	log      logx.Logger

	now    func() time.Time
	snooze atomic.Pointer[[]int]
}

func NewEngine(d Deps, snoozeChoices []int) *Engine {
	if d.Log.IsZero() {
		d.Log = logx.Nop()
	}
	if d.Bus == nil {
		d.Bus = eventbus.Nop()
	}
	if d.Resolver == nil {
		d.Resolver = when.NewResolver(nil)
	}
	e := &Engine{
		tasks:    d.Tasks,
		pending:  d.Pending,
		sched:    d.Scheduler,
		resolver: d.Resolver,
		notifier: d.Notifier,
		names:    d.Names,
		bus:      d.Bus,
		log:      d.Log.With(logx.String("comp", "reminder")),
		now:      time.Now,
	}
	if d.Clock != nil {
		e.now = d.Clock
	}
	e.SetSnoozeChoices(snoozeChoices)
	return e
}

// SetSnoozeChoices replaces the snooze menu. Invalid entries are dropped; an
// empty result falls back to DefaultSnoozeChoices.
func (e *Engine) SetSnoozeChoices(choices []int) {
	out := make([]int, 0, len(choices))
	for _, m := range choices {
		if m > 0 && m <= when.MaxRelativeMinutes && !slices.Contains(out, m) {
			out = append(out, m)
		}
	}
	if len(out) == 0 {
		out = slices.Clone(DefaultSnoozeChoices)
	}
	e.snooze.Store(&out)
}

func (e *Engine) SnoozeChoices() []int { return slices.Clone(*e.snooze.Load()) }

func (e *Engine) Location() *time.Location { return e.resolver.Location() }

// Add stores a new task for owner.
func (e *Engine) Add(owner todo.Owner, text string) (todo.Task, error) {
	t, err := e.tasks.Add(owner, text)
	if err != nil {
		return todo.Task{}, err
	}
	e.publish(EventTaskAdded, Record{Owner: owner, TaskID: t.ID, Text: t.Text})
	return t, nil
}

func (e *Engine) List(owner todo.Owner) []todo.Task { return e.tasks.List(owner) }

// Delete removes the task at display position pos. Reminders already
// scheduled for it stay queued and report the task as missing when they fire.
func (e *Engine) Delete(owner todo.Owner, pos int) (todo.Task, error) {
	t, err := e.tasks.Delete(owner, todo.ByPosition(pos))
	if err != nil {
		return todo.Task{}, err
	}
	e.publish(EventTaskDeleted, Record{Owner: owner, TaskID: t.ID, Text: t.Text})
	return t, nil
}

// Remind schedules a reminder for the task at display position pos. The
// position is turned into the task's stable id here; the scheduled job never
// refers to a position.
func (e *Engine) Remind(owner todo.Owner, pos int, spec when.Spec) (todo.Task, time.Time, error) {
	t, err := e.tasks.At(owner, pos)
	if err != nil {
		return todo.Task{}, time.Time{}, err
	}
	at, err := e.resolver.Resolve(spec, e.now())
	if err != nil {
		return todo.Task{}, time.Time{}, err
	}
	e.sched.ScheduleAt(at, scheduler.Job{Owner: owner, TaskID: t.ID})
	e.log.Info("reminder scheduled",
		logx.Int64("owner", int64(owner)),
		logx.Uint64("task_id", t.ID),
		logx.String("spec", spec.String()),
		logx.Time("fire_at", at),
	)
	e.publish(EventScheduled, Record{Owner: owner, TaskID: t.ID, Text: t.Text, FireAt: at})
	return t, at, nil
}

// Fire delivers a due job. It is the scheduler's delivery handler.
//
// The task is looked up by id first; for a task deleted since scheduling the
// owner gets a plain not-found notice with no token behind it. Otherwise the token is registered before Send, so a
// button press racing the send always finds it. A failed send is logged and
// leaves the token in place.
func (e *Engine) Fire(ctx context.Context, job scheduler.Job) {
	log := e.log.With(logx.Int64("owner", int64(job.Owner)), logx.Uint64("task_id", job.TaskID))

	t, ok := e.tasks.Resolve(job.Owner, job.TaskID)
	if !ok {
		log.Info("reminder fired for a task that no longer exists")
		e.publish(EventOrphaned, Record{Owner: job.Owner, TaskID: job.TaskID, FireAt: job.FireAt})
		if e.notifier == nil {
			return
		}
		if _, err := e.notifier.Send(ctx, job.Owner, Prompt{Text: textTaskMissing}); err != nil {
			log.Warn("not-found notice delivery failed", logx.Err(err))
			e.publish(EventDeliveryFailed, Record{Owner: job.Owner, TaskID: job.TaskID, Error: err.Error()})
		}
		return
	}

	tok := e.pending.Create(job.Owner, t.ID, t.Text)
	e.publish(EventFired, Record{Owner: job.Owner, TaskID: t.ID, Text: t.Text, Token: string(tok), FireAt: job.FireAt})

	name := ""
	if e.names != nil {
		name = e.names.DisplayName(job.Owner)
	}
	if e.notifier == nil {
		log.Warn("no notifier configured; reminder not sent", logx.String("token", string(tok)))
		return
	}
	if _, err := e.notifier.Send(ctx, job.Owner, reminderPrompt(name, t.Text, tok)); err != nil {
		log.Warn("reminder delivery failed", logx.String("token", string(tok)), logx.Err(err))
		e.publish(EventDeliveryFailed, Record{Owner: job.Owner, TaskID: t.ID, Token: string(tok), Error: err.Error()})
		return
	}
	log.Debug("reminder delivered", logx.String("token", string(tok)))
}

// Handle applies a button press from owner. It never returns an error;
// failures are encoded in the Outcome and its Prompt.
func (e *Engine) Handle(ctx context.Context, owner todo.Owner, a Action) Outcome {
	n, ok := e.pending.Resolve(a.Token)
	if !ok || n.Owner != owner {
		return e.expired(owner, a)
	}

	switch a.Kind {
	case Complete:
		return e.complete(owner, a.Token)
	case Defer:
		if !e.pending.SetStatus(a.Token, pending.AwaitingSnooze) {
			return e.expired(owner, a)
		}
		e.publish(EventDeferred, Record{Owner: owner, TaskID: n.TaskID, Token: string(a.Token)})
		return Outcome{
			Result: ResultDeferred,
			Prompt: snoozePrompt(n.TaskText, a.Token, e.SnoozeChoices()),
			TaskID: n.TaskID,
		}
	case Snooze:
		return e.snoozeFor(owner, a)
	case Back:
		if !e.pending.SetStatus(a.Token, pending.Delivered) {
			return e.expired(owner, a)
		}
		name := ""
		if e.names != nil {
			name = e.names.DisplayName(owner)
		}
		return Outcome{Result: ResultBack, Prompt: reminderPrompt(name, n.TaskText, a.Token), TaskID: n.TaskID}
	default:
		return Outcome{Result: ResultInvalid, Prompt: Prompt{Text: textExpired}}
	}
}

func (e *Engine) complete(owner todo.Owner, tok pending.Token) Outcome {
	n, ok := e.pending.Take(tok)
	if !ok {
		return e.expired(owner, Action{Kind: Complete, Token: tok})
	}
	t, err := e.tasks.Delete(owner, todo.ByID(n.TaskID))
	if err != nil {
		e.log.Info("completed reminder for a task that is gone",
			logx.Int64("owner", int64(owner)), logx.Uint64("task_id", n.TaskID))
		e.publish(EventCompleteMissing, Record{Owner: owner, TaskID: n.TaskID, Token: string(tok)})
		return Outcome{Result: ResultTaskMissing, Prompt: Prompt{Text: textTaskMissing}, TaskID: n.TaskID}
	}
	e.publish(EventCompleted, Record{Owner: owner, TaskID: t.ID, Text: t.Text, Token: string(tok)})
	return Outcome{Result: ResultCompleted, Prompt: completedPrompt(t.Text), TaskID: t.ID}
}

func (e *Engine) snoozeFor(owner todo.Owner, a Action) Outcome {
	at, err := e.resolver.Resolve(when.In(a.Minutes), e.now())
	if err != nil {
		return Outcome{Result: ResultInvalid, Prompt: Prompt{Text: textBadSnooze}}
	}
	n, ok := e.pending.Take(a.Token)
	if !ok {
		return e.expired(owner, a)
	}
	e.sched.ScheduleAt(at, scheduler.Job{Owner: owner, TaskID: n.TaskID})
	e.log.Info("reminder snoozed",
		logx.Int64("owner", int64(owner)),
		logx.Uint64("task_id", n.TaskID),
		logx.Int("minutes", a.Minutes),
		logx.Time("fire_at", at),
	)
	e.publish(EventSnoozed, Record{Owner: owner, TaskID: n.TaskID, Token: string(a.Token), FireAt: at, Minutes: a.Minutes})
	return Outcome{Result: ResultSnoozed, Prompt: snoozedPrompt(a.Minutes, n.TaskText), TaskID: n.TaskID, FireAt: at}
}

func (e *Engine) expired(owner todo.Owner, a Action) Outcome {
	e.log.Debug("action on expired reminder", logx.Int64("owner", int64(owner)), logx.String("action", a.Kind.String()))
	e.publish(EventExpired, Record{Owner: owner, Token: string(a.Token)})
	return Outcome{Result: ResultExpired, Prompt: Prompt{Text: textExpired}}
}

// HandleData decodes raw callback data and applies it. Undecodable data never
// touches any state.
func (e *Engine) HandleData(ctx context.Context, owner todo.Owner, data string) Outcome {
	a, err := DecodeAction(data)
	if err != nil {
		e.log.Debug("undecodable reminder action", logx.Int64("owner", int64(owner)), logx.Err(err))
		text := textExpired
		if _, verb, _, ok := tgui.SplitData(data); ok && verb == Snooze.String() {
			text = textBadSnooze
		}
		return Outcome{Result: ResultInvalid, Prompt: Prompt{Text: text}}
	}
	return e.Handle(ctx, owner, a)
}
