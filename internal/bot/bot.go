// Package bot holds the chat commands and the reminder button handler.
package bot

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"remindbot/internal/pending"
	"remindbot/internal/reminder"
	"remindbot/internal/task/scheduler"
	"remindbot/internal/todo"
	kit "remindbot/internal/transport"
	"remindbot/internal/transport/telegram/router"
	"remindbot/internal/when"
	logx "remindbot/pkg/logx"
)

const textCommandsOnly = "🤖 I only understand commands. Try /help"

// Editor rewrites the message a button was pressed on.
type Editor interface {
	Edit(ctx context.Context, ref kit.MessageRef, p reminder.Prompt) error
}

// Stats feeds /status.
type Stats interface {
	Snapshot() scheduler.Stats
	PendingFor(owner todo.Owner) int
}

type Handlers struct {
	eng     *reminder.Engine
	pending *pending.Registry
	stats   Stats
	editor  Editor
	names   reminder.NameSource
	log     logx.Logger
}

func New(eng *reminder.Engine, reg *pending.Registry, stats Stats, editor Editor, names reminder.NameSource, log logx.Logger) *Handlers {
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Handlers{
		eng:     eng,
		pending: reg,
		stats:   stats,
		editor:  editor,
		names:   names,
		log:     log.With(logx.String("comp", "bot")),
	}
}

// Routes returns the command table and the reminder button route.
func (h *Handlers) Routes() ([]router.Route, []router.CallbackRoute) {
	routes := []router.Route{
		{Verb: "help", Description: "Show usage", Handle: h.start},
		{Verb: "start", Hidden: true, Handle: h.start},
		{Verb: "add", Description: "Add a new task", Usage: "/add <task>", Handle: h.add},
		{Verb: "list", Description: "Show your tasks", Handle: h.list},
		{Verb: "delete", Aliases: []string{"del"}, Description: "Delete a task", Usage: "/delete <task_number>", Handle: h.delete},
		{Verb: "remind", Description: "Set a reminder", Usage: "/remind <task_number> in <minutes> | at <HH:MM>", Handle: h.remind},
		{Verb: "status", Description: "Your tasks and pending reminders", Handle: h.status},
	}
	cbs := []router.CallbackRoute{
		{Scope: reminder.Scope, Timeout: 10 * time.Second, Handle: h.button},
	}
	return routes, cbs
}

// Fallback answers plain text that is not a command.
func (h *Handlers) Fallback(ctx context.Context, req *router.Request) error {
	return req.Reply(ctx, textCommandsOnly)
}

func (h *Handlers) zoneLabel() string {
	loc := h.eng.Location()
	_, off := time.Now().In(loc).Zone()
	sign := "+"
	if off < 0 {
		sign, off = "-", -off
	}
	label := fmt.Sprintf("UTC%s%d", sign, off/3600)
	if m := (off % 3600) / 60; m != 0 {
		label += fmt.Sprintf(":%02d", m)
	}
	return label
}

func (h *Handlers) start(ctx context.Context, req *router.Request) error {
	name := ""
	if h.names != nil {
		name = h.names.DisplayName(req.Owner)
	}
	if name == "" {
		name = "there"
	}
	zone := h.zoneLabel()
	text := fmt.Sprintf("Hello %s! 👋\n\n", name) +
		"I'm your ToDo & Reminder Bot.\n\n" +
		"Commands:\n" +
		"➕ /add <task> - Add new task\n" +
		"📋 /list - Show your tasks\n" +
		"🗑️ /delete <task_number> - Delete a task\n" +
		"⏰ /remind <task_number> in <minutes>\n" +
		"⏰ /remind <task_number> at <HH:MM> (" + zone + ")\n" +
		"📊 /status - Pending reminders"
	return req.Reply(ctx, text)
}

func (h *Handlers) add(ctx context.Context, req *router.Request) error {
	t, err := h.eng.Add(req.Owner, req.Command.Text)
	switch {
	case err == nil:
		return req.Reply(ctx, "✅ Task added: "+t.Text)
	case errors.Is(err, todo.ErrTooLong):
		return req.Reply(ctx, fmt.Sprintf("⚠️ Task is too long (max %d characters).", todo.MaxTextLen))
	case errors.Is(err, todo.ErrValidation):
		return req.Reply(ctx, "⚠️ Please provide a task. Example: /add Buy milk")
	default:
		return err
	}
}

func (h *Handlers) list(ctx context.Context, req *router.Request) error {
	tasks := h.eng.List(req.Owner)
	if len(tasks) == 0 {
		return req.Reply(ctx, "📭 Your todo list is empty.")
	}
	var b strings.Builder
	b.WriteString("📋 Your Tasks:\n")
	for i, t := range tasks {
		fmt.Fprintf(&b, "%d. %s\n", i+1, t.Text)
	}
	return req.Reply(ctx, strings.TrimRight(b.String(), "\n"))
}

func (h *Handlers) delete(ctx context.Context, req *router.Request) error {
	args := req.Command.Args
	if len(args) != 1 {
		return req.Reply(ctx, "⚠️ Usage: /delete <task_number>")
	}
	pos, err := strconv.Atoi(args[0])
	if err != nil {
		return req.Reply(ctx, "⚠️ Invalid task number.")
	}
	t, err := h.eng.Delete(req.Owner, pos)
	if errors.Is(err, todo.ErrNotFound) {
		return req.Reply(ctx, "⚠️ Invalid task number.")
	}
	if err != nil {
		return err
	}
	return req.Reply(ctx, "🗑️ Task deleted: "+t.Text)
}

func (h *Handlers) remind(ctx context.Context, req *router.Request) error {
	if len(h.eng.List(req.Owner)) == 0 {
		return req.Reply(ctx, "⚠️ You don't have any tasks yet.")
	}
	args := req.Command.Args
	if len(args) < 3 {
		return req.Reply(ctx, "⚠️ Usage:\n/remind <task_number> in <minutes>\n/remind <task_number> at <HH:MM>\n"+
			"Example: /remind 1 in 10 or /remind 2 at 14:30")
	}
	pos, err := strconv.Atoi(args[0])
	if err != nil {
		return req.Reply(ctx, "⚠️ Invalid task number.")
	}

	mode := strings.ToLower(args[1])
	spec, err := when.Parse(mode, args[2])
	if err != nil {
		switch mode {
		case "in":
			return req.Reply(ctx, "⚠️ Example: /remind 1 in 10 (10 is minutes).")
		case "at":
			return req.Reply(ctx, "⚠️ Example: /remind 1 at 14:30 (HH:MM in "+h.zoneLabel()+").")
		default:
			return req.Reply(ctx, "⚠️ Use in <minutes> or at <HH:MM>.")
		}
	}

	t, at, err := h.eng.Remind(req.Owner, pos, spec)
	switch {
	case errors.Is(err, todo.ErrNotFound):
		return req.Reply(ctx, "⚠️ Invalid task number.")
	case err != nil:
		return err
	}
	return req.Reply(ctx, fmt.Sprintf("⏰ Reminder set for task: %s\nScheduled at: %s",
		t.Text, at.In(h.eng.Location()).Format("2006-01-02 15:04 MST")))
}

func (h *Handlers) status(ctx context.Context, req *router.Request) error {
	st := h.stats.Snapshot()
	var b strings.Builder
	b.WriteString("📊 Status\n")
	fmt.Fprintf(&b, "Tasks: %d\n", len(h.eng.List(req.Owner)))
	fmt.Fprintf(&b, "Your scheduled reminders: %d\n", h.stats.PendingFor(req.Owner))
	fmt.Fprintf(&b, "Awaiting your answer: %d\n", h.pending.CountFor(req.Owner))
	fmt.Fprintf(&b, "All scheduled reminders: %d", st.Pending)
	if !st.Next.IsZero() {
		fmt.Fprintf(&b, "\nNext reminder: %s", st.Next.In(h.eng.Location()).Format("2006-01-02 15:04 MST"))
	}
	return req.Reply(ctx, b.String())
}

// button handles every "rem:" inline button and replaces the pressed message
// with the outcome.
func (h *Handlers) button(ctx context.Context, req *router.Request) error {
	out := h.eng.HandleData(ctx, req.Owner, req.Callback.Data)
	req.Log.Debug("reminder action",
		logx.String("result", out.Result.String()),
		logx.Uint64("task_id", out.TaskID),
		logx.Err(out.Err()),
	)
	if err := h.editor.Edit(ctx, req.MessageRef(), out.Prompt); err != nil {
		return fmt.Errorf("update reminder message: %w", err)
	}
	return nil
}
