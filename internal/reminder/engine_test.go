package reminder

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/eventbus"
	"remindbot/internal/pending"
	"remindbot/internal/task/scheduler"
	"remindbot/internal/todo"
	"remindbot/internal/when"
	logx "remindbot/pkg/logx"
)

type sent struct {
	owner  todo.Owner
	prompt Prompt
}

type fakeNotifier struct {
	mu   sync.Mutex
	sent []sent
	err  error
}

func (f *fakeNotifier) Send(_ context.Context, owner todo.Owner, p Prompt) (Delivery, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return Delivery{}, f.err
	}
	f.sent = append(f.sent, sent{owner: owner, prompt: p})
	return Delivery{ChatID: int64(owner), MessageID: len(f.sent)}, nil
}

func (f *fakeNotifier) last(t *testing.T) sent {
	t.Helper()
	f.mu.Lock()
	defer f.mu.Unlock()
	require.NotEmpty(t, f.sent)
	return f.sent[len(f.sent)-1]
}

type names map[todo.Owner]string

func (n names) DisplayName(o todo.Owner) string { return n[o] }

type harness struct {
	eng   *Engine
	store *todo.Store
	reg   *pending.Registry
	sched *scheduler.Service
	note  *fakeNotifier
	bus   eventbus.Bus
	now   time.Time
}

func newHarness(t *testing.T) *harness {
	t.Helper()
	loc, err := when.LoadLocation("Asia/Jakarta")
	require.NoError(t, err)
	h := &harness{
		store: todo.NewStore(),
		reg:   pending.NewRegistry(),
		sched: scheduler.New(scheduler.Config{}, nil, logx.Nop()),
		note:  &fakeNotifier{},
		bus:   eventbus.New(),
		now:   time.Date(2026, 4, 6, 9, 0, 0, 0, loc),
	}
	h.eng = NewEngine(Deps{
		Tasks:     h.store,
		Pending:   h.reg,
		Scheduler: h.sched,
		Resolver:  when.NewResolver(loc),
		Notifier:  h.note,
		Names:     names{1: "Ana"},
		Bus:       h.bus,
		Log:       logx.Nop(),
	}, nil)
	h.eng.now = func() time.Time { return h.now }
	return h
}

// advance moves the clock and fires everything due, like the timing loop.
func (h *harness) advance(d time.Duration) int {
	h.now = h.now.Add(d)
	due := h.sched.Poll(h.now)
	for _, j := range due {
		h.eng.Fire(context.Background(), j)
	}
	return len(due)
}

func tokenOf(t *testing.T, p Prompt) pending.Token {
	t.Helper()
	require.NotEmpty(t, p.Buttons)
	a, err := DecodeAction(p.Buttons[0][0].Data)
	require.NoError(t, err)
	return a.Token
}

func TestCompleteFlow(t *testing.T) {
	h := newHarness(t)
	_, err := h.eng.Add(1, "Buy milk")
	require.NoError(t, err)
	_, err = h.eng.Add(1, "Call mom")
	require.NoError(t, err)

	task, at, err := h.eng.Remind(1, 1, when.In(10))
	require.NoError(t, err)
	assert.Equal(t, "Buy milk", task.Text)
	assert.True(t, at.Equal(h.now.Add(10*time.Minute)))

	assert.Zero(t, h.advance(9*time.Minute))
	require.Equal(t, 1, h.advance(time.Minute))

	msg := h.note.last(t)
	assert.Equal(t, todo.Owner(1), msg.owner)
	assert.Equal(t, "⏰ Reminder, Ana! You need to do:\n👉 Buy milk", msg.prompt.Text)
	require.Len(t, msg.prompt.Buttons, 1)
	assert.Equal(t, "✅ Yes", msg.prompt.Buttons[0][0].Label)
	assert.Equal(t, "❌ No", msg.prompt.Buttons[0][1].Label)

	tok := tokenOf(t, msg.prompt)
	out := h.eng.Handle(context.Background(), 1, Action{Kind: Complete, Token: tok})
	assert.Equal(t, ResultCompleted, out.Result)
	assert.Equal(t, "🎉 Great! Task completed and removed:\n👉 Buy milk", out.Prompt.Text)

	list := h.store.List(1)
	require.Len(t, list, 1)
	assert.Equal(t, "Call mom", list[0].Text)

	again := h.eng.Handle(context.Background(), 1, Action{Kind: Complete, Token: tok})
	assert.Equal(t, ResultExpired, again.Result)
	assert.ErrorIs(t, again.Err(), ErrExpired)
	assert.Len(t, h.store.List(1), 1)
}

func TestCompleteKeepsOrderOfRemainingTasks(t *testing.T) {
	h := newHarness(t)
	for _, text := range []string{"a", "b", "c", "d", "e"} {
		_, err := h.eng.Add(1, text)
		require.NoError(t, err)
	}
	_, _, err := h.eng.Remind(1, 3, when.In(1))
	require.NoError(t, err)
	require.Equal(t, 1, h.advance(time.Minute))

	out := h.eng.Handle(context.Background(), 1, Action{Kind: Complete, Token: tokenOf(t, h.note.last(t).prompt)})
	require.Equal(t, ResultCompleted, out.Result)

	var texts []string
	for _, task := range h.store.List(1) {
		texts = append(texts, task.Text)
	}
	assert.Equal(t, []string{"a", "b", "d", "e"}, texts)
}

func TestDeferSnoozeFlow(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "Stretch")
	_, _, err := h.eng.Remind(1, 1, when.In(1))
	require.NoError(t, err)
	require.Equal(t, 1, h.advance(time.Minute))
	tok := tokenOf(t, h.note.last(t).prompt)

	out := h.eng.Handle(context.Background(), 1, Action{Kind: Defer, Token: tok})
	require.Equal(t, ResultDeferred, out.Result)
	assert.Equal(t, "⏳ Noted. When should I remind you again for:\n👉 Stretch", out.Prompt.Text)
	require.Len(t, out.Prompt.Buttons, 2)
	labels := []string{}
	for _, b := range out.Prompt.Buttons[0] {
		labels = append(labels, b.Label)
	}
	assert.Equal(t, []string{"5 min", "10 min", "30 min"}, labels)
	n, ok := h.reg.Resolve(tok)
	require.True(t, ok)
	assert.Equal(t, pending.AwaitingSnooze, n.Status)

	snooze, err := DecodeAction(out.Prompt.Buttons[0][1].Data)
	require.NoError(t, err)
	assert.Equal(t, 10, snooze.Minutes)

	before := h.sched.Snapshot().Pending
	res := h.eng.Handle(context.Background(), 1, snooze)
	require.Equal(t, ResultSnoozed, res.Result)
	assert.Equal(t, "🔔 Okay! I'll remind you again in 10 minutes:\n👉 Stretch", res.Prompt.Text)
	assert.Equal(t, before+1, h.sched.Snapshot().Pending, "exactly one new job")
	assert.True(t, h.sched.Snapshot().Next.Equal(h.now.Add(10*time.Minute)))
	_, ok = h.reg.Resolve(tok)
	assert.False(t, ok)

	// Same button again: the old token is gone, nothing new is scheduled.
	res = h.eng.Handle(context.Background(), 1, snooze)
	assert.Equal(t, ResultExpired, res.Result)
	assert.Equal(t, before+1, h.sched.Snapshot().Pending)

	require.Equal(t, 1, h.advance(10*time.Minute))
	assert.NotEqual(t, tok, tokenOf(t, h.note.last(t).prompt))
	assert.Len(t, h.store.List(1), 1, "snooze does not touch the task")
}

func TestBackRestoresPrompt(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "Water plants")
	_, _, _ = h.eng.Remind(1, 1, when.In(5))
	h.advance(5 * time.Minute)
	first := h.note.last(t).prompt
	tok := tokenOf(t, first)

	h.eng.Handle(context.Background(), 1, Action{Kind: Defer, Token: tok})
	out := h.eng.Handle(context.Background(), 1, Action{Kind: Back, Token: tok})
	require.Equal(t, ResultBack, out.Result)
	assert.Equal(t, first, out.Prompt)
	n, _ := h.reg.Resolve(tok)
	assert.Equal(t, pending.Delivered, n.Status)
	assert.Zero(t, h.sched.Snapshot().Pending)
}

func TestInvalidSnoozeLeavesStateUntouched(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "x")
	_, _, _ = h.eng.Remind(1, 1, when.In(5))
	h.advance(5 * time.Minute)
	tok := tokenOf(t, h.note.last(t).prompt)
	h.eng.Handle(context.Background(), 1, Action{Kind: Defer, Token: tok})

	for _, m := range []int{0, -3, when.MaxRelativeMinutes + 1} {
		out := h.eng.Handle(context.Background(), 1, Action{Kind: Snooze, Token: tok, Minutes: m})
		assert.Equal(t, ResultInvalid, out.Result)
		assert.ErrorIs(t, out.Err(), ErrInvalidAction)
	}
	n, ok := h.reg.Resolve(tok)
	require.True(t, ok)
	assert.Equal(t, pending.AwaitingSnooze, n.Status)
	assert.Zero(t, h.sched.Snapshot().Pending)
}

func TestUnknownTokenNeverMutates(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "keep me")
	tok := pending.Token(strings.Repeat("ab", 16))
	for _, k := range []Kind{Complete, Defer, Snooze, Back} {
		out := h.eng.Handle(context.Background(), 1, Action{Kind: k, Token: tok, Minutes: 5})
		assert.Equal(t, ResultExpired, out.Result, "kind %s", k)
		assert.Equal(t, textExpired, out.Prompt.Text)
	}
	assert.Len(t, h.store.List(1), 1)
	assert.Zero(t, h.sched.Snapshot().Pending)
	assert.Zero(t, h.reg.Len())
}

func TestOtherOwnerCannotUseToken(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "mine")
	_, _, _ = h.eng.Remind(1, 1, when.In(1))
	h.advance(time.Minute)
	tok := tokenOf(t, h.note.last(t).prompt)

	out := h.eng.Handle(context.Background(), 2, Action{Kind: Complete, Token: tok})
	assert.Equal(t, ResultExpired, out.Result)
	assert.Len(t, h.store.List(1), 1)
	_, ok := h.reg.Resolve(tok)
	assert.True(t, ok)
}

func TestFireOnDeletedTaskReportsNotFound(t *testing.T) {
	h := newHarness(t)
	events, unsub := h.bus.Subscribe(16)
	defer unsub()

	_, _ = h.eng.Add(1, "gone soon")
	_, _, _ = h.eng.Remind(1, 1, when.In(2))
	_, err := h.eng.Delete(1, 1)
	require.NoError(t, err)

	require.Equal(t, 1, h.advance(2*time.Minute))
	require.Len(t, h.note.sent, 1)
	msg := h.note.sent[0]
	assert.Equal(t, todo.Owner(1), msg.owner)
	assert.Equal(t, textTaskMissing, msg.prompt.Text)
	assert.False(t, msg.prompt.HasButtons())
	assert.Zero(t, h.reg.Len())

	var types []string
	for len(events) > 0 {
		types = append(types, (<-events).Type)
	}
	assert.Equal(t, []string{EventTaskAdded, EventScheduled, EventTaskDeleted, EventOrphaned}, types)
}

func TestRemindFollowsTaskNotPosition(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "first")
	_, _ = h.eng.Add(1, "second")
	_, _, _ = h.eng.Remind(1, 2, when.In(3))
	_, _ = h.eng.Delete(1, 1)

	h.advance(3 * time.Minute)
	assert.Contains(t, h.note.last(t).prompt.Text, "second")
}

func TestCompleteAfterManualDelete(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "temp")
	_, _, _ = h.eng.Remind(1, 1, when.In(1))
	h.advance(time.Minute)
	tok := tokenOf(t, h.note.last(t).prompt)
	_, _ = h.eng.Delete(1, 1)

	out := h.eng.Handle(context.Background(), 1, Action{Kind: Complete, Token: tok})
	assert.Equal(t, ResultTaskMissing, out.Result)
	assert.Equal(t, textTaskMissing, out.Prompt.Text)
	assert.Zero(t, h.reg.Len())
}

func TestDeliveryFailureKeepsToken(t *testing.T) {
	h := newHarness(t)
	h.note.err = errors.New("chat not found")
	events, unsub := h.bus.Subscribe(16)
	defer unsub()

	_, _ = h.eng.Add(1, "x")
	_, _, _ = h.eng.Remind(1, 1, when.In(1))
	h.advance(time.Minute)

	assert.Equal(t, 1, h.reg.Len())
	var last string
	for len(events) > 0 {
		last = (<-events).Type
	}
	assert.Equal(t, EventDeliveryFailed, last)
}

func TestRemindErrors(t *testing.T) {
	h := newHarness(t)
	_, _, err := h.eng.Remind(1, 1, when.In(5))
	assert.ErrorIs(t, err, todo.ErrNotFound)

	_, _ = h.eng.Add(1, "x")
	_, _, err = h.eng.Remind(1, 1, when.Spec{})
	assert.ErrorIs(t, err, when.ErrParse)
	assert.Zero(t, h.sched.Snapshot().Pending)
}

func TestOverlappingRemindersAreIndependent(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "dup")
	_, _, _ = h.eng.Remind(1, 1, when.In(1))
	_, _, _ = h.eng.Remind(1, 1, when.In(1))
	require.Equal(t, 2, h.advance(time.Minute))
	require.Len(t, h.note.sent, 2)

	a := tokenOf(t, h.note.sent[0].prompt)
	b := tokenOf(t, h.note.sent[1].prompt)
	require.NotEqual(t, a, b)

	assert.Equal(t, ResultCompleted, h.eng.Handle(context.Background(), 1, Action{Kind: Complete, Token: a}).Result)
	assert.Equal(t, ResultTaskMissing, h.eng.Handle(context.Background(), 1, Action{Kind: Complete, Token: b}).Result)
}

func TestConcurrentCompleteSingleWinner(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "race")
	_, _, _ = h.eng.Remind(1, 1, when.In(1))
	h.advance(time.Minute)
	tok := tokenOf(t, h.note.last(t).prompt)

	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		results = map[Result]int{}
	)
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			r := h.eng.Handle(context.Background(), 1, Action{Kind: Complete, Token: tok}).Result
			mu.Lock()
			results[r]++
			mu.Unlock()
		}()
	}
	wg.Wait()
	assert.Equal(t, 1, results[ResultCompleted])
	assert.Equal(t, 9, results[ResultExpired])
}

func TestSetSnoozeChoices(t *testing.T) {
	h := newHarness(t)
	h.eng.SetSnoozeChoices([]int{15, 0, 15, -1, 60})
	assert.Equal(t, []int{15, 60}, h.eng.SnoozeChoices())
	h.eng.SetSnoozeChoices(nil)
	assert.Equal(t, DefaultSnoozeChoices, h.eng.SnoozeChoices())
}

func TestGreetingFallsBackWhenNameUnknown(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(7, "x")
	_, _, _ = h.eng.Remind(7, 1, when.In(1))
	h.advance(time.Minute)
	assert.True(t, strings.HasPrefix(h.note.last(t).prompt.Text, "⏰ Reminder, there!"))
}

func TestHandleDataRejectsGarbage(t *testing.T) {
	h := newHarness(t)
	_, _ = h.eng.Add(1, "x")
	_, _, _ = h.eng.Remind(1, 1, when.In(1))
	h.advance(time.Minute)
	tok := tokenOf(t, h.note.last(t).prompt)

	out := h.eng.HandleData(context.Background(), 1, "rem:snooze:"+string(tok)+":abc")
	assert.Equal(t, ResultInvalid, out.Result)
	assert.Equal(t, textBadSnooze, out.Prompt.Text)

	out = h.eng.HandleData(context.Background(), 1, "rem:done:nope")
	assert.Equal(t, ResultInvalid, out.Result)
	assert.Equal(t, textExpired, out.Prompt.Text)

	assert.Equal(t, 1, h.reg.Len())
	assert.Len(t, h.store.List(1), 1)

	out = h.eng.HandleData(context.Background(), 1, Action{Kind: Complete, Token: tok}.Data())
	assert.Equal(t, ResultCompleted, out.Result)
}
