package notifier

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/time/rate"
	tele "gopkg.in/telebot.v4"

	"remindbot/internal/reminder"
	"remindbot/internal/todo"
	kit "remindbot/internal/transport"
	logx "remindbot/pkg/logx"
	"remindbot/pkg/tgui"
)

var ErrNoAdapter = errors.New("notifier has no transport adapter")

// Service implements reminder.Notifier over a kit.Adapter. It is safe for
// concurrent use.
type Service struct {
	mu      sync.Mutex
	cfg     Config
	limiter *rate.Limiter

	adapter kit.Adapter
	log     logx.Logger

	sent   atomic.Uint64
	failed atomic.Uint64
}

var _ reminder.Notifier = (*Service)(nil)

func New(cfg Config, adapter kit.Adapter, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	s := &Service{adapter: adapter, log: log.With(logx.String("comp", "notifier"))}
	s.Apply(cfg)
	return s
}

// Apply swaps rate and timeout settings. A new limiter starts with a full
// bucket.
func (s *Service) Apply(cfg Config) {
	cfg = cfg.withDefaults()
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.limiter != nil && s.cfg.RatePerSec == cfg.RatePerSec {
		s.cfg = cfg
		return
	}
	s.cfg = cfg
	// Burst equals one second of traffic.
	s.limiter = rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.RatePerSec)
}

func (s *Service) Counters() Counters {
	return Counters{Sent: s.sent.Load(), Failed: s.failed.Load()}
}

// Send posts p to the owner's private chat. Telegram private chat ids equal
// the user id.
func (s *Service) Send(ctx context.Context, owner todo.Owner, p reminder.Prompt) (reminder.Delivery, error) {
	var ref kit.MessageRef
	err := s.call(ctx, func(c context.Context, ad kit.Adapter) error {
		var err error
		ref, err = Render(p).Send(c, ad, kit.ChatTarget{ChatID: int64(owner)})
		return err
	})
	if err != nil {
		return reminder.Delivery{}, fmt.Errorf("send to %d: %w", owner, err)
	}
	return reminder.Delivery{ChatID: ref.ChatID, MessageID: ref.MessageID}, nil
}

// Edit replaces an existing message, typically the one a button was pressed
// on.
func (s *Service) Edit(ctx context.Context, ref kit.MessageRef, p reminder.Prompt) error {
	err := s.call(ctx, func(c context.Context, ad kit.Adapter) error {
		return Render(p).Edit(c, ad, ref)
	})
	if err != nil {
		return fmt.Errorf("edit %d/%d: %w", ref.ChatID, ref.MessageID, err)
	}
	return nil
}

// Reply sends a plain command reply.
func (s *Service) Reply(ctx context.Context, chatID int64, text string) error {
	return s.call(ctx, func(c context.Context, ad kit.Adapter) error {
		_, err := Render(reminder.Prompt{Text: text}).Send(c, ad, kit.ChatTarget{ChatID: chatID})
		return err
	})
}

func (s *Service) call(ctx context.Context, fn func(context.Context, kit.Adapter) error) error {
	s.mu.Lock()
	lim := s.limiter
	timeout := s.cfg.SendTimeout
	ad := s.adapter
	s.mu.Unlock()

	if ad == nil {
		return ErrNoAdapter
	}
	if ctx == nil {
		ctx = context.Background()
	}
	if err := lim.Wait(ctx); err != nil {
		return err
	}

	callCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()
	start := time.Now()
	err := fn(callCtx, ad)
	if err != nil {
		s.failed.Add(1)
		s.log.Debug("transport call failed", logx.Duration("took", time.Since(start)), logx.Err(err))
		return err
	}
	s.sent.Add(1)
	return nil
}

// Render turns a prompt into an HTML tgui message. Prompt text is escaped;
// buttons become an inline keyboard, one row per prompt row.
func Render(p reminder.Prompt) tgui.Message {
	b := tgui.New().Line(p.Text)
	if p.HasButtons() {
		kb := tgui.NewInline()
		for _, row := range p.Buttons {
			btns := make([]tele.Btn, 0, len(row))
			for _, btn := range row {
				btns = append(btns, tgui.Btn(btn.Label, btn.Data))
			}
			kb.Row(btns...)
		}
		b.Inline(kb)
	}
	return b.Build()
}
