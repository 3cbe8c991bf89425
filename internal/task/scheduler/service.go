package scheduler

import (
	"container/heap"
	"context"
	"errors"
	"fmt"
	"runtime/debug"
	"sync"
	"sync/atomic"
	"time"

	rtsup "remindbot/internal/runtime/supervisor"
	"remindbot/internal/todo"
	logx "remindbot/pkg/logx"
)

var ErrAlreadyRunning = errors.New("scheduler already running")

// queueWarnEvery throttles the "delivery queue full" warning.
const queueWarnEvery = time.Minute

type Service struct {
	mu   sync.Mutex
	jobs jobHeap
	seq  uint64

	fired   atomic.Uint64
	running atomic.Bool

	// wake has capacity 1; a pending signal is enough to re-evaluate the head.
	wake chan struct{}

	cfg     Config
	handler Handler
	log     logx.Logger
	now     func() time.Time

	lastQueueWarn time.Time
}

func New(cfg Config, handler Handler, log logx.Logger) *Service {
	if log.IsZero() {
		log = logx.Nop()
	}
	if handler == nil {
		handler = func(context.Context, Job) {}
	}
	return &Service{
		wake:    make(chan struct{}, 1),
		cfg:     cfg.withDefaults(),
		handler: handler,
		log:     log.With(logx.String("comp", "scheduler")),
		now:     time.Now,
	}
}

// ScheduleAt registers job to fire at at. Owner and TaskID are taken from
// job; FireAt and Seq are overwritten. An instant in the past fires on the
// next poll.
func (s *Service) ScheduleAt(at time.Time, job Job) Handle {
	s.mu.Lock()
	s.seq++
	job.FireAt = at
	job.Seq = s.seq
	heap.Push(&s.jobs, job)
	head := s.jobs[0].Seq == job.Seq
	s.mu.Unlock()

	s.log.Debug("job scheduled",
		logx.Int64("owner", int64(job.Owner)),
		logx.Uint64("task_id", job.TaskID),
		logx.Uint64("seq", job.Seq),
		logx.Time("fire_at", at),
	)
	if head {
		s.signal()
	}
	return Handle(job.Seq)
}

// Poll removes and returns every job with FireAt <= now, earliest first.
// A job is returned by exactly one Poll call.
func (s *Service) Poll(now time.Time) []Job {
	s.mu.Lock()
	defer s.mu.Unlock()
	var due []Job
	for len(s.jobs) > 0 && !s.jobs[0].FireAt.After(now) {
		due = append(due, heap.Pop(&s.jobs).(Job))
	}
	return due
}

// Snapshot reports queue depth, the next fire instant and the number of jobs
// handed to a worker so far.
func (s *Service) Snapshot() Stats {
	s.mu.Lock()
	st := Stats{Pending: len(s.jobs)}
	if len(s.jobs) > 0 {
		st.Next = s.jobs[0].FireAt
	}
	s.mu.Unlock()
	st.Fired = s.fired.Load()
	st.Running = s.running.Load()
	return st
}

// PendingFor counts the owner's jobs that have not fired yet.
func (s *Service) PendingFor(owner todo.Owner) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, j := range s.jobs {
		if j.Owner == owner {
			n++
		}
	}
	return n
}

// Run drives the timing loop until ctx is cancelled. Delivery workers run
// under their own supervisor and are stopped before Run returns. Jobs still
// in the heap at shutdown are dropped with the process.
func (s *Service) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer s.running.Store(false)

	queue := make(chan Job, s.cfg.QueueSize)
	sup := rtsup.NewSupervisor(ctx, rtsup.WithLogger(s.log))
	for i := 0; i < s.cfg.Workers; i++ {
		sup.GoRestart(fmt.Sprintf("scheduler.worker.%d", i), func(c context.Context) error {
			return s.worker(c, queue)
		}, rtsup.WithRestartBackoff(100*time.Millisecond, 5*time.Second))
	}
	defer func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := sup.Stop(stopCtx); err != nil && !errors.Is(err, context.Canceled) {
			s.log.Warn("delivery workers did not stop cleanly", logx.Err(err))
		}
	}()

	s.log.Info("timing loop started", logx.Int("workers", s.cfg.Workers))
	defer s.log.Info("timing loop stopped")

	timer := time.NewTimer(s.cfg.MaxSleep)
	defer timer.Stop()

	for {
		for _, j := range s.Poll(s.now()) {
			if !s.handoff(ctx, queue, j) {
				return nil
			}
		}

		timer.Reset(s.sleepFor(s.now()))
		select {
		case <-ctx.Done():
			return nil
		case <-s.wake:
		case <-timer.C:
		}
	}
}

func (s *Service) handoff(ctx context.Context, queue chan<- Job, j Job) bool {
	select {
	case queue <- j:
		return true
	default:
	}
	s.warnQueueFull(len(queue))
	select {
	case queue <- j:
		return true
	case <-ctx.Done():
		s.log.Warn("job dropped at shutdown", logx.Int64("owner", int64(j.Owner)), logx.Uint64("task_id", j.TaskID))
		return false
	}
}

func (s *Service) worker(ctx context.Context, queue <-chan Job) error {
	for {
		select {
		case <-ctx.Done():
			return nil
		case j := <-queue:
			s.deliver(ctx, j)
		}
	}
}

// deliver runs the handler for one job. A panicking handler costs only that
// job; the worker keeps going.
func (s *Service) deliver(ctx context.Context, j Job) {
	s.fired.Add(1)
	defer func() {
		if r := recover(); r != nil {
			s.log.Error("delivery handler panicked",
				logx.Int64("owner", int64(j.Owner)),
				logx.Uint64("task_id", j.TaskID),
				logx.Any("panic", r),
				logx.String("stack", string(debug.Stack())),
			)
		}
	}()
	if lag := s.now().Sub(j.FireAt); lag > time.Second {
		s.log.Debug("job fired late", logx.Uint64("seq", j.Seq), logx.Duration("lag", lag))
	}
	s.handler(ctx, j)
}

func (s *Service) sleepFor(now time.Time) time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if len(s.jobs) == 0 {
		return s.cfg.MaxSleep
	}
	d := s.jobs[0].FireAt.Sub(now)
	if d < 0 {
		return 0
	}
	return min(d, s.cfg.MaxSleep)
}

func (s *Service) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *Service) warnQueueFull(depth int) {
	s.mu.Lock()
	now := s.now()
	if !s.lastQueueWarn.IsZero() && now.Sub(s.lastQueueWarn) < queueWarnEvery {
		s.mu.Unlock()
		return
	}
	s.lastQueueWarn = now
	s.mu.Unlock()
	s.log.Warn("delivery queue full; timing loop waiting on workers", logx.Int("depth", depth))
}
