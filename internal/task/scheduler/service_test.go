package scheduler

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"remindbot/internal/todo"
	logx "remindbot/pkg/logx"
)

func TestPollReturnsDueJobsInOrder(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	base := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)

	s.ScheduleAt(base.Add(3*time.Minute), Job{Owner: 1, TaskID: 3})
	s.ScheduleAt(base.Add(1*time.Minute), Job{Owner: 1, TaskID: 1})
	s.ScheduleAt(base.Add(2*time.Minute), Job{Owner: 2, TaskID: 2})
	s.ScheduleAt(base.Add(10*time.Minute), Job{Owner: 1, TaskID: 4})

	assert.Empty(t, s.Poll(base))

	due := s.Poll(base.Add(3 * time.Minute))
	require.Len(t, due, 3)
	assert.Equal(t, []uint64{1, 2, 3}, []uint64{due[0].TaskID, due[1].TaskID, due[2].TaskID})

	assert.Empty(t, s.Poll(base.Add(3*time.Minute)), "a job is handed out once")
	assert.Equal(t, 1, s.Snapshot().Pending)
}

func TestEqualFireTimesKeepInsertionOrder(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	at := time.Date(2026, 5, 1, 12, 0, 0, 0, time.UTC)
	for i := uint64(1); i <= 50; i++ {
		s.ScheduleAt(at, Job{Owner: 1, TaskID: i})
	}
	due := s.Poll(at)
	require.Len(t, due, 50)
	for i, j := range due {
		assert.Equal(t, uint64(i+1), j.TaskID)
	}
}

func TestPastInstantFiresOnNextPoll(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	now := time.Now()
	h := s.ScheduleAt(now.Add(-time.Hour), Job{Owner: 9, TaskID: 1})
	assert.NotZero(t, h)
	due := s.Poll(now)
	require.Len(t, due, 1)
	assert.Equal(t, todo.Owner(9), due[0].Owner)
}

func TestConcurrentPollsNeverDuplicate(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	at := time.Now().Add(-time.Second)
	const n = 1000
	for i := 0; i < n; i++ {
		s.ScheduleAt(at, Job{Owner: 1, TaskID: uint64(i + 1)})
	}

	var (
		mu   sync.Mutex
		seen = map[uint64]int{}
		wg   sync.WaitGroup
	)
	for w := 0; w < 8; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for k := 0; k < 20; k++ {
				for _, j := range s.Poll(time.Now()) {
					mu.Lock()
					seen[j.Seq]++
					mu.Unlock()
				}
			}
		}()
	}
	wg.Wait()

	require.Len(t, seen, n)
	for seq, c := range seen {
		require.Equal(t, 1, c, "seq %d", seq)
	}
}

func TestSnapshotAndPendingFor(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	assert.Equal(t, Stats{}, s.Snapshot())

	first := time.Date(2026, 5, 1, 8, 0, 0, 0, time.UTC)
	s.ScheduleAt(first.Add(time.Hour), Job{Owner: 1, TaskID: 1})
	s.ScheduleAt(first, Job{Owner: 2, TaskID: 1})
	s.ScheduleAt(first.Add(2*time.Hour), Job{Owner: 1, TaskID: 2})

	st := s.Snapshot()
	assert.Equal(t, 3, st.Pending)
	assert.True(t, st.Next.Equal(first))
	assert.Equal(t, 2, s.PendingFor(1))
	assert.Equal(t, 1, s.PendingFor(2))
	assert.Zero(t, s.PendingFor(3))
}

func TestRunDeliversEachJobOnce(t *testing.T) {
	var (
		mu  sync.Mutex
		got []uint64
	)
	done := make(chan struct{})
	s := New(Config{Workers: 1}, func(_ context.Context, j Job) {
		mu.Lock()
		got = append(got, j.TaskID)
		if len(got) == 3 {
			close(done)
		}
		mu.Unlock()
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	errCh := make(chan error, 1)
	go func() { errCh <- s.Run(ctx) }()

	now := time.Now()
	s.ScheduleAt(now.Add(60*time.Millisecond), Job{Owner: 1, TaskID: 2})
	s.ScheduleAt(now.Add(-time.Second), Job{Owner: 1, TaskID: 1})
	s.ScheduleAt(now.Add(120*time.Millisecond), Job{Owner: 1, TaskID: 3})

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("jobs were not delivered")
	}

	mu.Lock()
	assert.Equal(t, []uint64{1, 2, 3}, got)
	mu.Unlock()
	assert.Equal(t, uint64(3), s.Snapshot().Fired)
	assert.Zero(t, s.Snapshot().Pending)

	cancel()
	select {
	case err := <-errCh:
		require.NoError(t, err)
	case <-time.After(3 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestRunWakesForEarlierJob(t *testing.T) {
	fired := make(chan Job, 1)
	s := New(Config{MaxSleep: time.Hour}, func(_ context.Context, j Job) { fired <- j }, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	s.ScheduleAt(time.Now().Add(time.Hour), Job{Owner: 1, TaskID: 1})
	time.Sleep(20 * time.Millisecond)
	s.ScheduleAt(time.Now().Add(30*time.Millisecond), Job{Owner: 1, TaskID: 2})

	select {
	case j := <-fired:
		assert.Equal(t, uint64(2), j.TaskID)
	case <-time.After(2 * time.Second):
		t.Fatal("timing loop did not wake for the earlier job")
	}
	assert.Equal(t, 1, s.Snapshot().Pending)
}

func TestRunSurvivesPanickingHandler(t *testing.T) {
	delivered := make(chan uint64, 2)
	s := New(Config{Workers: 1}, func(_ context.Context, j Job) {
		if j.TaskID == 1 {
			panic("boom")
		}
		delivered <- j.TaskID
	}, logx.Nop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()

	s.ScheduleAt(time.Now(), Job{Owner: 1, TaskID: 1})
	s.ScheduleAt(time.Now(), Job{Owner: 1, TaskID: 2})

	select {
	case id := <-delivered:
		assert.Equal(t, uint64(2), id)
	case <-time.After(2 * time.Second):
		t.Fatal("worker did not continue after panic")
	}
}

func TestRunTwiceIsRejected(t *testing.T) {
	s := New(Config{}, nil, logx.Nop())
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = s.Run(ctx) }()
	require.Eventually(t, func() bool { return s.Snapshot().Running }, time.Second, 5*time.Millisecond)
	assert.ErrorIs(t, s.Run(ctx), ErrAlreadyRunning)
}
