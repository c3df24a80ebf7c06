package jobs_test

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"worknest/internal/jobs"
	"worknest/internal/logger"
)

// MockLease is a mock implementation of jobs.Lease
type MockLease struct {
	mock.Mock
}

func (m *MockLease) Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error) {
	args := m.Called(ctx, name, ttl)
	return args.Bool(0), args.Error(1)
}

func TestWorker_Drain(t *testing.T) {
	t.Parallel()

	t.Run("executes every pending job", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		var calls atomic.Int32
		e, _ := newTestEngine(t, store, nil, execFor(jobs.TypeEmailSend, func(context.Context, string) error {
			calls.Add(1)
			return nil
		}))
		ctx := context.Background()

		for range 10 {
			_, err := e.ScheduleJob(ctx, jobs.TypeEmailSend, "{}")
			require.NoError(t, err)
		}

		w := &jobs.Worker{ID: "w1", Engine: e, Concurrency: 3, Logger: logger.Discard()}
		n, err := w.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 10, n)
		assert.Equal(t, int32(10), calls.Load())

		done, err := e.ListJobs(ctx, jobs.StatusCompleted)
		require.NoError(t, err)
		assert.Len(t, done, 10)

		n, err = w.Drain(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
	})

	t.Run("respects concurrency limit", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		var running, peak atomic.Int32
		e, _ := newTestEngine(t, store, nil, execFor(jobs.TypeEmailSend, func(context.Context, string) error {
			cur := running.Add(1)
			for {
				p := peak.Load()
				if cur <= p || peak.CompareAndSwap(p, cur) {
					break
				}
			}
			time.Sleep(10 * time.Millisecond)
			running.Add(-1)
			return nil
		}))
		ctx := context.Background()
		for range 6 {
			_, err := e.ScheduleJob(ctx, jobs.TypeEmailSend, "{}")
			require.NoError(t, err)
		}

		w := &jobs.Worker{ID: "w1", Engine: e, Concurrency: 2, Logger: logger.Discard()}
		_, err := w.Drain(ctx)
		require.NoError(t, err)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("failing jobs do not stop the drain", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		e, _ := newTestEngine(t, store, nil, failingExec(jobs.TypeEmailSend, "x"))
		ctx := context.Background()
		for range 3 {
			_, err := e.ScheduleJob(ctx, jobs.TypeEmailSend, "{}")
			require.NoError(t, err)
		}

		w := &jobs.Worker{ID: "w1", Engine: e, Logger: logger.Discard()}
		n, err := w.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 3, n)

		failed, err := e.ListJobs(ctx, jobs.StatusFailed)
		require.NoError(t, err)
		assert.Len(t, failed, 3)
	})

	t.Run("cancelled context starts nothing", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		var calls atomic.Int32
		e, _ := newTestEngine(t, store, nil, execFor(jobs.TypeEmailSend, func(context.Context, string) error {
			calls.Add(1)
			return nil
		}))
		for range 3 {
			_, err := e.ScheduleJob(context.Background(), jobs.TypeEmailSend, "{}")
			require.NoError(t, err)
		}

		ctx, cancel := context.WithCancel(context.Background())
		cancel()

		w := &jobs.Worker{ID: "w1", Engine: e, Logger: logger.Discard()}
		n, err := w.Drain(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Zero(t, calls.Load())
	})

	t.Run("stops starting jobs after cancellation", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		ctx, cancel := context.WithCancel(context.Background())
		defer cancel()

		var calls atomic.Int32
		e, _ := newTestEngine(t, store, nil, execFor(jobs.TypeEmailSend, func(context.Context, string) error {
			calls.Add(1)
			cancel()
			return nil
		}))
		for range 5 {
			_, err := e.ScheduleJob(context.Background(), jobs.TypeEmailSend, "{}")
			require.NoError(t, err)
		}

		w := &jobs.Worker{ID: "w1", Engine: e, Concurrency: 1, Logger: logger.Discard()}
		n, err := w.Drain(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, int32(1), calls.Load())

		pending, err := e.ListJobs(context.Background(), jobs.StatusPending)
		require.NoError(t, err)
		assert.Len(t, pending, 4)
	})
}

// clockLease honours ttl against a settable clock.
type clockLease struct {
	now  time.Time
	held map[string]time.Time
}

func (l *clockLease) Acquire(_ context.Context, name string, ttl time.Duration) (bool, error) {
	if until, ok := l.held[name]; ok && l.now.Before(until) {
		return false, nil
	}
	l.held[name] = l.now.Add(ttl)
	return true, nil
}

func TestWorker_SweepLeaseShorterThanInterval(t *testing.T) {
	t.Parallel()

	store := jobs.NewMemoryStore()
	e, _ := newTestEngine(t, store, nil)
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	l := &clockLease{held: make(map[string]time.Time)}
	w := &jobs.Worker{
		ID:              "w1",
		Engine:          e,
		Lease:           l,
		Logger:          logger.Discard(),
		PollInterval:    time.Second,
		CleanupInterval: time.Minute,
	}
	ctx := context.Background()

	// tick handled late because a drain was still running
	l.now = start.Add(time.Minute + 500*time.Millisecond)
	_, err := w.CleanupSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, start.Add(2*time.Minute-500*time.Millisecond), l.held["worknest:sweep:cleanup"])

	// next tick on time still gets the sweep
	l.now = start.Add(2 * time.Minute)
	_, err = w.CleanupSweep(ctx)
	require.NoError(t, err)
	assert.Equal(t, start.Add(3*time.Minute-time.Second), l.held["worknest:sweep:cleanup"])

	// a second replica in the same interval does not
	other := &jobs.Worker{ID: "w2", Engine: e, Lease: l, Logger: logger.Discard(), CleanupInterval: time.Minute}
	l.now = start.Add(2*time.Minute + 10*time.Second)
	until := l.held["worknest:sweep:cleanup"]
	n, err := other.CleanupSweep(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
	assert.Equal(t, until, l.held["worknest:sweep:cleanup"])
}

func TestWorker_Sweeps(t *testing.T) {
	t.Parallel()

	t.Run("retry sweep runs when lease is acquired", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		e, _ := newTestEngine(t, store, nil, failingExec(jobs.TypeEmailSend, "x"))
		ctx := context.Background()
		j, err := e.ScheduleJob(ctx, jobs.TypeEmailSend, "{}")
		require.NoError(t, err)
		require.NoError(t, e.ExecuteJob(ctx, j.ID))

		l := new(MockLease)
		defer l.AssertExpectations(t)
		l.On("Acquire", mock.Anything, "worknest:sweep:retry", 29*time.Second).Return(true, nil)

		w := &jobs.Worker{ID: "w1", Engine: e, Lease: l, RetryInterval: 30 * time.Second, Logger: logger.Discard()}
		n, err := w.RetrySweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, 1, n)
		assert.Equal(t, jobs.StatusPending, mustGet(t, store, j.ID).Status)
	})

	t.Run("retry sweep skipped when lease is held elsewhere", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		e, _ := newTestEngine(t, store, nil, failingExec(jobs.TypeEmailSend, "x"))
		ctx := context.Background()
		j, err := e.ScheduleJob(ctx, jobs.TypeEmailSend, "{}")
		require.NoError(t, err)
		require.NoError(t, e.ExecuteJob(ctx, j.ID))

		l := new(MockLease)
		defer l.AssertExpectations(t)
		l.On("Acquire", mock.Anything, "worknest:sweep:retry", 59*time.Second).Return(false, nil)

		w := &jobs.Worker{ID: "w2", Engine: e, Lease: l, Logger: logger.Discard()}
		n, err := w.RetrySweep(ctx)
		require.NoError(t, err)
		assert.Zero(t, n)
		assert.Equal(t, jobs.StatusFailed, mustGet(t, store, j.ID).Status)
	})

	t.Run("lease error is returned", func(t *testing.T) {
		t.Parallel()

		leaseErr := errors.New("redis down")
		l := new(MockLease)
		defer l.AssertExpectations(t)
		l.On("Acquire", mock.Anything, "worknest:sweep:cleanup", time.Hour-time.Second).Return(false, leaseErr)

		e, _ := newTestEngine(t, jobs.NewMemoryStore(), nil)
		w := &jobs.Worker{ID: "w1", Engine: e, Lease: l, Logger: logger.Discard()}
		_, err := w.CleanupSweep(context.Background())
		assert.ErrorIs(t, err, leaseErr)
	})

	t.Run("cleanup sweep without lease", func(t *testing.T) {
		t.Parallel()

		store := jobs.NewMemoryStore()
		e, clock := newTestEngine(t, store, []jobs.Option{jobs.WithRetention(time.Hour)})
		ctx := context.Background()
		_, err := e.ScheduleJob(ctx, jobs.TypeEmailSend, "{}")
		require.NoError(t, err)
		clock.Set(baseTime.Add(2 * time.Hour))

		w := &jobs.Worker{ID: "w1", Engine: e, Logger: logger.Discard()}
		n, err := w.CleanupSweep(ctx)
		require.NoError(t, err)
		assert.Equal(t, int64(1), n)
	})
}

func TestWorker_Run(t *testing.T) {
	t.Parallel()

	store := jobs.NewMemoryStore()
	e, _ := newTestEngine(t, store, nil, execFor(jobs.TypeEmailSend, nil))
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	j, err := e.ScheduleJob(ctx, jobs.TypeEmailSend, "{}")
	require.NoError(t, err)

	w := &jobs.Worker{ID: "w1", Engine: e, PollInterval: 5 * time.Millisecond, Logger: logger.Discard()}
	done := make(chan struct{})
	go func() {
		defer close(done)
		w.Run(ctx)
	}()

	assert.Eventually(t, func() bool {
		got, err := store.FindByID(context.Background(), j.ID)
		return err == nil && got.Status == jobs.StatusCompleted
	}, time.Second, 5*time.Millisecond)

	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("worker did not stop after cancel")
	}
}
