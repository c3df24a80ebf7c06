package jobs

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"golang.org/x/sync/errgroup"

	"worknest/internal/logger"
)

// Lease lets a single replica claim a periodic sweep for one interval.
type Lease interface {
	Acquire(ctx context.Context, name string, ttl time.Duration) (bool, error)
}

// Worker is the in-process trigger: it executes pending jobs on every poll
// and periodically runs the retry and cleanup sweeps.
type Worker struct {
	ID     string
	Engine *Engine
	Lease  Lease
	Logger *slog.Logger

	PollInterval    time.Duration
	RetryInterval   time.Duration
	CleanupInterval time.Duration
	Concurrency     int
}

func (w *Worker) Run(ctx context.Context) {
	poll := time.NewTicker(orDefault(w.PollInterval, time.Second))
	defer poll.Stop()
	retry := time.NewTicker(orDefault(w.RetryInterval, time.Minute))
	defer retry.Stop()
	cleanup := time.NewTicker(orDefault(w.CleanupInterval, time.Hour))
	defer cleanup.Stop()

	w.log().InfoContext(ctx, "worker started")

	for {
		select {
		case <-ctx.Done():
			w.log().InfoContext(ctx, "worker stopped")
			return
		case <-poll.C:
			if _, err := w.Drain(ctx); err != nil {
				w.log().ErrorContext(ctx, "worker drain error", logger.Error(err))
			}
		case <-retry.C:
			if _, err := w.RetrySweep(ctx); err != nil {
				w.log().ErrorContext(ctx, "retry sweep error", logger.Error(err))
			}
		case <-cleanup.C:
			if _, err := w.CleanupSweep(ctx); err != nil {
				w.log().ErrorContext(ctx, "cleanup sweep error", logger.Error(err))
			}
		}
	}
}

// Drain executes every currently pending job and returns how many were started.
// A failing job does not stop the others; the first error is returned.
// Once ctx is cancelled no further job is started.
func (w *Worker) Drain(ctx context.Context) (int, error) {
	pending, err := w.Engine.ListJobs(ctx, StatusPending)
	if err != nil {
		return 0, err
	}
	if len(pending) == 0 {
		return 0, nil
	}

	var (
		g       errgroup.Group
		started atomic.Int64
	)
	g.SetLimit(max(w.Concurrency, 1))
	for _, j := range pending {
		if ctx.Err() != nil {
			break
		}
		id := j.ID
		g.Go(func() error {
			// g.Go may have waited for a slot past cancellation.
			if ctx.Err() != nil {
				return nil
			}
			started.Add(1)
			return w.Engine.ExecuteJob(ctx, id)
		})
	}
	err = g.Wait()
	return int(started.Load()), err
}

// RetrySweep resets retryable failed jobs, unless another replica holds the sweep.
func (w *Worker) RetrySweep(ctx context.Context) (int, error) {
	ok, err := w.acquire(ctx, "retry", w.sweepTTL(orDefault(w.RetryInterval, time.Minute)))
	if err != nil || !ok {
		return 0, err
	}
	return w.Engine.RetryFailedJobs(ctx)
}

// CleanupSweep removes jobs past retention, unless another replica holds the sweep.
func (w *Worker) CleanupSweep(ctx context.Context) (int64, error) {
	ok, err := w.acquire(ctx, "cleanup", w.sweepTTL(orDefault(w.CleanupInterval, time.Hour)))
	if err != nil || !ok {
		return 0, err
	}
	return w.Engine.CleanupOldJobs(ctx)
}

// sweepTTL keeps a sweep lease a little shorter than its interval, so a tick
// handled late does not make the next on-time tick find the lease still held.
func (w *Worker) sweepTTL(interval time.Duration) time.Duration {
	return interval - min(interval/10, orDefault(w.PollInterval, time.Second))
}

func (w *Worker) acquire(ctx context.Context, sweep string, ttl time.Duration) (bool, error) {
	if w.Lease == nil {
		return true, nil
	}
	ok, err := w.Lease.Acquire(ctx, "worknest:sweep:"+sweep, ttl)
	if err != nil {
		return false, err
	}
	if !ok {
		w.log().DebugContext(ctx, "sweep held by another worker", slog.String("sweep", sweep))
	}
	return ok, nil
}

func (w *Worker) log() *slog.Logger {
	l := w.Logger
	if l == nil {
		l = slog.Default()
	}
	return l.With(logger.Component("jobs.worker"), slog.String("worker_id", w.ID))
}

func orDefault(d, def time.Duration) time.Duration {
	if d <= 0 {
		return def
	}
	return d
}
