package jobs

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"worknest/internal/logger"
)

const (
	DefaultMaxRetries = 3
	DefaultRetention  = 30 * 24 * time.Hour
)

// Engine drives jobs through PENDING -> RUNNING -> COMPLETED|FAILED and back
// to PENDING on retry. Executor failures are recorded on the job, never returned.
type Engine struct {
	store      Store
	registry   *Registry
	maxRetries int
	retention  time.Duration
	logger     *slog.Logger
	now        func() time.Time
}

type Option func(*Engine)

// WithMaxRetries sets the retry ceiling for automatic retry sweeps.
func WithMaxRetries(n int) Option {
	return func(e *Engine) {
		if n >= 0 {
			e.maxRetries = n
		}
	}
}

// WithRetention sets how long job rows are kept before CleanupOldJobs removes them.
func WithRetention(d time.Duration) Option {
	return func(e *Engine) {
		if d > 0 {
			e.retention = d
		}
	}
}

func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) {
		if l != nil {
			e.logger = l
		}
	}
}

func WithClock(now func() time.Time) Option {
	return func(e *Engine) {
		if now != nil {
			e.now = now
		}
	}
}

func NewEngine(store Store, registry *Registry, opts ...Option) *Engine {
	e := &Engine{
		store:      store,
		registry:   registry,
		maxRetries: DefaultMaxRetries,
		retention:  DefaultRetention,
		logger:     slog.Default(),
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	e.logger = e.logger.With(logger.Component("jobs.engine"))
	return e
}

func (e *Engine) MaxRetries() int { return e.maxRetries }

func (e *Engine) Retention() time.Duration { return e.retention }

// ScheduleJob persists a new PENDING job. The payload is not inspected here.
func (e *Engine) ScheduleJob(ctx context.Context, t Type, payload string) (*Job, error) {
	j := &Job{
		ID:        uuid.New(),
		Type:      t,
		Status:    StatusPending,
		Payload:   payload,
		CreatedAt: e.now(),
	}
	if err := e.store.Create(ctx, j); err != nil {
		return nil, fmt.Errorf("schedule %s job: %w", t, err)
	}

	e.logger.InfoContext(ctx, "job scheduled",
		logger.JobID(j.ID),
		logger.JobType(string(t)))
	return j.clone(), nil
}

// ExecuteJob runs a PENDING job through its executor.
// It returns ErrJobNotFound for an unknown id and store errors; the outcome of
// the executor itself is only recorded on the job.
func (e *Engine) ExecuteJob(ctx context.Context, id uuid.UUID) error {
	j, err := e.store.FindByID(ctx, id)
	if err != nil {
		return fmt.Errorf("execute job %s: %w", id, err)
	}

	if j.Status != StatusPending {
		e.logger.DebugContext(ctx, "job not pending, skipping",
			logger.JobID(j.ID),
			logger.Status(string(j.Status)))
		return nil
	}

	ex, ok := e.registry.Lookup(j.Type)
	if !ok {
		msg := fmt.Sprintf("No executor found for job type %s", j.Type)
		j.Status = StatusFailed
		j.Error = &msg
		if err := e.store.Save(ctx, j, StatusPending); err != nil {
			return e.skipConflict(ctx, j, err)
		}
		e.logger.ErrorContext(ctx, "no executor registered for job type",
			logger.JobID(j.ID),
			logger.JobType(string(j.Type)))
		return nil
	}

	j.Status = StatusRunning
	if err := e.store.Save(ctx, j, StatusPending); err != nil {
		return e.skipConflict(ctx, j, err)
	}

	// From RUNNING on the attempt is not cancellable.
	runCtx := context.WithoutCancel(ctx)
	start := time.Now()
	execErr := e.invoke(runCtx, ex, j.Payload)
	elapsed := time.Since(start)

	if execErr == nil {
		at := e.now()
		j.Status = StatusCompleted
		j.ExecutedAt = &at
		j.Error = nil
	} else {
		msg := failureMessage(execErr)
		j.Status = StatusFailed
		j.Error = &msg
		j.RetryCount++
	}

	if err := e.store.Save(runCtx, j, StatusRunning); err != nil {
		return fmt.Errorf("record outcome of job %s: %w", j.ID, err)
	}

	if execErr != nil {
		e.logger.ErrorContext(ctx, "job failed",
			logger.JobID(j.ID),
			logger.JobType(string(j.Type)),
			logger.RetryCount(j.RetryCount),
			logger.Duration(elapsed),
			logger.Error(execErr))
		return nil
	}
	e.logger.InfoContext(ctx, "job completed",
		logger.JobID(j.ID),
		logger.JobType(string(j.Type)),
		logger.Duration(elapsed))
	return nil
}

// invoke calls the executor, turning a panic into a failed attempt.
func (e *Engine) invoke(ctx context.Context, ex Executor, payload string) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = NewExecutionError(fmt.Sprintf("panic: %v", r), nil)
		}
	}()
	return ex.Execute(ctx, payload)
}

// skipConflict treats a lost status race as "someone else has it".
func (e *Engine) skipConflict(ctx context.Context, j *Job, err error) error {
	if errors.Is(err, ErrConflict) {
		e.logger.InfoContext(ctx, "job changed concurrently, skipping",
			logger.JobID(j.ID))
		return nil
	}
	return fmt.Errorf("execute job %s: %w", j.ID, err)
}

// RetryFailedJobs resets every FAILED job below the retry ceiling to PENDING
// and returns how many were reset. It does not execute them.
func (e *Engine) RetryFailedJobs(ctx context.Context) (int, error) {
	candidates, err := e.store.FindFailedForRetry(ctx, e.maxRetries)
	if err != nil {
		return 0, fmt.Errorf("find failed jobs: %w", err)
	}

	var (
		reset int
		errs  []error
	)
	for i := range candidates {
		j := &candidates[i]
		j.Status = StatusPending
		j.Error = nil
		if err := e.store.Save(ctx, j, StatusFailed); err != nil {
			if errors.Is(err, ErrConflict) || errors.Is(err, ErrJobNotFound) {
				continue
			}
			errs = append(errs, fmt.Errorf("reset job %s: %w", j.ID, err))
			continue
		}
		reset++
	}

	if reset > 0 || len(errs) > 0 {
		e.logger.InfoContext(ctx, "failed jobs reset for retry",
			logger.Count(int64(reset)),
			slog.Int("errors", len(errs)))
	}
	return reset, errors.Join(errs...)
}

// RetryJob resets a single FAILED job to PENDING regardless of the retry ceiling.
func (e *Engine) RetryJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	j, err := e.store.FindByID(ctx, id)
	if err != nil {
		return nil, fmt.Errorf("retry job %s: %w", id, err)
	}
	if j.Status != StatusFailed {
		return nil, &InvalidStateError{JobID: j.ID, Status: j.Status}
	}

	j.Status = StatusPending
	j.Error = nil
	if err := e.store.Save(ctx, j, StatusFailed); err != nil {
		return nil, fmt.Errorf("retry job %s: %w", id, err)
	}

	e.logger.InfoContext(ctx, "job reset for retry",
		logger.JobID(j.ID),
		logger.RetryCount(j.RetryCount))
	return j, nil
}

// CleanupOldJobs deletes jobs of any status older than the retention window.
func (e *Engine) CleanupOldJobs(ctx context.Context) (int64, error) {
	cutoff := e.now().Add(-e.retention)
	n, err := e.store.DeleteCreatedBefore(ctx, cutoff)
	if err != nil {
		return n, fmt.Errorf("cleanup jobs before %s: %w", cutoff.Format(time.RFC3339), err)
	}
	if n > 0 {
		e.logger.InfoContext(ctx, "old jobs removed",
			logger.Count(n),
			slog.Time("cutoff", cutoff))
	}
	return n, nil
}

// GetAllJobs lists every job in store order.
func (e *Engine) GetAllJobs(ctx context.Context) ([]Job, error) {
	return e.store.FindAll(ctx)
}

// ListJobs lists jobs in the given statuses, or all jobs when none are given.
func (e *Engine) ListJobs(ctx context.Context, statuses ...Status) ([]Job, error) {
	return e.store.FindAll(ctx, statuses...)
}

func (e *Engine) GetJob(ctx context.Context, id uuid.UUID) (*Job, error) {
	return e.store.FindByID(ctx, id)
}
