package jobs

import (
	"context"
	"time"

	"github.com/google/uuid"
)

// Store is the durable home of job rows.
type Store interface {
	// Create inserts a new job.
	Create(ctx context.Context, j *Job) error

	// Save writes j's mutable fields only if the stored row still has status prev.
	// It returns ErrConflict when another caller changed the status first,
	// and ErrJobNotFound when the row is gone.
	Save(ctx context.Context, j *Job, prev Status) error

	FindByID(ctx context.Context, id uuid.UUID) (*Job, error)

	// FindAll returns jobs in creation order, restricted to statuses when any are given.
	FindAll(ctx context.Context, statuses ...Status) ([]Job, error)

	// FindFailedForRetry returns FAILED jobs with RetryCount below maxRetries.
	FindFailedForRetry(ctx context.Context, maxRetries int) ([]Job, error)

	// DeleteCreatedBefore removes jobs of any status created before cutoff.
	DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error)

	// DeleteByStatusBefore removes jobs in status created before cutoff.
	DeleteByStatusBefore(ctx context.Context, status Status, cutoff time.Time) (int64, error)
}
