package jobs

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"time"

	"github.com/google/uuid"
)

// MemoryStore is an in-process Store for tests and local runs.
// Rows are returned in insertion order.
type MemoryStore struct {
	mu    sync.RWMutex
	jobs  map[uuid.UUID]*Job
	order []uuid.UUID
}

var _ Store = (*MemoryStore)(nil)

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{jobs: make(map[uuid.UUID]*Job)}
}

func (ms *MemoryStore) Create(_ context.Context, j *Job) error {
	if j == nil {
		return errors.New("job cannot be nil")
	}

	ms.mu.Lock()
	defer ms.mu.Unlock()

	if _, exists := ms.jobs[j.ID]; exists {
		return fmt.Errorf("%w: %s", ErrDuplicateJob, j.ID)
	}
	ms.jobs[j.ID] = j.clone()
	ms.order = append(ms.order, j.ID)
	return nil
}

func (ms *MemoryStore) Save(_ context.Context, j *Job, prev Status) error {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	stored, ok := ms.jobs[j.ID]
	if !ok {
		return ErrJobNotFound
	}
	if stored.Status != prev {
		return ErrConflict
	}

	next := j.clone()
	// identity columns are immutable
	next.Type = stored.Type
	next.Payload = stored.Payload
	next.CreatedAt = stored.CreatedAt
	ms.jobs[j.ID] = next
	return nil
}

func (ms *MemoryStore) FindByID(_ context.Context, id uuid.UUID) (*Job, error) {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	j, ok := ms.jobs[id]
	if !ok {
		return nil, ErrJobNotFound
	}
	return j.clone(), nil
}

func (ms *MemoryStore) FindAll(_ context.Context, statuses ...Status) ([]Job, error) {
	return ms.collect(func(j *Job) bool {
		return len(statuses) == 0 || slices.Contains(statuses, j.Status)
	}), nil
}

func (ms *MemoryStore) FindFailedForRetry(_ context.Context, maxRetries int) ([]Job, error) {
	return ms.collect(func(j *Job) bool {
		return j.Status == StatusFailed && j.RetryCount < maxRetries
	}), nil
}

func (ms *MemoryStore) DeleteCreatedBefore(_ context.Context, cutoff time.Time) (int64, error) {
	return ms.deleteWhere(func(j *Job) bool {
		return j.CreatedAt.Before(cutoff)
	}), nil
}

func (ms *MemoryStore) DeleteByStatusBefore(_ context.Context, status Status, cutoff time.Time) (int64, error) {
	return ms.deleteWhere(func(j *Job) bool {
		return j.Status == status && j.CreatedAt.Before(cutoff)
	}), nil
}

func (ms *MemoryStore) collect(match func(*Job) bool) []Job {
	ms.mu.RLock()
	defer ms.mu.RUnlock()

	out := make([]Job, 0, len(ms.order))
	for _, id := range ms.order {
		if j := ms.jobs[id]; match(j) {
			out = append(out, *j.clone())
		}
	}
	return out
}

func (ms *MemoryStore) deleteWhere(match func(*Job) bool) int64 {
	ms.mu.Lock()
	defer ms.mu.Unlock()

	var n int64
	ms.order = slices.DeleteFunc(ms.order, func(id uuid.UUID) bool {
		if match(ms.jobs[id]) {
			delete(ms.jobs, id)
			n++
			return true
		}
		return false
	})
	return n
}
