package executors

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"worknest/internal/jobs"
)

// Purger deletes the rows of one cleanup target created before cutoff.
type Purger func(ctx context.Context, cutoff time.Time) (int64, error)

// CleanupPayload is the DATA_CLEANUP job payload.
type CleanupPayload struct {
	Target         string `json:"target"`
	OlderThanHours int    `json:"older_than_hours"`
}

// Cleanup executes DATA_CLEANUP jobs against a fixed set of named targets.
type Cleanup struct {
	Targets map[string]Purger
	Logger  *slog.Logger
	Now     func() time.Time
}

func (c *Cleanup) JobType() jobs.Type { return jobs.TypeDataCleanup }

func (c *Cleanup) Execute(ctx context.Context, payload string) error {
	var p CleanupPayload
	if err := decodePayload(payload, &p); err != nil {
		return err
	}
	purge, ok := c.Targets[p.Target]
	if !ok {
		return jobs.NewExecutionError(fmt.Sprintf("unknown cleanup target %q", p.Target), nil)
	}
	if p.OlderThanHours <= 0 {
		return jobs.NewExecutionError("invalid payload: older_than_hours must be positive", nil)
	}

	now := time.Now
	if c.Now != nil {
		now = c.Now
	}
	cutoff := now().Add(-time.Duration(p.OlderThanHours) * time.Hour)

	n, err := purge(ctx, cutoff)
	if err != nil {
		return jobs.NewExecutionError(fmt.Sprintf("cleanup %s: %v", p.Target, err), err)
	}

	if c.Logger != nil {
		c.Logger.InfoContext(ctx, "cleanup target purged",
			slog.String("target", p.Target),
			slog.Int64("count", n),
			slog.Time("cutoff", cutoff))
	}
	return nil
}

// JobStatusPurger purges jobs in status through the store.
func JobStatusPurger(store jobs.Store, status jobs.Status) Purger {
	return func(ctx context.Context, cutoff time.Time) (int64, error) {
		return store.DeleteByStatusBefore(ctx, status, cutoff)
	}
}
