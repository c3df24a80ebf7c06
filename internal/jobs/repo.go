package jobs

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/lib/pq"
	"gorm.io/gorm"
)

// Repo is the Postgres-backed Store.
type Repo struct {
	DB *gorm.DB
}

var _ Store = (*Repo)(nil)

func (r *Repo) Create(ctx context.Context, j *Job) error {
	if err := r.DB.WithContext(ctx).Create(j).Error; err != nil {
		if isUniqueViolation(err) {
			return fmt.Errorf("%w: %s", ErrDuplicateJob, j.ID)
		}
		return err
	}
	return nil
}

// Save is a compare-and-set on status, so two callers that read the same
// PENDING row cannot both move it to RUNNING.
func (r *Repo) Save(ctx context.Context, j *Job, prev Status) error {
	res := r.DB.WithContext(ctx).
		Model(&Job{}).
		Where("id = ? AND status = ?", j.ID, prev).
		Updates(map[string]any{
			"status":      j.Status,
			"retry_count": j.RetryCount,
			"error":       j.Error,
			"executed_at": j.ExecutedAt,
		})
	if res.Error != nil {
		return res.Error
	}
	if res.RowsAffected > 0 {
		return nil
	}

	var n int64
	if err := r.DB.WithContext(ctx).Model(&Job{}).Where("id = ?", j.ID).Count(&n).Error; err != nil {
		return err
	}
	if n == 0 {
		return ErrJobNotFound
	}
	return ErrConflict
}

func (r *Repo) FindByID(ctx context.Context, id uuid.UUID) (*Job, error) {
	var j Job
	if err := r.DB.WithContext(ctx).Where("id = ?", id).First(&j).Error; err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, ErrJobNotFound
		}
		return nil, err
	}
	return &j, nil
}

func (r *Repo) FindAll(ctx context.Context, statuses ...Status) ([]Job, error) {
	q := r.DB.WithContext(ctx).Model(&Job{})
	if len(statuses) > 0 {
		names := make([]string, 0, len(statuses))
		for _, s := range statuses {
			names = append(names, string(s))
		}
		q = q.Where("status = any(?)", pq.Array(names))
	}

	var rows []Job
	if err := q.Order("created_at asc, id asc").Find(&rows).Error; err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) FindFailedForRetry(ctx context.Context, maxRetries int) ([]Job, error) {
	var rows []Job
	err := r.DB.WithContext(ctx).
		Where("status = ? AND retry_count < ?", StatusFailed, maxRetries).
		Order("created_at asc, id asc").
		Find(&rows).Error
	if err != nil {
		return nil, err
	}
	return rows, nil
}

func (r *Repo) DeleteCreatedBefore(ctx context.Context, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).Where("created_at < ?", cutoff).Delete(&Job{})
	return res.RowsAffected, res.Error
}

func (r *Repo) DeleteByStatusBefore(ctx context.Context, status Status, cutoff time.Time) (int64, error) {
	res := r.DB.WithContext(ctx).
		Where("status = ? AND created_at < ?", status, cutoff).
		Delete(&Job{})
	return res.RowsAffected, res.Error
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}
