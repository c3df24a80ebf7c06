package db

import (
	"fmt"

	"worknest/internal/jobs"

	"gorm.io/driver/postgres"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

func Connect(dsn string) (*gorm.DB, error) {
	gdb, err := gorm.Open(postgres.Open(dsn), &gorm.Config{
		Logger: gormlogger.Default.LogMode(gormlogger.Warn),
	})
	if err != nil {
		return nil, err
	}
	return gdb, nil
}

func AutoMigrateAndIndexes(gdb *gorm.DB) error {
	if err := gdb.AutoMigrate(&jobs.Job{}); err != nil {
		return err
	}

	stmts := []string{
		// retry sweep: status = FAILED and retry_count < ?
		`create index if not exists idx_jobs_status_retry on jobs(status, retry_count);`,
		// worker poll: pending jobs in creation order
		`create index if not exists idx_jobs_status_created on jobs(status, created_at);`,
		`alter table jobs drop constraint if exists chk_jobs_status;`,
		`alter table jobs add constraint chk_jobs_status check (status in ('PENDING','RUNNING','COMPLETED','FAILED'));`,
		`alter table jobs drop constraint if exists chk_jobs_retry_count;`,
		`alter table jobs add constraint chk_jobs_retry_count check (retry_count >= 0);`,
	}
	for _, s := range stmts {
		if err := gdb.Exec(s).Error; err != nil {
			return fmt.Errorf("index exec failed: %w (sql=%s)", err, s)
		}
	}

	return nil
}
