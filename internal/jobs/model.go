package jobs

import (
	"time"

	"github.com/google/uuid"
)

// Type is the kind of work a job carries. Each type is served by exactly one executor.
type Type string

const (
	TypeEmailSend   Type = "EMAIL_SEND"
	TypeWebhookCall Type = "WEBHOOK_CALL"
	TypeDataCleanup Type = "DATA_CLEANUP"
)

// Valid reports whether t is one of the known job types.
func (t Type) Valid() bool {
	switch t {
	case TypeEmailSend, TypeWebhookCall, TypeDataCleanup:
		return true
	}
	return false
}

type Status string

const (
	StatusPending   Status = "PENDING"
	StatusRunning   Status = "RUNNING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
)

func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusRunning, StatusCompleted, StatusFailed:
		return true
	}
	return false
}

// Job is a persisted unit of deferred work.
// Only the Engine mutates Status, RetryCount, Error and ExecutedAt.
type Job struct {
	ID      uuid.UUID `gorm:"type:uuid;primaryKey"`
	Type    Type      `gorm:"type:text;not null"`
	Status  Status    `gorm:"type:text;index;not null;default:'PENDING'"`
	Payload string    `gorm:"type:text;not null;default:''"`

	RetryCount int     `gorm:"not null;default:0"`
	Error      *string `gorm:"type:text"`

	CreatedAt  time.Time  `gorm:"index;not null"`
	ExecutedAt *time.Time `gorm:"type:timestamptz"`
}

func (Job) TableName() string { return "jobs" }

// ErrorMessage returns the recorded failure message or an empty string.
func (j *Job) ErrorMessage() string {
	if j.Error == nil {
		return ""
	}
	return *j.Error
}

func (j *Job) clone() *Job {
	c := *j
	if j.Error != nil {
		msg := *j.Error
		c.Error = &msg
	}
	if j.ExecutedAt != nil {
		at := *j.ExecutedAt
		c.ExecutedAt = &at
	}
	return &c
}
