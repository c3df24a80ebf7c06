package jobs

import (
	"errors"
	"fmt"

	"github.com/google/uuid"
)

var (
	// ErrJobNotFound is returned when a job id is unknown to the store.
	ErrJobNotFound = errors.New("job not found")

	// ErrInvalidState is matched by every *InvalidStateError.
	ErrInvalidState = errors.New("invalid job state")

	// ErrConflict is returned by Store.Save when the stored status no longer
	// matches the status the caller read.
	ErrConflict = errors.New("job status changed concurrently")

	ErrDuplicateJob      = errors.New("job already exists")
	ErrNilExecutor       = errors.New("executor cannot be nil")
	ErrDuplicateExecutor = errors.New("executor already registered for job type")
)

// InvalidStateError is returned when an operation is not allowed from the job's current status.
type InvalidStateError struct {
	JobID  uuid.UUID
	Status Status
}

func (e *InvalidStateError) Error() string {
	return fmt.Sprintf("job %s cannot be retried: status is %s", e.JobID, e.Status)
}

func (e *InvalidStateError) Is(target error) bool {
	return target == ErrInvalidState
}

// ExecutionError is how an executor reports a failed attempt.
// Msg is recorded verbatim as the job's error.
type ExecutionError struct {
	Msg string
	Err error
}

// NewExecutionError builds an ExecutionError. When msg is empty the cause's message is used.
func NewExecutionError(msg string, cause error) *ExecutionError {
	if msg == "" && cause != nil {
		msg = cause.Error()
	}
	return &ExecutionError{Msg: msg, Err: cause}
}

func (e *ExecutionError) Error() string { return e.Msg }

func (e *ExecutionError) Unwrap() error { return e.Err }

// failureMessage extracts the message recorded on a job for a failed attempt.
func failureMessage(err error) string {
	var execErr *ExecutionError
	if errors.As(err, &execErr) {
		return execErr.Msg
	}
	return err.Error()
}
