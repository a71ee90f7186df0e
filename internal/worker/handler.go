package worker

import (
	"context"
	"errors"
)

// JobHandler runs one type of background job. The worker looks handlers up
// by Type when it dequeues a job.
type JobHandler interface {
	// Type names the jobs this handler runs.
	// It must equal the job_type stored in the jobs table.
	Type() string

	// Handle runs a single job. payload is the JSON stored at enqueue time
	// and is decoded by the handler.
	// A returned error reschedules the job with backoff until max_attempts
	// is reached. Wrap it with NewPermanentError to fail the job at once,
	// for example when the payload names an order that no longer exists.
	Handle(ctx context.Context, payload []byte) error
}

// PermanentError marks a job failure that retrying cannot fix.
// The worker marks such jobs 'failed' on the first attempt instead of
// rescheduling them.
type PermanentError struct {
	Err error
}

// Error returns the wrapped error's message.
func (e *PermanentError) Error() string {
	return e.Err.Error()
}

// Unwrap exposes the cause to errors.Is and errors.As.
func (e *PermanentError) Unwrap() error {
	return e.Err
}

// NewPermanentError wraps err so the job is not retried.
func NewPermanentError(err error) error {
	return &PermanentError{Err: err}
}

// IsPermanent reports whether err, or any error it wraps, is a
// PermanentError.
func IsPermanent(err error) bool {
	var permErr *PermanentError
	return errors.As(err, &permErr)
}
