package worker

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/DukeRupert/packs/internal/repository"
)

// JobTypeSendReceipt emails the purchase receipt for a completed order.
const JobTypeSendReceipt = "send_receipt"

// Priority constants for job scheduling
const (
	PriorityLow    = 0
	PriorityNormal = 10
	PriorityHigh   = 20
)

// SendReceiptPayload is the payload for receipt jobs.
type SendReceiptPayload struct {
	OrderID int64 `json:"order_id"`
}

// EnqueueOption customizes job enqueue parameters.
type EnqueueOption func(*repository.EnqueueJobParams)

// WithPriority sets the job priority.
func WithPriority(priority int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.Priority = priority
	}
}

// WithMaxAttempts sets the maximum number of attempts.
func WithMaxAttempts(attempts int32) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.MaxAttempts = attempts
	}
}

// WithDelay schedules the job to run after a delay.
func WithDelay(delay time.Duration) EnqueueOption {
	return func(p *repository.EnqueueJobParams) {
		p.ScheduledAt = time.Now().Add(delay)
	}
}

// NewEnqueueParams marshals payload and applies opts over the defaults.
func NewEnqueueParams(jobType string, payload interface{}, opts ...EnqueueOption) (repository.EnqueueJobParams, error) {
	payloadJSON, err := json.Marshal(payload)
	if err != nil {
		return repository.EnqueueJobParams{}, fmt.Errorf("marshal payload: %w", err)
	}

	params := repository.EnqueueJobParams{
		JobType:     jobType,
		Payload:     payloadJSON,
		Priority:    PriorityNormal,
		MaxAttempts: 5,
		ScheduledAt: time.Now(),
	}
	for _, opt := range opts {
		opt(&params)
	}
	return params, nil
}

// EnqueueJob inserts a job of the given type.
func EnqueueJob(
	ctx context.Context,
	queries *repository.Queries,
	jobType string,
	payload interface{},
	opts ...EnqueueOption,
) (repository.Job, error) {
	params, err := NewEnqueueParams(jobType, payload, opts...)
	if err != nil {
		return repository.Job{}, err
	}

	job, err := queries.EnqueueJob(ctx, params)
	if err != nil {
		return repository.Job{}, fmt.Errorf("enqueue job: %w", err)
	}
	return job, nil
}

// EnqueueSendReceipt queues the purchase receipt for orderID.
func EnqueueSendReceipt(
	ctx context.Context,
	queries *repository.Queries,
	orderID int64,
	opts ...EnqueueOption,
) (repository.Job, error) {
	return EnqueueJob(ctx, queries, JobTypeSendReceipt, SendReceiptPayload{OrderID: orderID}, opts...)
}
