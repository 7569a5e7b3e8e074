// Package queue defines the contract for the durable, at-least-once
// task queue the pipeline is built on: enqueue, lease with visibility
// timeout, lease renewal, and delete. Implementations live in the
// memoryqueue and redisqueue subpackages.
package queue

import (
	"context"
	"errors"
	"time"

	"github.com/relayq/relayq/internal/domain"
)

// MaxMessageBytes is the hard ceiling on a serialized task message.
// It matches the 64KB limit of the cloud queue backends this
// abstraction targets; larger payloads must be passed by reference.
const MaxMessageBytes = 64 * 1024

// Common errors returned by queue clients.
var (
	// ErrSizeExceeded is returned by Enqueue when the serialized message
	// is over MaxMessageBytes. The message is never truncated.
	ErrSizeExceeded = errors.New("message exceeds size ceiling")

	// ErrUnavailable is returned on transport failure. Callers may retry
	// with backoff.
	ErrUnavailable = errors.New("queue unavailable")

	// ErrLeaseExpired is returned by Renew and Delete when the receipt
	// no longer holds the message, typically because the visibility
	// timeout elapsed and the message was redelivered.
	ErrLeaseExpired = errors.New("lease expired or receipt invalid")
)

// Lease is the ephemeral ownership of a dequeued message. The receipt
// token is required to renew or delete; once the deadline passes
// without a renewal the message becomes visible to other consumers
// again.
type Lease struct {
	Message       *domain.TaskMessage
	Receipt       string
	Deadline      time.Time
	DeliveryCount int
}

// Client is the queue abstraction the dispatcher and the front door
// share. Per-tenant isolation is part of the contract: a lease against
// one tenant never returns another tenant's message.
type Client interface {
	// Enqueue serializes the message and writes it to the tenant's
	// queue, returning the task ID. Fails with ErrSizeExceeded when the
	// serialized form is over the ceiling and ErrUnavailable on
	// transport error.
	Enqueue(ctx context.Context, tenantID string, msg *domain.TaskMessage) (string, error)

	// Lease returns up to maxMessages leased messages from the tenant's
	// queue. Ordering is best-effort FIFO only. A message whose delivery
	// count would exceed the backend's max-delivery bound is moved to
	// the dead-letter queue instead of being returned.
	Lease(ctx context.Context, tenantID string, maxMessages int, visibility time.Duration) ([]Lease, error)

	// Renew extends the visibility deadline of a leased message. Long
	// handlers must call it before the current lease expires or risk
	// duplicate execution.
	Renew(ctx context.Context, receipt string, extra time.Duration) error

	// Delete permanently removes a leased message. Only valid while the
	// lease is unexpired.
	Delete(ctx context.Context, receipt string) error

	// DeadLetters returns the messages parked on the tenant's
	// dead-letter queue for inspection.
	DeadLetters(ctx context.Context, tenantID string) ([]*domain.TaskMessage, error)
}
