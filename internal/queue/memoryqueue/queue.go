// Package memoryqueue provides an in-memory queue.Client with real
// visibility-timeout semantics. It backs single-process deployments and
// unit tests; paired with a fake clock, redelivery behavior can be
// exercised without waiting on wall-clock time.
package memoryqueue

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/queue"
)

// storedMessage is a queued message plus its redelivery bookkeeping.
type storedMessage struct {
	body          string
	taskID        string
	deliveryCount int
}

// leaseState tracks an in-flight message until its deadline.
type leaseState struct {
	msg      *storedMessage
	tenantID string
	receipt  string
	deadline time.Time
}

// tenantState holds one tenant's queues. Tenants are fully independent.
type tenantState struct {
	pending  []*storedMessage
	inFlight map[string]*leaseState // receipt → lease
	dead     []*storedMessage
}

// Queue is an in-memory queue.Client. All state is guarded by a single
// mutex; expired leases are reclaimed lazily on the next Lease call,
// which keeps redelivery deterministic under a fake clock.
type Queue struct {
	mu          sync.Mutex
	clk         clock.Clock
	maxDelivery int
	tenants     map[string]*tenantState
	leases      map[string]*leaseState // receipt → lease, across tenants
	unavailable bool
}

// New creates an empty in-memory queue. maxDelivery bounds redelivery;
// a message leased more than maxDelivery times is dead-lettered.
func New(clk clock.Clock, maxDelivery int) *Queue {
	return &Queue{
		clk:         clk,
		maxDelivery: maxDelivery,
		tenants:     make(map[string]*tenantState),
		leases:      make(map[string]*leaseState),
	}
}

// SetUnavailable toggles simulated transport failure. While set, every
// operation returns queue.ErrUnavailable. Used by tests to exercise
// caller backoff.
func (q *Queue) SetUnavailable(down bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.unavailable = down
}

func (q *Queue) tenant(tenantID string) *tenantState {
	t, ok := q.tenants[tenantID]
	if !ok {
		t = &tenantState{inFlight: make(map[string]*leaseState)}
		q.tenants[tenantID] = t
	}
	return t
}

// Enqueue serializes the message and appends it to the tenant's queue.
func (q *Queue) Enqueue(ctx context.Context, tenantID string, msg *domain.TaskMessage) (string, error) {
	body, err := queue.Encode(msg)
	if err != nil {
		return "", err
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unavailable {
		return "", queue.ErrUnavailable
	}

	t := q.tenant(tenantID)
	t.pending = append(t.pending, &storedMessage{body: body, taskID: msg.TaskID})
	return msg.TaskID, nil
}

// Lease reclaims expired leases, then hands out up to maxMessages
// pending messages with fresh receipts and visibility deadlines.
func (q *Queue) Lease(
	ctx context.Context,
	tenantID string,
	maxMessages int,
	visibility time.Duration,
) ([]queue.Lease, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unavailable {
		return nil, queue.ErrUnavailable
	}

	t := q.tenant(tenantID)
	now := q.clk.Now()
	q.reclaimExpired(t, now)

	var leases []queue.Lease
	for len(t.pending) > 0 && len(leases) < maxMessages {
		msg := t.pending[0]
		t.pending = t.pending[1:]

		msg.deliveryCount++
		if msg.deliveryCount > q.maxDelivery {
			t.dead = append(t.dead, msg)
			continue
		}

		decoded, err := queue.Decode(msg.body)
		if err != nil {
			// Undecodable messages cannot be processed; park them for
			// inspection rather than redelivering forever.
			t.dead = append(t.dead, msg)
			continue
		}

		ls := &leaseState{
			msg:      msg,
			tenantID: tenantID,
			receipt:  uuid.New().String(),
			deadline: now.Add(visibility),
		}
		t.inFlight[ls.receipt] = ls
		q.leases[ls.receipt] = ls

		leases = append(leases, queue.Lease{
			Message:       decoded,
			Receipt:       ls.receipt,
			Deadline:      ls.deadline,
			DeliveryCount: msg.deliveryCount,
		})
	}

	return leases, nil
}

// reclaimExpired returns expired in-flight messages to the pending
// queue and invalidates their receipts. Caller holds the lock.
func (q *Queue) reclaimExpired(t *tenantState, now time.Time) {
	for receipt, ls := range t.inFlight {
		if !ls.deadline.After(now) {
			delete(t.inFlight, receipt)
			delete(q.leases, receipt)
			t.pending = append(t.pending, ls.msg)
		}
	}
}

// Renew extends the visibility deadline of an unexpired lease.
func (q *Queue) Renew(ctx context.Context, receipt string, extra time.Duration) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unavailable {
		return queue.ErrUnavailable
	}

	ls, ok := q.leases[receipt]
	if !ok || !ls.deadline.After(q.clk.Now()) {
		return queue.ErrLeaseExpired
	}

	ls.deadline = q.clk.Now().Add(extra)
	return nil
}

// Delete permanently removes a leased message. After lease expiry the
// receipt is invalid and the message will redeliver.
func (q *Queue) Delete(ctx context.Context, receipt string) error {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unavailable {
		return queue.ErrUnavailable
	}

	ls, ok := q.leases[receipt]
	if !ok || !ls.deadline.After(q.clk.Now()) {
		return queue.ErrLeaseExpired
	}

	delete(q.leases, receipt)
	delete(q.tenants[ls.tenantID].inFlight, receipt)
	return nil
}

// DeadLetters returns the decoded messages parked on the tenant's
// dead-letter queue. Messages that failed to decode are skipped.
func (q *Queue) DeadLetters(ctx context.Context, tenantID string) ([]*domain.TaskMessage, error) {
	q.mu.Lock()
	defer q.mu.Unlock()

	if q.unavailable {
		return nil, queue.ErrUnavailable
	}

	t := q.tenant(tenantID)
	var msgs []*domain.TaskMessage
	for _, m := range t.dead {
		decoded, err := queue.Decode(m.body)
		if err != nil {
			continue
		}
		msgs = append(msgs, decoded)
	}
	return msgs, nil
}

var _ queue.Client = (*Queue)(nil)
