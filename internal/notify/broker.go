package notify

import (
	"context"
	"sync"
	"time"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/domain"
)

// PollResult is what a single long-poll returns: the records found (in
// sequence order, possibly empty) and whether the wait ended because
// the deadline was hit rather than because records arrived.
type PollResult struct {
	Records     []domain.NotificationRecord
	NextSinceID int64
	DeadlineHit bool
}

// Broker couples the notification store with a per-tenant wake signal
// so a long-poll blocks on new appends instead of sleeping in a check
// loop. Appends go through the broker so every waiter is woken exactly
// when a record lands.
type Broker struct {
	store Store
	clk   clock.Clock

	mu    sync.Mutex
	wakes map[string]chan struct{}
}

// NewBroker creates a Broker over the given store.
func NewBroker(store Store, clk clock.Clock) *Broker {
	return &Broker{
		store: store,
		clk:   clk,
		wakes: make(map[string]chan struct{}),
	}
}

// Append writes the record and wakes every poller waiting on the
// tenant.
func (b *Broker) Append(
	ctx context.Context,
	tenantID string,
	rec domain.NotificationRecord,
) (int64, error) {
	seq, err := b.store.Append(ctx, tenantID, rec)
	if err != nil {
		return 0, err
	}

	b.mu.Lock()
	if ch, ok := b.wakes[tenantID]; ok {
		close(ch)
		delete(b.wakes, tenantID)
	}
	b.mu.Unlock()

	return seq, nil
}

// wakeChan returns the channel the next append to the tenant will
// close.
func (b *Broker) wakeChan(tenantID string) <-chan struct{} {
	b.mu.Lock()
	defer b.mu.Unlock()

	ch, ok := b.wakes[tenantID]
	if !ok {
		ch = make(chan struct{})
		b.wakes[tenantID] = ch
	}
	return ch
}

// Poll returns all records with sequence ID greater than sinceID,
// blocking up to timeout for the first one to arrive. Hitting the
// deadline is not an error: the result is empty with DeadlineHit set
// and the caller re-polls with the same cursor. The wait ends
// immediately when ctx is cancelled (client disconnect).
func (b *Broker) Poll(
	ctx context.Context,
	tenantID string,
	sinceID int64,
	timeout time.Duration,
) (PollResult, error) {
	deadline := b.clk.After(timeout)

	for {
		// Arm the wake signal before checking the store so an append
		// between the check and the wait cannot be missed.
		wake := b.wakeChan(tenantID)

		recs, err := b.store.Since(ctx, tenantID, sinceID)
		if err != nil {
			return PollResult{}, err
		}
		if len(recs) > 0 {
			return PollResult{
				Records:     recs,
				NextSinceID: recs[len(recs)-1].SequenceID,
			}, nil
		}

		select {
		case <-ctx.Done():
			return PollResult{}, ctx.Err()
		case <-deadline:
			return PollResult{NextSinceID: sinceID, DeadlineHit: true}, nil
		case <-wake:
		}
	}
}
