package memoryqueue

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/queue"
)

func newMessage(t *testing.T, tenantID string) *domain.TaskMessage {
	t.Helper()
	msg, err := domain.NewTaskMessage(
		domain.TaskTypeSummarize,
		tenantID,
		json.RawMessage(`{"filename":"report.pdf"}`),
		"https://frontend.example.com/internal/notify",
	)
	require.NoError(t, err)
	return msg
}

func TestEnqueueLeaseDelete(t *testing.T) {
	t.Parallel()

	clk := clock.NewFakeClock(time.Now())
	q := New(clk, 5)
	ctx := context.Background()

	msg := newMessage(t, "acme")
	taskID, err := q.Enqueue(ctx, "acme", msg)
	require.NoError(t, err)
	assert.Equal(t, msg.TaskID, taskID)

	leases, err := q.Lease(ctx, "acme", 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, taskID, leases[0].Message.TaskID)
	assert.Equal(t, 1, leases[0].DeliveryCount)

	require.NoError(t, q.Delete(ctx, leases[0].Receipt))

	// Deleted messages never come back, even after the deadline.
	clk.Advance(time.Minute)
	leases, err = q.Lease(ctx, "acme", 10, 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, leases)
}

// A message that is leased but never deleted becomes leasable again
// after its visibility timeout elapses.
func TestRedeliveryAfterVisibilityTimeout(t *testing.T) {
	t.Parallel()

	clk := clock.NewFakeClock(time.Now())
	q := New(clk, 5)
	ctx := context.Background()

	msg := newMessage(t, "acme")
	_, err := q.Enqueue(ctx, "acme", msg)
	require.NoError(t, err)

	leases, err := q.Lease(ctx, "acme", 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, leases, 1)

	// Invisible while the lease is live.
	leases2, err := q.Lease(ctx, "acme", 1, 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, leases2)

	// Visible again after expiry, with an incremented delivery count.
	clk.Advance(31 * time.Second)
	leases3, err := q.Lease(ctx, "acme", 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, leases3, 1)
	assert.Equal(t, msg.TaskID, leases3[0].Message.TaskID)
	assert.Equal(t, 2, leases3[0].DeliveryCount)

	// The old receipt is dead.
	err = q.Delete(ctx, leases[0].Receipt)
	assert.ErrorIs(t, err, queue.ErrLeaseExpired)
}

func TestRenewExtendsLease(t *testing.T) {
	t.Parallel()

	clk := clock.NewFakeClock(time.Now())
	q := New(clk, 5)
	ctx := context.Background()

	_, err := q.Enqueue(ctx, "acme", newMessage(t, "acme"))
	require.NoError(t, err)

	leases, err := q.Lease(ctx, "acme", 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, leases, 1)

	clk.Advance(20 * time.Second)
	require.NoError(t, q.Renew(ctx, leases[0].Receipt, 30*time.Second))

	// Without the renewal the message would have expired by now.
	clk.Advance(20 * time.Second)
	more, err := q.Lease(ctx, "acme", 1, 30*time.Second)
	require.NoError(t, err)
	assert.Empty(t, more, "renewed message must stay invisible")

	require.NoError(t, q.Delete(ctx, leases[0].Receipt))

	// Renewing after expiry fails.
	err = q.Renew(ctx, leases[0].Receipt, time.Second)
	assert.ErrorIs(t, err, queue.ErrLeaseExpired)
}

func TestTenantIsolation(t *testing.T) {
	t.Parallel()

	clk := clock.NewFakeClock(time.Now())
	q := New(clk, 5)
	ctx := context.Background()

	acmeMsg := newMessage(t, "acme")
	betaMsg := newMessage(t, "beta")
	_, err := q.Enqueue(ctx, "acme", acmeMsg)
	require.NoError(t, err)
	_, err = q.Enqueue(ctx, "beta", betaMsg)
	require.NoError(t, err)

	leases, err := q.Lease(ctx, "acme", 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, acmeMsg.TaskID, leases[0].Message.TaskID,
		"leasing acme's queue must never return beta's message")

	leases, err = q.Lease(ctx, "beta", 10, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, betaMsg.TaskID, leases[0].Message.TaskID)
}

func TestDeadLetterAfterMaxDeliveries(t *testing.T) {
	t.Parallel()

	clk := clock.NewFakeClock(time.Now())
	q := New(clk, 2)
	ctx := context.Background()

	msg := newMessage(t, "acme")
	_, err := q.Enqueue(ctx, "acme", msg)
	require.NoError(t, err)

	// Exhaust the delivery budget without ever deleting.
	for i := 0; i < 2; i++ {
		leases, err := q.Lease(ctx, "acme", 1, time.Second)
		require.NoError(t, err)
		require.Len(t, leases, 1, "delivery %d should succeed", i+1)
		clk.Advance(2 * time.Second)
	}

	leases, err := q.Lease(ctx, "acme", 1, time.Second)
	require.NoError(t, err)
	assert.Empty(t, leases, "message past its delivery budget must not redeliver")

	dead, err := q.DeadLetters(ctx, "acme")
	require.NoError(t, err)
	require.Len(t, dead, 1)
	assert.Equal(t, msg.TaskID, dead[0].TaskID)
}

func TestOversizedEnqueueRejected(t *testing.T) {
	t.Parallel()

	q := New(clock.RealClock{}, 5)
	msg := newMessage(t, "acme")
	big := make([]byte, queue.MaxMessageBytes)
	for i := range big {
		big[i] = 'a'
	}
	payload, err := json.Marshal(map[string]string{"blob": string(big)})
	require.NoError(t, err)
	msg.Payload = payload

	_, err = q.Enqueue(context.Background(), "acme", msg)
	require.ErrorIs(t, err, queue.ErrSizeExceeded)
}

func TestUnavailableSurfacesTransportError(t *testing.T) {
	t.Parallel()

	q := New(clock.RealClock{}, 5)
	q.SetUnavailable(true)

	_, err := q.Enqueue(context.Background(), "acme", newMessage(t, "acme"))
	assert.ErrorIs(t, err, queue.ErrUnavailable)

	_, err = q.Lease(context.Background(), "acme", 1, time.Second)
	assert.ErrorIs(t, err, queue.ErrUnavailable)
}

func TestLeaseBatchBound(t *testing.T) {
	t.Parallel()

	clk := clock.NewFakeClock(time.Now())
	q := New(clk, 5)
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := q.Enqueue(ctx, "acme", newMessage(t, "acme"))
		require.NoError(t, err)
	}

	leases, err := q.Lease(ctx, "acme", 3, 30*time.Second)
	require.NoError(t, err)
	assert.Len(t, leases, 3, "lease must respect the per-tick batch limit")

	rest, err := q.Lease(ctx, "acme", 10, 30*time.Second)
	require.NoError(t, err)
	assert.Len(t, rest, 2, "remaining messages are picked up on the next call")
}
