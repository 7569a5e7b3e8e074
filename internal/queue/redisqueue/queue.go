// Package redisqueue provides the Redis-backed queue.Client used in
// production deployments. Each tenant queue is a ready list plus an
// in-flight sorted set scored by visibility deadline; leases are
// receipt-keyed hashes checked atomically with Lua so a stale receipt
// can never delete or renew a redelivered message.
package redisqueue

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/queue"
)

const keyPrefix = "relayq:"

func readyKey(queueName string) string {
	return keyPrefix + queueName + ":ready"
}

func inFlightKey(queueName string) string {
	return keyPrefix + queueName + ":inflight"
}

func dlqKey(queueName string) string {
	return keyPrefix + queueName + ":dlq"
}

func deliveriesKey(queueName string) string {
	return keyPrefix + queueName + ":deliveries"
}

func leaseKey(receipt string) string {
	return keyPrefix + "lease:" + receipt
}

// renewScript extends the deadline only while the receipt is still in
// flight and unexpired.
var renewScript = redis.NewScript(`
	local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
	if score and tonumber(score) > tonumber(ARGV[2]) then
		redis.call('ZADD', KEYS[1], ARGV[3], ARGV[1])
		return 1
	end
	return 0
`)

// deleteScript removes the message only while the receipt is still in
// flight and unexpired, and clears its delivery counter.
var deleteScript = redis.NewScript(`
	local score = redis.call('ZSCORE', KEYS[1], ARGV[1])
	if score and tonumber(score) > tonumber(ARGV[2]) then
		redis.call('ZREM', KEYS[1], ARGV[1])
		redis.call('DEL', KEYS[2])
		redis.call('HDEL', KEYS[3], ARGV[3])
		return 1
	end
	return 0
`)

// Queue is a Redis-backed queue.Client.
type Queue struct {
	rdb         *redis.Client
	clk         clock.Clock
	maxDelivery int
}

// New creates a Redis queue client. maxDelivery bounds redelivery
// before a message is parked on the tenant dead-letter list.
func New(rdb *redis.Client, clk clock.Clock, maxDelivery int) *Queue {
	return &Queue{rdb: rdb, clk: clk, maxDelivery: maxDelivery}
}

// transportErr folds a redis error into the queue taxonomy so callers
// can retry on ErrUnavailable without knowing the backend.
func transportErr(op string, err error) error {
	return fmt.Errorf("%w: %s: %v", queue.ErrUnavailable, op, err)
}

// Enqueue serializes the message and pushes it onto the tenant's ready
// list. RPUSH keeps best-effort FIFO order with LPOP on the consumer
// side.
func (q *Queue) Enqueue(ctx context.Context, tenantID string, msg *domain.TaskMessage) (string, error) {
	body, err := queue.Encode(msg)
	if err != nil {
		return "", err
	}

	qn := domain.QueueName(tenantID)
	if err := q.rdb.RPush(ctx, readyKey(qn), body).Err(); err != nil {
		return "", transportErr("enqueue", err)
	}
	return msg.TaskID, nil
}

// Lease reclaims expired in-flight messages, then claims up to
// maxMessages from the ready list.
func (q *Queue) Lease(
	ctx context.Context,
	tenantID string,
	maxMessages int,
	visibility time.Duration,
) ([]queue.Lease, error) {
	qn := domain.QueueName(tenantID)
	now := q.clk.Now()

	if err := q.reclaimExpired(ctx, qn, now); err != nil {
		return nil, err
	}

	var leases []queue.Lease
	for len(leases) < maxMessages {
		body, err := q.rdb.LPop(ctx, readyKey(qn)).Result()
		if errors.Is(err, redis.Nil) {
			break
		}
		if err != nil {
			return leases, transportErr("lease", err)
		}

		msg, err := queue.Decode(body)
		if err != nil {
			// Undecodable messages go straight to the dead-letter list.
			_ = q.rdb.RPush(ctx, dlqKey(qn), body).Err()
			continue
		}

		deliveries, err := q.rdb.HIncrBy(ctx, deliveriesKey(qn), msg.TaskID, 1).Result()
		if err != nil {
			return leases, transportErr("lease", err)
		}
		if deliveries > int64(q.maxDelivery) {
			pipe := q.rdb.TxPipeline()
			pipe.RPush(ctx, dlqKey(qn), body)
			pipe.HDel(ctx, deliveriesKey(qn), msg.TaskID)
			if _, err := pipe.Exec(ctx); err != nil {
				return leases, transportErr("dead-letter", err)
			}
			continue
		}

		receipt := uuid.New().String()
		deadline := now.Add(visibility)

		pipe := q.rdb.TxPipeline()
		pipe.HSet(ctx, leaseKey(receipt), "queue", qn, "body", body, "task_id", msg.TaskID)
		pipe.ZAdd(ctx, inFlightKey(qn), redis.Z{
			Score:  float64(deadline.UnixMilli()),
			Member: receipt,
		})
		if _, err := pipe.Exec(ctx); err != nil {
			// Put the message back so it is not lost mid-claim.
			_ = q.rdb.LPush(ctx, readyKey(qn), body).Err()
			return leases, transportErr("lease", err)
		}

		leases = append(leases, queue.Lease{
			Message:       msg,
			Receipt:       receipt,
			Deadline:      deadline,
			DeliveryCount: int(deliveries),
		})
	}

	return leases, nil
}

// reclaimExpired moves messages whose visibility deadline has passed
// from the in-flight set back onto the ready list.
func (q *Queue) reclaimExpired(ctx context.Context, queueName string, now time.Time) error {
	expired, err := q.rdb.ZRangeByScore(ctx, inFlightKey(queueName), &redis.ZRangeBy{
		Min: "-inf",
		Max: fmt.Sprintf("%d", now.UnixMilli()),
	}).Result()
	if err != nil {
		return transportErr("reclaim", err)
	}

	for _, receipt := range expired {
		body, err := q.rdb.HGet(ctx, leaseKey(receipt), "body").Result()
		if err != nil && !errors.Is(err, redis.Nil) {
			return transportErr("reclaim", err)
		}

		pipe := q.rdb.TxPipeline()
		if err == nil {
			pipe.LPush(ctx, readyKey(queueName), body)
		}
		pipe.ZRem(ctx, inFlightKey(queueName), receipt)
		pipe.Del(ctx, leaseKey(receipt))
		if _, err := pipe.Exec(ctx); err != nil {
			return transportErr("reclaim", err)
		}
	}
	return nil
}

// Renew extends the visibility deadline of an unexpired lease.
func (q *Queue) Renew(ctx context.Context, receipt string, extra time.Duration) error {
	qn, err := q.rdb.HGet(ctx, leaseKey(receipt), "queue").Result()
	if errors.Is(err, redis.Nil) {
		return queue.ErrLeaseExpired
	}
	if err != nil {
		return transportErr("renew", err)
	}

	now := q.clk.Now()
	ok, err := renewScript.Run(ctx, q.rdb,
		[]string{inFlightKey(qn)},
		receipt, now.UnixMilli(), now.Add(extra).UnixMilli(),
	).Int()
	if err != nil {
		return transportErr("renew", err)
	}
	if ok != 1 {
		return queue.ErrLeaseExpired
	}
	return nil
}

// Delete permanently removes a leased message while the lease holds.
func (q *Queue) Delete(ctx context.Context, receipt string) error {
	fields, err := q.rdb.HGetAll(ctx, leaseKey(receipt)).Result()
	if err != nil {
		return transportErr("delete", err)
	}
	qn, hasQueue := fields["queue"]
	if !hasQueue {
		return queue.ErrLeaseExpired
	}

	ok, err := deleteScript.Run(ctx, q.rdb,
		[]string{inFlightKey(qn), leaseKey(receipt), deliveriesKey(qn)},
		receipt, q.clk.Now().UnixMilli(), fields["task_id"],
	).Int()
	if err != nil {
		return transportErr("delete", err)
	}
	if ok != 1 {
		return queue.ErrLeaseExpired
	}
	return nil
}

// DeadLetters returns the decoded messages on the tenant's dead-letter
// list.
func (q *Queue) DeadLetters(ctx context.Context, tenantID string) ([]*domain.TaskMessage, error) {
	qn := domain.QueueName(tenantID)
	bodies, err := q.rdb.LRange(ctx, dlqKey(qn), 0, -1).Result()
	if err != nil {
		return nil, transportErr("dead-letters", err)
	}

	var msgs []*domain.TaskMessage
	for _, body := range bodies {
		msg, err := queue.Decode(body)
		if err != nil {
			continue
		}
		msgs = append(msgs, msg)
	}
	return msgs, nil
}

var _ queue.Client = (*Queue)(nil)
