package redisqueue

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestKeyScheme(t *testing.T) {
	t.Parallel()

	assert.Equal(t, "relayq:acme-tasks:ready", readyKey("acme-tasks"))
	assert.Equal(t, "relayq:acme-tasks:inflight", inFlightKey("acme-tasks"))
	assert.Equal(t, "relayq:acme-tasks:dlq", dlqKey("acme-tasks"))
	assert.Equal(t, "relayq:acme-tasks:deliveries", deliveriesKey("acme-tasks"))
	assert.Equal(t, "relayq:lease:r1", leaseKey("r1"))
}
