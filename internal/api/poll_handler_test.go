package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/notify"
)

func newPollFixture(t *testing.T) (*notify.Broker, *PollHandler) {
	t.Helper()
	broker := notify.NewBroker(notify.NewMemoryStore(), clock.RealClock{})
	return broker, NewPollHandler(broker, 50*time.Millisecond, "acme", slog.Default())
}

func doPoll(h *PollHandler, target string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, target, nil)
	w := httptest.NewRecorder()
	h.Poll(w, req)
	return w
}

func TestPollReturnsExistingRecords(t *testing.T) {
	t.Parallel()

	broker, h := newPollFixture(t)
	_, err := broker.Append(context.Background(), "acme", domain.NotificationRecord{
		TaskID: "t1",
		Status: domain.NotificationStatusCompleted,
		Result: json.RawMessage(`{"summary":"done"}`),
	})
	require.NoError(t, err)

	w := doPoll(h, "/api/notifications/poll?since_id=0")
	require.Equal(t, http.StatusOK, w.Code)

	var resp PollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "t1", resp.Records[0].TaskID)
	assert.Equal(t, int64(1), resp.Records[0].SequenceID)
	assert.Equal(t, int64(1), resp.NextSinceID)
}

func TestPollCursorExcludesSeenRecords(t *testing.T) {
	t.Parallel()

	broker, h := newPollFixture(t)
	for _, id := range []string{"t1", "t2"} {
		_, err := broker.Append(context.Background(), "acme", domain.NotificationRecord{
			TaskID: id,
			Status: domain.NotificationStatusCompleted,
		})
		require.NoError(t, err)
	}

	w := doPoll(h, "/api/notifications/poll?since_id=1")
	require.Equal(t, http.StatusOK, w.Code)

	var resp PollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	require.Len(t, resp.Records, 1)
	assert.Equal(t, "t2", resp.Records[0].TaskID)
	assert.Equal(t, int64(2), resp.NextSinceID)
}

func TestPollTimesOutWithEmptyRecordList(t *testing.T) {
	t.Parallel()

	_, h := newPollFixture(t)

	start := time.Now()
	w := doPoll(h, "/api/notifications/poll?since_id=0")
	require.Equal(t, http.StatusOK, w.Code)
	assert.Less(t, time.Since(start), time.Second, "the wait must be bounded")

	var resp PollResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotNil(t, resp.Records)
	assert.Empty(t, resp.Records)
	assert.Equal(t, int64(0), resp.NextSinceID, "the cursor must not move on an empty poll")

	// The wire form must carry an empty array, not null, so clients can
	// iterate without a nil check.
	assert.Contains(t, w.Body.String(), `"records":[]`)
}

func TestPollRejectsMalformedCursor(t *testing.T) {
	t.Parallel()

	_, h := newPollFixture(t)
	assert.Equal(t, http.StatusBadRequest, doPoll(h, "/api/notifications/poll?since_id=abc").Code)
	assert.Equal(t, http.StatusBadRequest, doPoll(h, "/api/notifications/poll?since_id=-3").Code)
}

func TestPollRejectsInvalidTenant(t *testing.T) {
	t.Parallel()

	_, h := newPollFixture(t)
	w := doPoll(h, "/api/notifications/poll?tenant_id=bad%20tenant")
	assert.Equal(t, http.StatusBadRequest, w.Code)
}
