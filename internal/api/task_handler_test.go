package api

import (
	"bytes"
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
	"github.com/relayq/relayq/internal/queue"
	"github.com/relayq/relayq/internal/queue/memoryqueue"
)

const testCallbackURL = "https://frontend.example.com/internal/notify/acme"

func newTaskHandler(q queue.Client) *TaskHandler {
	// A single attempt keeps unavailability tests from sleeping in
	// backoff.
	retry := queue.RetryPolicy{Attempts: 1, BaseDelay: time.Millisecond, MaxDelay: time.Millisecond}
	return NewTaskHandler(q, retry, clock.RealClock{}, "acme", testCallbackURL, slog.Default())
}

func submitTask(t *testing.T, h *TaskHandler, body any) *httptest.ResponseRecorder {
	t.Helper()
	raw, err := json.Marshal(body)
	require.NoError(t, err)

	req := httptest.NewRequest(http.MethodPost, "/api/tasks", bytes.NewReader(raw))
	w := httptest.NewRecorder()
	h.SubmitTask(w, req)
	return w
}

func TestSubmitTaskAccepted(t *testing.T) {
	t.Parallel()

	clk := clock.NewFakeClock(time.Now())
	q := memoryqueue.New(clk, 5)
	h := newTaskHandler(q)

	w := submitTask(t, h, map[string]any{
		"task_type": "summarize",
		"tenant_id": "acme",
		"payload":   map[string]any{"filename": "report.pdf"},
	})

	require.Equal(t, http.StatusAccepted, w.Code)
	var resp SubmitTaskResponse
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
	assert.NotEmpty(t, resp.TaskID)

	// The message must be waiting on the tenant's queue.
	leases, err := q.Lease(context.Background(), "acme", 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, resp.TaskID, leases[0].Message.TaskID)
}

func TestSubmitTaskRejectsUnknownTaskType(t *testing.T) {
	t.Parallel()

	q := memoryqueue.New(clock.NewFakeClock(time.Now()), 5)
	w := submitTask(t, newTaskHandler(q), map[string]any{
		"task_type": "transcode",
		"payload":   map[string]any{"filename": "a.mp4"},
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitTaskRejectsMissingPayload(t *testing.T) {
	t.Parallel()

	q := memoryqueue.New(clock.NewFakeClock(time.Now()), 5)
	w := submitTask(t, newTaskHandler(q), map[string]any{
		"task_type": "summarize",
	})
	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestSubmitTaskRejectsOversizedPayload(t *testing.T) {
	t.Parallel()

	q := memoryqueue.New(clock.NewFakeClock(time.Now()), 5)
	big := bytes.Repeat([]byte("x"), queue.MaxMessageBytes)
	w := submitTask(t, newTaskHandler(q), map[string]any{
		"task_type": "summarize",
		"payload":   map[string]any{"inline": string(big)},
	})
	assert.Equal(t, http.StatusRequestEntityTooLarge, w.Code)
}

func TestSubmitTaskQueueUnavailable(t *testing.T) {
	t.Parallel()

	q := memoryqueue.New(clock.NewFakeClock(time.Now()), 5)
	q.SetUnavailable(true)
	w := submitTask(t, newTaskHandler(q), map[string]any{
		"task_type": "summarize",
		"payload":   map[string]any{"filename": "report.pdf"},
	})
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
}

func TestSubmitTaskDefaultsTenantAndCallback(t *testing.T) {
	t.Parallel()

	q := memoryqueue.New(clock.NewFakeClock(time.Now()), 5)
	w := submitTask(t, newTaskHandler(q), map[string]any{
		"task_type": "ingest",
		"payload":   map[string]any{"filename": "report.pdf"},
	})
	require.Equal(t, http.StatusAccepted, w.Code)

	leases, err := q.Lease(context.Background(), "acme", 1, 30*time.Second)
	require.NoError(t, err)
	require.Len(t, leases, 1)
	assert.Equal(t, "acme", leases[0].Message.TenantID)
	assert.Equal(t, testCallbackURL, leases[0].Message.CallbackURL)
}
