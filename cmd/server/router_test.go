package main

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/relayq/relayq/internal/api"
	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/config"
	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/notify"
	"github.com/relayq/relayq/internal/queue/memoryqueue"
)

func newTestApplication(t *testing.T) *application {
	t.Helper()

	cfg := &config.Config{
		Server: config.ServerConfig{Port: 8080, LogLevel: "info"},
		Queue: config.QueueConfig{
			Backend:           "memory",
			TenantID:          "default",
			VisibilitySeconds: 30,
			MaxDeliveryCount:  5,
		},
		Dispatcher: config.DispatcherConfig{
			PollIntervalSeconds: 5,
			MaxMessages:         10,
			Provisioner:         "pool",
			WorkerCount:         4,
		},
		Handler: config.HandlerConfig{TimeoutSeconds: 1800},
		Callback: config.CallbackConfig{
			RetryCount:     1,
			TimeoutSeconds: 30,
			Secret:         "thisisasecretkeythatis32charslong!!",
			BaseURL:        "http://localhost:8080",
		},
		Notification: config.NotificationConfig{
			Store:              "memory",
			PollTimeoutSeconds: 1,
			RetentionHours:     24,
		},
	}

	clk := clock.RealClock{}
	store := notify.NewMemoryStore()
	return &application{
		config:      cfg,
		logger:      slog.Default(),
		clk:         clk,
		queueClient: memoryqueue.New(clk, cfg.Queue.MaxDeliveryCount),
		store:       store,
		broker:      notify.NewBroker(store, clk),
	}
}

// Both the canonical poll route and its short alias must serve the same
// handler.
func TestRouterServesPollRoutes(t *testing.T) {
	t.Parallel()

	app := newTestApplication(t)
	_, err := app.broker.Append(context.Background(), "default", domain.NotificationRecord{
		TaskID: "t1",
		Status: domain.NotificationStatusCompleted,
		Result: json.RawMessage(`{"summary":"done"}`),
	})
	require.NoError(t, err)

	router := app.setupRouter()

	for _, path := range []string{"/api/notifications/poll?since_id=0", "/poll?since_id=0"} {
		req := httptest.NewRequest(http.MethodGet, path, nil)
		w := httptest.NewRecorder()
		router.ServeHTTP(w, req)

		require.Equal(t, http.StatusOK, w.Code, "GET %s", path)

		var resp api.PollResponse
		require.NoError(t, json.Unmarshal(w.Body.Bytes(), &resp))
		require.Len(t, resp.Records, 1, "GET %s", path)
		assert.Equal(t, "t1", resp.Records[0].TaskID)
		assert.Equal(t, int64(1), resp.NextSinceID)
	}
}

func TestRouterServesHealth(t *testing.T) {
	t.Parallel()

	router := newTestApplication(t).setupRouter()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "OK", w.Body.String())
}
