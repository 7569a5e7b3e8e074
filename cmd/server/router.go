package main

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"

	"github.com/relayq/relayq/internal/api"
	apiMiddleware "github.com/relayq/relayq/internal/api/middleware"
	"github.com/relayq/relayq/internal/queue"
)

// setupRouter configures the application router with all routes and
// middleware.
func (app *application) setupRouter() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(apiMiddleware.NewTraceMiddleware(app.logger))

	defaultCallback := app.config.Callback.DefaultURL(app.config.Queue.TenantID)
	taskHandler := api.NewTaskHandler(
		app.queueClient,
		queue.DefaultRetryPolicy(),
		app.clk,
		app.config.Queue.TenantID,
		defaultCallback,
		app.logger,
	)
	notifyHandler := api.NewNotifyHandler(app.broker, []byte(app.config.Callback.Secret), app.logger)
	pollHandler := api.NewPollHandler(
		app.broker,
		time.Duration(app.config.Notification.PollTimeoutSeconds)*time.Second,
		app.config.Queue.TenantID,
		app.logger,
	)

	r.Route("/api", func(r chi.Router) {
		r.Post("/tasks", taskHandler.SubmitTask)
		r.Get("/notifications/poll", pollHandler.Poll)
	})

	// Short alias kept for clients that poll the bare path.
	r.Get("/poll", pollHandler.Poll)

	r.Post("/internal/notify/{tenantID}", notifyHandler.ReceiveCallback)

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		if _, err := w.Write([]byte("OK")); err != nil {
			app.logger.Error("Failed to write health check response", "error", err)
		}
	})

	return r
}
