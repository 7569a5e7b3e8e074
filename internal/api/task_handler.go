package api

import (
	"encoding/json"
	"log/slog"
	"net/http"

	"github.com/relayq/relayq/internal/api/shared"
	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/queue"
)

// SubmitTaskRequest represents the request body for submitting a task.
type SubmitTaskRequest struct {
	TaskType    string          `json:"task_type"    validate:"required"`
	TenantID    string          `json:"tenant_id"`
	Payload     json.RawMessage `json:"payload"      validate:"required"`
	CallbackURL string          `json:"callback_url"`
}

// SubmitTaskResponse represents the response for an accepted task.
type SubmitTaskResponse struct {
	TaskID string `json:"task_id"`
}

// TaskHandler handles task submission requests.
type TaskHandler struct {
	client          queue.Client
	retry           queue.RetryPolicy
	clk             clock.Clock
	defaultTenant   string
	defaultCallback string
	logger          *slog.Logger
}

// NewTaskHandler creates a TaskHandler. Requests without a tenant or
// callback URL fall back to the given defaults.
func NewTaskHandler(
	client queue.Client,
	retry queue.RetryPolicy,
	clk clock.Clock,
	defaultTenant string,
	defaultCallback string,
	logger *slog.Logger,
) *TaskHandler {
	return &TaskHandler{
		client:          client,
		retry:           retry,
		clk:             clk,
		defaultTenant:   defaultTenant,
		defaultCallback: defaultCallback,
		logger:          logger,
	}
}

// SubmitTask handles POST /api/tasks requests. Accepted tasks get a
// 202 with the task ID; the work itself happens asynchronously and its
// outcome arrives through the notification channel.
func (h *TaskHandler) SubmitTask(w http.ResponseWriter, r *http.Request) {
	var req SubmitTaskRequest
	if err := shared.DecodeJSON(r, &req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid request format")
		return
	}
	if err := shared.ValidateRequest(req); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Validation error: "+err.Error())
		return
	}

	tenantID := req.TenantID
	if tenantID == "" {
		tenantID = h.defaultTenant
	}
	callbackURL := req.CallbackURL
	if callbackURL == "" {
		callbackURL = h.defaultCallback
	}

	msg, err := domain.NewTaskMessage(domain.TaskType(req.TaskType), tenantID, req.Payload, callbackURL)
	if err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	// Transport errors are retried with backoff before giving up.
	err = h.retry.Do(r.Context(), h.clk, func() error {
		_, enqErr := h.client.Enqueue(r.Context(), msg.TenantID, msg)
		return enqErr
	})
	if err != nil {
		h.logger.Error("failed to enqueue task",
			"task_id", msg.TaskID,
			"task_type", msg.TaskType,
			"tenant_id", msg.TenantID,
			"error", err)
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	h.logger.Info("task accepted",
		"task_id", msg.TaskID,
		"task_type", msg.TaskType,
		"tenant_id", msg.TenantID)
	shared.RespondWithJSON(w, r, http.StatusAccepted, SubmitTaskResponse{TaskID: msg.TaskID})
}
