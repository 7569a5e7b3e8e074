package api

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/relayq/relayq/internal/api/shared"
	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/notify"
)

// maxCallbackBody bounds the callback request body. Results ride in
// queue messages upstream, so anything past the queue ceiling is
// already suspect.
const maxCallbackBody = 1 << 20

// Appender is the write side of the notification broker.
type Appender interface {
	Append(ctx context.Context, tenantID string, rec domain.NotificationRecord) (int64, error)
}

// NotifyHandler receives signed completion callbacks from execution
// units and appends them to the tenant's notification stream.
type NotifyHandler struct {
	broker Appender
	secret []byte
	logger *slog.Logger
}

// NewNotifyHandler creates a NotifyHandler verifying callbacks against
// the shared secret.
func NewNotifyHandler(broker Appender, secret []byte, logger *slog.Logger) *NotifyHandler {
	return &NotifyHandler{
		broker: broker,
		secret: secret,
		logger: logger,
	}
}

// ReceiveCallback handles POST /internal/notify/{tenantID} requests.
// The body is the completion envelope posted by the notification sink;
// its signature header must verify against the shared secret before
// anything is written.
func (h *NotifyHandler) ReceiveCallback(w http.ResponseWriter, r *http.Request) {
	tenantID := domain.NormalizeTenantID(chi.URLParam(r, "tenantID"))
	if err := domain.ValidateTenantID(tenantID); err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	body, err := io.ReadAll(http.MaxBytesReader(w, r.Body, maxCallbackBody))
	if err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Failed to read request body")
		return
	}

	signature := r.Header.Get(notify.SignatureHeader)
	if err := notify.VerifyBody(h.secret, signature, body); err != nil {
		h.logger.Warn("rejected callback with bad signature",
			"tenant_id", tenantID,
			"error", err)
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	var completion notify.Completion
	if err := json.Unmarshal(body, &completion); err != nil {
		shared.RespondWithError(w, r, http.StatusBadRequest, "Invalid callback body")
		return
	}

	rec := domain.NotificationRecord{
		TaskID: completion.TaskID,
		Status: completion.Status,
		Result: completion.Result,
	}
	if completion.Error != nil {
		rec.Error = *completion.Error
	}

	seq, err := h.broker.Append(r.Context(), tenantID, rec)
	if err != nil {
		h.logger.Error("failed to append notification record",
			"tenant_id", tenantID,
			"task_id", completion.TaskID,
			"error", err)
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	h.logger.Info("notification recorded",
		"tenant_id", tenantID,
		"task_id", completion.TaskID,
		"status", completion.Status,
		"sequence_id", seq)
	w.WriteHeader(http.StatusNoContent)
}
