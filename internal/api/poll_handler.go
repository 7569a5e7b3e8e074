package api

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"time"

	"github.com/relayq/relayq/internal/api/shared"
	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/notify"
)

// Poller is the read side of the notification broker.
type Poller interface {
	Poll(ctx context.Context, tenantID string, sinceID int64, timeout time.Duration) (notify.PollResult, error)
}

// NotificationResponse represents one notification record in a poll
// response.
type NotificationResponse struct {
	SequenceID int64           `json:"sequence_id"`
	TaskID     string          `json:"task_id"`
	Status     string          `json:"status"`
	Result     json.RawMessage `json:"result,omitempty"`
	Error      string          `json:"error,omitempty"`
	CreatedAt  time.Time       `json:"created_at"`
}

// PollResponse represents the response body for a poll request.
type PollResponse struct {
	Records     []NotificationResponse `json:"records"`
	NextSinceID int64                  `json:"next_since_id"`
}

// PollHandler serves the client-facing long-poll endpoint.
type PollHandler struct {
	broker        Poller
	timeout       time.Duration
	defaultTenant string
	logger        *slog.Logger
}

// NewPollHandler creates a PollHandler blocking up to timeout per
// request. The timeout must stay strictly under the outer
// request-duration ceiling of whatever fronts this server.
func NewPollHandler(broker Poller, timeout time.Duration, defaultTenant string, logger *slog.Logger) *PollHandler {
	return &PollHandler{
		broker:        broker,
		timeout:       timeout,
		defaultTenant: defaultTenant,
		logger:        logger,
	}
}

// Poll handles GET /api/notifications/poll requests. It blocks until a
// record with a sequence ID above since_id arrives or the bounded wait
// elapses, then returns all such records. An empty result is not an
// error; the caller re-polls with the same cursor.
func (h *PollHandler) Poll(w http.ResponseWriter, r *http.Request) {
	tenantID := domain.NormalizeTenantID(r.URL.Query().Get("tenant_id"))
	if tenantID == "" {
		tenantID = h.defaultTenant
	}
	if err := domain.ValidateTenantID(tenantID); err != nil {
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	sinceID := int64(0)
	if raw := r.URL.Query().Get("since_id"); raw != "" {
		parsed, err := strconv.ParseInt(raw, 10, 64)
		if err != nil || parsed < 0 {
			shared.RespondWithError(w, r, http.StatusBadRequest, "since_id must be a non-negative integer")
			return
		}
		sinceID = parsed
	}

	result, err := h.broker.Poll(r.Context(), tenantID, sinceID, h.timeout)
	if err != nil {
		// A closed connection has nobody left to answer.
		if errors.Is(err, context.Canceled) {
			h.logger.Debug("poll abandoned by client", "tenant_id", tenantID)
			return
		}
		h.logger.Error("poll failed", "tenant_id", tenantID, "error", err)
		shared.RespondWithError(w, r, MapErrorToStatusCode(err), GetSafeErrorMessage(err))
		return
	}

	resp := PollResponse{
		Records:     make([]NotificationResponse, 0, len(result.Records)),
		NextSinceID: result.NextSinceID,
	}
	for _, rec := range result.Records {
		resp.Records = append(resp.Records, NotificationResponse{
			SequenceID: rec.SequenceID,
			TaskID:     rec.TaskID,
			Status:     string(rec.Status),
			Result:     rec.Result,
			Error:      rec.Error,
			CreatedAt:  rec.CreatedAt,
		})
	}
	shared.RespondWithJSON(w, r, http.StatusOK, resp)
}
