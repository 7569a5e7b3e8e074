package notify

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/domain"
)

// Completion is the JSON envelope posted to the task's callback URL.
type Completion struct {
	TaskID string                    `json:"task_id"`
	Status domain.NotificationStatus `json:"status"`
	Result json.RawMessage           `json:"result"`
	Error  *string                   `json:"error"`
}

// SinkConfig holds the callback delivery settings.
type SinkConfig struct {
	// Attempts is the total number of delivery attempts before the
	// notification is abandoned.
	Attempts int

	// AttemptTimeout bounds a single HTTP attempt. It is deliberately
	// short and independent of the handler timeout.
	AttemptTimeout time.Duration

	// BaseDelay and MaxDelay shape the backoff between attempts:
	// BaseDelay * 2^attempt, capped at MaxDelay.
	BaseDelay time.Duration
	MaxDelay  time.Duration

	// Secret signs each callback body.
	Secret []byte
}

// DefaultSinkConfig returns the default delivery settings: three
// attempts, 30s per attempt, 1s backoff base capped at 10s.
func DefaultSinkConfig(secret []byte) SinkConfig {
	return SinkConfig{
		Attempts:       3,
		AttemptTimeout: 30 * time.Second,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		Secret:         secret,
	}
}

// Sink posts completion callbacks with retry and backoff. It holds no
// state between invocations; an exhausted retry budget is logged and
// abandoned. By the time the sink runs, the queue message has already
// been handled, so a lost callback is a notification gap rather than a
// lost task. Operators monitoring callback failures should watch for
// the "abandoning completion callback" log line.
type Sink struct {
	cfg    SinkConfig
	client *http.Client
	clk    clock.Clock
	logger *slog.Logger
}

// NewSink creates a Sink. The clock is injectable so tests can advance
// backoff delays without sleeping.
func NewSink(cfg SinkConfig, clk clock.Clock, logger *slog.Logger) *Sink {
	return &Sink{
		cfg:    cfg,
		client: &http.Client{Timeout: cfg.AttemptTimeout},
		clk:    clk,
		logger: logger.With("component", "notification_sink"),
	}
}

// Send posts the completion to the callback URL, retrying on any
// non-2xx response or transport error. Returns the last error when all
// attempts fail; callers treat that as a delivery gap, never as a task
// failure.
func (s *Sink) Send(ctx context.Context, callbackURL string, completion Completion) error {
	body, err := json.Marshal(completion)
	if err != nil {
		return fmt.Errorf("failed to encode completion: %w", err)
	}

	signature, err := SignBody(s.cfg.Secret, body)
	if err != nil {
		return err
	}

	log := s.logger.With("task_id", completion.TaskID, "callback_url", callbackURL)

	var lastErr error
	for attempt := 0; attempt < s.cfg.Attempts; attempt++ {
		lastErr = s.post(ctx, callbackURL, body, signature)
		if lastErr == nil {
			log.Info("completion callback delivered",
				"status", completion.Status,
				"attempt", attempt+1)
			return nil
		}

		log.Warn("completion callback attempt failed",
			"attempt", attempt+1,
			"attempts", s.cfg.Attempts,
			"error", lastErr)

		if attempt == s.cfg.Attempts-1 {
			break
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-s.clk.After(s.backoff(attempt)):
		}
	}

	log.Error("abandoning completion callback after exhausting retries",
		"attempts", s.cfg.Attempts,
		"error", lastErr)
	return lastErr
}

func (s *Sink) backoff(attempt int) time.Duration {
	d := s.cfg.BaseDelay << uint(attempt)
	if d > s.cfg.MaxDelay || d <= 0 {
		return s.cfg.MaxDelay
	}
	return d
}

func (s *Sink) post(ctx context.Context, callbackURL string, body []byte, signature string) error {
	attemptCtx, cancel := context.WithTimeout(ctx, s.cfg.AttemptTimeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, callbackURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("failed to build callback request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set(SignatureHeader, signature)

	resp, err := s.client.Do(req)
	if err != nil {
		return fmt.Errorf("callback request failed: %w", err)
	}
	defer func() {
		if err := resp.Body.Close(); err != nil {
			s.logger.Debug("failed to close callback response body", "error", err)
		}
	}()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("callback returned status %d", resp.StatusCode)
	}
	return nil
}
