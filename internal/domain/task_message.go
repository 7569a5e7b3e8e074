package domain

import (
	"encoding/json"
	"fmt"
	"net/url"
	"regexp"
	"strings"
	"time"

	"github.com/google/uuid"
)

// TaskType identifies the kind of work a task message requests.
type TaskType string

// Known task type values. Unknown types are rejected at the registry
// boundary and eventually dead-letter.
const (
	TaskTypeIngest    TaskType = "ingest"
	TaskTypeSummarize TaskType = "summarize"
	TaskTypeAgentStep TaskType = "agent_step"
)

// tenantIDPattern restricts normalized tenant IDs to the character set
// accepted by the queue naming convention.
var tenantIDPattern = regexp.MustCompile(`^[a-z0-9_]+$`)

// TaskMessage is the envelope written to a tenant's task queue. The
// payload is opaque to the pipeline; only the handler for the matching
// task type interprets it. Large payloads must be passed by reference
// (e.g. a storage key) so the serialized envelope stays under the
// queue's message-size ceiling.
type TaskMessage struct {
	TaskID      string          `json:"task_id"`
	TaskType    TaskType        `json:"task_type"`
	TenantID    string          `json:"tenant_id"`
	Payload     json.RawMessage `json:"payload"`
	CallbackURL string          `json:"callback_url"`
	EnqueuedAt  time.Time       `json:"enqueued_at"`
}

// NewTaskMessage creates a validated TaskMessage with a generated task ID
// and the current enqueue timestamp. The tenant ID is normalized before
// validation.
func NewTaskMessage(
	taskType TaskType,
	tenantID string,
	payload json.RawMessage,
	callbackURL string,
) (*TaskMessage, error) {
	msg := &TaskMessage{
		TaskID:      uuid.New().String(),
		TaskType:    taskType,
		TenantID:    NormalizeTenantID(tenantID),
		Payload:     payload,
		CallbackURL: callbackURL,
		EnqueuedAt:  time.Now().UTC(),
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return msg, nil
}

// Validate checks if the TaskMessage has valid data.
// Returns a domain error if any field fails validation.
func (m *TaskMessage) Validate() error {
	if m.TaskID == "" {
		return fmt.Errorf("%w: task ID cannot be empty", ErrValidation)
	}

	if !IsValidTaskType(m.TaskType) {
		return fmt.Errorf("%w: %q", ErrInvalidTaskType, m.TaskType)
	}

	if !tenantIDPattern.MatchString(m.TenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, m.TenantID)
	}

	if err := validateCallbackURL(m.CallbackURL); err != nil {
		return err
	}

	return nil
}

// IsValidTaskType reports whether the given task type is a known variant.
func IsValidTaskType(t TaskType) bool {
	switch t {
	case TaskTypeIngest, TaskTypeSummarize, TaskTypeAgentStep:
		return true
	default:
		return false
	}
}

// NormalizeTenantID lower-cases a tenant identifier so that queue names
// derived from it are stable regardless of caller casing.
func NormalizeTenantID(tenantID string) string {
	return strings.ToLower(strings.TrimSpace(tenantID))
}

// ValidateTenantID checks a normalized tenant ID against the character
// set accepted by the queue naming convention.
func ValidateTenantID(tenantID string) error {
	if !tenantIDPattern.MatchString(tenantID) {
		return fmt.Errorf("%w: %q", ErrInvalidTenantID, tenantID)
	}
	return nil
}

// QueueName returns the queue name for a tenant following the
// "{tenant_id}-tasks" convention. The tenant ID must already be
// normalized and validated.
func QueueName(tenantID string) string {
	return tenantID + "-tasks"
}

func validateCallbackURL(raw string) error {
	if raw == "" {
		return fmt.Errorf("%w: callback URL cannot be empty", ErrInvalidCallbackURL)
	}

	u, err := url.Parse(raw)
	if err != nil || !u.IsAbs() || u.Host == "" {
		return fmt.Errorf("%w: %q", ErrInvalidCallbackURL, raw)
	}

	return nil
}
