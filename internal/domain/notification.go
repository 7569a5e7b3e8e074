package domain

import (
	"encoding/json"
	"fmt"
	"time"
)

// NotificationStatus represents the terminal outcome of a task.
type NotificationStatus string

// Possible notification status values
const (
	NotificationStatusCompleted NotificationStatus = "completed"
	NotificationStatusFailed    NotificationStatus = "failed"
)

// NotificationRecord is the durable, append-only record written by the
// callback receiver and read by the long-poll deliverer. Records are
// immutable once written; the sequence ID is assigned by the store at
// write time and is strictly increasing per tenant.
type NotificationRecord struct {
	SequenceID int64              `json:"sequence_id"`
	TaskID     string             `json:"task_id"`
	Status     NotificationStatus `json:"status"`
	Result     json.RawMessage    `json:"result,omitempty"`
	Error      string             `json:"error,omitempty"`
	CreatedAt  time.Time          `json:"created_at"`
}

// Validate checks if the NotificationRecord has valid data prior to
// being appended. The sequence ID is store-assigned and not validated
// here.
func (r *NotificationRecord) Validate() error {
	if r.TaskID == "" {
		return fmt.Errorf("%w: task ID cannot be empty", ErrValidation)
	}

	if r.Status != NotificationStatusCompleted && r.Status != NotificationStatusFailed {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, r.Status)
	}

	return nil
}
