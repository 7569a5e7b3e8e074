package queue

import (
	"encoding/json"
	"fmt"

	"github.com/relayq/relayq/internal/domain"
)

// Encode serializes a task message to the queue wire format (UTF-8
// JSON) and enforces the size ceiling. Oversized messages are rejected,
// never truncated.
func Encode(msg *domain.TaskMessage) (string, error) {
	if err := msg.Validate(); err != nil {
		return "", err
	}

	body, err := json.Marshal(msg)
	if err != nil {
		return "", fmt.Errorf("failed to encode task message: %w", err)
	}

	if len(body) > MaxMessageBytes {
		return "", fmt.Errorf("%w: %d bytes (max %d)", ErrSizeExceeded, len(body), MaxMessageBytes)
	}

	return string(body), nil
}

// Decode parses a queue payload back into a task message and validates
// the envelope fields. The payload itself stays opaque.
func Decode(body string) (*domain.TaskMessage, error) {
	var msg domain.TaskMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, fmt.Errorf("failed to decode task message: %w", err)
	}

	if err := msg.Validate(); err != nil {
		return nil, err
	}

	return &msg, nil
}
