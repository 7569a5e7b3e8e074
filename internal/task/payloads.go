package task

import (
	"encoding/json"
	"fmt"

	"github.com/go-playground/validator/v10"

	"github.com/relayq/relayq/internal/domain"
)

// Payload schemas form a tagged union keyed by task_type. The schema
// check happens once at the registry boundary; handlers can then trust
// the shape instead of probing fields ad hoc.

// IngestPayload requests ingestion of a stored document. The document
// content is passed by reference (a storage key), never inlined, so the
// envelope stays under the queue size ceiling.
type IngestPayload struct {
	Filename    string `json:"filename"     validate:"required"`
	DocumentSet string `json:"document_set"`
}

// SummarizePayload requests summarization of a stored document.
type SummarizePayload struct {
	Filename    string `json:"filename"     validate:"required"`
	DocumentSet string `json:"document_set"`
}

// AgentStepPayload requests one step of an agent conversation.
type AgentStepPayload struct {
	Input          string `json:"input"           validate:"required"`
	ConversationID string `json:"conversation_id"`
}

var payloadValidator = validator.New()

// DecodePayload checks a raw payload against the schema for its task
// type. The decoded value is returned for callers that want it; the
// registry only uses the validation outcome and hands handlers the raw
// payload.
func DecodePayload(taskType domain.TaskType, raw json.RawMessage) (interface{}, error) {
	var target interface{}
	switch taskType {
	case domain.TaskTypeIngest:
		target = &IngestPayload{}
	case domain.TaskTypeSummarize:
		target = &SummarizePayload{}
	case domain.TaskTypeAgentStep:
		target = &AgentStepPayload{}
	default:
		return nil, fmt.Errorf("%w: %q", ErrUnknownTaskType, taskType)
	}

	if err := json.Unmarshal(raw, target); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", taskType, err)
	}

	if err := payloadValidator.Struct(target); err != nil {
		return nil, fmt.Errorf("invalid %s payload: %w", taskType, err)
	}

	return target, nil
}
