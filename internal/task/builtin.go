package task

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"

	"github.com/relayq/relayq/internal/domain"
)

// RegisterBuiltin binds the built-in acknowledgement handlers for every
// known task type. They decode and acknowledge the payload without
// doing document work; deployments replace them by registering real
// processors over the same task types.
func RegisterBuiltin(r *Registry, logger *slog.Logger) {
	r.Register(domain.TaskTypeIngest, ackHandler(domain.TaskTypeIngest, logger))
	r.Register(domain.TaskTypeSummarize, ackHandler(domain.TaskTypeSummarize, logger))
	r.Register(domain.TaskTypeAgentStep, ackHandler(domain.TaskTypeAgentStep, logger))
}

// ackHandler returns a handler that accepts any schema-valid payload
// and reports it processed. It is idempotent by construction: it has
// no externally visible side effect beyond the completion itself.
func ackHandler(taskType domain.TaskType, logger *slog.Logger) Handler {
	return HandlerFunc(func(ctx context.Context, payload json.RawMessage) Result {
		if _, err := DecodePayload(taskType, payload); err != nil {
			return Failed(err.Error())
		}
		logger.Info("acknowledged task", "task_type", taskType)
		data, err := json.Marshal(map[string]string{
			"acknowledged": string(taskType),
		})
		if err != nil {
			return Failed(fmt.Sprintf("failed to encode result: %v", err))
		}
		return Completed(data)
	})
}
