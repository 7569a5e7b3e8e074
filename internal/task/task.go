package task

import (
	"context"
	"encoding/json"

	"github.com/relayq/relayq/internal/domain"
)

// Result is the outcome of one handler execution. Failure is data, not
// control flow: handlers return a failed Result instead of panicking,
// and the registry converts anything that escapes into one.
type Result struct {
	Status domain.NotificationStatus `json:"status"`
	Data   json.RawMessage           `json:"data,omitempty"`
	Error  string                    `json:"error,omitempty"`
}

// Completed builds a successful Result carrying the handler's output.
func Completed(data json.RawMessage) Result {
	return Result{Status: domain.NotificationStatusCompleted, Data: data}
}

// Failed builds a failed Result carrying the error message.
func Failed(errMsg string) Result {
	return Result{Status: domain.NotificationStatusFailed, Error: errMsg}
}

// Handler executes one task payload. Implementations must respect ctx
// cancellation: the registry enforces the hard wall-clock timeout
// through it.
type Handler interface {
	Execute(ctx context.Context, payload json.RawMessage) Result
}

// HandlerFunc adapts a function to the Handler interface.
type HandlerFunc func(ctx context.Context, payload json.RawMessage) Result

func (f HandlerFunc) Execute(ctx context.Context, payload json.RawMessage) Result {
	return f(ctx, payload)
}
