package task

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/relayq/relayq/internal/domain"
)

// ErrUnknownTaskType is returned when no handler is registered for a
// message's task type. It is fatal for that message: the message is not
// deleted and will dead-letter once its delivery budget is spent.
var ErrUnknownTaskType = errors.New("unknown task type")

// Registry routes decoded task messages to handlers by task type. Every
// dispatch is wrapped with the hard wall-clock timeout and a recover
// boundary so a misbehaving handler yields a failed Result instead of
// crashing the unit. A crashed unit would still leave the message
// un-deleted, so the boundary is an optimization, not a correctness
// requirement.
type Registry struct {
	handlers map[domain.TaskType]Handler
	timeout  time.Duration
	logger   *slog.Logger
}

// NewRegistry creates an empty registry with the given handler timeout.
func NewRegistry(timeout time.Duration, logger *slog.Logger) *Registry {
	return &Registry{
		handlers: make(map[domain.TaskType]Handler),
		timeout:  timeout,
		logger:   logger.With("component", "task_registry"),
	}
}

// Register binds a handler to a task type, replacing any previous
// binding.
func (r *Registry) Register(taskType domain.TaskType, h Handler) {
	r.handlers[taskType] = h
}

// Dispatch executes the handler for the message's task type and returns
// its Result. Unknown task types and payloads failing their schema
// check come back as failed Results so the caller leaves the message
// un-deleted.
func (r *Registry) Dispatch(ctx context.Context, msg *domain.TaskMessage) Result {
	log := r.logger.With("task_id", msg.TaskID, "task_type", msg.TaskType)

	handler, ok := r.handlers[msg.TaskType]
	if !ok {
		log.Error("no handler registered for task type")
		return Failed(fmt.Sprintf("%v: %q", ErrUnknownTaskType, msg.TaskType))
	}

	if _, err := DecodePayload(msg.TaskType, msg.Payload); err != nil {
		log.Error("payload failed schema check", "error", err)
		return Failed(err.Error())
	}

	execCtx, cancel := context.WithTimeout(ctx, r.timeout)
	defer cancel()

	done := make(chan Result, 1)
	go func() {
		defer func() {
			if rec := recover(); rec != nil {
				log.Error("handler panicked", "panic", rec)
				done <- Failed(fmt.Sprintf("handler panic: %v", rec))
			}
		}()
		done <- handler.Execute(execCtx, msg.Payload)
	}()

	select {
	case res := <-done:
		return res
	case <-execCtx.Done():
		// Deliberately let the lease expire: the timed-out task will
		// redeliver. The handler goroutine keeps running until it
		// observes the cancelled context; the unit is ephemeral, so it
		// is torn down with the process.
		if errors.Is(execCtx.Err(), context.Canceled) {
			log.Error("handler cancelled before completion")
			return Failed("handler cancelled before completion")
		}
		log.Error("handler exceeded timeout", "timeout", r.timeout)
		return Failed(fmt.Sprintf("handler exceeded timeout of %s", r.timeout))
	}
}
