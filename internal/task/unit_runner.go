package task

import (
	"context"
	"log/slog"

	"github.com/relayq/relayq/internal/domain"
	"github.com/relayq/relayq/internal/notify"
	"github.com/relayq/relayq/internal/queue"
)

// CompletionSender posts a completion callback. Satisfied by
// *notify.Sink.
type CompletionSender interface {
	Send(ctx context.Context, callbackURL string, completion notify.Completion) error
}

// UnitRunner drives one message through an ephemeral execution unit:
// decode the injected task data, execute it through the registry, post
// the completion callback, and report success or failure to the
// provisioning layer via the exit status.
type UnitRunner struct {
	registry *Registry
	sink     CompletionSender
	logger   *slog.Logger
}

// NewUnitRunner creates a UnitRunner.
func NewUnitRunner(registry *Registry, sink CompletionSender, logger *slog.Logger) *UnitRunner {
	return &UnitRunner{
		registry: registry,
		sink:     sink,
		logger:   logger.With("component", "unit_runner"),
	}
}

// Run processes one raw task payload. The returned value follows
// process exit-code conventions: 0 when the handler completed, 1
// otherwise. A failed callback does not change the outcome: by that
// point the result stands, and a lost notification is a delivery gap
// rather than a task failure.
func (u *UnitRunner) Run(ctx context.Context, rawTaskData string) int {
	msg, err := queue.Decode(rawTaskData)
	if err != nil {
		u.logger.Error("failed to decode task data", "error", err)
		return 1
	}

	log := u.logger.With("task_id", msg.TaskID, "task_type", msg.TaskType, "tenant_id", msg.TenantID)
	log.Info("processing task")

	result := u.registry.Dispatch(ctx, msg)

	completion := notify.Completion{
		TaskID: msg.TaskID,
		Status: result.Status,
		Result: result.Data,
	}
	if result.Error != "" {
		completion.Error = &result.Error
	}

	if err := u.sink.Send(ctx, msg.CallbackURL, completion); err != nil {
		log.Warn("completion callback not delivered", "error", err)
	}

	if result.Status == domain.NotificationStatusCompleted {
		log.Info("task completed")
		return 0
	}

	log.Error("task failed", "error", result.Error)
	return 1
}
