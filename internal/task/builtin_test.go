package task

import (
	"context"
	"encoding/json"
	"log/slog"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/relayq/relayq/internal/domain"
)

func TestBuiltinHandlersCoverAllTaskTypes(t *testing.T) {
	t.Parallel()

	r := NewRegistry(time.Second, slog.Default())
	RegisterBuiltin(r, slog.Default())

	payloads := map[domain.TaskType]string{
		domain.TaskTypeIngest:    `{"filename":"report.pdf"}`,
		domain.TaskTypeSummarize: `{"filename":"report.pdf"}`,
		domain.TaskTypeAgentStep: `{"input":"what changed last week?"}`,
	}

	for taskType, payload := range payloads {
		msg, err := domain.NewTaskMessage(
			taskType,
			"acme",
			json.RawMessage(payload),
			"https://frontend.example.com/internal/notify",
		)
		if assert.NoError(t, err, taskType) {
			res := r.Dispatch(context.Background(), msg)
			assert.Equal(t, domain.NotificationStatusCompleted, res.Status, taskType)
		}
	}
}
