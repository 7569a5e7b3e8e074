// Package main implements the ephemeral execution unit: it reads one
// serialized task from the TASK_DATA environment variable, executes it,
// posts the completion callback, and exits with the task's outcome.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/config"
	"github.com/relayq/relayq/internal/dispatch"
	"github.com/relayq/relayq/internal/notify"
	"github.com/relayq/relayq/internal/platform/logger"
	"github.com/relayq/relayq/internal/task"
)

func main() {
	code, err := run()
	if err != nil {
		log.Printf("Unit failed: %v", err)
		os.Exit(1)
	}
	os.Exit(code)
}

func run() (int, error) {
	cfg, err := config.Load()
	if err != nil {
		return 1, fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return 1, fmt.Errorf("failed to set up logger: %w", err)
	}

	taskData := os.Getenv(dispatch.TaskDataEnv)
	if taskData == "" {
		return 1, fmt.Errorf("%s environment variable is empty", dispatch.TaskDataEnv)
	}

	clk := clock.RealClock{}
	registry := task.NewRegistry(time.Duration(cfg.Handler.TimeoutSeconds)*time.Second, appLogger)
	task.RegisterBuiltin(registry, appLogger)

	sink := notify.NewSink(notify.SinkConfig{
		Attempts:       cfg.Callback.RetryCount,
		AttemptTimeout: time.Duration(cfg.Callback.TimeoutSeconds) * time.Second,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		Secret:         []byte(cfg.Callback.Secret),
	}, clk, appLogger)

	runner := task.NewUnitRunner(registry, sink, appLogger)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return runner.Run(ctx, taskData), nil
}
