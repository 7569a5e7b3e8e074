// Package main implements the dispatcher daemon: it polls tenant
// queues and provisions one ephemeral execution unit per leased
// message.
package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/relayq/relayq/internal/clock"
	"github.com/relayq/relayq/internal/config"
	"github.com/relayq/relayq/internal/dispatch"
	"github.com/relayq/relayq/internal/notify"
	"github.com/relayq/relayq/internal/platform/logger"
	"github.com/relayq/relayq/internal/queue"
	"github.com/relayq/relayq/internal/queue/memoryqueue"
	"github.com/relayq/relayq/internal/queue/redisqueue"
	"github.com/relayq/relayq/internal/task"
)

func main() {
	if err := run(); err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		log.Fatalf("Dispatcher failed: %v", err)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load configuration: %w", err)
	}

	appLogger, err := logger.Setup(cfg.Server)
	if err != nil {
		return fmt.Errorf("failed to set up logger: %w", err)
	}

	clk := clock.RealClock{}

	client, err := buildQueueClient(cfg, clk, appLogger)
	if err != nil {
		return err
	}

	prov, err := buildProvisioner(cfg, clk, appLogger)
	if err != nil {
		return err
	}

	d := dispatch.New(
		client,
		prov,
		[]string{cfg.Queue.TenantID},
		dispatch.Config{
			PollInterval: time.Duration(cfg.Dispatcher.PollIntervalSeconds) * time.Second,
			MaxMessages:  cfg.Dispatcher.MaxMessages,
			Visibility:   time.Duration(cfg.Queue.VisibilitySeconds) * time.Second,
		},
		clk,
		appLogger,
	)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	return d.Run(ctx)
}

func buildQueueClient(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (queue.Client, error) {
	switch cfg.Queue.Backend {
	case "redis":
		rdb := redis.NewClient(&redis.Options{
			Addr:     cfg.Redis.Addr,
			Password: cfg.Redis.Password,
			DB:       cfg.Redis.DB,
		})
		ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		if err := rdb.Ping(ctx).Err(); err != nil {
			return nil, fmt.Errorf("failed to ping redis: %w", err)
		}
		logger.Info("Redis connection established", "addr", cfg.Redis.Addr)
		return redisqueue.New(rdb, clk, cfg.Queue.MaxDeliveryCount), nil
	default:
		// A standalone dispatcher on the memory backend sees an empty
		// queue: nothing else can write to its process. Useful only for
		// smoke-testing the loop itself.
		logger.Warn("using in-memory queue backend, the dispatcher will not see messages from other processes")
		return memoryqueue.New(clk, cfg.Queue.MaxDeliveryCount), nil
	}
}

// buildProvisioner selects the ephemeral-unit backend. The pool runs
// units in-process; exec spawns the unit binary per message.
func buildProvisioner(cfg *config.Config, clk clock.Clock, logger *slog.Logger) (dispatch.Provisioner, error) {
	if cfg.Dispatcher.Provisioner == "exec" {
		if cfg.Dispatcher.UnitBinary == "" {
			return nil, fmt.Errorf("dispatcher.unit_binary is required for the exec provisioner")
		}
		if _, err := os.Stat(cfg.Dispatcher.UnitBinary); err != nil {
			return nil, fmt.Errorf("unit binary not found: %w", err)
		}
		return dispatch.NewExecProvisioner(cfg.Dispatcher.UnitBinary, logger), nil
	}

	registry := task.NewRegistry(time.Duration(cfg.Handler.TimeoutSeconds)*time.Second, logger)
	task.RegisterBuiltin(registry, logger)

	sink := notify.NewSink(notify.SinkConfig{
		Attempts:       cfg.Callback.RetryCount,
		AttemptTimeout: time.Duration(cfg.Callback.TimeoutSeconds) * time.Second,
		BaseDelay:      time.Second,
		MaxDelay:       10 * time.Second,
		Secret:         []byte(cfg.Callback.Secret),
	}, clk, logger)

	runner := task.NewUnitRunner(registry, sink, logger)
	return dispatch.NewPoolProvisioner(runner.Run, cfg.Dispatcher.WorkerCount, logger), nil
}
