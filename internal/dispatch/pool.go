package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
)

// UnitFunc executes one task inside the current process and returns a
// process-style exit code, zero on success. *task.UnitRunner.Run
// satisfies it.
type UnitFunc func(ctx context.Context, taskData string) int

// PoolProvisioner runs units as goroutines drawn from a bounded pool.
// It is the default backend for single-process deployments and for
// tests; the unit is the same code the exec backend runs in a child
// process, minus the process boundary.
type PoolProvisioner struct {
	run    UnitFunc
	sem    chan struct{}
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewPoolProvisioner creates a pool bounded to workerCount concurrent
// units. A workerCount under one is clamped to one.
func NewPoolProvisioner(run UnitFunc, workerCount int, logger *slog.Logger) *PoolProvisioner {
	if workerCount < 1 {
		logger.Warn("invalid worker count, using 1", "specified_count", workerCount)
		workerCount = 1
	}
	return &PoolProvisioner{
		run:    run,
		sem:    make(chan struct{}, workerCount),
		logger: logger.With("component", "pool_provisioner"),
		active: make(map[string]struct{}),
	}
}

// Provision runs the unit synchronously on a pool slot. It blocks
// while the pool is saturated; if the context is cancelled first the
// unit never starts and the lease is left untouched.
func (p *PoolProvisioner) Provision(ctx context.Context, unitName string, taskData string) error {
	p.mu.Lock()
	if _, ok := p.active[unitName]; ok {
		p.mu.Unlock()
		return fmt.Errorf("provisioning %s: %w", unitName, ErrUnitActive)
	}
	p.active[unitName] = struct{}{}
	p.mu.Unlock()

	defer func() {
		p.mu.Lock()
		delete(p.active, unitName)
		p.mu.Unlock()
	}()

	select {
	case p.sem <- struct{}{}:
		defer func() { <-p.sem }()
	case <-ctx.Done():
		return fmt.Errorf("waiting for pool slot: %w", ctx.Err())
	}

	p.logger.Debug("starting unit", "unit_name", unitName)
	if code := p.run(ctx, taskData); code != 0 {
		return fmt.Errorf("unit %s exited with code %d", unitName, code)
	}
	return nil
}
