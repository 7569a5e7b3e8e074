package dispatch

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"sync"
)

// TaskDataEnv is the environment variable through which the exec
// backend hands the serialized message to the unit binary.
const TaskDataEnv = "TASK_DATA"

// ExecProvisioner spawns one child process per message, passing the
// serialized message through the TASK_DATA environment variable. The
// child's exit code is the unit result: zero deletes the message,
// anything else leaves the lease to expire.
type ExecProvisioner struct {
	binary string
	logger *slog.Logger

	mu     sync.Mutex
	active map[string]struct{}
}

// NewExecProvisioner creates an exec backend running the unit binary
// at the given path.
func NewExecProvisioner(binary string, logger *slog.Logger) *ExecProvisioner {
	return &ExecProvisioner{
		binary: binary,
		logger: logger.With("component", "exec_provisioner"),
		active: make(map[string]struct{}),
	}
}

// Provision spawns the unit binary and waits for it to exit.
func (p *ExecProvisioner) Provision(ctx context.Context, unitName string, taskData string) error {
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

	cmd := p.buildCmd(ctx, taskData)
	p.logger.Debug("spawning unit", "unit_name", unitName, "binary", p.binary)

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("unit %s: %w", unitName, err)
	}
	return nil
}

func (p *ExecProvisioner) buildCmd(ctx context.Context, taskData string) *exec.Cmd {
	cmd := exec.CommandContext(ctx, p.binary)
	cmd.Env = append(os.Environ(), TaskDataEnv+"="+taskData)
	cmd.Stdout = os.Stdout
	cmd.Stderr = os.Stderr
	return cmd
}
