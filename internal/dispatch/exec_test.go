package dispatch

import (
	"context"
	"log/slog"
	"os/exec"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExecBuildCmdInjectsTaskData(t *testing.T) {
	t.Parallel()

	p := NewExecProvisioner("/opt/relayq/unit", slog.Default())
	cmd := p.buildCmd(context.Background(), `{"task_id":"t1"}`)

	assert.Equal(t, "/opt/relayq/unit", cmd.Path)
	assert.Contains(t, cmd.Env, `TASK_DATA={"task_id":"t1"}`)
}

func TestExecProvisionPropagatesExitStatus(t *testing.T) {
	t.Parallel()

	if _, err := exec.LookPath("true"); err != nil {
		t.Skip("no coreutils on PATH")
	}

	ok := NewExecProvisioner("true", slog.Default())
	require.NoError(t, ok.Provision(context.Background(), "unit-ok", "{}"))

	bad := NewExecProvisioner("false", slog.Default())
	err := bad.Provision(context.Background(), "unit-bad", "{}")
	require.Error(t, err, "a nonzero unit exit must surface as a provisioning error")
}
