package runner

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShellExecutor_CapturesOutputAndExitCode(t *testing.T) {
	exec := &ShellExecutor{}

	res, err := exec.Run(context.Background(), CommandSpec{
		Script: "echo to-stdout; echo to-stderr >&2; exit 3",
		Dir:    t.TempDir(),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "to-stdout\n", string(res.Stdout))
	assert.Equal(t, "to-stderr\n", string(res.Stderr))
}

// TestShellExecutor_MultiLineStopsAtFirstFailure verifies errexit
// semantics: a multi-line block behaves like a sequence of steps whose
// first non-zero exit ends the block.
func TestShellExecutor_MultiLineStopsAtFirstFailure(t *testing.T) {
	exec := &ShellExecutor{}

	res, err := exec.Run(context.Background(), CommandSpec{
		Script: "echo first\nfalse\necho second\n",
		Dir:    t.TempDir(),
	})
	require.NoError(t, err)

	assert.NotZero(t, res.ExitCode)
	assert.Contains(t, string(res.Stdout), "first")
	assert.NotContains(t, string(res.Stdout), "second")
}

func TestShellExecutor_EnvOverlayWins(t *testing.T) {
	t.Setenv("STEPLINE_TEST_VALUE", "host")

	exec := &ShellExecutor{}
	res, err := exec.Run(context.Background(), CommandSpec{
		Script: `echo "$STEPLINE_TEST_VALUE"`,
		Dir:    t.TempDir(),
		Env:    map[string]string{"STEPLINE_TEST_VALUE": "overlay"},
	})
	require.NoError(t, err)
	assert.Equal(t, "overlay\n", string(res.Stdout))
}

// Unlike a hermetic build tool, a CI step sees the host environment.
func TestShellExecutor_HostEnvInherited(t *testing.T) {
	t.Setenv("STEPLINE_TEST_HOST", "visible")

	exec := &ShellExecutor{}
	res, err := exec.Run(context.Background(), CommandSpec{
		Script: `echo "$STEPLINE_TEST_HOST"`,
		Dir:    t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "visible\n", string(res.Stdout))
}

func TestShellExecutor_WorkingDirectory(t *testing.T) {
	dir := t.TempDir()

	exec := &ShellExecutor{}
	res, err := exec.Run(context.Background(), CommandSpec{Script: "pwd", Dir: dir})
	require.NoError(t, err)
	assert.Contains(t, string(res.Stdout), dir)
}

func TestShellExecutor_CancellationKillsProcess(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 100*time.Millisecond)
	defer cancel()

	exec := &ShellExecutor{}
	start := time.Now()
	_, err := exec.Run(ctx, CommandSpec{Script: "sleep 30", Dir: t.TempDir()})

	require.Error(t, err)
	assert.Less(t, time.Since(start), 5*time.Second, "cancellation must not wait for the command")
}

func TestShellExecutor_PlainShWhenRequested(t *testing.T) {
	exec := &ShellExecutor{}
	res, err := exec.Run(context.Background(), CommandSpec{
		Script: "echo via-sh",
		Shell:  "sh",
		Dir:    t.TempDir(),
	})
	require.NoError(t, err)
	assert.Equal(t, "via-sh\n", string(res.Stdout))
}

func TestShellExecutor_EmptyScript(t *testing.T) {
	exec := &ShellExecutor{}
	_, err := exec.Run(context.Background(), CommandSpec{Script: "  \n", Dir: t.TempDir()})
	require.Error(t, err)
}

func TestOverlayEnviron_Deterministic(t *testing.T) {
	base := []string{"B=2", "A=1"}
	got := overlayEnviron(base, map[string]string{"C": "3", "A": "override"})
	assert.Equal(t, []string{"A=override", "B=2", "C=3"}, got)
}
