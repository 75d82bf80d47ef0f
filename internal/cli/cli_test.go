package cli

import (
	"bytes"
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const passingWorkflow = `name: ci
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - name: greet
        run: echo hello
`

const failingWorkflow = `name: ci
on: push
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: exit 1
`

const narrowWorkflow = `name: ci
on:
  push:
    branches: [release]
jobs:
  build:
    runs-on: ubuntu-latest
    steps:
      - run: echo hello
`

func writeWorkflow(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ci.yml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

// runCLI executes the command tree the way main does, but with captured
// output, and returns the semantic exit code.
func runCLI(t *testing.T, args ...string) (int, string) {
	t.Helper()

	a := &app{}
	root := newRootCmd(a)

	var buf bytes.Buffer
	root.SetOut(&buf)
	root.SetErr(&buf)
	root.SetArgs(args)

	err := root.ExecuteContext(context.Background())
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err == nil {
		return ExitSuccess, buf.String()
	}
	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code, buf.String()
	}
	return ExitInvalidInvocation, buf.String()
}

func TestValidate_OK(t *testing.T) {
	path := writeWorkflow(t, passingWorkflow)

	code, out := runCLI(t, "validate", path)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "ok")
}

func TestValidate_BrokenWorkflow(t *testing.T) {
	path := writeWorkflow(t, "on: push\njobs: {}\n")

	code, _ := runCLI(t, "validate", path)
	assert.Equal(t, ExitWorkflowError, code)
}

func TestValidate_MissingFile(t *testing.T) {
	code, _ := runCLI(t, "validate", filepath.Join(t.TempDir(), "absent.yml"))
	assert.Equal(t, ExitWorkflowError, code)
}

func TestUnknownFlagIsInvalidInvocation(t *testing.T) {
	code, _ := runCLI(t, "validate", "--frobnicate")
	assert.Equal(t, ExitInvalidInvocation, code)
}

func TestPlan_ListsSteps(t *testing.T) {
	path := writeWorkflow(t, passingWorkflow)

	code, out := runCLI(t, "plan", path)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "job build")
	assert.Contains(t, out, "greet")
}

func TestPlan_NotTriggered(t *testing.T) {
	path := writeWorkflow(t, narrowWorkflow)

	code, _ := runCLI(t, "plan", path, "--ref", "refs/heads/main")
	assert.Equal(t, ExitWorkflowError, code)
}

func TestRun_Succeeds(t *testing.T) {
	path := writeWorkflow(t, passingWorkflow)

	code, out := runCLI(t, "run", path)
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "run succeeded")
}

func TestRun_FailureMapsToExitOne(t *testing.T) {
	path := writeWorkflow(t, failingWorkflow)

	code, out := runCLI(t, "run", path)
	assert.Equal(t, ExitRunFailed, code)
	assert.Contains(t, out, "run failed")
}

func TestRun_RecordsHistory(t *testing.T) {
	path := writeWorkflow(t, passingWorkflow)

	code, _ := runCLI(t, "run", path)
	require.Equal(t, ExitSuccess, code)

	runs, err := os.ReadDir(filepath.Join(filepath.Dir(path), ".stepline", "runs"))
	require.NoError(t, err)
	assert.Len(t, runs, 1)

	code, out := runCLI(t, "history", "--workdir", filepath.Dir(path))
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "succeeded")
}

func TestRun_WritesReportFile(t *testing.T) {
	path := writeWorkflow(t, passingWorkflow)
	out := filepath.Join(t.TempDir(), "report.json")

	code, _ := runCLI(t, "run", path, "--report", out)
	require.Equal(t, ExitSuccess, code)

	data, err := os.ReadFile(out)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"status": "succeeded"`)
}

func TestHistory_Empty(t *testing.T) {
	code, out := runCLI(t, "history", "--workdir", t.TempDir())
	assert.Equal(t, ExitSuccess, code)
	assert.Contains(t, out, "no recorded runs")
}

func TestExecute_RecoversPanics(t *testing.T) {
	// An unknown subcommand is rejected by cobra before any command
	// runs; Execute maps it to an invocation error, not a panic.
	code := Execute(context.Background(), []string{"no-such-command"})
	assert.Equal(t, ExitInvalidInvocation, code)
}
