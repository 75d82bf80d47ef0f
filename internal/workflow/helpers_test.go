package workflow

import (
	"os"
	"testing"

	"github.com/stretchr/testify/require"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
}

// runStep builds the smallest valid command step.
func runStep(cmd string) Step {
	return Step{Run: cmd}
}

// pushWorkflow builds a minimal push-triggered workflow over the given
// jobs.
func pushWorkflow(jobs map[string]Job) *Workflow {
	return &Workflow{
		Name: "test",
		On:   Triggers{Push: &PushFilter{}},
		Jobs: jobs,
	}
}
