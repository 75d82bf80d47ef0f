package report

import (
	"bytes"
	"errors"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"stepline/internal/runner"
)

func sampleResult() *runner.RunResult {
	return &runner.RunResult{
		RunID:        "run-1",
		WorkflowName: "Rust",
		WorkflowHash: "abc123",
		Ref:          "refs/heads/master",
		Status:       runner.StatusFailed,
		StartedAt:    time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC),
		Duration:     90 * time.Second,
		Jobs: []runner.JobResult{{
			ID:       "build",
			Name:     "build",
			Status:   runner.StatusFailed,
			Duration: 90 * time.Second,
			Steps: []runner.StepResult{
				{Index: 1, Name: "cargo build --verbose", Status: runner.StatusSucceeded, Stdout: []byte("ok\n")},
				{Index: 2, Name: "cargo test", Status: runner.StatusFailed, ExitCode: 101, Stderr: []byte("test failed\n")},
				{Index: 3, Name: "rustup default nightly", Status: runner.StatusSkipped},
			},
		}},
	}
}

func TestNew_FlattensRunResult(t *testing.T) {
	r := New(sampleResult())

	assert.Equal(t, "run-1", r.RunID)
	assert.Equal(t, "Rust", r.Workflow)
	assert.Equal(t, "failed", r.Status)
	assert.Equal(t, int64(90_000), r.DurationMS)

	require.Len(t, r.Jobs, 1)
	job := r.Jobs[0]
	assert.Equal(t, int64(len("ok\n")+len("test failed\n")), job.OutputBytes)
	require.Len(t, job.Steps, 3)
	assert.Equal(t, 101, job.Steps[1].ExitCode)
	assert.Equal(t, "skipped", job.Steps[2].Status)
}

func TestReport_WriteFileReadRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	r := New(sampleResult())

	require.NoError(t, r.WriteFile(path))

	got, err := Read(path)
	require.NoError(t, err)
	assert.Equal(t, r, got)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.True(t, bytes.HasSuffix(data, []byte("}\n")), "report file must be newline terminated")
}

func TestRead_RejectsUnknownFields(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run_id":"x","status":"succeeded","surprise":1}`), 0o644))

	_, err := Read(path)
	require.Error(t, err)
}

func TestRead_RejectsTrailingContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"run_id":"x","status":"succeeded"}{"run_id":"y"}`), 0o644))

	_, err := Read(path)
	require.Error(t, err)
}

func TestReport_Validate(t *testing.T) {
	cases := []struct {
		name   string
		mutate func(*Report)
	}{
		{"missing run id", func(r *Report) { r.RunID = "" }},
		{"missing status", func(r *Report) { r.Status = "" }},
		{"missing job id", func(r *Report) { r.Jobs[0].ID = "" }},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := New(sampleResult())
			tc.mutate(&r)
			assert.Error(t, r.Validate())
		})
	}
}

func TestWriteFile_InvalidReportLeavesNoFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.json")
	r := Report{}

	require.Error(t, r.WriteFile(path))
	_, err := os.Stat(path)
	assert.True(t, errors.Is(err, os.ErrNotExist))
}

func TestWriteSummary(t *testing.T) {
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })

	var buf bytes.Buffer
	WriteSummary(&buf, New(sampleResult()))
	out := buf.String()

	assert.Contains(t, out, "Rust")
	assert.Contains(t, out, "cargo build --verbose")
	assert.Contains(t, out, "exit 101")
	assert.Contains(t, out, "run failed")
}
