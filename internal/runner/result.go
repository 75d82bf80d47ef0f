package runner

import (
	"time"

	"stepline/internal/workflow"
)

// StepResult records the outcome of a single step attempt.
type StepResult struct {
	Index int
	ID    string
	Name  string

	Status   Status
	ExitCode int

	// Stdout and Stderr hold the captured output of command steps.
	Stdout []byte
	Stderr []byte

	StartedAt time.Time
	Duration  time.Duration

	// Err holds the infrastructure error for steps that could not run at
	// all (as opposed to running and exiting non-zero).
	Err error
}

// Failed reports whether the step concluded unsuccessfully.
func (r StepResult) Failed() bool {
	return r.Status == StatusFailed || r.Status == StatusCancelled
}

// JobResult records the outcome of one job.
type JobResult struct {
	ID   string
	Name string

	Status Status
	Steps  []StepResult

	StartedAt time.Time
	Duration  time.Duration

	// Workspace is the directory the job executed in.
	Workspace string
}

// OutputBytes returns the total captured output size across steps.
func (r JobResult) OutputBytes() int64 {
	var n int64
	for _, s := range r.Steps {
		n += int64(len(s.Stdout)) + int64(len(s.Stderr))
	}
	return n
}

// RunResult is the outcome of executing a full plan.
type RunResult struct {
	RunID        string
	WorkflowName string
	WorkflowHash workflow.Hash
	Ref          string

	Status Status
	Jobs   []JobResult

	StartedAt time.Time
	Duration  time.Duration
}

// Succeeded reports whether every job succeeded.
func (r *RunResult) Succeeded() bool {
	return r != nil && r.Status == StatusSucceeded
}

// concludeRun folds job conclusions into the run conclusion: failure or
// cancellation of any job decides the run; otherwise success.
func concludeRun(jobs []JobResult) Status {
	conclusion := StatusSucceeded
	for _, j := range jobs {
		switch j.Status {
		case StatusCancelled:
			return StatusCancelled
		case StatusFailed, StatusSkipped:
			conclusion = StatusFailed
		}
	}
	return conclusion
}
