package runner

import "fmt"

// Status is the execution state of a step or a job.
//
// Terminal states double as conclusions; the run conclusion is the
// logical AND over job conclusions.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusSucceeded Status = "succeeded"
	StatusFailed    Status = "failed"
	StatusSkipped   Status = "skipped"
	StatusCancelled Status = "cancelled"
)

// IsTerminal reports whether the status is final.
func (s Status) IsTerminal() bool {
	switch s {
	case StatusSucceeded, StatusFailed, StatusSkipped, StatusCancelled:
		return true
	default:
		return false
	}
}

// Satisfies reports whether a dependency in this state allows dependents
// to run.
func (s Status) Satisfies() bool {
	return s == StatusSucceeded
}

// transition validates a state change. The caller supplies the expected
// prior state so that races and logic bugs surface as errors instead of
// silent overwrites.
func transition(name string, cur, from, to Status) (Status, error) {
	if cur != from {
		return cur, fmt.Errorf("invalid transition for %q: expected %s, got %s", name, from, cur)
	}
	if !allowedTransition(from, to) {
		return cur, fmt.Errorf("disallowed transition for %q: %s -> %s", name, from, to)
	}
	return to, nil
}

func allowedTransition(from, to Status) bool {
	switch from {
	case StatusPending:
		return to == StatusRunning || to == StatusSkipped || to == StatusCancelled
	case StatusRunning:
		return to == StatusSucceeded || to == StatusFailed || to == StatusCancelled
	default:
		return false
	}
}
