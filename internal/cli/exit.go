package cli

import "fmt"

// Semantic exit codes. Scripts branching on the exit status can tell a
// failing workflow apart from a misuse of the tool itself.
const (
	ExitSuccess           = 0
	ExitRunFailed         = 1
	ExitInvalidInvocation = 2
	ExitWorkflowError     = 3
	ExitInternalError     = 4
)

// ExitError carries the semantic exit code a command decided on.
type ExitError struct {
	Code int
	Err  error
}

func (e *ExitError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("exit status %d", e.Code)
}

func (e *ExitError) Unwrap() error { return e.Err }

func workflowErrorf(err error) error {
	return &ExitError{Code: ExitWorkflowError, Err: err}
}

func internalErrorf(err error) error {
	return &ExitError{Code: ExitInternalError, Err: err}
}
