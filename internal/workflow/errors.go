package workflow

import (
	"errors"
	"fmt"
	"strings"
)

var (
	// ErrSchema marks failures to decode the document into the model.
	ErrSchema = errors.New("workflow schema error")

	// ErrStructure marks documents that decode but violate structural
	// rules (missing jobs, bad references, cycles).
	ErrStructure = errors.New("workflow structure error")

	// ErrNeedsCycle marks a dependency cycle among jobs.
	ErrNeedsCycle = errors.New("needs cycle detected")
)

// DefinitionError wraps deterministic load/validation failures.
type DefinitionError struct {
	Kind error
	Msg  string
}

func (e *DefinitionError) Error() string {
	if e == nil {
		return ""
	}
	if e.Msg == "" {
		return e.Kind.Error()
	}
	return fmt.Sprintf("%s: %s", e.Kind.Error(), e.Msg)
}

func (e *DefinitionError) Unwrap() error { return e.Kind }

func schemaf(format string, args ...any) error {
	return &DefinitionError{Kind: ErrSchema, Msg: fmt.Sprintf(format, args...)}
}

func structuralf(format string, args ...any) error {
	return &DefinitionError{Kind: ErrStructure, Msg: fmt.Sprintf(format, args...)}
}

func cycleError(path []string) error {
	msg := ""
	if len(path) > 0 {
		msg = strings.Join(path, " -> ")
	}
	return &DefinitionError{Kind: ErrNeedsCycle, Msg: msg}
}
