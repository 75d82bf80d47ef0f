// Package plan resolves a workflow definition against a push event into
// a declarative execution plan: which jobs run, in what order, and the
// exact step sequence of each. Building a plan never executes anything.
package plan

import (
	"errors"
	"fmt"
	"time"

	"stepline/internal/event"
	"stepline/internal/workflow"
)

// ErrNotTriggered means the event does not match the workflow's
// triggers; no plan exists for it.
var ErrNotTriggered = errors.New("workflow not triggered by event")

// StepKind discriminates how a planned step is materialized.
type StepKind int

const (
	// StepCommand runs a shell command block.
	StepCommand StepKind = iota
	// StepCheckout clones the event's repository into the job workspace.
	StepCheckout
)

func (k StepKind) String() string {
	switch k {
	case StepCommand:
		return "command"
	case StepCheckout:
		return "checkout"
	default:
		return fmt.Sprintf("StepKind(%d)", int(k))
	}
}

// Step is one resolved unit of work within a job plan.
type Step struct {
	// Index is the 1-based position within the job.
	Index int

	ID   string
	Name string
	Kind StepKind

	// Command is the shell block for StepCommand steps.
	Command string

	// Uses is the original action reference for StepCheckout steps.
	Uses string
	With map[string]string

	// Shell is the resolved shell, empty when the runner default applies.
	Shell string

	// WorkingDirectory is relative to the job workspace.
	WorkingDirectory string

	// Env merges workflow, job, and step overlays, innermost winning.
	Env map[string]string

	ContinueOnError bool

	// Timeout bounds the step; zero means the runner default.
	Timeout time.Duration
}

// Job is the resolved plan for a single job.
type Job struct {
	ID     string
	Name   string
	RunsOn string
	Needs  []string
	Steps  []Step

	// Timeout bounds the whole job; zero means the runner default.
	Timeout time.Duration
}

// Plan is the full resolved execution plan for one event.
type Plan struct {
	WorkflowName string
	WorkflowHash workflow.Hash

	// Ref is the pushed ref the plan was built for.
	Ref string

	// Jobs is in deterministic execution order: needs-respecting
	// topological order with lexicographic tie-break.
	Jobs []Job
}

// Build resolves w against ev.
//
// Fails with ErrNotTriggered when the event does not match, and with a
// descriptive error for any `uses` reference this runner cannot
// materialize (only the checkout action family is supported).
func Build(w *workflow.Workflow, ev event.Push) (*Plan, error) {
	ok, err := event.Matches(w.On, ev)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("%w: ref %q", ErrNotTriggered, ev.Ref)
	}

	order, err := workflow.ExecutionOrder(w)
	if err != nil {
		return nil, err
	}

	p := &Plan{
		WorkflowName: w.Name,
		WorkflowHash: workflow.ComputeHash(w),
		Ref:          ev.Ref,
		Jobs:         make([]Job, 0, len(order)),
	}
	for _, id := range order {
		jp, err := buildJob(w, id, w.Jobs[id])
		if err != nil {
			return nil, err
		}
		p.Jobs = append(p.Jobs, jp)
	}
	return p, nil
}

func buildJob(w *workflow.Workflow, id string, j workflow.Job) (Job, error) {
	jp := Job{
		ID:      id,
		Name:    jobDisplayName(id, j),
		RunsOn:  j.RunsOn,
		Needs:   append([]string(nil), j.Needs...),
		Timeout: time.Duration(j.TimeoutMinutes) * time.Minute,
		Steps:   make([]Step, 0, len(j.Steps)),
	}

	for i, s := range j.Steps {
		ps := Step{
			Index:            i + 1,
			ID:               s.ID,
			Name:             s.DisplayName(),
			Env:              mergeEnv(w.Env, j.Env, s.Env),
			ContinueOnError:  s.ContinueOnError,
			Timeout:          time.Duration(s.TimeoutMinutes) * time.Minute,
			Shell:            s.Shell,
			WorkingDirectory: s.WorkingDirectory,
		}
		if ps.Shell == "" {
			ps.Shell = j.Defaults.Run.Shell
		}
		if ps.WorkingDirectory == "" {
			ps.WorkingDirectory = j.Defaults.Run.WorkingDirectory
		}

		switch {
		case s.Run != "":
			ps.Kind = StepCommand
			ps.Command = s.Run
		case s.IsCheckout():
			ps.Kind = StepCheckout
			ps.Uses = s.Uses
			ps.With = s.With
		default:
			return Job{}, fmt.Errorf("job %q step %d: unsupported action %q (only actions/checkout is materialized locally)", id, i+1, s.Uses)
		}

		jp.Steps = append(jp.Steps, ps)
	}
	return jp, nil
}

func jobDisplayName(id string, j workflow.Job) string {
	if j.Name != "" {
		return j.Name
	}
	return id
}

// mergeEnv layers overlays left to right; later maps win.
func mergeEnv(layers ...map[string]string) map[string]string {
	out := map[string]string{}
	for _, layer := range layers {
		for k, v := range layer {
			out[k] = v
		}
	}
	return out
}
