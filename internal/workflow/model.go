package workflow

import (
	"fmt"
	"strings"

	"gopkg.in/yaml.v3"
)

// Workflow is a declarative definition of an event-triggered job set.
//
// The shape mirrors the conventional workflow-file schema: a name, a
// trigger block, an optional environment overlay, and a map of named jobs
// each holding an ordered step list.
type Workflow struct {
	// Name is the display name. Optional; defaults to the file name at
	// load time.
	Name string `yaml:"name,omitempty"`

	// On declares the events that trigger this workflow.
	On Triggers `yaml:"on"`

	// Env is the workflow-level environment overlay, applied to every
	// step of every job.
	Env map[string]string `yaml:"env,omitempty"`

	// Jobs maps job identifier to definition. Identifiers are addressed
	// by `needs` edges.
	Jobs map[string]Job `yaml:"jobs"`
}

// Triggers is the parsed `on:` block.
//
// The source form is polymorphic: a scalar (`on: push`), a sequence
// (`on: [push]`), or a mapping with per-event filters
// (`on: {push: {branches: [main]}}`). All three forms normalize into
// this struct.
type Triggers struct {
	// Push is non-nil when the workflow runs on push events. A non-nil
	// zero value means "every push".
	Push *PushFilter

	// WorkflowDispatch is non-nil when manual dispatch is allowed.
	WorkflowDispatch *struct{}
}

// PushFilter narrows which pushed refs trigger the workflow.
//
// Patterns use glob syntax where `*` matches within a path segment and
// `**` matches across segments. Ignore filters take precedence over
// include filters and are mutually exclusive with them per ref kind.
type PushFilter struct {
	Branches       []string `yaml:"branches,omitempty"`
	BranchesIgnore []string `yaml:"branches-ignore,omitempty"`
	Tags           []string `yaml:"tags,omitempty"`
	TagsIgnore     []string `yaml:"tags-ignore,omitempty"`
}

// Job is a named, ordered sequence of steps executed on a single runner.
type Job struct {
	// Name is the display name; the map key is the identifier.
	Name string `yaml:"name,omitempty"`

	// RunsOn is the declared runner label. The local runner records it
	// but always executes on the host.
	RunsOn string `yaml:"runs-on,omitempty"`

	// Needs lists job identifiers that must succeed before this job runs.
	Needs []string `yaml:"needs,omitempty"`

	// Env is the job-level environment overlay.
	Env map[string]string `yaml:"env,omitempty"`

	// Defaults supplies per-job step defaults.
	Defaults Defaults `yaml:"defaults,omitempty"`

	// TimeoutMinutes bounds the whole job. Zero means the runner default.
	TimeoutMinutes int `yaml:"timeout-minutes,omitempty"`

	// Steps is the ordered step list. Order is execution order.
	Steps []Step `yaml:"steps"`
}

// Defaults carries job-wide step defaults.
type Defaults struct {
	Run RunDefaults `yaml:"run,omitempty"`
}

// RunDefaults applies to every `run` step of the job unless the step
// overrides it.
type RunDefaults struct {
	Shell            string `yaml:"shell,omitempty"`
	WorkingDirectory string `yaml:"working-directory,omitempty"`
}

// Step is a single unit of work: either a shell command block (`run`) or
// an action reference (`uses`). Exactly one of the two must be set.
type Step struct {
	// ID is an optional identifier, unique within the job.
	ID string `yaml:"id,omitempty"`

	// Name is the display name. When empty, the runner derives one from
	// Run or Uses.
	Name string `yaml:"name,omitempty"`

	// Uses references an action, e.g. "actions/checkout@v4".
	Uses string `yaml:"uses,omitempty"`

	// With holds action inputs for Uses steps.
	With map[string]string `yaml:"with,omitempty"`

	// Run is the shell command block. Multi-line blocks execute as a
	// single script under the step shell.
	Run string `yaml:"run,omitempty"`

	// Shell overrides the shell for this step.
	Shell string `yaml:"shell,omitempty"`

	// WorkingDirectory overrides the working directory for this step,
	// relative to the job workspace.
	WorkingDirectory string `yaml:"working-directory,omitempty"`

	// Env is the step-level environment overlay.
	Env map[string]string `yaml:"env,omitempty"`

	// ContinueOnError records a failure without failing the job.
	ContinueOnError bool `yaml:"continue-on-error,omitempty"`

	// TimeoutMinutes bounds this step. Zero means the runner default.
	TimeoutMinutes int `yaml:"timeout-minutes,omitempty"`
}

// DisplayName returns the name a runner renders for the step: the
// explicit name, else the uses reference, else the first line of the
// command block.
func (s Step) DisplayName() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Uses != "" {
		return s.Uses
	}
	line := s.Run
	if i := strings.IndexByte(line, '\n'); i >= 0 {
		line = line[:i]
	}
	return strings.TrimSpace(line)
}

// IsCheckout reports whether the step references the checkout action
// family (any version).
func (s Step) IsCheckout() bool {
	ref := s.Uses
	if i := strings.IndexByte(ref, '@'); i >= 0 {
		ref = ref[:i]
	}
	return ref == "actions/checkout"
}

// knownTriggerEvents is the set of event names this model accepts.
var knownTriggerEvents = map[string]bool{
	"push":              true,
	"workflow_dispatch": true,
}

// UnmarshalYAML normalizes the three accepted shapes of `on:`.
func (t *Triggers) UnmarshalYAML(value *yaml.Node) error {
	switch value.Kind {
	case yaml.ScalarNode:
		var event string
		if err := value.Decode(&event); err != nil {
			return err
		}
		return t.enable(event, nil)

	case yaml.SequenceNode:
		var events []string
		if err := value.Decode(&events); err != nil {
			return err
		}
		for _, ev := range events {
			if err := t.enable(ev, nil); err != nil {
				return err
			}
		}
		return nil

	case yaml.MappingNode:
		// Mapping nodes alternate key, value.
		for i := 0; i+1 < len(value.Content); i += 2 {
			keyNode := value.Content[i]
			valNode := value.Content[i+1]
			var event string
			if err := keyNode.Decode(&event); err != nil {
				return err
			}
			if err := t.enable(event, valNode); err != nil {
				return err
			}
		}
		return nil

	default:
		return fmt.Errorf("on: unsupported YAML node kind %d", value.Kind)
	}
}

func (t *Triggers) enable(event string, filter *yaml.Node) error {
	if !knownTriggerEvents[event] {
		return fmt.Errorf("on: unknown trigger event %q", event)
	}
	switch event {
	case "push":
		pf := &PushFilter{}
		if filter != nil && filter.Kind != yaml.ScalarNode {
			if err := filter.Decode(pf); err != nil {
				return fmt.Errorf("on.push: %w", err)
			}
		}
		t.Push = pf
	case "workflow_dispatch":
		t.WorkflowDispatch = &struct{}{}
	}
	return nil
}

// MarshalYAML emits the mapping form, the only shape that round-trips
// filters losslessly.
func (t Triggers) MarshalYAML() (any, error) {
	out := map[string]any{}
	if t.Push != nil {
		out["push"] = *t.Push
	}
	if t.WorkflowDispatch != nil {
		out["workflow_dispatch"] = struct{}{}
	}
	return out, nil
}

// Empty reports whether no trigger is declared.
func (t Triggers) Empty() bool {
	return t.Push == nil && t.WorkflowDispatch == nil
}
