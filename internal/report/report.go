// Package report renders a finished run into its persistent JSON record
// and a human-readable terminal summary.
package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"time"

	"stepline/internal/runner"
)

// Report is the on-disk record of one run. Field order is fixed by the
// struct so the serialized form is stable across runs of the same data.
type Report struct {
	RunID        string      `json:"run_id"`
	Workflow     string      `json:"workflow"`
	WorkflowHash string      `json:"workflow_hash,omitempty"`
	Ref          string      `json:"ref,omitempty"`
	Status       string      `json:"status"`
	StartedAt    time.Time   `json:"started_at"`
	DurationMS   int64       `json:"duration_ms"`
	Jobs         []JobReport `json:"jobs"`
}

type JobReport struct {
	ID          string       `json:"id"`
	Name        string       `json:"name"`
	Status      string       `json:"status"`
	DurationMS  int64        `json:"duration_ms"`
	OutputBytes int64        `json:"output_bytes"`
	Steps       []StepReport `json:"steps"`
}

type StepReport struct {
	Index      int    `json:"index"`
	ID         string `json:"id,omitempty"`
	Name       string `json:"name"`
	Status     string `json:"status"`
	ExitCode   int    `json:"exit_code"`
	DurationMS int64  `json:"duration_ms"`
	Error      string `json:"error,omitempty"`
}

// New flattens a run result into its report form. Step output is not
// embedded; only its size is recorded per job.
func New(res *runner.RunResult) Report {
	r := Report{
		RunID:        res.RunID,
		Workflow:     res.WorkflowName,
		WorkflowHash: string(res.WorkflowHash),
		Ref:          res.Ref,
		Status:       string(res.Status),
		StartedAt:    res.StartedAt,
		DurationMS:   res.Duration.Milliseconds(),
		Jobs:         make([]JobReport, 0, len(res.Jobs)),
	}
	for _, job := range res.Jobs {
		jr := JobReport{
			ID:          job.ID,
			Name:        job.Name,
			Status:      string(job.Status),
			DurationMS:  job.Duration.Milliseconds(),
			OutputBytes: job.OutputBytes(),
			Steps:       make([]StepReport, 0, len(job.Steps)),
		}
		for _, step := range job.Steps {
			sr := StepReport{
				Index:      step.Index,
				ID:         step.ID,
				Name:       step.Name,
				Status:     string(step.Status),
				ExitCode:   step.ExitCode,
				DurationMS: step.Duration.Milliseconds(),
			}
			if step.Err != nil {
				sr.Error = step.Err.Error()
			}
			jr.Steps = append(jr.Steps, sr)
		}
		r.Jobs = append(r.Jobs, jr)
	}
	return r
}

// Validate checks the invariants a report must hold before it is
// persisted or trusted after loading.
func (r *Report) Validate() error {
	if r == nil {
		return errors.New("report is nil")
	}
	if r.RunID == "" {
		return errors.New("run_id is required")
	}
	if r.Status == "" {
		return errors.New("status is required")
	}
	for i, job := range r.Jobs {
		if job.ID == "" {
			return fmt.Errorf("jobs[%d].id is required", i)
		}
	}
	return nil
}

// JSON returns the indented, newline-terminated encoding of the report.
func (r Report) JSON() ([]byte, error) {
	if err := r.Validate(); err != nil {
		return nil, err
	}
	b, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return nil, err
	}
	return append(b, '\n'), nil
}

// WriteFile persists the report atomically: readers observe either the
// previous content or the complete new report, never a partial write.
func (r Report) WriteFile(path string) error {
	data, err := r.JSON()
	if err != nil {
		return err
	}
	if err := writeFileAtomic(path, data, 0o644); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}

// Read loads and validates a report, rejecting unknown fields and
// trailing content.
func Read(path string) (Report, error) {
	f, err := os.Open(path)
	if err != nil {
		return Report{}, err
	}
	defer f.Close()

	var r Report
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(&r); err != nil {
		return Report{}, fmt.Errorf("decode report %s: %w", path, err)
	}
	if err := dec.Decode(&struct{}{}); err != io.EOF {
		return Report{}, fmt.Errorf("decode report %s: trailing content", path)
	}
	if err := r.Validate(); err != nil {
		return Report{}, fmt.Errorf("report %s: %w", path, err)
	}
	return r, nil
}
