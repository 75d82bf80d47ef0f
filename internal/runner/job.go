package runner

import (
	"context"
	"errors"
	"path/filepath"
	"time"

	"go.uber.org/zap"

	"stepline/internal/event"
	"stepline/internal/plan"
)

// CommandRunner executes a single command step.
type CommandRunner interface {
	Run(ctx context.Context, spec CommandSpec) (*CommandResult, error)
}

// CheckoutRunner materializes a checkout step into a workspace.
type CheckoutRunner interface {
	Run(ctx context.Context, ev event.Push, dest string) error
}

// JobRunner executes the steps of one job strictly sequentially.
//
// Semantics:
//   - Steps run in definition order; the first failing step fails the
//     job and the remaining steps are marked skipped.
//   - A step with continue-on-error records its failure without failing
//     the job.
//   - Cancellation marks the interrupted step and every remaining step
//     cancelled.
type JobRunner struct {
	Exec     CommandRunner
	Checkout CheckoutRunner
	Log      *zap.Logger

	// StepTimeout applies to steps without their own timeout. Zero means
	// unbounded.
	StepTimeout time.Duration

	// JobTimeout applies to jobs without their own timeout. Zero means
	// unbounded.
	JobTimeout time.Duration
}

// Run executes job inside workspace for the given event.
//
// The returned JobResult always contains one StepResult per planned
// step; Run itself only errors on invariant violations, never on step
// failure.
func (r *JobRunner) Run(ctx context.Context, job plan.Job, workspace string, ev event.Push) (JobResult, error) {
	res := JobResult{
		ID:        job.ID,
		Name:      job.Name,
		Status:    StatusRunning,
		Workspace: workspace,
		StartedAt: time.Now().UTC(),
		Steps:     make([]StepResult, 0, len(job.Steps)),
	}

	jobCtx := ctx
	timeout := job.Timeout
	if timeout == 0 {
		timeout = r.JobTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		jobCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}
	log = log.With(zap.String("job", job.ID))

	failed := false
	for _, ps := range job.Steps {
		sr := StepResult{
			Index:  ps.Index,
			ID:     ps.ID,
			Name:   ps.Name,
			Status: StatusPending,
		}

		switch {
		case jobCtx.Err() != nil:
			sr.Status, _ = transition(ps.Name, sr.Status, StatusPending, StatusCancelled)
		case failed:
			sr.Status, _ = transition(ps.Name, sr.Status, StatusPending, StatusSkipped)
			log.Debug("step skipped", zap.String("step", ps.Name))
		default:
			var err error
			sr, err = r.runStep(jobCtx, log, ps, workspace, ev)
			if err != nil {
				return res, err
			}
			if sr.Failed() && !ps.ContinueOnError {
				failed = true
			}
			if sr.Failed() && ps.ContinueOnError {
				log.Info("step failed but continues",
					zap.String("step", ps.Name),
					zap.Int("exit_code", sr.ExitCode),
				)
			}
		}

		res.Steps = append(res.Steps, sr)
	}

	res.Duration = time.Since(res.StartedAt)
	res.Status = concludeJob(jobCtx, res.Steps, failed)
	return res, nil
}

// concludeJob folds step outcomes into the job conclusion.
func concludeJob(ctx context.Context, steps []StepResult, failed bool) Status {
	if err := ctx.Err(); err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return StatusFailed
		}
		return StatusCancelled
	}
	for _, s := range steps {
		if s.Status == StatusCancelled {
			return StatusCancelled
		}
	}
	if failed {
		return StatusFailed
	}
	return StatusSucceeded
}

// runStep executes a single step, mapping cancellation and timeout into
// step status rather than a hard error.
func (r *JobRunner) runStep(ctx context.Context, log *zap.Logger, ps plan.Step, workspace string, ev event.Push) (StepResult, error) {
	sr := StepResult{
		Index:     ps.Index,
		ID:        ps.ID,
		Name:      ps.Name,
		Status:    StatusPending,
		StartedAt: time.Now().UTC(),
	}

	var err error
	if sr.Status, err = transition(ps.Name, sr.Status, StatusPending, StatusRunning); err != nil {
		return sr, err
	}
	log.Info("step started", zap.Int("index", ps.Index), zap.String("step", ps.Name))

	stepCtx := ctx
	timeout := ps.Timeout
	if timeout == 0 {
		timeout = r.StepTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		stepCtx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	switch ps.Kind {
	case plan.StepCheckout:
		err = r.Checkout.Run(stepCtx, ev, workspace)
		if err == nil {
			sr.ExitCode = 0
		} else {
			sr.ExitCode = 1
			sr.Err = err
		}

	case plan.StepCommand:
		var out *CommandResult
		out, err = r.Exec.Run(stepCtx, CommandSpec{
			Script: ps.Command,
			Shell:  ps.Shell,
			Dir:    stepDir(workspace, ps.WorkingDirectory),
			Env:    contextEnv(ps, ev, workspace),
		})
		if out != nil {
			sr.Stdout = out.Stdout
			sr.Stderr = out.Stderr
			sr.ExitCode = out.ExitCode
		}
		if err != nil {
			sr.Err = err
		}
	}

	sr.Duration = time.Since(sr.StartedAt)

	to := StatusSucceeded
	switch {
	case ctx.Err() != nil:
		// The whole job was cancelled or timed out while this step ran.
		to = StatusCancelled
	case stepCtx.Err() != nil && errors.Is(stepCtx.Err(), context.DeadlineExceeded):
		// Per-step timeout: the step fails, the job fails normally.
		to = StatusFailed
		log.Warn("step timed out", zap.String("step", ps.Name), zap.Duration("timeout", timeout))
	case sr.Err != nil || sr.ExitCode != 0:
		to = StatusFailed
	}

	if sr.Status, err = transition(ps.Name, sr.Status, StatusRunning, to); err != nil {
		return sr, err
	}

	log.Info("step finished",
		zap.String("step", ps.Name),
		zap.String("status", string(sr.Status)),
		zap.Int("exit_code", sr.ExitCode),
		zap.Duration("duration", sr.Duration),
	)
	return sr, nil
}

func stepDir(workspace, workingDirectory string) string {
	if workingDirectory == "" {
		return workspace
	}
	if filepath.IsAbs(workingDirectory) {
		return filepath.Clean(workingDirectory)
	}
	return filepath.Join(workspace, workingDirectory)
}

// contextEnv merges the planned step overlay with the runner context
// variables every step can rely on.
func contextEnv(ps plan.Step, ev event.Push, workspace string) map[string]string {
	env := make(map[string]string, len(ps.Env)+4)
	for k, v := range ps.Env {
		env[k] = v
	}
	env["STEPLINE_WORKSPACE"] = workspace
	env["STEPLINE_REF"] = ev.Ref
	if ev.After != "" {
		env["STEPLINE_SHA"] = ev.After
	}
	env["STEPLINE_STEP"] = ps.Name
	return env
}
