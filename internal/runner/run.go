package runner

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"stepline/internal/event"
	"stepline/internal/plan"
)

// Runner executes a resolved plan: jobs in needs order, independent jobs
// concurrently, each in its own workspace directory.
type Runner struct {
	Jobs *JobRunner
	Log  *zap.Logger

	// WorkRoot is the directory job workspaces are created under.
	WorkRoot string

	// Concurrency bounds simultaneously running jobs. Zero or negative
	// means one at a time.
	Concurrency int
}

// Run executes the plan for the given event and returns the aggregated
// result. Step and job failures are regular results; an error means the
// runner itself could not proceed.
//
// Scheduling is depth-staged for determinism: jobs are grouped by their
// distance from the roots of the needs graph, stages run in order, and
// jobs within a stage run concurrently. A job whose needs did not all
// succeed is skipped without executing.
func (r *Runner) Run(ctx context.Context, p *plan.Plan, ev event.Push) (*RunResult, error) {
	if p == nil {
		return nil, fmt.Errorf("nil plan")
	}
	if r.Jobs == nil {
		return nil, fmt.Errorf("nil job runner")
	}

	log := r.Log
	if log == nil {
		log = zap.NewNop()
	}

	res := &RunResult{
		RunID:        uuid.NewString(),
		WorkflowName: p.WorkflowName,
		WorkflowHash: p.WorkflowHash,
		Ref:          p.Ref,
		StartedAt:    time.Now().UTC(),
	}

	log.Info("run started",
		zap.String("run_id", res.RunID),
		zap.String("workflow", p.WorkflowName),
		zap.String("ref", p.Ref),
	)

	stages := stagesByDepth(p)

	var mu sync.Mutex
	status := make(map[string]Status, len(p.Jobs))
	results := make(map[string]JobResult, len(p.Jobs))

	limit := r.Concurrency
	if limit <= 0 {
		limit = 1
	}

	for _, stage := range stages {
		g, stageCtx := errgroup.WithContext(ctx)
		g.SetLimit(limit)

		for _, job := range stage {
			job := job
			mu.Lock()
			blocked := blockedBy(job, status)
			mu.Unlock()

			if blocked != "" {
				mu.Lock()
				status[job.ID] = StatusSkipped
				results[job.ID] = JobResult{ID: job.ID, Name: job.Name, Status: StatusSkipped}
				mu.Unlock()
				log.Info("job skipped",
					zap.String("job", job.ID),
					zap.String("blocked_by", blocked),
				)
				continue
			}

			g.Go(func() error {
				ws, err := r.makeWorkspace(res.RunID, job.ID)
				if err != nil {
					return err
				}
				jr, err := r.Jobs.Run(stageCtx, job, ws, ev)
				if err != nil {
					return err
				}
				mu.Lock()
				status[job.ID] = jr.Status
				results[job.ID] = jr
				mu.Unlock()
				return nil
			})
		}

		if err := g.Wait(); err != nil {
			return nil, err
		}
	}

	// Collect results in plan order.
	for _, job := range p.Jobs {
		jr, ok := results[job.ID]
		if !ok {
			return nil, fmt.Errorf("missing result for job %q", job.ID)
		}
		res.Jobs = append(res.Jobs, jr)
	}

	res.Duration = time.Since(res.StartedAt)
	res.Status = concludeRun(res.Jobs)

	log.Info("run finished",
		zap.String("run_id", res.RunID),
		zap.String("status", string(res.Status)),
		zap.Duration("duration", res.Duration),
	)
	return res, nil
}

func (r *Runner) makeWorkspace(runID, jobID string) (string, error) {
	root := r.WorkRoot
	if root == "" {
		root = os.TempDir()
	}
	ws := filepath.Join(root, "stepline", runID, jobID)
	if err := os.MkdirAll(ws, 0o755); err != nil {
		return "", fmt.Errorf("create workspace: %w", err)
	}
	return ws, nil
}

// blockedBy returns the first need (in declaration order) that did not
// succeed, or "" when the job may run.
func blockedBy(job plan.Job, status map[string]Status) string {
	for _, dep := range job.Needs {
		if !status[dep].Satisfies() {
			return dep
		}
	}
	return ""
}

// stagesByDepth groups the plan's jobs by needs depth: a job's depth is
// one past the maximum depth of its needs. Plan order within a stage is
// preserved (it is already deterministic).
func stagesByDepth(p *plan.Plan) [][]plan.Job {
	depth := make(map[string]int, len(p.Jobs))
	maxDepth := 0
	for _, job := range p.Jobs {
		d := 0
		for _, dep := range job.Needs {
			if nd := depth[dep] + 1; nd > d {
				d = nd
			}
		}
		depth[job.ID] = d
		if d > maxDepth {
			maxDepth = d
		}
	}

	stages := make([][]plan.Job, maxDepth+1)
	for _, job := range p.Jobs {
		d := depth[job.ID]
		stages[d] = append(stages[d], job)
	}
	return stages
}
