package cli

import (
	"context"
	"fmt"
	"io"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"stepline/internal/event"
	"stepline/internal/history"
	"stepline/internal/plan"
	"stepline/internal/report"
	"stepline/internal/runner"
	"stepline/internal/workflow"
)

func newValidateCmd(a *app) *cobra.Command {
	return &cobra.Command{
		Use:   "validate <workflow>",
		Short: "Check a workflow definition for schema and structural errors",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workflow.Load(args[0])
			if err != nil {
				return workflowErrorf(err)
			}
			fmt.Fprintf(cmd.OutOrStdout(), "%s: ok (%s)\n", args[0], workflow.ComputeHash(w))
			return nil
		},
	}
}

func newPlanCmd(a *app) *cobra.Command {
	var ref string

	cmd := &cobra.Command{
		Use:   "plan <workflow>",
		Short: "Show the jobs and steps a push event would execute",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			w, err := workflow.Load(args[0])
			if err != nil {
				return workflowErrorf(err)
			}
			p, err := plan.Build(w, event.Push{Ref: ref})
			if err != nil {
				return workflowErrorf(err)
			}
			printPlan(cmd.OutOrStdout(), p)
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "refs/heads/main", "pushed ref to plan for")
	return cmd
}

func printPlan(w io.Writer, p *plan.Plan) {
	fmt.Fprintf(w, "workflow %s (%s)\n", p.WorkflowName, p.WorkflowHash)
	for _, job := range p.Jobs {
		fmt.Fprintf(w, "job %s", job.ID)
		if len(job.Needs) > 0 {
			fmt.Fprintf(w, " (needs %s)", strings.Join(job.Needs, ", "))
		}
		fmt.Fprintln(w)
		for _, step := range job.Steps {
			fmt.Fprintf(w, "  %d. [%s] %s\n", step.Index, step.Kind, step.Name)
		}
	}
}

func newRunCmd(a *app) *cobra.Command {
	var (
		ref        string
		sha        string
		repo       string
		reportPath string
		watch      bool
	)

	cmd := &cobra.Command{
		Use:   "run <workflow>",
		Short: "Execute a workflow for a push event",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			repoAbs, err := filepath.Abs(repo)
			if err != nil {
				return workflowErrorf(fmt.Errorf("resolve repository path: %w", err))
			}
			ev := event.Push{Ref: ref, After: sha, RepoPath: repoAbs}

			if watch {
				return a.watchAndRun(cmd.Context(), cmd.OutOrStdout(), args[0], ev, reportPath)
			}

			res, err := a.runOnce(cmd.Context(), cmd.OutOrStdout(), args[0], ev, reportPath)
			if err != nil {
				return err
			}
			if !res.Succeeded() {
				return &ExitError{Code: ExitRunFailed, Err: fmt.Errorf("run %s %s", res.RunID, res.Status)}
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&ref, "ref", "refs/heads/main", "pushed ref")
	cmd.Flags().StringVar(&sha, "sha", "", "pushed commit (exported as STEPLINE_SHA)")
	cmd.Flags().StringVar(&repo, "repo", ".", "repository checkout steps clone from")
	cmd.Flags().StringVar(&reportPath, "report", "", "also write the JSON run report to this path")
	cmd.Flags().BoolVar(&watch, "watch", false, "re-run whenever the repository changes")
	return cmd
}

// runOnce loads, plans, executes, and records a single run.
func (a *app) runOnce(ctx context.Context, out io.Writer, path string, ev event.Push, reportPath string) (*runner.RunResult, error) {
	w, err := workflow.Load(path)
	if err != nil {
		return nil, workflowErrorf(err)
	}
	p, err := plan.Build(w, ev)
	if err != nil {
		return nil, workflowErrorf(err)
	}

	r := &runner.Runner{
		Jobs: &runner.JobRunner{
			Exec:        &runner.ShellExecutor{DefaultShell: a.cfg.Shell},
			Checkout:    &runner.Checkout{Attempts: a.cfg.CheckoutAttempts, Log: a.log},
			Log:         a.log,
			StepTimeout: a.cfg.StepTimeout,
			JobTimeout:  a.cfg.JobTimeout,
		},
		Log:         a.log,
		WorkRoot:    a.cfg.WorkRoot,
		Concurrency: a.cfg.Concurrency,
	}

	res, err := r.Run(ctx, p, ev)
	if err != nil {
		return nil, internalErrorf(err)
	}

	rep := report.New(res)
	if store, serr := history.NewStore(a.historyDir(path)); serr == nil {
		if serr := store.Save(rep); serr != nil {
			a.log.Warn("saving run report failed", zap.Error(serr))
		}
	}
	if reportPath != "" {
		if werr := rep.WriteFile(reportPath); werr != nil {
			return nil, internalErrorf(werr)
		}
	}

	report.WriteSummary(out, rep)
	return res, nil
}

// historyDir is where run reports are kept: the configured work root,
// or the workflow's own directory when none is set.
func (a *app) historyDir(workflowPath string) string {
	if a.cfg.WorkRoot != "" {
		return a.cfg.WorkRoot
	}
	return filepath.Dir(workflowPath)
}

func newHistoryCmd(a *app) *cobra.Command {
	var workDir string

	cmd := &cobra.Command{
		Use:   "history",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore(workDir)
			if err != nil {
				return workflowErrorf(err)
			}
			entries, err := store.List()
			if err != nil {
				return internalErrorf(err)
			}
			out := cmd.OutOrStdout()
			if len(entries) == 0 {
				fmt.Fprintln(out, "no recorded runs")
				return nil
			}
			for _, e := range entries {
				if e.Err != nil {
					fmt.Fprintf(out, "%s  (unreadable: %v)\n", e.RunID, e.Err)
					continue
				}
				fmt.Fprintf(out, "%s  %-9s  %-20s  %s\n",
					e.RunID, e.Report.Status, e.Report.Workflow, humanize.Time(e.Report.StartedAt))
			}
			return nil
		},
	}
	cmd.PersistentFlags().StringVar(&workDir, "workdir", ".", "directory run reports were recorded under")

	show := &cobra.Command{
		Use:   "show <run-id>",
		Short: "Print the summary of one recorded run",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := history.NewStore(workDir)
			if err != nil {
				return workflowErrorf(err)
			}
			rep, err := store.Load(args[0])
			if err != nil {
				return workflowErrorf(err)
			}
			report.WriteSummary(cmd.OutOrStdout(), rep)
			return nil
		},
	}
	cmd.AddCommand(show)
	return cmd
}
