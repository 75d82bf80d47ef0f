// Package cli wires the workflow loader, planner, and runner into the
// stepline command tree and maps outcomes to semantic exit codes.
package cli

import (
	"context"
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"

	"stepline/internal/config"
)

type app struct {
	verbose bool

	cfg *config.Config
	log *zap.Logger
}

// Execute runs the command tree and returns the process exit code.
// Panics are contained and reported as internal errors so a bug in the
// runner never takes down the terminal with a stack trace by default.
func Execute(ctx context.Context, args []string) (code int) {
	defer func() {
		if r := recover(); r != nil {
			fmt.Fprintf(os.Stderr, "internal error: %v\n", r)
			code = ExitInternalError
		}
	}()

	a := &app{}
	root := newRootCmd(a)
	root.SetArgs(args)

	err := root.ExecuteContext(ctx)
	if a.log != nil {
		_ = a.log.Sync()
	}
	if err == nil {
		return ExitSuccess
	}

	fmt.Fprintln(os.Stderr, err)

	var ee *ExitError
	if errors.As(err, &ee) {
		return ee.Code
	}
	// Anything cobra rejected before a command ran is a usage error.
	return ExitInvalidInvocation
}

func newRootCmd(a *app) *cobra.Command {
	root := &cobra.Command{
		Use:   "stepline",
		Short: "Run push-triggered CI workflows locally",
		Long: `stepline loads a CI workflow definition, plans the jobs a push
event triggers, and executes their steps sequentially on the local
machine, recording a report for every run.`,
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cmd.Context())
			if err != nil {
				return workflowErrorf(err)
			}
			a.cfg = cfg

			zc := zap.NewProductionConfig()
			level, err := zapcore.ParseLevel(cfg.LogLevel)
			if err != nil {
				return workflowErrorf(fmt.Errorf("invalid log level %q: %w", cfg.LogLevel, err))
			}
			if a.verbose {
				level = zapcore.DebugLevel
			}
			zc.Level = zap.NewAtomicLevelAt(level)
			a.log, err = zc.Build()
			if err != nil {
				return internalErrorf(fmt.Errorf("initialize logger: %w", err))
			}
			return nil
		},
	}

	root.PersistentFlags().BoolVarP(&a.verbose, "verbose", "v", false, "enable debug logging")

	root.AddCommand(
		newValidateCmd(a),
		newPlanCmd(a),
		newRunCmd(a),
		newHistoryCmd(a),
	)
	return root
}
