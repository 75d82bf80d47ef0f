package report

import (
	"fmt"
	"io"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/fatih/color"
)

var (
	green   = color.New(color.FgGreen)
	red     = color.New(color.FgRed)
	yellow  = color.New(color.FgYellow)
	magenta = color.New(color.FgMagenta)
	bold    = color.New(color.Bold)
)

func statusMark(status string) string {
	switch status {
	case "succeeded":
		return green.Sprint("✓")
	case "failed":
		return red.Sprint("✗")
	case "skipped":
		return yellow.Sprint("-")
	case "cancelled":
		return magenta.Sprint("!")
	default:
		return "?"
	}
}

// WriteSummary prints the human-readable outcome of a run: one line per
// job, indented lines per step, and a trailer with the overall verdict.
func WriteSummary(w io.Writer, r Report) {
	fmt.Fprintf(w, "%s %s (%s)\n", bold.Sprint(r.Workflow), r.RunID, humanize.Time(r.StartedAt))
	if r.Ref != "" {
		fmt.Fprintf(w, "  ref %s\n", r.Ref)
	}

	for _, job := range r.Jobs {
		fmt.Fprintf(w, "%s %s  %s  %s output\n",
			statusMark(job.Status),
			bold.Sprint(job.Name),
			formatMillis(job.DurationMS),
			humanize.Bytes(uint64(job.OutputBytes)),
		)
		for _, step := range job.Steps {
			line := fmt.Sprintf("  %s %-40s %s", statusMark(step.Status), step.Name, formatMillis(step.DurationMS))
			if step.Status == "failed" {
				line += red.Sprintf("  exit %d", step.ExitCode)
			}
			if step.Error != "" {
				line += "  " + step.Error
			}
			fmt.Fprintln(w, line)
		}
	}

	verdict := statusMark(r.Status)
	fmt.Fprintf(w, "\n%s run %s in %s\n", verdict, r.Status, formatMillis(r.DurationMS))
}

func formatMillis(ms int64) string {
	return (time.Duration(ms) * time.Millisecond).Round(time.Millisecond).String()
}
