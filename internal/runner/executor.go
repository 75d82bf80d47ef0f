package runner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"sort"
	"strings"
	"syscall"
)

// CommandSpec is everything needed to execute one command step.
type CommandSpec struct {
	// Script is the shell command block, possibly multi-line.
	Script string

	// Shell selects the interpreter. Empty means the executor default.
	Shell string

	// Dir is the working directory.
	Dir string

	// Env maps overlay variables applied on top of the host environment.
	Env map[string]string
}

// CommandResult is the raw outcome of a command execution.
type CommandResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// ShellExecutor runs command blocks through a shell, the way a CI runner
// does: errexit semantics so the first failing line of a multi-line block
// fails the step, and the whole process group killed on cancellation.
type ShellExecutor struct {
	// DefaultShell applies when the spec does not name one. Empty means
	// bash.
	DefaultShell string
}

// shellArgv maps a shell name to its invocation argv for a script.
//
// bash gets errexit and pipefail and skips profile files so host dotfiles
// cannot leak into runs. Plain sh gets errexit only (pipefail is not
// portable). Anything else is invoked as `<shell> -c <script>`.
func shellArgv(shell, script string) []string {
	switch shell {
	case "", "bash":
		return []string{"bash", "--noprofile", "--norc", "-e", "-o", "pipefail", "-c", script}
	case "sh":
		return []string{"sh", "-e", "-c", script}
	default:
		return []string{shell, "-c", script}
	}
}

// Run executes the spec and returns its captured output and exit code.
//
// A non-zero exit is NOT an error: it is a regular result the caller
// maps to a step failure. Errors mean the command could not be run at
// all or was cancelled.
func (e *ShellExecutor) Run(ctx context.Context, spec CommandSpec) (*CommandResult, error) {
	if strings.TrimSpace(spec.Script) == "" {
		return nil, fmt.Errorf("empty command script")
	}

	shell := spec.Shell
	if shell == "" {
		shell = e.DefaultShell
	}
	argv := shellArgv(shell, spec.Script)

	cmd := exec.CommandContext(ctx, argv[0], argv[1:]...)
	cmd.Dir = spec.Dir
	cmd.Env = overlayEnviron(os.Environ(), spec.Env)

	// Put the step in its own process group so cancellation can kill the
	// whole tree, not just the shell.
	cmd.SysProcAttr = &syscall.SysProcAttr{Setpgid: true}

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr
	cmd.Cancel = func() error {
		if cmd.Process == nil {
			return nil
		}
		return syscall.Kill(-cmd.Process.Pid, syscall.SIGKILL)
	}

	err := cmd.Run()
	if ctx.Err() != nil {
		return nil, fmt.Errorf("step cancelled: %w", ctx.Err())
	}

	exitCode := 0
	if err != nil {
		var exitErr *exec.ExitError
		if !errors.As(err, &exitErr) {
			// The shell itself could not be started.
			return nil, fmt.Errorf("start command: %w", err)
		}
		exitCode = exitErr.ExitCode()
	}

	return &CommandResult{
		Stdout:   stdout.Bytes(),
		Stderr:   stderr.Bytes(),
		ExitCode: exitCode,
	}, nil
}

// overlayEnviron layers overlay variables onto a base environment,
// replacing duplicates. The result is sorted for deterministic process
// environments.
func overlayEnviron(base []string, overlay map[string]string) []string {
	merged := make(map[string]string, len(base)+len(overlay))
	for _, kv := range base {
		if i := strings.IndexByte(kv, '='); i >= 0 {
			merged[kv[:i]] = kv[i+1:]
		}
	}
	for k, v := range overlay {
		merged[k] = v
	}

	keys := make([]string, 0, len(merged))
	for k := range merged {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	out := make([]string, 0, len(keys))
	for _, k := range keys {
		out = append(out, k+"="+merged[k])
	}
	return out
}
