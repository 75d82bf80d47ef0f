package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/fsnotify/fsnotify"
	"go.uber.org/zap"

	"stepline/internal/event"
)

// watchDebounce coalesces bursts of filesystem events (editor saves,
// git checkouts) into a single re-run.
const watchDebounce = 500 * time.Millisecond

// watchAndRun executes the workflow once, then re-runs it every time
// the repository changes, until the context is cancelled.
//
// A failing run or a broken workflow file does not stop the watch; the
// error is printed and the next change triggers another attempt.
func (a *app) watchAndRun(ctx context.Context, out io.Writer, path string, ev event.Push, reportPath string) error {
	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return internalErrorf(fmt.Errorf("create watcher: %w", err))
	}
	defer watcher.Close()

	if err := addRecursive(watcher, ev.RepoPath); err != nil {
		return workflowErrorf(fmt.Errorf("watch %s: %w", ev.RepoPath, err))
	}
	a.log.Info("watching repository", zap.String("repo", ev.RepoPath))

	run := func() {
		if _, err := a.runOnce(ctx, out, path, ev, reportPath); err != nil {
			fmt.Fprintln(os.Stderr, err)
		}
	}
	run()

	timer := time.NewTimer(watchDebounce)
	if !timer.Stop() {
		<-timer.C
	}
	defer timer.Stop()

	pending := false
	for {
		select {
		case <-ctx.Done():
			return nil

		case fe, ok := <-watcher.Events:
			if !ok {
				return nil
			}
			if ignoredPath(fe.Name) {
				continue
			}
			if fe.Op&(fsnotify.Create|fsnotify.Write|fsnotify.Remove|fsnotify.Rename) == 0 {
				continue
			}
			if fe.Op&fsnotify.Create != 0 {
				if fi, err := os.Stat(fe.Name); err == nil && fi.IsDir() {
					_ = addRecursive(watcher, fe.Name)
				}
			}
			if pending && !timer.Stop() {
				<-timer.C
			}
			timer.Reset(watchDebounce)
			pending = true

		case werr, ok := <-watcher.Errors:
			if !ok {
				return nil
			}
			a.log.Warn("watch error", zap.Error(werr))

		case <-timer.C:
			pending = false
			run()
		}
	}
}

// addRecursive watches root and every subdirectory except ignored ones.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			if errors.Is(err, fs.ErrNotExist) {
				return nil
			}
			return err
		}
		if !d.IsDir() {
			return nil
		}
		if ignoredPath(p) {
			return filepath.SkipDir
		}
		return watcher.Add(p)
	})
}

// ignoredPath filters out git internals and stepline's own state so a
// run never retriggers itself.
func ignoredPath(p string) bool {
	p = filepath.ToSlash(p)
	return strings.Contains(p, "/.git/") || strings.HasSuffix(p, "/.git") ||
		strings.Contains(p, "/.stepline/") || strings.HasSuffix(p, "/.stepline")
}
