package runner

import (
	"context"
	"errors"
	"fmt"

	"github.com/avast/retry-go/v4"
	"github.com/go-git/go-git/v5"
	"github.com/go-git/go-git/v5/plumbing"
	"github.com/go-git/go-git/v5/plumbing/transport"
	"go.uber.org/zap"

	"stepline/internal/event"
)

// Checkout materializes the checkout action: it clones the event's
// repository into the job workspace at the pushed ref.
//
// Cloning is the runner's only network-facing operation, so transient
// failures are retried with backoff before the step is failed.
type Checkout struct {
	// Attempts bounds clone retries. Zero means a single attempt.
	Attempts uint

	Log *zap.Logger
}

// Run clones ev.RepoPath into dest and checks out ev.Ref.
func (c *Checkout) Run(ctx context.Context, ev event.Push, dest string) error {
	if ev.RepoPath == "" {
		return fmt.Errorf("checkout: event has no repository")
	}

	opts := &git.CloneOptions{URL: ev.RepoPath}
	if ev.Ref != "" {
		opts.ReferenceName = plumbing.ReferenceName(ev.Ref)
		opts.SingleBranch = true
	}

	attempts := c.Attempts
	if attempts == 0 {
		attempts = 1
	}

	return retry.Do(
		func() error {
			_, err := git.PlainCloneContext(ctx, dest, false, opts)
			if err != nil {
				return fmt.Errorf("clone %s: %w", ev.RepoPath, err)
			}
			return nil
		},
		retry.Attempts(attempts),
		retry.Context(ctx),
		retry.LastErrorOnly(true),
		retry.RetryIf(func(err error) bool {
			// A missing ref will not appear on retry; only transient
			// failures are worth another attempt.
			return !isPermanentCloneError(err)
		}),
		retry.OnRetry(func(n uint, err error) {
			if c.Log != nil {
				c.Log.Warn("retrying checkout",
					zap.Uint("attempt", n+1),
					zap.String("repo", ev.RepoPath),
					zap.Error(err),
				)
			}
		}),
	)
}

func isPermanentCloneError(err error) bool {
	return errors.Is(err, git.ErrRepositoryAlreadyExists) ||
		errors.Is(err, plumbing.ErrReferenceNotFound) ||
		errors.Is(err, transport.ErrRepositoryNotFound)
}
