// pkg/builder/clone.go
package builder

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"time"

	"go.uber.org/zap"
)

// gitRunner executes a git invocation in a directory. Injectable so
// clone behavior is testable without a network.
type gitRunner func(ctx context.Context, sc *StepContext, dir string, args ...string) error

// branchNotFoundRe matches git's diagnostics for a missing remote
// branch, the one clone failure the default-branch fallback covers.
// Network failures retry instead.
var branchNotFoundRe = regexp.MustCompile(`(?i)remote branch .* not found|could not find remote branch`)

func isBranchNotFound(err error) bool {
	return err != nil && branchNotFoundRe.MatchString(err.Error())
}

// CloneStep clones the tool's repository into the work directory. A
// named branch that does not exist on the remote falls back to the
// repository's default branch. Clones are network operations and share
// the fetch retry policy.
type CloneStep struct {
	name       string
	repository string
	branch     string
	runGit     gitRunner
	log        *zap.Logger
	backoff    time.Duration // zero means fetchBackoff
}

func (s *CloneStep) Name() string { return s.name }

func (s *CloneStep) Run(ctx context.Context, sc *StepContext) error {
	// A prior run already produced a checkout; cloning again would fail
	// on the non-empty directory and rebuilds don't need a fresh tree.
	if _, err := os.Stat(filepath.Join(sc.WorkDir, ".git")); err == nil {
		fmt.Fprintf(sc.Log, "existing checkout in %s, skipping clone\n", sc.WorkDir)
		return nil
	}

	err := s.clone(ctx, sc, s.branch)
	if s.branch != "" && isBranchNotFound(err) && ctx.Err() == nil {
		s.log.Warn("branch clone failed, falling back to default branch",
			zap.String("repository", s.repository),
			zap.String("branch", s.branch),
			zap.Error(err))
		fmt.Fprintf(sc.Log, "branch %q unavailable, cloning default branch\n", s.branch)
		err = s.clone(ctx, sc, "")
	}
	if err != nil {
		return fmt.Errorf("cloning %s: %w", s.repository, err)
	}
	return nil
}

func (s *CloneStep) clone(ctx context.Context, sc *StepContext, branch string) error {
	args := []string{"clone", "--depth", "1"}
	if branch != "" {
		args = append(args, "--branch", branch)
	}
	args = append(args, s.repository, ".")

	return withRetry(ctx, s.log, "clone "+s.repository, fetchAttempts, backoffOrDefault(s.backoff), func() error {
		err := s.runGit(ctx, sc, sc.WorkDir, args...)
		if isBranchNotFound(err) {
			// A missing branch won't appear on retry.
			return fmt.Errorf("%w: %w", errNoRetry, err)
		}
		return err
	})
}
