// pkg/builder/step.go

// Package builder executes a tool's declared build steps against an
// immutable build environment snapshot. Step variants cover running a
// shell script, fetching a source archive with retry, and cloning a
// repository with branch fallback; the catalog stays declarative while
// all execution logic lives here.
package builder

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/hydroshed/forge/pkg/catalog"
	"github.com/hydroshed/forge/pkg/envprobe"
)

// Network operations are retried a bounded number of times with a short
// fixed backoff. Compilation and configuration failures never retry.
const (
	fetchAttempts = 3
	fetchBackoff  = 2 * time.Second
)

// StepContext carries the per-tool execution state shared by all steps.
type StepContext struct {
	Env     envprobe.BuildEnvironment
	WorkDir string
	Log     io.Writer
}

// Step is one atomic unit of execution within a tool's build procedure.
// A step's working-directory changes are scoped to itself; the next step
// starts from the tool's work directory again.
type Step interface {
	Name() string
	Run(ctx context.Context, sc *StepContext) error
}

// fromSpec builds the executable step for a declarative descriptor.
func (x *Executor) fromSpec(spec catalog.StepSpec, index int) (Step, error) {
	name := spec.Name
	if name == "" {
		name = fmt.Sprintf("%s step %d", spec.Kind, index+1)
	}
	switch spec.Kind {
	case catalog.StepCommand:
		return &CommandStep{name: name, script: spec.Script, subdir: spec.Subdir}, nil
	case catalog.StepFetch:
		return &FetchStep{name: name, url: spec.URL, strip: spec.Strip, client: x.client, log: x.log}, nil
	case catalog.StepClone:
		return &CloneStep{name: name, repository: spec.Repository, branch: spec.Branch, runGit: x.runGit, log: x.log}, nil
	default:
		return nil, fmt.Errorf("unknown step kind %q", spec.Kind)
	}
}

func backoffOrDefault(d time.Duration) time.Duration {
	if d > 0 {
		return d
	}
	return fetchBackoff
}

// errNoRetry marks failures retrying cannot fix; withRetry returns
// them immediately without consuming further attempts.
var errNoRetry = errors.New("not retryable")

// withRetry runs fn up to attempts times with a fixed backoff between
// tries. Context cancellation stops the loop immediately.
func withRetry(ctx context.Context, log *zap.Logger, op string, attempts int, backoff time.Duration, fn func() error) error {
	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(); err == nil {
			return nil
		}
		if errors.Is(err, errNoRetry) {
			return err
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
		if attempt < attempts {
			log.Warn("transient failure, retrying",
				zap.String("op", op),
				zap.Int("attempt", attempt),
				zap.Duration("backoff", backoff),
				zap.Error(err))
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return ctx.Err()
			}
		}
	}
	return fmt.Errorf("%s failed after %d attempts: %w", op, attempts, err)
}
