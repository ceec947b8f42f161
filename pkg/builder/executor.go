// pkg/builder/executor.go
package builder

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"os"
	"os/exec"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/hydroshed/forge/pkg/catalog"
	"github.com/hydroshed/forge/pkg/envprobe"
)

// LogSuffix names the per-tool build log, written beside the work
// directory rather than inside it: clone steps need an empty tree to
// populate, and build scripts may wipe the tree outright.
const LogSuffix = ".build.log"

const defaultTailLines = 40

// Result is the structured outcome of executing one tool's build steps.
type Result struct {
	Tool           string
	Success        bool
	Cancelled      bool
	FailedStep     int // index into BuildSteps, -1 when Success
	FailedStepName string
	Duration       time.Duration
	LogPath        string
	LogTail        []string
	Err            error
}

// Executor runs build steps strictly in sequence inside a tool's work
// directory, capturing combined output to a log artifact.
type Executor struct {
	log    *zap.Logger
	client *http.Client
	runGit gitRunner
	tail   int
}

// ExecutorOption customizes an Executor.
type ExecutorOption func(*Executor)

// WithLogger attaches a logger for step progress and retry diagnostics.
func WithLogger(log *zap.Logger) ExecutorOption {
	return func(x *Executor) { x.log = log }
}

// WithHTTPClient replaces the archive download client.
func WithHTTPClient(client *http.Client) ExecutorOption {
	return func(x *Executor) { x.client = client }
}

// WithGitRunner replaces the git invocation used by clone steps.
func WithGitRunner(fn gitRunner) ExecutorOption {
	return func(x *Executor) { x.runGit = fn }
}

// WithTailLines bounds the log tail kept on the Result.
func WithTailLines(n int) ExecutorOption {
	return func(x *Executor) { x.tail = n }
}

// NewExecutor creates an Executor with production defaults.
func NewExecutor(opts ...ExecutorOption) *Executor {
	x := &Executor{
		log: zap.NewNop(),
		client: &http.Client{
			Timeout: 10 * time.Minute,
			Transport: &http.Transport{
				MaxIdleConns:        100,
				MaxIdleConnsPerHost: 10,
				IdleConnTimeout:     90 * time.Second,
			},
		},
		runGit: execGit,
		tail:   defaultTailLines,
	}
	for _, opt := range opts {
		opt(x)
	}
	return x
}

// Execute runs the tool's build steps against the environment snapshot
// inside workDir. Execution stops at the first failing step; remaining
// steps are skipped. The full combined output is retained in the log
// artifact and a bounded tail is returned for reporting.
func (x *Executor) Execute(ctx context.Context, tool catalog.ToolDefinition, env envprobe.BuildEnvironment, workDir string) Result {
	start := time.Now()
	res := Result{Tool: tool.Name, FailedStep: -1}

	if err := os.MkdirAll(workDir, 0o755); err != nil {
		res.Err = fmt.Errorf("creating work directory: %w", err)
		res.Duration = time.Since(start)
		return res
	}

	res.LogPath = workDir + LogSuffix
	logFile, err := os.Create(res.LogPath)
	if err != nil {
		res.Err = fmt.Errorf("creating build log: %w", err)
		res.Duration = time.Since(start)
		return res
	}
	defer logFile.Close()

	tail := newTailWriter(x.tail)
	sc := &StepContext{
		Env:     env,
		WorkDir: workDir,
		Log:     io.MultiWriter(logFile, tail),
	}

	for i, spec := range tool.BuildSteps {
		step, err := x.fromSpec(spec, i)
		if err != nil {
			res.failStep(i, string(spec.Kind), err)
			break
		}

		x.log.Info("running build step",
			zap.String("tool", tool.Name),
			zap.Int("step", i+1),
			zap.Int("steps", len(tool.BuildSteps)),
			zap.String("name", step.Name()))
		fmt.Fprintf(sc.Log, "==> [%d/%d] %s\n", i+1, len(tool.BuildSteps), step.Name())

		if err := step.Run(ctx, sc); err != nil {
			res.failStep(i, step.Name(), err)
			res.Cancelled = errors.Is(err, context.Canceled) || ctx.Err() != nil
			x.log.Error("build step failed",
				zap.String("tool", tool.Name),
				zap.String("step", step.Name()),
				zap.Bool("cancelled", res.Cancelled),
				zap.Error(err))
			break
		}
	}

	res.Success = res.Err == nil
	res.Duration = time.Since(start)
	res.LogTail = tail.Lines()
	return res
}

func (r *Result) failStep(index int, name string, err error) {
	r.FailedStep = index
	r.FailedStepName = name
	r.Err = err
}

// execGit is the production gitRunner. Stderr is folded into the
// returned error so callers can classify git's diagnostics.
func execGit(ctx context.Context, sc *StepContext, dir string, args ...string) error {
	var stderr bytes.Buffer
	cmd := exec.CommandContext(ctx, "git", args...)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), sc.Env.Environ()...)
	cmd.Stdout = sc.Log
	cmd.Stderr = io.MultiWriter(sc.Log, &stderr)
	if err := cmd.Run(); err != nil {
		if msg := strings.TrimSpace(stderr.String()); msg != "" {
			return fmt.Errorf("git %v: %w: %s", args, err, msg)
		}
		return fmt.Errorf("git %v: %w", args, err)
	}
	return nil
}
