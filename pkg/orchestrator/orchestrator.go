// pkg/orchestrator/orchestrator.go

// Package orchestrator drives the resolver -> executor -> verifier
// pipeline across a resolved install order, tracking per-tool state and
// aggregating a run report. Only resolution errors abort a run; every
// other failure is scoped to its tool.
package orchestrator

import (
	"context"
	"fmt"
	"os/exec"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/hydroshed/forge/pkg/builder"
	"github.com/hydroshed/forge/pkg/catalog"
	"github.com/hydroshed/forge/pkg/envprobe"
	"github.com/hydroshed/forge/pkg/resolver"
	"github.com/hydroshed/forge/pkg/verify"
)

// BuildExecutor runs one tool's build steps. Satisfied by
// builder.Executor; swapped for fakes in tests.
type BuildExecutor interface {
	Execute(ctx context.Context, tool catalog.ToolDefinition, env envprobe.BuildEnvironment, workDir string) builder.Result
}

// VerifyFunc evaluates a tool's install postcondition.
type VerifyFunc func(tool catalog.ToolDefinition, installRoot string) error

// ProbeFunc supplies the build environment snapshot for a run.
type ProbeFunc func() envprobe.BuildEnvironment

// SmokeFunc runs an optional post-install smoke test.
type SmokeFunc func(ctx context.Context, artifact, arg string) error

// Orchestrator coordinates installs for one catalog and install root.
type Orchestrator struct {
	cat         *catalog.Catalog
	installRoot string
	exec        BuildExecutor
	verify      VerifyFunc
	probe       ProbeFunc
	smoke       SmokeFunc
	workers     int
	force       bool
	log         *zap.Logger
}

// Option customizes an Orchestrator.
type Option func(*Orchestrator)

// WithExecutor replaces the build executor.
func WithExecutor(exec BuildExecutor) Option {
	return func(o *Orchestrator) { o.exec = exec }
}

// WithVerifier replaces the postcondition check.
func WithVerifier(fn VerifyFunc) Option {
	return func(o *Orchestrator) { o.verify = fn }
}

// WithProbe replaces the environment snapshot supplier.
func WithProbe(fn ProbeFunc) Option {
	return func(o *Orchestrator) { o.probe = fn }
}

// WithSmoke replaces the smoke-test runner.
func WithSmoke(fn SmokeFunc) Option {
	return func(o *Orchestrator) { o.smoke = fn }
}

// WithWorkers bounds concurrent builds of mutually independent tools.
// The default of 1 keeps installs strictly sequential in resolved order.
func WithWorkers(n int) Option {
	return func(o *Orchestrator) { o.workers = n }
}

// WithForce rebuilds tools even when their artifacts already verify.
func WithForce(force bool) Option {
	return func(o *Orchestrator) { o.force = force }
}

// WithLogger attaches a logger for run progress.
func WithLogger(log *zap.Logger) Option {
	return func(o *Orchestrator) { o.log = log }
}

// New creates an Orchestrator for the catalog and install root.
func New(cat *catalog.Catalog, installRoot string, opts ...Option) *Orchestrator {
	o := &Orchestrator{
		cat:         cat,
		installRoot: installRoot,
		verify:      verify.Verify,
		workers:     1,
		log:         zap.NewNop(),
	}
	for _, opt := range opts {
		opt(o)
	}
	if o.exec == nil {
		o.exec = builder.NewExecutor(builder.WithLogger(o.log))
	}
	if o.probe == nil {
		o.probe = func() envprobe.BuildEnvironment { return envprobe.Detect(o.log) }
	}
	if o.smoke == nil {
		o.smoke = runSmoke
	}
	return o
}

// Run installs the requested tools and their transitive dependencies.
// Resolution failure aborts before any tool is touched; afterwards the
// run always proceeds to a complete report, with failures isolated to
// their owning tool and its dependents.
func (o *Orchestrator) Run(ctx context.Context, requested []string) (*Report, error) {
	order, err := resolver.Resolve(o.cat, requested)
	if err != nil {
		return nil, fmt.Errorf("resolving install order: %w", err)
	}

	// One snapshot per run: every tool's build steps observe identical
	// environment values, whatever individual build scripts do to their
	// own process environment.
	env := o.probe()

	o.log.Info("starting run",
		zap.Strings("order", order),
		zap.String("installRoot", o.installRoot),
		zap.Int("workers", o.workers))

	state := newInstallState(order)
	done := make(map[string]chan struct{}, len(order))
	for _, name := range order {
		done[name] = make(chan struct{})
	}

	workers := o.workers
	if workers < 1 {
		workers = 1
	}
	var g errgroup.Group
	g.SetLimit(workers)
	for _, name := range order {
		tool, _ := o.cat.Get(name)
		g.Go(func() error {
			defer close(done[tool.Name])
			o.process(ctx, tool, env, state, done)
			return nil
		})
	}
	// Workers record outcomes in the state map; nothing propagates an
	// error, so a failed tool never aborts its siblings.
	_ = g.Wait()

	report := &Report{Warnings: env.Warnings}
	for _, name := range order {
		entry := state.snapshot(name)
		report.Entries = append(report.Entries, ReportEntry{
			Tool:       name,
			Status:     entry.status,
			Duration:   entry.duration,
			Diagnostic: entry.reason,
		})
	}
	return report, nil
}

// process takes one tool through Pending -> InProgress -> terminal.
func (o *Orchestrator) process(ctx context.Context, tool catalog.ToolDefinition, env envprobe.BuildEnvironment, state *installState, done map[string]chan struct{}) {
	// Dependencies precede this tool in submission order, so their done
	// channels always close eventually.
	for _, dep := range tool.DependencySet() {
		select {
		case <-done[dep]:
		case <-ctx.Done():
		}
	}

	// A cancelled run leaves unstarted tools Pending rather than Failed.
	if ctx.Err() != nil {
		return
	}

	for _, dep := range tool.DependencySet() {
		switch status, _ := state.get(dep); status {
		case StatusFailed:
			o.log.Warn("skipping tool, dependency failed",
				zap.String("tool", tool.Name), zap.String("dependency", dep))
			state.set(tool.Name, StatusFailed, ReasonDependencyFailed)
			return
		case StatusPending:
			// Dependency never started (cancelled run); stay Pending.
			return
		}
	}

	// Resume contract: artifacts from a prior run satisfy the
	// postcondition without any build step running.
	if !o.force {
		if err := o.verify(tool, o.installRoot); err == nil {
			o.log.Info("already installed", zap.String("tool", tool.Name))
			state.set(tool.Name, StatusVerified, ReasonAlreadyInstalled)
			return
		}
	}

	state.set(tool.Name, StatusInProgress, "")
	workDir := filepath.Join(o.installRoot, tool.InstallDir)
	res := o.exec.Execute(ctx, tool, env, workDir)
	state.setDuration(tool.Name, res.Duration)

	if res.Cancelled {
		state.set(tool.Name, StatusFailed, ReasonCancelled)
		return
	}

	// The postcondition, not the build's exit status, decides success.
	verifyErr := o.verify(tool, o.installRoot)
	switch {
	case verifyErr == nil:
		diag := "installed"
		if !res.Success {
			diag = fmt.Sprintf("installed (step %q exited non-zero but artifacts verified)", res.FailedStepName)
		}
		if note := o.runSmokeTest(ctx, tool); note != "" {
			diag += "; " + note
		}
		o.log.Info("tool verified", zap.String("tool", tool.Name), zap.Duration("duration", res.Duration))
		state.set(tool.Name, StatusVerified, diag)
	case res.Success:
		// Build reported success but artifacts are missing: surfaced
		// distinctly so "build broke" and "wrong output location" are
		// distinguishable.
		o.log.Error("verification failed", zap.String("tool", tool.Name), zap.Error(verifyErr))
		state.set(tool.Name, StatusFailed, "verification failed: "+verifyErr.Error())
	default:
		o.log.Error("build failed",
			zap.String("tool", tool.Name),
			zap.Int("step", res.FailedStep),
			zap.String("log", res.LogPath),
			zap.Error(res.Err))
		state.set(tool.Name, StatusFailed,
			fmt.Sprintf("build failed at %s: %v (full log: %s)", res.FailedStepName, res.Err, res.LogPath))
	}
}

// runSmokeTest runs the tool's optional test command against the first
// verified artifact. Failures are advisory, never fatal.
func (o *Orchestrator) runSmokeTest(ctx context.Context, tool catalog.ToolDefinition) string {
	if tool.TestCommand == "" {
		return ""
	}
	artifact, ok := verify.FirstArtifact(tool, o.installRoot)
	if !ok {
		return ""
	}
	if err := o.smoke(ctx, artifact, tool.TestCommand); err != nil {
		o.log.Warn("smoke test failed",
			zap.String("tool", tool.Name),
			zap.String("artifact", artifact),
			zap.Error(err))
		return fmt.Sprintf("smoke test %q failed: %v", tool.TestCommand, err)
	}
	return ""
}

func runSmoke(ctx context.Context, artifact, arg string) error {
	return exec.CommandContext(ctx, artifact, arg).Run()
}
