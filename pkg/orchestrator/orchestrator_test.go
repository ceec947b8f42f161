// pkg/orchestrator/orchestrator_test.go
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/hydroshed/forge/pkg/builder"
	"github.com/hydroshed/forge/pkg/catalog"
	"github.com/hydroshed/forge/pkg/envprobe"
	"github.com/hydroshed/forge/pkg/resolver"
)

// testCatalog builds a catalog whose tools verify against a single
// "done" artifact in their install directory.
func testCatalog(t *testing.T, tools ...catalog.ToolDefinition) *catalog.Catalog {
	t.Helper()
	doc := "tools:\n"
	for _, tool := range tools {
		doc += fmt.Sprintf("  - name: %s\n    install_dir: %s\n    order: %d\n", tool.Name, tool.Name, tool.Order)
		doc += "    build_steps: [{kind: command, script: 'true'}]\n"
		doc += "    verify: {mode: all, paths: [done]}\n"
		if len(tool.Dependencies) > 0 {
			doc += "    dependencies: ["
			for i, dep := range tool.Dependencies {
				if i > 0 {
					doc += ", "
				}
				doc += dep
			}
			doc += "]\n"
		}
	}
	cat, err := catalog.Load([]byte(doc))
	require.NoError(t, err)
	return cat
}

func tool(name string, order int, deps ...string) catalog.ToolDefinition {
	return catalog.ToolDefinition{Name: name, Order: order, Dependencies: deps}
}

// fakeExecutor simulates builds by dropping the "done" artifact the test
// catalog verifies against. Per-tool behavior is tweaked through the
// fail, skipArtifact and block sets.
type fakeExecutor struct {
	mu           sync.Mutex
	calls        []string
	fail         map[string]bool // step exits non-zero
	skipArtifact map[string]bool // build "succeeds" but leaves nothing behind
	block        map[string]bool // hang until the context is cancelled
}

func (f *fakeExecutor) Execute(ctx context.Context, tool catalog.ToolDefinition, env envprobe.BuildEnvironment, workDir string) builder.Result {
	f.mu.Lock()
	f.calls = append(f.calls, tool.Name)
	f.mu.Unlock()

	if f.block[tool.Name] {
		<-ctx.Done()
		return builder.Result{Tool: tool.Name, Cancelled: true, FailedStep: 0, FailedStepName: "step-1", Err: ctx.Err()}
	}

	if !f.skipArtifact[tool.Name] {
		if err := os.MkdirAll(workDir, 0o755); err != nil {
			return builder.Result{Tool: tool.Name, FailedStep: 0, Err: err}
		}
		if err := os.WriteFile(filepath.Join(workDir, "done"), []byte("ok"), 0o644); err != nil {
			return builder.Result{Tool: tool.Name, FailedStep: 0, Err: err}
		}
	}

	if f.fail[tool.Name] {
		return builder.Result{Tool: tool.Name, FailedStep: 0, FailedStepName: "step-1", Err: errors.New("exit status 1"), Duration: time.Millisecond}
	}
	return builder.Result{Tool: tool.Name, Success: true, FailedStep: -1, Duration: time.Millisecond}
}

func (f *fakeExecutor) invocations() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeExecutor) indexOf(name string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, call := range f.calls {
		if call == name {
			return i
		}
	}
	return -1
}

func newTestOrchestrator(t *testing.T, cat *catalog.Catalog, exec *fakeExecutor, opts ...Option) (*Orchestrator, string) {
	t.Helper()
	root := t.TempDir()
	base := []Option{WithExecutor(exec), WithProbe(func() envprobe.BuildEnvironment {
		return envprobe.BuildEnvironment{CC: "gcc", CXX: "g++", FC: "gfortran", Cores: 2}
	})}
	return New(cat, root, append(base, opts...)...), root
}

func TestRunInstallsDependencyChain(t *testing.T) {
	cat := testCatalog(t, tool("solver", 1), tool("model", 2, "solver"))
	exec := &fakeExecutor{}
	o, _ := newTestOrchestrator(t, cat, exec)

	report, err := o.Run(context.Background(), []string{"model"})
	require.NoError(t, err)
	require.Len(t, report.Entries, 2)

	assert.Equal(t, "solver", report.Entries[0].Tool)
	assert.Equal(t, StatusVerified, report.Entries[0].Status)
	assert.Equal(t, "model", report.Entries[1].Tool)
	assert.Equal(t, StatusVerified, report.Entries[1].Status)
	assert.False(t, report.Failed())
	assert.Equal(t, []string{"solver", "model"}, exec.invocations())
}

func TestRunIsIdempotent(t *testing.T) {
	cat := testCatalog(t, tool("solver", 1), tool("model", 2, "solver"))
	exec := &fakeExecutor{}
	o, _ := newTestOrchestrator(t, cat, exec)

	_, err := o.Run(context.Background(), []string{"model"})
	require.NoError(t, err)
	require.Len(t, exec.invocations(), 2)

	report, err := o.Run(context.Background(), []string{"model"})
	require.NoError(t, err)
	// Artifacts from the first run satisfy the postcondition; no builds.
	assert.Len(t, exec.invocations(), 2)
	for _, entry := range report.Entries {
		assert.Equal(t, StatusVerified, entry.Status)
		assert.Equal(t, ReasonAlreadyInstalled, entry.Diagnostic)
	}
}

func TestRunForceRebuilds(t *testing.T) {
	cat := testCatalog(t, tool("solver", 1))
	exec := &fakeExecutor{}
	o, root := newTestOrchestrator(t, cat, exec, WithForce(true))

	require.NoError(t, os.MkdirAll(filepath.Join(root, "solver"), 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(root, "solver", "done"), []byte("old"), 0o644))

	report, err := o.Run(context.Background(), []string{"solver"})
	require.NoError(t, err)
	assert.Equal(t, []string{"solver"}, exec.invocations())
	assert.Equal(t, StatusVerified, report.Entries[0].Status)
}

func TestRunVerificationOverridesBuildFailure(t *testing.T) {
	cat := testCatalog(t, tool("solver", 1))
	exec := &fakeExecutor{fail: map[string]bool{"solver": true}}
	o, _ := newTestOrchestrator(t, cat, exec)

	report, err := o.Run(context.Background(), []string{"solver"})
	require.NoError(t, err)

	entry, ok := report.Get("solver")
	require.True(t, ok)
	assert.Equal(t, StatusVerified, entry.Status)
	assert.Contains(t, entry.Diagnostic, "artifacts verified")
	assert.False(t, report.Failed())
}

func TestRunVerificationOverridesBuildSuccess(t *testing.T) {
	cat := testCatalog(t, tool("solver", 1))
	exec := &fakeExecutor{skipArtifact: map[string]bool{"solver": true}}
	o, _ := newTestOrchestrator(t, cat, exec)

	report, err := o.Run(context.Background(), []string{"solver"})
	require.NoError(t, err)

	entry, _ := report.Get("solver")
	assert.Equal(t, StatusFailed, entry.Status)
	assert.Contains(t, entry.Diagnostic, "verification failed")
	assert.True(t, report.Failed())
}

func TestRunDependencyFailurePropagates(t *testing.T) {
	cat := testCatalog(t,
		tool("solver", 1),
		tool("model", 2, "solver"),
		tool("unrelated", 3),
	)
	exec := &fakeExecutor{
		fail:         map[string]bool{"solver": true},
		skipArtifact: map[string]bool{"solver": true},
	}
	o, _ := newTestOrchestrator(t, cat, exec)

	report, err := o.Run(context.Background(), []string{"model", "unrelated"})
	require.NoError(t, err)

	solver, _ := report.Get("solver")
	assert.Equal(t, StatusFailed, solver.Status)

	model, _ := report.Get("model")
	assert.Equal(t, StatusFailed, model.Status)
	assert.Equal(t, ReasonDependencyFailed, model.Diagnostic)
	assert.NotContains(t, exec.invocations(), "model")

	// Failure stays scoped to the dependency chain.
	unrelated, _ := report.Get("unrelated")
	assert.Equal(t, StatusVerified, unrelated.Status)
}

func TestRunResolutionFailureAborts(t *testing.T) {
	cat := testCatalog(t, tool("solver", 1))
	exec := &fakeExecutor{}
	o, _ := newTestOrchestrator(t, cat, exec)

	report, err := o.Run(context.Background(), []string{"ghost"})
	require.Error(t, err)
	assert.ErrorIs(t, err, resolver.ErrUnknownDependency)
	assert.Nil(t, report)
	assert.Empty(t, exec.invocations())
}

func TestRunConcurrentWorkersRespectDependencies(t *testing.T) {
	cat := testCatalog(t,
		tool("a", 1),
		tool("b", 2, "a"),
		tool("c", 3, "b"),
		tool("x", 4),
		tool("y", 5),
	)
	exec := &fakeExecutor{}
	o, _ := newTestOrchestrator(t, cat, exec, WithWorkers(4))

	report, err := o.Run(context.Background(), []string{"c", "x", "y"})
	require.NoError(t, err)
	assert.False(t, report.Failed())
	require.Len(t, exec.invocations(), 5)

	assert.Less(t, exec.indexOf("a"), exec.indexOf("b"))
	assert.Less(t, exec.indexOf("b"), exec.indexOf("c"))
}

func TestRunCancellationLeavesUnstartedPending(t *testing.T) {
	cat := testCatalog(t, tool("solver", 1), tool("model", 2, "solver"))
	exec := &fakeExecutor{block: map[string]bool{"solver": true}}
	o, _ := newTestOrchestrator(t, cat, exec)

	ctx, cancel := context.WithCancel(context.Background())
	go func() {
		time.Sleep(50 * time.Millisecond)
		cancel()
	}()

	report, err := o.Run(ctx, []string{"model"})
	require.NoError(t, err)

	solver, _ := report.Get("solver")
	assert.Equal(t, StatusFailed, solver.Status)
	assert.Equal(t, ReasonCancelled, solver.Diagnostic)

	model, _ := report.Get("model")
	assert.Equal(t, StatusPending, model.Status)
	assert.Equal(t, ReasonNotStarted, model.Diagnostic)
	assert.NotContains(t, exec.invocations(), "model")
}

func TestRunSingleEnvironmentSnapshot(t *testing.T) {
	cat := testCatalog(t, tool("a", 1), tool("b", 2), tool("c", 3))
	exec := &fakeExecutor{}

	probes := 0
	root := t.TempDir()
	o := New(cat, root,
		WithExecutor(exec),
		WithProbe(func() envprobe.BuildEnvironment {
			probes++
			return envprobe.BuildEnvironment{CC: "gcc", Warnings: []string{"no Fortran compiler found"}}
		}))

	report, err := o.Run(context.Background(), []string{"a", "b", "c"})
	require.NoError(t, err)
	assert.Equal(t, 1, probes)
	assert.Equal(t, []string{"no Fortran compiler found"}, report.Warnings)
}

func TestRunSmokeTestFailureIsAdvisory(t *testing.T) {
	doc := `tools:
  - name: solver
    install_dir: solver
    build_steps: [{kind: command, script: 'true'}]
    verify: {mode: all, paths: [done]}
    test_command: --help
`
	cat, err := catalog.Load([]byte(doc))
	require.NoError(t, err)

	exec := &fakeExecutor{}
	o, _ := newTestOrchestrator(t, cat, exec, WithSmoke(func(ctx context.Context, artifact, arg string) error {
		return errors.New("exec format error")
	}))

	report, err := o.Run(context.Background(), []string{"solver"})
	require.NoError(t, err)

	entry, _ := report.Get("solver")
	assert.Equal(t, StatusVerified, entry.Status)
	assert.Contains(t, entry.Diagnostic, "smoke test")
	assert.False(t, report.Failed())
}

func TestReportString(t *testing.T) {
	report := &Report{
		Entries: []ReportEntry{
			{Tool: "solver", Status: StatusVerified, Duration: 3 * time.Second, Diagnostic: "installed"},
			{Tool: "model", Status: StatusFailed, Diagnostic: "build failed at configure"},
		},
		Warnings: []string{"no MPI wrappers found"},
	}

	out := report.String()
	assert.Contains(t, out, "✓ solver")
	assert.Contains(t, out, "✗ model")
	assert.Contains(t, out, "! no MPI wrappers found")
}
