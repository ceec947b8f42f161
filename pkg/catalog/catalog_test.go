// pkg/catalog/catalog_test.go
package catalog

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefaultCatalog(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)
	assert.Equal(t, 10, cat.Len())

	summa, ok := cat.Get("summa")
	require.True(t, ok)
	assert.Equal(t, []string{"sundials"}, summa.Requires)
	assert.Equal(t, "summa", summa.InstallDir)
	assert.Equal(t, ModeAll, summa.Verify.Mode)
	assert.Equal(t, []string{"bin/summa_sundials.exe"}, summa.Verify.Paths)

	sundials, ok := cat.Get("sundials")
	require.True(t, ok)
	assert.Equal(t, ModeAny, sundials.Verify.Mode)
	assert.Len(t, sundials.Verify.Paths, 5)
	require.NotEmpty(t, sundials.BuildSteps)
	assert.Equal(t, StepFetch, sundials.BuildSteps[0].Kind)

	datatool, ok := cat.Get("datatool")
	require.True(t, ok)
	assert.Equal(t, "--help", datatool.TestCommand)
}

func TestDefaultCatalogSummaCopyIsConditional(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	summa, ok := cat.Get("summa")
	require.True(t, ok)
	require.Len(t, summa.BuildSteps, 2)

	// make may emit the binary into bin/ directly; the install copy
	// must be guarded so it never copies the target onto itself.
	script := summa.BuildSteps[1].Script
	assert.Contains(t, script, "if [ -f summa_sundials.exe ]")
	assert.NotContains(t, script, "cp ../bin/summa_sundials.exe ../bin/")
}

func TestDefaultCatalogDisplayOrder(t *testing.T) {
	cat, err := Default()
	require.NoError(t, err)

	assert.Equal(t, []string{
		"sundials", "summa", "mizuroute", "troute", "fuse",
		"taudem", "gistool", "datatool", "ngen", "ngiab",
	}, cat.Names())
}

func TestLoadRejectsUnknownDependency(t *testing.T) {
	_, err := Load([]byte(`
tools:
  - name: model
    install_dir: model
    dependencies: [ghost]
    build_steps: [{kind: command, script: make}]
    verify: {mode: all, paths: [bin/model]}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestLoadRejectsDuplicateName(t *testing.T) {
	_, err := Load([]byte(`
tools:
  - name: twin
    install_dir: a
    build_steps: [{kind: command, script: make}]
    verify: {mode: all, paths: [x]}
  - name: twin
    install_dir: b
    build_steps: [{kind: command, script: make}]
    verify: {mode: all, paths: [x]}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate")
}

func TestLoadRejectsBadVerifyMode(t *testing.T) {
	_, err := Load([]byte(`
tools:
  - name: model
    install_dir: model
    build_steps: [{kind: command, script: make}]
    verify: {mode: most, paths: [bin/model]}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verify mode")
}

func TestLoadRejectsMissingVerifyPaths(t *testing.T) {
	_, err := Load([]byte(`
tools:
  - name: model
    install_dir: model
    build_steps: [{kind: command, script: make}]
    verify: {mode: all, paths: []}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "verification paths")
}

func TestLoadRejectsUnknownStepKind(t *testing.T) {
	_, err := Load([]byte(`
tools:
  - name: model
    install_dir: model
    build_steps: [{kind: teleport, script: make}]
    verify: {mode: all, paths: [bin/model]}
`))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown kind")
}

func TestDependencySetMergesRequiresAndDependencies(t *testing.T) {
	tool := ToolDefinition{
		Name:         "model",
		Requires:     []string{"solver", "io"},
		Dependencies: []string{"io", "mesh"},
	}
	assert.Equal(t, []string{"solver", "io", "mesh"}, tool.DependencySet())
}

func TestDependencySetEmpty(t *testing.T) {
	assert.Empty(t, ToolDefinition{Name: "standalone"}.DependencySet())
}
