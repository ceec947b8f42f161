// forge.go
package forge

import (
	"context"
	"fmt"
	"os"

	"go.uber.org/zap"

	"github.com/hydroshed/forge/pkg/catalog"
	"github.com/hydroshed/forge/pkg/core"
	"github.com/hydroshed/forge/pkg/envprobe"
	"github.com/hydroshed/forge/pkg/orchestrator"
	"github.com/hydroshed/forge/pkg/resolver"
	"github.com/hydroshed/forge/pkg/verify"
)

// Re-export the types a front end needs so callers can stay on the root
// package for common operations.
type (
	ToolDefinition   = catalog.ToolDefinition
	Verification     = catalog.Verification
	BuildEnvironment = envprobe.BuildEnvironment
	Report           = orchestrator.Report
	ReportEntry      = orchestrator.ReportEntry
	Status           = orchestrator.Status
	Config           = core.Config
)

// Re-export terminal statuses for report inspection.
const (
	StatusPending  = orchestrator.StatusPending
	StatusVerified = orchestrator.StatusVerified
	StatusFailed   = orchestrator.StatusFailed
)

// DefaultConfig returns a configuration with sensible defaults
func DefaultConfig() *Config {
	return core.DefaultConfig()
}

// Manager is the build-and-install orchestrator facade.
type Manager struct {
	catalog *catalog.Catalog
	config  *core.Config
	log     *zap.Logger
}

// ManagerOption customizes a Manager.
type ManagerOption func(*Manager)

// WithLogger attaches a logger; defaults to a no-op logger.
func WithLogger(log *zap.Logger) ManagerOption {
	return func(m *Manager) { m.log = log }
}

// NewManager creates a manager backed by the configured catalog, or the
// built-in hydrology catalog when no catalog path is configured.
func NewManager(config *core.Config, opts ...ManagerOption) (*Manager, error) {
	if config == nil {
		config = core.DefaultConfig()
	}

	var cat *catalog.Catalog
	var err error
	if config.CatalogPath != "" {
		data, readErr := os.ReadFile(config.CatalogPath)
		if readErr != nil {
			return nil, fmt.Errorf("reading catalog %s: %w", config.CatalogPath, readErr)
		}
		cat, err = catalog.Load(data)
	} else {
		cat, err = catalog.Default()
	}
	if err != nil {
		return nil, fmt.Errorf("loading catalog: %w", err)
	}

	m := &Manager{
		catalog: cat,
		config:  config,
		log:     zap.NewNop(),
	}
	for _, opt := range opts {
		opt(m)
	}
	return m, nil
}

// Install brings the named tools (and their transitive dependencies)
// from not-installed to installed-and-verified. The returned report
// covers every tool in resolved order; check Report.Failed for the
// aggregate outcome.
func (m *Manager) Install(ctx context.Context, names []string, force bool) (*orchestrator.Report, error) {
	orch := orchestrator.New(m.catalog, m.config.InstallRoot,
		orchestrator.WithWorkers(m.config.Workers),
		orchestrator.WithForce(force),
		orchestrator.WithLogger(m.log),
	)
	report, err := orch.Run(ctx, names)
	if err != nil {
		return nil, &Error{Op: "install", Err: err}
	}
	return report, nil
}

// Resolve returns the install order for the named tools without
// building anything.
func (m *Manager) Resolve(names []string) ([]string, error) {
	return resolver.Resolve(m.catalog, names)
}

// Verify re-checks a tool's install postcondition. It runs no build
// steps and never modifies the filesystem.
func (m *Manager) Verify(name string) error {
	tool, ok := m.catalog.Get(name)
	if !ok {
		return &Error{Op: "verify", Tool: name, Err: ErrToolNotFound}
	}
	return verify.Verify(tool, m.config.InstallRoot)
}

// Tool returns the catalog definition for a name.
func (m *Manager) Tool(name string) (ToolDefinition, error) {
	tool, ok := m.catalog.Get(name)
	if !ok {
		return ToolDefinition{}, &Error{Op: "info", Tool: name, Err: ErrToolNotFound}
	}
	return tool, nil
}

// Tools returns every catalog definition in display order.
func (m *Manager) Tools() []ToolDefinition {
	return m.catalog.Tools()
}

// Environment probes (or returns the cached) host build environment.
func (m *Manager) Environment() BuildEnvironment {
	return envprobe.Detect(m.log)
}

// InstallRoot returns the configured install root directory.
func (m *Manager) InstallRoot() string {
	return m.config.InstallRoot
}
