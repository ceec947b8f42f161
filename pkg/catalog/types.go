// pkg/catalog/types.go
package catalog

// StepKind identifies the execution variant of a build step.
type StepKind string

const (
	// StepCommand runs a shell script in the tool's working directory.
	StepCommand StepKind = "command"
	// StepFetch downloads and extracts a source archive.
	StepFetch StepKind = "fetch"
	// StepClone clones a version-controlled repository.
	StepClone StepKind = "clone"
)

// StepSpec is a declarative build-step descriptor. Exactly one variant's
// fields are populated, selected by Kind. Steps that must share shell
// state (a cd followed by a build) are modeled as one command step.
type StepSpec struct {
	Kind StepKind `yaml:"kind"`
	Name string   `yaml:"name,omitempty"`

	// command
	Script string `yaml:"script,omitempty"`
	Subdir string `yaml:"subdir,omitempty"`

	// fetch
	URL   string `yaml:"url,omitempty"`
	Strip int    `yaml:"strip,omitempty"`

	// clone
	Repository string `yaml:"repository,omitempty"`
	Branch     string `yaml:"branch,omitempty"`
}

// VerifyMode selects how verification paths are combined.
type VerifyMode string

const (
	// ModeAll requires every listed path to exist.
	ModeAll VerifyMode = "all"
	// ModeAny requires at least one listed path to exist.
	ModeAny VerifyMode = "any"
)

// Verification is the declarative postcondition for a tool install.
// Paths are relative to the tool's install directory.
type Verification struct {
	Paths []string   `yaml:"paths"`
	Mode  VerifyMode `yaml:"mode"`
}

// ToolDefinition describes one external toolchain managed by the
// orchestrator. Definitions are immutable once loaded.
type ToolDefinition struct {
	Name        string `yaml:"name"`
	Description string `yaml:"description,omitempty"`

	// Repository and Branch describe the primary source location when the
	// tool is built from a clone. Tools built from release archives leave
	// them empty and carry a fetch step instead.
	Repository string `yaml:"repository,omitempty"`
	Branch     string `yaml:"branch,omitempty"`

	// Requires are hard prerequisites; Dependencies are build-time
	// dependencies. Both edge sets are merged for install ordering.
	Requires     []string `yaml:"requires,omitempty"`
	Dependencies []string `yaml:"dependencies,omitempty"`

	// InstallDir is the directory under the install root where the
	// tool's artifacts live.
	InstallDir string `yaml:"install_dir"`

	BuildSteps []StepSpec   `yaml:"build_steps"`
	Verify     Verification `yaml:"verify"`

	// TestCommand is an optional smoke-test argument passed to the first
	// verification path after a successful install (e.g. "--help").
	TestCommand string `yaml:"test_command,omitempty"`

	// Order is a display/tie-break hint only; resolution correctness
	// never depends on it.
	Order int `yaml:"order,omitempty"`
}

// DependencySet returns the union of Requires and Dependencies,
// deduplicated, preserving first-seen order.
func (t ToolDefinition) DependencySet() []string {
	seen := make(map[string]struct{}, len(t.Requires)+len(t.Dependencies))
	var out []string
	for _, lists := range [][]string{t.Requires, t.Dependencies} {
		for _, dep := range lists {
			if _, ok := seen[dep]; ok {
				continue
			}
			seen[dep] = struct{}{}
			out = append(out, dep)
		}
	}
	return out
}
