// pkg/catalog/catalog.go
package catalog

import (
	_ "embed"
	"fmt"
	"sort"

	"gopkg.in/yaml.v3"
)

//go:embed tools.yaml
var defaultTools []byte

// Catalog is an immutable registry of tool definitions.
type Catalog struct {
	tools map[string]ToolDefinition
}

// Load parses a YAML catalog document and validates it.
func Load(data []byte) (*Catalog, error) {
	var doc struct {
		Tools []ToolDefinition `yaml:"tools"`
	}
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("parsing catalog: %w", err)
	}

	cat := &Catalog{tools: make(map[string]ToolDefinition, len(doc.Tools))}
	for _, tool := range doc.Tools {
		if tool.Name == "" {
			return nil, fmt.Errorf("catalog: tool with empty name")
		}
		if _, dup := cat.tools[tool.Name]; dup {
			return nil, fmt.Errorf("catalog: duplicate tool %q", tool.Name)
		}
		cat.tools[tool.Name] = tool
	}

	if err := cat.Validate(); err != nil {
		return nil, err
	}
	return cat, nil
}

// Default returns the built-in catalog of hydrological toolchains.
func Default() (*Catalog, error) {
	return Load(defaultTools)
}

// Validate checks the structural invariants: every referenced dependency
// exists, install directories are set, and verification rules are usable.
// Cycle detection is the resolver's job.
func (c *Catalog) Validate() error {
	for name, tool := range c.tools {
		if tool.InstallDir == "" {
			return fmt.Errorf("catalog: tool %q has no install_dir", name)
		}
		if len(tool.Verify.Paths) == 0 {
			return fmt.Errorf("catalog: tool %q has no verification paths", name)
		}
		switch tool.Verify.Mode {
		case ModeAll, ModeAny:
		default:
			return fmt.Errorf("catalog: tool %q has invalid verify mode %q", name, tool.Verify.Mode)
		}
		for _, dep := range tool.DependencySet() {
			if _, ok := c.tools[dep]; !ok {
				return fmt.Errorf("catalog: tool %q references unknown dependency %q", name, dep)
			}
		}
		for i, step := range tool.BuildSteps {
			switch step.Kind {
			case StepCommand:
				if step.Script == "" {
					return fmt.Errorf("catalog: tool %q step %d has empty script", name, i)
				}
			case StepFetch:
				if step.URL == "" {
					return fmt.Errorf("catalog: tool %q step %d has no url", name, i)
				}
			case StepClone:
				if step.Repository == "" {
					return fmt.Errorf("catalog: tool %q step %d has no repository", name, i)
				}
			default:
				return fmt.Errorf("catalog: tool %q step %d has unknown kind %q", name, i, step.Kind)
			}
		}
	}
	return nil
}

// Get returns the definition for a tool name.
func (c *Catalog) Get(name string) (ToolDefinition, bool) {
	tool, ok := c.tools[name]
	return tool, ok
}

// Len returns the number of tools in the catalog.
func (c *Catalog) Len() int {
	return len(c.tools)
}

// Names returns all tool names sorted by order hint, then name.
func (c *Catalog) Names() []string {
	names := make([]string, 0, len(c.tools))
	for name := range c.tools {
		names = append(names, name)
	}
	sort.Slice(names, func(i, j int) bool {
		a, b := c.tools[names[i]], c.tools[names[j]]
		if a.Order != b.Order {
			return a.Order < b.Order
		}
		return a.Name < b.Name
	})
	return names
}

// Tools returns all definitions in Names() order.
func (c *Catalog) Tools() []ToolDefinition {
	names := c.Names()
	out := make([]ToolDefinition, 0, len(names))
	for _, name := range names {
		out = append(out, c.tools[name])
	}
	return out
}
