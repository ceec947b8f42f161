// pkg/resolver/resolver.go

// Package resolver computes a valid install order for a set of requested
// tools and their transitive dependencies.
package resolver

import (
	"errors"
	"fmt"
	"sort"
	"strings"

	"github.com/dominikbraun/graph"

	"github.com/hydroshed/forge/pkg/catalog"
)

var (
	// ErrCycle indicates the dependency graph contains a cycle.
	ErrCycle = errors.New("dependency cycle")

	// ErrUnknownDependency indicates a referenced tool is absent from the catalog.
	ErrUnknownDependency = errors.New("unknown dependency")
)

// CycleError reports the members of a dependency cycle.
type CycleError struct {
	Members []string
}

func (e *CycleError) Error() string {
	return fmt.Sprintf("dependency cycle: %s", strings.Join(e.Members, " -> "))
}

func (e *CycleError) Is(target error) bool { return target == ErrCycle }

// UnknownDependencyError reports a dependency edge pointing outside the
// catalog. Tool is empty when the missing name was requested directly.
type UnknownDependencyError struct {
	Tool    string
	Missing string
}

func (e *UnknownDependencyError) Error() string {
	if e.Tool == "" {
		return fmt.Sprintf("unknown tool %q", e.Missing)
	}
	return fmt.Sprintf("tool %q depends on unknown tool %q", e.Tool, e.Missing)
}

func (e *UnknownDependencyError) Is(target error) bool { return target == ErrUnknownDependency }

// Resolve expands the requested names over the catalog's dependency edges
// and returns a topological install order: every dependency precedes its
// dependents. Tools with no ordering constraint between them are sorted by
// ascending order hint, then name, so the result is deterministic.
func Resolve(cat *catalog.Catalog, requested []string) ([]string, error) {
	needed, err := expand(cat, requested)
	if err != nil {
		return nil, err
	}
	if len(needed) == 0 {
		return nil, nil
	}

	g := graph.New(graph.StringHash, graph.Directed(), graph.PreventCycles())
	for name := range needed {
		if err := g.AddVertex(name); err != nil {
			return nil, fmt.Errorf("adding vertex %q: %w", name, err)
		}
	}
	for name := range needed {
		tool, _ := cat.Get(name)
		for _, dep := range tool.DependencySet() {
			if err := g.AddEdge(dep, name); err != nil {
				if errors.Is(err, graph.ErrEdgeCreatesCycle) {
					return nil, &CycleError{Members: findCycle(cat, needed)}
				}
				return nil, fmt.Errorf("adding edge %s -> %s: %w", dep, name, err)
			}
		}
	}

	order, err := graph.StableTopologicalSort(g, func(a, b string) bool {
		ta, _ := cat.Get(a)
		tb, _ := cat.Get(b)
		if ta.Order != tb.Order {
			return ta.Order < tb.Order
		}
		return a < b
	})
	if err != nil {
		// PreventCycles rejects back-edges at insertion, so the sort
		// itself should not fail on an acyclic graph.
		return nil, &CycleError{Members: findCycle(cat, needed)}
	}
	return order, nil
}

// expand returns the requested set closed over dependency edges.
func expand(cat *catalog.Catalog, requested []string) (map[string]struct{}, error) {
	needed := make(map[string]struct{})
	var visit func(name, from string) error
	visit = func(name, from string) error {
		if _, ok := needed[name]; ok {
			return nil
		}
		tool, ok := cat.Get(name)
		if !ok {
			return &UnknownDependencyError{Tool: from, Missing: name}
		}
		needed[name] = struct{}{}
		for _, dep := range tool.DependencySet() {
			if err := visit(dep, name); err != nil {
				return err
			}
		}
		return nil
	}
	for _, name := range requested {
		if err := visit(name, ""); err != nil {
			return nil, err
		}
	}
	return needed, nil
}

// findCycle locates one cycle in the dependency subgraph over the given
// node set using a three-color depth-first search. The returned slice
// lists the cycle members in edge order.
func findCycle(cat *catalog.Catalog, nodes map[string]struct{}) []string {
	const (
		white = iota // unvisited
		grey         // in progress
		black        // done
	)
	state := make(map[string]int, len(nodes))
	var stack []string

	var dfs func(name string) []string
	dfs = func(name string) []string {
		state[name] = grey
		stack = append(stack, name)
		tool, _ := cat.Get(name)
		for _, dep := range tool.DependencySet() {
			if _, ok := nodes[dep]; !ok {
				continue
			}
			switch state[dep] {
			case grey:
				for i, member := range stack {
					if member == dep {
						return append([]string(nil), stack[i:]...)
					}
				}
			case white:
				if cycle := dfs(dep); cycle != nil {
					return cycle
				}
			}
		}
		state[name] = black
		stack = stack[:len(stack)-1]
		return nil
	}

	names := make([]string, 0, len(nodes))
	for name := range nodes {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		if state[name] == white {
			if cycle := dfs(name); cycle != nil {
				return cycle
			}
		}
	}
	return nil
}
