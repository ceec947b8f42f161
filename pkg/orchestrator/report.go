// pkg/orchestrator/report.go
package orchestrator

import (
	"fmt"
	"strings"
	"time"
)

// ReportEntry is the final outcome for one tool, in resolved order.
type ReportEntry struct {
	Tool       string
	Status     Status
	Duration   time.Duration
	Diagnostic string
}

// Report aggregates the outcome of one orchestrator run. It covers
// every tool touched by the run, including tools that were skipped or
// never started, not just the first failure.
type Report struct {
	Entries []ReportEntry

	// Warnings carries degraded environment-detection notes.
	Warnings []string
}

// Failed reports whether any tool ended the run in StatusFailed.
func (r *Report) Failed() bool {
	for _, e := range r.Entries {
		if e.Status == StatusFailed {
			return true
		}
	}
	return false
}

// Get returns the entry for a tool name.
func (r *Report) Get(tool string) (ReportEntry, bool) {
	for _, e := range r.Entries {
		if e.Tool == tool {
			return e, true
		}
	}
	return ReportEntry{}, false
}

// String renders a human-readable summary table.
func (r *Report) String() string {
	var b strings.Builder
	for _, e := range r.Entries {
		mark := " "
		switch e.Status {
		case StatusVerified:
			mark = "✓"
		case StatusFailed:
			mark = "✗"
		}
		fmt.Fprintf(&b, "%s %-12s %-12s", mark, e.Tool, e.Status)
		if e.Duration > 0 {
			fmt.Fprintf(&b, " %8s", e.Duration.Round(time.Second))
		}
		if e.Diagnostic != "" {
			fmt.Fprintf(&b, "  %s", e.Diagnostic)
		}
		b.WriteString("\n")
	}
	for _, w := range r.Warnings {
		fmt.Fprintf(&b, "! %s\n", w)
	}
	return b.String()
}
