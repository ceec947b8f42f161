// errors.go
package forge

import (
	"errors"
	"fmt"

	"github.com/hydroshed/forge/pkg/resolver"
	"github.com/hydroshed/forge/pkg/verify"
)

var (
	// ErrToolNotFound indicates the tool is not in the catalog
	ErrToolNotFound = errors.New("tool not found")

	// ErrCycle indicates the dependency graph contains a cycle
	ErrCycle = resolver.ErrCycle

	// ErrUnknownDependency indicates a dependency edge points outside the catalog
	ErrUnknownDependency = resolver.ErrUnknownDependency

	// ErrVerification indicates required install artifacts are missing
	ErrVerification = verify.ErrVerification
)

// Error wraps an error with additional context
type Error struct {
	Op   string // Operation that failed
	Tool string // Tool name if applicable
	Err  error  // Underlying error
}

func (e *Error) Error() string {
	if e.Tool != "" {
		return fmt.Sprintf("%s %s: %v", e.Op, e.Tool, e.Err)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *Error) Unwrap() error {
	return e.Err
}
