// pkg/verify/verify.go

// Package verify evaluates a tool's declarative install postcondition
// against the filesystem. Verification is deliberately independent of
// the build's exit status: build tooling for these targets is frequently
// non-standard, so the presence of the expected artifacts is the only
// signal trusted to decide success.
package verify

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/hydroshed/forge/pkg/catalog"
)

// ErrVerification indicates required install artifacts are missing.
var ErrVerification = errors.New("verification failed")

// VerificationError reports which expected paths were not found.
type VerificationError struct {
	Tool    string
	Mode    catalog.VerifyMode
	Missing []string
}

func (e *VerificationError) Error() string {
	if e.Mode == catalog.ModeAny {
		return fmt.Sprintf("%s: none of the expected artifacts exist: %s",
			e.Tool, strings.Join(e.Missing, ", "))
	}
	return fmt.Sprintf("%s: missing artifacts: %s", e.Tool, strings.Join(e.Missing, ", "))
}

func (e *VerificationError) Is(target error) bool { return target == ErrVerification }

// Verify checks the tool's verification rule against installRoot. The
// check is read-only and idempotent: paths are resolved relative to the
// tool's install directory and tested for existence only.
func Verify(tool catalog.ToolDefinition, installRoot string) error {
	base := filepath.Join(installRoot, tool.InstallDir)

	var missing []string
	for _, rel := range tool.Verify.Paths {
		if _, err := os.Stat(filepath.Join(base, rel)); err == nil {
			if tool.Verify.Mode == catalog.ModeAny {
				return nil
			}
			continue
		}
		missing = append(missing, rel)
	}

	if len(missing) == 0 {
		return nil
	}
	return &VerificationError{Tool: tool.Name, Mode: tool.Verify.Mode, Missing: missing}
}

// FirstArtifact returns the absolute path of the first verification path
// that exists, used for optional smoke tests after install.
func FirstArtifact(tool catalog.ToolDefinition, installRoot string) (string, bool) {
	base := filepath.Join(installRoot, tool.InstallDir)
	for _, rel := range tool.Verify.Paths {
		abs := filepath.Join(base, rel)
		if _, err := os.Stat(abs); err == nil {
			return abs, true
		}
	}
	return "", false
}
