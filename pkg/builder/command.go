// pkg/builder/command.go
package builder

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
)

// CommandStep runs a shell script inside the tool's work directory. The
// script sees the build environment snapshot on top of the process
// environment; exports made by the script die with it, so later steps
// always observe the same snapshot.
type CommandStep struct {
	name   string
	script string
	subdir string
}

func (s *CommandStep) Name() string { return s.name }

func (s *CommandStep) Run(ctx context.Context, sc *StepContext) error {
	dir := sc.WorkDir
	if s.subdir != "" {
		dir = filepath.Join(sc.WorkDir, s.subdir)
	}

	cmd := exec.CommandContext(ctx, "bash", "-c", s.script)
	cmd.Dir = dir
	cmd.Env = append(os.Environ(), sc.Env.Environ()...)
	cmd.Stdout = sc.Log
	cmd.Stderr = sc.Log

	if err := cmd.Run(); err != nil {
		if ctx.Err() != nil {
			return ctx.Err()
		}
		return fmt.Errorf("running %q: %w", s.name, err)
	}
	return nil
}
