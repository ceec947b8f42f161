// internal/cli/info.go
package cli

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	forge "github.com/hydroshed/forge"
)

var infoCmd = &cobra.Command{
	Use:   "info [tool]",
	Short: "Show information about a tool",
	Long:  `Display a tool's catalog definition and current install state.`,
	Args:  cobra.ExactArgs(1),
	RunE:  runInfo,
}

func runInfo(cmd *cobra.Command, args []string) error {
	mgr, err := forge.NewManager(config, forge.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initializing manager: %w", err)
	}

	tool, err := mgr.Tool(args[0])
	if err != nil {
		return err
	}

	fmt.Printf("Tool:        %s\n", tool.Name)
	fmt.Printf("Description: %s\n", tool.Description)
	if tool.Repository != "" {
		fmt.Printf("Repository:  %s", tool.Repository)
		if tool.Branch != "" {
			fmt.Printf(" (branch %s)", tool.Branch)
		}
		fmt.Println()
	}
	fmt.Printf("Install dir: %s\n", tool.InstallDir)
	if deps := tool.DependencySet(); len(deps) > 0 {
		fmt.Printf("Depends on:  %s\n", strings.Join(deps, ", "))
	}
	fmt.Printf("Build steps: %d\n", len(tool.BuildSteps))
	fmt.Printf("Verify (%s): %s\n", tool.Verify.Mode, strings.Join(tool.Verify.Paths, ", "))

	if err := mgr.Verify(tool.Name); err == nil {
		fmt.Printf("State:       installed\n")
	} else {
		fmt.Printf("State:       not installed (%v)\n", err)
	}

	return nil
}
