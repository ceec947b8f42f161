// internal/cli/list.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	forge "github.com/hydroshed/forge"
)

var listCmd = &cobra.Command{
	Use:   "list",
	Short: "List tools in the catalog",
	Long:  `List every tool in the catalog with its install state.`,
	RunE:  runList,
}

func runList(cmd *cobra.Command, args []string) error {
	mgr, err := forge.NewManager(config, forge.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initializing manager: %w", err)
	}

	fmt.Printf("Install root: %s\n\n", mgr.InstallRoot())
	for _, tool := range mgr.Tools() {
		marker := " "
		if mgr.Verify(tool.Name) == nil {
			marker = "*"
		}
		fmt.Printf("  %s %-12s %s\n", marker, tool.Name, tool.Description)
	}
	fmt.Printf("\n* = installed and verified\n")

	return nil
}
