// internal/cli/version.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println("forge version 0.1.0")
		fmt.Println("Hydrological toolchain build orchestrator")
		fmt.Println("https://github.com/hydroshed/forge")
	},
}
