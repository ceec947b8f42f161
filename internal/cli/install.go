// internal/cli/install.go
package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/spf13/cobra"

	forge "github.com/hydroshed/forge"
)

var (
	installWorkers int
	installForce   bool
	installDryRun  bool
)

var installCmd = &cobra.Command{
	Use:   "install [tool...]",
	Short: "Build and install one or more tools",
	Long: `Build and install tools with their transitive dependencies.

Already-installed tools whose artifacts still verify are skipped, so
re-running install after a partial failure resumes where it left off.

Examples:
  forge install summa
  forge install sundials summa mizuroute
  forge install taudem --workers=2
  forge install summa --force`,
	Args: cobra.MinimumNArgs(1),
	RunE: runInstall,
}

func init() {
	installCmd.Flags().IntVar(&installWorkers, "workers", 0, "concurrent builds of independent tools (default 1)")
	installCmd.Flags().BoolVar(&installForce, "force", false, "rebuild even if artifacts already verify")
	installCmd.Flags().BoolVar(&installDryRun, "dry-run", false, "print the resolved install order and exit")
}

func runInstall(cmd *cobra.Command, args []string) error {
	if installWorkers > 0 {
		config.Workers = installWorkers
	}

	mgr, err := forge.NewManager(config, forge.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initializing manager: %w", err)
	}

	if installDryRun {
		order, err := mgr.Resolve(args)
		if err != nil {
			return fmt.Errorf("resolving install order: %w", err)
		}
		fmt.Println("Install order:")
		for i, name := range order {
			fmt.Printf("  %2d. %s\n", i+1, name)
		}
		return nil
	}

	// A SIGINT terminates in-flight build processes; tools not yet
	// started stay pending.
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	env := mgr.Environment()
	fmt.Printf("Build environment: %s\n", env)
	fmt.Printf("Install root: %s\n\n", mgr.InstallRoot())

	report, err := mgr.Install(ctx, args, installForce)
	if err != nil {
		return err
	}

	fmt.Print(report)

	if report.Failed() {
		// Non-zero exit without cobra usage noise.
		cmd.SilenceUsage = true
		return fmt.Errorf("one or more tools failed to install")
	}
	return nil
}
