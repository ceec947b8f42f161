// internal/cli/env.go
package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	forge "github.com/hydroshed/forge"
)

var envCmd = &cobra.Command{
	Use:   "env",
	Short: "Show the detected build environment",
	Long: `Probe the host and print the build environment snapshot that
install would inject into every build step.`,
	RunE: runEnv,
}

func runEnv(cmd *cobra.Command, args []string) error {
	mgr, err := forge.NewManager(config, forge.WithLogger(logger))
	if err != nil {
		return fmt.Errorf("initializing manager: %w", err)
	}

	env := mgr.Environment()
	fmt.Printf("Platform:       %s (%s/%s)\n", env.Platform, env.OS, env.Arch)
	fmt.Printf("CC:             %s\n", env.CC)
	fmt.Printf("CXX:            %s\n", env.CXX)
	fmt.Printf("FC:             %s\n", env.FC)
	if env.MPIEnabled {
		fmt.Printf("MPI:            %s / %s / %s\n", env.MPICC, env.MPICXX, env.MPIFC)
	} else {
		fmt.Printf("MPI:            not detected\n")
	}
	fmt.Printf("NetCDF:         %s\n", env.NetCDF)
	fmt.Printf("NetCDF-Fortran: %s\n", env.NetCDFFortran)
	fmt.Printf("HDF5:           %s\n", env.HDF5)
	fmt.Printf("Cores:          %d\n", env.Cores)
	if env.IsCI {
		fmt.Printf("CI environment detected\n")
	}
	if env.IsHPC {
		fmt.Printf("HPC environment detected\n")
	}
	for _, warning := range env.Warnings {
		fmt.Printf("warning: %s\n", warning)
	}

	return nil
}
