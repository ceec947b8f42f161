// pkg/envprobe/types.go
package envprobe

import (
	"fmt"
	"strconv"
)

// BuildEnvironment is an immutable snapshot of the detected host
// toolchain. It is computed once per orchestrator run and shared
// read-only by every build step, so all tools in one run link against
// the same compilers and libraries.
type BuildEnvironment struct {
	Platform string // os-release ID, "macos", or "unknown"
	OS       string // runtime.GOOS value
	Arch     string // runtime.GOARCH value

	IsCI  bool
	IsHPC bool

	// Host compiler triple. Build steps that want MPI wrappers select
	// them explicitly via the MPI fields, mirroring how the underlying
	// build systems invoke mpicc directly.
	CC  string
	CXX string
	FC  string

	MPIEnabled bool
	MPICC      string
	MPICXX     string
	MPIFC      string

	// Library installation prefixes.
	NetCDF        string
	NetCDFFortran string
	HDF5          string

	// Cores is the parallelism passed to make/cmake.
	Cores int

	// Warnings lists discoveries that fell back to defaults. Detection
	// never fails outright; degraded results are surfaced here.
	Warnings []string
}

// Degraded reports whether any detection step fell back to a default.
func (e BuildEnvironment) Degraded() bool {
	return len(e.Warnings) > 0
}

// Environ renders the snapshot as KEY=value pairs for child processes.
// This replaces the process-global exports the underlying build scripts
// traditionally rely on: every step receives the same values no matter
// what earlier steps did to their own environment.
func (e BuildEnvironment) Environ() []string {
	env := []string{
		"CC=" + e.CC,
		"CXX=" + e.CXX,
		"FC=" + e.FC,
		"F90=" + e.FC,
		"FORGE_PLATFORM=" + e.Platform,
		"FORGE_NETCDF=" + e.NetCDF,
		"FORGE_NETCDF_FORTRAN=" + e.NetCDFFortran,
		"FORGE_HDF5=" + e.HDF5,
		"FORGE_NCORES=" + strconv.Itoa(e.Cores),
		"FORGE_ENV_DETECTED=1",
		"FORGE_MPI_ENABLED=" + boolFlag(e.MPIEnabled),
		"FORGE_CI=" + boolFlag(e.IsCI),
		"FORGE_HPC=" + boolFlag(e.IsHPC),
	}
	if e.MPIEnabled {
		env = append(env,
			"FORGE_MPICC="+e.MPICC,
			"FORGE_MPICXX="+e.MPICXX,
			"FORGE_MPIFC="+e.MPIFC,
			// Wrapper overrides so mpicc and friends use the detected
			// host compilers underneath.
			"OMPI_CC="+e.CC,
			"OMPI_CXX="+e.CXX,
			"OMPI_FC="+e.FC,
			"MPICH_CC="+e.CC,
			"MPICH_CXX="+e.CXX,
			"MPICH_F90="+e.FC,
		)
	}
	return env
}

// String returns a one-line summary for progress output.
func (e BuildEnvironment) String() string {
	mpi := "no MPI"
	if e.MPIEnabled {
		mpi = "MPI"
	}
	return fmt.Sprintf("%s/%s (%s) CC=%s FC=%s %s netcdf=%s cores=%d",
		e.OS, e.Arch, e.Platform, e.CC, e.FC, mpi, e.NetCDF, e.Cores)
}

func boolFlag(b bool) string {
	if b {
		return "1"
	}
	return "0"
}
