// Package launch turns a negotiated resource allocation plus a scalar
// command into the concrete external launch invocation. The parallel
// launcher executable itself is configuration; this package only appends
// resource flags and the payload arguments, preserving argument order.
package launch

import (
	"errors"
	"fmt"
	"strconv"
	"strings"

	"github.com/floe-sci/floe/internal/resource"
)

// ErrParallelLaunchUnsupported reports an attempt to build a parallel
// launch command in an environment where MPI launches are not legal.
var ErrParallelLaunchUnsupported = errors.New("parallel launch not supported in this environment")

// Command prefixes args with the parallel launcher and the resource flags
// computed from the allocation. The launcher string may carry embedded
// flags and is split on spaces.
func Command(launcher string, args []string, alloc resource.Allocation, env resource.Environment) ([]string, error) {
	switch env {
	case resource.EnvBatch:
		cmd := strings.Fields(launcher)
		cmd = append(cmd,
			"-c", strconv.Itoa(alloc.CPUsPerTask),
			"-N", strconv.Itoa(alloc.Nodes),
			"-n", strconv.Itoa(alloc.Tasks),
		)
		return append(cmd, args...), nil
	case resource.EnvSingleNode:
		cmd := strings.Fields(launcher)
		cmd = append(cmd, "-n", strconv.Itoa(alloc.Tasks))
		return append(cmd, args...), nil
	}
	return nil, fmt.Errorf("%w: %q", ErrParallelLaunchUnsupported, env)
}

// Env returns the environment additions for a step's child process. Thread
// counts are passed on the child environment only, never set on the
// harness process, so concurrent step executions stay isolated.
func Env(openmpThreads int) []string {
	if openmpThreads < 1 {
		openmpThreads = 1
	}
	return []string{fmt.Sprintf("OMP_NUM_THREADS=%d", openmpThreads)}
}
