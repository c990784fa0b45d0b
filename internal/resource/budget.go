// Package resource discovers the compute capacity available to a run and
// reconciles each step's resource request against it. Discovery happens
// once per run; negotiation happens once per step, before any step starts,
// so the whole run's resource plan is known up front.
package resource

import (
	"errors"
	"fmt"
)

// Environment classifies where the harness is running.
type Environment string

const (
	// EnvLogin is an interactive login node shared with other users.
	EnvLogin Environment = "login"
	// EnvSingleNode is a single dedicated shared-memory node.
	EnvSingleNode Environment = "single-node"
	// EnvBatch is a live batch-system allocation.
	EnvBatch Environment = "batch"
)

// ErrUnsupportedEnvironment reports an environment tag outside the three
// supported kinds. It is fatal for the whole run.
var ErrUnsupportedEnvironment = errors.New("unsupported parallel environment")

// ParseEnvironment maps a configured system tag to an Environment.
func ParseEnvironment(s string) (Environment, error) {
	switch env := Environment(s); env {
	case EnvLogin, EnvSingleNode, EnvBatch:
		return env, nil
	}
	return "", fmt.Errorf("%w: %q", ErrUnsupportedEnvironment, s)
}

// Budget is an immutable snapshot of the resources available to one run.
// TotalCores is always CoresPerNode * TotalNodes.
type Budget struct {
	TotalCores     int
	TotalNodes     int
	CoresPerNode   int
	ThreadsPerCore int
	// GPUsPerNode is zero when the system has no GPUs configured.
	GPUsPerNode int
	// MPIAllowed reports whether parallel launches are legal here. On a
	// login node commands may only run as plain subprocesses.
	MPIAllowed bool
}
