// Package suite defines the suite/test-case/step model and loads suite
// definitions from HCL files. A suite owns many test cases, each owning
// many steps; declaration order is preserved because it determines which
// steps may produce inputs for later ones.
package suite

import "github.com/floe-sci/floe/internal/resource"

// Suite is a named collection of test cases. Its lifetime spans exactly
// one execution invocation.
type Suite struct {
	Name     string
	Parallel Parallel
	Cases    []*TestCase
}

// Parallel is the environment configuration block of a suite file.
type Parallel struct {
	// System tags the environment: login, single-node, or batch.
	System string `hcl:"system"`
	// Launcher is the parallel launcher executable, with any embedded
	// flags (e.g. "srun").
	Launcher string `hcl:"launcher,optional"`
	// LoginCores caps the cores used on a login node.
	LoginCores int `hcl:"login_cores,optional"`
	// CoresPerNode optionally caps the cores used on a single node.
	CoresPerNode int `hcl:"cores_per_node,optional"`
	// ThreadsPerCore overrides what the batch system reports.
	ThreadsPerCore int `hcl:"threads_per_core,optional"`
	// GPUsPerNode is reported on the budget verbatim.
	GPUsPerNode int `hcl:"gpus_per_node,optional"`
}

// ProbeConfig maps the parallel block onto the resource probe's knobs.
func (p Parallel) ProbeConfig() resource.ProbeConfig {
	return resource.ProbeConfig{
		LoginCores:     p.LoginCores,
		CoresPerNode:   p.CoresPerNode,
		ThreadsPerCore: p.ThreadsPerCore,
		GPUsPerNode:    p.GPUsPerNode,
	}
}

// TestCase owns an ordered list of steps.
type TestCase struct {
	Name  string
	Steps []*StepSpec
}

// StepSpec is the declared configuration of one step, with resource
// defaults already applied (one task of one cpu unless stated otherwise).
type StepSpec struct {
	Name string
	// Command is the scalar external command. Empty means the step
	// re-invokes the harness as its own subprocess.
	Command []string
	Inputs  []string
	Outputs []string

	Tasks          int
	MinTasks       int
	CPUsPerTask    int
	MinCPUsPerTask int
	OpenMPThreads  int
}

// Request returns the step's resource request.
func (s *StepSpec) Request() resource.Request {
	return resource.Request{
		Tasks:          s.Tasks,
		MinTasks:       s.MinTasks,
		CPUsPerTask:    s.CPUsPerTask,
		MinCPUsPerTask: s.MinCPUsPerTask,
		OpenMPThreads:  s.OpenMPThreads,
	}
}
