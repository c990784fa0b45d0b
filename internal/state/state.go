// Package state persists step/test-case/suite definitions and results
// between the plan and execute phases of a run, so that a step re-invoked
// as its own subprocess can rehydrate its identity by path, and results
// land back in the same persisted form after each step completes.
package state

import "github.com/floe-sci/floe/internal/resource"

// Run is the serialized form of one run's plan and results.
type Run struct {
	Suite       string        `yaml:"suite"`
	Environment string        `yaml:"environment"`
	Launcher    string        `yaml:"launcher,omitempty"`
	Budget      Budget        `yaml:"budget"`
	Steps       []*StepRecord `yaml:"steps"`
}

// Step returns the record with the given path, or nil.
func (r *Run) Step(path string) *StepRecord {
	for _, s := range r.Steps {
		if s.Path == path {
			return s
		}
	}
	return nil
}

// Budget is the serialized resource budget.
type Budget struct {
	TotalCores     int  `yaml:"total_cores"`
	TotalNodes     int  `yaml:"total_nodes"`
	CoresPerNode   int  `yaml:"cores_per_node"`
	ThreadsPerCore int  `yaml:"threads_per_core"`
	GPUsPerNode    int  `yaml:"gpus_per_node,omitempty"`
	MPIAllowed     bool `yaml:"mpi_allowed"`
}

// FromBudget converts a probed budget to its serialized form.
func FromBudget(b resource.Budget) Budget {
	return Budget{
		TotalCores:     b.TotalCores,
		TotalNodes:     b.TotalNodes,
		CoresPerNode:   b.CoresPerNode,
		ThreadsPerCore: b.ThreadsPerCore,
		GPUsPerNode:    b.GPUsPerNode,
		MPIAllowed:     b.MPIAllowed,
	}
}

// Resource converts the serialized budget back for negotiation.
func (b Budget) Resource() resource.Budget {
	return resource.Budget{
		TotalCores:     b.TotalCores,
		TotalNodes:     b.TotalNodes,
		CoresPerNode:   b.CoresPerNode,
		ThreadsPerCore: b.ThreadsPerCore,
		GPUsPerNode:    b.GPUsPerNode,
		MPIAllowed:     b.MPIAllowed,
	}
}

// Allocation is the negotiated resource assignment persisted with the plan.
type Allocation struct {
	Tasks       int `yaml:"ntasks"`
	CPUsPerTask int `yaml:"cpus_per_task"`
	Nodes       int `yaml:"nodes"`
}

// StepRecord is one step's serialized definition and, after execution, its
// result.
type StepRecord struct {
	Path    string   `yaml:"path"`
	Suite   string   `yaml:"suite"`
	Case    string   `yaml:"case"`
	Name    string   `yaml:"name"`
	WorkDir string   `yaml:"work_dir"`
	Command []string `yaml:"command,omitempty"`
	Inputs  []string `yaml:"inputs,omitempty"`
	Outputs []string `yaml:"outputs,omitempty"`

	Tasks          int `yaml:"ntasks"`
	MinTasks       int `yaml:"min_tasks"`
	CPUsPerTask    int `yaml:"cpus_per_task"`
	MinCPUsPerTask int `yaml:"min_cpus_per_task"`
	OpenMPThreads  int `yaml:"openmp_threads"`

	// Allocation is filled during planning when the request fits the
	// budget; steps whose minima cannot be met keep a nil allocation and
	// fail at execution.
	Allocation *Allocation `yaml:"allocation,omitempty"`

	// Status tracks the step through the run: planned, then ran once its
	// process exits, then the terminal succeeded, failed, or skipped.
	Status         string  `yaml:"status"`
	ElapsedSeconds float64 `yaml:"elapsed_seconds,omitempty"`
	Error          string  `yaml:"error,omitempty"`
}

// Request returns the record's resource request.
func (s *StepRecord) Request() resource.Request {
	return resource.Request{
		Tasks:          s.Tasks,
		MinTasks:       s.MinTasks,
		CPUsPerTask:    s.CPUsPerTask,
		MinCPUsPerTask: s.MinCPUsPerTask,
		OpenMPThreads:  s.OpenMPThreads,
	}
}
