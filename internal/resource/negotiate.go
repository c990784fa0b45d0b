package resource

import (
	"errors"
	"fmt"
)

// ErrInsufficientResources reports that a step's minimum resource request
// cannot be satisfied by the budget. It is fatal for that step only.
var ErrInsufficientResources = errors.New("insufficient resources")

// Request is a step's desired and minimum resource needs. MinTasks must not
// exceed Tasks and MinCPUsPerTask must not exceed CPUsPerTask.
type Request struct {
	Tasks          int
	MinTasks       int
	CPUsPerTask    int
	MinCPUsPerTask int
	OpenMPThreads  int
}

// Allocation is the negotiated resource assignment for one step. It always
// satisfies Tasks >= MinTasks and CPUsPerTask >= MinCPUsPerTask of the
// request it was negotiated from.
type Allocation struct {
	Tasks       int
	CPUsPerTask int
	Nodes       int
}

// Cores returns the number of cores the allocation reserves while running.
func (a Allocation) Cores() int {
	return a.Tasks * a.CPUsPerTask
}

// Negotiate clamps the request against the budget. CPUs per task are
// clamped down to the cores available on one node, and tasks are clamped
// down so the step fits in the total core count; crossing either minimum
// fails with ErrInsufficientResources.
func Negotiate(req Request, b Budget) (Allocation, error) {
	if req.MinTasks > req.Tasks || req.MinCPUsPerTask > req.CPUsPerTask {
		return Allocation{}, fmt.Errorf(
			"%w: request minima exceed ideals (tasks %d>%d or cpus per task %d>%d)",
			ErrInsufficientResources, req.MinTasks, req.Tasks,
			req.MinCPUsPerTask, req.CPUsPerTask)
	}

	cpusPerTask := req.CPUsPerTask
	if cpusPerTask > b.CoresPerNode {
		cpusPerTask = b.CoresPerNode
	}
	if cpusPerTask < req.MinCPUsPerTask {
		return Allocation{}, fmt.Errorf(
			"%w: step needs at least %d cpus per task but nodes have %d cores",
			ErrInsufficientResources, req.MinCPUsPerTask, b.CoresPerNode)
	}

	tasks := req.Tasks
	if tasks*cpusPerTask > b.TotalCores {
		tasks = b.TotalCores / cpusPerTask
	}
	if tasks < req.MinTasks {
		return Allocation{}, fmt.Errorf(
			"%w: step needs at least %d tasks of %d cpus each but only %d cores are available",
			ErrInsufficientResources, req.MinTasks, cpusPerTask, b.TotalCores)
	}

	nodes := (tasks*cpusPerTask + b.CoresPerNode - 1) / b.CoresPerNode
	return Allocation{Tasks: tasks, CPUsPerTask: cpusPerTask, Nodes: nodes}, nil
}
