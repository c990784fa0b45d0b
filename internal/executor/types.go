// Package executor schedules and runs the steps of a suite concurrently.
// A fixed worker pool consumes a ready queue fed by the file-based
// dependency graph, and a weighted semaphore sized to the budget's total
// cores gates admission so concurrently running steps never reserve more
// cores than the run owns.
package executor

import (
	"context"
	"errors"
	"time"

	"github.com/floe-sci/floe/internal/resource"
)

// ErrStepExecution reports a non-zero exit of a step's external process or
// a failure in its pre/post-run hooks.
var ErrStepExecution = errors.New("step execution failed")

// ErrValidationFailure reports a failed post-hoc validation, distinct from
// an execution failure.
var ErrValidationFailure = errors.New("step validation failed")

// State is the lifecycle state of a step within one run.
type State int32

const (
	// Planned means the step has been constructed but not yet examined.
	Planned State = iota
	// Blocked means at least one predecessor future is unresolved.
	Blocked
	// Runnable means every predecessor future has resolved successfully.
	Runnable
	// Running means the step's hooks and external process are executing.
	Running
	// Succeeded is terminal: the step completed and validated.
	Succeeded
	// Failed is terminal: negotiation, execution, or validation failed.
	Failed
	// Skipped is terminal: an upstream failure means the step can never
	// become runnable. Reported distinctly from Failed.
	Skipped
)

func (s State) String() string {
	switch s {
	case Planned:
		return "planned"
	case Blocked:
		return "blocked"
	case Runnable:
		return "runnable"
	case Running:
		return "running"
	case Succeeded:
		return "succeeded"
	case Failed:
		return "failed"
	case Skipped:
		return "skipped"
	}
	return "unknown"
}

// Step is the contract the executor consumes from step implementations.
// Steps are never mutated concurrently: each executes at most once per run.
type Step interface {
	// Path uniquely identifies the step as suite/test-case/name.
	Path() string
	// WorkDir is the directory the step executes in.
	WorkDir() string
	// Inputs are the file paths the step reads, in declaration order.
	Inputs() []string
	// Outputs are the file paths the step is the sole writer of.
	Outputs() []string
	// Request is the step's ideal and minimum resource needs.
	Request() resource.Request
	// PreRun loads dependency outputs and performs just-in-time setup.
	PreRun(ctx context.Context) error
	// LaunchArguments is the scalar external command, before any parallel
	// launcher prefix. Empty means the step is hooks-only.
	LaunchArguments() []string
	// PostRun persists the step's state after the process exits.
	PostRun(ctx context.Context) error
	// Validate checks the step's results after completion.
	Validate() error
}

// LaunchFunc runs a step's fully built external invocation. Swappable in
// tests.
type LaunchFunc func(ctx context.Context, step Step, args, env []string) error

// Result is one step's terminal outcome.
type Result struct {
	Path    string
	State   State
	Elapsed time.Duration
	Err     error
}

// Report is the suite-level outcome of a run, with results in step
// declaration order.
type Report struct {
	Results []Result
	Elapsed time.Duration
}

// OK reports whether every step succeeded.
func (r *Report) OK() bool {
	for _, res := range r.Results {
		if res.State != Succeeded {
			return false
		}
	}
	return true
}

// Failures counts steps that failed or were skipped.
func (r *Report) Failures() int {
	n := 0
	for _, res := range r.Results {
		if res.State != Succeeded {
			n++
		}
	}
	return n
}
