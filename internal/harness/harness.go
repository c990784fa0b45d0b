// Package harness orchestrates a run end to end: load suite definitions,
// probe the environment for a resource budget, persist the run plan, and
// execute every planned step through the concurrent executor.
package harness

import (
	"context"
	"fmt"
	"path/filepath"

	"github.com/floe-sci/floe/internal/ctxlog"
	"github.com/floe-sci/floe/internal/resource"
	"github.com/floe-sci/floe/internal/slurm"
	"github.com/floe-sci/floe/internal/state"
	"github.com/floe-sci/floe/internal/suite"
)

// Default launchers when the suite does not name one.
const (
	defaultBatchLauncher      = "srun"
	defaultSingleNodeLauncher = "mpirun"
)

// Options configures planning and execution of one run.
type Options struct {
	// SuitePaths are the suite files or directories to load.
	SuitePaths []string
	// SuiteName selects among several loaded suites. Empty is allowed when
	// exactly one suite was loaded.
	SuiteName string
	// RunDir is the run's root directory: step work directories and the
	// persisted run state live under it.
	RunDir string
	// Launcher overrides the suite's parallel launcher.
	Launcher string
	// Workers bounds concurrent steps. Zero means one worker per budgeted
	// core.
	Workers int
	// Steps, when non-empty, restricts the run to matching steps. Matches
	// the step name, case/step, or the full suite/case/step path.
	Steps []string
	// SkipSteps removes matching steps from the run.
	SkipSteps []string
}

// Plan loads the suite, probes the environment, and persists the run plan.
// Every selected step is written to the run state as planned, with its work
// directory and resource request resolved.
func Plan(ctx context.Context, opts Options) (*state.Run, error) {
	logger := ctxlog.FromContext(ctx)

	suites, err := suite.Load(ctx, opts.SuitePaths...)
	if err != nil {
		return nil, err
	}
	s, err := suite.Find(suites, opts.SuiteName)
	if err != nil {
		return nil, err
	}

	env, err := resource.ParseEnvironment(s.Parallel.System)
	if err != nil {
		return nil, err
	}
	// A batch suite planned outside an allocation degrades to the login
	// environment rather than failing, so plans can be inspected anywhere.
	if env == resource.EnvBatch && !slurm.InAllocation() {
		logger.Warn("not inside a batch allocation, running in the login environment",
			"suite", s.Name)
		env = resource.EnvLogin
	}

	budget, err := resource.NewProbe(slurm.NewClient()).Discover(ctx, env, s.Parallel.ProbeConfig())
	if err != nil {
		return nil, err
	}
	logger.Info("resource budget discovered",
		"environment", string(env),
		"cores", budget.TotalCores,
		"nodes", budget.TotalNodes,
		"cores_per_node", budget.CoresPerNode)

	launcher := opts.Launcher
	if launcher == "" {
		launcher = s.Parallel.Launcher
	}
	if launcher == "" {
		switch env {
		case resource.EnvBatch:
			launcher = defaultBatchLauncher
		case resource.EnvSingleNode:
			launcher = defaultSingleNodeLauncher
		}
	}

	run := &state.Run{
		Suite:       s.Name,
		Environment: string(env),
		Launcher:    launcher,
		Budget:      state.FromBudget(budget),
	}
	for _, testCase := range s.Cases {
		for _, spec := range testCase.Steps {
			if !selected(opts, s.Name, testCase.Name, spec.Name) {
				logger.Debug("step excluded from run",
					"case", testCase.Name, "step", spec.Name)
				continue
			}
			// Steps of a case share the case work directory, so a file
			// declared as "${case}/out.nc" is written right where the
			// producing command leaves it.
			rec := &state.StepRecord{
				Path:           s.Name + "/" + testCase.Name + "/" + spec.Name,
				Suite:          s.Name,
				Case:           testCase.Name,
				Name:           spec.Name,
				WorkDir:        filepath.Join(opts.RunDir, testCase.Name),
				Command:        spec.Command,
				Inputs:         resolvePaths(opts.RunDir, spec.Inputs),
				Outputs:        resolvePaths(opts.RunDir, spec.Outputs),
				Tasks:          spec.Tasks,
				MinTasks:       spec.MinTasks,
				CPUsPerTask:    spec.CPUsPerTask,
				MinCPUsPerTask: spec.MinCPUsPerTask,
				OpenMPThreads:  spec.OpenMPThreads,
				Status:         "planned",
			}
			// Negotiate up front so the persisted plan shows each step's
			// concrete assignment; infeasible steps are still planned and
			// fail at execution.
			if alloc, err := resource.Negotiate(rec.Request(), budget); err != nil {
				logger.Warn("step request does not fit the budget",
					"step", rec.Path, "error", err)
			} else {
				rec.Allocation = &state.Allocation{
					Tasks:       alloc.Tasks,
					CPUsPerTask: alloc.CPUsPerTask,
					Nodes:       alloc.Nodes,
				}
			}
			run.Steps = append(run.Steps, rec)
		}
	}
	if len(run.Steps) == 0 {
		return nil, fmt.Errorf("suite %q has no steps to run", s.Name)
	}

	if err := state.NewStore(opts.RunDir).Save(run); err != nil {
		return nil, err
	}
	logger.Info("run plan persisted", "suite", s.Name, "steps", len(run.Steps))
	return run, nil
}

// resolvePaths anchors relative data paths at the run directory. File
// identity between steps is the resolved string, so the same declared path
// always names the same file no matter where the harness was started.
func resolvePaths(runDir string, paths []string) []string {
	if len(paths) == 0 {
		return nil
	}
	resolved := make([]string, len(paths))
	for i, p := range paths {
		if filepath.IsAbs(p) {
			resolved[i] = p
			continue
		}
		resolved[i] = filepath.Join(runDir, p)
	}
	return resolved
}

// selected applies the include and exclude step filters.
func selected(opts Options, suiteName, caseName, stepName string) bool {
	match := func(pattern string) bool {
		return pattern == stepName ||
			pattern == caseName+"/"+stepName ||
			pattern == suiteName+"/"+caseName+"/"+stepName
	}
	for _, pattern := range opts.SkipSteps {
		if match(pattern) {
			return false
		}
	}
	if len(opts.Steps) == 0 {
		return true
	}
	for _, pattern := range opts.Steps {
		if match(pattern) {
			return true
		}
	}
	return false
}
