package harness

import (
	"context"
	"fmt"

	"github.com/floe-sci/floe/internal/ctxlog"
	"github.com/floe-sci/floe/internal/executor"
	"github.com/floe-sci/floe/internal/resource"
	"github.com/floe-sci/floe/internal/state"
	"github.com/floe-sci/floe/internal/suite"
)

// Execute plans the run and executes every planned step to a terminal
// state. Results are written back to the persisted run state as each step
// finishes, so a crashed or interrupted run leaves an inspectable trail.
func Execute(ctx context.Context, opts Options) (*executor.Report, error) {
	run, err := Plan(ctx, opts)
	if err != nil {
		return nil, err
	}

	store := state.NewStore(opts.RunDir)
	steps := make([]executor.Step, len(run.Steps))
	for i, rec := range run.Steps {
		steps[i] = stepFromRecord(rec, opts.RunDir, store)
	}

	workers := opts.Workers
	if workers < 1 {
		workers = run.Budget.TotalCores
	}

	exec := executor.New(steps, executor.Options{
		Workers:     workers,
		Budget:      run.Budget.Resource(),
		Environment: resource.Environment(run.Environment),
		Launcher:    run.Launcher,
		OnResult: func(res executor.Result) {
			writeResult(ctx, store, res)
		},
	})
	return exec.Run(ctx)
}

// RunStep executes a single planned step from a persisted run. In
// subprocess mode only the hooks run in-process; the parent run owns the
// terminal result. Invoked standalone, the step's command also runs and the
// result is written back.
func RunStep(ctx context.Context, runDir, path string, subprocess bool) error {
	store := state.NewStore(runDir)
	run, err := store.Load()
	if err != nil {
		return err
	}
	rec := run.Step(path)
	if rec == nil {
		return fmt.Errorf("step %q is not part of the persisted run", path)
	}
	step := stepFromRecord(rec, runDir, store)

	if subprocess || len(rec.Command) == 0 {
		return runHooks(ctx, store, step, subprocess)
	}

	// Standalone re-run of one step: a one-step schedule against the
	// persisted budget, result written back like any other step.
	report, err := executor.New([]executor.Step{step}, executor.Options{
		Workers:     1,
		Budget:      run.Budget.Resource(),
		Environment: resource.Environment(run.Environment),
		Launcher:    run.Launcher,
		OnResult: func(res executor.Result) {
			writeResult(ctx, store, res)
		},
	}).Run(ctx)
	if err != nil {
		return err
	}
	if !report.OK() {
		return report.Results[0].Err
	}
	return nil
}

// runHooks runs a step's lifecycle without launching an external process.
func runHooks(ctx context.Context, store *state.Store, step *suite.Step, subprocess bool) error {
	err := func() error {
		if err := step.PreRun(ctx); err != nil {
			return fmt.Errorf("pre-run hook: %w", err)
		}
		if err := step.PostRun(ctx); err != nil {
			return fmt.Errorf("post-run hook: %w", err)
		}
		return step.Validate()
	}()

	// A subprocess reports through its exit code; the parent records the
	// terminal state.
	if subprocess {
		return err
	}
	res := executor.Result{Path: step.Path(), State: executor.Succeeded, Err: err}
	if err != nil {
		res.State = executor.Failed
	}
	writeResult(ctx, store, res)
	return err
}

// stepFromRecord rehydrates an executable step from its persisted form. The
// post-run hook writes an intermediate status back under the state lock, so
// an interrupted run still shows which steps got past their process.
func stepFromRecord(rec *state.StepRecord, runDir string, store *state.Store) *suite.Step {
	return suite.NewStep(suite.StepParams{
		Suite:   rec.Suite,
		Case:    rec.Case,
		Name:    rec.Name,
		Command: rec.Command,
		Inputs:  rec.Inputs,
		Outputs: rec.Outputs,
		Request: rec.Request(),
		WorkDir: rec.WorkDir,
		RunDir:  runDir,
		Persist: func(ctx context.Context) error {
			return store.UpdateStep(rec.Path, func(r *state.StepRecord) {
				r.Status = "ran"
			})
		},
	})
}

// writeResult records a step's terminal outcome in the persisted run state.
func writeResult(ctx context.Context, store *state.Store, res executor.Result) {
	err := store.UpdateStep(res.Path, func(r *state.StepRecord) {
		r.Status = res.State.String()
		r.ElapsedSeconds = res.Elapsed.Seconds()
		if res.Err != nil {
			r.Error = res.Err.Error()
		}
	})
	if err != nil {
		ctxlog.FromContext(ctx).Error("failed to persist step result",
			"step", res.Path, "error", err)
	}
}
