package executor

import (
	"context"
	"fmt"
	"time"

	"github.com/floe-sci/floe/internal/ctxlog"
)

// worker is the core processing loop for a single concurrent worker.
func (e *Executor) worker(ctx context.Context, workerID int) {
	logger := ctxlog.FromContext(ctx).With("worker", workerID)
	logger.Debug("worker started")

	for n := range e.ready {
		// A queued node may have been skipped by a failed sibling producer
		// in the meantime; only a Runnable node may start.
		if !n.state.CompareAndSwap(int32(Runnable), int32(Running)) {
			continue
		}

		stepLogger := logger.With("step", n.step.Path())
		stepLogger.Debug("worker picked up step")

		if err := e.executeStep(ctx, n); err != nil {
			stepLogger.Error("step failed", "error", err, "elapsed", n.elapsed)
			if e.terminate(n, Failed, err) {
				e.skipDependents(ctx, n)
			}
			continue
		}

		stepLogger.Info("step succeeded", "elapsed", n.elapsed)
		e.succeed(n)
	}
	logger.Debug("worker finished")
}

// executeStep acquires the step's share of the core budget, then runs the
// pre-run hook, the external process, the post-run hook, and validation.
// Elapsed wall time excludes waiting for admission.
func (e *Executor) executeStep(ctx context.Context, n *stepNode) error {
	weight := int64(n.alloc.Cores())
	if weight < 1 {
		weight = 1
	}
	if err := e.sem.Acquire(ctx, weight); err != nil {
		return fmt.Errorf("waiting for cores: %w", err)
	}
	defer e.sem.Release(weight)

	start := time.Now()
	defer func() { n.elapsed = time.Since(start) }()

	logger := ctxlog.FromContext(ctx).With("step", n.step.Path())
	logger.Info("running step",
		"tasks", n.alloc.Tasks,
		"cpus_per_task", n.alloc.CPUsPerTask,
		"nodes", n.alloc.Nodes)

	if err := n.step.PreRun(ctx); err != nil {
		return fmt.Errorf("%w: pre-run hook: %w", ErrStepExecution, err)
	}
	if err := e.launch(ctx, n.step, n.args, n.env); err != nil {
		return fmt.Errorf("%w: %w", ErrStepExecution, err)
	}
	if err := n.step.PostRun(ctx); err != nil {
		return fmt.Errorf("%w: post-run hook: %w", ErrStepExecution, err)
	}
	if err := n.step.Validate(); err != nil {
		return fmt.Errorf("%w: %w", ErrValidationFailure, err)
	}
	return nil
}
