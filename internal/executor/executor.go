package executor

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/floe-sci/floe/internal/ctxlog"
	"github.com/floe-sci/floe/internal/dataflow"
	"github.com/floe-sci/floe/internal/launch"
	"github.com/floe-sci/floe/internal/resource"
)

// Options configures a run.
type Options struct {
	// Workers bounds how many steps may be in flight at once.
	Workers int
	// Budget is the resource budget every step was negotiated against.
	Budget resource.Budget
	// Environment selects how launch commands are built.
	Environment resource.Environment
	// Launcher is the parallel launcher executable, possibly with embedded
	// flags (external configuration, e.g. "srun").
	Launcher string
	// Launch overrides how the external invocation is run. Nil means run a
	// real subprocess.
	Launch LaunchFunc
	// OnResult, when set, is invoked as each step reaches a terminal
	// state, for writing results back to the persisted run state.
	OnResult func(Result)
}

// stepNode pairs a step with its scheduling state.
type stepNode struct {
	step  Step
	gnode *dataflow.Node

	alloc resource.Allocation
	args  []string
	env   []string
	// configErr marks the step as failed before scheduling: infeasible
	// negotiation, unresolved inputs, or an illegal parallel launch.
	configErr error

	state      atomic.Int32
	depCount   atomic.Int32
	dependents []*stepNode
	finishOnce sync.Once

	err     error
	elapsed time.Duration
}

// Executor runs all steps of a suite concurrently subject to the
// data-dependency graph.
type Executor struct {
	steps  []Step
	opts   Options
	sem    *semaphore.Weighted
	launch LaunchFunc
	wg     sync.WaitGroup
	ready  chan *stepNode
}

// New builds an executor over the given steps. The slice must be in
// declaration order; ordering is meaningful to the dependency graph.
func New(steps []Step, opts Options) *Executor {
	if opts.Workers < 1 {
		opts.Workers = 1
	}
	launchFn := opts.Launch
	if launchFn == nil {
		launchFn = runProcess
	}
	totalCores := int64(opts.Budget.TotalCores)
	if totalCores < 1 {
		totalCores = 1
	}
	return &Executor{
		steps:  steps,
		opts:   opts,
		sem:    semaphore.NewWeighted(totalCores),
		launch: launchFn,
	}
}

// Run negotiates resources for every step up front, builds the dependency
// graph, and executes everything to a terminal state. The returned error is
// non-nil only for run-fatal conditions (duplicate producers); individual
// step failures are reported through the Report.
func (e *Executor) Run(ctx context.Context) (*Report, error) {
	logger := ctxlog.FromContext(ctx)
	start := time.Now()

	producers := make([]dataflow.Producer, len(e.steps))
	for i, s := range e.steps {
		producers[i] = s
	}
	graph, err := dataflow.Build(producers)
	if err != nil {
		return nil, err
	}
	logger.Debug("dependency graph built", "steps", len(graph.Nodes), "futures", len(graph.Futures))

	nodes, byPath := e.planNodes(graph)

	// Wire producer -> consumer edges and count unresolved predecessors.
	for _, n := range nodes {
		pending := int32(0)
		for _, f := range n.gnode.Inputs {
			if !f.Pending() {
				continue
			}
			byPath[f.Producer].dependents = append(byPath[f.Producer].dependents, n)
			pending++
		}
		n.depCount.Store(pending)
	}

	for _, n := range nodes {
		if n.depCount.Load() == 0 {
			n.state.Store(int32(Runnable))
		} else {
			n.state.Store(int32(Blocked))
		}
	}

	// Every node reaches a terminal state exactly once, and each terminal
	// transition accounts for one wg.Done.
	e.wg.Add(len(nodes))

	// Steps that can never be scheduled are terminal before any worker
	// starts, and so are their transitive dependents.
	for _, n := range nodes {
		if n.configErr != nil {
			logger.Error("step cannot be scheduled", "step", n.step.Path(), "error", n.configErr)
			e.terminate(n, Failed, n.configErr)
		}
	}
	for _, n := range nodes {
		if n.configErr != nil {
			e.skipDependents(ctx, n)
		}
	}

	e.ready = make(chan *stepNode, len(nodes))
	for _, n := range nodes {
		if State(n.state.Load()) == Runnable {
			e.ready <- n
		}
	}

	logger.Debug("starting worker pool", "workers", e.opts.Workers)
	for i := 0; i < e.opts.Workers; i++ {
		go e.worker(ctx, i)
	}

	e.wg.Wait()
	close(e.ready)

	report := &Report{Elapsed: time.Since(start)}
	for _, n := range nodes {
		report.Results = append(report.Results, n.result())
	}
	return report, nil
}

// planNodes negotiates every step's resources and builds its concrete
// launch invocation, before anything runs, so the whole run's resource plan
// is known up front.
func (e *Executor) planNodes(graph *dataflow.Graph) ([]*stepNode, map[string]*stepNode) {
	nodes := make([]*stepNode, len(e.steps))
	byPath := make(map[string]*stepNode, len(e.steps))
	for i, s := range e.steps {
		n := &stepNode{step: s, gnode: graph.Nodes[i]}
		n.configErr = n.gnode.Err
		if n.configErr == nil {
			alloc, err := resource.Negotiate(s.Request(), e.opts.Budget)
			if err != nil {
				n.configErr = err
			} else {
				n.alloc = alloc
				n.args, n.env, n.configErr = e.launchCommand(s, alloc)
			}
		}
		nodes[i] = n
		byPath[s.Path()] = n
	}
	return nodes, byPath
}

// launchCommand builds a step's full external invocation. On systems where
// MPI launches are disallowed, single-core steps run as plain subprocesses
// and anything wider is rejected.
func (e *Executor) launchCommand(s Step, alloc resource.Allocation) ([]string, []string, error) {
	env := launch.Env(s.Request().OpenMPThreads)
	args := s.LaunchArguments()
	if !e.opts.Budget.MPIAllowed {
		if alloc.Cores() > 1 {
			return nil, nil, fmt.Errorf("%w: step %s requires %d cores",
				launch.ErrParallelLaunchUnsupported, s.Path(), alloc.Cores())
		}
		return args, env, nil
	}
	full, err := launch.Command(e.opts.Launcher, args, alloc, e.opts.Environment)
	if err != nil {
		return nil, nil, err
	}
	return full, env, nil
}

func (n *stepNode) result() Result {
	return Result{
		Path:    n.step.Path(),
		State:   State(n.state.Load()),
		Elapsed: n.elapsed,
		Err:     n.err,
	}
}

func (e *Executor) emit(n *stepNode) {
	if e.opts.OnResult != nil {
		e.opts.OnResult(n.result())
	}
}

// terminate moves a node that never ran to a terminal state exactly once.
// Its output futures resolve as unavailable so consumers can never start.
func (e *Executor) terminate(n *stepNode, st State, err error) bool {
	acted := false
	n.finishOnce.Do(func() {
		n.state.Store(int32(st))
		n.err = err
		for _, f := range n.gnode.Outputs {
			f.Resolve(false)
		}
		e.emit(n)
		e.wg.Done()
		acted = true
	})
	return acted
}

// succeed resolves the node's outputs and unlocks any dependents whose
// predecessors have all resolved. Fan-out is natural: one resolution may
// make many steps runnable at once.
func (e *Executor) succeed(n *stepNode) {
	n.finishOnce.Do(func() {
		n.state.Store(int32(Succeeded))
		for _, f := range n.gnode.Outputs {
			f.Resolve(true)
		}
		e.emit(n)
		e.wg.Done()
		for _, dep := range n.dependents {
			if dep.depCount.Add(-1) == 0 &&
				dep.state.CompareAndSwap(int32(Blocked), int32(Runnable)) {
				e.ready <- dep
			}
		}
	})
}

// skipDependents marks every transitive dependent of a failed step as
// permanently blocked. Unrelated in-flight steps are never cancelled.
func (e *Executor) skipDependents(ctx context.Context, n *stepNode) {
	logger := ctxlog.FromContext(ctx)
	for _, dep := range n.dependents {
		err := fmt.Errorf("skipped due to dependency failure: %s", n.step.Path())
		if e.terminate(dep, Skipped, err) {
			logger.Warn("skipping step, upstream failed",
				"step", dep.step.Path(), "upstream", n.step.Path())
			e.skipDependents(ctx, dep)
		}
	}
}
