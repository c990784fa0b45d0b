package resource

import (
	"context"
	"fmt"
	"runtime"

	"github.com/floe-sci/floe/internal/ctxlog"
)

// CoreCounts is a node's core usage as reported by the batch system.
type CoreCounts struct {
	Allocated int
	Idle      int
	Other     int
	Total     int
}

// BatchSystem exposes read-only queries against the live allocation state
// of the batch scheduler.
type BatchSystem interface {
	// CurrentJob returns the current job id and the node the harness is
	// running on.
	CurrentJob() (jobID, node string, err error)
	// NodeCores reports allocated/idle/other/total core counts for a node.
	NodeCores(ctx context.Context, node string) (CoreCounts, error)
	// ThreadsPerCore reports the node's hardware threads per core.
	ThreadsPerCore(ctx context.Context, node string) (int, error)
	// JobNodes reports the number of nodes in the given job.
	JobNodes(ctx context.Context, jobID string) (int, error)
}

// ProbeConfig carries the externally configured knobs consulted during
// discovery.
type ProbeConfig struct {
	// LoginCores caps how many cores a run may use on a login node.
	LoginCores int
	// CoresPerNode optionally caps the cores used on a single node.
	CoresPerNode int
	// ThreadsPerCore overrides what the batch system reports. Zero means
	// trust the batch system.
	ThreadsPerCore int
	// GPUsPerNode is reported on the budget verbatim.
	GPUsPerNode int
}

// Probe inspects the runtime environment and reports a fixed-size resource
// budget. It performs only read-only queries against the OS and the batch
// system.
type Probe struct {
	batch BatchSystem
	// physicalCores is swappable in tests.
	physicalCores func() int
}

// NewProbe returns a probe backed by the given batch system client. The
// client may be nil when discovery never targets a batch allocation.
func NewProbe(batch BatchSystem) *Probe {
	return &Probe{batch: batch, physicalCores: runtime.NumCPU}
}

// Discover produces the resource budget for the given environment.
func (p *Probe) Discover(ctx context.Context, env Environment, cfg ProbeConfig) (Budget, error) {
	switch env {
	case EnvLogin:
		return p.discoverLogin(cfg), nil
	case EnvSingleNode:
		return p.discoverSingleNode(cfg), nil
	case EnvBatch:
		return p.discoverBatch(ctx, cfg)
	}
	return Budget{}, fmt.Errorf("%w: %q", ErrUnsupportedEnvironment, env)
}

func (p *Probe) discoverLogin(cfg ProbeConfig) Budget {
	cores := p.physicalCores()
	if cfg.LoginCores > 0 && cfg.LoginCores < cores {
		cores = cfg.LoginCores
	}
	return Budget{
		TotalCores:     cores,
		TotalNodes:     1,
		CoresPerNode:   cores,
		ThreadsPerCore: 1,
		GPUsPerNode:    cfg.GPUsPerNode,
		MPIAllowed:     false,
	}
}

func (p *Probe) discoverSingleNode(cfg ProbeConfig) Budget {
	cores := p.physicalCores()
	if cfg.CoresPerNode > 0 && cfg.CoresPerNode < cores {
		cores = cfg.CoresPerNode
	}
	return Budget{
		TotalCores:     cores,
		TotalNodes:     1,
		CoresPerNode:   cores,
		ThreadsPerCore: 1,
		GPUsPerNode:    cfg.GPUsPerNode,
		MPIAllowed:     true,
	}
}

func (p *Probe) discoverBatch(ctx context.Context, cfg ProbeConfig) (Budget, error) {
	logger := ctxlog.FromContext(ctx)
	if p.batch == nil {
		return Budget{}, fmt.Errorf("%w: no batch system client available", ErrUnsupportedEnvironment)
	}

	jobID, node, err := p.batch.CurrentJob()
	if err != nil {
		return Budget{}, err
	}

	counts, err := p.batch.NodeCores(ctx, node)
	if err != nil {
		return Budget{}, err
	}
	// Only the allocated cores are ours to use. Some schedulers report zero
	// allocated cores for the node; fall back to the node total in exactly
	// that case.
	coresPerNode := counts.Allocated
	if coresPerNode == 0 {
		logger.Warn("batch system reports zero allocated cores, using the node total",
			"node", node, "total", counts.Total)
		coresPerNode = counts.Total
	}

	reported, err := p.batch.ThreadsPerCore(ctx, node)
	if err != nil {
		return Budget{}, err
	}
	threadsPerCore := reported
	if cfg.ThreadsPerCore > 0 && cfg.ThreadsPerCore != reported {
		// Rescale rather than trusting the override blindly over what the
		// batch system reports.
		logger.Warn("configured threads per core differs from the batch system, rescaling cores per node",
			"configured", cfg.ThreadsPerCore, "reported", reported, "node", node)
		coresPerNode = (coresPerNode * cfg.ThreadsPerCore) / reported
		threadsPerCore = cfg.ThreadsPerCore
	}

	nodes, err := p.batch.JobNodes(ctx, jobID)
	if err != nil {
		return Budget{}, err
	}

	return Budget{
		TotalCores:     coresPerNode * nodes,
		TotalNodes:     nodes,
		CoresPerNode:   coresPerNode,
		ThreadsPerCore: threadsPerCore,
		GPUsPerNode:    cfg.GPUsPerNode,
		MPIAllowed:     true,
	}, nil
}
