package dataflow

import (
	"errors"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"
)

// ErrDuplicateProducer reports two steps declaring the same output path.
// It is fatal for the whole run, before anything is scheduled.
var ErrDuplicateProducer = errors.New("duplicate producer")

// ErrUnresolvedDependency reports an input path with no producer and no
// existing file on disk. It is fatal for the affected step only.
var ErrUnresolvedDependency = errors.New("unresolved dependency")

// Producer is the slice of the step contract the graph builder consumes:
// an identity plus declared input and output file paths.
type Producer interface {
	Path() string
	Inputs() []string
	Outputs() []string
}

// Node holds the resolved data-availability edges of one step.
type Node struct {
	// Path is the step's unique path.
	Path string
	// Inputs are the predecessor futures the step must wait on, in
	// declaration order. External inputs are pre-resolved.
	Inputs []*Future
	// Outputs are the futures the step is the sole writer of.
	Outputs []*Future
	// Missing lists declared input paths with no producer and no file on
	// disk at graph-build time.
	Missing []string
	// Err is non-nil when the step can never be scheduled; it wraps
	// ErrUnresolvedDependency and names every missing path.
	Err error
}

// Graph is the data-dependency graph of a run.
type Graph struct {
	// Futures maps each produced output path to its future.
	Futures map[string]*Future
	// Nodes holds one entry per step, in declaration order.
	Nodes []*Node

	byPath map[string]*Node
}

// Node returns the graph node for the given step path, or nil.
func (g *Graph) Node(path string) *Node {
	return g.byPath[path]
}

// Build processes steps in declaration order: earlier steps are candidate
// producers for later steps' inputs, never the reverse, so cycles are
// impossible by construction. Inputs bind to a previously registered output
// future, or to a pre-resolved external future when the file already exists
// on disk; otherwise they are collected as missing and the step's node
// carries ErrUnresolvedDependency. Declaring an output path twice fails the
// whole build with ErrDuplicateProducer.
func Build(steps []Producer) (*Graph, error) {
	g := &Graph{
		Futures: make(map[string]*Future),
		byPath:  make(map[string]*Node),
	}
	external := make(map[string]*Future)

	for _, step := range steps {
		node := &Node{Path: step.Path()}

		for _, in := range step.Inputs() {
			if f, ok := g.Futures[in]; ok {
				node.Inputs = append(node.Inputs, f)
				continue
			}
			if f, ok := external[in]; ok {
				node.Inputs = append(node.Inputs, f)
				continue
			}
			if _, err := os.Stat(in); err == nil {
				// Present before the run started (e.g. model files staged
				// outside the harness); satisfied immediately.
				f := newExternal(in)
				external[in] = f
				node.Inputs = append(node.Inputs, f)
				continue
			}
			node.Missing = append(node.Missing, in)
		}

		for _, out := range step.Outputs() {
			if prev, ok := g.Futures[out]; ok {
				return nil, fmt.Errorf("%w: %q is declared as an output of both %s and %s",
					ErrDuplicateProducer, out, prev.Producer, step.Path())
			}
			f := newFuture(out, step.Path())
			g.Futures[out] = f
			node.Outputs = append(node.Outputs, f)
		}

		if len(node.Missing) > 0 {
			var missing *multierror.Error
			for _, path := range node.Missing {
				missing = multierror.Append(missing,
					fmt.Errorf("input %q has no producing step and does not exist", path))
			}
			node.Err = fmt.Errorf("%w: step %s: %v",
				ErrUnresolvedDependency, step.Path(), missing.ErrorOrNil())
		}

		g.Nodes = append(g.Nodes, node)
		g.byPath[node.Path] = node
	}

	return g, nil
}
