// Package dataflow builds the file-based data-dependency graph across the
// steps of a run. Each declared output path becomes a Future owned by
// exactly one producing step; consuming steps hold read references and
// block until the future resolves.
package dataflow

import "sync"

// Future represents the eventual availability of a file path produced by
// exactly one step, or a file already present on disk before the run
// starts. It is written exactly once, by the producing step, and read many
// times.
type Future struct {
	// Path is the file path the future stands for, compared by exact
	// string equality with no canonicalization.
	Path string
	// Producer is the path of the step that writes the file. Empty for
	// external inputs that existed on disk at graph-build time.
	Producer string

	once sync.Once
	done chan struct{}
	ok   bool
}

func newFuture(path, producer string) *Future {
	return &Future{Path: path, Producer: producer, done: make(chan struct{})}
}

// newExternal returns a pre-resolved future for a file that already exists
// on disk.
func newExternal(path string) *Future {
	f := newFuture(path, "")
	f.Resolve(true)
	return f
}

// Resolve marks the future as available (ok) or permanently unavailable.
// Only the producing step may call it; repeated calls are ignored.
func (f *Future) Resolve(ok bool) {
	f.once.Do(func() {
		f.ok = ok
		close(f.done)
	})
}

// Done returns a channel closed once the future has resolved either way.
func (f *Future) Done() <-chan struct{} {
	return f.done
}

// OK reports whether the file became available. Valid only after Done is
// closed.
func (f *Future) OK() bool {
	select {
	case <-f.done:
		return f.ok
	default:
		return false
	}
}

// Pending reports whether the future is produced by a step in this run, as
// opposed to an external file satisfied before the run started.
func (f *Future) Pending() bool {
	return f.Producer != ""
}
