package state

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/goccy/go-yaml"
	"github.com/gofrs/flock"
)

// FileName is the run-state file written to the run directory.
const FileName = "run-state.yaml"

// ErrNoRunState reports that no run state has been planned yet.
var ErrNoRunState = errors.New("no run state found")

// Store handles run-state persistence with file locking, so concurrently
// finishing steps and reentrant step subprocesses can update it safely.
type Store struct {
	dir      string
	path     string
	fileLock *flock.Flock
}

// NewStore returns a store rooted at the given run directory.
func NewStore(dir string) *Store {
	return &Store{
		dir:      dir,
		path:     filepath.Join(dir, FileName),
		fileLock: flock.New(filepath.Join(dir, ".run-state.lock")),
	}
}

// Path returns the run-state file path.
func (s *Store) Path() string { return s.path }

// Save writes the run state under an exclusive lock. The write is atomic:
// a temporary file is renamed over the state file.
func (s *Store) Save(run *Run) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("creating run directory: %w", err)
	}
	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("locking run state: %w", err)
	}
	defer s.fileLock.Unlock()
	return s.write(run)
}

// Load reads the run state under a shared lock.
func (s *Store) Load() (*Run, error) {
	if err := s.fileLock.RLock(); err != nil {
		return nil, fmt.Errorf("locking run state: %w", err)
	}
	defer s.fileLock.Unlock()
	return s.read()
}

// UpdateStep applies fn to the named step record under an exclusive lock
// and writes the state back.
func (s *Store) UpdateStep(path string, fn func(*StepRecord)) error {
	if err := s.fileLock.Lock(); err != nil {
		return fmt.Errorf("locking run state: %w", err)
	}
	defer s.fileLock.Unlock()

	run, err := s.read()
	if err != nil {
		return err
	}
	record := run.Step(path)
	if record == nil {
		return fmt.Errorf("step %q is not part of the persisted run", path)
	}
	fn(record)
	return s.write(run)
}

func (s *Store) read() (*Run, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, fmt.Errorf("%w in %s", ErrNoRunState, s.dir)
		}
		return nil, err
	}
	var run Run
	if err := yaml.Unmarshal(data, &run); err != nil {
		return nil, fmt.Errorf("corrupt run state %s: %w", s.path, err)
	}
	return &run, nil
}

func (s *Store) write(run *Run) error {
	data, err := yaml.Marshal(run)
	if err != nil {
		return err
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, s.path)
}
