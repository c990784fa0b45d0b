package suite

import (
	"context"
	"fmt"
	"os"

	"github.com/hashicorp/go-multierror"

	"github.com/floe-sci/floe/internal/resource"
)

// StepParams carries everything needed to make a step executable.
type StepParams struct {
	Suite   string
	Case    string
	Name    string
	Command []string
	Inputs  []string
	Outputs []string
	Request resource.Request
	// WorkDir is the directory the step executes in.
	WorkDir string
	// RunDir is the run's root directory holding the persisted run state.
	RunDir string
	// Persist is the post-run hook's write-back to the persisted state.
	Persist func(ctx context.Context) error
}

// Step is the executable form of a step record: bound to a work directory
// and wired to the persisted run state. It is constructed during suite
// setup, negotiated once per run, and executed at most once.
type Step struct {
	p StepParams
}

// NewStep builds an executable step.
func NewStep(p StepParams) *Step {
	return &Step{p: p}
}

// Path uniquely identifies the step as suite/test-case/name.
func (s *Step) Path() string {
	return s.p.Suite + "/" + s.p.Case + "/" + s.p.Name
}

// WorkDir is the directory the step executes in.
func (s *Step) WorkDir() string { return s.p.WorkDir }

// Inputs are the declared input file paths, verbatim.
func (s *Step) Inputs() []string { return s.p.Inputs }

// Outputs are the declared output file paths, verbatim.
func (s *Step) Outputs() []string { return s.p.Outputs }

// Request is the step's resource request.
func (s *Step) Request() resource.Request { return s.p.Request }

// LaunchArguments is the step's scalar command. A step declared without
// one re-invokes the harness, which rehydrates the step from the persisted
// run state by its path.
func (s *Step) LaunchArguments() []string {
	if len(s.p.Command) > 0 {
		return s.p.Command
	}
	exe, err := os.Executable()
	if err != nil {
		exe = "floe"
	}
	return []string{exe, "step", "--path", s.Path(), "--run-dir", s.p.RunDir, "--subprocess"}
}

// PreRun creates the work directory and checks that every declared input
// is readable before the external process launches.
func (s *Step) PreRun(ctx context.Context) error {
	if err := os.MkdirAll(s.p.WorkDir, 0o755); err != nil {
		return err
	}
	var missing *multierror.Error
	for _, in := range s.p.Inputs {
		if _, err := os.Stat(in); err != nil {
			missing = multierror.Append(missing, fmt.Errorf("input %q: %w", in, err))
		}
	}
	return missing.ErrorOrNil()
}

// PostRun writes the step's state back to the persisted run form.
func (s *Step) PostRun(ctx context.Context) error {
	if s.p.Persist == nil {
		return nil
	}
	return s.p.Persist(ctx)
}

// Validate checks that every declared output materialized.
func (s *Step) Validate() error {
	var missing *multierror.Error
	for _, out := range s.p.Outputs {
		if _, err := os.Stat(out); err != nil {
			missing = multierror.Append(missing, fmt.Errorf("declared output %q was not produced", out))
		}
	}
	return missing.ErrorOrNil()
}
