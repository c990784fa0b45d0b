package suite

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"

	"github.com/floe-sci/floe/internal/ctxlog"
)

// fileRoot is the top-level structure of any suite file.
type fileRoot struct {
	Suites []*hclSuite `hcl:"suite,block"`
}

type hclSuite struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclSuiteBody struct {
	Parallel *Parallel  `hcl:"parallel,block"`
	Cases    []*hclCase `hcl:"case,block"`
}

type hclCase struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

type hclCaseBody struct {
	Steps []*hclStep `hcl:"step,block"`
}

type hclStep struct {
	Name string   `hcl:"name,label"`
	Body hcl.Body `hcl:",remain"`
}

// hclStepBody is decoded with an evaluation context exposing the suite,
// case, and step names, so paths can be written as "${case}/init.nc".
type hclStepBody struct {
	Command        []string `hcl:"command,optional"`
	Inputs         []string `hcl:"inputs,optional"`
	Outputs        []string `hcl:"outputs,optional"`
	Tasks          *int     `hcl:"ntasks,optional"`
	MinTasks       *int     `hcl:"min_tasks,optional"`
	CPUsPerTask    *int     `hcl:"cpus_per_task,optional"`
	MinCPUsPerTask *int     `hcl:"min_cpus_per_task,optional"`
	OpenMPThreads  *int     `hcl:"openmp_threads,optional"`
}

// Load parses every .hcl file under the given paths and merges suite
// blocks by name, preserving file and declaration order.
func Load(ctx context.Context, paths ...string) ([]*Suite, error) {
	logger := ctxlog.FromContext(ctx)

	files, err := findSuiteFiles(paths)
	if err != nil {
		return nil, err
	}
	logger.Debug("discovered suite files", "count", len(files))

	parser := hclparse.NewParser()
	var suites []*Suite
	byName := make(map[string]*Suite)

	for _, file := range files {
		hclFile, diags := parser.ParseHCLFile(file)
		if diags.HasErrors() {
			return nil, fmt.Errorf("failed to parse suite file %s: %w", file, diags)
		}

		var root fileRoot
		if diags := gohcl.DecodeBody(hclFile.Body, nil, &root); diags.HasErrors() {
			return nil, fmt.Errorf("failed to decode suite file %s: %w", file, diags)
		}

		for _, raw := range root.Suites {
			merged, ok := byName[raw.Name]
			if !ok {
				merged = &Suite{Name: raw.Name}
				byName[raw.Name] = merged
				suites = append(suites, merged)
			}
			if err := decodeSuite(raw, merged); err != nil {
				return nil, fmt.Errorf("%s: %w", file, err)
			}
		}
	}

	logger.Debug("suite loading complete", "suites", len(suites))
	return suites, nil
}

// Find selects the suite to run. With an empty name, exactly one loaded
// suite must exist.
func Find(suites []*Suite, name string) (*Suite, error) {
	if name == "" {
		if len(suites) == 1 {
			return suites[0], nil
		}
		if len(suites) == 0 {
			return nil, fmt.Errorf("no suites were found")
		}
		names := make([]string, len(suites))
		for i, s := range suites {
			names[i] = s.Name
		}
		return nil, fmt.Errorf("more than one suite was found, specify which to run: %s",
			strings.Join(names, ", "))
	}
	for _, s := range suites {
		if s.Name == name {
			return s, nil
		}
	}
	return nil, fmt.Errorf("suite %q was not found", name)
}

func decodeSuite(raw *hclSuite, out *Suite) error {
	var body hclSuiteBody
	if diags := gohcl.DecodeBody(raw.Body, nil, &body); diags.HasErrors() {
		return fmt.Errorf("suite %q: %w", raw.Name, diags)
	}
	if body.Parallel != nil {
		out.Parallel = *body.Parallel
	}
	for _, rawCase := range body.Cases {
		testCase, err := decodeCase(raw.Name, rawCase)
		if err != nil {
			return err
		}
		out.Cases = append(out.Cases, testCase)
	}
	return nil
}

func decodeCase(suiteName string, raw *hclCase) (*TestCase, error) {
	var body hclCaseBody
	if diags := gohcl.DecodeBody(raw.Body, nil, &body); diags.HasErrors() {
		return nil, fmt.Errorf("case %q: %w", raw.Name, diags)
	}
	testCase := &TestCase{Name: raw.Name}
	for _, rawStep := range body.Steps {
		step, err := decodeStep(suiteName, raw.Name, rawStep)
		if err != nil {
			return nil, err
		}
		testCase.Steps = append(testCase.Steps, step)
	}
	return testCase, nil
}

func decodeStep(suiteName, caseName string, raw *hclStep) (*StepSpec, error) {
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{
			"suite": cty.StringVal(suiteName),
			"case":  cty.StringVal(caseName),
			"step":  cty.StringVal(raw.Name),
		},
	}
	var body hclStepBody
	if diags := gohcl.DecodeBody(raw.Body, evalCtx, &body); diags.HasErrors() {
		return nil, fmt.Errorf("step %q: %w", raw.Name, diags)
	}

	spec := &StepSpec{
		Name:    raw.Name,
		Command: body.Command,
		Inputs:  body.Inputs,
		Outputs: body.Outputs,
	}

	// Resource defaults mirror the step contract: one task of one cpu,
	// with minima equal to the ideals unless stated otherwise.
	spec.Tasks = intOr(body.Tasks, 1)
	spec.MinTasks = intOr(body.MinTasks, spec.Tasks)
	spec.CPUsPerTask = intOr(body.CPUsPerTask, 1)
	spec.MinCPUsPerTask = intOr(body.MinCPUsPerTask, spec.CPUsPerTask)
	spec.OpenMPThreads = intOr(body.OpenMPThreads, 1)

	return spec, nil
}

func intOr(v *int, fallback int) int {
	if v != nil {
		return *v
	}
	return fallback
}

// findSuiteFiles walks all given paths and returns a flat, deduplicated
// list of .hcl files.
func findSuiteFiles(paths []string) ([]string, error) {
	var files []string
	seen := make(map[string]struct{})

	add := func(path string) {
		if _, ok := seen[path]; ok {
			return
		}
		seen[path] = struct{}{}
		files = append(files, path)
	}

	for _, path := range paths {
		info, err := os.Stat(path)
		if err != nil {
			return nil, fmt.Errorf("suite path %s: %w", path, err)
		}
		if !info.IsDir() {
			add(path)
			continue
		}
		err = filepath.WalkDir(path, func(p string, d fs.DirEntry, err error) error {
			if err != nil {
				return err
			}
			if !d.IsDir() && filepath.Ext(p) == ".hcl" {
				add(p)
			}
			return nil
		})
		if err != nil {
			return nil, fmt.Errorf("walking suite path %s: %w", path, err)
		}
	}

	return files, nil
}
