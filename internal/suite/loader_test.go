package suite

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const suiteHCL = `
suite "ocean-nightly" {
  parallel {
    system      = "login"
    login_cores = 4
  }

  case "baroclinic" {
    step "init" {
      outputs       = ["${case}/init.nc"]
      ntasks        = 4
      min_tasks     = 2
      cpus_per_task = 1
    }

    step "forward" {
      command = ["./forward", "--case", case]
      inputs  = ["${case}/init.nc"]
      outputs = ["${case}/output.nc"]
    }
  }
}
`

func writeSuiteFile(t *testing.T, dir, name, content string) string {
	t.Helper()
	path := filepath.Join(dir, name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadSuite(t *testing.T) {
	dir := t.TempDir()
	writeSuiteFile(t, dir, "ocean.hcl", suiteHCL)

	suites, err := Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, suites, 1)

	s := suites[0]
	assert.Equal(t, "ocean-nightly", s.Name)
	assert.Equal(t, "login", s.Parallel.System)
	assert.Equal(t, 4, s.Parallel.LoginCores)

	require.Len(t, s.Cases, 1)
	c := s.Cases[0]
	assert.Equal(t, "baroclinic", c.Name)
	require.Len(t, c.Steps, 2)

	init := c.Steps[0]
	assert.Equal(t, "init", init.Name)
	assert.Empty(t, init.Command)
	assert.Equal(t, []string{"baroclinic/init.nc"}, init.Outputs)
	assert.Equal(t, 4, init.Tasks)
	assert.Equal(t, 2, init.MinTasks)
	assert.Equal(t, 1, init.CPUsPerTask)
	// Unstated minima and thread counts take their defaults.
	assert.Equal(t, 1, init.MinCPUsPerTask)
	assert.Equal(t, 1, init.OpenMPThreads)

	forward := c.Steps[1]
	assert.Equal(t, []string{"./forward", "--case", "baroclinic"}, forward.Command)
	assert.Equal(t, []string{"baroclinic/init.nc"}, forward.Inputs)
	assert.Equal(t, 1, forward.Tasks)
	assert.Equal(t, 1, forward.MinTasks)
}

func TestLoadMergesSuiteBlocksAcrossFiles(t *testing.T) {
	dir := t.TempDir()
	writeSuiteFile(t, dir, "a.hcl", `
suite "ocean-nightly" {
  parallel {
    system = "login"
  }
  case "baroclinic" {
    step "init" {
      outputs = ["${case}/init.nc"]
    }
  }
}
`)
	writeSuiteFile(t, dir, "b.hcl", `
suite "ocean-nightly" {
  case "barotropic" {
    step "init" {
      outputs = ["${case}/init.nc"]
    }
  }
}
`)

	suites, err := Load(context.Background(), dir)
	require.NoError(t, err)
	require.Len(t, suites, 1)
	require.Len(t, suites[0].Cases, 2)
	assert.Equal(t, "baroclinic", suites[0].Cases[0].Name)
	assert.Equal(t, "barotropic", suites[0].Cases[1].Name)
	assert.Equal(t, "login", suites[0].Parallel.System)
}

func TestLoadRejectsBadHCL(t *testing.T) {
	dir := t.TempDir()
	writeSuiteFile(t, dir, "broken.hcl", `suite "x" {`)

	_, err := Load(context.Background(), dir)
	require.Error(t, err)
}

func TestFind(t *testing.T) {
	suites := []*Suite{{Name: "a"}, {Name: "b"}}

	s, err := Find(suites, "b")
	require.NoError(t, err)
	assert.Equal(t, "b", s.Name)

	_, err = Find(suites, "")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "more than one suite")

	_, err = Find(suites, "c")
	require.Error(t, err)

	s, err = Find(suites[:1], "")
	require.NoError(t, err)
	assert.Equal(t, "a", s.Name)
}
