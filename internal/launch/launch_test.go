package launch

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floe-sci/floe/internal/resource"
)

func TestCommandBatch(t *testing.T) {
	alloc := resource.Allocation{Tasks: 8, CPUsPerTask: 2, Nodes: 2}
	cmd, err := Command("srun", []string{"./forward", "--config", "run.yaml"}, alloc, resource.EnvBatch)
	require.NoError(t, err)
	assert.Equal(t, []string{
		"srun", "-c", "2", "-N", "2", "-n", "8",
		"./forward", "--config", "run.yaml",
	}, cmd)
}

func TestCommandBatchLauncherWithEmbeddedFlags(t *testing.T) {
	alloc := resource.Allocation{Tasks: 1, CPUsPerTask: 1, Nodes: 1}
	cmd, err := Command("srun --mpi=pmi2", []string{"./init"}, alloc, resource.EnvBatch)
	require.NoError(t, err)
	assert.Equal(t, []string{"srun", "--mpi=pmi2", "-c", "1", "-N", "1", "-n", "1", "./init"}, cmd)
}

func TestCommandSingleNode(t *testing.T) {
	alloc := resource.Allocation{Tasks: 4, CPUsPerTask: 2, Nodes: 1}
	cmd, err := Command("mpirun", []string{"./forward"}, alloc, resource.EnvSingleNode)
	require.NoError(t, err)
	assert.Equal(t, []string{"mpirun", "-n", "4", "./forward"}, cmd)
}

func TestCommandLoginUnsupported(t *testing.T) {
	alloc := resource.Allocation{Tasks: 1, CPUsPerTask: 1, Nodes: 1}
	_, err := Command("srun", []string{"./init"}, alloc, resource.EnvLogin)
	assert.ErrorIs(t, err, ErrParallelLaunchUnsupported)
}

func TestEnv(t *testing.T) {
	assert.Equal(t, []string{"OMP_NUM_THREADS=4"}, Env(4))
	assert.Equal(t, []string{"OMP_NUM_THREADS=1"}, Env(0))
}
