package resource

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNegotiateFitsAsRequested(t *testing.T) {
	b := Budget{TotalCores: 16, TotalNodes: 1, CoresPerNode: 16}
	alloc, err := Negotiate(Request{Tasks: 4, MinTasks: 2, CPUsPerTask: 2, MinCPUsPerTask: 1}, b)
	require.NoError(t, err)
	assert.Equal(t, Allocation{Tasks: 4, CPUsPerTask: 2, Nodes: 1}, alloc)
}

func TestNegotiateClampsTasksToTotalCores(t *testing.T) {
	// 4x4 does not fit in 8 cores; tasks drop to 2, still above the minimum.
	b := Budget{TotalCores: 8, TotalNodes: 1, CoresPerNode: 8}
	alloc, err := Negotiate(Request{Tasks: 4, MinTasks: 2, CPUsPerTask: 4, MinCPUsPerTask: 1}, b)
	require.NoError(t, err)
	assert.Equal(t, Allocation{Tasks: 2, CPUsPerTask: 4, Nodes: 1}, alloc)
	assert.Equal(t, 8, alloc.Cores())
}

func TestNegotiateClampsCPUsToNode(t *testing.T) {
	b := Budget{TotalCores: 8, TotalNodes: 2, CoresPerNode: 4}
	alloc, err := Negotiate(Request{Tasks: 2, MinTasks: 2, CPUsPerTask: 6, MinCPUsPerTask: 2}, b)
	require.NoError(t, err)
	assert.Equal(t, Allocation{Tasks: 2, CPUsPerTask: 4, Nodes: 2}, alloc)
}

func TestNegotiateNodesRoundUp(t *testing.T) {
	b := Budget{TotalCores: 8, TotalNodes: 2, CoresPerNode: 4}
	alloc, err := Negotiate(Request{Tasks: 5, MinTasks: 5, CPUsPerTask: 1, MinCPUsPerTask: 1}, b)
	require.NoError(t, err)
	assert.Equal(t, 2, alloc.Nodes)
}

func TestNegotiateFailsBelowMinTasks(t *testing.T) {
	b := Budget{TotalCores: 4, TotalNodes: 1, CoresPerNode: 4}
	_, err := Negotiate(Request{Tasks: 8, MinTasks: 3, CPUsPerTask: 2, MinCPUsPerTask: 2}, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientResources)
}

func TestNegotiateFailsBelowMinCPUs(t *testing.T) {
	b := Budget{TotalCores: 8, TotalNodes: 2, CoresPerNode: 4}
	_, err := Negotiate(Request{Tasks: 1, MinTasks: 1, CPUsPerTask: 8, MinCPUsPerTask: 6}, b)
	require.Error(t, err)
	assert.ErrorIs(t, err, ErrInsufficientResources)
}

func TestNegotiateRejectsInvertedMinima(t *testing.T) {
	b := Budget{TotalCores: 16, TotalNodes: 1, CoresPerNode: 16}
	_, err := Negotiate(Request{Tasks: 2, MinTasks: 4, CPUsPerTask: 1, MinCPUsPerTask: 1}, b)
	assert.ErrorIs(t, err, ErrInsufficientResources)

	_, err = Negotiate(Request{Tasks: 2, MinTasks: 1, CPUsPerTask: 1, MinCPUsPerTask: 2}, b)
	assert.ErrorIs(t, err, ErrInsufficientResources)
}

func TestParseEnvironment(t *testing.T) {
	for _, tag := range []string{"login", "single-node", "batch"} {
		env, err := ParseEnvironment(tag)
		require.NoError(t, err)
		assert.Equal(t, Environment(tag), env)
	}

	_, err := ParseEnvironment("cloud")
	assert.ErrorIs(t, err, ErrUnsupportedEnvironment)
}
