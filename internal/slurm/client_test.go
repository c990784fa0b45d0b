package slurm

import (
	"context"
	"fmt"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// cannedRunner returns fixed output keyed by the full command line.
func cannedRunner(outputs map[string]string) runner {
	return func(ctx context.Context, name string, args ...string) (string, error) {
		key := name + " " + strings.Join(args, " ")
		out, ok := outputs[key]
		if !ok {
			return "", fmt.Errorf("unexpected command %q", key)
		}
		return out, nil
	}
}

func TestCurrentJob(t *testing.T) {
	t.Setenv("SLURM_JOB_ID", "4242")
	t.Setenv("SLURMD_NODENAME", "nid0001")

	c := NewClient()
	jobID, node, err := c.CurrentJob()
	require.NoError(t, err)
	assert.Equal(t, "4242", jobID)
	assert.Equal(t, "nid0001", node)
}

func TestCurrentJobOutsideAllocation(t *testing.T) {
	t.Setenv("SLURM_JOB_ID", "")
	t.Setenv("SLURMD_NODENAME", "")

	_, _, err := NewClient().CurrentJob()
	require.Error(t, err)
	assert.False(t, InAllocation())
}

func TestNodeCores(t *testing.T) {
	c := &Client{run: cannedRunner(map[string]string{
		"sinfo --noheader --node nid0001 -o %C": "12/4/0/16",
	})}
	counts, err := c.NodeCores(context.Background(), "nid0001")
	require.NoError(t, err)
	assert.Equal(t, 12, counts.Allocated)
	assert.Equal(t, 4, counts.Idle)
	assert.Equal(t, 0, counts.Other)
	assert.Equal(t, 16, counts.Total)
}

func TestNodeCoresBadOutput(t *testing.T) {
	c := &Client{run: cannedRunner(map[string]string{
		"sinfo --noheader --node nid0001 -o %C": "12/4",
	})}
	_, err := c.NodeCores(context.Background(), "nid0001")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unexpected sinfo core counts")
}

func TestThreadsPerCore(t *testing.T) {
	c := &Client{run: cannedRunner(map[string]string{
		"sinfo --noheader --node nid0001 -o %Z": "2",
	})}
	threads, err := c.ThreadsPerCore(context.Background(), "nid0001")
	require.NoError(t, err)
	assert.Equal(t, 2, threads)
}

func TestJobNodes(t *testing.T) {
	c := &Client{run: cannedRunner(map[string]string{
		"squeue --noheader -j 4242 -o %D": "4",
	})}
	nodes, err := c.JobNodes(context.Background(), "4242")
	require.NoError(t, err)
	assert.Equal(t, 4, nodes)
}
