// Package slurm reads the live allocation state of the current Slurm job
// through the sinfo and squeue commands. It implements the batch-system
// query interface consumed by the resource probe.
package slurm

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"strconv"
	"strings"

	"github.com/floe-sci/floe/internal/resource"
)

// runner executes a query command and returns its trimmed stdout. It is a
// function type so tests can substitute canned output for the real
// binaries.
type runner func(ctx context.Context, name string, args ...string) (string, error)

func execRunner(ctx context.Context, name string, args ...string) (string, error) {
	out, err := exec.CommandContext(ctx, name, args...).Output()
	if err != nil {
		return "", fmt.Errorf("%s %s: %w", name, strings.Join(args, " "), err)
	}
	return strings.TrimSpace(string(out)), nil
}

// Client queries Slurm for the current job's allocation state.
type Client struct {
	run runner
}

// NewClient returns a client that shells out to sinfo and squeue.
func NewClient() *Client {
	return &Client{run: execRunner}
}

// InAllocation reports whether the process is running inside a Slurm job.
// Outside an allocation, a batch-configured run degrades to the login
// environment.
func InAllocation() bool {
	return os.Getenv("SLURM_JOB_ID") != ""
}

// CurrentJob reads the job and node identity from the Slurm job environment.
func (c *Client) CurrentJob() (string, string, error) {
	jobID := os.Getenv("SLURM_JOB_ID")
	node := os.Getenv("SLURMD_NODENAME")
	if jobID == "" || node == "" {
		return "", "", fmt.Errorf(
			"not inside a slurm allocation (SLURM_JOB_ID=%q, SLURMD_NODENAME=%q)",
			jobID, node)
	}
	return jobID, node, nil
}

// NodeCores reports the allocated/idle/other/total core counts for a node,
// as printed by `sinfo -o %C` in A/I/O/T form.
func (c *Client) NodeCores(ctx context.Context, node string) (resource.CoreCounts, error) {
	out, err := c.run(ctx, "sinfo", "--noheader", "--node", node, "-o", "%C")
	if err != nil {
		return resource.CoreCounts{}, err
	}
	fields := strings.Split(out, "/")
	if len(fields) != 4 {
		return resource.CoreCounts{}, fmt.Errorf("unexpected sinfo core counts %q for node %s", out, node)
	}
	var aiot [4]int
	for i, f := range fields {
		aiot[i], err = strconv.Atoi(f)
		if err != nil {
			return resource.CoreCounts{}, fmt.Errorf("unexpected sinfo core counts %q for node %s: %w", out, node, err)
		}
	}
	return resource.CoreCounts{
		Allocated: aiot[0],
		Idle:      aiot[1],
		Other:     aiot[2],
		Total:     aiot[3],
	}, nil
}

// ThreadsPerCore reports the node's hardware threads per core from
// `sinfo -o %Z`.
func (c *Client) ThreadsPerCore(ctx context.Context, node string) (int, error) {
	out, err := c.run(ctx, "sinfo", "--noheader", "--node", node, "-o", "%Z")
	if err != nil {
		return 0, err
	}
	threads, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected sinfo threads per core %q for node %s: %w", out, node, err)
	}
	return threads, nil
}

// JobNodes reports the number of nodes in the given job from
// `squeue -o %D`.
func (c *Client) JobNodes(ctx context.Context, jobID string) (int, error) {
	out, err := c.run(ctx, "squeue", "--noheader", "-j", jobID, "-o", "%D")
	if err != nil {
		return 0, err
	}
	nodes, err := strconv.Atoi(out)
	if err != nil {
		return 0, fmt.Errorf("unexpected squeue node count %q for job %s: %w", out, jobID, err)
	}
	return nodes, nil
}
