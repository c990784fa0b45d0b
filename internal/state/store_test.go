package state

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/floe-sci/floe/internal/resource"
)

func sampleRun() *Run {
	return &Run{
		Suite:       "ocean-nightly",
		Environment: "batch",
		Launcher:    "srun",
		Budget: Budget{
			TotalCores:     128,
			TotalNodes:     2,
			CoresPerNode:   64,
			ThreadsPerCore: 1,
			MPIAllowed:     true,
		},
		Steps: []*StepRecord{
			{
				Path:           "ocean-nightly/baroclinic/init",
				Suite:          "ocean-nightly",
				Case:           "baroclinic",
				Name:           "init",
				WorkDir:        "baroclinic/init",
				Outputs:        []string{"baroclinic/init.nc"},
				Tasks:          4,
				MinTasks:       2,
				CPUsPerTask:    1,
				MinCPUsPerTask: 1,
				OpenMPThreads:  1,
				Allocation:     &Allocation{Tasks: 4, CPUsPerTask: 1, Nodes: 1},
				Status:         "planned",
			},
			{
				Path:           "ocean-nightly/baroclinic/forward",
				Suite:          "ocean-nightly",
				Case:           "baroclinic",
				Name:           "forward",
				WorkDir:        "baroclinic/forward",
				Command:        []string{"./forward"},
				Inputs:         []string{"baroclinic/init.nc"},
				Tasks:          1,
				MinTasks:       1,
				CPUsPerTask:    1,
				MinCPUsPerTask: 1,
				OpenMPThreads:  1,
				Status:         "planned",
			},
		},
	}
}

func TestStoreSaveLoadRoundTrip(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(sampleRun()))

	loaded, err := store.Load()
	require.NoError(t, err)
	assert.Equal(t, sampleRun(), loaded)
}

func TestStoreLoadWithoutState(t *testing.T) {
	store := NewStore(t.TempDir())
	_, err := store.Load()
	assert.ErrorIs(t, err, ErrNoRunState)
}

func TestStoreUpdateStep(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(sampleRun()))

	err := store.UpdateStep("ocean-nightly/baroclinic/init", func(r *StepRecord) {
		r.Status = "succeeded"
		r.ElapsedSeconds = 12.5
	})
	require.NoError(t, err)

	loaded, err := store.Load()
	require.NoError(t, err)
	rec := loaded.Step("ocean-nightly/baroclinic/init")
	require.NotNil(t, rec)
	assert.Equal(t, "succeeded", rec.Status)
	assert.Equal(t, 12.5, rec.ElapsedSeconds)

	// Other records are untouched.
	assert.Equal(t, "planned", loaded.Step("ocean-nightly/baroclinic/forward").Status)
}

func TestStoreUpdateUnknownStep(t *testing.T) {
	store := NewStore(t.TempDir())
	require.NoError(t, store.Save(sampleRun()))

	err := store.UpdateStep("ocean-nightly/baroclinic/missing", func(r *StepRecord) {})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not part of the persisted run")
}

func TestBudgetRoundTrip(t *testing.T) {
	b := resource.Budget{
		TotalCores:     192,
		TotalNodes:     3,
		CoresPerNode:   64,
		ThreadsPerCore: 2,
		GPUsPerNode:    4,
		MPIAllowed:     true,
	}
	assert.Equal(t, b, FromBudget(b).Resource())
}
