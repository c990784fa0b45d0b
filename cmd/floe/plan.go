package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/floe-sci/floe/internal/harness"
	"github.com/floe-sci/floe/internal/state"
)

type planConfig struct {
	suiteName string
	runDir    string
	launcher  string
	steps     []string
	skipSteps []string
}

var planCfg planConfig

var planCmd = &cobra.Command{
	Use:   "plan [suite files or directories...]",
	Short: "Plan a run without executing it",
	Long: `Plan probes the environment, selects the suite's steps, and writes
the run state without launching anything. The persisted plan shows each
step's work directory and resource request, and can be executed step by
step with "floe step".`,
	Args: cobra.ArbitraryArgs,
	RunE: runPlan,
}

func init() {
	planCmd.Flags().StringVar(&planCfg.suiteName, "suite", "", "Suite to plan when several are defined")
	planCmd.Flags().StringVar(&planCfg.runDir, "run-dir", ".", "Directory for step work directories and run state")
	planCmd.Flags().StringVar(&planCfg.launcher, "launcher", "", "Override the suite's parallel launcher")
	planCmd.Flags().StringSliceVar(&planCfg.steps, "steps", nil, "Plan only the named steps")
	planCmd.Flags().StringSliceVar(&planCfg.skipSteps, "no-steps", nil, "Skip the named steps")
}

func runPlan(cmd *cobra.Command, args []string) error {
	if len(args) == 0 {
		args = []string{"."}
	}

	run, err := harness.Plan(cmd.Context(), harness.Options{
		SuitePaths: args,
		SuiteName:  planCfg.suiteName,
		RunDir:     planCfg.runDir,
		Launcher:   planCfg.launcher,
		Steps:      planCfg.steps,
		SkipSteps:  planCfg.skipSteps,
	})
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	fmt.Fprintf(out, "suite %s: %d steps planned on %s (%d cores, %d nodes)\n",
		run.Suite, len(run.Steps), run.Environment,
		run.Budget.TotalCores, run.Budget.TotalNodes)
	for _, rec := range run.Steps {
		if rec.Allocation == nil {
			fmt.Fprintf(out, "  %s  does not fit the budget\n", rec.Path)
			continue
		}
		fmt.Fprintf(out, "  %s  ntasks=%d cpus_per_task=%d nodes=%d\n",
			rec.Path, rec.Allocation.Tasks, rec.Allocation.CPUsPerTask, rec.Allocation.Nodes)
	}
	fmt.Fprintf(out, "run state written to %s\n", state.NewStore(planCfg.runDir).Path())
	return nil
}
