package main

import (
	"github.com/spf13/cobra"

	"github.com/floe-sci/floe/internal/harness"
)

type stepConfig struct {
	path       string
	runDir     string
	subprocess bool
}

var stepCfg stepConfig

var stepCmd = &cobra.Command{
	Use:   "step --path <suite/case/step>",
	Short: "Run a single step from a planned run",
	Long: `Step executes one step from the persisted run state. Steps without
an explicit command use this entry point to run their hooks as their own
subprocess; it can also re-run any planned step by hand.`,
	RunE: runStep,
}

func init() {
	stepCmd.Flags().StringVar(&stepCfg.path, "path", "", "Step path within the run (suite/case/step)")
	stepCmd.Flags().StringVar(&stepCfg.runDir, "run-dir", ".", "Directory holding the persisted run state")
	stepCmd.Flags().BoolVar(&stepCfg.subprocess, "subprocess", false, "Run as a child of an executing run; the parent records the result")
	_ = stepCmd.MarkFlagRequired("path")
}

func runStep(cmd *cobra.Command, args []string) error {
	return harness.RunStep(cmd.Context(), stepCfg.runDir, stepCfg.path, stepCfg.subprocess)
}
