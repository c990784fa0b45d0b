package main

import (
	"fmt"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/floe-sci/floe/internal/harness"
	"github.com/floe-sci/floe/internal/report"
)

type runConfig struct {
	suiteName string
	runDir    string
	launcher  string
	workers   int
	steps     []string
	skipSteps []string
	noColor   bool
}

var runCfg runConfig

var runCmd = &cobra.Command{
	Use:   "run [suite files or directories...]",
	Short: "Run a suite of test cases",
	Long: `Run plans and executes a suite: the environment is probed for a
resource budget, every step's request is negotiated against it, and steps
run concurrently subject to their file dependencies.

  floe run suites/
  floe run baroclinic.hcl --steps init,forward
  floe run . --suite nightly --run-dir /scratch/nightly`,
	Args: cobra.ArbitraryArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().StringVar(&runCfg.suiteName, "suite", "", "Suite to run when several are defined")
	runCmd.Flags().StringVar(&runCfg.runDir, "run-dir", ".", "Directory for step work directories and run state")
	runCmd.Flags().StringVar(&runCfg.launcher, "launcher", "", "Override the suite's parallel launcher")
	runCmd.Flags().IntVar(&runCfg.workers, "workers", 0, "Maximum concurrent steps (0 means one per budgeted core)")
	runCmd.Flags().StringSliceVar(&runCfg.steps, "steps", nil, "Run only the named steps")
	runCmd.Flags().StringSliceVar(&runCfg.skipSteps, "no-steps", nil, "Skip the named steps")
	runCmd.Flags().BoolVar(&runCfg.noColor, "no-color", false, "Disable colored output")
}

func runRun(cmd *cobra.Command, args []string) error {
	if runCfg.noColor {
		color.NoColor = true
	}
	if len(args) == 0 {
		args = []string{"."}
	}

	rep, err := harness.Execute(cmd.Context(), harness.Options{
		SuitePaths: args,
		SuiteName:  runCfg.suiteName,
		RunDir:     runCfg.runDir,
		Launcher:   runCfg.launcher,
		Workers:    runCfg.workers,
		Steps:      runCfg.steps,
		SkipSteps:  runCfg.skipSteps,
	})
	if err != nil {
		return err
	}

	report.Print(cmd.OutOrStdout(), rep, runCfg.noColor)
	if !rep.OK() {
		return fmt.Errorf("%d steps did not succeed", rep.Failures())
	}
	return nil
}
