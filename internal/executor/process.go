package executor

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"
)

// runProcess is the default launch function. It runs the external command
// in the step's work directory, with the step's environment additions on
// top of the inherited environment, and tees combined output to
// <step name>.log in the work directory.
func runProcess(ctx context.Context, step Step, args, env []string) error {
	if len(args) == 0 {
		return nil
	}
	workDir := step.WorkDir()
	if err := os.MkdirAll(workDir, 0o755); err != nil {
		return err
	}

	logPath := filepath.Join(workDir, filepath.Base(step.Path())+".log")
	logFile, err := os.Create(logPath)
	if err != nil {
		return err
	}
	defer logFile.Close()
	fmt.Fprintf(logFile, "running: %s\n", strings.Join(args, " "))

	cmd := exec.CommandContext(ctx, args[0], args[1:]...)
	cmd.Dir = workDir
	cmd.Env = append(os.Environ(), env...)
	cmd.Stdout = logFile
	cmd.Stderr = logFile

	if err := cmd.Run(); err != nil {
		return fmt.Errorf("%s: %w (see %s)", args[0], err, logPath)
	}
	return nil
}
