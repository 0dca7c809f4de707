package executor

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"time"
)

// RunResult captures one command invocation.
type RunResult struct {
	Stdout   string
	Stderr   string
	ExitCode int
}

// Runner executes a single shell command and reports its streams and exit
// code. A non-zero exit code is not an error; errors mean the command could
// not be run or was cut off by the context.
type Runner interface {
	Run(ctx context.Context, command string) (*RunResult, error)
}

// ShellRunner runs commands through the system shell so provider CLI
// invocations behave exactly as they would in an operator's terminal.
type ShellRunner struct {
	shell string
}

func NewShellRunner() *ShellRunner {
	return &ShellRunner{shell: "/bin/sh"}
}

func (r *ShellRunner) Run(ctx context.Context, command string) (*RunResult, error) {
	if command == "" {
		return nil, fmt.Errorf("executor: command cannot be empty")
	}

	cmd := exec.CommandContext(ctx, r.shell, "-c", command)
	// Processes that ignore SIGKILL propagation through the shell get a
	// bounded grace period before Run returns anyway.
	cmd.WaitDelay = 5 * time.Second

	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	err := cmd.Run()
	result := &RunResult{
		Stdout: stdout.String(),
		Stderr: stderr.String(),
	}
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) && ctx.Err() == nil {
			result.ExitCode = exitErr.ExitCode()
			return result, nil
		}
		if ctx.Err() != nil {
			return result, fmt.Errorf("executor: command cut off: %w", ctx.Err())
		}
		return nil, fmt.Errorf("executor: failed to start command: %w", err)
	}
	return result, nil
}
