package template

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/stackvoice/provision-ai-platform/internal/executor"
)

// Compiler validates templates by compiling them with the Bicep CLI.
type Compiler struct {
	runner  executor.Runner
	cliPath string
}

func NewCompiler(runner executor.Runner, cliPath string) *Compiler {
	if runner == nil {
		panic("template: runner cannot be nil")
	}
	if cliPath == "" {
		cliPath = "bicep"
	}
	return &Compiler{runner: runner, cliPath: cliPath}
}

// Validate compiles the template body and returns the compiler's stderr when
// it does not build.
func (c *Compiler) Validate(ctx context.Context, body string) error {
	dir, err := os.MkdirTemp("", "template-compile-")
	if err != nil {
		return fmt.Errorf("template: create workspace: %w", err)
	}
	defer os.RemoveAll(dir)

	file := filepath.Join(dir, "main.bicep")
	if err := os.WriteFile(file, []byte(body), 0o600); err != nil {
		return fmt.Errorf("template: write template: %w", err)
	}

	command := fmt.Sprintf("%s build '%s' --stdout", c.cliPath, file)
	result, err := c.runner.Run(ctx, command)
	if err != nil {
		return fmt.Errorf("template: compile: %w", err)
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("template: compile failed: %s", strings.TrimSpace(result.Stderr))
	}
	return nil
}

var _ Validator = (*Compiler)(nil)
