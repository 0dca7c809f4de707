package executor

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
)

// VerifyTarget identifies the resource a provisioning command was meant to
// create or change.
type VerifyTarget struct {
	ResourceName  string
	ResourceGroup string
	ResourceType  string
}

// Verifier reads the cloud provider back to confirm a resource exists after
// the provisioning command reported success.
type Verifier interface {
	Verify(ctx context.Context, target VerifyTarget) (bool, error)
}

// CLIVerifier queries the provider CLI and treats a non-empty resource list
// as confirmation.
type CLIVerifier struct {
	runner  Runner
	cliPath string
}

func NewCLIVerifier(runner Runner, cliPath string) *CLIVerifier {
	if runner == nil {
		panic("executor: runner cannot be nil")
	}
	if cliPath == "" {
		cliPath = "az"
	}
	return &CLIVerifier{runner: runner, cliPath: cliPath}
}

func (v *CLIVerifier) Verify(ctx context.Context, target VerifyTarget) (bool, error) {
	if target.ResourceName == "" {
		return false, fmt.Errorf("executor: verify target needs a resource name")
	}

	parts := []string{v.cliPath, "resource", "list", "--name", shellQuote(target.ResourceName)}
	if target.ResourceGroup != "" {
		parts = append(parts, "--resource-group", shellQuote(target.ResourceGroup))
	}
	parts = append(parts, "--output", "json")

	result, err := v.runner.Run(ctx, strings.Join(parts, " "))
	if err != nil {
		return false, fmt.Errorf("executor: verification query: %w", err)
	}
	if result.ExitCode != 0 {
		return false, fmt.Errorf("executor: verification query exited %d: %s",
			result.ExitCode, strings.TrimSpace(result.Stderr))
	}

	var listed []json.RawMessage
	if err := json.Unmarshal([]byte(result.Stdout), &listed); err != nil {
		return false, fmt.Errorf("executor: decode verification output: %w", err)
	}
	return len(listed) > 0, nil
}

// shellQuote single-quotes a value for the shell command line.
func shellQuote(s string) string {
	return "'" + strings.ReplaceAll(s, "'", `'\''`) + "'"
}
