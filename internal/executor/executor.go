package executor

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Outcome classifies a finished execution.
type Outcome string

const (
	OutcomeSuccess  Outcome = "success"
	OutcomePartial  Outcome = "partial"
	OutcomeFailed   Outcome = "failed"
	OutcomeTimedOut Outcome = "timeout"
	OutcomeError    Outcome = "error"
)

// Request is one approved provisioning command to run.
type Request struct {
	RequestID     string
	Command       string
	ResourceName  string
	ResourceGroup string
	ResourceType  string
}

// Result is the structured report of a single execution.
type Result struct {
	Outcome  Outcome
	Output   string
	Error    string
	Duration time.Duration
}

// Executor runs provisioning commands under a hard timeout, then reads the
// provider back before declaring success.
type Executor struct {
	runner      Runner
	verifier    Verifier
	timeout     time.Duration
	verifyDelay time.Duration
	sleep       func(ctx context.Context, d time.Duration) error
	logger      *logging.Logger
}

// Option configures an Executor.
type Option func(*Executor)

func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

func WithVerificationDelay(d time.Duration) Option {
	return func(e *Executor) {
		if d >= 0 {
			e.verifyDelay = d
		}
	}
}

func New(runner Runner, verifier Verifier, logger *logging.Logger, opts ...Option) *Executor {
	if runner == nil {
		panic("executor: runner cannot be nil")
	}
	if verifier == nil {
		panic("executor: verifier cannot be nil")
	}
	if logger == nil {
		logger = logging.Default()
	}
	e := &Executor{
		runner:      runner,
		verifier:    verifier,
		timeout:     300 * time.Second,
		verifyDelay: 5 * time.Second,
		sleep:       sleepCtx,
		logger:      logger,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Execute runs the command and classifies the outcome. The process is killed
// at the timeout rather than abandoned; a zero exit alone is never enough,
// the resource must be visible on read-back for a success verdict.
func (e *Executor) Execute(ctx context.Context, req Request) Result {
	start := time.Now()
	e.logger.Info("executing provisioning command",
		"request_id", req.RequestID,
		"resource_name", req.ResourceName,
	)

	runCtx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	runResult, err := e.runner.Run(runCtx, req.Command)
	elapsed := time.Since(start)

	switch {
	case errors.Is(runCtx.Err(), context.DeadlineExceeded):
		e.logger.Warn("command timed out", "request_id", req.RequestID, "timeout", e.timeout)
		return Result{
			Outcome:  OutcomeTimedOut,
			Error:    fmt.Sprintf("command killed after %s timeout", e.timeout),
			Duration: elapsed,
		}
	case err != nil:
		e.logger.Error("command could not run", "request_id", req.RequestID, "error", err)
		return Result{
			Outcome:  OutcomeError,
			Error:    err.Error(),
			Duration: elapsed,
		}
	case runResult.ExitCode != 0:
		detail := strings.TrimSpace(runResult.Stderr)
		if detail == "" {
			detail = strings.TrimSpace(runResult.Stdout)
		}
		e.logger.Warn("command failed",
			"request_id", req.RequestID,
			"exit_code", runResult.ExitCode,
		)
		return Result{
			Outcome:  OutcomeFailed,
			Output:   runResult.Stdout,
			Error:    detail,
			Duration: elapsed,
		}
	}

	// Providers report accepted operations before the resource is queryable.
	if err := e.sleep(ctx, e.verifyDelay); err != nil {
		return Result{
			Outcome:  OutcomeError,
			Output:   runResult.Stdout,
			Error:    fmt.Sprintf("verification interrupted: %v", err),
			Duration: time.Since(start),
		}
	}

	found, err := e.verifier.Verify(ctx, VerifyTarget{
		ResourceName:  req.ResourceName,
		ResourceGroup: req.ResourceGroup,
		ResourceType:  req.ResourceType,
	})
	elapsed = time.Since(start)
	if err != nil {
		e.logger.Warn("verification errored", "request_id", req.RequestID, "error", err)
		return Result{
			Outcome:  OutcomePartial,
			Output:   runResult.Stdout,
			Error:    fmt.Sprintf("command succeeded but verification errored: %v", err),
			Duration: elapsed,
		}
	}
	if !found {
		e.logger.Warn("resource not visible after command", "request_id", req.RequestID)
		return Result{
			Outcome:  OutcomePartial,
			Output:   runResult.Stdout,
			Error:    fmt.Sprintf("command succeeded but resource %q was not found on read-back", req.ResourceName),
			Duration: elapsed,
		}
	}

	e.logger.Info("execution verified", "request_id", req.RequestID, "duration", elapsed)
	return Result{
		Outcome:  OutcomeSuccess,
		Output:   runResult.Stdout,
		Duration: elapsed,
	}
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
