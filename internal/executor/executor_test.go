package executor

import (
	"context"
	"strings"
	"testing"
	"time"
)

type stubVerifier struct {
	found bool
	err   error
	calls int
}

func (v *stubVerifier) Verify(_ context.Context, _ VerifyTarget) (bool, error) {
	v.calls++
	return v.found, v.err
}

func newTestExecutor(t *testing.T, verifier Verifier, opts ...Option) *Executor {
	t.Helper()
	opts = append([]Option{WithVerificationDelay(0)}, opts...)
	return New(NewShellRunner(), verifier, nil, opts...)
}

func TestExecuteSuccess(t *testing.T) {
	verifier := &stubVerifier{found: true}
	exec := newTestExecutor(t, verifier)

	result := exec.Execute(context.Background(), Request{
		RequestID:    "req-1",
		Command:      "echo created",
		ResourceName: "web01",
	})
	if result.Outcome != OutcomeSuccess {
		t.Fatalf("expected success, got %s (%s)", result.Outcome, result.Error)
	}
	if !strings.Contains(result.Output, "created") {
		t.Fatalf("expected stdout captured, got %q", result.Output)
	}
	if verifier.calls != 1 {
		t.Fatalf("expected 1 verification call, got %d", verifier.calls)
	}
}

func TestExecuteNonZeroExitIsFailed(t *testing.T) {
	verifier := &stubVerifier{found: true}
	exec := newTestExecutor(t, verifier)

	result := exec.Execute(context.Background(), Request{
		RequestID:    "req-2",
		Command:      "echo quota exceeded 1>&2; exit 3",
		ResourceName: "web01",
	})
	if result.Outcome != OutcomeFailed {
		t.Fatalf("expected failed, got %s", result.Outcome)
	}
	if !strings.Contains(result.Error, "quota exceeded") {
		t.Fatalf("expected stderr in error, got %q", result.Error)
	}
	if verifier.calls != 0 {
		t.Fatal("verification must not run for a failed command")
	}
}

func TestExecuteTimeoutKillsCommand(t *testing.T) {
	verifier := &stubVerifier{found: true}
	exec := newTestExecutor(t, verifier, WithTimeout(100*time.Millisecond))

	start := time.Now()
	result := exec.Execute(context.Background(), Request{
		RequestID:    "req-3",
		Command:      "sleep 30",
		ResourceName: "web01",
	})
	if result.Outcome != OutcomeTimedOut {
		t.Fatalf("expected timeout, got %s", result.Outcome)
	}
	if elapsed := time.Since(start); elapsed > 10*time.Second {
		t.Fatalf("command was not killed promptly, took %s", elapsed)
	}
	if verifier.calls != 0 {
		t.Fatal("verification must not run after a timeout")
	}
}

func TestExecuteVerificationMissIsPartial(t *testing.T) {
	verifier := &stubVerifier{found: false}
	exec := newTestExecutor(t, verifier)

	result := exec.Execute(context.Background(), Request{
		RequestID:    "req-4",
		Command:      "true",
		ResourceName: "web01",
	})
	if result.Outcome != OutcomePartial {
		t.Fatalf("expected partial, got %s", result.Outcome)
	}
	if !strings.Contains(result.Error, "not found on read-back") {
		t.Fatalf("unexpected error detail: %q", result.Error)
	}
}

func TestExecuteEmptyCommandIsError(t *testing.T) {
	exec := newTestExecutor(t, &stubVerifier{found: true})

	result := exec.Execute(context.Background(), Request{RequestID: "req-5"})
	if result.Outcome != OutcomeError {
		t.Fatalf("expected error outcome, got %s", result.Outcome)
	}
}
