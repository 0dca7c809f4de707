package deployment

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/stackvoice/provision-ai-platform/internal/executor"
)

type executorStub struct {
	result executor.Result
	calls  int
	last   executor.Request
}

func (e *executorStub) Execute(_ context.Context, req executor.Request) executor.Result {
	e.calls++
	e.last = req
	return e.result
}

func newExecutionFixture(t *testing.T, result executor.Result) (*ExecutionService, *MemoryStore, *executorStub) {
	t.Helper()
	store := NewMemoryStore(nil)
	seedPending(t, store)
	rec := NewReconciler(store, nil, nil, nil, nil)
	stub := &executorStub{result: result}
	svc := NewExecutionService(store, stub, rec, "az", nil)
	return svc, store, stub
}

func approve(t *testing.T, store *MemoryStore) {
	t.Helper()
	rec := NewReconciler(store, nil, nil, nil, nil)
	if _, err := rec.ApplyDecision(context.Background(), "req-1", "approver-9", true); err != nil {
		t.Fatalf("approve failed: %v", err)
	}
}

func TestRunExecutesApprovedRequest(t *testing.T) {
	svc, store, stub := newExecutionFixture(t, executor.Result{
		Outcome: executor.OutcomeSuccess,
		Output:  "vm created",
	})
	approve(t, store)

	req, err := svc.Run(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if req.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", req.Status)
	}
	if req.Result == nil || req.Result.Status != "success" || req.Result.Output != "vm created" {
		t.Fatalf("unexpected result: %+v", req.Result)
	}
	if stub.calls != 1 {
		t.Fatalf("expected 1 execution, got %d", stub.calls)
	}
	if !strings.Contains(stub.last.Command, "az vm create") {
		t.Fatalf("unexpected command: %q", stub.last.Command)
	}
	if stub.last.ResourceGroup != "rg1" {
		t.Fatalf("resource group not threaded: %q", stub.last.ResourceGroup)
	}
}

func TestRunRefusesUnapprovedRequest(t *testing.T) {
	svc, _, stub := newExecutionFixture(t, executor.Result{Outcome: executor.OutcomeSuccess})

	if _, err := svc.Run(context.Background(), "req-1"); !errors.Is(err, ErrNotApproved) {
		t.Fatalf("expected ErrNotApproved, got %v", err)
	}
	if stub.calls != 0 {
		t.Fatal("unapproved request must not execute")
	}
}

func TestRunIsIdempotentOnTerminalRequests(t *testing.T) {
	svc, store, stub := newExecutionFixture(t, executor.Result{
		Outcome: executor.OutcomeSuccess,
		Output:  "vm created",
	})
	approve(t, store)

	if _, err := svc.Run(context.Background(), "req-1"); err != nil {
		t.Fatalf("first run failed: %v", err)
	}
	req, err := svc.Run(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("second run failed: %v", err)
	}
	if stub.calls != 1 {
		t.Fatalf("terminal request must not re-execute, got %d calls", stub.calls)
	}
	if req.Result == nil || req.Result.Output != "vm created" {
		t.Fatalf("stored result must be returned unchanged: %+v", req.Result)
	}
}

// gatedExecutor blocks inside Execute until released, holding the request
// mid-execution so overlapping deliveries can be driven deterministically.
type gatedExecutor struct {
	mu      sync.Mutex
	calls   int
	release chan struct{}
}

func (e *gatedExecutor) Execute(context.Context, executor.Request) executor.Result {
	e.mu.Lock()
	e.calls++
	e.mu.Unlock()
	<-e.release
	return executor.Result{Outcome: executor.OutcomeSuccess, Output: "vm created"}
}

func TestRunConcurrentDeliveriesExecuteOnce(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPending(t, store)
	approve(t, store)

	gate := &gatedExecutor{release: make(chan struct{})}
	rec := NewReconciler(store, nil, nil, nil, nil)
	svc := NewExecutionService(store, gate, rec, "az", nil)

	var wg sync.WaitGroup
	errs := make([]error, 2)
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = svc.Run(context.Background(), "req-1")
		}(i)
	}

	// Let both deliveries race past the approved check before the winner
	// is allowed to finish.
	close(gate.release)
	wg.Wait()

	for i, err := range errs {
		if err != nil {
			t.Fatalf("delivery %d failed: %v", i, err)
		}
	}
	if gate.calls != 1 {
		t.Fatalf("expected exactly one execution, got %d", gate.calls)
	}

	req, err := store.GetAny(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if req.Status != StatusCompleted {
		t.Fatalf("expected completed, got %s", req.Status)
	}
	if req.ExecutionStartedAt == nil {
		t.Fatal("winning claim must record executionStartedAt")
	}
}

func TestClaimExecutionRequiresApproval(t *testing.T) {
	store := NewMemoryStore(nil)
	seedPending(t, store)

	claimed, err := store.ClaimExecution(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("claim failed: %v", err)
	}
	if claimed {
		t.Fatal("pending request must not be claimable")
	}

	approve(t, store)
	if claimed, err = store.ClaimExecution(context.Background(), "req-1"); err != nil || !claimed {
		t.Fatalf("approved request must claim once: claimed=%v err=%v", claimed, err)
	}
	if claimed, err = store.ClaimExecution(context.Background(), "req-1"); err != nil || claimed {
		t.Fatalf("second claim must lose: claimed=%v err=%v", claimed, err)
	}
}

func TestRunUnknownRequest(t *testing.T) {
	svc, _, _ := newExecutionFixture(t, executor.Result{Outcome: executor.OutcomeSuccess})

	if _, err := svc.Run(context.Background(), "no-such-id"); !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestRunUnbuildableCommandFailsRequest(t *testing.T) {
	store := NewMemoryStore(nil)
	bad := &Request{
		RequestID:    "req-1",
		ResourceType: "virtual_machine",
		ResourceName: "web01",
		Configuration: map[string]string{
			"os_type":        "TempleOS",
			"resource_group": "rg1",
		},
		RequesterID: "user-7",
		Status:      StatusPendingApproval,
	}
	if err := store.Create(context.Background(), bad); err != nil {
		t.Fatalf("seed failed: %v", err)
	}
	rec := NewReconciler(store, nil, nil, nil, nil)
	stub := &executorStub{result: executor.Result{Outcome: executor.OutcomeSuccess}}
	svc := NewExecutionService(store, stub, rec, "az", nil)
	approve(t, store)

	got, err := svc.Run(context.Background(), "req-1")
	if err != nil {
		t.Fatalf("run failed: %v", err)
	}
	if got.Status != StatusFailed {
		t.Fatalf("expected failed, got %s", got.Status)
	}
	if stub.calls != 0 {
		t.Fatal("command must not run when it cannot be built")
	}
	if got.Result == nil || got.Result.Status != "error" {
		t.Fatalf("unexpected result: %+v", got.Result)
	}
}
