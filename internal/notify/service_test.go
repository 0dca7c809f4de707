package notify

import (
	"context"
	"strings"
	"testing"

	"github.com/stackvoice/provision-ai-platform/internal/deployment"
)

func approvedRequest() *deployment.Request {
	return &deployment.Request{
		RequestID:      "req-1",
		ResourceType:   "virtual_machine",
		ResourceName:   "web01",
		RequesterEmail: "dev@example.com",
		RequesterName:  "Sam",
		Status:         deployment.StatusApproved,
		ApprovedBy:     "approver-9",
	}
}

func TestNotifyDecisionApproved(t *testing.T) {
	sender := NewStubSender()
	svc := NewService(sender, nil)

	if err := svc.NotifyDecision(context.Background(), approvedRequest()); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if sent[0].To != "dev@example.com" {
		t.Fatalf("unexpected recipient: %s", sent[0].To)
	}
	if !strings.Contains(sent[0].Body, "approved by approver-9") {
		t.Fatalf("unexpected body: %q", sent[0].Body)
	}
}

func TestNotifyOutcomePartialWarns(t *testing.T) {
	sender := NewStubSender()
	svc := NewService(sender, nil)

	req := approvedRequest()
	req.Status = deployment.StatusCompleted
	req.Result = &deployment.ExecutionResult{Status: "partial", Partial: true}

	if err := svc.NotifyOutcome(context.Background(), req); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	sent := sender.Sent()
	if len(sent) != 1 {
		t.Fatalf("expected 1 email, got %d", len(sent))
	}
	if !strings.Contains(sent[0].Body, "could not be confirmed") {
		t.Fatalf("expected partial warning, got %q", sent[0].Body)
	}
}

func TestNotifyOutcomeFailedIncludesError(t *testing.T) {
	sender := NewStubSender()
	svc := NewService(sender, nil)

	req := approvedRequest()
	req.Status = deployment.StatusFailed
	req.Result = &deployment.ExecutionResult{Status: "failed", Error: "quota exceeded"}

	if err := svc.NotifyOutcome(context.Background(), req); err != nil {
		t.Fatalf("notify failed: %v", err)
	}

	sent := sender.Sent()
	if len(sent) != 1 || !strings.Contains(sent[0].Body, "quota exceeded") {
		t.Fatalf("expected failure details, got %#v", sent)
	}
}

func TestNotifySkipsWithoutEmail(t *testing.T) {
	sender := NewStubSender()
	svc := NewService(sender, nil)

	req := approvedRequest()
	req.RequesterEmail = ""
	if err := svc.NotifyDecision(context.Background(), req); err != nil {
		t.Fatalf("notify failed: %v", err)
	}
	if len(sender.Sent()) != 0 {
		t.Fatal("expected no email without requester address")
	}
}
