package conversation

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	"github.com/stackvoice/provision-ai-platform/internal/identity"
)

type submitterStub struct {
	submitted []deployment.SubmitInput
	err       error
}

func (s *submitterStub) Submit(_ context.Context, in deployment.SubmitInput) (*deployment.Request, error) {
	if s.err != nil {
		return nil, s.err
	}
	s.submitted = append(s.submitted, in)
	return &deployment.Request{
		RequestID:    "req-42",
		ResourceType: in.ResourceType,
		ResourceName: in.ResourceName,
		Status:       deployment.StatusPendingApproval,
	}, nil
}

func newTestService(submitter DeploymentSubmitter) Service {
	return NewService(NewEngine(nil), NewStateStore(time.Hour, nil), nil, submitter, nil)
}

func requesterCtx() context.Context {
	return identity.WithPrincipal(context.Background(), identity.Principal{
		ID:    "user-7",
		Email: "dev@example.com",
		Name:  "Sam",
	})
}

func driveToConfirmation(t *testing.T, svc Service, ctx context.Context) string {
	t.Helper()
	start, err := svc.StartConversation(ctx, StartRequest{Message: "create a vm"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}
	resp, err := svc.ProcessMessage(ctx, MessageRequest{
		ConversationID: start.ConversationID,
		Message:        "name=web01 size=Standard_D2s_v3 os_type=Linux location=eastus resource_group=rg1",
	})
	if err != nil {
		t.Fatalf("message failed: %v", err)
	}
	if !resp.ReadyForConfirmation {
		t.Fatalf("expected confirmation prompt, got %+v", resp)
	}
	if resp.EstimatedCost != "70" {
		t.Fatalf("estimated cost = %q, want 70", resp.EstimatedCost)
	}
	return start.ConversationID
}

func TestConfirmationSubmitsDeployment(t *testing.T) {
	submitter := &submitterStub{}
	svc := newTestService(submitter)
	ctx := requesterCtx()
	conversationID := driveToConfirmation(t, svc, ctx)

	resp, err := svc.ProcessMessage(ctx, MessageRequest{ConversationID: conversationID, Message: "yes"})
	if err != nil {
		t.Fatalf("confirmation failed: %v", err)
	}
	if !resp.Submitted || resp.RequestID != "req-42" {
		t.Fatalf("expected submission, got %+v", resp)
	}
	if resp.Phase != PhaseCompleted {
		t.Fatalf("phase = %s, want completed", resp.Phase)
	}

	if len(submitter.submitted) != 1 {
		t.Fatalf("expected 1 submission, got %d", len(submitter.submitted))
	}
	in := submitter.submitted[0]
	if in.ResourceType != "virtual_machine" || in.ResourceName != "web01" {
		t.Fatalf("unexpected submission: %+v", in)
	}
	if in.RequesterID != "user-7" || in.RequesterEmail != "dev@example.com" {
		t.Fatalf("requester identity not threaded: %+v", in)
	}
	if in.EstimatedCost != 70 {
		t.Fatalf("estimated cost = %v, want 70", in.EstimatedCost)
	}
	if in.Configuration["size"] != "Standard_D2s_v3" {
		t.Fatalf("configuration not copied: %+v", in.Configuration)
	}
}

func TestFailedSubmissionKeepsConversationConfirmable(t *testing.T) {
	submitter := &submitterStub{err: errors.New("store down")}
	svc := newTestService(submitter)
	ctx := requesterCtx()
	conversationID := driveToConfirmation(t, svc, ctx)

	if _, err := svc.ProcessMessage(ctx, MessageRequest{ConversationID: conversationID, Message: "yes"}); err == nil {
		t.Fatal("expected submission error")
	}

	// The dependency recovers; the same YES succeeds.
	submitter.err = nil
	resp, err := svc.ProcessMessage(ctx, MessageRequest{ConversationID: conversationID, Message: "yes"})
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if !resp.Submitted {
		t.Fatalf("expected submission on retry, got %+v", resp)
	}
}

func TestConfirmationRequiresIdentity(t *testing.T) {
	submitter := &submitterStub{}
	svc := newTestService(submitter)
	conversationID := driveToConfirmation(t, svc, context.Background())

	_, err := svc.ProcessMessage(context.Background(), MessageRequest{ConversationID: conversationID, Message: "yes"})
	if err == nil || !strings.Contains(err.Error(), "requester identity") {
		t.Fatalf("expected identity error, got %v", err)
	}
	if len(submitter.submitted) != 0 {
		t.Fatal("no submission without identity")
	}
}

func TestProcessMessageUnknownConversation(t *testing.T) {
	svc := newTestService(&submitterStub{})
	_, err := svc.ProcessMessage(context.Background(), MessageRequest{ConversationID: "nope", Message: "hi"})
	if !errors.Is(err, ErrConversationNotFound) {
		t.Fatalf("expected ErrConversationNotFound, got %v", err)
	}
}

func TestProcessMessageRequiresConversationID(t *testing.T) {
	svc := newTestService(&submitterStub{})
	if _, err := svc.ProcessMessage(context.Background(), MessageRequest{Message: "hi"}); err == nil {
		t.Fatal("expected error for missing conversation_id")
	}
}

func TestTranscriptReadsBackDialogue(t *testing.T) {
	transcripts := newTestTranscriptStore(t)
	svc := NewService(NewEngine(nil), NewStateStore(time.Hour, nil), transcripts, &submitterStub{}, nil)
	ctx := requesterCtx()

	start, err := svc.StartConversation(ctx, StartRequest{Message: "create a vm"})
	if err != nil {
		t.Fatalf("start failed: %v", err)
	}

	entries, err := svc.Transcript(ctx, start.ConversationID, 10)
	if err != nil {
		t.Fatalf("transcript failed: %v", err)
	}
	if len(entries) < 2 {
		t.Fatalf("expected user and assistant entries, got %d", len(entries))
	}
	if entries[0].Role != "user" || entries[0].Body != "create a vm" {
		t.Fatalf("unexpected first entry: %+v", entries[0])
	}
	if entries[1].Role != "assistant" || entries[1].Body == "" {
		t.Fatalf("unexpected second entry: %+v", entries[1])
	}
}

func TestTranscriptWithoutStore(t *testing.T) {
	svc := newTestService(&submitterStub{})
	if _, err := svc.Transcript(context.Background(), "c1", 10); !errors.Is(err, ErrTranscriptsDisabled) {
		t.Fatalf("expected ErrTranscriptsDisabled, got %v", err)
	}
}
