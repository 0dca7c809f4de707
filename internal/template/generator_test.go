package template

import (
	"context"
	"errors"
	"strings"
	"testing"
)

type scriptedLLM struct {
	responses []LLMResponse
	errs      []error
	calls     int
	prompts   []string
}

func (s *scriptedLLM) Complete(_ context.Context, req LLMRequest) (LLMResponse, error) {
	idx := s.calls
	s.calls++
	if len(req.Messages) > 0 {
		s.prompts = append(s.prompts, req.Messages[len(req.Messages)-1].Content)
	}
	if idx < len(s.errs) && s.errs[idx] != nil {
		return LLMResponse{}, s.errs[idx]
	}
	if idx < len(s.responses) {
		return s.responses[idx], nil
	}
	return LLMResponse{}, errors.New("no scripted response")
}

type rejectOnce struct {
	rejected bool
}

func (r *rejectOnce) Validate(_ context.Context, _ string) error {
	if !r.rejected {
		r.rejected = true
		return errors.New("unknown resource symbol")
	}
	return nil
}

func testInput() Input {
	return Input{
		ResourceType:  "virtual_machine",
		ResourceName:  "web01",
		Configuration: map[string]string{"size": "Standard_D2s_v3", "location": "eastus"},
	}
}

func TestGenerateFirstAttemptSucceeds(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: "resource vm 'Microsoft.Compute/virtualMachines@2023-03-01' = {}"}}}
	gen := NewGenerator(llm, "model-1", nil, 2, nil)

	body, err := gen.Generate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if !strings.Contains(body, "virtualMachines") {
		t.Fatalf("unexpected body: %q", body)
	}
	if llm.calls != 1 {
		t.Fatalf("expected 1 call, got %d", llm.calls)
	}
	if !strings.Contains(llm.prompts[0], `"web01"`) || !strings.Contains(llm.prompts[0], "size=Standard_D2s_v3") {
		t.Fatalf("prompt missing request details: %q", llm.prompts[0])
	}
}

func TestGenerateRetriesWithValidationFeedback(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{
		{Text: "resource bad = {}"},
		{Text: "resource good = {}"},
	}}
	validator := &rejectOnce{}
	gen := NewGenerator(llm, "model-1", validator, 2, nil)

	body, err := gen.Generate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if body != "resource good = {}" {
		t.Fatalf("unexpected body: %q", body)
	}
	if llm.calls != 2 {
		t.Fatalf("expected 2 calls, got %d", llm.calls)
	}
	if !strings.Contains(llm.prompts[1], "unknown resource symbol") {
		t.Fatalf("second prompt must carry the rejection: %q", llm.prompts[1])
	}
}

func TestGenerateGivesUpAfterMaxAttempts(t *testing.T) {
	llm := &scriptedLLM{errs: []error{errors.New("throttled"), errors.New("throttled")}}
	gen := NewGenerator(llm, "model-1", nil, 2, nil)

	if _, err := gen.Generate(context.Background(), testInput()); err == nil {
		t.Fatal("expected failure after exhausting attempts")
	}
	if llm.calls != 2 {
		t.Fatalf("attempts must be capped at 2, got %d", llm.calls)
	}
}

func TestGenerateStripsCodeFences(t *testing.T) {
	llm := &scriptedLLM{responses: []LLMResponse{{Text: "```bicep\nresource vm = {}\n```"}}}
	gen := NewGenerator(llm, "model-1", nil, 2, nil)

	body, err := gen.Generate(context.Background(), testInput())
	if err != nil {
		t.Fatalf("generate failed: %v", err)
	}
	if body != "resource vm = {}" {
		t.Fatalf("fences not stripped: %q", body)
	}
}

func TestFallbackClientUsesSecondary(t *testing.T) {
	primary := &scriptedLLM{errs: []error{errors.New("region down")}}
	secondary := &scriptedLLM{responses: []LLMResponse{{Text: "from fallback"}}}
	client := NewFallbackLLMClient(primary, secondary, nil)

	resp, err := client.Complete(context.Background(), LLMRequest{Model: "m", Messages: []ChatMessage{{Role: ChatRoleUser, Content: "x"}}})
	if err != nil {
		t.Fatalf("fallback failed: %v", err)
	}
	if resp.Text != "from fallback" {
		t.Fatalf("unexpected response: %q", resp.Text)
	}
}
