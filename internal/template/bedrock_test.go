package template

import (
	"context"
	"testing"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	brtypes "github.com/aws/aws-sdk-go-v2/service/bedrockruntime/types"
)

type stubConverse struct {
	input  *bedrockruntime.ConverseInput
	output *bedrockruntime.ConverseOutput
	err    error
}

func (s *stubConverse) Converse(_ context.Context, params *bedrockruntime.ConverseInput, _ ...func(*bedrockruntime.Options)) (*bedrockruntime.ConverseOutput, error) {
	s.input = params
	return s.output, s.err
}

func TestBedrockCompleteExtractsText(t *testing.T) {
	stub := &stubConverse{output: &bedrockruntime.ConverseOutput{
		Output: &brtypes.ConverseOutputMemberMessage{Value: brtypes.Message{
			Role: brtypes.ConversationRoleAssistant,
			Content: []brtypes.ContentBlock{
				&brtypes.ContentBlockMemberText{Value: "resource vm = {}"},
			},
		}},
		StopReason: brtypes.StopReasonEndTurn,
		Usage: &brtypes.TokenUsage{
			InputTokens:  aws.Int32(10),
			OutputTokens: aws.Int32(5),
			TotalTokens:  aws.Int32(15),
		},
	}}
	client := NewBedrockLLMClient(stub)

	resp, err := client.Complete(context.Background(), LLMRequest{
		Model:    "model-1",
		System:   []string{"system prompt"},
		Messages: []ChatMessage{{Role: ChatRoleUser, Content: "generate"}},
	})
	if err != nil {
		t.Fatalf("complete failed: %v", err)
	}
	if resp.Text != "resource vm = {}" {
		t.Fatalf("unexpected text: %q", resp.Text)
	}
	if resp.Usage.TotalTokens != 15 {
		t.Fatalf("usage not extracted: %+v", resp.Usage)
	}
	if stub.input == nil || aws.ToString(stub.input.ModelId) != "model-1" {
		t.Fatal("model id not passed through")
	}
	if len(stub.input.System) != 1 || len(stub.input.Messages) != 1 {
		t.Fatalf("request not mapped: %+v", stub.input)
	}
}

func TestBedrockCompleteRequiresModel(t *testing.T) {
	client := NewBedrockLLMClient(&stubConverse{})
	if _, err := client.Complete(context.Background(), LLMRequest{}); err == nil {
		t.Fatal("expected error for missing model id")
	}
}
