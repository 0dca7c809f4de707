// Package template generates and validates infrastructure-as-code templates
// for deployment requests, using a hosted model with a provider fallback.
package template

import "context"

// ChatRole identifies the author of a chat message.
type ChatRole string

const (
	ChatRoleSystem    ChatRole = "system"
	ChatRoleUser      ChatRole = "user"
	ChatRoleAssistant ChatRole = "assistant"
)

// ChatMessage is one turn of model input.
type ChatMessage struct {
	Role    ChatRole
	Content string
}

// LLMRequest is a provider-agnostic completion request.
type LLMRequest struct {
	Model       string
	System      []string
	Messages    []ChatMessage
	MaxTokens   int32
	Temperature float32
	TopP        float32
}

// TokenUsage reports consumed tokens when the provider exposes them.
type TokenUsage struct {
	InputTokens  int32
	OutputTokens int32
	TotalTokens  int32
}

// LLMResponse is a provider-agnostic completion response.
type LLMResponse struct {
	Text       string
	StopReason string
	Usage      TokenUsage
}

// LLMClient abstracts the hosted model providers.
type LLMClient interface {
	Complete(ctx context.Context, req LLMRequest) (LLMResponse, error)
}
