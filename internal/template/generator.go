package template

import (
	"context"
	"fmt"
	"sort"
	"strings"

	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// Input describes the resource a template should declare.
type Input struct {
	ResourceType  string
	ResourceName  string
	Configuration map[string]string
}

// Validator checks a generated template before it is accepted.
type Validator interface {
	Validate(ctx context.Context, body string) error
}

// Generator asks the model for a Bicep template and validates the result.
// Failed attempts feed the validation error back into the next prompt; the
// attempt count is capped so a confused model cannot loop.
type Generator struct {
	llm         LLMClient
	model       string
	validator   Validator
	maxAttempts int
	logger      *logging.Logger
}

func NewGenerator(llm LLMClient, model string, validator Validator, maxAttempts int, logger *logging.Logger) *Generator {
	if llm == nil {
		panic("template: llm client cannot be nil")
	}
	if maxAttempts <= 0 {
		maxAttempts = 2
	}
	if logger == nil {
		logger = logging.Default()
	}
	return &Generator{
		llm:         llm,
		model:       model,
		validator:   validator,
		maxAttempts: maxAttempts,
		logger:      logger,
	}
}

const generatorSystemPrompt = "You generate Azure Bicep templates. Respond with only the template body, no explanations and no code fences."

// Generate produces a validated template for the input.
func (g *Generator) Generate(ctx context.Context, in Input) (string, error) {
	if in.ResourceType == "" || in.ResourceName == "" {
		return "", fmt.Errorf("template: resource type and name are required")
	}

	prompt := buildPrompt(in)
	var lastErr error
	for attempt := 1; attempt <= g.maxAttempts; attempt++ {
		if lastErr != nil {
			prompt = fmt.Sprintf("%s\n\nThe previous template was rejected: %v\nFix the problem and return the corrected template.", buildPrompt(in), lastErr)
		}

		resp, err := g.llm.Complete(ctx, LLMRequest{
			Model:       g.model,
			System:      []string{generatorSystemPrompt},
			Messages:    []ChatMessage{{Role: ChatRoleUser, Content: prompt}},
			MaxTokens:   4096,
			Temperature: 0,
		})
		if err != nil {
			lastErr = err
			g.logger.Warn("template generation attempt failed",
				"attempt", attempt,
				"error", err,
			)
			continue
		}

		body := stripFences(resp.Text)
		if strings.TrimSpace(body) == "" {
			lastErr = fmt.Errorf("template: model returned an empty template")
			continue
		}

		if g.validator != nil {
			if err := g.validator.Validate(ctx, body); err != nil {
				lastErr = err
				g.logger.Warn("generated template failed validation",
					"attempt", attempt,
					"error", err,
				)
				continue
			}
		}
		return body, nil
	}
	return "", fmt.Errorf("template: generation failed after %d attempts: %w", g.maxAttempts, lastErr)
}

func buildPrompt(in Input) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Generate a Bicep template that declares a %s named %q.", in.ResourceType, in.ResourceName)
	if len(in.Configuration) > 0 {
		b.WriteString(" Apply this configuration:")
		keys := make([]string, 0, len(in.Configuration))
		for key := range in.Configuration {
			keys = append(keys, key)
		}
		sort.Strings(keys)
		for _, key := range keys {
			fmt.Fprintf(&b, " %s=%s", key, in.Configuration[key])
		}
		b.WriteString(".")
	}
	return b.String()
}

// stripFences removes a wrapping markdown code fence when the model adds one
// despite instructions.
func stripFences(text string) string {
	trimmed := strings.TrimSpace(text)
	if !strings.HasPrefix(trimmed, "```") {
		return trimmed
	}
	lines := strings.Split(trimmed, "\n")
	if len(lines) < 2 {
		return trimmed
	}
	lines = lines[1:]
	if strings.TrimSpace(lines[len(lines)-1]) == "```" {
		lines = lines[:len(lines)-1]
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}
