package bootstrap

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/bedrockruntime"
	"github.com/aws/aws-sdk-go-v2/service/dynamodb"
	"github.com/aws/aws-sdk-go-v2/service/sesv2"
	"github.com/aws/aws-sdk-go-v2/service/sqs"

	"github.com/stackvoice/provision-ai-platform/internal/approval"
	appconfig "github.com/stackvoice/provision-ai-platform/internal/config"
	"github.com/stackvoice/provision-ai-platform/internal/deployment"
	"github.com/stackvoice/provision-ai-platform/internal/executor"
	"github.com/stackvoice/provision-ai-platform/internal/notify"
	"github.com/stackvoice/provision-ai-platform/internal/template"
	"github.com/stackvoice/provision-ai-platform/pkg/logging"
)

// BuildDeploymentStore returns the DynamoDB-backed request store, or the
// in-memory store when USE_MEMORY_STORE is set.
func BuildDeploymentStore(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) deployment.Store {
	if cfg.UseMemoryStore {
		if logger != nil {
			logger.Warn("using in-memory deployment store; requests are lost on restart")
		}
		return deployment.NewMemoryStore(logger)
	}
	client := dynamodb.NewFromConfig(awsCfg)
	return deployment.NewDynamoStore(client, cfg.DeploymentRequestsTable, cfg.RequestsByRequesterIndex, logger)
}

// BuildQueue returns an SQS queue client for the URL, or a memory queue when
// USE_MEMORY_QUEUE is set.
func BuildQueue(awsCfg aws.Config, cfg *appconfig.Config, queueURL string) approval.QueueClient {
	if cfg.UseMemoryQueue {
		return approval.NewMemoryQueue(0)
	}
	return approval.NewSQSQueue(sqs.NewFromConfig(awsCfg), queueURL)
}

// BuildExecutor assembles the shell runner, read-back verifier and the
// hard-timeout executor around them.
func BuildExecutor(cfg *appconfig.Config, logger *logging.Logger) *executor.Executor {
	runner := executor.NewShellRunner()
	verifier := executor.NewCLIVerifier(runner, cfg.CloudCLIPath)
	return executor.New(runner, verifier, logger,
		executor.WithTimeout(cfg.ExecutionTimeout),
		executor.WithVerificationDelay(cfg.VerificationDelay),
	)
}

// BuildNotifier wires requester email notifications. Without a configured
// sender address the stub sender is used and messages are only recorded.
func BuildNotifier(awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) *notify.Service {
	var sender notify.EmailSender
	if cfg.SESFromEmail != "" {
		sender = notify.NewSESSender(sesv2.NewFromConfig(awsCfg), notify.SESConfig{
			FromEmail: cfg.SESFromEmail,
			FromName:  cfg.SESFromName,
		}, logger)
	} else {
		if logger != nil {
			logger.Warn("email notifications disabled (SES_FROM_EMAIL not set)")
		}
		sender = notify.NewStubSender()
	}
	return notify.NewService(sender, logger)
}

// BuildTemplateGenerator wires the Bicep template generator: Bedrock primary,
// optional Gemini fallback, compile validation through the bicep CLI. Returns
// nil when no Bedrock model is configured.
func BuildTemplateGenerator(ctx context.Context, awsCfg aws.Config, cfg *appconfig.Config, logger *logging.Logger) (*template.Generator, error) {
	if cfg.BedrockModelID == "" {
		if logger != nil {
			logger.Warn("template generation disabled (BEDROCK_MODEL_ID not set)")
		}
		return nil, nil
	}

	var llm template.LLMClient = template.NewBedrockLLMClient(bedrockruntime.NewFromConfig(awsCfg))
	if cfg.GeminiAPIKey != "" {
		gemini, err := template.NewGeminiLLMClient(ctx, cfg.GeminiAPIKey, cfg.GeminiModelID)
		if err != nil {
			return nil, fmt.Errorf("bootstrap: gemini client: %w", err)
		}
		llm = template.NewFallbackLLMClient(llm, gemini, logger)
	}

	compiler := template.NewCompiler(executor.NewShellRunner(), cfg.BicepCLIPath)
	return template.NewGenerator(llm, cfg.BedrockModelID, compiler, cfg.TemplateMaxAttempts, logger), nil
}
