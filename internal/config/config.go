package config

import (
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

// Config holds application configuration
type Config struct {
	Port           string
	Env            string
	LogLevel       string
	UseMemoryQueue bool
	UseMemoryStore bool
	WorkerCount    int
	DatabaseURL    string

	AdminJWTSecret     string
	CORSAllowedOrigins []string

	AWSRegion           string
	AWSAccessKeyID      string
	AWSSecretAccessKey  string
	AWSEndpointOverride string

	ApprovalQueueURL         string
	ExecutionQueueURL        string
	DeploymentRequestsTable  string
	RequestsByRequesterIndex string

	RedisAddr     string
	RedisPassword string
	RedisTLS      bool

	BedrockModelID      string
	GeminiAPIKey        string
	GeminiModelID       string
	TemplateMaxAttempts int

	CloudCLIPath      string
	BicepCLIPath      string
	ExecutionTimeout  time.Duration
	VerificationDelay time.Duration

	OutboxSweepInterval time.Duration
	ConversationTTL     time.Duration

	SESFromEmail string
	SESFromName  string
}

// Load reads configuration from environment variables. A .env file in the
// working directory is merged in first for local development.
func Load() *Config {
	_ = godotenv.Load()

	return &Config{
		Port:           getEnv("PORT", "8080"),
		Env:            getEnv("ENV", "development"),
		LogLevel:       getEnv("LOG_LEVEL", "info"),
		UseMemoryQueue: getEnvAsBool("USE_MEMORY_QUEUE", false),
		UseMemoryStore: getEnvAsBool("USE_MEMORY_STORE", false),
		WorkerCount:    getEnvAsInt("WORKER_COUNT", 2),
		DatabaseURL:    getEnv("DATABASE_URL", ""),

		AdminJWTSecret:     getEnv("ADMIN_JWT_SECRET", ""),
		CORSAllowedOrigins: splitList(getEnv("CORS_ALLOWED_ORIGINS", "")),

		AWSRegion:           getEnv("AWS_REGION", "us-east-1"),
		AWSAccessKeyID:      getEnv("AWS_ACCESS_KEY_ID", ""),
		AWSSecretAccessKey:  getEnv("AWS_SECRET_ACCESS_KEY", ""),
		AWSEndpointOverride: getEnv("AWS_ENDPOINT_OVERRIDE", ""),

		ApprovalQueueURL:         getEnv("APPROVAL_QUEUE_URL", ""),
		ExecutionQueueURL:        getEnv("EXECUTION_QUEUE_URL", ""),
		DeploymentRequestsTable:  getEnv("DEPLOYMENT_REQUESTS_TABLE", "deployment_requests"),
		RequestsByRequesterIndex: getEnv("REQUESTS_BY_REQUESTER_INDEX", "requesterId-createdAt-index"),

		RedisAddr:     getEnv("REDIS_ADDR", ""),
		RedisPassword: getEnv("REDIS_PASSWORD", ""),
		RedisTLS:      getEnvAsBool("REDIS_TLS", false),

		BedrockModelID:      getEnv("BEDROCK_MODEL_ID", ""),
		GeminiAPIKey:        getEnv("GEMINI_API_KEY", ""),
		GeminiModelID:       getEnv("GEMINI_MODEL_ID", ""),
		TemplateMaxAttempts: getEnvAsInt("TEMPLATE_MAX_ATTEMPTS", 2),

		CloudCLIPath:      getEnv("CLOUD_CLI_PATH", "az"),
		BicepCLIPath:      getEnv("BICEP_CLI_PATH", "bicep"),
		ExecutionTimeout:  getEnvAsDuration("EXECUTION_TIMEOUT", 300*time.Second),
		VerificationDelay: getEnvAsDuration("VERIFICATION_DELAY", 5*time.Second),

		OutboxSweepInterval: getEnvAsDuration("OUTBOX_SWEEP_INTERVAL", 30*time.Second),
		ConversationTTL:     getEnvAsDuration("CONVERSATION_TTL", time.Hour),

		SESFromEmail: getEnv("SES_FROM_EMAIL", ""),
		SESFromName:  getEnv("SES_FROM_NAME", "Provision AI"),
	}
}

// getEnv retrieves an environment variable or returns a default value
func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

// getEnvAsInt retrieves an environment variable as an integer or returns a default value
func getEnvAsInt(key string, defaultValue int) int {
	valueStr := getEnv(key, "")
	if value, err := strconv.Atoi(valueStr); err == nil {
		return value
	}
	return defaultValue
}

// getEnvAsBool retrieves an environment variable as a boolean or returns a default value
func getEnvAsBool(key string, defaultValue bool) bool {
	valueStr := getEnv(key, "")
	if value, err := strconv.ParseBool(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func getEnvAsDuration(key string, defaultValue time.Duration) time.Duration {
	valueStr := getEnv(key, "")
	if valueStr == "" {
		return defaultValue
	}
	if value, err := time.ParseDuration(valueStr); err == nil {
		return value
	}
	return defaultValue
}

func splitList(raw string) []string {
	var out []string
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			out = append(out, part)
		}
	}
	return out
}
