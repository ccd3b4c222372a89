package config

import (
	"fmt"
	"time"

	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

// Thread store backends selectable via THREAD_STORE_BACKEND.
const (
	BackendFile     = "file"
	BackendDynamoDB = "dynamodb"
)

// Config holds application configuration loaded from environment variables.
type Config struct {
	LogLevel string `envconfig:"LOG_LEVEL" default:"info"`
	Port     int    `envconfig:"PORT" default:"8080"`

	// Slack
	SlackBotToken      string `envconfig:"SLACK_BOT_TOKEN" required:"true"`
	SlackSigningSecret string `envconfig:"SLACK_SIGNING_SECRET" required:"true"`
	SlackAppID         string `envconfig:"SLACK_APP_ID"`

	// Assistant backend
	OpenAIAPIKey  string `envconfig:"OPENAI_API_KEY" required:"true"`
	AssistantID   string `envconfig:"ASSISTANT_ID" required:"true"`
	OpenAIBaseURL string `envconfig:"OPENAI_BASE_URL" default:"https://api.openai.com/v1"`

	// Run polling
	RunPollIntervalMS  int `envconfig:"RUN_POLL_INTERVAL_MS" default:"1000"`
	RunPollMaxAttempts int `envconfig:"RUN_POLL_MAX_ATTEMPTS" default:"120"`

	// Thread store
	ThreadStoreBackend string `envconfig:"THREAD_STORE_BACKEND" default:"file"`
	ThreadMapPath      string `envconfig:"THREAD_MAP_PATH" default:"threads.json"`
	ThreadsTable       string `envconfig:"THREADS_TABLE" default:"insights-threads"`
	AWSRegion          string `envconfig:"AWS_REGION" default:"us-east-1"`
}

// Load reads configuration from a .env file (if present) and the environment.
func Load() (*Config, error) {
	// A missing .env file is fine; real deployments set the environment directly.
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("", &cfg); err != nil {
		return nil, err
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

// Validate checks configuration beyond what envconfig tags express.
func (c *Config) Validate() error {
	switch c.ThreadStoreBackend {
	case BackendFile, BackendDynamoDB:
	default:
		return fmt.Errorf("THREAD_STORE_BACKEND must be %q or %q, got %q", BackendFile, BackendDynamoDB, c.ThreadStoreBackend)
	}
	if c.ThreadStoreBackend == BackendFile && c.ThreadMapPath == "" {
		return fmt.Errorf("THREAD_MAP_PATH is required for the file backend")
	}
	if c.ThreadStoreBackend == BackendDynamoDB && c.ThreadsTable == "" {
		return fmt.Errorf("THREADS_TABLE is required for the dynamodb backend")
	}
	if c.RunPollIntervalMS <= 0 {
		return fmt.Errorf("RUN_POLL_INTERVAL_MS must be positive")
	}
	if c.RunPollMaxAttempts < 0 {
		return fmt.Errorf("RUN_POLL_MAX_ATTEMPTS must not be negative")
	}
	return nil
}

// RunPollInterval returns the run poll interval as a duration.
func (c *Config) RunPollInterval() time.Duration {
	return time.Duration(c.RunPollIntervalMS) * time.Millisecond
}
