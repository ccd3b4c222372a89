package config

import (
	"os"
	"strings"
	"testing"
	"time"
)

func setRequired(t *testing.T) {
	t.Helper()
	t.Setenv("SLACK_BOT_TOKEN", "xoxb-test")
	t.Setenv("SLACK_SIGNING_SECRET", "secret")
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("ASSISTANT_ID", "asst_test")
}

func TestLoadDefaults(t *testing.T) {
	setRequired(t)

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.LogLevel != "info" {
		t.Errorf("LogLevel = %s, want info", cfg.LogLevel)
	}
	if cfg.OpenAIBaseURL != "https://api.openai.com/v1" {
		t.Errorf("OpenAIBaseURL = %s", cfg.OpenAIBaseURL)
	}
	if cfg.ThreadStoreBackend != BackendFile {
		t.Errorf("ThreadStoreBackend = %s, want %s", cfg.ThreadStoreBackend, BackendFile)
	}
	if cfg.RunPollInterval() != time.Second {
		t.Errorf("RunPollInterval() = %v, want 1s", cfg.RunPollInterval())
	}
	if cfg.RunPollMaxAttempts != 120 {
		t.Errorf("RunPollMaxAttempts = %d, want 120", cfg.RunPollMaxAttempts)
	}
}

func TestLoadMissingRequired(t *testing.T) {
	tests := []string{
		"SLACK_BOT_TOKEN",
		"SLACK_SIGNING_SECRET",
		"OPENAI_API_KEY",
		"ASSISTANT_ID",
	}

	for _, missing := range tests {
		t.Run(missing, func(t *testing.T) {
			setRequired(t)
			// t.Setenv registers the cleanup that restores the variable;
			// unsetting afterwards makes it genuinely absent for Load.
			t.Setenv(missing, "")
			os.Unsetenv(missing)

			if _, err := Load(); err == nil {
				t.Errorf("Load() succeeded without %s", missing)
			}
		})
	}
}

func TestLoadOverrides(t *testing.T) {
	setRequired(t)
	t.Setenv("PORT", "9090")
	t.Setenv("RUN_POLL_INTERVAL_MS", "250")
	t.Setenv("RUN_POLL_MAX_ATTEMPTS", "0")
	t.Setenv("THREAD_STORE_BACKEND", "dynamodb")
	t.Setenv("THREADS_TABLE", "insights-threads-prod")

	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}

	if cfg.Port != 9090 {
		t.Errorf("Port = %d, want 9090", cfg.Port)
	}
	if cfg.RunPollInterval() != 250*time.Millisecond {
		t.Errorf("RunPollInterval() = %v, want 250ms", cfg.RunPollInterval())
	}
	if cfg.RunPollMaxAttempts != 0 {
		t.Errorf("RunPollMaxAttempts = %d, want 0 (unbounded)", cfg.RunPollMaxAttempts)
	}
	if cfg.ThreadsTable != "insights-threads-prod" {
		t.Errorf("ThreadsTable = %s", cfg.ThreadsTable)
	}
}

func TestValidate(t *testing.T) {
	valid := Config{
		ThreadStoreBackend: BackendFile,
		ThreadMapPath:      "threads.json",
		ThreadsTable:       "threads",
		RunPollIntervalMS:  1000,
		RunPollMaxAttempts: 120,
	}

	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr string
	}{
		{"valid file backend", func(c *Config) {}, ""},
		{"valid dynamodb backend", func(c *Config) { c.ThreadStoreBackend = BackendDynamoDB }, ""},
		{"unknown backend", func(c *Config) { c.ThreadStoreBackend = "redis" }, "THREAD_STORE_BACKEND"},
		{"file backend without path", func(c *Config) { c.ThreadMapPath = "" }, "THREAD_MAP_PATH"},
		{"dynamodb backend without table", func(c *Config) {
			c.ThreadStoreBackend = BackendDynamoDB
			c.ThreadsTable = ""
		}, "THREADS_TABLE"},
		{"zero poll interval", func(c *Config) { c.RunPollIntervalMS = 0 }, "RUN_POLL_INTERVAL_MS"},
		{"negative max attempts", func(c *Config) { c.RunPollMaxAttempts = -1 }, "RUN_POLL_MAX_ATTEMPTS"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := valid
			tt.mutate(&cfg)
			err := cfg.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Errorf("Validate() error = %v, want nil", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Validate() error = %v, want mention of %s", err, tt.wantErr)
			}
		})
	}
}
