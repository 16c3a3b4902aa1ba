// Package config layers defaults, an optional YAML file and the environment
// into the settings the policydesk commands run with. Command-line flags are
// applied on top by the caller.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/caarlos0/env/v11"
	"gopkg.in/yaml.v3"
)

const (
	DefaultModel          = "gpt-3.5-turbo-0125"
	DefaultAssistantName  = "HHC Assistant Bot"
	DefaultReferenceName  = "all_pdfs_text.txt"
	DefaultRunInstruction = "If the user is using another language to ask, please answer in that language as well."
	DefaultStaffPrompt    = "You are a AI Assistant that answers any queries related to aged care policies and incidents as per the data provided. Look inside the data first. If the answer is not available then search the answer from the preset conditions. Start your answers with a warm greeting"
)

// Config is the full set of runtime settings.
type Config struct {
	APIKey      string        `yaml:"api_key" env:"OPENAI_API_KEY"`
	BaseURL     string        `yaml:"base_url" env:"POLICYDESK_BASE_URL"`
	HTTPTimeout time.Duration `yaml:"http_timeout" env:"POLICYDESK_HTTP_TIMEOUT"`

	PollInterval time.Duration `yaml:"poll_interval" env:"POLICYDESK_POLL_INTERVAL"`
	MaxWait      time.Duration `yaml:"max_wait" env:"POLICYDESK_MAX_WAIT"`

	RunInstructions string `yaml:"run_instructions" env:"POLICYDESK_RUN_INSTRUCTIONS"`

	Staff   StaffConfig   `yaml:"staff"`
	Manager ManagerConfig `yaml:"manager"`

	UploadDir string `yaml:"upload_dir" env:"POLICYDESK_UPLOAD_DIR"`
	ExportDir string `yaml:"export_dir" env:"POLICYDESK_EXPORT_DIR"`

	LogFile  string `yaml:"log_file" env:"POLICYDESK_LOG_FILE"`
	LogLevel string `yaml:"log_level" env:"POLICYDESK_LOG_LEVEL"`
}

// StaffConfig configures the reference-document assistant used by Staff.
type StaffConfig struct {
	AssistantID   string `yaml:"assistant_id" env:"POLICYDESK_STAFF_ASSISTANT_ID"`
	AssistantName string `yaml:"assistant_name" env:"POLICYDESK_STAFF_ASSISTANT_NAME"`
	Reference     string `yaml:"reference" env:"POLICYDESK_STAFF_REFERENCE"`
	Model         string `yaml:"model" env:"POLICYDESK_STAFF_MODEL"`
	Instructions  string `yaml:"instructions" env:"POLICYDESK_STAFF_INSTRUCTIONS"`
}

// ManagerConfig configures the assistant Manager uploads are attached to.
type ManagerConfig struct {
	AssistantID string `yaml:"assistant_id" env:"POLICYDESK_MANAGER_ASSISTANT_ID"`
}

// Default returns the built-in settings.
func Default() Config {
	cacheDir, err := os.UserCacheDir()
	if err != nil || cacheDir == "" {
		cacheDir = os.TempDir()
	}
	base := filepath.Join(cacheDir, "policydesk")
	return Config{
		HTTPTimeout:     2 * time.Minute,
		PollInterval:    time.Second,
		RunInstructions: DefaultRunInstruction,
		Staff: StaffConfig{
			AssistantName: DefaultAssistantName,
			Reference:     DefaultReferenceName,
			Model:         DefaultModel,
			Instructions:  DefaultStaffPrompt,
		},
		UploadDir: "uploads",
		ExportDir: filepath.Join(base, "transcripts"),
		LogFile:   filepath.Join(base, "policydesk.log"),
		LogLevel:  "info",
	}
}

// Load reads path (when non-empty) over the defaults, then the environment.
// A missing file at an explicit path is an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := env.Parse(&cfg); err != nil {
		return Config{}, fmt.Errorf("config environment: %w", err)
	}
	return cfg, nil
}

// Validate rejects settings the poller or client cannot work with.
func (c Config) Validate() error {
	var errs []error
	if c.PollInterval <= 0 {
		errs = append(errs, fmt.Errorf("poll_interval must be positive, got %s", c.PollInterval))
	}
	if c.MaxWait < 0 {
		errs = append(errs, fmt.Errorf("max_wait must not be negative, got %s", c.MaxWait))
	}
	if c.HTTPTimeout < 0 {
		errs = append(errs, fmt.Errorf("http_timeout must not be negative, got %s", c.HTTPTimeout))
	}
	return errors.Join(errs...)
}

// Redacted returns a copy safe to print.
func (c Config) Redacted() Config {
	if c.APIKey != "" {
		c.APIKey = "sk-…" + lastN(c.APIKey, 4)
	}
	return c
}

func lastN(s string, n int) string {
	if len(s) <= n {
		return ""
	}
	return s[len(s)-n:]
}
