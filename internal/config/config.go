// Package config provides configuration loading and validation for the CLI.
package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/go-playground/validator/v10"
)

// Submission modes.
const (
	ModeMock    = "mock"
	ModeBrowser = "browser"
)

// SubmissionConfig holds the recognized submission policy options.
type SubmissionConfig struct {
	Mode             string `json:"mode" validate:"oneof=mock browser"`
	Retries          int    `json:"retries" validate:"gte=0,lte=10"`
	DryRun           bool   `json:"dry_run"`
	StorageStatePath string `json:"storage_state_path"`
	TimeoutMS        int    `json:"timeout_ms" validate:"gt=0"`
	WaitMS           int    `json:"wait_ms" validate:"gte=0"`
	Headless         bool   `json:"headless"`
	AllowFinalSubmit bool   `json:"allow_final_submit"`
	MaxSteps         int    `json:"max_steps" validate:"gt=0"`
}

// Config is the full runtime configuration. Defaults come from Default, then a JSON file
// (LoadConfig), then the environment (ApplyEnv), then CLI flags.
type Config struct {
	// Identity
	UserID  string `json:"user_id" validate:"required"`
	ActorID string `json:"actor_id" validate:"required"`

	// Storage
	DatabaseURL string `json:"database_url,omitempty"`
	RedisURL    string `json:"redis_url,omitempty"`

	// Submission policy
	Submission SubmissionConfig `json:"submission"`

	// Limits
	DraftingRateLimit         int     `json:"drafting_rate_limit" validate:"gte=0"`
	IngestionRateLimit        int     `json:"ingestion_rate_limit" validate:"gte=0"`
	RateLimitWindowSeconds    int     `json:"rate_limit_window_seconds" validate:"gt=0"`
	MaxApplicationsPerCompany int     `json:"max_applications_per_company" validate:"gte=0"`
	BatchConcurrency          int     `json:"batch_concurrency" validate:"gte=1,lte=16"`
	HostRequestsPerSecond     float64 `json:"host_requests_per_second" validate:"gte=0"`

	// Assets
	ProfilePath       string `json:"profile_path,omitempty"`
	ResumePDFPath     string `json:"resume_pdf_path,omitempty"`
	TranscriptPDFPath string `json:"transcript_pdf_path,omitempty"`
	AssetDir          string `json:"asset_dir,omitempty"`
	OutputDir         string `json:"output_dir" validate:"required"`
	LockPath          string `json:"lock_path,omitempty"`

	// Providers
	EmbeddingProvider string `json:"embedding_provider" validate:"oneof=mock"`
	DraftingProvider  string `json:"drafting_provider" validate:"oneof=template gemini"`
	GeminiAPIKey      string `json:"gemini_api_key,omitempty"`

	// Secrets
	PasswordEnv    string `json:"password_env" validate:"required"`
	KeyringService string `json:"keyring_service" validate:"required"`
	KeyringAccount string `json:"keyring_account,omitempty"`

	// Logging
	LogMode  string `json:"log_mode" validate:"oneof=dev prod"`
	LogLevel string `json:"log_level,omitempty"`
}

// Default returns the configuration used when nothing overrides it.
// Final submission is never enabled by default.
func Default() Config {
	return Config{
		UserID:  "local-user",
		ActorID: "agent",
		Submission: SubmissionConfig{
			Mode:             ModeMock,
			Retries:          2,
			DryRun:           true,
			StorageStatePath: "secrets/workday_state.json",
			TimeoutMS:        120000,
			WaitMS:           2000,
			Headless:         true,
			AllowFinalSubmit: false,
			MaxSteps:         12,
		},
		DraftingRateLimit:         120,
		IngestionRateLimit:        60,
		RateLimitWindowSeconds:    60,
		MaxApplicationsPerCompany: 2,
		BatchConcurrency:          1,
		HostRequestsPerSecond:     0.5,
		ResumePDFPath:             "resume/resume.pdf",
		TranscriptPDFPath:         "resume/transcript.pdf",
		AssetDir:                  "resume",
		OutputDir:                 "output",
		LockPath:                  filepath.Join(os.TempDir(), "apply_agent.lock"),
		EmbeddingProvider:         "mock",
		DraftingProvider:          "template",
		PasswordEnv:               "WORKDAY_PASSWORD",
		KeyringService:            "apply-agent",
		LogMode:                   "dev",
		LogLevel:                  "info",
	}
}

// LoadConfig loads configuration from a JSON file on top of Default.
// Returns an error if the file cannot be read or parsed.
func LoadConfig(path string) (*Config, error) {
	if path == "" {
		return nil, fmt.Errorf("config path is empty")
	}

	// Resolve path relative to current directory if not absolute
	if !filepath.IsAbs(path) {
		cwd, err := os.Getwd()
		if err != nil {
			return nil, fmt.Errorf("failed to get current directory: %w", err)
		}
		path = filepath.Join(cwd, path)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file %s: %w", path, err)
	}

	cfg := Default()
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config JSON: %w", err)
	}

	return &cfg, nil
}

type envBinding struct {
	name  string
	apply func(c *Config, raw string) error
}

func str(dst func(c *Config) *string) func(*Config, string) error {
	return func(c *Config, raw string) error {
		*dst(c) = raw
		return nil
	}
}

func integer(dst func(c *Config) *int) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.Atoi(raw)
		if err != nil {
			return err
		}
		*dst(c) = v
		return nil
	}
}

func boolean(dst func(c *Config) *bool) func(*Config, string) error {
	return func(c *Config, raw string) error {
		v, err := strconv.ParseBool(raw)
		if err != nil {
			return err
		}
		*dst(c) = v
		return nil
	}
}

var envBindings = []envBinding{
	{"DATABASE_URL", str(func(c *Config) *string { return &c.DatabaseURL })},
	{"REDIS_URL", str(func(c *Config) *string { return &c.RedisURL })},
	{"GEMINI_API_KEY", str(func(c *Config) *string { return &c.GeminiAPIKey })},
	{"APPLY_USER_ID", str(func(c *Config) *string { return &c.UserID })},
	{"PROFILE_PATH", str(func(c *Config) *string { return &c.ProfilePath })},
	{"OUTPUT_DIR", str(func(c *Config) *string { return &c.OutputDir })},
	{"RESUME_PDF_PATH", str(func(c *Config) *string { return &c.ResumePDFPath })},
	{"TRANSCRIPT_PDF_PATH", str(func(c *Config) *string { return &c.TranscriptPDFPath })},
	{"DRAFTING_PROVIDER", str(func(c *Config) *string { return &c.DraftingProvider })},
	{"FORM_STORAGE_STATE_PATH", str(func(c *Config) *string { return &c.Submission.StorageStatePath })},
	{"FORM_SUBMIT_MODE", str(func(c *Config) *string { return &c.Submission.Mode })},
	{"FORM_SUBMIT_RETRIES", integer(func(c *Config) *int { return &c.Submission.Retries })},
	{"FORM_SUBMIT_DRY_RUN", boolean(func(c *Config) *bool { return &c.Submission.DryRun })},
	{"FORM_ALLOW_FINAL_SUBMIT", boolean(func(c *Config) *bool { return &c.Submission.AllowFinalSubmit })},
	{"FORM_MAX_STEPS", integer(func(c *Config) *int { return &c.Submission.MaxSteps })},
	{"FORM_FETCH_TIMEOUT_MS", integer(func(c *Config) *int { return &c.Submission.TimeoutMS })},
	{"FORM_FETCH_WAIT_MS", integer(func(c *Config) *int { return &c.Submission.WaitMS })},
	{"FORM_BROWSER_HEADLESS", boolean(func(c *Config) *bool { return &c.Submission.Headless })},
	{"DRAFTING_RATE_LIMIT", integer(func(c *Config) *int { return &c.DraftingRateLimit })},
	{"INGESTION_RATE_LIMIT", integer(func(c *Config) *int { return &c.IngestionRateLimit })},
	{"RATE_LIMIT_WINDOW_SECONDS", integer(func(c *Config) *int { return &c.RateLimitWindowSeconds })},
	{"MAX_APPLICATIONS_PER_COMPANY", integer(func(c *Config) *int { return &c.MaxApplicationsPerCompany })},
	{"BATCH_CONCURRENCY", integer(func(c *Config) *int { return &c.BatchConcurrency })},
	{"LOG_MODE", str(func(c *Config) *string { return &c.LogMode })},
	{"LOG_LEVEL", str(func(c *Config) *string { return &c.LogLevel })},
}

// ApplyEnv overlays values from the environment. lookup is normally os.LookupEnv.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	for _, b := range envBindings {
		raw, ok := lookup(b.name)
		if !ok || strings.TrimSpace(raw) == "" {
			continue
		}
		if err := b.apply(c, strings.TrimSpace(raw)); err != nil {
			return fmt.Errorf("config error: invalid %s=%q: %w", b.name, raw, err)
		}
	}
	return nil
}

// Validate checks that the configuration has valid values.
func (c *Config) Validate() error {
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("config error: %w", err)
	}
	if c.DraftingProvider == "gemini" && c.GeminiAPIKey == "" {
		return fmt.Errorf("config error: 'gemini_api_key' is required when drafting_provider is gemini")
	}
	if c.Submission.AllowFinalSubmit && c.Submission.DryRun {
		return fmt.Errorf("config error: 'allow_final_submit' has no effect while 'dry_run' is enabled")
	}
	if c.Submission.Mode == ModeBrowser && c.Submission.StorageStatePath == "" {
		return fmt.Errorf("config error: 'storage_state_path' is required in browser mode")
	}
	return nil
}

// Load builds the effective configuration: defaults, then the optional JSON file, then the
// environment, then validation.
func Load(path string) (*Config, error) {
	var cfg *Config
	if path != "" {
		loaded, err := LoadConfig(path)
		if err != nil {
			return nil, err
		}
		cfg = loaded
	} else {
		d := Default()
		cfg = &d
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}
