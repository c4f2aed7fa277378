package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestDefault_IsSafe(t *testing.T) {
	cfg := Default()

	assert.Equal(t, ModeMock, cfg.Submission.Mode)
	assert.Equal(t, 2, cfg.Submission.Retries)
	assert.True(t, cfg.Submission.DryRun)
	assert.False(t, cfg.Submission.AllowFinalSubmit)
	assert.Equal(t, 12, cfg.Submission.MaxSteps)
	assert.Equal(t, 120000, cfg.Submission.TimeoutMS)
	assert.Equal(t, 2000, cfg.Submission.WaitMS)
	assert.True(t, cfg.Submission.Headless)
	assert.Equal(t, 120, cfg.DraftingRateLimit)
	assert.Equal(t, 60, cfg.RateLimitWindowSeconds)
	assert.Equal(t, 2, cfg.MaxApplicationsPerCompany)
	assert.NoError(t, cfg.Validate())
}

func TestLoadConfig_ValidJSON(t *testing.T) {
	path := writeConfig(t, `{
		"user_id": "u-1",
		"database_url": "postgres://localhost/apply",
		"submission": {"mode": "browser", "retries": 0, "dry_run": false},
		"max_applications_per_company": 3
	}`)

	cfg, err := LoadConfig(path)
	require.NoError(t, err)
	require.NotNil(t, cfg)

	assert.Equal(t, "u-1", cfg.UserID)
	assert.Equal(t, "postgres://localhost/apply", cfg.DatabaseURL)
	assert.Equal(t, ModeBrowser, cfg.Submission.Mode)
	assert.Equal(t, 0, cfg.Submission.Retries)
	assert.False(t, cfg.Submission.DryRun)
	assert.Equal(t, 3, cfg.MaxApplicationsPerCompany)
	// untouched keys keep defaults
	assert.Equal(t, 12, cfg.Submission.MaxSteps)
	assert.True(t, cfg.Submission.Headless)
	assert.Equal(t, "agent", cfg.ActorID)
}

func TestLoadConfig_InvalidJSON(t *testing.T) {
	cfg, err := LoadConfig(writeConfig(t, `{ invalid json }`))
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to parse config JSON")
}

func TestLoadConfig_FileNotFound(t *testing.T) {
	cfg, err := LoadConfig("/nonexistent/path/config.json")
	assert.Error(t, err)
	assert.Nil(t, cfg)
	assert.Contains(t, err.Error(), "failed to read config file")
}

func TestLoadConfig_EmptyPath(t *testing.T) {
	cfg, err := LoadConfig("")
	assert.Error(t, err)
	assert.Nil(t, cfg)
}

func TestApplyEnv(t *testing.T) {
	env := map[string]string{
		"FORM_SUBMIT_MODE":             "browser",
		"FORM_SUBMIT_RETRIES":          "4",
		"FORM_SUBMIT_DRY_RUN":          "false",
		"FORM_ALLOW_FINAL_SUBMIT":      "true",
		"MAX_APPLICATIONS_PER_COMPANY": "1",
		"REDIS_URL":                    "redis://localhost:6379/0",
		"LOG_LEVEL":                    "  ",
	}
	lookup := func(k string) (string, bool) {
		v, ok := env[k]
		return v, ok
	}

	cfg := Default()
	require.NoError(t, cfg.ApplyEnv(lookup))

	assert.Equal(t, ModeBrowser, cfg.Submission.Mode)
	assert.Equal(t, 4, cfg.Submission.Retries)
	assert.False(t, cfg.Submission.DryRun)
	assert.True(t, cfg.Submission.AllowFinalSubmit)
	assert.Equal(t, 1, cfg.MaxApplicationsPerCompany)
	assert.Equal(t, "redis://localhost:6379/0", cfg.RedisURL)
	assert.Equal(t, "info", cfg.LogLevel)
	assert.NoError(t, cfg.Validate())
}

func TestApplyEnv_InvalidNumber(t *testing.T) {
	cfg := Default()
	err := cfg.ApplyEnv(func(k string) (string, bool) {
		if k == "FORM_MAX_STEPS" {
			return "many", true
		}
		return "", false
	})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "FORM_MAX_STEPS")
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"unknown mode", func(c *Config) { c.Submission.Mode = "turbo" }, "Mode"},
		{"negative retries", func(c *Config) { c.Submission.Retries = -1 }, "Retries"},
		{"zero steps", func(c *Config) { c.Submission.MaxSteps = 0 }, "MaxSteps"},
		{"gemini without key", func(c *Config) { c.DraftingProvider = "gemini" }, "gemini_api_key"},
		{"final submit with dry run", func(c *Config) { c.Submission.AllowFinalSubmit = true }, "allow_final_submit"},
		{"browser without snapshot", func(c *Config) {
			c.Submission.Mode = ModeBrowser
			c.Submission.StorageStatePath = ""
		}, "storage_state_path"},
		{"empty user", func(c *Config) { c.UserID = "" }, "UserID"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default()
			tt.mutate(&cfg)
			err := cfg.Validate()
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.wantErr)
		})
	}
}

func TestLoad_NoFile(t *testing.T) {
	t.Setenv("FORM_SUBMIT_RETRIES", "1")
	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 1, cfg.Submission.Retries)
}
