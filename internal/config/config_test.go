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
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))
	return path
}

func TestLoad_Defaults(t *testing.T) {
	path := writeConfig(t, `
[llm.zai]
api_key = "test-api-key-12345"
`)

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, "info", cfg.Logging.Level)
	assert.Equal(t, "json", cfg.Logging.Format)
	assert.Equal(t, 3, cfg.Coordinator.MaxRetries)
	assert.Equal(t, 5, cfg.Coordinator.DefaultPriority)
	assert.Equal(t, 4, cfg.Workers.MaxWorkers)
	assert.Equal(t, float64(70), cfg.Workers.MaxCPUPercent)
	assert.Equal(t, 256, cfg.Workers.MaxMemoryMB)
	assert.Equal(t, 20, cfg.Workers.TaskTimeoutSeconds)
	assert.Equal(t, 120, cfg.Workers.IdleThresholdSeconds)
	assert.Equal(t, 60, cfg.Evaluator.RateLimitPerWindow)
	assert.Equal(t, 0.7, cfg.Evaluator.ComplexityThreshold)
	assert.Equal(t, 1000, cfg.Evaluator.TokenThreshold)
	assert.Equal(t, "nexos/runner", cfg.Sandbox.ImageName)
	assert.Equal(t, []string{"no-new-privileges"}, cfg.Sandbox.SecurityOpt)
	assert.Equal(t, "zai", cfg.LLM.Provider)
}

func TestLoad_EnvExpansion(t *testing.T) {
	t.Setenv("NEXOS_TEST_KEY", "expanded-key-9876543210")

	path := writeConfig(t, `
[llm.zai]
api_key = "${NEXOS_TEST_KEY}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "expanded-key-9876543210", cfg.LLM.ZAI.APIKey)
}

func TestLoad_EnvExpansionDefault(t *testing.T) {
	path := writeConfig(t, `
[llm.zai]
api_key = "${NEXOS_UNSET_VAR:fallback-key-12345}"
`)

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "fallback-key-12345", cfg.LLM.ZAI.APIKey)
}

func TestLoad_MissingFile(t *testing.T) {
	_, err := Load("/nonexistent/config.toml")
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantErr bool
	}{
		{
			name:    "valid config",
			mutate:  func(c *Config) {},
			wantErr: false,
		},
		{
			name:    "invalid log level",
			mutate:  func(c *Config) { c.Logging.Level = "verbose" },
			wantErr: true,
		},
		{
			name:    "missing api key",
			mutate:  func(c *Config) { c.LLM.ZAI.APIKey = "" },
			wantErr: true,
		},
		{
			name:    "short api key",
			mutate:  func(c *Config) { c.LLM.ZAI.APIKey = "short" },
			wantErr: true,
		},
		{
			name:    "mock provider needs no key",
			mutate:  func(c *Config) { c.LLM.Provider = "mock"; c.LLM.ZAI.APIKey = "" },
			wantErr: false,
		},
		{
			name:    "unknown provider",
			mutate:  func(c *Config) { c.LLM.Provider = "cohere" },
			wantErr: true,
		},
		{
			name:    "fallback same as primary",
			mutate:  func(c *Config) { c.LLM.FallbackProvider = "zai" },
			wantErr: true,
		},
		{
			name:    "priority out of range",
			mutate:  func(c *Config) { c.Coordinator.DefaultPriority = 11 },
			wantErr: true,
		},
		{
			name:    "path traversal in workspace",
			mutate:  func(c *Config) { c.Sandbox.WorkspacePath = "/tmp/../etc" },
			wantErr: true,
		},
		{
			name:    "invalid pull policy",
			mutate:  func(c *Config) { c.Sandbox.PullPolicy = "sometimes" },
			wantErr: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Config{}
			applyDefaults(&cfg)
			cfg.LLM.ZAI.APIKey = "test-api-key-12345"
			cfg.Sandbox.WorkspacePath = "/tmp/nexos"
			tt.mutate(&cfg)

			errs := cfg.Validate()
			if tt.wantErr {
				assert.NotEmpty(t, errs)
			} else {
				assert.Empty(t, errs)
			}
		})
	}
}

func TestMaskedCopy(t *testing.T) {
	cfg := Config{}
	applyDefaults(&cfg)
	cfg.LLM.ZAI.APIKey = "sk-verysecretapikey1234"

	masked := cfg.MaskedCopy()
	assert.NotEqual(t, cfg.LLM.ZAI.APIKey, masked.LLM.ZAI.APIKey)
	assert.Contains(t, masked.LLM.ZAI.APIKey, "*")
	// Original untouched.
	assert.Equal(t, "sk-verysecretapikey1234", cfg.LLM.ZAI.APIKey)
}

func TestMaskSecret(t *testing.T) {
	assert.Equal(t, "", maskSecret(""))
	assert.Equal(t, "***", maskSecret("short"))
	assert.Equal(t, "abcd****wxyz", maskSecret("abcdefghwxyz"))
}
