package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML configuration file, applies defaults and
// expands environment variables.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	var cfg Config
	if err := toml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	applyDefaults(&cfg)

	if err := expandEnvVars(&cfg); err != nil {
		return nil, fmt.Errorf("failed to expand environment variables: %w", err)
	}

	return &cfg, nil
}

// Validate checks the configuration and returns all problems found.
func (c *Config) Validate() []error {
	var errors []error

	if c.Logging.Level == "" {
		errors = append(errors, fmt.Errorf("logging.level is required"))
	} else {
		validLevels := map[string]bool{"debug": true, "info": true, "warn": true, "error": true}
		if !validLevels[strings.ToLower(c.Logging.Level)] {
			errors = append(errors, fmt.Errorf("invalid logging.level: %s (expected: debug, info, warn, error)", c.Logging.Level))
		}
	}

	if c.Logging.Format == "" {
		errors = append(errors, fmt.Errorf("logging.format is required"))
	} else {
		validFormats := map[string]bool{"json": true, "text": true}
		if !validFormats[strings.ToLower(c.Logging.Format)] {
			errors = append(errors, fmt.Errorf("invalid logging.format: %s (expected: json, text)", c.Logging.Format))
		}
	}

	if c.Coordinator.MaxRetries < 1 {
		errors = append(errors, fmt.Errorf("coordinator.max_retries must be at least 1"))
	}
	if c.Coordinator.DefaultPriority < 1 || c.Coordinator.DefaultPriority > 10 {
		errors = append(errors, fmt.Errorf("coordinator.default_priority must be in [1,10], got %d", c.Coordinator.DefaultPriority))
	}

	if c.Evaluator.RateLimitPerWindow < 1 {
		errors = append(errors, fmt.Errorf("evaluator.rate_limit_per_window must be at least 1"))
	}
	if c.Evaluator.ComplexityThreshold <= 0 || c.Evaluator.ComplexityThreshold > 1 {
		errors = append(errors, fmt.Errorf("evaluator.complexity_threshold must be in (0,1], got %f", c.Evaluator.ComplexityThreshold))
	}

	if c.Workers.MaxWorkers < 1 {
		errors = append(errors, fmt.Errorf("workers.max_workers must be at least 1"))
	}
	if c.Workers.MaxMemoryMB < 16 {
		errors = append(errors, fmt.Errorf("workers.max_memory_mb must be at least 16, got %d", c.Workers.MaxMemoryMB))
	}

	if c.Sandbox.ImageName == "" {
		errors = append(errors, fmt.Errorf("sandbox.image_name is required"))
	}
	if c.Sandbox.WorkspacePath == "" {
		errors = append(errors, fmt.Errorf("sandbox.workspace_path is required"))
	} else if err := validatePath(c.Sandbox.WorkspacePath, "sandbox.workspace_path"); err != nil {
		errors = append(errors, err)
	}
	validPullPolicies := map[string]bool{"always": true, "if-not-present": true, "never": true}
	if !validPullPolicies[c.Sandbox.PullPolicy] {
		errors = append(errors, fmt.Errorf("invalid sandbox.pull_policy: %s (expected: always, if-not-present, never)", c.Sandbox.PullPolicy))
	}

	switch c.LLM.Provider {
	case "zai":
		if c.LLM.ZAI.APIKey == "" {
			errors = append(errors, fmt.Errorf("llm.zai.api_key is required when provider is 'zai'"))
		} else if err := validateAPIKey(c.LLM.ZAI.APIKey, "llm.zai.api_key"); err != nil {
			errors = append(errors, err)
		}
	case "openai":
		if c.LLM.OpenAI.APIKey == "" {
			errors = append(errors, fmt.Errorf("llm.openai.api_key is required when provider is 'openai'"))
		} else if err := validateAPIKey(c.LLM.OpenAI.APIKey, "llm.openai.api_key"); err != nil {
			errors = append(errors, err)
		}
	case "mock":
		// No credentials needed; used in tests and offline runs.
	case "":
		errors = append(errors, fmt.Errorf("llm.provider is required"))
	default:
		errors = append(errors, fmt.Errorf("invalid llm.provider: %s (expected: zai, openai, mock)", c.LLM.Provider))
	}

	if c.LLM.FallbackProvider != "" {
		switch c.LLM.FallbackProvider {
		case "zai", "openai", "mock":
			if c.LLM.FallbackProvider == c.LLM.Provider {
				errors = append(errors, fmt.Errorf("llm.fallback_provider must differ from llm.provider"))
			}
		default:
			errors = append(errors, fmt.Errorf("invalid llm.fallback_provider: %s", c.LLM.FallbackProvider))
		}
	}

	if c.Audit.FilePath != "" {
		if err := validatePath(c.Audit.FilePath, "audit.file_path"); err != nil {
			errors = append(errors, err)
		}
	}

	return errors
}

func validateAPIKey(key, fieldName string) error {
	if key == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if len(key) < 10 {
		return fmt.Errorf("%s is too short (minimum 10 characters, got %d)", fieldName, len(key))
	}

	return nil
}

func validatePath(path, fieldName string) error {
	if path == "" {
		return fmt.Errorf("%s cannot be empty", fieldName)
	}

	if strings.HasPrefix(path, "~") {
		return nil
	}

	if strings.Contains(path, "..") {
		return fmt.Errorf("%s contains potentially dangerous path traversal sequence", fieldName)
	}

	return nil
}

// expandEnvVars expands ${VAR} references and ~ prefixes in the configuration.
func expandEnvVars(c *Config) error {
	if strings.HasPrefix(c.LLM.ZAI.APIKey, "${") {
		c.LLM.ZAI.APIKey = expandEnv(c.LLM.ZAI.APIKey)
	}
	if strings.HasPrefix(c.LLM.OpenAI.APIKey, "${") {
		c.LLM.OpenAI.APIKey = expandEnv(c.LLM.OpenAI.APIKey)
	}

	if strings.HasPrefix(c.Sandbox.WorkspacePath, "${") {
		c.Sandbox.WorkspacePath = expandEnv(c.Sandbox.WorkspacePath)
	}
	c.Sandbox.WorkspacePath = expandHome(c.Sandbox.WorkspacePath)

	if strings.HasPrefix(c.Audit.FilePath, "${") {
		c.Audit.FilePath = expandEnv(c.Audit.FilePath)
	}
	c.Audit.FilePath = expandHome(c.Audit.FilePath)

	return nil
}

// expandEnv expands a ${VAR:default} reference.
func expandEnv(s string) string {
	if !strings.HasPrefix(s, "${") {
		return s
	}

	end := strings.Index(s, "}")
	if end == -1 {
		return s
	}

	content := s[2:end]
	if parts := strings.SplitN(content, ":", 2); len(parts) == 2 {
		key := parts[0]
		defaultVal := parts[1]
		if val := os.Getenv(key); val != "" {
			return val
		}
		return defaultVal
	}

	return os.Getenv(s[2:end])
}

// expandHome expands a leading ~ in a path.
func expandHome(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err != nil {
			return path
		}
		return filepath.Join(home, path[2:])
	}
	return path
}
