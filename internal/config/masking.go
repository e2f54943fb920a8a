package config

import (
	"strings"
)

// maskSecret masks a secret, keeping only the first 4 and last 4 characters.
func maskSecret(secret string) string {
	if secret == "" {
		return ""
	}

	if len(secret) < 8 {
		return "***"
	}

	prefix := secret[:4]
	suffix := secret[len(secret)-4:]
	masked := strings.Repeat("*", len(secret)-8)

	return prefix + masked + suffix
}

// MaskedCopy returns a copy of the configuration with credentials masked,
// safe for logging and for the `config show` command.
func (c *Config) MaskedCopy() Config {
	masked := *c
	masked.LLM.ZAI.APIKey = maskSecret(c.LLM.ZAI.APIKey)
	masked.LLM.OpenAI.APIKey = maskSecret(c.LLM.OpenAI.APIKey)
	return masked
}

// ValidationError represents a validation failure with field context.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}
