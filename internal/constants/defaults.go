// Package constants holds CLI-level defaults shared across commands.
package constants

const (
	// DefaultConfigPath is used when no --config flag is given.
	DefaultConfigPath = "config.toml"

	// DefaultSessionID groups submissions that name no session.
	DefaultSessionID = "default"

	// DefaultPriority is the priority for submissions that name none.
	// Priorities run 1 (lowest) to 10 (highest).
	DefaultPriority = 5
)
