// Package config provides configuration loading and validation for Nexos.
// It supports TOML configuration files with environment variable expansion,
// default values, and comprehensive validation.
//
// Configuration structure:
//   - [logging]: Logging level, format, and output
//   - [coordinator]: Queue sizing, retry policy, monitor/health loop intervals
//   - [evaluator]: Rate limiting and routing thresholds
//   - [translator]: Script registry sizing
//   - [workers]: Worker pool sizing and per-task resource quotas
//   - [sandbox]: Docker image and isolation settings for script execution
//   - [llm]: LLM provider configuration (Z.ai primary, optional fallback)
//   - [maintenance]: Cron schedules for idle reclamation and audit flushing
//   - [audit]: Audit log retention
//   - [metrics]: Prometheus scrape endpoint
//
// Environment variables can be referenced using ${VAR} or ${VAR:default}
// syntax. For example: api_key = "${ZAI_API_KEY}"
package config

// Config represents the main application configuration.
type Config struct {
	Logging     LoggingConfig     `toml:"logging"`
	Coordinator CoordinatorConfig `toml:"coordinator"`
	Evaluator   EvaluatorConfig   `toml:"evaluator"`
	Translator  TranslatorConfig  `toml:"translator"`
	Workers     WorkersConfig     `toml:"workers"`
	Sandbox     SandboxConfig     `toml:"sandbox"`
	LLM         LLMConfig         `toml:"llm"`
	Maintenance MaintenanceConfig `toml:"maintenance"`
	Audit       AuditConfig       `toml:"audit"`
	Metrics     MetricsConfig     `toml:"metrics"`
}

// LoggingConfig controls the structured logger.
type LoggingConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"`
	Output string `toml:"output"`
}

// CoordinatorConfig controls the task queue and supervision loops.
type CoordinatorConfig struct {
	QueueCapacity          int     `toml:"queue_capacity"`
	MaxRetries             int     `toml:"max_retries"`
	DefaultPriority        int     `toml:"default_priority"`
	SubmitTimeoutSeconds   int     `toml:"submit_timeout_seconds"`
	MonitorIntervalSeconds int     `toml:"monitor_interval_seconds"`
	HealthIntervalSeconds  int     `toml:"health_interval_seconds"`
	HeartbeatStaleSeconds  int     `toml:"heartbeat_stale_seconds"`
	MinSuccessRate         float64 `toml:"min_success_rate"`
	StartupAttempts        int     `toml:"startup_attempts"`
	StartupBackoffSeconds  int     `toml:"startup_backoff_seconds"`
	ThrottleCPUPercent     float64 `toml:"throttle_cpu_percent"`
	ThrottleMemoryPercent  float64 `toml:"throttle_memory_percent"`
	ThrottlePriorityFloor  int     `toml:"throttle_priority_floor"`
	ThrottleClearanceFloor int     `toml:"throttle_clearance_floor"`
}

// EvaluatorConfig controls security screening and routing.
type EvaluatorConfig struct {
	RateLimitPerWindow  int     `toml:"rate_limit_per_window"`
	RateWindowSeconds   int     `toml:"rate_window_seconds"`
	ComplexityThreshold float64 `toml:"complexity_threshold"`
	TokenThreshold      int     `toml:"token_threshold"`
}

// TranslatorConfig controls script generation.
type TranslatorConfig struct {
	RegistrySize int `toml:"registry_size"`
}

// WorkersConfig controls the worker pool and per-task quotas.
type WorkersConfig struct {
	MaxWorkers             int     `toml:"max_workers"`
	MaxCPUPercent          float64 `toml:"max_cpu_percent"`
	MaxMemoryMB            int     `toml:"max_memory_mb"`
	TaskTimeoutSeconds     int     `toml:"task_timeout_seconds"`
	IdleThresholdSeconds   int     `toml:"idle_threshold_seconds"`
	SampleRelaxedSeconds   int     `toml:"sample_relaxed_seconds"`
	SampleStressedSeconds  int     `toml:"sample_stressed_seconds"`
	SelectionLoadThreshold float64 `toml:"selection_load_threshold"`
}

// SandboxConfig controls the Docker isolation boundary for script execution.
type SandboxConfig struct {
	ImageName               string   `toml:"image_name"`
	ImageTag                string   `toml:"image_tag"`
	PullPolicy              string   `toml:"pull_policy"`
	WorkspacePath           string   `toml:"workspace_path"`
	PidsLimit               int64    `toml:"pids_limit"`
	SecurityOpt             []string `toml:"security_opt"`
	ReadonlyRootfs          bool     `toml:"readonly_rootfs"`
	CircuitBreakerThreshold int      `toml:"circuit_breaker_threshold"`
	CircuitBreakerTimeout   int      `toml:"circuit_breaker_timeout"`
}

// LLMConfig holds provider configuration for the remote route.
type LLMConfig struct {
	Provider         string       `toml:"provider"`
	FallbackProvider string       `toml:"fallback_provider"`
	RateCapacity     int          `toml:"rate_capacity"`
	RateRefillSecond int          `toml:"rate_refill_seconds"`
	ZAI              ZAIConfig    `toml:"zai"`
	OpenAI           OpenAIConfig `toml:"openai"`
}

// ZAIConfig holds Z.ai provider settings.
type ZAIConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// OpenAIConfig holds OpenAI-compatible provider settings.
type OpenAIConfig struct {
	APIKey         string `toml:"api_key"`
	BaseURL        string `toml:"base_url"`
	Model          string `toml:"model"`
	TimeoutSeconds int    `toml:"timeout_seconds"`
}

// MaintenanceConfig holds cron schedules for background upkeep.
type MaintenanceConfig struct {
	ReclaimSchedule    string `toml:"reclaim_schedule"`
	AuditFlushSchedule string `toml:"audit_flush_schedule"`
	PruneSchedule      string `toml:"prune_schedule"`
}

// AuditConfig controls the audit log.
type AuditConfig struct {
	Capacity int    `toml:"capacity"`
	FilePath string `toml:"file_path"`
}

// MetricsConfig controls the Prometheus scrape endpoint.
type MetricsConfig struct {
	Enabled    bool   `toml:"enabled"`
	ListenAddr string `toml:"listen_addr"`
}
