package config

// Default returns a configuration with every field at its default value.
func Default() *Config {
	var cfg Config
	applyDefaults(&cfg)
	return &cfg
}

// applyDefaults fills in zero-valued fields with working defaults.
func applyDefaults(c *Config) {
	if c.Logging.Level == "" {
		c.Logging.Level = "info"
	}
	if c.Logging.Format == "" {
		c.Logging.Format = "json"
	}
	if c.Logging.Output == "" {
		c.Logging.Output = "stdout"
	}

	if c.Coordinator.QueueCapacity == 0 {
		c.Coordinator.QueueCapacity = 1000
	}
	if c.Coordinator.MaxRetries == 0 {
		c.Coordinator.MaxRetries = 3
	}
	if c.Coordinator.DefaultPriority == 0 {
		c.Coordinator.DefaultPriority = 5
	}
	if c.Coordinator.SubmitTimeoutSeconds == 0 {
		c.Coordinator.SubmitTimeoutSeconds = 120
	}
	if c.Coordinator.MonitorIntervalSeconds == 0 {
		c.Coordinator.MonitorIntervalSeconds = 5
	}
	if c.Coordinator.HealthIntervalSeconds == 0 {
		c.Coordinator.HealthIntervalSeconds = 10
	}
	if c.Coordinator.HeartbeatStaleSeconds == 0 {
		c.Coordinator.HeartbeatStaleSeconds = 60
	}
	if c.Coordinator.MinSuccessRate == 0 {
		c.Coordinator.MinSuccessRate = 0.5
	}
	if c.Coordinator.StartupAttempts == 0 {
		c.Coordinator.StartupAttempts = 3
	}
	if c.Coordinator.StartupBackoffSeconds == 0 {
		c.Coordinator.StartupBackoffSeconds = 5
	}
	if c.Coordinator.ThrottleCPUPercent == 0 {
		c.Coordinator.ThrottleCPUPercent = 80
	}
	if c.Coordinator.ThrottleMemoryPercent == 0 {
		c.Coordinator.ThrottleMemoryPercent = 80
	}
	if c.Coordinator.ThrottlePriorityFloor == 0 {
		c.Coordinator.ThrottlePriorityFloor = 7
	}
	if c.Coordinator.ThrottleClearanceFloor == 0 {
		c.Coordinator.ThrottleClearanceFloor = 8
	}

	if c.Evaluator.RateLimitPerWindow == 0 {
		c.Evaluator.RateLimitPerWindow = 60
	}
	if c.Evaluator.RateWindowSeconds == 0 {
		c.Evaluator.RateWindowSeconds = 60
	}
	if c.Evaluator.ComplexityThreshold == 0 {
		c.Evaluator.ComplexityThreshold = 0.7
	}
	if c.Evaluator.TokenThreshold == 0 {
		c.Evaluator.TokenThreshold = 1000
	}

	if c.Translator.RegistrySize == 0 {
		c.Translator.RegistrySize = 256
	}

	if c.Workers.MaxWorkers == 0 {
		c.Workers.MaxWorkers = 4
	}
	if c.Workers.MaxCPUPercent == 0 {
		c.Workers.MaxCPUPercent = 70
	}
	if c.Workers.MaxMemoryMB == 0 {
		c.Workers.MaxMemoryMB = 256
	}
	if c.Workers.TaskTimeoutSeconds == 0 {
		c.Workers.TaskTimeoutSeconds = 20
	}
	if c.Workers.IdleThresholdSeconds == 0 {
		c.Workers.IdleThresholdSeconds = 120
	}
	if c.Workers.SampleRelaxedSeconds == 0 {
		c.Workers.SampleRelaxedSeconds = 10
	}
	if c.Workers.SampleStressedSeconds == 0 {
		c.Workers.SampleStressedSeconds = 5
	}
	if c.Workers.SelectionLoadThreshold == 0 {
		c.Workers.SelectionLoadThreshold = 70
	}

	if c.Sandbox.ImageName == "" {
		c.Sandbox.ImageName = "nexos/runner"
	}
	if c.Sandbox.ImageTag == "" {
		c.Sandbox.ImageTag = "latest"
	}
	if c.Sandbox.PullPolicy == "" {
		c.Sandbox.PullPolicy = "if-not-present"
	}
	if c.Sandbox.WorkspacePath == "" {
		c.Sandbox.WorkspacePath = "~/.nexos/workspace"
	}
	if c.Sandbox.PidsLimit == 0 {
		c.Sandbox.PidsLimit = 50
	}
	if len(c.Sandbox.SecurityOpt) == 0 {
		c.Sandbox.SecurityOpt = []string{"no-new-privileges"}
	}
	if c.Sandbox.CircuitBreakerThreshold == 0 {
		c.Sandbox.CircuitBreakerThreshold = 5
	}
	if c.Sandbox.CircuitBreakerTimeout == 0 {
		c.Sandbox.CircuitBreakerTimeout = 30
	}

	if c.LLM.Provider == "" {
		c.LLM.Provider = "zai"
	}
	if c.LLM.RateCapacity == 0 {
		c.LLM.RateCapacity = 60
	}
	if c.LLM.RateRefillSecond == 0 {
		c.LLM.RateRefillSecond = 1
	}
	if c.LLM.ZAI.BaseURL == "" {
		c.LLM.ZAI.BaseURL = "https://api.z.ai/api/coding/paas/v4"
	}
	if c.LLM.ZAI.Model == "" {
		c.LLM.ZAI.Model = "glm-4.7-flash"
	}
	if c.LLM.ZAI.TimeoutSeconds == 0 {
		c.LLM.ZAI.TimeoutSeconds = 60
	}
	if c.LLM.OpenAI.TimeoutSeconds == 0 {
		c.LLM.OpenAI.TimeoutSeconds = 60
	}

	if c.Maintenance.ReclaimSchedule == "" {
		c.Maintenance.ReclaimSchedule = "@every 1m"
	}
	if c.Maintenance.AuditFlushSchedule == "" {
		c.Maintenance.AuditFlushSchedule = "@every 5m"
	}
	if c.Maintenance.PruneSchedule == "" {
		c.Maintenance.PruneSchedule = "@every 10m"
	}

	if c.Audit.Capacity == 0 {
		c.Audit.Capacity = 10000
	}

	if c.Metrics.ListenAddr == "" {
		c.Metrics.ListenAddr = ":9091"
	}
}
