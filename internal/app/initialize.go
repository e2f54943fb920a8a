package app

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/aatumaykin/nexos/internal/agent"
	"github.com/aatumaykin/nexos/internal/audit"
	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/coordinator"
	"github.com/aatumaykin/nexos/internal/cron"
	"github.com/aatumaykin/nexos/internal/evaluator"
	"github.com/aatumaykin/nexos/internal/llm"
	"github.com/aatumaykin/nexos/internal/logger"
	"github.com/aatumaykin/nexos/internal/memory"
	"github.com/aatumaykin/nexos/internal/sandbox"
	"github.com/aatumaykin/nexos/internal/task"
	"github.com/aatumaykin/nexos/internal/translator"
	"github.com/aatumaykin/nexos/internal/workers"
	"github.com/aatumaykin/nexos/internal/workspace"
)

const metricsNamespace = "nexos"

// conversationHistoryLimit bounds per-session history in the in-process
// store.
const conversationHistoryLimit = 100

// Initialize constructs every component. Nothing is started yet; Start
// launches the loops after a successful build.
func (a *App) Initialize(ctx context.Context) error {
	a.registry = prometheus.NewRegistry()
	a.registry.MustRegister(collectors.NewGoCollector())

	a.auditLog = audit.New(a.config.Audit.Capacity, a.config.Audit.FilePath, a.logger)

	eval, err := evaluator.New(a.config.Evaluator, a.auditLog, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create evaluator: %w", err)
	}
	a.evaluator = eval

	trans, err := translator.New(a.config.Translator, a.logger)
	if err != nil {
		return fmt.Errorf("failed to create translator: %w", err)
	}
	a.translator = trans

	ws := workspace.New(a.config.Sandbox.WorkspacePath)
	if err := ws.EnsureDir(); err != nil {
		return fmt.Errorf("failed to prepare workspace: %w", err)
	}
	a.workspace = ws

	sandboxCfg := buildSandboxConfig(a.config, ws.Path())
	client := a.sandboxClient
	if client == nil {
		client, err = sandbox.NewMobyClient(sandboxCfg)
		if err != nil {
			return fmt.Errorf("failed to create docker client: %w", err)
		}
	}
	a.sandbox = sandbox.New(sandboxCfg, client, sandbox.NewMetrics(metricsNamespace, a.registry), a.logger)

	a.pool = workers.NewPool(a.config.Workers, a.sandbox,
		workers.NewPoolMetrics(metricsNamespace, a.registry), a.logger)

	a.provider = a.providerOverride
	if a.provider == nil {
		a.provider, err = buildProvider(a.config.LLM, a.logger)
		if err != nil {
			return err
		}
	}

	history := memory.NewBestEffort(
		memory.NewInMemoryStore(a.provider, conversationHistoryLimit), a.logger)

	coord, err := coordinator.New(a.config.Coordinator, coordinator.Deps{
		Queue:      task.NewQueue(),
		Evaluator:  a.evaluator,
		Translator: a.translator,
		Pool:       a.pool,
		Provider:   a.provider,
		History:    history,
		Registry:   agent.NewRegistry(a.logger),
		Metrics:    coordinator.NewMetrics(metricsNamespace, a.registry),
		Logger:     a.logger,
		Bootstrap:  a.sandbox.Prepare,
	})
	if err != nil {
		return fmt.Errorf("failed to create coordinator: %w", err)
	}
	a.coordinator = coord

	if err := a.registerMaintenance(); err != nil {
		return err
	}

	if a.config.Metrics.Enabled {
		mux := http.NewServeMux()
		mux.Handle("/metrics", promhttp.HandlerFor(a.registry, promhttp.HandlerOpts{}))
		a.metricsSrv = &http.Server{
			Addr:              a.config.Metrics.ListenAddr,
			Handler:           mux,
			ReadHeaderTimeout: 5 * time.Second,
		}
	}

	return nil
}

// Start launches the worker pool sampler, the coordinator loops and the
// maintenance scheduler.
func (a *App) Start(ctx context.Context) error {
	a.pool.Start()

	if err := a.coordinator.Start(ctx); err != nil {
		return fmt.Errorf("coordinator startup failed: %w", err)
	}

	a.scheduler.Start()

	a.mu.Lock()
	a.started = true
	a.mu.Unlock()
	return nil
}

// registerMaintenance wires the background upkeep jobs.
func (a *App) registerMaintenance() error {
	a.scheduler = cron.NewScheduler(a.logger)

	jobs := []struct {
		name     string
		schedule string
		fn       func()
	}{
		{"reclaim_idle_workers", a.config.Maintenance.ReclaimSchedule, func() {
			ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
			defer cancel()
			a.pool.ReclaimIdle(ctx)
		}},
		{"flush_audit_log", a.config.Maintenance.AuditFlushSchedule, func() {
			if err := a.auditLog.Flush(); err != nil {
				a.logger.Error("audit flush failed", err)
			}
		}},
		{"prune_rate_limits", a.config.Maintenance.PruneSchedule, a.evaluator.Prune},
	}

	for _, job := range jobs {
		if err := a.scheduler.Add(job.name, job.schedule, job.fn); err != nil {
			return fmt.Errorf("failed to schedule maintenance: %w", err)
		}
	}
	return nil
}

// buildSandboxConfig merges the isolation settings with the per-task
// resource quotas, which live under [workers]. workspacePath is the
// already-expanded host directory to bind-mount.
func buildSandboxConfig(cfg *config.Config, workspacePath string) sandbox.Config {
	return sandbox.Config{
		ImageName:               cfg.Sandbox.ImageName,
		ImageTag:                cfg.Sandbox.ImageTag,
		PullPolicy:              cfg.Sandbox.PullPolicy,
		WorkspacePath:           workspacePath,
		MemoryLimitMB:           cfg.Workers.MaxMemoryMB,
		CPULimit:                cfg.Workers.MaxCPUPercent / 100,
		PidsLimit:               cfg.Sandbox.PidsLimit,
		SecurityOpt:             cfg.Sandbox.SecurityOpt,
		ReadonlyRootfs:          cfg.Sandbox.ReadonlyRootfs,
		CircuitBreakerThreshold: cfg.Sandbox.CircuitBreakerThreshold,
		CircuitBreakerTimeout:   time.Duration(cfg.Sandbox.CircuitBreakerTimeout) * time.Second,
	}
}

// buildProvider assembles the LLM stack: named providers behind the
// failover wrapper with a token-bucket rate limiter in front.
func buildProvider(cfg config.LLMConfig, log *logger.Logger) (llm.Provider, error) {
	primary, err := providerByName(cfg.Provider, cfg, log)
	if err != nil {
		return nil, err
	}

	var secondary llm.Provider
	if cfg.FallbackProvider != "" {
		secondary, err = providerByName(cfg.FallbackProvider, cfg, log)
		if err != nil {
			return nil, err
		}
	}

	limiter := llm.NewTokenBucketRateLimiter(cfg.RateCapacity,
		time.Duration(cfg.RateRefillSecond)*time.Second, 1)

	return llm.NewFailoverProvider(primary, secondary, limiter, log), nil
}

func providerByName(name string, cfg config.LLMConfig, log *logger.Logger) (llm.Provider, error) {
	switch name {
	case "zai":
		return llm.NewZAIProvider(cfg.ZAI, log), nil
	case "openai":
		return llm.NewOpenAIProvider(cfg.OpenAI, log), nil
	case "mock":
		return llm.NewEchoProvider(), nil
	default:
		return nil, fmt.Errorf("unsupported LLM provider: %s", name)
	}
}
