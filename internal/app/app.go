// Package app wires the orchestration components together and manages their
// lifecycle. Every dependency is constructed here and passed down
// explicitly; no component reaches for a global.
package app

import (
	"context"
	"net/http"
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/sync/errgroup"

	"github.com/aatumaykin/nexos/internal/audit"
	"github.com/aatumaykin/nexos/internal/config"
	"github.com/aatumaykin/nexos/internal/coordinator"
	"github.com/aatumaykin/nexos/internal/cron"
	"github.com/aatumaykin/nexos/internal/evaluator"
	"github.com/aatumaykin/nexos/internal/llm"
	"github.com/aatumaykin/nexos/internal/logger"
	"github.com/aatumaykin/nexos/internal/sandbox"
	"github.com/aatumaykin/nexos/internal/translator"
	"github.com/aatumaykin/nexos/internal/workers"
	"github.com/aatumaykin/nexos/internal/workspace"
)

// App holds the assembled components and manages their lifecycle.
type App struct {
	config *config.Config
	logger *logger.Logger

	registry    *prometheus.Registry
	auditLog    *audit.Log
	evaluator   *evaluator.Evaluator
	translator  *translator.Translator
	workspace   *workspace.Workspace
	sandbox     *sandbox.Sandbox
	pool        *workers.Pool
	provider    llm.Provider
	coordinator *coordinator.Coordinator
	scheduler   *cron.Scheduler
	metricsSrv  *http.Server

	// Test seams: when set, Initialize uses these instead of constructing
	// the real Docker client or HTTP provider.
	sandboxClient    sandbox.Client
	providerOverride llm.Provider

	mu      sync.Mutex
	started bool
}

// Option customizes construction.
type Option func(*App)

// WithSandboxClient substitutes the container runtime client.
func WithSandboxClient(c sandbox.Client) Option {
	return func(a *App) { a.sandboxClient = c }
}

// WithProvider substitutes the LLM provider.
func WithProvider(p llm.Provider) Option {
	return func(a *App) { a.providerOverride = p }
}

// New creates an unstarted application. Components are built in
// Initialize.
func New(cfg *config.Config, log *logger.Logger, opts ...Option) *App {
	a := &App{
		config: cfg,
		logger: log,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Run initializes and starts everything, then blocks until the context is
// cancelled and shuts down in reverse order.
func (a *App) Run(ctx context.Context) error {
	if err := a.Initialize(ctx); err != nil {
		return err
	}
	if err := a.Start(ctx); err != nil {
		return err
	}

	a.logger.Info("nexos is running")

	g, gctx := errgroup.WithContext(ctx)

	if a.metricsSrv != nil {
		g.Go(func() error {
			err := a.metricsSrv.ListenAndServe()
			if err == http.ErrServerClosed {
				return nil
			}
			return err
		})
	}

	g.Go(func() error {
		<-gctx.Done()
		a.Shutdown()
		return nil
	})

	return g.Wait()
}

// Coordinator exposes the task entrypoint for the CLI.
func (a *App) Coordinator() *coordinator.Coordinator {
	return a.coordinator
}

// Audit exposes the audit log for inspection commands.
func (a *App) Audit() *audit.Log {
	return a.auditLog
}
