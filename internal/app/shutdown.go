package app

import (
	"context"
	"time"
)

// shutdownTimeout bounds the entire teardown sequence.
const shutdownTimeout = 30 * time.Second

// Shutdown stops the components in reverse startup order: no new work, then
// drain, then release containers, then flush state. Idempotent.
func (a *App) Shutdown() {
	a.mu.Lock()
	if !a.started {
		a.mu.Unlock()
		return
	}
	a.started = false
	a.mu.Unlock()

	a.logger.Info("shutting down")

	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if a.metricsSrv != nil {
		if err := a.metricsSrv.Shutdown(ctx); err != nil {
			a.logger.Error("metrics server shutdown failed", err)
		}
	}

	a.scheduler.Stop(ctx)
	a.coordinator.Shutdown(ctx)
	a.pool.Shutdown(ctx)

	if err := a.sandbox.Close(ctx); err != nil {
		a.logger.Error("sandbox close failed", err)
	}

	if err := a.auditLog.Flush(); err != nil {
		a.logger.Error("final audit flush failed", err)
	}

	a.logger.Info("shutdown complete")
}
