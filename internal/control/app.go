// Package control wires the resilience layer together and owns the
// application lifecycle.
package control

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/careops/caresync/internal/batch"
	"github.com/careops/caresync/internal/cache"
	"github.com/careops/caresync/internal/core/config"
	"github.com/careops/caresync/internal/core/domain"
	"github.com/careops/caresync/internal/netmon"
	"github.com/careops/caresync/internal/notify"
	"github.com/careops/caresync/internal/optimistic"
	"github.com/careops/caresync/internal/remote"
	"github.com/careops/caresync/internal/retry"
)

// App is the assembled client: monitor, orchestrator, coordinator, batch
// executor, cache, and the status server.
type App struct {
	cfg        *config.AppConfig
	basePolicy retry.Policy
	monitor    *netmon.Monitor
	orch       *retry.Orchestrator
	store      cache.Store
	coord      *optimistic.Coordinator
	exec       *batch.Executor
	client     *remote.Client
	sink       notify.Sink
	server     *Server

	cancelRun   context.CancelFunc
	unsubscribe func()
}

// NewApp creates an App with all dependencies initialized.
func NewApp(cfg *config.AppConfig) (*App, error) {
	var store cache.Store
	switch cfg.Cache.Backend {
	case "", "memory":
		store = cache.NewMemory()
		slog.Info("Using memory cache")
	case "redis":
		var err error
		store, err = cache.NewRedis(cfg.Cache.Redis)
		if err != nil {
			return nil, fmt.Errorf("failed to init redis cache: %w", err)
		}
		slog.Info("Using redis cache")
	default:
		return nil, fmt.Errorf("unknown cache backend %q", cfg.Cache.Backend)
	}

	monitor := netmon.NewMonitor(cfg.Network)
	orch := retry.NewOrchestrator(monitor)
	sink := notify.SlogSink{}

	basePolicy := retry.DefaultPolicy
	if cfg.Retry.MaxRetries > 0 {
		basePolicy.MaxRetries = cfg.Retry.MaxRetries
	}
	if cfg.Retry.BaseDelayMs > 0 {
		basePolicy.BaseDelay = time.Duration(cfg.Retry.BaseDelayMs) * time.Millisecond
	}

	app := &App{
		cfg:        cfg,
		basePolicy: basePolicy,
		monitor:    monitor,
		orch:       orch,
		store:      store,
		coord:      optimistic.NewCoordinator(store, orch, sink),
		exec:       batch.NewExecutor(orch, sink),
		client:     remote.NewClient(cfg.Remote),
		sink:       sink,
	}
	app.server = NewServer(monitor, cfg.Server.Port)
	return app, nil
}

// Monitor exposes the network monitor.
func (a *App) Monitor() *netmon.Monitor { return a.monitor }

// Orchestrator exposes the retry orchestrator.
func (a *App) Orchestrator() *retry.Orchestrator { return a.orch }

// Cache exposes the cache store.
func (a *App) Cache() cache.Store { return a.store }

// Start launches the background probe loop, the reconnect refresher, and
// the status server.
func (a *App) Start(ctx context.Context) error {
	runCtx, cancel := context.WithCancel(ctx)
	a.cancelRun = cancel

	go a.monitor.Run(runCtx)

	events, unsub := a.monitor.Subscribe()
	a.unsubscribe = unsub
	go a.watchReconnects(runCtx, events)

	go func() {
		if err := a.server.Start(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			slog.Error("Status server stopped", "error", err)
		}
	}()

	slog.Info("Client started", "status_port", a.cfg.Server.Port)
	return nil
}

// watchReconnects invalidates the list views after a confirmed reconnect
// so the dashboard re-fetches data that went stale while offline.
func (a *App) watchReconnects(ctx context.Context, events <-chan netmon.Event) {
	for {
		select {
		case <-ctx.Done():
			return
		case e := <-events:
			if !e.Online {
				continue
			}
			for _, key := range []domain.CacheKey{domain.PatientListKey, domain.ProviderListKey, domain.ReferralListKey} {
				// Suppress any fetch started before the link came back; its
				// result predates the reconnect.
				a.store.CancelPending(key)
				if err := a.store.Invalidate(ctx, string(key)); err != nil {
					slog.Warn("Failed to invalidate stale list", "key", key, "error", err)
				}
			}
			slog.Info("Marked list views stale after reconnect")
		}
	}
}

// Stop shuts the app down gracefully.
func (a *App) Stop(ctx context.Context) error {
	if a.cancelRun != nil {
		a.cancelRun()
	}
	if a.unsubscribe != nil {
		a.unsubscribe()
	}

	shutdownCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := a.server.Stop(shutdownCtx); err != nil {
		return fmt.Errorf("failed to stop status server: %w", err)
	}

	return a.store.Close()
}
