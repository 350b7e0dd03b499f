package e2e

import (
	"context"
	"testing"
	"time"

	"github.com/careops/caresync/internal/control"
	"github.com/careops/caresync/internal/core/config"
)

// TestGracefulShutdown starts the assembled app with a memory cache and
// verifies Start/Stop complete cleanly.
func TestGracefulShutdown(t *testing.T) {
	cfg := &config.AppConfig{}
	cfg.Server.Port = 18099
	cfg.Remote.BaseURL = "http://127.0.0.1:18098"
	cfg.Network.ProbeURL = "http://127.0.0.1:18098/health"
	cfg.Network.ProbeInterval = time.Minute
	cfg.Network.ProbeTimeout = time.Second
	cfg.Cache.Backend = "memory"

	app, err := control.NewApp(cfg)
	if err != nil {
		t.Fatalf("NewApp failed: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	if err := app.Start(ctx); err != nil {
		t.Fatalf("Start failed: %v", err)
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()

	if err := app.Stop(shutdownCtx); err != nil {
		t.Fatalf("Stop failed: %v", err)
	}
}
