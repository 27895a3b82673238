// File: cmd/factory.go

package cmd

import (
	"context"
	"time"

	"github.com/kimday0326/boj-editor/internal/bridge"
	"github.com/kimday0326/boj-editor/internal/browser"
	"github.com/kimday0326/boj-editor/internal/config"
	"github.com/kimday0326/boj-editor/internal/observability"
	"github.com/kimday0326/boj-editor/internal/orchestrator"
)

// components holds the initialized services behind a submission attempt.
// This struct centralizes the lifecycle of the browser-facing dependencies.
type components struct {
	BrowserManager *browser.Manager
	Orchestrator   *orchestrator.Orchestrator
}

// newComponents wires the submission pipeline: browser manager, execution
// bridge, orchestrator.
func newComponents(ctx context.Context) *components {
	logger := observability.GetLogger()
	cfg := config.Get()

	mgr := browser.NewManager(ctx, logger, cfg)
	br := bridge.New(logger)

	return &components{
		BrowserManager: mgr,
		Orchestrator:   orchestrator.New(logger, cfg, mgr, br),
	}
}

// Shutdown tears down the browser and any sessions still open.
func (c *components) Shutdown() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()
	c.BrowserManager.Shutdown(ctx)
	observability.Sync()
}
