// Package app assembles the application: configuration, the Postgres store,
// the workspace, fetchers, ranking and generation, wired into a pipeline the
// CLI can run.
package app

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"github.com/briefcast/briefcast/internal/cache"
	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/generation"
	"github.com/briefcast/briefcast/internal/logger"
	"github.com/briefcast/briefcast/internal/pipeline"
	"github.com/briefcast/briefcast/internal/ranking"
	"github.com/briefcast/briefcast/internal/ratelimit"
	"github.com/briefcast/briefcast/internal/rss"
	"github.com/briefcast/briefcast/internal/scraper"
	"github.com/briefcast/briefcast/internal/storage"
)

// summaryTTL is how long cached article summaries stay valid.
const summaryTTL = 7 * 24 * time.Hour

// App owns the long-lived collaborators. The LLM provider is created once so
// its usage counters accumulate across the show-notes and script stages.
type App struct {
	Config    *config.Config
	Store     *storage.Store
	Workspace *storage.Workspace
	Summaries *cache.SummaryCache
	Limiter   *ratelimit.Limiter
	Pipeline  *pipeline.Pipeline
}

// New loads the configuration and assembles the application. The database
// connection is verified before anything else runs.
func New(configPath, sourcesPath string) (*App, error) {
	cfg, err := config.Load(configPath)
	if err != nil {
		return nil, err
	}
	return NewWithConfig(cfg, sourcesPath)
}

// NewWithConfig assembles the application from an already-loaded config.
// Opening the store verifies database connectivity with a ping.
func NewWithConfig(cfg *config.Config, sourcesPath string) (*App, error) {
	store, err := storage.New(cfg.Database.DSN())
	if err != nil {
		return nil, fmt.Errorf("database connection failed: %w", err)
	}

	ws := storage.NewWorkspace(cfg.WorkspaceRoot)

	summaries := cache.NewSummaryCache(
		filepath.Join(cfg.WorkspaceRoot, "cache", "summaries.json"),
		summaryTTL,
	)
	if err := summaries.Load(); err != nil {
		logger.Warn("failed to load summary cache", "error", err.Error())
	}

	limiter := ratelimit.NewDaily(cfg.LLM.MaxRequestsPerDay)
	provider := generation.NewProvider(cfg.LLM, limiter)

	deps := pipeline.Deps{
		Store:     store,
		Workspace: ws,
		Feeds:     rss.NewFetcher(cfg.Fetch),
		Articles:  scraper.NewFetcher(cfg.Fetch),
		Ranker:    ranking.New(cfg.Ranking, cfg.Preferences, ws.ReadFile),
		Notes:     generation.NewNotesBuilder(provider, summaries, ws.ReadFile),
		Script:    generation.NewScriptBuilder(provider),
	}

	return &App{
		Config:    cfg,
		Store:     store,
		Workspace: ws,
		Summaries: summaries,
		Limiter:   limiter,
		Pipeline:  pipeline.New(cfg, sourcesPath, deps),
	}, nil
}

// Run executes one briefing run and flushes the summary cache so the next
// run reuses what this one paid for.
func (a *App) Run(ctx context.Context, params pipeline.Params) *pipeline.Result {
	result := a.Pipeline.Run(ctx, params)

	if err := a.Summaries.Flush(); err != nil {
		logger.Warn("failed to flush summary cache", "error", err.Error())
	}
	return result
}

// Close releases the database connection.
func (a *App) Close() error {
	return a.Store.Close()
}
