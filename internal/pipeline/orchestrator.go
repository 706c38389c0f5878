package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"strings"
	"time"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/generation"
	"github.com/briefcast/briefcast/internal/logger"
	"github.com/briefcast/briefcast/internal/metrics"
	"github.com/briefcast/briefcast/internal/ranking"
	"github.com/briefcast/briefcast/internal/rss"
	"github.com/briefcast/briefcast/internal/scraper"
	"github.com/briefcast/briefcast/internal/storage"
)

// recentArticleLimit caps the novelty comparison set loaded per run.
const recentArticleLimit = 200

// Store is the database surface the pipeline drives.
type Store interface {
	StartRun(ctx context.Context, runDate string) (int64, error)
	FinishRun(ctx context.Context, runID int64, status string, stats []byte) error
	SyncSources(ctx context.Context, sources []config.SourceEntry) (map[string]int64, error)
	UpsertArticle(ctx context.Context, in storage.ArticleInput) (int64, bool, error)
	SetExtractedPath(ctx context.Context, articleID int64, path string) error
	LinkRunArticle(ctx context.Context, runID, articleID int64) error
	RunArticles(ctx context.Context, runID int64, onlyRanked bool) ([]storage.Article, error)
	RecentArticles(ctx context.Context, limit, days int) ([]storage.RecentArticle, error)
	SaveRunScore(ctx context.Context, runID, articleID int64, included bool, scoreJSON []byte) error
}

// Workspace is the on-disk surface for extracted text and run artifacts.
type Workspace interface {
	EnsureRunDirs(date string) error
	WriteExtracted(date string, articleID int64, text string) (string, error)
	WriteArtifact(date, name string, data []byte) (string, error)
}

// FeedFetcher pulls items from the enabled RSS feeds.
type FeedFetcher interface {
	FetchAll(ctx context.Context, sources []config.SourceEntry, perFeed int) ([]rss.Item, rss.Stats)
}

// ArticleFetcher downloads and extracts article pages.
type ArticleFetcher interface {
	FetchAll(ctx context.Context, items []rss.Item) []scraper.Result
}

// Ranker scores and selects a run's candidate articles.
type Ranker interface {
	Rank(articles []ranking.Article, scoreCtx ranking.ScoreContext, maxStories int) *ranking.Result
}

// NotesGenerator builds the show-notes document from the selected articles.
type NotesGenerator interface {
	Build(ctx context.Context, articles []generation.SourceArticle, runDate string) (*generation.ShowNotes, generation.Stats, error)
}

// ScriptGenerator turns show notes into a narration script.
type ScriptGenerator interface {
	Build(ctx context.Context, notes *generation.ShowNotes, targetMinutes int, runDate string) (*generation.Script, generation.Stats, error)
}

// Deps are the collaborators a run drives; internal/app wires the concrete
// implementations.
type Deps struct {
	Store     Store
	Workspace Workspace
	Feeds     FeedFetcher
	Articles  ArticleFetcher
	Ranker    Ranker
	Notes     NotesGenerator
	Script    ScriptGenerator
}

// Params are one run's knobs. Zero values fall back to the configured
// defaults; an empty date means today.
type Params struct {
	Date          string
	TargetMinutes int
	MaxItems      int
	MaxStories    int
}

// Result is the outcome of one pipeline run.
type Result struct {
	RunID       int64
	RunDate     string
	Succeeded   bool
	Stages      []*Stage
	FailedStage string
	Duration    time.Duration
	Artifacts   []string
}

// Pipeline executes briefing runs stage by stage.
type Pipeline struct {
	cfg         *config.Config
	sourcesPath string
	deps        Deps
}

func New(cfg *config.Config, sourcesPath string, deps Deps) *Pipeline {
	return &Pipeline{cfg: cfg, sourcesPath: sourcesPath, deps: deps}
}

// runState carries what each stage hands to the next.
type runState struct {
	runID     int64
	date      string
	params    Params
	enabled   []config.SourceEntry
	sourceIDs map[string]int64
	items     []rss.Item
	fetched   []scraper.Result
	selected  []ranking.ScoredArticle
	notes     *generation.ShowNotes
	artifacts []string
}

func stageList() []*Stage {
	return []*Stage{
		newStage("sources", "Loading and syncing sources"),
		newStage("rss", "Fetching RSS feeds"),
		newStage("articles", "Fetching and extracting articles"),
		newStage("storage", "Storing articles and deduplication"),
		newStage("ranking", "Ranking articles by relevance"),
		newStage("show_notes", "Generating show notes"),
		newStage("script", "Generating narration script"),
	}
}

// StageNames returns the stage names in execution order, for consumers that
// render stored stage flags.
func StageNames() []string {
	stages := stageList()
	names := make([]string, len(stages))
	for i, stage := range stages {
		names[i] = stage.Name
	}
	return names
}

// Run executes the pipeline for the given parameters. Failures are captured
// in the result and the run record; Run never panics and never returns an
// error. The run record is finalized even when a stage fails.
func (p *Pipeline) Run(ctx context.Context, params Params) *Result {
	start := time.Now()
	params = p.fillDefaults(params)

	result := &Result{RunDate: params.Date, Stages: stageList()}
	state := &runState{date: params.Date, params: params}

	defer func() {
		result.Artifacts = state.artifacts
		result.Duration = time.Since(start)
		p.finalize(ctx, result, params, start)
	}()

	logger.Info("pipeline starting",
		"date", params.Date,
		"target_minutes", params.TargetMinutes,
		"max_items", params.MaxItems,
		"max_stories", params.MaxStories)

	if err := p.deps.Workspace.EnsureRunDirs(params.Date); err != nil {
		logger.Error("failed to prepare run directories", "date", params.Date, "error", err.Error())
		return result
	}

	runID, err := p.deps.Store.StartRun(ctx, params.Date)
	if err != nil {
		logger.Error("failed to start run", "date", params.Date, "error", err.Error())
		return result
	}
	result.RunID = runID
	state.runID = runID

	steps := []struct {
		stage *Stage
		run   func(context.Context, *runState) (map[string]interface{}, error)
	}{
		{result.Stages[0], p.syncSources},
		{result.Stages[1], p.fetchFeeds},
		{result.Stages[2], p.fetchArticles},
		{result.Stages[3], p.storeArticles},
		{result.Stages[4], p.rankArticles},
		{result.Stages[5], p.generateNotes},
		{result.Stages[6], p.generateScript},
	}

	for _, step := range steps {
		step.stage.Start()
		logger.Info("stage started", "stage", step.stage.Name)

		stats, err := step.run(ctx, state)
		if err != nil {
			step.stage.Fail(err)
			metrics.Global.IncrementStagesFailed()
			metrics.Global.SetError(err.Error())
			logger.Error("stage failed", "stage", step.stage.Name, "error", err.Error())

			result.FailedStage = step.stage.Name
			return result
		}

		step.stage.Complete(stats)
		metrics.Global.IncrementStagesCompleted()
		logger.Info("stage completed",
			"stage", step.stage.Name,
			"duration", step.stage.Duration().String())
	}

	result.Succeeded = true
	return result
}

func (p *Pipeline) fillDefaults(params Params) Params {
	if params.Date == "" {
		params.Date = time.Now().Format("2006-01-02")
	}
	if params.TargetMinutes <= 0 {
		params.TargetMinutes = p.cfg.RunDefaults.TargetMinutes
	}
	if params.MaxItems <= 0 {
		params.MaxItems = p.cfg.RunDefaults.MaxItems
	}
	if params.MaxStories <= 0 {
		params.MaxStories = p.cfg.RunDefaults.MaxStories
	}
	return params
}

func (p *Pipeline) syncSources(ctx context.Context, state *runState) (map[string]interface{}, error) {
	sources, err := config.LoadSources(p.sourcesPath)
	if err != nil {
		return nil, err
	}

	sourceIDs, err := p.deps.Store.SyncSources(ctx, sources)
	if err != nil {
		return nil, err
	}

	var enabled []config.SourceEntry
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	if len(enabled) == 0 {
		return nil, errors.New("no enabled sources")
	}

	state.enabled = enabled
	state.sourceIDs = sourceIDs

	return map[string]interface{}{
		"total_sources":   len(sources),
		"enabled_sources": len(enabled),
	}, nil
}

func (p *Pipeline) fetchFeeds(ctx context.Context, state *runState) (map[string]interface{}, error) {
	perFeed := 1
	if n := state.params.MaxItems / len(state.enabled); n > 1 {
		perFeed = n
	}

	items, stats := p.deps.Feeds.FetchAll(ctx, state.enabled, perFeed)
	if len(items) > state.params.MaxItems {
		items = items[:state.params.MaxItems]
	}
	if len(items) == 0 {
		return nil, errors.New("No articles found in RSS feeds")
	}

	state.items = items

	return map[string]interface{}{
		"total_feeds":      stats.TotalFeeds,
		"successful_feeds": stats.SuccessfulFeeds,
		"total_items":      len(items),
	}, nil
}

func (p *Pipeline) fetchArticles(ctx context.Context, state *runState) (map[string]interface{}, error) {
	results := p.deps.Articles.FetchAll(ctx, state.items)

	successful := 0
	for _, res := range results {
		if res.Err == nil {
			successful++
		}
	}
	if successful == 0 {
		return nil, errors.New("No articles could be fetched successfully")
	}

	state.fetched = results

	return map[string]interface{}{
		"total_articles": len(results),
		"successful":     successful,
		"failed":         len(results) - successful,
	}, nil
}

func (p *Pipeline) storeArticles(ctx context.Context, state *runState) (map[string]interface{}, error) {
	var stored, newCount, duplicates, failed int

	for _, res := range state.fetched {
		if res.Err != nil {
			failed++
			continue
		}

		sourceID, ok := state.sourceIDs[res.SourceName]
		if !ok {
			sourceID, ok = matchSourceByOutlet(state.sourceIDs, res.Outlet)
		}
		if !ok {
			logger.Warn("no source for article, skipping",
				"source", res.SourceName, "url", res.CanonicalURL)
			continue
		}

		articleID, isNew, err := p.deps.Store.UpsertArticle(ctx, storage.ArticleInput{
			SourceID:     sourceID,
			CanonicalURL: res.CanonicalURL,
			Title:        res.Title,
			PublishedAt:  res.Published,
			Outlet:       res.Outlet,
			ContentHash:  res.ContentHash,
		})
		if err != nil {
			return nil, err
		}

		if isNew {
			path, err := p.deps.Workspace.WriteExtracted(state.date, articleID, res.Text)
			if err != nil {
				return nil, err
			}
			if err := p.deps.Store.SetExtractedPath(ctx, articleID, path); err != nil {
				return nil, err
			}
			newCount++
			metrics.Global.IncrementArticlesStored()
		} else {
			duplicates++
			metrics.Global.IncrementDuplicatesFound()
		}
		stored++

		if err := p.deps.Store.LinkRunArticle(ctx, state.runID, articleID); err != nil {
			return nil, err
		}
	}

	logger.Info("articles stored",
		"total", len(state.fetched),
		"new", newCount,
		"duplicates", duplicates,
		"failed", failed)

	return map[string]interface{}{
		"total":      len(state.fetched),
		"new":        newCount,
		"duplicates": duplicates,
		"failed":     failed,
		"stored":     stored,
	}, nil
}

// matchSourceByOutlet attributes an article to a source whose name contains
// the outlet domain. Less reliable than the feed's source name; used only
// when that name is missing from the sync map.
func matchSourceByOutlet(sourceIDs map[string]int64, outlet string) (int64, bool) {
	if outlet == "" {
		return 0, false
	}

	needle := strings.ToLower(outlet)
	for name, id := range sourceIDs {
		if strings.Contains(strings.ToLower(name), needle) {
			return id, true
		}
	}
	return 0, false
}

func (p *Pipeline) rankArticles(ctx context.Context, state *runState) (map[string]interface{}, error) {
	rows, err := p.deps.Store.RunArticles(ctx, state.runID, false)
	if err != nil {
		return nil, err
	}

	days := p.cfg.Ranking.NoveltyWindowRuns * 7
	recent, err := p.deps.Store.RecentArticles(ctx, recentArticleLimit, days)
	if err != nil {
		return nil, err
	}

	candidates := make([]ranking.Article, 0, len(rows))
	for _, row := range rows {
		weight := row.SourceWeight
		candidates = append(candidates, ranking.Article{
			ID:             row.ID,
			Title:          row.Title,
			CanonicalURL:   row.CanonicalURL,
			ContentHash:    row.ContentHash,
			Outlet:         row.Outlet,
			PublishedAt:    row.PublishedAt,
			FirstSeenAt:    row.FirstSeenAt,
			SourceWeight:   &weight,
			SourceCategory: row.SourceCategory,
			ExtractedPath:  row.ExtractedPath,
		})
	}

	history := make([]ranking.RecentArticle, 0, len(recent))
	for _, r := range recent {
		history = append(history, ranking.RecentArticle{
			ID:           r.ID,
			CanonicalURL: r.CanonicalURL,
			ContentHash:  r.ContentHash,
			Title:        r.Title,
			FirstSeenAt:  r.FirstSeenAt,
		})
	}

	result := p.deps.Ranker.Rank(candidates, ranking.ScoreContext{Recent: history}, state.params.MaxStories)
	if len(result.Selected) == 0 {
		return nil, errors.New("No articles met the ranking criteria")
	}

	for _, scored := range result.Selected {
		scoreJSON, err := scored.ScoreJSON()
		if err != nil {
			return nil, err
		}
		if err := p.deps.Store.SaveRunScore(ctx, state.runID, scored.Article.ID, true, scoreJSON); err != nil {
			return nil, err
		}
	}

	state.selected = result.Selected

	return map[string]interface{}{
		"total_articles": result.TotalCandidates,
		"selected":       len(result.Selected),
	}, nil
}

func (p *Pipeline) generateNotes(ctx context.Context, state *runState) (map[string]interface{}, error) {
	articles := make([]generation.SourceArticle, 0, len(state.selected))
	for _, scored := range state.selected {
		a := scored.Article
		articles = append(articles, generation.SourceArticle{
			ID:            a.ID,
			Title:         a.Title,
			URL:           a.CanonicalURL,
			Outlet:        a.Outlet,
			PublishedAt:   a.PublishedAt,
			Category:      a.SourceCategory,
			ContentHash:   a.ContentHash,
			ExtractedPath: a.ExtractedPath,
		})
	}

	notes, stats, err := p.deps.Notes.Build(ctx, articles, state.date)
	if err != nil {
		return nil, err
	}

	path, err := p.deps.Workspace.WriteArtifact(state.date, "show_notes.md", []byte(notes.Markdown()))
	if err != nil {
		return nil, err
	}

	state.notes = notes
	state.artifacts = append(state.artifacts, path)

	return map[string]interface{}{
		"articles_processed": stats.ArticlesProcessed,
		"tokens_used":        stats.TokensUsed,
		"cost_estimate":      stats.CostEstimate,
	}, nil
}

func (p *Pipeline) generateScript(ctx context.Context, state *runState) (map[string]interface{}, error) {
	script, stats, err := p.deps.Script.Build(ctx, state.notes, state.params.TargetMinutes, state.date)
	if err != nil {
		return nil, err
	}

	scriptPath, err := p.deps.Workspace.WriteArtifact(state.date, "script.txt", []byte(script.Render()))
	if err != nil {
		return nil, err
	}
	state.artifacts = append(state.artifacts, scriptPath)

	ttsPath, err := p.deps.Workspace.WriteArtifact(state.date, generation.TTSFilename(time.Now()), []byte(script.TTSText()))
	if err != nil {
		return nil, err
	}
	state.artifacts = append(state.artifacts, ttsPath)

	return map[string]interface{}{
		"estimated_minutes": script.EstimatedMinutes,
		"word_count":        script.EstimatedWords,
		"tokens_used":       stats.TokensUsed,
		"cost_estimate":     stats.CostEstimate,
	}, nil
}

// finalize persists the run outcome and writes the stats artifact. Errors
// here are logged, never raised: the run already has its result.
func (p *Pipeline) finalize(ctx context.Context, result *Result, params Params, start time.Time) {
	status := storage.RunStatusFailed
	if result.Succeeded {
		status = storage.RunStatusSuccess
		metrics.Global.IncrementRunsCompleted()
		metrics.Global.SetLastRun()
	} else {
		metrics.Global.IncrementRunsFailed()
	}

	if result.RunID != 0 {
		stageFlags := make(map[string]bool, len(result.Stages))
		for _, stage := range result.Stages {
			stageFlags[stage.Name] = stage.Success
		}

		runStats := map[string]interface{}{
			"target_minutes": params.TargetMinutes,
			"max_items":      params.MaxItems,
			"max_stories":    params.MaxStories,
			"total_duration": time.Since(start).Seconds(),
			"stages":         stageFlags,
		}

		statsJSON, err := json.Marshal(runStats)
		if err != nil {
			logger.Error("failed to marshal run stats", "error", err.Error())
			statsJSON = nil
		}

		if err := p.deps.Store.FinishRun(ctx, result.RunID, status, statsJSON); err != nil {
			logger.Error("failed to finish run record", "run_id", result.RunID, "error", err.Error())
		}
	}

	if path, err := p.writeStageStats(result, start); err != nil {
		logger.Error("failed to write pipeline stats", "error", err.Error())
	} else {
		result.Artifacts = append(result.Artifacts, path)
	}

	logger.Info("pipeline finished",
		"date", result.RunDate,
		"status", status,
		"duration", result.Duration.String(),
		"failed_stage", result.FailedStage)
}

func (p *Pipeline) writeStageStats(result *Result, start time.Time) (string, error) {
	stages := make(map[string]interface{}, len(result.Stages))
	for _, stage := range result.Stages {
		var errVal interface{}
		if stage.Error != "" {
			errVal = stage.Error
		}
		stages[stage.Name] = map[string]interface{}{
			"description": stage.Description,
			"duration":    stage.Duration().Seconds(),
			"success":     stage.Success,
			"error":       errVal,
			"stats":       stage.Stats,
		}
	}

	doc := map[string]interface{}{
		"pipeline": map[string]interface{}{
			"total_duration": time.Since(start).Seconds(),
			"completed_at":   time.Now().Format(time.RFC3339),
		},
		"stages": stages,
	}

	data, err := json.MarshalIndent(doc, "", "  ")
	if err != nil {
		return "", err
	}

	return p.deps.Workspace.WriteArtifact(result.RunDate, "pipeline_stats.json", data)
}
