package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/generation"
	"github.com/briefcast/briefcast/internal/ranking"
	"github.com/briefcast/briefcast/internal/rss"
	"github.com/briefcast/briefcast/internal/scraper"
	"github.com/briefcast/briefcast/internal/storage"
)

type finishCall struct {
	runID  int64
	status string
	stats  []byte
}

type fakeStore struct {
	startRunErr    error
	syncErr        error
	upsertErr      error
	runArticlesErr error

	runID     int64
	sourceIDs map[string]int64
	existing  map[string]int64

	nextID       int64
	startedDates []string
	syncCalls    int
	lastSynced   []config.SourceEntry
	upserted     []storage.ArticleInput
	pathsSet     map[int64]string
	links        [][2]int64
	scores       map[int64]json.RawMessage
	included     map[int64]bool

	runRows []storage.Article
	recent  []storage.RecentArticle

	finished []finishCall
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		runID:    7,
		nextID:   100,
		existing: map[string]int64{},
		pathsSet: map[int64]string{},
		scores:   map[int64]json.RawMessage{},
		included: map[int64]bool{},
	}
}

func (f *fakeStore) StartRun(_ context.Context, runDate string) (int64, error) {
	if f.startRunErr != nil {
		return 0, f.startRunErr
	}
	f.startedDates = append(f.startedDates, runDate)
	return f.runID, nil
}

func (f *fakeStore) FinishRun(_ context.Context, runID int64, status string, stats []byte) error {
	f.finished = append(f.finished, finishCall{runID: runID, status: status, stats: stats})
	return nil
}

func (f *fakeStore) SyncSources(_ context.Context, sources []config.SourceEntry) (map[string]int64, error) {
	if f.syncErr != nil {
		return nil, f.syncErr
	}
	f.syncCalls++
	f.lastSynced = sources

	if f.sourceIDs == nil {
		f.sourceIDs = make(map[string]int64, len(sources))
		for i, src := range sources {
			f.sourceIDs[src.Name] = int64(i + 1)
		}
	}
	return f.sourceIDs, nil
}

func (f *fakeStore) UpsertArticle(_ context.Context, in storage.ArticleInput) (int64, bool, error) {
	if f.upsertErr != nil {
		return 0, false, f.upsertErr
	}
	f.upserted = append(f.upserted, in)

	if id, ok := f.existing[in.CanonicalURL]; ok {
		return id, false, nil
	}
	f.nextID++
	return f.nextID, true, nil
}

func (f *fakeStore) SetExtractedPath(_ context.Context, articleID int64, path string) error {
	f.pathsSet[articleID] = path
	return nil
}

func (f *fakeStore) LinkRunArticle(_ context.Context, runID, articleID int64) error {
	f.links = append(f.links, [2]int64{runID, articleID})
	return nil
}

func (f *fakeStore) RunArticles(_ context.Context, _ int64, _ bool) ([]storage.Article, error) {
	if f.runArticlesErr != nil {
		return nil, f.runArticlesErr
	}
	return f.runRows, nil
}

func (f *fakeStore) RecentArticles(_ context.Context, _, _ int) ([]storage.RecentArticle, error) {
	return f.recent, nil
}

func (f *fakeStore) SaveRunScore(_ context.Context, _, articleID int64, included bool, scoreJSON []byte) error {
	f.scores[articleID] = scoreJSON
	f.included[articleID] = included
	return nil
}

type fakeWorkspace struct {
	ensureErr error

	ensured   []string
	extracted map[int64]string
	artifacts map[string][]byte
}

func newFakeWorkspace() *fakeWorkspace {
	return &fakeWorkspace{
		extracted: map[int64]string{},
		artifacts: map[string][]byte{},
	}
}

func (f *fakeWorkspace) EnsureRunDirs(date string) error {
	if f.ensureErr != nil {
		return f.ensureErr
	}
	f.ensured = append(f.ensured, date)
	return nil
}

func (f *fakeWorkspace) WriteExtracted(date string, articleID int64, text string) (string, error) {
	f.extracted[articleID] = text
	return fmt.Sprintf("/ws/runs/%s/extracted/article_%d.txt", date, articleID), nil
}

func (f *fakeWorkspace) WriteArtifact(date, name string, data []byte) (string, error) {
	f.artifacts[name] = data
	return fmt.Sprintf("/ws/runs/%s/%s", date, name), nil
}

func (f *fakeWorkspace) artifactNamed(prefix string) (string, bool) {
	for name := range f.artifacts {
		if strings.HasPrefix(name, prefix) {
			return name, true
		}
	}
	return "", false
}

type fakeFeeds struct {
	items []rss.Item
	stats rss.Stats

	gotSources []config.SourceEntry
	gotPerFeed int
}

func (f *fakeFeeds) FetchAll(_ context.Context, sources []config.SourceEntry, perFeed int) ([]rss.Item, rss.Stats) {
	f.gotSources = sources
	f.gotPerFeed = perFeed
	return f.items, f.stats
}

type fakeArticles struct {
	results []scraper.Result

	gotItems []rss.Item
}

func (f *fakeArticles) FetchAll(_ context.Context, items []rss.Item) []scraper.Result {
	f.gotItems = items
	return f.results
}

type fakeRanker struct {
	result *ranking.Result

	gotArticles []ranking.Article
	gotCtx      ranking.ScoreContext
	gotMax      int
}

func (f *fakeRanker) Rank(articles []ranking.Article, scoreCtx ranking.ScoreContext, maxStories int) *ranking.Result {
	f.gotArticles = articles
	f.gotCtx = scoreCtx
	f.gotMax = maxStories
	return f.result
}

type fakeNotes struct {
	notes *generation.ShowNotes
	stats generation.Stats
	err   error

	gotArticles []generation.SourceArticle
	gotDate     string
}

func (f *fakeNotes) Build(_ context.Context, articles []generation.SourceArticle, runDate string) (*generation.ShowNotes, generation.Stats, error) {
	f.gotArticles = articles
	f.gotDate = runDate
	if f.err != nil {
		return nil, generation.Stats{}, f.err
	}
	return f.notes, f.stats, nil
}

type fakeScript struct {
	script *generation.Script
	stats  generation.Stats
	err    error

	gotNotes   *generation.ShowNotes
	gotMinutes int
}

func (f *fakeScript) Build(_ context.Context, notes *generation.ShowNotes, targetMinutes int, _ string) (*generation.Script, generation.Stats, error) {
	f.gotNotes = notes
	f.gotMinutes = targetMinutes
	if f.err != nil {
		return nil, generation.Stats{}, f.err
	}
	return f.script, f.stats, nil
}

const testSourcesYAML = `sources:
  - name: Ars Technica AI
    url: https://arstechnica.com/ai/feed/
    category: news
    weight: 0.9
  - name: TechCrunch AI
    url: https://techcrunch.com/category/artificial-intelligence/feed/
    category: startup
    weight: 0.8
  - name: Quiet Blog
    url: https://example.com/feed.xml
    category: research
    enabled: false
`

func writeSourcesFile(t *testing.T, yaml string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sources.yaml")
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))
	return path
}

type fixture struct {
	store       *fakeStore
	ws          *fakeWorkspace
	feeds       *fakeFeeds
	arts        *fakeArticles
	ranker      *fakeRanker
	notes       *fakeNotes
	script      *fakeScript
	cfg         *config.Config
	sourcesPath string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()

	pub := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)

	store := newFakeStore()
	store.runRows = []storage.Article{
		{
			ID:             101,
			SourceID:       1,
			CanonicalURL:   "https://arstechnica.com/ai/new-model",
			Title:          "New model ships",
			PublishedAt:    &pub,
			Outlet:         "arstechnica.com",
			ContentHash:    "hash-1",
			ExtractedPath:  "/ws/runs/2025-06-02/extracted/article_101.txt",
			FirstSeenAt:    pub,
			SourceName:     "Ars Technica AI",
			SourceWeight:   0.9,
			SourceCategory: "news",
		},
		{
			ID:             102,
			SourceID:       2,
			CanonicalURL:   "https://techcrunch.com/startup-round",
			Title:          "Startup raises round",
			PublishedAt:    &pub,
			Outlet:         "techcrunch.com",
			ContentHash:    "hash-2",
			ExtractedPath:  "/ws/runs/2025-06-02/extracted/article_102.txt",
			FirstSeenAt:    pub,
			SourceName:     "TechCrunch AI",
			SourceWeight:   0.8,
			SourceCategory: "startup",
		},
	}
	store.recent = []storage.RecentArticle{
		{
			ID:           50,
			CanonicalURL: "https://example.com/old-story",
			ContentHash:  "old-hash",
			Title:        "An older story about models",
			FirstSeenAt:  pub.Add(-72 * time.Hour),
		},
	}

	selected := []ranking.ScoredArticle{
		{
			Article: ranking.Article{
				ID:             101,
				Title:          "New model ships",
				CanonicalURL:   "https://arstechnica.com/ai/new-model",
				ContentHash:    "hash-1",
				Outlet:         "arstechnica.com",
				PublishedAt:    &pub,
				SourceCategory: "news",
				ExtractedPath:  "/ws/runs/2025-06-02/extracted/article_101.txt",
			},
			Total:   0.9,
			Signals: ranking.Signals{Recency: 0.95, Source: 0.9, Topic: 0.8, Novelty: 1.0, Preference: 0.5},
			Reason:  "Very recent article; from high-quality source (arstechnica.com)",
		},
		{
			Article: ranking.Article{
				ID:             102,
				Title:          "Startup raises round",
				CanonicalURL:   "https://techcrunch.com/startup-round",
				ContentHash:    "hash-2",
				Outlet:         "techcrunch.com",
				PublishedAt:    &pub,
				SourceCategory: "startup",
				ExtractedPath:  "/ws/runs/2025-06-02/extracted/article_102.txt",
			},
			Total:   0.8,
			Signals: ranking.Signals{Recency: 0.9, Source: 0.8, Topic: 0.6, Novelty: 1.0, Preference: 0.5},
			Reason:  "Very recent article (techcrunch.com)",
		},
	}

	return &fixture{
		store: store,
		ws:    newFakeWorkspace(),
		feeds: &fakeFeeds{
			items: []rss.Item{
				{Title: "New model ships", Link: "https://arstechnica.com/ai/new-model", Published: &pub, SourceName: "Ars Technica AI", Category: "news", SourceWeight: 0.9},
				{Title: "Startup raises round", Link: "https://techcrunch.com/startup-round", Published: &pub, SourceName: "TechCrunch AI", Category: "startup", SourceWeight: 0.8},
			},
			stats: rss.Stats{TotalFeeds: 2, SuccessfulFeeds: 2, TotalItems: 2},
		},
		arts: &fakeArticles{
			results: []scraper.Result{
				{URL: "https://arstechnica.com/ai/new-model", CanonicalURL: "https://arstechnica.com/ai/new-model", Title: "New model ships", Text: "Full text of the model story.", Outlet: "arstechnica.com", Published: &pub, ContentHash: "hash-1", SourceName: "Ars Technica AI"},
				{URL: "https://techcrunch.com/startup-round", CanonicalURL: "https://techcrunch.com/startup-round", Title: "Startup raises round", Text: "Full text of the funding story.", Outlet: "techcrunch.com", Published: &pub, ContentHash: "hash-2", SourceName: "TechCrunch AI"},
			},
		},
		ranker: &fakeRanker{result: &ranking.Result{TotalCandidates: 2, Selected: selected}},
		notes: &fakeNotes{
			notes: &generation.ShowNotes{
				RunDate:     "2025-06-02",
				TotalCount:  2,
				GeneratedAt: pub,
				Sections: []generation.Section{
					{
						Title: "Deployments & Implementations",
						Articles: []generation.ArticleSummary{
							{ArticleID: 101, Title: "New model ships", URL: "https://arstechnica.com/ai/new-model", Outlet: "arstechnica.com", PublishedDate: "Jun 02, 2025", Bullets: []string{"Shipped"}},
						},
					},
				},
			},
			stats: generation.Stats{ArticlesProcessed: 2, TokensUsed: 500, APICalls: 3, CostEstimate: 0.12},
		},
		script: &fakeScript{
			script: &generation.Script{
				RunDate:          "2025-06-02",
				TargetMinutes:    5,
				Content:          "Welcome to the briefing. That wraps it up.",
				EstimatedWords:   8,
				EstimatedMinutes: 0.05,
				GeneratedAt:      pub,
			},
			stats: generation.Stats{ArticlesProcessed: 2, TokensUsed: 900, APICalls: 4, CostEstimate: 0.2},
		},
		cfg:         config.Default(),
		sourcesPath: writeSourcesFile(t, testSourcesYAML),
	}
}

func (fx *fixture) pipeline() *Pipeline {
	return New(fx.cfg, fx.sourcesPath, Deps{
		Store:     fx.store,
		Workspace: fx.ws,
		Feeds:     fx.feeds,
		Articles:  fx.arts,
		Ranker:    fx.ranker,
		Notes:     fx.notes,
		Script:    fx.script,
	})
}

func stageByName(t *testing.T, result *Result, name string) *Stage {
	t.Helper()
	for _, stage := range result.Stages {
		if stage.Name == name {
			return stage
		}
	}
	t.Fatalf("stage %q not found", name)
	return nil
}

func TestRunHappyPath(t *testing.T) {
	fx := newFixture(t)

	result := fx.pipeline().Run(context.Background(), Params{
		Date:          "2025-06-02",
		TargetMinutes: 5,
		MaxItems:      10,
		MaxStories:    3,
	})

	require.True(t, result.Succeeded)
	assert.Equal(t, int64(7), result.RunID)
	assert.Equal(t, "2025-06-02", result.RunDate)
	assert.Empty(t, result.FailedStage)

	wantOrder := []string{"sources", "rss", "articles", "storage", "ranking", "show_notes", "script"}
	require.Len(t, result.Stages, len(wantOrder))
	for i, stage := range result.Stages {
		assert.Equal(t, wantOrder[i], stage.Name)
		assert.True(t, stage.Success, stage.Name)
	}

	assert.Equal(t, []string{"2025-06-02"}, fx.ws.ensured)
	assert.Equal(t, []string{"2025-06-02"}, fx.store.startedDates)

	// Run record finalized as success with the run-level stats document.
	require.Len(t, fx.store.finished, 1)
	assert.Equal(t, int64(7), fx.store.finished[0].runID)
	assert.Equal(t, "success", fx.store.finished[0].status)

	var runStats map[string]interface{}
	require.NoError(t, json.Unmarshal(fx.store.finished[0].stats, &runStats))
	assert.EqualValues(t, 5, runStats["target_minutes"])
	assert.EqualValues(t, 10, runStats["max_items"])
	assert.EqualValues(t, 3, runStats["max_stories"])
	flags := runStats["stages"].(map[string]interface{})
	for _, name := range wantOrder {
		assert.Equal(t, true, flags[name], name)
	}

	// Artifacts: show notes, script, TTS variant and the stats file.
	require.Len(t, result.Artifacts, 4)
	assert.Contains(t, result.Artifacts, "/ws/runs/2025-06-02/show_notes.md")
	assert.Contains(t, result.Artifacts, "/ws/runs/2025-06-02/script.txt")
	assert.Contains(t, result.Artifacts, "/ws/runs/2025-06-02/pipeline_stats.json")

	ttsName, ok := fx.ws.artifactNamed("script_tts_")
	require.True(t, ok)
	assert.True(t, strings.HasSuffix(ttsName, ".txt"))
}

func TestRunStageWiring(t *testing.T) {
	fx := newFixture(t)

	result := fx.pipeline().Run(context.Background(), Params{
		Date:          "2025-06-02",
		TargetMinutes: 5,
		MaxItems:      10,
		MaxStories:    3,
	})
	require.True(t, result.Succeeded)

	t.Run("sources", func(t *testing.T) {
		stage := stageByName(t, result, "sources")
		assert.EqualValues(t, 3, stage.Stats["total_sources"])
		assert.EqualValues(t, 2, stage.Stats["enabled_sources"])
		assert.Equal(t, 1, fx.store.syncCalls)
		assert.Len(t, fx.store.lastSynced, 3)
	})

	t.Run("rss", func(t *testing.T) {
		// 10 items across 2 enabled feeds.
		assert.Equal(t, 5, fx.feeds.gotPerFeed)
		require.Len(t, fx.feeds.gotSources, 2)
		assert.Equal(t, "Ars Technica AI", fx.feeds.gotSources[0].Name)

		stage := stageByName(t, result, "rss")
		assert.EqualValues(t, 2, stage.Stats["total_feeds"])
		assert.EqualValues(t, 2, stage.Stats["successful_feeds"])
		assert.EqualValues(t, 2, stage.Stats["total_items"])
	})

	t.Run("articles", func(t *testing.T) {
		assert.Len(t, fx.arts.gotItems, 2)

		stage := stageByName(t, result, "articles")
		assert.EqualValues(t, 2, stage.Stats["total_articles"])
		assert.EqualValues(t, 2, stage.Stats["successful"])
		assert.EqualValues(t, 0, stage.Stats["failed"])
	})

	t.Run("storage", func(t *testing.T) {
		stage := stageByName(t, result, "storage")
		assert.EqualValues(t, 2, stage.Stats["total"])
		assert.EqualValues(t, 2, stage.Stats["new"])
		assert.EqualValues(t, 0, stage.Stats["duplicates"])
		assert.EqualValues(t, 2, stage.Stats["stored"])

		// Both articles were new: extracted text written and path recorded.
		require.Len(t, fx.store.upserted, 2)
		assert.Equal(t, int64(1), fx.store.upserted[0].SourceID)
		assert.Equal(t, "Full text of the model story.", fx.ws.extracted[101])
		assert.Equal(t, "/ws/runs/2025-06-02/extracted/article_101.txt", fx.store.pathsSet[101])
		assert.Equal(t, [][2]int64{{7, 101}, {7, 102}}, fx.store.links)
	})

	t.Run("ranking", func(t *testing.T) {
		require.Len(t, fx.ranker.gotArticles, 2)
		candidate := fx.ranker.gotArticles[0]
		assert.Equal(t, int64(101), candidate.ID)
		require.NotNil(t, candidate.SourceWeight)
		assert.Equal(t, 0.9, *candidate.SourceWeight)
		assert.Equal(t, "news", candidate.SourceCategory)

		require.Len(t, fx.ranker.gotCtx.Recent, 1)
		assert.Equal(t, "old-hash", fx.ranker.gotCtx.Recent[0].ContentHash)
		assert.Equal(t, 3, fx.ranker.gotMax)

		// Scores persisted for the selected articles only, marked included.
		require.Len(t, fx.store.scores, 2)
		assert.True(t, fx.store.included[101])
		assert.True(t, fx.store.included[102])

		var score map[string]interface{}
		require.NoError(t, json.Unmarshal(fx.store.scores[101], &score))
		assert.InDelta(t, 0.9, score["total"].(float64), 1e-9)
		assert.Contains(t, score["reason"], "Very recent article")

		stage := stageByName(t, result, "ranking")
		assert.EqualValues(t, 2, stage.Stats["total_articles"])
		assert.EqualValues(t, 2, stage.Stats["selected"])
	})

	t.Run("show_notes", func(t *testing.T) {
		require.Len(t, fx.notes.gotArticles, 2)
		assert.Equal(t, "https://arstechnica.com/ai/new-model", fx.notes.gotArticles[0].URL)
		assert.Equal(t, "news", fx.notes.gotArticles[0].Category)
		assert.Equal(t, "2025-06-02", fx.notes.gotDate)

		document := string(fx.ws.artifacts["show_notes.md"])
		assert.Contains(t, document, "# AI News Briefing - 2025-06-02")

		stage := stageByName(t, result, "show_notes")
		assert.EqualValues(t, 2, stage.Stats["articles_processed"])
		assert.EqualValues(t, 500, stage.Stats["tokens_used"])
		assert.InDelta(t, 0.12, stage.Stats["cost_estimate"].(float64), 1e-9)
	})

	t.Run("script", func(t *testing.T) {
		assert.Same(t, fx.notes.notes, fx.script.gotNotes)
		assert.Equal(t, 5, fx.script.gotMinutes)

		rendered := string(fx.ws.artifacts["script.txt"])
		assert.Contains(t, rendered, "Welcome to the briefing.")

		ttsName, ok := fx.ws.artifactNamed("script_tts_")
		require.True(t, ok)
		assert.NotContains(t, string(fx.ws.artifacts[ttsName]), "#")

		stage := stageByName(t, result, "script")
		assert.InDelta(t, 0.05, stage.Stats["estimated_minutes"].(float64), 1e-9)
		assert.EqualValues(t, 8, stage.Stats["word_count"])
		assert.EqualValues(t, 900, stage.Stats["tokens_used"])
	})

	t.Run("pipeline stats artifact", func(t *testing.T) {
		var doc map[string]interface{}
		require.NoError(t, json.Unmarshal(fx.ws.artifacts["pipeline_stats.json"], &doc))

		pipelineStats := doc["pipeline"].(map[string]interface{})
		assert.NotEmpty(t, pipelineStats["completed_at"])

		stages := doc["stages"].(map[string]interface{})
		require.Len(t, stages, 7)
		script := stages["script"].(map[string]interface{})
		assert.Equal(t, true, script["success"])
		assert.Equal(t, "Generating narration script", script["description"])
		assert.Nil(t, script["error"])
	})
}

func TestRunFailsWhenFeedsEmpty(t *testing.T) {
	fx := newFixture(t)
	fx.feeds.items = nil
	fx.feeds.stats = rss.Stats{TotalFeeds: 2}

	result := fx.pipeline().Run(context.Background(), Params{Date: "2025-06-02"})

	assert.False(t, result.Succeeded)
	assert.Equal(t, "rss", result.FailedStage)

	assert.True(t, stageByName(t, result, "sources").Success)

	rssStage := stageByName(t, result, "rss")
	assert.True(t, rssStage.Started())
	assert.False(t, rssStage.Success)
	assert.Equal(t, "No articles found in RSS feeds", rssStage.Error)
	assert.Nil(t, rssStage.Stats)

	for _, name := range []string{"articles", "storage", "ranking", "show_notes", "script"} {
		assert.False(t, stageByName(t, result, name).Started(), name)
	}

	require.Len(t, fx.store.finished, 1)
	assert.Equal(t, "failed", fx.store.finished[0].status)

	var runStats map[string]interface{}
	require.NoError(t, json.Unmarshal(fx.store.finished[0].stats, &runStats))
	flags := runStats["stages"].(map[string]interface{})
	assert.Equal(t, map[string]interface{}{
		"sources":    true,
		"rss":        false,
		"articles":   false,
		"storage":    false,
		"ranking":    false,
		"show_notes": false,
		"script":     false,
	}, flags)

	// The stats artifact is still written on failure.
	var doc map[string]interface{}
	require.NoError(t, json.Unmarshal(fx.ws.artifacts["pipeline_stats.json"], &doc))
	stages := doc["stages"].(map[string]interface{})
	rssEntry := stages["rss"].(map[string]interface{})
	assert.Equal(t, "No articles found in RSS feeds", rssEntry["error"])
}

func TestRunFailsWithoutEnabledSources(t *testing.T) {
	fx := newFixture(t)
	fx.sourcesPath = writeSourcesFile(t, `sources:
  - name: Quiet Blog
    url: https://example.com/feed.xml
    category: research
    enabled: false
`)

	result := fx.pipeline().Run(context.Background(), Params{Date: "2025-06-02"})

	assert.False(t, result.Succeeded)
	assert.Equal(t, "sources", result.FailedStage)
	assert.Equal(t, "no enabled sources", stageByName(t, result, "sources").Error)

	// The sync itself still happened before the check.
	assert.Equal(t, 1, fx.store.syncCalls)
	assert.False(t, stageByName(t, result, "rss").Started())
}

func TestRunFailsWhenAllFetchesFail(t *testing.T) {
	fx := newFixture(t)
	for i := range fx.arts.results {
		fx.arts.results[i].Err = errors.New("Request timed out")
		fx.arts.results[i].Text = ""
	}

	result := fx.pipeline().Run(context.Background(), Params{Date: "2025-06-02"})

	assert.False(t, result.Succeeded)
	assert.Equal(t, "articles", result.FailedStage)
	assert.Equal(t, "No articles could be fetched successfully",
		stageByName(t, result, "articles").Error)
	assert.False(t, stageByName(t, result, "storage").Started())
	assert.Empty(t, fx.store.upserted)
}

func TestRunFailsWhenNothingSelected(t *testing.T) {
	fx := newFixture(t)
	fx.ranker.result = &ranking.Result{TotalCandidates: 2}

	result := fx.pipeline().Run(context.Background(), Params{Date: "2025-06-02"})

	assert.False(t, result.Succeeded)
	assert.Equal(t, "ranking", result.FailedStage)
	assert.Equal(t, "No articles met the ranking criteria",
		stageByName(t, result, "ranking").Error)
	assert.Empty(t, fx.store.scores)
	assert.False(t, stageByName(t, result, "show_notes").Started())
}

func TestRunNotesFailureStopsScript(t *testing.T) {
	fx := newFixture(t)
	fx.notes.err = errors.New("llm unavailable")

	result := fx.pipeline().Run(context.Background(), Params{Date: "2025-06-02"})

	assert.False(t, result.Succeeded)
	assert.Equal(t, "show_notes", result.FailedStage)
	assert.False(t, stageByName(t, result, "script").Started())
	assert.NotContains(t, fx.ws.artifacts, "show_notes.md")
	assert.NotContains(t, fx.ws.artifacts, "script.txt")
}

func TestRunStartRunFailure(t *testing.T) {
	fx := newFixture(t)
	fx.store.startRunErr = errors.New("connection refused")

	result := fx.pipeline().Run(context.Background(), Params{Date: "2025-06-02"})

	assert.False(t, result.Succeeded)
	assert.Zero(t, result.RunID)
	assert.Empty(t, result.FailedStage)
	for _, stage := range result.Stages {
		assert.False(t, stage.Started(), stage.Name)
	}

	// No run record exists, so none is finalized; the stats artifact is
	// still written for debugging.
	assert.Empty(t, fx.store.finished)
	assert.Contains(t, fx.ws.artifacts, "pipeline_stats.json")
	assert.Equal(t, []string{"/ws/runs/2025-06-02/pipeline_stats.json"}, result.Artifacts)
}

func TestStoreArticlesMixedBatch(t *testing.T) {
	fx := newFixture(t)
	fx.store.existing["https://techcrunch.com/startup-round"] = 55

	pub := time.Date(2025, 6, 2, 8, 0, 0, 0, time.UTC)
	state := &runState{
		runID: 7,
		date:  "2025-06-02",
		params: Params{
			Date: "2025-06-02", TargetMinutes: 5, MaxItems: 10, MaxStories: 3,
		},
		sourceIDs: map[string]int64{"Ars Technica AI": 1, "TechCrunch AI": 2},
		fetched: []scraper.Result{
			{CanonicalURL: "https://arstechnica.com/ai/new-model", Title: "New model ships", Text: "model text", ContentHash: "hash-1", SourceName: "Ars Technica AI", Outlet: "arstechnica.com", Published: &pub},
			{CanonicalURL: "https://techcrunch.com/startup-round", Title: "Startup raises round", Text: "funding text", ContentHash: "hash-2", SourceName: "TechCrunch AI", Outlet: "techcrunch.com", Published: &pub},
			{CanonicalURL: "https://broken.example.com/post", Err: errors.New("Request timed out"), SourceName: "Ars Technica AI"},
			{CanonicalURL: "https://nowhere.example.com/post", Title: "Orphan", Text: "orphan text", ContentHash: "hash-4", SourceName: "Unknown Feed", Outlet: "nowhere.example.com"},
			{CanonicalURL: "https://techcrunch.com/second-story", Title: "Second story", Text: "second text", ContentHash: "hash-5", SourceName: "By Outlet", Outlet: "techcrunch"},
		},
	}

	stats, err := fx.pipeline().storeArticles(context.Background(), state)
	require.NoError(t, err)

	assert.Equal(t, 5, stats["total"])
	assert.Equal(t, 2, stats["new"])
	assert.Equal(t, 1, stats["duplicates"])
	assert.Equal(t, 1, stats["failed"])
	assert.Equal(t, 3, stats["stored"])

	// The orphan with an unknown source and unmatched outlet is skipped
	// without counting; the last one matched "TechCrunch AI" by outlet.
	require.Len(t, fx.store.upserted, 3)
	assert.Equal(t, int64(2), fx.store.upserted[2].SourceID)

	// Extracted text written only for new articles, never for duplicates.
	assert.Len(t, fx.ws.extracted, 2)
	assert.NotContains(t, fx.ws.extracted, int64(55))
	assert.Len(t, fx.store.links, 3)
}

func TestFillDefaults(t *testing.T) {
	fx := newFixture(t)
	p := fx.pipeline()

	t.Run("zero values take config defaults", func(t *testing.T) {
		before := time.Now().Format("2006-01-02")
		got := p.fillDefaults(Params{})
		after := time.Now().Format("2006-01-02")

		assert.Contains(t, []string{before, after}, got.Date)
		assert.Equal(t, 12, got.TargetMinutes)
		assert.Equal(t, 150, got.MaxItems)
		assert.Equal(t, 20, got.MaxStories)
	})

	t.Run("explicit values kept", func(t *testing.T) {
		got := p.fillDefaults(Params{Date: "2025-06-02", TargetMinutes: 7, MaxItems: 40, MaxStories: 5})
		assert.Equal(t, Params{Date: "2025-06-02", TargetMinutes: 7, MaxItems: 40, MaxStories: 5}, got)
	})
}

func TestMatchSourceByOutlet(t *testing.T) {
	sourceIDs := map[string]int64{"TechCrunch AI": 3, "Ars Technica": 4}

	id, ok := matchSourceByOutlet(sourceIDs, "techcrunch")
	assert.True(t, ok)
	assert.Equal(t, int64(3), id)

	_, ok = matchSourceByOutlet(sourceIDs, "")
	assert.False(t, ok)

	_, ok = matchSourceByOutlet(sourceIDs, "wired.com")
	assert.False(t, ok)
}
