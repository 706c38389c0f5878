package metrics

import (
	"sync"
	"time"
)

type Metrics struct {
	mu sync.RWMutex

	// Counters
	FeedsFetched    int64
	FeedErrors      int64
	ArticlesFetched int64
	ArticleErrors   int64
	ArticlesStored  int64
	DuplicatesFound int64
	LLMCalls        int64
	LLMTokens       int64
	StagesCompleted int64
	StagesFailed    int64
	RunsCompleted   int64
	RunsFailed      int64

	// Status
	LastRunTime   time.Time
	LastErrorTime time.Time
	LastError     string
	IsHealthy     bool

	startTime time.Time
}

var Global = &Metrics{IsHealthy: true, startTime: time.Now()}

func (m *Metrics) IncrementFeedsFetched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedsFetched++
}

func (m *Metrics) IncrementFeedErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.FeedErrors++
}

func (m *Metrics) IncrementArticlesFetched() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesFetched++
}

func (m *Metrics) IncrementArticleErrors() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticleErrors++
}

func (m *Metrics) IncrementArticlesStored() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.ArticlesStored++
}

func (m *Metrics) IncrementDuplicatesFound() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.DuplicatesFound++
}

func (m *Metrics) IncrementLLMCalls() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LLMCalls++
}

func (m *Metrics) AddLLMTokens(n int64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LLMTokens += n
}

func (m *Metrics) IncrementStagesCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StagesCompleted++
}

func (m *Metrics) IncrementStagesFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.StagesFailed++
}

func (m *Metrics) IncrementRunsCompleted() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunsCompleted++
}

func (m *Metrics) IncrementRunsFailed() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.RunsFailed++
}

func (m *Metrics) SetLastRun() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastRunTime = time.Now()
	m.IsHealthy = true
}

func (m *Metrics) SetError(err string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.LastError = err
	m.LastErrorTime = time.Now()
	m.IsHealthy = false
}

func (m *Metrics) GetStats() map[string]interface{} {
	m.mu.RLock()
	defer m.mu.RUnlock()

	return map[string]interface{}{
		"feeds_fetched":    m.FeedsFetched,
		"feed_errors":      m.FeedErrors,
		"articles_fetched": m.ArticlesFetched,
		"article_errors":   m.ArticleErrors,
		"articles_stored":  m.ArticlesStored,
		"duplicates_found": m.DuplicatesFound,
		"llm_calls":        m.LLMCalls,
		"llm_tokens":       m.LLMTokens,
		"stages_completed": m.StagesCompleted,
		"stages_failed":    m.StagesFailed,
		"runs_completed":   m.RunsCompleted,
		"runs_failed":      m.RunsFailed,
		"last_run_time":    m.LastRunTime.Format(time.RFC3339),
		"last_error_time":  m.LastErrorTime.Format(time.RFC3339),
		"last_error":       m.LastError,
		"is_healthy":       m.IsHealthy,
		"uptime_seconds":   int64(time.Since(m.startTime).Seconds()),
	}
}
