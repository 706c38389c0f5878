package ranking

import (
	"encoding/json"
	"sort"
	"strings"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/logger"
)

const defaultMaxStories = 20

// Weights hold the four configured signal weights. The preference weight is
// never configured directly: it is the remainder after the other four, which
// stays near zero for any valid config.
type Weights struct {
	Recency float64
	Source  float64
	Topic   float64
	Novelty float64
}

// Preference returns the derived fifth weight.
func (w Weights) Preference() float64 {
	return 1.0 - w.Recency - w.Source - w.Topic - w.Novelty
}

// BodyLoader reads an article's extracted text given its stored path.
type BodyLoader func(path string) (string, error)

// Signals are the five per-article scores.
type Signals struct {
	Recency    float64
	Source     float64
	Topic      float64
	Novelty    float64
	Preference float64
}

// ScoredArticle pairs an article with its signals, weighted total and the
// human-readable reason.
type ScoredArticle struct {
	Article Article
	Total   float64
	Signals Signals
	Reason  string
}

// ScoreJSON renders the score payload persisted on the run_articles row.
func (s ScoredArticle) ScoreJSON() ([]byte, error) {
	return json.Marshal(struct {
		Total      float64 `json:"total"`
		Recency    float64 `json:"recency"`
		Source     float64 `json:"source"`
		Topic      float64 `json:"topic"`
		Novelty    float64 `json:"novelty"`
		Preference float64 `json:"preference"`
		Reason     string  `json:"reason"`
	}{s.Total, s.Signals.Recency, s.Signals.Source, s.Signals.Topic, s.Signals.Novelty, s.Signals.Preference, s.Reason})
}

// Result is the outcome of ranking one run's candidates.
type Result struct {
	TotalCandidates int
	Selected        []ScoredArticle
}

// Ranker combines the five scorers into a weighted total and selects the top
// stories for a run.
type Ranker struct {
	weights  Weights
	minScore float64
	loader   BodyLoader

	recency    *RecencyScorer
	source     *SourceScorer
	topic      *TopicScorer
	novelty    *NoveltyScorer
	preference *PreferenceScorer
}

// New creates a ranker from the ranking configuration and preferences. The
// loader may be nil when article bodies are pre-populated.
func New(cfg config.RankingConfig, prefs config.Preferences, loader BodyLoader) *Ranker {
	return &Ranker{
		weights: Weights{
			Recency: cfg.RecencyWeight,
			Source:  cfg.SourceWeight,
			Topic:   cfg.TopicWeight,
			Novelty: cfg.NoveltyWeight,
		},
		minScore:   cfg.MinScore,
		loader:     loader,
		recency:    NewRecencyScorer(),
		source:     &SourceScorer{},
		topic:      NewTopicScorer(prefs.BoostKeywords, prefs.SuppressKeywords),
		novelty:    NewNoveltyScorer(),
		preference: NewPreferenceScorer(prefs.PreferredOutlets, prefs.PreferredCategories),
	}
}

// Rank scores every candidate, drops those below the minimum score, sorts by
// total descending (stable, so ties keep input order) and truncates to
// maxStories (20 when non-positive). Empty input yields an empty result.
// Persisting the selected scores is the caller's job.
func (r *Ranker) Rank(articles []Article, scoreCtx ScoreContext, maxStories int) *Result {
	result := &Result{TotalCandidates: len(articles)}
	if len(articles) == 0 {
		return result
	}
	if maxStories <= 0 {
		maxStories = defaultMaxStories
	}

	scored := make([]ScoredArticle, 0, len(articles))
	for _, a := range articles {
		if a.Body == "" && a.ExtractedPath != "" && r.loader != nil {
			body, err := r.loader(a.ExtractedPath)
			if err != nil {
				logger.Debug("failed to load article body", "path", a.ExtractedPath, "error", err)
			} else {
				a.Body = body
			}
		}

		signals := Signals{
			Recency:    r.recency.Score(a, scoreCtx),
			Source:     r.source.Score(a, scoreCtx),
			Topic:      r.topic.Score(a, scoreCtx),
			Novelty:    r.novelty.Score(a, scoreCtx),
			Preference: r.preference.Score(a, scoreCtx),
		}

		total := signals.Recency*r.weights.Recency +
			signals.Source*r.weights.Source +
			signals.Topic*r.weights.Topic +
			signals.Novelty*r.weights.Novelty +
			signals.Preference*r.weights.Preference()

		if total < r.minScore {
			continue
		}

		scored = append(scored, ScoredArticle{
			Article: a,
			Total:   total,
			Signals: signals,
			Reason:  buildReason(signals, a.Outlet),
		})
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].Total > scored[j].Total
	})

	if len(scored) > maxStories {
		scored = scored[:maxStories]
	}

	result.Selected = scored
	return result
}

func buildReason(signals Signals, outlet string) string {
	var reasons []string

	if signals.Recency >= 0.8 {
		reasons = append(reasons, "Very recent article")
	} else if signals.Recency <= 0.3 {
		reasons = append(reasons, "Older article")
	}

	if signals.Source >= 0.9 {
		reasons = append(reasons, "from high-quality source")
	}

	if signals.Topic >= 0.8 {
		reasons = append(reasons, "highly relevant to interests")
	} else if signals.Topic <= 0.2 {
		reasons = append(reasons, "low topic relevance")
	}

	if signals.Novelty <= 0.3 {
		reasons = append(reasons, "similar to recent coverage")
	}

	if len(reasons) == 0 {
		reasons = append(reasons, "Balanced scoring across factors")
	}

	if outlet == "" {
		outlet = "unknown source"
	}

	return strings.Join(reasons, "; ") + " (" + outlet + ")"
}
