package ranking

import (
	"math"
	"regexp"
	"strings"
)

// Scorer produces one ranking signal in [0,1]. Missing data never errors; it
// falls back to the signal's neutral default.
type Scorer interface {
	Name() string
	Score(a Article, ctx ScoreContext) float64
}

func clamp(v float64) float64 {
	return math.Max(0.0, math.Min(1.0, v))
}

// RecencyScorer decays exponentially with article age.
type RecencyScorer struct {
	halfLifeHours float64
}

// NewRecencyScorer creates a recency scorer with a 48 hour half-life.
func NewRecencyScorer() *RecencyScorer {
	return &RecencyScorer{halfLifeHours: 48.0}
}

func (s *RecencyScorer) Name() string { return "recency" }

// Score returns exp(-ln2 * ageHours / halfLife); 0.5 when the publication
// time is unknown. Future timestamps clamp to 1.0.
func (s *RecencyScorer) Score(a Article, ctx ScoreContext) float64 {
	if a.PublishedAt == nil {
		return 0.5
	}

	ageHours := ctx.now().Sub(*a.PublishedAt).Hours()
	decayRate := math.Ln2 / s.halfLifeHours
	return clamp(math.Exp(-decayRate * ageHours))
}

// SourceScorer passes the source weight through as the signal.
type SourceScorer struct{}

func (s *SourceScorer) Name() string { return "source" }

// Score returns the source weight clamped to [0,1]; 1.0 when the article has
// no attributed source.
func (s *SourceScorer) Score(a Article, _ ScoreContext) float64 {
	if a.SourceWeight == nil {
		return 1.0
	}
	return clamp(*a.SourceWeight)
}

// TopicScorer boosts and suppresses by whole-word keyword matches over the
// title and body, with title matches counting double.
type TopicScorer struct {
	boost       []*regexp.Regexp
	suppress    []*regexp.Regexp
	titleWeight float64
}

// NewTopicScorer compiles the keyword lists once; matching is
// case-insensitive on whole words.
func NewTopicScorer(boostKeywords, suppressKeywords []string) *TopicScorer {
	return &TopicScorer{
		boost:       compileKeywords(boostKeywords),
		suppress:    compileKeywords(suppressKeywords),
		titleWeight: 2.0,
	}
}

func (s *TopicScorer) Name() string { return "topic" }

func compileKeywords(keywords []string) []*regexp.Regexp {
	patterns := make([]*regexp.Regexp, 0, len(keywords))
	for _, kw := range keywords {
		kw = strings.ToLower(strings.TrimSpace(kw))
		if kw == "" {
			continue
		}
		patterns = append(patterns, regexp.MustCompile(`\b`+regexp.QuoteMeta(kw)+`\b`))
	}
	return patterns
}

func countMatches(text string, patterns []*regexp.Regexp) float64 {
	if text == "" || len(patterns) == 0 {
		return 0
	}
	lower := strings.ToLower(text)
	total := 0
	for _, p := range patterns {
		total += len(p.FindAllStringIndex(lower, -1))
	}
	return float64(total)
}

// Score starts at the neutral 0.5 and moves by the normalized match counts:
// boosts saturate at 10 weighted hits, suppressions at 5. No configured
// keywords leave the score at 0.5.
func (s *TopicScorer) Score(a Article, _ ScoreContext) float64 {
	boost := countMatches(a.Title, s.boost)*s.titleWeight + countMatches(a.Body, s.boost)
	suppress := countMatches(a.Title, s.suppress)*s.titleWeight + countMatches(a.Body, s.suppress)

	boostNorm := math.Min(1.0, boost/10.0)
	suppressNorm := math.Min(1.0, suppress/5.0)

	return clamp(0.5 + 0.5*boostNorm - 0.5*suppressNorm)
}

// NoveltyScorer penalizes articles that are similar to recent coverage.
type NoveltyScorer struct {
	similarityThreshold float64
}

// NewNoveltyScorer creates a novelty scorer with the 0.85 title-overlap
// threshold.
func NewNoveltyScorer() *NoveltyScorer {
	return &NoveltyScorer{similarityThreshold: 0.85}
}

func (s *NoveltyScorer) Name() string { return "novelty" }

// Score scans the recent-articles context for the first similar article,
// skipping the candidate itself, and tiers the penalty by how recently that
// match was first seen: same day or one day ago 0.1, up to three days 0.3,
// older 0.5. No match (or no context) scores a fully novel 1.0.
func (s *NoveltyScorer) Score(a Article, ctx ScoreContext) float64 {
	if len(ctx.Recent) == 0 {
		return 1.0
	}

	now := ctx.now()
	for _, recent := range ctx.Recent {
		if recent.ID == a.ID || !s.isSimilar(a, recent) {
			continue
		}

		daysAgo := 0
		if !recent.FirstSeenAt.IsZero() {
			daysAgo = int(now.Sub(recent.FirstSeenAt).Hours() / 24)
		}

		switch {
		case daysAgo <= 1:
			return 0.1
		case daysAgo <= 3:
			return 0.3
		default:
			return 0.5
		}
	}

	return 1.0
}

func (s *NoveltyScorer) isSimilar(a Article, recent RecentArticle) bool {
	if a.CanonicalURL == recent.CanonicalURL {
		return true
	}
	if a.ContentHash != "" && a.ContentHash == recent.ContentHash {
		return true
	}

	title1 := strings.ToLower(a.Title)
	title2 := strings.ToLower(recent.Title)
	if title1 == "" || title2 == "" {
		return false
	}

	words1 := wordSet(title1)
	words2 := wordSet(title2)
	if len(words1) <= 3 || len(words2) <= 3 {
		return false
	}

	overlap := 0
	for w := range words1 {
		if words2[w] {
			overlap++
		}
	}

	smaller := len(words1)
	if len(words2) < smaller {
		smaller = len(words2)
	}

	return float64(overlap)/float64(smaller) >= s.similarityThreshold
}

func wordSet(title string) map[string]bool {
	set := make(map[string]bool)
	for _, w := range strings.Fields(title) {
		set[w] = true
	}
	return set
}

// PreferenceScorer rewards preferred outlets and source categories.
type PreferenceScorer struct {
	outlets    []string
	categories map[string]bool
}

// NewPreferenceScorer lowercases the preference lists once.
func NewPreferenceScorer(preferredOutlets, preferredCategories []string) *PreferenceScorer {
	outlets := make([]string, 0, len(preferredOutlets))
	for _, o := range preferredOutlets {
		outlets = append(outlets, strings.ToLower(o))
	}

	categories := make(map[string]bool, len(preferredCategories))
	for _, c := range preferredCategories {
		categories[strings.ToLower(c)] = true
	}

	return &PreferenceScorer{outlets: outlets, categories: categories}
}

func (s *PreferenceScorer) Name() string { return "preference" }

// Score starts at 0.5, adds 0.25 when the outlet contains any preferred
// outlet substring and 0.25 when the source category is preferred.
func (s *PreferenceScorer) Score(a Article, _ ScoreContext) float64 {
	score := 0.5

	outlet := strings.ToLower(a.Outlet)
	if outlet != "" {
		for _, pref := range s.outlets {
			if strings.Contains(outlet, pref) {
				score += 0.25
				break
			}
		}
	}

	if a.SourceCategory != "" && s.categories[strings.ToLower(a.SourceCategory)] {
		score += 0.25
	}

	return clamp(score)
}
