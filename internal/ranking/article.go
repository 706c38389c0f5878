// Package ranking scores and selects a run's candidate articles using five
// weighted signals: recency, source, topic, novelty and preference.
package ranking

import "time"

// Article is the ranking view of a stored article. SourceWeight is nil when
// the article has no attributed source; Body is loaded lazily from
// ExtractedPath unless already set.
type Article struct {
	ID             int64
	Title          string
	CanonicalURL   string
	ContentHash    string
	Outlet         string
	Body           string
	PublishedAt    *time.Time
	FirstSeenAt    time.Time
	SourceWeight   *float64
	SourceCategory string
	ExtractedPath  string
}

// RecentArticle is a historical article the novelty signal compares against.
type RecentArticle struct {
	ID           int64
	CanonicalURL string
	ContentHash  string
	Title        string
	FirstSeenAt  time.Time
}

// ScoreContext carries the per-run inputs shared by the scorers. A zero Now
// means the current UTC time; an empty Recent set means no novelty history.
type ScoreContext struct {
	Now    time.Time
	Recent []RecentArticle
}

func (c ScoreContext) now() time.Time {
	if c.Now.IsZero() {
		return time.Now().UTC()
	}
	return c.Now
}
