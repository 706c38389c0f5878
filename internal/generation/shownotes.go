package generation

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/briefcast/briefcast/internal/cache"
	"github.com/briefcast/briefcast/internal/logger"
)

const (
	sectionDeployments = "Deployments & Implementations"
	sectionLaunches    = "Product Launches & Updates"
	sectionResearch    = "Research & Breakthroughs"
	sectionBusiness    = "Industry & Business"
	sectionPolicy      = "Policy & Governance"

	maxSummaryBullets = 4

	notesTimeLayout = "Jan 02, 2006 at 15:04"
	notesDateLayout = "Jan 02, 2006"
)

// sectionOrder fixes the render order of show-notes sections.
var sectionOrder = []string{
	sectionDeployments,
	sectionLaunches,
	sectionResearch,
	sectionBusiness,
	sectionPolicy,
}

var (
	deploymentKeywords = []string{"deploy", "production", "enterprise", "implementation", "rollout", "launch"}
	launchKeywords     = []string{"releases", "announces", "unveils", "launches", "introduces", "available"}
	researchKeywords   = []string{"research", "study", "paper", "breakthrough", "discovery", "mit", "stanford"}
	businessKeywords   = []string{"funding", "investment", "acquisition", "partnership", "revenue", "ipo"}
	policyKeywords     = []string{"regulation", "policy", "law", "government", "congress", "senate"}
)

// SourceArticle is one selected article handed over for generation.
type SourceArticle struct {
	ID            int64
	Title         string
	URL           string
	Outlet        string
	PublishedAt   *time.Time
	Category      string
	ContentHash   string
	ExtractedPath string
}

// ArticleSummary is a summarized article inside a show-notes section.
type ArticleSummary struct {
	ArticleID     int64
	Title         string
	URL           string
	Outlet        string
	PublishedDate string
	Bullets       []string
	Category      string
}

type Section struct {
	Title    string
	Articles []ArticleSummary
}

// ShowNotes is the complete briefing document for one run.
type ShowNotes struct {
	RunDate     string
	Sections    []Section
	TotalCount  int
	GeneratedAt time.Time
}

// Stats is the usage snapshot reported after a generation step.
type Stats struct {
	ArticlesProcessed int
	TokensUsed        int
	APICalls          int
	CostEstimate      float64
}

// ContentReader loads an article's extracted text by path.
type ContentReader func(path string) (string, error)

// NotesBuilder summarizes selected articles into sectioned show notes.
type NotesBuilder struct {
	provider  Provider
	summaries *cache.SummaryCache
	readFile  ContentReader
}

func NewNotesBuilder(provider Provider, summaries *cache.SummaryCache, readFile ContentReader) *NotesBuilder {
	return &NotesBuilder{
		provider:  provider,
		summaries: summaries,
		readFile:  readFile,
	}
}

// Build categorizes the articles into the fixed sections, summarizes each one
// and assembles the document. Summarization failures degrade to a fallback
// bullet so a single bad article never sinks the whole briefing.
func (b *NotesBuilder) Build(ctx context.Context, articles []SourceArticle, runDate string) (*ShowNotes, Stats, error) {
	notes := &ShowNotes{
		RunDate:     runDate,
		TotalCount:  len(articles),
		GeneratedAt: time.Now().UTC(),
	}
	if len(articles) == 0 {
		return notes, Stats{}, nil
	}

	bodies := make([]string, len(articles))
	buckets := make(map[string][]int)
	for i, a := range articles {
		bodies[i] = b.loadContent(a.ExtractedPath)
		section := classify(a.Title, bodies[i], a.Category)
		buckets[section] = append(buckets[section], i)
	}

	for _, name := range sectionOrder {
		indexes := buckets[name]
		if len(indexes) == 0 {
			continue
		}

		section := Section{Title: name}
		for _, i := range indexes {
			section.Articles = append(section.Articles, b.summarize(ctx, articles[i], bodies[i]))
		}
		notes.Sections = append(notes.Sections, section)

		logger.Info("summarized show-notes section", "section", name, "articles", len(indexes))
	}

	usage := b.provider.Usage()
	stats := Stats{
		ArticlesProcessed: len(articles),
		TokensUsed:        usage.TotalTokens,
		APICalls:          usage.APICalls,
		CostEstimate:      usage.EstimatedCost,
	}

	return notes, stats, nil
}

func (b *NotesBuilder) summarize(ctx context.Context, a SourceArticle, body string) ArticleSummary {
	title := a.Title
	if title == "" {
		title = "Unknown title"
	}
	outlet := a.Outlet
	if outlet == "" {
		outlet = "Unknown source"
	}
	category := a.Category
	if category == "" {
		category = "unknown"
	}

	summary := ArticleSummary{
		ArticleID:     a.ID,
		Title:         title,
		URL:           a.URL,
		Outlet:        outlet,
		PublishedDate: formatDate(a.PublishedAt),
		Category:      category,
	}

	if a.ContentHash != "" {
		if bullets, ok := b.summaries.Get(a.ContentHash); ok {
			summary.Bullets = bullets
			return summary
		}
	}

	bullets, err := b.provider.SummarizeArticle(ctx, title, body, a.URL, outlet, maxSummaryBullets)
	if err != nil {
		logger.Warn("falling back to title-only summary", "title", title, "error", err.Error())
		summary.Bullets = []string{fmt.Sprintf("%s (see the source link for details)", title)}
		return summary
	}

	summary.Bullets = bullets
	if a.ContentHash != "" {
		b.summaries.Put(a.ContentHash, bullets, b.provider.Usage().Model)
	}

	return summary
}

func (b *NotesBuilder) loadContent(path string) string {
	if path == "" || b.readFile == nil {
		return ""
	}

	content, err := b.readFile(path)
	if err != nil {
		logger.Debug("failed to read extracted article", "path", path, "error", err.Error())
		return ""
	}
	return content
}

// classify picks the section for an article. Branches check the lowercased
// title, the first 500 chars of the body, or the source category; the first
// match wins and unmatched articles land in the deployments section.
func classify(title, body, sourceCategory string) string {
	titleLower := strings.ToLower(title)
	bodyPrefix := strings.ToLower(body)
	if len(bodyPrefix) > 500 {
		bodyPrefix = bodyPrefix[:500]
	}
	categoryLower := strings.ToLower(sourceCategory)

	switch {
	case matchesAny(deploymentKeywords, titleLower, bodyPrefix):
		return sectionDeployments
	case matchesAny(launchKeywords, titleLower):
		return sectionLaunches
	case matchesAny(researchKeywords, titleLower, categoryLower):
		return sectionResearch
	case matchesAny(businessKeywords, titleLower, bodyPrefix):
		return sectionBusiness
	case matchesAny(policyKeywords, titleLower, bodyPrefix):
		return sectionPolicy
	default:
		return sectionDeployments
	}
}

func matchesAny(keywords []string, texts ...string) bool {
	for _, keyword := range keywords {
		for _, text := range texts {
			if text != "" && strings.Contains(text, keyword) {
				return true
			}
		}
	}
	return false
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "Unknown date"
	}
	return t.Format(notesDateLayout)
}

// Markdown renders the show-notes document written to show_notes.md.
func (n *ShowNotes) Markdown() string {
	var lines []string

	lines = append(lines, fmt.Sprintf("# AI News Briefing - %s", n.RunDate), "")
	lines = append(lines, fmt.Sprintf("*Generated on %s UTC*", n.GeneratedAt.Format(notesTimeLayout)), "")
	lines = append(lines, fmt.Sprintf("**%d stories** across %d categories", n.TotalCount, len(n.Sections)), "")

	if len(n.Sections) > 1 {
		lines = append(lines, "## Contents", "")
		for _, s := range n.Sections {
			lines = append(lines, fmt.Sprintf("- [%s](#%s)", s.Title, sectionAnchor(s.Title)))
		}
		lines = append(lines, "")
	}

	for _, s := range n.Sections {
		lines = append(lines, fmt.Sprintf("## %s", s.Title), "")
		for _, a := range s.Articles {
			lines = append(lines, fmt.Sprintf("### [%s](%s)", a.Title, a.URL))
			lines = append(lines, fmt.Sprintf("*%s • %s*", a.Outlet, a.PublishedDate), "")
			for _, bullet := range a.Bullets {
				lines = append(lines, "- "+bullet)
			}
			lines = append(lines, "")
		}
	}

	lines = append(lines, "---", "", "*This briefing was generated automatically by Briefcast.*", "")

	return strings.Join(lines, "\n")
}

func sectionAnchor(title string) string {
	anchor := strings.ToLower(title)
	anchor = strings.ReplaceAll(anchor, " ", "-")
	return strings.ReplaceAll(anchor, "&", "and")
}
