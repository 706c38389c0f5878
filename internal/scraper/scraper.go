// Package scraper fetches article pages and extracts their main text.
package scraper

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"golang.org/x/sync/errgroup"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/logger"
	"github.com/briefcast/briefcast/internal/metrics"
	"github.com/briefcast/briefcast/internal/retry"
	"github.com/briefcast/briefcast/internal/rss"
)

// Result is the outcome of fetching and extracting one article. A failed
// fetch carries its error here; the batch itself never fails.
type Result struct {
	URL          string
	CanonicalURL string
	Title        string
	Text         string
	Outlet       string
	Published    *time.Time
	ContentHash  string
	SourceName   string
	Err          error
}

// Fetcher downloads article pages and extracts their readable text.
type Fetcher struct {
	client      *http.Client
	concurrency int
	userAgent   string
}

// NewFetcher creates an article fetcher from the fetch configuration.
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{
		client:      &http.Client{Timeout: cfg.ArticleTimeout()},
		concurrency: cfg.ArticleConcurrency,
		userAgent:   cfg.UserAgent,
	}
}

// FetchAll fetches all feed items concurrently. Every item produces a Result;
// failures are recorded on the result instead of aborting the batch.
func (f *Fetcher) FetchAll(ctx context.Context, items []rss.Item) []Result {
	if len(items) == 0 {
		return nil
	}

	results := make([]Result, len(items))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, item := range items {
		i, item := i, item
		g.Go(func() error {
			results[i] = f.fetchArticle(ctx, item)
			return nil
		})
	}
	g.Wait()

	successful := 0
	for _, res := range results {
		if res.Err == nil {
			successful++
			metrics.Global.IncrementArticlesFetched()
		} else {
			metrics.Global.IncrementArticleErrors()
		}
	}

	logger.Info("articles fetched",
		"total", len(results),
		"successful", successful,
		"failed", len(results)-successful)

	return results
}

func (f *Fetcher) fetchArticle(ctx context.Context, item rss.Item) Result {
	res := Result{
		URL:          item.Link,
		CanonicalURL: item.Link,
		Title:        item.Title,
		Outlet:       extractOutlet(item.Link),
		Published:    item.Published,
		SourceName:   item.SourceName,
	}

	resp, err := f.get(ctx, item.Link)
	if err != nil {
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			res.Err = errors.New("Request timed out")
		} else {
			res.Err = fmt.Errorf("Unexpected error: %v", err)
		}
		return res
	}
	defer resp.Body.Close()

	if resp.StatusCode >= 400 {
		res.Err = errors.New(statusError(resp.StatusCode))
		return res
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		res.Err = fmt.Errorf("Unexpected error: %v", err)
		return res
	}

	finalURL := resp.Request.URL.String()
	res.CanonicalURL = finalURL
	res.Outlet = extractOutlet(finalURL)

	html := string(body)
	if hasPaywallMarkers(html) {
		res.Err = errors.New("Paywall detected")
		return res
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		res.Err = fmt.Errorf("Unexpected error: %v", err)
		return res
	}

	text := extractContent(doc)
	if len(text) < 200 {
		res.Err = errors.New("Failed to extract article content")
		return res
	}

	res.Text = text
	res.ContentHash = contentHash(text)
	res.Title = extractTitle(doc, item.Title)
	if res.Published == nil {
		res.Published = extractPublished(doc)
	}

	return res
}

func (f *Fetcher) get(ctx context.Context, link string) (*http.Response, error) {
	var resp *http.Response

	cfg := retry.Config{MaxAttempts: 2, Delay: 2 * time.Second, Backoff: true}
	err := retry.WithRetry(ctx, cfg, func() error {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, link, nil)
		if err != nil {
			return err
		}
		req.Header.Set("User-Agent", f.userAgent)
		req.Header.Set("Accept", "text/html,application/xhtml+xml")

		r, err := f.client.Do(req)
		if err != nil {
			return err
		}
		resp = r
		return nil
	})

	return resp, err
}

func statusError(code int) string {
	switch {
	case code == http.StatusNotFound:
		return "Article not found (404)"
	case code == http.StatusForbidden:
		return "Access forbidden (403)"
	case code >= 500:
		return fmt.Sprintf("Server error (%d)", code)
	default:
		return fmt.Sprintf("HTTP %d", code)
	}
}

var paywallMarkers = []string{"paywall", "subscribe to read", "members only"}

func hasPaywallMarkers(html string) bool {
	lower := strings.ToLower(html)
	for _, marker := range paywallMarkers {
		if strings.Contains(lower, marker) {
			return true
		}
	}
	return false
}

// Content selectors tried in order; the first that yields paragraphs wins.
var contentSelectors = []string{
	"article",
	`[role="main"]`,
	"main",
	".article-content",
	".post-content",
	".entry-content",
	".story-body",
	".article-body",
	"#content",
}

func extractContent(doc *goquery.Document) string {
	for _, selector := range contentSelectors {
		sel := doc.Find(selector).First()
		if sel.Length() == 0 {
			continue
		}
		if text := paragraphText(sel); text != "" {
			return text
		}
	}

	// Fall back to the whole body with boilerplate elements stripped.
	body := doc.Find("body").First()
	body.Find("script, style, nav, header, footer, aside, form, noscript").Remove()
	return paragraphText(body)
}

func paragraphText(sel *goquery.Selection) string {
	var paragraphs []string
	sel.Find("p").Each(func(_ int, p *goquery.Selection) {
		text := strings.TrimSpace(p.Text())
		if len(text) > 20 && !isJunkLine(text) {
			paragraphs = append(paragraphs, collapseSpaces(text))
		}
	})
	return strings.Join(paragraphs, "\n\n")
}

var junkIndicators = []string{
	"cookie policy",
	"all rights reserved",
	"advertisement",
	"sign up for our newsletter",
	"subscribe to our newsletter",
	"follow us on",
	"share this article",
	"related articles",
	"read more:",
}

func isJunkLine(line string) bool {
	lower := strings.ToLower(line)
	for _, indicator := range junkIndicators {
		if strings.Contains(lower, indicator) {
			return true
		}
	}
	return false
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func extractTitle(doc *goquery.Document, fallback string) string {
	if og, ok := doc.Find(`meta[property="og:title"]`).First().Attr("content"); ok {
		if title := strings.TrimSpace(og); title != "" {
			return title
		}
	}
	if title := strings.TrimSpace(doc.Find("title").First().Text()); title != "" {
		return title
	}
	return fallback
}

func extractPublished(doc *goquery.Document) *time.Time {
	val, ok := doc.Find(`meta[property="article:published_time"]`).First().Attr("content")
	if !ok {
		return nil
	}
	ts, err := time.Parse(time.RFC3339, strings.TrimSpace(val))
	if err != nil {
		return nil
	}
	return &ts
}

func extractOutlet(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.TrimPrefix(u.Hostname(), "www.")
}

// contentHash fingerprints the normalized text: lines trimmed, empties
// dropped, joined with newlines and lowercased. Case and whitespace-only
// differences hash identically.
func contentHash(text string) string {
	lines := strings.Split(text, "\n")
	kept := make([]string, 0, len(lines))
	for _, line := range lines {
		if trimmed := strings.TrimSpace(line); trimmed != "" {
			kept = append(kept, trimmed)
		}
	}
	normalized := strings.ToLower(strings.Join(kept, "\n"))
	sum := sha256.Sum256([]byte(normalized))
	return hex.EncodeToString(sum[:])
}
