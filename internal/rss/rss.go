// Package rss fetches and parses the configured RSS feeds.
package rss

import (
	"context"
	"time"

	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/briefcast/briefcast/internal/config"
	"github.com/briefcast/briefcast/internal/logger"
	"github.com/briefcast/briefcast/internal/metrics"
)

// Item is a single feed entry with its source attribution.
type Item struct {
	Title        string
	Link         string
	Description  string
	Published    *time.Time
	SourceName   string
	Category     string
	SourceWeight float64
}

// Stats summarizes a feed fetch batch.
type Stats struct {
	TotalFeeds      int
	SuccessfulFeeds int
	TotalItems      int
}

type feedResult struct {
	sourceName string
	items      []Item
	err        error
}

// Fetcher downloads and parses RSS feeds with bounded concurrency.
type Fetcher struct {
	timeout     time.Duration
	concurrency int
	userAgent   string
}

// NewFetcher creates a feed fetcher from the fetch configuration.
func NewFetcher(cfg config.FetchConfig) *Fetcher {
	return &Fetcher{
		timeout:     cfg.RSSTimeout(),
		concurrency: cfg.RSSConcurrency,
		userAgent:   cfg.UserAgent,
	}
}

// FetchAll fetches the enabled feeds concurrently and returns up to perFeed
// items per feed, deduplicated by link across the batch. Per-feed failures are
// logged and counted in the stats; they never abort the batch.
func (f *Fetcher) FetchAll(ctx context.Context, sources []config.SourceEntry, perFeed int) ([]Item, Stats) {
	var enabled []config.SourceEntry
	for _, src := range sources {
		if src.Enabled {
			enabled = append(enabled, src)
		}
	}
	if len(enabled) == 0 {
		return nil, Stats{}
	}

	results := make([]feedResult, len(enabled))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(f.concurrency)
	for i, src := range enabled {
		i, src := i, src
		g.Go(func() error {
			results[i] = f.fetchFeed(ctx, src)
			return nil
		})
	}
	g.Wait()

	stats := Stats{TotalFeeds: len(results)}
	seen := make(map[string]bool)

	var items []Item
	for _, res := range results {
		if res.err != nil {
			logger.Warn("feed fetch failed", "source", res.sourceName, "error", res.err)
			metrics.Global.IncrementFeedErrors()
			continue
		}
		stats.SuccessfulFeeds++
		metrics.Global.IncrementFeedsFetched()

		count := 0
		for _, item := range res.items {
			if perFeed > 0 && count >= perFeed {
				break
			}
			if seen[item.Link] {
				continue
			}
			seen[item.Link] = true
			items = append(items, item)
			count++
		}
	}

	stats.TotalItems = len(items)
	logger.Info("feeds fetched",
		"total", stats.TotalFeeds,
		"successful", stats.SuccessfulFeeds,
		"items", stats.TotalItems)

	return items, stats
}

func (f *Fetcher) fetchFeed(ctx context.Context, src config.SourceEntry) feedResult {
	fctx, cancel := context.WithTimeout(ctx, f.timeout)
	defer cancel()

	parser := gofeed.NewParser()
	parser.UserAgent = f.userAgent

	feed, err := parser.ParseURLWithContext(src.URL, fctx)
	if err != nil {
		return feedResult{sourceName: src.Name, err: err}
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		if entry.Link == "" {
			continue
		}

		var published *time.Time
		if entry.PublishedParsed != nil {
			published = entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			published = entry.UpdatedParsed
		}

		items = append(items, Item{
			Title:        entry.Title,
			Link:         entry.Link,
			Description:  entry.Description,
			Published:    published,
			SourceName:   src.Name,
			Category:     src.Category,
			SourceWeight: src.Weight,
		})
	}

	return feedResult{sourceName: src.Name, items: items}
}
