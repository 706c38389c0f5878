package cache

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/briefcast/briefcast/internal/logger"
)

// Entry is a cached article summary keyed by content hash.
type Entry struct {
	Hash     string    `json:"hash"`
	Bullets  []string  `json:"bullets"`
	Model    string    `json:"model"`
	StoredAt time.Time `json:"stored_at"`
}

// SummaryCache keeps article summaries across runs so unchanged articles
// do not hit the LLM twice. Backed by a JSON file under the workspace.
type SummaryCache struct {
	path string
	ttl  time.Duration

	mu      sync.RWMutex
	entries map[string]Entry
}

func NewSummaryCache(path string, ttl time.Duration) *SummaryCache {
	return &SummaryCache{
		path:    path,
		ttl:     ttl,
		entries: make(map[string]Entry),
	}
}

// Load reads the cache file, dropping entries older than the TTL. A missing
// file means an empty cache; a corrupt file is discarded with a warning.
func (c *SummaryCache) Load() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	data, err := os.ReadFile(c.path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read summary cache: %w", err)
	}

	if len(data) == 0 {
		return nil
	}

	var entries []Entry
	if err := json.Unmarshal(data, &entries); err != nil {
		logger.Warn("discarding corrupt summary cache", "path", c.path, "error", err.Error())
		c.entries = make(map[string]Entry)
		return nil
	}

	cutoff := time.Now().Add(-c.ttl)
	for _, e := range entries {
		if e.StoredAt.After(cutoff) {
			c.entries[e.Hash] = e
		}
	}

	return nil
}

func (c *SummaryCache) Get(hash string) ([]string, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	e, ok := c.entries[hash]
	if !ok {
		return nil, false
	}
	if time.Since(e.StoredAt) > c.ttl {
		return nil, false
	}
	return e.Bullets, true
}

func (c *SummaryCache) Put(hash string, bullets []string, model string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries[hash] = Entry{
		Hash:     hash,
		Bullets:  bullets,
		Model:    model,
		StoredAt: time.Now(),
	}
}

func (c *SummaryCache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}

// Flush writes the cache back to disk, creating parent directories as needed.
func (c *SummaryCache) Flush() error {
	c.mu.RLock()
	entries := make([]Entry, 0, len(c.entries))
	for _, e := range c.entries {
		entries = append(entries, e)
	}
	c.mu.RUnlock()

	data, err := json.MarshalIndent(entries, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal summary cache: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("failed to create cache directory: %w", err)
	}

	if err := os.WriteFile(c.path, data, 0o644); err != nil {
		return fmt.Errorf("failed to write summary cache: %w", err)
	}

	return nil
}
