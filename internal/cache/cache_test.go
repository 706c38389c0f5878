package cache

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSummaryCachePutGet(t *testing.T) {
	c := NewSummaryCache(filepath.Join(t.TempDir(), "summaries.json"), 7*24*time.Hour)

	_, ok := c.Get("abc")
	assert.False(t, ok)

	c.Put("abc", []string{"first point", "second point"}, "gpt-4o-mini")

	bullets, ok := c.Get("abc")
	require.True(t, ok)
	assert.Equal(t, []string{"first point", "second point"}, bullets)
	assert.Equal(t, 1, c.Len())
}

func TestSummaryCacheRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cache", "summaries.json")

	c := NewSummaryCache(path, 7*24*time.Hour)
	c.Put("h1", []string{"a"}, "mock")
	c.Put("h2", []string{"b", "c"}, "mock")
	require.NoError(t, c.Flush())

	reloaded := NewSummaryCache(path, 7*24*time.Hour)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 2, reloaded.Len())

	bullets, ok := reloaded.Get("h2")
	require.True(t, ok)
	assert.Equal(t, []string{"b", "c"}, bullets)
}

func TestSummaryCacheExpiry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.json")

	c := NewSummaryCache(path, time.Nanosecond)
	c.Put("old", []string{"stale"}, "mock")
	time.Sleep(time.Millisecond)

	_, ok := c.Get("old")
	assert.False(t, ok)

	// Expired entries are also dropped on reload.
	require.NoError(t, c.Flush())
	reloaded := NewSummaryCache(path, time.Nanosecond)
	require.NoError(t, reloaded.Load())
	assert.Equal(t, 0, reloaded.Len())
}

func TestSummaryCacheMissingFile(t *testing.T) {
	c := NewSummaryCache(filepath.Join(t.TempDir(), "nope.json"), time.Hour)
	require.NoError(t, c.Load())
	assert.Equal(t, 0, c.Len())
}

func TestSummaryCacheCorruptFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "summaries.json")
	require.NoError(t, os.WriteFile(path, []byte("{not json"), 0o644))

	c := NewSummaryCache(path, time.Hour)
	require.NoError(t, c.Load())
	assert.Equal(t, 0, c.Len())
}
