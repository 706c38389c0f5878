package config

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/briefcast/briefcast/internal/logger"
)

// SourceEntry is one feed definition from sources.yaml.
type SourceEntry struct {
	Name     string
	URL      string
	Category string
	Weight   float64
	Enabled  bool
}

// rawSource keeps optional fields as pointers so absent values can take
// their defaults (weight 1.0, enabled true).
type rawSource struct {
	Name     string   `yaml:"name"`
	URL      string   `yaml:"url"`
	Category string   `yaml:"category"`
	Weight   *float64 `yaml:"weight"`
	Enabled  *bool    `yaml:"enabled"`
}

type sourcesFile struct {
	Sources []rawSource `yaml:"sources"`
}

// LoadSources reads sources.yaml. Invalid entries are skipped with a
// warning rather than failing the whole file.
func LoadSources(path string) ([]SourceEntry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read sources file %s: %w", path, err)
	}

	var doc sourcesFile
	if err := yaml.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("invalid YAML in sources file %s: %w", path, err)
	}

	seen := make(map[string]bool)
	entries := make([]SourceEntry, 0, len(doc.Sources))

	for _, raw := range doc.Sources {
		entry, err := raw.resolve()
		if err != nil {
			logger.Warn("skipping invalid source", "name", raw.Name, "error", err.Error())
			continue
		}
		if seen[entry.Name] {
			logger.Warn("skipping duplicate source", "name", entry.Name)
			continue
		}
		seen[entry.Name] = true
		entries = append(entries, entry)
	}

	return entries, nil
}

func (r rawSource) resolve() (SourceEntry, error) {
	if r.Name == "" {
		return SourceEntry{}, fmt.Errorf("name is required")
	}
	if r.URL == "" {
		return SourceEntry{}, fmt.Errorf("url is required")
	}
	if r.Category == "" {
		return SourceEntry{}, fmt.Errorf("category is required")
	}

	weight := 1.0
	if r.Weight != nil {
		weight = *r.Weight
	}
	if weight < 0 || weight > 1 {
		return SourceEntry{}, fmt.Errorf("weight must be between 0 and 1, got %v", weight)
	}

	enabled := true
	if r.Enabled != nil {
		enabled = *r.Enabled
	}

	return SourceEntry{
		Name:     r.Name,
		URL:      r.URL,
		Category: r.Category,
		Weight:   weight,
		Enabled:  enabled,
	}, nil
}
