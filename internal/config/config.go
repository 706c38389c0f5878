// Package config loads the briefcast configuration from YAML and the
// environment, and validates it before anything else runs.
package config

import (
	"fmt"
	"math"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// weightTolerance is how far the four ranking weights may drift from
// summing to exactly 1.0.
const weightTolerance = 0.001

type Config struct {
	WorkspaceRoot string         `yaml:"workspace_root"`
	Database      DatabaseConfig `yaml:"database"`
	RunDefaults   RunDefaults    `yaml:"run_defaults"`
	Ranking       RankingConfig  `yaml:"ranking"`
	Preferences   Preferences    `yaml:"preferences"`
	LLM           LLMConfig      `yaml:"llm"`
	Fetch         FetchConfig    `yaml:"fetch"`
	Monitor       MonitorConfig  `yaml:"monitor"`
}

type DatabaseConfig struct {
	URL         string `yaml:"url"`
	Host        string `yaml:"host"`
	Port        int    `yaml:"port"`
	Name        string `yaml:"name"`
	User        string `yaml:"user"`
	Password    string `yaml:"password"`
	PasswordEnv string `yaml:"password_env"`
	SSLMode     string `yaml:"sslmode"`
}

// DSN renders a lib/pq connection string. An explicit URL wins over the
// individual fields.
func (d DatabaseConfig) DSN() string {
	if d.URL != "" {
		return d.URL
	}

	dsn := fmt.Sprintf("host=%s port=%d dbname=%s user=%s sslmode=%s",
		d.Host, d.Port, d.Name, d.User, d.SSLMode)
	if d.Password != "" {
		dsn += " password=" + d.Password
	}
	return dsn
}

type RunDefaults struct {
	TargetMinutes int `yaml:"target_minutes"`
	MaxItems      int `yaml:"max_items"`
	MaxStories    int `yaml:"max_stories"`
}

type RankingConfig struct {
	RecencyWeight     float64 `yaml:"recency_weight"`
	SourceWeight      float64 `yaml:"source_weight"`
	TopicWeight       float64 `yaml:"topic_weight"`
	NoveltyWeight     float64 `yaml:"novelty_weight"`
	MinScore          float64 `yaml:"min_score"`
	NoveltyWindowRuns int     `yaml:"novelty_window_runs"`
}

// PreferenceWeight is the remainder after the four configured weights.
// Because those must sum to 1.0, it stays near zero for any valid config.
func (r RankingConfig) PreferenceWeight() float64 {
	return 1.0 - r.RecencyWeight - r.SourceWeight - r.TopicWeight - r.NoveltyWeight
}

type Preferences struct {
	BoostKeywords       []string `yaml:"boost_keywords"`
	SuppressKeywords    []string `yaml:"suppress_keywords"`
	PreferredOutlets    []string `yaml:"preferred_outlets"`
	PreferredCategories []string `yaml:"preferred_categories"`
}

type LLMConfig struct {
	Provider          string `yaml:"provider"`
	Model             string `yaml:"model"`
	APIKeyEnv         string `yaml:"api_key_env"`
	BaseURL           string `yaml:"base_url"`
	MaxRequestsPerDay int    `yaml:"max_requests_per_day"`
}

// APIKey resolves the provider key from the configured environment variable.
func (l LLMConfig) APIKey() string {
	if l.APIKeyEnv == "" {
		return ""
	}
	return os.Getenv(l.APIKeyEnv)
}

type FetchConfig struct {
	RSSTimeoutSeconds     int    `yaml:"rss_timeout_seconds"`
	RSSConcurrency        int    `yaml:"rss_concurrency"`
	ArticleTimeoutSeconds int    `yaml:"article_timeout_seconds"`
	ArticleConcurrency    int    `yaml:"article_concurrency"`
	UserAgent             string `yaml:"user_agent"`
}

func (f FetchConfig) RSSTimeout() time.Duration {
	return time.Duration(f.RSSTimeoutSeconds) * time.Second
}

func (f FetchConfig) ArticleTimeout() time.Duration {
	return time.Duration(f.ArticleTimeoutSeconds) * time.Second
}

type MonitorConfig struct {
	Addr string `yaml:"addr"` // empty disables the monitoring server
}

// Default returns the configuration used when config.yaml sets nothing.
func Default() *Config {
	return &Config{
		WorkspaceRoot: "./workspace",
		Database: DatabaseConfig{
			Host:    "localhost",
			Port:    5432,
			Name:    "briefcast",
			User:    "briefcast",
			SSLMode: "disable",
		},
		RunDefaults: RunDefaults{
			TargetMinutes: 12,
			MaxItems:      150,
			MaxStories:    20,
		},
		Ranking: RankingConfig{
			RecencyWeight:     0.3,
			SourceWeight:      0.2,
			TopicWeight:       0.3,
			NoveltyWeight:     0.2,
			MinScore:          0.1,
			NoveltyWindowRuns: 4,
		},
		LLM: LLMConfig{
			Provider:          "openai",
			MaxRequestsPerDay: 500,
		},
		Fetch: FetchConfig{
			RSSTimeoutSeconds:     30,
			RSSConcurrency:        5,
			ArticleTimeoutSeconds: 30,
			ArticleConcurrency:    3,
			UserAgent:             "Briefcast/1.0 (AI Podcast Agent)",
		},
		Monitor: MonitorConfig{
			Addr: ":8080",
		},
	}
}

// Load reads the YAML config at path, applies environment overrides and
// validates the result. A missing file is not an error: defaults plus
// environment still make a working config.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
		}
	case os.IsNotExist(err):
		// defaults + env only
	default:
		return nil, fmt.Errorf("failed to read config %s: %w", path, err)
	}

	cfg.applyEnv()
	cfg.normalize()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	c.Database.Host = getEnvOrDefault("BRIEFCAST_DB_HOST", c.Database.Host)
	c.Database.Port = getEnvIntOrDefault("BRIEFCAST_DB_PORT", c.Database.Port)
	c.Database.Name = getEnvOrDefault("BRIEFCAST_DB_NAME", c.Database.Name)
	c.Database.User = getEnvOrDefault("BRIEFCAST_DB_USER", c.Database.User)
	c.Database.Password = getEnvOrDefault("BRIEFCAST_DB_PASSWORD", c.Database.Password)

	if c.Database.PasswordEnv != "" {
		if v := os.Getenv(c.Database.PasswordEnv); v != "" {
			c.Database.Password = v
		}
	}

	if v := os.Getenv("BRIEFCAST_WORKSPACE"); v != "" {
		c.WorkspaceRoot = v
	}
	if v := os.Getenv("BRIEFCAST_LLM_PROVIDER"); v != "" {
		c.LLM.Provider = v
	}
	if v := os.Getenv("BRIEFCAST_LLM_MODEL"); v != "" {
		c.LLM.Model = v
	}
	if v := os.Getenv("PORT"); v != "" {
		c.Monitor.Addr = ":" + v
	}
}

// normalize fills provider-dependent defaults left empty by the file.
func (c *Config) normalize() {
	switch c.LLM.Provider {
	case "openai":
		if c.LLM.Model == "" {
			c.LLM.Model = "gpt-4o-mini"
		}
		if c.LLM.APIKeyEnv == "" {
			c.LLM.APIKeyEnv = "OPENAI_API_KEY"
		}
	case "gemini":
		if c.LLM.Model == "" {
			c.LLM.Model = "gemini-1.5-flash"
		}
		if c.LLM.APIKeyEnv == "" {
			c.LLM.APIKeyEnv = "GEMINI_API_KEY"
		}
	case "mock":
		if c.LLM.Model == "" {
			c.LLM.Model = "mock"
		}
	}
}

func (c *Config) Validate() error {
	if c.WorkspaceRoot == "" {
		return fmt.Errorf("workspace_root is required")
	}

	weights := map[string]float64{
		"recency_weight": c.Ranking.RecencyWeight,
		"source_weight":  c.Ranking.SourceWeight,
		"topic_weight":   c.Ranking.TopicWeight,
		"novelty_weight": c.Ranking.NoveltyWeight,
	}
	for name, w := range weights {
		if w < 0 || w > 1 {
			return fmt.Errorf("%s must be between 0 and 1, got %v", name, w)
		}
	}

	sum := c.Ranking.RecencyWeight + c.Ranking.SourceWeight +
		c.Ranking.TopicWeight + c.Ranking.NoveltyWeight
	if math.Abs(sum-1.0) > weightTolerance {
		return fmt.Errorf("ranking weights must sum to 1.0, got %v", sum)
	}

	if c.Ranking.MinScore < 0 || c.Ranking.MinScore > 1 {
		return fmt.Errorf("min_score must be between 0 and 1, got %v", c.Ranking.MinScore)
	}
	if c.Ranking.NoveltyWindowRuns < 1 || c.Ranking.NoveltyWindowRuns > 10 {
		return fmt.Errorf("novelty_window_runs must be between 1 and 10, got %d", c.Ranking.NoveltyWindowRuns)
	}

	if c.RunDefaults.TargetMinutes < 1 || c.RunDefaults.TargetMinutes > 60 {
		return fmt.Errorf("target_minutes must be between 1 and 60, got %d", c.RunDefaults.TargetMinutes)
	}
	if c.RunDefaults.MaxItems < 1 || c.RunDefaults.MaxItems > 1000 {
		return fmt.Errorf("max_items must be between 1 and 1000, got %d", c.RunDefaults.MaxItems)
	}
	if c.RunDefaults.MaxStories < 1 || c.RunDefaults.MaxStories > 100 {
		return fmt.Errorf("max_stories must be between 1 and 100, got %d", c.RunDefaults.MaxStories)
	}

	switch c.LLM.Provider {
	case "openai", "gemini", "mock":
	default:
		return fmt.Errorf("llm provider must be openai, gemini or mock, got %q", c.LLM.Provider)
	}

	if c.Fetch.RSSConcurrency < 1 || c.Fetch.ArticleConcurrency < 1 {
		return fmt.Errorf("fetch concurrency must be at least 1")
	}
	if c.Fetch.RSSTimeoutSeconds < 1 || c.Fetch.ArticleTimeoutSeconds < 1 {
		return fmt.Errorf("fetch timeouts must be at least 1 second")
	}

	if c.Database.URL == "" {
		if c.Database.Host == "" || c.Database.Name == "" || c.Database.User == "" {
			return fmt.Errorf("database host, name and user are required when no url is set")
		}
	}

	return nil
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}
