package config

import (
	"embed"
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/adrg/xdg"
	"gopkg.in/yaml.v3"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/x"
)

//go:embed default_config.yaml
var defaultConfigFS embed.FS

// Source is one configured input: an RSS feed or an X timeline/search.
type Source struct {
	Name     string   `yaml:"name"`
	Type     string   `yaml:"type"` // rss | x_timeline | x_search
	URL      string   `yaml:"url,omitempty"`
	Username string   `yaml:"username,omitempty"`
	Query    string   `yaml:"query,omitempty"`
	Tags     []string `yaml:"tags,omitempty"`
	Limit    int      `yaml:"limit,omitempty"`
	Enabled  bool     `yaml:"enabled"`
}

// IsX reports whether the source resolves through the X ingestion path.
func (s Source) IsX() bool {
	return s.Type == "x_timeline" || s.Type == "x_search"
}

// XSpec converts an x_timeline/x_search source into a resolver SourceSpec.
func (s Source) XSpec() x.SourceSpec {
	spec := x.SourceSpec{Name: s.Name, Username: s.Username, Query: s.Query, Limit: s.Limit}
	if s.Type == "x_search" {
		spec.Kind = x.KindSearch
	} else {
		spec.Kind = x.KindTimeline
	}
	return spec
}

type AIConfig struct {
	Provider string `yaml:"provider"` // "claude" or "openai"
	APIKey   string `yaml:"api_key"`
	Model    string `yaml:"model"`
}

// XConfig carries the X ingestion switches. It is resolved from the
// environment once in Load and passed down explicitly; deep components never
// read the environment themselves.
type XConfig struct {
	Mirrors      []string
	RenderProxy  string
	Timeout      time.Duration
	CacheFile    string
	CacheDisable bool
	ForceRefresh bool
}

type Config struct {
	BriefSize int       `yaml:"brief_size,omitempty"`
	Retention string    `yaml:"retention,omitempty"`
	Sources   []Source  `yaml:"sources"`
	AI        *AIConfig `yaml:"ai,omitempty"`

	X XConfig `yaml:"-"`
}

// AIEnabled returns true if AI reranking is configured with a valid API key.
func (c *Config) AIEnabled() bool {
	return c.AI != nil && c.AIKey() != ""
}

// AIKey returns the resolved API key (config or env var).
func (c *Config) AIKey() string {
	if c.AI != nil && c.AI.APIKey != "" {
		return c.AI.APIKey
	}
	return os.Getenv("AIBRIEF_AI_KEY")
}

func (c *Config) RetentionDuration() time.Duration {
	if c.Retention == "" {
		return 90 * 24 * time.Hour
	}
	// Support "Nd" day syntax
	if strings.HasSuffix(c.Retention, "d") {
		if days, err := strconv.Atoi(strings.TrimSuffix(c.Retention, "d")); err == nil {
			return time.Duration(days) * 24 * time.Hour
		}
	}
	d, err := time.ParseDuration(c.Retention)
	if err != nil {
		return 90 * 24 * time.Hour
	}
	return d
}

func (c *Config) EnabledSources() []Source {
	var out []Source
	for _, s := range c.Sources {
		if s.Enabled {
			out = append(out, s)
		}
	}
	return out
}

// FeedSources returns the enabled plain RSS sources.
func (c *Config) FeedSources() []Source {
	var out []Source
	for _, s := range c.EnabledSources() {
		if !s.IsX() {
			out = append(out, s)
		}
	}
	return out
}

// XSources returns the enabled X sources as resolver specs.
func (c *Config) XSources() []x.SourceSpec {
	var out []x.SourceSpec
	for _, s := range c.EnabledSources() {
		if s.IsX() {
			out = append(out, s.XSpec())
		}
	}
	return out
}

// GetBriefSize returns the briefing size, defaulting to 15.
func (c *Config) GetBriefSize() int {
	if c.BriefSize <= 0 {
		return 15
	}
	return c.BriefSize
}

func DefaultConfigPath() string {
	return filepath.Join(xdg.ConfigHome, "aibrief", "config.yaml")
}

func StorePath() string {
	return filepath.Join(xdg.CacheHome, "aibrief", "aibrief.db")
}

// DefaultXCacheFile derives the run cache path from the run date so a new day
// naturally starts cold.
func DefaultXCacheFile(dataDir string) string {
	day := time.Now().Format("2006-01-02")
	return filepath.Join(dataDir, day+".x_cache.json")
}

func loadDefaults() (*Config, error) {
	data, err := defaultConfigFS.ReadFile("default_config.yaml")
	if err != nil {
		return nil, fmt.Errorf("reading embedded config: %w", err)
	}
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing embedded config: %w", err)
	}
	return &cfg, nil
}

// Load reads the config file (writing defaults on first run) and resolves the
// X switches from the environment.
func Load(path string) (*Config, error) {
	cfg, err := loadFile(path)
	if err != nil {
		return nil, err
	}
	cfg.X = xConfigFromEnv()
	return cfg, nil
}

func loadFile(path string) (*Config, error) {
	defaults, err := loadDefaults()
	if err != nil {
		return nil, err
	}

	if path == "" {
		path = DefaultConfigPath()
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			// Write defaults to config path on first run
			if err := writeDefaults(path); err != nil {
				// Non-fatal: just use embedded defaults
				return defaults, nil
			}
			return defaults, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("parsing config %s: %w", path, err)
	}

	if err := validate(&cfg); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func writeDefaults(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, _ := defaultConfigFS.ReadFile("default_config.yaml")
	return os.WriteFile(path, data, 0o644)
}

func validate(cfg *Config) error {
	for i, s := range cfg.Sources {
		if s.Name == "" {
			return fmt.Errorf("source %d: name is required", i)
		}
		switch s.Type {
		case "rss":
			if s.URL == "" {
				return fmt.Errorf("source %q: url is required", s.Name)
			}
			u, err := url.Parse(s.URL)
			if err != nil {
				return fmt.Errorf("source %q: invalid url: %w", s.Name, err)
			}
			if u.Scheme != "http" && u.Scheme != "https" {
				return fmt.Errorf("source %q: url scheme must be http or https, got %q", s.Name, u.Scheme)
			}
		case "x_timeline", "x_search":
			if err := s.XSpec().Validate(); err != nil {
				return err
			}
		default:
			return fmt.Errorf("source %q: unknown type %q (valid: rss, x_timeline, x_search)", s.Name, s.Type)
		}
	}
	return nil
}

const (
	defaultXTimeout = 12 * time.Second
	minXTimeout     = 5 * time.Second
	maxXTimeout     = 60 * time.Second
)

func xConfigFromEnv() XConfig {
	return XConfig{
		Mirrors:      mirrorsFromEnv(os.Getenv("X_RSS_MIRRORS")),
		RenderProxy:  strings.TrimSpace(os.Getenv("X_RENDER_PROXY")),
		Timeout:      timeoutFromEnv(os.Getenv("X_RSS_TIMEOUT_SECONDS")),
		CacheFile:    strings.TrimSpace(os.Getenv("X_CACHE_FILE")),
		CacheDisable: envFlag("X_CACHE_DISABLE"),
		ForceRefresh: envFlag("X_CACHE_FORCE_REFRESH"),
	}
}

// mirrorsFromEnv parses the ordered comma-separated override list and always
// appends the default mirror as the last resort.
func mirrorsFromEnv(raw string) []string {
	var mirrors []string
	seen := make(map[string]bool)
	add := func(m string) {
		m = strings.TrimRight(strings.TrimSpace(m), "/")
		if m != "" && !seen[m] {
			seen[m] = true
			mirrors = append(mirrors, m)
		}
	}
	for _, part := range strings.Split(raw, ",") {
		add(part)
	}
	add(x.DefaultMirror)
	return mirrors
}

func timeoutFromEnv(raw string) time.Duration {
	secs, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil || secs <= 0 {
		return defaultXTimeout
	}
	d := time.Duration(secs) * time.Second
	if d < minXTimeout {
		return minXTimeout
	}
	if d > maxXTimeout {
		return maxXTimeout
	}
	return d
}

func envFlag(name string) bool {
	switch strings.ToLower(strings.TrimSpace(os.Getenv(name))) {
	case "1", "true", "yes", "y", "on":
		return true
	}
	return false
}
