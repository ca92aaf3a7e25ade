package config

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
	"time"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/x"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "config.yaml")
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}
	return path
}

func TestLoad(t *testing.T) {
	path := writeConfig(t, `
brief_size: 10
retention: 30d
sources:
  - name: Example Blog
    type: rss
    url: https://example.com/feed.xml
    tags: [blog]
    enabled: true
  - name: Disabled Blog
    type: rss
    url: https://example.com/other.xml
    enabled: false
  - name: Alice
    type: x_timeline
    username: alice
    limit: 5
    enabled: true
  - name: Chip search
    type: x_search
    query: "from:alice hbm"
    enabled: true
`)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}

	if cfg.GetBriefSize() != 10 {
		t.Errorf("GetBriefSize = %d", cfg.GetBriefSize())
	}
	if cfg.RetentionDuration() != 30*24*time.Hour {
		t.Errorf("RetentionDuration = %v", cfg.RetentionDuration())
	}

	feeds := cfg.FeedSources()
	if len(feeds) != 1 || feeds[0].Name != "Example Blog" {
		t.Errorf("FeedSources = %+v", feeds)
	}

	xs := cfg.XSources()
	if len(xs) != 2 {
		t.Fatalf("XSources = %+v", xs)
	}
	if xs[0].Kind != x.KindTimeline || xs[0].Username != "alice" || xs[0].Limit != 5 {
		t.Errorf("timeline spec = %+v", xs[0])
	}
	if xs[1].Kind != x.KindSearch || xs[1].Query != "from:alice hbm" {
		t.Errorf("search spec = %+v", xs[1])
	}
}

func TestLoadFirstRunWritesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if len(cfg.Sources) == 0 {
		t.Error("embedded defaults should carry sources")
	}
	if _, err := os.Stat(path); err != nil {
		t.Errorf("defaults not written on first run: %v", err)
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name string
		yaml string
	}{
		{"missing name", "sources:\n  - type: rss\n    url: https://e.com/f\n    enabled: true\n"},
		{"rss without url", "sources:\n  - name: A\n    type: rss\n    enabled: true\n"},
		{"rss bad scheme", "sources:\n  - name: A\n    type: rss\n    url: ftp://e.com/f\n    enabled: true\n"},
		{"unknown type", "sources:\n  - name: A\n    type: telegram\n    enabled: true\n"},
		{"timeline without username", "sources:\n  - name: A\n    type: x_timeline\n    enabled: true\n"},
		{"search without query", "sources:\n  - name: A\n    type: x_search\n    enabled: true\n"},
		{"timeline with query", "sources:\n  - name: A\n    type: x_timeline\n    username: alice\n    query: q\n    enabled: true\n"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := Load(writeConfig(t, tt.yaml)); err == nil {
				t.Error("expected a validation error")
			}
		})
	}
}

func TestRetentionDuration(t *testing.T) {
	tests := []struct {
		in   string
		want time.Duration
	}{
		{"", 90 * 24 * time.Hour},
		{"7d", 7 * 24 * time.Hour},
		{"48h", 48 * time.Hour},
		{"garbage", 90 * 24 * time.Hour},
	}
	for _, tt := range tests {
		c := &Config{Retention: tt.in}
		if got := c.RetentionDuration(); got != tt.want {
			t.Errorf("RetentionDuration(%q) = %v, want %v", tt.in, got, tt.want)
		}
	}
}

func TestMirrorsFromEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want []string
	}{
		{"", []string{x.DefaultMirror}},
		{"https://m1.example", []string{"https://m1.example", x.DefaultMirror}},
		{"https://m1.example/, https://m2.example ,https://m1.example", []string{"https://m1.example", "https://m2.example", x.DefaultMirror}},
		{x.DefaultMirror, []string{x.DefaultMirror}},
	}
	for _, tt := range tests {
		if got := mirrorsFromEnv(tt.raw); !reflect.DeepEqual(got, tt.want) {
			t.Errorf("mirrorsFromEnv(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestTimeoutFromEnv(t *testing.T) {
	tests := []struct {
		raw  string
		want time.Duration
	}{
		{"", 12 * time.Second},
		{"abc", 12 * time.Second},
		{"-3", 12 * time.Second},
		{"1", 5 * time.Second},
		{"30", 30 * time.Second},
		{"600", 60 * time.Second},
	}
	for _, tt := range tests {
		if got := timeoutFromEnv(tt.raw); got != tt.want {
			t.Errorf("timeoutFromEnv(%q) = %v, want %v", tt.raw, got, tt.want)
		}
	}
}

func TestEnvFlag(t *testing.T) {
	for _, v := range []string{"1", "true", "YES", " on "} {
		t.Setenv("X_CACHE_DISABLE", v)
		if !envFlag("X_CACHE_DISABLE") {
			t.Errorf("envFlag(%q) = false", v)
		}
	}
	for _, v := range []string{"", "0", "false", "off", "nope"} {
		t.Setenv("X_CACHE_DISABLE", v)
		if envFlag("X_CACHE_DISABLE") {
			t.Errorf("envFlag(%q) = true", v)
		}
	}
}

func TestXConfigFromEnv(t *testing.T) {
	t.Setenv("X_RSS_MIRRORS", "https://m1.example")
	t.Setenv("X_RENDER_PROXY", "https://proxy.example")
	t.Setenv("X_RSS_TIMEOUT_SECONDS", "20")
	t.Setenv("X_CACHE_FILE", "/tmp/custom.json")
	t.Setenv("X_CACHE_DISABLE", "")
	t.Setenv("X_CACHE_FORCE_REFRESH", "true")

	xc := xConfigFromEnv()
	if !reflect.DeepEqual(xc.Mirrors, []string{"https://m1.example", x.DefaultMirror}) {
		t.Errorf("Mirrors = %v", xc.Mirrors)
	}
	if xc.RenderProxy != "https://proxy.example" {
		t.Errorf("RenderProxy = %q", xc.RenderProxy)
	}
	if xc.Timeout != 20*time.Second {
		t.Errorf("Timeout = %v", xc.Timeout)
	}
	if xc.CacheFile != "/tmp/custom.json" {
		t.Errorf("CacheFile = %q", xc.CacheFile)
	}
	if xc.CacheDisable {
		t.Error("CacheDisable should be false")
	}
	if !xc.ForceRefresh {
		t.Error("ForceRefresh should be true")
	}
}

func TestAIKeyFromEnv(t *testing.T) {
	t.Setenv("AIBRIEF_AI_KEY", "env-key")

	c := &Config{AI: &AIConfig{Provider: "claude"}}
	if c.AIKey() != "env-key" {
		t.Errorf("AIKey = %q", c.AIKey())
	}
	if !c.AIEnabled() {
		t.Error("AIEnabled should be true with env key")
	}

	c.AI.APIKey = "file-key"
	if c.AIKey() != "file-key" {
		t.Error("config key should win over env")
	}

	none := &Config{}
	if none.AIEnabled() {
		t.Error("AIEnabled without ai block should be false")
	}
}

func TestDefaultXCacheFile(t *testing.T) {
	got := DefaultXCacheFile("/data")
	want := filepath.Join("/data", time.Now().Format("2006-01-02")+".x_cache.json")
	if got != want {
		t.Errorf("DefaultXCacheFile = %q, want %q", got, want)
	}
}
