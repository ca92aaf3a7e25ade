package feed

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/config"
)

const sampleFeed = `<?xml version="1.0" encoding="UTF-8"?>
<rss version="2.0">
<channel>
<title>Test Blog</title>
<item>
<title>GPU cluster economics</title>
<link>https://example.com/gpu-economics</link>
<description>&lt;p&gt;A look at &lt;b&gt;datacenter&lt;/b&gt;   capex trends.&lt;/p&gt;</description>
<pubDate>Tue, 19 Aug 2026 10:00:00 GMT</pubDate>
</item>
<item>
<title></title>
<link>https://example.com/untitled</link>
</item>
<item>
<title>Second article</title>
<link>https://example.com/second</link>
<description>More content.</description>
</item>
</channel>
</rss>`

func testSource(url string) config.Source {
	return config.Source{Name: "Test Blog", Type: "rss", URL: url, Tags: []string{"blog"}}
}

func TestFetch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/rss+xml")
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	items, err := f.Fetch(context.Background(), testSource(srv.URL))
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}

	// The untitled entry is skipped.
	if len(items) != 2 {
		t.Fatalf("expected 2 items, got %d", len(items))
	}

	first := items[0]
	if first.Title != "GPU cluster economics" {
		t.Errorf("Title = %q", first.Title)
	}
	if first.Summary != "A look at datacenter capex trends." {
		t.Errorf("Summary not cleaned: %q", first.Summary)
	}
	if first.Source != "Test Blog" {
		t.Errorf("Source = %q", first.Source)
	}
	if first.Provenance != "rss" {
		t.Errorf("Provenance = %q", first.Provenance)
	}
	if len(first.Tags) != 1 || first.Tags[0] != "blog" {
		t.Errorf("Tags = %v", first.Tags)
	}
	if first.Published.Year() != 2026 {
		t.Errorf("Published = %v", first.Published)
	}
	if first.ID == "" || first.ID == items[1].ID {
		t.Error("item IDs must be distinct and non-empty")
	}

	// Missing pubDate falls back to fetch time.
	if items[1].Published.IsZero() {
		t.Error("fallback published time missing")
	}
}

func TestFetchLimit(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	src := testSource(srv.URL)
	src.Limit = 1
	items, err := f.Fetch(context.Background(), src)
	if err != nil {
		t.Fatalf("Fetch: %v", err)
	}
	if len(items) != 1 {
		t.Errorf("expected 1 item, got %d", len(items))
	}
}

func TestFetchRetries(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		if hits <= 2 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		w.Write([]byte(sampleFeed))
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	items, err := f.Fetch(context.Background(), testSource(srv.URL))
	if err != nil {
		t.Fatalf("expected success on the final retry: %v", err)
	}
	if hits != 3 {
		t.Errorf("expected 3 attempts, got %d", hits)
	}
	if len(items) == 0 {
		t.Error("expected items after retry")
	}
}

func TestFetchGivesUp(t *testing.T) {
	var hits int
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits++
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	f := NewFetcher(2 * time.Second)
	if _, err := f.Fetch(context.Background(), testSource(srv.URL)); err == nil {
		t.Fatal("expected error after exhausting retries")
	}
	if hits != retries+1 {
		t.Errorf("expected %d attempts, got %d", retries+1, hits)
	}
}

func TestFetchAllCollectsErrors(t *testing.T) {
	good := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(sampleFeed))
	}))
	defer good.Close()
	bad := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNotFound)
	}))
	defer bad.Close()

	res := FetchAll(context.Background(), []config.Source{
		testSource(good.URL),
		{Name: "Broken", Type: "rss", URL: bad.URL},
	}, 2*time.Second)

	if len(res.Items) != 2 {
		t.Errorf("expected 2 items from the good feed, got %d", len(res.Items))
	}
	if len(res.Errors) != 1 {
		t.Errorf("expected 1 collected error, got %d", len(res.Errors))
	}
}
