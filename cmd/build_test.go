package cmd

import (
	"strings"
	"testing"
	"time"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/x"
)

func TestTruncate(t *testing.T) {
	if got := truncate("short", 160); got != "short" {
		t.Errorf("truncate = %q", got)
	}
	long := strings.Repeat("a", 200)
	got := truncate(long, 160)
	if len([]rune(got)) != 160 || !strings.HasSuffix(got, "...") {
		t.Errorf("truncate(long) = %q (len %d)", got, len(got))
	}
}

func TestXToStoreItem(t *testing.T) {
	pub := time.Date(2026, 8, 20, 10, 0, 0, 0, time.UTC)
	now := time.Date(2026, 8, 25, 6, 0, 0, 0, time.UTC)
	res := x.Result{
		Spec:   x.SourceSpec{Name: "Alice", Kind: x.KindTimeline, Username: "alice"},
		Status: x.StatusRSSMirror,
	}
	it := x.Item{
		ID:         "111",
		Text:       "A post about HBM supply",
		Author:     "@alice",
		URL:        "https://x.com/alice/status/111",
		Published:  &pub,
		SourceKind: x.SourceRSSMirror,
	}

	got := xToStoreItem(res, it, now)
	if got.ID != "x:111" {
		t.Errorf("ID = %q", got.ID)
	}
	if got.Source != "Alice" {
		t.Errorf("Source = %q", got.Source)
	}
	if got.Title != "A post about HBM supply" || got.Summary != it.Text {
		t.Errorf("Title/Summary = %q / %q", got.Title, got.Summary)
	}
	if !got.Published.Equal(pub) {
		t.Errorf("Published = %v", got.Published)
	}
	if got.Provenance != "rss_mirror" {
		t.Errorf("Provenance = %q", got.Provenance)
	}

	// Without a post timestamp the fetch time stands in.
	it.Published = nil
	if got := xToStoreItem(res, it, now); !got.Published.Equal(now) {
		t.Errorf("fallback Published = %v", got.Published)
	}
}
