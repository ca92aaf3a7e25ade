package x

import (
	"crypto/sha256"
	"fmt"
	"regexp"
	"time"
)

// SourceKind records which stage produced an item.
type SourceKind string

const (
	SourceRSSMirror SourceKind = "rss_mirror"
	SourceScrape    SourceKind = "scrape"
	SourceCache     SourceKind = "cache"
)

// Item is a normalized post. Published may be nil for scraped content where
// the render proxy exposes no per-post timestamp.
type Item struct {
	ID         string     `json:"id"`
	Text       string     `json:"text"`
	Author     string     `json:"author,omitempty"`
	URL        string     `json:"url"`
	Published  *time.Time `json:"published_at,omitempty"`
	SourceKind SourceKind `json:"source_kind"`
}

var statusIDRe = regexp.MustCompile(`/status/(\d+)`)

// itemID prefers the stable status ID embedded in the post URL and falls
// back to a content hash when the origin provides none.
func itemID(url, text string) string {
	if m := statusIDRe.FindStringSubmatch(url); m != nil {
		return m[1]
	}
	h := sha256.Sum256([]byte(text))
	return fmt.Sprintf("%x", h[:8])
}
