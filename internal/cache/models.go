package cache

import "time"

// Item is one briefing candidate persisted in the store, whatever its origin
// (RSS feed, X mirror, scrape fallback).
type Item struct {
	ID         string
	Source     string
	Title      string
	Link       string
	Summary    string
	Published  time.Time
	FetchedAt  time.Time
	Score      int
	Primary    string
	Tags       []string
	Entities   []string
	Why        string
	Provenance string // rss | rss_mirror | scrape | cache
}

type QueryOpts struct {
	Since   time.Time
	Sources []string
	Limit   int
}
