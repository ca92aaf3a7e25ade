package feed

import (
	"bytes"
	"context"
	"crypto/sha256"
	"fmt"
	"html"
	"io"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
	"golang.org/x/sync/errgroup"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/cache"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/config"
)

const (
	userAgent    = "ai-intel-briefing/1.0 (+https://github.com/rolandojf-gif/ai-intel-briefing-v3)"
	acceptHeader = "application/rss+xml, application/xml;q=0.9, */*;q=0.8"

	// One fetch plus two retries; feeds flake.
	retries = 2

	defaultLimit = 12
	maxBody      = 8 << 20
)

type Fetcher struct {
	client *http.Client
	parser *gofeed.Parser
	strip  *bluemonday.Policy
}

func NewFetcher(timeout time.Duration) *Fetcher {
	if timeout <= 0 {
		timeout = 15 * time.Second
	}
	return &Fetcher{
		client: &http.Client{Timeout: timeout},
		parser: gofeed.NewParser(),
		strip:  bluemonday.StrictPolicy(),
	}
}

func (f *Fetcher) Fetch(ctx context.Context, source config.Source) ([]cache.Item, error) {
	body, err := f.get(ctx, source.URL)
	if err != nil {
		return nil, fmt.Errorf("fetching %s: %w", source.Name, err)
	}

	parsed, err := f.parser.Parse(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parsing %s: %w", source.Name, err)
	}

	limit := source.Limit
	if limit <= 0 {
		limit = defaultLimit
	}

	now := time.Now()
	items := make([]cache.Item, 0, limit)
	for _, entry := range parsed.Items {
		if len(items) >= limit {
			break
		}
		title := strings.TrimSpace(entry.Title)
		link := strings.TrimSpace(entry.Link)
		if title == "" || link == "" {
			continue
		}

		var pub time.Time
		if entry.PublishedParsed != nil {
			pub = *entry.PublishedParsed
		} else if entry.UpdatedParsed != nil {
			pub = *entry.UpdatedParsed
		} else {
			pub = now
		}

		summary := entry.Description
		if summary == "" {
			summary = entry.Content
		}

		items = append(items, cache.Item{
			ID:         itemID(link),
			Source:     source.Name,
			Title:      title,
			Link:       link,
			Summary:    f.cleanText(summary),
			Published:  pub,
			FetchedAt:  now,
			Tags:       source.Tags,
			Provenance: "rss",
		})
	}
	return items, nil
}

func (f *Fetcher) get(ctx context.Context, url string) ([]byte, error) {
	var lastErr error
	for attempt := 0; attempt <= retries; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("User-Agent", userAgent)
		req.Header.Set("Accept", acceptHeader)

		resp, err := f.client.Do(req)
		if err != nil {
			lastErr = err
			continue
		}
		body, err := io.ReadAll(io.LimitReader(resp.Body, maxBody))
		resp.Body.Close()
		if err != nil {
			lastErr = err
			continue
		}
		if resp.StatusCode != http.StatusOK {
			lastErr = fmt.Errorf("status %d", resp.StatusCode)
			continue
		}
		return bytes.TrimLeft(body, " \t\r\n"), nil
	}
	return nil, lastErr
}

func (f *Fetcher) cleanText(s string) string {
	plain := html.UnescapeString(f.strip.Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

func itemID(link string) string {
	h := sha256.Sum256([]byte(link))
	return fmt.Sprintf("%x", h[:16])
}

type FetchResult struct {
	Items  []cache.Item
	Errors []error
}

// FetchAll fetches the given feed sources with bounded parallelism. Per-feed
// failures are collected, never fatal.
func FetchAll(ctx context.Context, sources []config.Source, timeout time.Duration) FetchResult {
	var (
		mu     sync.Mutex
		result FetchResult
	)

	fetcher := NewFetcher(timeout)

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(4)
	for _, src := range sources {
		src := src
		g.Go(func() error {
			items, err := fetcher.Fetch(ctx, src)
			mu.Lock()
			defer mu.Unlock()
			if err != nil {
				result.Errors = append(result.Errors, err)
				return nil
			}
			result.Items = append(result.Items, items...)
			return nil
		})
	}
	g.Wait()
	return result
}
