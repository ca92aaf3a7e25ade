package x

import (
	"context"
	"errors"
	"fmt"
	"html"
	"io"
	"net/http"
	"net/url"
	"sort"
	"strings"
	"time"

	"github.com/microcosm-cc/bluemonday"
	"github.com/mmcdole/gofeed"
)

const (
	// DefaultMirror is the known-good RSS mirror tried when no override is set.
	DefaultMirror = "https://xcancel.com"

	userAgent    = "ai-intel-briefing/1.0 (+https://github.com/rolandojf-gif/ai-intel-briefing-v3)"
	acceptHeader = "application/rss+xml, application/xml;q=0.9, */*;q=0.8"

	maxFeedBody = 4 << 20
)

// ErrFetch classifies transport, status, and parse failures at the mirror and
// scrape stages so callers can tell them apart from legitimately empty results.
var ErrFetch = errors.New("fetch failed")

// MirrorHealth is the per-run reachability record for one mirror. It is never
// persisted; mirror availability is too volatile to carry across runs.
type MirrorHealth struct {
	BaseURL   string
	Reachable bool
	CheckedAt time.Time
}

// MirrorClient probes third-party RSS mirrors and fetches timeline/search
// feeds through them.
type MirrorClient struct {
	mirrors []string
	client  *http.Client
	parser  *gofeed.Parser
	strip   *bluemonday.Policy
}

func NewMirrorClient(mirrors []string, timeout time.Duration) *MirrorClient {
	if len(mirrors) == 0 {
		mirrors = []string{DefaultMirror}
	}
	return &MirrorClient{
		mirrors: mirrors,
		client:  &http.Client{Timeout: timeout},
		parser:  gofeed.NewParser(),
		strip:   bluemonday.StrictPolicy(),
	}
}

// Mirrors returns the configured mirror list in probe order.
func (m *MirrorClient) Mirrors() []string {
	return m.mirrors
}

// PickHealthyMirror probes mirrors in order with a single lightweight request
// each and returns the first that answers. No per-mirror retries: one timeout
// is a failure for that mirror, which caps total probe latency at
// timeout * len(mirrors).
func (m *MirrorClient) PickHealthyMirror(ctx context.Context) (string, []MirrorHealth) {
	var health []MirrorHealth
	picked := ""
	for _, base := range m.mirrors {
		reachable := picked == "" && m.probe(ctx, base)
		health = append(health, MirrorHealth{BaseURL: base, Reachable: reachable, CheckedAt: time.Now()})
		if reachable {
			picked = base
		}
	}
	return picked, health
}

func (m *MirrorClient) probe(ctx context.Context, base string) bool {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, base+"/", nil)
	if err != nil {
		return false
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := m.client.Do(req)
	if err != nil {
		return false
	}
	defer resp.Body.Close()
	io.Copy(io.Discard, io.LimitReader(resp.Body, 1<<10))

	return resp.StatusCode < 500
}

// FetchFrom retrieves and parses the feed for spec from one mirror, trying the
// mirror's candidate endpoints in order. A feed that parses but carries zero
// entries is a successful empty result, distinct from a FetchError.
func (m *MirrorClient) FetchFrom(ctx context.Context, base string, spec SourceSpec) ([]Item, error) {
	var lastErr error
	for _, path := range candidatePaths(spec) {
		items, err := m.fetchFeed(ctx, base+path)
		if err != nil {
			lastErr = err
			continue
		}
		if len(items) > spec.limit() {
			items = items[:spec.limit()]
		}
		return items, nil
	}
	if lastErr == nil {
		lastErr = fmt.Errorf("%w: no feed endpoint for %s", ErrFetch, spec.Label())
	}
	return nil, lastErr
}

func (m *MirrorClient) fetchFeed(ctx context.Context, feedURL string) ([]Item, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, feedURL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)
	req.Header.Set("Accept", acceptHeader)

	resp, err := m.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("%w: %s returned %d", ErrFetch, feedURL, resp.StatusCode)
	}

	body, err := io.ReadAll(io.LimitReader(resp.Body, maxFeedBody))
	if err != nil {
		return nil, fmt.Errorf("%w: reading %s: %v", ErrFetch, feedURL, err)
	}
	if !looksLikeRSS(body, resp.Header.Get("Content-Type")) {
		return nil, fmt.Errorf("%w: %s did not return a feed", ErrFetch, feedURL)
	}

	feed, err := m.parser.ParseString(string(body))
	if err != nil {
		return nil, fmt.Errorf("%w: parsing %s: %v", ErrFetch, feedURL, err)
	}
	if isPlaceholderFeed(feed) {
		return nil, fmt.Errorf("%w: %s serves a not-whitelisted placeholder", ErrFetch, feedURL)
	}

	items := make([]Item, 0, len(feed.Items))
	for _, entry := range feed.Items {
		text := m.cleanText(entry.Description)
		if text == "" {
			text = m.cleanText(entry.Title)
		}
		if text == "" {
			continue
		}

		link := RewriteToX(entry.Link, m.mirrors)
		items = append(items, Item{
			ID:         itemID(link, text),
			Text:       text,
			Author:     entryAuthor(entry),
			URL:        link,
			Published:  entryPublished(entry),
			SourceKind: SourceRSSMirror,
		})
	}
	sortItems(items)
	return items, nil
}

func (m *MirrorClient) cleanText(s string) string {
	plain := html.UnescapeString(m.strip.Sanitize(s))
	return strings.Join(strings.Fields(plain), " ")
}

func candidatePaths(spec SourceSpec) []string {
	if spec.Kind == KindSearch {
		return []string{"/search/rss?f=tweets&q=" + url.QueryEscape(spec.Query)}
	}
	user := cleanUsername(spec.Username)
	// The search endpoint gives explicit control over replies and retweets;
	// the plain timeline feed is the fallback.
	q := fmt.Sprintf("from:%s -is:reply -is:retweet", user)
	return []string{
		"/search/rss?f=tweets&q=" + url.QueryEscape(q),
		"/" + user + "/rss",
	}
}

func looksLikeRSS(body []byte, contentType string) bool {
	ct := strings.ToLower(contentType)
	if strings.Contains(ct, "xml") || strings.Contains(ct, "rss") {
		return true
	}
	head := strings.ToLower(strings.TrimSpace(string(body[:min(len(body), 160)])))
	return strings.HasPrefix(head, "<?xml") || strings.Contains(head, "<rss")
}

// Some mirrors answer with a single "RSS reader not yet whitelisted" entry
// instead of an error status.
func isPlaceholderFeed(feed *gofeed.Feed) bool {
	if len(feed.Items) == 0 {
		return false
	}
	first := strings.ToLower(feed.Items[0].Title + " " + feed.Items[0].Description)
	return strings.Contains(first, "rss reader not yet whitelist")
}

func entryAuthor(entry *gofeed.Item) string {
	if entry.DublinCoreExt != nil && len(entry.DublinCoreExt.Creator) > 0 {
		return strings.TrimSpace(entry.DublinCoreExt.Creator[0])
	}
	if entry.Author != nil {
		return strings.TrimSpace(entry.Author.Name)
	}
	return ""
}

func entryPublished(entry *gofeed.Item) *time.Time {
	if entry.PublishedParsed != nil {
		t := *entry.PublishedParsed
		return &t
	}
	if entry.UpdatedParsed != nil {
		t := *entry.UpdatedParsed
		return &t
	}
	return nil
}

var canonicalHosts = map[string]bool{
	"twitter.com":        true,
	"www.twitter.com":    true,
	"mobile.twitter.com": true,
	"x.com":              true,
	"www.x.com":          true,
}

// RewriteToX maps mirror and twitter.com post links to their canonical
// https://x.com form. Mirrors usually preserve the /<user>/status/<id> path.
func RewriteToX(link string, mirrors []string) string {
	raw := strings.TrimSpace(link)
	if raw == "" {
		return raw
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return raw
	}

	host := strings.ToLower(u.Host)
	if canonicalHosts[host] {
		return "https://x.com" + u.Path
	}
	for _, mirror := range mirrors {
		mu, err := url.Parse(mirror)
		if err != nil || mu.Host == "" {
			continue
		}
		if strings.HasSuffix(host, strings.ToLower(mu.Host)) {
			return "https://x.com" + u.Path
		}
	}
	return raw
}

// sortItems orders reverse-chronologically where timestamps are known and
// preserves origin order elsewhere.
func sortItems(items []Item) {
	sort.SliceStable(items, func(i, j int) bool {
		a, b := items[i].Published, items[j].Published
		if a == nil || b == nil {
			return false
		}
		return a.After(*b)
	})
}
