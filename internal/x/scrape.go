package x

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"
)

// DefaultRenderProxy is the public text-rendering proxy used when no mirror
// feed is available.
const DefaultRenderProxy = "https://r.jina.ai"

const maxRenderBody = 2 << 20

// ScrapeClient is the best-effort fallback fetcher. It pulls a text-rendered
// version of the public profile page through a render proxy and extracts posts
// with line-oriented heuristics. Both the proxy and the upstream page format
// are uncontrolled, so extraction is deliberately tolerant: a page that yields
// zero recognizable posts is a successful empty result, and only transport
// failures surface as FetchError.
type ScrapeClient struct {
	proxy  string
	client *http.Client
}

func NewScrapeClient(proxy string, timeout time.Duration) *ScrapeClient {
	if proxy == "" {
		proxy = DefaultRenderProxy
	}
	// Rendering a full profile page is slower than a feed request.
	if timeout < 15*time.Second {
		timeout = 15 * time.Second
	}
	return &ScrapeClient{
		proxy:  strings.TrimRight(proxy, "/"),
		client: &http.Client{Timeout: timeout},
	}
}

// Fetch resolves spec through the render proxy. Searches have no proxy
// endpoint, so they are emulated by scraping the from: accounts named in the
// query and filtering by the remaining keywords.
func (s *ScrapeClient) Fetch(ctx context.Context, spec SourceSpec) ([]Item, error) {
	if spec.Kind == KindSearch {
		return s.fetchSearch(ctx, spec)
	}

	user := cleanUsername(spec.Username)
	page, err := s.fetchRendered(ctx, user)
	if err != nil {
		return nil, err
	}
	return extractPosts(page, user, spec.limit()), nil
}

func (s *ScrapeClient) fetchSearch(ctx context.Context, spec SourceSpec) ([]Item, error) {
	users, keywords := parseQueryUsers(spec.Query)
	if len(users) == 0 {
		// Nothing scrapeable in the query; an empty result, not a failure.
		return nil, nil
	}

	perUser := (spec.limit() + len(users) - 1) / len(users)
	if perUser > DefaultLimit {
		perUser = DefaultLimit
	}

	var pool []Item
	var lastErr error
	for _, user := range users {
		page, err := s.fetchRendered(ctx, user)
		if err != nil {
			lastErr = err
			continue
		}
		pool = append(pool, extractPosts(page, user, perUser)...)
	}
	if len(pool) == 0 && lastErr != nil {
		return nil, lastErr
	}

	if filtered := filterByKeywords(pool, keywords); len(filtered) > 0 {
		pool = filtered
	}
	pool = dedupeItems(pool)
	if len(pool) > spec.limit() {
		pool = pool[:spec.limit()]
	}
	return pool, nil
}

func (s *ScrapeClient) fetchRendered(ctx context.Context, user string) (string, error) {
	target := fmt.Sprintf("%s/http://x.com/%s", s.proxy, user)
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target, nil)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	req.Header.Set("User-Agent", userAgent)

	resp, err := s.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("%w: %v", ErrFetch, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("%w: render proxy returned %d for @%s", ErrFetch, resp.StatusCode, user)
	}
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxRenderBody))
	if err != nil {
		return "", fmt.Errorf("%w: reading render response: %v", ErrFetch, err)
	}
	return string(body), nil
}

var (
	timestampLineRe = regexp.MustCompile(`^\d+:\d{2}(:\d{2})?$`)
	punctLineRe     = regexp.MustCompile(`^[,;:.\-–—]+$`)
)

// extractPosts segments the rendered page into post blocks. Each post starts
// with an avatar image link back to the profile; everything until the next
// avatar belongs to the post.
func extractPosts(page, user string, limit int) []Item {
	if page == "" || user == "" {
		return nil
	}

	var published *time.Time
	for _, line := range strings.Split(page, "\n") {
		if rest, ok := strings.CutPrefix(line, "Published Time:"); ok {
			if t, err := time.Parse(time.RFC3339, strings.TrimSpace(rest)); err == nil {
				published = &t
			}
			break
		}
	}

	startRe := regexp.MustCompile(`^\[!\[Image .*?\]\(https://x\.com/` + regexp.QuoteMeta(user) + `\)\s*$`)

	var blocks [][]string
	var current []string
	started := false
	for _, line := range strings.Split(page, "\n") {
		if startRe.MatchString(strings.TrimSpace(line)) {
			if started && len(current) > 0 {
				blocks = append(blocks, current)
			}
			started = true
			current = nil
			continue
		}
		if started {
			current = append(current, line)
		}
	}
	if started && len(current) > 0 {
		blocks = append(blocks, current)
	}

	var out []Item
	seen := make(map[string]bool)
	for _, block := range blocks {
		text := cleanRenderedLines(block)
		if text == "" {
			continue
		}
		key := strings.ToLower(text)
		if seen[key] {
			continue
		}
		seen[key] = true

		link := extractStatusLink(strings.Join(block, "\n"), user, text)
		out = append(out, Item{
			ID:         itemID(link, text),
			Text:       text,
			Author:     "@" + user,
			URL:        link,
			Published:  published,
			SourceKind: SourceScrape,
		})
		if len(out) >= limit {
			break
		}
	}
	return out
}

// cleanRenderedLines drops the render proxy's chrome: pinned markers, video
// timestamps, image markup, and page headers.
func cleanRenderedLines(lines []string) string {
	var keep []string
	for _, raw := range lines {
		line := strings.TrimSpace(raw)
		switch {
		case line == "":
		case line == "Pinned":
		case timestampLineRe.MatchString(line):
		case strings.HasPrefix(line, "![Image"):
		case strings.HasPrefix(line, "[![Image") && strings.Contains(line, "](https://x.com/"):
		case strings.HasPrefix(line, "Title:"),
			strings.HasPrefix(line, "URL Source:"),
			strings.HasPrefix(line, "Published Time:"),
			strings.HasPrefix(line, "Markdown Content:"):
		case strings.HasSuffix(line, "posts") || line == "--------------":
		case punctLineRe.MatchString(line):
		default:
			keep = append(keep, line)
		}
	}
	return strings.TrimSpace(strings.Join(keep, " "))
}

func extractStatusLink(block, user, text string) string {
	xRe := regexp.MustCompile(`https://x\.com/` + regexp.QuoteMeta(user) + `/status/\d+`)
	if m := xRe.FindString(block); m != "" {
		return m
	}
	twRe := regexp.MustCompile(`https://twitter\.com/(` + regexp.QuoteMeta(user) + `/status/\d+)`)
	if m := twRe.FindStringSubmatch(block); m != nil {
		return "https://x.com/" + m[1]
	}
	// No stable link in the block; derive a deterministic pseudo-URL from the
	// text so dedup stays possible downstream.
	return fmt.Sprintf("https://x.com/%s?post=%s", user, itemID("", text))
}

var (
	fromUserRe   = regexp.MustCompile(`(?i)from:([A-Za-z0-9_]{1,30})`)
	queryTokenRe = regexp.MustCompile(`[A-Za-z][A-Za-z0-9_-]{2,}`)
)

var queryStopWords = map[string]bool{
	"from": true, "or": true, "and": true, "is": true, "retweet": true,
	"reply": true, "filter": true, "lang": true, "min": true,
	"since": true, "until": true,
}

// parseQueryUsers pulls the from: accounts and the residual keyword tokens out
// of a search query.
func parseQueryUsers(query string) (users, keywords []string) {
	seenUser := make(map[string]bool)
	for _, m := range fromUserRe.FindAllStringSubmatch(query, -1) {
		u := strings.ToLower(m[1])
		if !seenUser[u] {
			seenUser[u] = true
			users = append(users, m[1])
		}
	}

	seenKw := make(map[string]bool)
	for _, tok := range queryTokenRe.FindAllString(query, -1) {
		t := strings.ToLower(tok)
		if queryStopWords[t] || seenUser[t] || seenKw[t] {
			continue
		}
		seenKw[t] = true
		keywords = append(keywords, t)
	}
	return users, keywords
}

func filterByKeywords(items []Item, keywords []string) []Item {
	if len(keywords) == 0 {
		return items
	}
	var out []Item
	for _, it := range items {
		hay := strings.ToLower(it.Text)
		for _, kw := range keywords {
			if strings.Contains(hay, kw) {
				out = append(out, it)
				break
			}
		}
	}
	return out
}

func dedupeItems(items []Item) []Item {
	seen := make(map[string]bool)
	var out []Item
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it.URL))
		if key == "" {
			key = strings.ToLower(it.Text)
		}
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}
