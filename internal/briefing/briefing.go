package briefing

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"strings"
	"time"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/ai"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/cache"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/classify"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/score"
)

const (
	preselectSize = 30
	llmBatchSize  = 15
)

// Briefing is one day's assembled output: the selected items plus the
// analyst summary and score metrics.
type Briefing struct {
	Date        string         `json:"date"`
	GeneratedAt time.Time      `json:"generated_at"`
	Items       []cache.Item   `json:"items"`
	Scanned     int            `json:"scanned"`
	Selected    int            `json:"selected"`
	Signals     []string       `json:"signals"`
	Risks       []string       `json:"risks"`
	Watch       []string       `json:"watch"`
	EntitiesTop []string       `json:"entities_top"`
	ScoreAvg    float64        `json:"score_avg"`
	PrimaryDist map[string]int `json:"primary_dist"`
}

// Options configure Build. A nil Ranker disables LLM reranking entirely;
// keyword scores then stand.
type Options struct {
	BriefSize    int
	PerSourceCap map[string]int
	Ranker       ai.Ranker
	Daily        *ai.DailyCache
	Log          *slog.Logger
}

// Build assembles the briefing: keyword-score, cap per source, dedup,
// preselect, optionally LLM-rerank, select the final set, and derive the
// summary blocks and metrics.
func Build(ctx context.Context, items []cache.Item, opts Options) *Briefing {
	log := opts.Log
	if log == nil {
		log = slog.Default()
	}
	if opts.BriefSize <= 0 {
		opts.BriefSize = llmBatchSize
	}

	b := &Briefing{
		Date:        time.Now().Format("2006-01-02"),
		GeneratedAt: time.Now().UTC(),
		PrimaryDist: make(map[string]int),
	}

	items = capPerSource(items, opts.PerSourceCap)
	items = dedupByLink(items)
	b.Scanned = len(items)

	for i := range items {
		res := score.Item(items[i].Title, items[i].Summary, items[i].Source)
		items[i].Score = res.Score
		if items[i].Primary == "" {
			items[i].Primary = res.Primary
		}
		items[i].Tags = mergeTags(items[i].Tags, res.Tags)
	}

	sort.SliceStable(items, func(i, j int) bool { return items[i].Score > items[j].Score })
	candidates := items
	if len(candidates) > preselectSize {
		candidates = candidates[:preselectSize]
	}

	llm := b.rerank(ctx, candidates, opts, log)

	sort.SliceStable(candidates, func(i, j int) bool { return candidates[i].Score > candidates[j].Score })
	final := candidates
	if len(final) > opts.BriefSize {
		final = final[:opts.BriefSize]
	}
	b.Items = final
	b.Selected = len(final)

	for i := range b.Items {
		if len(b.Items[i].Entities) == 0 {
			b.Items[i].Entities = classify.EntitiesFromTitle(b.Items[i].Title)
		}
		if b.Items[i].Why == "" {
			b.Items[i].Why = excerpt(b.Items[i].Summary, 160)
		}
	}

	b.computeMetrics()
	b.applySummary(llm)
	return b
}

// rerank sends the top candidates through the LLM ranker, consulting the
// daily cache first and recording the attempt so a failure is not retried
// within the day. Mutates candidate scores in place.
func (b *Briefing) rerank(ctx context.Context, candidates []cache.Item, opts Options, log *slog.Logger) ai.Briefing {
	if opts.Ranker == nil {
		return ai.Briefing{}
	}

	batch := candidates
	if len(batch) > llmBatchSize {
		batch = batch[:llmBatchSize]
	}
	payload := make([]ai.Candidate, len(batch))
	for i, it := range batch {
		payload[i] = ai.Candidate{
			ID:      i + 1,
			Source:  it.Source,
			Title:   it.Title,
			Summary: it.Summary,
			URL:     it.Link,
		}
	}

	var result ai.BatchResult
	cached := false
	if opts.Daily != nil {
		result, cached = opts.Daily.Load()
		if cached {
			log.Debug("LLM daily cache hit")
		}
	}

	if !cached {
		if opts.Daily != nil && opts.Daily.Attempted() {
			log.Info("skipping LLM rerank: already attempted today")
			return ai.Briefing{}
		}
		var err error
		result, err = opts.Ranker.RankBatch(ctx, payload)
		if opts.Daily != nil {
			opts.Daily.MarkAttempted()
		}
		if err != nil {
			log.Warn("LLM rerank failed, keeping keyword scores", "err", err)
			return ai.Briefing{}
		}
		if opts.Daily != nil {
			if err := opts.Daily.Store(result); err != nil {
				log.Warn("LLM cache write failed", "err", err)
			}
		}
	}

	byID := make(map[int]ai.Ranked, len(result.Results))
	for _, r := range result.Results {
		byID[r.ID] = r
	}
	for i := range batch {
		r, ok := byID[i+1]
		if !ok {
			continue
		}
		batch[i].Score = r.Score
		batch[i].Primary = r.Primary
		if len(r.Tags) > 0 {
			batch[i].Tags = r.Tags
		}
		batch[i].Why = r.Why
		batch[i].Entities = r.Entities
	}
	return result.Briefing
}

func (b *Briefing) computeMetrics() {
	if len(b.Items) == 0 {
		return
	}

	total := 0
	for _, it := range b.Items {
		total += it.Score
		p := it.Primary
		if p == "" {
			p = "misc"
		}
		b.PrimaryDist[p]++
	}
	b.ScoreAvg = float64(total) / float64(len(b.Items))
	b.ScoreAvg = float64(int(b.ScoreAvg*100)) / 100

	counts := make(map[string]int)
	display := make(map[string]string)
	for _, it := range b.Items {
		for _, e := range it.Entities {
			e2 := classify.NormalizeEntity(e)
			if classify.BadEntity(e2) {
				continue
			}
			key := strings.ToLower(e2)
			counts[key]++
			display[key] = e2
		}
	}
	type ec struct {
		name  string
		count int
	}
	var sorted []ec
	for k, n := range counts {
		sorted = append(sorted, ec{display[k], n})
	}
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].count != sorted[j].count {
			return sorted[i].count > sorted[j].count
		}
		return sorted[i].name < sorted[j].name
	})
	for i := 0; i < len(sorted) && i < 5; i++ {
		b.EntitiesTop = append(b.EntitiesTop, sorted[i].name)
	}
}

// applySummary uses the LLM briefing when present and otherwise derives an
// analyst-style fallback from the category mix.
func (b *Briefing) applySummary(llm ai.Briefing) {
	if len(llm.Signals) > 0 || len(llm.Risks) > 0 || len(llm.Watch) > 0 || len(llm.EntitiesTop) > 0 {
		b.Signals = dedupStrings(llm.Signals, 5)
		b.Risks = dedupStrings(llm.Risks, 3)
		b.Watch = dedupStrings(llm.Watch, 3)
		if top := dedupStrings(llm.EntitiesTop, 5); len(top) > 0 {
			b.EntitiesTop = top
		}
		return
	}
	if len(b.Items) == 0 {
		return
	}

	type cat struct {
		code  string
		count int
	}
	var cats []cat
	for code, n := range b.PrimaryDist {
		cats = append(cats, cat{code, n})
	}
	sort.Slice(cats, func(i, j int) bool {
		if cats[i].count != cats[j].count {
			return cats[i].count > cats[j].count
		}
		return cats[i].code < cats[j].code
	})
	if len(cats) > 3 {
		cats = cats[:3]
	}

	var parts []string
	for _, c := range cats {
		parts = append(parts, fmt.Sprintf("%s (%d/%d)", classify.Label(c.code), c.count, len(b.Items)))
	}

	actors := "n/a"
	if len(b.EntitiesTop) > 0 {
		actors = strings.Join(b.EntitiesTop, ", ")
	}
	b.Signals = []string{
		fmt.Sprintf("Today's mix (top): %s.", strings.Join(parts, ", ")),
		fmt.Sprintf("Dominant actors (today): %s.", actors),
	}

	concentration := float64(cats[0].count) / float64(len(b.Items))
	switch {
	case concentration >= 0.60:
		b.Risks = []string{"High concentration in one category: possible mono-theme or scoring bias."}
	case concentration >= 0.50:
		b.Risks = []string{"Medium concentration: watch whether it consolidates into a dominant narrative."}
	default:
		b.Risks = []string{"Reasonable category diversity (no extreme dominance)."}
	}

	var watch []string
	if len(b.EntitiesTop) > 0 {
		n := len(b.EntitiesTop)
		if n > 3 {
			n = 3
		}
		watch = append(watch, fmt.Sprintf("Follow: %s.", strings.Join(b.EntitiesTop[:n], ", ")))
	}
	watch = append(watch, fmt.Sprintf("Watch whether %q keeps its dominance tomorrow.", classify.Label(cats[0].code)))
	if len(watch) > 3 {
		watch = watch[:3]
	}
	b.Watch = watch
}

func capPerSource(items []cache.Item, caps map[string]int) []cache.Item {
	if len(caps) == 0 {
		return items
	}
	counts := make(map[string]int)
	var out []cache.Item
	for _, it := range items {
		if limit, ok := caps[it.Source]; ok {
			if counts[it.Source] >= limit {
				continue
			}
			counts[it.Source]++
		}
		out = append(out, it)
	}
	return out
}

func dedupByLink(items []cache.Item) []cache.Item {
	seen := make(map[string]bool)
	var out []cache.Item
	for _, it := range items {
		key := strings.ToLower(strings.TrimSpace(it.Link))
		if key == "" || seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, it)
	}
	return out
}

func mergeTags(a, b []string) []string {
	seen := make(map[string]bool)
	var out []string
	for _, t := range append(append([]string{}, a...), b...) {
		t = strings.ToLower(strings.TrimSpace(t))
		if t == "" || seen[t] {
			continue
		}
		seen[t] = true
		out = append(out, t)
	}
	return out
}

func dedupStrings(in []string, limit int) []string {
	seen := make(map[string]bool)
	var out []string
	for _, s := range in {
		s = strings.TrimSpace(s)
		if s == "" || seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
		if len(out) == limit {
			break
		}
	}
	return out
}

func excerpt(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
