package cmd

import (
	"fmt"
	"log/slog"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/ai"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/briefing"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/cache"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/config"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/feed"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/render"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/x"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/xcache"
)

const (
	xWorkers      = 4
	briefWindow   = 24 * time.Hour
	maxTitleChars = 160
)

// High-volume feeds crowd out everything else without a cap.
var perSourceCap = map[string]int{
	"arXiv cs.AI": 2,
	"arXiv cs.LG": 2,
	"NVIDIA Blog": 2,
}

func runBuild(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load(flagConfig)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}
	if flagRefresh {
		cfg.X.ForceRefresh = true
	}
	if flagNoXCache {
		cfg.X.CacheDisable = true
	}

	log := slog.Default()
	ctx := cmd.Context()

	store, err := cache.Open(config.StorePath())
	if err != nil {
		return fmt.Errorf("opening store: %w", err)
	}
	defer store.Close()

	// RSS feeds and X sources fetch independently; neither blocks the other.
	feedRes := feed.FetchAll(ctx, cfg.FeedSources(), 0)
	for _, ferr := range feedRes.Errors {
		log.Warn("feed fetch failed", "err", ferr)
	}

	xCachePath := cfg.X.CacheFile
	if xCachePath == "" {
		xCachePath = config.DefaultXCacheFile(filepath.Join(flagOut, "data"))
	}
	xc := xcache.Open(xCachePath, xcache.Options{
		Disabled:     cfg.X.CacheDisable,
		ForceRefresh: cfg.X.ForceRefresh,
	}, log)

	resolver := x.NewResolver(
		xc,
		x.NewMirrorClient(cfg.X.Mirrors, cfg.X.Timeout),
		x.NewScrapeClient(cfg.X.RenderProxy, cfg.X.Timeout),
		log,
	)
	results := resolver.ResolveAll(ctx, cfg.XSources(), xWorkers)

	items := feedRes.Items
	now := time.Now()
	for _, res := range results {
		fmt.Printf("%-28s %3d items  [%s]\n", res.Spec.Label(), len(res.Items), res.Status)
		for _, it := range res.Items {
			items = append(items, xToStoreItem(res, it, now))
		}
	}

	if err := store.UpsertItems(items); err != nil {
		log.Warn("store write failed, continuing with in-memory items", "err", err)
	}

	recent, err := store.GetItems(cache.QueryOpts{Since: now.Add(-briefWindow), Limit: 300})
	if err != nil || len(recent) == 0 {
		if err != nil {
			log.Warn("store read failed, using this run's items", "err", err)
		}
		recent = items
	}

	var ranker ai.Ranker
	var daily *ai.DailyCache
	if cfg.AIEnabled() {
		ranker, err = ai.New(cfg.AI, cfg.AIKey())
		if err != nil {
			log.Warn("AI disabled", "err", err)
		} else {
			daily = ai.NewDailyCache(filepath.Join(flagOut, "data"))
		}
	}

	b := briefing.Build(ctx, recent, briefing.Options{
		BriefSize:    cfg.GetBriefSize(),
		PerSourceCap: perSourceCap,
		Ranker:       ranker,
		Daily:        daily,
		Log:          log,
	})

	jsonPath, err := render.WriteJSON(flagOut, b)
	if err != nil {
		return err
	}
	htmlPath, err := render.WriteHTML(flagOut, b)
	if err != nil {
		return err
	}

	fmt.Printf("Briefing %s: %d scanned, %d selected\n", b.Date, b.Scanned, b.Selected)
	fmt.Printf("Wrote %s and %s\n", jsonPath, htmlPath)
	return nil
}

// xToStoreItem maps a resolved X post into the store schema. Posts have no
// headline, so the title is a truncated excerpt of the text.
func xToStoreItem(res x.Result, it x.Item, now time.Time) cache.Item {
	pub := now
	if it.Published != nil {
		pub = *it.Published
	}
	return cache.Item{
		ID:         "x:" + it.ID,
		Source:     res.Spec.Label(),
		Title:      truncate(it.Text, maxTitleChars),
		Link:       it.URL,
		Summary:    it.Text,
		Published:  pub,
		FetchedAt:  now,
		Provenance: string(it.SourceKind),
	}
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	if n <= 3 {
		return string(runes[:n])
	}
	return string(runes[:n-3]) + "..."
}
