package x

import (
	"context"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"
)

// Status tags which stage produced a source's result.
type Status string

const (
	StatusCache     Status = "cache"
	StatusRSSMirror Status = "rss_mirror"
	StatusScrape    Status = "scrape"
	StatusFailed    Status = "failed"
)

// EntryStatus describes a persisted cache entry. An "empty" entry is a fetch
// that legitimately returned zero items; it is still a cache hit, so quiet
// sources are not re-fetched every run.
type EntryStatus string

const (
	EntryOK    EntryStatus = "ok"
	EntryStale EntryStatus = "stale"
	EntryEmpty EntryStatus = "empty"
)

// ItemCache is the persistent run cache consulted before any network fetch.
// Implementations must fail soft: read errors are misses, write errors are
// logged and swallowed.
type ItemCache interface {
	Enabled() bool
	ForceRefresh() bool
	Get(key string) ([]Item, EntryStatus, bool)
	Put(key string, items []Item, status EntryStatus) error
}

// Result is the resolver's output for one SourceSpec.
type Result struct {
	Spec   SourceSpec
	Items  []Item
	Status Status
}

// Resolver resolves each configured X source through cache, mirror feed, and
// scrape fallback, in that order. Sources are independent; a source that
// fully fails yields a Result with zero items and StatusFailed instead of
// aborting the run.
type Resolver struct {
	cache   ItemCache
	mirrors *MirrorClient
	scraper *ScrapeClient
	log     *slog.Logger

	// Mirror health is probed once per run and reused across sources.
	pickOnce    sync.Once
	pickedBase  string
	pickedAlive bool
}

func NewResolver(cache ItemCache, mirrors *MirrorClient, scraper *ScrapeClient, log *slog.Logger) *Resolver {
	if log == nil {
		log = slog.Default()
	}
	return &Resolver{cache: cache, mirrors: mirrors, scraper: scraper, log: log}
}

// Resolve walks one source through cache check, mirror fetch, and scrape
// fallback, writing successful results back to the cache.
func (r *Resolver) Resolve(ctx context.Context, spec SourceSpec) Result {
	key := spec.CacheKey()

	if r.cache.Enabled() && !r.cache.ForceRefresh() {
		if items, _, ok := r.cache.Get(key); ok {
			for i := range items {
				items[i].SourceKind = SourceCache
			}
			r.log.Debug("x cache hit", "source", spec.Label(), "items", len(items))
			return Result{Spec: spec, Items: items, Status: StatusCache}
		}
	}

	if base, ok := r.healthyMirror(ctx); ok {
		items, err := r.mirrors.FetchFrom(ctx, base, spec)
		if err == nil {
			r.store(key, spec, items)
			return Result{Spec: spec, Items: items, Status: StatusRSSMirror}
		}
		r.log.Warn("mirror fetch failed, falling back to scrape", "source", spec.Label(), "mirror", base, "err", err)
	}

	items, err := r.scraper.Fetch(ctx, spec)
	if err != nil {
		r.log.Warn("scrape fetch failed", "source", spec.Label(), "err", err)
		return Result{Spec: spec, Status: StatusFailed}
	}
	r.store(key, spec, items)
	return Result{Spec: spec, Items: items, Status: StatusScrape}
}

// ResolveAll resolves sources with bounded parallelism, purely as a latency
// optimization; results keep input order.
func (r *Resolver) ResolveAll(ctx context.Context, specs []SourceSpec, workers int) []Result {
	if workers <= 0 {
		workers = 1
	}
	results := make([]Result, len(specs))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(workers)
	for i, spec := range specs {
		i, spec := i, spec
		g.Go(func() error {
			results[i] = r.Resolve(ctx, spec)
			return nil
		})
	}
	g.Wait()
	return results
}

func (r *Resolver) healthyMirror(ctx context.Context) (string, bool) {
	r.pickOnce.Do(func() {
		base, health := r.mirrors.PickHealthyMirror(ctx)
		r.pickedBase = base
		r.pickedAlive = base != ""
		if !r.pickedAlive {
			r.log.Warn("no healthy mirror", "probed", len(health))
		}
	})
	return r.pickedBase, r.pickedAlive
}

func (r *Resolver) store(key string, spec SourceSpec, items []Item) {
	status := EntryOK
	if len(items) == 0 {
		status = EntryEmpty
	}
	if err := r.cache.Put(key, items, status); err != nil {
		r.log.Warn("x cache write failed", "source", spec.Label(), "err", err)
	}
}
