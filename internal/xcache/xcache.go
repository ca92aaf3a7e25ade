// Package xcache is the persistent per-run cache for X source resolutions.
// It is a single human-inspectable JSON file mapping cache keys to entries,
// safe to delete (one cold run) and safe to hand-edit for debugging.
package xcache

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/x"
)

// Entry is one persisted resolution. Writes are whole-entry replacements;
// entries are never partially updated.
type Entry struct {
	Key       string        `json:"key"`
	Items     []x.Item      `json:"items"`
	FetchedAt time.Time     `json:"fetched_at"`
	Status    x.EntryStatus `json:"status"`
}

// Options carry the two run-time switches. Disabled makes Get always miss and
// Put a no-op. ForceRefresh makes the resolver bypass Get while Put still
// executes, so later runs benefit from the refreshed data.
type Options struct {
	Disabled     bool
	ForceRefresh bool
}

type Cache struct {
	path string
	opts Options
	log  *slog.Logger

	mu     sync.Mutex
	loaded bool
	data   map[string]Entry
}

// Open prepares a cache backed by the given file. The file is read lazily on
// first Get/Put; a missing or corrupt file degrades to a cold cache rather
// than failing, since that is a normal state.
func Open(path string, opts Options, log *slog.Logger) *Cache {
	if log == nil {
		log = slog.Default()
	}
	return &Cache{path: path, opts: opts, log: log, data: make(map[string]Entry)}
}

func (c *Cache) Enabled() bool      { return !c.opts.Disabled }
func (c *Cache) ForceRefresh() bool { return c.opts.ForceRefresh }

// Get returns the cached items and status for key. Read errors are misses.
// An entry with status "empty" is still a hit.
func (c *Cache) Get(key string) ([]x.Item, x.EntryStatus, bool) {
	if c.opts.Disabled || c.opts.ForceRefresh {
		return nil, "", false
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	entry, ok := c.data[key]
	if !ok {
		return nil, "", false
	}
	items := make([]x.Item, len(entry.Items))
	copy(items, entry.Items)
	return items, entry.Status, true
}

// Put replaces the entry for key and persists the whole file atomically, so a
// crash mid-write cannot corrupt entries for other keys.
func (c *Cache) Put(key string, items []x.Item, status x.EntryStatus) error {
	if c.opts.Disabled {
		return nil
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	c.data[key] = Entry{
		Key:       key,
		Items:     items,
		FetchedAt: time.Now().UTC(),
		Status:    status,
	}
	return c.saveLocked()
}

// Keys lists cached keys, for the stats command.
func (c *Cache) Keys() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.loadLocked()

	keys := make([]string, 0, len(c.data))
	for k := range c.data {
		keys = append(keys, k)
	}
	return keys
}

func (c *Cache) loadLocked() {
	if c.loaded {
		return
	}
	c.loaded = true

	// The file is loaded even under force-refresh: Get misses regardless, but
	// Put must not drop entries for keys this run never touched.
	raw, err := os.ReadFile(c.path)
	if err != nil {
		if !os.IsNotExist(err) {
			c.log.Warn("x cache read failed", "path", c.path, "err", err)
		}
		return
	}

	var parsed map[string]Entry
	if err := json.Unmarshal(raw, &parsed); err != nil {
		c.log.Warn("x cache is corrupt, starting cold", "path", c.path, "err", err)
		return
	}
	c.data = parsed
}

// saveLocked writes the full map to a temp file in the same directory and
// renames it over the cache file.
func (c *Cache) saveLocked() error {
	if err := os.MkdirAll(filepath.Dir(c.path), 0o755); err != nil {
		return fmt.Errorf("creating cache dir: %w", err)
	}

	raw, err := json.MarshalIndent(c.data, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding cache: %w", err)
	}

	tmp, err := os.CreateTemp(filepath.Dir(c.path), ".x_cache-*.json")
	if err != nil {
		return fmt.Errorf("creating temp cache file: %w", err)
	}
	if _, err := tmp.Write(raw); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return fmt.Errorf("writing cache: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("closing cache file: %w", err)
	}
	if err := os.Rename(tmp.Name(), c.path); err != nil {
		os.Remove(tmp.Name())
		return fmt.Errorf("replacing cache file: %w", err)
	}
	return nil
}
