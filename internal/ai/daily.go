package ai

import (
	"encoding/json"
	"os"
	"path/filepath"
	"time"
)

// DailyCache stores one day's ranking result so re-runs reuse it, plus an
// attempt marker so a failed call is not retried until the next day.
type DailyCache struct {
	dir string
	day string
}

func NewDailyCache(dir string) *DailyCache {
	return &DailyCache{dir: dir, day: time.Now().Format("2006-01-02")}
}

func (d *DailyCache) resultPath() string {
	return filepath.Join(d.dir, d.day+".llm_cache.json")
}

func (d *DailyCache) donePath() string {
	return filepath.Join(d.dir, d.day+".llm_done")
}

// Load returns the cached batch result for today, if any.
func (d *DailyCache) Load() (BatchResult, bool) {
	raw, err := os.ReadFile(d.resultPath())
	if err != nil {
		return BatchResult{}, false
	}
	var out BatchResult
	if err := json.Unmarshal(raw, &out); err != nil {
		return BatchResult{}, false
	}
	return out, true
}

// Store persists today's batch result. Best-effort.
func (d *DailyCache) Store(result BatchResult) error {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return err
	}
	raw, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return err
	}
	return os.WriteFile(d.resultPath(), raw, 0o644)
}

// Attempted reports whether a ranking call was already made today,
// successful or not.
func (d *DailyCache) Attempted() bool {
	_, err := os.Stat(d.donePath())
	return err == nil
}

// MarkAttempted records that a call was made today.
func (d *DailyCache) MarkAttempted() {
	if err := os.MkdirAll(d.dir, 0o755); err != nil {
		return
	}
	os.WriteFile(d.donePath(), []byte(time.Now().Format(time.RFC3339)), 0o644)
}
