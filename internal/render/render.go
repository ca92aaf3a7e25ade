// Package render writes the static briefing artifacts: a dated JSON data
// file and the HTML index page.
package render

import (
	"embed"
	"encoding/json"
	"fmt"
	"html/template"
	"net/url"
	"os"
	"path/filepath"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/briefing"
	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/classify"
)

//go:embed index.html.tmpl
var templateFS embed.FS

var indexTmpl = template.Must(template.New("index.html.tmpl").Funcs(template.FuncMap{
	"safeURL": safeURL,
	"label":   classify.Label,
}).ParseFS(templateFS, "index.html.tmpl"))

// WriteJSON writes the briefing data file under dir/data and returns its path.
func WriteJSON(dir string, b *briefing.Briefing) (string, error) {
	dataDir := filepath.Join(dir, "data")
	if err := os.MkdirAll(dataDir, 0o755); err != nil {
		return "", fmt.Errorf("creating data dir: %w", err)
	}

	raw, err := json.MarshalIndent(b, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding briefing: %w", err)
	}

	path := filepath.Join(dataDir, b.Date+".json")
	if err := os.WriteFile(path, raw, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", path, err)
	}
	return path, nil
}

// WriteHTML renders the index page under dir and returns its path.
func WriteHTML(dir string, b *briefing.Briefing) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating output dir: %w", err)
	}

	path := filepath.Join(dir, "index.html")
	f, err := os.Create(path)
	if err != nil {
		return "", fmt.Errorf("creating %s: %w", path, err)
	}
	defer f.Close()

	if err := indexTmpl.Execute(f, b); err != nil {
		return "", fmt.Errorf("rendering index: %w", err)
	}
	return path, nil
}

// safeURL allows only http(s) links into href attributes.
func safeURL(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return "#"
	}
	return raw
}
