// Package classify extracts named entities from headlines and maps category
// codes to display labels.
package classify

import (
	"regexp"
	"strings"
)

// Labels maps primary category codes to their display names.
var Labels = map[string]string{
	"models":   "Models",
	"infra":    "Infrastructure/HW",
	"invest":   "Investment",
	"geopol":   "Policy/Regulation",
	"security": "Security",
	"research": "Research",
	"products": "Products",
	"chips":    "Chips",
	"robotics": "Robotics",
	"compute":  "Compute",
	"misc":     "Misc",
}

// Label returns the display name for a category code, falling back to the
// code itself.
func Label(code string) string {
	if l, ok := Labels[code]; ok {
		return l
	}
	return code
}

var knownEntities = []string{
	"OpenAI", "NVIDIA", "Anthropic", "Google", "DeepMind", "Microsoft", "Meta", "Apple",
	"Amazon", "AWS", "Azure", "TSMC", "AMD", "Intel", "Arm", "Tesla",
	"Cerebras", "Groq", "Mistral", "Hugging Face", "Stability AI",
	"ByteDance", "Alibaba", "Tencent", "Samsung", "Qualcomm",
}

var entityAliases = map[string]string{
	"UK": "United Kingdom", "US": "USA", "EU": "EU",
}

// Generic tech acronyms that read like entities but aren't.
var stopEntities = map[string]bool{
	"AI": true, "ML": true, "LLM": true, "RAG": true, "RL": true,
	"GPU": true, "CPU": true, "API": true, "SDK": true, "OSS": true,
	"PDF": true, "HTML": true,
}

var allowAcronyms = map[string]bool{
	"AWS": true, "TSMC": true, "AMD": true, "ARM": true, "NVIDIA": true,
	"GPT": true, "CUDA": true, "USA": true, "EU": true,
}

var (
	spaceRe     = regexp.MustCompile(`\s+`)
	acronymRe   = regexp.MustCompile(`\b[A-Z][A-Z0-9]{1,6}\b`)
	titleCaseRe = regexp.MustCompile(`\b([A-Z][a-z]+(?:\s+[A-Z][a-z]+){0,2})\b`)
)

// NormalizeEntity collapses whitespace and resolves aliases.
func NormalizeEntity(e string) string {
	e = spaceRe.ReplaceAllString(strings.TrimSpace(e), " ")
	if alias, ok := entityAliases[e]; ok {
		return alias
	}
	return e
}

// BadEntity reports whether a candidate is too generic or too short to keep.
func BadEntity(e string) bool {
	e = strings.TrimSpace(e)
	if e == "" || stopEntities[e] {
		return true
	}
	if allowAcronyms[e] {
		return false
	}
	return len(e) < 3
}

var titleStopWords = map[string]bool{
	"The": true, "A": true, "An": true, "And": true, "Of": true,
	"In": true, "On": true, "For": true, "With": true, "New": true,
}

// EntitiesFromTitle extracts up to 8 entity candidates from a headline:
// known-entity matches first, then plausible acronyms, then Title Case runs.
func EntitiesFromTitle(title string) []string {
	var hits []string

	for _, e := range knownEntities {
		re := regexp.MustCompile(`(?i)\b` + regexp.QuoteMeta(e) + `\b`)
		if re.MatchString(title) {
			hits = append(hits, e)
		}
	}

	for _, m := range acronymRe.FindAllString(title, -1) {
		m2 := NormalizeEntity(m)
		if !BadEntity(m2) {
			hits = append(hits, m2)
		}
	}

	for _, c := range titleCaseRe.FindAllString(title, -1) {
		c2 := NormalizeEntity(c)
		if titleStopWords[c2] || BadEntity(c2) {
			continue
		}
		hits = append(hits, c2)
	}

	var out []string
	seen := make(map[string]bool)
	for _, h := range hits {
		key := strings.ToLower(h)
		if seen[key] {
			continue
		}
		seen[key] = true
		out = append(out, h)
		if len(out) == 8 {
			break
		}
	}
	return out
}
