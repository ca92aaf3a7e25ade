package ai

import (
	"strings"
	"testing"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/config"
)

func TestNew(t *testing.T) {
	if _, err := New(&config.AIConfig{Provider: "claude"}, "key"); err != nil {
		t.Errorf("claude provider: %v", err)
	}
	if _, err := New(&config.AIConfig{Provider: "openai"}, "key"); err != nil {
		t.Errorf("openai provider: %v", err)
	}
	if _, err := New(&config.AIConfig{Provider: "claude"}, ""); err == nil {
		t.Error("expected error without API key")
	}
	if _, err := New(nil, "key"); err == nil {
		t.Error("expected error without config")
	}
	if _, err := New(&config.AIConfig{Provider: "gemini"}, "key"); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestParseBatch(t *testing.T) {
	raw := `{"results":[{"id":1,"score":80,"primary":"infra","tags":["hbm3e"],"why":"capacity","entities":["TSMC"]}],"briefing":{"signals":["s1"],"risks":[],"watch":[],"entities_top":["TSMC"]}}`
	out, err := parseBatch(raw)
	if err != nil {
		t.Fatalf("parseBatch: %v", err)
	}
	if len(out.Results) != 1 || out.Results[0].Score != 80 || out.Results[0].Primary != "infra" {
		t.Errorf("results = %+v", out.Results)
	}
	if len(out.Briefing.Signals) != 1 {
		t.Errorf("briefing = %+v", out.Briefing)
	}
}

func TestParseBatchCodeFences(t *testing.T) {
	raw := "```json\n{\"results\":[{\"id\":1,\"score\":50,\"primary\":\"models\"}],\"briefing\":{}}\n```"
	out, err := parseBatch(raw)
	if err != nil {
		t.Fatalf("fenced JSON should parse: %v", err)
	}
	if len(out.Results) != 1 {
		t.Errorf("results = %+v", out.Results)
	}
}

func TestParseBatchClamps(t *testing.T) {
	raw := `{"results":[
		{"id":1,"score":150,"primary":"infra"},
		{"id":2,"score":-5,"primary":"nonsense"},
		{"id":3,"score":50,"primary":"invest","tags":["a","b","c","d","e","f","g","h"],"entities":["1","2","3","4","5","6","7"],"why":"` + strings.Repeat("x", 300) + `"}
	],"briefing":{}}`
	out, err := parseBatch(raw)
	if err != nil {
		t.Fatalf("parseBatch: %v", err)
	}
	if out.Results[0].Score != 100 {
		t.Errorf("score not clamped high: %d", out.Results[0].Score)
	}
	if out.Results[1].Score != 0 {
		t.Errorf("score not clamped low: %d", out.Results[1].Score)
	}
	if out.Results[1].Primary != "misc" {
		t.Errorf("invalid primary should become misc, got %q", out.Results[1].Primary)
	}
	if len(out.Results[2].Tags) != 6 {
		t.Errorf("tags not capped: %d", len(out.Results[2].Tags))
	}
	if len(out.Results[2].Entities) != 6 {
		t.Errorf("entities not capped: %d", len(out.Results[2].Entities))
	}
	if len(out.Results[2].Why) != 160 {
		t.Errorf("why not truncated: %d chars", len(out.Results[2].Why))
	}
}

func TestParseBatchBadJSON(t *testing.T) {
	if _, err := parseBatch("the model refused to answer"); err == nil {
		t.Error("expected error for non-JSON text")
	}
}

func TestBuildPromptTruncates(t *testing.T) {
	prompt, err := buildPrompt([]Candidate{{
		ID:      1,
		Title:   strings.Repeat("t", 500),
		Summary: strings.Repeat("s", 2000),
	}})
	if err != nil {
		t.Fatalf("buildPrompt: %v", err)
	}
	if strings.Contains(prompt, strings.Repeat("t", 241)) {
		t.Error("title not truncated")
	}
	if strings.Contains(prompt, strings.Repeat("s", 701)) {
		t.Error("summary not truncated")
	}
	if !strings.Contains(prompt, `"id":1`) {
		t.Error("candidate payload missing from prompt")
	}
}
