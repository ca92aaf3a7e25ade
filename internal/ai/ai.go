package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/rolandojf-gif/ai-intel-briefing-v3/internal/config"
)

// Candidate is the minimal item data sent for ranking.
type Candidate struct {
	ID      int    `json:"id"`
	Source  string `json:"source"`
	Title   string `json:"title"`
	Summary string `json:"summary"`
	URL     string `json:"url"`
}

// Ranked is the model's verdict for one candidate.
type Ranked struct {
	ID       int      `json:"id"`
	Score    int      `json:"score"`
	Primary  string   `json:"primary"`
	Tags     []string `json:"tags"`
	Why      string   `json:"why"`
	Entities []string `json:"entities"`
}

// Briefing is the model's cross-item analyst summary.
type Briefing struct {
	Signals     []string `json:"signals"`
	Risks       []string `json:"risks"`
	Watch       []string `json:"watch"`
	EntitiesTop []string `json:"entities_top"`
}

// BatchResult is one ranking call's full output.
type BatchResult struct {
	Results  []Ranked `json:"results"`
	Briefing Briefing `json:"briefing"`
}

// Ranker scores a batch of briefing candidates in a single call.
type Ranker interface {
	RankBatch(ctx context.Context, candidates []Candidate) (BatchResult, error)
}

// New creates a Ranker from the given AI config.
func New(cfg *config.AIConfig, apiKey string) (Ranker, error) {
	if cfg == nil || apiKey == "" {
		return nil, fmt.Errorf("AI not configured")
	}

	client := &http.Client{Timeout: 60 * time.Second}

	switch cfg.Provider {
	case "claude":
		model := cfg.Model
		if model == "" {
			model = "claude-haiku-4-5-20251001"
		}
		return &claudeProvider{apiKey: apiKey, model: model, client: client}, nil
	case "openai":
		model := cfg.Model
		if model == "" {
			model = "gpt-4o-mini"
		}
		return &openaiProvider{apiKey: apiKey, model: model, client: client}, nil
	default:
		return nil, fmt.Errorf("unknown AI provider: %q (valid: claude, openai)", cfg.Provider)
	}
}

const rankSystem = `You are an AI/hardware/investment analyst. Score real-world impact, not hype. Do not invent facts; use only the given title and summary. Return compact valid JSON.`

const rankPrompt = `Classify and score each item.
Rules:
- score 0-100 by real impact for AI (chips, datacenters, models, investment, regulation)
- primary: one of infra/models/invest/geopol/misc
- tags: 2-6 lowercase tags (e.g. hbm3e, cowos, datacenter, inference, earnings, funding, export controls)
- why: one short sentence, max 160 chars
- entities: 0-6 key entities (TSMC, NVIDIA, AMD, Samsung, OpenAI, Anthropic...)
Also produce a "briefing" object with up to 5 "signals", 3 "risks", 3 "watch" bullets and up to 5 "entities_top".
Return ONLY JSON shaped like: {"results":[{"id":1,"score":80,"primary":"infra","tags":[],"why":"","entities":[]}],"briefing":{"signals":[],"risks":[],"watch":[],"entities_top":[]}}
ITEMS:
%s`

func buildPrompt(candidates []Candidate) (string, error) {
	trimmed := make([]Candidate, len(candidates))
	for i, c := range candidates {
		c.Source = truncate(c.Source, 80)
		c.Title = truncate(c.Title, 240)
		c.Summary = truncate(c.Summary, 700)
		c.URL = truncate(c.URL, 300)
		trimmed[i] = c
	}
	payload, err := json.Marshal(trimmed)
	if err != nil {
		return "", err
	}
	return fmt.Sprintf(rankPrompt, string(payload)), nil
}

// parseBatch decodes the model's JSON, tolerating markdown code fences, and
// clamps out-of-range fields rather than failing the batch.
func parseBatch(text string) (BatchResult, error) {
	cleaned := strings.TrimSpace(text)
	cleaned = strings.TrimPrefix(cleaned, "```json")
	cleaned = strings.TrimPrefix(cleaned, "```")
	cleaned = strings.TrimSuffix(cleaned, "```")
	cleaned = strings.TrimSpace(cleaned)

	var out BatchResult
	if err := json.Unmarshal([]byte(cleaned), &out); err != nil {
		return BatchResult{}, fmt.Errorf("decoding rank response: %w", err)
	}

	for i := range out.Results {
		r := &out.Results[i]
		if r.Score < 0 {
			r.Score = 0
		}
		if r.Score > 100 {
			r.Score = 100
		}
		switch r.Primary {
		case "infra", "models", "invest", "geopol", "misc":
		default:
			r.Primary = "misc"
		}
		r.Why = truncate(r.Why, 160)
		if len(r.Tags) > 6 {
			r.Tags = r.Tags[:6]
		}
		if len(r.Entities) > 6 {
			r.Entities = r.Entities[:6]
		}
	}
	return out, nil
}

func truncate(s string, n int) string {
	runes := []rune(s)
	if len(runes) <= n {
		return s
	}
	return string(runes[:n])
}

// --- Claude provider ---

type claudeProvider struct {
	apiKey string
	model  string
	client *http.Client
}

type claudeRequest struct {
	Model     string          `json:"model"`
	MaxTokens int             `json:"max_tokens"`
	System    string          `json:"system"`
	Messages  []claudeMessage `json:"messages"`
}

type claudeMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type claudeResponse struct {
	Content []struct {
		Text string `json:"text"`
	} `json:"content"`
}

func (c *claudeProvider) RankBatch(ctx context.Context, candidates []Candidate) (BatchResult, error) {
	prompt, err := buildPrompt(candidates)
	if err != nil {
		return BatchResult{}, err
	}

	body, _ := json.Marshal(claudeRequest{
		Model:     c.model,
		MaxTokens: 2048,
		System:    rankSystem,
		Messages:  []claudeMessage{{Role: "user", Content: prompt}},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.anthropic.com/v1/messages", bytes.NewReader(body))
	if err != nil {
		return BatchResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-api-key", c.apiKey)
	req.Header.Set("anthropic-version", "2023-06-01")

	resp, err := c.client.Do(req)
	if err != nil {
		return BatchResult{}, fmt.Errorf("claude API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return BatchResult{}, fmt.Errorf("claude API %d: %s", resp.StatusCode, string(b))
	}

	var cr claudeResponse
	if err := json.NewDecoder(resp.Body).Decode(&cr); err != nil {
		return BatchResult{}, err
	}
	if len(cr.Content) == 0 {
		return BatchResult{}, fmt.Errorf("empty claude response")
	}
	return parseBatch(cr.Content[0].Text)
}

// --- OpenAI provider ---

type openaiProvider struct {
	apiKey string
	model  string
	client *http.Client
}

type openaiRequest struct {
	Model    string          `json:"model"`
	Messages []openaiMessage `json:"messages"`
}

type openaiMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openaiResponse struct {
	Choices []struct {
		Message struct {
			Content string `json:"content"`
		} `json:"message"`
	} `json:"choices"`
}

func (o *openaiProvider) RankBatch(ctx context.Context, candidates []Candidate) (BatchResult, error) {
	prompt, err := buildPrompt(candidates)
	if err != nil {
		return BatchResult{}, err
	}

	body, _ := json.Marshal(openaiRequest{
		Model: o.model,
		Messages: []openaiMessage{
			{Role: "system", Content: rankSystem},
			{Role: "user", Content: prompt},
		},
	})

	req, err := http.NewRequestWithContext(ctx, "POST", "https://api.openai.com/v1/chat/completions", bytes.NewReader(body))
	if err != nil {
		return BatchResult{}, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+o.apiKey)

	resp, err := o.client.Do(req)
	if err != nil {
		return BatchResult{}, fmt.Errorf("openai API error: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return BatchResult{}, fmt.Errorf("openai API %d: %s", resp.StatusCode, string(b))
	}

	var or openaiResponse
	if err := json.NewDecoder(resp.Body).Decode(&or); err != nil {
		return BatchResult{}, err
	}
	if len(or.Choices) == 0 {
		return BatchResult{}, fmt.Errorf("empty openai response")
	}
	return parseBatch(or.Choices[0].Message.Content)
}
