package score

import "strings"

// Result is the keyword-based score for one item, used directly when LLM
// reranking is unavailable and as the preselection order when it is.
type Result struct {
	Score   int
	Primary string
	Tags    []string
}

var keywordBuckets = map[string][]string{
	"infra": {
		"datacenter", "data center", "power", "grid", "substation", "cooling",
		"hbm", "hbm3", "hbm3e", "cowos", "packaging", "2.5d", "3d",
		"tsmc", "samsung", "intel foundry", "substrate", "interconnect",
		"blackwell", "hopper", "gb200", "mi300", "dram",
	},
	"models": {
		"llm", "model", "reasoning", "agent", "tool", "mcp", "alignment", "rl",
		"inference", "training", "token", "context", "benchmark", "eval",
		"multimodal", "transformer", "mixture of experts", "moe",
	},
	"invest": {
		"earnings", "guidance", "capex", "opex", "margin", "backlog", "revenue",
		"supply", "shortage", "constraint", "price", "pricing",
	},
	"geopol": {
		"export control", "sanction", "china", "taiwan", "eu ai act", "bis",
		"sovereign", "regulation", "chip act",
	},
	"hype": {
		"breakthrough", "state-of-the-art", "sota", "launch", "released",
		"announces", "preview", "record", "massive",
	},
}

// Source bonuses, tuned by hand.
var sourceBonus = []struct {
	match string
	bonus int
}{
	{"semiwiki", 10},
	{"nvidia", 8},
	{"deepmind", 6},
	{"google ai", 6},
	{"arxiv", 4},
}

// Item scores a title+summary pair: category keyword hits weighted toward
// infra and investment signal, a small hype component, a per-source bonus,
// clamped to 0-100.
func Item(title, summary, source string) Result {
	text := strings.ToLower(title + "\n" + summary)

	infra := countHits(text, keywordBuckets["infra"])
	models := countHits(text, keywordBuckets["models"])
	invest := countHits(text, keywordBuckets["invest"])
	geopol := countHits(text, keywordBuckets["geopol"])
	hype := countHits(text, keywordBuckets["hype"])

	raw := infra*10 + invest*10 + models*5 + geopol*5 + hype*3

	src := strings.ToLower(source)
	for _, sb := range sourceBonus {
		if strings.Contains(src, sb.match) {
			raw += sb.bonus
		}
	}

	if raw < 0 {
		raw = 0
	}
	if raw > 100 {
		raw = 100
	}

	var tags []string
	if infra > 0 {
		tags = append(tags, "infra")
	}
	if invest > 0 {
		tags = append(tags, "invest")
	}
	if models > 0 {
		tags = append(tags, "models")
	}
	if geopol > 0 {
		tags = append(tags, "geopol")
	}

	return Result{Score: raw, Primary: primary(infra, models, invest, geopol), Tags: tags}
}

func primary(infra, models, invest, geopol int) string {
	switch {
	case infra > 0 && infra >= models && infra >= invest && infra >= geopol:
		return "infra"
	case invest > 0 && invest >= models && invest >= geopol:
		return "invest"
	case models > 0 && models >= geopol:
		return "models"
	case geopol > 0:
		return "geopol"
	default:
		return "misc"
	}
}

func countHits(text string, words []string) int {
	hits := 0
	for _, w := range words {
		if strings.Contains(text, w) {
			hits++
		}
	}
	return hits
}
