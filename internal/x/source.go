package x

import (
	"crypto/sha1"
	"fmt"
	"strings"
)

// Kind selects how an X source is addressed.
type Kind string

const (
	KindTimeline Kind = "timeline"
	KindSearch   Kind = "search"
)

// SourceSpec is one configured X input: a user timeline or a search query.
// Exactly one of Username/Query is set, consistent with Kind.
type SourceSpec struct {
	Name     string
	Kind     Kind
	Username string
	Query    string
	Limit    int
}

// DefaultLimit caps how many items a single source resolution returns.
const DefaultLimit = 8

func (s SourceSpec) Validate() error {
	switch s.Kind {
	case KindTimeline:
		if cleanUsername(s.Username) == "" {
			return fmt.Errorf("source %q: timeline requires a username", s.Name)
		}
		if strings.TrimSpace(s.Query) != "" {
			return fmt.Errorf("source %q: timeline must not set a query", s.Name)
		}
	case KindSearch:
		if strings.TrimSpace(s.Query) == "" {
			return fmt.Errorf("source %q: search requires a query", s.Name)
		}
		if strings.TrimSpace(s.Username) != "" {
			return fmt.Errorf("source %q: search must not set a username", s.Name)
		}
	default:
		return fmt.Errorf("source %q: unknown kind %q (valid: timeline, search)", s.Name, s.Kind)
	}
	return nil
}

// CacheKey derives a deterministic key so re-running the same configuration
// addresses the same cache entry. Queries are hashed because they may contain
// characters unsuitable for a human-scannable key.
func (s SourceSpec) CacheKey() string {
	switch s.Kind {
	case KindSearch:
		norm := strings.ToLower(strings.Join(strings.Fields(s.Query), " "))
		return fmt.Sprintf("search:%x", sha1.Sum([]byte(norm)))
	default:
		return "timeline:" + strings.ToLower(cleanUsername(s.Username))
	}
}

// Label returns a human-readable identifier for logs and output.
func (s SourceSpec) Label() string {
	if s.Name != "" {
		return s.Name
	}
	if s.Kind == KindSearch {
		return "search: " + s.Query
	}
	return "@" + cleanUsername(s.Username)
}

func (s SourceSpec) limit() int {
	if s.Limit <= 0 {
		return DefaultLimit
	}
	if s.Limit > 100 {
		return 100
	}
	return s.Limit
}

func cleanUsername(u string) string {
	return strings.TrimPrefix(strings.TrimSpace(u), "@")
}
