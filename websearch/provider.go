package websearch

import (
	"context"
	"strings"
)

// Options configures a web search request.
type Options struct {
	// MaxResults caps the number of returned results (default 10).
	MaxResults int `json:"max_results"`
	// Language code, e.g. "en".
	Language string `json:"language,omitempty"`
	// SafeSearch enables content filtering.
	SafeSearch bool `json:"safe_search,omitempty"`
}

// DefaultOptions returns sensible defaults.
func DefaultOptions() Options {
	return Options{
		MaxResults: 10,
		Language:   "en",
		SafeSearch: true,
	}
}

// Result is a single web search hit.
type Result struct {
	Title   string  `json:"title"`
	URL     string  `json:"url"`
	Snippet string  `json:"snippet"`
	Score   float64 `json:"score,omitempty"`
}

// Provider is the interface for web search backends.
type Provider interface {
	// Search performs a web search and returns results.
	Search(ctx context.Context, query string, opts Options) ([]Result, error)
	// Name returns the provider name.
	Name() string
}

// ShapeQuery rewrites a support question into a better web query.
// Questions mentioning a known product name get steered toward official
// documentation; how-to phrasings get steered toward tutorials.
func ShapeQuery(query string, productTerms []string) string {
	lower := strings.ToLower(query)

	for _, term := range productTerms {
		if term != "" && strings.Contains(lower, strings.ToLower(term)) {
			return query + " official documentation guide"
		}
	}

	for _, prefix := range []string{"how to", "how do i", "how can i"} {
		if strings.HasPrefix(lower, prefix) {
			return query + " tutorial guide"
		}
	}

	for _, term := range []string{"configure", "setup", "install", "deploy"} {
		if strings.Contains(lower, term) {
			return query + " documentation"
		}
	}

	return query
}
