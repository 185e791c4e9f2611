package websearch

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestShapeQuery(t *testing.T) {
	terms := []string{"Vertiv", "Avocent"}

	tests := []struct {
		name  string
		query string
		want  string
	}{
		{"product term", "Avocent console errors", "Avocent console errors official documentation guide"},
		{"product term case insensitive", "vertiv UPS beeping", "vertiv UPS beeping official documentation guide"},
		{"how to prefix", "How to reset the admin password", "How to reset the admin password tutorial guide"},
		{"how do i prefix", "how do i upgrade firmware", "how do i upgrade firmware tutorial guide"},
		{"install keyword", "install the monitoring agent on linux", "install the monitoring agent on linux documentation"},
		{"plain question", "why is the fan loud", "why is the fan loud"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, ShapeQuery(tt.query, terms))
		})
	}
}

func TestShapeQueryProductBeatsHowTo(t *testing.T) {
	// Product match takes priority over the how-to phrasing.
	got := ShapeQuery("how to configure Vertiv PDU", []string{"vertiv"})
	assert.Equal(t, "how to configure Vertiv PDU official documentation guide", got)
}

func TestGoogleCSESearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		q := r.URL.Query()
		assert.Equal(t, "test-key", q.Get("key"))
		assert.Equal(t, "engine-1", q.Get("cx"))
		assert.Equal(t, "reset password", q.Get("q"))
		assert.Equal(t, "2", q.Get("num"))
		assert.Equal(t, "active", q.Get("safe"))

		_, _ = w.Write([]byte(`{
			"items": [
				{"title": "Reset Guide", "link": "https://example.com/reset", "snippet": "Step by step reset."},
				{"title": "FAQ", "link": "https://example.com/faq", "htmlSnippet": "See the <b>reset</b> section."}
			]
		}`))
	}))
	defer srv.Close()

	g := NewGoogleCSE(GoogleCSEConfig{APIKey: "test-key", EngineID: "engine-1", BaseURL: srv.URL}, nil)

	results, err := g.Search(context.Background(), "reset password", Options{MaxResults: 2, SafeSearch: true})
	require.NoError(t, err)
	require.Len(t, results, 2)
	assert.Equal(t, "Reset Guide", results[0].Title)
	assert.Equal(t, "https://example.com/reset", results[0].URL)
	assert.Equal(t, "Step by step reset.", results[0].Snippet)
	assert.Equal(t, "See the reset section.", results[1].Snippet, "html snippet should be stripped to text")
}

func TestGoogleCSESearchMissingCredentials(t *testing.T) {
	g := NewGoogleCSE(GoogleCSEConfig{}, nil)
	_, err := g.Search(context.Background(), "q", DefaultOptions())
	assert.Error(t, err)
}

func TestGoogleCSESearchAPIError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusForbidden)
		_, _ = w.Write([]byte(`{"error": {"message": "quota exceeded"}}`))
	}))
	defer srv.Close()

	g := NewGoogleCSE(GoogleCSEConfig{APIKey: "k", EngineID: "e", BaseURL: srv.URL}, nil)
	_, err := g.Search(context.Background(), "q", DefaultOptions())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "quota exceeded")
}

func TestGoogleCSESearchEmptyResults(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_, _ = w.Write([]byte(`{}`))
	}))
	defer srv.Close()

	g := NewGoogleCSE(GoogleCSEConfig{APIKey: "k", EngineID: "e", BaseURL: srv.URL}, nil)
	results, err := g.Search(context.Background(), "q", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
}

func TestTavilySearch(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req map[string]any
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "reset password", req["query"])
		assert.Equal(t, "basic", req["search_depth"])
		assert.Equal(t, float64(3), req["max_results"])

		_, _ = w.Write([]byte(`{
			"results": [
				{"title": "Reset Guide", "url": "https://example.com/reset",
				 "content": "Step by step reset.", "score": 0.97}
			]
		}`))
	}))
	defer srv.Close()

	tv := NewTavily(TavilyConfig{APIKey: "k", BaseURL: srv.URL}, nil)

	results, err := tv.Search(context.Background(), "reset password", Options{MaxResults: 3})
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Equal(t, "Reset Guide", results[0].Title)
	assert.InDelta(t, 0.97, results[0].Score, 1e-9)
}

func TestTavilySearchRetriesOn429(t *testing.T) {
	attempts := 0
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		attempts++
		if attempts == 1 {
			w.WriteHeader(http.StatusTooManyRequests)
			return
		}
		_, _ = w.Write([]byte(`{"results": []}`))
	}))
	defer srv.Close()

	tv := NewTavily(TavilyConfig{APIKey: "k", BaseURL: srv.URL}, nil)
	results, err := tv.Search(context.Background(), "q", DefaultOptions())
	require.NoError(t, err)
	assert.Empty(t, results)
	assert.Equal(t, 2, attempts)
}

func TestTavilySearchMissingKey(t *testing.T) {
	tv := NewTavily(TavilyConfig{}, nil)
	_, err := tv.Search(context.Background(), "q", DefaultOptions())
	assert.Error(t, err)
}

func TestStripHTML(t *testing.T) {
	assert.Equal(t, "hello world", stripHTML("<b>hello</b>\n <i>world</i>"))
	assert.Equal(t, "plain", stripHTML("plain"))
}
