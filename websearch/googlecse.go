package websearch

import (
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/time/rate"

	"github.com/supportflow/supportflow/internal/tlsutil"
)

// GoogleCSEConfig configures the Google Custom Search backend.
type GoogleCSEConfig struct {
	APIKey   string
	EngineID string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
	// RateLimitPerMinute caps outbound searches; 0 disables limiting.
	RateLimitPerMinute int
}

// GoogleCSE implements Provider using the Google Custom Search JSON API.
type GoogleCSE struct {
	cfg     GoogleCSEConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewGoogleCSE creates a Google Custom Search provider.
func NewGoogleCSE(cfg GoogleCSEConfig, logger *zap.Logger) *GoogleCSE {
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://www.googleapis.com/customsearch/v1"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 15 * time.Second
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var limiter *rate.Limiter
	if cfg.RateLimitPerMinute > 0 {
		limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(cfg.RateLimitPerMinute)), cfg.RateLimitPerMinute)
	}

	return &GoogleCSE{
		cfg:     cfg,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		limiter: limiter,
		logger:  logger.With(zap.String("provider", "googlecse")),
	}
}

// Name returns the provider name.
func (g *GoogleCSE) Name() string { return "googlecse" }

// Search performs a web search via the Custom Search JSON API.
func (g *GoogleCSE) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(g.cfg.APIKey) == "" || strings.TrimSpace(g.cfg.EngineID) == "" {
		return nil, fmt.Errorf("googlecse: api key and engine id are required")
	}

	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}
	if maxResults > 10 {
		// The API returns at most 10 items per request.
		maxResults = 10
	}

	params := url.Values{}
	params.Set("key", g.cfg.APIKey)
	params.Set("cx", g.cfg.EngineID)
	params.Set("q", query)
	params.Set("num", strconv.Itoa(maxResults))
	if opts.Language != "" {
		params.Set("lr", "lang_"+opts.Language)
	}
	if opts.SafeSearch {
		params.Set("safe", "active")
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, g.cfg.BaseURL+"?"+params.Encode(), nil)
	if err != nil {
		return nil, fmt.Errorf("googlecse: failed to create request: %w", err)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("googlecse: request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error struct {
				Message string `json:"message"`
			} `json:"error"`
		}
		_ = json.NewDecoder(resp.Body).Decode(&apiErr)
		return nil, fmt.Errorf("googlecse: status=%d message=%s", resp.StatusCode, apiErr.Error.Message)
	}

	var body struct {
		Items []struct {
			Title       string `json:"title"`
			Link        string `json:"link"`
			Snippet     string `json:"snippet"`
			HTMLSnippet string `json:"htmlSnippet"`
		} `json:"items"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("googlecse: failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(body.Items))
	for _, item := range body.Items {
		snippet := item.Snippet
		if snippet == "" && item.HTMLSnippet != "" {
			snippet = stripHTML(item.HTMLSnippet)
		}
		results = append(results, Result{
			Title:   item.Title,
			URL:     item.Link,
			Snippet: snippet,
		})
	}

	g.logger.Debug("web search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}

// stripHTML extracts the text content of an HTML fragment.
func stripHTML(fragment string) string {
	node, err := html.Parse(strings.NewReader(fragment))
	if err != nil {
		return fragment
	}

	var sb strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			sb.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(node)
	return strings.Join(strings.Fields(sb.String()), " ")
}
