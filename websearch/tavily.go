package websearch

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/supportflow/supportflow/internal/tlsutil"
)

// TavilyConfig configures the Tavily search backend.
type TavilyConfig struct {
	APIKey string
	// Depth controls Tavily's search depth: basic or advanced.
	Depth string
	// BaseURL overrides the API endpoint, mainly for tests.
	BaseURL string
	Timeout time.Duration
	// RateLimitPerMinute caps outbound searches; 0 disables limiting.
	RateLimitPerMinute int
}

// Tavily implements Provider using the Tavily search API.
type Tavily struct {
	cfg     TavilyConfig
	client  *http.Client
	limiter *rate.Limiter
	logger  *zap.Logger
}

// NewTavily creates a Tavily search provider.
func NewTavily(cfg TavilyConfig, logger *zap.Logger) *Tavily {
	if cfg.Depth == "" {
		cfg.Depth = "basic"
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = "https://api.tavily.com/search"
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

	return &Tavily{
		cfg:     cfg,
		client:  tlsutil.SecureHTTPClient(cfg.Timeout),
		limiter: limiter,
		logger:  logger.With(zap.String("provider", "tavily")),
	}
}

// Name returns the provider name.
func (t *Tavily) Name() string { return "tavily" }

// Search posts a query to Tavily. 429 responses are retried with
// exponential backoff up to 30s per attempt.
func (t *Tavily) Search(ctx context.Context, query string, opts Options) ([]Result, error) {
	if strings.TrimSpace(t.cfg.APIKey) == "" {
		return nil, fmt.Errorf("tavily: api key is required")
	}

	if t.limiter != nil {
		if err := t.limiter.Wait(ctx); err != nil {
			return nil, err
		}
	}

	maxResults := opts.MaxResults
	if maxResults <= 0 {
		maxResults = 10
	}

	payload, err := json.Marshal(map[string]any{
		"query":        query,
		"api_key":      t.cfg.APIKey,
		"search_depth": t.cfg.Depth,
		"max_results":  maxResults,
	})
	if err != nil {
		return nil, err
	}

	var resp *http.Response
	delay := time.Second
	for {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.cfg.BaseURL, bytes.NewReader(payload))
		if err != nil {
			return nil, err
		}
		req.Header.Set("Content-Type", "application/json")

		resp, err = t.client.Do(req)
		if err != nil {
			return nil, fmt.Errorf("tavily: request failed: %w", err)
		}
		if resp.StatusCode != http.StatusTooManyRequests {
			break
		}
		resp.Body.Close()

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(delay):
		}
		if delay *= 2; delay > 30*time.Second {
			delay = 30 * time.Second
		}
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("tavily: status=%d", resp.StatusCode)
	}

	var body struct {
		Results []struct {
			Title   string  `json:"title"`
			URL     string  `json:"url"`
			Content string  `json:"content"`
			Score   float64 `json:"score"`
		} `json:"results"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		return nil, fmt.Errorf("tavily: failed to decode response: %w", err)
	}

	results := make([]Result, 0, len(body.Results))
	for _, r := range body.Results {
		results = append(results, Result{
			Title:   r.Title,
			URL:     r.URL,
			Snippet: r.Content,
			Score:   r.Score,
		})
	}

	t.logger.Debug("web search completed",
		zap.String("query", query),
		zap.Int("results", len(results)))
	return results, nil
}
