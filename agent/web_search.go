package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/supportflow/supportflow/types"
	"github.com/supportflow/supportflow/websearch"
)

// defaultWebScore is assigned to results whose provider reports no
// relevance score; web snippets are treated as fairly reliable but
// below a strong internal match.
const defaultWebScore = 0.8

// WebSearchAgent searches the open web when internal evidence is
// insufficient.
type WebSearchAgent struct {
	provider     websearch.Provider
	productTerms []string
	logger       *zap.Logger
}

// NewWebSearchAgent creates a web search agent. productTerms bias query
// shaping toward official documentation.
func NewWebSearchAgent(provider websearch.Provider, productTerms []string, logger *zap.Logger) *WebSearchAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &WebSearchAgent{
		provider:     provider,
		productTerms: productTerms,
		logger:       logger.With(zap.String("agent", "web_search")),
	}
}

// Search shapes the question into a web query and returns results as
// evidence. Upstream failures are returned as errors; the caller
// decides whether to degrade or abort.
func (a *WebSearchAgent) Search(ctx context.Context, question string, maxResults int) ([]types.Evidence, error) {
	if question == "" || maxResults <= 0 {
		return []types.Evidence{}, nil
	}

	query := websearch.ShapeQuery(question, a.productTerms)
	a.logger.Info("web search starting",
		zap.String("provider", a.provider.Name()),
		zap.String("query", query))

	start := time.Now()
	opts := websearch.DefaultOptions()
	opts.MaxResults = maxResults

	results, err := a.provider.Search(ctx, query, opts)
	if err != nil {
		a.logger.Warn("web search failed", zap.Error(err))
		return nil, types.NewError(types.ErrProviderUnavailable, "web search failed").
			WithProvider(a.provider.Name()).WithCause(err)
	}

	if len(results) > maxResults {
		results = results[:maxResults]
	}

	evidence := make([]types.Evidence, 0, len(results))
	for _, r := range results {
		score := r.Score
		if score == 0 {
			score = defaultWebScore
		}
		evidence = append(evidence, types.NewWebEvidence(r.Snippet, types.SourceDescriptor{
			Origin:   types.OriginWeb,
			ID:       r.URL,
			Title:    r.Title,
			Location: r.URL,
		}, score))
	}

	a.logger.Info("web search completed",
		zap.Int("results", len(evidence)),
		zap.Duration("elapsed", time.Since(start)))
	return evidence, nil
}
