package agent

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/supportflow/supportflow/llm/embedding"
	"github.com/supportflow/supportflow/rag"
	"github.com/supportflow/supportflow/types"
)

// InternalSearchAgent answers retrieval requests against the internal
// knowledge base: question -> embedding -> vector search -> evidence.
type InternalSearchAgent struct {
	embedder embedding.Provider
	store    rag.VectorStore
	logger   *zap.Logger
}

// NewInternalSearchAgent creates an internal search agent.
func NewInternalSearchAgent(embedder embedding.Provider, store rag.VectorStore, logger *zap.Logger) *InternalSearchAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InternalSearchAgent{
		embedder: embedder,
		store:    store,
		logger:   logger.With(zap.String("agent", "internal_search")),
	}
}

// Search embeds the question and returns the topK most similar
// documents as evidence. Upstream failures are returned as errors; the
// caller decides whether to degrade or abort.
func (a *InternalSearchAgent) Search(ctx context.Context, question string, topK int) ([]types.Evidence, error) {
	if question == "" || topK <= 0 {
		return []types.Evidence{}, nil
	}

	start := time.Now()
	vec, err := a.embedder.EmbedQuery(ctx, question)
	if err != nil {
		a.logger.Warn("query embedding failed", zap.Error(err))
		return nil, types.NewError(types.ErrProviderUnavailable, "query embedding failed").
			WithProvider(a.embedder.Name()).WithCause(err)
	}
	a.logger.Debug("query embedded",
		zap.Duration("elapsed", time.Since(start)),
		zap.Int("dimensions", len(vec)))

	hits, err := a.store.Search(ctx, vec, topK)
	if err != nil {
		a.logger.Warn("vector search failed", zap.Error(err))
		return nil, types.NewError(types.ErrProviderUnavailable, "knowledge base search failed").
			WithCause(err)
	}

	evidence := make([]types.Evidence, 0, len(hits))
	for _, hit := range hits {
		doc := hit.Document
		evidence = append(evidence, types.NewInternalEvidence(doc.Content, types.SourceDescriptor{
			Origin:   types.OriginInternal,
			ID:       doc.ID,
			Title:    doc.Title,
			Location: doc.URL,
		}, hit.Score))
	}

	a.logger.Info("internal search completed",
		zap.Int("results", len(evidence)),
		zap.Duration("elapsed", time.Since(start)))
	return evidence, nil
}
