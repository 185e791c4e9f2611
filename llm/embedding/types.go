package embedding

import (
	"context"
	"time"
)

// EmbeddingRequest is a request to generate embeddings.
type EmbeddingRequest struct {
	Input      []string `json:"input"`
	Model      string   `json:"model,omitempty"`
	Dimensions int      `json:"dimensions,omitempty"`
}

// EmbeddingData is a single embedding result.
type EmbeddingData struct {
	Index     int       `json:"index"`
	Embedding []float64 `json:"embedding"`
}

// EmbeddingUsage reports token consumption for an embedding request.
type EmbeddingUsage struct {
	PromptTokens int `json:"prompt_tokens"`
	TotalTokens  int `json:"total_tokens"`
}

// EmbeddingResponse is the response of an embedding request.
type EmbeddingResponse struct {
	Provider   string          `json:"provider"`
	Model      string          `json:"model"`
	Embeddings []EmbeddingData `json:"embeddings"`
	Usage      EmbeddingUsage  `json:"usage"`
	CreatedAt  time.Time       `json:"created_at,omitempty"`
}

// Provider generates embeddings. Implementations must be safe for
// concurrent use.
type Provider interface {
	// Embed generates embeddings for the given inputs.
	Embed(ctx context.Context, req *EmbeddingRequest) (*EmbeddingResponse, error)

	// EmbedQuery embeds a single query string.
	EmbedQuery(ctx context.Context, query string) ([]float64, error)

	// Name returns the provider name.
	Name() string

	// Dimensions returns the default embedding dimensionality.
	Dimensions() int
}
