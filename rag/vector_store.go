package rag

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	"go.uber.org/zap"
)

// Document is a knowledge base entry: a piece of support documentation
// together with its embedding.
type Document struct {
	ID        string            `json:"id"`
	Title     string            `json:"title,omitempty"`
	Content   string            `json:"content"`
	URL       string            `json:"url,omitempty"`
	Metadata  map[string]string `json:"metadata,omitempty"`
	Embedding []float64         `json:"embedding,omitempty"`
}

// VectorSearchResult is a single search hit.
type VectorSearchResult struct {
	Document Document `json:"document"`
	Score    float64  `json:"score"`
}

// VectorStore is the vector database interface backing internal search.
type VectorStore interface {
	// AddDocuments indexes documents. Every document must carry an
	// embedding.
	AddDocuments(ctx context.Context, docs []Document) error

	// Search returns the topK most similar documents, best first.
	Search(ctx context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error)

	// DeleteDocuments removes documents by ID.
	DeleteDocuments(ctx context.Context, ids []string) error

	// Count returns the number of indexed documents.
	Count(ctx context.Context) (int, error)
}

// ====== in-memory store (tests and small installations) ======

// InMemoryVectorStore holds documents in process and searches by cosine
// similarity.
type InMemoryVectorStore struct {
	documents []Document
	mu        sync.RWMutex
	logger    *zap.Logger
}

// NewInMemoryVectorStore creates an empty in-memory store.
func NewInMemoryVectorStore(logger *zap.Logger) *InMemoryVectorStore {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &InMemoryVectorStore{
		documents: make([]Document, 0),
		logger:    logger.With(zap.String("component", "memory_store")),
	}
}

// AddDocuments indexes documents.
func (s *InMemoryVectorStore) AddDocuments(ctx context.Context, docs []Document) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	for _, doc := range docs {
		if len(doc.Embedding) == 0 {
			return fmt.Errorf("document %s has no embedding", doc.ID)
		}
		s.documents = append(s.documents, doc)
	}

	s.logger.Debug("documents added",
		zap.Int("count", len(docs)),
		zap.Int("total", len(s.documents)))
	return nil
}

// Search returns the topK most similar documents by cosine similarity.
func (s *InMemoryVectorStore) Search(ctx context.Context, queryEmbedding []float64, topK int) ([]VectorSearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.documents) == 0 || topK <= 0 {
		return []VectorSearchResult{}, nil
	}

	results := make([]VectorSearchResult, 0, len(s.documents))
	for _, doc := range s.documents {
		results = append(results, VectorSearchResult{
			Document: doc,
			Score:    cosineSimilarity(queryEmbedding, doc.Embedding),
		})
	}

	sort.Slice(results, func(i, j int) bool {
		return results[i].Score > results[j].Score
	})

	if topK > len(results) {
		topK = len(results)
	}
	return results[:topK], nil
}

// DeleteDocuments removes documents by ID.
func (s *InMemoryVectorStore) DeleteDocuments(ctx context.Context, ids []string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	idSet := make(map[string]bool, len(ids))
	for _, id := range ids {
		idSet[id] = true
	}

	filtered := s.documents[:0]
	for _, doc := range s.documents {
		if !idSet[doc.ID] {
			filtered = append(filtered, doc)
		}
	}
	s.documents = filtered
	return nil
}

// Count returns the number of indexed documents.
func (s *InMemoryVectorStore) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.documents), nil
}

func cosineSimilarity(a, b []float64) float64 {
	if len(a) != len(b) {
		return 0.0
	}

	var dot, normA, normB float64
	for i := range a {
		dot += a[i] * b[i]
		normA += a[i] * a[i]
		normB += b[i] * b[i]
	}
	if normA == 0 || normB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
