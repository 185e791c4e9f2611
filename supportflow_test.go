package supportflow

import (
	"context"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/supportflow/supportflow/config"
	"github.com/supportflow/supportflow/history"
	"github.com/supportflow/supportflow/internal/metrics"
	"github.com/supportflow/supportflow/llm"
	"github.com/supportflow/supportflow/llm/embedding"
	"github.com/supportflow/supportflow/rag"
	"github.com/supportflow/supportflow/types"
	"github.com/supportflow/supportflow/websearch"
	"github.com/supportflow/supportflow/workflow"
)

type fakeEmbedder struct{}

func (fakeEmbedder) Embed(ctx context.Context, req *embedding.EmbeddingRequest) (*embedding.EmbeddingResponse, error) {
	resp := &embedding.EmbeddingResponse{Provider: "fake", Model: "fake"}
	for i := range req.Input {
		resp.Embeddings = append(resp.Embeddings, embedding.EmbeddingData{
			Index:     i,
			Embedding: []float64{1, 0, 0},
		})
	}
	return resp, nil
}

func (fakeEmbedder) EmbedQuery(ctx context.Context, query string) ([]float64, error) {
	return []float64{1, 0, 0}, nil
}

func (fakeEmbedder) Name() string    { return "fake" }
func (fakeEmbedder) Dimensions() int { return 3 }

type fakeLLM struct {
	answer string
}

func (f *fakeLLM) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	return &llm.ChatResponse{
		Provider: "fake",
		Choices: []llm.ChatChoice{{
			Message: llm.Message{Role: llm.RoleAssistant, Content: f.answer},
		}},
	}, nil
}

func (f *fakeLLM) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	ch := make(chan llm.StreamChunk, 1)
	ch <- llm.StreamChunk{Delta: llm.Message{Role: llm.RoleAssistant, Content: f.answer}}
	close(ch)
	return ch, nil
}

func (f *fakeLLM) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (f *fakeLLM) Name() string { return "fake" }

type fakeWebSearch struct {
	called bool
}

func (f *fakeWebSearch) Search(ctx context.Context, query string, opts websearch.Options) ([]websearch.Result, error) {
	f.called = true
	return []websearch.Result{
		{Title: "Community answer", URL: "https://example.com/a", Snippet: "Try restarting.", Score: 0.4},
	}, nil
}

func (f *fakeWebSearch) Name() string { return "fake" }

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.History.Backend = "memory"
	cfg.Redis.Addr = ""
	return cfg
}

func seededVectorStore(t *testing.T) rag.VectorStore {
	t.Helper()
	store := rag.NewInMemoryVectorStore(zap.NewNop())
	err := store.AddDocuments(context.Background(), []rag.Document{
		{
			ID:        "kb-1",
			Title:     "Resetting passwords",
			Content:   "Open account settings and choose reset password to receive an email link.",
			Embedding: []float64{1, 0, 0},
		},
	})
	require.NoError(t, err)
	return store
}

func newTestSystem(t *testing.T, cfg *config.Config, web *fakeWebSearch) *System {
	t.Helper()
	collector := metrics.NewCollectorWith("supportflow_test", prometheus.NewRegistry())
	sys, err := NewSystem(cfg, zap.NewNop(),
		WithMetricsCollector(collector),
		WithEmbeddingProvider(fakeEmbedder{}),
		WithVectorStore(seededVectorStore(t)),
		WithLLMProvider(&fakeLLM{answer: "Reset it from account settings."}),
		WithWebSearchProvider(web),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })
	return sys
}

func TestNewSystemRequiresConfig(t *testing.T) {
	_, err := NewSystem(nil, zap.NewNop())
	assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
}

func TestNewSystemRejectsUnknownHistoryBackend(t *testing.T) {
	cfg := testConfig()
	cfg.History.Backend = "etcd"
	_, err := NewSystem(cfg, zap.NewNop(),
		WithMetricsCollector(metrics.NewCollectorWith("supportflow_test", prometheus.NewRegistry())))
	assert.Equal(t, types.ErrInvalidConfig, types.GetErrorCode(err))
}

func TestAskAnswersFromInternalEvidence(t *testing.T) {
	web := &fakeWebSearch{}
	sys := newTestSystem(t, testConfig(), web)

	result, err := sys.Ask(context.Background(), "how do I reset my password", "")
	require.NoError(t, err)

	assert.Equal(t, "Reset it from account settings.", result.Answer)
	assert.False(t, result.UsedWebSearch)
	assert.False(t, web.called)
	require.NotEmpty(t, result.Sources)
	assert.Equal(t, types.OriginInternal, result.Sources[0].Origin)
}

func TestAskFallsBackToWebWhenIndexIsEmpty(t *testing.T) {
	cfg := testConfig()
	web := &fakeWebSearch{}
	collector := metrics.NewCollectorWith("supportflow_test", prometheus.NewRegistry())
	sys, err := NewSystem(cfg, zap.NewNop(),
		WithMetricsCollector(collector),
		WithEmbeddingProvider(fakeEmbedder{}),
		WithVectorStore(rag.NewInMemoryVectorStore(zap.NewNop())),
		WithLLMProvider(&fakeLLM{answer: "Try restarting."}),
		WithWebSearchProvider(web),
	)
	require.NoError(t, err)
	t.Cleanup(func() { _ = sys.Close() })

	result, err := sys.Ask(context.Background(), "why does the app crash", "")
	require.NoError(t, err)

	assert.True(t, result.UsedWebSearch)
	assert.True(t, web.called)
}

func TestAskRecordsSessionHistory(t *testing.T) {
	sys := newTestSystem(t, testConfig(), &fakeWebSearch{})

	_, err := sys.Ask(context.Background(), "how do I reset my password", "sess-1")
	require.NoError(t, err)

	turns, err := sys.History().LoadHistory(context.Background(), "sess-1")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, "how do I reset my password", turns[0].Question)
	assert.Equal(t, "Reset it from account settings.", turns[0].Answer)
	assert.NotEmpty(t, turns[0].Sources)
}

func TestAskStreamRecordsHistoryOnDone(t *testing.T) {
	sys := newTestSystem(t, testConfig(), &fakeWebSearch{})

	events, err := sys.AskStream(context.Background(), "how do I reset my password", "sess-2")
	require.NoError(t, err)

	var last workflow.StreamEvent
	for ev := range events {
		last = ev
	}
	require.Equal(t, workflow.EventDone, last.Type)
	assert.Equal(t, "Reset it from account settings.", last.Answer)

	turns, err := sys.History().LoadHistory(context.Background(), "sess-2")
	require.NoError(t, err)
	require.Len(t, turns, 1)
	assert.Equal(t, last.Answer, turns[0].Answer)
}

func TestAskReplaysHistoryAsContext(t *testing.T) {
	sys := newTestSystem(t, testConfig(), &fakeWebSearch{})

	require.NoError(t, sys.History().AppendTurn(context.Background(), "sess-3", history.Turn{
		Question: "earlier question",
		Answer:   "earlier answer",
	}))

	result, err := sys.Ask(context.Background(), "and how do I change the email", "sess-3")
	require.NoError(t, err)
	assert.NotEmpty(t, result.Answer)

	turns, err := sys.History().LoadHistory(context.Background(), "sess-3")
	require.NoError(t, err)
	assert.Len(t, turns, 2)
}