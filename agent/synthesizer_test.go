package agent

import (
	"context"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/supportflow/supportflow/llm"
	"github.com/supportflow/supportflow/types"
)

type stubLLM struct {
	gotReq *llm.ChatRequest
	answer string
	err    error
	chunks []llm.StreamChunk
}

func (s *stubLLM) Completion(ctx context.Context, req *llm.ChatRequest) (*llm.ChatResponse, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	return &llm.ChatResponse{Choices: []llm.ChatChoice{{
		Message: llm.Message{Role: llm.RoleAssistant, Content: s.answer},
	}}}, nil
}

func (s *stubLLM) Stream(ctx context.Context, req *llm.ChatRequest) (<-chan llm.StreamChunk, error) {
	s.gotReq = req
	if s.err != nil {
		return nil, s.err
	}
	ch := make(chan llm.StreamChunk, len(s.chunks))
	for _, c := range s.chunks {
		ch <- c
	}
	close(ch)
	return ch, nil
}

func (s *stubLLM) HealthCheck(ctx context.Context) (*llm.HealthStatus, error) {
	return &llm.HealthStatus{Healthy: true}, nil
}

func (s *stubLLM) Name() string { return "stub" }

func charCounter() TokenCounter {
	return CounterFunc(func(text string) int { return len(text) })
}

func internalEv(id, content string, score float64) types.Evidence {
	return types.NewInternalEvidence(content, types.SourceDescriptor{
		ID: id, Title: "Doc " + id, Location: "https://kb/" + id,
	}, score)
}

func webEv(url, content string) types.Evidence {
	return types.NewWebEvidence(content, types.SourceDescriptor{
		ID: url, Title: "Web " + url, Location: url,
	}, 0.8)
}

func TestSynthesizerPromptShape(t *testing.T) {
	provider := &stubLLM{answer: "Reset via settings."}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "gpt-4o-mini"}, charCounter(), nil)

	answer, sources, err := syn.Synthesize(context.Background(), "how do I reset?",
		[]types.Evidence{internalEv("kb-1", "Click reset in settings.", 0.9)},
		[]types.Evidence{webEv("https://example.com", "Community reset walkthrough.")},
		nil)
	require.NoError(t, err)
	assert.Equal(t, "Reset via settings.", answer)

	require.NotNil(t, provider.gotReq)
	require.Len(t, provider.gotReq.Messages, 1)
	prompt := provider.gotReq.Messages[0].Content
	assert.Equal(t, llm.RoleSystem, provider.gotReq.Messages[0].Role)
	assert.Contains(t, prompt, "Question: how do I reset?")
	assert.Contains(t, prompt, "=== DOCUMENTATION ===")
	assert.Contains(t, prompt, "Source 1 (Doc kb-1):")
	assert.Contains(t, prompt, "=== WEB RESOURCES ===")
	assert.Contains(t, prompt, "Community reset walkthrough.")
	assert.Less(t, strings.Index(prompt, "DOCUMENTATION"), strings.Index(prompt, "WEB RESOURCES"))

	assert.InDelta(t, 0.3, provider.gotReq.Temperature, 1e-6)
	assert.Equal(t, 500, provider.gotReq.MaxTokens)
	assert.Equal(t, "gpt-4o-mini", provider.gotReq.Model)

	require.Len(t, sources, 2)
	assert.Equal(t, types.OriginInternal, sources[0].Origin)
	assert.Equal(t, types.OriginWeb, sources[1].Origin)
}

func TestSynthesizerSourceDedup(t *testing.T) {
	provider := &stubLLM{answer: "ok"}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m"}, charCounter(), nil)

	_, sources, err := syn.Synthesize(context.Background(), "q",
		[]types.Evidence{
			internalEv("kb-1", "chunk one", 0.9),
			internalEv("kb-1", "chunk two from same doc", 0.8),
			internalEv("kb-2", "other doc", 0.7),
		},
		[]types.Evidence{webEv("https://example.com", "snippet")},
		nil)
	require.NoError(t, err)

	require.Len(t, sources, 3)
	assert.Equal(t, "kb-1", sources[0].ID)
	assert.Equal(t, "kb-2", sources[1].ID)
	assert.Equal(t, "https://example.com", sources[2].ID)
}

func TestSynthesizerFallbackOnNoEvidence(t *testing.T) {
	provider := &stubLLM{answer: "should not be called"}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m"}, charCounter(), nil)

	answer, sources, err := syn.Synthesize(context.Background(), "q", nil, nil, nil)
	require.NoError(t, err)
	assert.Equal(t, FallbackAnswer, answer)
	assert.Empty(t, sources)
	assert.Nil(t, provider.gotReq, "LLM should not be called without evidence")
}

func TestSynthesizerFatalOnProviderError(t *testing.T) {
	provider := &stubLLM{err: errors.New("model overloaded")}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m"}, charCounter(), nil)

	_, _, err := syn.Synthesize(context.Background(), "q",
		[]types.Evidence{internalEv("kb-1", "content", 0.9)}, nil, nil)
	require.Error(t, err)

	var coded *types.Error
	require.ErrorAs(t, err, &coded)
	assert.Equal(t, types.ErrSynthesisFailed, coded.Code)
	assert.True(t, types.IsSynthesisFailure(err))
}

func TestSynthesizerFatalOnEmptyAnswer(t *testing.T) {
	provider := &stubLLM{answer: "   "}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m"}, charCounter(), nil)

	_, _, err := syn.Synthesize(context.Background(), "q",
		[]types.Evidence{internalEv("kb-1", "content", 0.9)}, nil, nil)
	require.Error(t, err)
	assert.True(t, types.IsSynthesisFailure(err))
}

func TestSynthesizerTokenBudgetDropsEvidence(t *testing.T) {
	provider := &stubLLM{answer: "ok"}
	// Budget fits the header and roughly one snippet only.
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m", TokenBudget: 120}, charCounter(), nil)

	long := strings.Repeat("x", 60)
	_, _, err := syn.Synthesize(context.Background(), "q",
		[]types.Evidence{
			internalEv("kb-1", long, 0.9),
			internalEv("kb-2", long, 0.8),
		}, nil, nil)
	require.NoError(t, err)

	prompt := provider.gotReq.Messages[0].Content
	assert.Contains(t, prompt, "Source 1 (Doc kb-1):")
	assert.NotContains(t, prompt, "Source 2", "second snippet should be dropped by the budget")
}

func TestSynthesizerEvidenceTruncation(t *testing.T) {
	provider := &stubLLM{answer: "ok"}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m"}, charCounter(), nil)

	longInternal := strings.Repeat("a", maxInternalSnippet+50)
	longWeb := strings.Repeat("b", maxWebSnippet+50)
	_, _, err := syn.Synthesize(context.Background(), "q",
		[]types.Evidence{internalEv("kb-1", longInternal, 0.9)},
		[]types.Evidence{webEv("https://w", longWeb)},
		nil)
	require.NoError(t, err)

	prompt := provider.gotReq.Messages[0].Content
	assert.Contains(t, prompt, strings.Repeat("a", maxInternalSnippet)+"...")
	assert.NotContains(t, prompt, strings.Repeat("a", maxInternalSnippet+1))
	assert.Contains(t, prompt, strings.Repeat("b", maxWebSnippet)+"...")
	assert.NotContains(t, prompt, strings.Repeat("b", maxWebSnippet+1))
}

func TestTruncateKeepsRuneBoundaries(t *testing.T) {
	tests := []struct {
		name  string
		input string
		limit int
		want  string
	}{
		{
			name:  "under limit untouched",
			input: "short",
			limit: 10,
			want:  "short",
		},
		{
			name:  "ascii cut at limit",
			input: "abcdef",
			limit: 4,
			want:  "abcd...",
		},
		{
			name:  "multi-byte rune not split",
			input: "abécd", // é is 2 bytes, limit lands inside it
			limit: 3,
			want:  "ab...",
		},
		{
			name:  "cjk cut backs up to boundary",
			input: "日本語", // 3 bytes per rune
			limit: 4,
			want:  "日...",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := truncate(tt.input, tt.limit)
			assert.Equal(t, tt.want, got)
			assert.True(t, utf8.ValidString(got))
		})
	}
}

func TestSynthesizerIncludesHistory(t *testing.T) {
	provider := &stubLLM{answer: "ok"}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m"}, charCounter(), nil)

	history := []llm.Message{
		{Role: llm.RoleUser, Content: "earlier question"},
		{Role: llm.RoleAssistant, Content: "earlier answer"},
	}
	_, _, err := syn.Synthesize(context.Background(), "follow-up",
		[]types.Evidence{internalEv("kb-1", "content", 0.9)}, nil, history)
	require.NoError(t, err)

	require.Len(t, provider.gotReq.Messages, 3)
	assert.Equal(t, "earlier question", provider.gotReq.Messages[0].Content)
	assert.Equal(t, "earlier answer", provider.gotReq.Messages[1].Content)
	assert.Equal(t, llm.RoleSystem, provider.gotReq.Messages[2].Role)
}

func TestSynthesizerStream(t *testing.T) {
	provider := &stubLLM{chunks: []llm.StreamChunk{
		{Delta: llm.Message{Role: llm.RoleAssistant, Content: "Re"}},
		{Delta: llm.Message{Role: llm.RoleAssistant, Content: "set"}, FinishReason: "stop"},
	}}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m"}, charCounter(), nil)

	ch, sources, err := syn.SynthesizeStream(context.Background(), "q",
		[]types.Evidence{internalEv("kb-1", "content", 0.9)}, nil, nil)
	require.NoError(t, err)
	require.Len(t, sources, 1)

	var answer string
	for chunk := range ch {
		answer += chunk.Delta.Content
	}
	assert.Equal(t, "Reset", answer)
}

func TestSynthesizerStreamFallback(t *testing.T) {
	provider := &stubLLM{}
	syn := NewSynthesizerAgent(provider, SynthesizerConfig{Model: "m"}, charCounter(), nil)

	ch, sources, err := syn.SynthesizeStream(context.Background(), "q", nil, nil, nil)
	require.NoError(t, err)
	assert.Empty(t, sources)

	var answer string
	for chunk := range ch {
		answer += chunk.Delta.Content
	}
	assert.Equal(t, FallbackAnswer, answer)
	assert.Nil(t, provider.gotReq)
}
