package llm

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpenAIProviderCompletion(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)
		assert.Equal(t, "/v1/chat/completions", r.URL.Path)
		assert.Equal(t, "Bearer test-key", r.Header.Get("Authorization"))

		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.Equal(t, "gpt-4o-mini", req.Model)
		assert.False(t, req.Stream)
		require.Len(t, req.Messages, 2)
		assert.Equal(t, "system", req.Messages[0].Role)

		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{
			"id": "chatcmpl-1",
			"model": "gpt-4o-mini",
			"created": 1700000000,
			"choices": [{"index": 0, "finish_reason": "stop",
				"message": {"role": "assistant", "content": "Restart the agent service."}}],
			"usage": {"prompt_tokens": 40, "completion_tokens": 8, "total_tokens": 48}
		}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{
		APIKey:       "test-key",
		BaseURL:      srv.URL,
		DefaultModel: "gpt-4o-mini",
	}, nil)

	resp, err := p.Completion(context.Background(), &ChatRequest{
		Messages: []Message{
			{Role: RoleSystem, Content: "You are a support assistant."},
			{Role: RoleUser, Content: "How do I restart?"},
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "Restart the agent service.", resp.Text())
	assert.Equal(t, "openai", resp.Provider)
	assert.Equal(t, 48, resp.Usage.TotalTokens)
	assert.Equal(t, "stop", resp.Choices[0].FinishReason)
}

func TestOpenAIProviderCompletionErrorMapping(t *testing.T) {
	tests := []struct {
		name      string
		status    int
		body      string
		wantCode  ErrorCode
		retryable bool
	}{
		{"rate limit", http.StatusTooManyRequests, `{"error":{"message":"rate limit exceeded"}}`, ErrRateLimited, true},
		{"auth", http.StatusUnauthorized, `{"error":{"message":"invalid key"}}`, ErrUnauthorized, false},
		{"server", http.StatusInternalServerError, `{"message":"boom"}`, ErrUpstreamError, true},
		{"timeout", http.StatusGatewayTimeout, `{"error":{"message":"upstream timeout"}}`, ErrUpstreamTimeout, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				_, _ = w.Write([]byte(tt.body))
			}))
			defer srv.Close()

			p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, DefaultModel: "m"}, nil)
			_, err := p.Completion(context.Background(), &ChatRequest{
				Messages: []Message{{Role: RoleUser, Content: "q"}},
			})
			require.Error(t, err)

			var llmErr *Error
			require.ErrorAs(t, err, &llmErr)
			assert.Equal(t, tt.wantCode, llmErr.Code)
			assert.Equal(t, tt.retryable, llmErr.Retryable)
			assert.Equal(t, tt.status, llmErr.HTTPStatus)
		})
	}
}

func TestOpenAIProviderStream(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		var req openAIRequest
		require.NoError(t, json.NewDecoder(r.Body).Decode(&req))
		assert.True(t, req.Stream)

		w.Header().Set("Content-Type", "text/event-stream")
		_, _ = w.Write([]byte("data: {\"id\":\"c1\",\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"Hel\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"id\":\"c1\",\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{\"content\":\"lo\"}}]}\n\n"))
		_, _ = w.Write([]byte("data: {\"id\":\"c1\",\"model\":\"m\",\"choices\":[{\"index\":0,\"delta\":{},\"finish_reason\":\"stop\"}]}\n\n"))
		_, _ = w.Write([]byte("data: [DONE]\n\n"))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, DefaultModel: "m"}, nil)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	ch, err := p.Stream(ctx, &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.NoError(t, err)

	var content string
	var finish string
	for chunk := range ch {
		require.Nil(t, chunk.Err)
		content += chunk.Delta.Content
		if chunk.FinishReason != "" {
			finish = chunk.FinishReason
		}
	}
	assert.Equal(t, "Hello", content)
	assert.Equal(t, "stop", finish)
}

func TestOpenAIProviderStreamUpstreamError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusServiceUnavailable)
		_, _ = w.Write([]byte(`{"error":{"message":"overloaded"}}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, DefaultModel: "m"}, nil)
	_, err := p.Stream(context.Background(), &ChatRequest{Messages: []Message{{Role: RoleUser, Content: "hi"}}})
	require.Error(t, err)

	var llmErr *Error
	require.ErrorAs(t, err, &llmErr)
	assert.True(t, llmErr.Retryable)
}

func TestOpenAIProviderHealthCheck(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v1/models", r.URL.Path)
		_, _ = w.Write([]byte(`{"data":[{"id":"gpt-4o-mini"}]}`))
	}))
	defer srv.Close()

	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: srv.URL, DefaultModel: "m"}, nil)
	status, err := p.HealthCheck(context.Background())
	require.NoError(t, err)
	assert.True(t, status.Healthy)
	assert.Greater(t, status.Latency, time.Duration(0))
}

func TestOpenAIProviderDefaults(t *testing.T) {
	p := NewOpenAIProvider(OpenAIConfig{APIKey: "k", BaseURL: "http://x", DefaultModel: "m"}, nil)
	assert.Equal(t, "openai", p.Name())
	assert.Equal(t, 30*time.Second, p.cfg.Timeout)
	assert.Equal(t, "/v1/chat/completions", p.cfg.EndpointPath)
}
