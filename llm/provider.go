package llm

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"
)

// ErrorCode aligns upstream failures with HTTP status, retryability, and
// degradation strategy.
type ErrorCode string

const (
	ErrInvalidRequest      ErrorCode = "LLM_INVALID_REQUEST"
	ErrUnauthorized        ErrorCode = "LLM_UNAUTHORIZED"
	ErrForbidden           ErrorCode = "LLM_FORBIDDEN"
	ErrRateLimited         ErrorCode = "LLM_RATE_LIMITED"
	ErrQuotaExceeded       ErrorCode = "LLM_QUOTA_EXCEEDED"
	ErrModelOverloaded     ErrorCode = "LLM_MODEL_OVERLOADED"
	ErrUpstreamTimeout     ErrorCode = "LLM_UPSTREAM_TIMEOUT"
	ErrUpstreamError       ErrorCode = "LLM_UPSTREAM_ERROR"
	ErrProviderUnavailable ErrorCode = "LLM_PROVIDER_UNAVAILABLE"
)

// Error is the provider-level error type.
type Error struct {
	Code       ErrorCode `json:"code"`
	Message    string    `json:"message"`
	HTTPStatus int       `json:"http_status"`
	Retryable  bool      `json:"retryable"`
	Provider   string    `json:"provider,omitempty"`
}

func (e *Error) Error() string { return e.Message }

// Role identifies the author of a chat message.
type Role string

const (
	RoleSystem    Role = "system"
	RoleUser      Role = "user"
	RoleAssistant Role = "assistant"
)

// Message is a single chat message.
type Message struct {
	Role    Role   `json:"role"`
	Content string `json:"content,omitempty"`
}

// ChatRequest is a provider-agnostic chat completion request.
type ChatRequest struct {
	TraceID     string        `json:"trace_id,omitempty"`
	Model       string        `json:"model"`
	Messages    []Message     `json:"messages"`
	MaxTokens   int           `json:"max_tokens,omitempty"`
	Temperature float32       `json:"temperature,omitempty"`
	TopP        float32       `json:"top_p,omitempty"`
	Stop        []string      `json:"stop,omitempty"`
	Timeout     time.Duration `json:"timeout,omitempty"`
}

// ChatUsage reports token consumption.
type ChatUsage struct {
	PromptTokens     int `json:"prompt_tokens,omitempty"`
	CompletionTokens int `json:"completion_tokens,omitempty"`
	TotalTokens      int `json:"total_tokens,omitempty"`
}

// ChatChoice is a single completion candidate.
type ChatChoice struct {
	Index        int     `json:"index"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Message      Message `json:"message"`
}

// ChatResponse is the full response of a chat completion.
type ChatResponse struct {
	ID        string       `json:"id,omitempty"`
	Provider  string       `json:"provider,omitempty"`
	Model     string       `json:"model,omitempty"`
	Choices   []ChatChoice `json:"choices"`
	Usage     ChatUsage    `json:"usage"`
	CreatedAt time.Time    `json:"created_at,omitempty"`
}

// Text returns the content of the first choice, or "".
func (r *ChatResponse) Text() string {
	if r == nil || len(r.Choices) == 0 {
		return ""
	}
	return r.Choices[0].Message.Content
}

// StreamChunk is one increment of a streaming completion.
type StreamChunk struct {
	ID           string  `json:"id,omitempty"`
	Provider     string  `json:"provider,omitempty"`
	Model        string  `json:"model,omitempty"`
	Index        int     `json:"index,omitempty"`
	Delta        Message `json:"delta"`
	FinishReason string  `json:"finish_reason,omitempty"`
	Err          *Error  `json:"error,omitempty"`
}

// HealthStatus is the result of a provider health probe.
type HealthStatus struct {
	Healthy bool          `json:"healthy"`
	Latency time.Duration `json:"latency"`
}

// Provider is the unified chat completion interface backing synthesis.
// Implementations must be safe for concurrent use by multiple runs.
type Provider interface {
	// Completion performs a synchronous chat request.
	Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error)

	// Stream performs a streaming chat request, returning a channel of
	// increments that closes after the final chunk.
	Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error)

	// HealthCheck probes the backend for availability.
	HealthCheck(ctx context.Context) (*HealthStatus, error)

	// Name returns the provider's unique identifier.
	Name() string
}

// =============================================================================
// Shared HTTP error mapping
// =============================================================================

// MapHTTPError converts an upstream HTTP status into a coded Error.
func MapHTTPError(status int, message, provider string) *Error {
	e := &Error{Message: message, HTTPStatus: status, Provider: provider}
	switch {
	case status == http.StatusUnauthorized:
		e.Code = ErrUnauthorized
	case status == http.StatusForbidden:
		e.Code = ErrForbidden
	case status == http.StatusTooManyRequests:
		e.Code = ErrRateLimited
		e.Retryable = true
	case status == http.StatusRequestTimeout || status == http.StatusGatewayTimeout:
		e.Code = ErrUpstreamTimeout
		e.Retryable = true
	case status == http.StatusServiceUnavailable:
		e.Code = ErrModelOverloaded
		e.Retryable = true
	case status >= 500:
		e.Code = ErrUpstreamError
		e.Retryable = true
	default:
		e.Code = ErrInvalidRequest
	}
	return e
}

// ReadErrorMessage extracts a human-readable message from an error response
// body, falling back to the raw body when it is not the usual JSON shape.
func ReadErrorMessage(body io.Reader) string {
	raw, err := io.ReadAll(io.LimitReader(body, 4096))
	if err != nil || len(raw) == 0 {
		return "unknown upstream error"
	}
	var parsed struct {
		Error struct {
			Message string `json:"message"`
		} `json:"error"`
		Message string `json:"message"`
	}
	if err := json.Unmarshal(raw, &parsed); err == nil {
		if parsed.Error.Message != "" {
			return parsed.Error.Message
		}
		if parsed.Message != "" {
			return parsed.Message
		}
	}
	return string(raw)
}
