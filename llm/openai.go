package llm

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"

	"github.com/supportflow/supportflow/internal/tlsutil"
)

// OpenAIConfig holds the configuration for an OpenAI-compatible provider.
// Any backend speaking the chat completions dialect works: OpenAI itself,
// Azure-hosted deployments, or local inference gateways.
type OpenAIConfig struct {
	// ProviderName is the unique identifier; defaults to "openai".
	ProviderName string

	// APIKey is the bearer token.
	APIKey string

	// BaseURL is the API base, e.g. "https://api.openai.com".
	BaseURL string

	// DefaultModel is used when the request does not specify one.
	DefaultModel string

	// Timeout is the HTTP client timeout. Defaults to 30s if zero.
	Timeout time.Duration

	// EndpointPath defaults to "/v1/chat/completions".
	EndpointPath string

	// ModelsEndpoint defaults to "/v1/models"; used by HealthCheck.
	ModelsEndpoint string
}

// OpenAIProvider implements Provider against an OpenAI-compatible API.
type OpenAIProvider struct {
	cfg    OpenAIConfig
	client *http.Client
	logger *zap.Logger
}

// NewOpenAIProvider creates a new OpenAI-compatible provider.
func NewOpenAIProvider(cfg OpenAIConfig, logger *zap.Logger) *OpenAIProvider {
	if cfg.ProviderName == "" {
		cfg.ProviderName = "openai"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.EndpointPath == "" {
		cfg.EndpointPath = "/v1/chat/completions"
	}
	if cfg.ModelsEndpoint == "" {
		cfg.ModelsEndpoint = "/v1/models"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &OpenAIProvider{
		cfg:    cfg,
		client: tlsutil.SecureHTTPClient(cfg.Timeout),
		logger: logger.With(zap.String("provider", cfg.ProviderName)),
	}
}

// Name returns the provider name.
func (p *OpenAIProvider) Name() string { return p.cfg.ProviderName }

func (p *OpenAIProvider) endpoint(path string) string {
	return strings.TrimRight(p.cfg.BaseURL, "/") + path
}

func (p *OpenAIProvider) buildHeaders(req *http.Request) {
	req.Header.Set("Authorization", "Bearer "+p.cfg.APIKey)
	req.Header.Set("Content-Type", "application/json")
}

// --- wire types (chat completions dialect) ---

type openAIMessage struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type openAIRequest struct {
	Model       string          `json:"model"`
	Messages    []openAIMessage `json:"messages"`
	MaxTokens   int             `json:"max_tokens,omitempty"`
	Temperature float32         `json:"temperature,omitempty"`
	TopP        float32         `json:"top_p,omitempty"`
	Stop        []string        `json:"stop,omitempty"`
	Stream      bool            `json:"stream,omitempty"`
}

type openAIResponse struct {
	ID      string `json:"id"`
	Model   string `json:"model"`
	Created int64  `json:"created"`
	Choices []struct {
		Index        int            `json:"index"`
		FinishReason string         `json:"finish_reason"`
		Message      *openAIMessage `json:"message,omitempty"`
		Delta        *openAIMessage `json:"delta,omitempty"`
	} `json:"choices"`
	Usage *struct {
		PromptTokens     int `json:"prompt_tokens"`
		CompletionTokens int `json:"completion_tokens"`
		TotalTokens      int `json:"total_tokens"`
	} `json:"usage,omitempty"`
}

func (p *OpenAIProvider) buildBody(req *ChatRequest, stream bool) openAIRequest {
	model := req.Model
	if model == "" {
		model = p.cfg.DefaultModel
	}
	messages := make([]openAIMessage, 0, len(req.Messages))
	for _, m := range req.Messages {
		messages = append(messages, openAIMessage{Role: string(m.Role), Content: m.Content})
	}
	return openAIRequest{
		Model:       model,
		Messages:    messages,
		MaxTokens:   req.MaxTokens,
		Temperature: req.Temperature,
		TopP:        req.TopP,
		Stop:        req.Stop,
		Stream:      stream,
	}
}

func (p *OpenAIProvider) post(ctx context.Context, req *ChatRequest, stream bool) (*http.Response, error) {
	payload, err := json.Marshal(p.buildBody(req, stream))
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request: %w", err)
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(p.cfg.EndpointPath), bytes.NewReader(payload))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	if err != nil {
		return nil, &Error{
			Code: ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}
	if resp.StatusCode >= 400 {
		defer resp.Body.Close()
		msg := ReadErrorMessage(resp.Body)
		return nil, MapHTTPError(resp.StatusCode, msg, p.Name())
	}
	return resp, nil
}

// Completion performs a non-streaming chat completion.
func (p *OpenAIProvider) Completion(ctx context.Context, req *ChatRequest) (*ChatResponse, error) {
	resp, err := p.post(ctx, req, false)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	var oaResp openAIResponse
	if err := json.NewDecoder(resp.Body).Decode(&oaResp); err != nil {
		return nil, &Error{
			Code: ErrUpstreamError, Message: err.Error(),
			HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: p.Name(),
		}
	}

	result := &ChatResponse{
		ID:       oaResp.ID,
		Provider: p.Name(),
		Model:    oaResp.Model,
	}
	if oaResp.Created != 0 {
		result.CreatedAt = time.Unix(oaResp.Created, 0)
	}
	for _, c := range oaResp.Choices {
		choice := ChatChoice{Index: c.Index, FinishReason: c.FinishReason}
		if c.Message != nil {
			choice.Message = Message{Role: Role(c.Message.Role), Content: c.Message.Content}
		}
		result.Choices = append(result.Choices, choice)
	}
	if oaResp.Usage != nil {
		result.Usage = ChatUsage{
			PromptTokens:     oaResp.Usage.PromptTokens,
			CompletionTokens: oaResp.Usage.CompletionTokens,
			TotalTokens:      oaResp.Usage.TotalTokens,
		}
	}
	return result, nil
}

// Stream performs a streaming chat completion via SSE.
func (p *OpenAIProvider) Stream(ctx context.Context, req *ChatRequest) (<-chan StreamChunk, error) {
	resp, err := p.post(ctx, req, true)
	if err != nil {
		return nil, err
	}
	return streamSSE(ctx, resp.Body, p.Name()), nil
}

// HealthCheck verifies the backend is reachable.
func (p *OpenAIProvider) HealthCheck(ctx context.Context) (*HealthStatus, error) {
	start := time.Now()
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodGet, p.endpoint(p.cfg.ModelsEndpoint), nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	p.buildHeaders(httpReq)

	resp, err := p.client.Do(httpReq)
	latency := time.Since(start)
	if err != nil {
		return &HealthStatus{Healthy: false, Latency: latency}, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		msg := ReadErrorMessage(resp.Body)
		return &HealthStatus{Healthy: false, Latency: latency},
			fmt.Errorf("%s health check failed: status=%d msg=%s", p.Name(), resp.StatusCode, msg)
	}

	return &HealthStatus{Healthy: true, Latency: latency}, nil
}

// streamSSE parses an SSE stream from an OpenAI-compatible API into a
// channel of StreamChunks. The channel closes on [DONE], error, or ctx
// cancellation; the body is always closed.
func streamSSE(ctx context.Context, body io.ReadCloser, providerName string) <-chan StreamChunk {
	ch := make(chan StreamChunk)
	go func() {
		defer body.Close()
		defer close(ch)
		reader := bufio.NewReader(body)
		for {
			line, err := reader.ReadString('\n')
			if err != nil {
				if err != io.EOF {
					select {
					case <-ctx.Done():
					case ch <- StreamChunk{Err: &Error{
						Code: ErrUpstreamError, Message: err.Error(),
						HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
					}}:
					}
				}
				return
			}
			line = strings.TrimSpace(line)
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				return
			}

			var oaResp openAIResponse
			if err := json.Unmarshal([]byte(data), &oaResp); err != nil {
				select {
				case <-ctx.Done():
				case ch <- StreamChunk{Err: &Error{
					Code: ErrUpstreamError, Message: err.Error(),
					HTTPStatus: http.StatusBadGateway, Retryable: true, Provider: providerName,
				}}:
				}
				return
			}

			for _, choice := range oaResp.Choices {
				chunk := StreamChunk{
					ID:           oaResp.ID,
					Provider:     providerName,
					Model:        oaResp.Model,
					Index:        choice.Index,
					FinishReason: choice.FinishReason,
					Delta:        Message{Role: RoleAssistant},
				}
				if choice.Delta != nil {
					chunk.Delta.Content = choice.Delta.Content
				}
				select {
				case <-ctx.Done():
					return
				case ch <- chunk:
				}
			}
		}
	}()
	return ch
}
