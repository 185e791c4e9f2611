package agent

import (
	"context"
	"fmt"
	"strings"
	"unicode/utf8"

	"go.uber.org/zap"

	"github.com/supportflow/supportflow/internal/ctxkeys"
	"github.com/supportflow/supportflow/llm"
	"github.com/supportflow/supportflow/types"
)

// Per-evidence truncation limits inside the prompt context. Internal
// documentation chunks carry more signal than web snippets and get more
// room.
const (
	maxInternalSnippet = 400
	maxWebSnippet      = 200
)

// FallbackAnswer is returned when no evidence was collected at all.
const FallbackAnswer = "I could not find relevant information in the documentation " +
	"or on the web to answer this question. Please rephrase it or contact support directly."

// SynthesizerConfig configures answer generation.
type SynthesizerConfig struct {
	Model       string
	Temperature float32
	MaxTokens   int
	// TokenBudget caps the evidence context size in tokens.
	TokenBudget int
}

// SynthesizerAgent composes the final answer from collected evidence.
type SynthesizerAgent struct {
	provider llm.Provider
	counter  TokenCounter
	cfg      SynthesizerConfig
	logger   *zap.Logger
}

// NewSynthesizerAgent creates a synthesizer. counter may be nil, in
// which case a tiktoken counter for the configured model is used.
func NewSynthesizerAgent(provider llm.Provider, cfg SynthesizerConfig, counter TokenCounter, logger *zap.Logger) *SynthesizerAgent {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Temperature == 0 {
		cfg.Temperature = 0.3
	}
	if cfg.MaxTokens == 0 {
		cfg.MaxTokens = 500
	}
	if cfg.TokenBudget == 0 {
		cfg.TokenBudget = 3000
	}
	if counter == nil {
		counter = NewTokenCounter(cfg.Model, logger)
	}
	return &SynthesizerAgent{
		provider: provider,
		counter:  counter,
		cfg:      cfg,
		logger:   logger.With(zap.String("agent", "synthesizer")),
	}
}

// Synthesize generates the final answer. Citations list internal
// sources before web sources, in first-seen order, deduplicated by
// origin identity. When all evidence is empty a canned fallback answer
// is returned without calling the LLM.
func (a *SynthesizerAgent) Synthesize(ctx context.Context, question string, internal, web []types.Evidence, history []llm.Message) (string, []types.SourceDescriptor, error) {
	sources := collectSources(internal, web)

	if len(internal) == 0 && len(web) == 0 {
		a.logger.Info("no evidence collected, returning fallback answer")
		return FallbackAnswer, sources, nil
	}

	req := a.buildRequest(ctx, question, internal, web, history)

	a.logger.Info("synthesizing answer",
		zap.Int("internal_evidence", len(internal)),
		zap.Int("web_evidence", len(web)),
		zap.Int("history_messages", len(history)))

	resp, err := a.provider.Completion(ctx, req)
	if err != nil {
		return "", nil, types.NewError(types.ErrSynthesisFailed, "answer generation failed").
			WithProvider(a.provider.Name()).WithCause(err)
	}

	answer := resp.Text()
	if strings.TrimSpace(answer) == "" {
		return "", nil, types.NewError(types.ErrSynthesisFailed, "provider returned an empty answer").
			WithProvider(a.provider.Name())
	}

	return answer, sources, nil
}

// SynthesizeStream generates the final answer as a stream of deltas.
// Sources are known up front since they derive from evidence, not from
// the generated text.
func (a *SynthesizerAgent) SynthesizeStream(ctx context.Context, question string, internal, web []types.Evidence, history []llm.Message) (<-chan llm.StreamChunk, []types.SourceDescriptor, error) {
	sources := collectSources(internal, web)

	if len(internal) == 0 && len(web) == 0 {
		ch := make(chan llm.StreamChunk, 1)
		ch <- llm.StreamChunk{Delta: llm.Message{Role: llm.RoleAssistant, Content: FallbackAnswer}, FinishReason: "stop"}
		close(ch)
		return ch, sources, nil
	}

	req := a.buildRequest(ctx, question, internal, web, history)

	ch, err := a.provider.Stream(ctx, req)
	if err != nil {
		return nil, nil, types.NewError(types.ErrSynthesisFailed, "answer generation failed").
			WithProvider(a.provider.Name()).WithCause(err)
	}
	return ch, sources, nil
}

func (a *SynthesizerAgent) buildRequest(ctx context.Context, question string, internal, web []types.Evidence, history []llm.Message) *llm.ChatRequest {
	context := a.buildContext(internal, web)

	prompt := fmt.Sprintf(`Answer this technical question clearly and helpfully:

Question: %s

Context:
%s

Provide a direct, actionable answer. Use markdown formatting. Be concise but complete.`, question, context)

	messages := make([]llm.Message, 0, len(history)+1)
	messages = append(messages, history...)
	messages = append(messages, llm.Message{Role: llm.RoleSystem, Content: prompt})

	traceID, _ := ctxkeys.RunID(ctx)
	return &llm.ChatRequest{
		TraceID:     traceID,
		Model:       a.cfg.Model,
		Messages:    messages,
		Temperature: a.cfg.Temperature,
		MaxTokens:   a.cfg.MaxTokens,
	}
}

// buildContext assembles the evidence blocks under the token budget.
// Internal documentation is added first; web snippets take whatever
// budget remains.
func (a *SynthesizerAgent) buildContext(internal, web []types.Evidence) string {
	var parts []string
	budget := a.cfg.TokenBudget
	used := 0

	appendPart := func(part string) bool {
		cost := a.counter.Count(part)
		if used+cost > budget {
			return false
		}
		parts = append(parts, part)
		used += cost
		return true
	}

	if len(internal) > 0 {
		appendPart("=== DOCUMENTATION ===")
		for i, ev := range internal {
			label := ev.Source.Title
			if label == "" {
				label = ev.Source.ID
			}
			part := fmt.Sprintf("Source %d (%s):\n%s", i+1, label, truncate(ev.Content, maxInternalSnippet))
			if !appendPart(part) {
				a.logger.Debug("token budget reached, dropping remaining internal evidence",
					zap.Int("included", i))
				break
			}
		}
	}

	if len(web) > 0 {
		appendPart("=== WEB RESOURCES ===")
		for i, ev := range web {
			title := ev.Source.Title
			if title == "" {
				title = ev.Source.Location
			}
			part := fmt.Sprintf("Web: %s\n%s", title, truncate(ev.Content, maxWebSnippet))
			if !appendPart(part) {
				a.logger.Debug("token budget reached, dropping remaining web evidence",
					zap.Int("included", i))
				break
			}
		}
	}

	if len(parts) == 0 {
		return "No specific information found."
	}
	return strings.Join(parts, "\n\n")
}

// collectSources returns citations for all evidence, internal before
// web, first-seen order, deduplicated by origin identity.
func collectSources(internal, web []types.Evidence) []types.SourceDescriptor {
	all := make([]types.Evidence, 0, len(internal)+len(web))
	all = append(all, internal...)
	all = append(all, web...)
	return types.DedupSources(all)
}

func truncate(s string, limit int) string {
	if len(s) <= limit {
		return s
	}
	// Cut on a rune boundary so the prompt never carries a split
	// multi-byte sequence.
	cut := limit
	for cut > 0 && !utf8.RuneStart(s[cut]) {
		cut--
	}
	return s[:cut] + "..."
}
