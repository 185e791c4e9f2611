package workflow

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/supportflow/supportflow/internal/ctxkeys"
	"github.com/supportflow/supportflow/internal/metrics"
	"github.com/supportflow/supportflow/llm"
	"github.com/supportflow/supportflow/types"
)

// InternalSearcher is the engine's view of the internal search agent.
type InternalSearcher interface {
	Search(ctx context.Context, question string, topK int) ([]types.Evidence, error)
}

// WebSearcher is the engine's view of the web search agent.
type WebSearcher interface {
	Search(ctx context.Context, question string, maxResults int) ([]types.Evidence, error)
}

// Synthesizer is the engine's view of the synthesizer agent.
type Synthesizer interface {
	Synthesize(ctx context.Context, question string, internal, web []types.Evidence, history []llm.Message) (string, []types.SourceDescriptor, error)
	SynthesizeStream(ctx context.Context, question string, internal, web []types.Evidence, history []llm.Message) (<-chan llm.StreamChunk, []types.SourceDescriptor, error)
}

// EngineConfig holds the engine's dispatch settings.
type EngineConfig struct {
	// MaxDocs bounds internal search results per run (default 5).
	MaxDocs int

	// MaxWebResults bounds web search results per run (default 2).
	MaxWebResults int

	// AgentTimeout bounds each dispatched agent call; 0 disables the
	// per-call deadline (the run context still applies).
	AgentTimeout time.Duration

	// Metrics is optional; nil disables collection.
	Metrics *metrics.Collector
}

// DefaultEngineConfig returns the shipped engine defaults.
func DefaultEngineConfig() EngineConfig {
	return EngineConfig{
		MaxDocs:       5,
		MaxWebResults: 2,
		AgentTimeout:  30 * time.Second,
	}
}

// Validate fails fast on invalid engine settings.
func (c EngineConfig) Validate() error {
	if c.MaxDocs <= 0 {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("max_docs must be > 0, got %d", c.MaxDocs))
	}
	if c.MaxWebResults <= 0 {
		return types.NewError(types.ErrInvalidConfig,
			fmt.Sprintf("max_web_results must be > 0, got %d", c.MaxWebResults))
	}
	return nil
}

// Result is the terminal payload of a run.
type Result struct {
	RunID         string                   `json:"run_id"`
	Answer        string                   `json:"answer"`
	Sources       []types.SourceDescriptor `json:"sources"`
	UsedWebSearch bool                     `json:"used_web_search"`
	Iterations    int                      `json:"iterations"`
}

// Engine drives the coordination loop for one question at a time. A
// single Engine is safe for concurrent use; every run owns its own
// WorkflowState.
type Engine struct {
	coordinator *Coordinator
	internal    InternalSearcher
	web         WebSearcher
	synthesizer Synthesizer
	cfg         EngineConfig
	tracer      trace.Tracer
	logger      *zap.Logger
}

// NewEngine creates an engine, failing fast on invalid config.
func NewEngine(coordinator *Coordinator, internal InternalSearcher, web WebSearcher, synthesizer Synthesizer, cfg EngineConfig, logger *zap.Logger) (*Engine, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	if coordinator == nil || internal == nil || web == nil || synthesizer == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "coordinator and all agents are required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{
		coordinator: coordinator,
		internal:    internal,
		web:         web,
		synthesizer: synthesizer,
		cfg:         cfg,
		tracer:      otel.Tracer("supportflow/workflow"),
		logger:      logger.With(zap.String("component", "engine")),
	}, nil
}

// Run answers a question synchronously.
func (e *Engine) Run(ctx context.Context, question string, history []llm.Message) (*Result, error) {
	return e.run(ctx, question, history, nil)
}

// RunStream answers a question as a stream of events: status events
// during retrieval, delta events during terminal synthesis, and exactly
// one done (or error) event before the channel closes.
func (e *Engine) RunStream(ctx context.Context, question string, history []llm.Message) <-chan StreamEvent {
	ch := make(chan StreamEvent, 16)
	sink := func(ev StreamEvent) {
		select {
		case ch <- ev:
		case <-ctx.Done():
		}
	}

	go func() {
		defer close(ch)
		result, err := e.run(ctx, question, history, sink)
		terminal := StreamEvent{Type: EventDone}
		if err != nil {
			terminal = StreamEvent{Type: EventError, Err: err}
		} else {
			terminal.Answer = result.Answer
			terminal.Sources = result.Sources
		}
		// The terminal event is still delivered after cancellation
		// when the buffer has room, so a late reader observes it
		// before the channel closes.
		select {
		case ch <- terminal:
		case <-ctx.Done():
			select {
			case ch <- terminal:
			default:
			}
		}
	}()
	return ch
}

// run is the shared loop driver. sink is nil for synchronous runs.
func (e *Engine) run(ctx context.Context, question string, history []llm.Message, sink func(StreamEvent)) (result *Result, err error) {
	if strings.TrimSpace(question) == "" {
		return nil, types.NewError(types.ErrInvalidRequest, "question must not be empty")
	}

	state := types.NewWorkflowState(uuid.NewString(), question)
	ctx = ctxkeys.WithRunID(ctx, state.RunID)
	logger := e.logger.With(zap.String("run_id", state.RunID))
	start := time.Now()

	defer func() {
		status := "completed"
		switch {
		case err != nil && types.GetErrorCode(err) == types.ErrRunCancelled:
			status = "cancelled"
		case err != nil:
			status = "failed"
		}
		e.cfg.Metrics.RunCompleted(status, time.Since(start))
	}()

	ctx, runSpan := e.tracer.Start(ctx, "workflow.run",
		trace.WithAttributes(attribute.String("run_id", state.RunID)))
	defer runSpan.End()

	logger.Info("run started", zap.String("question", question))

	for {
		if ctx.Err() != nil {
			return nil, e.cancelled(ctx)
		}

		decision := e.coordinator.Decide(state)
		state.Iteration++
		e.cfg.Metrics.Decision(string(decision))
		logger.Info("routing decision",
			zap.String("decision", string(decision)),
			zap.Int("iteration", state.Iteration))

		switch decision {
		case types.DecisionSearchInternal:
			if sink != nil {
				sink(StreamEvent{Type: EventStatus, Stage: string(decision)})
			}
			evidence, searchErr := e.dispatchSearch(ctx, "internal_search", func(ctx context.Context) ([]types.Evidence, error) {
				return e.internal.Search(ctx, state.Question, e.cfg.MaxDocs)
			})
			// Fold atomically: a cancelled run folds nothing.
			if ctx.Err() != nil {
				return nil, e.cancelled(ctx)
			}
			if searchErr != nil {
				logger.Warn("internal search degraded to empty evidence", zap.Error(searchErr))
				e.cfg.Metrics.DegradedFold("internal_search")
				evidence = nil
			}
			state.AddInternalResults(evidence)

		case types.DecisionSearchWeb:
			if sink != nil {
				sink(StreamEvent{Type: EventStatus, Stage: string(decision)})
			}
			evidence, searchErr := e.dispatchSearch(ctx, "web_search", func(ctx context.Context) ([]types.Evidence, error) {
				return e.web.Search(ctx, state.Question, e.cfg.MaxWebResults)
			})
			if ctx.Err() != nil {
				return nil, e.cancelled(ctx)
			}
			if searchErr != nil {
				logger.Warn("web search degraded to empty evidence", zap.Error(searchErr))
				e.cfg.Metrics.DegradedFold("web_search")
				evidence = nil
			}
			state.AddWebResults(evidence)

		case types.DecisionSynthesize:
			if err := e.synthesize(ctx, state, history, sink); err != nil {
				return nil, err
			}
			logger.Info("run completed",
				zap.Int("iterations", state.Iteration),
				zap.Bool("used_web_search", state.UsedWebSearch),
				zap.Int("sources", len(state.Sources)),
				zap.Duration("elapsed", time.Since(start)))
			return &Result{
				RunID:         state.RunID,
				Answer:        state.FinalAnswer,
				Sources:       state.Sources,
				UsedWebSearch: state.UsedWebSearch,
				Iterations:    state.Iteration,
			}, nil
		}
	}
}

// dispatchSearch runs one search agent call under the per-agent
// deadline with a span and latency metrics around it.
func (e *Engine) dispatchSearch(ctx context.Context, name string, call func(context.Context) ([]types.Evidence, error)) ([]types.Evidence, error) {
	ctx, span := e.tracer.Start(ctx, "workflow."+name)
	defer span.End()

	if e.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.AgentTimeout)
		defer cancel()
	}

	start := time.Now()
	evidence, err := call(ctx)
	e.cfg.Metrics.AgentExecution(name, time.Since(start), err)
	span.SetAttributes(attribute.Int("evidence", len(evidence)))
	return evidence, err
}

// synthesize runs the terminal step, streaming deltas when a sink is
// present. Synthesis failure is fatal.
func (e *Engine) synthesize(ctx context.Context, state *types.WorkflowState, history []llm.Message, sink func(StreamEvent)) error {
	ctx, span := e.tracer.Start(ctx, "workflow.synthesize")
	defer span.End()

	if e.cfg.AgentTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.cfg.AgentTimeout)
		defer cancel()
	}

	start := time.Now()

	if sink == nil {
		answer, sources, err := e.synthesizer.Synthesize(ctx, state.Question, state.InternalResults, state.WebResults, history)
		e.cfg.Metrics.AgentExecution("synthesizer", time.Since(start), err)
		if err != nil {
			return err
		}
		state.SetFinalAnswer(answer, sources)
		return nil
	}

	sink(StreamEvent{Type: EventStatus, Stage: string(types.DecisionSynthesize)})

	chunks, sources, err := e.synthesizer.SynthesizeStream(ctx, state.Question, state.InternalResults, state.WebResults, history)
	if err != nil {
		e.cfg.Metrics.AgentExecution("synthesizer", time.Since(start), err)
		return err
	}

	var answer strings.Builder
	for chunk := range chunks {
		if chunk.Err != nil {
			err := types.NewError(types.ErrSynthesisFailed, "answer stream failed").WithCause(chunk.Err)
			e.cfg.Metrics.AgentExecution("synthesizer", time.Since(start), err)
			return err
		}
		if chunk.Delta.Content == "" {
			continue
		}
		answer.WriteString(chunk.Delta.Content)
		sink(StreamEvent{Type: EventDelta, Delta: chunk.Delta.Content})
	}

	if ctx.Err() != nil {
		return e.cancelled(ctx)
	}
	if strings.TrimSpace(answer.String()) == "" {
		err := types.NewError(types.ErrSynthesisFailed, "provider returned an empty answer")
		e.cfg.Metrics.AgentExecution("synthesizer", time.Since(start), err)
		return err
	}

	e.cfg.Metrics.AgentExecution("synthesizer", time.Since(start), nil)
	state.SetFinalAnswer(answer.String(), sources)
	return nil
}

func (e *Engine) cancelled(ctx context.Context) error {
	return types.NewError(types.ErrRunCancelled, "run cancelled").WithCause(ctx.Err())
}
