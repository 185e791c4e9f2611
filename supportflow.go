// Package supportflow wires the retrieval agents, routing workflow, and
// conversation history into a ready to use question answering system.
//
// Usage:
//
//	cfg, err := config.Load("config.yaml")
//	sys, err := supportflow.NewSystem(cfg, logger)
//	defer sys.Close()
//
//	result, err := sys.Ask(ctx, "how do I rotate an API key?", "session-42")
package supportflow

import (
	"context"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"

	"github.com/supportflow/supportflow/agent"
	"github.com/supportflow/supportflow/config"
	"github.com/supportflow/supportflow/history"
	"github.com/supportflow/supportflow/internal/database"
	"github.com/supportflow/supportflow/internal/metrics"
	"github.com/supportflow/supportflow/llm"
	"github.com/supportflow/supportflow/llm/embedding"
	"github.com/supportflow/supportflow/rag"
	"github.com/supportflow/supportflow/types"
	"github.com/supportflow/supportflow/websearch"
	"github.com/supportflow/supportflow/workflow"
)

// System is the assembled question answering service. It owns the
// clients it creates and releases them on Close.
type System struct {
	cfg    *config.Config
	logger *zap.Logger

	engine  *workflow.Engine
	store   history.ConversationStore
	metrics *metrics.Collector

	redis *redis.Client
	db    *database.Conn
}

// Option overrides a component the config would otherwise construct.
// Used mainly to inject fakes in tests and embedders.
type Option func(*options)

type options struct {
	metrics     *metrics.Collector
	vectors     rag.VectorStore
	embedder    embedding.Provider
	llm         llm.Provider
	web         websearch.Provider
	store       history.ConversationStore
	redisClient *redis.Client
}

// WithMetricsCollector uses a pre-registered collector instead of
// registering a new one on the default Prometheus registry.
func WithMetricsCollector(c *metrics.Collector) Option {
	return func(o *options) { o.metrics = c }
}

// WithVectorStore uses a pre-built document index.
func WithVectorStore(s rag.VectorStore) Option {
	return func(o *options) { o.vectors = s }
}

// WithEmbeddingProvider uses a pre-built query embedder.
func WithEmbeddingProvider(p embedding.Provider) Option {
	return func(o *options) { o.embedder = p }
}

// WithLLMProvider uses a pre-built synthesis backend.
func WithLLMProvider(p llm.Provider) Option {
	return func(o *options) { o.llm = p }
}

// WithWebSearchProvider uses a pre-built web search backend.
func WithWebSearchProvider(p websearch.Provider) Option {
	return func(o *options) { o.web = p }
}

// WithHistoryStore uses a pre-built conversation store.
func WithHistoryStore(s history.ConversationStore) Option {
	return func(o *options) { o.store = s }
}

// WithRedisClient uses a caller-owned Redis client. The system will not
// close it.
func WithRedisClient(c *redis.Client) Option {
	return func(o *options) { o.redisClient = c }
}

// NewSystem builds the full pipeline from configuration.
func NewSystem(cfg *config.Config, logger *zap.Logger, opts ...Option) (*System, error) {
	if cfg == nil {
		return nil, types.NewError(types.ErrInvalidConfig, "config is required")
	}
	if logger == nil {
		logger = zap.NewNop()
	}

	var o options
	for _, opt := range opts {
		opt(&o)
	}

	sys := &System{cfg: cfg, logger: logger}

	collector := o.metrics
	if collector == nil {
		collector = metrics.NewCollector("supportflow")
	}
	sys.metrics = collector

	redisClient := o.redisClient
	if redisClient == nil && cfg.Redis.Addr != "" {
		redisClient = redis.NewClient(&redis.Options{
			Addr:         cfg.Redis.Addr,
			Password:     cfg.Redis.Password,
			DB:           cfg.Redis.DB,
			PoolSize:     cfg.Redis.PoolSize,
			MinIdleConns: cfg.Redis.MinIdleConns,
		})
		sys.redis = redisClient
	}

	store, err := sys.buildHistoryStore(o.store, redisClient)
	if err != nil {
		sys.Close()
		return nil, err
	}
	sys.store = store

	internal, err := sys.buildInternalSearch(o, redisClient)
	if err != nil {
		sys.Close()
		return nil, err
	}
	web, err := sys.buildWebSearch(o)
	if err != nil {
		sys.Close()
		return nil, err
	}
	synthesizer := sys.buildSynthesizer(o)

	coordinator, err := workflow.NewCoordinator(workflow.CoordinatorConfig{
		MaxIterations:    cfg.Workflow.MaxIterations,
		MinScore:         cfg.Workflow.MinInternalScore,
		MinResults:       cfg.Workflow.MinInternalResults,
		MinContentLength: cfg.Workflow.MinContentLength,
		ScoreMode:        cfg.Workflow.ScoreMode,
	})
	if err != nil {
		sys.Close()
		return nil, err
	}

	engine, err := workflow.NewEngine(coordinator, internal, web, synthesizer, workflow.EngineConfig{
		MaxDocs:       cfg.Workflow.MaxDocs,
		MaxWebResults: cfg.Workflow.MaxWebResults,
		AgentTimeout:  cfg.Workflow.AgentTimeout,
		Metrics:       collector,
	}, logger)
	if err != nil {
		sys.Close()
		return nil, err
	}
	sys.engine = engine

	logger.Info("system assembled",
		zap.String("history_backend", cfg.History.Backend),
		zap.String("web_provider", cfg.WebSearch.Provider),
		zap.Int("max_iterations", cfg.Workflow.MaxIterations))
	return sys, nil
}

func (s *System) buildHistoryStore(override history.ConversationStore, redisClient *redis.Client) (history.ConversationStore, error) {
	if override != nil {
		return override, nil
	}

	maxTurns := s.cfg.History.MaxTurns
	switch s.cfg.History.Backend {
	case "", "memory":
		return history.NewMemoryStore(maxTurns), nil

	case "redis":
		if redisClient == nil {
			return nil, types.NewError(types.ErrInvalidConfig,
				"history backend redis requires redis.addr")
		}
		prefix := ""
		if s.cfg.Redis.KeyPrefix != "" {
			prefix = s.cfg.Redis.KeyPrefix + "session:"
		}
		return history.NewRedisStore(redisClient, history.RedisStoreConfig{
			KeyPrefix: prefix,
			TTL:       s.cfg.History.TTL,
			MaxTurns:  maxTurns,
		}), nil

	case "database":
		conn, err := database.Open(s.cfg.Database, s.logger)
		if err != nil {
			return nil, err
		}
		s.db = conn
		return history.NewGormStore(conn.DB(), maxTurns)

	default:
		return nil, types.NewError(types.ErrInvalidConfig,
			"unknown history backend "+s.cfg.History.Backend)
	}
}

func (s *System) buildInternalSearch(o options, redisClient *redis.Client) (workflow.InternalSearcher, error) {
	embedder := o.embedder
	if embedder == nil {
		embedder = embedding.NewOpenAIProvider(embedding.OpenAIConfig{
			BaseURL:    s.cfg.Embedding.BaseURL,
			APIKey:     s.cfg.Embedding.APIKey,
			Model:      s.cfg.Embedding.Model,
			Dimensions: s.cfg.Embedding.Dimensions,
			Timeout:    s.cfg.Embedding.Timeout,
		})
		if redisClient != nil && s.cfg.Embedding.CacheTTL > 0 {
			embedder = embedding.NewCachedProvider(embedder, redisClient, s.cfg.Embedding.CacheTTL, s.logger)
		}
	}

	vectors := o.vectors
	if vectors == nil {
		if s.cfg.Qdrant.Host != "" {
			vectors = rag.NewQdrantStore(rag.QdrantConfig{
				Host:       s.cfg.Qdrant.Host,
				Port:       s.cfg.Qdrant.Port,
				APIKey:     s.cfg.Qdrant.APIKey,
				Collection: s.cfg.Qdrant.Collection,
				Timeout:    s.cfg.Qdrant.Timeout,
			}, s.logger)
		} else {
			vectors = rag.NewInMemoryVectorStore(s.logger)
		}
	}

	return agent.NewInternalSearchAgent(embedder, vectors, s.logger), nil
}

func (s *System) buildWebSearch(o options) (workflow.WebSearcher, error) {
	provider := o.web
	if provider == nil {
		switch s.cfg.WebSearch.Provider {
		case "", "googlecse":
			provider = websearch.NewGoogleCSE(websearch.GoogleCSEConfig{
				APIKey:             s.cfg.WebSearch.APIKey,
				EngineID:           s.cfg.WebSearch.EngineID,
				Timeout:            s.cfg.WebSearch.Timeout,
				RateLimitPerMinute: s.cfg.WebSearch.RateLimitPerMinute,
			}, s.logger)
		case "tavily":
			provider = websearch.NewTavily(websearch.TavilyConfig{
				APIKey:             s.cfg.WebSearch.APIKey,
				Timeout:            s.cfg.WebSearch.Timeout,
				RateLimitPerMinute: s.cfg.WebSearch.RateLimitPerMinute,
			}, s.logger)
		default:
			return nil, types.NewError(types.ErrInvalidConfig,
				"unknown web search provider "+s.cfg.WebSearch.Provider)
		}
	}
	return agent.NewWebSearchAgent(provider, s.cfg.WebSearch.ProductTerms, s.logger), nil
}

func (s *System) buildSynthesizer(o options) workflow.Synthesizer {
	provider := o.llm
	if provider == nil {
		provider = llm.NewOpenAIProvider(llm.OpenAIConfig{
			APIKey:       s.cfg.LLM.APIKey,
			BaseURL:      s.cfg.LLM.BaseURL,
			DefaultModel: s.cfg.LLM.Model,
			Timeout:      s.cfg.LLM.Timeout,
		}, s.logger)
	}
	counter := agent.NewTokenCounter(s.cfg.LLM.Model, s.logger)
	return agent.NewSynthesizerAgent(provider, agent.SynthesizerConfig{
		Model:       s.cfg.LLM.Model,
		Temperature: s.cfg.LLM.Temperature,
		MaxTokens:   s.cfg.LLM.MaxTokens,
		TokenBudget: s.cfg.Workflow.SynthesisTokenBudget,
	}, counter, s.logger)
}

// Engine exposes the routing engine, mainly for tests.
func (s *System) Engine() *workflow.Engine { return s.engine }

// History exposes the conversation store.
func (s *System) History() history.ConversationStore { return s.store }

// Redis returns the system-owned Redis client, or nil.
func (s *System) Redis() *redis.Client { return s.redis }

// DB returns the system-owned database connection, or nil.
func (s *System) DB() *database.Conn { return s.db }

// Close releases the clients the system created.
func (s *System) Close() error {
	var firstErr error
	if s.redis != nil {
		if err := s.redis.Close(); err != nil {
			firstErr = err
		}
	}
	if s.db != nil {
		if err := s.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// Ask answers one question. With a session ID, prior turns are replayed
// as conversation context and the exchange is recorded afterwards.
func (s *System) Ask(ctx context.Context, question, sessionID string) (*workflow.Result, error) {
	msgs, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	result, err := s.engine.Run(ctx, question, msgs)
	if err != nil {
		return nil, err
	}

	s.recordTurn(ctx, sessionID, question, result.Answer, result.Sources)
	return result, nil
}

// AskStream answers one question as an event stream. The exchange is
// recorded when the stream completes successfully.
func (s *System) AskStream(ctx context.Context, question, sessionID string) (<-chan workflow.StreamEvent, error) {
	msgs, err := s.loadHistory(ctx, sessionID)
	if err != nil {
		return nil, err
	}

	events := s.engine.RunStream(ctx, question, msgs)
	out := make(chan workflow.StreamEvent, 16)
	go func() {
		defer close(out)
		for ev := range events {
			if ev.Type == workflow.EventDone {
				s.recordTurn(ctx, sessionID, question, ev.Answer, ev.Sources)
			}
			out <- ev
		}
	}()
	return out, nil
}

func (s *System) loadHistory(ctx context.Context, sessionID string) ([]llm.Message, error) {
	if strings.TrimSpace(sessionID) == "" {
		return nil, nil
	}
	turns, err := s.store.LoadHistory(ctx, sessionID)
	if err != nil {
		s.logger.Warn("history load failed, continuing without context",
			zap.String("session_id", sessionID), zap.Error(err))
		return nil, nil
	}
	return history.ToMessages(turns), nil
}

// recordTurn persists a completed exchange. Persistence failures are
// logged, not surfaced: the answer was already produced.
func (s *System) recordTurn(ctx context.Context, sessionID, question, answer string, sources []types.SourceDescriptor) {
	if strings.TrimSpace(sessionID) == "" {
		return
	}
	// The run context may already be closed when a stream finishes.
	saveCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 5*time.Second)
	defer cancel()

	err := s.store.AppendTurn(saveCtx, sessionID, history.Turn{
		Question:  question,
		Answer:    answer,
		Sources:   sources,
		CreatedAt: time.Now().UTC(),
	})
	if err != nil {
		s.logger.Warn("history append failed",
			zap.String("session_id", sessionID), zap.Error(err))
	}
}
