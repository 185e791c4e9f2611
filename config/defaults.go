package config

import "time"

// DefaultConfig returns the full default configuration.
func DefaultConfig() *Config {
	return &Config{
		Server:    DefaultServerConfig(),
		Workflow:  DefaultWorkflowConfig(),
		Qdrant:    DefaultQdrantConfig(),
		Embedding: DefaultEmbeddingConfig(),
		LLM:       DefaultLLMConfig(),
		WebSearch: DefaultWebSearchConfig(),
		History:   DefaultHistoryConfig(),
		Redis:     DefaultRedisConfig(),
		Database:  DefaultDatabaseConfig(),
		Log:       DefaultLogConfig(),
		Telemetry: DefaultTelemetryConfig(),
	}
}

// DefaultServerConfig returns default HTTP server settings.
func DefaultServerConfig() ServerConfig {
	return ServerConfig{
		HTTPPort:        8080,
		ReadTimeout:     30 * time.Second,
		WriteTimeout:    120 * time.Second,
		ShutdownTimeout: 15 * time.Second,
		RateLimitRPS:    10,
		RateLimitBurst:  20,
	}
}

// DefaultWorkflowConfig returns the default coordination policy.
// The quality thresholds are tunable starting points.
func DefaultWorkflowConfig() WorkflowConfig {
	return WorkflowConfig{
		MaxIterations:        3,
		MaxDocs:              5,
		MaxWebResults:        2,
		MinInternalScore:     0.5,
		MinInternalResults:   1,
		MinContentLength:     0,
		ScoreMode:            "max",
		AgentTimeout:         30 * time.Second,
		SynthesisTokenBudget: 3000,
	}
}

// DefaultQdrantConfig returns default Qdrant settings.
func DefaultQdrantConfig() QdrantConfig {
	return QdrantConfig{
		Host:       "localhost",
		Port:       6333,
		Collection: "support_docs",
		Timeout:    30 * time.Second,
	}
}

// DefaultEmbeddingConfig returns default embedding settings.
func DefaultEmbeddingConfig() EmbeddingConfig {
	return EmbeddingConfig{
		BaseURL:    "https://api.openai.com",
		Model:      "text-embedding-3-small",
		Dimensions: 1536,
		Timeout:    10 * time.Second,
		CacheTTL:   1 * time.Hour,
	}
}

// DefaultLLMConfig returns default synthesis backend settings.
func DefaultLLMConfig() LLMConfig {
	return LLMConfig{
		BaseURL:     "https://api.openai.com",
		Model:       "gpt-4o-mini",
		Temperature: 0.3,
		MaxTokens:   500,
		Timeout:     60 * time.Second,
	}
}

// DefaultWebSearchConfig returns default web search settings.
func DefaultWebSearchConfig() WebSearchConfig {
	return WebSearchConfig{
		Provider:           "googlecse",
		Timeout:            15 * time.Second,
		RateLimitPerMinute: 30,
	}
}

// DefaultHistoryConfig returns default conversation store settings.
func DefaultHistoryConfig() HistoryConfig {
	return HistoryConfig{
		Backend:  "memory",
		MaxTurns: 10,
		TTL:      24 * time.Hour,
	}
}

// DefaultRedisConfig returns default Redis settings.
func DefaultRedisConfig() RedisConfig {
	return RedisConfig{
		Addr:         "localhost:6379",
		DB:           0,
		PoolSize:     10,
		MinIdleConns: 2,
		KeyPrefix:    "supportflow:",
	}
}

// DefaultDatabaseConfig returns default database settings.
func DefaultDatabaseConfig() DatabaseConfig {
	return DatabaseConfig{
		Driver:          "postgres",
		Host:            "localhost",
		Port:            5432,
		User:            "supportflow",
		Name:            "supportflow",
		SSLMode:         "disable",
		MaxOpenConns:    10,
		MaxIdleConns:    2,
		ConnMaxLifetime: time.Hour,
	}
}

// DefaultLogConfig returns default logging settings.
func DefaultLogConfig() LogConfig {
	return LogConfig{
		Level:       "info",
		Format:      "json",
		OutputPaths: []string{"stdout"},
	}
}

// DefaultTelemetryConfig returns default telemetry settings.
func DefaultTelemetryConfig() TelemetryConfig {
	return TelemetryConfig{
		Enabled:      false,
		OTLPEndpoint: "localhost:4317",
		ServiceName:  "supportflow",
		SampleRate:   1.0,
	}
}
