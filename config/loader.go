package config

import (
	"fmt"
	"os"
	"reflect"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/supportflow/supportflow/types"
)

// =============================================================================
// Core configuration structure
// =============================================================================

// Config is the complete supportflow configuration.
type Config struct {
	// Server HTTP server configuration
	Server ServerConfig `yaml:"server" env:"SERVER"`

	// Workflow orchestration policy knobs
	Workflow WorkflowConfig `yaml:"workflow" env:"WORKFLOW"`

	// Qdrant vector store backing the internal retrieval port
	Qdrant QdrantConfig `yaml:"qdrant" env:"QDRANT"`

	// Embedding query embedding backend
	Embedding EmbeddingConfig `yaml:"embedding" env:"EMBEDDING"`

	// LLM synthesis backend
	LLM LLMConfig `yaml:"llm" env:"LLM"`

	// WebSearch open web search provider
	WebSearch WebSearchConfig `yaml:"web_search" env:"WEB_SEARCH"`

	// History conversation store
	History HistoryConfig `yaml:"history" env:"HISTORY"`

	// Redis cache / history backend
	Redis RedisConfig `yaml:"redis" env:"REDIS"`

	// Database relational history backend
	Database DatabaseConfig `yaml:"database" env:"DATABASE"`

	// Log logging configuration
	Log LogConfig `yaml:"log" env:"LOG"`

	// Telemetry OpenTelemetry configuration
	Telemetry TelemetryConfig `yaml:"telemetry" env:"TELEMETRY"`
}

// ServerConfig configures the HTTP server.
type ServerConfig struct {
	HTTPPort        int           `yaml:"http_port" env:"HTTP_PORT"`
	ReadTimeout     time.Duration `yaml:"read_timeout" env:"READ_TIMEOUT"`
	WriteTimeout    time.Duration `yaml:"write_timeout" env:"WRITE_TIMEOUT"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout" env:"SHUTDOWN_TIMEOUT"`
	// APIKeys accepted in the X-API-Key header; empty disables key auth
	APIKeys []string `yaml:"api_keys" env:"API_KEYS"`
	// JWTSecret for bearer token auth; empty disables JWT auth
	JWTSecret string `yaml:"jwt_secret" env:"JWT_SECRET"`
	// RateLimitRPS per-client request rate; 0 disables limiting
	RateLimitRPS   float64 `yaml:"rate_limit_rps" env:"RATE_LIMIT_RPS"`
	RateLimitBurst int     `yaml:"rate_limit_burst" env:"RATE_LIMIT_BURST"`
}

// WorkflowConfig holds the coordination policy knobs. The quality heuristic
// thresholds are deliberately configuration, not constants; the shipped
// defaults are starting points, not tuned values.
type WorkflowConfig struct {
	// MaxIterations bounds coordinator decisions per run
	MaxIterations int `yaml:"max_iterations" env:"MAX_ITERATIONS"`
	// MaxDocs caps internal search results per query
	MaxDocs int `yaml:"max_docs" env:"MAX_DOCS"`
	// MaxWebResults caps web search results per query
	MaxWebResults int `yaml:"max_web_results" env:"MAX_WEB_RESULTS"`
	// MinInternalScore below which internal evidence is insufficient
	MinInternalScore float64 `yaml:"min_internal_score" env:"MIN_INTERNAL_SCORE"`
	// MinInternalResults below which internal evidence is insufficient
	MinInternalResults int `yaml:"min_internal_results" env:"MIN_INTERNAL_RESULTS"`
	// MinContentLength in bytes below which internal evidence is
	// insufficient; 0 disables the check
	MinContentLength int `yaml:"min_content_length" env:"MIN_CONTENT_LENGTH"`
	// ScoreMode selects the aggregate compared against MinInternalScore:
	// "max" (default) or "average"
	ScoreMode string `yaml:"score_mode" env:"SCORE_MODE"`
	// AgentTimeout bounds each dispatched agent call
	AgentTimeout time.Duration `yaml:"agent_timeout" env:"AGENT_TIMEOUT"`
	// SynthesisTokenBudget caps evidence context fed to the synthesizer
	SynthesisTokenBudget int `yaml:"synthesis_token_budget" env:"SYNTHESIS_TOKEN_BUDGET"`
}

// QdrantConfig configures the Qdrant vector store.
type QdrantConfig struct {
	Host       string        `yaml:"host" env:"HOST"`
	Port       int           `yaml:"port" env:"PORT"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	Collection string        `yaml:"collection" env:"COLLECTION"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// EmbeddingConfig configures the query embedding backend.
type EmbeddingConfig struct {
	BaseURL    string        `yaml:"base_url" env:"BASE_URL"`
	APIKey     string        `yaml:"api_key" env:"API_KEY"`
	Model      string        `yaml:"model" env:"MODEL"`
	Dimensions int           `yaml:"dimensions" env:"DIMENSIONS"`
	Timeout    time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// CacheTTL for the Redis embedding cache; 0 disables caching
	CacheTTL time.Duration `yaml:"cache_ttl" env:"CACHE_TTL"`
}

// LLMConfig configures the synthesis backend.
type LLMConfig struct {
	BaseURL     string        `yaml:"base_url" env:"BASE_URL"`
	APIKey      string        `yaml:"api_key" env:"API_KEY"`
	Model       string        `yaml:"model" env:"MODEL"`
	Temperature float32       `yaml:"temperature" env:"TEMPERATURE"`
	MaxTokens   int           `yaml:"max_tokens" env:"MAX_TOKENS"`
	Timeout     time.Duration `yaml:"timeout" env:"TIMEOUT"`
}

// WebSearchConfig configures the open web search provider.
type WebSearchConfig struct {
	// Provider backend: googlecse or tavily
	Provider string `yaml:"provider" env:"PROVIDER"`
	APIKey   string `yaml:"api_key" env:"API_KEY"`
	// EngineID is the Google Custom Search engine ID (googlecse only)
	EngineID string        `yaml:"engine_id" env:"ENGINE_ID"`
	Timeout  time.Duration `yaml:"timeout" env:"TIMEOUT"`
	// RateLimitPerMinute caps outbound searches; 0 disables limiting
	RateLimitPerMinute int `yaml:"rate_limit_per_minute" env:"RATE_LIMIT_PER_MINUTE"`
	// ProductTerms are product and vendor names that bias query shaping
	// toward official documentation
	ProductTerms []string `yaml:"product_terms" env:"PRODUCT_TERMS"`
}

// HistoryConfig configures conversation persistence.
type HistoryConfig struct {
	// Backend: memory, redis, or database
	Backend string `yaml:"backend" env:"BACKEND"`
	// MaxTurns replayed as conversation context per session
	MaxTurns int `yaml:"max_turns" env:"MAX_TURNS"`
	// TTL for redis-backed sessions; 0 keeps sessions forever
	TTL time.Duration `yaml:"ttl" env:"TTL"`
}

// RedisConfig configures the Redis client.
type RedisConfig struct {
	Addr         string `yaml:"addr" env:"ADDR"`
	Password     string `yaml:"password" env:"PASSWORD"`
	DB           int    `yaml:"db" env:"DB"`
	PoolSize     int    `yaml:"pool_size" env:"POOL_SIZE"`
	MinIdleConns int    `yaml:"min_idle_conns" env:"MIN_IDLE_CONNS"`
	KeyPrefix    string `yaml:"key_prefix" env:"KEY_PREFIX"`
}

// DatabaseConfig configures the relational history backend.
type DatabaseConfig struct {
	// Driver: postgres or sqlite
	Driver          string        `yaml:"driver" env:"DRIVER"`
	Host            string        `yaml:"host" env:"HOST"`
	Port            int           `yaml:"port" env:"PORT"`
	User            string        `yaml:"user" env:"USER"`
	Password        string        `yaml:"password" env:"PASSWORD"`
	Name            string        `yaml:"name" env:"NAME"`
	SSLMode         string        `yaml:"ssl_mode" env:"SSL_MODE"`
	MaxOpenConns    int           `yaml:"max_open_conns" env:"MAX_OPEN_CONNS"`
	MaxIdleConns    int           `yaml:"max_idle_conns" env:"MAX_IDLE_CONNS"`
	ConnMaxLifetime time.Duration `yaml:"conn_max_lifetime" env:"CONN_MAX_LIFETIME"`
}

// LogConfig configures zap logging.
type LogConfig struct {
	// Level: debug, info, warn, error
	Level string `yaml:"level" env:"LEVEL"`
	// Format: json or console
	Format      string   `yaml:"format" env:"FORMAT"`
	OutputPaths []string `yaml:"output_paths" env:"OUTPUT_PATHS"`
}

// TelemetryConfig configures OpenTelemetry export.
type TelemetryConfig struct {
	Enabled      bool    `yaml:"enabled" env:"ENABLED"`
	OTLPEndpoint string  `yaml:"otlp_endpoint" env:"OTLP_ENDPOINT"`
	ServiceName  string  `yaml:"service_name" env:"SERVICE_NAME"`
	SampleRate   float64 `yaml:"sample_rate" env:"SAMPLE_RATE"`
}

// =============================================================================
// Loader
// =============================================================================

// Loader loads configuration with builder-style options.
type Loader struct {
	configPath string
	envPrefix  string
	validators []func(*Config) error
}

// NewLoader creates a new configuration loader.
func NewLoader() *Loader {
	return &Loader{
		envPrefix:  "SUPPORTFLOW",
		validators: make([]func(*Config) error, 0),
	}
}

// WithConfigPath sets the YAML config file path.
func (l *Loader) WithConfigPath(path string) *Loader {
	l.configPath = path
	return l
}

// WithEnvPrefix sets the environment variable prefix.
func (l *Loader) WithEnvPrefix(prefix string) *Loader {
	l.envPrefix = prefix
	return l
}

// WithValidator adds an extra validation step.
func (l *Loader) WithValidator(v func(*Config) error) *Loader {
	l.validators = append(l.validators, v)
	return l
}

// Load resolves configuration with precedence defaults -> file -> environment,
// then validates.
func (l *Loader) Load() (*Config, error) {
	cfg := DefaultConfig()

	if l.configPath != "" {
		if err := l.loadFromFile(cfg); err != nil {
			return nil, fmt.Errorf("failed to load config from file: %w", err)
		}
	}

	if err := l.loadFromEnv(cfg); err != nil {
		return nil, fmt.Errorf("failed to load config from env: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	for _, v := range l.validators {
		if err := v(cfg); err != nil {
			return nil, fmt.Errorf("config validation failed: %w", err)
		}
	}

	return cfg, nil
}

// loadFromFile merges YAML config over cfg. A missing file is not an error.
func (l *Loader) loadFromFile(cfg *Config) error {
	data, err := os.ReadFile(l.configPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("failed to read config file: %w", err)
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("failed to parse config file: %w", err)
	}

	return nil
}

func (l *Loader) loadFromEnv(cfg *Config) error {
	return l.setFieldsFromEnv(reflect.ValueOf(cfg).Elem(), l.envPrefix)
}

func (l *Loader) setFieldsFromEnv(v reflect.Value, prefix string) error {
	t := v.Type()

	for i := 0; i < v.NumField(); i++ {
		field := v.Field(i)
		fieldType := t.Field(i)

		envTag := fieldType.Tag.Get("env")
		if envTag == "" || envTag == "-" {
			continue
		}

		envKey := prefix + "_" + envTag

		if field.Kind() == reflect.Struct && field.Type() != reflect.TypeOf(time.Duration(0)) {
			if err := l.setFieldsFromEnv(field, envKey); err != nil {
				return err
			}
			continue
		}

		envValue := os.Getenv(envKey)
		if envValue == "" {
			continue
		}

		if err := setFieldValue(field, envValue); err != nil {
			return fmt.Errorf("failed to set %s: %w", envKey, err)
		}
	}

	return nil
}

func setFieldValue(field reflect.Value, value string) error {
	if !field.CanSet() {
		return nil
	}

	switch field.Kind() {
	case reflect.String:
		field.SetString(value)

	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		if field.Type() == reflect.TypeOf(time.Duration(0)) {
			d, err := time.ParseDuration(value)
			if err != nil {
				return err
			}
			field.SetInt(int64(d))
		} else {
			i, err := strconv.ParseInt(value, 10, 64)
			if err != nil {
				return err
			}
			field.SetInt(i)
		}

	case reflect.Float32, reflect.Float64:
		f, err := strconv.ParseFloat(value, 64)
		if err != nil {
			return err
		}
		field.SetFloat(f)

	case reflect.Bool:
		b, err := strconv.ParseBool(value)
		if err != nil {
			return err
		}
		field.SetBool(b)

	case reflect.Slice:
		if field.Type().Elem().Kind() == reflect.String {
			parts := strings.Split(value, ",")
			for i := range parts {
				parts[i] = strings.TrimSpace(parts[i])
			}
			field.Set(reflect.ValueOf(parts))
		}
	}

	return nil
}

// =============================================================================
// Validation
// =============================================================================

// Validate checks configuration consistency. Errors here carry the
// INVALID_CONFIG code so callers can distinguish them from runtime failures.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.HTTPPort <= 0 || c.Server.HTTPPort > 65535 {
		errs = append(errs, "invalid HTTP port")
	}
	if c.Workflow.MaxIterations <= 0 {
		errs = append(errs, "workflow.max_iterations must be positive")
	}
	if c.Workflow.MaxDocs <= 0 {
		errs = append(errs, "workflow.max_docs must be positive")
	}
	if c.Workflow.MaxWebResults <= 0 {
		errs = append(errs, "workflow.max_web_results must be positive")
	}
	if c.Workflow.MinInternalScore < 0 || c.Workflow.MinInternalScore > 1 {
		errs = append(errs, "workflow.min_internal_score must be in [0,1]")
	}
	if c.Workflow.MinInternalResults < 0 {
		errs = append(errs, "workflow.min_internal_results must not be negative")
	}
	if c.Workflow.ScoreMode != "max" && c.Workflow.ScoreMode != "average" {
		errs = append(errs, `workflow.score_mode must be "max" or "average"`)
	}
	switch c.History.Backend {
	case "memory", "redis", "database":
	default:
		errs = append(errs, `history.backend must be "memory", "redis", or "database"`)
	}
	if c.History.Backend == "database" {
		switch c.Database.Driver {
		case "postgres", "sqlite":
		default:
			errs = append(errs, `database.driver must be "postgres" or "sqlite"`)
		}
	}
	if c.Telemetry.Enabled && (c.Telemetry.SampleRate < 0 || c.Telemetry.SampleRate > 1) {
		errs = append(errs, "telemetry.sample_rate must be in [0,1]")
	}

	if len(errs) > 0 {
		return types.NewError(types.ErrInvalidConfig,
			"config validation errors: "+strings.Join(errs, "; "))
	}

	return nil
}

// DSN returns the database connection string for the configured driver.
func (d *DatabaseConfig) DSN() string {
	switch d.Driver {
	case "postgres":
		return fmt.Sprintf(
			"host=%s port=%d user=%s password=%s dbname=%s sslmode=%s",
			d.Host, d.Port, d.User, d.Password, d.Name, d.SSLMode,
		)
	case "sqlite":
		return d.Name
	default:
		return ""
	}
}

// MustLoad loads configuration and panics on failure.
func MustLoad(path string) *Config {
	cfg, err := NewLoader().WithConfigPath(path).Load()
	if err != nil {
		panic(fmt.Sprintf("failed to load config: %v", err))
	}
	return cfg
}
