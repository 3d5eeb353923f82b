package config

import (
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/cloo-solutions/kbsearch/internal/database"
	"github.com/cloo-solutions/kbsearch/internal/openai"
	"github.com/cloo-solutions/kbsearch/internal/service"
	"github.com/cloo-solutions/kbsearch/internal/telemetry"
	"github.com/joho/godotenv"
	"github.com/kelseyhightower/envconfig"
)

type Config struct {
	Port  string `envconfig:"PORT" default:"8080"`
	Debug bool   `envconfig:"DEBUG" default:"false"`

	DatabaseURL string `envconfig:"DATABASE_URL" required:"true"`
	DBMaxConns  int32  `envconfig:"DB_MAX_CONNS" default:"10"`
	DBMinConns  int32  `envconfig:"DB_MIN_CONNS" default:"2"`

	DBConnectTimeout time.Duration `envconfig:"DB_CONNECT_TIMEOUT" default:"30s"`

	// Provider mode is selected when an API key is present; otherwise embeddings
	// are derived offline from the text.
	OpenAIAPIKey         string        `envconfig:"OPENAI_API_KEY"`
	OpenAIBaseURL        string        `envconfig:"OPENAI_BASE_URL"`
	EmbeddingModel       string        `envconfig:"EMBEDDING_MODEL" default:"text-embedding-ada-002"`
	OpenAIRequestTimeout time.Duration `envconfig:"OPENAI_REQUEST_TIMEOUT" default:"30s"`
	OpenAIMaxRetries     int           `envconfig:"OPENAI_MAX_RETRIES" default:"3"`
	OpenAIBatchSize      int           `envconfig:"OPENAI_BATCH_SIZE" default:"100"`
	EmbeddingConcurrency int           `envconfig:"EMBEDDING_CONCURRENCY" default:"2"`
	EmbeddingDimension   int           `envconfig:"EMBEDDING_DIMENSION" default:"1536"`
	MaxContentLength     int           `envconfig:"MAX_CONTENT_LENGTH" default:"8000"`
	MockEmbeddingSeed    uint64        `envconfig:"MOCK_EMBEDDING_SEED" default:"42"`

	VectorSimilarityThreshold float64 `envconfig:"VECTOR_SIMILARITY_THRESHOLD" default:"0.7"`
	MaxSearchResults          int     `envconfig:"MAX_SEARCH_RESULTS" default:"50"`
	DefaultSearchLimit        int     `envconfig:"DEFAULT_SEARCH_LIMIT" default:"10"`
	MinQueryLength            int     `envconfig:"MIN_QUERY_LENGTH" default:"2"`
	MaxQueryLength            int     `envconfig:"MAX_QUERY_LENGTH" default:"500"`
	SnippetLength             int     `envconfig:"SNIPPET_LENGTH" default:"200"`

	EmbeddingWorkerInterval time.Duration `envconfig:"EMBEDDING_WORKER_INTERVAL" default:"10s"`

	LogLevel  string `envconfig:"LOG_LEVEL" default:"info"`
	LogFormat string `envconfig:"LOG_FORMAT" default:"text"`

	SentryDSN   string `envconfig:"SENTRY_DSN"`
	Environment string `envconfig:"ENVIRONMENT" default:"development"`
}

func Load() (*Config, error) {
	_ = godotenv.Load()

	var cfg Config
	if err := envconfig.Process("KBSEARCH", &cfg); err != nil {
		return nil, fmt.Errorf("failed to process config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid config: %w", err)
	}

	return &cfg, nil
}

func MustLoad() *Config {
	cfg, err := Load()
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}
	return cfg
}

// Validate checks cross-field constraints envconfig cannot express.
func (c *Config) Validate() error {
	var errs []error
	if c.EmbeddingDimension <= 0 {
		errs = append(errs, errors.New("EMBEDDING_DIMENSION must be positive"))
	}
	if c.MaxContentLength <= 0 {
		errs = append(errs, errors.New("MAX_CONTENT_LENGTH must be positive"))
	}
	// Zero is reserved as "use the default" by the search service.
	if c.VectorSimilarityThreshold <= 0 || c.VectorSimilarityThreshold > 1 {
		errs = append(errs, errors.New("VECTOR_SIMILARITY_THRESHOLD must be within (0,1]"))
	}
	if c.OpenAIMaxRetries < 1 {
		errs = append(errs, errors.New("OPENAI_MAX_RETRIES must be at least 1"))
	}
	if c.OpenAIBatchSize < 1 {
		errs = append(errs, errors.New("OPENAI_BATCH_SIZE must be at least 1"))
	}
	if c.EmbeddingConcurrency < 1 {
		errs = append(errs, errors.New("EMBEDDING_CONCURRENCY must be at least 1"))
	}
	if c.MaxSearchResults < 1 {
		errs = append(errs, errors.New("MAX_SEARCH_RESULTS must be at least 1"))
	}
	if c.DefaultSearchLimit < 1 || c.DefaultSearchLimit > c.MaxSearchResults {
		errs = append(errs, errors.New("DEFAULT_SEARCH_LIMIT must be between 1 and MAX_SEARCH_RESULTS"))
	}
	if c.MinQueryLength < 1 || c.MaxQueryLength < c.MinQueryLength {
		errs = append(errs, errors.New("MIN_QUERY_LENGTH must be positive and not exceed MAX_QUERY_LENGTH"))
	}
	return errors.Join(errs...)
}

func (c *Config) HasOpenAI() bool {
	return c.OpenAIAPIKey != ""
}

func (c *Config) HasSentry() bool {
	return c.SentryDSN != ""
}

func (c *Config) EmbeddingConfig() service.EmbeddingConfig {
	return service.EmbeddingConfig{
		Dimension:        c.EmbeddingDimension,
		MaxContentLength: c.MaxContentLength,
		BatchSize:        c.OpenAIBatchSize,
		Concurrency:      c.EmbeddingConcurrency,
	}
}

func (c *Config) SearchConfig() service.SearchConfig {
	return service.SearchConfig{
		SimilarityThreshold: c.VectorSimilarityThreshold,
		MaxResults:          c.MaxSearchResults,
		DefaultLimit:        c.DefaultSearchLimit,
		MinQueryLength:      c.MinQueryLength,
		MaxQueryLength:      c.MaxQueryLength,
		SnippetLength:       c.SnippetLength,
	}
}

func (c *Config) OpenAIConfig() openai.Config {
	return openai.Config{
		APIKey:     c.OpenAIAPIKey,
		BaseURL:    c.OpenAIBaseURL,
		Model:      c.EmbeddingModel,
		Dimensions: c.EmbeddingDimension,
		Timeout:    c.OpenAIRequestTimeout,
		MaxRetries: c.OpenAIMaxRetries,
	}
}

// DatabaseConfig projects the pool settings.
func (c *Config) DatabaseConfig() database.Config {
	return database.Config{
		URL:            c.DatabaseURL,
		MaxConns:       c.DBMaxConns,
		MinConns:       c.DBMinConns,
		ConnectTimeout: c.DBConnectTimeout,
	}
}

// TelemetryConfig samples every trace in development and 10% elsewhere.
func (c *Config) TelemetryConfig() telemetry.Config {
	sampleRate := 0.1
	if c.Environment == "development" {
		sampleRate = 1.0
	}
	return telemetry.Config{
		DSN:              c.SentryDSN,
		Environment:      c.Environment,
		TracesSampleRate: sampleRate,
		Debug:            c.Debug,
	}
}
