// Package config loads the service configuration from defaults, an optional
// config file and the environment.
package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"

	"github.com/bull/ingestion-service/internal/chunker"
	"github.com/bull/ingestion-service/internal/embedding"
)

// Store backends.
const (
	StoreBadger   = "badger"
	StoreQdrant   = "qdrant"
	StorePgvector = "pgvector"
)

// Server transports.
const (
	ModeHTTP  = "http"
	ModeStdio = "stdio"
)

// Config holds all application configuration.
type Config struct {
	Embedding EmbeddingConfig `mapstructure:"embedding"`
	OpenAI    OpenAIConfig    `mapstructure:"openai"`
	Ollama    OllamaConfig    `mapstructure:"ollama"`
	Qdrant    QdrantConfig    `mapstructure:"qdrant"`
	Chunk     ChunkConfig     `mapstructure:"chunk"`
	Log       LogConfig       `mapstructure:"log"`
	GitHub    GitHubConfig    `mapstructure:"github"`

	VectorStore  string `mapstructure:"vector_store"`
	StorePath    string `mapstructure:"store_path"`
	DatabaseURL  string `mapstructure:"database_url"`
	Port         int    `mapstructure:"port"`
	ServerMode   string `mapstructure:"server_mode"`
	OTLPEndpoint string `mapstructure:"otel_exporter_otlp_endpoint"`
}

type EmbeddingConfig struct {
	Provider  string `mapstructure:"provider"`
	Fallbacks string `mapstructure:"fallbacks"` // comma separated
	Dimension int    `mapstructure:"dimension"`
}

type OpenAIConfig struct {
	APIKey         string `mapstructure:"api_key"`
	BaseURL        string `mapstructure:"base_url"`
	EmbeddingModel string `mapstructure:"embedding_model"`
	BatchSize      int    `mapstructure:"batch_size"`
}

type OllamaConfig struct {
	BaseURL           string        `mapstructure:"base_url"`
	EmbeddingModel    string        `mapstructure:"embedding_model"`
	Timeout           time.Duration `mapstructure:"timeout"`
	Concurrency       int           `mapstructure:"concurrency"`
	RequestsPerSecond float64       `mapstructure:"requests_per_second"`
}

type QdrantConfig struct {
	Host   string `mapstructure:"host"`
	Port   int    `mapstructure:"port"`
	APIKey string `mapstructure:"api_key"`
	UseTLS bool   `mapstructure:"use_tls"`
}

type ChunkConfig struct {
	Size    int `mapstructure:"size"`
	Overlap int `mapstructure:"overlap"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"`
}

type GitHubConfig struct {
	Token string `mapstructure:"token"`
}

var defaults = map[string]any{
	"embedding.provider":          "deterministic",
	"embedding.fallbacks":         "",
	"embedding.dimension":         embedding.DefaultDimension,
	"openai.api_key":              "",
	"openai.base_url":             "",
	"openai.embedding_model":      "text-embedding-3-small",
	"openai.batch_size":           500,
	"ollama.base_url":             "http://localhost:11434",
	"ollama.embedding_model":      "all-minilm",
	"ollama.timeout":              "30s",
	"ollama.concurrency":          4,
	"ollama.requests_per_second":  0,
	"qdrant.host":                 "localhost",
	"qdrant.port":                 6334,
	"qdrant.api_key":              "",
	"qdrant.use_tls":              false,
	"chunk.size":                  chunker.DefaultSize,
	"chunk.overlap":               chunker.DefaultOverlap,
	"log.level":                   "info",
	"log.format":                  "text",
	"github.token":                "",
	"vector_store":                StoreBadger,
	"store_path":                  "./chroma_data",
	"database_url":                "",
	"port":                        8001,
	"server_mode":                 ModeHTTP,
	"otel_exporter_otlp_endpoint": "",
}

// legacyEnv lists environment names still read for a key. The derived name
// takes precedence.
var legacyEnv = map[string][]string{
	"embedding.provider": {"MODEL_PROVIDER"},
	"store_path":         {"CHROMA_PERSIST_DIR"},
}

// envName derives the environment variable read for key.
func envName(key string) string {
	return strings.ToUpper(strings.NewReplacer(".", "_").Replace(key))
}

// Load reads configuration from the file at path, if any, and the environment.
// Environment variables are the upper-cased keys with "." replaced by "_",
// e.g. OLLAMA_BASE_URL. MODEL_PROVIDER and CHROMA_PERSIST_DIR are accepted
// for embedding.provider and store_path. The result is validated; warnings are returned alongside.
func Load(path string) (*Config, []string, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	for key, names := range legacyEnv {
		if err := v.BindEnv(append([]string{key, envName(key)}, names...)...); err != nil {
			return nil, nil, fmt.Errorf("binding %s: %w", key, err)
		}
	}

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, nil, fmt.Errorf("unmarshalling config: %w", err)
	}

	warnings, err := cfg.Validate()
	if err != nil {
		return nil, nil, err
	}
	return &cfg, warnings, nil
}

// Validate rejects configurations the service cannot start with and returns
// warnings for ones that will run degraded.
func (c *Config) Validate() ([]string, error) {
	var errs []error

	pc, err := c.Provider()
	if err != nil {
		errs = append(errs, err)
	}
	if c.Embedding.Dimension <= 0 {
		errs = append(errs, fmt.Errorf("embedding dimension must be positive, got %d", c.Embedding.Dimension))
	}
	if err := chunker.Validate(c.Chunk.Size, c.Chunk.Overlap); err != nil {
		errs = append(errs, err)
	}

	switch c.VectorStore {
	case StoreBadger, StoreQdrant:
	case StorePgvector:
		if c.DatabaseURL == "" {
			errs = append(errs, errors.New("vector store pgvector requires DATABASE_URL"))
		}
	default:
		errs = append(errs, fmt.Errorf("unknown vector store %q", c.VectorStore))
	}

	switch c.ServerMode {
	case ModeHTTP, ModeStdio:
	default:
		errs = append(errs, fmt.Errorf("unknown server mode %q", c.ServerMode))
	}

	if len(errs) > 0 {
		return nil, fmt.Errorf("invalid config: %w", errors.Join(errs...))
	}

	var warnings []string
	if usesProvider(pc, embedding.ProviderOpenAI) && c.OpenAI.APIKey == "" {
		warnings = append(warnings, "openai embedding provider is configured but OPENAI_API_KEY is empty; deterministic vectors will be used")
	}
	if c.VectorStore == StoreBadger && c.StorePath == "" {
		warnings = append(warnings, "STORE_PATH is empty; collections are kept in memory only")
	}
	return warnings, nil
}

// Provider returns the embedding provider configuration.
func (c *Config) Provider() (embedding.ProviderConfig, error) {
	primary, err := embedding.ParseProviderKind(c.Embedding.Provider)
	if err != nil {
		return embedding.ProviderConfig{}, err
	}

	var fallbacks []embedding.ProviderKind
	for _, name := range strings.Split(c.Embedding.Fallbacks, ",") {
		if strings.TrimSpace(name) == "" {
			continue
		}
		kind, err := embedding.ParseProviderKind(name)
		if err != nil {
			return embedding.ProviderConfig{}, fmt.Errorf("fallbacks: %w", err)
		}
		fallbacks = append(fallbacks, kind)
	}

	return embedding.ProviderConfig{
		Provider:  primary,
		Fallbacks: fallbacks,
		Dimension: c.Embedding.Dimension,
		OpenAI: embedding.OpenAIConfig{
			APIKey:    c.OpenAI.APIKey,
			BaseURL:   c.OpenAI.BaseURL,
			Model:     c.OpenAI.EmbeddingModel,
			BatchSize: c.OpenAI.BatchSize,
		},
		Ollama: embedding.OllamaConfig{
			BaseURL:           c.Ollama.BaseURL,
			Model:             c.Ollama.EmbeddingModel,
			Timeout:           c.Ollama.Timeout,
			Concurrency:       c.Ollama.Concurrency,
			RequestsPerSecond: c.Ollama.RequestsPerSecond,
		},
	}, nil
}

func usesProvider(pc embedding.ProviderConfig, kind embedding.ProviderKind) bool {
	if pc.Provider == kind {
		return true
	}
	for _, f := range pc.Fallbacks {
		if f == kind {
			return true
		}
	}
	return false
}
