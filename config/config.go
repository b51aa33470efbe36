package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// ErrMissingAPIKey is returned when no LLM credential is configured.
// It is fatal at startup and must never be defaulted away.
var ErrMissingAPIKey = errors.New("llm.api_key is not set (NIKI_LLM_API_KEY)")

// Config holds all configuration for the assistant.
type Config struct {
	LLM       LLMConfig       `mapstructure:"llm"`
	Index     IndexConfig     `mapstructure:"index"`
	Ingest    IngestConfig    `mapstructure:"ingest"`
	Retrieval RetrievalConfig `mapstructure:"retrieval"`
	Router    RouterConfig    `mapstructure:"router"`
	WebSearch WebSearchConfig `mapstructure:"websearch"`
	Assembler AssemblerConfig `mapstructure:"assembler"`
	Session   SessionConfig   `mapstructure:"session"`
	Server    ServerConfig    `mapstructure:"server"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// LLMConfig configures the OpenAI-compatible provider. The same
// embedding model serves both ingestion and query time.
type LLMConfig struct {
	APIKey          string        `mapstructure:"api_key"`
	BaseURL         string        `mapstructure:"base_url"`
	CompletionModel string        `mapstructure:"completion_model"`
	EmbeddingModel  string        `mapstructure:"embedding_model"`
	Temperature     float64       `mapstructure:"temperature"`
	MaxTokens       int           `mapstructure:"max_tokens"`
	Timeout         time.Duration `mapstructure:"timeout"`
}

// IndexConfig locates the persisted snapshot.
type IndexConfig struct {
	Path string `mapstructure:"path"`
	// DenseWeight and SparseWeight are the fixed rank-fusion weights
	// for hybrid search.
	DenseWeight  float64 `mapstructure:"dense_weight"`
	SparseWeight float64 `mapstructure:"sparse_weight"`
}

// IngestConfig controls document loading and splitting.
type IngestConfig struct {
	DataDir      string `mapstructure:"data_dir"`
	ChunkSize    int    `mapstructure:"chunk_size"`
	ChunkOverlap int    `mapstructure:"chunk_overlap"`
}

// RetrievalConfig controls candidate count and quality filtering.
type RetrievalConfig struct {
	K              int     `mapstructure:"k"`
	ScoreThreshold float64 `mapstructure:"score_threshold"`
	UseMMR         bool    `mapstructure:"use_mmr"`
	MMRLambda      float64 `mapstructure:"mmr_lambda"`
	Hybrid         bool    `mapstructure:"hybrid"`
}

// RouterConfig selects the intent classification strategy.
type RouterConfig struct {
	// Strategy is "keyword" or "model".
	Strategy string `mapstructure:"strategy"`
}

// WebSearchConfig controls the optional web augmentation chain.
type WebSearchConfig struct {
	Enabled      bool          `mapstructure:"enabled"`
	SerperAPIKey string        `mapstructure:"serper_api_key"`
	AllowDomains []string      `mapstructure:"allow_domains"`
	DeviceModel  string        `mapstructure:"device_model"`
	MaxResults   int           `mapstructure:"max_results"`
	Timeout      time.Duration `mapstructure:"timeout"`
}

// AssemblerConfig bounds the assembled prompt context.
type AssemblerConfig struct {
	MaxChars int `mapstructure:"max_chars"`
}

// SessionConfig selects the history store backend.
type SessionConfig struct {
	// Store is "inmemory" or "redis".
	Store     string        `mapstructure:"store"`
	RedisAddr string        `mapstructure:"redis_addr"`
	RedisPass string        `mapstructure:"redis_pass"`
	RedisDB   int           `mapstructure:"redis_db"`
	TTL       time.Duration `mapstructure:"ttl"`
}

// ServerConfig contains HTTP server settings.
type ServerConfig struct {
	Address string `mapstructure:"address"`
}

// TelemetryConfig contains monitoring settings.
type TelemetryConfig struct {
	Enabled bool `mapstructure:"enabled"`
}

func setDefaults() {
	viper.SetDefault("llm.base_url", "https://api.openai.com/v1")
	viper.SetDefault("llm.completion_model", "gpt-4o-mini")
	viper.SetDefault("llm.embedding_model", "text-embedding-3-small")
	viper.SetDefault("llm.temperature", 0.7)
	viper.SetDefault("llm.max_tokens", 2048)
	viper.SetDefault("llm.timeout", 30*time.Second)
	viper.SetDefault("index.path", "vector/index")
	viper.SetDefault("index.dense_weight", 0.6)
	viper.SetDefault("index.sparse_weight", 0.4)
	viper.SetDefault("ingest.data_dir", "data")
	viper.SetDefault("ingest.chunk_size", 1000)
	viper.SetDefault("ingest.chunk_overlap", 200)
	viper.SetDefault("retrieval.k", 5)
	viper.SetDefault("retrieval.score_threshold", 0.6)
	viper.SetDefault("retrieval.use_mmr", false)
	viper.SetDefault("retrieval.mmr_lambda", 0.5)
	viper.SetDefault("retrieval.hybrid", true)
	viper.SetDefault("router.strategy", "model")
	viper.SetDefault("websearch.enabled", false)
	viper.SetDefault("websearch.allow_domains", []string{"teltonika-gps.com", "wiki.teltonika-gps.com", "teltonika.lt"})
	viper.SetDefault("websearch.device_model", "FM130")
	viper.SetDefault("websearch.max_results", 3)
	viper.SetDefault("websearch.timeout", 10*time.Second)
	viper.SetDefault("assembler.max_chars", 12000)
	viper.SetDefault("session.store", "inmemory")
	viper.SetDefault("session.ttl", 48*time.Hour)
	viper.SetDefault("server.address", ":5000")
	viper.SetDefault("telemetry.enabled", true)
}

// Load reads configuration from the given file (or the default search
// path when empty) with NIKI_* environment overrides.
func Load(path string) (*Config, error) {
	viper.SetConfigName("config")
	viper.SetConfigType("yaml")
	setDefaults()

	if path == "" {
		viper.AddConfigPath("./config")
		viper.AddConfigPath(".")
	} else {
		viper.SetConfigFile(path)
	}

	viper.SetEnvPrefix("NIKI")
	viper.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	viper.AutomaticEnv()

	if err := viper.ReadInConfig(); err != nil {
		// Config file is optional: env vars and defaults can carry a
		// full configuration. A malformed file is still fatal.
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("reading config: %w", err)
		}
	}

	var cfg Config
	if err := viper.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshalling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks settings that must not be silently defaulted.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.LLM.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if c.Ingest.ChunkOverlap >= c.Ingest.ChunkSize {
		return fmt.Errorf("ingest.chunk_overlap (%d) must be smaller than ingest.chunk_size (%d)", c.Ingest.ChunkOverlap, c.Ingest.ChunkSize)
	}
	if c.Retrieval.MMRLambda < 0 || c.Retrieval.MMRLambda > 1 {
		return fmt.Errorf("retrieval.mmr_lambda must be in [0,1], got %f", c.Retrieval.MMRLambda)
	}
	if c.Session.Store == "redis" && strings.TrimSpace(c.Session.RedisAddr) == "" {
		return fmt.Errorf("session.redis_addr required when session.store is redis")
	}
	return nil
}
