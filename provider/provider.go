package provider

import (
	"context"
	"strings"

	"github.com/nikibot/niki/config"
	openai_provider "github.com/nikibot/niki/provider/openai"
)

// Provider is the interface the pipeline uses to talk to the language
// model and embedding services. Both are served by the same backend so
// that ingestion-time and query-time embeddings always come from the
// same model.
type Provider interface {
	// Complete sends a system+user prompt pair and returns the raw
	// generated text.
	Complete(ctx context.Context, system, user string) (string, error)
	// CreateEmbedding returns one fixed-dimension vector per input text.
	CreateEmbedding(ctx context.Context, texts []string) ([][]float32, error)
}

// NewProvider creates the LLM client from configuration.
func NewProvider(cfg config.LLMConfig) (Provider, error) {
	if strings.TrimSpace(cfg.APIKey) == "" {
		return nil, config.ErrMissingAPIKey
	}
	return openai_provider.NewClient(
		cfg.APIKey,
		cfg.BaseURL,
		cfg.CompletionModel,
		cfg.EmbeddingModel,
		cfg.Temperature,
		cfg.MaxTokens,
		cfg.Timeout,
	), nil
}
