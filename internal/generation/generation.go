// Package generation holds the downstream generator contract and a default
// implementation driving an OpenAI-compatible chat model through
// langchaingo.
package generation

import (
	"context"

	"github.com/tmc/langchaingo/llms"
	"github.com/tmc/langchaingo/llms/openai"
)

// Generator produces a downstream result (an answer, a SQL query, a
// verdict) from a serialized table rendering and a query string.
type Generator interface {
	Generate(ctx context.Context, tableStr, query string) (string, error)
}

// ModelConfig identifies an OpenAI-compatible chat model endpoint.
type ModelConfig struct {
	ModelName string `mapstructure:"model_name"`
	Token     string `mapstructure:"token"`
	BaseURL   string `mapstructure:"base_url"`
}

// NewModel creates a langchaingo model from the config. An empty BaseURL
// targets the OpenAI API itself.
func NewModel(cfg ModelConfig) (llms.Model, error) {
	opts := []openai.Option{
		openai.WithModel(cfg.ModelName),
		openai.WithToken(cfg.Token),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, openai.WithBaseURL(cfg.BaseURL))
	}
	return openai.New(opts...)
}
