// Package llm wraps the hosted language models used to write and explain queries.
package llm

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/mohammad-safakhou/loksabha/config"
)

// Provider names a model backend.
type Provider string

const (
	Gemini Provider = "gemini"
	OpenAI Provider = "openai"
)

// Generator turns a prompt into text.
type Generator interface {
	Generate(ctx context.Context, prompt string) (string, error)
}

// GeneratorFunc adapts a function to Generator.
type GeneratorFunc func(ctx context.Context, prompt string) (string, error)

func (f GeneratorFunc) Generate(ctx context.Context, prompt string) (string, error) {
	return f(ctx, prompt)
}

// ErrEmptyResponse is returned when the model answers with no text.
var ErrEmptyResponse = errors.New("llm: empty response")

// New builds the configured backend wrapped with timeout and retry handling.
// When no api key is configured the provider's conventional environment variable is used.
func New(ctx context.Context, cfg config.LLMConfig) (Generator, error) {
	cfg = cfg.Normalize()
	key := strings.TrimSpace(cfg.APIKey)

	var (
		gen Generator
		err error
	)
	switch Provider(cfg.Provider) {
	case Gemini:
		if key == "" {
			key = os.Getenv("GEMINI_API_KEY")
		}
		if key == "" {
			return nil, errors.New("gemini api key not set (llm.api_key or GEMINI_API_KEY)")
		}
		gen, err = NewGeminiClient(ctx, key, cfg.Model, cfg.Temperature)
	case OpenAI:
		if key == "" {
			key = os.Getenv("OPENAI_API_KEY")
		}
		if key == "" {
			return nil, errors.New("openai api key not set (llm.api_key or OPENAI_API_KEY)")
		}
		gen = NewOpenAIClient(key, cfg.BaseURL, cfg.Model, cfg.Temperature)
	default:
		return nil, fmt.Errorf("unsupported llm provider %q", cfg.Provider)
	}
	if err != nil {
		return nil, err
	}
	return NewRetrying(gen, cfg.Timeout, cfg.MaxRetries, cfg.Backoff), nil
}
