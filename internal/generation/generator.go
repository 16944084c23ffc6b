// Package generation builds the configured answer generator.
package generation

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/generation/extractive"
	"ragqa/internal/generation/ollama"
	"ragqa/internal/generation/openai"
)

// New creates the generator selected by cfg.Type.
func New(cfg config.GeneratorConfig, logger *zap.Logger) (domain.Generator, error) {
	switch cfg.Type {
	case "extractive", "":
		return extractive.New(), nil
	case "openai":
		g, err := openai.New(openai.Config{
			BaseURL:           cfg.OpenAI.BaseURL,
			APIKeyEnv:         cfg.OpenAI.APIKeyEnv,
			Model:             cfg.OpenAI.Model,
			Timeout:           time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			RequestsPerSecond: cfg.OpenAI.RequestsPerSecond,
			SystemPrompt:      cfg.OpenAI.SystemPrompt,
		}, logger)
		if err != nil {
			return nil, fmt.Errorf("openai generator init failed: %w", err)
		}
		return g, nil
	case "ollama":
		g, err := ollama.New(ollama.Config{ServerURL: cfg.Ollama.ServerURL, Model: cfg.Ollama.Model}, logger)
		if err != nil {
			return nil, fmt.Errorf("ollama generator init failed: %w", err)
		}
		return g, nil
	default:
		return nil, fmt.Errorf("%w: unknown generator %q", domain.ErrInvalidConfig, cfg.Type)
	}
}

// Params returns the default generation parameters from cfg.
func Params(cfg config.GeneratorConfig) domain.GenerationParams {
	return domain.GenerationParams{
		MaxTokens:   cfg.MaxTokens,
		Temperature: cfg.Temperature,
		NumBeams:    cfg.NumBeams,
	}
}
