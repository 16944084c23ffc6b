// Package ollama generates answers with a local model served by Ollama.
package ollama

import (
	"context"
	"fmt"
	"strings"

	"github.com/tmc/langchaingo/llms"
	lcollama "github.com/tmc/langchaingo/llms/ollama"
	"go.uber.org/zap"

	"ragqa/internal/domain"
)

// Config selects the server and model.
type Config struct {
	ServerURL string
	Model     string
}

// Generator wraps a langchaingo model.
type Generator struct {
	llm    llms.Model
	model  string
	logger *zap.Logger
}

// New creates a client for cfg.Model. No request is made until Generate.
func New(cfg Config, logger *zap.Logger) (*Generator, error) {
	if cfg.Model == "" {
		cfg.Model = "llama3.2"
	}
	opts := []lcollama.Option{lcollama.WithModel(cfg.Model)}
	if cfg.ServerURL != "" {
		opts = append(opts, lcollama.WithServerURL(cfg.ServerURL))
	}
	llm, err := lcollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("creating ollama client: %w", err)
	}
	return newWithModel(llm, cfg.Model, logger), nil
}

func newWithModel(llm llms.Model, model string, logger *zap.Logger) *Generator {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Generator{llm: llm, model: model, logger: logger}
}

func (g *Generator) Name() string { return "ollama:" + g.model }

func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", domain.ErrEmptyInput)
	}
	out, err := llms.GenerateFromSinglePrompt(ctx, g.llm, req.Prompt, callOptions(req.Params)...)
	if err != nil {
		return "", fmt.Errorf("ollama generate: %w", err)
	}
	out = strings.TrimSpace(out)
	if out == "" {
		return "", domain.ErrEmptyCompletion
	}
	return out, nil
}

func callOptions(p domain.GenerationParams) []llms.CallOption {
	opts := []llms.CallOption{llms.WithTemperature(p.Temperature)}
	if p.MaxTokens > 0 {
		opts = append(opts, llms.WithMaxTokens(p.MaxTokens))
	}
	if p.Model != "" {
		opts = append(opts, llms.WithModel(p.Model))
	}
	return opts
}
