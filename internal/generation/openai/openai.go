// Package openai generates answers with a hosted chat completions model.
package openai

import (
	"context"
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/openai/openai-go"
	"github.com/openai/openai-go/option"
	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"ragqa/internal/domain"
)

const defaultSystemPrompt = "You answer questions using only the provided context."

// Config configures the chat completions client.
type Config struct {
	BaseURL   string
	APIKeyEnv string
	Model     string
	Timeout   time.Duration
	// RequestsPerSecond limits outgoing requests; zero disables the limit.
	RequestsPerSecond float64
	SystemPrompt      string
}

// Generator sends the assembled prompt as a single user message.
// The SDK's own retries are disabled; failures go straight to the caller.
type Generator struct {
	client  openai.Client
	model   string
	system  string
	limiter *rate.Limiter
	logger  *zap.Logger
}

// New reads the API key from the environment variable named by cfg.APIKeyEnv.
func New(cfg Config, logger *zap.Logger) (*Generator, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.APIKeyEnv == "" {
		cfg.APIKeyEnv = "OPENAI_API_KEY"
	}
	key := os.Getenv(cfg.APIKeyEnv)
	if key == "" {
		return nil, fmt.Errorf("%w: env %s is not set", domain.ErrMissingAPIKey, cfg.APIKeyEnv)
	}
	if cfg.Model == "" {
		cfg.Model = "gpt-4o-mini"
	}
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.SystemPrompt == "" {
		cfg.SystemPrompt = defaultSystemPrompt
	}
	opts := []option.RequestOption{
		option.WithAPIKey(key),
		option.WithMaxRetries(0),
		option.WithRequestTimeout(cfg.Timeout),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	g := &Generator{
		client: openai.NewClient(opts...),
		model:  cfg.Model,
		system: cfg.SystemPrompt,
		logger: logger,
	}
	if cfg.RequestsPerSecond > 0 {
		g.limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}
	return g, nil
}

func (g *Generator) Name() string { return "openai:" + g.model }

// Generate returns the first choice's content. NumBeams has no counterpart
// in the chat API and is ignored.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if strings.TrimSpace(req.Prompt) == "" {
		return "", fmt.Errorf("%w: prompt is empty", domain.ErrEmptyInput)
	}
	if g.limiter != nil {
		if err := g.limiter.Wait(ctx); err != nil {
			return "", err
		}
	}
	model := g.model
	if req.Params.Model != "" {
		model = req.Params.Model
	}
	params := openai.ChatCompletionNewParams{
		Model: openai.ChatModel(model),
		Messages: []openai.ChatCompletionMessageParamUnion{
			openai.SystemMessage(g.system),
			openai.UserMessage(req.Prompt),
		},
		Temperature: openai.Float(req.Params.Temperature),
	}
	if req.Params.MaxTokens > 0 {
		params.MaxCompletionTokens = openai.Int(int64(req.Params.MaxTokens))
	}
	start := time.Now()
	resp, err := g.client.Chat.Completions.New(ctx, params)
	if err != nil {
		return "", fmt.Errorf("chat completion: %w", err)
	}
	g.logger.Debug("chat completion",
		zap.String("model", model),
		zap.Duration("took", time.Since(start)),
		zap.Int64("completion_tokens", resp.Usage.CompletionTokens))
	if len(resp.Choices) == 0 || strings.TrimSpace(resp.Choices[0].Message.Content) == "" {
		return "", domain.ErrEmptyCompletion
	}
	return strings.TrimSpace(resp.Choices[0].Message.Content), nil
}
