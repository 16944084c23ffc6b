// Package embedding builds the configured text embedder.
package embedding

import (
	"fmt"
	"time"

	"go.uber.org/zap"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/cache"
	"ragqa/internal/embedding/fastembed"
	"ragqa/internal/embedding/openai"
	"ragqa/internal/embedding/tfidf"
)

// Embedder converts free text into numeric vectors.
type Embedder = domain.Embedder

// New creates the embedder selected by cfg.Type, wrapped in the Redis
// cache when one is configured.
func New(cfg config.EmbedderConfig, logger *zap.Logger) (Embedder, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	var emb Embedder
	switch cfg.Type {
	case "tfidf", "":
		emb = tfidf.NewEmbedder()
	case "openai":
		c, err := openai.NewClient(openai.Config{
			BaseURL:   cfg.OpenAI.BaseURL,
			APIKeyEnv: cfg.OpenAI.APIKeyEnv,
			Model:     cfg.OpenAI.Model,
			Timeout:   time.Duration(cfg.OpenAI.TimeoutSecs) * time.Second,
			BatchSize: cfg.OpenAI.BatchSize,
		})
		if err != nil {
			return nil, fmt.Errorf("openai embedder init failed: %w", err)
		}
		emb = c
	case "fastembed":
		fe, err := fastembed.New(fastembed.Config{
			Model:     cfg.FastEmbed.Model,
			CacheDir:  cfg.FastEmbed.CacheDir,
			MaxLength: cfg.FastEmbed.MaxLength,
		})
		if err != nil {
			return nil, fmt.Errorf("fastembed init failed: %w", err)
		}
		emb = fe
	default:
		return nil, fmt.Errorf("%w: unknown embedder %q", domain.ErrInvalidConfig, cfg.Type)
	}
	logger.Info("embedder ready", zap.String("embedder", emb.Name()))

	switch cfg.Cache.Type {
	case "", "none":
		return emb, nil
	case "redis":
		if cfg.Type == "tfidf" || cfg.Type == "" {
			return nil, fmt.Errorf("%w: tfidf vectors depend on the corpus and cannot be cached", domain.ErrInvalidConfig)
		}
		r := cfg.Cache.Redis
		cached, err := cache.NewRedisEmbedder(emb, cache.RedisConfig{
			Addr:      r.Addr,
			Password:  r.Password,
			DB:        r.DB,
			TTL:       time.Duration(r.TTLSecs) * time.Second,
			KeyPrefix: r.KeyPrefix,
		}, logger)
		if err != nil {
			return nil, err
		}
		return cached, nil
	default:
		return nil, fmt.Errorf("%w: unknown embedding cache %q", domain.ErrInvalidConfig, cfg.Cache.Type)
	}
}
