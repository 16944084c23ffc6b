// Package cache wraps an embedder with a Redis-backed vector cache.
package cache

import (
	"context"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"fmt"
	"time"

	"github.com/go-redis/redis/v8"
	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/vecmath"
)

// RedisConfig holds Redis connection and cache behaviour settings.
type RedisConfig struct {
	Addr      string
	Password  string
	DB        int
	TTL       time.Duration
	KeyPrefix string
}

// RedisEmbedder serves repeated texts from Redis and embeds the rest with the wrapped embedder.
// Cache failures never fail a call; they are logged and treated as misses.
type RedisEmbedder struct {
	inner     domain.Embedder
	client    *redis.Client
	ttl       time.Duration
	keyPrefix string
	logger    *zap.Logger
}

// NewRedisEmbedder wraps inner. The client is created lazily by go-redis; no connection is made here.
func NewRedisEmbedder(inner domain.Embedder, cfg RedisConfig, logger *zap.Logger) (*RedisEmbedder, error) {
	if inner == nil {
		return nil, fmt.Errorf("%w: inner embedder is required", domain.ErrInvalidConfig)
	}
	if cfg.Addr == "" {
		return nil, fmt.Errorf("%w: redis address is required", domain.ErrInvalidConfig)
	}
	if cfg.KeyPrefix == "" {
		cfg.KeyPrefix = "rag:emb:"
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	client := redis.NewClient(&redis.Options{
		Addr:        cfg.Addr,
		Password:    cfg.Password,
		DB:          cfg.DB,
		DialTimeout: 2 * time.Second,
		MaxRetries:  -1,
	})
	return &RedisEmbedder{
		inner:     inner,
		client:    client,
		ttl:       cfg.TTL,
		keyPrefix: cfg.KeyPrefix,
		logger:    logger,
	}, nil
}

func (c *RedisEmbedder) Name() string { return c.inner.Name() }

func (c *RedisEmbedder) Prepare(corpus []string) error { return c.inner.Prepare(corpus) }

func (c *RedisEmbedder) Dimension() int { return c.inner.Dimension() }

// Embed looks every text up in Redis and embeds only the misses, in one inner call.
func (c *RedisEmbedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", domain.ErrEmptyInput)
	}
	out := make([][]float32, len(texts))
	var missIdx []int
	var missTexts []string
	for i, text := range texts {
		if v, ok := c.get(ctx, text); ok {
			out[i] = v
			continue
		}
		missIdx = append(missIdx, i)
		missTexts = append(missTexts, text)
	}
	if len(missTexts) == 0 {
		return out, nil
	}
	vectors, err := c.inner.Embed(ctx, missTexts)
	if err != nil {
		return nil, err
	}
	for j, i := range missIdx {
		out[i] = vectors[j]
		c.set(ctx, missTexts[j], vectors[j])
	}
	return out, nil
}

// Close closes the Redis client.
func (c *RedisEmbedder) Close() error { return c.client.Close() }

func (c *RedisEmbedder) key(text string) string {
	h := sha256.Sum256([]byte(text))
	return c.keyPrefix + c.inner.Name() + ":" + hex.EncodeToString(h[:])
}

func (c *RedisEmbedder) get(ctx context.Context, text string) ([]float32, bool) {
	data, err := c.client.Get(ctx, c.key(text)).Bytes()
	if err != nil {
		if !errors.Is(err, redis.Nil) {
			c.logger.Debug("embedding cache get failed", zap.Error(err))
		}
		return nil, false
	}
	v, err := vecmath.Decode(data)
	if err != nil || len(v) == 0 {
		c.logger.Warn("discarding corrupt cached embedding", zap.Error(err))
		return nil, false
	}
	return v, true
}

func (c *RedisEmbedder) set(ctx context.Context, text string, v []float32) {
	if err := c.client.Set(ctx, c.key(text), vecmath.Encode(v), c.ttl).Err(); err != nil {
		c.logger.Debug("embedding cache set failed", zap.Error(err))
	}
}
