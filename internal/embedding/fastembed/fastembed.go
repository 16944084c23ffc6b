//go:build cgo

// Package fastembed runs sentence-transformer models locally through ONNX.
package fastembed

import (
	"context"
	"fmt"
	"path/filepath"
	"sync"

	fastembed "github.com/anush008/fastembed-go"

	"ragqa/internal/domain"
)

// Config holds configuration for the FastEmbed provider.
type Config struct {
	// Model is the embedding model to use, e.g. sentence-transformers/all-MiniLM-L6-v2.
	Model string

	// CacheDir is the directory model files are downloaded to.
	CacheDir string

	// MaxLength is the maximum input sequence length.
	MaxLength int

	// BatchSize is the number of texts embedded per ONNX call.
	BatchSize int
}

var modelMapping = map[string]fastembed.EmbeddingModel{
	"BAAI/bge-small-en-v1.5":                 fastembed.BGESmallENV15,
	"BAAI/bge-small-en":                      fastembed.BGESmallEN,
	"BAAI/bge-base-en-v1.5":                  fastembed.BGEBaseENV15,
	"BAAI/bge-base-en":                       fastembed.BGEBaseEN,
	"BAAI/bge-small-zh-v1.5":                 fastembed.BGESmallZH,
	"sentence-transformers/all-MiniLM-L6-v2": fastembed.AllMiniLML6V2,
}

// Embedder provides embedding generation using local ONNX models.
type Embedder struct {
	mu        sync.Mutex
	model     *fastembed.FlagEmbedding
	modelName string
	dimension int
	batchSize int
}

// New loads the model, downloading it into CacheDir on first use.
func New(cfg Config) (*Embedder, error) {
	if cfg.Model == "" {
		cfg.Model = DefaultModel
	}
	model, ok := modelMapping[cfg.Model]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported fastembed model %q", domain.ErrInvalidConfig, cfg.Model)
	}
	dimension, _ := ModelDimension(cfg.Model)
	if cfg.CacheDir == "" {
		cfg.CacheDir = filepath.Join(".", "local_cache")
	}
	if cfg.MaxLength == 0 {
		cfg.MaxLength = 512
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = 256
	}
	showProgress := false
	flagEmbed, err := fastembed.NewFlagEmbedding(&fastembed.InitOptions{
		Model:                model,
		CacheDir:             cfg.CacheDir,
		MaxLength:            cfg.MaxLength,
		ShowDownloadProgress: &showProgress,
	})
	if err != nil {
		return nil, fmt.Errorf("initializing fastembed: %w", err)
	}
	return &Embedder{
		model:     flagEmbed,
		modelName: cfg.Model,
		dimension: dimension,
		batchSize: cfg.BatchSize,
	}, nil
}

func (e *Embedder) Name() string { return "fastembed:" + e.modelName }

func (e *Embedder) Prepare(corpus []string) error { return nil }

func (e *Embedder) Dimension() int { return e.dimension }

// Embed runs documents and queries through the same model call so both land in one vector space.
func (e *Embedder) Embed(ctx context.Context, texts []string) ([][]float32, error) {
	if len(texts) == 0 {
		return nil, fmt.Errorf("%w: texts cannot be empty", domain.ErrEmptyInput)
	}
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	vectors, err := e.model.Embed(texts, e.batchSize)
	if err != nil {
		return nil, fmt.Errorf("fastembed: %w", err)
	}
	return vectors, nil
}

// Close releases the ONNX session.
func (e *Embedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.model == nil {
		return nil
	}
	err := e.model.Destroy()
	e.model = nil
	return err
}
