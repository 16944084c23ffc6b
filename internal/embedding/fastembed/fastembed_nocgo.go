//go:build !cgo

// Package fastembed runs sentence-transformer models locally through ONNX.
package fastembed

import (
	"context"
	"fmt"

	"ragqa/internal/domain"
)

// Config holds configuration for the FastEmbed provider.
type Config struct {
	Model     string
	CacheDir  string
	MaxLength int
	BatchSize int
}

// Embedder is a stub for binaries built without cgo.
type Embedder struct{}

// New reports that fastembed needs a cgo build.
func New(_ Config) (*Embedder, error) {
	return nil, fmt.Errorf("%w: fastembed requires a cgo build", domain.ErrUnavailable)
}

func (e *Embedder) Name() string { return "fastembed" }

func (e *Embedder) Prepare(corpus []string) error { return nil }

func (e *Embedder) Dimension() int { return 0 }

func (e *Embedder) Embed(_ context.Context, _ []string) ([][]float32, error) {
	return nil, fmt.Errorf("%w: fastembed requires a cgo build", domain.ErrUnavailable)
}

func (e *Embedder) Close() error { return nil }
