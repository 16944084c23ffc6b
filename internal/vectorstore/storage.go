// Package vectorstore builds the configured vector index backend.
package vectorstore

import (
	"fmt"
	"io"

	"go.uber.org/zap"

	"ragqa/internal/config"
	"ragqa/internal/domain"
	"ragqa/internal/vectorstore/chromem"
	"ragqa/internal/vectorstore/memory"
	"ragqa/internal/vectorstore/qdrant"
	"ragqa/internal/vectorstore/sqlite"
)

// Storage persists vectors and supports nearest-neighbour search.
type Storage = domain.VectorStore

// New creates the store selected by cfg.Type.
func New(cfg config.VectorStoreConfig, logger *zap.Logger) (Storage, error) {
	metric := domain.Metric(cfg.Metric)
	var (
		st  Storage
		err error
	)
	switch cfg.Type {
	case "memory", "":
		st, err = unwrap(memory.NewStorage(metric))
	case "chromem":
		if metric != "" && metric != domain.MetricCosine {
			return nil, fmt.Errorf("%w: chromem ranks by cosine only, got %q", domain.ErrUnsupportedMetric, metric)
		}
		st, err = unwrap(chromem.NewStorage(chromem.Config{
			Path:       cfg.Chromem.Path,
			Compress:   cfg.Chromem.Compress,
			Collection: cfg.Chromem.Collection,
		}, logger))
	case "qdrant":
		st, err = unwrap(qdrant.NewStorage(qdrant.Config{
			Host:       cfg.Qdrant.Host,
			Port:       cfg.Qdrant.Port,
			APIKey:     cfg.Qdrant.APIKey,
			UseTLS:     cfg.Qdrant.UseTLS,
			Collection: cfg.Qdrant.Collection,
			Metric:     metric,
		}, logger))
	case "sqlite":
		st, err = unwrap(sqlite.NewStorage(cfg.SQLite.Path, metric, logger))
	default:
		return nil, fmt.Errorf("%w: unknown vector store %q", domain.ErrInvalidConfig, cfg.Type)
	}
	if err != nil {
		return nil, err
	}
	return st, nil
}

// unwrap keeps a failed constructor's nil pointer out of the interface.
func unwrap[T Storage](s T, err error) (Storage, error) {
	if err != nil {
		return nil, err
	}
	return s, nil
}

// Close releases backend resources when the store holds any.
func Close(s Storage) error {
	if c, ok := s.(io.Closer); ok {
		return c.Close()
	}
	return nil
}
