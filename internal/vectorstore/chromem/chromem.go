// Package chromem stores chunks in an embedded chromem-go collection,
// either in memory or persisted to a directory.
package chromem

import (
	"context"
	"errors"
	"fmt"
	"strconv"
	"sync"

	"github.com/philippgille/chromem-go"
	"go.uber.org/zap"

	"ragqa/internal/domain"
)

const (
	metaDocumentID = "document_id"
	metaTitle      = "title"
	metaIndex      = "index"
)

// Config configures the store. An empty Path keeps the collection in memory.
type Config struct {
	Path       string
	Compress   bool
	Collection string
}

// Storage ranks by cosine similarity only.
type Storage struct {
	mu         sync.RWMutex
	db         *chromem.DB
	name       string
	dimension  int
	collection *chromem.Collection
	logger     *zap.Logger
}

// NewStorage opens the database. Vectors are always supplied by the caller,
// so the collection's embedding function refuses to run.
func NewStorage(cfg Config, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Collection == "" {
		cfg.Collection = "rag_chunks"
	}
	var (
		db  *chromem.DB
		err error
	)
	if cfg.Path == "" {
		db = chromem.NewDB()
	} else {
		db, err = chromem.NewPersistentDB(cfg.Path, cfg.Compress)
		if err != nil {
			return nil, fmt.Errorf("opening chromem db at %s: %w", cfg.Path, err)
		}
	}
	s := &Storage{db: db, name: cfg.Collection, logger: logger}
	// a persistent directory may already hold the collection; its dimension
	// is learned from the first successful search
	if c := db.GetCollection(cfg.Collection, precomputedOnly); c != nil {
		s.collection = c
	}
	logger.Info("chromem store opened",
		zap.String("path", cfg.Path),
		zap.String("collection", cfg.Collection),
		zap.Bool("reopened", s.collection != nil))
	return s, nil
}

func precomputedOnly(context.Context, string) ([]float32, error) {
	return nil, errors.New("chromem: embeddings must be supplied by the caller")
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrInvalidConfig, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	c, err := s.db.GetOrCreateCollection(s.name, nil, precomputedOnly)
	if err != nil {
		return fmt.Errorf("getting/creating collection %s: %w", s.name, err)
	}
	s.collection = c
	s.dimension = dimension
	return nil
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.collection == nil || s.dimension == 0 {
		return fmt.Errorf("%w: chromem collection not initialised", domain.ErrNotPrepared)
	}
	docs := make([]chromem.Document, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vectors[i]), s.dimension)
		}
		docs[i] = chromem.Document{
			ID:      ch.ChunkID,
			Content: ch.Text,
			Metadata: map[string]string{
				metaDocumentID: ch.DocumentID,
				metaTitle:      ch.Title,
				metaIndex:      strconv.Itoa(ch.Index),
			},
			Embedding: vectors[i],
		}
	}
	// embeddings are precomputed so one worker is enough
	if err := s.collection.AddDocuments(ctx, docs, 1); err != nil {
		return fmt.Errorf("adding documents: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	s.mu.RLock()
	collection, dimension := s.collection, s.dimension
	s.mu.RUnlock()
	if collection == nil {
		return nil, nil
	}
	if dimension > 0 && len(vector) != dimension {
		return nil, fmt.Errorf("%w: query has %d components, index has %d", domain.ErrDimensionMismatch, len(vector), dimension)
	}
	// chromem requires nResults <= document count
	n := collection.Count()
	if n == 0 {
		return nil, nil
	}
	if topK > n {
		topK = n
	}
	res, err := collection.QueryEmbedding(ctx, vector, topK, nil, nil)
	if err != nil {
		if dimension == 0 && ctx.Err() == nil {
			// chromem rejects a query whose length differs from the stored vectors
			return nil, fmt.Errorf("%w: querying collection %s: %v", domain.ErrDimensionMismatch, s.name, err)
		}
		return nil, fmt.Errorf("querying collection %s: %w", s.name, err)
	}
	if dimension == 0 && len(res) > 0 {
		s.mu.Lock()
		if s.collection == collection && s.dimension == 0 {
			s.dimension = len(res[0].Embedding)
		}
		s.mu.Unlock()
	}
	out := make([]domain.SearchResult, 0, len(res))
	for _, r := range res {
		idx, _ := strconv.Atoi(r.Metadata[metaIndex])
		sim := float64(r.Similarity)
		out = append(out, domain.SearchResult{
			Chunk: domain.Chunk{
				DocumentID: r.Metadata[metaDocumentID],
				ChunkID:    r.ID,
				Title:      r.Metadata[metaTitle],
				Text:       r.Content,
				Index:      idx,
			},
			Score:    sim,
			Distance: 1 - sim,
		})
	}
	return out, nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.collection == nil {
		return 0, nil
	}
	return s.collection.Count(), nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.db.DeleteCollection(s.name); err != nil {
		return fmt.Errorf("deleting collection %s: %w", s.name, err)
	}
	s.collection = nil
	s.dimension = 0
	return nil
}

// Metric reports the only metric chromem ranks by.
func (s *Storage) Metric() domain.Metric { return domain.MetricCosine }
