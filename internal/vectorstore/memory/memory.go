package memory

import (
	"context"
	"fmt"
	"sync"

	"ragqa/internal/domain"
	"ragqa/internal/vecmath"
)

// Storage is a flat in-memory index using exact brute-force search.
type Storage struct {
	mu        sync.RWMutex
	metric    domain.Metric
	dimension int
	vectors   [][]float32
	chunks    []domain.Chunk
}

// NewStorage creates an empty store ranking by metric (cosine when empty).
func NewStorage(metric domain.Metric) (*Storage, error) {
	if metric == "" {
		metric = domain.MetricCosine
	}
	if !vecmath.ValidMetric(metric) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMetric, metric)
	}
	return &Storage{metric: metric}, nil
}

func (s *Storage) Init(_ context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrInvalidConfig, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	s.dimension = dimension
	s.vectors = nil
	s.chunks = nil
	return nil
}

func (s *Storage) Upsert(_ context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, v := range vectors {
		if len(v) != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(v), s.dimension)
		}
	}
	pos := make(map[string]int, len(s.chunks))
	for i, ch := range s.chunks {
		pos[ch.ChunkID] = i
	}
	for i, ch := range chunks {
		if j, ok := pos[ch.ChunkID]; ok {
			s.chunks[j] = ch
			s.vectors[j] = vectors[i]
			continue
		}
		pos[ch.ChunkID] = len(s.chunks)
		s.chunks = append(s.chunks, ch)
		s.vectors = append(s.vectors, vectors[i])
	}
	return nil
}

func (s *Storage) Search(_ context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d components, index has %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	ranked, err := vecmath.Rank(s.metric, vector, s.vectors, topK)
	if err != nil {
		return nil, err
	}
	results := make([]domain.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		results = append(results, domain.SearchResult{Chunk: s.chunks[r.Index], Score: r.Score, Distance: r.Distance})
	}
	return results, nil
}

func (s *Storage) Count(_ context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.chunks), nil
}

func (s *Storage) Clear(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.vectors = nil
	s.chunks = nil
	return nil
}
