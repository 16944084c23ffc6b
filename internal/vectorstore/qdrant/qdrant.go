// Package qdrant stores chunks in a Qdrant collection over gRPC.
package qdrant

import (
	"context"
	"fmt"
	"sync"

	"github.com/google/uuid"
	"github.com/qdrant/go-client/qdrant"
	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/vecmath"
)

// pointNamespace seeds the deterministic point IDs derived from chunk IDs.
var pointNamespace = uuid.MustParse("6f1c3b8e-2a55-4d8e-9a7e-3c0b1f4d2e61")

// Config contains connection details for the collection.
type Config struct {
	Host       string
	Port       int
	APIKey     string
	UseTLS     bool
	Collection string
	Metric     domain.Metric
}

// Storage creates the collection if missing and ranks by cosine or Euclid distance.
type Storage struct {
	mu        sync.RWMutex
	client    *qdrant.Client
	cfg       Config
	dimension int
	logger    *zap.Logger
}

// NewStorage builds the gRPC client. No request is made until Init or the
// first Search, which reads the dimension of an existing collection.
func NewStorage(cfg Config, logger *zap.Logger) (*Storage, error) {
	if logger == nil {
		logger = zap.NewNop()
	}
	if cfg.Metric == "" {
		cfg.Metric = domain.MetricCosine
	}
	if !vecmath.ValidMetric(cfg.Metric) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMetric, cfg.Metric)
	}
	if cfg.Collection == "" {
		cfg.Collection = "rag_chunks"
	}
	if !cfg.UseTLS {
		logger.Warn("qdrant gRPC connection is plaintext", zap.String("host", cfg.Host))
	}
	client, err := qdrant.NewClient(&qdrant.Config{
		Host:                   cfg.Host,
		Port:                   cfg.Port,
		APIKey:                 cfg.APIKey,
		UseTLS:                 cfg.UseTLS,
		SkipCompatibilityCheck: true,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: qdrant client: %v", domain.ErrUnavailable, err)
	}
	return &Storage{client: client, cfg: cfg, logger: logger}, nil
}

func distance(m domain.Metric) qdrant.Distance {
	if m == domain.MetricL2 {
		return qdrant.Distance_Euclid
	}
	return qdrant.Distance_Cosine
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrInvalidConfig, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.cfg.Collection, err)
	}
	if exists {
		info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
		if err != nil {
			return fmt.Errorf("reading collection %s: %w", s.cfg.Collection, err)
		}
		if size := vectorSize(info); size != dimension {
			return fmt.Errorf("%w: collection %s holds %d-dimensional vectors, want %d", domain.ErrDimensionMismatch, s.cfg.Collection, size, dimension)
		}
	} else {
		err := s.client.CreateCollection(ctx, &qdrant.CreateCollection{
			CollectionName: s.cfg.Collection,
			VectorsConfig: qdrant.NewVectorsConfig(&qdrant.VectorParams{
				Size:     uint64(dimension),
				Distance: distance(s.cfg.Metric),
			}),
		})
		if err != nil {
			return fmt.Errorf("creating collection %s: %w", s.cfg.Collection, err)
		}
		s.logger.Info("qdrant collection created", zap.String("collection", s.cfg.Collection), zap.Int("dimension", dimension))
	}
	s.dimension = dimension
	return nil
}

// PointID maps a chunk ID onto the UUID Qdrant stores it under.
func PointID(chunkID string) string {
	return uuid.NewSHA1(pointNamespace, []byte(chunkID)).String()
}

func (s *Storage) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if len(chunks) != len(vectors) {
		return fmt.Errorf("chunks and vectors length mismatch: %d != %d", len(chunks), len(vectors))
	}
	if len(chunks) == 0 {
		return nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	points := make([]*qdrant.PointStruct, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vectors[i]), s.dimension)
		}
		points[i] = &qdrant.PointStruct{
			Id:      qdrant.NewIDUUID(PointID(ch.ChunkID)),
			Vectors: qdrant.NewVectors(vectors[i]...),
			Payload: payload(ch),
		}
	}
	_, err := s.client.Upsert(ctx, &qdrant.UpsertPoints{
		CollectionName: s.cfg.Collection,
		Wait:           qdrant.PtrOf(true),
		Points:         points,
	})
	if err != nil {
		return fmt.Errorf("upserting points to collection %s: %w", s.cfg.Collection, err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	dimension, err := s.loadDimension(ctx)
	if err != nil {
		return nil, err
	}
	if dimension == 0 {
		return nil, nil
	}
	if len(vector) != dimension {
		return nil, fmt.Errorf("%w: query has %d components, index has %d", domain.ErrDimensionMismatch, len(vector), dimension)
	}
	points, err := s.client.Query(ctx, &qdrant.QueryPoints{
		CollectionName: s.cfg.Collection,
		Query:          qdrant.NewQuery(vector...),
		Limit:          qdrant.PtrOf(uint64(topK)),
		WithPayload:    qdrant.NewWithPayload(true),
		Params:         &qdrant.SearchParams{Exact: qdrant.PtrOf(true)},
	})
	if err != nil {
		return nil, fmt.Errorf("querying collection %s: %w", s.cfg.Collection, err)
	}
	out := make([]domain.SearchResult, 0, len(points))
	for _, p := range points {
		score, dist := convertScore(s.cfg.Metric, p.GetScore())
		out = append(out, domain.SearchResult{Chunk: chunkFromPayload(p.GetPayload()), Score: score, Distance: dist})
	}
	return out, nil
}

// loadDimension returns the known dimension, reading it from the collection
// when the store was opened over an index built by an earlier run. It
// returns 0 when the collection does not exist.
func (s *Storage) loadDimension(ctx context.Context) (int, error) {
	s.mu.RLock()
	dimension := s.dimension
	s.mu.RUnlock()
	if dimension > 0 {
		return dimension, nil
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.dimension > 0 {
		return s.dimension, nil
	}
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return 0, fmt.Errorf("checking collection %s: %w", s.cfg.Collection, err)
	}
	if !exists {
		return 0, nil
	}
	info, err := s.client.GetCollectionInfo(ctx, s.cfg.Collection)
	if err != nil {
		return 0, fmt.Errorf("reading collection %s: %w", s.cfg.Collection, err)
	}
	s.dimension = vectorSize(info)
	s.logger.Info("qdrant collection reopened", zap.String("collection", s.cfg.Collection), zap.Int("dimension", s.dimension))
	return s.dimension, nil
}

// vectorSize reads the size of the collection's unnamed vector.
func vectorSize(info *qdrant.CollectionInfo) int {
	return int(info.GetConfig().GetParams().GetVectorsConfig().GetParams().GetSize())
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return 0, fmt.Errorf("checking collection %s: %w", s.cfg.Collection, err)
	}
	if !exists {
		return 0, nil
	}
	n, err := s.client.Count(ctx, &qdrant.CountPoints{
		CollectionName: s.cfg.Collection,
		Exact:          qdrant.PtrOf(true),
	})
	if err != nil {
		return 0, fmt.Errorf("counting collection %s: %w", s.cfg.Collection, err)
	}
	return int(n), nil
}

func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	exists, err := s.client.CollectionExists(ctx, s.cfg.Collection)
	if err != nil {
		return fmt.Errorf("checking collection %s: %w", s.cfg.Collection, err)
	}
	if !exists {
		return nil
	}
	if err := s.client.DeleteCollection(ctx, s.cfg.Collection); err != nil {
		return fmt.Errorf("deleting collection %s: %w", s.cfg.Collection, err)
	}
	s.dimension = 0
	return nil
}

// Close releases the gRPC connection.
func (s *Storage) Close() error { return s.client.Close() }

func payload(ch domain.Chunk) map[string]*qdrant.Value {
	return qdrant.NewValueMap(map[string]any{
		"document_id": ch.DocumentID,
		"chunk_id":    ch.ChunkID,
		"title":       ch.Title,
		"index":       int64(ch.Index),
		"text":        ch.Text,
	})
}

func chunkFromPayload(p map[string]*qdrant.Value) domain.Chunk {
	return domain.Chunk{
		DocumentID: p["document_id"].GetStringValue(),
		ChunkID:    p["chunk_id"].GetStringValue(),
		Title:      p["title"].GetStringValue(),
		Index:      int(p["index"].GetIntegerValue()),
		Text:       p["text"].GetStringValue(),
	}
}

// convertScore maps Qdrant's score onto similarity and distance. Qdrant
// reports cosine similarity for Cosine and the raw distance for Euclid.
func convertScore(m domain.Metric, raw float32) (score, dist float64) {
	v := float64(raw)
	if m == domain.MetricL2 {
		return 1 / (1 + v), v
	}
	return v, 1 - v
}
