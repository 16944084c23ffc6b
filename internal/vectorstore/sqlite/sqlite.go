// Package sqlite keeps a flat exact index on disk. Vectors are stored as
// little-endian float32 blobs and ranked in process.
package sqlite

import (
	"context"
	"fmt"
	"sync"

	sqlitedriver "github.com/glebarez/sqlite"
	"go.uber.org/zap"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
	"gorm.io/gorm/logger"

	"ragqa/internal/domain"
	"ragqa/internal/vecmath"
)

// chunkRow is one indexed chunk. Seq preserves insertion order for tie breaks.
type chunkRow struct {
	Seq        uint   `gorm:"primaryKey;autoIncrement"`
	ChunkID    string `gorm:"uniqueIndex;not null"`
	DocumentID string `gorm:"index"`
	Title      string
	Position   int
	Text       string
	Vector     []byte
}

func (chunkRow) TableName() string { return "chunks" }

// indexMeta records the dimension and metric the index was built with.
type indexMeta struct {
	ID        uint `gorm:"primaryKey"`
	Dimension int
	Metric    string
}

func (indexMeta) TableName() string { return "index_meta" }

// Storage is safe for concurrent use.
type Storage struct {
	mu        sync.RWMutex
	db        *gorm.DB
	metric    domain.Metric
	dimension int
	logger    *zap.Logger
}

// NewStorage opens (or creates) the database file at path.
func NewStorage(path string, metric domain.Metric, log *zap.Logger) (*Storage, error) {
	if log == nil {
		log = zap.NewNop()
	}
	if metric == "" {
		metric = domain.MetricCosine
	}
	if !vecmath.ValidMetric(metric) {
		return nil, fmt.Errorf("%w: %q", domain.ErrUnsupportedMetric, metric)
	}
	db, err := gorm.Open(sqlitedriver.Open(path), &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)})
	if err != nil {
		return nil, fmt.Errorf("opening sqlite index %s: %w", path, err)
	}
	if err := db.AutoMigrate(&chunkRow{}, &indexMeta{}); err != nil {
		return nil, fmt.Errorf("migrating sqlite index: %w", err)
	}
	s := &Storage{db: db, metric: metric, logger: log}
	var meta indexMeta
	if err := db.Limit(1).Find(&meta).Error; err != nil {
		return nil, err
	}
	if meta.Dimension > 0 {
		if domain.Metric(meta.Metric) != metric {
			log.Warn("sqlite index was built with another metric; rebuild on next ingest",
				zap.String("stored", meta.Metric), zap.String("configured", string(metric)))
		}
		s.dimension = meta.Dimension
	}
	log.Info("sqlite index opened", zap.String("path", path), zap.Int("dimension", s.dimension))
	return s, nil
}

func (s *Storage) Init(ctx context.Context, dimension int) error {
	if dimension <= 0 {
		return fmt.Errorf("%w: invalid dimension %d", domain.ErrInvalidConfig, dimension)
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := indexMeta{ID: 1, Dimension: dimension, Metric: string(s.metric)}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{UpdateAll: true}).Create(&meta).Error
	if err != nil {
		return fmt.Errorf("saving index metadata: %w", err)
	}
	s.dimension = dimension
	return nil
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
	rows := make([]chunkRow, len(chunks))
	for i, ch := range chunks {
		if len(vectors[i]) != s.dimension {
			return fmt.Errorf("%w: got %d, want %d", domain.ErrDimensionMismatch, len(vectors[i]), s.dimension)
		}
		rows[i] = chunkRow{
			ChunkID:    ch.ChunkID,
			DocumentID: ch.DocumentID,
			Title:      ch.Title,
			Position:   ch.Index,
			Text:       ch.Text,
			Vector:     vecmath.Encode(vectors[i]),
		}
	}
	err := s.db.WithContext(ctx).Clauses(clause.OnConflict{
		Columns:   []clause.Column{{Name: "chunk_id"}},
		DoUpdates: clause.AssignmentColumns([]string{"document_id", "title", "position", "text", "vector"}),
	}).CreateInBatches(rows, 200).Error
	if err != nil {
		return fmt.Errorf("upserting chunks: %w", err)
	}
	return nil
}

func (s *Storage) Search(ctx context.Context, vector []float32, topK int) ([]domain.SearchResult, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if topK <= 0 {
		topK = domain.DefaultTopK
	}
	if len(vector) != s.dimension {
		return nil, fmt.Errorf("%w: query has %d components, index has %d", domain.ErrDimensionMismatch, len(vector), s.dimension)
	}
	var rows []chunkRow
	if err := s.db.WithContext(ctx).Order("seq").Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("reading chunks: %w", err)
	}
	candidates := make([][]float32, len(rows))
	for i, r := range rows {
		v, err := vecmath.Decode(r.Vector)
		if err != nil {
			return nil, fmt.Errorf("chunk %s: %w", r.ChunkID, err)
		}
		candidates[i] = v
	}
	ranked, err := vecmath.Rank(s.metric, vector, candidates, topK)
	if err != nil {
		return nil, err
	}
	out := make([]domain.SearchResult, 0, len(ranked))
	for _, r := range ranked {
		row := rows[r.Index]
		out = append(out, domain.SearchResult{
			Chunk: domain.Chunk{
				DocumentID: row.DocumentID,
				ChunkID:    row.ChunkID,
				Title:      row.Title,
				Text:       row.Text,
				Index:      row.Position,
			},
			Score:    r.Score,
			Distance: r.Distance,
		})
	}
	return out, nil
}

func (s *Storage) Count(ctx context.Context) (int, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	var n int64
	if err := s.db.WithContext(ctx).Model(&chunkRow{}).Count(&n).Error; err != nil {
		return 0, err
	}
	return int(n), nil
}

func (s *Storage) Clear(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.db.WithContext(ctx).Session(&gorm.Session{AllowGlobalUpdate: true}).Delete(&chunkRow{}).Error
	if err != nil {
		return fmt.Errorf("clearing chunks: %w", err)
	}
	return nil
}

// Close closes the underlying database handle.
func (s *Storage) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
