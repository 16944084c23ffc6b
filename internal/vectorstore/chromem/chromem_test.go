package chromem

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func seeded(t *testing.T, cfg Config) *Storage {
	t.Helper()
	ctx := context.Background()
	s, err := NewStorage(cfg, nil)
	require.NoError(t, err)
	require.NoError(t, s.Init(ctx, 3))
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{
		{DocumentID: "a", ChunkID: "a:0", Title: "A", Text: "alpha"},
		{DocumentID: "b", ChunkID: "b:0", Title: "B", Text: "beta", Index: 2},
		{DocumentID: "c", ChunkID: "c:0", Title: "C", Text: "gamma"},
	}, [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}))
	return s
}

func TestOrthogonalTopHit(t *testing.T) {
	s := seeded(t, Config{})
	res, err := s.Search(context.Background(), []float32{0, 1, 0}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "b", res[0].Chunk.DocumentID)
	assert.Equal(t, "beta", res[0].Chunk.Text)
	assert.Equal(t, 2, res[0].Chunk.Index)
	assert.InDelta(t, 0, res[0].Distance, 1e-6)
}

func TestSearchCapsAtCount(t *testing.T) {
	s := seeded(t, Config{})
	res, err := s.Search(context.Background(), []float32{0.9, 0.4, 0.1}, 10)
	require.NoError(t, err)
	require.Len(t, res, 3)
	assert.Equal(t, "a", res[0].Chunk.DocumentID)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
	}
}

func TestDimensionMismatch(t *testing.T) {
	s := seeded(t, Config{})
	_, err := s.Search(context.Background(), []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestClearAndPersist(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seeded(t, Config{Path: dir})

	reopened, err := NewStorage(Config{Path: dir}, nil)
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	require.NoError(t, reopened.Clear(ctx))
	n, err = reopened.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestReopenedStoreServesQueries(t *testing.T) {
	ctx := context.Background()
	dir := t.TempDir()
	seeded(t, Config{Path: dir})

	reopened, err := NewStorage(Config{Path: dir}, nil)
	require.NoError(t, err)
	n, err := reopened.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 3, n)

	res, err := reopened.Search(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "gamma", res[0].Chunk.Text)

	_, err = reopened.Search(ctx, []float32{1, 0}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
