package sqlite

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func open(t *testing.T, path string, metric domain.Metric) *Storage {
	t.Helper()
	s, err := NewStorage(path, metric, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func chunks(ids ...string) []domain.Chunk {
	out := make([]domain.Chunk, len(ids))
	for i, id := range ids {
		out[i] = domain.Chunk{DocumentID: id, ChunkID: id + ":0", Text: "text " + id}
	}
	return out
}

func TestOrthogonalTopHit(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "idx.db"), domain.MetricL2)
	require.NoError(t, s.Init(ctx, 3))
	require.NoError(t, s.Upsert(ctx, chunks("a", "b", "c"), [][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}))

	res, err := s.Search(ctx, []float32{0, 0, 1}, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "c", res[0].Chunk.DocumentID)
	assert.Equal(t, "text c", res[0].Chunk.Text)
	assert.InDelta(t, 0, res[0].Distance, 1e-9)

	res, err = s.Search(ctx, []float32{0, 0, 1}, 10)
	require.NoError(t, err)
	assert.Len(t, res, 3)
	for i := 1; i < len(res); i++ {
		assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
	}
}

func TestPersistsAcrossReopen(t *testing.T) {
	ctx := context.Background()
	path := filepath.Join(t.TempDir(), "idx.db")
	first, err := NewStorage(path, domain.MetricCosine, nil)
	require.NoError(t, err)
	require.NoError(t, first.Init(ctx, 2))
	require.NoError(t, first.Upsert(ctx, chunks("a", "b"), [][]float32{{1, 0}, {0, 1}}))
	require.NoError(t, first.Close())

	second := open(t, path, domain.MetricCosine)
	n, err := second.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := second.Search(ctx, []float32{1, 0}, 1)
	require.NoError(t, err)
	assert.Equal(t, "a", res[0].Chunk.DocumentID)
}

func TestUpsertReplacesAndClear(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "idx.db"), domain.MetricCosine)
	require.NoError(t, s.Init(ctx, 2))
	require.NoError(t, s.Upsert(ctx, chunks("a"), [][]float32{{1, 0}}))
	updated := chunks("a")
	updated[0].Text = "changed"
	require.NoError(t, s.Upsert(ctx, updated, [][]float32{{0, 1}}))

	res, err := s.Search(ctx, []float32{0, 1}, 5)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "changed", res[0].Chunk.Text)

	require.NoError(t, s.Clear(ctx))
	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Zero(t, n)
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := open(t, filepath.Join(t.TempDir(), "idx.db"), domain.MetricCosine)
	require.NoError(t, s.Init(ctx, 2))
	err := s.Upsert(ctx, chunks("a"), [][]float32{{1, 0, 0}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}
