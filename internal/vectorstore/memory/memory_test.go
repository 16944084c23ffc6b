package memory

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func chunk(id string) domain.Chunk {
	return domain.Chunk{DocumentID: id, ChunkID: id + ":0", Text: id}
}

func newStore(t *testing.T, metric domain.Metric, dim int) *Storage {
	t.Helper()
	s, err := NewStorage(metric)
	require.NoError(t, err)
	require.NoError(t, s.Init(context.Background(), dim))
	return s
}

func TestOrthogonalTopHit(t *testing.T) {
	for _, metric := range []domain.Metric{domain.MetricCosine, domain.MetricL2} {
		t.Run(string(metric), func(t *testing.T) {
			ctx := context.Background()
			s := newStore(t, metric, 3)
			require.NoError(t, s.Upsert(ctx,
				[]domain.Chunk{chunk("a"), chunk("b"), chunk("c")},
				[][]float32{{1, 0, 0}, {0, 1, 0}, {0, 0, 1}}))

			res, err := s.Search(ctx, []float32{0, 1, 0}, 1)
			require.NoError(t, err)
			require.Len(t, res, 1)
			assert.Equal(t, "b", res[0].Chunk.DocumentID)
			assert.InDelta(t, 0, res[0].Distance, 1e-9)
		})
	}
}

func TestSearchReturnsAtMostMinKN(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, domain.MetricL2, 2)
	var chunks []domain.Chunk
	var vecs [][]float32
	for i := 0; i < 4; i++ {
		chunks = append(chunks, chunk(fmt.Sprint(i)))
		vecs = append(vecs, []float32{float32(i), float32(i * i)})
	}
	require.NoError(t, s.Upsert(ctx, chunks, vecs))

	for _, k := range []int{1, 3, 4, 10} {
		res, err := s.Search(ctx, []float32{0.5, 0.5}, k)
		require.NoError(t, err)
		assert.Len(t, res, min(k, 4))
		for i := 1; i < len(res); i++ {
			assert.LessOrEqual(t, res[i-1].Distance, res[i].Distance)
		}
	}
}

func TestSearchEmptyIndex(t *testing.T) {
	s := newStore(t, domain.MetricCosine, 2)
	res, err := s.Search(context.Background(), []float32{1, 0}, 3)
	require.NoError(t, err)
	assert.Empty(t, res)
}

func TestDimensionMismatch(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, domain.MetricCosine, 2)
	err := s.Upsert(ctx, []domain.Chunk{chunk("a")}, [][]float32{{1, 0, 0}})
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)

	_, err = s.Search(ctx, []float32{1}, 1)
	assert.ErrorIs(t, err, domain.ErrDimensionMismatch)
}

func TestUpsertReplacesByChunkID(t *testing.T) {
	ctx := context.Background()
	s := newStore(t, domain.MetricCosine, 2)
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{chunk("a")}, [][]float32{{1, 0}}))
	replaced := chunk("a")
	replaced.Text = "new"
	require.NoError(t, s.Upsert(ctx, []domain.Chunk{replaced}, [][]float32{{0, 1}}))

	n, err := s.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	res, err := s.Search(ctx, []float32{0, 1}, 1)
	require.NoError(t, err)
	assert.Equal(t, "new", res[0].Chunk.Text)

	require.NoError(t, s.Clear(ctx))
	n, _ = s.Count(ctx)
	assert.Zero(t, n)
}

func TestUnsupportedMetric(t *testing.T) {
	_, err := NewStorage("hamming")
	assert.ErrorIs(t, err, domain.ErrUnsupportedMetric)
}
