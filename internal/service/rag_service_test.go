package service

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"ragqa/internal/chunker"
	"ragqa/internal/domain"
	"ragqa/internal/embedding/tfidf"
	"ragqa/internal/generation/extractive"
	"ragqa/internal/loader"
	"ragqa/internal/metrics"
	"ragqa/internal/prompt"
	"ragqa/internal/summarizer"
	"ragqa/internal/vectorstore/memory"
)

const (
	eiffel  = "A Torre Eiffel tem 324 metros de altura."
	everest = "O Monte Everest é a montanha mais alta do mundo."
	query   = "Qual é a altura da Torre Eiffel?"
)

func newService(t *testing.T, logger *zap.Logger, m *metrics.Metrics) *RAGServiceImpl {
	t.Helper()
	store, err := memory.NewStorage(domain.MetricCosine)
	require.NoError(t, err)
	pa, err := prompt.New("seq2seq", "")
	require.NoError(t, err)
	return NewRAGService(Components{
		Chunker:             chunker.NewDocumentChunker(),
		Embedder:            tfidf.NewEmbedder(),
		Store:               store,
		Summarizer:          summarizer.NewFrequencySummarizer(),
		Prompt:              pa,
		Generator:           extractive.New(),
		Loader:              loader.New(nil),
		SummaryMaxSentences: 3,
		TopK:                3,
		Logger:              logger,
		Metrics:             m,
	})
}

func TestAskEiffelEndToEnd(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, nil)
	_, err := svc.IngestDocuments(ctx, loader.FromStrings([]string{eiffel, everest}))
	require.NoError(t, err)

	res, err := svc.Query(ctx, query, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, eiffel, res[0].Chunk.Text)
	assert.Equal(t, "doc-0", res[0].Chunk.DocumentID)

	ans, err := svc.Ask(ctx, query, 1)
	require.NoError(t, err)
	assert.Equal(t, eiffel, ans.Text)
	assert.Contains(t, ans.Prompt, query)
	assert.Contains(t, ans.Prompt, eiffel)
	require.Len(t, ans.Sources, 1)
}

func TestQueryOrderingAndBound(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, nil)
	_, err := svc.IngestDocuments(ctx, loader.FromStrings([]string{eiffel, everest}))
	require.NoError(t, err)

	res, err := svc.Query(ctx, query, 10)
	require.NoError(t, err)
	assert.Len(t, res, 2)
	assert.LessOrEqual(t, res[0].Distance, res[1].Distance)

	ans, err := svc.Ask(ctx, query, 0)
	require.NoError(t, err)
	for _, src := range ans.Sources {
		assert.Contains(t, ans.Prompt, src.Chunk.Text)
	}
}

func TestQueryErrors(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, nil)

	_, err := svc.Query(ctx, "anything", 1)
	assert.ErrorIs(t, err, domain.ErrNoDocuments)

	_, err = svc.IngestDocuments(ctx, nil)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)

	_, err = svc.IngestDocuments(ctx, loader.FromStrings([]string{eiffel}))
	require.NoError(t, err)
	_, err = svc.Query(ctx, "   ", 1)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
	_, err = svc.Ask(ctx, "", 1)
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}

func TestLexicalFallback(t *testing.T) {
	ctx := context.Background()
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	m := metrics.New(reg)
	svc := newService(t, zap.New(core), m)
	_, err := svc.IngestDocuments(ctx, loader.FromStrings([]string{"The cat sat.", "A dog ran."}))
	require.NoError(t, err)

	// stopwords only, so the TF-IDF vector is zero
	res, err := svc.Query(ctx, "the", 2)
	require.NoError(t, err)
	require.Len(t, res, 2)
	assert.Equal(t, "The cat sat.", res[0].Chunk.Text)
	assert.Greater(t, res[0].Score, res[1].Score)
	assert.Equal(t, 1, logs.FilterMessage("query vector is zero, using lexical ranking").Len())
	assert.Equal(t, 1.0, testutil.ToFloat64(m.LexicalFallback))
	assert.Equal(t, 2.0, testutil.ToFloat64(m.IndexedChunks))
}

func TestReingestReplacesDocument(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, nil)
	_, err := svc.IngestDocuments(ctx, []domain.Document{
		{ID: "a", Content: eiffel},
		{ID: "b", Content: everest},
	})
	require.NoError(t, err)
	_, err = svc.IngestDocuments(ctx, []domain.Document{{ID: "a", Content: "A Torre Eiffel fica em Paris."}})
	require.NoError(t, err)
	assert.Equal(t, 2, svc.DocumentCount())

	n, err := svc.c.Store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := svc.Query(ctx, "Torre Eiffel Paris", 1)
	require.NoError(t, err)
	assert.Equal(t, "A Torre Eiffel fica em Paris.", res[0].Chunk.Text)
}

func TestIngestFilesSummarises(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.WriteFile(filepath.Join(dir, "towers.txt"), []byte(eiffel+" "+everest), 0o644))
	svc := newService(t, nil, nil)

	summary, err := svc.IngestFiles(context.Background(), []string{filepath.Join(dir, "*.txt")})
	require.NoError(t, err)
	assert.Contains(t, summary, eiffel)
	assert.Equal(t, 1, svc.DocumentCount())

	_, err = svc.IngestFiles(context.Background(), []string{filepath.Join(dir, "*.nothing")})
	assert.ErrorIs(t, err, domain.ErrNoDocuments)
}

// flakyStore fails the next Upsert once failNext is set.
type flakyStore struct {
	domain.VectorStore
	failNext bool
}

func (f *flakyStore) Upsert(ctx context.Context, chunks []domain.Chunk, vectors [][]float32) error {
	if f.failNext {
		f.failNext = false
		return errors.New("disk full")
	}
	return f.VectorStore.Upsert(ctx, chunks, vectors)
}

func TestFailedIngestKeepsPreviousIndex(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, nil)
	store := &flakyStore{VectorStore: svc.c.Store}
	svc.c.Store = store
	_, err := svc.IngestDocuments(ctx, loader.FromStrings([]string{eiffel, everest}))
	require.NoError(t, err)
	dim := svc.c.Embedder.Dimension()

	store.failNext = true
	_, err = svc.IngestDocuments(ctx, []domain.Document{{ID: "x", Content: "Kilimanjaro rises above the Tanzanian savanna."}})
	require.Error(t, err)

	assert.Equal(t, 2, svc.DocumentCount())
	assert.Equal(t, dim, svc.c.Embedder.Dimension())
	n, err := store.Count(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, n)

	res, err := svc.Query(ctx, query, 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, eiffel, res[0].Chunk.Text)
	assert.Greater(t, res[0].Score, 0.0)
}

func TestAskFindsUnterminatedSentence(t *testing.T) {
	ctx := context.Background()
	svc := newService(t, nil, nil)
	svc.c.Chunker = chunker.NewSentenceChunker(1, 0)
	_, err := svc.IngestDocuments(ctx, loader.FromStrings([]string{
		"Paris is in France. The Eiffel Tower is 324 metres tall",
		"Everest is the highest mountain.",
	}))
	require.NoError(t, err)

	res, err := svc.Query(ctx, "How tall is the Eiffel Tower?", 1)
	require.NoError(t, err)
	require.Len(t, res, 1)
	assert.Equal(t, "The Eiffel Tower is 324 metres tall", res[0].Chunk.Text)
}
