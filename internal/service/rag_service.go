// Package service wires the pipeline: chunk, embed, index, retrieve, prompt and generate.
package service

import (
	"context"
	"crypto/sha1"
	"encoding/hex"
	"fmt"
	"sort"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"

	"ragqa/internal/domain"
	"ragqa/internal/metrics"
	"ragqa/internal/textutil"
	"ragqa/internal/vecmath"
)

// DocumentLoader reads documents from files.
type DocumentLoader interface {
	Load(paths []string) ([]domain.Document, error)
}

// Components are the pipeline stages the service drives. One Embedder
// embeds both documents and queries.
type Components struct {
	Chunker             domain.Chunker
	Embedder            domain.Embedder
	Store               domain.VectorStore
	Summarizer          domain.Summarizer
	Prompt              domain.PromptAssembler
	Generator           domain.Generator
	Loader              DocumentLoader
	Params              domain.GenerationParams
	SummaryMaxSentences int
	TopK                int
	Logger              *zap.Logger
	Metrics             *metrics.Metrics
}

type RAGServiceImpl struct {
	c       Components
	logger  *zap.Logger
	metrics *metrics.Metrics

	mu       sync.RWMutex
	docs     map[string]domain.Document
	docOrder []string
	chunks   []domain.Chunk
	vectors  [][]float32
}

var _ domain.RAGService = (*RAGServiceImpl)(nil)

func NewRAGService(c Components) *RAGServiceImpl {
	if c.Logger == nil {
		c.Logger = zap.NewNop()
	}
	if c.TopK <= 0 {
		c.TopK = domain.DefaultTopK
	}
	return &RAGServiceImpl{
		c:       c,
		logger:  c.Logger,
		metrics: c.Metrics,
		docs:    make(map[string]domain.Document),
	}
}

// IngestFiles loads paths (globs allowed) and ingests the documents found.
func (s *RAGServiceImpl) IngestFiles(ctx context.Context, paths []string) (string, error) {
	if s.c.Loader == nil {
		return "", fmt.Errorf("%w: no document loader configured", domain.ErrInvalidConfig)
	}
	docs, err := s.c.Loader.Load(paths)
	if err != nil {
		s.metrics.Request("ingest", err)
		return "", err
	}
	return s.IngestDocuments(ctx, docs)
}

// IngestDocuments adds docs to the corpus and rebuilds the index over the
// whole corpus. A document whose ID was ingested before replaces the old one.
// It returns a short extractive summary of the corpus.
func (s *RAGServiceImpl) IngestDocuments(ctx context.Context, docs []domain.Document) (summary string, err error) {
	defer func() { s.metrics.Request("ingest", err) }()
	if len(docs) == 0 {
		return "", fmt.Errorf("%w: no documents to ingest", domain.ErrEmptyInput)
	}
	start := time.Now()

	s.mu.Lock()
	defer s.mu.Unlock()

	merged := make(map[string]domain.Document, len(s.docs)+len(docs))
	for id, d := range s.docs {
		merged[id] = d
	}
	order := append([]string(nil), s.docOrder...)
	for _, d := range docs {
		if d.ID == "" {
			d.ID = hashString(d.Path + "\x00" + d.Content)
		}
		if _, ok := merged[d.ID]; !ok {
			order = append(order, d.ID)
		}
		merged[d.ID] = d
	}

	var (
		allChunks []domain.Chunk
		allTexts  []string
		corpus    strings.Builder
	)
	for _, id := range order {
		d := merged[id]
		chunks, err := s.c.Chunker.Chunk(d)
		if err != nil {
			return "", fmt.Errorf("chunking %s: %w", id, err)
		}
		for _, ch := range chunks {
			allChunks = append(allChunks, ch)
			allTexts = append(allTexts, ch.Text)
		}
		corpus.WriteString("\n")
		corpus.WriteString(d.Content)
	}
	if len(allChunks) == 0 {
		return "", fmt.Errorf("%w: documents contain no text", domain.ErrNoDocuments)
	}

	vectors, dim, err := s.rebuild(ctx, allChunks, allTexts)
	if err != nil {
		return "", err
	}

	s.docs = merged
	s.docOrder = order
	s.chunks = allChunks
	s.vectors = vectors
	s.metrics.SetIndexed(len(allChunks))
	s.metrics.ObserveStage(metrics.StageIngest, start)
	s.logger.Info("corpus indexed",
		zap.Int("documents", len(order)),
		zap.Int("chunks", len(allChunks)),
		zap.Int("dimension", dim),
		zap.String("embedder", s.c.Embedder.Name()),
		zap.Duration("took", time.Since(start)))

	if s.c.Summarizer == nil {
		return "", nil
	}
	return s.c.Summarizer.Summarize(corpus.String(), s.c.SummaryMaxSentences)
}

// rebuild fits the embedder to texts and replaces the index contents. On
// failure the embedder and index are restored to the last committed corpus.
func (s *RAGServiceImpl) rebuild(ctx context.Context, chunks []domain.Chunk, texts []string) (vectors [][]float32, dim int, err error) {
	var prepared, cleared bool
	defer func() {
		if err != nil {
			s.rollback(ctx, prepared, cleared)
		}
	}()

	if err := s.c.Embedder.Prepare(texts); err != nil {
		return nil, 0, err
	}
	prepared = true
	embedStart := time.Now()
	vectors, err = s.c.Embedder.Embed(ctx, texts)
	s.metrics.ObserveStage(metrics.StageEmbed, embedStart)
	if err != nil {
		return nil, 0, fmt.Errorf("embedding corpus: %w", err)
	}
	if len(vectors) != len(chunks) {
		return nil, 0, fmt.Errorf("embedder returned %d vectors for %d chunks", len(vectors), len(chunks))
	}
	dim = s.c.Embedder.Dimension()
	if len(vectors[0]) > 0 {
		dim = len(vectors[0])
	}

	// vectors from a corpus-fitted embedder change with the corpus, so the
	// index is rebuilt rather than appended to
	cleared = true
	if err := s.c.Store.Clear(ctx); err != nil {
		return nil, 0, fmt.Errorf("clearing index: %w", err)
	}
	if err := s.c.Store.Init(ctx, dim); err != nil {
		return nil, 0, fmt.Errorf("initialising index: %w", err)
	}
	if err := s.c.Store.Upsert(ctx, chunks, vectors); err != nil {
		return nil, 0, fmt.Errorf("indexing chunks: %w", err)
	}
	return vectors, dim, nil
}

// rollback refits the embedder to the committed chunks and, when the index
// was touched, writes the committed vectors back. Failures are logged; the
// caller already reports the original error.
func (s *RAGServiceImpl) rollback(ctx context.Context, prepared, cleared bool) {
	if len(s.chunks) == 0 {
		if cleared {
			if err := s.c.Store.Clear(ctx); err != nil {
				s.logger.Warn("clearing partial index failed", zap.Error(err))
			}
		}
		return
	}
	if prepared {
		texts := make([]string, len(s.chunks))
		for i, ch := range s.chunks {
			texts[i] = ch.Text
		}
		if err := s.c.Embedder.Prepare(texts); err != nil {
			s.logger.Warn("restoring embedder failed", zap.Error(err))
		}
	}
	if !cleared {
		return
	}
	err := s.c.Store.Clear(ctx)
	if err == nil {
		err = s.c.Store.Init(ctx, len(s.vectors[0]))
	}
	if err == nil {
		err = s.c.Store.Upsert(ctx, s.chunks, s.vectors)
	}
	if err != nil {
		s.logger.Warn("restoring index failed", zap.Error(err))
		return
	}
	s.logger.Info("index restored after failed ingest", zap.Int("chunks", len(s.chunks)))
}

// Query retrieves the topK chunks nearest to query. When the query vector
// is zero or matches nothing, chunks are ranked by word overlap instead.
func (s *RAGServiceImpl) Query(ctx context.Context, query string, topK int) (res []domain.SearchResult, err error) {
	defer func() { s.metrics.Request("query", err) }()
	return s.query(ctx, query, topK)
}

func (s *RAGServiceImpl) query(ctx context.Context, query string, topK int) ([]domain.SearchResult, error) {
	if strings.TrimSpace(query) == "" {
		return nil, fmt.Errorf("%w: query is empty", domain.ErrEmptyInput)
	}
	if topK <= 0 {
		topK = s.c.TopK
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	if len(s.chunks) == 0 {
		// a persistent index may hold chunks from an earlier run
		n, err := s.c.Store.Count(ctx)
		if err != nil {
			return nil, err
		}
		if n == 0 {
			return nil, fmt.Errorf("%w: ingest documents before searching", domain.ErrNoDocuments)
		}
	}

	embedStart := time.Now()
	vecs, err := s.c.Embedder.Embed(ctx, []string{query})
	s.metrics.ObserveStage(metrics.StageEmbed, embedStart)
	if err != nil {
		return nil, fmt.Errorf("embedding query: %w", err)
	}
	if len(vecs) != 1 {
		return nil, fmt.Errorf("embedder returned %d vectors for one query", len(vecs))
	}
	if vecmath.IsZero(vecs[0]) && len(s.chunks) > 0 {
		s.logger.Debug("query vector is zero, using lexical ranking", zap.String("query", query))
		return s.lexicalSearch(query, topK), nil
	}

	searchStart := time.Now()
	res, err := s.c.Store.Search(ctx, vecs[0], topK)
	s.metrics.ObserveStage(metrics.StageSearch, searchStart)
	if err != nil {
		return nil, fmt.Errorf("searching index: %w", err)
	}
	if allZero(res) && len(s.chunks) > 0 {
		s.logger.Debug("no vector match, using lexical ranking", zap.String("query", query))
		return s.lexicalSearch(query, topK), nil
	}
	return res, nil
}

// Ask retrieves context for query, assembles the prompt and generates an answer.
func (s *RAGServiceImpl) Ask(ctx context.Context, query string, topK int) (ans domain.Answer, err error) {
	defer func() { s.metrics.Request("ask", err) }()
	results, err := s.query(ctx, query, topK)
	if err != nil {
		return domain.Answer{}, err
	}
	texts := make([]string, len(results))
	for i, r := range results {
		texts[i] = r.Chunk.Text
	}
	prompt, err := s.c.Prompt.Assemble(query, texts)
	if err != nil {
		return domain.Answer{}, err
	}
	genStart := time.Now()
	text, err := s.c.Generator.Generate(ctx, domain.GenerationRequest{
		Prompt:  prompt,
		Query:   query,
		Context: texts,
		Params:  s.c.Params,
	})
	s.metrics.ObserveStage(metrics.StageGenerate, genStart)
	if err != nil {
		return domain.Answer{}, fmt.Errorf("generating answer with %s: %w", s.c.Generator.Name(), err)
	}
	s.logger.Debug("answered",
		zap.String("query", query),
		zap.Int("sources", len(results)),
		zap.Duration("generate", time.Since(genStart)))
	return domain.Answer{Query: query, Text: text, Prompt: prompt, Sources: results}, nil
}

// DocumentCount reports how many documents were ingested in this process.
func (s *RAGServiceImpl) DocumentCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.docOrder)
}

func allZero(res []domain.SearchResult) bool {
	for _, r := range res {
		if r.Score > 1e-9 {
			return false
		}
	}
	return true
}

// lexicalSearch ranks chunks by the Ochiai coefficient between word sets.
func (s *RAGServiceImpl) lexicalSearch(query string, topK int) []domain.SearchResult {
	s.metrics.Fallback()
	qset := textutil.TokenSet(query)
	type pair struct {
		idx   int
		score float64
	}
	scores := make([]pair, len(s.chunks))
	for i, ch := range s.chunks {
		scores[i] = pair{i, textutil.Ochiai(qset, ch.Text)}
	}
	sort.SliceStable(scores, func(i, j int) bool { return scores[i].score > scores[j].score })
	if topK > len(scores) {
		topK = len(scores)
	}
	out := make([]domain.SearchResult, 0, topK)
	for _, p := range scores[:topK] {
		out = append(out, domain.SearchResult{Chunk: s.chunks[p.idx], Score: p.score, Distance: 1 - p.score})
	}
	return out
}

func hashString(s string) string {
	h := sha1.Sum([]byte(s))
	return hex.EncodeToString(h[:8])
}
