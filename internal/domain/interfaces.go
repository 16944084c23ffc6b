package domain

import "context"

// DefaultTopK is used when a caller asks for a non-positive number of results.
const DefaultTopK = 5

// Metric is the distance function a vector index ranks by.
type Metric string

const (
	MetricCosine Metric = "cosine"
	MetricL2     Metric = "l2"
)

// Document represents a single text loaded into the system, either a file or a dataset row.
type Document struct {
	ID       string
	Title    string
	Path     string
	Content  string
	Metadata map[string]string
}

// Chunk is a semantically meaningful part of a document used for indexing.
type Chunk struct {
	DocumentID string
	ChunkID    string
	Title      string
	Text       string
	Index      int
}

// SearchResult represents a matching chunk with its similarity score and distance.
// Distance grows as the match gets worse; Score shrinks.
type SearchResult struct {
	Chunk    Chunk
	Score    float64
	Distance float64
}

// Answer is the outcome of one retrieval-augmented generation round.
type Answer struct {
	Query   string
	Text    string
	Prompt  string
	Sources []SearchResult
}

// GenerationParams are passed through to the generation model.
type GenerationParams struct {
	Model       string
	MaxTokens   int
	Temperature float64
	NumBeams    int
}

// GenerationRequest carries the assembled prompt along with its parts.
// Hosted models only read Prompt; local extractive generators use Query and Context.
type GenerationRequest struct {
	Prompt  string
	Query   string
	Context []string
	Params  GenerationParams
}

// Embedder converts free text into numeric vectors, one per input, in input order.
// Implementations may require a preparation phase over the corpus.
type Embedder interface {
	Name() string
	Prepare(corpus []string) error
	Dimension() int
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}

// Chunker splits documents into chunks suitable for retrieval indexing.
type Chunker interface {
	Chunk(document Document) ([]Chunk, error)
}

// VectorStore persists vectors and supports nearest-neighbour search.
// Search returns at most min(topK, Count) results ordered by non-decreasing distance.
type VectorStore interface {
	Init(ctx context.Context, dimension int) error
	Upsert(ctx context.Context, chunks []Chunk, vectors [][]float32) error
	Search(ctx context.Context, vector []float32, topK int) ([]SearchResult, error)
	Count(ctx context.Context) (int, error)
	Clear(ctx context.Context) error
}

// Summarizer produces a brief summary of the provided text.
type Summarizer interface {
	Summarize(text string, maxSentences int) (string, error)
}

// PromptAssembler combines a query and retrieved texts into a single prompt.
type PromptAssembler interface {
	Assemble(query string, documents []string) (string, error)
}

// Generator turns a prompt into an answer.
type Generator interface {
	Name() string
	Generate(ctx context.Context, req GenerationRequest) (string, error)
}

// RAGService defines the operations exposed by the application core.
type RAGService interface {
	IngestDocuments(ctx context.Context, docs []Document) (summary string, err error)
	IngestFiles(ctx context.Context, paths []string) (summary string, err error)
	Query(ctx context.Context, query string, topK int) ([]SearchResult, error)
	Ask(ctx context.Context, query string, topK int) (Answer, error)
}
