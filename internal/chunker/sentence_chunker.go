package chunker

import (
	"strconv"
	"strings"

	"ragqa/internal/domain"
	"ragqa/internal/textutil"
)

// SentenceChunker splits text into sentence-based chunks with overlap.
type SentenceChunker struct {
	sentencesPerChunk int
	overlapSentences  int
}

func NewSentenceChunker(sentencesPerChunk, overlapSentences int) *SentenceChunker {
	if sentencesPerChunk <= 0 {
		sentencesPerChunk = 5
	}
	if overlapSentences < 0 {
		overlapSentences = 0
	}
	// overlap must leave room to advance
	if overlapSentences >= sentencesPerChunk {
		overlapSentences = sentencesPerChunk - 1
	}
	return &SentenceChunker{
		sentencesPerChunk: sentencesPerChunk,
		overlapSentences:  overlapSentences,
	}
}

func (c *SentenceChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	sentences := textutil.Sentences(document.Content)
	if len(sentences) == 0 {
		return nil, nil
	}
	var chunks []domain.Chunk
	i := 0
	idx := 0
	for i < len(sentences) {
		end := i + c.sentencesPerChunk
		if end > len(sentences) {
			end = len(sentences)
		}
		chunks = append(chunks, newChunk(document, idx, strings.Join(sentences[i:end], " ")))
		if end == len(sentences) {
			break
		}
		i = end - c.overlapSentences
		idx++
	}
	return chunks, nil
}

// DocumentChunker indexes every document as exactly one chunk.
type DocumentChunker struct{}

func NewDocumentChunker() *DocumentChunker { return &DocumentChunker{} }

func (c *DocumentChunker) Chunk(document domain.Document) ([]domain.Chunk, error) {
	text := strings.TrimSpace(document.Content)
	if text == "" {
		return nil, nil
	}
	return []domain.Chunk{newChunk(document, 0, text)}, nil
}

func newChunk(document domain.Document, idx int, text string) domain.Chunk {
	return domain.Chunk{
		DocumentID: document.ID,
		ChunkID:    document.ID + ":" + strconv.Itoa(idx),
		Title:      document.Title,
		Text:       text,
		Index:      idx,
	}
}
