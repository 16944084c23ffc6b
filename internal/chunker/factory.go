package chunker

import (
	"fmt"

	"ragqa/internal/config"
	"ragqa/internal/domain"
)

// New creates the chunker selected by cfg.Type.
func New(cfg config.ChunkerConfig) (domain.Chunker, error) {
	switch cfg.Type {
	case "sentence", "":
		return NewSentenceChunker(cfg.SentencesPerChunk, cfg.OverlapSentences), nil
	case "none":
		return NewDocumentChunker(), nil
	default:
		return nil, fmt.Errorf("%w: unknown chunker %q", domain.ErrInvalidConfig, cfg.Type)
	}
}
