// Package extractive answers offline by quoting the retrieved sentence that
// best overlaps the question.
package extractive

import (
	"context"
	"fmt"

	"ragqa/internal/domain"
	"ragqa/internal/textutil"
)

// Generator is deterministic and needs no model.
type Generator struct{}

// New returns an extractive generator.
func New() *Generator { return &Generator{} }

func (g *Generator) Name() string { return "extractive" }

// Generate scans the context passages in retrieval order and returns the
// sentence sharing the most distinct words with the query. Ties keep the
// earlier sentence; with no overlap at all the first sentence is returned.
func (g *Generator) Generate(ctx context.Context, req domain.GenerationRequest) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	if len(req.Context) == 0 {
		return "", fmt.Errorf("%w: nothing to extract an answer from", domain.ErrNoContext)
	}
	query := textutil.TokenSet(req.Query)
	best, bestScore := "", -1
	for _, passage := range req.Context {
		for _, sent := range textutil.Sentences(passage) {
			if score := textutil.Overlap(query, sent); score > bestScore {
				best, bestScore = sent, score
			}
		}
	}
	if best == "" {
		return "", fmt.Errorf("%w: context passages are blank", domain.ErrNoContext)
	}
	return best, nil
}
