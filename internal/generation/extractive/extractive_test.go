package extractive

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestPicksBestOverlappingSentence(t *testing.T) {
	got, err := New().Generate(context.Background(), domain.GenerationRequest{
		Query: "Qual é a altura da Torre Eiffel?",
		Context: []string{
			"O Monte Everest é a montanha mais alta do mundo.",
			"Paris é a capital. A Torre Eiffel tem 324 metros de altura.",
		},
	})
	require.NoError(t, err)
	assert.Equal(t, "A Torre Eiffel tem 324 metros de altura.", got)
}

func TestNoOverlapReturnsFirstSentence(t *testing.T) {
	got, err := New().Generate(context.Background(), domain.GenerationRequest{
		Query:   "zzz",
		Context: []string{"First. Second."},
	})
	require.NoError(t, err)
	assert.Equal(t, "First.", got)
}

func TestNoContext(t *testing.T) {
	_, err := New().Generate(context.Background(), domain.GenerationRequest{Query: "q"})
	assert.ErrorIs(t, err, domain.ErrNoContext)

	_, err = New().Generate(context.Background(), domain.GenerationRequest{Query: "q", Context: []string{"  "}})
	assert.ErrorIs(t, err, domain.ErrNoContext)
}
