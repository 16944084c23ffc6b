package ollama

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/tmc/langchaingo/llms"

	"ragqa/internal/domain"
)

type fakeModel struct {
	reply  string
	prompt string
	opts   llms.CallOptions
}

func (f *fakeModel) GenerateContent(_ context.Context, msgs []llms.MessageContent, options ...llms.CallOption) (*llms.ContentResponse, error) {
	for _, o := range options {
		o(&f.opts)
	}
	if len(msgs) > 0 && len(msgs[0].Parts) > 0 {
		if tc, ok := msgs[0].Parts[0].(llms.TextContent); ok {
			f.prompt = tc.Text
		}
	}
	return &llms.ContentResponse{Choices: []*llms.ContentChoice{{Content: f.reply}}}, nil
}

func (f *fakeModel) Call(ctx context.Context, prompt string, options ...llms.CallOption) (string, error) {
	return llms.GenerateFromSinglePrompt(ctx, f, prompt, options...)
}

func TestGeneratePassesPromptAndParams(t *testing.T) {
	fake := &fakeModel{reply: " 324 metros \n"}
	g := newWithModel(fake, "qwen2.5", nil)
	assert.Equal(t, "ollama:qwen2.5", g.Name())

	got, err := g.Generate(context.Background(), domain.GenerationRequest{
		Prompt: "question: altura?",
		Params: domain.GenerationParams{MaxTokens: 64, Temperature: 0.3},
	})
	require.NoError(t, err)
	assert.Equal(t, "324 metros", got)
	assert.Equal(t, "question: altura?", fake.prompt)
	assert.Equal(t, 64, fake.opts.MaxTokens)
	assert.InDelta(t, 0.3, fake.opts.Temperature, 1e-9)
}

func TestGenerateEmpty(t *testing.T) {
	g := newWithModel(&fakeModel{reply: ""}, "m", nil)
	_, err := g.Generate(context.Background(), domain.GenerationRequest{Prompt: "p"})
	assert.ErrorIs(t, err, domain.ErrEmptyCompletion)

	_, err = g.Generate(context.Background(), domain.GenerationRequest{})
	assert.ErrorIs(t, err, domain.ErrEmptyInput)
}
