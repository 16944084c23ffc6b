package prompt

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

var docs = []string{
	"A Torre Eiffel tem 324 metros de altura.",
	"O Monte Everest é a montanha mais alta do mundo.",
}

const query = "Qual é a altura da Torre Eiffel?"

func TestBuiltinsContainQueryAndDocsVerbatim(t *testing.T) {
	for _, name := range []string{"qa", "seq2seq"} {
		t.Run(name, func(t *testing.T) {
			a, err := New(name, "")
			require.NoError(t, err)
			got, err := a.Assemble(query, docs)
			require.NoError(t, err)
			assert.Contains(t, got, query)
			for _, d := range docs {
				assert.Contains(t, got, d)
			}
			assert.Less(t, strings.Index(got, docs[0]), strings.Index(got, docs[1]))
		})
	}
}

func TestQALayout(t *testing.T) {
	a, err := New("", "")
	require.NoError(t, err)
	assert.Equal(t, "qa", a.Name())
	got, err := a.Assemble("q?", []string{"one", "two"})
	require.NoError(t, err)
	assert.Contains(t, got, "[1] one\n[2] two\n")
	assert.True(t, strings.HasSuffix(got, "Question: q?\nAnswer:"))
}

func TestSeq2Seq(t *testing.T) {
	a, err := New("seq2seq", "")
	require.NoError(t, err)
	got, err := a.Assemble(query, docs)
	require.NoError(t, err)
	assert.Equal(t, "question: "+query+" context: "+docs[0]+" "+docs[1], got)
}

func TestCustomTemplate(t *testing.T) {
	a, err := New("qa", "{{.Query}}|{{join .Documents \";\"}}")
	require.NoError(t, err)
	assert.Equal(t, "custom", a.Name())
	got, err := a.Assemble("q", []string{"a", "b"})
	require.NoError(t, err)
	assert.Equal(t, "q|a;b", got)
}

func TestNewRejects(t *testing.T) {
	_, err := New("chat", "")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
	_, err = New("", "{{.Query")
	assert.ErrorIs(t, err, domain.ErrInvalidConfig)
}

func TestNoDocuments(t *testing.T) {
	a, err := New("qa", "")
	require.NoError(t, err)
	got, err := a.Assemble("q", nil)
	require.NoError(t, err)
	assert.Contains(t, got, "Question: q")
}
