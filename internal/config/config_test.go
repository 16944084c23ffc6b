package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ragqa/internal/domain"
)

func TestLoadMissingFileReturnsDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, Default(), cfg)
}

func TestLoadFileAppliesDefaults(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
embedder:
  type: openai
vector_store:
  type: qdrant
  metric: l2
generator:
  type: openai
  openai:
    model: gpt-4o
retrieval:
  top_k: 1
`), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "text-embedding-3-small", cfg.Embedder.OpenAI.Model)
	assert.Equal(t, "OPENAI_API_KEY", cfg.Embedder.OpenAI.APIKeyEnv)
	assert.Equal(t, "localhost", cfg.VectorStore.Qdrant.Host)
	assert.Equal(t, 6334, cfg.VectorStore.Qdrant.Port)
	assert.Equal(t, "l2", cfg.VectorStore.Metric)
	assert.Equal(t, "gpt-4o", cfg.Generator.OpenAI.Model)
	assert.Equal(t, 1, cfg.Retrieval.TopK)
	// untouched sections keep their defaults
	assert.Equal(t, 5, cfg.Chunker.SentencesPerChunk)
	assert.Equal(t, "frequency", cfg.Summarizer.Type)
}

func TestEnvOverridesFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(path, []byte("generator:\n  type: extractive\n"), 0o644))
	t.Setenv("RAG_GENERATOR__TYPE", "ollama")
	t.Setenv("RAG_GENERATOR__OLLAMA__MODEL", "qwen2.5")

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "ollama", cfg.Generator.Type)
	assert.Equal(t, "qwen2.5", cfg.Generator.Ollama.Model)
	assert.Equal(t, "http://localhost:11434", cfg.Generator.Ollama.ServerURL)
}

func TestValidateRejects(t *testing.T) {
	cases := map[string]func(c *AppConfig){
		"bad metric":           func(c *AppConfig) { c.VectorStore.Metric = "manhattan" },
		"chromem l2":           func(c *AppConfig) { c.VectorStore.Type = "chromem"; c.VectorStore.Metric = "l2" },
		"cached tfidf":         func(c *AppConfig) { c.Embedder.Cache.Type = "redis" },
		"negative top k":       func(c *AppConfig) { c.Retrieval.TopK = -1 },
		"negative overlap":     func(c *AppConfig) { c.Chunker.OverlapSentences = -2 },
		"tfidf on sqlite":      func(c *AppConfig) { c.VectorStore.Type = "sqlite" },
		"tfidf on qdrant":      func(c *AppConfig) { c.VectorStore.Type = "qdrant" },
		"tfidf on chromem dir": func(c *AppConfig) { c.VectorStore.Type = "chromem"; c.VectorStore.Chromem.Path = "/tmp/c" },
	}
	for name, mutate := range cases {
		t.Run(name, func(t *testing.T) {
			cfg := Default()
			mutate(cfg)
			assert.ErrorIs(t, cfg.Validate(), domain.ErrInvalidConfig)
		})
	}
}

func TestValidateAcceptsPersistentStoreWithModelEmbedder(t *testing.T) {
	cfg := Default()
	cfg.VectorStore.Type = "chromem"
	assert.NoError(t, cfg.Validate())

	cfg.VectorStore.Chromem.Path = "/tmp/chromem"
	cfg.Embedder.Type = "fastembed"
	assert.NoError(t, cfg.Validate())
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "nested", "config.yaml")
	cfg := Default()
	cfg.Embedder.Type = "openai"
	cfg.VectorStore.Type = "sqlite"
	cfg.VectorStore.SQLite.Path = "/tmp/idx.db"
	require.NoError(t, Save(path, cfg))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "sqlite", loaded.VectorStore.Type)
	assert.Equal(t, "/tmp/idx.db", loaded.VectorStore.SQLite.Path)
}

func TestEnvKey(t *testing.T) {
	assert.Equal(t, "vector_store.qdrant.host", envKey("RAG_VECTOR_STORE__QDRANT__HOST"))
	assert.Equal(t, "retrieval.top_k", envKey("RAG_RETRIEVAL__TOP_K"))
}
