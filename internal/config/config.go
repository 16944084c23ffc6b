package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	koanfyaml "github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/rawbytes"
	"github.com/knadh/koanf/v2"
	"gopkg.in/yaml.v3"

	"ragqa/internal/domain"
)

// EnvPrefix marks environment variables that override file settings.
// Sections are separated by a double underscore: RAG_GENERATOR__OPENAI__MODEL.
const EnvPrefix = "RAG_"

// OpenAIEmbedderConfig holds configuration for the OpenAI-compatible embedder.
type OpenAIEmbedderConfig struct {
	BaseURL     string `yaml:"base_url"`
	APIKeyEnv   string `yaml:"api_key_env"`
	Model       string `yaml:"model"`
	TimeoutSecs int    `yaml:"timeout_secs"`
	BatchSize   int    `yaml:"batch_size"`
}

// FastEmbedConfig holds configuration for local ONNX embedding models.
type FastEmbedConfig struct {
	Model     string `yaml:"model"`
	CacheDir  string `yaml:"cache_dir"`
	MaxLength int    `yaml:"max_length"`
}

// RedisCacheConfig configures the embedding cache.
type RedisCacheConfig struct {
	Addr      string `yaml:"addr"`
	Password  string `yaml:"password"`
	DB        int    `yaml:"db"`
	TTLSecs   int    `yaml:"ttl_secs"`
	KeyPrefix string `yaml:"key_prefix"`
}

// EmbeddingCacheConfig selects an optional embedding cache.
type EmbeddingCacheConfig struct {
	Type  string           `yaml:"type"`
	Redis RedisCacheConfig `yaml:"redis"`
}

// EmbedderConfig selects and configures the text embedder implementation.
type EmbedderConfig struct {
	Type      string               `yaml:"type"`
	OpenAI    OpenAIEmbedderConfig `yaml:"openai"`
	FastEmbed FastEmbedConfig      `yaml:"fastembed"`
	Cache     EmbeddingCacheConfig `yaml:"cache"`
}

// ChunkerConfig configures how documents are split into chunks.
type ChunkerConfig struct {
	Type              string `yaml:"type"`
	SentencesPerChunk int    `yaml:"sentences_per_chunk"`
	OverlapSentences  int    `yaml:"overlap_sentences"`
}

// VectorStoreConfig selects and configures the vector store implementation.
type VectorStoreConfig struct {
	Type    string        `yaml:"type"`
	Metric  string        `yaml:"metric"`
	Chromem ChromemConfig `yaml:"chromem"`
	Qdrant  QdrantConfig  `yaml:"qdrant"`
	SQLite  SQLiteConfig  `yaml:"sqlite"`
}

// ChromemConfig configures the embedded chromem-go store. An empty path keeps it in memory.
type ChromemConfig struct {
	Path       string `yaml:"path"`
	Compress   bool   `yaml:"compress"`
	Collection string `yaml:"collection"`
}

// QdrantConfig contains connection details for a Qdrant vector store.
type QdrantConfig struct {
	Host       string `yaml:"host"`
	Port       int    `yaml:"port"`
	APIKey     string `yaml:"api_key"`
	UseTLS     bool   `yaml:"use_tls"`
	Collection string `yaml:"collection"`
}

// SQLiteConfig points at the on-disk index file.
type SQLiteConfig struct {
	Path string `yaml:"path"`
}

// SummarizerConfig selects and configures the summarizer.
type SummarizerConfig struct {
	Type         string `yaml:"type"`
	MaxSentences int    `yaml:"max_sentences"`
}

// RetrievalConfig configures the retriever.
type RetrievalConfig struct {
	TopK int `yaml:"top_k"`
}

// PromptConfig selects a built-in prompt template or supplies a custom one.
type PromptConfig struct {
	Template string `yaml:"template"`
	Custom   string `yaml:"custom"`
}

// OpenAIGeneratorConfig configures hosted chat completions.
type OpenAIGeneratorConfig struct {
	BaseURL           string  `yaml:"base_url"`
	APIKeyEnv         string  `yaml:"api_key_env"`
	Model             string  `yaml:"model"`
	TimeoutSecs       int     `yaml:"timeout_secs"`
	RequestsPerSecond float64 `yaml:"requests_per_second"`
	SystemPrompt      string  `yaml:"system_prompt"`
}

// OllamaGeneratorConfig configures a local Ollama model.
type OllamaGeneratorConfig struct {
	ServerURL string `yaml:"server_url"`
	Model     string `yaml:"model"`
}

// GeneratorConfig selects the generator and its default parameters.
type GeneratorConfig struct {
	Type        string                `yaml:"type"`
	MaxTokens   int                   `yaml:"max_tokens"`
	Temperature float64               `yaml:"temperature"`
	NumBeams    int                   `yaml:"num_beams"`
	OpenAI      OpenAIGeneratorConfig `yaml:"openai"`
	Ollama      OllamaGeneratorConfig `yaml:"ollama"`
}

// LoggingConfig configures the zap logger.
type LoggingConfig struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	Addr string `yaml:"addr"`
}

// AppConfig is the root application configuration structure.
type AppConfig struct {
	Embedder    EmbedderConfig    `yaml:"embedder"`
	Chunker     ChunkerConfig     `yaml:"chunker"`
	VectorStore VectorStoreConfig `yaml:"vector_store"`
	Summarizer  SummarizerConfig  `yaml:"summarizer"`
	Retrieval   RetrievalConfig   `yaml:"retrieval"`
	Prompt      PromptConfig      `yaml:"prompt"`
	Generator   GeneratorConfig   `yaml:"generator"`
	Logging     LoggingConfig     `yaml:"logging"`
	Server      ServerConfig      `yaml:"server"`
}

// Load reads a config from a specified path and applies RAG_* environment overrides.
// A missing file yields the defaults.
func Load(path string) (*AppConfig, error) {
	k := koanf.New(".")
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := k.Load(rawbytes.Provider(data), koanfyaml.Parser()); err != nil {
			return nil, fmt.Errorf("parsing config %s: %w", path, err)
		}
	case errors.Is(err, os.ErrNotExist):
	default:
		return nil, err
	}
	if err := k.Load(env.Provider(EnvPrefix, ".", envKey), nil); err != nil {
		return nil, fmt.Errorf("loading environment overrides: %w", err)
	}
	cfg := defaultConfig()
	if err := k.UnmarshalWithConf("", cfg, koanf.UnmarshalConf{Tag: "yaml"}); err != nil {
		return nil, fmt.Errorf("decoding config: %w", err)
	}
	applyConfigDefaults(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadDefault tries ./config.yaml first, then ~/.config/rag/config.yaml.
// If neither exists, it writes defaults to ~/.config/rag/config.yaml and returns them.
func LoadDefault() (*AppConfig, string, error) {
	cwdPath := "config.yaml"
	if _, err := os.Stat(cwdPath); err == nil {
		cfg, err := Load(cwdPath)
		return cfg, cwdPath, err
	}
	userPath, err := DefaultUserConfigPath()
	if err != nil {
		return nil, "", err
	}
	if _, err := os.Stat(userPath); err != nil {
		if err := Save(userPath, defaultConfig()); err != nil {
			return nil, "", err
		}
	}
	cfg, err := Load(userPath)
	return cfg, userPath, err
}

// Save writes the config to the given path, creating directories as needed.
func Save(path string, cfg *AppConfig) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return err
	}
	data, err := yaml.Marshal(cfg)
	if err != nil {
		return err
	}
	return os.WriteFile(path, data, 0o644)
}

// Default returns the built-in configuration.
func Default() *AppConfig { return defaultConfig() }

// DefaultUserConfigPath returns ~/.config/rag/config.yaml.
func DefaultUserConfigPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(home, ".config", "rag", "config.yaml"), nil
}

// Validate rejects combinations the pipeline cannot run. Errors wrap
// domain.ErrInvalidConfig.
func (c *AppConfig) Validate() error {
	switch c.VectorStore.Metric {
	case "cosine", "l2":
	default:
		return fmt.Errorf("%w: vector_store.metric must be cosine or l2, got %q", domain.ErrInvalidConfig, c.VectorStore.Metric)
	}
	if c.VectorStore.Type == "chromem" && c.VectorStore.Metric != "cosine" {
		return fmt.Errorf("%w: chromem only ranks by cosine similarity", domain.ErrInvalidConfig)
	}
	if t := c.Embedder.Type; t == "tfidf" || t == "" {
		if c.Embedder.Cache.Type == "redis" {
			return fmt.Errorf("%w: tfidf vectors depend on the corpus and cannot be cached", domain.ErrInvalidConfig)
		}
		// the vocabulary lives in process memory, so a reopened index
		// could not embed queries in its vector space
		if c.VectorStore.persistent() {
			return fmt.Errorf("%w: tfidf cannot back the persistent %s store", domain.ErrInvalidConfig, c.VectorStore.Type)
		}
	}
	if c.Retrieval.TopK <= 0 {
		return fmt.Errorf("%w: retrieval.top_k must be positive, got %d", domain.ErrInvalidConfig, c.Retrieval.TopK)
	}
	if c.Chunker.OverlapSentences < 0 {
		return fmt.Errorf("%w: chunker.overlap_sentences must not be negative", domain.ErrInvalidConfig)
	}
	return nil
}

// persistent reports whether the index outlives the process.
func (v VectorStoreConfig) persistent() bool {
	switch v.Type {
	case "sqlite", "qdrant":
		return true
	case "chromem":
		return v.Chromem.Path != ""
	}
	return false
}

// envKey maps RAG_VECTOR_STORE__QDRANT__HOST to vector_store.qdrant.host.
func envKey(s string) string {
	s = strings.ToLower(strings.TrimPrefix(s, EnvPrefix))
	return strings.ReplaceAll(s, "__", ".")
}

func defaultConfig() *AppConfig {
	return &AppConfig{
		Embedder:    EmbedderConfig{Type: "tfidf", Cache: EmbeddingCacheConfig{Type: "none"}},
		Chunker:     ChunkerConfig{Type: "sentence", SentencesPerChunk: 5, OverlapSentences: 1},
		VectorStore: VectorStoreConfig{Type: "memory", Metric: "cosine"},
		Summarizer:  SummarizerConfig{Type: "frequency", MaxSentences: 5},
		Retrieval:   RetrievalConfig{TopK: 3},
		Prompt:      PromptConfig{Template: "qa"},
		Generator:   GeneratorConfig{Type: "extractive", MaxTokens: 256, NumBeams: 1},
		Logging:     LoggingConfig{Level: "info", Format: "console"},
		Server:      ServerConfig{Addr: ":8080"},
	}
}

func applyConfigDefaults(cfg *AppConfig) {
	if cfg.Chunker.SentencesPerChunk == 0 {
		cfg.Chunker.SentencesPerChunk = 5
	}
	if cfg.VectorStore.Metric == "" {
		cfg.VectorStore.Metric = "cosine"
	}
	if cfg.Retrieval.TopK == 0 {
		cfg.Retrieval.TopK = 3
	}
	if cfg.Embedder.Type == "openai" {
		o := &cfg.Embedder.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "text-embedding-3-small"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 30
		}
		if o.BatchSize == 0 {
			o.BatchSize = 32
		}
	}
	if cfg.Embedder.Cache.Type == "redis" {
		r := &cfg.Embedder.Cache.Redis
		if r.Addr == "" {
			r.Addr = "localhost:6379"
		}
		if r.TTLSecs == 0 {
			r.TTLSecs = 24 * 60 * 60
		}
	}
	switch cfg.VectorStore.Type {
	case "qdrant":
		q := &cfg.VectorStore.Qdrant
		if q.Host == "" {
			q.Host = "localhost"
		}
		if q.Port == 0 {
			q.Port = 6334
		}
		if q.Collection == "" {
			q.Collection = "rag_chunks"
		}
	case "chromem":
		if cfg.VectorStore.Chromem.Collection == "" {
			cfg.VectorStore.Chromem.Collection = "rag_chunks"
		}
	case "sqlite":
		if cfg.VectorStore.SQLite.Path == "" {
			cfg.VectorStore.SQLite.Path = "rag_index.db"
		}
	}
	switch cfg.Generator.Type {
	case "openai":
		o := &cfg.Generator.OpenAI
		if o.BaseURL == "" {
			o.BaseURL = "https://api.openai.com/v1/"
		}
		if o.APIKeyEnv == "" {
			o.APIKeyEnv = "OPENAI_API_KEY"
		}
		if o.Model == "" {
			o.Model = "gpt-4o-mini"
		}
		if o.TimeoutSecs == 0 {
			o.TimeoutSecs = 60
		}
	case "ollama":
		o := &cfg.Generator.Ollama
		if o.ServerURL == "" {
			o.ServerURL = "http://localhost:11434"
		}
		if o.Model == "" {
			o.Model = "llama3.2"
		}
	}
}
