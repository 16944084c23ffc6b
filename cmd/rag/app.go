package main

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/zap"

	"ragqa/internal/chunker"
	"ragqa/internal/config"
	"ragqa/internal/embedding"
	"ragqa/internal/generation"
	"ragqa/internal/loader"
	"ragqa/internal/metrics"
	"ragqa/internal/prompt"
	"ragqa/internal/service"
	"ragqa/internal/summarizer"
	"ragqa/internal/vectorstore"
)

// app is a fully wired service plus the resources that need closing.
type app struct {
	svc      *service.RAGServiceImpl
	registry *prometheus.Registry
	closers  []func() error
}

func (a *app) Close() error {
	var errs []error
	for _, c := range a.closers {
		errs = append(errs, c())
	}
	return errors.Join(errs...)
}

func buildApp(cfg *config.AppConfig, logger *zap.Logger) (*app, error) {
	a := &app{registry: prometheus.NewRegistry()}
	a.registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	emb, err := embedding.New(cfg.Embedder, logger)
	if err != nil {
		return nil, err
	}
	if c, ok := emb.(interface{ Close() error }); ok {
		a.closers = append(a.closers, c.Close)
	}
	ch, err := chunker.New(cfg.Chunker)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	st, err := vectorstore.New(cfg.VectorStore, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	a.closers = append(a.closers, func() error { return vectorstore.Close(st) })
	pa, err := prompt.New(cfg.Prompt.Template, cfg.Prompt.Custom)
	if err != nil {
		_ = a.Close()
		return nil, err
	}
	gen, err := generation.New(cfg.Generator, logger)
	if err != nil {
		_ = a.Close()
		return nil, err
	}

	a.svc = service.NewRAGService(service.Components{
		Chunker:             ch,
		Embedder:            emb,
		Store:               st,
		Summarizer:          summarizer.NewFrequencySummarizer(),
		Prompt:              pa,
		Generator:           gen,
		Loader:              loader.New(logger),
		Params:              generation.Params(cfg.Generator),
		SummaryMaxSentences: cfg.Summarizer.MaxSentences,
		TopK:                cfg.Retrieval.TopK,
		Logger:              logger,
		Metrics:             metrics.New(a.registry),
	})
	logger.Debug("pipeline wired",
		zap.String("embedder", emb.Name()),
		zap.String("vector_store", cfg.VectorStore.Type),
		zap.String("metric", cfg.VectorStore.Metric),
		zap.String("prompt", pa.Name()),
		zap.String("generator", gen.Name()))
	return a, nil
}
