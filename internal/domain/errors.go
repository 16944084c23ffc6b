package domain

import "errors"

var (
	// ErrEmptyInput indicates an empty query, text list or document batch.
	ErrEmptyInput = errors.New("empty input")

	// ErrInvalidConfig indicates invalid component configuration.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotPrepared is returned by corpus-fitted embedders used before Prepare.
	ErrNotPrepared = errors.New("embedder not prepared")

	// ErrDimensionMismatch indicates a vector whose length differs from the index dimension.
	ErrDimensionMismatch = errors.New("vector dimension mismatch")

	// ErrUnsupportedMetric indicates a distance metric the backend cannot rank by.
	ErrUnsupportedMetric = errors.New("unsupported distance metric")

	// ErrNoDocuments indicates a search against an empty corpus.
	ErrNoDocuments = errors.New("no documents indexed")

	// ErrMissingAPIKey indicates the configured credential variable is unset.
	ErrMissingAPIKey = errors.New("missing API key")

	// ErrEmptyCompletion indicates the generation model returned no text.
	ErrEmptyCompletion = errors.New("empty completion")

	// ErrNoContext indicates an extractive generation request without context.
	ErrNoContext = errors.New("no context to answer from")

	// ErrUnavailable indicates a component not compiled into this binary.
	ErrUnavailable = errors.New("component unavailable")
)
