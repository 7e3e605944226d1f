// Package internalerr holds the sentinel errors shared across companymatch
// packages. Normalizer, Scorer and BlockingIndex never return these. The
// Matcher, the embedding index, the embeddings client and config
// validation return them, for the fatal, programmer-contract-violation
// and invalid-configuration class.
package internalerr

import "errors"

var (
	// ErrBIDOutOfRange is returned when a candidate or cache references a
	// b_id outside the bounds of the preprocessed B slice.
	ErrBIDOutOfRange = errors.New("companymatch: b_id out of range")

	// ErrProviderBatchMismatch is returned when an embedding provider
	// returns a different number of vectors than it was given strings.
	ErrProviderBatchMismatch = errors.New("companymatch: embedding provider returned wrong-length batch")

	// ErrInvalidConfig is returned when a loaded configuration is
	// structurally invalid (e.g. non-positive caps, empty weight set).
	ErrInvalidConfig = errors.New("companymatch: invalid configuration")

	// ErrNotPreprocessed is returned when MatchOne/MatchAll is called
	// before PreprocessB.
	ErrNotPreprocessed = errors.New("companymatch: matcher has not preprocessed B")
)
