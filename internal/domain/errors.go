package domain

import "errors"

// Pipeline error taxonomy. Callers classify with errors.Is; constructors
// wrap these with context via fmt.Errorf("...: %w", ...).
var (
	// ErrDataUnavailable marks provider failures for a symbol. Batch
	// operations skip the symbol and log; single-symbol calls return it.
	ErrDataUnavailable = errors.New("market data unavailable")

	// ErrInsufficientSamples means fewer clean rows survived preparation
	// than the configured minimum. It aborts the training run.
	ErrInsufficientSamples = errors.New("insufficient training samples")

	// ErrSchemaMismatch is returned only when reconciling a prediction-time
	// feature table against a persisted schema leaves zero usable features.
	ErrSchemaMismatch = errors.New("feature schema mismatch")

	// ErrNoModelResults means ensemble fusion was invoked with zero
	// sub-model results.
	ErrNoModelResults = errors.New("no model results to fuse")
)
