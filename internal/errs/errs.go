// Package errs defines the boundary error kinds shared across the
// ingestion engine: components wrap one of these sentinels with context via
// fmt.Errorf("...: %w", ...) and callers classify with errors.Is, never by
// matching message strings.
package errs

import "errors"

var (
	// ErrCancelled marks an operation that stopped because its
	// cancellation token was observed.
	ErrCancelled = errors.New("cancelled")
	// ErrValidation marks malformed caller input.
	ErrValidation = errors.New("validation error")
	// ErrNotFound marks a missing job, page, or persisted record.
	ErrNotFound = errors.New("not found")
	// ErrFetch marks a non-recoverable fetch failure (non-200, non-304/404).
	ErrFetch = errors.New("fetch error")
	// ErrProcessing marks a pipeline/splitter failure.
	ErrProcessing = errors.New("processing error")
	// ErrStore marks a persistence-layer failure.
	ErrStore = errors.New("store error")
)
