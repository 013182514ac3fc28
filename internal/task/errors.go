package task

import "errors"

// Fatal configuration and degenerate-state errors. Anything wrapping one of
// these aborts the dataset evaluation; row-level SQL execution failures
// never surface here, they are absorbed by the evaluator as mismatches.
var (
	// ErrUnknownRetriever is returned when the retriever implements neither
	// (or both) of the two recognized capability shapes.
	ErrUnknownRetriever = errors.New("retriever implements none or both of the supported retriever shapes")

	// ErrMissingClient is returned when a client-backed retriever is run
	// without an embedding-service client.
	ErrMissingClient = errors.New("client-backed retriever requires an embedding client")

	// ErrDatasetNotLoaded is returned when the task's configured datasets
	// are not a subset of the loaders supplied to Run.
	ErrDatasetNotLoaded = errors.New("task dataset config is not a subset of the supplied dataset loaders")

	// ErrNoQueries is returned when metrics are finalized before any query
	// was processed.
	ErrNoQueries = errors.New("no queries processed")
)
