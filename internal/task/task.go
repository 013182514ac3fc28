// Package task contains the evaluation orchestrator: it drives a retriever
// and a downstream generator over dataset batches, tracks retrieval
// accuracy, and delegates downstream scoring to the task implementation.
package task

import (
	"context"

	"github.com/daniel-gomm/target/internal/dataset"
	"github.com/daniel-gomm/target/internal/retriever"
)

// Task is one benchmark task (table retrieval, Text-to-SQL, ...). A task
// creates a fresh Session per dataset evaluation; all mutable downstream
// state lives in the session, so a task value is reusable across datasets
// without cross-contamination.
type Task interface {
	// Name identifies the task in results and logs.
	Name() string

	// Datasets names the datasets this task evaluates. Must be a subset of
	// the loaders handed to the runner.
	Datasets() []string

	// NewSession starts the downstream-evaluation state for one dataset.
	NewSession(datasetName string) (Session, error)
}

// Session carries the downstream state of one dataset evaluation, from the
// first batch through Finalize. Sessions are used by a single goroutine.
type Session interface {
	// Generate produces the downstream results for a batch, in batch
	// order. Retrieval-only tasks return an empty slice.
	Generate(ctx context.Context, batch *dataset.QueryBatch, retrieved []retriever.Result) ([]GeneratedResult, error)

	// Update folds a batch's generated results into the session's running
	// metric state. Called once per batch, right after Generate.
	Update(batch *dataset.QueryBatch, results []GeneratedResult) error

	// Finalize computes the downstream performance and invalidates the
	// session.
	Finalize(ctx context.Context) (DownstreamPerformance, error)
}
