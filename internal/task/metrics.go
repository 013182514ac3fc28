package task

import (
	"fmt"

	"github.com/daniel-gomm/target/internal/dataset"
	"github.com/daniel-gomm/target/internal/retriever"
)

// retrievalTracker accumulates streaming retrieval accuracy for one dataset
// evaluation. Owned and mutated exclusively by the runner goroutine.
type retrievalTracker struct {
	truePositive   int
	totalProcessed int
}

// update counts one batch. A query is a true positive iff its gold
// (database, table) pair appears anywhere in the retrieved list; rank does
// not matter.
func (t *retrievalTracker) update(batch *dataset.QueryBatch, retrieved []retriever.Result) error {
	if len(retrieved) != batch.Len() {
		return fmt.Errorf("retriever returned %d results for a batch of %d queries", len(retrieved), batch.Len())
	}
	for i, gold := range batch.GoldTables {
		for _, id := range retrieved[i].Tables {
			if id == gold {
				t.truePositive++
				break
			}
		}
		t.totalProcessed++
	}
	return nil
}

// finalize computes the accuracy and resets the tracker to zero state.
// Finalizing with no processed queries is a fatal condition: returning 0.0
// would look like a meaningful score.
func (t *retrievalTracker) finalize(topK int) (RetrievalPerformance, error) {
	if t.totalProcessed == 0 {
		return RetrievalPerformance{}, ErrNoQueries
	}
	perf := RetrievalPerformance{
		K:        topK,
		Accuracy: float64(t.truePositive) / float64(t.totalProcessed),
	}
	t.truePositive = 0
	t.totalProcessed = 0
	return perf, nil
}
