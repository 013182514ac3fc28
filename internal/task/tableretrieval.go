package task

import (
	"context"

	"github.com/daniel-gomm/target/internal/dataset"
	"github.com/daniel-gomm/target/internal/retriever"
)

// TableRetrieval is the retrieval-only task: it measures retrieval accuracy
// and has no downstream generation stage.
type TableRetrieval struct {
	datasets []string
}

// NewTableRetrieval creates the task for the named datasets.
func NewTableRetrieval(datasets ...string) *TableRetrieval {
	return &TableRetrieval{datasets: datasets}
}

func (t *TableRetrieval) Name() string { return "Table Retrieval Task" }

func (t *TableRetrieval) Datasets() []string { return t.datasets }

func (t *TableRetrieval) NewSession(string) (Session, error) {
	return retrievalOnlySession{}, nil
}

type retrievalOnlySession struct{}

func (retrievalOnlySession) Generate(context.Context, *dataset.QueryBatch, []retriever.Result) ([]GeneratedResult, error) {
	return nil, nil
}

func (retrievalOnlySession) Update(*dataset.QueryBatch, []GeneratedResult) error { return nil }

func (retrievalOnlySession) Finalize(context.Context) (DownstreamPerformance, error) {
	return DownstreamPerformance{TaskName: "Table Retrieval Task"}, nil
}
