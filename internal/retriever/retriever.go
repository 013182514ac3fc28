// Package retriever defines the two retriever capability shapes the
// evaluation loop dispatches on, plus reference implementations backed by an
// in-process vector store.
//
// A retriever is either Standalone (it owns its table embeddings end to end)
// or ClientBacked (it needs an external embedding-service client at call
// time). The evaluation loop accepts exactly these two shapes and rejects
// anything else before doing work.
package retriever

import (
	"context"

	"github.com/daniel-gomm/target/internal/dataset"
)

// Result holds the ranked tables retrieved for one query. TableStrings is
// filled by the evaluation loop once the ids are resolved against the
// corpus; retrievers leave it empty.
type Result struct {
	Dataset      string
	QueryID      string
	Tables       []dataset.TableID // ranked, length <= top-k
	TableStrings []string
}

// Standalone is the self-contained retriever shape: embeddings are
// persisted by the retriever itself and no external services are needed at
// retrieval time.
type Standalone interface {
	// EmbedCorpus indexes a dataset's corpus. Called once per dataset
	// before any retrieval.
	EmbedCorpus(ctx context.Context, datasetName string, corpus map[dataset.TableID]dataset.Table) error

	// RetrieveBatch returns the top-k ranked tables for every query in the
	// batch, in batch order.
	RetrieveBatch(ctx context.Context, batch *dataset.QueryBatch, datasetName string, topK int) ([]Result, error)
}

// ClientBacked is the retriever shape that depends on an external embedding
// service. The client is supplied by the caller on every call; running such
// a retriever without a client is a configuration error.
type ClientBacked interface {
	EmbedCorpus(ctx context.Context, datasetName string, corpus map[dataset.TableID]dataset.Table, client Client) error

	RetrieveBatch(ctx context.Context, batch *dataset.QueryBatch, datasetName string, topK int, client Client) ([]Result, error)
}

// Client is the embedding-service contract ClientBacked retrievers call out
// to.
type Client interface {
	Embed(ctx context.Context, texts []string) ([][]float32, error)
}
