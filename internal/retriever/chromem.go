package retriever

import (
	"context"
	"fmt"
	"sync"

	"github.com/philippgille/chromem-go"

	"github.com/daniel-gomm/target/internal/dataset"
)

// Chromem is a Standalone reference retriever backed by an in-process
// chromem-go vector store, one collection per dataset. Tables are embedded
// as markdown renderings of their sampled rows.
type Chromem struct {
	mu        sync.Mutex
	db        *chromem.DB
	embedding chromem.EmbeddingFunc
}

var _ Standalone = (*Chromem)(nil)

// NewChromem creates the retriever. The embedding function decides how
// query and table text become vectors (e.g. chromem.NewEmbeddingFuncOpenAICompat
// for any OpenAI-compatible endpoint).
func NewChromem(embedding chromem.EmbeddingFunc) *Chromem {
	return &Chromem{
		db:        chromem.NewDB(),
		embedding: embedding,
	}
}

// EmbedCorpus indexes every table of the dataset's corpus into the
// dataset's collection.
func (r *Chromem) EmbedCorpus(ctx context.Context, datasetName string, corpus map[dataset.TableID]dataset.Table) error {
	collection, err := r.collection(datasetName)
	if err != nil {
		return err
	}
	for id, table := range corpus {
		doc := chromem.Document{
			ID: id.String(),
			Metadata: map[string]string{
				"database_id": id.Database,
				"table_id":    id.Table,
			},
			Content: dataset.MarkdownTableWithName(id, table),
		}
		if err := collection.AddDocument(ctx, doc); err != nil {
			return fmt.Errorf("index table %s: %w", id, err)
		}
	}
	return nil
}

// RetrieveBatch queries the dataset's collection once per query, preserving
// batch order.
func (r *Chromem) RetrieveBatch(ctx context.Context, batch *dataset.QueryBatch, datasetName string, topK int) ([]Result, error) {
	collection, err := r.collection(datasetName)
	if err != nil {
		return nil, err
	}

	results := make([]Result, 0, batch.Len())
	for i, text := range batch.Texts {
		n := min(topK, collection.Count())
		docs, err := collection.Query(ctx, text, n, nil, nil)
		if err != nil {
			return nil, fmt.Errorf("query %q: %w", batch.IDs[i], err)
		}
		tables := make([]dataset.TableID, 0, len(docs))
		for _, doc := range docs {
			tables = append(tables, dataset.TableID{
				Database: doc.Metadata["database_id"],
				Table:    doc.Metadata["table_id"],
			})
		}
		results = append(results, Result{
			Dataset: datasetName,
			QueryID: batch.IDs[i],
			Tables:  tables,
		})
	}
	return results, nil
}

func (r *Chromem) collection(datasetName string) (*chromem.Collection, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.db.GetOrCreateCollection(datasetName, nil, r.embedding)
}
