package retriever

import (
	"context"
	"fmt"
	"math"
	"sort"

	"github.com/daniel-gomm/target/internal/dataset"
)

// Embedding is a ClientBacked reference retriever. It keeps corpus vectors
// in memory and relies on the externally supplied embedding-service client
// for all vector computation, at indexing and at retrieval time.
type Embedding struct {
	stores map[string]*vectorStore
}

var _ ClientBacked = (*Embedding)(nil)

type vectorStore struct {
	ids     []dataset.TableID
	vectors [][]float32
}

// NewEmbedding creates the retriever with no indexed datasets.
func NewEmbedding() *Embedding {
	return &Embedding{stores: make(map[string]*vectorStore)}
}

// EmbedCorpus embeds every table of the corpus through the client and keeps
// the vectors in memory under the dataset's name.
func (r *Embedding) EmbedCorpus(ctx context.Context, datasetName string, corpus map[dataset.TableID]dataset.Table, client Client) error {
	if client == nil {
		return fmt.Errorf("embedding retriever needs a client to index %s", datasetName)
	}

	store := &vectorStore{}
	texts := make([]string, 0, len(corpus))
	for id, table := range corpus {
		store.ids = append(store.ids, id)
		texts = append(texts, dataset.MarkdownTableWithName(id, table))
	}
	vectors, err := client.Embed(ctx, texts)
	if err != nil {
		return fmt.Errorf("embed corpus of %s: %w", datasetName, err)
	}
	if len(vectors) != len(store.ids) {
		return fmt.Errorf("embedding client returned %d vectors for %d tables", len(vectors), len(store.ids))
	}
	store.vectors = vectors
	r.stores[datasetName] = store
	return nil
}

// RetrieveBatch embeds the batch's query texts in one client call and ranks
// the indexed tables by cosine similarity.
func (r *Embedding) RetrieveBatch(ctx context.Context, batch *dataset.QueryBatch, datasetName string, topK int, client Client) ([]Result, error) {
	if client == nil {
		return nil, fmt.Errorf("embedding retriever needs a client to retrieve from %s", datasetName)
	}
	store, ok := r.stores[datasetName]
	if !ok {
		return nil, fmt.Errorf("dataset %s has not been indexed", datasetName)
	}

	queryVectors, err := client.Embed(ctx, batch.Texts)
	if err != nil {
		return nil, fmt.Errorf("embed queries of %s: %w", datasetName, err)
	}
	if len(queryVectors) != batch.Len() {
		return nil, fmt.Errorf("embedding client returned %d vectors for %d queries", len(queryVectors), batch.Len())
	}

	results := make([]Result, 0, batch.Len())
	for i, qv := range queryVectors {
		results = append(results, Result{
			Dataset: datasetName,
			QueryID: batch.IDs[i],
			Tables:  store.topK(qv, topK),
		})
	}
	return results, nil
}

func (s *vectorStore) topK(query []float32, k int) []dataset.TableID {
	type scored struct {
		id    dataset.TableID
		score float64
	}
	ranked := make([]scored, 0, len(s.ids))
	for i, v := range s.vectors {
		ranked = append(ranked, scored{id: s.ids[i], score: cosine(query, v)})
	}
	sort.SliceStable(ranked, func(i, j int) bool { return ranked[i].score > ranked[j].score })

	k = min(k, len(ranked))
	ids := make([]dataset.TableID, 0, k)
	for _, r := range ranked[:k] {
		ids = append(ids, r.id)
	}
	return ids
}

func cosine(a, b []float32) float64 {
	if len(a) != len(b) {
		return 0
	}
	var dot, normA, normB float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
		normA += float64(a[i]) * float64(a[i])
		normB += float64(b[i]) * float64(b[i])
	}
	if normA == 0 || normB == 0 {
		return 0
	}
	return dot / (math.Sqrt(normA) * math.Sqrt(normB))
}
