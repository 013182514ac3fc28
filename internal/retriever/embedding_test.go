package retriever

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/daniel-gomm/target/internal/dataset"
)

// axisClient embeds text onto one of three fixed axes based on a keyword,
// so cosine similarity becomes an exact match signal.
type axisClient struct{}

func (axisClient) Embed(_ context.Context, texts []string) ([][]float32, error) {
	vectors := make([][]float32, 0, len(texts))
	for _, text := range texts {
		v := []float32{0.1, 0.1, 0.1}
		switch {
		case strings.Contains(text, "schools"):
			v = []float32{1, 0, 0}
		case strings.Contains(text, "students"):
			v = []float32{0, 1, 0}
		case strings.Contains(text, "teachers"):
			v = []float32{0, 0, 1}
		}
		vectors = append(vectors, v)
	}
	return vectors, nil
}

type failingClient struct{}

func (failingClient) Embed(context.Context, []string) ([][]float32, error) {
	return nil, errors.New("embedding service unavailable")
}

func testCorpus() map[dataset.TableID]dataset.Table {
	return map[dataset.TableID]dataset.Table{
		{Database: "db", Table: "schools"}:  {{"id", "schools"}},
		{Database: "db", Table: "students"}: {{"id", "students"}},
		{Database: "db", Table: "teachers"}: {{"id", "teachers"}},
	}
}

func TestEmbeddingRetrieverRanksBySimilarity(t *testing.T) {
	r := NewEmbedding()
	client := axisClient{}
	require.NoError(t, r.EmbedCorpus(context.Background(), "ds", testCorpus(), client))

	batch := &dataset.QueryBatch{
		IDs:   []string{"q1", "q2"},
		Texts: []string{"how many students", "list teachers"},
	}
	results, err := r.RetrieveBatch(context.Background(), batch, "ds", 1, client)
	require.NoError(t, err)
	require.Len(t, results, 2)

	assert.Equal(t, "q1", results[0].QueryID)
	require.Len(t, results[0].Tables, 1)
	assert.Equal(t, "students", results[0].Tables[0].Table)

	assert.Equal(t, "q2", results[1].QueryID)
	require.Len(t, results[1].Tables, 1)
	assert.Equal(t, "teachers", results[1].Tables[0].Table)
}

func TestEmbeddingRetrieverTopKClampedToCorpus(t *testing.T) {
	r := NewEmbedding()
	client := axisClient{}
	require.NoError(t, r.EmbedCorpus(context.Background(), "ds", testCorpus(), client))

	batch := &dataset.QueryBatch{IDs: []string{"q1"}, Texts: []string{"schools"}}
	results, err := r.RetrieveBatch(context.Background(), batch, "ds", 10, client)
	require.NoError(t, err)
	require.Len(t, results, 1)
	assert.Len(t, results[0].Tables, 3)
	assert.Equal(t, "schools", results[0].Tables[0].Table)
}

func TestEmbeddingRetrieverUnknownDataset(t *testing.T) {
	r := NewEmbedding()
	batch := &dataset.QueryBatch{IDs: []string{"q1"}, Texts: []string{"x"}}
	_, err := r.RetrieveBatch(context.Background(), batch, "missing", 1, axisClient{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "not been indexed")
}

func TestEmbeddingRetrieverRequiresClient(t *testing.T) {
	r := NewEmbedding()
	err := r.EmbedCorpus(context.Background(), "ds", testCorpus(), nil)
	assert.Error(t, err)

	batch := &dataset.QueryBatch{IDs: []string{"q1"}, Texts: []string{"x"}}
	_, err = r.RetrieveBatch(context.Background(), batch, "ds", 1, nil)
	assert.Error(t, err)
}

func TestEmbeddingRetrieverPropagatesClientErrors(t *testing.T) {
	r := NewEmbedding()
	err := r.EmbedCorpus(context.Background(), "ds", testCorpus(), failingClient{})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "embedding service unavailable")
}

func TestCosine(t *testing.T) {
	assert.InDelta(t, 1.0, cosine([]float32{1, 0}, []float32{2, 0}), 1e-9)
	assert.InDelta(t, 0.0, cosine([]float32{1, 0}, []float32{0, 1}), 1e-9)
	assert.Equal(t, 0.0, cosine([]float32{1}, []float32{1, 2}))
	assert.Equal(t, 0.0, cosine([]float32{0, 0}, []float32{1, 1}))
}
