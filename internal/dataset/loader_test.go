package dataset

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestGenericLoader(t *testing.T) {
	dir := t.TempDir()
	corpus := `[
		{"database_id": "db1", "table_id": "schools", "table": [["id", "name"], ["1", "North"]]},
		{"database_id": "db1", "table_id": "students", "table": [["id"], ["7"]]}
	]`
	queries := `[
		{"query_id": "q1", "query": "how many schools", "database_id": "db1",
		 "table_id": "schools", "answer": "1", "difficulty": "easy"}
	]`
	require.NoError(t, os.WriteFile(filepath.Join(dir, "corpus.json"), []byte(corpus), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "queries.json"), []byte(queries), 0o644))

	loader := NewGeneric("fetaqa", dir)
	require.NoError(t, loader.Load())

	assert.Equal(t, "fetaqa", loader.Name())
	tables := loader.TableIDToTable()
	require.Len(t, tables, 2)
	assert.Equal(t, Table{{"id", "name"}, {"1", "North"}},
		tables[TableID{Database: "db1", Table: "schools"}])

	var got []Query
	for batch := range loader.Queries(10) {
		for i := range batch.IDs {
			got = append(got, Query{
				ID:         batch.IDs[i],
				Text:       batch.Texts[i],
				Gold:       batch.GoldTables[i],
				Answer:     batch.Answers[i],
				Difficulty: batch.Difficulties[i],
			})
		}
	}
	require.Len(t, got, 1)
	assert.Equal(t, Query{
		ID:         "q1",
		Text:       "how many schools",
		Gold:       TableID{Database: "db1", Table: "schools"},
		Answer:     "1",
		Difficulty: "easy",
	}, got[0])
}

func TestGenericLoaderMissingFiles(t *testing.T) {
	loader := NewGeneric("x", t.TempDir())
	assert.Error(t, loader.Load())
}

func TestText2SQLLoader(t *testing.T) {
	dir := t.TempDir()
	dbDir := filepath.Join(dir, "databases")
	queriesPath := filepath.Join(dir, "dev.json")

	require.NoError(t, os.MkdirAll(filepath.Join(dbDir, "concerts"), 0o755))
	db, err := sql.Open("sqlite", filepath.Join(dbDir, "concerts", "concerts.sqlite"))
	require.NoError(t, err)
	for _, stmt := range []string{
		"CREATE TABLE shows (id INTEGER, band TEXT)",
		"INSERT INTO shows VALUES (1, 'Orbit')",
		"INSERT INTO shows VALUES (2, 'Quartz')",
		"INSERT INTO shows VALUES (3, 'Nimbus')",
	} {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
	require.NoError(t, db.Close())
	// A stray directory without a database file is skipped.
	require.NoError(t, os.MkdirAll(filepath.Join(dbDir, "empty"), 0o755))

	devJSON := `[
		{"question_id": 14, "db_id": "concerts", "question": "How many bands?",
		 "SQL": "SELECT count(DISTINCT band) FROM shows", "evidence": "one row per show",
		 "difficulty": "simple"},
		{"db_id": "concerts", "question": "List the bands.",
		 "query": "SELECT band FROM shows"}
	]`
	require.NoError(t, os.WriteFile(queriesPath, []byte(devJSON), 0o644))

	loader := NewText2SQL("bird", queriesPath, dbDir, 2)
	require.NoError(t, loader.Load(context.Background()))

	assert.Equal(t, dbDir, loader.DatabaseDir())

	// Corpus: the sampled rows of every table, headers first.
	tables := loader.TableIDToTable()
	require.Len(t, tables, 1)
	table := tables[TableID{Database: "concerts", Table: "shows"}]
	require.Len(t, table, 3) // header + 2 sampled rows
	assert.Equal(t, []string{"id", "band"}, table[0])

	var queries []Query
	for batch := range loader.Queries(10) {
		for i := range batch.IDs {
			queries = append(queries, Query{
				ID:         batch.IDs[i],
				Text:       batch.Texts[i],
				Gold:       batch.GoldTables[i],
				Answer:     batch.Answers[i],
				Difficulty: batch.Difficulties[i],
			})
		}
	}
	require.Len(t, queries, 2)

	// BIRD style row: SQL field, evidence folded into the query text.
	assert.Equal(t, "14", queries[0].ID)
	assert.Equal(t, "How many bands?\nEvidence: one row per show", queries[0].Text)
	assert.Equal(t, "SELECT count(DISTINCT band) FROM shows", queries[0].Answer)
	assert.Equal(t, "simple", queries[0].Difficulty)
	assert.Equal(t, "concerts", queries[0].Gold.Database)

	// Spider style row: query field, positional id, no difficulty.
	assert.Equal(t, "1", queries[1].ID)
	assert.Equal(t, "List the bands.", queries[1].Text)
	assert.Equal(t, "SELECT band FROM shows", queries[1].Answer)
	assert.Empty(t, queries[1].Difficulty)
}
