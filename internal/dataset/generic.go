package dataset

import (
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
)

// Generic loads a retrieval/QA dataset from a local directory holding
// corpus.json and queries.json:
//
//	dir/
//	├── corpus.json   [{"database_id", "table_id", "table": [[...], ...]}]
//	└── queries.json  [{"query_id", "query", "database_id", "table_id",
//	                    "answer", "difficulty"}]
type Generic struct {
	name string
	dir  string

	queries []Query
	corpus  map[TableID]Table
}

type corpusEntry struct {
	DatabaseID string     `json:"database_id"`
	TableID    string     `json:"table_id"`
	Table      [][]string `json:"table"`
}

type queryEntry struct {
	QueryID    string `json:"query_id"`
	Query      string `json:"query"`
	DatabaseID string `json:"database_id"`
	TableID    string `json:"table_id"`
	Answer     string `json:"answer"`
	Difficulty string `json:"difficulty"`
}

// NewGeneric constructs the loader. Call Load before use.
func NewGeneric(name, dir string) *Generic {
	return &Generic{name: name, dir: dir}
}

// Load reads both dataset files into memory.
func (l *Generic) Load() error {
	var corpus []corpusEntry
	if err := readJSON(filepath.Join(l.dir, "corpus.json"), &corpus); err != nil {
		return err
	}
	var queries []queryEntry
	if err := readJSON(filepath.Join(l.dir, "queries.json"), &queries); err != nil {
		return err
	}

	l.corpus = make(map[TableID]Table, len(corpus))
	for _, entry := range corpus {
		l.corpus[TableID{Database: entry.DatabaseID, Table: entry.TableID}] = entry.Table
	}

	l.queries = make([]Query, 0, len(queries))
	for _, entry := range queries {
		l.queries = append(l.queries, Query{
			ID:         entry.QueryID,
			Text:       entry.Query,
			Gold:       TableID{Database: entry.DatabaseID, Table: entry.TableID},
			Answer:     entry.Answer,
			Difficulty: entry.Difficulty,
		})
	}
	return nil
}

func (l *Generic) Name() string { return l.name }

func (l *Generic) TableIDToTable() map[TableID]Table { return l.corpus }

func (l *Generic) Queries(batchSize int) iter.Seq[*QueryBatch] {
	return Batches(l.queries, batchSize)
}

func readJSON(path string, v any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("read dataset file: %w", err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}
