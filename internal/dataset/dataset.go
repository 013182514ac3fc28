package dataset

import (
	"fmt"
	"iter"
	"strings"
)

// TableID identifies a table inside a corpus: the database it belongs to
// plus the table name within that database.
type TableID struct {
	Database string `json:"database_id"`
	Table    string `json:"table_id"`
}

func (id TableID) String() string {
	return id.Database + "/" + id.Table
}

// Table is a table in nested-array form. The first row holds the headers.
type Table [][]string

// Query is a single benchmark query with its gold labels.
type Query struct {
	ID         string
	Text       string
	Gold       TableID
	Answer     string // gold answer, or the reference SQL for Text-to-SQL
	Difficulty string // optional, empty when the dataset has no labels
}

// QueryBatch groups queries in columnar form. All slices are parallel and
// share the batch's insertion order; downstream stages zip them positionally.
type QueryBatch struct {
	IDs          []string
	Texts        []string
	GoldTables   []TableID
	Answers      []string
	Difficulties []string
}

// Len returns the number of queries in the batch.
func (b *QueryBatch) Len() int {
	return len(b.IDs)
}

func (b *QueryBatch) append(q Query) {
	b.IDs = append(b.IDs, q.ID)
	b.Texts = append(b.Texts, q.Text)
	b.GoldTables = append(b.GoldTables, q.Gold)
	b.Answers = append(b.Answers, q.Answer)
	b.Difficulties = append(b.Difficulties, q.Difficulty)
}

// Loader provides a loaded dataset to the evaluation loop.
type Loader interface {
	Name() string

	// TableIDToTable returns the full corpus, table id to table content.
	TableIDToTable() map[TableID]Table

	// Queries yields batches of at most batchSize queries in dataset order.
	// The sequence is finite and restartable only by calling Queries again.
	Queries(batchSize int) iter.Seq[*QueryBatch]
}

// Text2SQLLoader is a Loader whose corpus is backed by a tree of SQLite
// database files, one directory per database id.
type Text2SQLLoader interface {
	Loader

	// DatabaseDir returns the root directory holding
	// <database_id>/<database_id>.sqlite files.
	DatabaseDir() string
}

// Batches slices queries into batches of at most batchSize, preserving order.
func Batches(queries []Query, batchSize int) iter.Seq[*QueryBatch] {
	if batchSize <= 0 {
		batchSize = 1
	}
	return func(yield func(*QueryBatch) bool) {
		for start := 0; start < len(queries); start += batchSize {
			end := min(start+batchSize, len(queries))
			batch := &QueryBatch{}
			for _, q := range queries[start:end] {
				batch.append(q)
			}
			if !yield(batch) {
				return
			}
		}
	}
}

// MarkdownTable renders a nested-array table as a markdown table. The first
// row is treated as the header row.
func MarkdownTable(table Table) string {
	if len(table) == 0 {
		return ""
	}
	var sb strings.Builder
	sb.WriteString("| " + strings.Join(table[0], " | ") + " |\n")
	sb.WriteString("|" + strings.Repeat(" --- |", len(table[0])) + "\n")
	for _, row := range table[1:] {
		sb.WriteString("| " + strings.Join(row, " | ") + " |\n")
	}
	return sb.String()
}

// MarkdownTableWithName renders a table preceded by its identifier, the
// format handed to generators for question answering over retrieved tables.
func MarkdownTableWithName(id TableID, table Table) string {
	return fmt.Sprintf("Table: %s\n%s", id, MarkdownTable(table))
}
