package adapter

import (
	"context"
	"time"
)

// DBAdapter is a thin database access layer: connect, run queries, inspect
// the schema catalog. No ORM.
type DBAdapter interface {
	Connect(ctx context.Context) error
	Close() error

	// ExecuteQuery runs a read query and returns the result rows with
	// values rendered as strings, in database iteration order.
	ExecuteQuery(ctx context.Context, query string) (*QueryResult, error)

	// Schema returns the CREATE TABLE DDL for every user table.
	Schema(ctx context.Context) ([]TableSchema, error)
}

// QueryResult is a uniform query result.
type QueryResult struct {
	Columns  []string
	Rows     [][]string
	RowCount int
	Duration time.Duration
}

// TableSchema is one entry of the schema catalog.
type TableSchema struct {
	Name string
	DDL  string
}
