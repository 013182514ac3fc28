package adapter

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "modernc.org/sqlite"
)

// SQLiteAdapter adapts a SQLite database file.
type SQLiteAdapter struct {
	db       *sql.DB
	filePath string
}

// NewSQLite creates an adapter for the given database file. Use ":memory:"
// for an in-memory database.
func NewSQLite(filePath string) *SQLiteAdapter {
	return &SQLiteAdapter{filePath: filePath}
}

// Connect opens the database and verifies the connection.
func (a *SQLiteAdapter) Connect(ctx context.Context) error {
	db, err := sql.Open("sqlite", a.filePath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	if err := db.PingContext(ctx); err != nil {
		db.Close()
		return fmt.Errorf("failed to ping database: %w", err)
	}
	a.db = db
	return nil
}

// Close closes the connection.
func (a *SQLiteAdapter) Close() error {
	if a.db != nil {
		return a.db.Close()
	}
	return nil
}

// ExecuteQuery executes a query. Values are rendered as strings so results
// from different queries compare uniformly; NULL renders as the empty string.
func (a *SQLiteAdapter) ExecuteQuery(ctx context.Context, query string) (*QueryResult, error) {
	start := time.Now()

	rows, err := a.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	columns, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	var result [][]string
	for rows.Next() {
		values := make([]any, len(columns))
		valuePtrs := make([]any, len(columns))
		for i := range values {
			valuePtrs[i] = &values[i]
		}
		if err := rows.Scan(valuePtrs...); err != nil {
			return nil, err
		}

		row := make([]string, len(columns))
		for i, val := range values {
			row[i] = renderValue(val)
		}
		result = append(result, row)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	return &QueryResult{
		Columns:  columns,
		Rows:     result,
		RowCount: len(result),
		Duration: time.Since(start),
	}, nil
}

// Schema reads the CREATE TABLE statements from the sqlite schema catalog.
func (a *SQLiteAdapter) Schema(ctx context.Context) ([]TableSchema, error) {
	result, err := a.ExecuteQuery(ctx,
		"SELECT name, sql FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, fmt.Errorf("failed to read schema catalog: %w", err)
	}
	schemas := make([]TableSchema, 0, len(result.Rows))
	for _, row := range result.Rows {
		schemas = append(schemas, TableSchema{Name: row[0], DDL: row[1]})
	}
	return schemas, nil
}

// TableNames lists the user tables.
func (a *SQLiteAdapter) TableNames(ctx context.Context) ([]string, error) {
	result, err := a.ExecuteQuery(ctx,
		"SELECT name FROM sqlite_master WHERE type='table' AND name NOT LIKE 'sqlite_%'")
	if err != nil {
		return nil, err
	}
	names := make([]string, 0, len(result.Rows))
	for _, row := range result.Rows {
		names = append(names, row[0])
	}
	return names, nil
}

// ReadTable reads up to limit rows of a table, headers first. limit <= 0
// reads everything.
func (a *SQLiteAdapter) ReadTable(ctx context.Context, name string, limit int) ([][]string, error) {
	query := fmt.Sprintf("SELECT * FROM %q", name)
	if limit > 0 {
		query = fmt.Sprintf("%s LIMIT %d", query, limit)
	}
	result, err := a.ExecuteQuery(ctx, query)
	if err != nil {
		return nil, err
	}
	table := make([][]string, 0, len(result.Rows)+1)
	table = append(table, result.Columns)
	table = append(table, result.Rows...)
	return table, nil
}

func renderValue(val any) string {
	switch v := val.(type) {
	case nil:
		return ""
	case []byte:
		return string(v)
	case string:
		return v
	default:
		return fmt.Sprintf("%v", v)
	}
}
