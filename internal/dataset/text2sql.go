package dataset

import (
	"context"
	"encoding/json"
	"fmt"
	"iter"
	"os"
	"path/filepath"
	"strconv"

	"github.com/daniel-gomm/target/internal/adapter"
)

// devExample covers both the Spider and the BIRD dev-set layouts; the two
// differ in the name of the gold SQL field.
type devExample struct {
	QuestionID int    `json:"question_id"`
	DbID       string `json:"db_id"`
	Question   string `json:"question"`
	Query      string `json:"query"` // Spider gold SQL
	SQL        string `json:"SQL"`   // BIRD gold SQL
	Evidence   string `json:"evidence"`
	Difficulty string `json:"difficulty"`
	TableID    string `json:"table_id"` // optional gold table annotation
}

func (e devExample) goldSQL() string {
	if e.SQL != "" {
		return e.SQL
	}
	return e.Query
}

// Text2SQL loads a Text-to-SQL dataset from a BIRD/Spider style dev.json
// plus a database directory tree (<db_id>/<db_id>.sqlite). The corpus is
// built by sampling rows from every table of every database.
type Text2SQL struct {
	name        string
	queriesPath string
	databaseDir string
	sampleRows  int

	queries []Query
	corpus  map[TableID]Table
}

// NewText2SQL constructs the loader. Call Load before handing it to a task.
// sampleRows bounds the rows read per table for the retrieval corpus.
func NewText2SQL(name, queriesPath, databaseDir string, sampleRows int) *Text2SQL {
	if sampleRows <= 0 {
		sampleRows = 5
	}
	return &Text2SQL{
		name:        name,
		queriesPath: queriesPath,
		databaseDir: databaseDir,
		sampleRows:  sampleRows,
	}
}

// Load reads the query file and builds the table corpus from the database
// tree.
func (l *Text2SQL) Load(ctx context.Context) error {
	data, err := os.ReadFile(l.queriesPath)
	if err != nil {
		return fmt.Errorf("read queries file: %w", err)
	}
	var examples []devExample
	if err := json.Unmarshal(data, &examples); err != nil {
		return fmt.Errorf("parse queries file %s: %w", l.queriesPath, err)
	}

	l.queries = make([]Query, 0, len(examples))
	for i, ex := range examples {
		id := strconv.Itoa(ex.QuestionID)
		if ex.QuestionID == 0 {
			id = strconv.Itoa(i)
		}
		text := ex.Question
		if ex.Evidence != "" {
			text = fmt.Sprintf("%s\nEvidence: %s", ex.Question, ex.Evidence)
		}
		l.queries = append(l.queries, Query{
			ID:         id,
			Text:       text,
			Gold:       TableID{Database: ex.DbID, Table: ex.TableID},
			Answer:     ex.goldSQL(),
			Difficulty: ex.Difficulty,
		})
	}

	return l.loadCorpus(ctx)
}

func (l *Text2SQL) loadCorpus(ctx context.Context) error {
	entries, err := os.ReadDir(l.databaseDir)
	if err != nil {
		return fmt.Errorf("read database dir: %w", err)
	}

	l.corpus = make(map[TableID]Table)
	for _, entry := range entries {
		if !entry.IsDir() {
			continue
		}
		dbID := entry.Name()
		dbPath := filepath.Join(l.databaseDir, dbID, dbID+".sqlite")
		if _, err := os.Stat(dbPath); err != nil {
			continue
		}
		if err := l.loadDatabaseTables(ctx, dbID, dbPath); err != nil {
			return fmt.Errorf("load tables of %s: %w", dbID, err)
		}
	}
	return nil
}

func (l *Text2SQL) loadDatabaseTables(ctx context.Context, dbID, dbPath string) error {
	db := adapter.NewSQLite(dbPath)
	if err := db.Connect(ctx); err != nil {
		return err
	}
	defer db.Close()

	names, err := db.TableNames(ctx)
	if err != nil {
		return err
	}
	for _, name := range names {
		table, err := db.ReadTable(ctx, name, l.sampleRows)
		if err != nil {
			return err
		}
		l.corpus[TableID{Database: dbID, Table: name}] = table
	}
	return nil
}

func (l *Text2SQL) Name() string { return l.name }

func (l *Text2SQL) TableIDToTable() map[TableID]Table { return l.corpus }

func (l *Text2SQL) Queries(batchSize int) iter.Seq[*QueryBatch] {
	return Batches(l.queries, batchSize)
}

// DatabaseDir returns the root of the SQLite database tree.
func (l *Text2SQL) DatabaseDir() string { return l.databaseDir }
