package task

import (
	"context"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/sirupsen/logrus"

	"github.com/daniel-gomm/target/internal/adapter"
	"github.com/daniel-gomm/target/internal/dataset"
	"github.com/daniel-gomm/target/internal/generation"
	"github.com/daniel-gomm/target/internal/retriever"
	"github.com/daniel-gomm/target/internal/sqleval"
)

// Text2SQLConfig configures the Text-to-SQL task.
type Text2SQLConfig struct {
	Datasets   []string
	IncludeVES bool
	// Workers and Timeout are forwarded to the SQL execution evaluator.
	Workers int
	Timeout time.Duration
	Logger  *logrus.Logger
}

// Text2SQL evaluates generated SQL by executing it. The generator is
// prompted with the schemas of the retrieved tables' databases and must
// answer with "<sql>\t<database_id>".
type Text2SQL struct {
	generator    generation.Generator
	cfg          Text2SQLConfig
	databaseDirs map[string]string
}

// NewText2SQL creates the task. Call SetupDatabaseDirs with the dataset
// loaders before running, so finalization can locate the database files.
func NewText2SQL(generator generation.Generator, cfg Text2SQLConfig) *Text2SQL {
	if cfg.Logger == nil {
		cfg.Logger = logrus.New()
	}
	return &Text2SQL{
		generator:    generator,
		cfg:          cfg,
		databaseDirs: make(map[string]string),
	}
}

func (t *Text2SQL) Name() string { return "Text to SQL Task" }

func (t *Text2SQL) Datasets() []string { return t.cfg.Datasets }

// SetupDatabaseDirs records each dataset's database directory.
func (t *Text2SQL) SetupDatabaseDirs(loaders map[string]dataset.Text2SQLLoader) {
	for name, loader := range loaders {
		t.databaseDirs[name] = loader.DatabaseDir()
	}
}

// NewSession binds a fresh accumulator to one dataset. A session evaluates
// exactly that dataset; the database directory must be known up front.
func (t *Text2SQL) NewSession(datasetName string) (Session, error) {
	dir, ok := t.databaseDirs[datasetName]
	if !ok {
		return nil, fmt.Errorf("dataset %q has no database directory configured", datasetName)
	}
	return &text2sqlSession{
		task:        t,
		dataset:     datasetName,
		databaseDir: dir,
		schemaCache: make(map[string]string),
	}, nil
}

// text2sqlSession accumulates one dataset's predicted/reference SQL pairs
// in batch order, for 1:1 pairing at finalize time.
type text2sqlSession struct {
	task        *Text2SQL
	dataset     string
	databaseDir string
	schemaCache map[string]string

	pred         []sqleval.SQLPair
	ref          []sqleval.SQLPair
	difficulties []string
}

// Generate prompts the generator once per query with the concatenated
// schemas of the retrieved tables' owning databases, in retrieval rank
// order.
func (s *text2sqlSession) Generate(ctx context.Context, batch *dataset.QueryBatch, retrieved []retriever.Result) ([]GeneratedResult, error) {
	results := make([]GeneratedResult, 0, batch.Len())
	for i, queryText := range batch.Texts {
		schemas := make([]string, 0, len(retrieved[i].Tables))
		for _, id := range retrieved[i].Tables {
			schema, err := s.schema(ctx, id.Database)
			if err != nil {
				return nil, err
			}
			schemas = append(schemas, schema)
		}

		generated, err := s.task.generator.Generate(ctx, strings.Join(schemas, "\n"), queryText)
		if err != nil {
			return nil, fmt.Errorf("generate for query %s: %w", batch.IDs[i], err)
		}
		results = append(results, GeneratedResult{
			Dataset: s.dataset,
			QueryID: batch.IDs[i],
			Raw:     generated,
		})
	}
	return results, nil
}

// Update parses each generated result into a (SQL, database id) pair and
// appends it with its reference counterpart and difficulty label.
// Unparsable generator output is a data error, not a silent skip.
func (s *text2sqlSession) Update(batch *dataset.QueryBatch, results []GeneratedResult) error {
	if len(results) != batch.Len() {
		return fmt.Errorf("got %d generated results for a batch of %d queries", len(results), batch.Len())
	}
	for i, result := range results {
		parts := strings.SplitN(result.Raw, "\t", 2)
		if len(parts) < 2 {
			return fmt.Errorf("could not split predicted sql and database id from %q", result.Raw)
		}
		s.pred = append(s.pred, sqleval.SQLPair{
			SQL:        strings.TrimSpace(parts[0]),
			DatabaseID: strings.TrimSpace(parts[1]),
		})
		s.ref = append(s.ref, sqleval.SQLPair{
			SQL:        batch.Answers[i],
			DatabaseID: batch.GoldTables[i].Database,
		})
		difficulty := batch.Difficulties[i]
		if difficulty == "" {
			difficulty = sqleval.DefaultDifficulty
		}
		s.difficulties = append(s.difficulties, difficulty)
	}
	return nil
}

// Finalize executes all accumulated pairs and flattens the scores.
func (s *text2sqlSession) Finalize(ctx context.Context) (DownstreamPerformance, error) {
	evaluator := sqleval.New(sqleval.Options{
		Workers:    s.task.cfg.Workers,
		Timeout:    s.task.cfg.Timeout,
		IncludeVES: s.task.cfg.IncludeVES,
	}, s.task.cfg.Logger)

	scores, err := evaluator.Evaluate(ctx, s.pred, s.ref, s.difficulties, s.databaseDir)
	if err != nil {
		return DownstreamPerformance{}, fmt.Errorf("execute sql evaluation: %w", err)
	}

	s.pred = nil
	s.ref = nil
	s.difficulties = nil

	perf := DownstreamPerformance{
		TaskName: s.task.Name(),
		Scores:   map[string]float64{"execution_accuracy": scores.Accuracy},
	}
	if s.task.cfg.IncludeVES {
		perf.Scores["execution_ves"] = scores.VES
	}
	for difficulty, ds := range scores.ByDifficulty {
		key := strings.ToLower(difficulty)
		perf.Scores["execution_accuracy:"+key] = ds.Accuracy
		if s.task.cfg.IncludeVES {
			perf.Scores["execution_ves:"+key] = ds.VES
		}
	}
	return perf, nil
}

// schema renders "Table Name + DDL" for every table of a database, read
// from the database file's schema catalog. Cached per database id for the
// lifetime of the session.
func (s *text2sqlSession) schema(ctx context.Context, databaseID string) (string, error) {
	if cached, ok := s.schemaCache[databaseID]; ok {
		return cached, nil
	}

	dbPath := filepath.Join(s.databaseDir, databaseID, databaseID+".sqlite")
	db := adapter.NewSQLite(dbPath)
	if err := db.Connect(ctx); err != nil {
		return "", fmt.Errorf("open database %s: %w", databaseID, err)
	}
	defer db.Close()

	tables, err := db.Schema(ctx)
	if err != nil {
		return "", fmt.Errorf("read schema of %s: %w", databaseID, err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "Database Name: %s\n", databaseID)
	for _, table := range tables {
		fmt.Fprintf(&sb, "Table Name: %s\n Schema:\n%s\n", table.Name, table.DDL)
	}
	rendered := sb.String()
	s.schemaCache[databaseID] = rendered
	return rendered, nil
}
