package sqleval

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// writeDB creates <dir>/<dbID>/<dbID>.sqlite and applies the statements.
func writeDB(t *testing.T, dir, dbID string, stmts ...string) {
	t.Helper()
	dbDir := filepath.Join(dir, dbID)
	require.NoError(t, os.MkdirAll(dbDir, 0o755))

	db, err := sql.Open("sqlite", filepath.Join(dbDir, dbID+".sqlite"))
	require.NoError(t, err)
	defer db.Close()
	for _, stmt := range stmts {
		_, err := db.Exec(stmt)
		require.NoError(t, err)
	}
}

func seedSchools(t *testing.T, dir string) {
	t.Helper()
	writeDB(t, dir, "schools",
		"CREATE TABLE schools (id INTEGER, name TEXT, city TEXT)",
		"INSERT INTO schools VALUES (1, 'North High', 'Berkeley')",
		"INSERT INTO schools VALUES (2, 'South High', 'Oakland')",
		"INSERT INTO schools VALUES (3, 'East High', 'Berkeley')",
	)
}

func pairs(sqls ...string) []SQLPair {
	out := make([]SQLPair, 0, len(sqls))
	for _, s := range sqls {
		out = append(out, SQLPair{SQL: s, DatabaseID: "schools"})
	}
	return out
}

func TestEvaluateExactMatch(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs("SELECT name FROM schools WHERE city = 'Berkeley'"),
		pairs("SELECT name FROM schools WHERE city = 'Berkeley'"),
		nil, dir)
	require.NoError(t, err)

	assert.Equal(t, 1, scores.Total)
	assert.Equal(t, 1.0, scores.Accuracy)
	require.Contains(t, scores.ByDifficulty, DefaultDifficulty)
	assert.Equal(t, 1, scores.ByDifficulty[DefaultDifficulty].Count)
	assert.Equal(t, 1.0, scores.ByDifficulty[DefaultDifficulty].Accuracy)
}

func TestEvaluateEquivalentButDifferentSQL(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs("SELECT   name\nFROM schools   WHERE city='Berkeley'"),
		pairs("SELECT name FROM schools WHERE city = 'Berkeley'"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores.Accuracy)
}

func TestRowOrderDoesNotMatter(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs("SELECT id, name FROM schools ORDER BY id DESC"),
		pairs("SELECT id, name FROM schools ORDER BY id ASC"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores.Accuracy)
}

func TestDuplicateRowsMustMatch(t *testing.T) {
	dir := t.TempDir()
	writeDB(t, dir, "schools",
		"CREATE TABLE schools (city TEXT)",
		"INSERT INTO schools VALUES ('Berkeley')",
		"INSERT INTO schools VALUES ('Berkeley')",
	)

	e := New(Options{}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs("SELECT DISTINCT city FROM schools"),
		pairs("SELECT city FROM schools"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores.Accuracy)
}

func TestPredictedSyntaxErrorIsAMiss(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs("SELEC name FRM schools"),
		pairs("SELECT name FROM schools"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores.Accuracy)
}

func TestReferenceErrorIsAMiss(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs("SELECT name FROM schools"),
		pairs("SELECT name FROM no_such_table"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores.Accuracy)
}

func TestPredictedTimeoutIsAMiss(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{Timeout: 200 * time.Millisecond}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs("WITH RECURSIVE c(x) AS (SELECT 1 UNION ALL SELECT x+1 FROM c) SELECT count(*) FROM c"),
		pairs("SELECT name FROM schools"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores.Accuracy)
}

func TestMissingDatabaseFileIsFatal(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{}, nil)
	_, err := e.Evaluate(context.Background(),
		[]SQLPair{{SQL: "SELECT 1", DatabaseID: "ghost"}},
		[]SQLPair{{SQL: "SELECT 1", DatabaseID: "ghost"}},
		nil, dir)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "ghost")
}

func TestEvaluateInputValidation(t *testing.T) {
	dir := t.TempDir()
	e := New(Options{}, nil)

	_, err := e.Evaluate(context.Background(), pairs("SELECT 1"), nil, nil, dir)
	assert.Error(t, err)

	_, err = e.Evaluate(context.Background(), nil, nil, nil, dir)
	assert.Error(t, err)

	_, err = e.Evaluate(context.Background(),
		pairs("SELECT 1"), pairs("SELECT 1"), []string{"a", "b"}, dir)
	assert.Error(t, err)
}

func TestDifficultyBuckets(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{Workers: 2}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs(
			"SELECT name FROM schools",
			"SELECT name FROM schools WHERE city = 'nowhere'",
			"SELECT city FROM schools",
		),
		pairs(
			"SELECT name FROM schools",
			"SELECT name FROM schools",
			"SELECT city FROM schools",
		),
		[]string{"simple", "simple", ""}, dir)
	require.NoError(t, err)

	assert.Equal(t, 3, scores.Total)
	assert.InDelta(t, 2.0/3.0, scores.Accuracy, 1e-9)

	simple := scores.ByDifficulty["simple"]
	assert.Equal(t, 2, simple.Count)
	assert.Equal(t, 0.5, simple.Accuracy)

	fallback := scores.ByDifficulty[DefaultDifficulty]
	assert.Equal(t, 1, fallback.Count)
	assert.Equal(t, 1.0, fallback.Accuracy)
}

func TestVESIdenticalSQLGetsMaxReward(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{IncludeVES: true}, nil)
	e.timing = func(context.Context, string, string, time.Duration, int) (time.Duration, error) {
		return 10 * time.Millisecond, nil
	}

	scores, err := e.Evaluate(context.Background(),
		pairs("SELECT name FROM schools"),
		pairs("SELECT name FROM schools"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 1.0, scores.Accuracy)
	assert.Equal(t, MaxReward, scores.VES)
	assert.Equal(t, MaxReward, scores.ByDifficulty[DefaultDifficulty].VES)
}

func TestVESSlowerPredictionIsPenalized(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	pred := "SELECT id, name FROM schools ORDER BY id DESC"
	e := New(Options{IncludeVES: true}, nil)
	e.timing = func(_ context.Context, _ string, query string, _ time.Duration, _ int) (time.Duration, error) {
		if query == pred {
			return 40 * time.Millisecond, nil
		}
		return 10 * time.Millisecond, nil
	}

	scores, err := e.Evaluate(context.Background(),
		pairs(pred),
		pairs("SELECT id, name FROM schools ORDER BY id ASC"),
		nil, dir)
	require.NoError(t, err)
	// ratio 0.25, sqrt gives 0.5
	assert.Equal(t, 1.0, scores.Accuracy)
	assert.InDelta(t, 0.5, scores.VES, 1e-9)
}

func TestVESIncorrectRowContributesZero(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{IncludeVES: true}, nil)
	e.timing = func(context.Context, string, string, time.Duration, int) (time.Duration, error) {
		return time.Millisecond, nil
	}

	scores, err := e.Evaluate(context.Background(),
		pairs("SELECT name FROM schools", "SELECT name FROM nope"),
		pairs("SELECT name FROM schools", "SELECT name FROM schools"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.5, scores.Accuracy)
	assert.InDelta(t, 0.5, scores.VES, 1e-9)
}

func TestVESRewardCurve(t *testing.T) {
	assert.Equal(t, MaxReward, vesReward(1.0))
	assert.Equal(t, MaxReward, vesReward(3.5))
	assert.InDelta(t, 0.8, vesReward(0.64), 1e-9)
	assert.Equal(t, 0.25, vesReward(0.0001))
}

func TestResultsEquivalentColumnCount(t *testing.T) {
	dir := t.TempDir()
	seedSchools(t, dir)

	e := New(Options{}, nil)
	scores, err := e.Evaluate(context.Background(),
		pairs("SELECT id, name FROM schools"),
		pairs("SELECT id FROM schools"),
		nil, dir)
	require.NoError(t, err)
	assert.Equal(t, 0.0, scores.Accuracy)
}
