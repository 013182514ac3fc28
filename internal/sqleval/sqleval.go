// Package sqleval scores predicted SQL against reference SQL by executing
// both against the SQLite database they target and comparing result sets.
//
// Rows are independent: each one gets fresh connections and its own
// wall-clock timeout, and predicted-side failures (syntax errors, timeouts)
// are absorbed as mismatches. Only configuration problems, such as a missing
// database file, abort an evaluation.
package sqleval

import (
	"context"
	"fmt"
	"io"
	"math"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/panjf2000/ants/v2"
	"github.com/sirupsen/logrus"

	"github.com/daniel-gomm/target/internal/adapter"
)

// DefaultDifficulty labels rows of datasets that ship no difficulty labels.
const DefaultDifficulty = "Default"

// MaxReward is the VES reward for a correct prediction at least as fast as
// the reference.
const MaxReward = 1.0

// SQLPair pairs a SQL query with the id of the database it targets.
type SQLPair struct {
	SQL        string
	DatabaseID string
}

// Options configure an evaluation run.
type Options struct {
	// Workers bounds the number of rows evaluated concurrently; each worker
	// opens its own connections. Defaults to 1.
	Workers int
	// Timeout bounds each single SQL execution. Defaults to 60s.
	Timeout time.Duration
	// IncludeVES additionally times both queries and computes the valid
	// efficiency score.
	IncludeVES bool
	// TimingRuns is how often each query is re-run for VES timing; the
	// median is used. Defaults to 3.
	TimingRuns int
}

func (o Options) withDefaults() Options {
	if o.Workers <= 0 {
		o.Workers = 1
	}
	if o.Timeout <= 0 {
		o.Timeout = 60 * time.Second
	}
	if o.TimingRuns <= 0 {
		o.TimingRuns = 3
	}
	return o
}

// DifficultyScores aggregates one difficulty bucket.
type DifficultyScores struct {
	Count    int     `json:"count"`
	Accuracy float64 `json:"accuracy"`
	VES      float64 `json:"ves,omitempty"`
}

// Scores is the outcome of an evaluation.
type Scores struct {
	Total        int                         `json:"total"`
	Accuracy     float64                     `json:"accuracy"`
	VES          float64                     `json:"ves,omitempty"`
	ByDifficulty map[string]DifficultyScores `json:"by_difficulty"`
}

// timingFunc measures how long a query takes; swapped out in tests for
// deterministic VES assertions.
type timingFunc func(ctx context.Context, dbPath, query string, timeout time.Duration, runs int) (time.Duration, error)

// Evaluator runs execution-based scoring.
type Evaluator struct {
	opts   Options
	log    *logrus.Entry
	timing timingFunc
}

// New creates an evaluator. A nil logger discards output.
func New(opts Options, log *logrus.Logger) *Evaluator {
	if log == nil {
		log = logrus.New()
		log.SetOutput(io.Discard)
	}
	return &Evaluator{
		opts:   opts.withDefaults(),
		log:    log.WithField("component", "sqleval"),
		timing: timeQuery,
	}
}

type rowScore struct {
	correct    bool
	reward     float64
	difficulty string
}

type rowParam struct {
	idx    int
	ctx    context.Context
	pred   SQLPair
	ref    SQLPair
	dbPath string
	out    []rowScore
	wg     *sync.WaitGroup
}

// Evaluate scores every (predicted, reference) pair against the database
// tree rooted at databaseDir. difficulties may be empty, in which case all
// rows land in the Default bucket; otherwise it must parallel the pairs.
func (e *Evaluator) Evaluate(ctx context.Context, pred, ref []SQLPair, difficulties []string, databaseDir string) (*Scores, error) {
	if len(pred) != len(ref) {
		return nil, fmt.Errorf("got %d predicted but %d reference queries", len(pred), len(ref))
	}
	if len(difficulties) == 0 {
		difficulties = make([]string, len(pred))
	}
	if len(difficulties) != len(pred) {
		return nil, fmt.Errorf("got %d difficulty labels for %d queries", len(difficulties), len(pred))
	}
	if len(pred) == 0 {
		return nil, fmt.Errorf("no queries to evaluate")
	}

	// A missing database file means the dataset cannot be scored at all;
	// fail before spending time on any row.
	paths := make([]string, len(ref))
	for i, r := range ref {
		paths[i] = filepath.Join(databaseDir, r.DatabaseID, r.DatabaseID+".sqlite")
		if _, err := os.Stat(paths[i]); err != nil {
			return nil, fmt.Errorf("database file for %q not found: %w", r.DatabaseID, err)
		}
	}

	scores := make([]rowScore, len(pred))
	var wg sync.WaitGroup
	pool, err := ants.NewPoolWithFunc(e.opts.Workers, func(args any) {
		p := args.(*rowParam)
		defer p.wg.Done()
		p.out[p.idx] = e.evaluateRow(p.ctx, p.pred, p.ref, p.dbPath)
	})
	if err != nil {
		return nil, fmt.Errorf("create evaluation pool: %w", err)
	}
	defer pool.Release()

	for i := range pred {
		wg.Add(1)
		param := &rowParam{
			idx: i, ctx: ctx,
			pred: pred[i], ref: ref[i],
			dbPath: paths[i],
			out:    scores, wg: &wg,
		}
		if err := pool.Invoke(param); err != nil {
			wg.Done()
			return nil, fmt.Errorf("submit row %d: %w", i, err)
		}
	}
	wg.Wait()

	for i := range scores {
		scores[i].difficulty = difficulties[i]
		if scores[i].difficulty == "" {
			scores[i].difficulty = DefaultDifficulty
		}
	}
	return aggregate(scores, e.opts.IncludeVES), nil
}

// evaluateRow never returns an error: everything that can go wrong with a
// single row downgrades to an incorrect row.
func (e *Evaluator) evaluateRow(ctx context.Context, pred, ref SQLPair, dbPath string) rowScore {
	refResult, err := runQuery(ctx, dbPath, ref.SQL, e.opts.Timeout)
	if err != nil {
		e.log.WithField("db", ref.DatabaseID).Warnf("reference SQL failed: %v", err)
		return rowScore{}
	}
	predResult, err := runQuery(ctx, dbPath, pred.SQL, e.opts.Timeout)
	if err != nil {
		e.log.WithField("db", ref.DatabaseID).Debugf("predicted SQL failed: %v", err)
		return rowScore{}
	}
	if !resultsEquivalent(refResult, predResult) {
		return rowScore{}
	}

	score := rowScore{correct: true, reward: MaxReward}
	if !e.opts.IncludeVES {
		return score
	}

	refTime, err1 := e.timing(ctx, dbPath, ref.SQL, e.opts.Timeout, e.opts.TimingRuns)
	predTime, err2 := e.timing(ctx, dbPath, pred.SQL, e.opts.Timeout, e.opts.TimingRuns)
	if err1 != nil || err2 != nil || predTime <= 0 {
		// Already proven correct; without usable timings keep the neutral
		// maximum rather than punishing measurement noise.
		return score
	}
	score.reward = vesReward(float64(refTime) / float64(predTime))
	return score
}

// vesReward maps the reference/predicted runtime ratio onto [0.25, 1.0]: a
// prediction at least as fast as the reference saturates at MaxReward,
// slower ones decay with the square root of the ratio but never hit zero.
func vesReward(ratio float64) float64 {
	if ratio >= 1 {
		return MaxReward
	}
	return math.Max(0.25, math.Sqrt(ratio))
}

// runQuery executes one query on a fresh connection bounded by timeout. The
// connection is closed on every exit path.
func runQuery(ctx context.Context, dbPath, query string, timeout time.Duration) (*adapter.QueryResult, error) {
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	db := adapter.NewSQLite(dbPath)
	if err := db.Connect(ctx); err != nil {
		return nil, err
	}
	defer db.Close()
	return db.ExecuteQuery(ctx, query)
}

// timeQuery measures the median runtime over runs executions, each on a
// fresh connection.
func timeQuery(ctx context.Context, dbPath, query string, timeout time.Duration, runs int) (time.Duration, error) {
	durations := make([]time.Duration, 0, runs)
	for i := 0; i < runs; i++ {
		start := time.Now()
		if _, err := runQuery(ctx, dbPath, query, timeout); err != nil {
			return 0, err
		}
		durations = append(durations, time.Since(start))
	}
	sort.Slice(durations, func(i, j int) bool { return durations[i] < durations[j] })
	return durations[len(durations)/2], nil
}

// resultsEquivalent compares result sets as multisets of row tuples,
// order-insensitive but duplicate-preserving.
func resultsEquivalent(ref, pred *adapter.QueryResult) bool {
	if len(ref.Columns) != len(pred.Columns) {
		return false
	}
	if len(ref.Rows) != len(pred.Rows) {
		return false
	}
	counts := make(map[string]int, len(ref.Rows))
	for _, row := range ref.Rows {
		counts[rowKey(row)]++
	}
	for _, row := range pred.Rows {
		key := rowKey(row)
		counts[key]--
		if counts[key] < 0 {
			return false
		}
	}
	return true
}

func rowKey(row []string) string {
	return strings.Join(row, "\x1f")
}

func aggregate(scores []rowScore, includeVES bool) *Scores {
	out := &Scores{
		Total:        len(scores),
		ByDifficulty: make(map[string]DifficultyScores),
	}

	type bucket struct {
		count   int
		correct int
		reward  float64
	}
	buckets := make(map[string]*bucket)
	total := bucket{}
	for _, s := range scores {
		b := buckets[s.difficulty]
		if b == nil {
			b = &bucket{}
			buckets[s.difficulty] = b
		}
		b.count++
		total.count++
		if s.correct {
			b.correct++
			total.correct++
			b.reward += s.reward
			total.reward += s.reward
		}
	}

	out.Accuracy = float64(total.correct) / float64(total.count)
	if includeVES {
		out.VES = total.reward / float64(total.count)
	}
	for difficulty, b := range buckets {
		ds := DifficultyScores{
			Count:    b.count,
			Accuracy: float64(b.correct) / float64(b.count),
		}
		if includeVES {
			ds.VES = b.reward / float64(b.count)
		}
		out.ByDifficulty[difficulty] = ds
	}
	return out
}
