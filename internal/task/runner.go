package task

import (
	"context"
	"fmt"
	"sort"

	"github.com/sirupsen/logrus"

	"github.com/daniel-gomm/target/internal/dataset"
	"github.com/daniel-gomm/target/internal/retriever"
)

// Options tune a runner invocation.
type Options struct {
	// BatchSize is the number of queries per retrieval/generation batch.
	// Defaults to 64.
	BatchSize int
	// TopK is the number of tables retrieved per query. Defaults to 5.
	TopK int
	// Client is the embedding-service client handed to client-backed
	// retrievers. Required for that shape, ignored for standalone ones.
	Client retriever.Client
}

func (o Options) withDefaults() Options {
	if o.BatchSize <= 0 {
		o.BatchSize = 64
	}
	if o.TopK <= 0 {
		o.TopK = 5
	}
	return o
}

// Runner executes a task across datasets. Batches are processed strictly
// sequentially; the metric trackers are plain accumulators owned by the
// runner goroutine.
type Runner struct {
	task Task
	log  *logrus.Entry
}

// NewRunner wires a task to a logger.
func NewRunner(t Task, log *logrus.Logger) *Runner {
	if log == nil {
		log = logrus.New()
	}
	return &Runner{task: t, log: log.WithField("task", t.Name())}
}

// Run evaluates the task on every supplied dataset loader and returns one
// Result per dataset. The retriever must implement exactly one of the two
// supported capability shapes. Any error aborts the whole run; no partial
// result map is returned.
func (r *Runner) Run(ctx context.Context, ret any, loaders map[string]dataset.Loader, opts Options) (map[string]Result, error) {
	opts = opts.withDefaults()

	for _, name := range r.task.Datasets() {
		if _, ok := loaders[name]; !ok {
			return nil, fmt.Errorf("%w: missing %q", ErrDatasetNotLoaded, name)
		}
	}
	if err := checkRetrieverShape(ret); err != nil {
		return nil, err
	}

	names := make([]string, 0, len(loaders))
	for name := range loaders {
		names = append(names, name)
	}
	sort.Strings(names)

	r.log.Info("starting task")
	results := make(map[string]Result, len(loaders))
	for _, name := range names {
		result, err := r.runDataset(ctx, ret, loaders[name], opts)
		if err != nil {
			return nil, fmt.Errorf("dataset %s: %w", name, err)
		}
		results[name] = result
	}
	r.log.Info("finished task")
	return results, nil
}

func (r *Runner) runDataset(ctx context.Context, ret any, loader dataset.Loader, opts Options) (Result, error) {
	name := loader.Name()
	log := r.log.WithField("dataset", name)
	log.Info("running task on dataset")

	corpus := loader.TableIDToTable()
	tracker := &retrievalTracker{}
	session, err := r.task.NewSession(name)
	if err != nil {
		return Result{}, err
	}

	for batch := range loader.Queries(opts.BatchSize) {
		retrieved, err := retrieveBatch(ctx, ret, batch, name, opts)
		if err != nil {
			return Result{}, err
		}
		if err := fillTableStrings(retrieved, corpus); err != nil {
			return Result{}, err
		}
		if err := tracker.update(batch, retrieved); err != nil {
			return Result{}, err
		}

		generated, err := session.Generate(ctx, batch, retrieved)
		if err != nil {
			return Result{}, err
		}
		if err := session.Update(batch, generated); err != nil {
			return Result{}, err
		}
		log.WithField("processed", tracker.totalProcessed).Info("batch done")
	}

	retrievalPerf, err := tracker.finalize(opts.TopK)
	if err != nil {
		return Result{}, err
	}
	downstreamPerf, err := session.Finalize(ctx)
	if err != nil {
		return Result{}, err
	}
	return Result{
		RetrievalPerformance:  retrievalPerf,
		DownstreamPerformance: downstreamPerf,
	}, nil
}

// checkRetrieverShape enforces that the retriever implements exactly one of
// the two recognized capability shapes.
func checkRetrieverShape(ret any) error {
	_, standalone := ret.(retriever.Standalone)
	_, clientBacked := ret.(retriever.ClientBacked)
	if standalone == clientBacked {
		return fmt.Errorf("%w: got %T", ErrUnknownRetriever, ret)
	}
	return nil
}

// retrieveBatch dispatches on the retriever's capability shape; one call
// per batch either way.
func retrieveBatch(ctx context.Context, ret any, batch *dataset.QueryBatch, datasetName string, opts Options) ([]retriever.Result, error) {
	switch rt := ret.(type) {
	case retriever.ClientBacked:
		if opts.Client == nil {
			return nil, fmt.Errorf("%w: dataset %s", ErrMissingClient, datasetName)
		}
		return rt.RetrieveBatch(ctx, batch, datasetName, opts.TopK, opts.Client)
	case retriever.Standalone:
		return rt.RetrieveBatch(ctx, batch, datasetName, opts.TopK)
	default:
		return nil, fmt.Errorf("%w: got %T", ErrUnknownRetriever, ret)
	}
}

// fillTableStrings resolves retrieved table ids to markdown renderings of
// the corpus tables, in rank order.
func fillTableStrings(results []retriever.Result, corpus map[dataset.TableID]dataset.Table) error {
	for i := range results {
		strs := make([]string, 0, len(results[i].Tables))
		for _, id := range results[i].Tables {
			table, ok := corpus[id]
			if !ok {
				return fmt.Errorf("retrieved table %s is not in the corpus", id)
			}
			strs = append(strs, dataset.MarkdownTable(table))
		}
		results[i].TableStrings = strs
	}
	return nil
}
