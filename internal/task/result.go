package task

// RetrievalPerformance reports the hit rate of the retrieval stage for one
// dataset at a given cutoff.
type RetrievalPerformance struct {
	K        int     `json:"k"`
	Accuracy float64 `json:"accuracy"`
}

// DownstreamPerformance reports the downstream task's score set. Keys are
// task-specific ("execution_accuracy", "execution_ves", per-difficulty
// variants, ...).
type DownstreamPerformance struct {
	TaskName string             `json:"task_name"`
	Scores   map[string]float64 `json:"scores,omitempty"`
}

// Result is the terminal outcome of evaluating a task on one dataset. Not
// mutated after construction.
type Result struct {
	RetrievalPerformance  RetrievalPerformance  `json:"retrieval_performance"`
	DownstreamPerformance DownstreamPerformance `json:"downstream_task_performance"`
}

// GeneratedResult is one downstream generation outcome, consumed by the
// metric update step right after the batch that produced it.
type GeneratedResult struct {
	Dataset string
	QueryID string
	Raw     string
}
