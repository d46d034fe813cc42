package orchestrator

import (
	"time"

	"dagbench/pkg/criticloop"
	"dagbench/pkg/question"
)

// Summary is the overall outcome counters for one run.
type Summary struct {
	Total              int       `json:"total"`
	Passed             int       `json:"passed"`
	Failed             int       `json:"failed"`
	PassRate           float64   `json:"pass_rate"`
	AvgExecutionTimeMs float64   `json:"avg_execution_time_ms"`
	TotalIterations    int       `json:"total_iterations"`
	Timestamp          time.Time `json:"timestamp"`
	DatasetName        string    `json:"dataset_name"`
}

// DifficultyBucket is the pass/fail counters for one difficulty band.
type DifficultyBucket struct {
	Total    int     `json:"total"`
	Passed   int     `json:"passed"`
	Failed   int     `json:"failed"`
	PassRate float64 `json:"pass_rate"`
}

// RunReport is the persisted, serializable outcome of one run.
type RunReport struct {
	Summary           Summary                                     `json:"summary"`
	DifficultyBreakdown map[question.DifficultyLevel]DifficultyBucket `json:"difficulty_breakdown"`
	QuestionTraces    []*criticloop.Trace                         `json:"question_traces"`
}

// BuildReport computes per-difficulty breakdowns, overall pass rate,
// average execution time over successfully executed questions, and total
// iterations across all questions — the "Collection" responsibility the
// orchestrator owns once fan-out completes.
func BuildReport(result *RunResult, datasetName string, now time.Time) *RunReport {
	breakdown := map[question.DifficultyLevel]DifficultyBucket{
		question.DifficultyEasy:   {},
		question.DifficultyMedium: {},
		question.DifficultyHard:   {},
	}
	bucketCounts := map[question.DifficultyLevel]*DifficultyBucket{}
	for level, b := range breakdown {
		b := b
		bucketCounts[level] = &b
	}

	var (
		passed          int
		totalIterations int
		execTimeSum     float64
		execTimeCount   int
	)

	for _, t := range result.QuestionTraces {
		totalIterations += t.IterationCount
		success := t.ExecutionResult != nil && t.ExecutionResult.Success

		bucket := bucketCounts[t.Question.DifficultyLevel]
		bucket.Total++
		if success {
			bucket.Passed++
			passed++
			execTimeSum += t.ExecutionResult.ExecutionTimeMs
			execTimeCount++
		} else {
			bucket.Failed++
		}
	}

	for level, bucket := range bucketCounts {
		if bucket.Total > 0 {
			bucket.PassRate = float64(bucket.Passed) / float64(bucket.Total)
		}
		breakdown[level] = *bucket
	}

	total := len(result.QuestionTraces)
	summary := Summary{
		Total:           total,
		Passed:          passed,
		Failed:          total - passed,
		TotalIterations: totalIterations,
		Timestamp:       now,
		DatasetName:     datasetName,
	}
	if total > 0 {
		summary.PassRate = float64(passed) / float64(total)
	}
	if execTimeCount > 0 {
		summary.AvgExecutionTimeMs = execTimeSum / float64(execTimeCount)
	}

	return &RunReport{
		Summary:             summary,
		DifficultyBreakdown: breakdown,
		QuestionTraces:      result.QuestionTraces,
	}
}
