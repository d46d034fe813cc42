// Package orchestrator ingests a dataset, generates its question set, and
// fans out one independent critic-loop instance per question, bounded by a
// worker pool for LLM rate-limit hygiene. Grounded on the teacher's
// SubAgentRunner / WorkerPool shape: a reserved-slot concurrency cap and a
// buffered results channel — generalized here from sub-agent dispatch to
// per-question critic loops. The per-run cancel registry lives in pkg/api.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"dagbench/pkg/builder"
	"dagbench/pkg/critic"
	"dagbench/pkg/criticloop"
	"dagbench/pkg/dataset"
	"dagbench/pkg/events"
	"dagbench/pkg/llm"
	"dagbench/pkg/question"
)

// ErrEmptyDataset is returned by Execute when the ingest gate rejects an empty
// or absent dataset bundle.
var ErrEmptyDataset = errors.New("dataset bundle is empty")

// Run is a single end-to-end pipeline invocation over one dataset.
type Run struct {
	ID            string
	Bundle        dataset.Bundle
	Metadata      *dataset.Metadata
	NumQuestions  int
	// DifficultyFilter restricts the generated question set to one band
	// (easy|medium|hard); empty or "all" keeps every question.
	DifficultyFilter question.DifficultyLevel
	MaxRounds     int
	MaxConcurrent int

	LLMClient           llm.Client
	Model               string
	QuestionTemperature float64
	BuilderTemperature  float64
	CriticTemperature   float64

	// LLMRetryBackoff is the configured retry schedule for every LLM call
	// this run makes (question generation, DAG building, critic review);
	// nil uses llm.DefaultBackoff.
	LLMRetryBackoff []time.Duration

	// SandboxTimeout bounds each DAG node's call during EXECUTE; zero
	// uses sandbox.DefaultNodeTimeout.
	SandboxTimeout time.Duration

	Stream *events.Stream
}

// RunResult is the full outcome of a run: the commutative accumulators plus
// the per-question traces used to build a RunReport.
type RunResult struct {
	CompletedResults  []string              `json:"completed_results"`
	FailedQuestionIDs []string              `json:"failed_question_ids"`
	QuestionTraces    []*criticloop.Trace    `json:"question_traces"`
}

// Execute runs the full pipeline: ingest gate, question generation,
// fan-out, and commutative aggregation. All lifecycle transitions publish
// onto r.Stream.
func Execute(ctx context.Context, r *Run) (*RunResult, error) {
	start := time.Now()

	if r.Bundle.Empty() {
		r.Stream.Publish(events.Event{Type: events.TypeError, Ts: time.Now(),
			Payload: map[string]string{"message": ErrEmptyDataset.Error()}})
		return nil, ErrEmptyDataset
	}
	if r.Metadata == nil {
		// Missing metadata degrades the run, it does not fail it, so this
		// cannot be published as TypeError: that type is terminal and would
		// close the stream before run_started even goes out.
		slog.Warn("run proceeding without a metadata document", "run_id", r.ID)
		r.Metadata = &dataset.Metadata{}
	}

	r.Stream.Publish(events.Event{Type: events.TypeRunStarted, Ts: time.Now(),
		Payload: map[string]any{"run_id": r.ID, "num_questions": r.NumQuestions}})

	gen := question.NewGenerator(r.LLMClient, r.Model, r.QuestionTemperature)
	gen.Backoff = r.LLMRetryBackoff
	questions, err := gen.Generate(ctx, r.Bundle, r.Metadata, r.NumQuestions)
	if err != nil {
		r.Stream.Publish(events.Event{Type: events.TypeError, Ts: time.Now(),
			Payload: map[string]string{"message": fmt.Sprintf("question generation failed: %v", err)}})
		return nil, fmt.Errorf("generating questions: %w", err)
	}
	if r.DifficultyFilter != "" && r.DifficultyFilter != "all" {
		questions = filterByDifficulty(questions, r.DifficultyFilter)
	}
	r.Stream.Publish(events.Event{Type: events.TypeQuestionsGenerated, Ts: time.Now(),
		Payload: map[string]any{"count": len(questions)}})

	traces := fanOut(ctx, r, questions)

	result := aggregate(traces)
	sort.Slice(result.QuestionTraces, func(i, j int) bool {
		return result.QuestionTraces[i].Question.DifficultyRank < result.QuestionTraces[j].Question.DifficultyRank
	})

	r.Stream.Publish(events.Event{Type: events.TypeRunComplete, Ts: time.Now(),
		Payload: map[string]any{
			"total":         len(questions),
			"completed":     len(result.CompletedResults),
			"failed":        len(result.FailedQuestionIDs),
			"elapsed_ms":    float64(time.Since(start).Microseconds()) / 1000.0,
		}})

	return result, nil
}

func filterByDifficulty(questions []question.Question, level question.DifficultyLevel) []question.Question {
	filtered := make([]question.Question, 0, len(questions))
	for _, q := range questions {
		if q.DifficultyLevel == level {
			filtered = append(filtered, q)
		}
	}
	return filtered
}

// fanOut dispatches one critic-loop instance per question, bounded by
// r.MaxConcurrent in-flight at a time. Each goroutine owns its own mutable
// trace; the only shared state is the read-only bundle/metadata and the
// run's event stream, which serializes its own publishes internally.
func fanOut(ctx context.Context, r *Run, questions []question.Question) []*criticloop.Trace {
	sem := make(chan struct{}, r.MaxConcurrent)
	results := make(chan *criticloop.Trace, len(questions))
	var wg sync.WaitGroup

	b := builder.NewBuilder(r.LLMClient, r.Model, r.BuilderTemperature)
	b.Backoff = r.LLMRetryBackoff
	c := critic.NewCritic(r.LLMClient, r.Model, r.CriticTemperature)
	c.Backoff = r.LLMRetryBackoff

	for _, q := range questions {
		q := q
		wg.Add(1)
		sem <- struct{}{}
		go func() {
			defer wg.Done()
			defer func() { <-sem }()

			loop := criticloop.NewLoop(b, c, r.MaxRounds, r.SandboxTimeout)
			trace := loop.Run(ctx, q, r.Metadata, r.Bundle)
			publishTraceEvents(r.Stream, trace)
			results <- trace
		}()
	}

	wg.Wait()
	close(results)

	traces := make([]*criticloop.Trace, 0, len(questions))
	for t := range results {
		traces = append(traces, t)
	}
	return traces
}

// publishTraceEvents replays one question's loop history onto the run
// stream as dag_built/critic_result/execution_done/question_complete
// events, preserving the per-question ordering guarantee from §5:
// dag_built(k) < critic_result(k) < (dag_built(k+1) | execution_done | question_complete).
func publishTraceEvents(stream *events.Stream, trace *criticloop.Trace) {
	for i := range trace.DAGHistory {
		stream.Publish(events.Event{Type: events.TypeDAGBuilt, Ts: time.Now(),
			Payload: map[string]any{"question_id": trace.Question.ID, "iteration": i + 1}})
		if i < len(trace.FeedbackHistory) {
			stream.Publish(events.Event{Type: events.TypeCriticResult, Ts: time.Now(),
				Payload: map[string]any{
					"question_id": trace.Question.ID,
					"iteration":   i + 1,
					"is_approved": trace.FeedbackHistory[i].IsApproved,
				}})
		}
	}
	if trace.ExecutionResult != nil {
		stream.Publish(events.Event{Type: events.TypeExecutionDone, Ts: time.Now(),
			Payload: map[string]any{"question_id": trace.Question.ID, "success": trace.ExecutionResult.Success}})
	}
	stream.Publish(events.Event{Type: events.TypeQuestionComplete, Ts: time.Now(),
		Payload: map[string]any{"question_id": trace.Question.ID, "iterations": trace.IterationCount}})
}

// aggregate merges per-question traces into the three commutative
// accumulators. The merge is order-independent: each trace contributes to
// exactly one of completed/failed based solely on its own outcome.
func aggregate(traces []*criticloop.Trace) *RunResult {
	result := &RunResult{QuestionTraces: traces}
	for _, t := range traces {
		if t.ExecutionResult != nil && t.ExecutionResult.Success {
			result.CompletedResults = append(result.CompletedResults, t.Question.ID)
		} else {
			result.FailedQuestionIDs = append(result.FailedQuestionIDs, t.Question.ID)
		}
	}
	return result
}
