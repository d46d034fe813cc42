// Package builder asks an LLM to design a DAG that computes the answer to
// one question. On retry it hands back the previous DAG and the critic's
// feedback and requires a complete replacement, never a patch.
package builder

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"dagbench/pkg/critic"
	"dagbench/pkg/dag"
	"dagbench/pkg/dataset"
	"dagbench/pkg/llm"
	"dagbench/pkg/question"
)

// Builder produces one GeneratedDAG per call.
type Builder struct {
	Client      llm.Client
	Model       string
	Temperature float64

	// Backoff is the retry schedule handed to llm.CallJSON; nil uses
	// llm.DefaultBackoff.
	Backoff []time.Duration
}

// NewBuilder builds a Builder bound to client.
func NewBuilder(client llm.Client, model string, temperature float64) *Builder {
	return &Builder{Client: client, Model: model, Temperature: temperature}
}

// rawGraph mirrors dag.Graph's wire shape for the LLM response; kept
// distinct so the builder controls the top-level JSON field names. Nodes
// and edges decode through dag.Node's and dag.Edge's own struct tags.
type rawGraph struct {
	QuestionID      string        `json:"question_id"`
	Description     string        `json:"description"`
	Nodes           []dag.Node    `json:"nodes"`
	Edges           []dag.Edge    `json:"edges"`
	FinalAnswerNode string        `json:"final_answer_node"`
}

// Build asks the LLM for a DAG answering q. When previousDAG and
// previousFeedback are non-nil this is a retry: the prompt includes both
// and instructs a full replacement. On exhaustion of the underlying
// retry/backoff schedule, Build returns an empty DAG (zero nodes) rather
// than an error, so the critic can reject it cleanly instead of the loop
// crashing.
func (b *Builder) Build(ctx context.Context, q question.Question, meta *dataset.Metadata, bundle dataset.Bundle, previousDAG *dag.Graph, previousFeedback *critic.Feedback) *dag.Graph {
	prompt := buildPrompt(q, meta, bundle, previousDAG, previousFeedback)

	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: systemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Model:       b.Model,
		Temperature: b.Temperature,
		JSONObject:  true,
	}

	parsed, err := llm.CallJSON[rawGraph](ctx, b.Client, req, b.Backoff)
	if err != nil {
		slog.Warn("DAG builder exhausted retries, returning empty DAG",
			"question_id", q.ID, "error", err)
		return &dag.Graph{QuestionID: q.ID}
	}

	g := dag.Graph{
		QuestionID:      q.ID,
		Description:     parsed.Description,
		Nodes:           parsed.Nodes,
		Edges:           parsed.Edges,
		FinalAnswerNode: parsed.FinalAnswerNode,
	}
	return &g
}

const systemPrompt = `You design a directed acyclic graph (DAG) of small Go functions that
jointly compute the answer to an analytical question about a dataset. Each
node declares a layer (nodes in layer N may only reference nodes in layers
< N), a function_name matching the top-level function defined in its code,
an inputs map from parameter name to a reference expression of exactly one
of the forms "dataset.<key>" or "prev_node.<node_id>.output", and an
expected_output_type. Node code is the body of one Go function only —
no package clause, no imports beyond math, sort, strings, strconv, unicode,
unicode/utf8, time, encoding/json, regexp, errors, and fmt. Respond with a
JSON object matching {"question_id","description","nodes":[{"node_id",
"operation","function_name","inputs",expected_output_type","layer","code"}],
"edges":[{"source","target"}],"final_answer_node"}.`

func buildPrompt(q question.Question, meta *dataset.Metadata, bundle dataset.Bundle, previousDAG *dag.Graph, previousFeedback *critic.Feedback) string {
	payload := struct {
		Question         question.Question         `json:"question"`
		Metadata         *dataset.Metadata         `json:"metadata,omitempty"`
		DatasetSummary   dataset.StructuralSummary `json:"dataset_summary"`
		PreviousDAG      *dag.Graph                `json:"previous_dag,omitempty"`
		PreviousFeedback *critic.Feedback          `json:"previous_feedback,omitempty"`
		MustReplace      bool                      `json:"must_produce_complete_replacement,omitempty"`
	}{
		Question:       q,
		Metadata:       meta,
		DatasetSummary: dataset.Summarize(bundle),
	}
	if previousDAG != nil {
		payload.PreviousDAG = previousDAG
		payload.PreviousFeedback = previousFeedback
		payload.MustReplace = true
	}

	data, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Sprintf("question: %s", q.Text)
	}
	return string(data)
}
