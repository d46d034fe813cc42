package builder

import (
	"context"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagbench/pkg/critic"
	"dagbench/pkg/dataset"
	"dagbench/pkg/llm"
	"dagbench/pkg/question"
)

const oneNodeDAGJSON = `{
  "question_id": "q-001",
  "description": "returns the total",
  "nodes": [{"node_id":"a","operation":"identity","function_name":"ret","layer":0,
    "inputs":{"x":"dataset.total"},"expected_output_type":"int",
    "code":"func ret(x int) int {\n  return x\n}"}],
  "edges": [],
  "final_answer_node": "a"
}`

func q1() question.Question {
	return question.Question{ID: "q-001", Text: "what is the total?", DifficultyRank: 1}
}

func TestBuild_FirstIterationHasNoPreviousContext(t *testing.T) {
	stub := llm.NewStubClient(llm.ScriptedResponse{Content: oneNodeDAGJSON})
	b := NewBuilder(stub, "gpt-4o-mini", 0.2)

	g := b.Build(context.Background(), q1(), &dataset.Metadata{}, dataset.Bundle{"total": float64(1)}, nil, nil)
	require.NotNil(t, g)
	assert.Equal(t, "q-001", g.QuestionID)
	assert.Len(t, g.Nodes, 1)
	assert.Equal(t, "a", g.FinalAnswerNode)

	calls := stub.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[1].Content
	assert.NotContains(t, prompt, "previous_dag")
	assert.NotContains(t, prompt, "must_produce_complete_replacement")
}

func TestBuild_RetryIncludesPreviousDAGAndFeedback(t *testing.T) {
	stub := llm.NewStubClient(llm.ScriptedResponse{Content: oneNodeDAGJSON})
	b := NewBuilder(stub, "gpt-4o-mini", 0.2)

	prevDAG := b.Build(context.Background(), q1(), &dataset.Metadata{}, dataset.Bundle{"total": float64(1)}, nil, nil)
	feedback := &critic.Feedback{IsApproved: false, OverallReasoning: "cites a cycle", SpecificErrors: []string{"cycle detected"}}

	stub2 := llm.NewStubClient(llm.ScriptedResponse{Content: oneNodeDAGJSON})
	b2 := NewBuilder(stub2, "gpt-4o-mini", 0.2)
	g := b2.Build(context.Background(), q1(), &dataset.Metadata{}, dataset.Bundle{"total": float64(1)}, prevDAG, feedback)
	require.NotNil(t, g)

	calls := stub2.Calls()
	require.Len(t, calls, 1)
	prompt := calls[0].Messages[1].Content
	assert.True(t, strings.Contains(prompt, "previous_dag"))
	assert.True(t, strings.Contains(prompt, "must_produce_complete_replacement"))
	assert.True(t, strings.Contains(prompt, "cycle detected"))
}

func TestBuild_ExhaustionReturnsEmptyDAGNotError(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Millisecond)
	defer cancel()

	stub := llm.NewStubClient(
		llm.ScriptedResponse{Err: llm.ErrTransport},
		llm.ScriptedResponse{Err: llm.ErrTransport},
		llm.ScriptedResponse{Err: llm.ErrTransport},
	)
	b := NewBuilder(stub, "gpt-4o-mini", 0.2)

	g := b.Build(ctx, q1(), &dataset.Metadata{}, dataset.Bundle{"total": float64(1)}, nil, nil)
	require.NotNil(t, g)
	assert.Equal(t, "q-001", g.QuestionID)
	assert.Empty(t, g.Nodes)
}
