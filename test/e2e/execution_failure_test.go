package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagbench/pkg/dataset"
	"dagbench/pkg/llm"
)

// ────────────────────────────────────────────────────────────
// Scenario 4: execution failure after approval
// ────────────────────────────────────────────────────────────

func TestE2E_ExecutionFailureAfterApprovalDoesNotRebuildAndDoesNotSinkOtherQuestions(t *testing.T) {
	boomDAG := `{
		"question_id": "q-001",
		"description": "indexes past the end of a short slice",
		"nodes": [{"node_id":"a","function_name":"boom","layer":0,
			"inputs":{"xs":"dataset.xs"},"expected_output_type":"int",
			"code":"func boom(xs []int) int {\n  return xs[99]\n}"}],
		"edges": [],
		"final_answer_node": "a"
	}`
	trivialDAG := `{
		"question_id": "q-002",
		"description": "returns the total directly",
		"nodes": [{"node_id":"a","function_name":"ret","layer":0,
			"inputs":{"x":"dataset.total"},"expected_output_type":"int",
			"code":"func ret(x int) int {\n  return x\n}"}],
		"edges": [],
		"final_answer_node": "a"
	}`

	stub := llm.NewStubClient(
		llm.ScriptedResponse{Content: `{"questions":[
			{"text":"What is xs[99]?","reasoning":"out of range lookup"},
			{"text":"What is total?","reasoning":"direct lookup"}
		]}`},
		llm.ScriptedResponse{Content: boomDAG},
		llm.ScriptedResponse{Content: `{"is_valid": true, "issues": []}`},
		llm.ScriptedResponse{Content: trivialDAG},
		llm.ScriptedResponse{Content: `{"is_valid": true, "issues": []}`},
	)

	h := NewHarness(t,
		WithLLMClient(stub),
		WithBundle(dataset.Bundle{"total": float64(42), "xs": []int{1, 2, 3}}),
		WithNumQuestions(2),
		WithMaxConcurrent(1),
	)
	out := h.Run(t, context.Background())

	require.Len(t, out.Result.QuestionTraces, 2)

	var failing, passing bool
	for _, trace := range out.Result.QuestionTraces {
		require.True(t, trace.IsApproved, "both DAGs pass the stubbed critic")
		require.Equal(t, 1, trace.IterationCount, "a post-approval execution failure must not trigger a rebuild")
		require.NotNil(t, trace.ExecutionResult)
		if trace.ExecutionResult.Success {
			passing = true
		} else {
			failing = true
		}
	}
	assert.True(t, failing)
	assert.True(t, passing)
	assert.Len(t, out.Result.FailedQuestionIDs, 1)
	assert.Len(t, out.Result.CompletedResults, 1)
}
