package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagbench/pkg/llm"
)

// ────────────────────────────────────────────────────────────
// Scenario 1: single trivial question
// ────────────────────────────────────────────────────────────

func TestE2E_SingleTrivialQuestion(t *testing.T) {
	stub := llm.NewStubClient(
		llm.ScriptedResponse{Content: `{"questions":[{"text":"What is total?","reasoning":"direct lookup"}]}`},
		llm.ScriptedResponse{Content: `{
			"question_id": "q-001",
			"description": "returns the total directly",
			"nodes": [{"node_id":"a","operation":"identity","function_name":"ret","layer":0,
				"inputs":{"x":"dataset.total"},"expected_output_type":"int",
				"code":"func ret(x int) int {\n  return x\n}"}],
			"edges": [],
			"final_answer_node": "a"
		}`},
		llm.ScriptedResponse{Content: `{"is_valid": true, "issues": []}`},
	)

	h := NewHarness(t, WithLLMClient(stub))
	out := h.Run(t, context.Background())

	require.Len(t, out.Result.QuestionTraces, 1)
	trace := out.Result.QuestionTraces[0]
	assert.True(t, trace.IsApproved)
	assert.Equal(t, 1, trace.IterationCount)
	require.NotNil(t, trace.ExecutionResult)
	assert.True(t, trace.ExecutionResult.Success)
	assert.Equal(t, 42, trace.ExecutionResult.FinalAnswer)
	assert.Equal(t, 1.0, out.Report.Summary.PassRate)
}
