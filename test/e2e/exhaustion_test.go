package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagbench/pkg/llm"
)

// ────────────────────────────────────────────────────────────
// Scenario 5: exhaustion after MAX consecutive rejections
// ────────────────────────────────────────────────────────────

const emptyDAGJSON = `{
	"question_id": "q-001",
	"description": "builder never produces a usable graph",
	"nodes": [],
	"edges": [],
	"final_answer_node": ""
}`

func TestE2E_ExhaustionAfterThreeRejectionsGivesUp(t *testing.T) {
	stub := llm.NewStubClient(
		llm.ScriptedResponse{Content: `{"questions":[{"text":"What is total?","reasoning":"direct lookup"}]}`},
		llm.ScriptedResponse{Content: emptyDAGJSON},
		llm.ScriptedResponse{Content: emptyDAGJSON},
		llm.ScriptedResponse{Content: emptyDAGJSON},
	)

	h := NewHarness(t, WithLLMClient(stub), WithMaxRounds(3))
	out := h.Run(t, context.Background())

	require.Len(t, out.Result.QuestionTraces, 1)
	trace := out.Result.QuestionTraces[0]
	assert.False(t, trace.IsApproved)
	assert.True(t, trace.GaveUp)
	assert.Nil(t, trace.ExecutionResult)
	assert.Equal(t, 3, trace.IterationCount)
	assert.Len(t, trace.DAGHistory, 3)
	assert.Len(t, trace.FeedbackHistory, 3)
	assert.Contains(t, out.Result.FailedQuestionIDs, trace.Question.ID)
	assert.Equal(t, 0.0, out.Report.Summary.PassRate)
}
