package e2e

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"dagbench/pkg/llm"
)

// ────────────────────────────────────────────────────────────
// Scenario 3: sandbox safety violation
// ────────────────────────────────────────────────────────────

func TestE2E_SandboxViolationRejectsEvenValidTopology(t *testing.T) {
	unsafeDAG := `{
		"question_id": "q-001",
		"description": "reaches out to the filesystem",
		"nodes": [{"node_id":"a","function_name":"f","layer":0,
			"inputs":{"x":"dataset.total"},"expected_output_type":"int",
			"code":"import \"os\"\n\nfunc f(x int) int {\n  os.Getenv(\"PATH\")\n  return 1\n}"}],
		"edges": [],
		"final_answer_node": "a"
	}`

	stub := llm.NewStubClient(
		llm.ScriptedResponse{Content: `{"questions":[{"text":"What is total?","reasoning":"direct lookup"}]}`},
		llm.ScriptedResponse{Content: unsafeDAG},
	)

	h := NewHarness(t, WithLLMClient(stub), WithMaxRounds(1))
	out := h.Run(t, context.Background())

	require.Len(t, out.Result.QuestionTraces, 1)
	trace := out.Result.QuestionTraces[0]
	assert.False(t, trace.IsApproved)
	assert.True(t, trace.GaveUp)
	assert.Nil(t, trace.ExecutionResult)
	require.Len(t, trace.FeedbackHistory, 1)
	found := false
	for _, issue := range trace.FeedbackHistory[0].SpecificErrors {
		if containsImport(issue) {
			found = true
		}
	}
	assert.True(t, found, "rejection must name the disallowed import: %v", trace.FeedbackHistory[0].SpecificErrors)
	assert.Contains(t, out.Result.FailedQuestionIDs, "q-001")
}

func containsImport(s string) bool {
	for i := 0; i+len("import") <= len(s); i++ {
		if s[i:i+len("import")] == "import" {
			return true
		}
	}
	return false
}
