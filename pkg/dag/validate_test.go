package dag

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func trivialGraph() *Graph {
	return &Graph{
		QuestionID: "q1",
		Nodes: []Node{
			{NodeID: "a", FunctionName: "ret", Layer: 0,
				Inputs: map[string]string{"x": "dataset.total"},
				Code:   "func ret(x int) int {\n  return x\n}",
			},
		},
		FinalAnswerNode: "a",
	}
}

func TestCriticallyBroken_EmptyDAG(t *testing.T) {
	broken, issues := CriticallyBroken(&Graph{})
	assert.True(t, broken)
	assert.NotEmpty(t, issues)
}

func TestCriticallyBroken_TrivialGraphIsNotBroken(t *testing.T) {
	broken, issues := CriticallyBroken(trivialGraph())
	assert.False(t, broken)
	assert.Empty(t, issues)
}

func TestCriticallyBroken_Cycle(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{NodeID: "a", FunctionName: "f", Layer: 0, Code: "func f() int { return 1 }"},
			{NodeID: "b", FunctionName: "g", Layer: 1, Code: "func g() int { return 1 }"},
		},
		Edges: []Edge{
			{Source: "a", Target: "b"},
			{Source: "b", Target: "a"},
		},
		FinalAnswerNode: "b",
	}
	broken, issues := CriticallyBroken(g)
	require.True(t, broken)
	assert.Contains(t, issues, "DAG contains a cycle")
}

func TestValidateStructure_TrivialGraphHasZeroIssues(t *testing.T) {
	bundle := map[string]any{"total": float64(42)}
	issues := ValidateStructure(trivialGraph(), bundle)
	assert.Empty(t, issues)
}

func TestValidateStructure_DeadNode(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{NodeID: "a", FunctionName: "f", Layer: 0, Code: "func f() int { return 1 }"},
			{NodeID: "dead", FunctionName: "g", Layer: 0, Code: "func g() int { return 2 }"},
		},
		FinalAnswerNode: "a",
	}
	issues := ValidateStructure(g, map[string]any{})
	found := false
	for _, issue := range issues {
		if issue == `node "dead" is not an ancestor of final_answer_node "a" (dead node)` {
			found = true
		}
	}
	assert.True(t, found, "expected dead node issue, got: %v", issues)
}

func TestValidateStructure_LayerMonotonicityViolation(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{NodeID: "a", FunctionName: "f", Layer: 1, Code: "func f() int { return 1 }"},
			{NodeID: "b", FunctionName: "g", Layer: 0, Code: "func g() int { return 1 }"},
		},
		Edges:           []Edge{{Source: "a", Target: "b"}},
		FinalAnswerNode: "b",
	}
	issues := ValidateStructure(g, map[string]any{})
	found := false
	for _, issue := range issues {
		if strings.Contains(issue, "layer monotonicity") {
			found = true
		}
	}
	assert.True(t, found, "expected layer monotonicity issue, got: %v", issues)
}

func TestValidateReferences_MissingDatasetKey(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{NodeID: "a", FunctionName: "f", Layer: 0,
				Inputs: map[string]string{"x": "dataset.missing"},
				Code:   "func f(x int) int { return x }"},
		},
		FinalAnswerNode: "a",
	}
	issues := ValidateStructure(g, map[string]any{"total": float64(1)})
	require.NotEmpty(t, issues)
}
