// Package dagexec evaluates an approved DAG layer by layer over a dataset,
// producing a full execution trace. It never retries: an execution failure
// is a test outcome for the question under evaluation, not a trigger to
// rebuild the DAG (spec §7 "Execution").
package dagexec

import (
	"context"
	"time"

	"dagbench/pkg/dag"
	"dagbench/pkg/sandbox"
)

// NodeResult mirrors sandbox.NodeResult under the name the spec's data
// model uses; kept distinct so dagexec owns its own wire type independent
// of sandbox's internal execution contract.
type NodeResult struct {
	NodeID          string  `json:"node_id"`
	Success         bool    `json:"success"`
	Output          any     `json:"output"`
	Error           string  `json:"error,omitempty"`
	ExecutionTimeMs float64 `json:"execution_time_ms"`
}

// Result is the full outcome of executing one DAG.
type Result struct {
	QuestionID      string       `json:"question_id"`
	Success         bool         `json:"success"`
	FinalAnswer     any          `json:"final_answer"`
	NodeResults     []NodeResult `json:"node_results"`
	Error           string       `json:"error,omitempty"`
	ExecutionTimeMs float64      `json:"execution_time_ms"`
}

// Execute runs g's layers in ascending order. Within a layer, nodes are
// independent of each other (the DAG's layer-monotonicity invariant
// guarantees this) and are evaluated in slice order; node-level work is
// microseconds, so nothing is gained by parallelizing within a layer
// (spec §9 "cooperative concurrency, not threads per node") — concurrency
// belongs at the question level, where LLM latency actually dominates.
//
// nodeTimeout is forwarded to sandbox.Execute for every node (zero means
// sandbox.DefaultNodeTimeout), the per-node wall-clock bound spec §9 leaves
// as an implementation-defined component contract.
func Execute(ctx context.Context, g *dag.Graph, dataset map[string]any, nodeTimeout time.Duration) Result {
	start := time.Now()
	nodeOutputs := make(map[string]any, len(g.Nodes))
	var nodeResults []NodeResult

	for _, layer := range dag.ExtractLayers(g) {
		for _, node := range layer.Nodes {
			resolved, err := dag.ResolveInputs(node, dag.Scope{Dataset: dataset, NodeOutputs: nodeOutputs})
			if err != nil {
				nodeResults = append(nodeResults, NodeResult{
					NodeID: node.NodeID, Success: false, Error: err.Error(),
				})
				return Result{
					QuestionID:      g.QuestionID,
					Success:         false,
					NodeResults:     nodeResults,
					Error:           err.Error(),
					ExecutionTimeMs: elapsedMs(start),
				}
			}

			sres := sandbox.Execute(ctx, node, resolved, nodeTimeout)
			nodeResults = append(nodeResults, NodeResult{
				NodeID:          sres.NodeID,
				Success:         sres.Success,
				Output:          sres.Output,
				Error:           sres.Error,
				ExecutionTimeMs: sres.ExecutionTimeMs,
			})

			if !sres.Success {
				return Result{
					QuestionID:      g.QuestionID,
					Success:         false,
					NodeResults:     nodeResults,
					Error:           sres.Error,
					ExecutionTimeMs: elapsedMs(start),
				}
			}
			nodeOutputs[node.NodeID] = sres.Output
		}
	}

	return Result{
		QuestionID:      g.QuestionID,
		Success:         true,
		FinalAnswer:     nodeOutputs[g.FinalAnswerNode],
		NodeResults:     nodeResults,
		ExecutionTimeMs: elapsedMs(start),
	}
}

func elapsedMs(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000.0
}
