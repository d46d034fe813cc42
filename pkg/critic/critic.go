// Package critic runs the two-phase validator over a builder-produced DAG:
// a deterministic structural pass (pkg/dag), then a per-layer semantic LLM
// pass. Any Phase 1 issue, critical or not, short-circuits Phase 2
// entirely.
package critic

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"dagbench/pkg/dag"
	"dagbench/pkg/dataset"
	"dagbench/pkg/llm"
	"dagbench/pkg/question"
)

// LayerValidation is the semantic-review outcome for one DAG layer.
type LayerValidation struct {
	LayerIndex   int      `json:"layer_index"`
	NodesInLayer []string `json:"nodes_in_layer"`
	IsValid      bool     `json:"is_valid"`
	Issues       []string `json:"issues,omitempty"`
	InfraApproved bool    `json:"infra_approved,omitempty"`
}

// Feedback is the full critic verdict returned to the DAG builder on rejection.
type Feedback struct {
	IsApproved       bool              `json:"is_approved"`
	OverallReasoning string            `json:"overall_reasoning"`
	LayerValidations []LayerValidation `json:"layer_validations,omitempty"`
	SpecificErrors   []string          `json:"specific_errors"`
	Suggestions      []string          `json:"suggestions,omitempty"`
}

// Critic runs Phase 2 semantic review over an LLM client.
type Critic struct {
	Client      llm.Client
	Model       string
	Temperature float64

	// Backoff is the retry schedule handed to llm.CallJSON; nil uses
	// llm.DefaultBackoff.
	Backoff []time.Duration
}

// NewCritic builds a Critic bound to client.
func NewCritic(client llm.Client, model string, temperature float64) *Critic {
	return &Critic{Client: client, Model: model, Temperature: temperature}
}

// Review runs Phase 1 (the critically-broken check, then the full
// structural suite) and, only if Phase 1 found no issue at all, Phase 2
// layer by layer, returning the combined Feedback.
func (c *Critic) Review(ctx context.Context, g *dag.Graph, q question.Question, meta *dataset.Metadata, bundle dataset.Bundle) *Feedback {
	if broken, issues := dag.CriticallyBroken(g); broken {
		return &Feedback{
			IsApproved:       false,
			OverallReasoning: "DAG is critically broken and cannot proceed to semantic review",
			SpecificErrors:   []string(issues),
		}
	}

	structuralIssues := dag.ValidateStructure(g, bundle)
	if len(structuralIssues) > 0 {
		return &Feedback{
			IsApproved:       false,
			OverallReasoning: "DAG failed structural validation",
			SpecificErrors:   []string(structuralIssues),
		}
	}

	layers := dag.ExtractLayers(g)
	validations := make([]LayerValidation, 0, len(layers))
	approved := true
	var specificErrors []string

	var validatedSignatures []string
	for _, layer := range layers {
		lv := c.reviewLayer(ctx, g, q, meta, bundle, layer, validatedSignatures)
		validations = append(validations, lv)
		if !lv.IsValid {
			approved = false
			specificErrors = append(specificErrors, lv.Issues...)
		}
		for _, n := range layer.Nodes {
			validatedSignatures = append(validatedSignatures,
				fmt.Sprintf("%s: %s(...) -> %s", n.NodeID, n.FunctionName, n.ExpectedOutputType))
		}
	}

	reasoning := "DAG approved: all layers passed semantic review"
	if !approved {
		reasoning = "DAG rejected: one or more layers failed semantic review"
	}

	return &Feedback{
		IsApproved:       approved,
		OverallReasoning: reasoning,
		LayerValidations: validations,
		SpecificErrors:   specificErrors,
	}
}

type rawLayerAssessment struct {
	IsValid bool     `json:"is_valid"`
	Issues  []string `json:"issues"`
}

// reviewLayer calls the LLM once for one layer. A transport failure here is
// treated as infrastructure, not a model-under-test failure: after the
// retry schedule in llm.CallJSON is exhausted the layer is approved rather
// than penalized, and marked InfraApproved so the run's audit trail
// distinguishes a genuine pass from a policy fallback (spec's open
// question on critic approval under transport failure, decided this way:
// record it, don't hide it).
func (c *Critic) reviewLayer(ctx context.Context, g *dag.Graph, q question.Question, meta *dataset.Metadata, bundle dataset.Bundle, layer dag.Layer, validatedUpstream []string) LayerValidation {
	nodeIDs := make([]string, 0, len(layer.Nodes))
	for _, n := range layer.Nodes {
		nodeIDs = append(nodeIDs, n.NodeID)
	}

	prompt := buildLayerPrompt(g, q, meta, bundle, layer, validatedUpstream)
	req := llm.Request{
		Messages: []llm.Message{
			{Role: llm.RoleSystem, Content: layerSystemPrompt},
			{Role: llm.RoleUser, Content: prompt},
		},
		Model:       c.Model,
		Temperature: c.Temperature,
		JSONObject:  true,
	}

	parsed, err := llm.CallJSON[rawLayerAssessment](ctx, c.Client, req, c.Backoff)
	if err != nil {
		var callErr *llm.CallError
		if errors.As(err, &callErr) {
			slog.Warn("critic semantic review unreachable, approving layer as infrastructure fallback",
				"question_id", q.ID, "layer", layer.Index, "error", err)
			return LayerValidation{
				LayerIndex: layer.Index, NodesInLayer: nodeIDs,
				IsValid: true, InfraApproved: true,
			}
		}
		return LayerValidation{
			LayerIndex: layer.Index, NodesInLayer: nodeIDs,
			IsValid: false, Issues: []string{err.Error()},
		}
	}

	return LayerValidation{
		LayerIndex:   layer.Index,
		NodesInLayer: nodeIDs,
		IsValid:      parsed.IsValid,
		Issues:       parsed.Issues,
	}
}

const layerSystemPrompt = `You review one layer of a DAG of small Go functions that together
compute the answer to an analytical question. Assess every node in this
layer for: logical correctness given the question, code correctness (does
it compute what it claims?), type compatibility with upstream and
downstream nodes, contribution toward the final answer, edge-case handling
(empty inputs, missing keys, division by zero), and field-name correctness
(any access to a key not present in the documented schema is a critical
error). Respond with a JSON object {"is_valid": bool, "issues": [string]}.`

func buildLayerPrompt(g *dag.Graph, q question.Question, meta *dataset.Metadata, bundle dataset.Bundle, layer dag.Layer, validatedUpstream []string) string {
	type payload struct {
		Question           question.Question        `json:"question"`
		Metadata           *dataset.Metadata         `json:"metadata,omitempty"`
		DatasetSummary     dataset.StructuralSummary `json:"dataset_summary"`
		DAGDescription     string                    `json:"dag_description"`
		ValidatedUpstream  []string                  `json:"validated_upstream_signatures,omitempty"`
		LayerIndex         int                       `json:"layer_index"`
		Nodes              []dag.Node                `json:"nodes"`
	}
	p := payload{
		Question:          q,
		Metadata:           meta,
		DatasetSummary:     dataset.Summarize(bundle),
		DAGDescription:     g.Description,
		ValidatedUpstream:  validatedUpstream,
		LayerIndex:         layer.Index,
		Nodes:              layer.Nodes,
	}
	return marshalOrEmpty(p)
}
