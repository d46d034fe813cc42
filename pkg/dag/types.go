// Package dag defines the DAG value types produced by the builder and
// consumed by the critic and executor: nodes, edges, and the reference
// expressions that wire them together. Nothing here holds a pointer to
// another package's type — every cross-reference is a string ID so a
// GeneratedDAG round-trips through JSON without loss.
package dag

import (
	"fmt"
	"strings"
)

// Node is one computation step in a DAG: a small function definition
// together with the layer it belongs to and how its parameters are wired.
type Node struct {
	NodeID             string            `json:"node_id"`
	Operation          string            `json:"operation"`
	FunctionName       string            `json:"function_name"`
	Inputs             map[string]string `json:"inputs"` // param name -> reference expression
	ExpectedOutputType string            `json:"expected_output_type"`
	Layer              int               `json:"layer"`
	Code               string            `json:"code"`
}

// Edge is a directed dependency between two nodes of the same DAG.
type Edge struct {
	Source string `json:"source"`
	Target string `json:"target"`
}

// Graph is the DAG produced by the builder for one question.
type Graph struct {
	QuestionID      string `json:"question_id"`
	Description     string `json:"description"`
	Nodes           []Node `json:"nodes"`
	Edges           []Edge `json:"edges"`
	FinalAnswerNode string `json:"final_answer_node"`
}

// NodeByID returns the node with the given ID, or false if absent.
func (g *Graph) NodeByID(id string) (Node, bool) {
	for _, n := range g.Nodes {
		if n.NodeID == id {
			return n, true
		}
	}
	return Node{}, false
}

// ReferenceKind identifies the shape of a resolved input reference.
type ReferenceKind int

const (
	// ReferenceInvalid marks a reference expression that matches neither
	// recognized shape.
	ReferenceInvalid ReferenceKind = iota
	// ReferenceDataset is "dataset.<key>".
	ReferenceDataset
	// ReferencePrevNode is "prev_node.<node_id>.output".
	ReferencePrevNode
)

// ParsedReference is a reference expression split into its kind and target.
type ParsedReference struct {
	Kind ReferenceKind
	// Key is the dataset key (ReferenceDataset) or node ID (ReferencePrevNode).
	Key string
}

// ParseReference splits a reference expression into a ParsedReference.
// It performs no existence checks — callers resolve Key against the
// dataset or node-output map separately.
func ParseReference(expr string) ParsedReference {
	if rest, ok := strings.CutPrefix(expr, "dataset."); ok && rest != "" {
		return ParsedReference{Kind: ReferenceDataset, Key: rest}
	}
	if rest, ok := strings.CutPrefix(expr, "prev_node."); ok {
		nodeID, suffix, found := strings.Cut(rest, ".output")
		if found && suffix == "" && nodeID != "" {
			return ParsedReference{Kind: ReferencePrevNode, Key: nodeID}
		}
	}
	return ParsedReference{Kind: ReferenceInvalid}
}

// String renders the reference back to its expression form.
func (p ParsedReference) String() string {
	switch p.Kind {
	case ReferenceDataset:
		return fmt.Sprintf("dataset.%s", p.Key)
	case ReferencePrevNode:
		return fmt.Sprintf("prev_node.%s.output", p.Key)
	default:
		return "<invalid reference>"
	}
}
