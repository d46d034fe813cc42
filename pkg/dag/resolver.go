package dag

import (
	"errors"
	"fmt"
)

// ErrReferenceMalformed indicates a reference expression matches neither
// "dataset.X" nor "prev_node.Y.output".
var ErrReferenceMalformed = errors.New("malformed reference expression")

// ErrDatasetKeyMissing indicates a "dataset.X" reference whose key is not
// present in the dataset bundle.
var ErrDatasetKeyMissing = errors.New("dataset key not found")

// ErrNodeOutputMissing indicates a "prev_node.Y.output" reference whose
// node has not produced output yet (or does not exist).
var ErrNodeOutputMissing = errors.New("previous node output not found")

// Scope is the resolution context available to a node's input references:
// the read-only dataset bundle and the outputs computed by nodes executed
// so far.
type Scope struct {
	Dataset     map[string]any
	NodeOutputs map[string]any
}

// Resolve looks up a single reference expression against the scope.
func Resolve(expr string, scope Scope) (any, error) {
	ref := ParseReference(expr)
	switch ref.Kind {
	case ReferenceDataset:
		v, ok := scope.Dataset[ref.Key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrDatasetKeyMissing, ref.Key)
		}
		return v, nil
	case ReferencePrevNode:
		v, ok := scope.NodeOutputs[ref.Key]
		if !ok {
			return nil, fmt.Errorf("%w: %s", ErrNodeOutputMissing, ref.Key)
		}
		return v, nil
	default:
		return nil, fmt.Errorf("%w: %q", ErrReferenceMalformed, expr)
	}
}

// ResolveInputs resolves every entry of a node's Inputs map against scope,
// returning a param-name -> value map. Returns the first error encountered;
// the order of evaluation is unspecified but deterministic per map iteration
// order is not relied upon by callers (all inputs must resolve for a node
// to run).
func ResolveInputs(node Node, scope Scope) (map[string]any, error) {
	resolved := make(map[string]any, len(node.Inputs))
	for param, expr := range node.Inputs {
		v, err := Resolve(expr, scope)
		if err != nil {
			return nil, fmt.Errorf("node %s: input %q: %w", node.NodeID, param, err)
		}
		resolved[param] = v
	}
	return resolved, nil
}
