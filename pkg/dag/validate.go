package dag

import (
	"errors"
	"fmt"

	"dagbench/pkg/sandbox"
)

// ValidationIssues is a flat list of human-readable structural error
// strings. The critic concatenates the output of every validator below
// into CriticFeedback.SpecificErrors.
type ValidationIssues []string

// CriticallyBroken reports whether the graph is broken badly enough that
// semantic (Phase 2) validation should be skipped entirely: an empty node
// list, a cycle, a missing final answer node, or any node whose code fails
// to parse. A node that parses but fails the safety scan is not critically
// broken on its own — it is still reported here as an issue, but execution
// continues into the full ValidateStructure pass (which runs
// validateCodeAndSafety and surfaces the same violation), matching the
// spec's critically-broken set exactly rather than over-including it.
func CriticallyBroken(g *Graph) (bool, ValidationIssues) {
	var issues ValidationIssues
	critical := false

	if len(g.Nodes) == 0 {
		return true, ValidationIssues{"DAG has no nodes"}
	}

	if g.FinalAnswerNode == "" {
		issues = append(issues, "final_answer_node is not set")
		critical = true
	} else if _, ok := g.NodeByID(g.FinalAnswerNode); !ok {
		issues = append(issues, fmt.Sprintf("final_answer_node %q does not name a node in the DAG", g.FinalAnswerNode))
		critical = true
	}

	if cyc, cycleIssues := findCycle(g); cyc {
		return true, append(issues, cycleIssues...)
	}

	for _, n := range g.Nodes {
		if _, err := sandbox.Scan(n.Code, n.FunctionName); err != nil {
			issues = append(issues, fmt.Sprintf("node %s: %v", n.NodeID, err))
			if errors.Is(err, sandbox.ErrParse) {
				return true, issues
			}
		}
	}

	return critical, issues
}

// ValidateStructure runs the full deterministic validator suite over a
// non-critically-broken graph and returns every issue found (possibly
// empty). Each validator below corresponds to one numbered invariant in
// the spec's GeneratedDAG description.
func ValidateStructure(g *Graph, dataset map[string]any) ValidationIssues {
	var issues ValidationIssues
	issues = append(issues, validateUniqueIDs(g)...)
	issues = append(issues, validateEdgeEndpoints(g)...)
	issues = append(issues, validateLayerMonotonicity(g)...)
	if cyc, cycIssues := findCycle(g); cyc {
		issues = append(issues, cycIssues...)
	}
	issues = append(issues, validateConnectivity(g)...)
	issues = append(issues, validateReferences(g, dataset)...)
	issues = append(issues, validateCodeAndSafety(g)...)
	return issues
}

func validateUniqueIDs(g *Graph) ValidationIssues {
	var issues ValidationIssues
	seen := make(map[string]bool, len(g.Nodes))
	for _, n := range g.Nodes {
		if seen[n.NodeID] {
			issues = append(issues, fmt.Sprintf("duplicate node ID %q", n.NodeID))
		}
		seen[n.NodeID] = true
	}
	return issues
}

func validateEdgeEndpoints(g *Graph) ValidationIssues {
	var issues ValidationIssues
	for _, e := range g.Edges {
		if _, ok := g.NodeByID(e.Source); !ok {
			issues = append(issues, fmt.Sprintf("edge %s->%s: source node %q does not exist", e.Source, e.Target, e.Source))
		}
		if _, ok := g.NodeByID(e.Target); !ok {
			issues = append(issues, fmt.Sprintf("edge %s->%s: target node %q does not exist", e.Source, e.Target, e.Target))
		}
	}
	return issues
}

func validateLayerMonotonicity(g *Graph) ValidationIssues {
	var issues ValidationIssues
	for _, e := range g.Edges {
		src, srcOK := g.NodeByID(e.Source)
		dst, dstOK := g.NodeByID(e.Target)
		if !srcOK || !dstOK {
			continue // already reported by validateEdgeEndpoints
		}
		if !(src.Layer < dst.Layer) {
			issues = append(issues, fmt.Sprintf(
				"edge %s->%s violates layer monotonicity: layer %d is not less than layer %d",
				e.Source, e.Target, src.Layer, dst.Layer))
		}
	}
	return issues
}

// findCycle reports whether the graph (restricted to edges whose endpoints
// exist) contains a cycle, via a DFS-based topological-sort attempt.
func findCycle(g *Graph) (bool, ValidationIssues) {
	adj := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		if _, ok := g.NodeByID(e.Source); !ok {
			continue
		}
		if _, ok := g.NodeByID(e.Target); !ok {
			continue
		}
		adj[e.Source] = append(adj[e.Source], e.Target)
	}

	const (
		unvisited = 0
		visiting  = 1
		done      = 2
	)
	state := make(map[string]int, len(g.Nodes))
	var cyclic bool

	var visit func(id string)
	visit = func(id string) {
		if cyclic || state[id] == done {
			return
		}
		if state[id] == visiting {
			cyclic = true
			return
		}
		state[id] = visiting
		for _, next := range adj[id] {
			visit(next)
			if cyclic {
				return
			}
		}
		state[id] = done
	}

	for _, n := range g.Nodes {
		visit(n.NodeID)
		if cyclic {
			return true, ValidationIssues{"DAG contains a cycle"}
		}
	}
	return false, nil
}

// validateConnectivity checks that final_answer_node is reachable from at
// least one layer-0 node and that every node is an ancestor of
// final_answer_node (no dead nodes).
func validateConnectivity(g *Graph) ValidationIssues {
	var issues ValidationIssues
	if g.FinalAnswerNode == "" {
		return issues // reported elsewhere
	}
	if _, ok := g.NodeByID(g.FinalAnswerNode); !ok {
		return issues // reported elsewhere
	}

	forward := make(map[string][]string, len(g.Nodes))
	reverse := make(map[string][]string, len(g.Nodes))
	for _, e := range g.Edges {
		forward[e.Source] = append(forward[e.Source], e.Target)
		reverse[e.Target] = append(reverse[e.Target], e.Source)
	}

	reachableFromLayer0 := make(map[string]bool)
	var layer0 []string
	for _, n := range g.Nodes {
		if n.Layer == 0 {
			layer0 = append(layer0, n.NodeID)
		}
	}
	for _, start := range layer0 {
		bfs(start, forward, reachableFromLayer0)
	}
	if !reachableFromLayer0[g.FinalAnswerNode] {
		issues = append(issues, fmt.Sprintf(
			"final_answer_node %q is not reachable from any layer-0 node", g.FinalAnswerNode))
	}

	ancestorsOfFinal := make(map[string]bool)
	bfs(g.FinalAnswerNode, reverse, ancestorsOfFinal)
	ancestorsOfFinal[g.FinalAnswerNode] = true
	for _, n := range g.Nodes {
		if !ancestorsOfFinal[n.NodeID] {
			issues = append(issues, fmt.Sprintf(
				"node %q is not an ancestor of final_answer_node %q (dead node)", n.NodeID, g.FinalAnswerNode))
		}
	}

	return issues
}

func bfs(start string, adj map[string][]string, visited map[string]bool) {
	if visited[start] {
		return
	}
	queue := []string{start}
	visited[start] = true
	for len(queue) > 0 {
		cur := queue[0]
		queue = queue[1:]
		for _, next := range adj[cur] {
			if !visited[next] {
				visited[next] = true
				queue = append(queue, next)
			}
		}
	}
}

func validateReferences(g *Graph, dataset map[string]any) ValidationIssues {
	var issues ValidationIssues
	for _, n := range g.Nodes {
		for param, expr := range n.Inputs {
			ref := ParseReference(expr)
			switch ref.Kind {
			case ReferenceDataset:
				if _, ok := dataset[ref.Key]; !ok {
					issues = append(issues, fmt.Sprintf(
						"node %s: input %q references dataset key %q which does not exist", n.NodeID, param, ref.Key))
				}
			case ReferencePrevNode:
				src, ok := g.NodeByID(ref.Key)
				if !ok {
					issues = append(issues, fmt.Sprintf(
						"node %s: input %q references node %q which does not exist", n.NodeID, param, ref.Key))
					continue
				}
				if !(src.Layer < n.Layer) {
					issues = append(issues, fmt.Sprintf(
						"node %s: input %q references node %q at layer %d, not earlier than its own layer %d",
						n.NodeID, param, ref.Key, src.Layer, n.Layer))
				}
			default:
				issues = append(issues, fmt.Sprintf(
					"node %s: input %q has malformed reference expression %q", n.NodeID, param, expr))
			}
		}
	}
	return issues
}

func validateCodeAndSafety(g *Graph) ValidationIssues {
	var issues ValidationIssues
	for _, n := range g.Nodes {
		if _, err := sandbox.Scan(n.Code, n.FunctionName); err != nil {
			issues = append(issues, fmt.Sprintf("node %s: %v", n.NodeID, err))
		}
	}
	return issues
}
