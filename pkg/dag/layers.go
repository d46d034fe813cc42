package dag

import "sort"

// Layer is an ordered group of nodes sharing the same declared layer index.
type Layer struct {
	Index int
	Nodes []Node
}

// ExtractLayers groups a graph's nodes by their declared Layer field and
// returns the layers in ascending index order. Used by both the executor
// (evaluation order) and the critic (scoping semantic review).
func ExtractLayers(g *Graph) []Layer {
	byIndex := make(map[int][]Node)
	for _, n := range g.Nodes {
		byIndex[n.Layer] = append(byIndex[n.Layer], n)
	}

	indices := make([]int, 0, len(byIndex))
	for idx := range byIndex {
		indices = append(indices, idx)
	}
	sort.Ints(indices)

	layers := make([]Layer, 0, len(indices))
	for _, idx := range indices {
		layers = append(layers, Layer{Index: idx, Nodes: byIndex[idx]})
	}
	return layers
}
