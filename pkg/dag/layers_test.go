package dag

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestExtractLayers_AscendingOrder(t *testing.T) {
	g := &Graph{
		Nodes: []Node{
			{NodeID: "c", Layer: 2},
			{NodeID: "a", Layer: 0},
			{NodeID: "b", Layer: 0},
		},
	}
	layers := ExtractLayers(g)
	require.Len(t, layers, 2)
	assert.Equal(t, 0, layers[0].Index)
	assert.Len(t, layers[0].Nodes, 2)
	assert.Equal(t, 2, layers[1].Index)
	assert.Len(t, layers[1].Nodes, 1)
}

func TestExtractLayers_Empty(t *testing.T) {
	layers := ExtractLayers(&Graph{})
	assert.Empty(t, layers)
}
