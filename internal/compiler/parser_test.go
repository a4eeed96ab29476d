package compiler_test

import (
	"testing"

	"github.com/aretw0/lattice/internal/compiler"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainYAML = `
id: chain
name: Add then multiply
nodes:
  - id: A
    type: math.add
    inputs: {a: 1, b: 2}
  - id: B
    type: math.multiply
    inputs:
      y: 4
edges:
  - from: {node: A, port: result}
    to: {node: B, port: x}
`

func TestParser_YAML(t *testing.T) {
	g, err := compiler.NewParser().Parse([]byte(chainYAML), compiler.FormatYAML)
	require.NoError(t, err)

	assert.Equal(t, "chain", g.ID)
	assert.Equal(t, "Add then multiply", g.Name)
	assert.Equal(t, []string{"A", "B"}, g.NodeIDs())

	a, _ := g.Node("A")
	assert.Equal(t, "math.add", a.Type)
	assert.EqualValues(t, 2, a.Inputs["b"])

	edges := g.Edges()
	require.Len(t, edges, 1)
	assert.Equal(t, "A.result->B.x", edges[0].ID)
	assert.Equal(t, domain.PortRef{NodeID: "B", Port: "x"}, edges[0].To)
}

func TestParser_JSONRoundTrip(t *testing.T) {
	p := compiler.NewParser()
	g, err := p.Parse([]byte(chainYAML), compiler.FormatYAML)
	require.NoError(t, err)

	data, err := p.Marshal(g, compiler.FormatJSON)
	require.NoError(t, err)
	assert.Contains(t, string(data), `"node": "A"`)

	again, err := p.Parse(data, compiler.FormatJSON)
	require.NoError(t, err)
	assert.Equal(t, g.NodeIDs(), again.NodeIDs())
	assert.Equal(t, g.EdgeCount(), again.EdgeCount())
}

func TestParser_Errors(t *testing.T) {
	tests := []struct {
		name string
		doc  string
		want string
	}{
		{"missing graph id", "nodes: []", "graph missing id"},
		{"missing node id", "id: g\nnodes:\n  - type: x", "missing id"},
		{"missing node type", "id: g\nnodes:\n  - id: a", "missing type"},
		{"duplicate node", "id: g\nnodes:\n  - {id: a, type: x}\n  - {id: a, type: x}", "duplicate node id"},
		{"half edge", "id: g\nnodes:\n  - {id: a, type: x}\nedges:\n  - from: {node: a, port: o}", "needs both"},
		{"bad yaml", "id: [", "failed to parse graph"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := compiler.NewParser().Parse([]byte(tt.doc), compiler.FormatYAML)
			require.Error(t, err)
			assert.Contains(t, err.Error(), tt.want)
		})
	}
}

func TestFormatOf(t *testing.T) {
	assert.Equal(t, compiler.FormatJSON, compiler.FormatOf("graphs/a.JSON"))
	assert.Equal(t, compiler.FormatYAML, compiler.FormatOf("graphs/a.yml"))
	assert.Equal(t, compiler.FormatYAML, compiler.FormatOf("graph"))
}
