package dsl_test

import (
	"context"
	"testing"

	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/dsl"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBuilder_Chain(t *testing.T) {
	b := dsl.New("pricing").Name("Pricing")

	b.Add("base", "data.constant").Config("value", 100)
	b.Add("tax", "math.multiply").
		Input("y", 1.2).
		From("x", "base.value")
	b.Add("label", "text.template").
		Config("template", "total: {{.total}}")
	b.Add("tax", "ignored").To("result", "label.total")

	g, err := b.Build()
	require.NoError(t, err)

	assert.Equal(t, "pricing", g.ID)
	assert.Equal(t, "Pricing", g.Name)
	assert.Equal(t, []string{"base", "tax", "label"}, g.NodeIDs())

	tax, ok := g.Node("tax")
	require.True(t, ok)
	assert.Equal(t, "math.multiply", tax.Type)
	assert.Equal(t, 1.2, tax.Inputs["y"])

	edges := g.Edges()
	require.Len(t, edges, 2)
	assert.Equal(t, domain.PortRef{NodeID: "base", Port: "value"}, edges[0].From)
	assert.Equal(t, domain.PortRef{NodeID: "tax", Port: "x"}, edges[0].To)
	assert.Equal(t, domain.PortRef{NodeID: "label", Port: "total"}, edges[1].To)
}

func TestBuilder_DottedNodeIDs(t *testing.T) {
	b := dsl.New("dots")
	b.Add("stage.one", "data.constant")
	b.Add("stage.two", "util.delay").From("value", "stage.one.value")

	g, err := b.Build()
	require.NoError(t, err)
	assert.Equal(t, domain.PortRef{NodeID: "stage.one", Port: "value"}, g.Edges()[0].From)
}

func TestBuilder_Errors(t *testing.T) {
	b := dsl.New("broken")
	b.Add("a", "data.constant").From("x", "nodot")
	b.Connect("a.", "b.x")

	_, err := b.Build()
	require.Error(t, err)
	assert.Contains(t, err.Error(), `"nodot"`)
	assert.Contains(t, err.Error(), `"a."`)

	_, err = dsl.New("").Build()
	assert.Error(t, err)
}

func TestBuilder_BuildLoader(t *testing.T) {
	b := dsl.New("loaded")
	b.Add("a", "data.constant")

	loader, err := b.BuildLoader()
	require.NoError(t, err)

	g, err := loader.LoadGraph(context.Background(), "loaded")
	require.NoError(t, err)
	assert.Equal(t, []string{"a"}, g.NodeIDs())
}
