package file_test

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/aretw0/lattice/pkg/adapters/file"
	"github.com/aretw0/lattice/pkg/domain"
	"github.com/aretw0/lattice/pkg/ports"
	contract "github.com/aretw0/lattice/pkg/ports/tests"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const chainYAML = `
id: chain
nodes:
  - {id: A, type: add}
  - {id: B, type: multiply}
edges:
  - {from: {node: A, port: result}, to: {node: B, port: x}}
`

const chainJSON = `{
  "id": "chain",
  "nodes": [{"id": "A", "type": "add"}, {"id": "B", "type": "multiply"}],
  "edges": [{"from": {"node": "A", "port": "result"}, "to": {"node": "B", "port": "x"}}]
}`

func writeFile(t *testing.T, dir, name, content string) {
	t.Helper()
	require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0644))
}

func TestFileLoader_Contract(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chain.yaml", chainYAML)
	writeFile(t, dir, "chain.json", chainJSON)

	want := domain.NewGraph("chain")
	require.NoError(t, want.AddNode(domain.NodeInstance{ID: "A", Type: "add"}))
	require.NoError(t, want.AddNode(domain.NodeInstance{ID: "B", Type: "multiply"}))
	require.NoError(t, want.AddEdge(domain.EdgeBinding{
		From: domain.PortRef{NodeID: "A", Port: "result"},
		To:   domain.PortRef{NodeID: "B", Port: "x"},
	}))

	contract.GraphLoaderContractTest(t, file.NewLoader(dir), map[string]*domain.Graph{
		"chain.yaml": want,
		"chain.json": want,
	})
}

func TestFileLoader_Errors(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "broken.yaml", "id: [")
	loader := file.NewLoader(dir)

	_, err := loader.LoadGraph(context.Background(), "missing.yaml")
	assert.ErrorIs(t, err, domain.ErrGraphNotFound)

	_, err = loader.LoadGraph(context.Background(), "broken.yaml")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broken.yaml")
}

func TestFileLoader_AbsolutePath(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "chain.yml", chainYAML)

	g, err := file.NewLoader("/somewhere/else").LoadGraph(context.Background(), filepath.Join(dir, "chain.yml"))
	require.NoError(t, err)
	assert.Equal(t, "chain", g.ID)
}

func TestFileLoader_List(t *testing.T) {
	dir := t.TempDir()
	writeFile(t, dir, "b.yaml", chainYAML)
	writeFile(t, dir, "a.json", chainJSON)
	writeFile(t, dir, "notes.txt", "ignored")
	require.NoError(t, os.Mkdir(filepath.Join(dir, "sub.yaml"), 0755))

	refs, err := file.NewLoader(dir).List()
	require.NoError(t, err)
	assert.Equal(t, []string{"a.json", "b.yaml"}, refs)

	refs, err = file.NewLoader(filepath.Join(dir, "nope")).List()
	require.NoError(t, err)
	assert.Empty(t, refs)
}

func TestFileStore_Contract(t *testing.T) {
	ports.RunOutputStoreContract(t, file.NewStore(t.TempDir()))
}

func TestFileStore_Layout(t *testing.T) {
	dir := t.TempDir()
	store := file.NewStore(dir)
	require.NoError(t, store.Save(context.Background(), "g", "A", map[string]any{"result": 3}))

	data, err := os.ReadFile(filepath.Join(dir, "g", "A.json"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"result": 3}`, string(data))

	leftovers, err := filepath.Glob(filepath.Join(dir, "g", "tmp-*"))
	require.NoError(t, err)
	assert.Empty(t, leftovers)
}

func TestFileStore_RejectsPathSeparators(t *testing.T) {
	store := file.NewStore(t.TempDir())
	ctx := context.Background()

	assert.Error(t, store.Save(ctx, "../escape", "A", map[string]any{}))
	assert.Error(t, store.Save(ctx, "g", "a/b", map[string]any{}))
	_, err := store.Load(ctx, "", "A")
	assert.Error(t, err)
}
