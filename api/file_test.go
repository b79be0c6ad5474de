package api

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venneberg/kestrel/graph"
)

const mlpDefinition = `{
  "name": "mlp",
  "inputs": [
    {"name": "x", "dtype": "float32", "shape": [-1, 4]},
    {"name": "w", "dtype": "float32", "shape": [4, 2]}
  ],
  "outputs": [
    {"name": "y", "dtype": "float32", "shape": [-1, 2]}
  ],
  "nodes": [
    {"name": "matmul", "op": "MatMul", "inputs": ["x", "w"], "outputs": ["y"], "differentiable": true}
  ]
}`

func writeModuleFile(t *testing.T, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "module.json")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadModule(t *testing.T) {
	mod, err := LoadModule(writeModuleFile(t, mlpDefinition))
	require.NoError(t, err)

	assert.Equal(t, "mlp", mod.Name())

	g, err := mod.Graph()
	require.NoError(t, err)
	assert.Equal(t, []string{"x", "w"}, g.InputNames())
	assert.Equal(t, []string{"y"}, g.OutputNames())
	require.Len(t, g.Nodes, 1)
	assert.True(t, g.Nodes[0].Differentiable)

	spec, ok := g.Inputs.Get("x")
	require.True(t, ok)
	assert.Equal(t, graph.TensorSpec{Dtype: graph.Float32, Shape: []int64{graph.DynamicDim, 4}}, spec)
}

func TestLoadModuleErrors(t *testing.T) {
	tests := []struct {
		name    string
		content string
	}{
		{"not json", "p{}[[["},
		{"missing name", `{"inputs": [], "outputs": []}`},
		{"unknown field", `{"name": "m", "inputs": [], "outputs": [], "wodes": []}`},
		{"unknown dtype", `{"name": "m", "inputs": [{"name": "x", "dtype": "complex128", "shape": [1]}], "outputs": [{"name": "x", "dtype": "float32", "shape": [1]}]}`},
		{"missing shape", `{"name": "m", "inputs": [{"name": "x", "dtype": "float32"}], "outputs": [{"name": "x", "dtype": "float32", "shape": [1]}]}`},
		{"dangling output", `{"name": "m", "inputs": [{"name": "x", "dtype": "float32", "shape": [1]}], "outputs": [{"name": "ghost", "dtype": "float32", "shape": [1]}]}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := LoadModule(writeModuleFile(t, tt.content))
			assert.Error(t, err)
		})
	}
}

func TestLoadModuleMissingFile(t *testing.T) {
	_, err := LoadModule(filepath.Join(t.TempDir(), "nope.json"))
	assert.Error(t, err)
}
