package main

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/graph"
)

const testDefinition = `{
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

func writeTestModule(t *testing.T) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), "mlp.json")
	require.NoError(t, os.WriteFile(path, []byte(testDefinition), 0o644))
	return path
}

func TestSynthesizeInputs(t *testing.T) {
	module, err := api.LoadModule(writeTestModule(t))
	require.NoError(t, err)

	inputs, err := synthesizeInputs(module, 3)
	require.NoError(t, err)
	require.Contains(t, inputs, "x")
	require.Contains(t, inputs, "w")
	assert.Equal(t, []int64{3, 4}, inputs["x"].Spec.Shape)
	assert.Len(t, inputs["x"].Data, 12)
	assert.Equal(t, graph.Float32, inputs["w"].Spec.Dtype)
}

func TestCommands(t *testing.T) {
	path := writeTestModule(t)

	tests := []struct {
		name string
		args []string
	}{
		{"run inference", []string{"run", path, "--mode", "inference", "--iterations", "2"}},
		{"run training", []string{"run", path, "--mode", "training"}},
		{"inspect", []string{"inspect", path, "--mode", "training"}},
		{"inspect json", []string{"inspect", path, "--json"}},
		{"schema", []string{"schema"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rootCmd.SetArgs(tt.args)
			assert.NoError(t, rootCmd.Execute())
		})
	}
}

func TestRunRejectsUnknownMode(t *testing.T) {
	rootCmd.SetArgs([]string{"run", writeTestModule(t), "--mode", "prediction"})
	assert.Error(t, rootCmd.Execute())
}
