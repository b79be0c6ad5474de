package api

import (
	"bytes"
	"fmt"

	"github.com/go-openapi/swag"
	"github.com/goccy/go-json"
	"github.com/tidwall/gjson"

	"github.com/venneberg/kestrel/graph"
)

// ModuleFile is the on-disk module definition. It is a flat rendition of a
// computation graph: declaration order of inputs and outputs is the order
// they appear in the file.
type ModuleFile struct {
	Name    string     `json:"name" jsonschema:"required,description=Module identifier"`
	Inputs  []ValueDef `json:"inputs" jsonschema:"required,description=Graph inputs in declaration order"`
	Outputs []ValueDef `json:"outputs" jsonschema:"required,description=Graph outputs in declaration order"`
	Nodes   []NodeDef  `json:"nodes" jsonschema:"description=Operations of the graph"`
}

// ValueDef declares a named tensor. A shape entry of -1 marks a dimension
// resolved per run.
type ValueDef struct {
	Name  string  `json:"name" jsonschema:"required"`
	Dtype string  `json:"dtype" jsonschema:"required,enum=float32,enum=float64,enum=int64,enum=bool"`
	Shape []int64 `json:"shape" jsonschema:"required"`
}

// NodeDef declares one operation.
type NodeDef struct {
	Name           string         `json:"name" jsonschema:"required"`
	Op             string         `json:"op" jsonschema:"required"`
	Inputs         []string       `json:"inputs,omitempty"`
	Outputs        []string       `json:"outputs" jsonschema:"required"`
	Attrs          map[string]any `json:"attrs,omitempty"`
	Differentiable bool           `json:"differentiable,omitempty"`
}

var dtypes = map[string]graph.Dtype{
	string(graph.Float32): graph.Float32,
	string(graph.Float64): graph.Float64,
	string(graph.Int64):   graph.Int64,
	string(graph.Bool):    graph.Bool,
}

// Graph converts the file definition into a validated computation graph.
func (m ModuleFile) Graph() (*graph.Graph, error) {
	g := graph.New(m.Name)
	for _, in := range m.Inputs {
		spec, err := in.spec()
		if err != nil {
			return nil, fmt.Errorf("input %q: %w", in.Name, err)
		}
		g.AddInput(in.Name, spec)
	}
	for _, out := range m.Outputs {
		spec, err := out.spec()
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", out.Name, err)
		}
		g.AddOutput(out.Name, spec)
	}
	for _, n := range m.Nodes {
		g.AddNode(graph.Node{
			Name:           n.Name,
			Op:             n.Op,
			Inputs:         n.Inputs,
			Outputs:        n.Outputs,
			Attrs:          n.Attrs,
			Differentiable: n.Differentiable,
		})
	}
	if err := g.Validate(); err != nil {
		return nil, err
	}
	return g, nil
}

func (v ValueDef) spec() (graph.TensorSpec, error) {
	dt, ok := dtypes[v.Dtype]
	if !ok {
		return graph.TensorSpec{}, fmt.Errorf("unknown dtype %q", v.Dtype)
	}
	if len(v.Shape) == 0 {
		return graph.TensorSpec{}, fmt.Errorf("shape is required")
	}
	return graph.TensorSpec{Dtype: dt, Shape: v.Shape}, nil
}

// LoadModule reads a module definition from a file path or URL and returns
// it as a Module backed by the parsed graph. Unknown fields are rejected so
// typos in definitions fail loudly instead of silently shaping the graph.
func LoadModule(pathOrURL string) (*StaticModule, error) {
	data, err := swag.LoadFromFileOrHTTP(pathOrURL)
	if err != nil {
		return nil, fmt.Errorf("loading module from %q: %w", pathOrURL, err)
	}
	if !gjson.ValidBytes(data) {
		return nil, fmt.Errorf("module %q is not valid JSON", pathOrURL)
	}
	if !gjson.GetBytes(data, "name").Exists() {
		return nil, fmt.Errorf("module %q has no name", pathOrURL)
	}

	var mf ModuleFile
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&mf); err != nil {
		return nil, fmt.Errorf("parsing module %q: %w", pathOrURL, err)
	}

	g, err := mf.Graph()
	if err != nil {
		return nil, fmt.Errorf("module %q: %w", pathOrURL, err)
	}
	return NewStaticModule(g), nil
}
