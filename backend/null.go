package backend

import (
	"context"
	"strings"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/graph"
)

// Null executes nothing and returns zeroed outputs shaped to the graph's
// declarations. Useful for dry runs and plumbing tests.
type Null struct{}

var _ api.Backend = Null{}

func (Null) Name() string { return "null" }

func (Null) Open(mode string, g *graph.Graph) (api.Session, error) {
	return nullSession{graph: g}, nil
}

type nullSession struct {
	graph *graph.Graph
}

func (ns nullSession) Execute(ctx context.Context, plan *graph.Plan, inputs graph.Values) (graph.Values, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	batch := batchDim(ns.graph, inputs)
	out := make(graph.Values, ns.graph.Outputs.Len())
	for pair := ns.graph.Outputs.Oldest(); pair != nil; pair = pair.Next() {
		t, err := zeroed(pair.Value, batch)
		if err != nil {
			return nil, err
		}
		out[pair.Key] = t
	}
	for _, gradName := range plan.GradOutputs {
		if in, ok := inputs[strings.TrimSuffix(gradName, ".grad")]; ok {
			t, err := zeroed(in.Spec, batch)
			if err != nil {
				return nil, err
			}
			out[gradName] = t
		}
	}
	return out, nil
}

func (nullSession) Close() error { return nil }

func zeroed(spec graph.TensorSpec, batch int64) (graph.Tensor, error) {
	concrete := graph.TensorSpec{Dtype: spec.Dtype, Shape: make([]int64, len(spec.Shape))}
	for i, d := range spec.Shape {
		if d == graph.DynamicDim {
			d = batch
		}
		concrete.Shape[i] = d
	}
	return graph.NewTensor(concrete)
}
