package backend

import (
	"context"
	"fmt"
	"hash/fnv"
	"math/rand"
	"sort"
	"strings"
	"time"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/graph"
)

// Simulated mimics an accelerator without touching real hardware. Outputs
// are fabricated deterministically from the seed and the run inputs, so
// repeated runs with the same seed are reproducible, and an optional base
// latency models kernel time.
type Simulated struct {
	seed        int64
	baseLatency time.Duration
}

var _ api.Backend = (*Simulated)(nil)

// NewSimulated builds a simulated backend. Seed zero means fully
// input-derived outputs; a nonzero seed perturbs them reproducibly.
func NewSimulated(seed int64) *Simulated {
	return &Simulated{seed: seed}
}

// WithLatency returns a copy that sleeps per step to model device time.
func (s *Simulated) WithLatency(d time.Duration) *Simulated {
	return &Simulated{seed: s.seed, baseLatency: d}
}

func (s *Simulated) Name() string { return "simulation" }

func (s *Simulated) Open(mode string, g *graph.Graph) (api.Session, error) {
	if g == nil {
		return nil, fmt.Errorf("simulation backend requires a graph")
	}
	return &simSession{backend: s, mode: mode, graph: g}, nil
}

type simSession struct {
	backend *Simulated
	mode    string
	graph   *graph.Graph
	closed  bool
}

func (ss *simSession) Execute(ctx context.Context, plan *graph.Plan, inputs graph.Values) (graph.Values, error) {
	if ss.closed {
		return nil, fmt.Errorf("session for %q is closed", ss.graph.Name)
	}
	if err := inputs.Validate(); err != nil {
		return nil, err
	}

	batch := batchDim(ss.graph, inputs)
	rng := rand.New(rand.NewSource(ss.runSeed(plan, inputs)))

	if ss.backend.baseLatency > 0 {
		if err := sleepCtx(ctx, ss.backend.baseLatency*time.Duration(len(plan.Steps))); err != nil {
			return nil, err
		}
	} else if err := ctx.Err(); err != nil {
		return nil, err
	}

	out := make(graph.Values, ss.graph.Outputs.Len()+len(plan.GradOutputs))
	for pair := ss.graph.Outputs.Oldest(); pair != nil; pair = pair.Next() {
		t, err := fabricate(rng, pair.Value, batch)
		if err != nil {
			return nil, fmt.Errorf("output %q: %w", pair.Key, err)
		}
		out[pair.Key] = t
	}

	// Training plans yield one gradient per graph input, shaped like the
	// input itself.
	for _, gradName := range plan.GradOutputs {
		input := strings.TrimSuffix(gradName, ".grad")
		in, ok := inputs[input]
		if !ok {
			return nil, fmt.Errorf("gradient %q refers to unknown input %q", gradName, input)
		}
		t, err := fabricate(rng, in.Spec, batch)
		if err != nil {
			return nil, fmt.Errorf("gradient %q: %w", gradName, err)
		}
		out[gradName] = t
	}
	return out, nil
}

func (ss *simSession) Close() error {
	ss.closed = true
	return nil
}

// runSeed mixes the backend seed with the plan identity and input contents
// so fabricated outputs are stable per (seed, plan, inputs).
func (ss *simSession) runSeed(plan *graph.Plan, inputs graph.Values) int64 {
	h := fnv.New64a()
	fmt.Fprintf(h, "%d/%s/%s", ss.backend.seed, plan.Graph, plan.Kind)
	names := make([]string, 0, len(inputs))
	for name := range inputs {
		names = append(names, name)
	}
	sort.Strings(names)
	for _, name := range names {
		sum := 0.0
		for _, v := range inputs[name].Data {
			sum += v
		}
		fmt.Fprintf(h, "|%s=%.6f", name, sum)
	}
	return int64(h.Sum64())
}

// batchDim resolves the run's batch size by matching concrete inputs
// against the declared input specs: the concrete size at the first position
// a declaration marks dynamic, walking inputs in declaration order. Fully
// static graphs resolve to 1.
func batchDim(g *graph.Graph, inputs graph.Values) int64 {
	for pair := g.Inputs.Oldest(); pair != nil; pair = pair.Next() {
		in, ok := inputs[pair.Key]
		if !ok || len(in.Spec.Shape) != len(pair.Value.Shape) {
			continue
		}
		for i, d := range pair.Value.Shape {
			if d == graph.DynamicDim {
				return in.Spec.Shape[i]
			}
		}
	}
	return 1
}

// fabricate builds a concrete tensor for a declared spec, substituting the
// batch size for dynamic dimensions.
func fabricate(rng *rand.Rand, spec graph.TensorSpec, batch int64) (graph.Tensor, error) {
	concrete := graph.TensorSpec{Dtype: spec.Dtype, Shape: make([]int64, len(spec.Shape))}
	for i, d := range spec.Shape {
		if d == graph.DynamicDim {
			d = batch
		}
		concrete.Shape[i] = d
	}
	t, err := graph.NewTensor(concrete)
	if err != nil {
		return graph.Tensor{}, err
	}
	for i := range t.Data {
		t.Data[i] = rng.Float64()
	}
	return t, nil
}

func sleepCtx(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
