package graph

import (
	"fmt"

	"github.com/goccy/go-json"
)

// PlanKind selects what a compiled plan schedules.
type PlanKind string

const (
	// PlanForward schedules only the forward pass.
	PlanForward PlanKind = "forward"
	// PlanTraining schedules the forward pass followed by a gradient pass
	// over differentiable nodes in reverse order.
	PlanTraining PlanKind = "training"
)

// StepPhase distinguishes forward steps from gradient steps.
type StepPhase string

const (
	PhaseForward  StepPhase = "forward"
	PhaseGradient StepPhase = "gradient"
)

// Step is one scheduled operation in a plan.
type Step struct {
	Node  Node      `json:"node"`
	Phase StepPhase `json:"phase"`
}

// Plan is a compiled, mode-specific schedule for one graph. Plans are
// immutable once built and safe to share across runs.
type Plan struct {
	Graph   string   `json:"graph"`
	Kind    PlanKind `json:"kind"`
	Steps   []Step   `json:"steps"`
	Outputs []string `json:"outputs"`

	// GradOutputs names the gradient values a training plan yields, one per
	// graph input, in input declaration order.
	GradOutputs []string `json:"grad_outputs,omitempty"`
}

// GradName returns the conventional name of the gradient value for an input.
func GradName(input string) string {
	return input + ".grad"
}

// Build compiles a plan for the graph. The forward schedule is a
// topological ordering of the nodes; a training plan additionally walks the
// differentiable nodes in reverse and emits one gradient step per node,
// then exposes per-input gradient outputs.
func Build(g *Graph, kind PlanKind) (*Plan, error) {
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("building %s plan: %w", kind, err)
	}
	ordered, err := topoSort(g)
	if err != nil {
		return nil, err
	}

	plan := &Plan{
		Graph:   g.Name,
		Kind:    kind,
		Steps:   make([]Step, 0, len(ordered)),
		Outputs: g.OutputNames(),
	}
	for _, n := range ordered {
		plan.Steps = append(plan.Steps, Step{Node: n, Phase: PhaseForward})
	}

	if kind == PlanTraining {
		for i := len(ordered) - 1; i >= 0; i-- {
			n := ordered[i]
			if !n.Differentiable {
				continue
			}
			grad := Node{
				Name:    n.Name + ".grad",
				Op:      n.Op + ".backward",
				Inputs:  append([]string(nil), n.Outputs...),
				Outputs: gradNames(n.Inputs),
			}
			plan.Steps = append(plan.Steps, Step{Node: grad, Phase: PhaseGradient})
		}
		plan.GradOutputs = gradNames(g.InputNames())
	}
	return plan, nil
}

func gradNames(names []string) []string {
	out := make([]string, len(names))
	for i, n := range names {
		out[i] = GradName(n)
	}
	return out
}

// ForwardLen returns the number of forward steps.
func (p *Plan) ForwardLen() int {
	n := 0
	for _, s := range p.Steps {
		if s.Phase == PhaseForward {
			n++
		}
	}
	return n
}

// Encode serializes the plan for debug dumps so callers don't need to
// import the codec themselves.
func (p *Plan) Encode() ([]byte, error) {
	return json.Marshal(p)
}
