package graph

import (
	"errors"
	"fmt"

	orderedmap "github.com/wk8/go-ordered-map/v2"
)

// Node is a single operation in the graph. Inputs and Outputs name values
// produced either by graph inputs or by other nodes.
type Node struct {
	Name    string         `json:"name"`
	Op      string         `json:"op"`
	Inputs  []string       `json:"inputs"`
	Outputs []string       `json:"outputs"`
	Attrs   map[string]any `json:"attrs,omitempty"`

	// Differentiable marks ops that contribute gradient steps to training
	// plans. Ops like shape queries or constants stay out of the backward
	// schedule.
	Differentiable bool `json:"differentiable,omitempty"`
}

// Graph is a captured computation graph. Inputs preserve declaration order;
// backends rely on that order for positional binding.
type Graph struct {
	Name    string                                     `json:"name"`
	Inputs  *orderedmap.OrderedMap[string, TensorSpec] `json:"inputs"`
	Outputs *orderedmap.OrderedMap[string, TensorSpec] `json:"outputs"`
	Nodes   []Node                                     `json:"nodes"`
}

// New returns an empty named graph with initialized input/output maps.
func New(name string) *Graph {
	return &Graph{
		Name:    name,
		Inputs:  orderedmap.New[string, TensorSpec](),
		Outputs: orderedmap.New[string, TensorSpec](),
	}
}

// AddInput declares a graph input. Declaration order is preserved.
func (g *Graph) AddInput(name string, spec TensorSpec) *Graph {
	g.Inputs.Set(name, spec)
	return g
}

// AddOutput declares a graph output.
func (g *Graph) AddOutput(name string, spec TensorSpec) *Graph {
	g.Outputs.Set(name, spec)
	return g
}

// AddNode appends a node to the graph.
func (g *Graph) AddNode(n Node) *Graph {
	g.Nodes = append(g.Nodes, n)
	return g
}

// InputNames returns input names in declaration order.
func (g *Graph) InputNames() []string {
	names := make([]string, 0, g.Inputs.Len())
	for pair := g.Inputs.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// OutputNames returns output names in declaration order.
func (g *Graph) OutputNames() []string {
	names := make([]string, 0, g.Outputs.Len())
	for pair := g.Outputs.Oldest(); pair != nil; pair = pair.Next() {
		names = append(names, pair.Key)
	}
	return names
}

// Validate checks structural integrity: unique node and value names, no
// dangling edges, every declared output produced, and an acyclic node
// ordering (verified through the same topological sort plans use).
func (g *Graph) Validate() error {
	if g.Inputs == nil || g.Outputs == nil {
		return errors.New("graph has nil input or output map")
	}
	var err error
	if g.Name == "" {
		err = errors.Join(err, errors.New("graph name is required"))
	}
	if g.Inputs.Len() == 0 {
		err = errors.Join(err, errors.New("graph declares no inputs"))
	}
	if g.Outputs.Len() == 0 {
		err = errors.Join(err, errors.New("graph declares no outputs"))
	}

	produced := make(map[string]string, g.Inputs.Len()+len(g.Nodes))
	for pair := g.Inputs.Oldest(); pair != nil; pair = pair.Next() {
		produced[pair.Key] = "graph input"
	}

	seen := make(map[string]struct{}, len(g.Nodes))
	for _, n := range g.Nodes {
		if n.Name == "" {
			err = errors.Join(err, errors.New("node with empty name"))
			continue
		}
		if _, dup := seen[n.Name]; dup {
			err = errors.Join(err, fmt.Errorf("duplicate node name %q", n.Name))
		}
		seen[n.Name] = struct{}{}
		if len(n.Outputs) == 0 {
			err = errors.Join(err, fmt.Errorf("node %q produces no outputs", n.Name))
		}
		for _, out := range n.Outputs {
			if prev, dup := produced[out]; dup {
				err = errors.Join(err, fmt.Errorf("value %q produced by both %s and node %q", out, prev, n.Name))
			}
			produced[out] = fmt.Sprintf("node %q", n.Name)
		}
	}

	for _, n := range g.Nodes {
		for _, in := range n.Inputs {
			if _, ok := produced[in]; !ok {
				err = errors.Join(err, fmt.Errorf("node %q consumes undefined value %q", n.Name, in))
			}
		}
	}
	for pair := g.Outputs.Oldest(); pair != nil; pair = pair.Next() {
		if _, ok := produced[pair.Key]; !ok {
			err = errors.Join(err, fmt.Errorf("graph output %q is never produced", pair.Key))
		}
	}
	if err != nil {
		return err
	}

	_, err = topoSort(g)
	return err
}

// topoSort orders nodes so every node appears after the producers of its
// inputs. Returns an error when the graph contains a cycle.
func topoSort(g *Graph) ([]Node, error) {
	producer := make(map[string]int, len(g.Nodes))
	for i, n := range g.Nodes {
		for _, out := range n.Outputs {
			producer[out] = i
		}
	}

	indegree := make([]int, len(g.Nodes))
	dependents := make([][]int, len(g.Nodes))
	for i, n := range g.Nodes {
		for _, in := range n.Inputs {
			p, ok := producer[in]
			if !ok || p == i {
				continue
			}
			indegree[i]++
			dependents[p] = append(dependents[p], i)
		}
	}

	ready := make([]int, 0, len(g.Nodes))
	for i := range g.Nodes {
		if indegree[i] == 0 {
			ready = append(ready, i)
		}
	}

	ordered := make([]Node, 0, len(g.Nodes))
	for len(ready) > 0 {
		i := ready[0]
		ready = ready[1:]
		ordered = append(ordered, g.Nodes[i])
		for _, d := range dependents[i] {
			indegree[d]--
			if indegree[d] == 0 {
				ready = append(ready, d)
			}
		}
	}
	if len(ordered) != len(g.Nodes) {
		return nil, fmt.Errorf("graph %q contains a cycle", g.Name)
	}
	return ordered, nil
}
