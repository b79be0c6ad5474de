package api

import (
	"github.com/venneberg/kestrel/graph"
)

// Module is the user-facing contract for a model module whose computation
// graph kestrel executes. It defines the minimal capture surface the
// execution managers need.
//
// Design decisions:
//   - Minimal interface: capture is a single call; everything else (plan
//     building, caching, device placement) belongs to the runtime.
//   - Capture may fail: modules back onto real model formats and export can
//     go wrong, so Graph returns an error instead of panicking.
//   - No mode awareness: a module describes one graph; the training and
//     inference managers derive their own schedules from it.
//
// The interface is implementation-agnostic: static graph definitions,
// file-loaded graphs, and generated test stubs all satisfy it the same way.
type Module interface {
	// Name returns the module's identifier, used for logging, debug dump
	// prefixes, and metrics labels.
	Name() string

	// Graph captures the module's computation graph. Managers call it once
	// during construction; failures surface unchanged to whoever builds the
	// manager factory.
	Graph() (*graph.Graph, error)
}

// StaticModule wraps an already-built graph as a Module. It is the common
// case for declarative definitions and for tests.
type StaticModule struct {
	graph *graph.Graph
}

// NewStaticModule builds a module from a pre-captured graph.
func NewStaticModule(g *graph.Graph) *StaticModule {
	return &StaticModule{graph: g}
}

func (m *StaticModule) Name() string {
	return m.graph.Name
}

func (m *StaticModule) Graph() (*graph.Graph, error) {
	return m.graph, nil
}
