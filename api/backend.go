package api

import (
	"context"

	"github.com/venneberg/kestrel/graph"
)

// Backend produces execution sessions for compiled plans. Implementations
// target a device class (simulated GPU, CPU reference) and must be safe to
// share: each manager opens its own session.
type Backend interface {
	// Name identifies the backend for logs, metrics, and registry lookup.
	Name() string

	// Open creates a session bound to one graph and one execution mode.
	// Open is called exactly once per manager construction; the session
	// lives as long as the manager that opened it.
	Open(mode string, g *graph.Graph) (Session, error)
}

// Session executes compiled plans. A session belongs to exactly one manager
// and is closed with it. Execute must honor ctx cancellation.
type Session interface {
	Execute(ctx context.Context, plan *graph.Plan, inputs graph.Values) (graph.Values, error)
	Close() error
}
