// Package backend provides the execution backends kestrel opens sessions
// against: a deterministic simulated device, a null device for dry runs,
// and a micro-batching session wrapper for inference workloads. Backends
// register under a name so runtime options can select one.
package backend

import (
	"fmt"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/internal/registry"
	"github.com/venneberg/kestrel/options"
)

// Factory builds a backend from runtime options.
type Factory func(rt options.Runtime) (api.Backend, error)

var factories = registry.New[Factory]()

// Register makes a backend constructor selectable by name. Later
// registrations replace earlier ones, which lets tests swap backends in.
func Register(name string, fn Factory) {
	factories.Add(name, fn)
}

// For builds the backend registered under the name in the runtime options.
func For(rt options.Runtime) (api.Backend, error) {
	fn, ok := factories.Get(rt.Backend())
	if !ok {
		return nil, fmt.Errorf("unknown backend %q", rt.Backend())
	}
	return fn(rt)
}

// Names lists the registered backend names.
func Names() []string {
	var names []string
	factories.ForEach(func(name string, _ Factory) bool {
		names = append(names, name)
		return true
	})
	return names
}

func init() {
	Register("simulation", func(rt options.Runtime) (api.Backend, error) {
		return NewSimulated(rt.Seed()), nil
	})
	Register("null", func(options.Runtime) (api.Backend, error) {
		return Null{}, nil
	})
}
