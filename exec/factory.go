package exec

import (
	"errors"

	"github.com/fogfish/opts"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/backend"
	"github.com/venneberg/kestrel/events"
	"github.com/venneberg/kestrel/fallback"
	"github.com/venneberg/kestrel/options"
)

// factoryConfig collects the optional collaborators a Factory threads into
// both managers.
type factoryConfig struct {
	hook         events.Hook
	backend      api.Backend
	onBatchFlush func(int)
}

// backendFor resolves the backend named in the runtime options. Split out
// so tests can observe resolution without registering globals.
func (c factoryConfig) backendFor(rt options.Runtime) (api.Backend, error) {
	return backend.For(rt)
}

// FactoryOption configures the collaborators NewFactory threads into both
// managers.
type FactoryOption = opts.Option[factoryConfig]

var (
	// WithHook attaches a run-lifecycle observer to both managers.
	WithHook = opts.ForName[factoryConfig, events.Hook]("hook")
	// WithBackend overrides the backend the runtime options name. Tests
	// and embedders use it to inject instrumented backends.
	WithBackend = opts.ForName[factoryConfig, api.Backend]("backend")
	// WithBatchFlushObserver observes inference micro-batch flush sizes.
	WithBatchFlushObserver = opts.ForName[factoryConfig, func(int)]("onBatchFlush")
)

// Factory owns one training manager and one inference manager, both built
// eagerly from the same four inputs. It performs no validation of its own:
// whatever the manager constructors reject surfaces unchanged.
type Factory struct {
	training  *TrainingManager
	inference *InferenceManager
}

// NewFactory constructs both managers. Each manager captures the module's
// graph and opens its own backend session, so the two never share execution
// state. If the second construction fails, the first manager is closed
// before the error is returned.
func NewFactory(module api.Module, dbg options.Debug, rt options.Runtime, fb *fallback.Manager, cfgOpts ...FactoryOption) (*Factory, error) {
	var cfg factoryConfig
	if err := opts.Apply(&cfg, cfgOpts); err != nil {
		return nil, err
	}

	training, err := newTrainingManager(module, dbg, rt, fb, cfg)
	if err != nil {
		return nil, err
	}
	inference, err := newInferenceManager(module, dbg, rt, fb, cfg)
	if err != nil {
		return nil, errors.Join(err, training.Close())
	}
	return &Factory{training: training, inference: inference}, nil
}

// Manager returns the pre-built manager for the mode. It never constructs
// anything: the same instance comes back on every call. Any mode other
// than ModeTraining selects the inference manager.
func (f *Factory) Manager(mode Mode) Manager {
	if mode == ModeTraining {
		return f.training
	}
	return f.inference
}

// Close closes both managers.
func (f *Factory) Close() error {
	return errors.Join(f.training.Close(), f.inference.Close())
}
