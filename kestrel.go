package kestrel

import (
	"context"
	"log/slog"

	"github.com/fogfish/opts"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/events"
	"github.com/venneberg/kestrel/exec"
	"github.com/venneberg/kestrel/fallback"
	"github.com/venneberg/kestrel/graph"
	"github.com/venneberg/kestrel/internal/broker"
	"github.com/venneberg/kestrel/metrics"
	"github.com/venneberg/kestrel/options"
	"github.com/venneberg/kestrel/pkg/slogx"
)

type config struct {
	debug    options.Debug
	runtime  options.Runtime
	fallback *fallback.Manager
	hook     events.Hook
	metrics  *metrics.Metrics
	broker   broker.Broker
	backend  api.Backend
}

// Option configures a Runtime under construction.
type Option = opts.Option[config]

var (
	// WithDebug sets the debug options for both managers.
	WithDebug = opts.ForName[config, options.Debug]("debug")
	// WithRuntime sets the runtime options. When absent, options are read
	// from the environment.
	WithRuntime = opts.ForName[config, options.Runtime]("runtime")
	// WithFallback attaches a fallback manager.
	WithFallback = opts.ForName[config, *fallback.Manager]("fallback")
	// WithHook attaches a run-lifecycle observer.
	WithHook = opts.ForName[config, events.Hook]("hook")
	// WithMetrics attaches a metrics collector; it observes every run and
	// every inference batch flush.
	WithMetrics = opts.ForName[config, *metrics.Metrics]("metrics")
	// WithBroker relays run events to a broker topic named after the module.
	WithBroker = opts.ForName[config, broker.Broker]("broker")
	// WithBackend overrides the backend named in the runtime options.
	WithBackend = opts.ForName[config, api.Backend]("backend")
)

// Runtime bundles the training and inference managers for one module with
// the observers configured at construction.
type Runtime struct {
	module  api.Module
	factory *exec.Factory
	metrics *metrics.Metrics
}

// New builds a runtime around a module. Both managers are constructed
// eagerly; a module whose graph does not capture or validate fails here,
// not on first run.
func New(module api.Module, configOpts ...Option) (*Runtime, error) {
	cfg := config{runtime: options.RuntimeFromEnv()}
	if err := opts.Apply(&cfg, configOpts); err != nil {
		return nil, err
	}

	var hooks []events.Hook
	if cfg.hook != nil {
		hooks = append(hooks, cfg.hook)
	}
	if cfg.metrics != nil {
		hooks = append(hooks, cfg.metrics)
	}
	if cfg.broker != nil {
		topic := cfg.broker.Topic(context.Background(), "kestrel.runs."+module.Name())
		hooks = append(hooks, publishingHook{topic: topic})
	}

	factoryOpts := []exec.FactoryOption{}
	if len(hooks) > 0 {
		factoryOpts = append(factoryOpts, exec.WithHook(events.Multi(hooks...)))
	}
	if cfg.backend != nil {
		factoryOpts = append(factoryOpts, exec.WithBackend(cfg.backend))
	}
	if cfg.metrics != nil {
		factoryOpts = append(factoryOpts, exec.WithBatchFlushObserver(cfg.metrics.ObserveBatch))
	}

	factory, err := exec.NewFactory(module, cfg.debug, cfg.runtime, cfg.fallback, factoryOpts...)
	if err != nil {
		return nil, err
	}

	return &Runtime{module: module, factory: factory, metrics: cfg.metrics}, nil
}

// Run executes the module in the given mode.
func (r *Runtime) Run(ctx context.Context, mode exec.Mode, inputs graph.Values) (graph.Values, error) {
	return r.factory.Manager(mode).Run(ctx, inputs)
}

// Manager returns the pre-built manager for the mode.
func (r *Runtime) Manager(mode exec.Mode) exec.Manager {
	return r.factory.Manager(mode)
}

// Metrics returns the attached collector, or nil when none was configured.
func (r *Runtime) Metrics() *metrics.Metrics {
	return r.metrics
}

// Close closes both managers.
func (r *Runtime) Close() error {
	return r.factory.Close()
}

// publishingHook forwards every event to a broker topic.
type publishingHook struct {
	topic broker.Topic
}

func (p publishingHook) publish(ctx context.Context, ev events.Event) {
	if err := p.topic.Publish(ctx, ev); err != nil {
		slog.Warn("failed to publish run event", slogx.Error(err))
	}
}

func (p publishingHook) OnRunStart(ctx context.Context, e events.RunStart) { p.publish(ctx, e) }
func (p publishingHook) OnPlanCompiled(ctx context.Context, e events.PlanCompiled) {
	p.publish(ctx, e)
}
func (p publishingHook) OnFallback(ctx context.Context, e events.FallbackTriggered) {
	p.publish(ctx, e)
}
func (p publishingHook) OnRunEnd(ctx context.Context, e events.RunEnd) { p.publish(ctx, e) }
func (p publishingHook) OnError(ctx context.Context, e events.Error)   { p.publish(ctx, e) }
