/*
Package kestrel is a mode-selected graph execution runtime. A module's
computation graph is captured once, compiled into per-schema execution
plans, and run on a pluggable backend in one of two modes: training or
inference.

The package wires the execution managers together with options, fallback
handling, metrics, and event distribution:

  - Modules: sources of computation graphs (api.Module)
  - Managers: per-mode executors with plan caching (exec)
  - Backends: pluggable session providers (backend)
  - Fallback: policy-driven diversion to a secondary backend (fallback)
  - Events: run-lifecycle notifications for hooks and brokers (events)

# Basic Usage

A typical embedding constructs a runtime around a module and runs it in
the mode the workload calls for:

	rt, err := kestrel.New(module,
		kestrel.WithRuntime(runtimeOpts),
		kestrel.WithMetrics(metrics.New()),
	)
	if err != nil {
		// Handle error
	}
	defer rt.Close()

	out, err := rt.Run(ctx, exec.ModeInference, inputs)

Both managers are built eagerly when the runtime is constructed, so a
mode switch mid-workload never pays a compilation or session setup cost.

Event hooks observe the run lifecycle in-process; attaching a broker
relays the same events to other processes over NATS.
*/
package kestrel
