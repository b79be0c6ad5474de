package exec

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/events"
	"github.com/venneberg/kestrel/fallback"
	"github.com/venneberg/kestrel/graph"
	"github.com/venneberg/kestrel/options"
	"github.com/venneberg/kestrel/pkg/slogx"
	"github.com/venneberg/kestrel/pkg/uuidx"
)

// Manager executes runs for one mode. Managers are created by a Factory
// and share nothing with managers of other factories.
type Manager interface {
	// Mode reports which execution mode this manager serves.
	Mode() Mode
	// Run executes the module's graph against concrete inputs. Plans are
	// compiled per input schema and reused.
	Run(ctx context.Context, inputs graph.Values) (graph.Values, error)
	// Steps returns the number of successful runs completed.
	Steps() uint64
	// Close releases the manager's backend sessions.
	Close() error
}

// core carries the run pipeline shared by both managers.
type core struct {
	mode   Mode
	module api.Module
	graph  *graph.Graph
	dbg    options.Debug
	rt     options.Runtime
	fb     *fallback.Manager
	hook   events.Hook
	log    *slog.Logger

	session api.Session

	fbOnce    sync.Once
	fbSession api.Session
	fbErr     error

	cache *planCache
	steps atomic.Uint64
}

func newCore(mode Mode, module api.Module, dbg options.Debug, rt options.Runtime, fb *fallback.Manager, cfg factoryConfig) (*core, error) {
	g, err := module.Graph()
	if err != nil {
		return nil, fmt.Errorf("capturing graph for %q: %w", module.Name(), err)
	}
	if err := g.Validate(); err != nil {
		return nil, fmt.Errorf("captured graph for %q: %w", module.Name(), err)
	}

	be := cfg.backend
	if be == nil {
		if be, err = cfg.backendFor(rt); err != nil {
			return nil, err
		}
	}
	session, err := be.Open(mode.String(), g)
	if err != nil {
		return nil, fmt.Errorf("opening %s session on %q: %w", mode, be.Name(), err)
	}

	hook := cfg.hook
	if hook == nil {
		hook = events.NoopHook{}
	}
	if fb == nil {
		fb = fallback.Disabled()
	}

	return &core{
		mode:    mode,
		module:  module,
		graph:   g,
		dbg:     dbg,
		rt:      rt,
		fb:      fb,
		hook:    hook,
		session: session,
		cache:   newPlanCache(rt.PlanCacheCap()),
		log: slog.New(slogx.Leveled(slog.Default().Handler(), dbg.LogLevel())).With(
			slogx.LoggerName("exec"),
			slogx.Mode(mode.String()),
			slogx.Graph(g.Name),
		),
	}, nil
}

func (c *core) Mode() Mode { return c.mode }

func (c *core) Steps() uint64 { return c.steps.Load() }

func (c *core) Close() error {
	err := c.session.Close()
	if c.fbSession != nil {
		if ferr := c.fbSession.Close(); err == nil {
			err = ferr
		}
	}
	return err
}

func (c *core) Run(ctx context.Context, inputs graph.Values) (graph.Values, error) {
	started := time.Now()
	meta := events.NewMeta(uuidx.New(), c.mode.String(), c.graph.Name)
	c.hook.OnRunStart(ctx, events.RunStart{Meta: meta, Inputs: len(inputs)})

	out, fellBack, err := c.run(ctx, meta, inputs)
	if err != nil {
		c.hook.OnError(ctx, events.Error{Meta: meta, Err: err})
		c.log.ErrorContext(ctx, "run failed", slogx.RunID(meta.RunID), slogx.Error(err))
		return nil, fmt.Errorf("%s run on %q: %w", c.mode, c.graph.Name, err)
	}

	c.steps.Add(1)
	elapsed := time.Since(started)
	c.hook.OnRunEnd(ctx, events.RunEnd{Meta: meta, Outputs: len(out), Duration: elapsed, FellBack: fellBack})
	c.log.DebugContext(ctx, "run complete",
		slogx.RunID(meta.RunID),
		slogx.Duration(elapsed),
		slog.Bool("fell_back", fellBack),
	)
	return out, nil
}

func (c *core) run(ctx context.Context, meta events.Meta, inputs graph.Values) (graph.Values, bool, error) {
	if err := inputs.Validate(); err != nil {
		return nil, false, err
	}
	schema := graph.SchemaOf(inputs)
	if err := schema.Matches(c.graph); err != nil {
		return nil, false, err
	}

	key := schema.Key()
	plan, compiled, err := c.cache.getOrCompile(key, func() (*graph.Plan, error) {
		return graph.Build(c.graph, c.mode.PlanKind())
	})
	if err != nil {
		return nil, false, err
	}
	if compiled {
		c.hook.OnPlanCompiled(ctx, events.PlanCompiled{Meta: meta, SchemaKey: key, Steps: len(plan.Steps)})
		c.log.InfoContext(ctx, "plan compiled", slog.String("schema", key), slog.Int("steps", len(plan.Steps)))
		if c.dbg.SaveGraphs() {
			c.dumpPlan(ctx, plan, key)
		}
	}

	if c.fb.Engaged() {
		out, err := c.runFallback(ctx, plan, inputs)
		return out, true, err
	}

	out, err := c.session.Execute(ctx, plan, inputs)
	if err == nil {
		return out, false, nil
	}
	if !c.fb.Eligible(err) {
		return nil, false, err
	}

	c.hook.OnFallback(ctx, events.FallbackTriggered{
		Meta:    meta,
		Backend: c.fb.Backend().Name(),
		Cause:   err.Error(),
	})
	out, err = c.fb.Handle(ctx, err, func(ctx context.Context) (graph.Values, error) {
		return c.runFallback(ctx, plan, inputs)
	})
	return out, true, err
}

// runFallback executes on the lazily opened fallback session.
func (c *core) runFallback(ctx context.Context, plan *graph.Plan, inputs graph.Values) (graph.Values, error) {
	c.fbOnce.Do(func() {
		c.fbSession, c.fbErr = c.fb.Backend().Open(c.mode.String(), c.graph)
	})
	if c.fbErr != nil {
		return nil, fmt.Errorf("opening fallback session: %w", c.fbErr)
	}
	return c.fbSession.Execute(ctx, plan, inputs)
}
