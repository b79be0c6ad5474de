package exec

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/backend"
	"github.com/venneberg/kestrel/events"
	"github.com/venneberg/kestrel/fallback"
	"github.com/venneberg/kestrel/graph"
	"github.com/venneberg/kestrel/options"
)

type countingHook struct {
	events.NoopHook
	mu        sync.Mutex
	starts    int
	compiles  int
	fallbacks int
	ends      []events.RunEnd
	errs      int
}

func (h *countingHook) OnRunStart(_ context.Context, e events.RunStart) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.starts++
}

func (h *countingHook) OnPlanCompiled(_ context.Context, e events.PlanCompiled) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.compiles++
}

func (h *countingHook) OnFallback(_ context.Context, e events.FallbackTriggered) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.fallbacks++
}

func (h *countingHook) OnRunEnd(_ context.Context, e events.RunEnd) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.ends = append(h.ends, e)
}

func (h *countingHook) OnError(_ context.Context, e events.Error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.errs++
}

func (h *countingHook) snapshot() (int, int, int, int, int) {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.starts, h.compiles, h.fallbacks, len(h.ends), h.errs
}

// faultySession fails a set number of times with a classified error before
// succeeding, or fails forever when failures is negative.
type faultyBackend struct {
	failures int32
	executes atomic.Int32
	inner    api.Backend
}

func (b *faultyBackend) Name() string { return "faulty" }

func (b *faultyBackend) Open(mode string, g *graph.Graph) (api.Session, error) {
	inner, err := b.inner.Open(mode, g)
	if err != nil {
		return nil, err
	}
	return &faultySession{backend: b, inner: inner}, nil
}

type faultySession struct {
	backend *faultyBackend
	inner   api.Session
}

func (s *faultySession) Execute(ctx context.Context, plan *graph.Plan, inputs graph.Values) (graph.Values, error) {
	n := s.backend.executes.Add(1)
	if s.backend.failures < 0 || n <= s.backend.failures {
		return nil, &fallback.DeviceError{Device: "sim0", Err: errors.New("device lost")}
	}
	return s.inner.Execute(ctx, plan, inputs)
}

func (s *faultySession) Close() error { return s.inner.Close() }

func TestManagerRun(t *testing.T) {
	dbg, rt := testOptions(t)
	hook := &countingHook{}

	f, err := NewFactory(api.NewStaticModule(testGraph()), dbg, rt, fallback.Disabled(),
		WithBackend(backend.NewSimulated(1)), WithHook(hook))
	require.NoError(t, err)
	defer f.Close()

	t.Run("training run yields gradients", func(t *testing.T) {
		out, err := f.Manager(ModeTraining).Run(context.Background(), testInputs(t, 4))
		require.NoError(t, err)
		assert.Contains(t, out, "y")
		assert.Contains(t, out, "x.grad")
		assert.Contains(t, out, "w.grad")
	})

	t.Run("inference run is forward only", func(t *testing.T) {
		out, err := f.Manager(ModeInference).Run(context.Background(), testInputs(t, 4))
		require.NoError(t, err)
		assert.Contains(t, out, "y")
		assert.NotContains(t, out, "x.grad")
	})

	t.Run("steps count successful runs per manager", func(t *testing.T) {
		assert.Equal(t, uint64(1), f.Manager(ModeTraining).Steps())
		assert.Equal(t, uint64(1), f.Manager(ModeInference).Steps())
	})

	t.Run("hook saw the lifecycle", func(t *testing.T) {
		starts, compiles, fallbacks, ends, errs := hook.snapshot()
		assert.Equal(t, 2, starts)
		assert.Equal(t, 2, compiles, "one plan per manager for one schema")
		assert.Zero(t, fallbacks)
		assert.Equal(t, 2, ends)
		assert.Zero(t, errs)
	})
}

func TestManagerRejectsBadInputs(t *testing.T) {
	f := newTestFactory(t)

	t.Run("missing input", func(t *testing.T) {
		_, err := f.Manager(ModeInference).Run(context.Background(), graph.Values{})
		require.Error(t, err)
	})

	t.Run("shape mismatch", func(t *testing.T) {
		bad := testInputs(t, 2)
		x := bad["x"]
		x.Spec.Shape = []int64{2, 5}
		x.Data = make([]float64, 10)
		bad["x"] = x
		_, err := f.Manager(ModeInference).Run(context.Background(), bad)
		require.Error(t, err)
	})
}

func TestPlanCacheReuse(t *testing.T) {
	dbg, rt := testOptions(t)
	hook := &countingHook{}

	f, err := NewFactory(api.NewStaticModule(testGraph()), dbg, rt, fallback.Disabled(),
		WithBackend(backend.NewSimulated(1)), WithHook(hook))
	require.NoError(t, err)
	defer f.Close()

	mgr := f.Manager(ModeInference)
	for i := 0; i < 3; i++ {
		_, err := mgr.Run(context.Background(), testInputs(t, 8))
		require.NoError(t, err)
	}
	_, compiles, _, _, _ := hook.snapshot()
	assert.Equal(t, 1, compiles, "same schema reuses the plan")

	_, err = mgr.Run(context.Background(), testInputs(t, 16))
	require.NoError(t, err)
	_, compiles, _, _, _ = hook.snapshot()
	assert.Equal(t, 2, compiles, "new batch size compiles a new plan")
}

func TestManagerFallback(t *testing.T) {
	t.Run("classified failure diverts and recovers", func(t *testing.T) {
		dbg, rt := testOptions(t)
		hook := &countingHook{}
		fb, err := fallback.New(
			fallback.WithBackend(backend.NewSimulated(2)),
			fallback.WithInitialInterval(time.Millisecond),
		)
		require.NoError(t, err)

		faulty := &faultyBackend{failures: -1, inner: backend.NewSimulated(1)}
		f, err := NewFactory(api.NewStaticModule(testGraph()), dbg, rt, fb,
			WithBackend(faulty), WithHook(hook))
		require.NoError(t, err)
		defer f.Close()

		out, err := f.Manager(ModeInference).Run(context.Background(), testInputs(t, 2))
		require.NoError(t, err)
		assert.Contains(t, out, "y")

		_, _, fallbacks, _, _ := hook.snapshot()
		assert.Equal(t, 1, fallbacks)

		var sawFellBack bool
		hook.mu.Lock()
		for _, end := range hook.ends {
			if end.FellBack {
				sawFellBack = true
			}
		}
		hook.mu.Unlock()
		assert.True(t, sawFellBack, "run end records the diversion")
	})

	t.Run("disabled policy surfaces the raw failure", func(t *testing.T) {
		dbg, rt := testOptions(t)
		faulty := &faultyBackend{failures: -1, inner: backend.NewSimulated(1)}

		f, err := NewFactory(api.NewStaticModule(testGraph()), dbg, rt, fallback.Disabled(), WithBackend(faulty))
		require.NoError(t, err)
		defer f.Close()

		_, err = f.Manager(ModeInference).Run(context.Background(), testInputs(t, 2))
		require.Error(t, err)
		var de *fallback.DeviceError
		assert.ErrorAs(t, err, &de)
	})

	t.Run("sticky fallback skips the primary backend", func(t *testing.T) {
		dbg, rt := testOptions(t)
		fb, err := fallback.New(
			fallback.WithBackend(backend.NewSimulated(2)),
			fallback.WithRetryAfterFallback(false),
			fallback.WithInitialInterval(time.Millisecond),
		)
		require.NoError(t, err)

		faulty := &faultyBackend{failures: -1, inner: backend.NewSimulated(1)}
		f, err := NewFactory(api.NewStaticModule(testGraph()), dbg, rt, fb, WithBackend(faulty))
		require.NoError(t, err)
		defer f.Close()

		mgr := f.Manager(ModeInference)
		_, err = mgr.Run(context.Background(), testInputs(t, 2))
		require.NoError(t, err)
		primaryAfterFirst := faulty.executes.Load()

		_, err = mgr.Run(context.Background(), testInputs(t, 2))
		require.NoError(t, err)
		assert.Equal(t, primaryAfterFirst, faulty.executes.Load(),
			"after the sticky fallback the primary backend stays cold")
	})
}

func TestPlanDump(t *testing.T) {
	dir := t.TempDir()
	dbg, err := options.NewDebug(options.SaveGraphs(true), options.GraphDir(dir), options.NamePrefix("test"))
	require.NoError(t, err)
	rt, err := options.NewRuntime()
	require.NoError(t, err)

	f, err := NewFactory(api.NewStaticModule(testGraph()), dbg, rt, fallback.Disabled(),
		WithBackend(backend.NewSimulated(1)))
	require.NoError(t, err)
	defer f.Close()

	_, err = f.Manager(ModeTraining).Run(context.Background(), testInputs(t, 2))
	require.NoError(t, err)

	matches, err := filepath.Glob(filepath.Join(dir, "test_mlp_training_*.json"))
	require.NoError(t, err)
	require.Len(t, matches, 1)

	raw, err := os.ReadFile(matches[0])
	require.NoError(t, err)
	assert.Contains(t, string(raw), `"kind":"training"`)
	assert.Contains(t, string(raw), `"mode":"training"`)
}

func TestInferenceBatchingWired(t *testing.T) {
	dbg, err := options.NewDebug()
	require.NoError(t, err)
	rt, err := options.NewRuntime(options.BatchWindow(2*time.Millisecond), options.BatchSize(4))
	require.NoError(t, err)

	var flushes atomic.Int32
	f, err := NewFactory(api.NewStaticModule(testGraph()), dbg, rt, fallback.Disabled(),
		WithBackend(backend.NewSimulated(1)),
		WithBatchFlushObserver(func(int) { flushes.Add(1) }))
	require.NoError(t, err)
	defer f.Close()

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := f.Manager(ModeInference).Run(context.Background(), testInputs(t, 1))
			assert.NoError(t, err)
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, flushes.Load(), int32(1), "inference runs flow through the batcher")

	// Training runs never batch.
	_, err = f.Manager(ModeTraining).Run(context.Background(), testInputs(t, 1))
	require.NoError(t, err)
}
