package backend

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venneberg/kestrel/graph"
)

func TestBatchingCoalesces(t *testing.T) {
	g := mlpGraph()
	inner, err := NewSimulated(1).Open("inference", g)
	require.NoError(t, err)

	var flushes atomic.Int32
	var largest atomic.Int32
	batching := NewBatching(inner, 4, 50*time.Millisecond, func(n int) {
		flushes.Add(1)
		if int32(n) > largest.Load() {
			largest.Store(int32(n))
		}
	})
	defer batching.Close()

	plan, err := graph.Build(g, graph.PlanForward)
	require.NoError(t, err)

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			out, err := batching.Execute(context.Background(), plan, mlpInputs(t, 1))
			assert.NoError(t, err)
			assert.Contains(t, out, "y")
		}()
	}
	wg.Wait()

	assert.GreaterOrEqual(t, flushes.Load(), int32(1))
	assert.LessOrEqual(t, flushes.Load(), int32(8))
	assert.GreaterOrEqual(t, largest.Load(), int32(1))
}

func TestBatchingWindowFlushesPartialBatch(t *testing.T) {
	g := mlpGraph()
	inner, err := NewSimulated(1).Open("inference", g)
	require.NoError(t, err)

	batching := NewBatching(inner, 64, 5*time.Millisecond, nil)
	defer batching.Close()

	plan, err := graph.Build(g, graph.PlanForward)
	require.NoError(t, err)

	start := time.Now()
	out, err := batching.Execute(context.Background(), plan, mlpInputs(t, 1))
	require.NoError(t, err)
	assert.Contains(t, out, "y")
	assert.Less(t, time.Since(start), time.Second, "a lone run must not wait for a full batch")
}

func TestBatchingClosedSessionRejectsRuns(t *testing.T) {
	g := mlpGraph()
	inner, err := NewSimulated(1).Open("inference", g)
	require.NoError(t, err)

	batching := NewBatching(inner, 4, time.Millisecond, nil)
	require.NoError(t, batching.Close())

	plan, err := graph.Build(g, graph.PlanForward)
	require.NoError(t, err)
	_, err = batching.Execute(context.Background(), plan, mlpInputs(t, 1))
	require.Error(t, err)
}

func TestBatchingCanceledCaller(t *testing.T) {
	g := mlpGraph()
	inner, err := NewSimulated(1).Open("inference", g)
	require.NoError(t, err)

	batching := NewBatching(inner, 4, 10*time.Millisecond, nil)
	defer batching.Close()

	plan, err := graph.Build(g, graph.PlanForward)
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err = batching.Execute(ctx, plan, mlpInputs(t, 1))
	require.ErrorIs(t, err, context.Canceled)
}
