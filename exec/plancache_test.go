package exec

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venneberg/kestrel/graph"
)

func compilePlan(t *testing.T) func() (*graph.Plan, error) {
	t.Helper()
	return func() (*graph.Plan, error) {
		return graph.Build(testGraph(), graph.PlanForward)
	}
}

func TestPlanCacheCompileOnce(t *testing.T) {
	cache := newPlanCache(8)
	var calls atomic.Int32
	compile := func() (*graph.Plan, error) {
		calls.Add(1)
		return graph.Build(testGraph(), graph.PlanForward)
	}

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			plan, _, err := cache.getOrCompile("schema-a", compile)
			assert.NoError(t, err)
			assert.NotNil(t, plan)
		}()
	}
	wg.Wait()

	assert.Equal(t, int32(1), calls.Load(), "concurrent first runs compile exactly once")
}

func TestPlanCacheReportsCompilation(t *testing.T) {
	cache := newPlanCache(8)

	_, compiled, err := cache.getOrCompile("a", compilePlan(t))
	require.NoError(t, err)
	assert.True(t, compiled)

	_, compiled, err = cache.getOrCompile("a", compilePlan(t))
	require.NoError(t, err)
	assert.False(t, compiled)
}

func TestPlanCacheEviction(t *testing.T) {
	cache := newPlanCache(2)

	for i := 0; i < 2; i++ {
		_, _, err := cache.getOrCompile(fmt.Sprintf("s%d", i), compilePlan(t))
		require.NoError(t, err)
	}
	assert.Equal(t, 2, cache.len())

	// A third schema trips the cap: the cache drops wholesale and restarts
	// with just the newcomer.
	_, _, err := cache.getOrCompile("s2", compilePlan(t))
	require.NoError(t, err)
	assert.Equal(t, 1, cache.len())
}

func TestPlanCacheFailedCompileNotCached(t *testing.T) {
	cache := newPlanCache(8)
	boom := errors.New("boom")

	_, _, err := cache.getOrCompile("a", func() (*graph.Plan, error) { return nil, boom })
	require.ErrorIs(t, err, boom)
	assert.Zero(t, cache.len())

	plan, compiled, err := cache.getOrCompile("a", compilePlan(t))
	require.NoError(t, err)
	assert.True(t, compiled)
	assert.NotNil(t, plan)
}
