package exec

import (
	"sync"

	"github.com/venneberg/kestrel/graph"
	"github.com/venneberg/kestrel/internal/registry"
)

// planCache memoizes compiled plans per input-schema key. Compilation runs
// at most once per key even under concurrent first runs. When the cache
// reaches its cap and a new schema arrives, the whole cache is dropped:
// recompiling is cheap relative to tracking recency, and schema churn past
// the cap usually means the workload changed shape entirely.
type planCache struct {
	cap     int
	mu      sync.Mutex
	entries registry.Registry[*planEntry]
}

type planEntry struct {
	once sync.Once
	plan *graph.Plan
	err  error
}

func newPlanCache(cap int) *planCache {
	if cap < 1 {
		cap = 1
	}
	return &planCache{cap: cap, entries: registry.New[*planEntry]()}
}

// getOrCompile returns the cached plan for the key, compiling it on first
// use. The bool reports whether compilation happened on this call.
func (c *planCache) getOrCompile(key string, compile func() (*graph.Plan, error)) (*graph.Plan, bool, error) {
	c.mu.Lock()
	if _, known := c.entries.Get(key); !known && c.entries.Len() >= c.cap {
		c.entries.Clear()
	}
	entry, _ := c.entries.GetOrAdd(key, func() *planEntry { return &planEntry{} })
	c.mu.Unlock()

	compiled := false
	entry.once.Do(func() {
		entry.plan, entry.err = compile()
		compiled = true
	})
	if entry.err != nil {
		// Failed compiles are not cached; the next run retries.
		c.entries.Del(key)
		return nil, compiled, entry.err
	}
	return entry.plan, compiled, nil
}

func (c *planCache) len() int {
	return c.entries.Len()
}
