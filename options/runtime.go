package options

import (
	"os"
	"strconv"
	"time"

	"github.com/fogfish/opts"
)

// Runtime holds execution tuning knobs shared by both managers. Values are
// fixed at construction; managers never mutate them.
type Runtime struct {
	backend      string
	planCacheCap int
	batchSize    int
	batchWindow  time.Duration
	seed         int64
}

const (
	// DefaultPlanCacheCap bounds compiled plans kept per manager.
	DefaultPlanCacheCap = 32
	// DefaultBatchSize is the inference micro-batch flush size.
	DefaultBatchSize = 16
)

var (
	// Backend names the execution backend to open sessions against.
	Backend = opts.ForName[Runtime, string]("backend")
	// PlanCacheCap bounds the number of compiled plans kept per manager.
	PlanCacheCap = opts.ForName[Runtime, int]("planCacheCap")
	// BatchSize sets the inference micro-batch flush size.
	BatchSize = opts.ForName[Runtime, int]("batchSize")
	// BatchWindow sets how long inference runs wait to coalesce into a
	// batch. Zero disables micro-batching.
	BatchWindow = opts.ForName[Runtime, time.Duration]("batchWindow")
	// Seed fixes the simulated backend's output fabrication.
	Seed = opts.ForName[Runtime, int64]("seed")
)

// NewRuntime builds runtime options with defaults: simulation backend,
// bounded plan cache, micro-batching disabled.
func NewRuntime(options ...opts.Option[Runtime]) (Runtime, error) {
	r := Runtime{
		backend:      "simulation",
		planCacheCap: DefaultPlanCacheCap,
		batchSize:    DefaultBatchSize,
	}
	if err := opts.Apply(&r, options); err != nil {
		return Runtime{}, err
	}
	return r, nil
}

// RuntimeFromEnv builds runtime options from KESTREL_* environment
// variables, falling back to the same defaults as NewRuntime. Unparseable
// values fall back rather than fail, matching how deployment env vars are
// usually treated.
func RuntimeFromEnv() Runtime {
	return Runtime{
		backend:      envStr("KESTREL_BACKEND", "simulation"),
		planCacheCap: envInt("KESTREL_PLAN_CACHE_CAP", DefaultPlanCacheCap),
		batchSize:    envInt("KESTREL_BATCH_SIZE", DefaultBatchSize),
		batchWindow:  time.Duration(envInt("KESTREL_BATCH_WINDOW_MS", 0)) * time.Millisecond,
		seed:         int64(envInt("KESTREL_SEED", 0)),
	}
}

func (r Runtime) Backend() string            { return r.backend }
func (r Runtime) PlanCacheCap() int          { return r.planCacheCap }
func (r Runtime) BatchSize() int             { return r.batchSize }
func (r Runtime) BatchWindow() time.Duration { return r.batchWindow }
func (r Runtime) Seed() int64                { return r.seed }

func envStr(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func envInt(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}
