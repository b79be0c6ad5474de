package exec

import (
	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/backend"
	"github.com/venneberg/kestrel/fallback"
	"github.com/venneberg/kestrel/options"
)

// InferenceManager runs forward-only plans. When the runtime options set a
// batch window, concurrent runs coalesce through a micro-batching session
// so the backend sees fewer, fuller dispatches.
type InferenceManager struct {
	*core
}

var _ Manager = (*InferenceManager)(nil)

func newInferenceManager(module api.Module, dbg options.Debug, rt options.Runtime, fb *fallback.Manager, cfg factoryConfig) (*InferenceManager, error) {
	c, err := newCore(ModeInference, module, dbg, rt, fb, cfg)
	if err != nil {
		return nil, err
	}
	if rt.BatchWindow() > 0 {
		c.session = backend.NewBatching(c.session, rt.BatchSize(), rt.BatchWindow(), cfg.onBatchFlush)
	}
	return &InferenceManager{core: c}, nil
}
