package exec

import (
	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/fallback"
	"github.com/venneberg/kestrel/options"
)

// TrainingManager runs the module with gradient schedules: every plan it
// compiles carries the backward pass, and successful runs yield one
// gradient value per graph input alongside the declared outputs.
type TrainingManager struct {
	*core
}

var _ Manager = (*TrainingManager)(nil)

func newTrainingManager(module api.Module, dbg options.Debug, rt options.Runtime, fb *fallback.Manager, cfg factoryConfig) (*TrainingManager, error) {
	c, err := newCore(ModeTraining, module, dbg, rt, fb, cfg)
	if err != nil {
		return nil, err
	}
	return &TrainingManager{core: c}, nil
}
