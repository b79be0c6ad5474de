package exec

import (
	"fmt"

	"github.com/venneberg/kestrel/graph"
)

// Mode selects which execution manager serves a run. Every consumer treats
// values other than ModeTraining as ModeInference, so the type is total
// over its underlying range.
type Mode uint8

const (
	ModeInference Mode = iota
	ModeTraining
)

// ModeFor maps the training flag onto a Mode.
func ModeFor(training bool) Mode {
	if training {
		return ModeTraining
	}
	return ModeInference
}

// ParseMode maps a mode name onto a Mode.
func ParseMode(s string) (Mode, error) {
	switch s {
	case "training":
		return ModeTraining, nil
	case "inference":
		return ModeInference, nil
	default:
		return ModeInference, fmt.Errorf("unknown mode %q, want training or inference", s)
	}
}

func (m Mode) String() string {
	if m == ModeTraining {
		return "training"
	}
	return "inference"
}

// PlanKind returns the plan kind managers of this mode compile.
func (m Mode) PlanKind() graph.PlanKind {
	if m == ModeTraining {
		return graph.PlanTraining
	}
	return graph.PlanForward
}
