package events

import "context"

// Hook observes run lifecycle events. Implementations must be safe for
// concurrent use; managers invoke hooks from the run's goroutine.
type Hook interface {
	OnRunStart(context.Context, RunStart)
	OnPlanCompiled(context.Context, PlanCompiled)
	OnFallback(context.Context, FallbackTriggered)
	OnRunEnd(context.Context, RunEnd)
	OnError(context.Context, Error)
}

// NoopHook ignores every event. Embed it to implement only the callbacks
// you care about.
type NoopHook struct{}

var _ Hook = NoopHook{}

func (NoopHook) OnRunStart(context.Context, RunStart)          {}
func (NoopHook) OnPlanCompiled(context.Context, PlanCompiled)  {}
func (NoopHook) OnFallback(context.Context, FallbackTriggered) {}
func (NoopHook) OnRunEnd(context.Context, RunEnd)              {}
func (NoopHook) OnError(context.Context, Error)                {}

// Dispatch routes an event to the matching hook callback. Brokers use it to
// replay deserialized events into subscribers.
func Dispatch(ctx context.Context, hook Hook, ev Event) {
	switch e := ev.(type) {
	case RunStart:
		hook.OnRunStart(ctx, e)
	case PlanCompiled:
		hook.OnPlanCompiled(ctx, e)
	case FallbackTriggered:
		hook.OnFallback(ctx, e)
	case RunEnd:
		hook.OnRunEnd(ctx, e)
	case Error:
		hook.OnError(ctx, e)
	}
}

// Multi fans one event stream out to several hooks in order.
func Multi(hooks ...Hook) Hook {
	return multiHook(hooks)
}

type multiHook []Hook

func (m multiHook) OnRunStart(ctx context.Context, e RunStart) {
	for _, h := range m {
		h.OnRunStart(ctx, e)
	}
}

func (m multiHook) OnPlanCompiled(ctx context.Context, e PlanCompiled) {
	for _, h := range m {
		h.OnPlanCompiled(ctx, e)
	}
}

func (m multiHook) OnFallback(ctx context.Context, e FallbackTriggered) {
	for _, h := range m {
		h.OnFallback(ctx, e)
	}
}

func (m multiHook) OnRunEnd(ctx context.Context, e RunEnd) {
	for _, h := range m {
		h.OnRunEnd(ctx, e)
	}
}

func (m multiHook) OnError(ctx context.Context, e Error) {
	for _, h := range m {
		h.OnError(ctx, e)
	}
}
