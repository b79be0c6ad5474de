package events

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venneberg/kestrel/pkg/uuidx"
)

func TestEventJSONRoundTrip(t *testing.T) {
	meta := NewMeta(uuidx.New(), "training", "mlp")

	tests := []struct {
		name string
		ev   Event
	}{
		{"run start", RunStart{Meta: meta, Inputs: 2}},
		{"plan compiled", PlanCompiled{Meta: meta, SchemaKey: "abc123", Steps: 4}},
		{"fallback", FallbackTriggered{Meta: meta, Backend: "simulation", Cause: "device lost"}},
		{"run end", RunEnd{Meta: meta, Outputs: 1, Duration: 3 * time.Millisecond, FellBack: true}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			raw, err := ToJSON(tt.ev)
			require.NoError(t, err)

			back, err := FromJSON(raw)
			require.NoError(t, err)
			assert.Equal(t, tt.ev.ID(), back.ID())
			assert.IsType(t, tt.ev, back)
		})
	}
}

func TestErrorEvent(t *testing.T) {
	cause := errors.New("session exploded")
	ev := Error{Meta: NewMeta(uuidx.New(), "inference", "mlp"), Err: cause}

	assert.ErrorIs(t, ev, cause)
	assert.Contains(t, ev.Error(), "session exploded")

	raw, err := ToJSON(ev)
	require.NoError(t, err)
	back, err := FromJSON(raw)
	require.NoError(t, err)

	backErr, ok := back.(Error)
	require.True(t, ok)
	assert.Contains(t, backErr.Err.Error(), "session exploded")
}

func TestFromJSONUnknownType(t *testing.T) {
	_, err := FromJSON([]byte(`{"type":"nope","payload":{}}`))
	require.Error(t, err)
}

type recordingHook struct {
	NoopHook
	starts    int
	compiled  int
	fallbacks int
	ends      int
	errc      int
}

func (r *recordingHook) OnRunStart(context.Context, RunStart)          { r.starts++ }
func (r *recordingHook) OnPlanCompiled(context.Context, PlanCompiled)  { r.compiled++ }
func (r *recordingHook) OnFallback(context.Context, FallbackTriggered) { r.fallbacks++ }
func (r *recordingHook) OnRunEnd(context.Context, RunEnd)              { r.ends++ }
func (r *recordingHook) OnError(context.Context, Error)                { r.errc++ }

func TestDispatch(t *testing.T) {
	h := &recordingHook{}
	meta := NewMeta(uuidx.New(), "training", "g")

	Dispatch(context.Background(), h, RunStart{Meta: meta})
	Dispatch(context.Background(), h, PlanCompiled{Meta: meta})
	Dispatch(context.Background(), h, FallbackTriggered{Meta: meta})
	Dispatch(context.Background(), h, RunEnd{Meta: meta})
	Dispatch(context.Background(), h, Error{Meta: meta, Err: errors.New("x")})

	assert.Equal(t, 1, h.starts)
	assert.Equal(t, 1, h.compiled)
	assert.Equal(t, 1, h.fallbacks)
	assert.Equal(t, 1, h.ends)
	assert.Equal(t, 1, h.errc)
}

func TestMulti(t *testing.T) {
	a, b := &recordingHook{}, &recordingHook{}
	Multi(a, b).OnRunStart(context.Background(), RunStart{})
	assert.Equal(t, 1, a.starts)
	assert.Equal(t, 1, b.starts)
}
