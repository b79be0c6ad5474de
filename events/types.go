package events

import (
	"fmt"
	"time"

	"github.com/go-openapi/strfmt"
	"github.com/goccy/go-json"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

// Event is the closed set of run-lifecycle events.
type Event interface {
	event()
	ID() uuid.UUID
}

// Meta is the envelope every event shares.
type Meta struct {
	RunID     uuid.UUID       `json:"run_id"`
	Mode      string          `json:"mode"`
	Graph     string          `json:"graph"`
	Timestamp strfmt.DateTime `json:"timestamp"`
}

func (m Meta) ID() uuid.UUID { return m.RunID }

// NewMeta stamps an envelope with the current time.
func NewMeta(runID uuid.UUID, mode, graph string) Meta {
	return Meta{RunID: runID, Mode: mode, Graph: graph, Timestamp: strfmt.DateTime(time.Now())}
}

// RunStart signals a run was accepted by a manager.
type RunStart struct {
	Meta
	Inputs int `json:"inputs"`
}

func (RunStart) event() {}

// PlanCompiled signals a plan was compiled for a previously unseen input
// schema.
type PlanCompiled struct {
	Meta
	SchemaKey string `json:"schema_key"`
	Steps     int    `json:"steps"`
}

func (PlanCompiled) event() {}

// FallbackTriggered signals the run diverted to the fallback backend.
type FallbackTriggered struct {
	Meta
	Backend string `json:"backend"`
	Cause   string `json:"cause"`
}

func (FallbackTriggered) event() {}

// RunEnd signals a successful run.
type RunEnd struct {
	Meta
	Outputs  int           `json:"outputs"`
	Duration time.Duration `json:"duration_ns"`
	FellBack bool          `json:"fell_back"`
}

func (RunEnd) event() {}

// Error signals a failed run. Err is preserved in memory for hooks but
// serializes as its message.
type Error struct {
	Meta
	Err error `json:"-"`
}

func (Error) event() {}

func (e Error) Error() string {
	return fmt.Sprintf("run %s: %v", e.RunID, e.Err)
}

func (e Error) Unwrap() error { return e.Err }

type errorJSON struct {
	Meta
	Message string `json:"message"`
}

type envelope struct {
	Type    string          `json:"type"`
	Payload json.RawMessage `json:"payload"`
}

// ToJSON serializes an event with its type marker.
func ToJSON(ev Event) ([]byte, error) {
	var (
		kind    string
		payload any = ev
	)
	switch e := ev.(type) {
	case RunStart:
		kind = "run_start"
	case PlanCompiled:
		kind = "plan_compiled"
	case FallbackTriggered:
		kind = "fallback_triggered"
	case RunEnd:
		kind = "run_end"
	case Error:
		kind = "error"
		msg := ""
		if e.Err != nil {
			msg = e.Err.Error()
		}
		payload = errorJSON{Meta: e.Meta, Message: msg}
	default:
		return nil, fmt.Errorf("unknown event type %T", ev)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(envelope{Type: kind, Payload: raw})
}

// FromJSON deserializes an event produced by ToJSON.
func FromJSON(data []byte) (Event, error) {
	kind := gjson.GetBytes(data, "type").String()
	payload := []byte(gjson.GetBytes(data, "payload").Raw)

	switch kind {
	case "run_start":
		var e RunStart
		return e, json.Unmarshal(payload, &e)
	case "plan_compiled":
		var e PlanCompiled
		return e, json.Unmarshal(payload, &e)
	case "fallback_triggered":
		var e FallbackTriggered
		return e, json.Unmarshal(payload, &e)
	case "run_end":
		var e RunEnd
		return e, json.Unmarshal(payload, &e)
	case "error":
		var ej errorJSON
		if err := json.Unmarshal(payload, &ej); err != nil {
			return nil, err
		}
		return Error{Meta: ej.Meta, Err: fmt.Errorf("%s", ej.Message)}, nil
	default:
		return nil, fmt.Errorf("unknown event type %q", kind)
	}
}
