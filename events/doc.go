// Package events defines the run-lifecycle events the execution managers
// emit and the Hook interface observers implement.
//
// Every event carries the run identifier, the execution mode, the graph
// name, and a timestamp. Events serialize to JSON with a "type" marker so
// brokers can round-trip them without reflection guesswork.
//
// Event types:
//   - RunStart:          a run was accepted by a manager
//   - PlanCompiled:      a plan was compiled for a new input schema
//   - FallbackTriggered: the run diverted to the fallback backend
//   - RunEnd:            the run finished successfully
//   - Error:             the run failed
//
// Hooks receive events synchronously on the run's goroutine; slow consumers
// should hand off to their own channels. The zero-value NoopHook satisfies
// the interface for callers that don't observe runs.
package events
