// Package broker distributes run-lifecycle events to subscribers through
// named topics. Two implementations exist: an in-process broker backed by
// channels, and a NATS broker for processes that want run events on a bus.
//
// Design decisions:
//   - Context-first: operations accept context.Context for cancellation
//   - Topic per module: event streams are isolated by topic name
//   - Hook delivery: subscribers receive events through events.Hook, the
//     same interface the managers call directly
//   - Slow subscribers are dropped rather than allowed to stall publishers
package broker
