// Package exec houses the execution managers and the factory that selects
// between them.
//
// A Factory eagerly builds one training manager and one inference manager
// from the same four inputs (module, debug options, runtime options,
// fallback manager) and hands out the pre-built manager for a mode on
// request. Selection is a stateless read: the same pointer comes back on
// every call, the two modes never share an instance, and separately
// constructed factories never share managers.
//
// Both managers share the same run pipeline: fingerprint the inputs,
// compile (or reuse) a mode-specific plan, execute it on the backend
// session, and divert to the fallback path when the policy allows. They
// differ in the plan kind they compile and in the inference manager's
// optional micro-batching.
package exec
