// Package fallback implements the policy-driven fallback path for graph
// execution. When the primary backend fails with an error the policy
// covers, the manager re-runs the work on a fallback backend with
// exponential backoff; everything else passes through unchanged.
package fallback

import (
	"context"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/fogfish/opts"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/graph"
	"github.com/venneberg/kestrel/pkg/slogx"
)

// Manager decides whether an execution error diverts to the fallback path
// and drives the retries when it does. A single manager is shared by the
// training and inference managers of one factory; its state is safe for
// concurrent use.
type Manager struct {
	policy             Policy
	backend            api.Backend
	maxTries           uint
	initialInterval    time.Duration
	retryAfterFallback bool

	engaged atomic.Bool
	log     *slog.Logger
}

var (
	// WithPolicy sets which error classes divert to the fallback path.
	WithPolicy = opts.ForName[Manager, Policy]("policy")
	// WithBackend sets the backend the fallback path executes on.
	WithBackend = opts.ForName[Manager, api.Backend]("backend")
	// WithMaxTries bounds fallback retry attempts per run.
	WithMaxTries = opts.ForName[Manager, uint]("maxTries")
	// WithInitialInterval sets the first backoff delay.
	WithInitialInterval = opts.ForName[Manager, time.Duration]("initialInterval")
	// WithRetryAfterFallback, when false, makes the first fallback sticky:
	// subsequent runs skip the primary backend entirely.
	WithRetryAfterFallback = opts.ForName[Manager, bool]("retryAfterFallback")
)

// New builds a fallback manager. Defaults: PolicyAll, three tries, 50ms
// initial backoff, primary retried again after a fallback. A manager built
// without a backend never engages regardless of policy.
func New(options ...opts.Option[Manager]) (*Manager, error) {
	m := &Manager{
		policy:             PolicyAll,
		maxTries:           3,
		initialInterval:    50 * time.Millisecond,
		retryAfterFallback: true,
		log:                slog.Default().With(slogx.LoggerName("fallback")),
	}
	if err := opts.Apply(m, options); err != nil {
		return nil, err
	}
	return m, nil
}

// Disabled returns a manager that never engages. Useful as the no-op
// collaborator in tests and in setups that want failures surfaced raw.
func Disabled() *Manager {
	m, err := New(WithPolicy(PolicyDisabled))
	if err != nil {
		panic(err)
	}
	return m
}

// Policy returns the configured policy.
func (m *Manager) Policy() Policy { return m.policy }

// Backend returns the fallback backend, or nil when none is configured.
func (m *Manager) Backend() api.Backend { return m.backend }

// Engaged reports whether a sticky fallback has latched. Once true, callers
// should route runs straight to the fallback path.
func (m *Manager) Engaged() bool { return m.engaged.Load() }

// Eligible reports whether the error may divert to the fallback path under
// the configured policy.
func (m *Manager) Eligible(err error) bool {
	if err == nil || m.backend == nil {
		return false
	}
	return m.policy.Has(Classify(err))
}

// Handle runs the retry closure on the fallback path after an eligible
// failure. Ineligible errors are returned unchanged. The closure is retried
// with exponential backoff up to the configured bound; context cancellation
// stops the retries.
func (m *Manager) Handle(ctx context.Context, cause error, retry func(context.Context) (graph.Values, error)) (graph.Values, error) {
	if !m.Eligible(cause) {
		return nil, cause
	}

	m.log.WarnContext(ctx, "falling back",
		slogx.Error(cause),
		slog.String("policy", m.policy.String()),
		slog.String("backend", m.backend.Name()),
	)
	if !m.retryAfterFallback {
		m.engaged.Store(true)
	}

	expo := backoff.NewExponentialBackOff()
	expo.InitialInterval = m.initialInterval

	return backoff.Retry(ctx, func() (graph.Values, error) {
		out, err := retry(ctx)
		if err != nil && !m.Eligible(err) {
			// The fallback path failed for a reason the policy does not
			// cover; surface it immediately.
			return nil, backoff.Permanent(err)
		}
		return out, err
	}, backoff.WithBackOff(expo), backoff.WithMaxTries(m.maxTries))
}
