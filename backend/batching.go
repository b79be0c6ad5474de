package backend

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/venneberg/kestrel/api"
	"github.com/venneberg/kestrel/graph"
)

// BatchingSession wraps a session with inference micro-batching: concurrent
// Execute calls queue up and flush together once the batch fills or the
// collection window elapses. Each queued run still executes individually on
// the wrapped session, but a flush amortizes device dispatch across the
// whole batch.
type BatchingSession struct {
	inner   api.Session
	size    int
	window  time.Duration
	onFlush func(batch int)

	queue     chan *pendingRun
	stop      chan struct{}
	loopDone  chan struct{}
	closeOnce sync.Once
}

type pendingRun struct {
	ctx    context.Context
	plan   *graph.Plan
	inputs graph.Values
	done   chan runResult
}

type runResult struct {
	out graph.Values
	err error
}

var _ api.Session = (*BatchingSession)(nil)

// NewBatching wraps a session. size is the flush threshold, window the
// longest a queued run waits for company. onFlush, when non-nil, observes
// every flushed batch size (metrics feed it to a histogram).
func NewBatching(inner api.Session, size int, window time.Duration, onFlush func(int)) *BatchingSession {
	if size < 1 {
		size = 1
	}
	if window <= 0 {
		window = time.Millisecond
	}
	b := &BatchingSession{
		inner:    inner,
		size:     size,
		window:   window,
		onFlush:  onFlush,
		queue:    make(chan *pendingRun, size*4),
		stop:     make(chan struct{}),
		loopDone: make(chan struct{}),
	}
	go b.loop()
	return b
}

func (b *BatchingSession) Execute(ctx context.Context, plan *graph.Plan, inputs graph.Values) (graph.Values, error) {
	select {
	case <-b.stop:
		return nil, fmt.Errorf("batching session is closed")
	default:
	}

	run := &pendingRun{ctx: ctx, plan: plan, inputs: inputs, done: make(chan runResult, 1)}
	select {
	case b.queue <- run:
	case <-b.stop:
		return nil, fmt.Errorf("batching session is closed")
	case <-ctx.Done():
		return nil, ctx.Err()
	}

	select {
	case res := <-run.done:
		return res.out, res.err
	case <-ctx.Done():
		// The run may still execute in a later flush; its result is
		// discarded through the buffered channel.
		return nil, ctx.Err()
	}
}

func (b *BatchingSession) Close() error {
	b.closeOnce.Do(func() {
		close(b.stop)
		<-b.loopDone
	})
	return b.inner.Close()
}

func (b *BatchingSession) loop() {
	defer close(b.loopDone)
	for {
		select {
		case <-b.stop:
			b.drain()
			return
		case first := <-b.queue:
			batch := b.collect(first)
			b.flush(batch)
		}
	}
}

// collect gathers runs until the batch fills or the window elapses.
func (b *BatchingSession) collect(first *pendingRun) []*pendingRun {
	batch := []*pendingRun{first}
	timer := time.NewTimer(b.window)
	defer timer.Stop()

	for len(batch) < b.size {
		select {
		case run := <-b.queue:
			batch = append(batch, run)
		case <-timer.C:
			return batch
		case <-b.stop:
			return batch
		}
	}
	return batch
}

func (b *BatchingSession) flush(batch []*pendingRun) {
	if b.onFlush != nil {
		b.onFlush(len(batch))
	}
	for _, run := range batch {
		if err := run.ctx.Err(); err != nil {
			run.done <- runResult{err: err}
			continue
		}
		out, err := b.inner.Execute(run.ctx, run.plan, run.inputs)
		run.done <- runResult{out: out, err: err}
	}
}

// drain fails any runs still queued at close time.
func (b *BatchingSession) drain() {
	for {
		select {
		case run := <-b.queue:
			run.done <- runResult{err: fmt.Errorf("batching session is closed")}
		default:
			return
		}
	}
}
