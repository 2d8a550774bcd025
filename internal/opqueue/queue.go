// Package opqueue serializes playback-affecting operations against the
// audio engine. Commands from any producer (UI, lock-screen controls,
// auto-advance) run strictly one at a time in submission order, each under
// a timeout, behind a circuit breaker that fails fast when the engine is
// degraded.
package opqueue

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/timing"
)

var (
	// ErrBreakerOpen is returned when the circuit breaker rejects an
	// operation without touching the engine.
	ErrBreakerOpen = errors.New("opqueue: circuit breaker open")

	// ErrSuperseded is returned for a queued load that a newer load has
	// replaced before it ran.
	ErrSuperseded = errors.New("opqueue: operation superseded")

	// ErrClosed is returned for submissions after Close.
	ErrClosed = errors.New("opqueue: queue closed")
)

// Kind classifies operations; the queue only treats loads specially.
type Kind int

const (
	KindLoad Kind = iota
	KindPlay
	KindPause
	KindSeek
	KindSkip
)

// Op is one playback-affecting operation. Run must honor ctx; if it does
// not return before the deadline the queue moves on and discards the
// eventual result.
type Op struct {
	Name  string
	Kind  Kind
	Token uint64 // load supersession token, 0 for non-loads
	Run   func(ctx context.Context) error
}

type submission struct {
	op     Op
	result chan error
}

// Queue executes operations one at a time in submission order.
type Queue struct {
	policy timing.Policy
	logger *slog.Logger

	subs chan submission

	mu      sync.Mutex
	closed  bool
	breaker breakerState

	tokens     atomic.Uint64
	latestLoad atomic.Uint64

	done chan struct{}
	now  func() time.Time
}

// New creates a queue and starts its worker.
func New(policy timing.Policy, logger *slog.Logger) *Queue {
	q := &Queue{
		policy: policy.Normalized(),
		logger: logger,
		subs:   make(chan submission, 64),
		done:   make(chan struct{}),
		now:    time.Now,
	}
	go q.run()
	return q
}

// NextLoadToken issues a monotonically increasing token for a load and
// marks every earlier pending load as superseded.
func (q *Queue) NextLoadToken() uint64 {
	t := q.tokens.Add(1)
	q.latestLoad.Store(t)
	return t
}

// Submit enqueues op and returns a channel that yields its result.
// The channel is buffered; callers may discard it.
func (q *Queue) Submit(op Op) <-chan error {
	result := make(chan error, 1)
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		result <- ErrClosed
		return result
	}
	// Send under the lock so Close cannot close the channel mid-send. The
	// worker drains independently, so this cannot deadlock.
	q.subs <- submission{op: op, result: result}
	q.mu.Unlock()
	return result
}

// Close stops the worker after draining pending submissions.
func (q *Queue) Close() error {
	q.mu.Lock()
	if q.closed {
		q.mu.Unlock()
		return nil
	}
	q.closed = true
	q.mu.Unlock()
	close(q.subs)
	<-q.done
	return nil
}

func (q *Queue) run() {
	defer close(q.done)
	for sub := range q.subs {
		sub.result <- q.execute(sub.op)
	}
}

func (q *Queue) execute(op Op) error {
	if op.Kind == KindLoad && op.Token != 0 && op.Token < q.latestLoad.Load() {
		return ErrSuperseded
	}

	q.mu.Lock()
	allowed, trial := q.breaker.allow(q.policy, q.now())
	q.mu.Unlock()
	if !allowed {
		q.logger.Warn("operation rejected, breaker open", "op", op.Name)
		return ErrBreakerOpen
	}

	err := q.runWithTimeout(op)

	q.mu.Lock()
	if err != nil {
		q.breaker.recordFailure(q.policy, q.now())
	} else {
		q.breaker.recordSuccess()
	}
	open := q.breaker.open
	q.mu.Unlock()

	if err != nil {
		q.logger.Warn("operation failed",
			"op", op.Name, "trial", trial, "breaker_open", open, "error", err)
		return fmt.Errorf("%s: %w", op.Name, err)
	}
	return nil
}

// runWithTimeout executes op.Run under the operation timeout. A run that
// outlives the deadline keeps going in its goroutine; its result is
// discarded.
func (q *Queue) runWithTimeout(op Op) error {
	ctx, cancel := context.WithTimeout(context.Background(), q.policy.OperationTimeout)
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- op.Run(ctx)
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// BreakerOpen reports whether the breaker currently rejects operations.
func (q *Queue) BreakerOpen() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.breaker.open
}

// ConsecutiveFailures returns the breaker's failure counter.
func (q *Queue) ConsecutiveFailures() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.breaker.failures
}
