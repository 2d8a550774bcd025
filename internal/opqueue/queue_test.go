package opqueue

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/timing"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testPolicy() timing.Policy {
	p := timing.Default()
	p.OperationTimeout = 200 * time.Millisecond
	p.BreakerResetTimeout = time.Minute
	return p
}

func TestQueue_ExecutesInSubmissionOrder(t *testing.T) {
	q := New(testPolicy(), testLogger())
	defer q.Close()

	var mu sync.Mutex
	var order []string

	var results []<-chan error
	for _, name := range []string{"load", "play", "seek", "pause"} {
		name := name
		results = append(results, q.Submit(Op{
			Name: name,
			Kind: KindPlay,
			Run: func(context.Context) error {
				mu.Lock()
				order = append(order, name)
				mu.Unlock()
				return nil
			},
		}))
	}
	for _, r := range results {
		if err := <-r; err != nil {
			t.Fatalf("operation failed: %v", err)
		}
	}

	want := []string{"load", "play", "seek", "pause"}
	for i, name := range want {
		if order[i] != name {
			t.Fatalf("order = %v, want %v", order, want)
		}
	}
}

func TestQueue_BreakerOpensAfterThresholdFailures(t *testing.T) {
	q := New(testPolicy(), testLogger())
	defer q.Close()

	boom := errors.New("engine down")
	for i := 0; i < testPolicy().BreakerThreshold; i++ {
		err := <-q.Submit(Op{Name: "play", Kind: KindPlay, Run: func(context.Context) error { return boom }})
		if !errors.Is(err, boom) {
			t.Fatalf("attempt %d: err = %v, want engine error", i, err)
		}
	}

	if !q.BreakerOpen() {
		t.Fatal("breaker should be open after threshold failures")
	}

	// Next operation must be rejected without invoking the engine.
	invoked := false
	err := <-q.Submit(Op{Name: "play", Kind: KindPlay, Run: func(context.Context) error {
		invoked = true
		return nil
	}})
	if !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("err = %v, want ErrBreakerOpen", err)
	}
	if invoked {
		t.Error("operation ran while breaker open")
	}
}

func TestQueue_SuccessResetsFailureCounter(t *testing.T) {
	q := New(testPolicy(), testLogger())
	defer q.Close()

	boom := errors.New("transient")
	<-q.Submit(Op{Name: "play", Run: func(context.Context) error { return boom }})
	<-q.Submit(Op{Name: "play", Run: func(context.Context) error { return boom }})
	<-q.Submit(Op{Name: "play", Run: func(context.Context) error { return nil }})

	if q.ConsecutiveFailures() != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", q.ConsecutiveFailures())
	}
	if q.BreakerOpen() {
		t.Error("breaker should be closed")
	}
}

func TestQueue_TrialAfterResetTimeout(t *testing.T) {
	current := time.Now()
	var nowMu sync.Mutex
	q := New(testPolicy(), testLogger())
	q.now = func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()
		return current
	}
	defer q.Close()

	boom := errors.New("engine down")
	for i := 0; i < testPolicy().BreakerThreshold; i++ {
		<-q.Submit(Op{Name: "play", Run: func(context.Context) error { return boom }})
	}
	if !q.BreakerOpen() {
		t.Fatal("breaker should be open")
	}

	// Cooldown not yet elapsed: still rejected.
	if err := <-q.Submit(Op{Name: "play", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrBreakerOpen) {
		t.Fatalf("err = %v, want ErrBreakerOpen", err)
	}

	// After the reset timeout exactly one trial runs; success closes.
	nowMu.Lock()
	current = current.Add(testPolicy().BreakerResetTimeout + time.Second)
	nowMu.Unlock()

	if err := <-q.Submit(Op{Name: "play", Run: func(context.Context) error { return nil }}); err != nil {
		t.Fatalf("trial failed: %v", err)
	}
	if q.BreakerOpen() {
		t.Error("breaker should be closed after successful trial")
	}
}

func TestQueue_FailedTrialReopensBreaker(t *testing.T) {
	current := time.Now()
	var nowMu sync.Mutex
	q := New(testPolicy(), testLogger())
	q.now = func() time.Time {
		nowMu.Lock()
		defer nowMu.Unlock()
		return current
	}
	defer q.Close()

	boom := errors.New("engine down")
	for i := 0; i < testPolicy().BreakerThreshold; i++ {
		<-q.Submit(Op{Name: "play", Run: func(context.Context) error { return boom }})
	}

	nowMu.Lock()
	current = current.Add(testPolicy().BreakerResetTimeout + time.Second)
	nowMu.Unlock()

	// Trial fails: breaker reopens and the cooldown restarts.
	if err := <-q.Submit(Op{Name: "play", Run: func(context.Context) error { return boom }}); !errors.Is(err, boom) {
		t.Fatalf("err = %v, want engine error", err)
	}
	if !q.BreakerOpen() {
		t.Fatal("breaker should be open after failed trial")
	}
	if err := <-q.Submit(Op{Name: "play", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrBreakerOpen) {
		t.Errorf("err = %v, want ErrBreakerOpen during restarted cooldown", err)
	}
}

func TestQueue_OperationTimeoutCountsAsFailure(t *testing.T) {
	p := testPolicy()
	p.OperationTimeout = 20 * time.Millisecond
	q := New(p, testLogger())
	defer q.Close()

	err := <-q.Submit(Op{Name: "load", Kind: KindLoad, Run: func(ctx context.Context) error {
		<-ctx.Done()
		return ctx.Err()
	}})
	if !errors.Is(err, context.DeadlineExceeded) {
		t.Errorf("err = %v, want DeadlineExceeded", err)
	}
	if q.ConsecutiveFailures() != 1 {
		t.Errorf("ConsecutiveFailures = %d, want 1", q.ConsecutiveFailures())
	}
}

func TestQueue_SupersededLoadSkipped(t *testing.T) {
	q := New(testPolicy(), testLogger())
	defer q.Close()

	gate := make(chan struct{})
	// Occupy the worker so both loads queue up behind it.
	blocker := q.Submit(Op{Name: "noop", Run: func(context.Context) error {
		<-gate
		return nil
	}})

	firstRan := false
	first := q.Submit(Op{Name: "load ch1", Kind: KindLoad, Token: q.NextLoadToken(), Run: func(context.Context) error {
		firstRan = true
		return nil
	}})
	second := q.Submit(Op{Name: "load ch2", Kind: KindLoad, Token: q.NextLoadToken(), Run: func(context.Context) error {
		return nil
	}})
	close(gate)

	<-blocker
	if err := <-first; !errors.Is(err, ErrSuperseded) {
		t.Errorf("first load err = %v, want ErrSuperseded", err)
	}
	if firstRan {
		t.Error("superseded load ran against the engine")
	}
	if err := <-second; err != nil {
		t.Errorf("second load err = %v, want nil", err)
	}
	// Supersession is not an engine failure.
	if q.ConsecutiveFailures() != 0 {
		t.Errorf("ConsecutiveFailures = %d, want 0", q.ConsecutiveFailures())
	}
}

func TestQueue_SubmitAfterClose(t *testing.T) {
	q := New(testPolicy(), testLogger())
	if err := q.Close(); err != nil {
		t.Fatalf("Close failed: %v", err)
	}

	if err := <-q.Submit(Op{Name: "play", Run: func(context.Context) error { return nil }}); !errors.Is(err, ErrClosed) {
		t.Errorf("err = %v, want ErrClosed", err)
	}
}

func TestDebouncer_CollapsesRapidTaps(t *testing.T) {
	current := time.Now()
	d := NewDebouncer(300 * time.Millisecond)
	d.now = func() time.Time { return current }

	allowed := 0
	for i := 0; i < 5; i++ {
		if d.Allow() {
			allowed++
		}
		current = current.Add(10 * time.Millisecond)
	}
	if allowed != 1 {
		t.Errorf("allowed = %d taps within window, want 1", allowed)
	}

	current = current.Add(300 * time.Millisecond)
	if !d.Allow() {
		t.Error("tap after window should be allowed")
	}
}

func TestDebouncer_Reset(t *testing.T) {
	d := NewDebouncer(time.Hour)
	if !d.Allow() {
		t.Fatal("first call should pass")
	}
	if d.Allow() {
		t.Fatal("second call inside window should be blocked")
	}
	d.Reset()
	if !d.Allow() {
		t.Error("call after Reset should pass")
	}
}
