package entitlement

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"sync"
	"testing"
	"time"
)

type fakeSource struct {
	mu     sync.Mutex
	owned  bool
	active bool
	err    error
}

func (f *fakeSource) ReadEntitlement(_ context.Context, _, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.owned, f.err
}

func (f *fakeSource) ReadSubscriptionStatus(_ context.Context, _ string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.active, f.err
}

func (f *fakeSource) set(owned, active bool, err error) {
	f.mu.Lock()
	f.owned, f.active, f.err = owned, active, err
	f.mu.Unlock()
}

func newTestWatcher(src Source) *Watcher {
	return NewWatcher(src, "usr_1", slog.New(slog.NewTextHandler(io.Discard, nil)))
}

func TestWatcher_RefreshUpdatesStatus(t *testing.T) {
	src := &fakeSource{owned: true, active: false}
	w := newTestWatcher(src)
	w.SetItem("bk_1")

	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	got := w.Current()
	if !got.Owned || got.SubscriptionActive {
		t.Errorf("Current() = %+v, want owned only", got)
	}
}

func TestWatcher_SubscribersNotifiedOnChange(t *testing.T) {
	src := &fakeSource{}
	w := newTestWatcher(src)
	w.SetItem("bk_1")

	ch, cancel := w.Subscribe()
	defer cancel()

	src.set(false, true, nil)
	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	select {
	case got := <-ch:
		if !got.SubscriptionActive {
			t.Errorf("status = %+v, want subscription active", got)
		}
	case <-time.After(time.Second):
		t.Fatal("no status event")
	}

	// Unchanged flags produce no event.
	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	select {
	case got := <-ch:
		t.Errorf("unexpected event %+v for unchanged status", got)
	case <-time.After(50 * time.Millisecond):
	}
}

func TestWatcher_UnsubscribeStopsEvents(t *testing.T) {
	src := &fakeSource{}
	w := newTestWatcher(src)
	w.SetItem("bk_1")

	ch, cancel := w.Subscribe()
	cancel()
	cancel() // repeated cancel is harmless

	src.set(true, true, nil)
	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	if _, ok := <-ch; ok {
		t.Error("cancelled subscription should be closed without events")
	}
}

func TestWatcher_RefreshKeepsStatusOnError(t *testing.T) {
	src := &fakeSource{owned: true, active: true}
	w := newTestWatcher(src)
	w.SetItem("bk_1")
	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}

	src.set(false, false, errors.New("network down"))
	if err := w.Refresh(context.Background()); err == nil {
		t.Fatal("Refresh should surface the read error")
	}

	got := w.Current()
	if !got.Owned || !got.SubscriptionActive {
		t.Errorf("Current() = %+v, want last known status kept on error", got)
	}
}

func TestWatcher_NoItemSkipsEntitlementRead(t *testing.T) {
	src := &fakeSource{active: true}
	w := newTestWatcher(src)

	if err := w.Refresh(context.Background()); err != nil {
		t.Fatalf("Refresh failed: %v", err)
	}
	got := w.Current()
	if got.Owned {
		t.Error("no tracked item should never be owned")
	}
	if !got.SubscriptionActive {
		t.Error("subscription status should still be read")
	}
}
