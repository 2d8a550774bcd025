// Package entitlement tracks purchase and subscription status for the
// loaded item and fans out changes so playback access is re-derived the
// moment the user buys a book or a subscription lapses.
package entitlement

import (
	"context"
	"log/slog"
	"sync"
)

// Status is the pair of flags the access evaluator consumes.
type Status struct {
	Owned              bool
	SubscriptionActive bool
}

// Source answers entitlement and subscription questions, the remote
// client in production.
type Source interface {
	ReadEntitlement(ctx context.Context, userID, itemID string) (bool, error)
	ReadSubscriptionStatus(ctx context.Context, userID string) (bool, error)
}

const statusBufferSize = 4

// Watcher re-reads entitlement flags on demand and notifies subscribers.
// Subscribers hold an explicit unsubscribe handle; a torn-down observer
// never receives another event.
type Watcher struct {
	source Source
	logger *slog.Logger
	userID string

	mu     sync.Mutex
	itemID string
	last   Status
	subs   map[chan Status]struct{}
}

// NewWatcher creates a watcher for one user.
func NewWatcher(source Source, userID string, logger *slog.Logger) *Watcher {
	return &Watcher{
		source: source,
		logger: logger,
		userID: userID,
		subs:   make(map[chan Status]struct{}),
	}
}

// SetItem switches the item whose entitlement is being tracked.
func (w *Watcher) SetItem(itemID string) {
	w.mu.Lock()
	w.itemID = itemID
	w.mu.Unlock()
}

// Current returns the last known status.
func (w *Watcher) Current() Status {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.last
}

// Refresh re-reads both flags from the source and notifies subscribers
// when either changed. On read failure the last known status is kept;
// access never degrades on a transient network error.
func (w *Watcher) Refresh(ctx context.Context) error {
	w.mu.Lock()
	itemID := w.itemID
	w.mu.Unlock()

	var next Status
	var err error
	if itemID != "" {
		next.Owned, err = w.source.ReadEntitlement(ctx, w.userID, itemID)
		if err != nil {
			w.logger.Warn("entitlement read failed", "item_id", itemID, "error", err)
			return err
		}
	}
	next.SubscriptionActive, err = w.source.ReadSubscriptionStatus(ctx, w.userID)
	if err != nil {
		w.logger.Warn("subscription read failed", "error", err)
		return err
	}

	w.mu.Lock()
	changed := next != w.last
	w.last = next
	var targets []chan Status
	if changed {
		for ch := range w.subs {
			targets = append(targets, ch)
		}
	}
	w.mu.Unlock()

	if changed {
		w.logger.Info("entitlements changed",
			"owned", next.Owned, "subscription_active", next.SubscriptionActive)
		for _, ch := range targets {
			select {
			case ch <- next:
			default:
			}
		}
	}
	return nil
}

// Notify handles a push signal that something changed server-side.
func (w *Watcher) Notify(ctx context.Context) {
	if err := w.Refresh(ctx); err != nil {
		w.logger.Debug("entitlement refresh after notify failed", "error", err)
	}
}

// Subscribe registers an observer. The returned cancel function removes
// it; calling cancel more than once is harmless.
func (w *Watcher) Subscribe() (<-chan Status, func()) {
	ch := make(chan Status, statusBufferSize)
	w.mu.Lock()
	w.subs[ch] = struct{}{}
	w.mu.Unlock()

	var once sync.Once
	cancel := func() {
		once.Do(func() {
			w.mu.Lock()
			delete(w.subs, ch)
			w.mu.Unlock()
			close(ch)
		})
	}
	return ch, cancel
}
