package progress

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/timing"
)

const recordBuffer = 16

// Manager serializes progress writes behind playback. Record is
// non-blocking: when the buffer is full the snapshot is dropped, never
// the playback.
type Manager struct {
	store  Store
	policy timing.Policy
	logger *slog.Logger

	records  chan Snapshot
	flushReq chan chan struct{}
	done     chan struct{}

	closeOnce sync.Once
	sleep     func(time.Duration)
}

// NewManager creates a manager and starts its writer goroutine.
func NewManager(store Store, policy timing.Policy, logger *slog.Logger) *Manager {
	m := &Manager{
		store:    store,
		policy:   policy.Normalized(),
		logger:   logger,
		records:  make(chan Snapshot, recordBuffer),
		flushReq: make(chan chan struct{}),
		done:     make(chan struct{}),
		sleep:    time.Sleep,
	}
	go m.run()
	return m
}

// Record enqueues a snapshot for writing. Never blocks.
func (m *Manager) Record(snap Snapshot) {
	select {
	case m.records <- snap:
	case <-m.done:
	default:
		m.logger.Debug("progress buffer full, dropping snapshot",
			"item_id", snap.ItemID, "chapter", snap.ChapterIndex)
	}
}

// Flush waits until every snapshot recorded so far has been attempted.
// Used on app backgrounding, where the process may be killed right after.
func (m *Manager) Flush(ctx context.Context) error {
	ack := make(chan struct{})
	select {
	case m.flushReq <- ack:
	case <-m.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case <-ack:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Close stops the writer. Pending snapshots get one final attempt each.
func (m *Manager) Close() error {
	m.closeOnce.Do(func() { close(m.done) })
	return nil
}

func (m *Manager) run() {
	for {
		select {
		case <-m.done:
			m.drain()
			return
		case snap := <-m.records:
			m.write(snap)
		case ack := <-m.flushReq:
			m.drain()
			close(ack)
		}
	}
}

// drain attempts every buffered snapshot without waiting for new ones.
func (m *Manager) drain() {
	for {
		select {
		case snap := <-m.records:
			m.write(snap)
		default:
			return
		}
	}
}

// write attempts one snapshot with bounded retries and a fixed delay.
// After the last attempt the write is dropped silently; persistence
// failures are local to this manager by contract.
func (m *Manager) write(snap Snapshot) {
	for attempt := 1; attempt <= m.policy.ProgressMaxRetries; attempt++ {
		ctx, cancel := context.WithTimeout(context.Background(), m.policy.OperationTimeout)
		err := m.store.WriteProgress(ctx, snap)
		cancel()
		if err == nil {
			return
		}
		m.logger.Debug("progress write failed",
			"item_id", snap.ItemID, "attempt", attempt,
			"max", m.policy.ProgressMaxRetries, "error", err)
		if attempt < m.policy.ProgressMaxRetries {
			m.sleep(m.policy.ProgressRetryDelay)
		}
	}
	m.logger.Debug("progress write abandoned", "item_id", snap.ItemID,
		"chapter", snap.ChapterIndex, "percent", snap.Percent)
}
