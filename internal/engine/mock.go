package engine

import (
	"context"
	"sync"
	"time"
)

// Mock is a test double for Engine.
type Mock struct {
	mu sync.Mutex

	position time.Duration
	duration time.Duration

	loadErr  error
	playErr  error
	pauseErr error
	seekErr  error

	loadCalls  []Source
	playCalls  int
	pauseCalls int
	seekCalls  []time.Duration

	loadDelay time.Duration

	events chan Event
}

// NewMock creates a new mock engine for testing.
func NewMock() *Mock {
	return &Mock{events: make(chan Event, 32)}
}

func (m *Mock) Load(ctx context.Context, src Source) error {
	m.mu.Lock()
	m.loadCalls = append(m.loadCalls, src)
	delay := m.loadDelay
	err := m.loadErr
	m.mu.Unlock()

	if delay > 0 {
		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.position = 0
	m.mu.Unlock()
	return nil
}

func (m *Mock) Play() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.playCalls++
	return m.playErr
}

func (m *Mock) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.pauseCalls++
	return m.pauseErr
}

func (m *Mock) Seek(pos time.Duration) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.seekCalls = append(m.seekCalls, pos)
	if m.seekErr != nil {
		return m.seekErr
	}
	m.position = pos
	return nil
}

func (m *Mock) Position() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.position
}

func (m *Mock) Duration() time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.duration
}

func (m *Mock) Events() <-chan Event {
	return m.events
}

func (m *Mock) Close() error {
	close(m.events)
	return nil
}

// Test helpers

func (m *Mock) SetPosition(pos time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.position = pos
}

func (m *Mock) SetDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.duration = d
}

func (m *Mock) SetLoadError(err error)  { m.mu.Lock(); m.loadErr = err; m.mu.Unlock() }
func (m *Mock) SetPlayError(err error)  { m.mu.Lock(); m.playErr = err; m.mu.Unlock() }
func (m *Mock) SetPauseError(err error) { m.mu.Lock(); m.pauseErr = err; m.mu.Unlock() }
func (m *Mock) SetSeekError(err error)  { m.mu.Lock(); m.seekErr = err; m.mu.Unlock() }

// SetLoadDelay makes Load block for d, or until the context expires.
func (m *Mock) SetLoadDelay(d time.Duration) {
	m.mu.Lock()
	m.loadDelay = d
	m.mu.Unlock()
}

func (m *Mock) LoadCalls() []Source {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]Source(nil), m.loadCalls...)
}

func (m *Mock) PlayCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.playCalls
}

func (m *Mock) PauseCalls() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.pauseCalls
}

func (m *Mock) SeekCalls() []time.Duration {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]time.Duration(nil), m.seekCalls...)
}

// EmitTick pushes a position tick into the event stream.
func (m *Mock) EmitTick(pos, dur time.Duration) {
	m.mu.Lock()
	m.position = pos
	m.duration = dur
	m.mu.Unlock()
	m.events <- Event{Kind: PositionTick, Position: pos, Duration: dur}
}

// EmitEndOfMedia signals that the loaded source reached its end.
func (m *Mock) EmitEndOfMedia() {
	m.mu.Lock()
	pos, dur := m.duration, m.duration
	m.position = pos
	m.mu.Unlock()
	m.events <- Event{Kind: EndOfMedia, Position: pos, Duration: dur}
}

// EmitBuffering signals a buffering state change.
func (m *Mock) EmitBuffering(buffering bool) {
	m.events <- Event{Kind: BufferingChanged, Buffering: buffering}
}

// EmitError pushes an engine error event.
func (m *Mock) EmitError(err error) {
	m.events <- Event{Kind: EngineError, Err: err}
}

// Verify Mock implements Engine at compile time.
var _ Engine = (*Mock)(nil)
