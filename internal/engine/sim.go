package engine

import (
	"context"
	"errors"
	"sync"
	"time"
)

// ErrNoSource is returned by Sim playback primitives before a Load.
var ErrNoSource = errors.New("engine: no source loaded")

// Sim is a wall-clock simulated engine: position advances in real time
// while playing and emits a tick per interval. It lets the daemon run
// end to end without any codec or output device.
type Sim struct {
	mu sync.Mutex

	loaded   bool
	playing  bool
	position time.Duration
	duration time.Duration

	tick   time.Duration
	events chan Event
	stop   chan struct{}
	once   sync.Once
}

// NewSim creates a simulated engine ticking at the given interval.
func NewSim(tick time.Duration) *Sim {
	if tick <= 0 {
		tick = time.Second
	}
	s := &Sim{
		tick:   tick,
		events: make(chan Event, 32),
		stop:   make(chan struct{}),
	}
	go s.run()
	return s
}

func (s *Sim) run() {
	t := time.NewTicker(s.tick)
	defer t.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-t.C:
			s.advance()
		}
	}
}

func (s *Sim) advance() {
	s.mu.Lock()
	if !s.playing {
		s.mu.Unlock()
		return
	}
	s.position += s.tick
	ended := s.duration > 0 && s.position >= s.duration
	if ended {
		s.position = s.duration
		s.playing = false
	}
	pos, dur := s.position, s.duration
	s.mu.Unlock()

	s.send(Event{Kind: PositionTick, Position: pos, Duration: dur})
	if ended {
		s.send(Event{Kind: EndOfMedia, Position: pos, Duration: dur})
	}
}

func (s *Sim) send(e Event) {
	select {
	case s.events <- e:
	default:
		// Drop if nobody is draining; progress events are lossy by contract.
	}
}

// LoadWithDuration is how callers tell the simulation how long a source
// runs; Load alone defaults to ten minutes.
func (s *Sim) LoadWithDuration(src Source, d time.Duration) {
	s.mu.Lock()
	s.loaded = true
	s.playing = false
	s.position = 0
	s.duration = d
	s.mu.Unlock()
	s.send(Event{Kind: DurationKnown, Duration: d})
}

func (s *Sim) Load(_ context.Context, src Source) error {
	s.LoadWithDuration(src, 10*time.Minute)
	return nil
}

func (s *Sim) Play() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoSource
	}
	s.playing = true
	return nil
}

func (s *Sim) Pause() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoSource
	}
	s.playing = false
	return nil
}

func (s *Sim) Seek(pos time.Duration) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.loaded {
		return ErrNoSource
	}
	if pos < 0 {
		pos = 0
	}
	if s.duration > 0 && pos > s.duration {
		pos = s.duration
	}
	s.position = pos
	return nil
}

func (s *Sim) Position() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.position
}

func (s *Sim) Duration() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.duration
}

func (s *Sim) Events() <-chan Event {
	return s.events
}

func (s *Sim) Close() error {
	s.once.Do(func() { close(s.stop) })
	return nil
}

// Verify Sim implements Engine at compile time.
var _ Engine = (*Sim)(nil)
