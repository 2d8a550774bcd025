// Package engine defines the contract with the underlying audio engine.
// Decoding and output are external concerns; the playback core only issues
// load/play/pause/seek primitives and consumes the event stream.
package engine

import (
	"context"
	"errors"
	"time"
)

// ErrSourceNotFound is returned by Load when the source is missing or has
// expired. Never retried; the UI surfaces it immediately.
var ErrSourceNotFound = errors.New("engine: audio source not found")

// Source identifies the audio to load for a chapter. Path is preferred
// when the chapter is available locally; URL is the streaming fallback.
type Source struct {
	ChapterID string
	Path      string
	URL       string
}

// Local reports whether the source points at a local file.
func (s Source) Local() bool {
	return s.Path != ""
}

// EventKind discriminates engine events.
type EventKind int

const (
	PositionTick EventKind = iota
	DurationKnown
	BufferingChanged
	EndOfMedia
	EngineError
)

// String returns the event kind name.
func (k EventKind) String() string {
	switch k {
	case PositionTick:
		return "PositionTick"
	case DurationKnown:
		return "DurationKnown"
	case BufferingChanged:
		return "BufferingChanged"
	case EndOfMedia:
		return "EndOfMedia"
	case EngineError:
		return "EngineError"
	default:
		return "Unknown"
	}
}

// Event is one entry of the engine's asynchronous event stream. Events
// report progress; they never carry playback intent.
type Event struct {
	Kind      EventKind
	Position  time.Duration
	Duration  time.Duration
	Buffering bool
	Err       error
}

// Engine is the audio engine contract, implemented once at process start
// and injected into the playback service.
type Engine interface {
	Load(ctx context.Context, src Source) error
	Play() error
	Pause() error
	Seek(pos time.Duration) error
	Position() time.Duration
	Duration() time.Duration
	Events() <-chan Event
	Close() error
}
