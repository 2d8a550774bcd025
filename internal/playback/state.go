// Package playback owns the single source of truth for what is playing
// and how far, and orchestrates the components around it: the operation
// queue, the completion detector, the sleep timer and progress recording.
package playback

import (
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/access"
	"github.com/soundleafapp/soundleaf-playback/internal/media"
)

// ErrorKind classifies playback errors for the UI.
type ErrorKind int

const (
	ErrorNone ErrorKind = iota
	// ErrorNetwork is transient; auto-retried, then surfaced.
	ErrorNetwork
	// ErrorAudioNotFound means the source is missing or expired; never retried.
	ErrorAudioNotFound
	// ErrorPlaybackFailed is an engine-level failure, including breaker
	// rejections while the engine is degraded.
	ErrorPlaybackFailed
	// ErrorUnauthorized means the access evaluator denied the transition.
	// The UI shows a lock state, not a retry button.
	ErrorUnauthorized
)

// String returns the error kind name.
func (k ErrorKind) String() string {
	switch k {
	case ErrorNone:
		return "None"
	case ErrorNetwork:
		return "NetworkError"
	case ErrorAudioNotFound:
		return "AudioNotFound"
	case ErrorPlaybackFailed:
		return "PlaybackFailed"
	case ErrorUnauthorized:
		return "Unauthorized"
	default:
		return "Unknown"
	}
}

// Phase is the single effective visible state, derived from the flags.
type Phase int

const (
	PhaseIdle Phase = iota
	PhaseLoading
	PhaseBuffering
	PhasePlaying
	PhasePaused
	PhaseError
)

// String returns the phase name.
func (p Phase) String() string {
	switch p {
	case PhaseIdle:
		return "Idle"
	case PhaseLoading:
		return "Loading"
	case PhaseBuffering:
		return "Buffering"
	case PhasePlaying:
		return "Playing"
	case PhasePaused:
		return "Paused"
	case PhaseError:
		return "Error"
	default:
		return "Unknown"
	}
}

// SleepMode defines sleep timer behavior.
type SleepMode int

const (
	SleepOff SleepMode = iota
	SleepTimed
	SleepEndOfChapter
)

// SleepState is the sleep timer portion of the snapshot.
type SleepState struct {
	Mode      SleepMode
	Remaining time.Duration
}

// PlaylistCursor tracks the optional queue the current item came from.
type PlaylistCursor struct {
	QueueID string
	ItemIDs []string
	Index   int
}

// State is the immutable playback snapshot. Every transition produces a
// new copy, so readers always observe a complete consistent value.
type State struct {
	Item         *media.Item
	ChapterIndex int
	Position     time.Duration
	Duration     time.Duration

	Playing   bool
	Loading   bool
	Buffering bool
	Speed     float64

	ErrorKind    ErrorKind
	ErrorMessage string

	Sleep SleepState

	Owned              bool
	SubscriptionActive bool

	Playlist *PlaylistCursor
}

// Phase derives the one effective visible state. Precedence mirrors what
// the user should see: an error hides everything else, loading hides
// buffering, buffering hides playing.
func (s State) Phase() Phase {
	switch {
	case s.ErrorKind != ErrorNone:
		return PhaseError
	case s.Loading:
		return PhaseLoading
	case s.Buffering:
		return PhaseBuffering
	case s.Playing:
		return PhasePlaying
	case s.Item != nil:
		return PhasePaused
	default:
		return PhaseIdle
	}
}

// HasAudio reports whether an item is loaded.
func (s State) HasAudio() bool {
	return s.Item != nil
}

// HasError reports whether the snapshot carries an error.
func (s State) HasError() bool {
	return s.ErrorKind != ErrorNone
}

// IsPlaylistActive reports whether the current item belongs to a playlist.
func (s State) IsPlaylistActive() bool {
	return s.Playlist != nil && len(s.Playlist.ItemIDs) > 0
}

// CurrentChapter returns the loaded chapter, or nil when no item is set.
func (s State) CurrentChapter() *media.Chapter {
	if s.Item == nil {
		return nil
	}
	return s.Item.Chapter(s.ChapterIndex)
}

// accessInput assembles the evaluator input from the snapshot. All access
// decisions go through this single path.
func (s State) accessInput() access.Input {
	in := access.Input{
		Owned:              s.Owned,
		SubscriptionActive: s.SubscriptionActive,
	}
	if s.Item != nil {
		in.ItemFree = s.Item.IsFree
		in.Chapters = s.Item.Chapters
	}
	return in
}

// CanPlayChapter reports whether the chapter at index is playable now.
func (s State) CanPlayChapter(index int) bool {
	if s.Item == nil {
		return false
	}
	return access.CanPlay(s.accessInput(), index)
}

// HasNextPlayableChapter reports whether auto or manual advance may go
// forward from the current chapter.
func (s State) HasNextPlayableChapter() bool {
	if s.Item == nil {
		return false
	}
	return access.HasNext(s.accessInput(), s.ChapterIndex)
}

// HasPreviousPlayableChapter reports whether navigation may go back.
func (s State) HasPreviousPlayableChapter() bool {
	if s.Item == nil {
		return false
	}
	return access.HasPrevious(s.accessInput(), s.ChapterIndex)
}

// normalize restores the field invariants after a mutation: an error stops
// playback, loading excludes playing and buffering, the chapter index is
// valid or zero, and position never exceeds a known duration.
func (s *State) normalize() {
	if s.Item == nil {
		s.ChapterIndex = 0
	} else if s.ChapterIndex < 0 || s.ChapterIndex >= len(s.Item.Chapters) {
		s.ChapterIndex = 0
	}
	if s.ErrorKind != ErrorNone {
		s.Playing = false
		s.Loading = false
	}
	if s.Loading {
		s.Playing = false
		s.Buffering = false
	}
	if s.Duration > 0 && s.Position > s.Duration {
		s.Position = s.Duration
	}
	if s.Position < 0 {
		s.Position = 0
	}
	if s.Speed <= 0 {
		s.Speed = 1.0
	}
}
