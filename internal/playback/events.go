package playback

import (
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/media"
)

// StateChange is emitted whenever a transition produces a new snapshot.
// Observers diff Previous against Current.
type StateChange struct {
	Previous State
	Current  State
}

// ChapterChange is emitted when playback moves to a different chapter.
//
// Emitted by:
//   - PlayItem: when new content is loaded
//   - AdvanceToNext/AdvanceToPrevious: manual navigation
//   - completion-triggered auto-advance
//
// NOT emitted by position ticks, pause/resume, or seeks within a chapter.
type ChapterChange struct {
	Item          *media.Item
	PreviousIndex int
	Index         int
	Chapter       *media.Chapter
}

// PositionChange is emitted on reported progress: engine ticks and seeks.
type PositionChange struct {
	Position time.Duration
	Duration time.Duration
}

// ErrorEvent is emitted when an operation fails and the snapshot enters an
// error state.
type ErrorEvent struct {
	Kind      ErrorKind
	Operation string
	Message   string
	Err       error
}
