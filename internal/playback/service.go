package playback

import (
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/media"
)

// LocalSource resolves a chapter to a local file when the download manager
// has it; streaming is the fallback.
type LocalSource interface {
	LocalPathFor(chapterID string) (string, bool)
}

// Service is the playback orchestration contract exposed to the UI and
// the lock-screen bridge. Commands are producers into one serialized
// operation queue; snapshots are safe to read at any time.
type Service interface {
	// Content control
	PlayItem(item *media.Item, startChapter int) error
	AdvanceToNext() error
	AdvanceToPrevious() error

	// Transport control
	TogglePlayPause() error
	SeekTo(pos time.Duration) error
	SkipForward(d time.Duration) error
	SkipBackward(d time.Duration) error
	SetSpeed(speed float64) error

	// Retry re-attempts the last failed operation.
	Retry() error

	// Sleep timer
	SetSleepTimer(mode SleepMode, d time.Duration) error
	CancelSleepTimer()

	// ReportChapterEnd feeds a completion signal from an out-of-process
	// source (lock-screen / background controls). Duplicates of an
	// already-processed completion are dropped.
	ReportChapterEnd(src CompletionSource)

	// SetEntitlements re-derives access flags after an entitlement or
	// subscription change.
	SetEntitlements(owned, subscriptionActive bool)

	// SetPlaylistCursor attaches or clears the optional playlist context.
	SetPlaylistCursor(cursor *PlaylistCursor)

	// State queries
	Snapshot() State

	// Flush persists the current position immediately (app backgrounding).
	Flush() error

	// Event subscription
	Subscribe() *Subscription
	Unsubscribe(sub *Subscription)

	// Lifecycle
	Close() error
}
