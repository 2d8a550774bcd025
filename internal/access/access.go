// Package access decides whether a chapter is playable for the current
// user. The priority order lives here and only here; navigation helpers
// and state accessors all delegate to CanPlay.
package access

import "github.com/soundleafapp/soundleaf-playback/internal/media"

// Input carries the entitlement flags and chapter list CanPlay evaluates.
type Input struct {
	Owned              bool
	SubscriptionActive bool
	ItemFree           bool
	Chapters           []media.Chapter
}

// CanPlay reports whether the chapter at chapterIndex is playable.
// Priority order, first match wins:
//
//  1. Ownership is a permanent entitlement: always playable.
//  2. Preview chapters are open to everyone, checked before the
//     subscription rule so previews stay accessible to lapsed subscribers.
//  3. A free item is playable exactly when the subscription is active.
//     Free-tier content still requires a subscription; this asymmetry is
//     intentional product behavior, not a bug.
//  4. An out-of-range index is not playable.
//  5. Paid, not owned: not playable.
func CanPlay(in Input, chapterIndex int) bool {
	if in.Owned {
		return true
	}
	if chapterIndex >= 0 && chapterIndex < len(in.Chapters) && in.Chapters[chapterIndex].IsPreview {
		return true
	}
	if in.ItemFree {
		return in.SubscriptionActive
	}
	if chapterIndex < 0 || chapterIndex >= len(in.Chapters) {
		return false
	}
	return false
}

// HasNext reports whether the chapter after current exists and is playable.
func HasNext(in Input, current int) bool {
	next := current + 1
	if next >= len(in.Chapters) {
		return false
	}
	return CanPlay(in, next)
}

// HasPrevious reports whether the chapter before current exists and is
// playable.
func HasPrevious(in Input, current int) bool {
	prev := current - 1
	if prev < 0 {
		return false
	}
	return CanPlay(in, prev)
}
