package access

import (
	"testing"
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/media"
)

func chapters(previews ...bool) []media.Chapter {
	out := make([]media.Chapter, len(previews))
	for i, p := range previews {
		out[i] = media.Chapter{
			ID:        "ch",
			Index:     i,
			Duration:  time.Minute,
			IsPreview: p,
		}
	}
	return out
}

func TestCanPlay_OwnedAlwaysPlayable(t *testing.T) {
	in := Input{Owned: true, Chapters: chapters(false, false, false)}

	for i := range in.Chapters {
		if !CanPlay(in, i) {
			t.Errorf("CanPlay(owned, %d) = false, want true", i)
		}
	}
	// Ownership wins regardless of subscription and preview flags.
	in.SubscriptionActive = false
	in.ItemFree = false
	if !CanPlay(in, 1) {
		t.Error("CanPlay(owned, non-preview, no sub) = false, want true")
	}
}

func TestCanPlay_PreviewOpenToEveryone(t *testing.T) {
	in := Input{Chapters: chapters(true, false)}

	if !CanPlay(in, 0) {
		t.Error("CanPlay(preview, no sub) = false, want true")
	}
	in.SubscriptionActive = true
	if !CanPlay(in, 0) {
		t.Error("CanPlay(preview, sub) = false, want true")
	}
	if CanPlay(in, 1) {
		t.Error("CanPlay(paid non-preview) = true, want false")
	}
}

func TestCanPlay_FreeItemTracksSubscription(t *testing.T) {
	in := Input{ItemFree: true, Chapters: chapters(false, false)}

	for i := range in.Chapters {
		if CanPlay(in, i) {
			t.Errorf("CanPlay(free, inactive sub, %d) = true, want false", i)
		}
	}
	in.SubscriptionActive = true
	for i := range in.Chapters {
		if !CanPlay(in, i) {
			t.Errorf("CanPlay(free, active sub, %d) = false, want true", i)
		}
	}
}

func TestCanPlay_OutOfRange(t *testing.T) {
	in := Input{Chapters: chapters(false)}

	if CanPlay(in, -1) {
		t.Error("CanPlay(-1) = true, want false")
	}
	if CanPlay(in, 1) {
		t.Error("CanPlay(1) = true, want false")
	}
}

func TestCanPlay_PaidNotOwnedDenied(t *testing.T) {
	in := Input{SubscriptionActive: true, Chapters: chapters(false)}

	if CanPlay(in, 0) {
		t.Error("CanPlay(paid, not owned, sub active) = true, want false")
	}
}

func TestHasNextHasPrevious_DelegateToCanPlay(t *testing.T) {
	// Middle chapter is a preview on a paid, unowned item: only it is
	// playable, so neighbors see it and it sees nothing.
	in := Input{Chapters: chapters(false, true, false)}

	if !HasNext(in, 0) {
		t.Error("HasNext(0) = false, want true (chapter 1 is preview)")
	}
	if HasNext(in, 1) {
		t.Error("HasNext(1) = true, want false (chapter 2 paid)")
	}
	if HasNext(in, 2) {
		t.Error("HasNext(last) = true, want false")
	}
	if !HasPrevious(in, 2) {
		t.Error("HasPrevious(2) = false, want true (chapter 1 is preview)")
	}
	if HasPrevious(in, 0) {
		t.Error("HasPrevious(0) = true, want false")
	}
}
