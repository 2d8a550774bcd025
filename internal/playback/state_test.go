package playback

import (
	"testing"
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/media"
)

func testItem(free bool, previews ...bool) *media.Item {
	chs := make([]media.Chapter, len(previews))
	for i, p := range previews {
		chs[i] = media.Chapter{ID: "ch", Index: i, Duration: 5 * time.Minute, IsPreview: p}
	}
	return &media.Item{ID: "bk_1", Title: "Test Book", IsFree: free, Chapters: chs}
}

func TestState_Phase(t *testing.T) {
	tests := []struct {
		name  string
		state State
		want  Phase
	}{
		{"empty", State{}, PhaseIdle},
		{"item paused", State{Item: testItem(false, false)}, PhasePaused},
		{"playing", State{Item: testItem(false, false), Playing: true}, PhasePlaying},
		{"buffering wins over playing", State{Item: testItem(false, false), Playing: true, Buffering: true}, PhaseBuffering},
		{"loading wins over buffering", State{Item: testItem(false, false), Loading: true, Buffering: true}, PhaseLoading},
		{"error wins over everything", State{Item: testItem(false, false), Playing: true, ErrorKind: ErrorNetwork}, PhaseError},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.state.Phase(); got != tt.want {
				t.Errorf("Phase() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestState_NormalizeErrorStopsPlayback(t *testing.T) {
	st := State{Item: testItem(false, false), Playing: true, Loading: true, ErrorKind: ErrorPlaybackFailed}
	st.normalize()

	if st.Playing {
		t.Error("Playing should be false when error is set")
	}
	if st.Loading {
		t.Error("Loading should be false when error is set")
	}
}

func TestState_NormalizeLoadingExcludesPlaying(t *testing.T) {
	st := State{Item: testItem(false, false), Playing: true, Loading: true, Buffering: true}
	st.normalize()

	if st.Playing || st.Buffering {
		t.Errorf("Playing=%v Buffering=%v, want both false while loading", st.Playing, st.Buffering)
	}
}

func TestState_NormalizeClampsPositionAndIndex(t *testing.T) {
	st := State{
		Item:         testItem(false, false, false),
		ChapterIndex: 7,
		Position:     10 * time.Minute,
		Duration:     5 * time.Minute,
	}
	st.normalize()

	if st.ChapterIndex != 0 {
		t.Errorf("ChapterIndex = %d, want reset to 0", st.ChapterIndex)
	}
	if st.Position != 5*time.Minute {
		t.Errorf("Position = %v, want clamped to duration", st.Position)
	}
}

func TestState_DerivedAccessors(t *testing.T) {
	st := State{}
	if st.HasAudio() || st.HasError() || st.IsPlaylistActive() {
		t.Error("empty state should have no audio, error, or playlist")
	}
	if st.CanPlayChapter(0) {
		t.Error("CanPlayChapter without item should be false")
	}

	st.Item = testItem(true, false, false)
	st.SubscriptionActive = true
	if !st.HasAudio() {
		t.Error("HasAudio = false, want true")
	}
	if !st.CanPlayChapter(1) {
		t.Error("CanPlayChapter(free item, active sub) = false, want true")
	}
	if !st.HasNextPlayableChapter() {
		t.Error("HasNextPlayableChapter = false, want true")
	}
	if st.HasPreviousPlayableChapter() {
		t.Error("HasPreviousPlayableChapter at index 0 = true, want false")
	}

	st.Playlist = &PlaylistCursor{QueueID: "q_1", ItemIDs: []string{"bk_1", "bk_2"}, Index: 0}
	if !st.IsPlaylistActive() {
		t.Error("IsPlaylistActive = false, want true")
	}
}

func TestState_CurrentChapter(t *testing.T) {
	st := State{}
	if st.CurrentChapter() != nil {
		t.Error("CurrentChapter without item should be nil")
	}

	st.Item = testItem(false, false, true)
	st.ChapterIndex = 1
	ch := st.CurrentChapter()
	if ch == nil || ch.Index != 1 {
		t.Errorf("CurrentChapter() = %v, want chapter 1", ch)
	}
}
