package playback

import (
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/timing"
)

// CompletionSource identifies where a completion signal originated.
// Background (lock-screen) signals lag actual audio end, so their guard
// lives longer than the foreground one.
type CompletionSource int

const (
	SourceForeground CompletionSource = iota
	SourceBackground
)

// String returns the source name.
func (s CompletionSource) String() string {
	switch s {
	case SourceForeground:
		return "foreground"
	case SourceBackground:
		return "background"
	default:
		return "unknown"
	}
}

type chapterPhase int

const (
	phasePlaying chapterPhase = iota
	phaseNearEnd
	phaseCompleted
)

// completionGuard is a latch with an expiry timestamp, checked on each
// event rather than cleared by a scheduled callback, so its behavior does
// not depend on timer scheduling under load.
type completionGuard struct {
	chapter   int
	expiresAt time.Time
}

func (g completionGuard) active(chapter int, now time.Time) bool {
	return g.chapter == chapter && now.Before(g.expiresAt)
}

// Detector decides when the loaded chapter is complete and makes sure the
// completion is processed exactly once, no matter how many signals arrive
// or from which source.
type Detector struct {
	policy timing.Policy
	now    func() time.Time

	chapter int
	phase   chapterPhase
	guards  [2]completionGuard
}

// NewDetector creates a detector for the given policy.
func NewDetector(policy timing.Policy) *Detector {
	d := &Detector{policy: policy.Normalized(), now: time.Now, chapter: -1}
	d.guards[SourceForeground].chapter = -1
	d.guards[SourceBackground].chapter = -1
	return d
}

// ResetFor rearms the detector for a newly loaded chapter. Guards are left
// in place: a stale completion signal for the previous chapter arriving
// mid-advance must still be recognized as a duplicate.
func (d *Detector) ResetFor(chapter int) {
	d.chapter = chapter
	d.phase = phasePlaying
}

// NearEnd reports whether the current chapter crossed the completion
// threshold (trailing-silence tolerance).
func (d *Detector) NearEnd() bool {
	return d.phase >= phaseNearEnd
}

// Observe feeds one progress signal into the state machine and reports
// whether it is the single completion trigger for this chapter. A chapter
// completes when the engine reports end of media or position reaches
// duration, whichever comes first; every later signal for the same chapter
// is a duplicate while either source guard is live.
func (d *Detector) Observe(chapter int, pos, dur time.Duration, endOfMedia bool, src CompletionSource) bool {
	now := d.now()
	if chapter != d.chapter {
		d.ResetFor(chapter)
	}

	if d.phase < phaseNearEnd && dur > 0 && float64(pos)/float64(dur) >= d.policy.ChapterCompletionThreshold {
		d.phase = phaseNearEnd
	}

	completed := endOfMedia || (dur > 0 && pos >= dur)
	if !completed {
		return false
	}

	if d.guards[SourceForeground].active(chapter, now) || d.guards[SourceBackground].active(chapter, now) {
		// Duplicate: dropped silently, not an error.
		return false
	}

	d.phase = phaseCompleted
	d.guards[SourceForeground] = completionGuard{chapter: chapter, expiresAt: now.Add(d.policy.ForegroundGuardReset)}
	d.guards[SourceBackground] = completionGuard{chapter: chapter, expiresAt: now.Add(d.policy.BackgroundGuardReset)}
	return true
}
