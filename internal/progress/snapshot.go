// Package progress records listening position durably so playback can
// resume across sessions and devices. Writes are best-effort with bounded
// retries; a failed write never stalls or errors playback.
package progress

import (
	"context"
	"time"

	"github.com/samber/lo"

	"github.com/soundleafapp/soundleaf-playback/internal/media"
	"github.com/soundleafapp/soundleaf-playback/internal/timing"
)

// Snapshot is one durable progress record, keyed by (user, item).
// Writing the same snapshot twice leaves stored state unchanged.
type Snapshot struct {
	UserID       string
	ItemID       string
	ChapterIndex int
	Position     time.Duration
	Percent      float64
	DeviceID     string
	UpdatedAt    time.Time
}

// Store is the durable backend: the remote row store in production, the
// local sqlite cache as fallback, and fakes in tests.
type Store interface {
	ReadProgress(ctx context.Context, userID, itemID string) (*Snapshot, error)
	WriteProgress(ctx context.Context, snap Snapshot) error
}

// Percent computes album-relative completion. Fully elapsed prior chapters
// count whole; the current chapter counts its capped position, promoted to
// fully elapsed once it crosses the chapter completion threshold;
// unreached chapters count zero. A result at or above the album
// near-completion threshold reports exactly 1.0 so trailing silence never
// leaves an album at 99% forever.
func Percent(chapters []media.Chapter, chapterIndex int, position time.Duration, policy timing.Policy) float64 {
	policy = policy.Normalized()
	total := lo.SumBy(chapters, func(c media.Chapter) time.Duration { return c.Duration })
	if total == 0 {
		return 0
	}

	var elapsed time.Duration
	for i, c := range chapters {
		switch {
		case i < chapterIndex:
			elapsed += c.Duration
		case i == chapterIndex:
			pos := min(position, c.Duration)
			if c.Duration > 0 && float64(pos)/float64(c.Duration) >= policy.ChapterCompletionThreshold {
				pos = c.Duration
			}
			elapsed += pos
		}
	}

	frac := float64(elapsed) / float64(total)
	if frac >= policy.BookCompletionThreshold {
		return 1.0
	}
	return frac
}
