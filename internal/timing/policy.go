// Package timing holds the static table of durations, thresholds and retry
// limits shared by the playback components. Pure data, no behavior.
package timing

import "time"

// Policy groups every tunable the playback core reads.
type Policy struct {
	// ToggleDebounce is the window within which rapid play/pause taps are
	// coalesced to a single toggle.
	ToggleDebounce time.Duration

	// OperationTimeout bounds a single queued operation against the audio
	// engine. Long enough to tolerate slow networks.
	OperationTimeout time.Duration

	// BreakerThreshold is the number of consecutive operation failures
	// after which the circuit breaker opens.
	BreakerThreshold int

	// BreakerResetTimeout is the cooldown before the open breaker lets one
	// trial operation through.
	BreakerResetTimeout time.Duration

	// ChapterCompletionThreshold is the position/duration fraction at which
	// a chapter counts as complete (trailing silence tolerance).
	ChapterCompletionThreshold float64

	// BookCompletionThreshold is the album-relative fraction at or above
	// which progress is reported as exactly 100%.
	BookCompletionThreshold float64

	// ForegroundGuardReset and BackgroundGuardReset are the completion
	// guard expiry delays per event source. Background completion signals
	// lag actual audio end, so their guard lives longer.
	ForegroundGuardReset time.Duration
	BackgroundGuardReset time.Duration

	// ProgressInterval is the snapshot cadence while playing.
	ProgressInterval time.Duration

	// ProgressMaxRetries and ProgressRetryDelay bound progress writes.
	// After the last retry the write is dropped silently.
	ProgressMaxRetries int
	ProgressRetryDelay time.Duration

	// SleepTick is the sleep timer countdown granularity.
	SleepTick time.Duration
}

// Default returns the standard policy table.
func Default() Policy {
	return Policy{
		ToggleDebounce:             300 * time.Millisecond,
		OperationTimeout:           30 * time.Second,
		BreakerThreshold:           3,
		BreakerResetTimeout:        15 * time.Second,
		ChapterCompletionThreshold: 0.95,
		BookCompletionThreshold:    0.98,
		ForegroundGuardReset:       2 * time.Second,
		BackgroundGuardReset:       10 * time.Second,
		ProgressInterval:           30 * time.Second,
		ProgressMaxRetries:         3,
		ProgressRetryDelay:         2 * time.Second,
		SleepTick:                  time.Second,
	}
}

// Normalized returns the policy with zero or invalid fields replaced by
// their defaults, so a partially-filled config never disables a guard.
func (p Policy) Normalized() Policy {
	def := Default()
	if p.ToggleDebounce <= 0 {
		p.ToggleDebounce = def.ToggleDebounce
	}
	if p.OperationTimeout <= 0 {
		p.OperationTimeout = def.OperationTimeout
	}
	if p.BreakerThreshold <= 0 {
		p.BreakerThreshold = def.BreakerThreshold
	}
	if p.BreakerResetTimeout <= 0 {
		p.BreakerResetTimeout = def.BreakerResetTimeout
	}
	if p.ChapterCompletionThreshold <= 0 || p.ChapterCompletionThreshold >= 1 {
		p.ChapterCompletionThreshold = def.ChapterCompletionThreshold
	}
	if p.BookCompletionThreshold <= 0 || p.BookCompletionThreshold > 1 {
		p.BookCompletionThreshold = def.BookCompletionThreshold
	}
	if p.ForegroundGuardReset <= 0 {
		p.ForegroundGuardReset = def.ForegroundGuardReset
	}
	if p.BackgroundGuardReset <= 0 {
		p.BackgroundGuardReset = def.BackgroundGuardReset
	}
	if p.ProgressInterval <= 0 {
		p.ProgressInterval = def.ProgressInterval
	}
	if p.ProgressMaxRetries <= 0 {
		p.ProgressMaxRetries = def.ProgressMaxRetries
	}
	if p.ProgressRetryDelay <= 0 {
		p.ProgressRetryDelay = def.ProgressRetryDelay
	}
	if p.SleepTick <= 0 {
		p.SleepTick = def.SleepTick
	}
	return p
}
