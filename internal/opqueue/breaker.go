package opqueue

import (
	"time"

	"github.com/soundleafapp/soundleaf-playback/internal/timing"
)

// breakerState tracks consecutive failures against the engine. Owned by
// the queue worker; never exposed for external mutation.
type breakerState struct {
	failures int
	open     bool
	openedAt time.Time
	trialing bool
}

// allow reports whether an operation may proceed. After the reset timeout
// elapses on an open breaker, exactly one trial operation is let through;
// the queue worker serializes operations, so no second trial can start
// before the first resolves.
func (b *breakerState) allow(policy timing.Policy, now time.Time) (allowed, trial bool) {
	if !b.open {
		return true, false
	}
	if now.Sub(b.openedAt) >= policy.BreakerResetTimeout {
		b.trialing = true
		return true, true
	}
	return false, false
}

func (b *breakerState) recordSuccess() {
	b.failures = 0
	b.open = false
	b.trialing = false
}

func (b *breakerState) recordFailure(policy timing.Policy, now time.Time) {
	if b.trialing {
		// Failed trial: reopen and restart the cooldown.
		b.trialing = false
		b.openedAt = now
		return
	}
	b.failures++
	if b.failures >= policy.BreakerThreshold && !b.open {
		b.open = true
		b.openedAt = now
	}
}
