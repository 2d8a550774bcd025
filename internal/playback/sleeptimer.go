package playback

import "time"

// sleepTimer implements the countdown and end-of-chapter sleep modes. It
// never touches the engine itself; the service enqueues the pause when a
// fire is reported.
type sleepTimer struct {
	mode      SleepMode
	remaining time.Duration
}

func (t *sleepTimer) set(mode SleepMode, d time.Duration) {
	t.mode = mode
	if mode == SleepTimed {
		t.remaining = d
	} else {
		t.remaining = 0
	}
}

// cancel turns the timer off without issuing any pending pause.
func (t *sleepTimer) cancel() {
	t.mode = SleepOff
	t.remaining = 0
}

// tick advances a Timed countdown and reports whether it fired. A fired
// timer transitions to Off.
func (t *sleepTimer) tick(elapsed time.Duration) bool {
	if t.mode != SleepTimed {
		return false
	}
	t.remaining -= elapsed
	if t.remaining > 0 {
		return false
	}
	t.cancel()
	return true
}

// onChapterComplete reports whether EndOfChapter mode should pause now.
// Fires only for the chapter that was current when completion happened,
// and transitions to Off.
func (t *sleepTimer) onChapterComplete() bool {
	if t.mode != SleepEndOfChapter {
		return false
	}
	t.cancel()
	return true
}

func (t *sleepTimer) state() SleepState {
	return SleepState{Mode: t.mode, Remaining: t.remaining}
}
