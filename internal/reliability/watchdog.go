package reliability

import "time"

// DefaultStallTimeout is the window without meaningful progress after
// which the watchdog declares a stall.
const DefaultStallTimeout = 30 * time.Minute

// Watchdog compares elapsed-since-progress against the stall
// threshold. It is polled cooperatively each tick; there is no
// background timer. Within one continuous stall episode the signal
// fires exactly once.
type Watchdog struct {
	timeout time.Duration
	fired   bool
}

// NewWatchdog creates a watchdog. A non-positive timeout selects the
// default.
func NewWatchdog(timeout time.Duration) *Watchdog {
	if timeout <= 0 {
		timeout = DefaultStallTimeout
	}
	return &Watchdog{timeout: timeout}
}

// Check evaluates the stall condition for the given elapsed time since
// the last meaningful event. It returns true only on the first tick of
// a stall episode; subsequent ticks within the same episode return
// false. Progress ends the episode and re-arms the watchdog.
func (w *Watchdog) Check(sinceProgress time.Duration) bool {
	if sinceProgress <= w.timeout {
		w.fired = false
		return false
	}
	if w.fired {
		return false
	}
	w.fired = true
	return true
}

// Stalled reports whether the stall condition currently holds,
// independent of the once-per-episode latch.
func (w *Watchdog) Stalled(sinceProgress time.Duration) bool {
	return sinceProgress > w.timeout
}
