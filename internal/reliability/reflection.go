package reliability

// DefaultReflectionThreshold is how many actions may pass before a
// forced self-review. Lower it when inference is cheap.
const DefaultReflectionThreshold = 10

// Scheduler counts actions since the last reflection and signals when
// a forced self-review is due.
type Scheduler struct {
	threshold int
	count     int
	forced    bool
}

// NewScheduler creates a reflection scheduler. A non-positive
// threshold selects the default.
func NewScheduler(threshold int) *Scheduler {
	if threshold <= 0 {
		threshold = DefaultReflectionThreshold
	}
	return &Scheduler{threshold: threshold}
}

// Record counts one non-reflective action.
func (s *Scheduler) Record() {
	s.count++
}

// Force marks reflection as due regardless of the counter, used when
// the loop detector signals stuck.
func (s *Scheduler) Force() {
	s.forced = true
}

// Due reports whether the next decide step must be a reflection.
func (s *Scheduler) Due() bool {
	return s.forced || s.count >= s.threshold
}

// Reset clears the counter after a reflection step, regardless of
// whether that step itself succeeded.
func (s *Scheduler) Reset() {
	s.count = 0
	s.forced = false
}

// Sync aligns the counter with a persisted actions-since-reflection
// value, so a restarted session resumes the cadence where it left off.
func (s *Scheduler) Sync(count int) {
	s.count = count
	s.forced = false
}

// Count returns the current actions-since-reflection counter.
func (s *Scheduler) Count() int {
	return s.count
}
