package reliability

import (
	"fmt"
	"time"
)

// DefaultTokenBudget is how many engine tokens may be consumed without
// meaningful progress before a restart is requested.
const DefaultTokenBudget = 100000

// Restart reasons surfaced to the supervisor.
const (
	ReasonLoopDetected    = "loop_detected"
	ReasonWatchdogTimeout = "watchdog_timeout"
	ReasonTokenWaste      = "token_waste"
)

// RestartSignal is a supervisory signal asking for a session restart.
// It is not an error: restarting is the recovery mechanism.
type RestartSignal struct {
	Reason  string
	Details string
}

// Config holds monitor settings. Zero values select the documented
// defaults.
type Config struct {
	Loop                LoopConfig
	ReflectionThreshold int
	StallTimeout        time.Duration
	TokenBudget         int
}

// Monitor composes the loop detector, reflection scheduler, progress
// tracker and watchdog into the single health view the action loop and
// supervisor consult each tick.
type Monitor struct {
	Loops      *LoopDetector
	Reflection *Scheduler
	Progress   *Tracker
	Watchdog   *Watchdog

	tokenBudget         int
	tokensSinceProgress int

	// A stuck pattern forces reflection first; only a pattern that
	// survives that reflection justifies a restart.
	reflectedWhileStuck bool
}

// NewMonitor creates a monitor with the given configuration.
func NewMonitor(config Config) *Monitor {
	tokenBudget := config.TokenBudget
	if tokenBudget <= 0 {
		tokenBudget = DefaultTokenBudget
	}
	return &Monitor{
		Loops:       NewLoopDetector(config.Loop),
		Reflection:  NewScheduler(config.ReflectionThreshold),
		Progress:    NewTracker(),
		Watchdog:    NewWatchdog(config.StallTimeout),
		tokenBudget: tokenBudget,
	}
}

// RecordAction records one completed action: its signature for loop
// detection, its outcome for progress classification, and the tokens
// the decide call consumed. Returns true if the outcome was meaningful.
func (m *Monitor) RecordAction(tool string, args map[string]any, ev Event, tokens int) bool {
	m.Loops.Record(tool, args)
	m.Reflection.Record()
	m.tokensSinceProgress += tokens

	meaningful := m.Progress.Record(ev)
	if meaningful {
		m.tokensSinceProgress = 0
		m.reflectedWhileStuck = false
	}
	return meaningful
}

// RecordReflection marks that a reflection step ran. If a stuck
// pattern was active, a recurrence after this point becomes a restart
// reason instead of another reflection.
func (m *Monitor) RecordReflection() {
	if _, stuck := m.Loops.Detect(); stuck {
		m.reflectedWhileStuck = true
	}
	m.Reflection.Reset()
}

// StuckReason returns the active stuck pattern, if any.
func (m *Monitor) StuckReason() (string, bool) {
	return m.Loops.Detect()
}

// ReflectedWhileStuck reports whether a reflection already ran against
// the current stuck episode.
func (m *Monitor) ReflectedWhileStuck() bool {
	return m.reflectedWhileStuck
}

// ShouldRestart checks all restart conditions and returns a signal if
// any holds. Loop patterns only request a restart once a reflection
// has already been tried against them.
func (m *Monitor) ShouldRestart() *RestartSignal {
	if reason, stuck := m.Loops.Detect(); stuck && m.reflectedWhileStuck {
		return &RestartSignal{
			Reason:  ReasonLoopDetected,
			Details: fmt.Sprintf("stuck pattern survived reflection (%s)", reason),
		}
	}

	since := m.Progress.SinceProgress()
	if m.Watchdog.Check(since) {
		return &RestartSignal{
			Reason:  ReasonWatchdogTimeout,
			Details: fmt.Sprintf("no meaningful progress for %s", since.Round(time.Second)),
		}
	}

	if m.tokensSinceProgress > m.tokenBudget {
		return &RestartSignal{
			Reason:  ReasonTokenWaste,
			Details: fmt.Sprintf("%d tokens consumed without progress", m.tokensSinceProgress),
		}
	}

	return nil
}

// TokensSinceProgress returns the tokens consumed since the last
// meaningful event.
func (m *Monitor) TokensSinceProgress() int {
	return m.tokensSinceProgress
}
