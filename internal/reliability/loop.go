// Package reliability monitors agent behavior to prevent loops, stalls
// and wasted cycles. It never trusts the reasoning engine's judgment
// about its own health: everything here works from observed action
// outcomes and wall-clock time.
package reliability

import (
	"encoding/json"
	"fmt"
	"strings"
)

const (
	// DefaultLoopThreshold is the run length of identical signatures
	// treated as an exact-repetition loop.
	DefaultLoopThreshold = 3

	// DefaultLoopWindow is the window checked for period-2 alternation.
	DefaultLoopWindow = 6

	// maxRecentSignatures bounds the retained signature history.
	maxRecentSignatures = 10
)

// Normalizer reduces a tool invocation to a comparable signature.
// Two invocations with the same signature count as "the same action"
// for loop detection.
type Normalizer func(tool string, args map[string]any) string

// DefaultNormalizer builds signatures from the tool name plus a
// canonical JSON encoding of the arguments (map keys sorted by
// encoding/json, string values trimmed of surrounding whitespace).
func DefaultNormalizer(tool string, args map[string]any) string {
	if len(args) == 0 {
		return tool + "()"
	}
	trimmed := make(map[string]any, len(args))
	for k, v := range args {
		if s, ok := v.(string); ok {
			trimmed[k] = strings.TrimSpace(s)
		} else {
			trimmed[k] = v
		}
	}
	raw, err := json.Marshal(trimmed)
	if err != nil {
		return fmt.Sprintf("%s(%v)", tool, args)
	}
	return tool + "(" + string(raw) + ")"
}

// LoopDetector inspects recent normalized action signatures for exact
// or alternating repetition.
type LoopDetector struct {
	recent    []string
	threshold int
	window    int
	normalize Normalizer
}

// LoopConfig holds loop detector settings. Zero values select the
// documented defaults.
type LoopConfig struct {
	Threshold int
	Window    int
	Normalize Normalizer
}

// NewLoopDetector creates a detector with the given configuration.
func NewLoopDetector(config LoopConfig) *LoopDetector {
	threshold := config.Threshold
	if threshold <= 0 {
		threshold = DefaultLoopThreshold
	}
	window := config.Window
	if window <= 0 {
		window = DefaultLoopWindow
	}
	normalize := config.Normalize
	if normalize == nil {
		normalize = DefaultNormalizer
	}
	return &LoopDetector{
		threshold: threshold,
		window:    window,
		normalize: normalize,
	}
}

// Record appends the signature of a completed action.
func (d *LoopDetector) Record(tool string, args map[string]any) {
	d.recent = append(d.recent, d.normalize(tool, args))
	if len(d.recent) > maxRecentSignatures {
		d.recent = d.recent[len(d.recent)-maxRecentSignatures:]
	}
}

// Reset clears the signature history. Used at session start so one
// session's tail cannot trip the next session's detector.
func (d *LoopDetector) Reset() {
	d.recent = nil
}

// Detect reports whether the recent history shows a stuck pattern and
// describes it. Exact repetition: the last threshold signatures are
// identical. Alternation: the last window signatures form an A,B,A,B
// pattern with exactly two distinct values.
func (d *LoopDetector) Detect() (string, bool) {
	if reason, ok := d.detectRepetition(); ok {
		return reason, true
	}
	return d.detectAlternation()
}

func (d *LoopDetector) detectRepetition() (string, bool) {
	if len(d.recent) < d.threshold {
		return "", false
	}
	tail := d.recent[len(d.recent)-d.threshold:]
	for _, sig := range tail[1:] {
		if sig != tail[0] {
			return "", false
		}
	}
	return fmt.Sprintf("repeating: %s", tail[0]), true
}

func (d *LoopDetector) detectAlternation() (string, bool) {
	if len(d.recent) < d.window {
		return "", false
	}
	tail := d.recent[len(d.recent)-d.window:]
	a, b := tail[0], tail[1]
	if a == b {
		return "", false
	}
	for i, sig := range tail {
		want := a
		if i%2 == 1 {
			want = b
		}
		if sig != want {
			return "", false
		}
	}
	return fmt.Sprintf("alternating: %s <-> %s", a, b), true
}
