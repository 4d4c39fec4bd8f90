package reliability

import (
	"testing"
	"time"
)

func TestScheduler_Cadence(t *testing.T) {
	s := NewScheduler(3)
	for i := 0; i < 2; i++ {
		s.Record()
		if s.Due() {
			t.Fatalf("reflection due after %d actions with threshold 3", i+1)
		}
	}
	s.Record()
	if !s.Due() {
		t.Fatal("reflection should be due after 3 actions")
	}
	s.Reset()
	if s.Due() {
		t.Error("reflection should not be due after reset")
	}
	if s.Count() != 0 {
		t.Errorf("expected counter 0 after reset, got %d", s.Count())
	}
}

func TestScheduler_Force(t *testing.T) {
	s := NewScheduler(10)
	s.Force()
	if !s.Due() {
		t.Error("forced reflection should be due immediately")
	}
	s.Reset()
	if s.Due() {
		t.Error("reset should clear the forced flag")
	}
}

func TestScheduler_Sync(t *testing.T) {
	s := NewScheduler(10)
	s.Sync(9)
	if s.Due() {
		t.Error("9 of 10 should not be due")
	}
	s.Record()
	if !s.Due() {
		t.Error("synced counter plus one action should reach the threshold")
	}
}

func TestTracker_Classification(t *testing.T) {
	cases := []struct {
		name       string
		ev         Event
		meaningful bool
	}{
		{"file write", Event{Tool: "write_file", Success: true, Mutating: true, Data: map[string]any{"path": "a.go", "created": true}}, true},
		{"command success", Event{Tool: "run_command", Success: true, Mutating: true, Data: map[string]any{"command": "make build"}}, true},
		{"read-only inspection", Event{Tool: "read_file", Success: true, Mutating: false}, false},
		{"failed write", Event{Tool: "write_file", Success: false, Mutating: true}, false},
		{"failed command", Event{Tool: "run_command", Success: false, Mutating: true}, false},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			tr := NewTracker()
			if got := tr.Record(tc.ev); got != tc.meaningful {
				t.Errorf("Record(%s) = %v, want %v", tc.name, got, tc.meaningful)
			}
		})
	}
}

func TestTracker_Counters(t *testing.T) {
	tr := NewTracker()
	tr.Record(Event{Tool: "write_file", Success: true, Mutating: true, Data: map[string]any{"path": "a.go", "created": true}})
	tr.Record(Event{Tool: "write_file", Success: true, Mutating: true, Data: map[string]any{"path": "b.go", "created": false}})
	tr.Record(Event{Tool: "run_command", Success: true, Mutating: true, Data: map[string]any{"command": "pytest -q"}})
	tr.Record(Event{Tool: "read_file", Success: false})

	got := tr.Summarize()
	if got.FilesCreated != 1 || got.FilesModified != 1 {
		t.Errorf("file counters wrong: %+v", got)
	}
	if got.TestsPassed != 1 {
		t.Errorf("expected 1 test pass, got %d", got.TestsPassed)
	}
	if got.Errors != 1 {
		t.Errorf("expected 1 error, got %d", got.Errors)
	}
	if got.MeaningfulEvents != 3 {
		t.Errorf("expected 3 meaningful events, got %d", got.MeaningfulEvents)
	}
}

func TestWatchdog_FiresOncePerEpisode(t *testing.T) {
	w := NewWatchdog(time.Minute)

	if w.Check(30 * time.Second) {
		t.Fatal("watchdog fired before the threshold")
	}
	if !w.Check(2 * time.Minute) {
		t.Fatal("watchdog should fire on first crossing")
	}
	if w.Check(3 * time.Minute) {
		t.Fatal("watchdog must not fire again within the same episode")
	}

	// Progress ends the episode; the next stall fires again.
	if w.Check(10 * time.Second) {
		t.Fatal("watchdog fired while healthy")
	}
	if !w.Check(90 * time.Second) {
		t.Fatal("watchdog should fire on a new episode")
	}
}

func TestMonitor_LoopForcesReflectionBeforeRestart(t *testing.T) {
	m := NewMonitor(Config{
		Loop:         LoopConfig{Threshold: 3},
		StallTimeout: time.Hour,
	})
	args := map[string]any{"file_path": "a.go"}
	for i := 0; i < 3; i++ {
		m.RecordAction("read_file", args, Event{Tool: "read_file", Success: true}, 100)
	}

	if _, stuck := m.StuckReason(); !stuck {
		t.Fatal("expected stuck pattern")
	}
	if m.ShouldRestart() != nil {
		t.Fatal("restart must not be requested before reflection was tried")
	}

	m.RecordReflection()

	// Pattern persists after reflection
	m.RecordAction("read_file", args, Event{Tool: "read_file", Success: true}, 100)
	signal := m.ShouldRestart()
	if signal == nil {
		t.Fatal("expected restart for pattern surviving reflection")
	}
	if signal.Reason != ReasonLoopDetected {
		t.Errorf("expected reason %q, got %q", ReasonLoopDetected, signal.Reason)
	}
}

func TestMonitor_ProgressClearsStuckEpisode(t *testing.T) {
	m := NewMonitor(Config{
		Loop:         LoopConfig{Threshold: 3},
		StallTimeout: time.Hour,
	})
	args := map[string]any{"file_path": "a.go"}
	for i := 0; i < 3; i++ {
		m.RecordAction("read_file", args, Event{Tool: "read_file", Success: true}, 0)
	}
	m.RecordReflection()

	// Meaningful progress breaks the pattern and the episode.
	m.RecordAction("write_file", map[string]any{"file_path": "b.go"},
		Event{Tool: "write_file", Success: true, Mutating: true, Data: map[string]any{"path": "b.go", "created": true}}, 0)

	if m.ShouldRestart() != nil {
		t.Error("no restart expected after the pattern was broken")
	}
	if m.ReflectedWhileStuck() {
		t.Error("stuck episode should be cleared by progress")
	}
}

func TestMonitor_TokenWaste(t *testing.T) {
	m := NewMonitor(Config{
		Loop:         LoopConfig{Threshold: 100},
		StallTimeout: time.Hour,
		TokenBudget:  1000,
	})
	m.RecordAction("read_file", map[string]any{"file_path": "a.go"},
		Event{Tool: "read_file", Success: true}, 1500)

	signal := m.ShouldRestart()
	if signal == nil || signal.Reason != ReasonTokenWaste {
		t.Fatalf("expected token waste restart, got %+v", signal)
	}

	// Meaningful progress resets the token counter.
	m.RecordAction("write_file", map[string]any{"file_path": "b.go"},
		Event{Tool: "write_file", Success: true, Mutating: true, Data: map[string]any{"path": "b.go", "created": true}}, 100)
	if m.TokensSinceProgress() != 0 {
		t.Errorf("expected token counter reset, got %d", m.TokensSinceProgress())
	}
	if m.ShouldRestart() != nil {
		t.Error("no restart expected after progress")
	}
}
