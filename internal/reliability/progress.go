package reliability

import (
	"strings"
	"time"
)

// Event describes one completed action outcome for progress
// classification.
type Event struct {
	Tool    string
	Success bool
	// Mutating marks tools whose success has an observable effect on
	// the workspace (artifact written, command executed). Read-only
	// inspection tools are non-mutating.
	Mutating bool
	// Data is the structured payload of the tool result; the tracker
	// peeks at well-known keys (path, created, command).
	Data map[string]any
}

// Tracker classifies action outcomes as meaningful or not and tracks
// the time of the most recent meaningful event.
type Tracker struct {
	lastProgress  time.Time
	filesCreated  map[string]bool
	filesModified map[string]bool
	commandsRun   int
	testsPassed   int
	errors        int
	meaningful    int
	now           func() time.Time
}

// NewTracker creates a progress tracker. The stall clock starts at
// construction time.
func NewTracker() *Tracker {
	t := &Tracker{
		filesCreated:  make(map[string]bool),
		filesModified: make(map[string]bool),
		now:           time.Now,
	}
	t.lastProgress = t.now()
	return t
}

// Record classifies the event and updates the progress clock. Returns
// true if the outcome counts as meaningful progress: an artifact was
// created or modified, a test passed, or a command succeeded with an
// observable effect. Failed attempts and read-only inspection are
// never meaningful.
func (t *Tracker) Record(ev Event) bool {
	if !ev.Success {
		t.errors++
		return false
	}
	if !ev.Mutating {
		return false
	}

	switch ev.Tool {
	case "write_file":
		path, _ := ev.Data["path"].(string)
		if created, _ := ev.Data["created"].(bool); created {
			t.filesCreated[path] = true
		} else {
			t.filesModified[path] = true
		}
	case "run_command":
		t.commandsRun++
		if command, _ := ev.Data["command"].(string); isTestCommand(command) {
			t.testsPassed++
		}
	}

	t.meaningful++
	t.lastProgress = t.now()
	return true
}

// SinceProgress returns the elapsed time since the last meaningful
// event.
func (t *Tracker) SinceProgress() time.Duration {
	return t.now().Sub(t.lastProgress)
}

// Summary holds the aggregate progress counters.
type Summary struct {
	FilesCreated     int
	FilesModified    int
	CommandsRun      int
	TestsPassed      int
	Errors           int
	MeaningfulEvents int
}

// Summarize returns the aggregate progress counters.
func (t *Tracker) Summarize() Summary {
	return Summary{
		FilesCreated:     len(t.filesCreated),
		FilesModified:    len(t.filesModified),
		CommandsRun:      t.commandsRun,
		TestsPassed:      t.testsPassed,
		Errors:           t.errors,
		MeaningfulEvents: t.meaningful,
	}
}

func isTestCommand(command string) bool {
	lower := strings.ToLower(command)
	return strings.Contains(lower, "test") || strings.Contains(lower, "pytest")
}
