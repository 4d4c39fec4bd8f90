package loop

import (
	"fmt"
	"strings"

	"github.com/emergentdev/emergent/internal/state"
)

// Bounds on the decide context. Memory documents can grow without
// limit on disk; only a bounded excerpt travels to the engine.
const (
	memoryExcerptLimit = 500
	recentActionsShown = 5
)

// contextSummary renders the durable state and memory into the bounded
// working-context block of the system prompt.
func contextSummary(st *state.AgentState, memory map[state.MemoryKind]string) string {
	var b strings.Builder

	fmt.Fprintf(&b, "Goal: %s\n", st.Goal)
	fmt.Fprintf(&b, "Working directory: %s\n", st.Position)
	fmt.Fprintf(&b, "Total actions so far: %d\n", st.TotalActions)
	fmt.Fprintf(&b, "Actions since last reflection: %d\n", st.ActionsSinceReflection)

	if len(st.FilesInContext) > 0 {
		fmt.Fprintf(&b, "Files in context: %s\n", strings.Join(st.FilesInContext, ", "))
	}

	if len(st.RecentActions) > 0 {
		b.WriteString("\nRecent actions:\n")
		start := len(st.RecentActions) - recentActionsShown
		if start < 0 {
			start = 0
		}
		for _, rec := range st.RecentActions[start:] {
			status := "ok"
			if !rec.Success {
				status = "failed"
			}
			fmt.Fprintf(&b, "  %d. %s (%s): %s\n", rec.Seq, rec.Tool, status, excerpt(rec.Summary, 120))
		}
	}

	for _, kind := range state.MemoryKinds {
		content := strings.TrimSpace(memory[kind])
		if content == "" {
			continue
		}
		fmt.Fprintf(&b, "\n## Memory: %s\n%s\n", kind, excerpt(content, memoryExcerptLimit))
	}

	return b.String()
}

// excerpt truncates s to at most limit runes, marking the cut.
func excerpt(s string, limit int) string {
	runes := []rune(s)
	if len(runes) <= limit {
		return s
	}
	return string(runes[:limit]) + "\n... (truncated)"
}
