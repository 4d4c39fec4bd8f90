package loop

import (
	"fmt"
	"strings"

	"github.com/emergentdev/emergent/internal/state"
)

// systemPrompt is rebuilt fresh every tick so trimming the transcript
// never loses the goal, the memory excerpts, or the rules of the game.
func systemPrompt(st *state.AgentState, memory map[state.MemoryKind]string, toolNames []string) string {
	var b strings.Builder

	b.WriteString(`You are an autonomous software agent working toward a long-running goal.
You work in short sessions; durable state and memory documents carry your
progress across sessions, so always bring them up to date as you work.

Rules:
- Take exactly one tool action per turn.
- Prefer small verifiable steps: write, then run, then check.
- Record important decisions in the decisions memory document and
  blockers in the blockers document via update_memory.
- When the goal is fully achieved and verified, call complete_goal with
  a summary. Do not call it early.
`)

	fmt.Fprintf(&b, "\nAvailable tools: %s\n", strings.Join(toolNames, ", "))
	b.WriteString("\n# Working context\n")
	b.WriteString(contextSummary(st, memory))

	return b.String()
}

// reflectionPrompt interrupts the normal cadence and asks for a
// self-review. When a stuck pattern triggered it, the pattern is named
// so the review addresses it directly.
func reflectionPrompt(stuckReason string) string {
	var b strings.Builder
	b.WriteString(`Pause and reflect before your next action.

Review your recent actions and memory documents:
1. Is your current approach still moving toward the goal?
2. Update the progress memory document with what has been accomplished.
3. Record any new blockers or abandoned approaches.

Then take your next step, or adjust course if the review says to.`)

	if stuckReason != "" {
		fmt.Fprintf(&b, "\n\nWarning: you appear to be stuck (%s). Your next action must be different from the repeating pattern.", stuckReason)
	}
	return b.String()
}
