package state

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// MemoryKind identifies one of the four fixed memory documents.
type MemoryKind string

const (
	MemoryGoals     MemoryKind = "goals"
	MemoryProgress  MemoryKind = "progress"
	MemoryDecisions MemoryKind = "decisions"
	MemoryBlockers  MemoryKind = "blockers"
)

// MemoryKinds lists the fixed document identities in presentation order.
var MemoryKinds = []MemoryKind{MemoryGoals, MemoryProgress, MemoryDecisions, MemoryBlockers}

// Valid reports whether k names one of the fixed memory documents.
func (k MemoryKind) Valid() bool {
	switch k {
	case MemoryGoals, MemoryProgress, MemoryDecisions, MemoryBlockers:
		return true
	}
	return false
}

// Markers delimiting the generated section of the goals document.
// Content outside the markers is operator-owned and preserved when a
// new goal is set.
const (
	GeneratedStartMarker = "<!-- emergent:generated:start -->"
	GeneratedEndMarker   = "<!-- emergent:generated:end -->"
)

func (s *Store) memoryPath(kind MemoryKind) string {
	return filepath.Join(s.memoryDir, string(kind)+".md")
}

// ReadMemory returns the raw text of one memory document. A missing
// document reads as empty without error.
func (s *Store) ReadMemory(kind MemoryKind) (string, error) {
	if !kind.Valid() {
		return "", fmt.Errorf("unknown memory document: %s", kind)
	}
	raw, err := os.ReadFile(s.memoryPath(kind))
	if err != nil {
		if os.IsNotExist(err) {
			return "", nil
		}
		return "", fmt.Errorf("failed to read %s memory: %w", kind, err)
	}
	return string(raw), nil
}

// WriteMemory replaces the whole document with the given content.
func (s *Store) WriteMemory(kind MemoryKind, content string) error {
	if !kind.Valid() {
		return fmt.Errorf("unknown memory document: %s", kind)
	}
	return writeFileAtomic(s.memoryPath(kind), []byte(content))
}

// AppendMemory appends content to the document, separated by a blank
// line from any existing text.
func (s *Store) AppendMemory(kind MemoryKind, content string) error {
	existing, err := s.ReadMemory(kind)
	if err != nil {
		return err
	}
	if existing == "" {
		return s.WriteMemory(kind, content)
	}
	joined := strings.TrimRight(existing, "\n") + "\n\n" + content
	return s.WriteMemory(kind, joined)
}

// LoadMemory reads all four memory documents. Missing documents appear
// as empty strings.
func (s *Store) LoadMemory() (map[MemoryKind]string, error) {
	memory := make(map[MemoryKind]string, len(MemoryKinds))
	for _, kind := range MemoryKinds {
		content, err := s.ReadMemory(kind)
		if err != nil {
			return nil, err
		}
		memory[kind] = content
	}
	return memory, nil
}

// SetGoal seeds the goals document with a generated section for the
// given goal. Operator content outside the generated markers survives
// goal changes.
func (s *Store) SetGoal(goal string) error {
	existing, err := s.ReadMemory(MemoryGoals)
	if err != nil {
		return err
	}

	generated := fmt.Sprintf(`%s
# Goals

## Primary Objective
%s

## Success Criteria
- [ ] Goal clearly understood
- [ ] Approach identified
- [ ] Implementation complete
- [ ] Verification done

## Constraints
- Work within the project directory
- Use available tools
- Document decisions
%s`, GeneratedStartMarker, goal, GeneratedEndMarker)

	content := generated
	if custom := customContent(existing); custom != "" {
		content = generated + "\n\n" + custom
	}
	return s.WriteMemory(MemoryGoals, content+"\n")
}

// customContent extracts everything outside the generated markers.
// Content without markers is treated as entirely custom.
func customContent(content string) string {
	startIdx := strings.Index(content, GeneratedStartMarker)
	endIdx := strings.Index(content, GeneratedEndMarker)
	if startIdx == -1 || endIdx == -1 {
		return strings.TrimSpace(content)
	}
	before := content[:startIdx]
	after := content[endIdx+len(GeneratedEndMarker):]
	return strings.TrimSpace(strings.TrimSpace(before) + "\n" + strings.TrimSpace(after))
}
