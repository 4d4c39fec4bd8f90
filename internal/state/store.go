package state

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// Store manages the persistent agent state record, the memory documents
// and the operational stats artifact for a workspace. All writes go
// through an atomic write-aside-then-rename so a crash mid-write never
// leaves a half-written record: the prior valid file stays readable
// until the replacement is fully committed.
type Store struct {
	workDir    string
	statePath  string
	statsPath  string
	memoryDir  string
	historyCap int
}

// NewStore creates a state store rooted at the given work directory.
func NewStore(workDir string, config Config) *Store {
	historyCap := config.HistoryCap
	if historyCap <= 0 {
		historyCap = DefaultHistoryCap
	}
	return &Store{
		workDir:    workDir,
		statePath:  filepath.Join(workDir, ".emergent", "state.json"),
		statsPath:  filepath.Join(workDir, ".emergent", "stats.json"),
		memoryDir:  filepath.Join(workDir, "memory"),
		historyCap: historyCap,
	}
}

// WorkDir returns the workspace root the store is bound to.
func (s *Store) WorkDir() string {
	return s.workDir
}

// HistoryCap returns the configured action history capacity.
func (s *Store) HistoryCap() int {
	return s.historyCap
}

// Load reads the current agent state. A missing or corrupt record never
// fails the load: fresh defaults are returned together with a recovery
// note describing what happened, so the caller can surface it as a
// blocker instead of crashing.
func (s *Store) Load() (*AgentState, string, error) {
	raw, err := os.ReadFile(s.statePath)
	if err != nil {
		if os.IsNotExist(err) {
			return NewAgentState(s.workDir), "", nil
		}
		return nil, "", fmt.Errorf("failed to read state file: %w", err)
	}

	var st AgentState
	if err := json.Unmarshal(raw, &st); err != nil {
		note := fmt.Sprintf("state file %s was unreadable (%v); started from fresh defaults", s.statePath, err)
		return NewAgentState(s.workDir), note, nil
	}
	if st.Version != StateVersion {
		note := fmt.Sprintf("state file %s has unsupported version %q; started from fresh defaults", s.statePath, st.Version)
		return NewAgentState(s.workDir), note, nil
	}

	if st.FilesInContext == nil {
		st.FilesInContext = []string{}
	}
	if st.RecentActions == nil {
		st.RecentActions = []ActionRecord{}
	}
	return &st, "", nil
}

// Save persists the agent state atomically.
func (s *Store) Save(st *AgentState) error {
	raw, err := json.MarshalIndent(st, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal state: %w", err)
	}
	return writeFileAtomic(s.statePath, raw)
}

// AppendAction pushes a record onto the bounded history, evicting the
// oldest entries beyond capacity, and bumps the action counters. The
// caller still owns persistence via Save.
func (s *Store) AppendAction(st *AgentState, rec ActionRecord) {
	rec.Seq = st.TotalActions + 1
	if rec.Timestamp.IsZero() {
		rec.Timestamp = time.Now().UTC()
	}
	st.RecentActions = append(st.RecentActions, rec)
	if len(st.RecentActions) > s.historyCap {
		st.RecentActions = st.RecentActions[len(st.RecentActions)-s.historyCap:]
	}
	st.TotalActions++
	st.ActionsSinceReflection++
}

// MarkReflection records that a reflection step occurred and resets the
// reflection counter.
func (s *Store) MarkReflection(st *AgentState) {
	now := time.Now().UTC()
	st.LastReflection = &now
	st.ActionsSinceReflection = 0
}

// Reset destroys everything the store persists: the state record, the
// stats artifact and all memory documents. The next run starts from
// fresh defaults with no carried-over memory.
func (s *Store) Reset() error {
	if err := os.Remove(s.statePath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove state file: %w", err)
	}
	if err := os.Remove(s.statsPath); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("failed to remove stats file: %w", err)
	}
	if err := os.RemoveAll(s.memoryDir); err != nil {
		return fmt.Errorf("failed to remove memory documents: %w", err)
	}
	return nil
}

// writeFileAtomic writes data to a temp file next to path and renames
// it into place, creating parent directories as needed.
func writeFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return err
	}
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0644); err != nil {
		return err
	}
	if err := os.Rename(tmp, path); err != nil {
		// Leave no partial file behind on a failed commit
		_ = os.Remove(tmp)
		return err
	}
	return nil
}
