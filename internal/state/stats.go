package state

import (
	"encoding/json"
	"fmt"
	"os"
	"time"
)

// maxStatsErrors bounds the retained error list in the stats artifact.
const maxStatsErrors = 50

// Stats is the operational statistics artifact updated by the
// supervisor at every session boundary.
type Stats struct {
	Goal               string         `json:"goal"`
	StartedAt          time.Time      `json:"started_at"`
	Deadline           time.Time      `json:"deadline"`
	EndedAt            *time.Time     `json:"ended_at,omitempty"`
	SessionsCompleted  int            `json:"sessions_completed"`
	SessionsFailed     int            `json:"sessions_failed"`
	TotalActions       int            `json:"total_actions"`
	MeaningfulEvents   int            `json:"meaningful_events"`
	ErrorsEncountered  int            `json:"errors_encountered"`
	Errors             []SessionError `json:"errors,omitempty"`
	TotalRuntimeSecond float64        `json:"total_runtime_seconds"`
}

// SessionError is one recorded session-level failure.
type SessionError struct {
	Timestamp time.Time `json:"timestamp"`
	Error     string    `json:"error"`
}

// RecordError appends a session failure, keeping the list bounded.
func (s *Stats) RecordError(err string) {
	s.ErrorsEncountered++
	s.Errors = append(s.Errors, SessionError{Timestamp: time.Now().UTC(), Error: err})
	if len(s.Errors) > maxStatsErrors {
		s.Errors = s.Errors[len(s.Errors)-maxStatsErrors:]
	}
}

// LoadStats reads the stats artifact. A missing or corrupt artifact
// returns nil without error; the supervisor starts a fresh one.
func (s *Store) LoadStats() (*Stats, error) {
	raw, err := os.ReadFile(s.statsPath)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("failed to read stats file: %w", err)
	}
	var stats Stats
	if err := json.Unmarshal(raw, &stats); err != nil {
		return nil, nil
	}
	return &stats, nil
}

// SaveStats persists the stats artifact atomically.
func (s *Store) SaveStats(stats *Stats) error {
	raw, err := json.MarshalIndent(stats, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal stats: %w", err)
	}
	return writeFileAtomic(s.statsPath, raw)
}
