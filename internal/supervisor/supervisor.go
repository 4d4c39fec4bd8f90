// Package supervisor runs back-to-back agent sessions until the goal
// completes or the overall deadline expires. Sessions are the recovery
// unit: a restart signal or a failed session ends the current session
// and, after a short delay, the next one resumes from durable state.
package supervisor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"

	"github.com/emergentdev/emergent/internal/engine"
	"github.com/emergentdev/emergent/internal/loop"
	"github.com/emergentdev/emergent/internal/observability"
	"github.com/emergentdev/emergent/internal/reliability"
	"github.com/emergentdev/emergent/internal/state"
	"github.com/emergentdev/emergent/internal/tools"
)

// Defaults mirror the documented operational envelope.
const (
	DefaultTotalDuration  = 8 * time.Hour
	DefaultSessionTimeout = time.Hour
	DefaultRestartDelay   = 10 * time.Second
)

// Config holds the supervisor's run settings.
type Config struct {
	Goal                 string
	TotalDuration        time.Duration
	SessionTimeout       time.Duration
	RestartDelay         time.Duration
	IterationsPerSession int
	Monitor              reliability.Config
	EngineModel          string
	Tracer               observability.Tracer
}

// Supervisor owns the session lifecycle for one workspace.
type Supervisor struct {
	store    *state.Store
	registry *tools.Registry
	manifest *tools.Manifest
	eng      engine.Engine
	logger   *log.Logger
	config   Config
}

// Outcome summarizes a finished supervisor run.
type Outcome struct {
	GoalComplete    bool
	DeadlineReached bool
	Sessions        int
	Stats           *state.Stats
}

// New creates a supervisor. The tool registry is built once and shared
// across sessions; each session gets a fresh loop and monitor.
func New(store *state.Store, eng engine.Engine, logger *log.Logger, config Config) (*Supervisor, error) {
	if config.Goal == "" {
		return nil, errors.New("a goal is required")
	}
	if config.TotalDuration <= 0 {
		config.TotalDuration = DefaultTotalDuration
	}
	if config.SessionTimeout <= 0 {
		config.SessionTimeout = DefaultSessionTimeout
	}
	if config.RestartDelay <= 0 {
		config.RestartDelay = DefaultRestartDelay
	}
	if config.Tracer == nil {
		config.Tracer = &observability.NoOpTracer{}
	}

	registry, manifest, err := tools.NewBuiltinRegistry(store.WorkDir(), store)
	if err != nil {
		return nil, fmt.Errorf("failed to build tool registry: %w", err)
	}
	return &Supervisor{
		store:    store,
		registry: registry,
		manifest: manifest,
		eng:      eng,
		logger:   logger,
		config:   config,
	}, nil
}

// Run executes sessions until the goal completes, the deadline passes,
// or the parent context is cancelled. The stats artifact is updated at
// every session boundary and finalized exactly once on the way out.
func (s *Supervisor) Run(ctx context.Context) (*Outcome, error) {
	start := time.Now().UTC()
	deadline := start.Add(s.config.TotalDuration)
	s.logger.Printf("supervisor starting: goal=%q deadline=%s", s.config.Goal, deadline.Format(time.RFC3339))

	stats := &state.Stats{
		Goal:      s.config.Goal,
		StartedAt: start,
		Deadline:  deadline,
	}
	outcome := &Outcome{Stats: stats}

	// The durable action counter outlives runs on a reused workspace;
	// stats report only this run's share of it.
	baselineActions := 0
	if st, _, err := s.store.Load(); err == nil {
		baselineActions = st.TotalActions
	}

	trace := s.config.Tracer.StartRun(uuid.NewString(), observability.RunOptions{
		Goal:      s.config.Goal,
		Workspace: s.store.WorkDir(),
	})

	finalized := false
	finalize := func() {
		if finalized {
			return
		}
		finalized = true
		ended := time.Now().UTC()
		stats.EndedAt = &ended
		stats.TotalRuntimeSecond = ended.Sub(start).Seconds()
		if err := s.store.SaveStats(stats); err != nil {
			s.logger.Printf("failed to finalize stats: %v", err)
		}

		status := "failed"
		switch {
		case outcome.GoalComplete:
			status = "completed"
		case outcome.DeadlineReached:
			status = "deadline"
		}
		s.config.Tracer.CompleteRun(trace, observability.CompleteOptions{
			Status:   status,
			Sessions: outcome.Sessions,
		})
		if err := s.config.Tracer.Flush(context.Background()); err != nil {
			s.logger.Printf("failed to flush traces: %v", err)
		}
	}

	for {
		remaining := time.Until(deadline)
		if remaining <= 0 {
			outcome.DeadlineReached = true
			break
		}
		if err := ctx.Err(); err != nil {
			finalize()
			return outcome, fmt.Errorf("supervisor interrupted: %w", err)
		}

		if st, _, err := s.store.Load(); err == nil && st.Complete && st.Goal == s.config.Goal {
			s.logger.Printf("goal already complete: %s", st.CompletionSummary)
			outcome.GoalComplete = true
			break
		}

		sessionTimeout := s.config.SessionTimeout
		boundedByDeadline := remaining < sessionTimeout
		if boundedByDeadline {
			sessionTimeout = remaining
		}

		sessionID := uuid.NewString()
		outcome.Sessions++
		s.logger.Printf("session %s starting (#%d, timeout %s)", sessionID, outcome.Sessions, sessionTimeout.Round(time.Second))

		span := s.config.Tracer.StartSession(trace, sessionID, observability.SessionOptions{
			Number:        outcome.Sessions,
			MaxIterations: s.config.IterationsPerSession,
		})
		sessionStart := time.Now()

		result, err := s.runSession(ctx, sessionTimeout, span)

		switch {
		case err != nil && boundedByDeadline && errors.Is(err, context.DeadlineExceeded):
			// The overall deadline cut the session short. That is the
			// planned end of the run, not a session failure.
			s.logger.Printf("session %s ended by deadline", sessionID)
			outcome.DeadlineReached = true
		case err != nil:
			s.logger.Printf("session %s failed: %v", sessionID, err)
			stats.SessionsFailed++
			stats.RecordError(err.Error())
		default:
			stats.SessionsCompleted++
			stats.TotalActions = result.TotalActions - baselineActions
			stats.MeaningfulEvents += result.Progress.MeaningfulEvents
			if result.Restart != nil {
				s.logger.Printf("session %s restarting: %s (%s)", sessionID, result.Restart.Reason, result.Restart.Details)
				s.config.Tracer.RecordRestart(span, result.Restart.Reason, result.Restart.Details)
			} else {
				s.logger.Printf("session %s completed: %d iterations, %d meaningful events",
					sessionID, result.Iterations, result.Progress.MeaningfulEvents)
			}
		}

		sessionStatus := "completed"
		if err != nil {
			sessionStatus = "failed"
		}
		s.config.Tracer.EndSession(span, sessionStatus, time.Since(sessionStart).Milliseconds())

		if err := s.store.SaveStats(stats); err != nil {
			s.logger.Printf("failed to save stats: %v", err)
		}

		if result != nil && result.Complete {
			s.logger.Printf("goal complete: %s", result.CompletionSummary)
			outcome.GoalComplete = true
			break
		}
		if outcome.DeadlineReached {
			break
		}

		if err := s.pause(ctx, deadline); err != nil {
			finalize()
			return outcome, err
		}
	}

	finalize()
	return outcome, nil
}

// runSession runs one deadline-bounded session with a fresh loop and
// monitor over the shared durable state.
func (s *Supervisor) runSession(ctx context.Context, timeout time.Duration, span observability.SpanContext) (*loop.Result, error) {
	sessionCtx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	eng := observability.WrapEngine(s.eng, s.config.Tracer, span, s.config.EngineModel)
	monitor := reliability.NewMonitor(s.config.Monitor)
	lp := loop.New(s.store, s.registry, s.manifest, eng, monitor, s.logger, loop.Config{
		Goal:          s.config.Goal,
		MaxIterations: s.config.IterationsPerSession,
	})
	return lp.Run(sessionCtx)
}

// pause waits the restart delay, ending early if the deadline or the
// parent context arrives first.
func (s *Supervisor) pause(ctx context.Context, deadline time.Time) error {
	delay := s.config.RestartDelay
	if remaining := time.Until(deadline); remaining < delay {
		delay = remaining
	}
	if delay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return fmt.Errorf("supervisor interrupted: %w", ctx.Err())
	case <-time.After(delay):
		return nil
	}
}
