// Package loop runs one session of the agent's act-observe-record
// cycle. Each tick asks the engine for a decision, executes the chosen
// tool, records the outcome durably, and consults the reliability
// monitor before continuing. The loop itself never restarts anything;
// it surfaces restart signals to the supervisor and exits.
package loop

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/emergentdev/emergent/internal/engine"
	"github.com/emergentdev/emergent/internal/reliability"
	"github.com/emergentdev/emergent/internal/state"
	"github.com/emergentdev/emergent/internal/tools"
)

// Phase names the loop's observable execution phases.
type Phase string

const (
	PhaseLoading    Phase = "loading"
	PhaseDeciding   Phase = "deciding"
	PhaseActing     Phase = "acting"
	PhaseRecording  Phase = "recording"
	PhaseReflecting Phase = "reflecting"
	PhaseDone       Phase = "done"
	PhaseFailed     Phase = "failed"
)

// DefaultMaxIterations caps one session's decide ticks.
const DefaultMaxIterations = 50

// Transcript bounds. When the message list exceeds the high mark it is
// trimmed to the most recent tail; the system prompt is rebuilt fresh
// every tick and never counted here.
const (
	transcriptHighMark = 20
	transcriptKeep     = 15
)

// Decide retry policy. Engine failures are retried with linear backoff
// before the session is declared failed.
const (
	decideAttempts    = 3
	decideBackoffBase = 2 * time.Second
)

// Config holds one session's settings.
type Config struct {
	Goal          string
	MaxIterations int
}

// Loop drives one session. Create a fresh Loop (and Monitor) per
// session; the transcript and watchdog are session-scoped, while the
// durable state carries across sessions through the store.
type Loop struct {
	store    *state.Store
	registry *tools.Registry
	manifest *tools.Manifest
	eng      engine.Engine
	monitor  *reliability.Monitor
	logger   *log.Logger

	goal          string
	maxIterations int

	transcript []engine.Message
	phase      Phase
}

// Result summarizes one finished session.
type Result struct {
	Phase             Phase
	Iterations        int
	Complete          bool
	CompletionSummary string
	Restart           *reliability.RestartSignal
	Progress          reliability.Summary
	TotalActions      int
}

// New creates a session loop.
func New(store *state.Store, registry *tools.Registry, manifest *tools.Manifest, eng engine.Engine, monitor *reliability.Monitor, logger *log.Logger, config Config) *Loop {
	maxIterations := config.MaxIterations
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Loop{
		store:         store,
		registry:      registry,
		manifest:      manifest,
		eng:           eng,
		monitor:       monitor,
		logger:        logger,
		goal:          config.Goal,
		maxIterations: maxIterations,
		phase:         PhaseLoading,
	}
}

// Phase returns the loop's current phase.
func (l *Loop) Phase() Phase {
	return l.phase
}

// Run executes the session until the goal completes, the iteration cap
// is reached, the monitor requests a restart, or the context expires.
// Only engine exhaustion and persistence failures are errors; a restart
// signal is a normal result.
func (l *Loop) Run(ctx context.Context) (*Result, error) {
	st, err := l.load(ctx)
	if err != nil {
		l.phase = PhaseFailed
		return nil, err
	}

	result := &Result{}
	for iteration := 1; iteration <= l.maxIterations; iteration++ {
		if err := ctx.Err(); err != nil {
			l.phase = PhaseFailed
			result.Phase = PhaseFailed
			l.finish(st, result)
			return result, fmt.Errorf("session interrupted: %w", err)
		}

		if signal := l.monitor.ShouldRestart(); signal != nil {
			l.logger.Printf("restart requested: %s (%s)", signal.Reason, signal.Details)
			result.Restart = signal
			l.phase = PhaseDone
			result.Phase = PhaseDone
			l.finish(st, result)
			return result, l.store.Save(st)
		}

		// A stuck pattern forces a reflection before anything else;
		// only a pattern that survives reflection escalates to restart.
		if reason, stuck := l.monitor.StuckReason(); stuck && !l.monitor.ReflectedWhileStuck() {
			l.logger.Printf("stuck pattern detected: %s; forcing reflection", reason)
			l.monitor.Reflection.Force()
		}

		reflecting := l.monitor.Reflection.Due()
		if reflecting {
			l.phase = PhaseReflecting
		} else {
			l.phase = PhaseDeciding
		}

		decision, err := l.decide(ctx, st, reflecting)
		if err != nil {
			l.phase = PhaseFailed
			result.Phase = PhaseFailed
			l.finish(st, result)
			_ = l.store.Save(st)
			return result, err
		}
		result.Iterations = iteration

		done, err := l.apply(ctx, st, decision, reflecting, result)
		if err != nil {
			l.phase = PhaseFailed
			result.Phase = PhaseFailed
			l.finish(st, result)
			return result, err
		}
		if done {
			l.phase = PhaseDone
			result.Phase = PhaseDone
			l.finish(st, result)
			return result, nil
		}
	}

	// Iteration cap reached: the session ends cleanly with the goal
	// still open. The supervisor decides whether another session runs.
	l.logger.Printf("iteration cap reached (%d); ending session", l.maxIterations)
	l.phase = PhaseDone
	result.Phase = PhaseDone
	l.finish(st, result)
	return result, l.store.Save(st)
}

// load restores durable state, seeds the goal, and syncs the
// reflection cadence to where the previous session left it.
func (l *Loop) load(ctx context.Context) (*state.AgentState, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	st, note, err := l.store.Load()
	if err != nil {
		return nil, fmt.Errorf("failed to load state: %w", err)
	}
	if note != "" {
		l.logger.Printf("state recovery: %s", note)
		if err := l.store.AppendMemory(state.MemoryBlockers, note); err != nil {
			l.logger.Printf("failed to record recovery note: %v", err)
		}
	}

	if l.goal != "" && st.Goal != l.goal {
		st.Goal = l.goal
		st.Complete = false
		st.CompletionSummary = ""
		if err := l.store.SetGoal(l.goal); err != nil {
			return nil, fmt.Errorf("failed to seed goal memory: %w", err)
		}
	}
	st.SessionStart = time.Now().UTC()

	l.monitor.Reflection.Sync(st.ActionsSinceReflection)

	if err := l.store.Save(st); err != nil {
		return nil, fmt.Errorf("failed to persist session start: %w", err)
	}
	return st, nil
}

// decide asks the engine for the next step, retrying transient
// failures with backoff.
func (l *Loop) decide(ctx context.Context, st *state.AgentState, reflecting bool) (*engine.Decision, error) {
	req, err := l.buildRequest(st, reflecting)
	if err != nil {
		return nil, err
	}

	var lastErr error
	for attempt := 1; attempt <= decideAttempts; attempt++ {
		decision, err := l.eng.Decide(ctx, req)
		if err == nil {
			return decision, nil
		}
		lastErr = err
		l.logger.Printf("decide attempt %d/%d failed: %v", attempt, decideAttempts, err)
		if attempt == decideAttempts {
			break
		}
		select {
		case <-ctx.Done():
			return nil, fmt.Errorf("session interrupted: %w", ctx.Err())
		case <-time.After(time.Duration(attempt) * decideBackoffBase):
		}
	}
	return nil, fmt.Errorf("engine failed after %d attempts: %w", decideAttempts, lastErr)
}

func (l *Loop) buildRequest(st *state.AgentState, reflecting bool) (engine.Request, error) {
	memory, err := l.store.LoadMemory()
	if err != nil {
		return engine.Request{}, fmt.Errorf("failed to load memory: %w", err)
	}

	messages := l.transcript
	if reflecting {
		prompt := reflectionPrompt(l.stuckReason())
		messages = append(append([]engine.Message{}, l.transcript...), engine.Message{
			Role:    engine.RoleUser,
			Content: prompt,
		})
	}

	return engine.Request{
		System:   systemPrompt(st, memory, l.registry.Names()),
		Messages: messages,
		Tools:    l.registry.Schemas(),
	}, nil
}

func (l *Loop) stuckReason() string {
	reason, _ := l.monitor.StuckReason()
	return reason
}

// apply executes the decision and records its outcome. Returns true
// when the session is finished.
func (l *Loop) apply(ctx context.Context, st *state.AgentState, decision *engine.Decision, reflecting bool, result *Result) (bool, error) {
	switch decision.Type {
	case engine.DecisionComplete:
		var summary string
		if decision.ToolCall != nil {
			summary, _ = decision.ToolCall.Args["summary"].(string)
		}
		st.Complete = true
		st.CompletionSummary = summary
		l.logger.Printf("goal reported complete: %s", summary)
		if err := l.store.AppendMemory(state.MemoryProgress, "Goal completed: "+summary); err != nil {
			l.logger.Printf("failed to record completion in memory: %v", err)
		}
		return true, l.store.Save(st)

	case engine.DecisionNote:
		// Free-text thinking consumes an iteration and tokens but is
		// never an action; the watchdog keeps it honest.
		l.transcript = append(l.transcript, engine.Message{
			Role:    engine.RoleAssistant,
			Content: decision.Note,
		})
		l.trimTranscript()
		if reflecting {
			if decision.Note != "" {
				if err := l.store.AppendMemory(state.MemoryProgress, decision.Note); err != nil {
					l.logger.Printf("failed to record reflection in memory: %v", err)
				}
			}
			l.completeReflection(st)
			return false, l.store.Save(st)
		}
		return false, nil

	case engine.DecisionAction:
		return false, l.act(ctx, st, decision, reflecting)
	}
	return false, fmt.Errorf("engine returned unknown decision type %q", decision.Type)
}

// act executes the tool call and durably records the outcome before
// the next decide can run.
func (l *Loop) act(ctx context.Context, st *state.AgentState, decision *engine.Decision, reflecting bool) error {
	call := decision.ToolCall
	l.phase = PhaseActing
	res := l.registry.Execute(ctx, call.Name, call.Args)

	l.phase = PhaseRecording
	l.store.AppendAction(st, state.ActionRecord{
		Tool:      call.Name,
		Signature: reliability.DefaultNormalizer(call.Name, call.Args),
		Success:   res.Success,
		Summary:   res.Summary,
	})

	ev := reliability.Event{
		Tool:     call.Name,
		Success:  res.Success,
		Mutating: l.manifest.Mutating(call.Name),
		Data:     res.Data,
	}
	meaningful := l.monitor.RecordAction(call.Name, call.Args, ev, decision.InputTokens+decision.OutputTokens)
	l.logger.Printf("action %d: %s success=%t meaningful=%t", st.TotalActions, call.Name, res.Success, meaningful)

	l.appendExchange(call, res)

	if reflecting {
		l.completeReflection(st)
	}
	if err := l.store.Save(st); err != nil {
		return fmt.Errorf("failed to persist action %d: %w", st.TotalActions, err)
	}
	return nil
}

// completeReflection marks the reflection step done in both the
// monitor and the durable state.
func (l *Loop) completeReflection(st *state.AgentState) {
	l.monitor.RecordReflection()
	l.store.MarkReflection(st)
	l.logger.Printf("reflection complete; %d total actions", st.TotalActions)
}

// appendExchange adds the assistant tool call and its result to the
// transcript, then trims.
func (l *Loop) appendExchange(call *engine.ToolCall, res tools.Result) {
	l.transcript = append(l.transcript, engine.Message{
		Role:     engine.RoleAssistant,
		ToolCall: call,
	})

	payload, err := json.Marshal(res)
	if err != nil {
		payload = []byte(fmt.Sprintf(`{"success": %t, "summary": %q}`, res.Success, res.Summary))
	}
	l.transcript = append(l.transcript, engine.Message{
		Role:       engine.RoleTool,
		Content:    string(payload),
		ToolCallID: call.ID,
	})
	l.trimTranscript()
}

// trimTranscript keeps the decide context bounded. Durable state and
// memory documents carry everything that matters across the trim.
func (l *Loop) trimTranscript() {
	if len(l.transcript) > transcriptHighMark {
		l.transcript = l.transcript[len(l.transcript)-transcriptKeep:]
	}
}

// finish fills the result's closing figures from the monitor and state.
func (l *Loop) finish(st *state.AgentState, result *Result) {
	result.Complete = st.Complete
	result.CompletionSummary = st.CompletionSummary
	result.Progress = l.monitor.Progress.Summarize()
	result.TotalActions = st.TotalActions
}
