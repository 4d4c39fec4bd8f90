package cli

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/emergentdev/emergent/internal/cloud/gcp"
	"github.com/emergentdev/emergent/internal/config"
	"github.com/emergentdev/emergent/internal/engine"
	"github.com/emergentdev/emergent/internal/observability"
	"github.com/emergentdev/emergent/internal/reliability"
	"github.com/emergentdev/emergent/internal/state"
	"github.com/emergentdev/emergent/internal/supervisor"
)

var runCmd = &cobra.Command{
	Use:   "run [goal]",
	Short: "Run the agent toward a goal",
	Long: `Run the agent toward a goal until it completes or the run deadline
passes. State persists in the workspace, so an interrupted run resumes
where it left off.

Example:
  emergent run "add retry logic to the HTTP client" --workspace ./project --total-duration 4h`,
	Args: cobra.MaximumNArgs(1),
	RunE: runGoal,
}

func init() {
	rootCmd.AddCommand(runCmd)

	runCmd.Flags().String("workspace", "", "Workspace directory holding state and project files")
	runCmd.Flags().String("total-duration", "", "Total run duration before the deadline (e.g., 4h)")
	runCmd.Flags().String("timeout-per-session", "", "Maximum duration of a single session (e.g., 1h)")
	runCmd.Flags().String("restart-delay", "", "Pause between sessions (e.g., 10s)")
	runCmd.Flags().Int("iterations-per-session", 0, "Maximum loop iterations per session")
	runCmd.Flags().String("model", "", "Engine model name")
	runCmd.Flags().Bool("dry-run", false, "Show the resolved run settings without starting")

	_ = viper.BindPFlag("workspace.dir", runCmd.Flags().Lookup("workspace"))
	_ = viper.BindPFlag("run.total_duration", runCmd.Flags().Lookup("total-duration"))
	_ = viper.BindPFlag("run.session_timeout", runCmd.Flags().Lookup("timeout-per-session"))
	_ = viper.BindPFlag("run.restart_delay", runCmd.Flags().Lookup("restart-delay"))
	_ = viper.BindPFlag("engine.model", runCmd.Flags().Lookup("model"))
}

func runGoal(cmd *cobra.Command, args []string) error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Handle interrupt signals
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Println("\nReceived interrupt signal, finishing current state save...")
		cancel()
	}()

	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	if len(args) == 1 && args[0] != "" {
		cfg.Run.Goal = args[0]
	}
	if cmd.Flags().Changed("iterations-per-session") {
		iterations, _ := cmd.Flags().GetInt("iterations-per-session")
		cfg.Run.IterationsPerSession = iterations
	}

	if err = cfg.ValidateForRun(); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}

	apiKey, err := resolveAPIKey(ctx, cfg)
	if err != nil {
		return err
	}

	dryRun, _ := cmd.Flags().GetBool("dry-run")

	fmt.Printf("Goal: %s\n", cfg.Run.Goal)
	fmt.Printf("Workspace: %s\n", cfg.Workspace.Dir)
	fmt.Printf("Model: %s\n", cfg.Engine.Model)
	fmt.Printf("Total duration: %s\n", cfg.Run.TotalDuration)
	fmt.Printf("Session timeout: %s\n", cfg.Run.SessionTimeout)
	fmt.Printf("Iterations per session: %d\n", cfg.Run.IterationsPerSession)
	fmt.Println()

	if dryRun {
		fmt.Println("Dry run - the agent will not start")
		return nil
	}

	logger, closeSink, err := buildLogger(ctx, cfg)
	if err != nil {
		return err
	}
	defer closeSink()

	store := state.NewStore(cfg.Workspace.Dir, state.Config{HistoryCap: cfg.Workspace.HistoryCap})

	eng := engine.NewClient(engine.ClientConfig{
		APIKey:      apiKey,
		BaseURL:     cfg.Engine.BaseURL,
		Model:       cfg.Engine.Model,
		Temperature: cfg.Engine.Temperature,
	})

	tracer, stopTracer := buildTracer(cfg, logger)
	defer stopTracer()

	sup, err := supervisor.New(store, eng, logger, supervisor.Config{
		Goal:                 cfg.Run.Goal,
		TotalDuration:        config.Duration(cfg.Run.TotalDuration, supervisor.DefaultTotalDuration),
		SessionTimeout:       config.Duration(cfg.Run.SessionTimeout, supervisor.DefaultSessionTimeout),
		RestartDelay:         config.Duration(cfg.Run.RestartDelay, supervisor.DefaultRestartDelay),
		IterationsPerSession: cfg.Run.IterationsPerSession,
		Monitor: reliability.Config{
			Loop: reliability.LoopConfig{
				Threshold: cfg.Reliability.LoopThreshold,
				Window:    cfg.Reliability.LoopWindow,
			},
			ReflectionThreshold: cfg.Reliability.ReflectionThreshold,
			StallTimeout:        config.Duration(cfg.Reliability.StallTimeout, reliability.DefaultStallTimeout),
			TokenBudget:         cfg.Reliability.TokenBudget,
		},
		EngineModel: cfg.Engine.Model,
		Tracer:      tracer,
	})
	if err != nil {
		return fmt.Errorf("failed to create supervisor: %w", err)
	}

	outcome, runErr := sup.Run(ctx)

	if outcome != nil {
		publishRunStatus(cfg, logger, outcome)
		printOutcome(outcome)
	}
	if runErr != nil {
		return fmt.Errorf("run failed: %w", runErr)
	}
	return nil
}

// resolveAPIKey returns the configured key, fetching it from Secret
// Manager when only a secret reference is set.
func resolveAPIKey(ctx context.Context, cfg *config.Config) (string, error) {
	if cfg.Engine.APIKey != "" {
		return cfg.Engine.APIKey, nil
	}

	client, err := gcp.NewSecretManagerClient(ctx, cfg.Cloud.Project)
	if err != nil {
		return "", fmt.Errorf("failed to create Secret Manager client: %w", err)
	}
	defer client.Close()

	key, err := client.FetchSecret(ctx, cfg.Engine.APIKeySecret)
	if err != nil {
		return "", fmt.Errorf("failed to fetch engine API key: %w", err)
	}
	return key, nil
}

// buildLogger returns the run logger. With a GCP cloud provider
// configured, log lines also flow to Cloud Logging through a
// sanitizing sink; otherwise they go to stderr only.
func buildLogger(ctx context.Context, cfg *config.Config) (*log.Logger, func(), error) {
	if cfg.Cloud.Provider != "gcp" {
		return log.New(os.Stderr, "", log.LstdFlags), func() {}, nil
	}

	cloudLogger, err := gcp.NewCloudLogger(ctx, cfg.Cloud.Project, cfg.Cloud.LogName, uuid.NewString())
	if err != nil {
		// Cloud logging is best-effort; the run proceeds on stderr.
		fmt.Fprintf(os.Stderr, "Warning: cloud logging unavailable: %v\n", err)
		return log.New(os.Stderr, "", log.LstdFlags), func() {}, nil
	}

	sink := gcp.NewSecureSink(cloudLogger)
	writer := io.MultiWriter(os.Stderr, gcp.NewSinkWriter(sink))
	return log.New(writer, "", log.LstdFlags), func() { _ = sink.Close() }, nil
}

// buildTracer returns the configured tracer and a stop function.
func buildTracer(cfg *config.Config, logger *log.Logger) (observability.Tracer, func()) {
	if !cfg.Observability.Enabled {
		return &observability.NoOpTracer{}, func() {}
	}

	tracer := observability.NewLangfuseTracer(observability.LangfuseConfig{
		BaseURL:   cfg.Observability.Host,
		PublicKey: cfg.Observability.PublicKey,
		SecretKey: cfg.Observability.SecretKey,
	}, logger)
	return tracer, func() {
		stopCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = tracer.Stop(stopCtx)
	}
}

// publishRunStatus mirrors the final run outcome into instance
// metadata when running on a GCP VM, so external tooling can poll it.
func publishRunStatus(cfg *config.Config, logger *log.Logger, outcome *supervisor.Outcome) {
	if cfg.Cloud.Provider != "gcp" || !gcp.IsRunningOnGCP() {
		return
	}

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	pub, err := gcp.NewComputeStatusPublisher(ctx)
	if err != nil {
		logger.Printf("status publish skipped: %v", err)
		return
	}
	defer pub.Close()

	status := gcp.RunStatusMetadata{
		Goal:         cfg.Run.Goal,
		GoalComplete: outcome.GoalComplete,
	}
	if outcome.Stats != nil {
		status.SessionsCompleted = outcome.Stats.SessionsCompleted
		status.SessionsFailed = outcome.Stats.SessionsFailed
		status.TotalActions = outcome.Stats.TotalActions
		status.MeaningfulEvents = outcome.Stats.MeaningfulEvents
	}
	if err := pub.PublishStatus(ctx, status); err != nil {
		logger.Printf("status publish failed: %v", err)
	}
}

func printOutcome(outcome *supervisor.Outcome) {
	fmt.Println()
	if outcome.GoalComplete {
		fmt.Println("Goal complete.")
	} else if outcome.DeadlineReached {
		fmt.Println("Deadline reached before the goal completed.")
	} else {
		fmt.Println("Run ended before the goal completed.")
	}
	fmt.Printf("Sessions: %d\n", outcome.Sessions)
	if outcome.Stats != nil {
		fmt.Printf("Actions: %d\n", outcome.Stats.TotalActions)
		fmt.Printf("Meaningful events: %d\n", outcome.Stats.MeaningfulEvents)
		if outcome.Stats.SessionsFailed > 0 {
			fmt.Printf("Failed sessions: %d\n", outcome.Stats.SessionsFailed)
		}
	}
}
