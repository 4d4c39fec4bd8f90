package cli

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/emergentdev/emergent/internal/config"
	"github.com/emergentdev/emergent/internal/state"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace run status",
	Long: `Show the persisted agent state and run statistics for a workspace.

Examples:
  emergent status
  emergent status --workspace ./project --watch`,
	RunE: checkStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)

	statusCmd.Flags().String("workspace", "", "Workspace directory holding state files")
	statusCmd.Flags().Bool("watch", false, "Watch for status changes")
	statusCmd.Flags().Duration("interval", 10*time.Second, "Watch interval")
}

func checkStatus(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if workspace, _ := cmd.Flags().GetString("workspace"); workspace != "" {
		cfg.Workspace.Dir = workspace
	}

	store := state.NewStore(cfg.Workspace.Dir, state.Config{HistoryCap: cfg.Workspace.HistoryCap})
	watch, _ := cmd.Flags().GetBool("watch")
	interval, _ := cmd.Flags().GetDuration("interval")

	for {
		if err := printStatus(store); err != nil {
			return err
		}

		if !watch {
			return nil
		}

		st, _, loadErr := store.Load()
		if loadErr == nil && st.Complete {
			return nil
		}

		fmt.Println("\n---")
		time.Sleep(interval)
	}
}

func printStatus(store *state.Store) error {
	st, note, err := store.Load()
	if err != nil {
		return fmt.Errorf("failed to load state: %w", err)
	}

	fmt.Printf("Workspace: %s\n", store.WorkDir())
	if st.Goal == "" {
		fmt.Println("No run recorded in this workspace.")
		return nil
	}

	fmt.Printf("Goal: %s\n", st.Goal)
	if st.Complete {
		fmt.Println("Status: complete")
		if st.CompletionSummary != "" {
			fmt.Printf("Summary: %s\n", st.CompletionSummary)
		}
	} else {
		fmt.Println("Status: in progress")
	}
	if note != "" {
		fmt.Printf("Note: %s\n", note)
	}
	fmt.Printf("Position: %s\n", st.Position)
	fmt.Printf("Total actions: %d\n", st.TotalActions)
	fmt.Printf("Actions since reflection: %d\n", st.ActionsSinceReflection)
	if st.LastReflection != nil {
		fmt.Printf("Last reflection: %s\n", st.LastReflection.Format(time.RFC3339))
	}
	if !st.SessionStart.IsZero() {
		fmt.Printf("Last session started: %s\n", st.SessionStart.Format(time.RFC3339))
	}

	if len(st.RecentActions) > 0 {
		fmt.Println("\nRecent actions:")
		for _, rec := range st.RecentActions {
			marker := "ok"
			if !rec.Success {
				marker = "failed"
			}
			fmt.Printf("  %4d  %-14s %-6s %s\n", rec.Seq, rec.Tool, marker, rec.Summary)
		}
	}

	stats, err := store.LoadStats()
	if err != nil {
		return fmt.Errorf("failed to load stats: %w", err)
	}
	if stats == nil {
		return nil
	}

	fmt.Println("\nRun statistics:")
	fmt.Printf("  Started: %s\n", stats.StartedAt.Format(time.RFC3339))
	fmt.Printf("  Deadline: %s\n", stats.Deadline.Format(time.RFC3339))
	if stats.EndedAt != nil {
		fmt.Printf("  Ended: %s\n", stats.EndedAt.Format(time.RFC3339))
		fmt.Printf("  Runtime: %s\n", (time.Duration(stats.TotalRuntimeSecond * float64(time.Second))).Round(time.Second))
	}
	fmt.Printf("  Sessions completed: %d\n", stats.SessionsCompleted)
	if stats.SessionsFailed > 0 {
		fmt.Printf("  Sessions failed: %d\n", stats.SessionsFailed)
	}
	fmt.Printf("  Meaningful events: %d\n", stats.MeaningfulEvents)
	if stats.ErrorsEncountered > 0 {
		fmt.Printf("  Errors: %d\n", stats.ErrorsEncountered)
		for _, e := range stats.Errors {
			fmt.Printf("    %s  %s\n", e.Timestamp.Format(time.RFC3339), e.Error)
		}
	}
	return nil
}
