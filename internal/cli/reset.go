package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/emergentdev/emergent/internal/config"
	"github.com/emergentdev/emergent/internal/state"
)

var resetCmd = &cobra.Command{
	Use:   "reset",
	Short: "Discard persisted agent state",
	Long: `Discard the persisted agent state, memory, and statistics for a
workspace. The next run starts fresh.

Example:
  emergent reset --workspace ./project`,
	RunE: resetWorkspace,
}

func init() {
	rootCmd.AddCommand(resetCmd)

	resetCmd.Flags().String("workspace", "", "Workspace directory holding state files")
	resetCmd.Flags().BoolP("force", "f", false, "Skip confirmation prompt")
}

func resetWorkspace(cmd *cobra.Command, args []string) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}
	if workspace, _ := cmd.Flags().GetString("workspace"); workspace != "" {
		cfg.Workspace.Dir = workspace
	}

	force, _ := cmd.Flags().GetBool("force")
	if !force {
		fmt.Printf("This will discard agent state, memory, and statistics in %s.\n\n", cfg.Workspace.Dir)
		fmt.Print("Are you sure? [y/N]: ")

		var confirm string
		fmt.Scanln(&confirm)
		if confirm != "y" && confirm != "Y" {
			fmt.Println("Cancelled.")
			return nil
		}
	}

	store := state.NewStore(cfg.Workspace.Dir, state.Config{})
	if err := store.Reset(); err != nil {
		return fmt.Errorf("failed to reset workspace: %w", err)
	}

	fmt.Println("Workspace state cleared.")
	return nil
}
