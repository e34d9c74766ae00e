package cmd

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/atotto/clipboard"
	"github.com/spf13/cobra"

	"topical/internal"
)

// cpCmd copies an analysis artifact to the system clipboard.
var cpCmd = &cobra.Command{
	Use:   "cp [URL or ID]",
	Short: "Copy an analysis artifact to the clipboard",
	Long: `Copy the executive summary of an analyzed video to the clipboard.

Without an argument, the most recently analyzed item is used. Use
--artifact to pick a different file from the analysis directory.`,
	Example: `  # Copy the executive summary of the latest analysis
  topical cp

  # Copy for a specific video
  topical cp tAP1eZYEuKA

  # Copy the key insights instead
  topical cp tAP1eZYEuKA --artifact key_insights.txt`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		var state *internal.PipelineState
		if len(args) > 0 {
			item, err := internal.NewWorkItem(args[0])
			if err != nil {
				return err
			}
			state, err = app.State(cmd.Context(), item.ID)
			if err != nil {
				return err
			}
			if state == nil {
				return fmt.Errorf("no pipeline state for %s", item.ID)
			}
		} else {
			states, err := app.States(cmd.Context())
			if err != nil {
				return err
			}
			for _, candidate := range states {
				if candidate.Phase(internal.PhaseAnalyze).Status == internal.PhaseComplete {
					state = candidate
					break
				}
			}
			if state == nil {
				return fmt.Errorf("no analyzed items found")
			}
		}

		rec := state.Phase(internal.PhaseAnalyze)
		if rec.Status != internal.PhaseComplete {
			return fmt.Errorf("%s has not been analyzed yet", state.ID)
		}
		dir, ok := rec.Artifacts["dir"]
		if !ok {
			return fmt.Errorf("analyze phase for %s recorded no artifact directory", state.ID)
		}

		artifact, _ := cmd.Flags().GetString("artifact")
		content, err := os.ReadFile(filepath.Join(dir, artifact))
		if err != nil {
			return fmt.Errorf("reading artifact: %w", err)
		}

		if err := clipboard.WriteAll(string(content)); err != nil {
			return fmt.Errorf("copying to clipboard: %w", err)
		}
		if !config.Quiet {
			fmt.Printf("Copied %s for %s to clipboard\n", artifact, state.ID)
		}
		return nil
	},
}

func init() {
	cpCmd.Flags().String("artifact", "executive_summary.txt", "Artifact file to copy from the analysis directory")
	rootCmd.AddCommand(cpCmd)
}
