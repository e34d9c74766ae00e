package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topical/internal"
)

// retryCmd clears failed phase markers so the next run attempts them again.
var retryCmd = &cobra.Command{
	Use:   "retry [URL or ID]",
	Short: "Clear the failed marker for an item",
	Long: `Clear failed phase records for a work item.

An item whose phase failed is skipped on subsequent runs until the failure
is explicitly retracted (this command) or the run uses --retry-failed.
Completed phases are untouched; the next run resumes at the cleared phase.`,
	Example: `  # Allow a failed video to be processed again
  topical retry tAP1eZYEuKA
  topical tAP1eZYEuKA`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := internal.NewWorkItem(args[0])
		if err != nil {
			return err
		}

		app, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		state, err := app.State(cmd.Context(), item.ID)
		if err != nil {
			return err
		}
		if state == nil {
			return fmt.Errorf("no pipeline state for %s", item.ID)
		}

		if err := app.Retry(cmd.Context(), item.ID); err != nil {
			return err
		}
		if !config.Quiet {
			fmt.Printf("Cleared failed phases for %s\n", item.ID)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(retryCmd)
}
