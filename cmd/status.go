package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topical/internal"
)

// statusCmd inspects the pipeline state store.
var statusCmd = &cobra.Command{
	Use:   "status [URL or ID]",
	Short: "Show pipeline state for one item or all known items",
	Example: `  # Show all known items
  topical status

  # Show per-phase state for one video
  topical status tAP1eZYEuKA`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		app, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		if len(args) == 0 {
			states, err := app.States(cmd.Context())
			if err != nil {
				return err
			}
			if len(states) == 0 {
				fmt.Println("No items in the pipeline state store")
				return nil
			}
			for _, state := range states {
				printState(state)
				fmt.Println()
			}
			return nil
		}

		item, err := internal.NewWorkItem(args[0])
		if err != nil {
			return err
		}
		state, err := app.State(cmd.Context(), item.ID)
		if err != nil {
			return err
		}
		if state == nil {
			return fmt.Errorf("no pipeline state for %s", item.ID)
		}
		printState(state)
		return nil
	},
}

func printState(state *internal.PipelineState) {
	fmt.Printf("%s  (updated %s)\n", state.ID, state.UpdatedAt.Format("2006-01-02 15:04:05"))
	if state.SourceURL != "" {
		fmt.Printf("  url: %s\n", state.SourceURL)
	}
	for _, phase := range internal.PhaseOrder {
		rec := state.Phase(phase)
		fmt.Printf("  %-10s %s", phase, rec.Status)
		if rec.Error != "" {
			fmt.Printf("  (%s)", rec.Error)
		}
		fmt.Println()
	}
	if state.LastError != "" {
		fmt.Printf("  last error: %s\n", state.LastError)
	}
}

func init() {
	rootCmd.AddCommand(statusCmd)
}
