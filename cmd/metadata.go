package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topical/internal"
)

// metadataCmd prints video metadata, mainly caption availability.
var metadataCmd = &cobra.Command{
	Use:   "metadata [URL or ID]",
	Short: "Show video metadata and caption availability",
	Example: `  # Check whether a video has captions before running the pipeline
  topical metadata tAP1eZYEuKA`,
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

		metadata, err := app.Metadata(cmd.Context(), item)
		if err != nil {
			return err
		}

		fmt.Printf("Title: %s\n", metadata.Title)
		fmt.Printf("Channel: %s\n", metadata.Channel)
		fmt.Printf("Duration: %.0f seconds\n", metadata.Duration)
		fmt.Printf("Has captions: %t\n", metadata.HasCaptions)
		if metadata.Description != "" {
			fmt.Printf("Description: %s\n", metadata.Description)
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(metadataCmd)
}
