package cmd

import (
	"fmt"

	"github.com/spf13/cobra"

	"topical/internal"
)

// transcribeCmd fetches or produces a transcript and prints it, without
// running segmentation or touching pipeline state.
var transcribeCmd = &cobra.Command{
	Use:   "transcribe [URL or ID]",
	Short: "Print the transcript of a YouTube video",
	Example: `  # Print transcript from YouTube captions
  topical transcribe "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  topical transcribe tAP1eZYEuKA

  # Use Whisper if no captions available (costs money)
  topical transcribe tAP1eZYEuKA --fallback-whisper`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		item, err := internal.NewWorkItem(args[0])
		if err != nil {
			return err
		}

		if fallback, _ := cmd.Flags().GetBool("fallback-whisper"); fallback {
			if err := internal.ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
				return err
			}
			config.FallbackWhisper = true
		}

		app, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		transcript, err := app.Transcript(cmd.Context(), item)
		if err != nil {
			return err
		}
		fmt.Println(transcript)
		return nil
	},
}

func init() {
	transcribeCmd.Flags().Bool("fallback-whisper", false, "Transcribe with OpenAI Whisper when no captions exist (costs money)")
	rootCmd.AddCommand(transcribeCmd)
}
