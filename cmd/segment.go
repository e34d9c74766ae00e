package cmd

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"topical/internal"
)

// segmentCmd runs topic segmentation directly on a local transcript file,
// without the pipeline or state store.
var segmentCmd = &cobra.Command{
	Use:   "segment [transcript file]",
	Short: "Segment a local transcript file into topics",
	Example: `  # Segment a transcript and print the topic index
  topical segment transcript.txt

  # Emit the segments as JSON
  topical segment transcript.txt --json

  # Smaller windows with less overlap
  topical segment transcript.txt --window 2000 --overlap 200`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		if err := internal.ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
			return err
		}

		text, err := os.ReadFile(args[0])
		if err != nil {
			return fmt.Errorf("reading transcript: %w", err)
		}

		segCfg := internal.SegmenterConfig{
			WindowSize: config.WindowSize,
			Overlap:    config.Overlap,
			BridgeGaps: config.BridgeGaps,
		}
		if cmd.Flags().Changed("window") {
			segCfg.WindowSize, _ = cmd.Flags().GetInt("window")
		}
		if cmd.Flags().Changed("overlap") {
			segCfg.Overlap, _ = cmd.Flags().GetInt("overlap")
		}
		if cmd.Flags().Changed("bridge-gaps") {
			segCfg.BridgeGaps, _ = cmd.Flags().GetBool("bridge-gaps")
		}

		log, closeLog := internal.NewLogger(config)
		logger = log
		defer func() { _ = closeLog() }()

		gen := internal.NewOpenAIGenerator(config.OpenAIAPIKey, config.Model, config.GenerateTimeout)
		prompts := internal.NewPromptManager(config.ConfigDir, config.SegmentPrompt)
		segmenter, err := internal.NewSegmenter(gen, segCfg, prompts, log)
		if err != nil {
			return err
		}

		ui := internal.NewUIManager(config.Quiet)
		bar := ui.NewSpinner("Scanning topics")
		segments, err := segmenter.SegmentWithProgress(cmd.Context(), string(text), bar)
		if err != nil {
			return err
		}

		asJSON, _ := cmd.Flags().GetBool("json")
		if asJSON {
			data, err := json.MarshalIndent(segments, "", "  ")
			if err != nil {
				return fmt.Errorf("encoding segments: %w", err)
			}
			fmt.Println(string(data))
			return nil
		}

		for i, seg := range segments {
			fmt.Printf("%03d. %s [%d:%d]\n", i+1, seg.Topic, seg.Span.Start, seg.Span.End)
			if seg.StartTime != "" || seg.EndTime != "" {
				fmt.Printf("     Time: %s - %s\n", seg.StartTime, seg.EndTime)
			}
			fmt.Printf("     Importance: %s\n", seg.Importance)
			for _, point := range seg.KeyPoints {
				fmt.Printf("     - %s\n", point)
			}
			for _, ref := range seg.References {
				fmt.Printf("     see: %s\n", ref.Topic)
			}
		}
		return nil
	},
}

func init() {
	segmentCmd.Flags().Int("window", 0, "Window size in characters")
	segmentCmd.Flags().Int("overlap", 0, "Overlap between consecutive windows in characters")
	segmentCmd.Flags().Bool("bridge-gaps", false, "Merge continued topics across dropped windows")
	segmentCmd.Flags().Bool("json", false, "Output segments as JSON")
	rootCmd.AddCommand(segmentCmd)
}
