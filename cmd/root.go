package cmd

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"topical/internal"
)

var (
	config *internal.Config
	logger *slog.Logger
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "topical [YouTube URL or ID]",
	Short: "Topic segmentation and analysis for YouTube videos",
	Long: `Topical turns YouTube videos into topic-segmented transcript analyses.

It fetches the transcript (captions when available, Whisper when not),
scans it with a sliding window to identify topic segments, and produces
layered summaries. All work is recorded in a local state store, so an
interrupted or partially failed run resumes where it left off.`,
	Example: `  # Analyze a YouTube video
  topical "https://www.youtube.com/watch?v=tAP1eZYEuKA"
  topical tAP1eZYEuKA

  # Process a batch of videos, one URL or ID per line
  topical --file urls.txt

  # Re-attempt items that failed in an earlier run
  topical --file urls.txt --retry-failed

  # Redo everything for one video
  topical tAP1eZYEuKA --force`,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		applyFlagOverrides(cmd)
		return nil
	},
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		file, _ := cmd.Flags().GetString("file")
		if file == "" && len(args) == 0 {
			return cmd.Help()
		}
		if file != "" && len(args) > 0 {
			return fmt.Errorf("provide either a video reference or --file, not both")
		}

		if err := internal.ValidateOpenAIAPIKey(config.OpenAIAPIKey); err != nil {
			return err
		}
		if err := internal.ValidateModel(config.Model); err != nil {
			return err
		}

		opts := runOptionsFromFlags(cmd)
		app, cleanup, err := newApp()
		if err != nil {
			return err
		}
		defer cleanup()

		if file != "" {
			return runBatch(cmd.Context(), app, file, opts)
		}

		item, err := internal.NewWorkItem(args[0])
		if err != nil {
			return err
		}
		return runSingle(cmd.Context(), app, item, opts)
	},
}

func runSingle(ctx context.Context, app *internal.App, item internal.WorkItem, opts internal.RunOptions) error {
	result := app.Run(ctx, item, opts)

	switch result.Status {
	case internal.ItemCompleted:
		return reportCompleted(ctx, app, result)
	case internal.ItemSkipped:
		return fmt.Errorf("%s: phase %q failed in a previous run (%v); use --retry-failed or 'topical retry %s'",
			item.ID, result.FailedPhase, result.Err, item.ID)
	default:
		if result.FailedPhase != "" {
			return fmt.Errorf("%s: phase %q failed: %w", item.ID, result.FailedPhase, result.Err)
		}
		return fmt.Errorf("%s: %w", item.ID, result.Err)
	}
}

func runBatch(ctx context.Context, app *internal.App, file string, opts internal.RunOptions) error {
	content, err := os.ReadFile(file)
	if err != nil {
		return fmt.Errorf("reading batch file: %w", err)
	}
	items, err := internal.ParseWorkItemList(string(content))
	if err != nil {
		return err
	}
	if len(items) == 0 {
		return fmt.Errorf("no work items in %s", file)
	}

	results := app.RunBatch(ctx, items, opts)

	var completed, failed, skipped int
	for _, result := range results {
		switch result.Status {
		case internal.ItemCompleted:
			completed++
			fmt.Printf("  ok       %s (%s)\n", result.Item.ID, result.Elapsed.Round(time.Second))
		case internal.ItemSkipped:
			skipped++
			fmt.Printf("  skipped  %s: phase %q failed previously\n", result.Item.ID, result.FailedPhase)
		default:
			failed++
			fmt.Printf("  failed   %s: %v\n", result.Item.ID, result.Err)
		}
	}
	fmt.Printf("\n%d completed, %d failed, %d skipped of %d items\n", completed, failed, skipped, len(items))
	// Per-item failures are reported above; the batch itself succeeded.
	return nil
}

func reportCompleted(ctx context.Context, app *internal.App, result internal.ItemResult) error {
	state, err := app.State(ctx, result.Item.ID)
	if err != nil || state == nil {
		return err
	}
	analysisDir := state.Phase(internal.PhaseAnalyze).Artifacts["dir"]

	if config.Quiet {
		fmt.Println(analysisDir)
		return nil
	}

	summaryPath := filepath.Join(analysisDir, "executive_summary.txt")
	if internal.FileExists(summaryPath) && internal.IsInteractive() {
		content, err := os.ReadFile(summaryPath)
		if err == nil {
			rendered, err := internal.RenderMarkdown(string(content))
			if err == nil {
				fmt.Println(rendered)
			} else {
				fmt.Println(string(content))
			}
		}
	}
	fmt.Printf("Analysis written to %s\n", analysisDir)
	return nil
}

// newApp builds the logger and application; the returned cleanup releases
// the state store lock and flushes the log file.
func newApp(options ...internal.AppOption) (*internal.App, func(), error) {
	log, closeLog := internal.NewLogger(config)
	logger = log
	app, err := internal.NewApp(config, log, options...)
	if err != nil {
		_ = closeLog()
		return nil, nil, err
	}
	cleanup := func() {
		if err := app.Close(); err != nil {
			fmt.Fprintf(os.Stderr, "Warning: closing state store: %v\n", err)
		}
		_ = closeLog()
	}
	return app, cleanup, nil
}

// applyFlagOverrides lets command-line flags win over config file and env.
func applyFlagOverrides(cmd *cobra.Command) {
	flags := cmd.Flags()
	if flags.Changed("model") {
		config.Model, _ = flags.GetString("model")
	}
	if flags.Changed("prompt") {
		config.SegmentPrompt, _ = flags.GetString("prompt")
	}
	if flags.Changed("fallback-whisper") {
		config.FallbackWhisper, _ = flags.GetBool("fallback-whisper")
	}
	if flags.Changed("verbose") {
		config.Verbose, _ = flags.GetBool("verbose")
	}
	if flags.Changed("quiet") {
		config.Quiet, _ = flags.GetBool("quiet")
	}
}

func runOptionsFromFlags(cmd *cobra.Command) internal.RunOptions {
	force, _ := cmd.Flags().GetBool("force")
	retryFailed, _ := cmd.Flags().GetBool("retry-failed")
	from, _ := cmd.Flags().GetString("from")
	return internal.RunOptions{Force: force, RetryFailed: retryFailed, FromPhase: from}
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() error {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	config = internal.InitConfig()

	if err := internal.EnsureDirs(config.ConfigDir, config.DataDir, config.CacheDir); err != nil {
		fmt.Fprintf(os.Stderr, "Error creating XDG directories: %v\n", err)
		os.Exit(1)
	}
	if err := internal.EnsureDefaultConfig(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default config: %v\n", err)
	}
	if err := internal.EnsureDefaultPrompt(config.ConfigDir); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: Failed to ensure default prompt: %v\n", err)
	}

	// First Ctrl-C cancels the context so the orchestrator stops at the
	// next phase boundary with state intact; a second one force-exits.
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, os.Interrupt, syscall.SIGTERM)
	go func() {
		<-sigCh
		fmt.Fprintln(os.Stderr, "\nInterrupted, finishing current step... (Ctrl-C again to force quit)")
		cancel()
		<-sigCh
		if err := internal.CleanupTempDir(config.TempDir); err != nil {
			fmt.Fprintf(os.Stderr, "Error cleaning up temporary files: %v\n", err)
		}
		os.Exit(1)
	}()

	rootCmd.SetContext(ctx)
	return rootCmd.Execute()
}

func init() {
	rootCmd.PersistentFlags().String("model", "", "OpenAI model to use")
	rootCmd.PersistentFlags().String("prompt", "", "Segmentation prompt template (inline or path to file)")
	rootCmd.PersistentFlags().BoolP("verbose", "v", false, "Enable verbose output for debugging")
	rootCmd.PersistentFlags().BoolP("quiet", "q", false, "Suppress progress and status output")

	rootCmd.Flags().String("file", "", "Process a batch: file with one YouTube URL or ID per line")
	rootCmd.Flags().Bool("force", false, "Re-run phases that are already complete")
	rootCmd.Flags().Bool("retry-failed", false, "Attempt phases that failed in a previous run")
	rootCmd.Flags().String("from", "", "Start at this phase (earlier phases must be complete)")
	rootCmd.Flags().Bool("fallback-whisper", false, "Transcribe with OpenAI Whisper when no captions exist (costs money)")
}
