package internal

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
)

// App holds the application state and dependencies.
type App struct {
	config       *Config
	logger       *slog.Logger
	store        *StateStore
	youtube      *YouTube
	source       TranscriptSource
	audio        *Audio
	whisper      *WhisperTranscriber
	gen          Generator
	prompts      *PromptManager
	segmenter    *Segmenter
	analyzer     *Analyzer
	orchestrator *Orchestrator
	ui           UIManager
}

// AppOption customizes App creation.
type AppOption func(*App)

// WithYouTube sets a custom transcript/metadata fetcher.
func WithYouTube(youtube *YouTube) AppOption {
	return func(a *App) { a.youtube = youtube }
}

// WithTranscriptSource sets a custom transcript source for the acquire
// path; the default is the YouTube caption fetcher.
func WithTranscriptSource(source TranscriptSource) AppOption {
	return func(a *App) { a.source = source }
}

// WithGenerator sets a custom generator, typically a fake in tests.
func WithGenerator(gen Generator) AppOption {
	return func(a *App) { a.gen = gen }
}

// WithWhisper sets a custom whisper transcriber.
func WithWhisper(w *WhisperTranscriber) AppOption {
	return func(a *App) { a.whisper = w }
}

// WithStore sets a pre-opened pipeline state store.
func WithStore(store *StateStore) AppOption {
	return func(a *App) { a.store = store }
}

// WithUI sets a custom UI manager.
func WithUI(ui UIManager) AppOption {
	return func(a *App) { a.ui = ui }
}

// NewApp wires the pipeline: state store, transcript acquisition, whisper
// fallback, segmentation and analysis, and registers the phase handlers.
func NewApp(config *Config, logger *slog.Logger, options ...AppOption) (*App, error) {
	if logger == nil {
		logger = NewNopLogger()
	}
	if err := EnsureDirs(config.TranscriptsDir, config.AnalysisDir, config.CacheDir, config.TempDir, config.DataDir); err != nil {
		return nil, fmt.Errorf("creating data directories: %w", err)
	}

	audio := NewAudio(&DefaultCommandRunner{}, config.TempDir)
	app := &App{
		config:  config,
		logger:  logger,
		youtube: NewYouTube(config.CacheDir, config.TranscriptsDir, logger),
		audio:   audio,
		whisper: NewWhisperTranscriber(config.OpenAIAPIKey, audio, WhisperLimit, config.WhisperTimeout, logger),
		gen:     NewOpenAIGenerator(config.OpenAIAPIKey, config.Model, config.GenerateTimeout),
		prompts: NewPromptManager(config.ConfigDir, config.SegmentPrompt),
		ui:      NewUIManager(config.Quiet),
	}
	for _, option := range options {
		option(app)
	}
	if app.source == nil {
		app.source = app.youtube
	}

	if app.store == nil {
		store, err := OpenStateStore(config.DataDir)
		if err != nil {
			return nil, err
		}
		app.store = store
	}

	segmenter, err := NewSegmenter(app.gen, SegmenterConfig{
		WindowSize: config.WindowSize,
		Overlap:    config.Overlap,
		BridgeGaps: config.BridgeGaps,
	}, app.prompts, logger)
	if err != nil {
		return nil, err
	}
	app.segmenter = segmenter
	app.analyzer = NewAnalyzer(app.gen, segmenter, config.AnalysisDir, app.ui, logger)

	app.orchestrator = NewOrchestrator(app.store, logger)
	app.orchestrator.RegisterPhase(PhaseAcquire, app.acquirePhase)
	app.orchestrator.RegisterPhase(PhaseTranscribe, app.transcribePhase)
	app.orchestrator.RegisterPhase(PhaseAnalyze, app.analyzePhase)

	return app, nil
}

// Close releases the state store and its process lock.
func (app *App) Close() error {
	if app.store == nil {
		return nil
	}
	return app.store.Close()
}

// Run processes one work item through the pipeline.
func (app *App) Run(ctx context.Context, item WorkItem, opts RunOptions) ItemResult {
	return app.orchestrator.Run(ctx, item, opts)
}

// RunBatch processes work items sequentially.
func (app *App) RunBatch(ctx context.Context, items []WorkItem, opts RunOptions) []ItemResult {
	return app.orchestrator.RunBatch(ctx, items, opts)
}

// Segments runs topic segmentation over transcript text without touching
// the pipeline state, for the segment command and MCP tools.
func (app *App) Segments(ctx context.Context, transcript string) ([]TopicSegment, error) {
	return app.analyzer.Segments(ctx, transcript)
}

// Analyze runs segmentation plus the summary passes for a transcript that
// is already on disk, bypassing acquisition.
func (app *App) Analyze(ctx context.Context, id, transcript string) (Artifacts, error) {
	return app.analyzer.Analyze(ctx, id, transcript)
}

// State returns the stored pipeline state for one item, nil if unknown.
func (app *App) State(ctx context.Context, id string) (*PipelineState, error) {
	return app.store.Get(ctx, id)
}

// States lists all stored pipeline states, most recently updated first.
func (app *App) States(ctx context.Context) ([]*PipelineState, error) {
	return app.store.List(ctx)
}

// Retry clears failed phase records for an item so the next run attempts
// them again.
func (app *App) Retry(ctx context.Context, id string) error {
	return app.store.ResetFailed(ctx, id)
}

// Transcript returns the transcript text for an item, fetching captions or
// falling back to whisper as needed, without touching pipeline state.
func (app *App) Transcript(ctx context.Context, item WorkItem) (string, error) {
	text, err := app.source.Fetch(ctx, item)
	if err == nil {
		return text, nil
	}
	if !errors.Is(err, ErrNoTranscript) {
		return "", err
	}
	if !app.config.FallbackWhisper {
		return "", fmt.Errorf("%w and whisper fallback disabled", err)
	}

	audioFile, err := app.youtube.DownloadAudio(ctx, item)
	if err != nil {
		return "", err
	}
	defer cleanupFiles(audioFile)

	transcript, err := app.whisper.Transcribe(ctx, audioFile)
	if err != nil {
		return "", err
	}
	if err := SaveTranscript(item.ID, transcript, app.config.TranscriptsDir); err != nil {
		return "", err
	}
	return transcript, nil
}

// Metadata fetches (or loads cached) video metadata.
func (app *App) Metadata(ctx context.Context, item WorkItem) (*VideoMetadata, error) {
	return app.youtube.Metadata(ctx, item)
}

// acquirePhase obtains the raw material for an item: a cached transcript, a
// fresh caption fetch, or (with whisper fallback enabled) a downloaded audio
// file for the transcribe phase to process.
func (app *App) acquirePhase(ctx context.Context, item WorkItem, prior map[string]Artifacts) (Artifacts, error) {
	transcriptPath := app.youtube.TranscriptPath(item.ID)
	cached := FileExists(transcriptPath)

	text, err := app.source.Fetch(ctx, item)
	if err == nil {
		// A source other than the YouTube fetcher may not write the cache
		// file the transcribe phase reads from.
		if !FileExists(transcriptPath) {
			if err := SaveTranscript(item.ID, text, app.config.TranscriptsDir); err != nil {
				return nil, err
			}
		}
		source := "captions"
		if cached {
			source = "cache"
		}
		return Artifacts{"transcript": transcriptPath, "source": source}, nil
	}
	if !errors.Is(err, ErrNoTranscript) {
		return nil, err
	}

	if !app.config.FallbackWhisper {
		return nil, fmt.Errorf("%w and whisper fallback disabled", err)
	}

	audioFile, err := app.youtube.DownloadAudio(ctx, item)
	if err != nil {
		return nil, err
	}
	return Artifacts{"audio": audioFile, "source": "audio"}, nil
}

// transcribePhase turns the acquire artifacts into transcript text on disk.
// Caption-backed items pass through; audio goes through whisper.
func (app *App) transcribePhase(ctx context.Context, item WorkItem, prior map[string]Artifacts) (Artifacts, error) {
	acquired := prior[PhaseAcquire]

	if path, ok := acquired["transcript"]; ok {
		if !FileExists(path) {
			return nil, fmt.Errorf("%w: transcript artifact %s is missing", ErrNoTranscript, path)
		}
		return Artifacts{"transcript": path}, nil
	}

	audioFile, ok := acquired["audio"]
	if !ok {
		return nil, fmt.Errorf("%w: acquire phase produced neither transcript nor audio", ErrNoTranscript)
	}

	transcript, err := app.whisper.Transcribe(ctx, audioFile)
	if err != nil {
		return nil, err
	}
	if err := SaveTranscript(item.ID, transcript, app.config.TranscriptsDir); err != nil {
		return nil, err
	}
	cleanupFiles(audioFile)

	return Artifacts{"transcript": app.youtube.TranscriptPath(item.ID)}, nil
}

// analyzePhase runs segmentation and the summary passes over the transcript.
func (app *App) analyzePhase(ctx context.Context, item WorkItem, prior map[string]Artifacts) (Artifacts, error) {
	path, ok := prior[PhaseTranscribe]["transcript"]
	if !ok {
		return nil, fmt.Errorf("%w: transcribe phase recorded no transcript", ErrNoTranscript)
	}
	text, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading transcript: %w", err)
	}
	return app.analyzer.Analyze(ctx, item.ID, string(text))
}
