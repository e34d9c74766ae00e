package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/lrstanley/go-ytdlp"
)

// TranscriptSource yields raw transcript text for a work item. How the text
// is obtained (captions, speech-to-text) is the collaborator's concern.
type TranscriptSource interface {
	Fetch(ctx context.Context, item WorkItem) (string, error)
}

// VideoMetadata contains YouTube video information.
type VideoMetadata struct {
	Title       string    `json:"title"`
	Description string    `json:"description"`
	Channel     string    `json:"channel"`
	Duration    float64   `json:"duration"`
	HasCaptions bool      `json:"has_captions"`
	CachedAt    time.Time `json:"cached_at,omitempty"`
}

// YouTube wraps yt-dlp for metadata, caption and audio acquisition.
// Fetched transcripts and metadata are cached under the transcripts
// directory keyed by video ID.
type YouTube struct {
	cacheDir       string
	transcriptsDir string
	logger         *slog.Logger
}

// NewYouTube creates a YouTube acquirer.
func NewYouTube(cacheDir, transcriptsDir string, logger *slog.Logger) *YouTube {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &YouTube{cacheDir: cacheDir, transcriptsDir: transcriptsDir, logger: logger}
}

// Metadata fetches video details, using the cached copy when present.
func (yt *YouTube) Metadata(ctx context.Context, item WorkItem) (*VideoMetadata, error) {
	if cached, err := yt.loadCachedMetadata(item.ID); err == nil {
		yt.logger.Debug("using cached metadata", "item", item.ID)
		return cached, nil
	}

	dl := ytdlp.New().
		DumpSingleJSON().
		NoPlaylist().
		SkipDownload()

	result, err := dl.Run(ctx, item.SourceURL)
	if err != nil {
		return nil, &FetchError{Ref: item.ID, Err: fmt.Errorf("extracting metadata: %w", err)}
	}

	var rawData map[string]any
	if err := json.Unmarshal([]byte(result.Stdout), &rawData); err != nil {
		return nil, &FetchError{Ref: item.ID, Err: fmt.Errorf("parsing metadata: %w", err)}
	}
	var metadata VideoMetadata
	if err := json.Unmarshal([]byte(result.Stdout), &metadata); err != nil {
		return nil, &FetchError{Ref: item.ID, Err: fmt.Errorf("parsing metadata: %w", err)}
	}
	metadata.HasCaptions = hasSubtitles(rawData)

	if err := yt.saveMetadata(item.ID, &metadata); err != nil {
		yt.logger.Warn("failed to cache metadata", "item", item.ID, "error", err)
	}
	return &metadata, nil
}

// MetadataPath returns the cache location of an item's metadata.
func (yt *YouTube) MetadataPath(id string) string {
	return filepath.Join(yt.transcriptsDir, id+".meta.json")
}

// TranscriptPath returns the cache location of an item's transcript.
func (yt *YouTube) TranscriptPath(id string) string {
	return filepath.Join(yt.transcriptsDir, id+".txt")
}

func (yt *YouTube) loadCachedMetadata(id string) (*VideoMetadata, error) {
	data, err := os.ReadFile(yt.MetadataPath(id))
	if err != nil {
		return nil, err
	}
	var metadata VideoMetadata
	if err := json.Unmarshal(data, &metadata); err != nil {
		return nil, fmt.Errorf("parsing metadata cache: %w", err)
	}
	return &metadata, nil
}

func (yt *YouTube) saveMetadata(id string, metadata *VideoMetadata) error {
	if err := EnsureDirs(yt.transcriptsDir); err != nil {
		return err
	}
	metadata.CachedAt = time.Now()
	data, err := json.MarshalIndent(metadata, "", "  ")
	if err != nil {
		return fmt.Errorf("marshaling metadata: %w", err)
	}
	return os.WriteFile(yt.MetadataPath(id), data, 0644)
}

// DownloadAudio fetches the best audio track as mp3 into the cache
// directory and returns its path.
func (yt *YouTube) DownloadAudio(ctx context.Context, item WorkItem) (string, error) {
	if err := EnsureDirs(yt.cacheDir); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	outputPath := filepath.Join(yt.cacheDir, "%(id)s.%(ext)s")
	dl := ytdlp.New().
		Format("bestaudio").
		ExtractAudio().
		AudioFormat("mp3").
		AudioQuality("10").
		Output(outputPath)

	result, err := dl.Run(ctx, item.SourceURL)
	if err != nil {
		return "", &FetchError{Ref: item.ID, Err: fmt.Errorf("downloading audio: %w (output: %s)", err, result.Stderr)}
	}

	return filepath.Join(yt.cacheDir, item.ID+".mp3"), nil
}

// Fetch implements TranscriptSource: the cached transcript when one exists,
// otherwise a fresh caption fetch. Items without captions return
// ErrNoTranscript; speech-to-text fallback is the caller's concern.
func (yt *YouTube) Fetch(ctx context.Context, item WorkItem) (string, error) {
	path := yt.TranscriptPath(item.ID)
	if FileExists(path) {
		text, err := os.ReadFile(path)
		if err != nil {
			return "", fmt.Errorf("reading cached transcript: %w", err)
		}
		yt.logger.Debug("using cached transcript", "item", item.ID, "path", path)
		return string(text), nil
	}

	metadata, err := yt.Metadata(ctx, item)
	if err != nil {
		return "", err
	}
	if !metadata.HasCaptions {
		return "", fmt.Errorf("%w: no captions for %s", ErrNoTranscript, item.ID)
	}
	return yt.FetchCaptions(ctx, item)
}

// FetchCaptions downloads the video's English captions, converts them to
// plain text and caches the result. Fails when no captions exist.
func (yt *YouTube) FetchCaptions(ctx context.Context, item WorkItem) (string, error) {
	if err := EnsureDirs(yt.cacheDir); err != nil {
		return "", fmt.Errorf("creating cache directory: %w", err)
	}

	dl := ytdlp.New().
		WriteSubs().
		WriteAutoSubs().
		SubLangs("en").
		ConvertSubs("srt").
		SkipDownload().
		Output(filepath.Join(yt.cacheDir, "%(id)s"))

	if _, err := dl.Run(ctx, item.SourceURL); err != nil {
		return "", &FetchError{Ref: item.ID, Err: fmt.Errorf("downloading subtitles: %w", err)}
	}

	srtPath, err := yt.findSubtitleFile(item.ID)
	if err != nil {
		return "", &FetchError{Ref: item.ID, Err: err}
	}

	text, err := yt.processSrt(srtPath, item.ID)
	if err != nil {
		return "", &FetchError{Ref: item.ID, Err: err}
	}
	return text, nil
}

func (yt *YouTube) findSubtitleFile(id string) (string, error) {
	entries, err := os.ReadDir(yt.cacheDir)
	if err != nil {
		return "", fmt.Errorf("reading cache directory: %w", err)
	}
	for _, entry := range entries {
		name := entry.Name()
		if strings.HasPrefix(name, id) && strings.HasSuffix(name, ".srt") {
			return filepath.Join(yt.cacheDir, name), nil
		}
	}
	return "", fmt.Errorf("no subtitle files found after download")
}

// processSrt converts an SRT file to clean plain text, caches it under the
// transcripts directory and removes the SRT from the cache.
func (yt *YouTube) processSrt(srtPath, id string) (string, error) {
	content, err := os.ReadFile(srtPath)
	if err != nil {
		return "", fmt.Errorf("reading SRT file: %w", err)
	}

	lines := dedupeConsecutive(parseSRT(string(content)))
	text := strings.TrimSpace(strings.Join(lines, "\n"))

	if err := SaveTranscript(id, text, yt.transcriptsDir); err != nil {
		return "", err
	}
	if err := os.Remove(srtPath); err != nil {
		yt.logger.Warn("failed to remove SRT file from cache", "path", srtPath, "error", err)
	}

	return text, nil
}

// parseSRT extracts text content from SRT blocks, skipping sequence
// numbers and timestamps.
func parseSRT(content string) []string {
	var lines []string
	for block := range strings.SplitSeq(content, "\n\n") {
		blockLines := strings.Split(block, "\n")
		if len(blockLines) < 3 {
			continue
		}
		for _, line := range blockLines[2:] {
			if trimmed := strings.TrimSpace(line); trimmed != "" {
				lines = append(lines, trimmed)
			}
		}
	}
	return lines
}

// dedupeConsecutive drops lines repeated by rolling auto-captions.
func dedupeConsecutive(lines []string) []string {
	result := make([]string, 0, len(lines))
	prev := ""
	for _, line := range lines {
		duplicate := prev != "" && (strings.Contains(line, prev) || strings.Contains(prev, line))
		if !duplicate {
			result = append(result, line)
		}
		prev = line
	}
	return result
}

func hasSubtitles(rawData map[string]any) bool {
	if subtitles, ok := rawData["subtitles"].(map[string]any); ok && len(subtitles) > 0 {
		return true
	}
	if autoCaptions, ok := rawData["automatic_captions"].(map[string]any); ok && len(autoCaptions) > 0 {
		return true
	}
	return false
}
