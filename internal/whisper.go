package internal

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"os"
	"strings"
	"sync"
	"time"
)

// WhisperTranscriber produces transcripts from audio files via OpenAI's
// Whisper API, splitting files that exceed the upload limit. Chunks are
// transcribed sequentially.
type WhisperTranscriber struct {
	client     OpenAIClientInterface
	audio      *Audio
	limit      int64
	timeout    time.Duration
	apiKey     string
	clientOnce sync.Once
	logger     *slog.Logger
}

// NewWhisperTranscriber creates a transcriber with lazy client
// initialization.
func NewWhisperTranscriber(apiKey string, audio *Audio, limit int64, timeout time.Duration, logger *slog.Logger) *WhisperTranscriber {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &WhisperTranscriber{
		audio:   audio,
		limit:   limit,
		timeout: timeout,
		apiKey:  apiKey,
		logger:  logger,
	}
}

// NewWhisperTranscriberWithClient creates a transcriber over an existing
// client.
func NewWhisperTranscriberWithClient(client OpenAIClientInterface, audio *Audio, limit int64, timeout time.Duration, logger *slog.Logger) *WhisperTranscriber {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &WhisperTranscriber{
		client:  client,
		audio:   audio,
		limit:   limit,
		timeout: timeout,
		logger:  logger,
	}
}

func (w *WhisperTranscriber) ensureClient() error {
	if w.client != nil {
		return nil
	}
	if err := ValidateOpenAIAPIKey(w.apiKey); err != nil {
		return err
	}
	w.clientOnce.Do(func() {
		w.client = NewOpenAIClient(w.apiKey)
	})
	return nil
}

// Transcribe transcribes an audio file, chunking first when it exceeds the
// Whisper upload limit. Chunk files (and the source, when chunked) are
// removed afterwards.
func (w *WhisperTranscriber) Transcribe(ctx context.Context, audioFile string) (string, error) {
	if err := w.ensureClient(); err != nil {
		return "", err
	}

	if w.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, w.timeout)
		defer cancel()
	}

	info, err := os.Stat(audioFile)
	if err != nil {
		return "", fmt.Errorf("getting audio file info: %w", err)
	}

	numChunks := int(math.Ceil(float64(info.Size()) / float64(w.limit)))
	chunks := []string{audioFile}
	if numChunks > 1 {
		chunks, err = w.audio.Split(ctx, audioFile, numChunks)
		if err != nil {
			return "", fmt.Errorf("splitting audio: %w", err)
		}
	}

	defer func() {
		cleanupFiles(chunks...)
		if len(chunks) > 1 {
			cleanupFiles(audioFile)
		}
	}()

	transcript, err := w.transcribeChunks(ctx, chunks)
	if err != nil {
		return "", fmt.Errorf("transcribing audio: %w", err)
	}
	return transcript, nil
}

// transcribeChunks transcribes chunks sequentially: concurrent Whisper
// uploads have produced broken transcripts.
func (w *WhisperTranscriber) transcribeChunks(ctx context.Context, chunks []string) (string, error) {
	var sb strings.Builder
	for i, chunkPath := range chunks {
		file, err := os.Open(chunkPath)
		if err != nil {
			return "", fmt.Errorf("opening chunk %s: %w", chunkPath, err)
		}

		text, err := w.client.CreateTranscription(ctx, file)
		if closeErr := file.Close(); closeErr != nil {
			w.logger.Warn("failed to close chunk file", "path", chunkPath, "error", closeErr)
		}
		if err != nil {
			return "", fmt.Errorf("transcribing chunk %d: %w", i+1, err)
		}

		sb.WriteString(text)
		if i < len(chunks)-1 {
			sb.WriteString("\n")
		}
		w.logger.Debug("transcribed chunk", "chunk", i+1, "total", len(chunks))
	}
	return sb.String(), nil
}
