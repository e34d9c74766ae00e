package internal

import (
	"errors"
	"fmt"
)

// Sentinel errors shared across the pipeline.
var (
	// ErrSkippedPreviousFailure signals that an item was not attempted
	// because a prior run recorded a failure and retry was not requested.
	// It is an orchestration result, not a phase failure.
	ErrSkippedPreviousFailure = errors.New("skipped: previous run failed (use --retry-failed to retry)")

	// ErrMalformedModelOutput marks a window response whose structure could
	// not be parsed. Always recoverable at window granularity.
	ErrMalformedModelOutput = errors.New("malformed model output")

	// ErrNoTranscript indicates that no captions or cached transcript were
	// available for a video and the whisper fallback was not enabled.
	ErrNoTranscript = errors.New("no transcript available")

	// ErrStoreLocked indicates another process holds the pipeline store.
	ErrStoreLocked = errors.New("pipeline store is locked by another process")
)

// FetchError wraps a failure from the transcript source collaborator.
type FetchError struct {
	Ref string
	Err error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("fetching transcript for %s: %v", e.Ref, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// GenerationError wraps a single failed Generator invocation.
type GenerationError struct {
	Op  string
	Err error
}

func (e *GenerationError) Error() string {
	return fmt.Sprintf("generation failed (%s): %v", e.Op, e.Err)
}

func (e *GenerationError) Unwrap() error { return e.Err }
