package internal

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
)

// Importance grades how significant a topic segment is.
type Importance string

const (
	ImportanceHigh   Importance = "High"
	ImportanceMedium Importance = "Medium"
	ImportanceLow    Importance = "Low"
)

// Span is a half-open character range [Start, End) in the source transcript.
type Span struct {
	Start int `json:"start"`
	End   int `json:"end"`
}

// Reference records that a key point of a segment recalls an earlier topic.
type Reference struct {
	Topic string `json:"referenced_topic"`
	Point string `json:"triggering_point"`
}

// TopicSegment is a contiguous span of the transcript believed to discuss
// one topic. Final segments are ordered and non-overlapping.
type TopicSegment struct {
	Span       Span        `json:"span"`
	StartTime  string      `json:"start_time,omitempty"`
	EndTime    string      `json:"end_time,omitempty"`
	Topic      string      `json:"topic"`
	Subtopics  []string    `json:"subtopics"`
	KeyPoints  []string    `json:"key_points"`
	Importance Importance  `json:"importance"`
	References []Reference `json:"references"`
}

// windowResult is the parsed model output for one scan window. The
// continuation flags exist only to drive merge decisions during
// consolidation; results are discarded afterwards.
type windowResult struct {
	windowIndex       int
	span              Span
	topic             string
	startTime         string
	endTime           string
	subtopics         []string
	keyPoints         []string
	importance        Importance
	continuesPrevious bool
	continuesNext     bool
}

// SegmenterConfig holds sliding-window parameters.
type SegmenterConfig struct {
	// WindowSize is the window length in characters.
	WindowSize int
	// Overlap is how many characters consecutive windows share.
	// Must satisfy 0 <= Overlap < WindowSize.
	Overlap int
	// BridgeGaps allows continuation flags to merge segments across a
	// window that was dropped due to a generation or parse failure.
	BridgeGaps bool
}

// Segmenter converts an arbitrarily long transcript into an ordered list of
// topic segments using bounded-size generator calls. Windows are processed
// strictly in order: each window's prompt carries the previously accepted
// topic for continuity.
type Segmenter struct {
	gen     Generator
	cfg     SegmenterConfig
	prompts *PromptManager
	logger  *slog.Logger
}

// NewSegmenter validates the window configuration and builds a segmenter.
func NewSegmenter(gen Generator, cfg SegmenterConfig, prompts *PromptManager, logger *slog.Logger) (*Segmenter, error) {
	if cfg.WindowSize <= 0 {
		return nil, fmt.Errorf("window size must be positive, got %d", cfg.WindowSize)
	}
	if cfg.Overlap < 0 || cfg.Overlap >= cfg.WindowSize {
		return nil, fmt.Errorf("overlap must satisfy 0 <= overlap < window size, got overlap=%d window=%d", cfg.Overlap, cfg.WindowSize)
	}
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Segmenter{gen: gen, cfg: cfg, prompts: prompts, logger: logger}, nil
}

// Segment scans the transcript and returns the consolidated segment list.
func (s *Segmenter) Segment(ctx context.Context, transcript string) ([]TopicSegment, error) {
	return s.SegmentWithProgress(ctx, transcript, nil)
}

// SegmentWithProgress scans the transcript, updating the optional progress
// bar per window. Window-level failures (generation or parse) drop the
// window and continue; only cancellation aborts the scan.
func (s *Segmenter) SegmentWithProgress(ctx context.Context, transcript string, bar ProgressBar) ([]TopicSegment, error) {
	spans := windowSpans(len(transcript), s.cfg.WindowSize, s.cfg.Overlap)
	if bar != nil {
		defer bar.Finish()
	}

	var results []windowResult
	prevTopic := ""
	for i, span := range spans {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if bar != nil {
			bar.Set(i)
			bar.Describe(fmt.Sprintf("Scanning window %d/%d", i+1, len(spans)))
		}

		prompt, err := s.prompts.WindowPrompt(transcript[span.Start:span.End], prevTopic)
		if err != nil {
			return nil, fmt.Errorf("building window prompt: %w", err)
		}

		raw, err := s.gen.Generate(ctx, prompt)
		if err != nil {
			if ctx.Err() != nil {
				return nil, context.Cause(ctx)
			}
			s.logger.Warn("window generation failed, skipping window",
				"window", i, "start", span.Start, "end", span.End, "error", err)
			continue
		}

		result, err := parseWindowResponse(raw)
		if err != nil {
			s.logger.Warn("could not parse window response, skipping window",
				"window", i, "start", span.Start, "error", err)
			continue
		}
		result.windowIndex = i
		result.span = span
		results = append(results, result)
		prevTopic = result.topic

		s.logger.Debug("window accepted",
			"window", i, "topic", result.topic,
			"continues_previous", result.continuesPrevious,
			"continues_next", result.continuesNext)
	}

	segments := consolidate(results, s.cfg.BridgeGaps)
	crossReference(segments)
	segments = dedupeAdjacent(segments)
	return segments, nil
}

// windowSpans partitions a transcript of the given length into overlapping
// windows. The start advances by size-overlap; the final window is
// truncated to the transcript end.
func windowSpans(length, size, overlap int) []Span {
	if length <= 0 {
		return nil
	}
	step := size - overlap
	var spans []Span
	for pos := 0; pos < length; pos += step {
		spans = append(spans, Span{Start: pos, End: min(pos+size, length)})
	}
	return spans
}

// windowPayload is the JSON shape the model is asked to produce per window.
type windowPayload struct {
	Topic             string   `json:"topic"`
	StartTime         string   `json:"start_time"`
	EndTime           string   `json:"end_time"`
	Subtopics         []string `json:"subtopics"`
	KeyPoints         []string `json:"key_points"`
	Importance        string   `json:"importance"`
	ContinuesPrevious bool     `json:"continues_previous"`
	ContinuesNext     bool     `json:"continues_next"`
}

// parseWindowResponse extracts a structured record from raw model output.
// Model output is untrusted: markdown fences are stripped, a leading array
// is accepted (first element wins), missing lists default to empty and a
// missing importance defaults to Medium. A blank topic rejects the window.
func parseWindowResponse(raw string) (windowResult, error) {
	payloadText := extractJSONPayload(raw)
	if payloadText == "" {
		return windowResult{}, fmt.Errorf("%w: no JSON object found", ErrMalformedModelOutput)
	}

	var payload windowPayload
	if strings.HasPrefix(payloadText, "[") {
		var list []windowPayload
		if err := json.Unmarshal([]byte(payloadText), &list); err != nil {
			return windowResult{}, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
		}
		if len(list) == 0 {
			return windowResult{}, fmt.Errorf("%w: empty array", ErrMalformedModelOutput)
		}
		payload = list[0]
	} else if err := json.Unmarshal([]byte(payloadText), &payload); err != nil {
		return windowResult{}, fmt.Errorf("%w: %v", ErrMalformedModelOutput, err)
	}

	topic := strings.TrimSpace(payload.Topic)
	if topic == "" {
		return windowResult{}, fmt.Errorf("%w: missing topic", ErrMalformedModelOutput)
	}

	return windowResult{
		topic:             topic,
		startTime:         strings.TrimSpace(payload.StartTime),
		endTime:           strings.TrimSpace(payload.EndTime),
		subtopics:         emptyIfNil(payload.Subtopics),
		keyPoints:         emptyIfNil(payload.KeyPoints),
		importance:        normalizeImportance(payload.Importance),
		continuesPrevious: payload.ContinuesPrevious,
		continuesNext:     payload.ContinuesNext,
	}, nil
}

// extractJSONPayload strips code fences and surrounding prose, returning
// the first JSON object or array in the text.
func extractJSONPayload(raw string) string {
	text := strings.TrimSpace(raw)
	if after, ok := strings.CutPrefix(text, "```json"); ok {
		text = after
	} else if after, ok := strings.CutPrefix(text, "```"); ok {
		text = after
	}
	text = strings.TrimSuffix(strings.TrimSpace(text), "```")
	text = strings.TrimSpace(text)

	objStart := strings.IndexAny(text, "{[")
	if objStart < 0 {
		return ""
	}
	var closer string
	if text[objStart] == '{' {
		closer = "}"
	} else {
		closer = "]"
	}
	objEnd := strings.LastIndex(text, closer)
	if objEnd <= objStart {
		return ""
	}
	return text[objStart : objEnd+1]
}

func normalizeImportance(value string) Importance {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high":
		return ImportanceHigh
	case "low":
		return ImportanceLow
	default:
		return ImportanceMedium
	}
}

func emptyIfNil(list []string) []string {
	if list == nil {
		return []string{}
	}
	return list
}
