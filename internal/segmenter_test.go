package internal

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"strings"
	"testing"
)

// scriptedGenerator returns canned responses in order, one per call.
type scriptedGenerator struct {
	responses []string
	errs      []error
	calls     int
	prompts   []string
}

func (g *scriptedGenerator) Generate(ctx context.Context, prompt string) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	i := g.calls
	g.calls++
	g.prompts = append(g.prompts, prompt)
	if i < len(g.errs) && g.errs[i] != nil {
		return "", g.errs[i]
	}
	if i < len(g.responses) {
		return g.responses[i], nil
	}
	return "", fmt.Errorf("unexpected call %d", i)
}

func windowJSON(topic string, continuesPrevious, continuesNext bool) string {
	return fmt.Sprintf(`{
		"topic": %q,
		"start_time": "00:00", "end_time": "01:00",
		"subtopics": ["%s sub"], "key_points": ["%s point"],
		"importance": "High",
		"continues_previous": %t, "continues_next": %t
	}`, topic, topic, topic, continuesPrevious, continuesNext)
}

func newTestSegmenter(t *testing.T, gen Generator, cfg SegmenterConfig) *Segmenter {
	t.Helper()
	prompts := NewPromptManager(t.TempDir(), "W:{{.Window}}|P:{{.PreviousTopic}}")
	seg, err := NewSegmenter(gen, cfg, prompts, NewNopLogger())
	if err != nil {
		t.Fatalf("NewSegmenter: %v", err)
	}
	return seg
}

func TestNewSegmenterValidation(t *testing.T) {
	prompts := NewPromptManager(t.TempDir(), "{{.Window}}")
	cases := []struct {
		name string
		cfg  SegmenterConfig
	}{
		{"zero window", SegmenterConfig{WindowSize: 0, Overlap: 0}},
		{"negative window", SegmenterConfig{WindowSize: -1, Overlap: 0}},
		{"negative overlap", SegmenterConfig{WindowSize: 100, Overlap: -1}},
		{"overlap equals window", SegmenterConfig{WindowSize: 100, Overlap: 100}},
		{"overlap exceeds window", SegmenterConfig{WindowSize: 100, Overlap: 150}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			if _, err := NewSegmenter(GeneratorFunc(func(context.Context, string) (string, error) {
				return "", nil
			}), tc.cfg, prompts, nil); err == nil {
				t.Errorf("NewSegmenter(%+v) accepted invalid config", tc.cfg)
			}
		})
	}
}

func TestWindowSpans(t *testing.T) {
	spans := windowSpans(10000, 4000, 800)
	wantStarts := []int{0, 3200, 6400, 9600}
	if len(spans) != len(wantStarts) {
		t.Fatalf("got %d windows, want %d: %v", len(spans), len(wantStarts), spans)
	}
	for i, span := range spans {
		if span.Start != wantStarts[i] {
			t.Errorf("window %d start = %d, want %d", i, span.Start, wantStarts[i])
		}
		wantEnd := min(span.Start+4000, 10000)
		if span.End != wantEnd {
			t.Errorf("window %d end = %d, want %d", i, span.End, wantEnd)
		}
	}

	if got := windowSpans(0, 4000, 800); got != nil {
		t.Errorf("empty transcript produced windows: %v", got)
	}
	if got := windowSpans(100, 4000, 800); len(got) != 1 || got[0].End != 100 {
		t.Errorf("short transcript spans = %v, want one truncated window", got)
	}
}

func TestSegmentCarriesPreviousTopic(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		windowJSON("Intro", false, false),
		windowJSON("Main theme", false, false),
	}}
	seg := newTestSegmenter(t, gen, SegmenterConfig{WindowSize: 100, Overlap: 20})

	transcript := strings.Repeat("a", 160)
	if _, err := seg.Segment(context.Background(), transcript); err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(gen.prompts) != 2 {
		t.Fatalf("generator called %d times, want 2", len(gen.prompts))
	}
	if !strings.HasSuffix(gen.prompts[0], "|P:") {
		t.Errorf("first prompt carried a previous topic: %q", gen.prompts[0])
	}
	if !strings.HasSuffix(gen.prompts[1], "|P:Intro") {
		t.Errorf("second prompt = %q, want previous topic Intro", gen.prompts[1])
	}
}

func TestSegmentMergesContinuations(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		windowJSON("Opening", false, true),
		windowJSON("Opening continued", true, false),
		windowJSON("Closing", false, false),
	}}
	seg := newTestSegmenter(t, gen, SegmenterConfig{WindowSize: 100, Overlap: 20})

	transcript := strings.Repeat("a", 250)
	segments, err := seg.Segment(context.Background(), transcript)
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2 (first two windows merged): %+v", len(segments), segments)
	}

	merged := segments[0]
	if merged.Topic != "Opening" {
		t.Errorf("merged topic = %q, want the earlier window's topic", merged.Topic)
	}
	if merged.Span.Start != 0 || merged.Span.End != 180 {
		t.Errorf("merged span = %+v, want [0,180)", merged.Span)
	}
	wantPoints := []string{"Opening point", "Opening continued point"}
	if len(merged.KeyPoints) != 2 || merged.KeyPoints[0] != wantPoints[0] || merged.KeyPoints[1] != wantPoints[1] {
		t.Errorf("merged key points = %v, want %v in order", merged.KeyPoints, wantPoints)
	}
}

func TestSegmentsNeverOverlap(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		windowJSON("One", false, false),
		windowJSON("Two", false, false),
		windowJSON("Three", false, false),
	}}
	seg := newTestSegmenter(t, gen, SegmenterConfig{WindowSize: 100, Overlap: 20})

	segments, err := seg.Segment(context.Background(), strings.Repeat("a", 250))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	for i := 1; i < len(segments); i++ {
		if segments[i].Span.Start < segments[i-1].Span.End {
			t.Errorf("segment %d [%d,%d) overlaps previous [%d,%d)",
				i, segments[i].Span.Start, segments[i].Span.End,
				segments[i-1].Span.Start, segments[i-1].Span.End)
		}
	}
	if segments[0].Span.Start != 0 {
		t.Errorf("first segment starts at %d, want 0", segments[0].Span.Start)
	}
	if last := segments[len(segments)-1]; last.Span.End != 250 {
		t.Errorf("last segment ends at %d, want 250", last.Span.End)
	}
}

func TestSegmentContainedFinalWindow(t *testing.T) {
	// 250 chars with size 100 and overlap 20 scan at 0, 80, 160 and 240;
	// the final window [240,250) lies inside the segment built from
	// [160,250). All four responses parse, yet no empty-span segment may
	// come out, and the final window's points survive in the last segment.
	gen := &scriptedGenerator{responses: []string{
		windowJSON("One", false, false),
		windowJSON("Two", false, false),
		windowJSON("Three", false, false),
		windowJSON("Coda", false, false),
	}}
	seg := newTestSegmenter(t, gen, SegmenterConfig{WindowSize: 100, Overlap: 20})

	segments, err := seg.Segment(context.Background(), strings.Repeat("a", 250))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if gen.calls != 4 {
		t.Fatalf("generator called %d times, want 4", gen.calls)
	}
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	for i, s := range segments {
		if s.Span.Start >= s.Span.End {
			t.Errorf("segment %d %q has empty span [%d,%d)", i, s.Topic, s.Span.Start, s.Span.End)
		}
	}
	last := segments[2]
	if last.Span.End != 250 {
		t.Errorf("last segment ends at %d, want 250", last.Span.End)
	}
	if !slices.Contains(last.KeyPoints, "Coda point") {
		t.Errorf("last segment key points = %v, missing folded point", last.KeyPoints)
	}
}

func TestSegmentSkipsMalformedWindow(t *testing.T) {
	gen := &scriptedGenerator{responses: []string{
		windowJSON("One", false, false),
		"this is not JSON at all",
		windowJSON("Three", false, false),
	}}
	seg := newTestSegmenter(t, gen, SegmenterConfig{WindowSize: 100, Overlap: 20})

	segments, err := seg.Segment(context.Background(), strings.Repeat("a", 250))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2 (middle window dropped): %+v", len(segments), segments)
	}
	// A dropped window leaves a gap, never an overlap.
	if segments[1].Span.Start != 160 {
		t.Errorf("second segment start = %d, want 160 (third window, gap after first segment)", segments[1].Span.Start)
	}
	if segments[1].Span.Start < segments[0].Span.End {
		t.Errorf("segments overlap: [%d,%d) then [%d,%d)",
			segments[0].Span.Start, segments[0].Span.End, segments[1].Span.Start, segments[1].Span.End)
	}
}

func TestSegmentSkipsFailedGeneration(t *testing.T) {
	gen := &scriptedGenerator{
		responses: []string{windowJSON("One", false, false), "", windowJSON("Three", false, false)},
		errs:      []error{nil, errors.New("rate limited"), nil},
	}
	seg := newTestSegmenter(t, gen, SegmenterConfig{WindowSize: 100, Overlap: 20})

	segments, err := seg.Segment(context.Background(), strings.Repeat("a", 250))
	if err != nil {
		t.Fatalf("Segment: %v", err)
	}
	if len(segments) != 2 {
		t.Errorf("got %d segments, want 2 (failed window dropped)", len(segments))
	}
}

func TestSegmentCancellationAborts(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	calls := 0
	gen := GeneratorFunc(func(ctx context.Context, prompt string) (string, error) {
		calls++
		cancel()
		return "", ctx.Err()
	})
	seg := newTestSegmenter(t, gen, SegmenterConfig{WindowSize: 100, Overlap: 20})

	_, err := seg.Segment(ctx, strings.Repeat("a", 500))
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("err = %v, want context.Canceled", err)
	}
	if calls != 1 {
		t.Errorf("generator called %d times after cancellation, want 1", calls)
	}
}

func TestParseWindowResponse(t *testing.T) {
	t.Run("fenced json", func(t *testing.T) {
		raw := "```json\n" + windowJSON("Fenced", false, false) + "\n```"
		result, err := parseWindowResponse(raw)
		if err != nil {
			t.Fatalf("parseWindowResponse: %v", err)
		}
		if result.topic != "Fenced" {
			t.Errorf("topic = %q, want Fenced", result.topic)
		}
	})

	t.Run("array takes first element", func(t *testing.T) {
		raw := "[" + windowJSON("First", false, false) + "," + windowJSON("Second", false, false) + "]"
		result, err := parseWindowResponse(raw)
		if err != nil {
			t.Fatalf("parseWindowResponse: %v", err)
		}
		if result.topic != "First" {
			t.Errorf("topic = %q, want First", result.topic)
		}
	})

	t.Run("surrounding prose", func(t *testing.T) {
		raw := "Here is the analysis:\n" + windowJSON("Prose", true, false) + "\nHope this helps!"
		result, err := parseWindowResponse(raw)
		if err != nil {
			t.Fatalf("parseWindowResponse: %v", err)
		}
		if result.topic != "Prose" || !result.continuesPrevious {
			t.Errorf("result = %+v, want Prose with continues_previous", result)
		}
	})

	t.Run("defaults", func(t *testing.T) {
		result, err := parseWindowResponse(`{"topic": "Bare"}`)
		if err != nil {
			t.Fatalf("parseWindowResponse: %v", err)
		}
		if result.importance != ImportanceMedium {
			t.Errorf("importance = %q, want Medium default", result.importance)
		}
		if result.keyPoints == nil || result.subtopics == nil {
			t.Error("missing lists should default to empty, not nil")
		}
	})

	t.Run("rejections", func(t *testing.T) {
		for _, raw := range []string{
			"no json here",
			`{"topic": "   "}`,
			`{"topic": ""}`,
			"[]",
			`{"topic": broken`,
		} {
			if _, err := parseWindowResponse(raw); !errors.Is(err, ErrMalformedModelOutput) {
				t.Errorf("parseWindowResponse(%q) err = %v, want ErrMalformedModelOutput", raw, err)
			}
		}
	})
}

func TestNormalizeImportance(t *testing.T) {
	cases := map[string]Importance{
		"High":    ImportanceHigh,
		"high":    ImportanceHigh,
		" LOW ":   ImportanceLow,
		"Medium":  ImportanceMedium,
		"":        ImportanceMedium,
		"extreme": ImportanceMedium,
	}
	for in, want := range cases {
		if got := normalizeImportance(in); got != want {
			t.Errorf("normalizeImportance(%q) = %q, want %q", in, got, want)
		}
	}
}
