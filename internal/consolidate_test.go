package internal

import (
	"slices"
	"testing"
)

func wr(index int, span Span, topic string, continuesPrevious, continuesNext bool, points ...string) windowResult {
	return windowResult{
		windowIndex:       index,
		span:              span,
		topic:             topic,
		keyPoints:         points,
		subtopics:         []string{},
		importance:        ImportanceMedium,
		continuesPrevious: continuesPrevious,
		continuesNext:     continuesNext,
	}
}

func TestConsolidateMergesAdjacentContinuations(t *testing.T) {
	results := []windowResult{
		wr(0, Span{0, 100}, "Setup", false, true, "first point"),
		wr(1, Span{80, 180}, "Setup part two", true, true, "second point"),
		wr(2, Span{160, 260}, "Setup part three", true, false, "third point"),
		wr(3, Span{240, 300}, "Wrap up", false, false, "closing point"),
	}

	segments := consolidate(results, false)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2: %+v", len(segments), segments)
	}

	merged := segments[0]
	if merged.Topic != "Setup" {
		t.Errorf("merged topic = %q, want the first window's topic", merged.Topic)
	}
	if merged.Span != (Span{0, 260}) {
		t.Errorf("merged span = %+v, want [0,260)", merged.Span)
	}
	want := []string{"first point", "second point", "third point"}
	if len(merged.KeyPoints) != len(want) {
		t.Fatalf("merged key points = %v, want %v", merged.KeyPoints, want)
	}
	for i := range want {
		if merged.KeyPoints[i] != want[i] {
			t.Errorf("key point %d = %q, want %q (order preserved)", i, merged.KeyPoints[i], want[i])
		}
	}

	if segments[1].Span.Start != 260 {
		t.Errorf("second segment start = %d, want clamped to 260", segments[1].Span.Start)
	}
}

func TestConsolidateRequiresBothFlags(t *testing.T) {
	cases := []struct {
		name         string
		earlierNext  bool
		laterPrev    bool
		wantSegments int
	}{
		{"both set", true, true, 1},
		{"only continues_next", true, false, 2},
		{"only continues_previous", false, true, 2},
		{"neither", false, false, 2},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			results := []windowResult{
				wr(0, Span{0, 100}, "A", false, tc.earlierNext),
				wr(1, Span{80, 180}, "B", tc.laterPrev, false),
			}
			segments := consolidate(results, false)
			if len(segments) != tc.wantSegments {
				t.Errorf("got %d segments, want %d", len(segments), tc.wantSegments)
			}
		})
	}
}

func TestConsolidateGapBreaksContinuation(t *testing.T) {
	// Window 1 was dropped; 0 and 2 both carry continuation flags.
	results := []windowResult{
		wr(0, Span{0, 100}, "A", false, true),
		wr(2, Span{160, 260}, "A continued", true, false),
	}

	segments := consolidate(results, false)
	if len(segments) != 2 {
		t.Fatalf("bridgeGaps=false merged across a dropped window: %+v", segments)
	}
	// The dropped window's region stays uncovered.
	if segments[0].Span.End != 100 || segments[1].Span.Start != 160 {
		t.Errorf("spans = %+v and %+v, want a gap over [100,160)", segments[0].Span, segments[1].Span)
	}

	segments = consolidate(results, true)
	if len(segments) != 1 {
		t.Fatalf("bridgeGaps=true did not merge across the dropped window: %+v", segments)
	}
	if segments[0].Span != (Span{0, 260}) {
		t.Errorf("bridged span = %+v, want [0,260)", segments[0].Span)
	}
}

func TestConsolidateClampsOverlap(t *testing.T) {
	results := []windowResult{
		wr(0, Span{0, 100}, "A", false, false),
		wr(1, Span{80, 180}, "B", false, false),
	}
	segments := consolidate(results, false)
	if len(segments) != 2 {
		t.Fatalf("got %d segments, want 2", len(segments))
	}
	// The shared [80,100) region belongs to the earlier segment.
	if segments[0].Span != (Span{0, 100}) || segments[1].Span != (Span{100, 180}) {
		t.Errorf("spans = %+v and %+v, want [0,100) and [100,180)", segments[0].Span, segments[1].Span)
	}
}

func TestConsolidateFoldsContainedWindow(t *testing.T) {
	// A truncated final window [240,250) sits entirely inside the previous
	// segment once [160,250) has been emitted. It must not become an
	// empty-span segment; its points join the previous one.
	results := []windowResult{
		wr(0, Span{0, 100}, "One", false, false, "one p"),
		wr(1, Span{80, 180}, "Two", false, false, "two p"),
		wr(2, Span{160, 250}, "Three", false, false, "three p"),
		wr(3, Span{240, 250}, "Coda", false, false, "coda p"),
	}
	segments := consolidate(results, false)
	if len(segments) != 3 {
		t.Fatalf("got %d segments, want 3", len(segments))
	}
	last := segments[2]
	if last.Span != (Span{180, 250}) {
		t.Errorf("last span = %+v, want [180,250)", last.Span)
	}
	if want := []string{"three p", "coda p"}; !slices.Equal(last.KeyPoints, want) {
		t.Errorf("last key points = %v, want %v", last.KeyPoints, want)
	}
	for i, seg := range segments {
		if seg.Span.Start >= seg.Span.End {
			t.Errorf("segment %d has empty span %+v", i, seg.Span)
		}
	}
}

func TestCrossReferenceBackwardOnly(t *testing.T) {
	segments := []TopicSegment{
		{Topic: "Pricing", KeyPoints: []string{"the new pricing model"}, References: []Reference{}},
		{Topic: "Roadmap", KeyPoints: []string{"roadmap for next year"}, References: []Reference{}},
		{Topic: "Recap", KeyPoints: []string{"recap of the new pricing model"}, References: []Reference{}},
	}

	crossReference(segments)

	if len(segments[0].References) != 0 {
		t.Errorf("first segment has references %v, want none (nothing earlier)", segments[0].References)
	}
	if len(segments[1].References) != 0 {
		t.Errorf("unrelated segment has references %v, want none", segments[1].References)
	}
	if len(segments[2].References) != 1 {
		t.Fatalf("recap references = %v, want exactly one", segments[2].References)
	}
	ref := segments[2].References[0]
	if ref.Topic != "Pricing" || ref.Point != "recap of the new pricing model" {
		t.Errorf("reference = %+v, want Pricing via the recap point", ref)
	}
}

func TestCrossReferenceCaseInsensitive(t *testing.T) {
	segments := []TopicSegment{
		{Topic: "Kickoff", KeyPoints: []string{"Launch Plan"}, References: []Reference{}},
		{Topic: "Details", KeyPoints: []string{"more about the launch plan"}, References: []Reference{}},
	}
	crossReference(segments)
	if len(segments[1].References) != 1 {
		t.Errorf("references = %v, want one case-insensitive match", segments[1].References)
	}
}

func TestDedupeAdjacentSameTopic(t *testing.T) {
	segments := []TopicSegment{
		{Topic: "Intro", Span: Span{0, 100}, KeyPoints: []string{"a"}, Subtopics: []string{}, References: []Reference{}},
		{Topic: "Intro", Span: Span{100, 200}, KeyPoints: []string{"b"}, Subtopics: []string{}, References: []Reference{
			{Topic: "Intro", Point: "b"},
			{Topic: "Other", Point: "b"},
		}},
		{Topic: "Body", Span: Span{200, 300}, KeyPoints: []string{"c"}, Subtopics: []string{}, References: []Reference{}},
	}

	out := dedupeAdjacent(segments)
	if len(out) != 2 {
		t.Fatalf("got %d segments, want 2: %+v", len(out), out)
	}
	merged := out[0]
	if merged.Span != (Span{0, 200}) {
		t.Errorf("merged span = %+v, want [0,200)", merged.Span)
	}
	if len(merged.KeyPoints) != 2 {
		t.Errorf("merged key points = %v, want both", merged.KeyPoints)
	}
	// Self-references vanish with the merge; others survive.
	if len(merged.References) != 1 || merged.References[0].Topic != "Other" {
		t.Errorf("merged references = %v, want only the Other reference", merged.References)
	}
}

func TestDedupeAdjacentLeavesDistinctTopics(t *testing.T) {
	segments := []TopicSegment{
		{Topic: "A", Span: Span{0, 100}},
		{Topic: "B", Span: Span{100, 200}},
		{Topic: "A", Span: Span{200, 300}},
	}
	out := dedupeAdjacent(segments)
	if len(out) != 3 {
		t.Errorf("got %d segments, want 3 (non-adjacent repeats stay)", len(out))
	}
}

func TestConsolidateEmpty(t *testing.T) {
	if got := consolidate(nil, false); len(got) != 0 {
		t.Errorf("consolidate(nil) = %v, want empty", got)
	}
	if got := dedupeAdjacent(nil); got != nil {
		t.Errorf("dedupeAdjacent(nil) = %v, want nil", got)
	}
}
