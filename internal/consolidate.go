package internal

import "strings"

// consolidate turns raw per-window candidates into an ordered list of
// non-overlapping segments. Two consecutive candidates merge when the
// earlier one flagged continues_next and the later one continues_previous;
// merging concatenates key points and subtopics in order (no dedup) and
// extends the span. With bridgeGaps false, a candidate only merges into a
// segment whose last window was the immediately preceding scan window, so
// a dropped window always breaks continuation.
func consolidate(results []windowResult, bridgeGaps bool) []TopicSegment {
	segments := make([]TopicSegment, 0, len(results))

	var current *TopicSegment
	currentContinuesNext := false
	lastWindow := -1
	prevEnd := 0

	closeCurrent := func() {
		if current != nil {
			prevEnd = current.Span.End
			segments = append(segments, *current)
			current = nil
		}
	}

	for _, r := range results {
		adjacent := r.windowIndex == lastWindow+1
		if current != nil && currentContinuesNext && r.continuesPrevious && (adjacent || bridgeGaps) {
			current.Span.End = r.span.End
			current.EndTime = r.endTime
			current.KeyPoints = append(current.KeyPoints, r.keyPoints...)
			current.Subtopics = append(current.Subtopics, r.subtopics...)
			currentContinuesNext = r.continuesNext
			lastWindow = r.windowIndex
			continue
		}

		closeCurrent()

		// Overlapping window regions are attributed to the earlier segment;
		// a dropped window leaves a gap, never an overlap.
		start := max(r.span.Start, prevEnd)

		// A truncated final window can sit entirely inside the previous
		// segment's span. Clamping would leave an empty span, so its points
		// fold into that segment instead of becoming a segment of their own.
		if start >= r.span.End {
			if n := len(segments); n > 0 {
				segments[n-1].KeyPoints = append(segments[n-1].KeyPoints, r.keyPoints...)
				segments[n-1].Subtopics = append(segments[n-1].Subtopics, r.subtopics...)
			}
			lastWindow = r.windowIndex
			continue
		}

		current = &TopicSegment{
			Span:       Span{Start: start, End: r.span.End},
			StartTime:  r.startTime,
			EndTime:    r.endTime,
			Topic:      r.topic,
			Subtopics:  append([]string(nil), r.subtopics...),
			KeyPoints:  append([]string(nil), r.keyPoints...),
			Importance: r.importance,
			References: []Reference{},
		}
		currentContinuesNext = r.continuesNext
		lastWindow = r.windowIndex
	}
	closeCurrent()

	return segments
}

// crossReference links each segment's key points back to strictly earlier
// segments whose key points overlap as case-insensitive substrings. At most
// one reference is added per (point, earlier segment) pair. References only
// ever point backward. Quadratic in segments, which stays small relative to
// transcript windows.
func crossReference(segments []TopicSegment) {
	for i := range segments {
		for _, point := range segments[i].KeyPoints {
			for j := 0; j < i; j++ {
				if keyPointsOverlap(segments[j].KeyPoints, point) {
					segments[i].References = append(segments[i].References, Reference{
						Topic: segments[j].Topic,
						Point: point,
					})
				}
			}
		}
	}
}

func keyPointsOverlap(earlier []string, point string) bool {
	p := strings.ToLower(strings.TrimSpace(point))
	if p == "" {
		return false
	}
	for _, q := range earlier {
		q = strings.ToLower(strings.TrimSpace(q))
		if q == "" {
			continue
		}
		if strings.Contains(p, q) || strings.Contains(q, p) {
			return true
		}
	}
	return false
}

// dedupeAdjacent collapses immediately adjacent segments with an identical
// topic string into one: the model sometimes re-emits the same label across
// a window boundary without setting continuation flags. The merged segment
// keeps the first start and extends to the later end; references into the
// merged topic itself are dropped.
func dedupeAdjacent(segments []TopicSegment) []TopicSegment {
	if len(segments) == 0 {
		return segments
	}

	out := segments[:1]
	for _, seg := range segments[1:] {
		last := &out[len(out)-1]
		if seg.Topic == last.Topic {
			last.Span.End = seg.Span.End
			last.EndTime = seg.EndTime
			last.KeyPoints = append(last.KeyPoints, seg.KeyPoints...)
			last.Subtopics = append(last.Subtopics, seg.Subtopics...)
			for _, ref := range seg.References {
				if ref.Topic != last.Topic {
					last.References = append(last.References, ref)
				}
			}
			continue
		}
		out = append(out, seg)
	}
	return out
}
