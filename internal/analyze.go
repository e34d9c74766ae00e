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
)

// summaryChunkSize bounds the text fed into a single detailed-summary call,
// in characters. Chunking preserves paragraph boundaries.
const summaryChunkSize = 1024

const detailedSummaryPrompt = `Create a detailed summary of the following text. Include key points, important quotes, and maintain any timestamp references. Focus on preserving the most valuable insights and concrete information:

%s`

const bulletPointsPrompt = `Create a hierarchical bullet-point summary of the following text. Focus on:
- Main themes and key insights
- Supporting points and evidence
- Unique or particularly valuable ideas
- Practical applications or implications

Format with clear headers and subpoints:

%s`

const keyInsightsPrompt = `Analyze these summaries to identify the 3-5 most valuable and unique insights. Consider:
1. What makes these insights particularly valuable?
2. How do they connect to broader themes?
3. What practical implications do they have?

Text:
%s

Bullet Points:
%s`

const executiveSummaryPrompt = `Create a compelling 500-word executive summary that:
1. Introduces the main topic and its importance
2. Highlights the key insights and their significance
3. Provides a clear conclusion and implications

Base this on:
%s`

// Analyzer runs topic segmentation and the layered summarization passes over
// a transcript, writing everything into a per-item analysis directory.
type Analyzer struct {
	gen         Generator
	segmenter   *Segmenter
	analysisDir string
	ui          UIManager
	logger      *slog.Logger
}

func NewAnalyzer(gen Generator, segmenter *Segmenter, analysisDir string, ui UIManager, logger *slog.Logger) *Analyzer {
	if logger == nil {
		logger = NewNopLogger()
	}
	return &Analyzer{gen: gen, segmenter: segmenter, analysisDir: analysisDir, ui: ui, logger: logger}
}

// Analyze segments the transcript and produces the summary files. Unlike
// window failures inside the segmenter, a failed summary pass fails the
// whole analysis.
func (a *Analyzer) Analyze(ctx context.Context, id, transcript string) (Artifacts, error) {
	outDir := filepath.Join(a.analysisDir, id)
	if err := EnsureDirs(outDir); err != nil {
		return nil, fmt.Errorf("creating analysis directory: %w", err)
	}

	var bar ProgressBar
	if a.ui != nil {
		bar = a.ui.NewSpinner("Scanning topics")
	}
	segments, err := a.segmenter.SegmentWithProgress(ctx, transcript, bar)
	if err != nil {
		return nil, fmt.Errorf("segmenting transcript: %w", err)
	}
	a.logger.Info("segmentation complete", "item", id, "segments", len(segments))

	if err := a.writeSegments(outDir, segments); err != nil {
		return nil, err
	}

	detailed, err := a.detailedSummary(ctx, transcript)
	if err != nil {
		return nil, err
	}
	if err := writeArtifact(outDir, "detailed_summary.txt", detailed); err != nil {
		return nil, err
	}

	bullets, err := a.gen.Generate(ctx, fmt.Sprintf(bulletPointsPrompt, detailed))
	if err != nil {
		return nil, fmt.Errorf("generating bullet points: %w", err)
	}
	if err := writeArtifact(outDir, "bullet_points.txt", bullets); err != nil {
		return nil, err
	}

	insights, err := a.gen.Generate(ctx, fmt.Sprintf(keyInsightsPrompt, detailed, bullets))
	if err != nil {
		return nil, fmt.Errorf("generating key insights: %w", err)
	}
	if err := writeArtifact(outDir, "key_insights.txt", insights); err != nil {
		return nil, err
	}

	executive, err := a.gen.Generate(ctx, fmt.Sprintf(executiveSummaryPrompt, insights))
	if err != nil {
		return nil, fmt.Errorf("generating executive summary: %w", err)
	}
	if err := writeArtifact(outDir, "executive_summary.txt", executive); err != nil {
		return nil, err
	}

	if err := writeArtifact(outDir, "index.txt", analysisIndex(id)); err != nil {
		return nil, err
	}

	return Artifacts{
		"dir":      outDir,
		"segments": filepath.Join(outDir, "segments.json"),
		"index":    filepath.Join(outDir, "index.txt"),
	}, nil
}

// Segments runs only the segmentation step, for callers that do not want
// the summary passes.
func (a *Analyzer) Segments(ctx context.Context, transcript string) ([]TopicSegment, error) {
	var bar ProgressBar
	if a.ui != nil {
		bar = a.ui.NewSpinner("Scanning topics")
	}
	return a.segmenter.SegmentWithProgress(ctx, transcript, bar)
}

func (a *Analyzer) detailedSummary(ctx context.Context, transcript string) (string, error) {
	chunks := splitIntoChunks(transcript, summaryChunkSize)
	parts := make([]string, 0, len(chunks))
	for i, chunk := range chunks {
		if err := ctx.Err(); err != nil {
			return "", err
		}
		a.logger.Debug("summarizing chunk", "chunk", i+1, "total", len(chunks))
		part, err := a.gen.Generate(ctx, fmt.Sprintf(detailedSummaryPrompt, chunk))
		if err != nil {
			return "", fmt.Errorf("summarizing chunk %d/%d: %w", i+1, len(chunks), err)
		}
		parts = append(parts, part)
	}
	return strings.Join(parts, "\n\n"), nil
}

func (a *Analyzer) writeSegments(outDir string, segments []TopicSegment) error {
	data, err := json.MarshalIndent(segments, "", "  ")
	if err != nil {
		return fmt.Errorf("encoding segments: %w", err)
	}
	if err := writeArtifact(outDir, "segments.json", string(data)); err != nil {
		return err
	}

	var index strings.Builder
	index.WriteString("Topic Index\n")
	index.WriteString(strings.Repeat("=", 50) + "\n\n")
	for i, seg := range segments {
		fmt.Fprintf(&index, "%03d. %s\n", i+1, seg.Topic)
		fmt.Fprintf(&index, "    Time: %s - %s\n", seg.StartTime, seg.EndTime)
		fmt.Fprintf(&index, "    Importance: %s\n\n", seg.Importance)
	}
	if err := writeArtifact(outDir, "topic_index.txt", index.String()); err != nil {
		return err
	}

	for i, seg := range segments {
		var b strings.Builder
		fmt.Fprintf(&b, "Topic: %s\n", seg.Topic)
		fmt.Fprintf(&b, "Timestamps: %s - %s\n", seg.StartTime, seg.EndTime)
		fmt.Fprintf(&b, "Importance: %s\n", seg.Importance)
		b.WriteString("\nKey Points:\n")
		for _, point := range seg.KeyPoints {
			fmt.Fprintf(&b, "- %s\n", point)
		}
		b.WriteString("\nSubtopics:\n")
		for _, sub := range seg.Subtopics {
			fmt.Fprintf(&b, "- %s\n", sub)
		}
		if len(seg.References) > 0 {
			b.WriteString("\nReferences:\n")
			for _, ref := range seg.References {
				fmt.Fprintf(&b, "- %s (via %q)\n", ref.Topic, ref.Point)
			}
		}
		name := fmt.Sprintf("segment_%03d.txt", i+1)
		if err := writeArtifact(outDir, name, b.String()); err != nil {
			return err
		}
	}
	return nil
}

// splitIntoChunks splits text into chunks of roughly chunkSize characters
// without breaking paragraphs. A single oversized paragraph becomes its own
// chunk rather than being split mid-sentence.
func splitIntoChunks(text string, chunkSize int) []string {
	paragraphs := strings.Split(text, "\n\n")
	var chunks []string
	var current []string
	length := 0

	for _, p := range paragraphs {
		if length+len(p) > chunkSize && len(current) > 0 {
			chunks = append(chunks, strings.Join(current, "\n\n"))
			current = current[:0]
			length = 0
		}
		current = append(current, p)
		length += len(p)
	}
	if len(current) > 0 {
		chunks = append(chunks, strings.Join(current, "\n\n"))
	}
	return chunks
}

func analysisIndex(id string) string {
	return fmt.Sprintf(`Analysis Index
Generated: %s
Item: %s

1. executive_summary.txt - 500-word overview of key findings
2. key_insights.txt - Core insights and their significance
3. bullet_points.txt - Hierarchical summary of main points
4. detailed_summary.txt - Comprehensive summary with timestamps
5. segments.json - Topic segments with spans and cross-references
6. topic_index.txt - Ordered topic index
7. segment_NNN.txt - One file per topic segment
`, time.Now().Format("2006-01-02 15:04:05"), id)
}

func writeArtifact(dir, name, content string) error {
	path := filepath.Join(dir, name)
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		return fmt.Errorf("writing %s: %w", name, err)
	}
	return nil
}
