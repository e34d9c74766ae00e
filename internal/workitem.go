package internal

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"
)

// WorkItem is one unit of pipeline work: a single video identified by a
// stable ID derived from its URL. Two items with the same ID refer to the
// same underlying video.
type WorkItem struct {
	ID        string
	SourceURL string
}

var videoIDPattern = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

// NewWorkItem normalizes a YouTube URL or bare video ID into a WorkItem.
// The derivation is deterministic: the same input (or equivalent URL forms
// of the same video) always yields the same ID.
func NewWorkItem(arg string) (WorkItem, error) {
	arg = strings.TrimSpace(arg)
	if arg == "" {
		return WorkItem{}, fmt.Errorf("empty work item reference")
	}

	if strings.HasPrefix(arg, "https://") || strings.HasPrefix(arg, "http://") {
		id, err := videoIDFromURL(arg)
		if err != nil {
			return WorkItem{}, err
		}
		return WorkItem{ID: id, SourceURL: arg}, nil
	}

	if !videoIDPattern.MatchString(arg) {
		return WorkItem{}, fmt.Errorf("%q does not look like a YouTube URL or video ID", arg)
	}
	return WorkItem{ID: arg, SourceURL: "https://www.youtube.com/watch?v=" + arg}, nil
}

// videoIDFromURL extracts the video ID from the usual YouTube URL shapes
// (watch?v=, youtu.be/, shorts/, embed/).
func videoIDFromURL(youtubeURL string) (string, error) {
	u, err := url.Parse(strings.TrimSpace(youtubeURL))
	if err != nil {
		return "", fmt.Errorf("parsing URL: %w", err)
	}

	host := strings.TrimPrefix(u.Host, "www.")
	if host != "youtube.com" && host != "youtu.be" && host != "m.youtube.com" {
		return "", fmt.Errorf("not a YouTube URL: %s", youtubeURL)
	}

	if v := u.Query().Get("v"); v != "" {
		return v, nil
	}

	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(parts) > 0 {
		last := parts[len(parts)-1]
		if videoIDPattern.MatchString(last) {
			return last, nil
		}
	}

	return "", fmt.Errorf("could not extract video ID from URL: %s", youtubeURL)
}

// ParseWorkItemList parses a batch file of references, one per line. Blank
// lines and lines starting with '#' are ignored.
func ParseWorkItemList(content string) ([]WorkItem, error) {
	var items []WorkItem
	for i, line := range strings.Split(content, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		item, err := NewWorkItem(line)
		if err != nil {
			return nil, fmt.Errorf("line %d: %w", i+1, err)
		}
		items = append(items, item)
	}
	return items, nil
}
