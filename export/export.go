// Package export writes a finished meeting into its own directory: the
// recorded artifact, the transcript, highlights and clips, and the summary.
// Export only reads session data; it never mutates it.
package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"plenum/meeting"
	"plenum/sink"
	"plenum/summary"
	"plenum/timeline"
	"plenum/transcript"
)

// Bundle is everything a finished meeting leaves behind.
type Bundle struct {
	Meeting    meeting.Meeting
	Artifact   *sink.Artifact
	Transcript []transcript.Segment
	Highlights []timeline.Highlight
	Clips      []timeline.Clip
	Result     *summary.Result
}

// Write stores the bundle under baseDir in a per-meeting directory named
// from the date and the meeting title. Returns the directory path.
func Write(baseDir string, b Bundle) (string, error) {
	dirName := time.Now().Format("2006-01-02-1504") + "-" + slug(b.Meeting.Title)
	dir := filepath.Join(baseDir, dirName)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating meeting directory: %w", err)
	}

	if b.Artifact != nil {
		if err := os.WriteFile(filepath.Join(dir, "recording.webm"), b.Artifact.AV(), 0o644); err != nil {
			return "", fmt.Errorf("writing recording: %w", err)
		}
	}

	if err := os.WriteFile(filepath.Join(dir, "transcript.md"), transcriptMarkdown(b.Transcript), 0o644); err != nil {
		return "", fmt.Errorf("writing transcript: %w", err)
	}

	if err := writeJSON(filepath.Join(dir, "meeting.json"), b.Meeting); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "highlights.json"), b.Highlights); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(dir, "clips.json"), b.Clips); err != nil {
		return "", err
	}

	if b.Result != nil {
		if err := os.WriteFile(filepath.Join(dir, "summary.md"), summaryMarkdown(b.Result), 0o644); err != nil {
			return "", fmt.Errorf("writing summary: %w", err)
		}
	}

	return dir, nil
}

func writeJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return fmt.Errorf("writing %s: %w", filepath.Base(path), err)
	}
	return nil
}

func transcriptMarkdown(segments []transcript.Segment) []byte {
	var sb strings.Builder
	sb.WriteString("# Transcript\n\n")
	for _, s := range segments {
		fmt.Fprintf(&sb, "[%s] %s\n", formatTimestamp(s.TimestampSeconds), s.Text)
	}
	return []byte(sb.String())
}

func summaryMarkdown(res *summary.Result) []byte {
	var sb strings.Builder
	sb.WriteString("# Meeting Summary\n\n")
	sb.WriteString(res.SummaryText + "\n")

	writeList := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		sb.WriteString("\n## " + title + "\n\n")
		for _, it := range items {
			sb.WriteString("- " + it + "\n")
		}
	}
	writeList("Key Points", res.KeyPoints)
	writeList("Action Items", res.ActionItems)
	writeList("Attendees", res.AttendeesDetected)

	fmt.Fprintf(&sb, "\nSentiment: %s\n", res.Sentiment)
	if res.FollowUpEmail != "" {
		sb.WriteString("\n## Follow-up Email\n\n" + res.FollowUpEmail + "\n")
	}
	return []byte(sb.String())
}

func formatTimestamp(seconds uint64) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func slug(title string) string {
	var sb strings.Builder
	for _, r := range strings.ToLower(title) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			sb.WriteRune(r)
		case sb.Len() > 0 && !strings.HasSuffix(sb.String(), "-"):
			sb.WriteRune('-')
		}
	}
	s := strings.TrimSuffix(sb.String(), "-")
	if s == "" {
		return "meeting"
	}
	return s
}
