// Package timeline holds the operator-marked instants of a live session and
// the named clips defined afterwards during review. Highlights are pure
// appends stamped from the session clock; clips go through a two-phase
// builder that only commits fully-specified ranges.
package timeline

import (
	"sync"

	"github.com/google/uuid"
)

const highlightLabel = "Important"

// Highlight is one marked instant during live capture.
type Highlight struct {
	TimestampSeconds uint64 `json:"timestampSeconds"`
	Label            string `json:"label"`
}

// Clip is a named, bounded range defined after capture. Identity is stable;
// deleting one clip never changes the others. Start and End are player
// playback positions in seconds and keep their sub-second precision, so a
// replay seeks to the exact instant that was captured.
type Clip struct {
	ID    string  `json:"id"`
	Label string  `json:"label"`
	Start float64 `json:"start"`
	End   float64 `json:"end"`
}

// Timeline outlives the session it was recorded against, so the review phase
// can still read highlights and build clips after teardown.
type Timeline struct {
	now func() uint64

	mu         sync.Mutex
	highlights []Highlight
	clips      []Clip
	start, end *float64
}

// New builds a timeline. now supplies the session duration in seconds.
func New(now func() uint64) *Timeline {
	return &Timeline{now: now}
}

// Mark appends a highlight at the current session duration. Never fails and
// never deduplicates: rapid repeated marks are all kept.
func (t *Timeline) Mark() Highlight {
	h := Highlight{TimestampSeconds: t.now(), Label: highlightLabel}
	t.mu.Lock()
	t.highlights = append(t.highlights, h)
	t.mu.Unlock()
	return h
}

// Highlights returns the marks in append order.
func (t *Timeline) Highlights() []Highlight {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Highlight(nil), t.highlights...)
}

// CaptureStart snapshots the player position as the pending clip start. A
// previously captured end that now lies before the new start is stale and
// cleared rather than silently kept.
func (t *Timeline) CaptureStart(position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.end != nil && *t.end < position {
		t.end = nil
	}
	t.start = &position
}

// CaptureEnd snapshots the player position as the pending clip end. An end
// without a start just leaves the clip incomplete.
func (t *Timeline) CaptureEnd(position float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.end = &position
}

// Pending reports the captured bounds, for rendering the builder state.
func (t *Timeline) Pending() (start, end *float64) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.start, t.end
}

// Save commits the pending range as a clip when start, end, and a non-empty
// label are all present and the range is ordered; otherwise it is a no-op.
func (t *Timeline) Save(label string) (Clip, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if label == "" || t.start == nil || t.end == nil || *t.end < *t.start {
		return Clip{}, false
	}
	c := Clip{
		ID:    uuid.NewString(),
		Label: label,
		Start: *t.start,
		End:   *t.end,
	}
	t.clips = append(t.clips, c)
	t.start, t.end = nil, nil
	return c, true
}

// Clips returns the committed clips in save order.
func (t *Timeline) Clips() []Clip {
	t.mu.Lock()
	defer t.mu.Unlock()
	return append([]Clip(nil), t.clips...)
}

// Delete removes the clip with the given id, preserving the order and
// identity of the rest. Reports whether anything was removed.
func (t *Timeline) Delete(id string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	for i, c := range t.clips {
		if c.ID == id {
			t.clips = append(t.clips[:i], t.clips[i+1:]...)
			return true
		}
	}
	return false
}
