package transcript

import (
	"context"
	"errors"
	"sync"

	"plenum/log"
)

// Segment is one transcript entry. Final segments are immutable once
// appended; the single non-final segment is replaced wholesale by each
// interim result.
type Segment struct {
	TimestampSeconds uint64 `json:"timestampSeconds"`
	Text             string `json:"text"`
	IsFinal          bool   `json:"isFinal"`
}

type feedState int

const (
	feedStopped feedState = iota
	feedListening
)

// Feed owns the transcript. Final results are stamped with the session clock
// at the moment they are finalized, not when the speech started. A stream
// that dies while the feed is still listening is treated as transient and
// reconnected; a missing recognizer degrades the feed to an empty transcript.
type Feed struct {
	recognizer Recognizer
	now        func() uint64

	mu       sync.Mutex
	state    feedState
	stream   Stream
	starting bool
	segments []Segment
	partial  string

	updates chan struct{}
}

// New builds a feed over recognizer. now supplies the session duration in
// seconds; recognizer may be nil when the platform offers no recognition.
func New(recognizer Recognizer, now func() uint64) *Feed {
	return &Feed{
		recognizer: recognizer,
		now:        now,
		updates:    make(chan struct{}, 1),
	}
}

// Start moves the feed to listening and opens the first stream. Starting an
// already-listening feed is a no-op, which also swallows the restart race
// where a reconnect and an explicit start collide.
func (f *Feed) Start(ctx context.Context) error {
	f.mu.Lock()
	if f.state == feedListening {
		f.mu.Unlock()
		return nil
	}
	f.state = feedListening
	f.mu.Unlock()

	if f.recognizer == nil {
		log.Warn("recognition unavailable, transcript will be empty")
		return nil
	}
	return f.connect(ctx, true)
}

// connect opens one stream. initial start failures propagate so the
// orchestrator can abort; reconnect failures are logged and absorbed, the
// feed just stops receiving until Stop.
func (f *Feed) connect(ctx context.Context, initial bool) error {
	f.mu.Lock()
	if f.starting || f.state != feedListening || f.stream != nil {
		f.mu.Unlock()
		return nil
	}
	f.starting = true
	f.mu.Unlock()

	stream, err := f.recognizer.Start(ctx)

	f.mu.Lock()
	f.starting = false
	if err != nil {
		f.mu.Unlock()
		if errors.Is(err, ErrUnavailable) {
			log.Warn("recognition unavailable, transcript will be empty")
			return nil
		}
		if initial {
			return err
		}
		log.Errorf("recognition restart failed: %v", err)
		return nil
	}
	if f.state != feedListening {
		f.mu.Unlock()
		stream.Close()
		return nil
	}
	f.stream = stream
	f.mu.Unlock()

	go f.consume(ctx, stream)
	return nil
}

func (f *Feed) consume(ctx context.Context, stream Stream) {
	for res := range stream.Results() {
		f.apply(res)
	}

	f.mu.Lock()
	if f.stream == stream {
		f.stream = nil
	}
	listening := f.state == feedListening
	f.mu.Unlock()

	if listening {
		// Platform-imposed stream limits and silence timeouts land here.
		log.Info("recognition stream ended, restarting")
		f.connect(ctx, false)
	}
}

func (f *Feed) apply(res Result) {
	f.mu.Lock()
	if f.state != feedListening {
		f.mu.Unlock()
		return
	}
	if res.Final {
		seg := Segment{
			TimestampSeconds: f.now(),
			Text:             res.Text,
			IsFinal:          true,
		}
		f.segments = append(f.segments, seg)
		f.partial = ""
		log.TranscriptLine(seg.TimestampSeconds, seg.Text)
	} else {
		f.partial = res.Text
	}
	f.mu.Unlock()
	f.notify()
}

// Write forwards captured PCM to the live stream, if any. Send errors are
// ignored here: the consume loop observes the dead stream and reconnects.
func (f *Feed) Write(pcm []byte) {
	f.mu.Lock()
	stream := f.stream
	f.mu.Unlock()
	if stream != nil {
		stream.Send(pcm)
	}
}

// Stop ends listening and closes the stream. Idempotent.
func (f *Feed) Stop() {
	f.mu.Lock()
	if f.state == feedStopped {
		f.mu.Unlock()
		return
	}
	f.state = feedStopped
	stream := f.stream
	f.stream = nil
	f.mu.Unlock()
	if stream != nil {
		stream.Close()
	}
}

// Segments returns the finalized transcript in append order.
func (f *Feed) Segments() []Segment {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]Segment(nil), f.segments...)
}

// Partial returns the in-progress segment text, empty when none.
func (f *Feed) Partial() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.partial
}

// Snapshot returns the finalized segments plus, when present, the single
// trailing non-final segment.
func (f *Feed) Snapshot() []Segment {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := append([]Segment(nil), f.segments...)
	if f.partial != "" {
		out = append(out, Segment{TimestampSeconds: f.now(), Text: f.partial})
	}
	return out
}

// Updates pings after every transcript change. Coalescing: consumers that
// fall behind get one pending ping, then pull current state.
func (f *Feed) Updates() <-chan struct{} {
	return f.updates
}

func (f *Feed) notify() {
	select {
	case f.updates <- struct{}{}:
	default:
	}
}
