// Package session is the top-level controller: one state machine sequencing
// calendar browsing, recording, processing, and summary review. It is the
// sole decision point for user-visible transitions; component-local faults
// that have a safe default never reach it.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"plenum/log"
	"plenum/meeting"
	"plenum/sink"
	"plenum/summary"
	"plenum/timeline"
	"plenum/transcript"
)

type State int

const (
	StateCalendar State = iota
	StateRecording
	StateProcessing
	StateSummary
)

func (s State) String() string {
	switch s {
	case StateCalendar:
		return "Calendar"
	case StateRecording:
		return "Recording"
	case StateProcessing:
		return "Processing"
	case StateSummary:
		return "Summary"
	default:
		return fmt.Sprintf("State(%d)", int(s))
	}
}

// Live is one recording session as the machine sees it. Satisfied by the
// capture orchestrator's session.
type Live interface {
	Stop() *sink.Artifact
	Done() <-chan struct{}
	Revoked() bool
	Duration() uint64
	Feed() *transcript.Feed
}

// StartFunc begins a capture attempt for a meeting URL.
type StartFunc func(ctx context.Context, targetURL string) (Live, error)

// Machine holds the current state and the per-attempt session data. Exactly
// one attempt may be in flight at a time; a second start while one is
// pending or recording is rejected, not queued.
type Machine struct {
	start      StartFunc
	summarizer summary.Summarizer

	mu       sync.Mutex
	state    State
	pending  bool
	live     Live
	current  meeting.Meeting
	tl       *timeline.Timeline
	artifact *sink.Artifact
	result   *summary.Result
	lastErr  error
	stopping bool

	updates chan struct{}
}

func New(start StartFunc, summarizer summary.Summarizer) *Machine {
	return &Machine{
		start:      start,
		summarizer: summarizer,
		updates:    make(chan struct{}, 1),
	}
}

// StartRecording moves Calendar to Recording for the selected meeting.
// While acquisition is in flight further starts are rejected. On failure the
// machine stays in Calendar with the error held for the next render.
func (m *Machine) StartRecording(ctx context.Context, mt meeting.Meeting) error {
	m.mu.Lock()
	if m.state != StateCalendar {
		m.mu.Unlock()
		return fmt.Errorf("cannot start recording from %s", m.state)
	}
	if m.pending {
		m.mu.Unlock()
		return errors.New("a recording start is already pending")
	}
	m.pending = true
	m.mu.Unlock()

	live, err := m.start(ctx, mt.URL)
	if err != nil {
		m.mu.Lock()
		m.pending = false
		m.lastErr = err
		m.mu.Unlock()
		m.notify()
		return err
	}

	m.mu.Lock()
	m.pending = false
	m.state = StateRecording
	m.live = live
	m.current = mt
	m.tl = timeline.New(live.Duration)
	m.artifact = nil
	m.result = nil
	m.lastErr = nil
	m.stopping = false
	m.mu.Unlock()

	log.SessionStart(mt.Title, mt.URL, mt.Platform)
	go m.watch(live)
	m.notify()
	return nil
}

// watch turns an out-of-band session end (display revocation) into the same
// stop path as an operator stop.
func (m *Machine) watch(live Live) {
	<-live.Done()
	m.mu.Lock()
	external := m.state == StateRecording && m.live == live && live.Revoked()
	m.mu.Unlock()
	if external {
		log.Info("session ended by device revocation")
		m.StopAndSummarize(context.Background())
	}
}

// Cancel aborts the recording and discards everything. Nothing is persisted
// and no summarization happens.
func (m *Machine) Cancel() {
	m.mu.Lock()
	if m.state != StateRecording {
		m.mu.Unlock()
		return
	}
	live := m.live
	m.state = StateCalendar
	m.live = nil
	m.mu.Unlock()

	live.Stop()
	log.Info("recording cancelled, nothing persisted")
	m.notify()
}

// StopAndSummarize runs the Recording to Processing to Summary path: tear
// down the session, hand the artifact plus transcript and highlights to the
// summarizer, and either show the normalized result or fall back to Calendar
// with the error. Safe to invoke from both the operator and the revocation
// watcher; only the first caller proceeds.
func (m *Machine) StopAndSummarize(ctx context.Context) {
	m.mu.Lock()
	if m.state != StateRecording || m.stopping {
		m.mu.Unlock()
		return
	}
	m.stopping = true
	m.state = StateProcessing
	live := m.live
	tl := m.tl
	mt := m.current
	m.mu.Unlock()
	m.notify()

	art := live.Stop()
	segments := live.Feed().Segments()
	highlights := tl.Highlights()

	if art == nil {
		m.fail(errors.New("no artifact produced"))
		return
	}
	log.SessionEnd(art.DurationSeconds, art.Size(), len(highlights))

	if m.summarizer == nil {
		m.fail(errors.New("no summarization service configured"))
		return
	}

	res, err := m.summarizer.Summarize(ctx, summary.Request{
		ArtifactBytes: art.AV(),
		ContextText:   contextText(mt),
		Transcript:    segments,
		Highlights:    highlights,
	})
	if err != nil {
		log.SummaryOutcome(false, 0, 0)
		m.fail(fmt.Errorf("summarization failed: %w", err))
		return
	}
	log.SummaryOutcome(true, len(res.KeyPoints), len(res.ActionItems))

	m.mu.Lock()
	m.state = StateSummary
	m.live = nil
	m.artifact = art
	m.result = &res
	m.mu.Unlock()
	m.notify()
}

// fail is the Processing to Calendar error edge: the attempt is abandoned,
// no retry, the error held for the next Calendar render.
func (m *Machine) fail(err error) {
	m.mu.Lock()
	m.state = StateCalendar
	m.live = nil
	m.lastErr = err
	m.mu.Unlock()
	m.notify()
}

// CloseSummary discards the result and returns to the calendar.
func (m *Machine) CloseSummary() {
	m.mu.Lock()
	if m.state != StateSummary {
		m.mu.Unlock()
		return
	}
	m.state = StateCalendar
	m.artifact = nil
	m.result = nil
	m.mu.Unlock()
	m.notify()
}

func contextText(mt meeting.Meeting) string {
	if mt.Title == "" {
		return "Ad-hoc meeting"
	}
	return fmt.Sprintf("%s (%s)", mt.Title, mt.Platform)
}

func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Live returns the in-flight session, nil outside Recording/Processing.
func (m *Machine) Live() Live {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.live
}

// Timeline returns the current attempt's timeline. It outlives the session
// into the review phase.
func (m *Machine) Timeline() *timeline.Timeline {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.tl
}

// Meeting returns the meeting the current or last attempt was started for.
func (m *Machine) Meeting() meeting.Meeting {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.current
}

// Artifact returns the finished recording, nil outside Summary.
func (m *Machine) Artifact() *sink.Artifact {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.artifact
}

// Result returns the normalized summary, nil outside Summary.
func (m *Machine) Result() *summary.Result {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.result
}

// Err returns the error held for the Calendar render, if any.
func (m *Machine) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.lastErr
}

// Updates pings after every transition. Coalescing.
func (m *Machine) Updates() <-chan struct{} {
	return m.updates
}

func (m *Machine) notify() {
	select {
	case m.updates <- struct{}{}:
	default:
	}
}
