package session

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plenum/meeting"
	"plenum/sink"
	"plenum/summary"
	"plenum/transcript"
)

type fakeLive struct {
	art     *sink.Artifact
	feed    *transcript.Feed
	done    chan struct{}
	endOnce sync.Once

	mu      sync.Mutex
	stops   int
	revoked bool
}

func newFakeLive(data []byte) *fakeLive {
	return &fakeLive{
		art:  sink.NewArtifact(data, 90),
		feed: transcript.New(nil, func() uint64 { return 0 }),
		done: make(chan struct{}),
	}
}

func (l *fakeLive) Stop() *sink.Artifact {
	l.mu.Lock()
	l.stops++
	l.mu.Unlock()
	l.endOnce.Do(func() { close(l.done) })
	return l.art
}

func (l *fakeLive) Done() <-chan struct{} { return l.done }

func (l *fakeLive) Revoke() {
	l.mu.Lock()
	l.revoked = true
	l.mu.Unlock()
	l.endOnce.Do(func() { close(l.done) })
}

func (l *fakeLive) Revoked() bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.revoked
}

func (l *fakeLive) Duration() uint64       { return 42 }
func (l *fakeLive) Feed() *transcript.Feed { return l.feed }

func (l *fakeLive) Stops() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.stops
}

type fakeSummarizer struct {
	mu    sync.Mutex
	calls int
	req   summary.Request
	res   summary.Result
	err   error
}

func (f *fakeSummarizer) Summarize(_ context.Context, req summary.Request) (summary.Result, error) {
	f.mu.Lock()
	f.calls++
	f.req = req
	f.mu.Unlock()
	if f.err != nil {
		return summary.Result{}, f.err
	}
	return summary.Normalize(f.res, req.Transcript), nil
}

func (f *fakeSummarizer) Calls() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func (f *fakeSummarizer) Request() summary.Request {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.req
}

func newMachine(live *fakeLive, startErr error) (*Machine, *fakeSummarizer) {
	sum := &fakeSummarizer{res: summary.Result{SummaryText: "done"}}
	start := func(context.Context, string) (Live, error) {
		if startErr != nil {
			return nil, startErr
		}
		return live, nil
	}
	return New(start, sum), sum
}

func waitForState(t *testing.T, m *Machine, want State) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if m.State() == want {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("state = %s, want %s", m.State(), want)
}

func TestStartRecording(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	m, _ := newMachine(live, nil)

	mt := meeting.Meeting{ID: "m1", Title: "Weekly Sync", URL: "https://meet/x"}
	if err := m.StartRecording(context.Background(), mt); err != nil {
		t.Fatalf("StartRecording: %v", err)
	}
	if m.State() != StateRecording {
		t.Errorf("state = %s, want Recording", m.State())
	}
	if m.Timeline() == nil {
		t.Error("no timeline for the live session")
	}
}

func TestStartFailureStaysInCalendar(t *testing.T) {
	m, _ := newMachine(nil, errors.New("acquisition denied"))

	err := m.StartRecording(context.Background(), meeting.Meeting{URL: "u"})
	if err == nil {
		t.Fatal("StartRecording should fail")
	}
	if m.State() != StateCalendar {
		t.Errorf("state = %s, want Calendar", m.State())
	}
	if m.Err() == nil {
		t.Error("error not held for the Calendar render")
	}
}

func TestStartWhileRecordingRejected(t *testing.T) {
	live := newFakeLive(nil)
	m, _ := newMachine(live, nil)
	m.StartRecording(context.Background(), meeting.Meeting{})

	if err := m.StartRecording(context.Background(), meeting.Meeting{}); err == nil {
		t.Fatal("second start while recording should be rejected")
	}
}

func TestCancelDiscardsEverything(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	m, sum := newMachine(live, nil)
	m.StartRecording(context.Background(), meeting.Meeting{})

	m.Cancel()
	if m.State() != StateCalendar {
		t.Errorf("state = %s, want Calendar", m.State())
	}
	if live.Stops() == 0 {
		t.Error("cancel did not tear the session down")
	}
	if sum.Calls() != 0 {
		t.Error("cancel must not summarize")
	}
	if m.Result() != nil {
		t.Error("cancel left a result behind")
	}
}

func TestStopAndSummarize(t *testing.T) {
	live := newFakeLive([]byte("artifact-bytes"))
	m, sum := newMachine(live, nil)
	m.StartRecording(context.Background(), meeting.Meeting{Title: "Sync", Platform: "meet"})
	m.Timeline().Mark()

	m.StopAndSummarize(context.Background())

	waitForState(t, m, StateSummary)
	res := m.Result()
	if res == nil || res.SummaryText != "done" {
		t.Fatalf("result = %+v", res)
	}
	if res.Sentiment != summary.SentimentNeutral {
		t.Error("result not normalized")
	}
	req := sum.Request()
	if string(req.ArtifactBytes) != "artifact-bytes" {
		t.Error("artifact bytes not handed to the summarizer")
	}
	if len(req.Highlights) != 1 {
		t.Errorf("%d highlights in request, want 1", len(req.Highlights))
	}
	if req.ContextText == "" {
		t.Error("empty context text")
	}
}

func TestSummarizeFailureFallsBackToCalendar(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	m, sum := newMachine(live, nil)
	sum.err = errors.New("service overloaded")
	m.StartRecording(context.Background(), meeting.Meeting{})

	m.StopAndSummarize(context.Background())

	waitForState(t, m, StateCalendar)
	if m.Err() == nil {
		t.Error("summarization failure not surfaced")
	}
	if m.Result() != nil {
		t.Error("failed attempt left a result")
	}
}

func TestRevocationSummarizesLikeAStop(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	m, sum := newMachine(live, nil)
	m.StartRecording(context.Background(), meeting.Meeting{})

	live.Revoke()

	waitForState(t, m, StateSummary)
	if sum.Calls() != 1 {
		t.Errorf("summarizer called %d times, want 1", sum.Calls())
	}
}

func TestConcurrentStopSummarizesOnce(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	m, sum := newMachine(live, nil)
	m.StartRecording(context.Background(), meeting.Meeting{})

	var wg sync.WaitGroup
	for i := 0; i < 4; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			m.StopAndSummarize(context.Background())
		}()
	}
	wg.Wait()

	waitForState(t, m, StateSummary)
	if sum.Calls() != 1 {
		t.Errorf("summarizer called %d times, want 1", sum.Calls())
	}
}

func TestCloseSummaryReturnsToCalendar(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	m, _ := newMachine(live, nil)
	m.StartRecording(context.Background(), meeting.Meeting{})
	m.StopAndSummarize(context.Background())
	waitForState(t, m, StateSummary)

	m.CloseSummary()
	if m.State() != StateCalendar {
		t.Errorf("state = %s, want Calendar", m.State())
	}
	if m.Result() != nil {
		t.Error("closing the summary did not discard the result")
	}
}

func TestNoSummarizerConfigured(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	start := func(context.Context, string) (Live, error) { return live, nil }
	m := New(start, nil)
	m.StartRecording(context.Background(), meeting.Meeting{})

	m.StopAndSummarize(context.Background())
	waitForState(t, m, StateCalendar)
	if m.Err() == nil {
		t.Error("missing summarizer not surfaced")
	}
}

func TestArtifactRetainedForExport(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	m, _ := newMachine(live, nil)
	m.StartRecording(context.Background(), meeting.Meeting{})
	m.StopAndSummarize(context.Background())
	waitForState(t, m, StateSummary)

	art := m.Artifact()
	if art == nil {
		t.Fatal("no artifact retained in Summary")
	}
	if string(art.AV()) != "rec" {
		t.Errorf("artifact bytes = %q", art.AV())
	}

	m.CloseSummary()
	if m.Artifact() != nil {
		t.Error("closing the summary did not discard the artifact")
	}
}

func TestStartWhilePendingRejected(t *testing.T) {
	gate := make(chan struct{})
	live := newFakeLive([]byte("rec"))
	var mu sync.Mutex
	starts := 0
	m := New(func(context.Context, string) (Live, error) {
		mu.Lock()
		starts++
		mu.Unlock()
		<-gate
		return live, nil
	}, &fakeSummarizer{})

	first := make(chan error, 1)
	go func() {
		first <- m.StartRecording(context.Background(), meeting.Meeting{Title: "one"})
	}()

	deadline := time.Now().Add(2 * time.Second)
	for {
		mu.Lock()
		n := starts
		mu.Unlock()
		if n == 1 {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("first start never reached acquisition")
		}
		time.Sleep(time.Millisecond)
	}

	if err := m.StartRecording(context.Background(), meeting.Meeting{Title: "two"}); err == nil {
		t.Fatal("second start accepted while the first was still acquiring")
	}
	if m.State() != StateCalendar {
		t.Errorf("state = %s while acquisition is in flight, want Calendar", m.State())
	}

	close(gate)
	if err := <-first; err != nil {
		t.Fatalf("first start: %v", err)
	}
	waitForState(t, m, StateRecording)

	mu.Lock()
	n := starts
	mu.Unlock()
	if n != 1 {
		t.Errorf("acquisition entered %d times, want 1", n)
	}
	if m.Meeting().Title != "one" {
		t.Errorf("recording %q, want the first meeting", m.Meeting().Title)
	}
}

func TestFailedStartAllowsRetry(t *testing.T) {
	live := newFakeLive([]byte("rec"))
	calls := 0
	m := New(func(context.Context, string) (Live, error) {
		calls++
		if calls == 1 {
			return nil, errors.New("no display")
		}
		return live, nil
	}, &fakeSummarizer{})

	if err := m.StartRecording(context.Background(), meeting.Meeting{}); err == nil {
		t.Fatal("first start should fail")
	}
	if err := m.StartRecording(context.Background(), meeting.Meeting{}); err != nil {
		t.Fatalf("retry after a failed start: %v", err)
	}
	waitForState(t, m, StateRecording)
}
