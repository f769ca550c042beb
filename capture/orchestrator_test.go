package capture

import (
	"bytes"
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"plenum/audio"
	"plenum/screen"
	"plenum/sink"
	"plenum/transcript"
)

func newOrchestrator() (*Orchestrator, *audio.FakeContext, *screen.FakeGrabber, *transcript.FakeRecognizer) {
	actx := audio.NewFakeContext([]byte{0x10, 0x00, 0x20, 0x00})
	grab := screen.NewFakeGrabber()
	rec := transcript.NewFakeRecognizer()
	o := &Orchestrator{
		Audio:      actx,
		Screen:     grab,
		Recognizer: rec,
		OpenURL:    func(string) error { return nil },
	}
	return o, actx, grab, rec
}

func waitFor(t *testing.T, cond func() bool, msg string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal(msg)
}

func TestStartOpensURLAndCapturesChunks(t *testing.T) {
	o, _, grab, _ := newOrchestrator()
	var opened string
	o.OpenURL = func(url string) error {
		opened = url
		return nil
	}

	s, err := o.Start(context.Background(), "https://meet.example/abc")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	if opened != "https://meet.example/abc" {
		t.Errorf("opened %q, want the meeting URL", opened)
	}

	grab.Captures()[0].Push([]byte("frame-1"))
	grab.Captures()[0].Push([]byte("frame-2"))

	art := s.Stop()
	if art == nil {
		t.Fatal("Stop returned nil artifact")
	}
	if !bytes.HasPrefix(art.AV(), []byte("frame-1frame-2")) {
		t.Error("artifact missing video chunks in arrival order")
	}
}

func TestDisplayDeniedAbortsBeforeAudio(t *testing.T) {
	o, actx, grab, _ := newOrchestrator()
	grab.FailWith(screen.ErrDenied)

	if _, err := o.Start(context.Background(), ""); !errors.Is(err, ErrDenied) {
		t.Fatalf("Start err = %v, want ErrDenied", err)
	}
	if n := len(actx.Captures()); n != 0 {
		t.Errorf("%d audio captures acquired after display denial, want 0", n)
	}
}

func TestMicDeniedRecordsDisplayOnly(t *testing.T) {
	o, actx, _, _ := newOrchestrator()
	actx.Deny()

	s, err := o.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start should proceed without the microphone, got %v", err)
	}
	if n := len(actx.Captures()); n != 0 {
		t.Errorf("%d audio captures acquired despite denial, want 0", n)
	}
	if art := s.Stop(); art == nil {
		t.Error("no artifact from a microphone-less session")
	}
}

func TestBothDeniedNoArtifact(t *testing.T) {
	o, actx, grab, _ := newOrchestrator()
	grab.FailWith(screen.ErrDenied)
	actx.Deny()

	s, err := o.Start(context.Background(), "")
	if !errors.Is(err, ErrDenied) {
		t.Fatalf("Start err = %v, want ErrDenied", err)
	}
	if s != nil {
		t.Fatal("session returned despite denial")
	}
}

func TestAcquisitionFailureIsNotDenied(t *testing.T) {
	o, _, grab, _ := newOrchestrator()
	grab.FailWith(errors.New("no x11 display"))

	_, err := o.Start(context.Background(), "")
	if !errors.Is(err, ErrFailed) {
		t.Fatalf("Start err = %v, want ErrFailed", err)
	}
	if errors.Is(err, ErrDenied) {
		t.Error("generic failure classified as denial")
	}
}

func TestNoSystemAudioMixesMicOnly(t *testing.T) {
	o, actx, _, _ := newOrchestrator()

	s, err := o.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if n := len(actx.Captures()); n != 1 {
		t.Errorf("%d audio captures, want just the microphone", n)
	}
}

func TestMonitorSourceJoinsTheMix(t *testing.T) {
	o, actx, _, _ := newOrchestrator()
	actx.SetDevices([]audio.DeviceInfo{
		{ID: "0", Name: "Monitor of Built-in Audio"},
		{ID: "1", Name: "Built-in Microphone"},
	})

	s, err := o.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()
	if n := len(actx.Captures()); n != 2 {
		t.Errorf("%d audio captures, want monitor plus microphone", n)
	}
}

func TestMixedAudioReachesRecognition(t *testing.T) {
	o, _, _, rec := newOrchestrator()

	s, err := o.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}
	defer s.Stop()

	waitFor(t, func() bool {
		streams := rec.Streams()
		return len(streams) > 0 && len(streams[0].Sent()) > 0
	}, "no mixed audio forwarded to the recognition stream")
}

func TestRevocationRunsTeardownOnce(t *testing.T) {
	o, actx, grab, _ := newOrchestrator()

	s, err := o.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	grab.Captures()[0].Push([]byte("before"))
	grab.Captures()[0].Revoke()

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("revocation did not trigger teardown")
	}
	if !s.Revoked() {
		t.Error("session not flagged as revoked")
	}

	art := s.Stop()
	if art == nil {
		t.Fatal("no artifact after revocation")
	}
	if !bytes.HasPrefix(art.AV(), []byte("before")) {
		t.Error("artifact missing bytes captured before revocation")
	}
	for _, c := range actx.Captures() {
		if c.Stops() != 1 {
			t.Errorf("audio capture stopped %d times, want 1", c.Stops())
		}
	}
}

func TestConcurrentStopSingleTeardown(t *testing.T) {
	o, actx, grab, _ := newOrchestrator()

	s, err := o.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	var wg sync.WaitGroup
	arts := make([]*sink.Artifact, 4)
	for i := range arts {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			arts[i] = s.Stop()
		}(i)
	}
	grab.Captures()[0].Revoke()
	wg.Wait()

	for i := 1; i < len(arts); i++ {
		if arts[i] != arts[0] {
			t.Fatal("concurrent stops produced different artifacts")
		}
	}
	for _, c := range actx.Captures() {
		if c.Stops() != 1 {
			t.Errorf("audio capture stopped %d times, want 1", c.Stops())
		}
	}
}

func TestRecognitionUnavailableDegrades(t *testing.T) {
	o, _, _, rec := newOrchestrator()
	rec.FailStartWith(transcript.ErrUnavailable)

	s, err := o.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start should degrade, got %v", err)
	}
	art := s.Stop()
	if art == nil {
		t.Fatal("no artifact from degraded session")
	}
	if n := len(s.Feed().Segments()); n != 0 {
		t.Errorf("%d transcript segments without recognition, want 0", n)
	}
}

func TestRecognitionStartFailureRollsBack(t *testing.T) {
	o, actx, grab, rec := newOrchestrator()
	rec.FailStartWith(errors.New("socket refused"))

	if _, err := o.Start(context.Background(), ""); !errors.Is(err, ErrFailed) {
		t.Fatalf("Start err = %v, want ErrFailed", err)
	}
	if grab.Captures()[0].Stops() != 1 {
		t.Error("display not released after recognition start failure")
	}
	for _, c := range actx.Captures() {
		if c.Stops() != 1 {
			t.Errorf("audio capture stopped %d times, want 1", c.Stops())
		}
	}
}

// revokeOnAcquire hands out a capture that the OS has already ended by the
// time the orchestrator starts wiring components around it.
type revokeOnAcquire struct {
	inner *screen.FakeGrabber
}

func (g *revokeOnAcquire) Acquire(ctx context.Context, req screen.Request) (screen.Capture, error) {
	c, err := g.inner.Acquire(ctx, req)
	if err == nil {
		g.inner.Captures()[len(g.inner.Captures())-1].Revoke()
	}
	return c, err
}

func TestRevocationDuringStartSequence(t *testing.T) {
	o, actx, grab, rec := newOrchestrator()
	o.Screen = &revokeOnAcquire{inner: grab}

	s, err := o.Start(context.Background(), "")
	if err != nil {
		t.Fatalf("Start: %v", err)
	}

	select {
	case <-s.Done():
	case <-time.After(2 * time.Second):
		t.Fatal("revocation during start never tore the session down")
	}
	if !s.Revoked() {
		t.Error("session not flagged as revoked")
	}
	for _, st := range rec.Streams() {
		if !st.Closed() {
			t.Error("recognition stream left open after teardown")
		}
	}
	for _, c := range actx.Captures() {
		if c.Stops() != 1 {
			t.Errorf("audio capture stopped %d times, want 1", c.Stops())
		}
	}
	if art := s.Stop(); art == nil {
		t.Error("no artifact from the revoked session")
	}
}
