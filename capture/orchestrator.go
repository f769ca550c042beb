// Package capture orchestrates one recording session: it acquires the
// display and audio sources in a fixed order, wires them through the mixing
// graph into the recording sink and the transcript feed, and owns the single
// teardown path every exit takes, whether the operator stops the session or
// the OS revokes the screen share out-of-band.
package capture

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"sync/atomic"

	"plenum/audio"
	"plenum/clock"
	"plenum/encoder"
	"plenum/log"
	"plenum/mixer"
	"plenum/screen"
	"plenum/sink"
	"plenum/transcript"
)

var (
	// ErrDenied reports that the operator refused a permission prompt.
	// Terminal for the attempt; the caller leaves the recording state
	// rather than retrying.
	ErrDenied = errors.New("acquisition denied")
	// ErrFailed reports any other start-sequence failure, after full
	// rollback of whatever was already acquired.
	ErrFailed = errors.New("acquisition failed")
)

// Orchestrator holds the platform boundaries a session is built from.
// Recognizer may be nil when the platform offers no speech recognition;
// Microphone nil selects the backend default device.
type Orchestrator struct {
	Audio      audio.Context
	Screen     screen.Grabber
	Recognizer transcript.Recognizer
	Microphone *audio.DeviceInfo
	Display    screen.Request

	// OpenURL opens the meeting in an external viewer before devices are
	// requested. Best effort, never a precondition. Nil uses the platform
	// browser.
	OpenURL func(url string) error
}

// Session is one live capture attempt. All media handles are owned here and
// released exactly once by Stop, on every exit path.
type Session struct {
	display screen.Capture
	devices []audio.CaptureDevice
	graph   *mixer.Graph
	clk     *clock.Clock
	feed    *transcript.Feed
	snk     *sink.Sink

	tap atomic.Pointer[func(pcm []byte)]

	stopOnce sync.Once
	done     chan struct{}

	mu       sync.Mutex
	artifact *sink.Artifact
	revoked  bool
}

// Start runs the acquisition sequence: display capture, system audio where
// the backend exposes a monitor source, microphone, mixing graph, sink, feed,
// clock. Missing system audio or a refused microphone narrows the mix; a
// refused display prompt aborts with ErrDenied and releases everything
// already acquired.
func (o *Orchestrator) Start(ctx context.Context, targetURL string) (*Session, error) {
	if targetURL != "" {
		open := o.OpenURL
		if open == nil {
			open = openBrowser
		}
		if err := open(targetURL); err != nil {
			log.Warnf("opening %s: %v", targetURL, err)
		}
	}

	display, err := o.Screen.Acquire(ctx, o.Display)
	if err != nil {
		return nil, classify(err)
	}

	cfg := audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	}

	var devices []audio.CaptureDevice
	rollback := func() {
		for _, d := range devices {
			d.Stop()
			d.Close()
		}
		display.Stop()
	}

	if mon, err := audio.MonitorDevice(o.Audio); err != nil {
		log.Warnf("system audio lookup: %v", err)
	} else if mon == nil {
		log.Warn("no system audio source, recording microphone only")
	} else if dev, err := o.Audio.NewCapture(mon, cfg); err != nil {
		log.Warnf("system audio capture: %v", err)
	} else {
		devices = append(devices, dev)
	}

	mic, err := o.Audio.NewCapture(o.Microphone, cfg)
	switch {
	case errors.Is(err, audio.ErrDenied):
		// A refused microphone narrows the mix to the display audio; only
		// losing the display itself kills the attempt.
		log.Warn("microphone denied, recording without it")
	case err != nil:
		rollback()
		return nil, classify(err)
	default:
		devices = append(devices, mic)
	}

	s := &Session{
		display: display,
		devices: devices,
		graph:   mixer.New(encoder.SampleRate),
		clk:     clock.New(),
		snk:     sink.New(),
		done:    make(chan struct{}),
	}
	s.feed = transcript.New(o.Recognizer, s.clk.Seconds)

	// Every mixed frame feeds recognition and, when installed, the UI tap.
	s.graph.SetTap(func(pcm []byte) {
		s.feed.Write(pcm)
		if fn := s.tap.Load(); fn != nil {
			(*fn)(pcm)
		}
	})

	for _, dev := range devices {
		in := s.graph.AddInput(dev.DeviceName())
		dev.SetCallback(func(data []byte, _ uint32) {
			in.Write(data)
		})
	}
	for _, dev := range devices {
		if err := dev.Start(); err != nil {
			s.Stop()
			return nil, classify(err)
		}
	}
	s.graph.Start()

	if err := s.snk.Start(sink.Stream{Video: display.Chunks(), Audio: s.graph.Output()}); err != nil {
		s.Stop()
		return nil, classify(err)
	}
	if err := s.feed.Start(ctx); err != nil {
		s.Stop()
		return nil, classify(err)
	}
	s.clk.Start()

	// The watcher starts only once every component is up: a revocation that
	// fired during the sequence is observed here and tears down components
	// none of the steps above can restart afterwards.
	go s.watch()

	return s, nil
}

func classify(err error) error {
	if errors.Is(err, audio.ErrDenied) || errors.Is(err, screen.ErrDenied) {
		return fmt.Errorf("%w: %v", ErrDenied, err)
	}
	return fmt.Errorf("%w: %v", ErrFailed, err)
}

// watch turns an out-of-band end of the display stream into the same stop
// path as an operator stop, exactly once even when both race.
func (s *Session) watch() {
	select {
	case <-s.display.Done():
		select {
		case <-s.done:
			return
		default:
		}
		log.Info("display capture ended externally, stopping session")
		s.mu.Lock()
		s.revoked = true
		s.mu.Unlock()
		s.Stop()
	case <-s.done:
	}
}

// Stop tears the session down in a fixed order: clock, feed, audio devices,
// display, mixing graph, then the sink finalizes the artifact. Idempotent;
// concurrent triggers produce a single teardown and a single artifact.
// Release failures in one step never prevent the remaining steps.
func (s *Session) Stop() *sink.Artifact {
	s.stopOnce.Do(func() {
		s.clk.Stop()
		s.feed.Stop()
		for _, dev := range s.devices {
			dev.Stop()
			dev.Close()
		}
		s.display.Stop()
		s.graph.Close()

		art := s.snk.Stop()
		s.mu.Lock()
		s.artifact = art
		s.mu.Unlock()

		close(s.done)
	})

	<-s.done
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Done closes once teardown has completed, whatever triggered it.
func (s *Session) Done() <-chan struct{} { return s.done }

// Revoked reports whether the session ended because the display stream was
// terminated out-of-band rather than by an explicit Stop.
func (s *Session) Revoked() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.revoked
}

// Duration reports the session length in seconds, from the session clock.
func (s *Session) Duration() uint64 { return s.clk.Seconds() }

// Ticks delivers each new second of the session clock.
func (s *Session) Ticks() <-chan uint64 { return s.clk.Ticks() }

// Feed exposes the transcript feed for presentation.
func (s *Session) Feed() *transcript.Feed { return s.feed }

// Buffered reports how many recording bytes are committed so far.
func (s *Session) Buffered() int { return s.snk.Buffered() }

// SetTap installs a listener for mixed audio frames, for level meters and
// voice monitoring. The listener must not retain the slice.
func (s *Session) SetTap(fn func(pcm []byte)) {
	s.tap.Store(&fn)
}
