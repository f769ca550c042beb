// Package sink consumes the final recordable stream and produces the
// finished artifact. Chunks are buffered as they arrive and committed on a
// fixed flush interval; everything is concatenated exactly once at stop.
package sink

import (
	"sync"
	"time"

	"plenum/encoder"
	"plenum/log"
)

const flushInterval = time.Second

// Stream is the final recordable stream the orchestrator composes: encoded
// video from the display plus the mixed PCM audio track.
type Stream struct {
	Video <-chan []byte
	Audio <-chan []byte
}

// Artifact is the finished recording. Produced exactly once, immutable
// afterwards. The audio+video and video-only roles deliberately reference
// the same bytes so downstream consumers can pick either.
type Artifact struct {
	data            []byte
	DurationSeconds uint64
	AudioFrames     uint64
}

// NewArtifact builds an artifact directly from finished bytes, for
// collaborators and fakes that never ran a live sink.
func NewArtifact(data []byte, durationSeconds uint64) *Artifact {
	return &Artifact{data: data, DurationSeconds: durationSeconds}
}

// AV returns the combined audio+video recording.
func (a *Artifact) AV() []byte { return a.data }

// Video returns the video-role reference: the same bytes as AV.
func (a *Artifact) Video() []byte { return a.data }

func (a *Artifact) Size() int { return len(a.data) }

type sinkState int

const (
	sinkIdle sinkState = iota
	sinkRecording
	sinkStopped
)

type Sink struct {
	flush time.Duration

	mu       sync.Mutex
	state    sinkState
	enc      *encoder.FlacEncoder
	chunks   [][]byte // committed video chunks, arrival order
	pendingV [][]byte
	pendingA []byte
	started  time.Time
	artifact *Artifact

	stop     chan struct{}
	drained  chan struct{}
	stopOnce sync.Once
}

func New() *Sink {
	return newWithFlush(flushInterval)
}

func newWithFlush(flush time.Duration) *Sink {
	return &Sink{
		flush:   flush,
		stop:    make(chan struct{}),
		drained: make(chan struct{}),
	}
}

// Start begins consuming the stream. Must be called at most once.
func (s *Sink) Start(stream Stream) error {
	enc, err := encoder.NewFlac()
	if err != nil {
		return err
	}

	s.mu.Lock()
	s.state = sinkRecording
	s.enc = enc
	s.started = time.Now()
	s.mu.Unlock()

	go s.consume(stream)
	return nil
}

func (s *Sink) consume(stream Stream) {
	defer close(s.drained)
	ticker := time.NewTicker(s.flush)
	defer ticker.Stop()

	video, audio := stream.Video, stream.Audio
	for video != nil || audio != nil {
		select {
		case chunk, ok := <-video:
			if !ok {
				video = nil
				continue
			}
			s.mu.Lock()
			s.pendingV = append(s.pendingV, chunk)
			s.mu.Unlock()
		case pcm, ok := <-audio:
			if !ok {
				audio = nil
				continue
			}
			s.mu.Lock()
			s.pendingA = append(s.pendingA, pcm...)
			s.mu.Unlock()
		case <-ticker.C:
			s.commit()
		case <-s.stop:
			s.drain(video, audio)
			return
		}
	}
}

// drain pulls whatever the stream channels still hold at stop time, so the
// artifact carries every byte captured before the stop was requested.
func (s *Sink) drain(video, audio <-chan []byte) {
	for video != nil || audio != nil {
		select {
		case chunk, ok := <-video:
			if !ok {
				video = nil
				continue
			}
			s.mu.Lock()
			s.pendingV = append(s.pendingV, chunk)
			s.mu.Unlock()
		case pcm, ok := <-audio:
			if !ok {
				audio = nil
				continue
			}
			s.mu.Lock()
			s.pendingA = append(s.pendingA, pcm...)
			s.mu.Unlock()
		default:
			return
		}
	}
}

// commit moves buffered chunks into the recording.
func (s *Sink) commit() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != sinkRecording {
		return
	}
	s.chunks = append(s.chunks, s.pendingV...)
	s.pendingV = nil
	if len(s.pendingA) > 0 {
		if err := s.enc.WritePCM(s.pendingA); err != nil {
			log.Errorf("audio encode: %v", err)
		}
		s.pendingA = nil
	}
}

// Stop finalizes the artifact. Idempotent: the first call produces it, later
// calls return the same one; stopping a sink that never started is a no-op
// returning nil.
func (s *Sink) Stop() *Artifact {
	s.stopOnce.Do(func() {
		s.mu.Lock()
		if s.state != sinkRecording {
			s.mu.Unlock()
			close(s.stop)
			return
		}
		s.mu.Unlock()

		close(s.stop)
		<-s.drained

		s.commit()

		s.mu.Lock()
		defer s.mu.Unlock()
		s.state = sinkStopped
		if err := s.enc.Close(); err != nil {
			log.Errorf("audio finalize: %v", err)
		}

		var data []byte
		for _, c := range s.chunks {
			data = append(data, c...)
		}
		data = append(data, s.enc.Bytes()...)
		s.chunks = nil

		s.artifact = &Artifact{
			data:            data,
			DurationSeconds: uint64(time.Since(s.started) / time.Second),
			AudioFrames:     s.enc.TotalFrames(),
		}
	})

	s.mu.Lock()
	defer s.mu.Unlock()
	return s.artifact
}

// Buffered reports how many video chunk bytes are committed so far.
func (s *Sink) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	n := 0
	for _, c := range s.chunks {
		n += len(c)
	}
	return n
}
