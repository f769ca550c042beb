package transcript

import (
	"context"
	"sync"
)

// FakeRecognizer hands out scriptable streams. Tests emit interim/final
// results and terminate streams to exercise the feed's restart policy.
type FakeRecognizer struct {
	mu       sync.Mutex
	streams  []*FakeStream
	startErr error
}

func NewFakeRecognizer() *FakeRecognizer {
	return &FakeRecognizer{}
}

func (r *FakeRecognizer) FailStartWith(err error) {
	r.mu.Lock()
	r.startErr = err
	r.mu.Unlock()
}

func (r *FakeRecognizer) Start(context.Context) (Stream, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.startErr != nil {
		return nil, r.startErr
	}
	s := &FakeStream{results: make(chan Result, 16)}
	r.streams = append(r.streams, s)
	return s, nil
}

// Streams returns every stream handed out so far, in start order.
func (r *FakeRecognizer) Streams() []*FakeStream {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]*FakeStream(nil), r.streams...)
}

type FakeStream struct {
	results chan Result

	mu      sync.Mutex
	sent    [][]byte
	endOnce sync.Once
	closed  bool
}

func (s *FakeStream) Send(pcm []byte) error {
	s.mu.Lock()
	s.sent = append(s.sent, append([]byte(nil), pcm...))
	s.mu.Unlock()
	return nil
}

func (s *FakeStream) Results() <-chan Result { return s.results }

// Emit delivers a recognition result to the feed.
func (s *FakeStream) Emit(r Result) { s.results <- r }

// End simulates the platform terminating the stream on its own.
func (s *FakeStream) End() {
	s.endOnce.Do(func() { close(s.results) })
}

func (s *FakeStream) Close() error {
	s.mu.Lock()
	s.closed = true
	s.mu.Unlock()
	s.End()
	return nil
}

func (s *FakeStream) Closed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *FakeStream) Sent() [][]byte {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([][]byte(nil), s.sent...)
}
