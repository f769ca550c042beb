// Package transcript maintains the live meeting transcript: a list of final,
// clock-stamped segments plus at most one in-progress partial. It wraps a
// continuous recognition stream that is allowed to die at any moment and is
// restarted for as long as the feed is logically listening.
package transcript

import (
	"context"
	"errors"
	"os"
)

// ErrUnavailable means the platform offers no speech recognition at all. The
// feed degrades to an empty transcript instead of failing the session.
var ErrUnavailable = errors.New("speech recognition unavailable")

// Result is one recognition message. Non-final results carry the current
// guess for the utterance in progress; final results are committed text.
type Result struct {
	Text  string
	Final bool
}

// Stream is one live connection to the recognition service. Results is
// closed when the stream ends, whether asked to or not.
type Stream interface {
	Send(pcm []byte) error
	Results() <-chan Result
	Close() error
}

// Recognizer starts recognition streams. Implementations decide transport
// and protocol; the feed only consumes Results.
type Recognizer interface {
	Start(ctx context.Context) (Stream, error)
}

// FromEnv picks the recognizer the environment is configured for, or reports
// ErrUnavailable when no provider key is set.
func FromEnv() (Recognizer, error) {
	if key := os.Getenv("DEEPGRAM_API_KEY"); key != "" {
		return NewDeepgram(key), nil
	}
	return nil, ErrUnavailable
}
