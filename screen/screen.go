// Package screen is the platform boundary for display/window capture. A
// Capture emits encoded video chunks and signals Done when the stream ends
// for any reason, including the operator revoking sharing from the OS side
// rather than from this program.
package screen

import (
	"context"
	"errors"
)

// ErrDenied reports that the platform refused display capture. Terminal for
// the start attempt.
var ErrDenied = errors.New("display capture denied")

type Request struct {
	// Display names the screen or window to capture; empty picks the
	// platform default.
	Display   string
	FrameRate int
}

// Capture is one live display stream.
type Capture interface {
	// Chunks delivers encoded video in arrival order. Closed after the
	// stream ends.
	Chunks() <-chan []byte
	// Done closes when the stream terminates, whether via Stop or
	// out-of-band revocation.
	Done() <-chan struct{}
	// Stop ends the capture. Idempotent.
	Stop()
}

// Grabber acquires display captures.
type Grabber interface {
	Acquire(ctx context.Context, req Request) (Capture, error)
}
