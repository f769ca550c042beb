// Package mixer combines the granted audio sources into the single track the
// recording sink and the transcript feed consume. Mixing is pure summation
// saturating at int16 bounds: there is no gain normalization, so two loud
// sources can clip. A graph with zero inputs produces silence, not an error.
package mixer

import (
	"encoding/binary"
	"sync"
	"time"
)

const (
	framePeriod    = 100 * time.Millisecond
	bytesPerSample = 2 // PCM16 mono
)

type Graph struct {
	sampleRate int
	period     time.Duration
	frameBytes int

	mu      sync.Mutex
	inputs  []*Input
	tap     func(pcm []byte)
	started bool

	// carry holds a frame whose delivery was interrupted by Close; the
	// final flush prepends it so no mixed audio is lost. Pump-only.
	carry []byte

	out       chan []byte
	stop      chan struct{}
	done      chan struct{}
	closeOnce sync.Once
}

// Input is one optional audio source feeding the graph. Capture callbacks
// write raw PCM16 into it; the graph drains it every frame period.
type Input struct {
	name string

	mu  sync.Mutex
	buf []byte
}

func (in *Input) Write(pcm []byte) {
	in.mu.Lock()
	in.buf = append(in.buf, pcm...)
	in.mu.Unlock()
}

func (in *Input) take(n int) []byte {
	in.mu.Lock()
	defer in.mu.Unlock()
	if n > len(in.buf) {
		n = len(in.buf)
	}
	chunk := in.buf[:n:n]
	in.buf = in.buf[n:]
	return chunk
}

func New(sampleRate int) *Graph {
	return newWithPeriod(sampleRate, framePeriod)
}

func newWithPeriod(sampleRate int, period time.Duration) *Graph {
	frameBytes := sampleRate * bytesPerSample * int(period.Milliseconds()) / 1000
	return &Graph{
		sampleRate: sampleRate,
		period:     period,
		frameBytes: frameBytes,
		out:        make(chan []byte, 16),
		stop:       make(chan struct{}),
		done:       make(chan struct{}),
	}
}

// AddInput registers a source. Must happen before Start.
func (g *Graph) AddInput(name string) *Input {
	g.mu.Lock()
	defer g.mu.Unlock()
	in := &Input{name: name}
	g.inputs = append(g.inputs, in)
	return in
}

// SetTap installs the analysis tap. The tap sees every mixed frame and must
// not retain the slice.
func (g *Graph) SetTap(fn func(pcm []byte)) {
	g.mu.Lock()
	g.tap = fn
	g.mu.Unlock()
}

// Output delivers mixed PCM16 frames. Closed by Close after the final frame.
func (g *Graph) Output() <-chan []byte {
	return g.out
}

func (g *Graph) Start() {
	g.mu.Lock()
	g.started = true
	g.mu.Unlock()
	go g.pump()
}

// Close drains whatever the inputs still hold into one last frame, then
// closes the output. Safe to call more than once, and on a graph that
// never started.
func (g *Graph) Close() {
	g.closeOnce.Do(func() {
		close(g.stop)
		g.mu.Lock()
		started := g.started
		g.mu.Unlock()
		if started {
			<-g.done
		} else {
			close(g.out)
		}
	})
}

func (g *Graph) pump() {
	defer close(g.done)
	defer close(g.out)
	ticker := time.NewTicker(g.period)
	defer ticker.Stop()
	for {
		select {
		case <-g.stop:
			g.emit(true)
			return
		case <-ticker.C:
			g.emit(false)
			if g.carry != nil {
				// Close interrupted the send; flush in order and exit.
				g.emit(true)
				return
			}
		}
	}
}

// emit mixes one frame. On a regular tick the frame is the fixed frame size,
// zero-padded for inputs that are short; on the final flush it is whatever
// remains buffered.
func (g *Graph) emit(final bool) {
	g.mu.Lock()
	inputs := g.inputs
	tap := g.tap
	g.mu.Unlock()

	chunks := make([][]byte, 0, len(inputs))
	longest := 0
	for _, in := range inputs {
		c := in.take(g.frameBytes)
		if len(c) > longest {
			longest = len(c)
		}
		chunks = append(chunks, c)
	}

	size := g.frameBytes
	if final {
		size = longest
		if size == 0 && len(g.carry) == 0 {
			return
		}
	}

	mixed := mix(chunks, size)
	if tap != nil && len(mixed) > 0 {
		tap(mixed)
	}

	if final {
		if len(g.carry) > 0 {
			mixed = append(g.carry, mixed...)
			g.carry = nil
		}
		g.out <- mixed
		return
	}

	// The send blocks rather than dropping: the sink consumes until after
	// the graph closes, so a momentary stall delays the frame instead of
	// losing it from the artifact.
	select {
	case g.out <- mixed:
	case <-g.stop:
		g.carry = mixed
	}
}

// mix sums PCM16 little-endian chunks into a frame of size bytes. Shorter
// chunks contribute silence for their missing tail. Saturates, never wraps.
func mix(chunks [][]byte, size int) []byte {
	out := make([]byte, size)
	for i := 0; i+1 < size; i += 2 {
		var sum int32
		for _, c := range chunks {
			if i+1 < len(c) {
				sum += int32(int16(binary.LittleEndian.Uint16(c[i:])))
			}
		}
		if sum > 32767 {
			sum = 32767
		} else if sum < -32768 {
			sum = -32768
		}
		binary.LittleEndian.PutUint16(out[i:], uint16(int16(sum)))
	}
	return out
}
