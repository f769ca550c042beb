package screen

import (
	"context"
	"sync"
)

// FakeGrabber scripts display acquisition for tests: denial, arbitrary
// failure, or a capture whose chunks and revocation the test controls.
type FakeGrabber struct {
	mu         sync.Mutex
	acquireErr error
	captures   []*FakeCapture
}

func NewFakeGrabber() *FakeGrabber {
	return &FakeGrabber{}
}

func (g *FakeGrabber) FailWith(err error) {
	g.mu.Lock()
	g.acquireErr = err
	g.mu.Unlock()
}

func (g *FakeGrabber) Acquire(context.Context, Request) (Capture, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if g.acquireErr != nil {
		return nil, g.acquireErr
	}
	c := &FakeCapture{
		chunks: make(chan []byte, 32),
		done:   make(chan struct{}),
	}
	g.captures = append(g.captures, c)
	return c, nil
}

func (g *FakeGrabber) Captures() []*FakeCapture {
	g.mu.Lock()
	defer g.mu.Unlock()
	return append([]*FakeCapture(nil), g.captures...)
}

type FakeCapture struct {
	chunks chan []byte
	done   chan struct{}

	mu      sync.Mutex
	endOnce sync.Once
	stops   int
}

func (c *FakeCapture) Chunks() <-chan []byte { return c.chunks }
func (c *FakeCapture) Done() <-chan struct{} { return c.done }

// Push delivers one encoded chunk to the consumer.
func (c *FakeCapture) Push(chunk []byte) {
	c.chunks <- append([]byte(nil), chunk...)
}

// Revoke simulates the OS ending the share out-of-band.
func (c *FakeCapture) Revoke() {
	c.end()
}

func (c *FakeCapture) Stop() {
	c.mu.Lock()
	c.stops++
	c.mu.Unlock()
	c.end()
}

func (c *FakeCapture) end() {
	c.endOnce.Do(func() {
		close(c.chunks)
		close(c.done)
	})
}

// Stops counts explicit Stop calls, distinct from revocation.
func (c *FakeCapture) Stops() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stops
}
