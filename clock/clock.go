// Package clock provides the session-duration counter. It is the only time
// source the transcript feed and the highlight timeline consume, so segment
// and marker timestamps always agree with the duration shown to the operator.
package clock

import (
	"sync"
	"sync/atomic"
	"time"
)

const tickPeriod = time.Second

type Clock struct {
	period  time.Duration
	seconds atomic.Uint64
	ticks   chan uint64

	stop     chan struct{}
	done     chan struct{}
	started  atomic.Bool
	stopOnce sync.Once
}

func New() *Clock {
	return newWithPeriod(tickPeriod)
}

func newWithPeriod(period time.Duration) *Clock {
	return &Clock{
		period: period,
		ticks:  make(chan uint64, 8),
		stop:   make(chan struct{}),
		done:   make(chan struct{}),
	}
}

// Start begins ticking from zero. Calling it again is a no-op.
func (c *Clock) Start() {
	if !c.started.CompareAndSwap(false, true) {
		return
	}
	go func() {
		defer close(c.done)
		ticker := time.NewTicker(c.period)
		defer ticker.Stop()
		for {
			select {
			case <-c.stop:
				return
			case <-ticker.C:
				s := c.seconds.Add(1)
				select {
				case c.ticks <- s:
				default:
				}
			}
		}
	}()
}

// Stop halts the clock and closes the tick channel. Safe to call more than
// once and from concurrent teardown paths.
func (c *Clock) Stop() {
	c.stopOnce.Do(func() {
		close(c.stop)
		if c.started.Load() {
			<-c.done
		}
		close(c.ticks)
	})
}

// Seconds reports the current session duration.
func (c *Clock) Seconds() uint64 {
	return c.seconds.Load()
}

// Ticks delivers each new second. Slow consumers miss ticks rather than
// stalling the clock; Seconds is always exact.
func (c *Clock) Ticks() <-chan uint64 {
	return c.ticks
}
