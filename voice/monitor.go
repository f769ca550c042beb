package voice

import "time"

const (
	// TickInterval is the cadence Monitor.Tick is meant to be driven at.
	TickInterval = 100 * time.Millisecond

	warnAfter        = 8 * time.Second
	speechMinRatio   = 0.10
	speechClearRatio = 0.25 // higher threshold to clear the warning (hysteresis)
)

type Event int

const (
	EventNone  Event = iota
	EventWarn        // no voice detected
	EventClear       // speech resumed after a warning
)

// Monitor raises a single warning when the recent window carries almost no
// speech and clears it once speech clearly resumes. A meeting can legally be
// silent for a long time, so there is no auto-stop, just the warning.
type Monitor struct {
	warnAt int

	ticks  int
	window []bool
	warned bool
}

func NewMonitor() *Monitor {
	warnAt := int(warnAfter / TickInterval)
	return &Monitor{
		warnAt: warnAt,
		window: make([]bool, warnAt),
	}
}

func (m *Monitor) ratio() float64 {
	n := m.warnAt
	if m.ticks < n {
		n = m.ticks
	}
	if n == 0 {
		return 1.0
	}
	count := 0
	for i := 0; i < n; i++ {
		if m.window[(m.ticks-1-i+m.warnAt)%m.warnAt] {
			count++
		}
	}
	return float64(count) / float64(n)
}

func (m *Monitor) Tick(hasSpeech bool) Event {
	m.window[m.ticks%m.warnAt] = hasSpeech
	m.ticks++

	r := m.ratio()

	if m.ticks >= m.warnAt && r < speechMinRatio && !m.warned {
		m.warned = true
		return EventWarn
	}
	if m.warned && r >= speechClearRatio {
		m.warned = false
		return EventClear
	}
	return EventNone
}

// Warned reports whether the warning is currently showing.
func (m *Monitor) Warned() bool {
	return m.warned
}
