package timeline

import "sync"

// Player is the external review player clip playback drives. The timeline
// never owns it; it only seeks and pauses.
type Player interface {
	Seek(position float64)
	Pause()
}

// Watchdog bounds clip playback: Play seeks to the clip start and arms it,
// and the first position update at or past the clip end pauses the player
// and disarms. A manual seek always wins over clip-bounded playback.
type Watchdog struct {
	player Player

	mu    sync.Mutex
	end   float64
	armed bool
}

func NewWatchdog(player Player) *Watchdog {
	return &Watchdog{player: player}
}

// Play seeks the player to the clip start and arms the watchdog at its end.
func (w *Watchdog) Play(c Clip) {
	w.mu.Lock()
	w.end = c.End
	w.armed = true
	w.mu.Unlock()
	w.player.Seek(c.Start)
}

// PositionChanged is fed every player position update. Once the position
// reaches the armed end, playback stops and the watchdog disarms.
func (w *Watchdog) PositionChanged(position float64) {
	w.mu.Lock()
	fire := w.armed && position >= w.end
	if fire {
		w.armed = false
	}
	w.mu.Unlock()
	if fire {
		w.player.Pause()
	}
}

// ManualSeek moves the player and disarms the watchdog without pausing:
// manual navigation overrides clip-bounded playback.
func (w *Watchdog) ManualSeek(position float64) {
	w.mu.Lock()
	w.armed = false
	w.mu.Unlock()
	w.player.Seek(position)
}

func (w *Watchdog) Armed() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.armed
}
