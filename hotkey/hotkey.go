// Package hotkey delivers the global mark-highlight key (Ctrl+Shift+M), so
// the operator can mark a moment while the meeting window has focus and this
// program does not.
package hotkey

type Hotkey interface {
	Register() error
	Unregister()
	// Marks fires once per key press. Coalescing: a press during an
	// unconsumed one is dropped, not queued.
	Marks() <-chan struct{}
}
