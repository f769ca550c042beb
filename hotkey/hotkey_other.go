//go:build !linux

package hotkey

import (
	"golang.design/x/hotkey"
)

type xHotkey struct {
	hk    *hotkey.Hotkey
	marks chan struct{}
}

func New() Hotkey {
	return &xHotkey{
		hk:    hotkey.New([]hotkey.Modifier{hotkey.ModCtrl, hotkey.ModShift}, hotkey.KeyM),
		marks: make(chan struct{}, 1),
	}
}

func (h *xHotkey) Register() error {
	if err := h.hk.Register(); err != nil {
		return err
	}
	go func() {
		for {
			<-h.hk.Keydown()
			select {
			case h.marks <- struct{}{}:
			default:
			}
		}
	}()
	return nil
}

func (h *xHotkey) Unregister() {
	h.hk.Unregister()
}

func (h *xHotkey) Marks() <-chan struct{} {
	return h.marks
}

func Diagnose() (string, error) {
	return "hotkey support available (Ctrl+Shift+M)", nil
}
