//go:build !linux

package main

import (
	"runtime"

	"golang.design/x/hotkey/mainthread"
)

func init() {
	runtime.LockOSThread()
}

func main() {
	// The hotkey backend needs the main OS thread on darwin and windows.
	mainthread.Init(run)
}
