//go:build windows

package cue

// No playback path wired on Windows; cues are silent.

func Init()  {}
func Begin() {}
func End()   {}
func Alert() {}
