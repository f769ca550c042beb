// Package audio is the platform boundary for audio acquisition: microphone
// devices and, where the backend exposes them, monitor sources carrying the
// system audio of the meeting itself.
package audio

import (
	"errors"
	"strings"
)

// ErrDenied reports that the platform refused access to a capture device.
// The orchestrator treats it as terminal for the whole start attempt.
var ErrDenied = errors.New("audio capture denied")

var btKeywords = []string{
	"airpods", "beats", "bose", "wh-1000", "wf-1000",
	"sony wh-", "sony wf-",
	"jabra", "galaxy buds", "pixel buds", "powerbeats",
	"jbl ", "sennheiser momentum", "plantronics",
	"tozo", "anker soundcore", "skullcandy",
	"bluetooth", " bt ", " bt)", " bt]",
}

// IsBluetooth guesses whether a device is a Bluetooth headset, which tends
// to capture at reduced quality while its mic profile is active.
func IsBluetooth(name string) bool {
	lower := strings.ToLower(name)
	for _, kw := range btKeywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

// IsMonitor reports whether a source carries playback loopback (system
// audio) rather than a physical microphone.
func IsMonitor(name string) bool {
	lower := strings.ToLower(name)
	return strings.Contains(lower, ".monitor") || strings.Contains(lower, "monitor of")
}

type DataCallback func(data []byte, frameCount uint32)

type CaptureConfig struct {
	SampleRate uint32
	Channels   uint32
}

type DeviceInfo struct {
	ID   string // opaque platform-specific identifier
	Name string
}

type Context interface {
	Devices() ([]DeviceInfo, error)
	NewCapture(device *DeviceInfo, config CaptureConfig) (CaptureDevice, error)
	Close()
}

type CaptureDevice interface {
	Start() error
	Stop()
	Close()
	SetCallback(cb DataCallback)
	ClearCallback()
	DeviceName() string
}

// MonitorDevice returns the first monitor source, or nil when the backend
// exposes none. Absence of system audio is a warning upstream, not an error.
func MonitorDevice(ctx Context) (*DeviceInfo, error) {
	devices, err := ctx.Devices()
	if err != nil {
		return nil, err
	}
	for i := range devices {
		if IsMonitor(devices[i].Name) {
			return &devices[i], nil
		}
	}
	return nil, nil
}
