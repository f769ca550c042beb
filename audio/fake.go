package audio

import (
	"sync"
	"time"
)

const (
	fakeFrameSize     = 1024
	fakeBytesPerFrame = 2 // 16-bit mono
)

// FakeContext drives the capture boundary in tests: scripted device list,
// optional acquisition denial, and captures that replay canned PCM.
type FakeContext struct {
	mu       sync.Mutex
	devices  []DeviceInfo
	pcm      []byte
	deny     bool
	captures []*FakeCapture
}

func NewFakeContext(pcm []byte) *FakeContext {
	return &FakeContext{pcm: pcm}
}

func (f *FakeContext) SetDevices(devices []DeviceInfo) {
	f.mu.Lock()
	f.devices = devices
	f.mu.Unlock()
}

// Deny makes every subsequent acquisition fail with ErrDenied.
func (f *FakeContext) Deny() {
	f.mu.Lock()
	f.deny = true
	f.mu.Unlock()
}

func (f *FakeContext) Devices() ([]DeviceInfo, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]DeviceInfo(nil), f.devices...), nil
}

func (f *FakeContext) NewCapture(device *DeviceInfo, _ CaptureConfig) (CaptureDevice, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deny {
		return nil, ErrDenied
	}
	name := "fake default"
	if device != nil {
		name = device.Name
	}
	c := &FakeCapture{name: name, pcm: f.pcm}
	f.captures = append(f.captures, c)
	return c, nil
}

func (f *FakeContext) Close() {}

// Captures returns every capture handed out, so tests can assert release.
func (f *FakeContext) Captures() []*FakeCapture {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*FakeCapture(nil), f.captures...)
}

type FakeCapture struct {
	name string
	pcm  []byte

	mu       sync.Mutex
	cb       DataCallback
	stopCh   chan struct{}
	feedDone chan struct{}
	stops    int
	closed   bool
}

func (f *FakeCapture) SetCallback(cb DataCallback) {
	f.mu.Lock()
	f.cb = cb
	f.mu.Unlock()
}

func (f *FakeCapture) ClearCallback() {
	f.mu.Lock()
	f.cb = nil
	f.mu.Unlock()
}

func (f *FakeCapture) DeviceName() string { return f.name }

func (f *FakeCapture) Start() error {
	f.mu.Lock()
	f.stopCh = make(chan struct{})
	f.feedDone = make(chan struct{})
	stop, done := f.stopCh, f.feedDone
	f.mu.Unlock()

	chunkBytes := fakeFrameSize * fakeBytesPerFrame
	go func() {
		defer close(done)
		pos := 0
		silence := make([]byte, chunkBytes)
		for {
			select {
			case <-stop:
				return
			case <-time.After(time.Millisecond):
			}
			f.mu.Lock()
			cb := f.cb
			f.mu.Unlock()
			if cb == nil {
				continue
			}
			if pos < len(f.pcm) {
				end := min(pos+chunkBytes, len(f.pcm))
				chunk := make([]byte, end-pos)
				copy(chunk, f.pcm[pos:end])
				pos = end
				cb(chunk, uint32(len(chunk)/fakeBytesPerFrame))
			} else {
				cb(silence, fakeFrameSize)
			}
		}
	}()
	return nil
}

func (f *FakeCapture) Stop() {
	f.mu.Lock()
	f.stops++
	f.mu.Unlock()
	f.halt()
}

func (f *FakeCapture) Close() {
	f.halt()
	f.mu.Lock()
	f.closed = true
	f.mu.Unlock()
}

func (f *FakeCapture) halt() {
	f.mu.Lock()
	stop, done := f.stopCh, f.feedDone
	if stop != nil {
		select {
		case <-stop:
		default:
			close(stop)
		}
	}
	f.mu.Unlock()
	if done != nil {
		<-done
	}
}

// Stops counts Stop calls; teardown must release each handle exactly once.
func (f *FakeCapture) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *FakeCapture) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}
