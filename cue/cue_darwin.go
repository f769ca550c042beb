//go:build darwin

package cue

import (
	"encoding/binary"
	"sync"
	"sync/atomic"

	"github.com/gen2brain/malgo"
)

var (
	malgoCtx     *malgo.AllocatedContext
	device       *malgo.Device
	beginSamples []byte
	endSamples   []byte
	alertSamples []byte
	synthOnce    sync.Once

	playSamples atomic.Pointer[[]byte]
	playPos     atomic.Uint32
	playMu      sync.Mutex
)

func toBytes(samples []int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func initPhrases() {
	var err error
	malgoCtx, err = malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return
	}

	beginSamples = toBytes(synthPhrase(beginLowFreq, beginHighFreq))
	endSamples = toBytes(synthPhrase(endHighFreq, endLowFreq))
	alertSamples = toBytes(synthPhrase(alertFreq, alertFreq))

	config := malgo.DefaultDeviceConfig(malgo.Playback)
	config.Playback.Format = malgo.FormatS16
	config.Playback.Channels = 1
	config.SampleRate = sampleRate

	device, err = malgo.InitDevice(malgoCtx.Context, config, malgo.DeviceCallbacks{
		Data: dataCallback,
	})
	if err != nil {
		malgoCtx.Uninit()
		malgoCtx = nil
	}
}

func dataCallback(pOutput, _ []byte, frameCount uint32) {
	samples := playSamples.Load()
	if samples == nil {
		return
	}
	pos := playPos.Load()
	n := copy(pOutput, (*samples)[pos:])
	playPos.Store(pos + uint32(n))
	if int(pos)+n >= len(*samples) {
		playSamples.Store(nil)
	}
}

func play(samples []byte) {
	if disabled || device == nil || len(samples) == 0 {
		return
	}
	playMu.Lock()
	defer playMu.Unlock()
	playPos.Store(0)
	playSamples.Store(&samples)
	device.Start()
}

func Init() {
	synthOnce.Do(initPhrases)
}

func Begin() {
	synthOnce.Do(initPhrases)
	play(beginSamples)
}

func End() {
	synthOnce.Do(initPhrases)
	play(endSamples)
}

func Alert() {
	synthOnce.Do(initPhrases)
	play(alertSamples)
}
