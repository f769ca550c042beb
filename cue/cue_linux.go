//go:build linux

package cue

import (
	"sync"

	"github.com/jfreymuth/pulse"
)

var (
	beginSamples []int16
	endSamples   []int16
	alertSamples []int16
	synthOnce    sync.Once
)

func initPhrases() {
	beginSamples = synthPhrase(beginLowFreq, beginHighFreq)
	endSamples = synthPhrase(endHighFreq, endLowFreq)
	alertSamples = synthPhrase(alertFreq, alertFreq)
}

func play(samples []int16) {
	if disabled || len(samples) == 0 {
		return
	}
	c, err := pulse.NewClient()
	if err != nil {
		return
	}
	defer c.Close()

	pos := 0
	reader := pulse.Int16Reader(func(buf []int16) (int, error) {
		if pos >= len(samples) {
			return 0, pulse.EndOfData
		}
		n := copy(buf, samples[pos:])
		pos += n
		return n, nil
	})
	stream, err := c.NewPlayback(reader,
		pulse.PlaybackMono,
		pulse.PlaybackSampleRate(sampleRate),
		pulse.PlaybackLatency(0.1),
	)
	if err != nil {
		return
	}
	stream.Start()
	stream.Drain()
	stream.Stop()
	stream.Close()
}

func Init() {
	synthOnce.Do(initPhrases)
}

// Begin plays the recording-started cue.
func Begin() {
	synthOnce.Do(initPhrases)
	go play(beginSamples)
}

// End plays the recording-stopped cue.
func End() {
	synthOnce.Do(initPhrases)
	go play(endSamples)
}

// Alert plays the warning cue.
func Alert() {
	synthOnce.Do(initPhrases)
	go play(alertSamples)
}
