// Package cue plays short audible cues so the operator knows a recording
// started or stopped without looking at the terminal. Playback is fire and
// forget; a platform without a playback path stays silent.
package cue

import "math"

var disabled bool

func Disable() { disabled = true }

const (
	sampleRate = 44100

	// Begin: two ascending notes
	beginLowFreq  = 880
	beginHighFreq = 1320

	// End: two descending notes
	endHighFreq = 990
	endLowFreq  = 660

	// Alert: low double note, used for the no-voice warning
	alertFreq = 330

	noteDuration = 0.09
	noteGap      = 0.04
	noteVolume   = 0.5
	noteDecay    = 35
)

func synthNote(freq float64, duration float64) []int16 {
	n := int(sampleRate * duration)
	samples := make([]int16, n)
	for i := 0; i < n; i++ {
		t := float64(i) / sampleRate
		envelope := math.Exp(-t * noteDecay)
		samples[i] = int16(math.Sin(2*math.Pi*freq*t) * 32767 * noteVolume * envelope)
	}
	return samples
}

func synthPhrase(freqs ...float64) []int16 {
	gap := make([]int16, int(sampleRate*noteGap))
	var out []int16
	for i, f := range freqs {
		if i > 0 {
			out = append(out, gap...)
		}
		out = append(out, synthNote(f, noteDuration)...)
	}
	return out
}
