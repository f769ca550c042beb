// Package encoder turns the mixed meeting audio into the artifact's audio
// track. FLAC keeps the track lossless; the summarization backend gets the
// same bytes the operator reviews.
package encoder

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16
	BlockSize     = 4096
)

type Encoder interface {
	EncodeBlock(block []int16) error
	Close() error
	Bytes() []byte
	TotalFrames() uint64
}
