package encoder

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"sync"

	"github.com/mewkiz/flac"
	"github.com/mewkiz/flac/frame"
	"github.com/mewkiz/flac/meta"
)

type FlacEncoder struct {
	buf         bytes.Buffer
	enc         *flac.Encoder
	pending     []int16
	totalFrames uint64
	mu          sync.Mutex
}

func NewFlac() (*FlacEncoder, error) {
	e := &FlacEncoder{}
	info := &meta.StreamInfo{
		BlockSizeMin:  BlockSize,
		BlockSizeMax:  BlockSize,
		SampleRate:    SampleRate,
		NChannels:     Channels,
		BitsPerSample: BitsPerSample,
		NSamples:      0,
	}
	enc, err := flac.NewEncoder(&e.buf, info)
	if err != nil {
		return nil, fmt.Errorf("creating flac encoder: %w", err)
	}
	enc.EnablePredictionAnalysis(true)
	e.enc = enc
	return e, nil
}

func (e *FlacEncoder) EncodeBlock(block []int16) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.encodeBlockLocked(block)
}

func (e *FlacEncoder) encodeBlockLocked(block []int16) error {
	samples32 := make([]int32, len(block))
	for i, s := range block {
		samples32[i] = int32(s)
	}

	subframe := &frame.Subframe{
		SubHeader: frame.SubHeader{
			Pred: frame.PredVerbatim,
		},
		Samples:  samples32,
		NSamples: len(block),
	}

	f := &frame.Frame{
		Header: frame.Header{
			BlockSize:     uint16(len(block)),
			SampleRate:    SampleRate,
			Channels:      frame.ChannelsMono,
			BitsPerSample: BitsPerSample,
		},
		Subframes: []*frame.Subframe{subframe},
	}

	if err := e.enc.WriteFrame(f); err != nil {
		return fmt.Errorf("writing flac frame: %w", err)
	}
	e.totalFrames += uint64(len(block))
	return nil
}

// WritePCM accepts raw little-endian PCM16 as produced by the mixing graph
// and encodes it in full blocks, buffering any tail for the next write.
func (e *FlacEncoder) WritePCM(pcm []byte) error {
	e.mu.Lock()
	defer e.mu.Unlock()

	for i := 0; i+1 < len(pcm); i += 2 {
		e.pending = append(e.pending, int16(binary.LittleEndian.Uint16(pcm[i:])))
	}
	for len(e.pending) >= BlockSize {
		if err := e.encodeBlockLocked(e.pending[:BlockSize]); err != nil {
			return err
		}
		e.pending = e.pending[BlockSize:]
	}
	return nil
}

// Close flushes the buffered tail as a short final block and finalizes the
// stream.
func (e *FlacEncoder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if len(e.pending) > 0 {
		if err := e.encodeBlockLocked(e.pending); err != nil {
			return err
		}
		e.pending = nil
	}
	return e.enc.Close()
}

func (e *FlacEncoder) Bytes() []byte {
	return e.buf.Bytes()
}

func (e *FlacEncoder) TotalFrames() uint64 {
	return e.totalFrames
}
