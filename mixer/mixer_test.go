package mixer

import (
	"bytes"
	"encoding/binary"
	"testing"
	"time"
)

// drain consumes whatever is left in the output so Close can flush and
// return even when the test never read every frame.
func drain(g *Graph) {
	go func() {
		for range g.Output() {
		}
	}()
	g.Close()
}

func pcm(samples ...int16) []byte {
	b := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(b[i*2:], uint16(s))
	}
	return b
}

func samplesOf(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

func TestMixSums(t *testing.T) {
	got := samplesOf(mix([][]byte{pcm(100, -200), pcm(50, 50)}, 4))
	want := []int16{150, -150}
	for i := range want {
		if got[i] != want[i] {
			t.Errorf("sample %d = %d, want %d", i, got[i], want[i])
		}
	}
}

func TestMixSaturates(t *testing.T) {
	got := samplesOf(mix([][]byte{pcm(30000, -30000), pcm(30000, -30000)}, 4))
	if got[0] != 32767 {
		t.Errorf("positive clip = %d, want 32767", got[0])
	}
	if got[1] != -32768 {
		t.Errorf("negative clip = %d, want -32768", got[1])
	}
}

func TestMixShortInputPadsSilence(t *testing.T) {
	got := samplesOf(mix([][]byte{pcm(10), pcm(1, 2)}, 4))
	if got[0] != 11 {
		t.Errorf("sample 0 = %d, want 11", got[0])
	}
	if got[1] != 2 {
		t.Errorf("sample 1 = %d, want 2 (short input pads with silence)", got[1])
	}
}

func TestZeroInputsYieldSilence(t *testing.T) {
	g := newWithPeriod(16000, 5*time.Millisecond)
	g.Start()
	defer drain(g)

	select {
	case frame := <-g.Output():
		for _, s := range samplesOf(frame) {
			if s != 0 {
				t.Fatalf("expected silent frame, got sample %d", s)
			}
		}
	case <-time.After(time.Second):
		t.Fatal("no frame from empty graph")
	}
}

func TestTapSeesMixedFrames(t *testing.T) {
	g := newWithPeriod(16000, 5*time.Millisecond)
	in := g.AddInput("mic")
	tapped := make(chan []byte, 1)
	g.SetTap(func(pcm []byte) {
		select {
		case tapped <- append([]byte(nil), pcm...):
		default:
		}
	})
	g.Start()
	defer drain(g)

	in.Write(pcm(1000, 1000, 1000, 1000))
	select {
	case frame := <-tapped:
		if len(frame) == 0 {
			t.Fatal("tap received empty frame")
		}
	case <-time.After(time.Second):
		t.Fatal("tap never called")
	}
}

func TestCloseFlushesRemainder(t *testing.T) {
	g := newWithPeriod(16000, time.Hour) // tick never fires; only the final flush
	in := g.AddInput("mic")
	g.Start()
	in.Write(pcm(7, 8, 9))
	g.Close()
	g.Close() // idempotent

	var frames [][]byte
	for f := range g.Output() {
		frames = append(frames, f)
	}
	if len(frames) != 1 {
		t.Fatalf("got %d frames, want 1 flush frame", len(frames))
	}
	got := samplesOf(frames[0])
	if len(got) == 0 || got[0] != 7 {
		t.Errorf("flush frame = %v, want leading sample 7", got)
	}
}

func TestStalledReaderLosesNoAudio(t *testing.T) {
	g := newWithPeriod(16000, time.Millisecond)
	in := g.AddInput("mic")

	// 64 frames worth of distinct samples, written up front.
	var want []byte
	for i := 0; i < 64; i++ {
		for j := 0; j < g.frameBytes/2; j++ {
			want = append(want, pcm(int16(i+1))...)
		}
	}
	in.Write(want)
	g.Start()

	// Let the pump fill the buffer and hit a blocked send.
	time.Sleep(50 * time.Millisecond)

	var got []byte
	closed := false
	for frame := range g.Output() {
		got = append(got, frame...)
		if !closed && len(got) >= len(want) {
			closed = true
			go g.Close()
		}
	}

	if len(got) < len(want) {
		t.Fatalf("got %d mixed bytes, want at least %d", len(got), len(want))
	}
	if !bytes.Equal(got[:len(want)], want) {
		t.Error("mixed stream dropped or reordered frames under a stalled reader")
	}
	for _, s := range samplesOf(got[len(want):]) {
		if s != 0 {
			t.Fatalf("unexpected sample %d after the input drained", s)
		}
	}
}

func TestCloseWithoutStart(t *testing.T) {
	g := newWithPeriod(16000, time.Millisecond)
	g.Close()
	if _, ok := <-g.Output(); ok {
		t.Error("output not closed on a graph that never started")
	}
}
