package timeline

import "testing"

func fixedNow(s uint64) func() uint64 {
	return func() uint64 { return s }
}

func TestMarkStampsCurrentDuration(t *testing.T) {
	var now uint64 = 12
	tl := New(func() uint64 { return now })

	h := tl.Mark()
	if h.TimestampSeconds != 12 || h.Label != "Important" {
		t.Errorf("Mark = %+v, want {12 Important}", h)
	}

	now = 30
	tl.Mark()
	tl.Mark() // rapid repeat is a second entry, not a dedupe

	hs := tl.Highlights()
	if len(hs) != 3 {
		t.Fatalf("len(Highlights) = %d, want 3", len(hs))
	}
	if hs[1].TimestampSeconds != 30 || hs[2].TimestampSeconds != 30 {
		t.Error("repeated marks did not both record the current duration")
	}
}

func TestSaveCommitsCompleteRange(t *testing.T) {
	tl := New(fixedNow(0))
	tl.CaptureStart(12)
	tl.CaptureEnd(47)

	c, ok := tl.Save("Budget Discussion")
	if !ok {
		t.Fatal("Save refused a complete range")
	}
	if c.Start != 12 || c.End != 47 || c.Label != "Budget Discussion" {
		t.Errorf("clip = %+v", c)
	}
	if c.ID == "" {
		t.Error("clip committed without identity")
	}

	// Save consumes the pending range.
	if _, ok := tl.Save("Again"); ok {
		t.Error("second Save committed an already-consumed range")
	}
}

func TestSaveRequiresLabelStartAndEnd(t *testing.T) {
	tl := New(fixedNow(0))

	if _, ok := tl.Save("x"); ok {
		t.Error("Save committed with nothing captured")
	}

	tl.CaptureStart(3)
	tl.CaptureEnd(3)
	if _, ok := tl.Save(""); ok {
		t.Error("Save committed without a label")
	}
	if _, ok := tl.Save("Named"); !ok {
		t.Error("Save refused a zero-length labeled range")
	}

	tl.CaptureEnd(9)
	if _, ok := tl.Save("end only"); ok {
		t.Error("Save committed an end-without-start range")
	}
}

func TestRecapturedStartClearsStaleEnd(t *testing.T) {
	tl := New(fixedNow(0))
	tl.CaptureStart(10)
	tl.CaptureEnd(30)
	tl.CaptureStart(50)

	if _, end := tl.Pending(); end != nil {
		t.Error("stale end survived a later start recapture")
	}
	if _, ok := tl.Save("x"); ok {
		t.Error("Save committed a range whose end predates its start")
	}
}

func TestDeletePreservesOthers(t *testing.T) {
	tl := New(fixedNow(0))
	for _, label := range []string{"c1", "c2", "c3"} {
		tl.CaptureStart(1)
		tl.CaptureEnd(2)
		tl.Save(label)
	}
	clips := tl.Clips()

	if !tl.Delete(clips[1].ID) {
		t.Fatal("Delete missed an existing clip")
	}
	rest := tl.Clips()
	if len(rest) != 2 || rest[0].ID != clips[0].ID || rest[1].ID != clips[2].ID {
		t.Errorf("Delete perturbed the remaining clips: %+v", rest)
	}
	if tl.Delete("no-such-id") {
		t.Error("Delete reported removing an unknown id")
	}
}

type fakePlayer struct {
	seeks  []float64
	pauses int
}

func (p *fakePlayer) Seek(pos float64) { p.seeks = append(p.seeks, pos) }
func (p *fakePlayer) Pause()           { p.pauses++ }

func TestWatchdogStopsAtClipEnd(t *testing.T) {
	p := &fakePlayer{}
	w := NewWatchdog(p)
	w.Play(Clip{Start: 12, End: 47})

	if len(p.seeks) != 1 || p.seeks[0] != 12 {
		t.Fatalf("Play seeks = %v, want [12]", p.seeks)
	}

	w.PositionChanged(20)
	if p.pauses != 0 {
		t.Error("paused before the clip end")
	}
	w.PositionChanged(47)
	if p.pauses != 1 {
		t.Error("did not pause at the clip end")
	}
	if w.Armed() {
		t.Error("watchdog still armed after firing")
	}
	w.PositionChanged(60)
	if p.pauses != 1 {
		t.Error("fired again after disarming")
	}
}

func TestManualSeekDisarmsWithoutPausing(t *testing.T) {
	p := &fakePlayer{}
	w := NewWatchdog(p)
	w.Play(Clip{Start: 5, End: 10})

	w.ManualSeek(90)
	if p.pauses != 0 {
		t.Error("manual seek paused playback")
	}
	if w.Armed() {
		t.Error("manual seek left the watchdog armed")
	}
	w.PositionChanged(95)
	if p.pauses != 0 {
		t.Error("disarmed watchdog still fired")
	}
}
