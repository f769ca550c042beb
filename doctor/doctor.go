// Package doctor runs interactive diagnostics over every subsystem a
// recording needs: display capture, audio devices, the mark hotkey, the
// recognition and summarization services, and the clipboard.
package doctor

import (
	"bufio"
	gocontext "context"
	"errors"
	"fmt"
	"os"
	"strings"
	"sync"
	"time"

	"plenum/audio"
	"plenum/clipboard"
	"plenum/encoder"
	"plenum/hotkey"
	"plenum/screen"
	"plenum/summary"
	"plenum/transcript"
)

// Run executes the checks and returns an exit code (0=all pass, 1=any fail).
func Run() int {
	resetTerminal()
	setupInterruptHandler()

	fmt.Println("plenum doctor - interactive system diagnostics")
	fmt.Println("==============================================")

	allPass := true

	if !checkDisplayCapture() {
		allPass = false
	}
	if !checkAudio() {
		allPass = false
	}
	if !checkHotkey() {
		allPass = false
	}
	if !checkRecognition() {
		allPass = false
	}
	if !checkSummarizer() {
		allPass = false
	}
	if !checkClipboard() {
		allPass = false
	}

	fmt.Println()
	if allPass {
		fmt.Println("All checks passed!")
		return 0
	}
	fmt.Println("Some checks failed. See details above.")
	return 1
}

func checkDisplayCapture() bool {
	fmt.Println()
	fmt.Println("[1/6] Display capture (ffmpeg)")

	if err := screen.CheckFFmpeg(); err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		fmt.Println("  Install ffmpeg and make sure it is on PATH")
		return false
	}
	fmt.Println("  PASS: ffmpeg found")
	return true
}

func checkAudio() bool {
	fmt.Println()
	fmt.Println("[2/6] Audio devices")

	ctx, err := audio.NewContext()
	if err != nil {
		fmt.Printf("  FAIL: cannot connect to audio: %v\n", err)
		return false
	}
	defer ctx.Close()

	devices, err := ctx.Devices()
	if err != nil {
		fmt.Printf("  FAIL: cannot list devices: %v\n", err)
		return false
	}
	if len(devices) == 0 {
		fmt.Println("  FAIL: no capture devices found")
		return false
	}

	var monitors, mics int
	for _, d := range devices {
		if audio.IsMonitor(d.Name) {
			monitors++
		} else {
			mics++
		}
		if audio.IsBluetooth(d.Name) {
			fmt.Printf("  Note: %s looks like a Bluetooth headset; capture quality may drop\n", d.Name)
		}
	}
	fmt.Printf("  %d microphone(s), %d system audio source(s)\n", mics, monitors)
	if monitors == 0 {
		fmt.Println("  Note: no monitor source; recordings will carry microphone audio only")
	}

	fmt.Print("  Recording 2 seconds from the default microphone")
	data, err := recordSample(ctx, 2*time.Second)
	if err != nil {
		fmt.Printf("\n  FAIL: recording error: %v\n", err)
		return false
	}
	if len(data) == 0 {
		fmt.Println("\n  FAIL: no audio captured")
		return false
	}
	fmt.Printf(" done (%.1f KB)\n", float64(len(data))/1024)
	fmt.Println("  PASS: audio capture works")
	return true
}

func recordSample(ctx audio.Context, d time.Duration) ([]byte, error) {
	var mu sync.Mutex
	var buf []byte

	dev, err := ctx.NewCapture(nil, audio.CaptureConfig{
		SampleRate: encoder.SampleRate,
		Channels:   encoder.Channels,
	})
	if err != nil {
		return nil, err
	}
	defer dev.Close()

	dev.SetCallback(func(data []byte, _ uint32) {
		mu.Lock()
		buf = append(buf, data...)
		mu.Unlock()
	})
	if err := dev.Start(); err != nil {
		return nil, err
	}

	ticker := time.NewTicker(500 * time.Millisecond)
	defer ticker.Stop()
	deadline := time.After(d)
	for {
		select {
		case <-ticker.C:
			fmt.Print(".")
		case <-deadline:
			dev.Stop()
			mu.Lock()
			defer mu.Unlock()
			return buf, nil
		}
	}
}

func checkHotkey() bool {
	fmt.Println()
	fmt.Println("[3/6] Mark-highlight hotkey")
	fmt.Println("Press Ctrl+Shift+M...")

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		fmt.Printf("  FAIL: could not register hotkey: %v\n", err)
		return false
	}
	defer hk.Unregister()

	select {
	case <-hk.Marks():
		resetTerminal()
		fmt.Println("  PASS: hotkey detected")
		return true
	case <-time.After(10 * time.Second):
		fmt.Println("  FAIL: timeout waiting for hotkey")
		return false
	}
}

func checkRecognition() bool {
	fmt.Println()
	fmt.Println("[4/6] Speech recognition")

	rec, err := transcript.FromEnv()
	if errors.Is(err, transcript.ErrUnavailable) {
		fmt.Println("  Note: DEEPGRAM_API_KEY not set; sessions will record without a transcript")
		return true
	}
	if err != nil {
		fmt.Printf("  FAIL: %v\n", err)
		return false
	}

	ctx, cancel := gocontext.WithTimeout(gocontext.Background(), 15*time.Second)
	defer cancel()
	stream, err := rec.Start(ctx)
	if err != nil {
		fmt.Printf("  FAIL: cannot open recognition stream: %v\n", err)
		return false
	}
	stream.Close()
	fmt.Println("  PASS: recognition stream opened")
	return true
}

func checkSummarizer() bool {
	fmt.Println()
	fmt.Println("[5/6] Summarization service")

	if summary.FromEnv() == nil {
		fmt.Println("  FAIL: PLENUM_SUMMARY_URL not set; finished sessions cannot be summarized")
		return false
	}
	fmt.Println("  PASS: summarization endpoint configured")
	return true
}

func checkClipboard() bool {
	fmt.Println()
	fmt.Println("[6/6] Clipboard")

	if !clipboard.Available() {
		fmt.Println("  FAIL: no clipboard backend on this platform")
		return false
	}
	if err := clipboard.Copy("plenum-doctor-test"); err != nil {
		fmt.Printf("  FAIL: clipboard copy failed: %v\n", err)
		return false
	}

	resetTerminal()
	reader := bufio.NewReader(os.Stdin)
	fmt.Print("Paste somewhere: did \"plenum-doctor-test\" appear? [y/n]: ")
	confirm, _ := reader.ReadString('\n')
	confirm = strings.TrimSpace(strings.ToLower(confirm))
	if confirm != "y" && confirm != "yes" {
		fmt.Println("  FAIL: clipboard not confirmed")
		return false
	}
	fmt.Println("  PASS: clipboard verified by user")
	return true
}
