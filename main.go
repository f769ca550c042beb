package main

import (
	"context"
	"encoding/binary"
	"errors"
	"flag"
	"fmt"
	"math"
	"net/http"
	_ "net/http/pprof"
	"os"
	"path/filepath"
	"runtime/debug"
	"sync"
	"time"

	"plenum/audio"
	"plenum/capture"
	"plenum/cue"
	"plenum/doctor"
	"plenum/export"
	"plenum/hotkey"
	"plenum/log"
	"plenum/meeting"
	"plenum/screen"
	"plenum/session"
	"plenum/shutdown"
	"plenum/summary"
	"plenum/transcript"
	"plenum/voice"
)

var version = "dev"

var shutdownOnce sync.Once

func gracefulShutdown(machine *session.Machine) {
	shutdownOnce.Do(func() {
		if machine != nil && machine.State() == session.StateRecording {
			machine.Cancel()
		}
		log.Close()
		tuiMu.Lock()
		p := tuiProgram
		tuiMu.Unlock()
		if p != nil {
			p.Quit()
		}
		os.Exit(0)
	})
}

func run() {
	setupFlag := flag.Bool("setup", false, "Select microphone device (otherwise uses system default)")
	deviceFlag := flag.String("device", "", "Use named microphone device")
	meetingsFlag := flag.String("meetings", "meetings.json", "Path to the imported calendar meetings file")
	exportFlag := flag.String("export", "meetings", "Directory finished meetings are exported into")
	displayFlag := flag.String("display", "", "Display or window to capture (default: primary)")
	fpsFlag := flag.Int("fps", 30, "Display capture frame rate")
	langFlag := flag.String("lang", "en", "Language code for transcription (e.g., en, es, fr)")
	muteFlag := flag.Bool("mute", false, "Disable audible cues")
	versionFlag := flag.Bool("version", false, "Print version and exit")
	doctorFlag := flag.Bool("doctor", false, "Run system diagnostics and exit")
	crashFlag := flag.Bool("crash", false, "Trigger synthetic panic for testing crash logging")
	logPathFlag := flag.String("logpath", "", "log directory path (default: OS-specific location, use ./ for current dir)")
	profileFlag := flag.String("profile", "", "Enable pprof profiling server (e.g., :6060 or localhost:6060)")
	flag.Parse()

	// Resolve log directory early
	logPath, err := log.ResolveDir(*logPathFlag)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to resolve log directory: %v\n", err)
		os.Exit(1)
	}
	log.SetDir(logPath)

	if err := log.EnsureDir(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not create log directory: %v\n", err)
	}

	crashPath := filepath.Join(log.Dir(), "crash_log.txt")
	crashFile, err := os.OpenFile(crashPath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err == nil {
		fmt.Fprintf(crashFile, "\n=== Session %s [pid=%d] ===\n", time.Now().Format("2006-01-02 15:04:05"), os.Getpid())
		debug.SetCrashOutput(crashFile, debug.CrashOptions{})
	}

	if *profileFlag != "" {
		go func() {
			fmt.Fprintf(os.Stderr, "pprof server listening on http://%s/debug/pprof/\n", *profileFlag)
			if err := http.ListenAndServe(*profileFlag, nil); err != nil {
				fmt.Fprintf(os.Stderr, "pprof server error: %v\n", err)
			}
		}()
	}

	if *crashFlag {
		panic("TEST CRASH: synthetic panic to verify crash logging")
	}

	if *versionFlag {
		fmt.Printf("plenum %s\n", version)
		os.Exit(0)
	}

	if *doctorFlag {
		os.Exit(doctor.Run())
	}

	if *muteFlag {
		cue.Disable()
	}

	if err := log.Init(); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: could not init logging: %v\n", err)
	}

	audioCtx, err := audio.NewContext()
	if err != nil {
		log.Errorf("audio context init error: %v", err)
		fmt.Printf("Error initializing audio context: %v\n", err)
		os.Exit(1)
	}
	defer audioCtx.Close()

	var selectedDevice *audio.DeviceInfo
	if *deviceFlag != "" {
		if devices, err := audioCtx.Devices(); err == nil {
			for i := range devices {
				if devices[i].Name == *deviceFlag {
					selectedDevice = &devices[i]
					break
				}
			}
		}
	} else if *setupFlag {
		selectedDevice, err = audio.SelectDevice(audioCtx)
		if err != nil {
			log.Warnf("device selection failed: %v", err)
			fmt.Printf("Warning: device selection failed: %v\n", err)
			fmt.Println("Falling back to default device")
			selectedDevice = nil
		}
	}

	recognizer, err := transcript.FromEnv()
	if err != nil {
		// No provider key is a degraded session, not a fatal one. The
		// transcript simply stays empty.
		log.Warnf("speech recognition: %v", err)
		recognizer = nil
	} else if dg, ok := recognizer.(*transcript.Deepgram); ok && *langFlag != "" {
		dg.SetLanguage(*langFlag)
	}

	var summarizer summary.Summarizer
	if c := summary.FromEnv(); c != nil {
		summarizer = c
	} else {
		log.Warn("no summarization endpoint configured")
	}

	orch := &capture.Orchestrator{
		Audio:      audioCtx,
		Screen:     screen.NewFFmpegGrabber(),
		Recognizer: recognizer,
		Microphone: selectedDevice,
		Display:    screen.Request{Display: *displayFlag, FrameRate: *fpsFlag},
	}

	machine := session.New(func(ctx context.Context, targetURL string) (session.Live, error) {
		s, err := orch.Start(ctx, targetURL)
		if err != nil {
			return nil, err
		}
		cue.Begin()
		go observeSession(s)
		return s, nil
	}, summarizer)

	source := &meeting.FileSource{Path: *meetingsFlag}

	go cue.Init()

	hk := hotkey.New()
	if err := hk.Register(); err != nil {
		// Recording still works from the TUI keys.
		log.Warnf("hotkey register error: %v", err)
	} else {
		defer hk.Unregister()
		go func() {
			for range hk.Marks() {
				if machine.State() != session.StateRecording {
					continue
				}
				if tl := machine.Timeline(); tl != nil {
					h := tl.Mark()
					log.Info(fmt.Sprintf("highlight_marked: %ds", h.TimestampSeconds))
					tuiSend(HighlightMsg{Count: len(tl.Highlights())})
				}
			}
		}()
	}

	sigChan := make(chan os.Signal, 1)
	shutdown.Notify(sigChan)
	go func() {
		<-sigChan
		gracefulShutdown(machine)
	}()

	go watchMachine(machine, *exportFlag)

	tuiMu.Lock()
	tuiProgram = NewTUIProgram(machine, source)
	p := tuiProgram
	tuiMu.Unlock()

	if _, err := p.Run(); err != nil {
		log.Errorf("TUI error: %v", err)
		os.Exit(1)
	}
	gracefulShutdown(machine)
}

// observeSession drives the per-session presentation feeds: audio level,
// voice presence, transcript updates, and the duration readout. Everything
// here ends with the session.
func observeSession(s *capture.Session) {
	det, err := voice.NewDetector()
	if err != nil {
		log.Warnf("voice detection init: %v", err)
		det = nil
	}

	s.SetTap(func(pcm []byte) {
		if len(pcm) < 2 {
			return
		}
		if det != nil {
			det.Process(pcm)
		}
		var sumSquares float64
		for i := 0; i+1 < len(pcm); i += 2 {
			sample := int16(binary.LittleEndian.Uint16(pcm[i:]))
			normalized := float64(sample) / 32768.0
			sumSquares += normalized * normalized
		}
		tuiSend(AudioLevelMsg{Level: math.Sqrt(sumSquares / float64(len(pcm)/2))})
	})

	go func() {
		if det == nil {
			return
		}
		mon := voice.NewMonitor()
		ticker := time.NewTicker(voice.TickInterval)
		defer ticker.Stop()
		for {
			select {
			case <-s.Done():
				return
			case <-ticker.C:
				switch mon.Tick(det.HasSpeechTick()) {
				case voice.EventWarn:
					log.Info("no_voice_warning")
					tuiSend(NoVoiceWarningMsg{})
					cue.Alert()
				case voice.EventClear:
					tuiSend(VoiceClearedMsg{})
				}
			}
		}
	}()

	feed := s.Feed()
	ticks := s.Ticks()
	for {
		select {
		case <-s.Done():
			cue.End()
			return
		case sec, ok := <-ticks:
			if !ok {
				// Clock stopped; teardown is in flight.
				ticks = nil
				continue
			}
			tuiSend(DurationMsg{Seconds: sec})
		case <-feed.Updates():
			tuiSend(TranscriptMsg{Segments: feed.Segments(), Partial: feed.Partial()})
		}
	}
}

// watchMachine exports each finished meeting once, when the machine reaches
// the summary screen with a result and an artifact in hand.
func watchMachine(m *session.Machine, exportDir string) {
	var exported *summary.Result
	for range m.Updates() {
		tuiSend(machineUpdateMsg{})

		if m.State() != session.StateSummary {
			continue
		}
		res := m.Result()
		if res == nil || res == exported {
			continue
		}
		exported = res

		tl := m.Timeline()
		b := export.Bundle{
			Meeting:    m.Meeting(),
			Artifact:   m.Artifact(),
			Transcript: res.Transcript,
			Result:     res,
		}
		if tl != nil {
			b.Highlights = tl.Highlights()
			b.Clips = tl.Clips()
		}
		dir, err := export.Write(exportDir, b)
		if err != nil {
			log.Errorf("export failed: %v", err)
			tuiSend(ErrorMsg{Text: fmt.Sprintf("export failed: %v", err)})
			continue
		}
		log.Info("exported: " + dir)
		tuiSend(ExportedMsg{Dir: dir})
	}
}

// startRecording is the TUI-side entry into a capture attempt. Blocking;
// meant to be run from a tea.Cmd.
func startRecording(m *session.Machine, mt meeting.Meeting) error {
	err := m.StartRecording(context.Background(), mt)
	switch {
	case err == nil:
		return nil
	case errors.Is(err, capture.ErrDenied):
		return fmt.Errorf("capture permission denied")
	default:
		return err
	}
}
