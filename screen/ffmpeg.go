package screen

import (
	"context"
	"fmt"
	"io"
	"os"
	"os/exec"
	"runtime"
	"strconv"
	"strings"
	"sync"

	"plenum/log"
)

const (
	defaultFrameRate = 15
	readChunkBytes   = 64 * 1024
)

// FFmpegGrabber captures the display by spawning ffmpeg against the
// platform's screen-grab input and streaming the muxed output from its
// stdout. Process exit doubles as the revocation signal: when the OS or the
// operator kills the grab out-of-band, Done fires like any other stop.
type FFmpegGrabber struct{}

func NewFFmpegGrabber() *FFmpegGrabber {
	return &FFmpegGrabber{}
}

// CheckFFmpeg verifies the ffmpeg binary is reachable.
func CheckFFmpeg() error {
	if _, err := exec.LookPath("ffmpeg"); err != nil {
		return fmt.Errorf("ffmpeg not found in PATH: %w", err)
	}
	return nil
}

func grabArgs(req Request) []string {
	rate := req.FrameRate
	if rate <= 0 {
		rate = defaultFrameRate
	}
	display := req.Display
	switch runtime.GOOS {
	case "darwin":
		if display == "" {
			display = "1:none"
		}
		return []string{"-f", "avfoundation", "-framerate", strconv.Itoa(rate), "-i", display}
	case "windows":
		return []string{"-f", "gdigrab", "-framerate", strconv.Itoa(rate), "-i", "desktop"}
	default:
		if display == "" {
			display = os.Getenv("DISPLAY")
			if display == "" {
				display = ":0.0"
			}
		}
		return []string{"-f", "x11grab", "-framerate", strconv.Itoa(rate), "-i", display}
	}
}

func (g *FFmpegGrabber) Acquire(ctx context.Context, req Request) (Capture, error) {
	if err := CheckFFmpeg(); err != nil {
		return nil, err
	}

	args := append(grabArgs(req),
		"-c:v", "libvpx",
		"-an",
		"-f", "webm",
		"pipe:1",
	)
	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	var stderr strings.Builder
	cmd.Stderr = &stderr

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("starting ffmpeg: %w", err)
	}

	c := &ffmpegCapture{
		cmd:     cmd,
		chunks:  make(chan []byte, 32),
		done:    make(chan struct{}),
		stopReq: make(chan struct{}),
	}
	go c.readLoop(stdout, &stderr)
	return c, nil
}

type ffmpegCapture struct {
	cmd     *exec.Cmd
	chunks  chan []byte
	done    chan struct{}
	stopReq chan struct{}

	stopOnce sync.Once
	stopped  bool
	mu       sync.Mutex
}

func (c *ffmpegCapture) Chunks() <-chan []byte { return c.chunks }
func (c *ffmpegCapture) Done() <-chan struct{} { return c.done }

func (c *ffmpegCapture) readLoop(stdout io.Reader, stderr *strings.Builder) {
	defer close(c.done)
	defer close(c.chunks)
	buf := make([]byte, readChunkBytes)
	for {
		n, err := stdout.Read(buf)
		if n > 0 {
			chunk := make([]byte, n)
			copy(chunk, buf[:n])
			// Block until the consumer takes the chunk: a stalled sink
			// backpressures the pipe instead of losing recording bytes.
			// A stop request releases the block so teardown never waits
			// on a full channel.
			select {
			case c.chunks <- chunk:
			case <-c.stopReq:
			}
		}
		if err != nil {
			break
		}
	}
	c.cmd.Wait()

	c.mu.Lock()
	requested := c.stopped
	c.mu.Unlock()
	if !requested {
		// The grab ended without us asking. Same as the operator
		// stopping the share from the OS side.
		log.Warnf("display capture ended out-of-band: %s", lastLine(stderr.String()))
	}
}

func (c *ffmpegCapture) Stop() {
	c.stopOnce.Do(func() {
		c.mu.Lock()
		c.stopped = true
		c.mu.Unlock()
		close(c.stopReq)
		if c.cmd.Process != nil {
			c.cmd.Process.Signal(os.Interrupt)
		}
		<-c.done
	})
}

func lastLine(s string) string {
	lines := strings.Split(strings.TrimSpace(s), "\n")
	if len(lines) == 0 {
		return ""
	}
	return strings.TrimSpace(lines[len(lines)-1])
}
