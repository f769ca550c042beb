package main

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"plenum/clipboard"
	"plenum/meeting"
	"plenum/session"
	"plenum/transcript"
)

// TUI message types
type machineUpdateMsg struct{}
type TranscriptMsg struct {
	Segments []transcript.Segment
	Partial  string
}
type AudioLevelMsg struct{ Level float64 }
type DurationMsg struct{ Seconds uint64 }
type NoVoiceWarningMsg struct{}
type VoiceClearedMsg struct{}
type HighlightMsg struct{ Count int }
type ExportedMsg struct{ Dir string }
type ErrorMsg struct{ Text string }
type meetingsLoadedMsg struct {
	meetings []meeting.Meeting
	err      error
}
type startDoneMsg struct{ err error }
type tickMsg time.Time

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	styleRec      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	styleWarn     = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	styleAccent   = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	styleDim      = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	styleFaint    = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	styleTitle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	styleSelected = lipgloss.NewStyle().Foreground(lipgloss.Color("4")).Bold(true)
	styleGood     = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	stylePartial  = lipgloss.NewStyle().Foreground(lipgloss.Color("245")).Italic(true)
)

type tuiModel struct {
	machine *session.Machine
	source  meeting.Source

	meetings []meeting.Meeting
	loadErr  error
	cursor   int
	starting bool

	width, height int

	level      float64
	duration   uint64
	segments   []transcript.Segment
	partial    string
	noVoice    bool
	highlights int

	exportDir string
	copied    string
	errText   string
}

func NewTUIProgram(machine *session.Machine, source meeting.Source) *tea.Program {
	m := tuiModel{machine: machine, source: source}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) loadMeetings() tea.Cmd {
	src := m.source
	return func() tea.Msg {
		meetings, err := src.Meetings()
		return meetingsLoadedMsg{meetings: meetings, err: err}
	}
}

func (m tuiModel) Init() tea.Cmd {
	return tea.Batch(tuiTick(), m.loadMeetings())
}

func (m tuiModel) selected() meeting.Meeting {
	if m.cursor >= 0 && m.cursor < len(m.meetings) {
		return m.meetings[m.cursor]
	}
	return meeting.Meeting{}
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		return m.handleKey(msg)

	case tickMsg:
		return m, tuiTick()

	case machineUpdateMsg:
		// State transitions reset the per-recording readouts.
		if m.machine.State() == session.StateCalendar {
			m.level = 0
			m.noVoice = false
		}
		if err := m.machine.Err(); err != nil {
			m.errText = err.Error()
		}

	case meetingsLoadedMsg:
		m.meetings = msg.meetings
		m.loadErr = msg.err
		if m.cursor >= len(m.meetings) {
			m.cursor = 0
		}

	case startDoneMsg:
		m.starting = false
		if msg.err != nil {
			m.errText = msg.err.Error()
		} else {
			m.duration = 0
			m.segments = nil
			m.partial = ""
			m.noVoice = false
			m.highlights = 0
			m.exportDir = ""
			m.copied = ""
			m.errText = ""
		}

	case TranscriptMsg:
		m.segments = msg.Segments
		m.partial = msg.Partial

	case AudioLevelMsg:
		if m.machine.State() == session.StateRecording {
			m.level = m.level*0.6 + msg.Level*0.4
		}

	case DurationMsg:
		m.duration = msg.Seconds

	case NoVoiceWarningMsg:
		m.noVoice = true

	case VoiceClearedMsg:
		m.noVoice = false

	case HighlightMsg:
		m.highlights = msg.Count

	case ExportedMsg:
		m.exportDir = msg.Dir

	case ErrorMsg:
		m.errText = msg.Text
	}
	return m, nil
}

func (m tuiModel) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	key := msg.String()
	if key == "ctrl+c" {
		return m, tea.Quit
	}

	switch m.machine.State() {
	case session.StateCalendar:
		switch key {
		case "q":
			return m, tea.Quit
		case "up", "k":
			if m.cursor > 0 {
				m.cursor--
			}
		case "down", "j":
			if m.cursor < len(m.meetings)-1 {
				m.cursor++
			}
		case "r":
			return m, m.loadMeetings()
		case "enter":
			if m.starting {
				break
			}
			m.starting = true
			m.errText = ""
			mt := m.selected()
			machine := m.machine
			return m, func() tea.Msg {
				return startDoneMsg{err: startRecording(machine, mt)}
			}
		case "a":
			// Ad-hoc recording without a calendar entry
			if m.starting {
				break
			}
			m.starting = true
			m.errText = ""
			machine := m.machine
			return m, func() tea.Msg {
				return startDoneMsg{err: startRecording(machine, meeting.Meeting{})}
			}
		}

	case session.StateRecording:
		switch key {
		case "m":
			if tl := m.machine.Timeline(); tl != nil {
				tl.Mark()
				m.highlights = len(tl.Highlights())
			}
		case "s":
			machine := m.machine
			return m, func() tea.Msg {
				machine.StopAndSummarize(context.Background())
				return machineUpdateMsg{}
			}
		case "c":
			m.machine.Cancel()
		}

	case session.StateSummary:
		res := m.machine.Result()
		switch key {
		case "y":
			if res != nil {
				if err := clipboard.Copy(res.SummaryText); err == nil {
					m.copied = "summary"
				}
			}
		case "e":
			if res != nil && res.FollowUpEmail != "" {
				if err := clipboard.Copy(res.FollowUpEmail); err == nil {
					m.copied = "email"
				}
			}
		case "enter", "esc":
			m.machine.CloseSummary()
		}
	}
	return m, nil
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var body string
	switch m.machine.State() {
	case session.StateCalendar:
		body = m.viewCalendar()
	case session.StateRecording:
		body = m.viewRecording()
	case session.StateProcessing:
		body = m.viewProcessing()
	case session.StateSummary:
		body = m.viewSummary()
	}

	header := styleTitle.Render("plenum "+version) + "  " +
		styleDim.Render(m.machine.State().String())
	return header + "\n\n" + body
}

func (m tuiModel) viewCalendar() string {
	var b strings.Builder

	if m.loadErr != nil {
		b.WriteString(styleWarn.Render(fmt.Sprintf("meetings: %v", m.loadErr)) + "\n\n")
	}
	if len(m.meetings) == 0 {
		b.WriteString(styleDim.Render("No meetings imported.") + "\n")
	}
	for i, mt := range m.meetings {
		line := fmt.Sprintf("%s  %s (%s)", mt.Time.Format("Mon 15:04"), mt.Title, mt.Platform)
		if i == m.cursor {
			b.WriteString(styleSelected.Render("> "+line) + "\n")
		} else {
			b.WriteString("  " + line + "\n")
		}
	}

	if m.exportDir != "" {
		b.WriteString("\n" + styleGood.Render("exported: "+m.exportDir) + "\n")
	}
	if m.errText != "" {
		b.WriteString("\n" + styleWarn.Render("error: "+m.errText) + "\n")
	}
	if m.starting {
		b.WriteString("\n" + styleDim.Render("starting capture...") + "\n")
	}

	b.WriteString("\n" + styleFaint.Render("enter record · a ad-hoc · r reload · q quit"))
	return b.String()
}

func (m tuiModel) viewRecording() string {
	var b strings.Builder

	b.WriteString(styleRec.Render(fmt.Sprintf("● REC %s", formatDuration(m.duration))))
	mt := m.machine.Meeting()
	if mt.Title != "" {
		b.WriteString("  " + styleDim.Render(mt.Title))
	}
	b.WriteString("\n")

	b.WriteString(renderLevelBar(m.level, 30) + "\n")
	if m.noVoice {
		b.WriteString(styleWarn.Render("⚠ no voice detected") + "\n")
	}
	if m.highlights > 0 {
		b.WriteString(styleDim.Render(fmt.Sprintf("highlights: %d", m.highlights)) + "\n")
	}
	b.WriteString("\n")

	// Transcript tail plus the in-progress partial
	wrapWidth := m.width - 2
	tailLines := m.height - 12
	if tailLines < 3 {
		tailLines = 3
	}
	var lines []string
	for _, seg := range m.segments {
		text := fmt.Sprintf("[%s] %s", formatDuration(seg.TimestampSeconds), seg.Text)
		lines = append(lines, wrapText(text, wrapWidth)...)
	}
	if len(lines) > tailLines {
		lines = lines[len(lines)-tailLines:]
	}
	for _, line := range lines {
		b.WriteString(styleAccent.Render(line) + "\n")
	}
	if m.partial != "" {
		for _, line := range wrapText(m.partial, wrapWidth) {
			b.WriteString(stylePartial.Render(line) + "\n")
		}
	}

	b.WriteString("\n" + styleFaint.Render("m mark · s stop & summarize · c cancel"))
	return b.String()
}

func (m tuiModel) viewProcessing() string {
	return styleDim.Render("Summarizing...") + "\n"
}

func (m tuiModel) viewSummary() string {
	res := m.machine.Result()
	if res == nil {
		return styleDim.Render("No summary.") + "\n"
	}

	var b strings.Builder
	wrapWidth := m.width - 2

	for _, line := range wrapText(res.SummaryText, wrapWidth) {
		b.WriteString(line + "\n")
	}

	section := func(title string, items []string) {
		if len(items) == 0 {
			return
		}
		b.WriteString("\n" + styleTitle.Render(title) + "\n")
		for _, it := range items {
			for _, line := range wrapText("- "+it, wrapWidth) {
				b.WriteString(line + "\n")
			}
		}
	}
	section("Key points", res.KeyPoints)
	section("Action items", res.ActionItems)
	section("Attendees", res.AttendeesDetected)

	b.WriteString("\n" + styleDim.Render("sentiment: "+res.Sentiment) + "\n")

	if m.exportDir != "" {
		b.WriteString(styleGood.Render("exported: "+m.exportDir) + "\n")
	}
	if m.copied != "" {
		b.WriteString(styleGood.Render("copied "+m.copied+" to clipboard") + "\n")
	}

	help := "y copy summary · enter close"
	if res.FollowUpEmail != "" {
		help = "y copy summary · e copy email · enter close"
	}
	b.WriteString("\n" + styleFaint.Render(help))
	return b.String()
}

func renderLevelBar(level float64, width int) string {
	filled := int(level * float64(width) * 3)
	if filled > width {
		filled = width
	}
	bar := strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
	return styleAccent.Render(bar)
}

func formatDuration(seconds uint64) string {
	return fmt.Sprintf("%02d:%02d", seconds/60, seconds%60)
}

func tuiSend(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()

	if p != nil {
		p.Send(msg)
	}
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return nil
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		splitAt := width
		for i := width; i > 0; i-- {
			if text[i] == ' ' {
				splitAt = i
				break
			}
		}
		lines = append(lines, text[:splitAt])
		text = strings.TrimLeft(text[splitAt:], " ")
	}
	if len(text) > 0 {
		lines = append(lines, text)
	}
	return lines
}
