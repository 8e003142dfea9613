package main

import (
	"fmt"
	"strings"
	"sync"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"scribe/state"
)

// TUI message types
type StateMsg struct{ S state.State }
type AudioLevelMsg struct{ Level float64 }
type NoticeMsg struct{ Text string }
type CopiedMsg struct{}
type ModeLineMsg struct{ Text string }   // engine/language info
type DeviceLineMsg struct{ Text string } // microphone device name
type tickMsg time.Time

const noticeVisibleFor = 3 * time.Second

type tuiModel struct {
	st            state.State
	frame         int
	recordStart   time.Time
	audioLevel    float64
	width, height int
	modeLine      string
	deviceLine    string
	lastText      string // retained transcript, shown after the session ends
	liveText      string // transcript + pending partial while recording
	msgCount      int
	copied        bool
	notice        string
	noticeUntil   time.Time

	toggle func()
}

var (
	tuiProgram *tea.Program
	tuiMu      sync.Mutex
)

var (
	spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

	recStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
	standbyStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	loadingStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("226"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	noticeStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	infoStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	faintStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("241"))
	helpStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("239"))
	helpBoldStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("239")).Bold(true)
	titleStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("246"))
	textStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("4"))
	liveStyle     = lipgloss.NewStyle().Foreground(lipgloss.Color("6"))
	copiedStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("42"))
	meterOnStyle  = lipgloss.NewStyle().Foreground(lipgloss.Color("46"))
	meterHotStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
)

func NewTUIProgram(toggle func()) *tea.Program {
	m := tuiModel{st: state.State{Kind: state.Loading}, toggle: toggle}
	return tea.NewProgram(m, tea.WithAltScreen())
}

func tuiTick() tea.Cmd {
	return tea.Tick(60*time.Millisecond, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m tuiModel) Init() tea.Cmd {
	return tuiTick()
}

func (m tuiModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			return m, tea.Quit
		case " ":
			if m.toggle != nil {
				m.toggle()
			}
		}

	case tickMsg:
		m.frame++
		if m.notice != "" && time.Now().After(m.noticeUntil) {
			m.notice = ""
		}
		return m, tuiTick()

	case StateMsg:
		prev := m.st
		m.st = msg.S
		switch m.st.Kind {
		case state.Recording:
			m.recordStart = time.Now()
			m.liveText = ""
			m.audioLevel = 0
			m.copied = false
		case state.PartialResult:
			m.liveText = m.st.Text
		case state.Result:
			m.liveText = m.st.Text
			m.lastText = m.st.Text
			m.msgCount++
		case state.Ready:
			if prev.Kind == state.Recording || prev.Kind == state.PartialResult || prev.Kind == state.Result {
				m.audioLevel = 0
			}
		}

	case AudioLevelMsg:
		if m.recording() {
			m.audioLevel = m.audioLevel*0.6 + msg.Level*0.4
		}

	case NoticeMsg:
		m.notice = msg.Text
		m.noticeUntil = time.Now().Add(noticeVisibleFor)

	case CopiedMsg:
		m.copied = true

	case ModeLineMsg:
		m.modeLine = msg.Text

	case DeviceLineMsg:
		m.deviceLine = msg.Text
	}
	return m, nil
}

// recording reports whether the display is inside an active session.
// PartialResult and Result are sub-states of an ongoing recording.
func (m tuiModel) recording() bool {
	switch m.st.Kind {
	case state.Recording, state.PartialResult, state.Result:
		return true
	}
	return false
}

func (m tuiModel) View() string {
	if m.width == 0 || m.height == 0 {
		return "Loading..."
	}

	var b strings.Builder
	b.WriteString("\n")
	b.WriteString(m.statusLine() + "\n")

	if m.recording() {
		b.WriteString(m.levelMeter() + "\n")
	}
	if m.notice != "" {
		b.WriteString(noticeStyle.Render("⚠ "+m.notice) + "\n")
	}

	if m.modeLine != "" {
		b.WriteString(infoStyle.Render(m.modeLine) + "\n")
	}
	if m.deviceLine != "" {
		b.WriteString(faintStyle.Render(m.deviceLine) + "\n")
	}

	b.WriteString("\n")
	b.WriteString(m.transcriptPanel())
	b.WriteString("\n")

	if m.st.Kind == state.Error {
		b.WriteString(helpStyle.Render("recording disabled — restart to recover  ") +
			helpBoldStyle.Render("q") + helpStyle.Render(" quit") + "\n")
	} else {
		b.WriteString(helpBoldStyle.Render("space") + helpStyle.Render(" record/stop  ") +
			helpBoldStyle.Render("q") + helpStyle.Render(" quit") + "\n")
	}
	b.WriteString(helpStyle.Render("scribe "+version) + "\n")

	return lipgloss.NewStyle().PaddingLeft(2).Render(b.String())
}

func (m tuiModel) statusLine() string {
	switch m.st.Kind {
	case state.Loading:
		spin := spinnerFrames[m.frame%len(spinnerFrames)]
		return loadingStyle.Render(spin + " preparing model...")
	case state.Ready:
		return standbyStyle.Render("○ STANDBY")
	case state.Recording, state.PartialResult, state.Result:
		elapsed := time.Since(m.recordStart).Seconds()
		return recStyle.Render(fmt.Sprintf("● REC %.1fs", elapsed))
	case state.Error:
		return errorStyle.Render("✖ " + m.st.Text)
	}
	return ""
}

func (m tuiModel) levelMeter() string {
	const meterWidth = 24
	filled := int(m.audioLevel * meterWidth * 3) // mic levels are small, stretch them
	if filled > meterWidth {
		filled = meterWidth
	}
	hot := 0
	if filled > meterWidth*3/4 {
		hot = filled - meterWidth*3/4
		filled -= hot
	}
	return meterOnStyle.Render(strings.Repeat("▮", filled)) +
		meterHotStyle.Render(strings.Repeat("▮", hot)) +
		faintStyle.Render(strings.Repeat("▯", meterWidth-filled-hot))
}

func (m tuiModel) transcriptPanel() string {
	wrapWidth := m.width - 4
	if wrapWidth < 10 {
		wrapWidth = 10
	}

	var b strings.Builder
	if m.recording() {
		b.WriteString(titleStyle.Render("Live transcript") + "\n\n")
		text := m.liveText
		if text == "" {
			b.WriteString(faintStyle.Render("(listening)") + "\n")
			return b.String()
		}
		for _, line := range wrapText(text, wrapWidth) {
			b.WriteString(liveStyle.Render(line) + "\n")
		}
		return b.String()
	}

	if m.lastText == "" {
		b.WriteString(faintStyle.Render("No transcriptions yet") + "\n")
		return b.String()
	}

	b.WriteString(titleStyle.Render(fmt.Sprintf("Last transcription (#%d)", m.msgCount)) + "\n\n")
	lines := wrapText(m.lastText, wrapWidth)
	for i, line := range lines {
		b.WriteString(textStyle.Render(line))
		if i == len(lines)-1 && m.copied {
			b.WriteString(" " + copiedStyle.Render("[✓ copied]"))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func sendToTUI(msg tea.Msg) {
	tuiMu.Lock()
	p := tuiProgram
	tuiMu.Unlock()
	if p != nil {
		p.Send(msg)
	}
}

func wrapText(text string, width int) []string {
	if len(text) == 0 {
		return []string{""}
	}
	if width <= 0 {
		width = 1
	}

	var lines []string
	for len(text) > width {
		// Find last space within width
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
