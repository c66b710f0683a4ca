// Package ui is the terminal front end: transport controls plus the display
// refresh that drives the transport's polling.
package ui

import (
	"context"
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/richinsley/goshadersound/monitor"
	"github.com/richinsley/goshadersound/transport"
)

const (
	seekStep    = 1.0
	gainStep    = 0.1
	seekCommit  = 500 * time.Millisecond
	barWidth    = 40
	meterWidth  = 20
	defaultTick = 16 * time.Millisecond
)

// Loader re-renders the current shader. It is run off the UI goroutine.
type Loader func(ctx context.Context) error

// Model is the TUI state.
type Model struct {
	tr       *transport.Transport
	analyzer *monitor.Analyzer
	load     Loader
	interval time.Duration
	title    string
	loadNow  bool

	state   transport.State
	level   monitor.Snapshot
	errText string
	status  string

	// Keyboard seeking: arrows move the cursor, enter or a short idle
	// commits it.
	cursor   float64
	seekIdle time.Duration

	progress, total int

	width int
}

// tickMsg is the display refresh.
type tickMsg time.Time

// ProgressMsg reports render progress from the session.
type ProgressMsg struct {
	Block, Total int
}

// DiagnosticsMsg carries the current compiler text; empty clears it.
type DiagnosticsMsg string

type loadDoneMsg struct{ err error }

// NewModel builds a model around a transport. analyzer and load are optional.
func NewModel(tr *transport.Transport, analyzer *monitor.Analyzer, load Loader, interval time.Duration, title string) Model {
	if interval <= 0 {
		interval = defaultTick
	}
	return Model{
		tr:       tr,
		analyzer: analyzer,
		load:     load,
		interval: interval,
		title:    title,
		state:    tr.State(),
	}
}

func (m Model) Init() tea.Cmd {
	if m.loadNow {
		return tea.Batch(m.tick(), m.reload())
	}
	return m.tick()
}

func (m Model) reload() tea.Cmd {
	load := m.load
	return func() tea.Msg { return loadDoneMsg{err: load(context.Background())} }
}

func (m Model) tick() tea.Cmd {
	return tea.Tick(m.interval, func(t time.Time) tea.Msg { return tickMsg(t) })
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
	case tickMsg:
		m.refresh()
		return m, m.tick()
	case ProgressMsg:
		m.progress, m.total = msg.Block, msg.Total
	case DiagnosticsMsg:
		m.errText = string(msg)
	case loadDoneMsg:
		m.progress, m.total = 0, 0
		if msg.err != nil {
			m.status = fmt.Sprintf("load failed: %v", firstLine(msg.err.Error()))
		} else {
			m.status = "loaded"
		}
		m.state = m.tr.State()
	}
	return m, nil
}

// refresh is the polling suspension point: it reconciles the transport with
// the device clock and samples the meter.
func (m *Model) refresh() {
	if m.state.Seeking {
		m.seekIdle += m.interval
		if m.seekIdle >= seekCommit {
			m.commitSeek()
		}
	}
	m.tr.Poll()
	m.state = m.tr.State()
	if m.analyzer != nil {
		m.level = m.analyzer.Snapshot()
	}
}

func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.tr.Stop()
		return m, tea.Quit
	case " ":
		if m.state.Playing {
			m.tr.Stop()
		} else {
			at := m.tr.CurrentPosition()
			if at >= m.state.End {
				at = m.state.Start
			}
			m.tr.Play(at)
		}
	case "left", "right":
		if !m.state.Seeking {
			m.tr.BeginSeek()
			m.cursor = m.tr.CurrentPosition()
		}
		if msg.String() == "left" {
			m.cursor -= seekStep
		} else {
			m.cursor += seekStep
		}
		m.cursor = clamp(m.cursor, m.state.Start, m.state.End)
		m.tr.SeekTo(m.cursor)
		m.seekIdle = 0
	case "enter":
		if m.state.Seeking {
			m.commitSeek()
		}
	case "[":
		m.tr.SetWindow(m.tr.CurrentPosition(), m.state.End)
	case "]":
		m.tr.SetWindow(m.state.Start, m.tr.CurrentPosition())
	case "l":
		m.tr.SetLoop(!m.state.Loop)
	case "up":
		m.tr.SetGain(m.state.Gain + gainStep)
	case "down":
		m.tr.SetGain(m.state.Gain - gainStep)
	case "r":
		if m.load == nil || m.state.Loading {
			break
		}
		m.status = "rendering..."
		m.state = m.tr.State()
		return m, m.reload()
	}
	m.state = m.tr.State()
	return m, nil
}

func (m *Model) commitSeek() {
	m.tr.EndSeek(m.cursor)
	m.seekIdle = 0
	m.state = m.tr.State()
}

func (m Model) View() string {
	var sb strings.Builder

	sb.WriteString(fmt.Sprintf("goshadersound  %s\n", m.title))
	switch {
	case m.state.Loading && m.total > 0:
		sb.WriteString(fmt.Sprintf("Rendering block %d/%d\n", m.progress, m.total))
	case m.state.Loading:
		sb.WriteString("Rendering...\n")
	case !m.state.Ready:
		sb.WriteString("No track loaded\n")
	default:
		sb.WriteString(fmt.Sprintf("Loaded %.1fs track\n", m.state.Duration))
	}
	if m.status != "" {
		sb.WriteString(m.status + "\n")
	}

	if m.state.Ready {
		icon := "■"
		if m.state.Playing {
			icon = "▶"
		}
		sb.WriteString(fmt.Sprintf("%s %s %6.2fs\n", icon, m.positionBar(), m.state.Position))
		sb.WriteString(fmt.Sprintf("Window %.2fs - %.2fs   Loop: %s   Gain: %.2f\n",
			m.state.Start, m.state.End, onOff(m.state.Loop), m.state.Gain))
		sb.WriteString(fmt.Sprintf("Level [%s] peak %.2f\n", renderBar(float64(m.level.RMS), 1, meterWidth), m.level.Peak))
	}

	if m.errText != "" {
		sb.WriteString("\n" + m.errText + "\n")
	}

	sb.WriteString("\nspace:Play/Stop  ←/→:Seek  [ ]:Window  l:Loop  ↑/↓:Gain  r:Reload  q:Quit\n")
	return sb.String()
}

// positionBar draws the whole track with the window marked by brackets.
func (m Model) positionBar() string {
	d := m.state.Duration
	if d <= 0 {
		return strings.Repeat(" ", barWidth)
	}
	col := func(t float64) int {
		c := int(t / d * barWidth)
		if c >= barWidth {
			c = barWidth - 1
		}
		return c
	}
	cells := []rune(strings.Repeat("─", barWidth))
	for i := col(m.state.Start); i <= col(m.state.End); i++ {
		cells[i] = '━'
	}
	cells[col(m.state.Start)] = '['
	cells[col(m.state.End)] = ']'
	cells[col(m.state.Position)] = '●'
	return string(cells)
}

func renderBar(value, max float64, width int) string {
	filled := int(value / max * float64(width))
	if filled > width {
		filled = width
	}
	if filled < 0 {
		filled = 0
	}
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func onOff(b bool) string {
	if b {
		return "on"
	}
	return "off"
}

func firstLine(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		return s[:i]
	}
	return s
}

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
