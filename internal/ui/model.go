// ABOUTME: Bubbletea model for the mixer console
// ABOUTME: Renders engine and emitter status and turns keys into commands
package ui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skylicht-lab/skyaudio/internal/version"
)

const (
	gainStep  = 0.1
	pitchStep = 0.05
	seekStep  = 5 * time.Second
)

// EmitterInfo is one row of the emitter table
type EmitterInfo struct {
	Name     string
	State    string
	Format   string
	Position time.Duration
	Duration time.Duration
	Gain     float32
	Pitch    float32
	Loop     bool
	Is3D     bool
	X, Z     float32
}

// StatusMsg replaces the console's view of the engine
type StatusMsg struct {
	Backend        string
	SampleRate     int
	BufferDuration time.Duration
	MasterGain     float32
	Emitters       []EmitterInfo
	LastEvent      string
}

type tickMsg time.Time

// Model represents the TUI state
type Model struct {
	status   StatusMsg
	selected int
	controls *Controls

	startTime time.Time
	showHelp  bool
	quitting  bool

	width  int
	height int
}

// Init starts the redraw tick
func (m Model) Init() tea.Cmd {
	return tickEvery()
}

func tickEvery() tea.Cmd {
	return tea.Tick(time.Second, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case tickMsg:
		return m, tickEvery()
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

var (
	titleStyle    = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("205")).MarginBottom(1)
	headerStyle   = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("86"))
	valueStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("250"))
	selectedStyle = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("220"))
	errorStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	faintStyle    = lipgloss.NewStyle().Faint(true)
)

// View renders the TUI
func (m Model) View() string {
	if m.quitting {
		return "Stopping audio engine...\n"
	}

	var b strings.Builder
	b.WriteString(titleStyle.Render(fmt.Sprintf("%s %s", version.Product, version.Version)))
	b.WriteString("\n\n")
	b.WriteString(m.renderEngine())
	b.WriteString("\n")
	b.WriteString(m.renderEmitters())
	b.WriteString("\n")

	if m.status.LastEvent != "" {
		b.WriteString(faintStyle.Render("Last event: " + m.status.LastEvent))
		b.WriteString("\n")
	}
	b.WriteString(m.renderHelp())
	return b.String()
}

func (m Model) renderEngine() string {
	var b strings.Builder

	b.WriteString(headerStyle.Render("Output: "))
	backend := m.status.Backend
	if backend == "" {
		backend = "starting..."
	}
	b.WriteString(valueStyle.Render(fmt.Sprintf("%s %dHz, %v buffers", backend, m.status.SampleRate, m.status.BufferDuration.Round(100*time.Microsecond))))
	b.WriteString("\n")

	b.WriteString(headerStyle.Render("Master: "))
	b.WriteString(valueStyle.Render(fmt.Sprintf("[%s] %.2f", renderBar(m.status.MasterGain, 2, 10), m.status.MasterGain)))
	b.WriteString("\n")

	if !m.startTime.IsZero() {
		b.WriteString(headerStyle.Render("Uptime: "))
		b.WriteString(valueStyle.Render(time.Since(m.startTime).Round(time.Second).String()))
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderEmitters() string {
	var b strings.Builder
	b.WriteString(headerStyle.Render(fmt.Sprintf("Emitters (%d)", len(m.status.Emitters))))
	b.WriteString("\n")

	if len(m.status.Emitters) == 0 {
		b.WriteString(valueStyle.Render("  nothing loaded"))
		b.WriteString("\n")
		return b.String()
	}

	for i, em := range m.status.Emitters {
		line := fmt.Sprintf("%-24s %-8s %s / %s  gain %.2f  pitch %.2f",
			truncate(em.Name, 24), em.State,
			formatTime(em.Position), formatTime(em.Duration), em.Gain, em.Pitch)
		if em.Loop {
			line += "  loop"
		}
		if em.Is3D {
			line += fmt.Sprintf("  3D(%.1f, %.1f)", em.X, em.Z)
		}

		switch {
		case i == m.selected:
			b.WriteString(selectedStyle.Render("> " + line))
		case em.State == "error":
			b.WriteString(errorStyle.Render("  " + line))
		default:
			b.WriteString(valueStyle.Render("  " + line))
		}
		b.WriteString("\n")
	}
	return b.String()
}

func (m Model) renderHelp() string {
	if !m.showHelp {
		return faintStyle.Render("Press '?' for keys, 'q' to quit")
	}
	return faintStyle.Render(strings.Join([]string{
		"tab/shift+tab: select   space: play/pause   s: stop   r: restart",
		"up/down: gain   +/-: pitch   left/right: seek   l: loop",
		"[ ]: master gain   ?: hide keys   q: quit",
	}, "\n"))
}

// handleKey maps a key to a command for the selected emitter
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	n := len(m.status.Emitters)

	switch msg.String() {
	case "q", "ctrl+c":
		m.quitting = true
		m.controls.quit()
		return m, tea.Quit
	case "?":
		m.showHelp = !m.showHelp
	case "tab":
		if n > 0 {
			m.selected = (m.selected + 1) % n
		}
	case "shift+tab":
		if n > 0 {
			m.selected = (m.selected + n - 1) % n
		}
	case " ":
		m.send(Command{Kind: CmdTogglePlay})
	case "s":
		m.send(Command{Kind: CmdStop})
	case "r":
		m.send(Command{Kind: CmdRestart})
	case "l":
		m.send(Command{Kind: CmdToggleLoop})
	case "up":
		m.send(Command{Kind: CmdGain, Delta: gainStep})
	case "down":
		m.send(Command{Kind: CmdGain, Delta: -gainStep})
	case "+", "=":
		m.send(Command{Kind: CmdPitch, Delta: pitchStep})
	case "-":
		m.send(Command{Kind: CmdPitch, Delta: -pitchStep})
	case "right":
		m.send(Command{Kind: CmdSeek, Seek: seekStep})
	case "left":
		m.send(Command{Kind: CmdSeek, Seek: -seekStep})
	case "]":
		m.send(Command{Kind: CmdMasterGain, Delta: gainStep})
	case "[":
		m.send(Command{Kind: CmdMasterGain, Delta: -gainStep})
	}

	return m, nil
}

func (m Model) send(cmd Command) {
	cmd.Emitter = m.selected
	m.controls.send(cmd)
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	m.status = msg
	if m.selected >= len(msg.Emitters) {
		m.selected = max(len(msg.Emitters)-1, 0)
	}
}

// Utility functions
func renderBar(value, limit float32, width int) string {
	if limit <= 0 {
		return strings.Repeat("░", width)
	}
	filled := int(value / limit * float32(width))
	filled = min(max(filled, 0), width)
	return strings.Repeat("█", filled) + strings.Repeat("░", width-filled)
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}

func formatTime(d time.Duration) string {
	d = d.Round(time.Second)
	return fmt.Sprintf("%d:%02d", int(d.Minutes()), int(d.Seconds())%60)
}
