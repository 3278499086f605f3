// ABOUTME: TUI initialization and control channel
// ABOUTME: Wraps the bubbletea program and carries key commands to the player
package ui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// CommandKind selects what a Command does
type CommandKind int

const (
	CmdTogglePlay CommandKind = iota
	CmdStop
	CmdRestart
	CmdToggleLoop
	CmdGain
	CmdPitch
	CmdSeek
	CmdMasterGain
)

// Command is a user request for the emitter at index Emitter
type Command struct {
	Kind    CommandKind
	Emitter int
	Delta   float32
	Seek    time.Duration
}

// Controls carries commands from the console to the player
type Controls struct {
	Commands chan Command
	Quit     chan struct{}
}

// NewControls creates a control handler
func NewControls() *Controls {
	return &Controls{
		Commands: make(chan Command, 10),
		Quit:     make(chan struct{}, 1),
	}
}

// send drops the command when nobody is listening; keys must never block the UI
func (c *Controls) send(cmd Command) {
	if c == nil {
		return
	}
	select {
	case c.Commands <- cmd:
	default:
	}
}

func (c *Controls) quit() {
	if c == nil {
		return
	}
	select {
	case c.Quit <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(controls *Controls) Model {
	return Model{
		controls:  controls,
		startTime: time.Now(),
		status:    StatusMsg{MasterGain: 1},
	}
}

// Run creates the program; the caller runs it
func Run(controls *Controls) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(controls), tea.WithAltScreen())
	return p, nil
}
