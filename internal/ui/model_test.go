// ABOUTME: Tests for the mixer console model
// ABOUTME: Tests status updates, key commands, selection and rendering
package ui

import (
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

func runeKey(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func twoEmitters() StatusMsg {
	return StatusMsg{
		Backend:        "null",
		SampleRate:     44100,
		BufferDuration: 62500 * time.Microsecond,
		MasterGain:     1,
		Emitters: []EmitterInfo{
			{Name: "music.ogg", State: "playing", Gain: 1, Pitch: 1, Duration: 3 * time.Minute},
			{Name: "step.wav", State: "stopped", Gain: 0.5, Pitch: 1, Is3D: true, X: 2},
		},
	}
}

func TestNewModel(t *testing.T) {
	model := NewModel(nil)

	if model.selected != 0 {
		t.Errorf("expected first emitter selected, got %d", model.selected)
	}
	if model.status.MasterGain != 1 {
		t.Errorf("expected unity master gain, got %f", model.status.MasterGain)
	}
	if model.showHelp {
		t.Error("expected help hidden initially")
	}
}

func TestKeyCommands(t *testing.T) {
	tests := []struct {
		name  string
		key   tea.KeyMsg
		kind  CommandKind
		delta float32
		seek  time.Duration
	}{
		{"space toggles", tea.KeyMsg{Type: tea.KeySpace}, CmdTogglePlay, 0, 0},
		{"stop", runeKey('s'), CmdStop, 0, 0},
		{"restart", runeKey('r'), CmdRestart, 0, 0},
		{"loop", runeKey('l'), CmdToggleLoop, 0, 0},
		{"gain up", tea.KeyMsg{Type: tea.KeyUp}, CmdGain, gainStep, 0},
		{"gain down", tea.KeyMsg{Type: tea.KeyDown}, CmdGain, -gainStep, 0},
		{"pitch up", runeKey('+'), CmdPitch, pitchStep, 0},
		{"pitch down", runeKey('-'), CmdPitch, -pitchStep, 0},
		{"seek forward", tea.KeyMsg{Type: tea.KeyRight}, CmdSeek, 0, seekStep},
		{"seek back", tea.KeyMsg{Type: tea.KeyLeft}, CmdSeek, 0, -seekStep},
		{"master up", runeKey(']'), CmdMasterGain, gainStep, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			controls := NewControls()
			model := NewModel(controls)
			model.applyStatus(twoEmitters())
			model.selected = 1

			model.Update(tt.key)

			select {
			case cmd := <-controls.Commands:
				if cmd.Kind != tt.kind || cmd.Delta != tt.delta || cmd.Seek != tt.seek {
					t.Errorf("unexpected command %+v", cmd)
				}
				if cmd.Emitter != 1 {
					t.Errorf("expected command for emitter 1, got %d", cmd.Emitter)
				}
			default:
				t.Fatal("no command sent")
			}
		})
	}
}

func TestSelectionWraps(t *testing.T) {
	model := NewModel(nil)
	model.applyStatus(twoEmitters())

	next, _ := model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = next.(Model)
	if model.selected != 1 {
		t.Fatalf("expected selection 1, got %d", model.selected)
	}
	next, _ = model.Update(tea.KeyMsg{Type: tea.KeyTab})
	model = next.(Model)
	if model.selected != 0 {
		t.Errorf("expected selection to wrap to 0, got %d", model.selected)
	}
	next, _ = model.Update(tea.KeyMsg{Type: tea.KeyShiftTab})
	model = next.(Model)
	if model.selected != 1 {
		t.Errorf("expected shift+tab to wrap to 1, got %d", model.selected)
	}
}

func TestSelectionClampedWhenEmittersGo(t *testing.T) {
	model := NewModel(nil)
	model.applyStatus(twoEmitters())
	model.selected = 1

	model.applyStatus(StatusMsg{Emitters: []EmitterInfo{{Name: "only"}}})
	if model.selected != 0 {
		t.Errorf("expected selection clamped to 0, got %d", model.selected)
	}
	model.applyStatus(StatusMsg{})
	if model.selected != 0 {
		t.Errorf("expected selection 0 with no emitters, got %d", model.selected)
	}
}

func TestQuitSignalsControls(t *testing.T) {
	controls := NewControls()
	model := NewModel(controls)

	next, cmd := model.Update(runeKey('q'))
	if cmd == nil {
		t.Fatal("expected quit command")
	}
	if !next.(Model).quitting {
		t.Error("expected quitting state")
	}
	select {
	case <-controls.Quit:
	default:
		t.Error("expected quit signal on controls")
	}
}

func TestNilControlsDoNotBlock(t *testing.T) {
	model := NewModel(nil)
	model.applyStatus(twoEmitters())
	model.Update(runeKey('s'))
	model.Update(runeKey('q'))
}

func TestViewRendersEmitters(t *testing.T) {
	model := NewModel(nil)
	model.applyStatus(twoEmitters())

	view := model.View()
	for _, want := range []string{"music.ogg", "step.wav", "null", "3:00", "3D(2.0, 0.0)"} {
		if !strings.Contains(view, want) {
			t.Errorf("view missing %q", want)
		}
	}
}

func TestRenderBar(t *testing.T) {
	tests := []struct {
		value, limit float32
		want         string
	}{
		{0, 2, "░░░░"},
		{1, 2, "██░░"},
		{2, 2, "████"},
		{5, 2, "████"},
		{1, 0, "░░░░"},
	}
	for _, tt := range tests {
		if got := renderBar(tt.value, tt.limit, 4); got != tt.want {
			t.Errorf("renderBar(%v, %v) = %q, want %q", tt.value, tt.limit, got, tt.want)
		}
	}
}

func TestFormatTime(t *testing.T) {
	tests := []struct {
		d    time.Duration
		want string
	}{
		{0, "0:00"},
		{65 * time.Second, "1:05"},
		{1500 * time.Millisecond, "0:02"},
	}
	for _, tt := range tests {
		if got := formatTime(tt.d); got != tt.want {
			t.Errorf("formatTime(%v) = %q, want %q", tt.d, got, tt.want)
		}
	}
}
