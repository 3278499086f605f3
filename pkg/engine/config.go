// ABOUTME: Engine configuration and update scheduling modes
// ABOUTME: Zero values select the documented defaults
package engine

import (
	"fmt"
	"time"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/output"
)

// UpdateMode selects who drives emitter updates
type UpdateMode int

const (
	// UpdateDriver runs emitter updates before every driver refill
	UpdateDriver UpdateMode = iota

	// UpdateThreaded runs emitter updates on the engine's own goroutine
	UpdateThreaded

	// UpdateManual leaves updates to Engine.Update
	UpdateManual
)

func (m UpdateMode) String() string {
	switch m {
	case UpdateDriver:
		return "driver"
	case UpdateThreaded:
		return "threaded"
	case UpdateManual:
		return "manual"
	default:
		return fmt.Sprintf("mode(%d)", int(m))
	}
}

// ParseUpdateMode maps a flag value to an UpdateMode
func ParseUpdateMode(s string) (UpdateMode, error) {
	switch s {
	case "", "driver":
		return UpdateDriver, nil
	case "threaded":
		return UpdateThreaded, nil
	case "manual":
		return UpdateManual, nil
	}
	return UpdateDriver, fmt.Errorf("unknown update mode %q", s)
}

// Config holds engine configuration
type Config struct {
	// Driver is the output backend name (default: "null")
	Driver string

	// SampleRate is the preferred output rate (default: 44100)
	SampleRate int

	// BufferDuration is the length of one driver buffer (default: 62.5ms)
	BufferDuration time.Duration

	// NumBuffers is the number of slots per source (default: 2)
	NumBuffers int

	UpdateMode UpdateMode

	// UpdateRate is the threaded update frequency in Hz (default: 30)
	UpdateRate int

	// StallTimeout moves an emitter starved of data to the error state.
	// Zero waits forever.
	StallTimeout time.Duration

	// MasterGain scales the whole mix. Zero selects unity; set Muted to
	// start silent.
	MasterGain float32

	// Muted starts the engine with a master gain of 0
	Muted bool

	// OutputPath is used by the wavfile backend
	OutputPath string

	// OnEvent is called outside engine locks for every emitter event
	OnEvent func(Event)
}

const DefaultUpdateRate = 30

func (c Config) withDefaults() Config {
	if c.Driver == "" {
		c.Driver = "null"
	}
	if c.UpdateRate <= 0 {
		c.UpdateRate = DefaultUpdateRate
	}
	if c.Muted {
		c.MasterGain = 0
	} else if c.MasterGain == 0 {
		c.MasterGain = 1
	}
	c.MasterGain = audio.ClampGain(c.MasterGain)
	return c
}

func (c Config) outputConfig() output.Config {
	return output.Config{
		SampleRate:     c.SampleRate,
		BufferDuration: c.BufferDuration,
		NumBuffers:     c.NumBuffers,
		MasterGain:     c.MasterGain,
		Muted:          c.MasterGain == 0,
		OutputPath:     c.OutputPath,
	}
}
