//go:build !linux

// ABOUTME: PulseAudio stub for platforms without a pulse server
// ABOUTME: Init always fails so callers fall back to another backend
package output

import "errors"

var errPulseUnsupported = errors.New("PulseAudio output is only available on linux")

// Pulse output implementation (stub)
type Pulse struct {
	*Mixer
}

// NewPulse creates a PulseAudio backend
func NewPulse(cfg Config) *Pulse {
	return &Pulse{Mixer: NewMixer(cfg, 2048)}
}

func (p *Pulse) Name() string { return "pulse" }

func (p *Pulse) Init() error { return errPulseUnsupported }

func (p *Pulse) Shutdown() {}
func (p *Pulse) Suspend()  {}
func (p *Pulse) Resume()   {}
func (p *Pulse) Update()   {}
