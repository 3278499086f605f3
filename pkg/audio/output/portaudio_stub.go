//go:build !portaudio

// ABOUTME: PortAudio stub when the library is not compiled in
// ABOUTME: Init reports how to enable the backend
package output

import "errors"

var errPortAudioDisabled = errors.New("PortAudio support not enabled (build with -tags portaudio)")

// PortAudio output implementation (stub)
type PortAudio struct {
	*Mixer
}

// NewPortAudio creates a PortAudio backend
func NewPortAudio(cfg Config) *PortAudio {
	return &PortAudio{Mixer: NewMixer(cfg, 2048)}
}

func (p *PortAudio) Name() string { return "portaudio" }

func (p *PortAudio) Init() error { return errPortAudioDisabled }

func (p *PortAudio) Shutdown() {}
func (p *PortAudio) Suspend()  {}
func (p *PortAudio) Resume()   {}
func (p *PortAudio) Update()   {}
