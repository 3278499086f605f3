//go:build portaudio

// ABOUTME: PortAudio output backend
// ABOUTME: The stream callback mixes straight into PortAudio's buffer
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gordonklaus/portaudio"
)

// PortAudio plays the mix through the default PortAudio device
type PortAudio struct {
	*Mixer

	mu     sync.Mutex
	stream *portaudio.Stream
	pump   *pump
}

// NewPortAudio creates a PortAudio backend
func NewPortAudio(cfg Config) *PortAudio {
	return &PortAudio{Mixer: NewMixer(cfg, 2048)}
}

func (p *PortAudio) Name() string { return "portaudio" }

func (p *PortAudio) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return nil
	}
	if err := portaudio.Initialize(); err != nil {
		return fmt.Errorf("failed to initialize portaudio: %w", err)
	}

	param := p.SourceParam()
	p.pump = newPump(p.Mixer)

	stream, err := portaudio.OpenDefaultStream(0, Channels, float64(param.SampleRate), param.BufferFrames, func(out []int16) {
		p.pump.read(out)
	})
	if err != nil {
		portaudio.Terminate()
		return fmt.Errorf("failed to open stream: %w", err)
	}
	if err := stream.Start(); err != nil {
		stream.Close()
		portaudio.Terminate()
		return fmt.Errorf("failed to start stream: %w", err)
	}
	p.stream = stream

	log.Printf("Audio output initialized: %dHz, %d channels, %d byte buffers (portaudio)", param.SampleRate, Channels, param.BufferBytes)
	return nil
}

func (p *PortAudio) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream == nil {
		return
	}
	if err := p.stream.Stop(); err != nil {
		log.Printf("Warning: portaudio stop error: %v", err)
	}
	if err := p.stream.Close(); err != nil {
		log.Printf("Warning: portaudio close error: %v", err)
	}
	p.stream = nil
	portaudio.Terminate()
}

func (p *PortAudio) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		if err := p.stream.Stop(); err != nil {
			log.Printf("Warning: portaudio stop error: %v", err)
		}
	}
}

func (p *PortAudio) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		if err := p.stream.Start(); err != nil {
			log.Printf("Warning: portaudio start error: %v", err)
		}
	}
}

// Update is a no-op; the stream callback drives refills
func (p *PortAudio) Update() {}
