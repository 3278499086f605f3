//go:build linux

// ABOUTME: PulseAudio output backend
// ABOUTME: The playback stream pulls interleaved int16 from the mixer pump
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/jfreymuth/pulse"
)

// Pulse plays the mix through a PulseAudio playback stream
type Pulse struct {
	*Mixer

	mu     sync.Mutex
	client *pulse.Client
	stream *pulse.PlaybackStream
	pump   *pump
}

// NewPulse creates a PulseAudio backend
func NewPulse(cfg Config) *Pulse {
	return &Pulse{Mixer: NewMixer(cfg, 2048)}
}

func (p *Pulse) Name() string { return "pulse" }

func (p *Pulse) Init() error {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		return nil
	}

	client, err := pulse.NewClient(pulse.ClientApplicationName("skyaudio"))
	if err != nil {
		return fmt.Errorf("failed to connect to pulseaudio: %w", err)
	}

	param := p.SourceParam()
	p.pump = newPump(p.Mixer)

	reader := pulse.Int16Reader(func(out []int16) (int, error) {
		p.pump.read(out)
		return len(out), nil
	})
	stream, err := client.NewPlayback(reader,
		pulse.PlaybackStereo,
		pulse.PlaybackSampleRate(param.SampleRate),
		pulse.PlaybackBufferSize(param.BufferFrames),
		pulse.PlaybackLatency(param.BufferDuration.Seconds()*float64(param.NumBuffers)),
	)
	if err != nil {
		client.Close()
		return fmt.Errorf("failed to create playback stream: %w", err)
	}
	stream.Start()

	p.client = client
	p.stream = stream

	log.Printf("Audio output initialized: %dHz, %d channels, %d byte buffers (pulse)", param.SampleRate, Channels, param.BufferBytes)
	return nil
}

func (p *Pulse) Shutdown() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.stream != nil {
		p.stream.Close()
		p.stream = nil
	}
	if p.client != nil {
		p.client.Close()
		p.client = nil
	}
}

func (p *Pulse) Suspend() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		p.stream.Pause()
	}
}

func (p *Pulse) Resume() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.stream != nil {
		p.stream.Resume()
	}
}

// Update is a no-op; the playback stream drives refills
func (p *Pulse) Update() {}
