// ABOUTME: Malgo-based output backend
// ABOUTME: miniaudio's data callback mixes straight into the device buffer
package output

import (
	"fmt"
	"log"
	"sync"

	"github.com/gen2brain/malgo"
)

// Malgo plays the mix through a miniaudio playback device
type Malgo struct {
	*Mixer

	mu       sync.Mutex
	malgoCtx *malgo.AllocatedContext
	device   *malgo.Device
	pump     *pump
	samples  []int16
}

// NewMalgo creates a malgo backend
func NewMalgo(cfg Config) *Malgo {
	return &Malgo{Mixer: NewMixer(cfg, 4096)}
}

func (m *Malgo) Name() string { return "malgo" }

func (m *Malgo) Init() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.device != nil {
		return nil
	}

	if m.malgoCtx == nil {
		ctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
		if err != nil {
			return fmt.Errorf("failed to initialize malgo context: %w", err)
		}
		m.malgoCtx = ctx
	}

	p := m.SourceParam()
	m.pump = newPump(m.Mixer)

	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = Channels
	deviceConfig.SampleRate = uint32(p.SampleRate)
	deviceConfig.PeriodSizeInFrames = uint32(p.BufferFrames)
	deviceConfig.Periods = uint32(p.NumBuffers)
	deviceConfig.Alsa.NoMMap = 1

	callbacks := malgo.DeviceCallbacks{
		Data: func(pOutput, pInput []byte, frameCount uint32) {
			m.dataCallback(pOutput, frameCount)
		},
	}

	device, err := malgo.InitDevice(m.malgoCtx.Context, deviceConfig, callbacks)
	if err != nil {
		return fmt.Errorf("failed to initialize playback device: %w", err)
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		return fmt.Errorf("failed to start device: %w", err)
	}
	m.device = device

	log.Printf("Audio output initialized: %dHz, %d channels, %d byte buffers (malgo)", p.SampleRate, Channels, p.BufferBytes)
	return nil
}

// dataCallback runs on miniaudio's thread
func (m *Malgo) dataCallback(pOutput []byte, frameCount uint32) {
	n := int(frameCount) * Channels
	if cap(m.samples) < n {
		m.samples = make([]int16, n)
	}
	samples := m.samples[:n]
	m.pump.read(samples)

	for i, s := range samples {
		pOutput[i*2] = byte(s)
		pOutput[i*2+1] = byte(s >> 8)
	}
}

func (m *Malgo) Shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.closeDevice()

	if m.malgoCtx != nil {
		if err := m.malgoCtx.Uninit(); err != nil {
			log.Printf("Warning: malgo context uninit error: %v", err)
		}
		m.malgoCtx.Free()
		m.malgoCtx = nil
	}
}

// closeDevice stops and uninitializes the device (must hold m.mu)
func (m *Malgo) closeDevice() {
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
		m.device.Uninit()
		m.device = nil
	}
}

func (m *Malgo) Suspend() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		if err := m.device.Stop(); err != nil {
			log.Printf("Warning: device stop error: %v", err)
		}
	}
}

func (m *Malgo) Resume() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.device != nil {
		if err := m.device.Start(); err != nil {
			log.Printf("Warning: device start error: %v", err)
		}
	}
}

// Update is a no-op; the device callback drives refills
func (m *Malgo) Update() {}
