// ABOUTME: Oto-based output backend
// ABOUTME: Oto pulls PCM from a reader that mixes a fresh buffer whenever it runs dry
package output

import (
	"encoding/binary"
	"fmt"
	"log"
	"sync"

	"github.com/ebitengine/oto/v3"
)

// oto allows a single context per process
var (
	otoOnce sync.Once
	otoCtx  *oto.Context
	otoErr  error
	otoRate int
)

// Oto plays the mix through an oto player
type Oto struct {
	*Mixer

	mu     sync.Mutex
	player *oto.Player
	reader *otoReader
	ready  bool
}

// NewOto creates an oto backend
func NewOto(cfg Config) *Oto {
	return &Oto{Mixer: NewMixer(cfg, 2048)}
}

func (o *Oto) Name() string { return "oto" }

// otoReader converts pumped int16 buffers to little-endian bytes
type otoReader struct {
	pump    *pump
	samples []int16
}

func (r *otoReader) Read(p []byte) (int, error) {
	n := len(p) / 2
	if n == 0 {
		return 0, nil
	}
	if cap(r.samples) < n {
		r.samples = make([]int16, n)
	}
	samples := r.samples[:n]
	r.pump.read(samples)

	for i, s := range samples {
		binary.LittleEndian.PutUint16(p[i*2:], uint16(s))
	}
	return n * 2, nil
}

func (o *Oto) Init() error {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.ready {
		return nil
	}

	p := o.SourceParam()
	otoOnce.Do(func() {
		op := &oto.NewContextOptions{
			SampleRate:   p.SampleRate,
			ChannelCount: Channels,
			Format:       oto.FormatSignedInt16LE,
			BufferSize:   p.BufferDuration,
		}
		ctx, readyChan, err := oto.NewContext(op)
		if err != nil {
			otoErr = fmt.Errorf("failed to create oto context: %w", err)
			return
		}
		<-readyChan
		otoCtx = ctx
		otoRate = p.SampleRate
	})
	if otoErr != nil {
		return otoErr
	}

	// The context can not be reinitialised with a new rate
	if otoRate != p.SampleRate {
		log.Printf("Warning: oto context already running at %dHz, ignoring requested %dHz", otoRate, p.SampleRate)
	}

	o.reader = &otoReader{pump: newPump(o.Mixer)}
	o.player = otoCtx.NewPlayer(o.reader)
	o.player.SetBufferSize(p.BufferBytes * p.NumBuffers)
	o.player.Play()
	o.ready = true

	log.Printf("Audio output initialized: %dHz, %d channels, %d byte buffers (oto)", p.SampleRate, Channels, p.BufferBytes)
	return nil
}

func (o *Oto) Shutdown() {
	o.mu.Lock()
	defer o.mu.Unlock()

	if o.player != nil {
		o.player.Pause()
		if err := o.player.Close(); err != nil {
			log.Printf("Warning: oto player close error: %v", err)
		}
		o.player = nil
	}
	o.ready = false
}

func (o *Oto) Suspend() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.Pause()
	}
}

func (o *Oto) Resume() {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.player != nil {
		o.player.Play()
	}
}

// Update is a no-op; oto's reader goroutine drives refills
func (o *Oto) Update() {}
