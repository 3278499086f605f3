// ABOUTME: Deviceless backend for headless runs and tests
// ABOUTME: Each Update mixes one buffer into scratch memory
package output

import (
	"log"
	"sync"
)

// Null mixes into a scratch buffer instead of a device. Nothing runs on its
// own; the caller pumps it with Update.
type Null struct {
	*Mixer

	mu        sync.Mutex
	ready     bool
	suspended bool
	buf       []int16
	last      []int16
	refills   int
}

// NewNull creates a null backend
func NewNull(cfg Config) *Null {
	return &Null{Mixer: NewMixer(cfg, FrameSize)}
}

func (n *Null) Name() string { return "null" }

func (n *Null) Init() error {
	n.mu.Lock()
	defer n.mu.Unlock()

	n.ready = true
	p := n.SourceParam()
	log.Printf("Null output ready: %dHz, %d byte buffers", p.SampleRate, p.BufferBytes)
	return nil
}

func (n *Null) Shutdown() {
	n.mu.Lock()
	n.ready = false
	n.mu.Unlock()
}

func (n *Null) Suspend() {
	n.mu.Lock()
	n.suspended = true
	n.mu.Unlock()
}

func (n *Null) Resume() {
	n.mu.Lock()
	n.suspended = false
	n.mu.Unlock()
}

// Update runs the update hook and mixes one buffer
func (n *Null) Update() {
	n.mu.Lock()
	if !n.ready || n.suspended {
		n.mu.Unlock()
		return
	}
	frames := n.SourceParam().BufferFrames
	if cap(n.buf) < frames*Channels {
		n.buf = make([]int16, frames*Channels)
	}
	buf := n.buf[:frames*Channels]
	n.buf = nil
	n.mu.Unlock()

	n.refill(buf, frames)

	n.mu.Lock()
	n.last = append(n.last[:0], buf...)
	n.buf = buf
	n.refills++
	n.mu.Unlock()
}

// Last returns a copy of the most recently mixed buffer
func (n *Null) Last() []int16 {
	n.mu.Lock()
	defer n.mu.Unlock()

	if len(n.last) == 0 {
		return nil
	}
	out := make([]int16, len(n.last))
	copy(out, n.last)
	return out
}

// Refills counts the buffers mixed so far
func (n *Null) Refills() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.refills
}
