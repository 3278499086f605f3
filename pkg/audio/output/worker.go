// ABOUTME: Refill scheduling shared by backends
// ABOUTME: A paced goroutine for pushed sinks and a buffer pump for device callbacks
package output

import (
	"sync"
	"sync/atomic"
	"time"
)

// worker calls body roughly every 80% of one buffer duration until stopped
type worker struct {
	stopped  atomic.Bool
	paused   atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

func startWorker(period func() time.Duration, body func()) *worker {
	w := &worker{done: make(chan struct{})}

	go func() {
		defer close(w.done)
		for !w.stopped.Load() {
			if !w.paused.Load() {
				body()
			}
			time.Sleep(period() * 8 / 10)
		}
	}()
	return w
}

// stop asks the loop to exit and waits for the current cycle to finish
func (w *worker) stop() {
	w.stopOnce.Do(func() {
		w.stopped.Store(true)
	})
	<-w.done
}

// pump serves device requests of any size from whole mixer buffers, so every
// refill consumes exactly one slot per source
type pump struct {
	m   *Mixer
	buf []int16
	pos int
}

func newPump(m *Mixer) *pump {
	return &pump{m: m}
}

func (p *pump) read(out []int16) {
	for len(out) > 0 {
		if p.pos >= len(p.buf) {
			frames := p.m.SourceParam().BufferFrames
			if cap(p.buf) < frames*Channels {
				p.buf = make([]int16, frames*Channels)
			}
			p.buf = p.buf[:frames*Channels]
			p.m.refill(p.buf, frames)
			p.pos = 0
		}
		n := copy(out, p.buf[p.pos:])
		p.pos += n
		out = out[n:]
	}
}
