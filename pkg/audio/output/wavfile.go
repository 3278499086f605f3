// ABOUTME: Backend that records the mix to a WAV file
// ABOUTME: A worker goroutine refills at real-time pace and appends each buffer
package output

import (
	"fmt"
	"log"
	"os"
	"sync"
	"time"

	goaudio "github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WavFile writes mixed output to cfg.OutputPath
type WavFile struct {
	*Mixer

	path string

	mu      sync.Mutex
	file    *os.File
	enc     *wav.Encoder
	worker  *worker
	buf     []int16
	ibuf    *goaudio.IntBuffer
	start   time.Time
	written time.Duration
	err     error
}

// NewWavFile creates a file recording backend
func NewWavFile(cfg Config) *WavFile {
	cfg = cfg.withDefaults()
	return &WavFile{
		Mixer: NewMixer(cfg, FrameSize),
		path:  cfg.OutputPath,
	}
}

func (w *WavFile) Name() string { return "wavfile" }

func (w *WavFile) Init() error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if w.file != nil {
		return nil
	}

	f, err := os.Create(w.path)
	if err != nil {
		return fmt.Errorf("failed to create output file: %w", err)
	}

	p := w.SourceParam()
	w.file = f
	w.enc = wav.NewEncoder(f, p.SampleRate, p.BitsPerSample, Channels, 1)
	w.ibuf = &goaudio.IntBuffer{
		Format:         &goaudio.Format{NumChannels: Channels, SampleRate: p.SampleRate},
		SourceBitDepth: p.BitsPerSample,
	}
	w.start = time.Now()
	w.written = 0

	w.worker = startWorker(func() time.Duration {
		return w.SourceParam().BufferDuration
	}, w.tick)

	log.Printf("WAV output initialized: %s, %dHz, %d byte buffers", w.path, p.SampleRate, p.BufferBytes)
	return nil
}

// tick writes as many buffers as wall-clock time calls for, plus one ahead
func (w *WavFile) tick() {
	p := w.SourceParam()

	w.mu.Lock()
	due := time.Since(w.start) + p.BufferDuration
	behind := w.written < due && w.enc != nil
	w.mu.Unlock()

	for behind {
		w.writeBuffer(p)

		w.mu.Lock()
		w.written += p.BufferDuration
		behind = w.written < due && w.enc != nil && w.err == nil
		w.mu.Unlock()
	}
}

func (w *WavFile) writeBuffer(p SourceParam) {
	n := p.BufferFrames * Channels
	if cap(w.buf) < n {
		w.buf = make([]int16, n)
	}
	buf := w.buf[:n]
	w.refill(buf, p.BufferFrames)

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc == nil || w.err != nil {
		return
	}
	if cap(w.ibuf.Data) < n {
		w.ibuf.Data = make([]int, n)
	}
	w.ibuf.Data = w.ibuf.Data[:n]
	for i, v := range buf {
		w.ibuf.Data[i] = int(v)
	}
	if err := w.enc.Write(w.ibuf); err != nil {
		w.err = err
		log.Printf("WAV output write failed: %v", err)
	}
}

// Written returns the duration of audio appended so far
func (w *WavFile) Written() time.Duration {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.written
}

// Err returns the first write error
func (w *WavFile) Err() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.err
}

func (w *WavFile) Shutdown() {
	w.mu.Lock()
	wk := w.worker
	w.worker = nil
	w.mu.Unlock()

	if wk != nil {
		wk.stop()
	}

	w.mu.Lock()
	defer w.mu.Unlock()

	if w.enc != nil {
		if err := w.enc.Close(); err != nil {
			log.Printf("Warning: WAV encoder close error: %v", err)
		}
		w.enc = nil
	}
	if w.file != nil {
		if err := w.file.Close(); err != nil {
			log.Printf("Warning: WAV file close error: %v", err)
		}
		w.file = nil
	}
}

func (w *WavFile) Suspend() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.worker != nil {
		w.worker.paused.Store(true)
	}
}

// Resume restarts pacing from now so the pause is not backfilled
func (w *WavFile) Resume() {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.worker != nil {
		w.start = time.Now().Add(-w.written)
		w.worker.paused.Store(false)
	}
}

// Update is a no-op; the worker drives refills
func (w *WavFile) Update() {}
