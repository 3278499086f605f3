// ABOUTME: Audio engine context owning the driver, emitters and stream cache
// ABOUTME: Schedules emitter updates in driver, threaded or manual mode
package engine

import (
	"fmt"
	"log"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/decode"
	"github.com/skylicht-lab/skyaudio/pkg/audio/output"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

// Engine owns one output driver and every emitter playing through it
type Engine struct {
	cfg Config

	// lifecycle serialises Init, Shutdown, Pause and Resume
	lifecycle sync.Mutex

	mu       sync.Mutex
	driver   output.Driver
	emitters []*Emitter
	running  bool
	paused   bool
	lastTick time.Time
	thread   *updater
	listener audio.Listener

	streamMu sync.Mutex
	streams  *stream.Registry
	cache    map[string]stream.Stream

	now func() time.Time
}

// New creates an engine. Nothing is opened until Init.
func New(cfg Config) *Engine {
	return &Engine{
		cfg:      cfg.withDefaults(),
		streams:  stream.NewRegistry(stream.FileFactory{}),
		cache:    make(map[string]stream.Stream),
		listener: audio.DefaultListener(),
		now:      time.Now,
	}
}

// Init opens the output backend and starts the update schedule
func (e *Engine) Init() error {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	if e.Driver() != nil {
		return nil
	}

	drv, err := output.New(e.cfg.Driver, e.cfg.outputConfig())
	if err != nil {
		return fmt.Errorf("failed to create output: %w", err)
	}
	drv.SetListener(e.Listener())
	if e.cfg.UpdateMode == UpdateDriver {
		drv.SetUpdateHook(e.tick)
	}

	// Device callbacks may start before Init returns; tick ignores them
	// until running is set
	if err := drv.Init(); err != nil {
		return fmt.Errorf("failed to initialize %s output: %w", drv.Name(), err)
	}

	e.mu.Lock()
	e.driver = drv
	e.running = true
	e.paused = false
	e.lastTick = time.Time{}
	if e.cfg.UpdateMode == UpdateThreaded {
		e.thread = startUpdater(e.cfg.UpdateRate, e.tick)
	}
	e.mu.Unlock()

	p := drv.SourceParam()
	log.Printf("Audio engine started: %s output, %dHz, %v buffers x%d, %s updates",
		drv.Name(), p.SampleRate, p.BufferDuration, p.NumBuffers, e.cfg.UpdateMode)
	return nil
}

// Shutdown stops updates, destroys every emitter and closes the backend
func (e *Engine) Shutdown() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}
	th := e.thread
	e.thread = nil
	e.running = false
	e.mu.Unlock()

	if th != nil {
		th.stop()
	}

	// Outside e.mu: the driver's callback may be waiting on it
	drv := e.Driver()
	drv.SetUpdateHook(nil)
	e.DestroyAllEmitters()
	drv.Shutdown()

	e.mu.Lock()
	e.driver = nil
	e.mu.Unlock()

	e.streamMu.Lock()
	e.cache = make(map[string]stream.Stream)
	e.streamMu.Unlock()

	log.Printf("Audio engine stopped")
}

// Pause suspends the backend and the update goroutine
func (e *Engine) Pause() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.running || e.paused {
		e.mu.Unlock()
		return
	}
	e.paused = true
	th := e.thread
	e.thread = nil
	e.mu.Unlock()

	if th != nil {
		th.stop()
	}
	e.Driver().Suspend()
}

// Resume restarts a paused engine
func (e *Engine) Resume() {
	e.lifecycle.Lock()
	defer e.lifecycle.Unlock()

	e.mu.Lock()
	if !e.running || !e.paused {
		e.mu.Unlock()
		return
	}
	drv := e.driver
	e.mu.Unlock()

	drv.Resume()

	e.mu.Lock()
	e.paused = false
	e.lastTick = time.Time{}
	if e.cfg.UpdateMode == UpdateThreaded {
		e.thread = startUpdater(e.cfg.UpdateRate, e.tick)
	}
	e.mu.Unlock()
}

// Update pumps the engine from the application loop. In manual mode it
// updates emitters; in every mode it lets the driver refill if it has no
// thread of its own.
func (e *Engine) Update() {
	e.mu.Lock()
	running, paused := e.running, e.paused
	drv := e.driver
	e.mu.Unlock()

	if !running || paused {
		return
	}
	if e.cfg.UpdateMode == UpdateManual {
		e.tick()
	}
	drv.Update()
}

// tick updates every emitter once and then delivers their events
func (e *Engine) tick() {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return
	}

	now := e.now()
	dt := time.Second / time.Duration(e.cfg.UpdateRate)
	if !e.lastTick.IsZero() {
		dt = now.Sub(e.lastTick)
	}
	e.lastTick = now

	var events []Event
	for _, em := range e.emitters {
		events = append(events, em.update(dt)...)
	}
	e.mu.Unlock()

	e.deliver(events)
}

func (e *Engine) deliver(events []Event) {
	if e.cfg.OnEvent == nil {
		return
	}
	for _, ev := range events {
		e.cfg.OnEvent(ev)
	}
}

// Driver returns the active backend, nil before Init
func (e *Engine) Driver() output.Driver {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.driver
}

func (e *Engine) add(em *Emitter) *Emitter {
	e.mu.Lock()
	e.emitters = append(e.emitters, em)
	e.mu.Unlock()
	return em
}

// CreateEmitter plays s decoded as format
func (e *Engine) CreateEmitter(s stream.Stream, format decode.Format) *Emitter {
	em := newEmitter(e)
	em.stream = s
	em.format = format
	return e.add(em)
}

// CreateEmitterFromFile plays the named file or URL. The stream is opened on
// the first update; with cache set the whole file is kept in memory and
// shared by every emitter created for the same name.
func (e *Engine) CreateEmitterFromFile(name string, cache bool) *Emitter {
	em := newEmitter(e)
	em.name = name
	em.cache = cache
	em.format = decode.FormatFromName(name)
	return e.add(em)
}

// CreateRawEmitter plays headerless 16-bit PCM described by params
func (e *Engine) CreateRawEmitter(s stream.Stream, params audio.TrackParams) *Emitter {
	em := newEmitter(e)
	em.stream = s
	em.format = decode.FormatRaw
	em.raw = &params
	return e.add(em)
}

// CreateLiveEmitter plays headerless PCM pushed into s as it arrives.
// Decoded bytes are released from s while the emitter is not looping, so
// seeking back past them fails the emitter.
func (e *Engine) CreateLiveEmitter(s *stream.OnlineStream, params audio.TrackParams) *Emitter {
	em := newEmitter(e)
	em.stream = s
	em.format = decode.FormatRaw
	em.raw = &params
	em.live = true
	return e.add(em)
}

// DestroyEmitter stops em and releases its source
func (e *Engine) DestroyEmitter(em *Emitter) {
	e.mu.Lock()
	found := false
	for i, existing := range e.emitters {
		if existing == em {
			e.emitters = append(e.emitters[:i], e.emitters[i+1:]...)
			found = true
			break
		}
	}
	drv := e.driver
	e.mu.Unlock()

	if found {
		em.destroy(drv)
	}
}

// DestroyAllEmitters releases every emitter
func (e *Engine) DestroyAllEmitters() {
	e.mu.Lock()
	all := e.emitters
	e.emitters = nil
	drv := e.driver
	e.mu.Unlock()

	for _, em := range all {
		em.destroy(drv)
	}
}

// StopAllSounds stops every emitter
func (e *Engine) StopAllSounds() {
	e.mu.Lock()
	var events []Event
	for _, em := range e.emitters {
		em.mu.Lock()
		events = append(events, em.stopLocked()...)
		em.mu.Unlock()
	}
	e.mu.Unlock()

	e.deliver(events)
}

// Emitters returns a snapshot of live emitters
func (e *Engine) Emitters() []*Emitter {
	e.mu.Lock()
	defer e.mu.Unlock()

	out := make([]*Emitter, len(e.emitters))
	copy(out, e.emitters)
	return out
}

// Emitter finds a live emitter by id
func (e *Engine) Emitter(id uuid.UUID) (*Emitter, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()

	for _, em := range e.emitters {
		if em.id == id {
			return em, true
		}
	}
	return nil, false
}

// SetListener moves the listener every 3D emitter is heard from
func (e *Engine) SetListener(l audio.Listener) {
	e.mu.Lock()
	e.listener = l
	drv := e.driver
	e.mu.Unlock()

	if drv != nil {
		drv.SetListener(l)
	}
}

func (e *Engine) Listener() audio.Listener {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.listener
}

// SetMasterGain scales the whole mix
func (e *Engine) SetMasterGain(g float32) {
	g = audio.ClampGain(g)
	e.mu.Lock()
	e.cfg.MasterGain = g
	drv := e.driver
	e.mu.Unlock()

	if drv != nil {
		drv.SetMasterGain(g)
	}
}

// MasterGain returns the current master gain
func (e *Engine) MasterGain() float32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.cfg.MasterGain
}

// SetBufferDuration resizes driver buffers; queued audio is dropped
func (e *Engine) SetBufferDuration(d time.Duration) {
	if drv := e.Driver(); drv != nil {
		drv.ChangeDuration(d)
	}
}

// RegisterStreamFactory adds f ahead of previously registered factories
func (e *Engine) RegisterStreamFactory(f stream.Factory) {
	e.streams.Register(f)
}

func (e *Engine) UnregisterStreamFactory(f stream.Factory) {
	e.streams.Unregister(f)
}

// OpenStream asks the stream factories for name
func (e *Engine) OpenStream(name string) (stream.Stream, error) {
	return e.streams.Open(name)
}

// CreateOnlineStream returns an empty stream to be filled by the caller
func (e *Engine) CreateOnlineStream() *stream.OnlineStream {
	return stream.NewOnlineStream()
}

// openStream opens name, loading it into memory and caching it when asked
func (e *Engine) openStream(name string, cache bool) (stream.Stream, error) {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()

	if s, ok := e.cache[name]; ok {
		return s, nil
	}

	s, err := e.streams.Open(name)
	if err != nil {
		return nil, err
	}
	if !cache {
		return s, nil
	}

	// Online streams are cached as-is; they fill in the background
	if _, online := s.(*stream.OnlineStream); !online {
		mem, err := stream.LoadMemory(s)
		if err != nil {
			return nil, err
		}
		s = mem
	}
	e.cache[name] = s
	return s, nil
}

// CachedStreams returns the number of streams held in the cache
func (e *Engine) CachedStreams() int {
	e.streamMu.Lock()
	defer e.streamMu.Unlock()
	return len(e.cache)
}

// updater runs fn at rate Hz, sleeping whatever is left of each frame
type updater struct {
	stopped  atomic.Bool
	stopOnce sync.Once
	done     chan struct{}
}

func startUpdater(rate int, fn func()) *updater {
	u := &updater{done: make(chan struct{})}
	frame := time.Second / time.Duration(rate)

	go func() {
		defer close(u.done)
		for !u.stopped.Load() {
			begin := time.Now()
			fn()
			sleep := frame - time.Since(begin)
			if sleep < time.Millisecond {
				sleep = time.Millisecond
			}
			time.Sleep(sleep)
		}
	}()
	return u
}

func (u *updater) stop() {
	u.stopOnce.Do(func() {
		u.stopped.Store(true)
	})
	<-u.done
}
