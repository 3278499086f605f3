// ABOUTME: Emitter decodes one stream and feeds its sound source
// ABOUTME: Handles the play state machine, pitch, fades, looping and 3D placement
package engine

import (
	"encoding/binary"
	"errors"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/decode"
	"github.com/skylicht-lab/skyaudio/pkg/audio/output"
	"github.com/skylicht-lab/skyaudio/pkg/audio/resample"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

// ErrNotReady is returned by operations that need an initialised decoder
var ErrNotReady = errors.New("emitter not ready")

// State is the playback state of an emitter
type State int

const (
	Stopped State = iota
	Playing
	Paused
	Error
)

func (s State) String() string {
	switch s {
	case Stopped:
		return "stopped"
	case Playing:
		return "playing"
	case Paused:
		return "paused"
	case Error:
		return "error"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// fade ramps gain linearly over total
type fade struct {
	active    bool
	out       bool
	target    float32
	remaining time.Duration
	total     time.Duration
}

// Emitter plays one stream through one sound source
type Emitter struct {
	id     uuid.UUID
	engine *Engine

	mu sync.Mutex

	// where the data comes from
	name   string
	cache  bool
	format decode.Format
	stream stream.Stream
	raw    *audio.TrackParams
	live   bool

	decoder *decode.Decoder
	source  *output.SoundSource
	ready   bool
	failed  bool
	err     error

	state    State
	draining bool
	gain     float32
	pitch    float32
	loop     bool
	is3D     bool
	position audio.Vector3
	rollOff  float32
	fade     fade
	waited   time.Duration

	slot    []byte
	scratch []byte
	pcm     []int16
	wide    []int16
}

func newEmitter(e *Engine) *Emitter {
	return &Emitter{
		id:      uuid.New(),
		engine:  e,
		gain:    1,
		pitch:   1,
		rollOff: output.DefaultRollOff,
	}
}

// ID uniquely identifies the emitter in events
func (em *Emitter) ID() uuid.UUID { return em.id }

// Name is the file or URL the emitter was created from, if any
func (em *Emitter) Name() string { return em.name }

// prepare opens the stream and initialises the decoder and source. It
// returns audio.WaitData until enough bytes have arrived (must hold em.mu).
func (em *Emitter) prepare() (audio.Status, error) {
	if em.decoder == nil {
		if em.stream == nil {
			if em.name == "" {
				return audio.Failed, errors.New("emitter has no stream")
			}
			s, err := em.engine.openStream(em.name, em.cache)
			if err != nil {
				return audio.Failed, err
			}
			em.stream = s
		}
		if em.raw != nil {
			em.decoder = decode.NewRaw(em.stream, em.raw.Channels, em.raw.SampleRate)
			em.decoder.SetTrimConsumed(em.live)
		} else {
			em.decoder = decode.New(em.format, em.stream)
		}
	}

	status, err := em.decoder.Init()
	if status != audio.Success {
		return status, err
	}

	track := em.decoder.TrackParams()
	src := em.engine.driver.CreateSource()
	if err := src.Init(track); err != nil {
		em.engine.driver.DestroySource(src)
		return audio.Failed, err
	}
	em.source = src
	em.decoder.SetLoop(em.loop)

	log.Printf("Emitter %s ready: %s, %dHz, %d channels", em.id, em.decoder.Format(), track.SampleRate, track.Channels)
	return audio.Success, nil
}

// update advances the emitter by dt and returns the events it produced
func (em *Emitter) update(dt time.Duration) []Event {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.failed {
		return nil
	}

	if !em.ready {
		status, err := em.prepare()
		switch status {
		case audio.WaitData:
			if em.state == Playing {
				return em.stall(dt)
			}
			return nil
		case audio.Failed:
			return em.fail(err)
		}
		em.ready = true
		em.waited = 0
		if em.state == Playing {
			em.source.Play()
		}
	}

	em.syncSource()

	var events []Event
	if em.fade.active {
		events = append(events, em.updateFade(dt)...)
	}

	if em.draining {
		if em.source.Queued() == 0 {
			em.source.Stop()
			em.draining = false
		}
		return events
	}

	if em.state != Playing {
		return events
	}

	for em.source.NeedData() {
		pcm, status := em.decodeSlot()
		switch status {
		case audio.Success:
			em.waited = 0
			em.source.Upload(pcm)
			continue
		case audio.WaitData:
			return append(events, em.stall(dt)...)
		case audio.EndStream:
			em.state = Stopped
			em.draining = true
			em.waited = 0
			if err := em.decoder.Seek(0); err != nil {
				log.Printf("Emitter %s rewind failed: %v", em.id, err)
			}
			return append(events, Event{EmitterID: em.id, Type: EventEndTrack})
		default:
			return append(events, em.fail(em.decoder.Err())...)
		}
	}
	return events
}

// syncSource mirrors emitter settings onto the source (must hold em.mu)
func (em *Emitter) syncSource() {
	em.decoder.SetLoop(em.loop)
	em.source.SetGain(em.gain)
	em.source.SetPitch(em.pitch)
	em.source.Set3D(em.is3D)
	if em.is3D {
		em.source.SetPosition(em.position)
		em.source.SetRollOff(em.rollOff)
	}
}

// stall accounts dt spent waiting for data (must hold em.mu)
func (em *Emitter) stall(dt time.Duration) []Event {
	em.waited += dt
	timeout := em.engine.cfg.StallTimeout
	if timeout <= 0 || em.waited < timeout {
		return nil
	}

	log.Printf("Emitter %s stalled: no data for %v", em.id, em.waited)
	em.failed = true
	em.err = fmt.Errorf("no data for %v", em.waited)
	em.state = Error
	if em.source != nil {
		em.source.Stop()
	}
	return []Event{{EmitterID: em.id, Type: EventStalled, Err: em.err}}
}

// fail moves the emitter to the error state (must hold em.mu)
func (em *Emitter) fail(err error) []Event {
	if err == nil {
		err = errors.New("decode failed")
	}
	log.Printf("Emitter %s decode failed: %v", em.id, err)

	em.failed = true
	em.err = err
	em.state = Error
	if em.source != nil {
		em.source.Stop()
	}
	return []Event{{EmitterID: em.id, Type: EventDecodeFailed, Err: err}}
}

// decodeSlot produces one slot of PCM, resampling when pitch != 1 (must hold em.mu)
func (em *Emitter) decodeSlot() ([]int16, audio.Status) {
	track := em.decoder.TrackParams()
	frameSize := track.FrameSize()
	slotBytes := em.source.SlotBytes()

	if cap(em.slot) < slotBytes {
		em.slot = make([]byte, slotBytes)
	}
	em.slot = em.slot[:slotBytes]

	if em.pitch == 1 {
		_, status := em.decoder.Decode(em.slot)
		if status != audio.Success {
			return nil, status
		}
		em.pcm = bytesToPCM(em.pcm, em.slot)
		return em.pcm, status
	}

	pitchBytes := int(float32(slotBytes)*em.pitch) / frameSize * frameSize
	if pitchBytes < frameSize {
		pitchBytes = frameSize
	}
	if cap(em.scratch) < pitchBytes {
		em.scratch = make([]byte, int(float32(slotBytes)*audio.MaxPitch)+frameSize)
	}
	em.scratch = em.scratch[:pitchBytes]

	_, status := em.decoder.Decode(em.scratch)
	if status != audio.Success {
		return nil, status
	}

	em.wide = bytesToPCM(em.wide, em.scratch)
	n := slotBytes / 2
	if cap(em.pcm) < n {
		em.pcm = make([]int16, n)
	}
	em.pcm = em.pcm[:n]
	resample.Stretch(em.pcm, em.wide, track.Channels)
	return em.pcm, status
}

func bytesToPCM(dst []int16, src []byte) []int16 {
	n := len(src) / 2
	if cap(dst) < n {
		dst = make([]int16, n)
	}
	dst = dst[:n]
	for i := range dst {
		dst[i] = int16(binary.LittleEndian.Uint16(src[i*2:]))
	}
	return dst
}

// updateFade steps the active fade by dt (must hold em.mu)
func (em *Emitter) updateFade(dt time.Duration) []Event {
	f := &em.fade
	f.remaining -= dt
	if f.remaining > 0 {
		progress := float32(f.remaining) / float32(f.total)
		if f.out {
			em.gain = f.target * progress
		} else {
			em.gain = f.target * (1 - progress)
		}
		return nil
	}

	f.active = false
	em.gain = f.target
	if !f.out {
		return nil
	}
	return em.stopLocked()
}

// stopLocked halts playback and rewinds (must hold em.mu)
func (em *Emitter) stopLocked() []Event {
	if em.state == Stopped || em.state == Error {
		return nil
	}
	em.state = Stopped
	em.draining = false
	em.fade.active = false
	if em.source != nil {
		em.source.Stop()
	}
	if em.ready {
		if err := em.decoder.Seek(0); err != nil {
			log.Printf("Emitter %s rewind failed: %v", em.id, err)
		}
	}
	return []Event{{EmitterID: em.id, Type: EventStopped}}
}

func (em *Emitter) playLocked(fromStart bool) []Event {
	if em.state == Error {
		return nil
	}
	em.fade.active = false
	em.draining = false
	em.state = Playing
	em.waited = 0

	if fromStart && em.ready {
		if err := em.decoder.Seek(0); err != nil {
			log.Printf("Emitter %s rewind failed: %v", em.id, err)
		}
		em.source.Reset()
	}
	if em.source != nil {
		em.source.Play()
	}
	return []Event{{EmitterID: em.id, Type: EventPlaying}}
}

// Play starts or resumes playback. Before the decoder is ready the request
// is remembered and honoured once initialisation succeeds.
func (em *Emitter) Play() {
	em.mu.Lock()
	events := em.playLocked(false)
	em.mu.Unlock()
	em.engine.deliver(events)
}

// PlayFromStart rewinds to the first frame and plays
func (em *Emitter) PlayFromStart() {
	em.mu.Lock()
	events := em.playLocked(true)
	em.mu.Unlock()
	em.engine.deliver(events)
}

// PlayWithFade plays while ramping gain from 0 to gain over d
func (em *Emitter) PlayWithFade(gain float32, d time.Duration) {
	em.mu.Lock()
	events := em.playLocked(false)
	if d > 0 {
		em.fade = fade{active: true, target: audio.ClampGain(gain), remaining: d, total: d}
		em.gain = 0
	} else {
		em.gain = audio.ClampGain(gain)
	}
	em.mu.Unlock()
	em.engine.deliver(events)
}

// StopWithFade ramps gain to 0 over d, then stops and restores the gain
func (em *Emitter) StopWithFade(d time.Duration) {
	em.mu.Lock()
	var events []Event
	if d <= 0 {
		events = em.stopLocked()
	} else if em.state == Playing {
		em.fade = fade{active: true, out: true, target: em.gain, remaining: d, total: d}
	}
	em.mu.Unlock()
	em.engine.deliver(events)
}

// Pause holds playback; queued audio is dropped
func (em *Emitter) Pause() {
	em.mu.Lock()
	var events []Event
	if em.state == Playing {
		em.state = Paused
		em.fade.active = false
		if em.source != nil {
			em.source.Pause()
		}
		events = []Event{{EmitterID: em.id, Type: EventPaused}}
	}
	em.mu.Unlock()
	em.engine.deliver(events)
}

// Stop halts playback and rewinds to the start
func (em *Emitter) Stop() {
	em.mu.Lock()
	events := em.stopLocked()
	em.mu.Unlock()
	em.engine.deliver(events)
}

// Seek moves playback to t. Queued audio is dropped unless paused.
func (em *Emitter) Seek(t time.Duration) error {
	em.mu.Lock()
	defer em.mu.Unlock()

	if !em.ready {
		return ErrNotReady
	}
	if t < 0 {
		t = 0
	}
	rate := em.decoder.TrackParams().SampleRate
	frame := int64(t) * int64(rate) / int64(time.Second)
	if err := em.decoder.Seek(frame); err != nil {
		return fmt.Errorf("seek to %v: %w", t, err)
	}
	if em.state != Paused {
		em.source.Reset()
	}
	return nil
}

// StopStream stops playback and discards data buffered by an online stream
func (em *Emitter) StopStream() {
	em.mu.Lock()
	events := em.stopLocked()
	if on, ok := em.stream.(*stream.OnlineStream); ok {
		on.Stop()
	}
	em.mu.Unlock()
	em.engine.deliver(events)
}

func (em *Emitter) State() State {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.state
}

// IsPlaying reports whether the emitter is in the playing state
func (em *Emitter) IsPlaying() bool {
	return em.State() == Playing
}

// Ready reports whether the decoder and source are initialised
func (em *Emitter) Ready() bool {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.ready
}

// Err returns the failure that put the emitter in the error state
func (em *Emitter) Err() error {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.err
}

// SetGain sets the gain, clamped to [audio.MinGain, audio.MaxGain]
func (em *Emitter) SetGain(g float32) {
	em.mu.Lock()
	em.gain = audio.ClampGain(g)
	em.mu.Unlock()
}

func (em *Emitter) Gain() float32 {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.gain
}

// SetPitch sets the playback speed, clamped to [audio.MinPitch, audio.MaxPitch]
func (em *Emitter) SetPitch(p float32) {
	em.mu.Lock()
	em.pitch = audio.ClampPitch(p)
	em.mu.Unlock()
}

func (em *Emitter) Pitch() float32 {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.pitch
}

func (em *Emitter) SetLoop(loop bool) {
	em.mu.Lock()
	em.loop = loop
	em.mu.Unlock()
}

func (em *Emitter) Loop() bool {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.loop
}

// SetPosition places the emitter in listener space and enables 3D mode
func (em *Emitter) SetPosition(p audio.Vector3) {
	em.mu.Lock()
	em.is3D = true
	em.position = p
	em.mu.Unlock()
}

func (em *Emitter) Position() audio.Vector3 {
	em.mu.Lock()
	defer em.mu.Unlock()
	return em.position
}

func (em *Emitter) Set3D(on bool) {
	em.mu.Lock()
	em.is3D = on
	em.mu.Unlock()
}

// SetRollOff sets the distance at which the emitter becomes silent
func (em *Emitter) SetRollOff(r float32) {
	em.mu.Lock()
	em.rollOff = r
	em.mu.Unlock()
}

// CurrentTime is the decode position
func (em *Emitter) CurrentTime() time.Duration {
	em.mu.Lock()
	defer em.mu.Unlock()
	if !em.ready {
		return 0
	}
	return em.decoder.CurrentTime()
}

// Duration is the track length, 0 when unknown
func (em *Emitter) Duration() time.Duration {
	em.mu.Lock()
	defer em.mu.Unlock()
	if !em.ready {
		return 0
	}
	p := em.decoder.TrackParams()
	return time.Duration(p.NumSamples) * time.Second / time.Duration(p.SampleRate)
}

// TrackParams returns the decoded format once the emitter is ready
func (em *Emitter) TrackParams() (audio.TrackParams, bool) {
	em.mu.Lock()
	defer em.mu.Unlock()
	if !em.ready {
		return audio.TrackParams{}, false
	}
	return em.decoder.TrackParams(), true
}

// destroy releases the source and decoder
func (em *Emitter) destroy(d output.Driver) {
	em.mu.Lock()
	defer em.mu.Unlock()

	if em.source != nil {
		em.source.Stop()
		if d != nil {
			d.DestroySource(em.source)
		}
		em.source = nil
	}
	if em.decoder != nil {
		if err := em.decoder.Close(); err != nil {
			log.Printf("Emitter %s close error: %v", em.id, err)
		}
	}
	em.ready = false
	em.failed = true
}
