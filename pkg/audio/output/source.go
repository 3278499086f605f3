// ABOUTME: Per-voice ring of PCM slots mixed into the driver accumulator
// ABOUTME: Applies gain, 3D attenuation and rate conversion while mixing
package output

import (
	"fmt"
	"math"
	"sync"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

// SourceState mirrors the owning emitter's state
type SourceState int

const (
	StateInitial SourceState = iota
	StateStopped
	StatePlaying
	StatePaused
)

func (s SourceState) String() string {
	switch s {
	case StateInitial:
		return "initial"
	case StateStopped:
		return "stopped"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

const (
	DefaultRollOff = 10.0
	minRollOff     = 0.1
	panPower       = 1.0
)

type slot struct {
	data []int16
	used int
	full bool
}

// SoundSource holds decoded PCM waiting for the mixer. The producer fills
// slots at writeIdx and the mixer drains them at readIdx, both in ring order.
type SoundSource struct {
	mu sync.Mutex

	param SourceParam
	track audio.TrackParams
	slots []slot

	writeIdx int
	readIdx  int
	state    SourceState

	gain     float32
	pitch    float32
	is3D     bool
	position audio.Vector3
	rollOff  float32
}

func newSoundSource(param SourceParam) *SoundSource {
	return &SoundSource{
		param:   param,
		gain:    1,
		pitch:   1,
		rollOff: DefaultRollOff,
	}
}

// Init binds the source to decoded track parameters and allocates its ring
func (s *SoundSource) Init(track audio.TrackParams) error {
	if track.BitsPerSample != audio.BitsPerSample {
		return fmt.Errorf("%d bits per sample: %w", track.BitsPerSample, ErrBadBitDepth)
	}
	if track.Channels <= 0 || track.SampleRate <= 0 {
		return fmt.Errorf("invalid track parameters %+v", track)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.track = track
	s.allocate()
	s.state = StateStopped
	return nil
}

// allocate sizes one slot to a driver buffer's duration at the track rate (must hold s.mu)
func (s *SoundSource) allocate() {
	n := s.param.NumBuffers
	if n <= 0 {
		n = DefaultNumBuffers
	}
	samples := s.slotFrames() * s.track.Channels

	s.slots = make([]slot, n)
	for i := range s.slots {
		s.slots[i].data = make([]int16, samples)
	}
	s.writeIdx = 0
	s.readIdx = 0
}

// slotFrames is one driver buffer's worth of frames at the track rate
func (s *SoundSource) slotFrames() int {
	if s.param.SampleRate <= 0 {
		return 1
	}
	out, rate := int64(s.param.BufferFrames), int64(s.param.SampleRate)
	frames := int((out*int64(s.track.SampleRate) + rate/2) / rate)
	if frames < 1 {
		frames = 1
	}
	return frames
}

// SlotBytes is the number of PCM bytes one upload should carry
func (s *SoundSource) SlotBytes() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slotFrames() * s.track.FrameSize()
}

// TrackParams returns the parameters passed to Init
func (s *SoundSource) TrackParams() audio.TrackParams {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.track
}

// Param returns the driver geometry last applied to the source
func (s *SoundSource) Param() SourceParam {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.param
}

// changeParam applies new driver geometry, dropping queued audio
func (s *SoundSource) changeParam(p SourceParam) {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.param = p
	if s.state != StateInitial {
		s.allocate()
	}
}

// NeedData reports whether the next slot in ring order is free
func (s *SoundSource) NeedData() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state != StateInitial && !s.slots[s.writeIdx].full
}

// Upload copies pcm into the next free slot and advances the write index.
// It returns false when the ring is full.
func (s *SoundSource) Upload(pcm []int16) bool {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateInitial {
		return false
	}
	sl := &s.slots[s.writeIdx]
	if sl.full {
		return false
	}
	if cap(sl.data) < len(pcm) {
		sl.data = make([]int16, len(pcm))
	}
	sl.data = sl.data[:len(pcm)]
	copy(sl.data, pcm)
	sl.used = len(pcm)
	sl.full = true

	s.writeIdx = (s.writeIdx + 1) % len(s.slots)
	return true
}

// Reset zeroes every slot and rewinds both ring indices
func (s *SoundSource) Reset() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.clearLocked()
}

func (s *SoundSource) clearLocked() {
	for i := range s.slots {
		clear(s.slots[i].data)
		s.slots[i].used = 0
		s.slots[i].full = false
	}
	s.writeIdx = 0
	s.readIdx = 0
}

// Queued returns the number of full slots
func (s *SoundSource) Queued() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	n := 0
	for i := range s.slots {
		if s.slots[i].full {
			n++
		}
	}
	return n
}

func (s *SoundSource) setState(st SourceState, clearSlots bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state == StateInitial {
		return
	}
	s.state = st
	if clearSlots {
		s.clearLocked()
	}
}

// Play starts mixing queued slots
func (s *SoundSource) Play() { s.setState(StatePlaying, false) }

// Pause holds the source silent and zeroes its slots
func (s *SoundSource) Pause() { s.setState(StatePaused, true) }

// Stop halts mixing and zeroes its slots
func (s *SoundSource) Stop() { s.setState(StateStopped, true) }

// State returns the current state
func (s *SoundSource) State() SourceState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

func (s *SoundSource) SetGain(g float32) {
	s.mu.Lock()
	s.gain = audio.ClampGain(g)
	s.mu.Unlock()
}

func (s *SoundSource) Gain() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.gain
}

func (s *SoundSource) SetPitch(p float32) {
	s.mu.Lock()
	s.pitch = audio.ClampPitch(p)
	s.mu.Unlock()
}

func (s *SoundSource) Pitch() float32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pitch
}

func (s *SoundSource) Set3D(on bool) {
	s.mu.Lock()
	s.is3D = on
	s.mu.Unlock()
}

func (s *SoundSource) SetPosition(p audio.Vector3) {
	s.mu.Lock()
	s.position = p
	s.mu.Unlock()
}

func (s *SoundSource) SetRollOff(r float32) {
	s.mu.Lock()
	s.rollOff = r
	s.mu.Unlock()
}

// distanceGain fades linearly to silence at the roll-off distance
func distanceGain(src, listener audio.Vector3, rollOff float32) float32 {
	d := src.Sub(listener).Length()
	if d == 0 {
		d = minRollOff
	}
	if rollOff < minRollOff {
		rollOff = minRollOff
	}
	g := 1 - d/rollOff
	if g < 0 {
		return 0
	}
	if g > 1 {
		return 1
	}
	return g
}

// panGains splits power between the channels by how far the source lies
// along the listener's lookAt x up axis
func panGains(src audio.Vector3, l audio.Listener) (left, right float32) {
	rel := src.Sub(l.Position)
	axis := l.LookAt.Cross(l.Up)

	var center float32
	if rn, an := rel.Length(), axis.Length(); rn > 0 && an > 0 {
		center = rel.Dot(axis) / (rn * an)
	}

	v := (panPower-0.5)*center + 0.5
	if v < 0 {
		v = 0
	}
	left = float32(math.Sqrt(float64(v)))
	rest := 1 - left*left
	if rest < 0 {
		rest = 0
	}
	right = float32(math.Sqrt(float64(rest)))
	return left, right
}

// FillBuffer adds the slot at the read index into acc, frames stereo frames
// long, then frees the slot. Silent sources still consume their slot.
func (s *SoundSource) FillBuffer(acc []int32, frames int, masterGain float32, listener audio.Listener) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.state != StatePlaying || len(s.slots) == 0 {
		return
	}
	sl := &s.slots[s.readIdx]
	if !sl.full {
		return
	}
	defer func() {
		sl.full = false
		sl.used = 0
		s.readIdx = (s.readIdx + 1) % len(s.slots)
	}()

	if s.track.BitsPerSample != audio.BitsPerSample {
		return
	}

	dist, left, right := float32(1), float32(1), float32(1)
	if s.is3D {
		dist = distanceGain(s.position, listener.Position, s.rollOff)
		left, right = panGains(s.position, listener)
	}
	if s.gain <= 0 || dist <= 0 {
		return
	}

	g := s.gain * dist * masterGain
	ratio := float64(s.track.SampleRate) / float64(s.param.SampleRate)
	mixSlot(acc, frames, sl.data[:sl.used], s.track.Channels, ratio, left*g, right*g)
}

// mixSlot retimes src by ratio with linear interpolation and accumulates it.
// Mono feeds both output channels; wider sources contribute their first two.
func mixSlot(acc []int32, frames int, src []int16, channels int, ratio float64, lg, rg float32) {
	srcFrames := len(src) / channels
	if srcFrames == 0 {
		return
	}
	if limit := len(acc) / Channels; frames > limit {
		frames = limit
	}

	rc := 0
	if channels > 1 {
		rc = 1
	}
	last := srcFrames - 1

	for i := 0; i < frames; i++ {
		pos := float64(i) * ratio
		k := int(pos)
		frac := pos - float64(k)
		// slots are sized to the nearest frame, so the tail may hold the last one
		if k > last {
			k, frac = last, 0
		}
		next := k + 1
		if next > last {
			next = last
		}

		a, b := src[k*channels], src[next*channels]
		l := float64(a) + (float64(b)-float64(a))*frac
		a, b = src[k*channels+rc], src[next*channels+rc]
		r := float64(a) + (float64(b)-float64(a))*frac

		acc[i*2] += int32(float32(int32(l)) * lg)
		acc[i*2+1] += int32(float32(int32(r)) * rg)
	}
}
