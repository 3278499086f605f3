// ABOUTME: Mixing core embedded by every output backend
// ABOUTME: Owns sources, the int32 accumulator, master gain and listener pose
package output

import (
	"sync"
	"time"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

// Mixer implements the backend-independent half of Driver
type Mixer struct {
	mu sync.Mutex

	granularity int
	param       SourceParam
	sources     []*SoundSource
	acc         []int32

	masterGain float32
	listener   audio.Listener
	hook       func()
}

// NewMixer creates a mixer whose buffers are multiples of granularity bytes
func NewMixer(cfg Config, granularity int) *Mixer {
	cfg = cfg.withDefaults()
	return &Mixer{
		granularity: granularity,
		param:       computeParam(cfg.SampleRate, cfg.NumBuffers, granularity, cfg.BufferDuration),
		masterGain:  cfg.MasterGain,
		listener:    audio.DefaultListener(),
	}
}

// CreateSource returns an uninitialised source bound to this mixer
func (m *Mixer) CreateSource() *SoundSource {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := newSoundSource(m.param)
	m.sources = append(m.sources, s)
	return s
}

// DestroySource detaches s; it is never mixed again
func (m *Mixer) DestroySource(s *SoundSource) {
	m.mu.Lock()
	defer m.mu.Unlock()

	for i, existing := range m.sources {
		if existing == s {
			m.sources = append(m.sources[:i], m.sources[i+1:]...)
			return
		}
	}
}

// SourceCount returns the number of live sources
func (m *Mixer) SourceCount() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.sources)
}

func (m *Mixer) SourceParam() SourceParam {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.param
}

// ChangeDuration recomputes the aligned buffer size and pushes the
// resulting geometry to every source
func (m *Mixer) ChangeDuration(d time.Duration) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.param = computeParam(m.param.SampleRate, m.param.NumBuffers, m.granularity, d)
	for _, s := range m.sources {
		s.changeParam(m.param)
	}
}

func (m *Mixer) SetListener(l audio.Listener) {
	m.mu.Lock()
	m.listener = l
	m.mu.Unlock()
}

func (m *Mixer) Listener() audio.Listener {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.listener
}

func (m *Mixer) SetMasterGain(g float32) {
	m.mu.Lock()
	m.masterGain = audio.ClampGain(g)
	m.mu.Unlock()
}

func (m *Mixer) MasterGain() float32 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.masterGain
}

func (m *Mixer) SetUpdateHook(fn func()) {
	m.mu.Lock()
	m.hook = fn
	m.mu.Unlock()
}

// FillBuffer mixes every playing source into out. All frames*2 samples are
// written; the tail beyond len(out) is ignored.
func (m *Mixer) FillBuffer(out []int16, frames int) {
	n := frames * Channels
	if n > len(out) {
		n = len(out)
		frames = n / Channels
	}

	m.mu.Lock()
	defer m.mu.Unlock()

	if cap(m.acc) < n {
		m.acc = make([]int32, n)
	}
	acc := m.acc[:n]
	clear(acc)

	for _, s := range m.sources {
		s.FillBuffer(acc, frames, m.masterGain, m.listener)
	}
	for i, v := range acc {
		out[i] = audio.SaturateInt16(v)
	}
}

// refill runs the update hook and then mixes one buffer
func (m *Mixer) refill(out []int16, frames int) {
	m.mu.Lock()
	hook := m.hook
	m.mu.Unlock()

	if hook != nil {
		hook()
	}
	m.FillBuffer(out, frames)
}
