// ABOUTME: Driver contract shared by every output backend
// ABOUTME: Defines buffer geometry, configuration defaults and alignment rules
package output

import (
	"errors"
	"time"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

// Output is always interleaved stereo signed 16-bit
const (
	Channels  = 2
	FrameSize = Channels * audio.BitsPerSample / 8
)

var (
	ErrUnknownBackend = errors.New("unknown output backend")
	ErrNotInitialized = errors.New("output not initialized")
	ErrBadBitDepth    = errors.New("sound source requires 16-bit PCM")
)

// SourceParam is the buffer geometry a driver hands to every source
type SourceParam struct {
	NumBuffers     int
	BufferBytes    int // output bytes per driver buffer
	BufferFrames   int
	BufferDuration time.Duration
	SampleRate     int
	BitsPerSample  int
}

// Driver is an output backend. Every backend embeds *Mixer, which supplies
// the source bookkeeping and the mix itself; the backend only moves mixed
// buffers to the device.
type Driver interface {
	Name() string

	// Init opens the device and starts delivering audio
	Init() error
	Shutdown()

	Suspend()
	Resume()

	// Update lets backends without their own thread pump one refill
	Update()

	CreateSource() *SoundSource
	DestroySource(s *SoundSource)
	SourceParam() SourceParam

	// FillBuffer mixes frames of stereo output into out
	FillBuffer(out []int16, frames int)
	ChangeDuration(d time.Duration)

	SetListener(l audio.Listener)
	SetMasterGain(g float32)

	// SetUpdateHook installs fn to run before every refill, outside the mix lock
	SetUpdateHook(fn func())
}

// Config selects the output geometry
type Config struct {
	SampleRate     int
	BufferDuration time.Duration
	NumBuffers     int
	// MasterGain defaults to 1 when zero unless Muted is set
	MasterGain float32
	Muted      bool

	// OutputPath is the destination of the wavfile backend
	OutputPath string
}

const (
	DefaultSampleRate     = 44100
	DefaultBufferDuration = 62500 * time.Microsecond
	DefaultNumBuffers     = 2
)

func (c Config) withDefaults() Config {
	if c.SampleRate <= 0 {
		c.SampleRate = DefaultSampleRate
	}
	if c.BufferDuration <= 0 {
		c.BufferDuration = DefaultBufferDuration
	}
	if c.NumBuffers <= 0 {
		c.NumBuffers = DefaultNumBuffers
	}
	if c.Muted {
		c.MasterGain = 0
	} else if c.MasterGain == 0 {
		c.MasterGain = 1
	}
	c.MasterGain = audio.ClampGain(c.MasterGain)
	if c.OutputPath == "" {
		c.OutputPath = "skyaudio-out.wav"
	}
	return c
}

// alignBuffer rounds bytes up to a multiple of granularity, never below one frame
func alignBuffer(bytes, granularity int) int {
	if granularity < FrameSize {
		granularity = FrameSize
	}
	if bytes < granularity {
		return granularity
	}
	if rem := bytes % granularity; rem != 0 {
		bytes += granularity - rem
	}
	return bytes
}

// computeParam derives the aligned buffer geometry for duration d
func computeParam(rate, numBuffers, granularity int, d time.Duration) SourceParam {
	bytes := int(d.Seconds() * float64(rate) * FrameSize)
	bytes = alignBuffer(bytes, granularity)
	frames := bytes / FrameSize

	return SourceParam{
		NumBuffers:     numBuffers,
		BufferBytes:    bytes,
		BufferFrames:   frames,
		BufferDuration: time.Duration(frames) * time.Second / time.Duration(rate),
		SampleRate:     rate,
		BitsPerSample:  audio.BitsPerSample,
	}
}
