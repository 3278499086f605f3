// ABOUTME: Streaming decoder that turns a byte stream into 16-bit PCM
// ABOUTME: One concrete type dispatching on the detected codec variant
package decode

import (
	"fmt"
	"math"
	"time"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

// Kind is the codec variant a Decoder settled on during Init
type Kind int

const (
	KindNone Kind = iota
	KindPCM
	KindIMAADPCM
	KindMSADPCM
	KindCompressed
)

func (k Kind) String() string {
	switch k {
	case KindPCM:
		return "pcm"
	case KindIMAADPCM:
		return "ima-adpcm"
	case KindMSADPCM:
		return "ms-adpcm"
	case KindCompressed:
		return "compressed"
	default:
		return "none"
	}
}

const (
	// initLookahead is how much of an incomplete stream must be buffered
	// before a compressed codec is probed
	initLookahead = 64 * 1024
	// decodeLookahead is the minimum buffered data before each compressed decode
	decodeLookahead = 16 * 1024

	maxChannels = 8
)

// Decoder produces interleaved signed 16-bit little endian PCM from a stream.
// Init may be called repeatedly until it stops returning audio.WaitData.
type Decoder struct {
	format Format
	kind   Kind
	stream stream.Stream
	cursor stream.Cursor
	params audio.TrackParams
	loop   bool
	ready  bool
	trim   bool
	err    error

	pcm   *pcmCodec
	adpcm *adpcmCodec
	comp  *compressedCodec
}

// New creates a decoder for s. Nothing is read until Init.
func New(format Format, s stream.Stream) *Decoder {
	return &Decoder{format: format, stream: s}
}

// NewRaw creates a decoder for headerless 16-bit little endian PCM
func NewRaw(s stream.Stream, channels, sampleRate int) *Decoder {
	return &Decoder{
		format: FormatRaw,
		stream: s,
		params: audio.TrackParams{
			Channels:      channels,
			SampleRate:    sampleRate,
			BitsPerSample: audio.BitsPerSample,
		},
	}
}

// Init parses headers and selects the codec variant. It returns
// audio.WaitData while an online stream has not delivered enough bytes,
// audio.Failed with an error for malformed or unsupported data, and
// audio.Success once TrackParams is valid.
func (d *Decoder) Init() (audio.Status, error) {
	if d.ready {
		return audio.Success, nil
	}
	if d.err != nil {
		return audio.Failed, d.err
	}

	if d.cursor == nil {
		c, err := d.stream.NewCursor()
		if err != nil {
			return d.fail(err)
		}
		d.cursor = c
	}

	var status audio.Status
	var err error
	switch d.format {
	case FormatWAV:
		status, err = d.initWAV()
	case FormatRaw:
		status, err = d.initRaw()
	case FormatMP3, FormatVorbis, FormatFLAC, FormatOpus, FormatAIFF:
		status, err = d.initCompressed()
	default:
		status, err = audio.Failed, fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.format)
	}

	switch status {
	case audio.Failed:
		return d.fail(err)
	case audio.Success:
		d.ready = true
	}
	return status, nil
}

func (d *Decoder) fail(err error) (audio.Status, error) {
	d.err = fmt.Errorf("%s decoder: %w", d.format, err)
	d.kind = KindNone
	return audio.Failed, d.err
}

func (d *Decoder) initRaw() (audio.Status, error) {
	p := d.params
	if p.Channels < 1 || p.SampleRate <= 0 {
		return audio.Failed, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidFormat, p.Channels, p.SampleRate)
	}
	if p.Channels > maxChannels {
		return audio.Failed, fmt.Errorf("%w: %d", ErrTooManyChannels, p.Channels)
	}

	data := newDataReader(d.cursor, []DataNode{{Offset: 0, Size: d.cursor.Size()}}, true)
	codec, err := newPCMCodec(data, p.Channels, audio.BitsPerSample, p.Channels*2, false)
	if err != nil {
		return audio.Failed, err
	}
	d.pcm = codec
	d.kind = KindPCM
	d.params.NumSamples = codec.numFrames()
	return audio.Success, nil
}

// Decode fills buf with PCM. buf is zeroed first so a short read leaves
// silence behind the decoded samples. It returns the number of bytes
// decoded and audio.Success, audio.EndStream when nothing is left,
// audio.WaitData when an online stream is behind (nothing is consumed), or
// audio.Failed.
func (d *Decoder) Decode(buf []byte) (int, audio.Status) {
	clear(buf)
	if d.err != nil || !d.ready {
		return 0, audio.Failed
	}

	frameSize := d.params.FrameSize()
	buf = buf[:len(buf)/frameSize*frameSize]
	if len(buf) == 0 {
		return 0, audio.Success
	}

	var n int
	var status audio.Status
	var err error
	switch d.kind {
	case KindPCM:
		n, status, err = d.pcm.decode(buf, d.loop)
	case KindIMAADPCM, KindMSADPCM:
		n, status, err = d.adpcm.decode(buf, d.loop)
	case KindCompressed:
		n, status, err = d.comp.decode(buf, d.loop)
	default:
		return 0, audio.Failed
	}

	switch {
	case status == audio.Failed:
		d.err = fmt.Errorf("%s decoder: %w", d.format, err)
		return 0, audio.Failed
	case status == audio.WaitData:
		return 0, audio.WaitData
	case n == 0:
		return 0, audio.EndStream
	}
	d.release()
	return n, audio.Success
}

// SetTrimConsumed lets a PCM decoder release bytes it has already decoded
// from a stream whose cursor supports it. Seeking back or looping over
// released bytes fails with stream.ErrTrimmed.
func (d *Decoder) SetTrimConsumed(on bool) { d.trim = on }

// release drops the bytes behind the cursor when trimming is enabled
func (d *Decoder) release() {
	if !d.trim || d.loop || d.kind != KindPCM {
		return
	}
	if t, ok := d.cursor.(interface{ Trim() }); ok {
		t.Trim()
	}
}

// Seek moves the decode position to frame. Past the end it wraps when
// looping and fails otherwise.
func (d *Decoder) Seek(frame int64) error {
	if !d.ready {
		return ErrNotInitialized
	}
	if frame < 0 {
		frame = 0
	}
	if n := d.params.NumSamples; n > 0 && frame > n {
		if !d.loop {
			return fmt.Errorf("%w: frame %d of %d", ErrSeekOutOfRange, frame, n)
		}
		frame %= n
	}

	switch d.kind {
	case KindPCM:
		return d.pcm.seek(frame)
	case KindIMAADPCM, KindMSADPCM:
		return d.adpcm.seek(frame)
	case KindCompressed:
		return d.comp.seek(frame)
	}
	return ErrNotInitialized
}

// SeekBytes seeks to a byte offset in the decoded PCM output
func (d *Decoder) SeekBytes(offset int64) error {
	if !d.ready {
		return ErrNotInitialized
	}
	return d.Seek(offset / int64(d.params.FrameSize()))
}

// Position returns the next frame Decode will produce
func (d *Decoder) Position() int64 {
	switch d.kind {
	case KindPCM:
		return d.pcm.frame
	case KindIMAADPCM, KindMSADPCM:
		return d.adpcm.position()
	case KindCompressed:
		return d.comp.frame
	}
	return 0
}

// CurrentTime converts Position to a playback time
func (d *Decoder) CurrentTime() time.Duration {
	if d.params.SampleRate <= 0 {
		return 0
	}
	return time.Duration(d.Position()) * time.Second / time.Duration(d.params.SampleRate)
}

// TrackParams is valid after Init returned audio.Success
func (d *Decoder) TrackParams() audio.TrackParams {
	return d.params
}

func (d *Decoder) Format() Format { return d.format }

func (d *Decoder) Kind() Kind { return d.kind }

// Err returns the error that put the decoder into the failed state
func (d *Decoder) Err() error { return d.err }

func (d *Decoder) Ready() bool { return d.ready }

// SetLoop makes the decoder restart from frame 0 at the end of the track
func (d *Decoder) SetLoop(loop bool) { d.loop = loop }

func (d *Decoder) Loop() bool { return d.loop }

// Close releases the cursor and any codec resources
func (d *Decoder) Close() error {
	var err error
	if d.comp != nil {
		err = d.comp.close()
	}
	if d.cursor != nil {
		if cerr := d.cursor.Close(); err == nil {
			err = cerr
		}
		d.cursor = nil
	}
	d.ready = false
	return err
}

// isComplete reports whether every byte of the stream has arrived
func isComplete(c stream.Cursor) bool {
	return c.ReadyReadData(math.MaxInt32)
}
