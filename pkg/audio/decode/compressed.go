// ABOUTME: Library backed codecs (MP3, Vorbis, FLAC, Opus, AIFF)
// ABOUTME: Adapts each library to a common PCM source and gates reads on buffered data
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

// pcmSource is what every library codec is adapted to
type pcmSource interface {
	// read fills dst with interleaved samples and returns how many it wrote
	read(dst []int16) (int, error)
	// seek returns errSeekUnsupported when the library can not seek the input
	seek(frame int64) error
	close() error
}

type sourceInfo struct {
	channels   int
	sampleRate int
	numFrames  int64
}

type codec struct {
	// needsSeeker codecs only open once the whole stream has arrived
	needsSeeker bool
	// probe optionally finds where decoding starts and fills what it learns into info
	probe func(c stream.Cursor, info *sourceInfo) (int64, error)
	open  func(r io.Reader, seekable bool, info *sourceInfo) (pcmSource, error)
}

var codecs = map[Format]codec{
	FormatMP3:    {probe: probeMP3, open: openMP3},
	FormatVorbis: {open: openVorbis},
	FormatFLAC:   {open: openFLAC},
	FormatOpus:   {probe: probeOpus, open: openOpus},
	FormatAIFF:   {needsSeeker: true, open: openAIFF},
}

// readerOnly hides Seek so libraries do not scan an incomplete stream
type readerOnly struct{ io.Reader }

type compressedCodec struct {
	codec    codec
	cursor   stream.Cursor
	src      pcmSource
	info     sourceInfo
	start    int64
	seekable bool

	pending []int16
	scratch []int16
	frame   int64
	eof     bool
}

func (d *Decoder) initCompressed() (audio.Status, error) {
	cd, ok := codecs[d.format]
	if !ok {
		return audio.Failed, fmt.Errorf("%w: %s", ErrUnsupportedFormat, d.format)
	}

	complete := isComplete(d.cursor)
	if !complete {
		if _, err := d.cursor.Seek(0, io.SeekStart); err != nil {
			return audio.Failed, err
		}
		if cd.needsSeeker || !d.cursor.ReadyReadData(initLookahead) {
			return audio.WaitData, nil
		}
	}

	c := &compressedCodec{codec: cd, cursor: d.cursor}
	if err := c.openAt(true); err != nil {
		if errors.Is(err, errNeedMoreData) {
			return audio.WaitData, nil
		}
		return audio.Failed, err
	}

	info := c.info
	if info.channels < 1 || info.sampleRate <= 0 {
		c.close()
		return audio.Failed, fmt.Errorf("%w: %d channels at %d Hz", ErrInvalidFormat, info.channels, info.sampleRate)
	}
	if info.channels > maxChannels {
		c.close()
		return audio.Failed, fmt.Errorf("%w: %d", ErrTooManyChannels, info.channels)
	}

	c.scratch = make([]int16, 4096*info.channels)
	d.comp = c
	d.kind = KindCompressed
	d.params = audio.TrackParams{
		Channels:      info.channels,
		SampleRate:    info.sampleRate,
		BitsPerSample: audio.BitsPerSample,
		NumSamples:    info.numFrames,
	}
	return audio.Success, nil
}

// openAt (re)creates the library decoder at the start of the audio data.
// The first open probes for the start offset.
func (c *compressedCodec) openAt(probe bool) error {
	if _, err := c.cursor.Seek(0, io.SeekStart); err != nil {
		return err
	}
	if probe && c.codec.probe != nil {
		start, err := c.codec.probe(c.cursor, &c.info)
		if err != nil {
			return err
		}
		c.start = start
	}
	if _, err := c.cursor.Seek(c.start, io.SeekStart); err != nil {
		return err
	}

	if c.src != nil {
		c.src.close()
		c.src = nil
	}

	c.seekable = isComplete(c.cursor)
	var r io.Reader = readerOnly{c.cursor}
	if c.seekable {
		r = c.cursor
	}

	src, err := c.codec.open(r, c.seekable, &c.info)
	if err != nil {
		return err
	}
	c.src = src
	return nil
}

func (c *compressedCodec) decode(out []byte, loop bool) (int, audio.Status, error) {
	ch := c.info.channels
	want := len(out) / 2

	if len(c.pending) < want && !c.eof && !isComplete(c.cursor) && !c.cursor.ReadyReadData(decodeLookahead) {
		return 0, audio.WaitData, nil
	}

	produced := 0
	stalls := 0
	rewound := false
	for produced < want {
		if len(c.pending) > 0 {
			n := min(len(c.pending), want-produced)
			for i, s := range c.pending[:n] {
				binary.LittleEndian.PutUint16(out[(produced+i)*2:], uint16(s))
			}
			c.pending = c.pending[n:]
			produced += n
			c.frame += int64(n / ch)
			rewound = false
			continue
		}

		if c.eof {
			if !loop || rewound {
				break
			}
			if err := c.seek(0); err != nil {
				return produced * 2, audio.Failed, err
			}
			rewound = true
			continue
		}

		n, err := c.src.read(c.scratch)
		n -= n % ch
		if n > 0 {
			c.pending = c.scratch[:n]
			stalls = 0
		}
		switch {
		case errors.Is(err, io.EOF), errors.Is(err, io.ErrUnexpectedEOF):
			c.eof = true
		case err != nil:
			return produced * 2, audio.Failed, err
		case n == 0:
			if stalls++; stalls > 3 {
				c.eof = true
			}
		}
	}

	return produced * 2, audio.Success, nil
}

func (c *compressedCodec) seek(frame int64) error {
	c.pending = nil
	c.eof = false

	err := c.src.seek(frame)
	if err == nil {
		c.frame = frame
		return nil
	}
	if !errors.Is(err, errSeekUnsupported) {
		return err
	}

	if frame > 0 && !isComplete(c.cursor) {
		return ErrNotReady
	}
	if err := c.openAt(false); err != nil {
		return err
	}
	c.frame = 0
	return c.discard(frame)
}

// discard decodes and drops frames, keeping any overshoot as pending samples
func (c *compressedCodec) discard(frames int64) error {
	ch := int64(c.info.channels)
	left := frames * ch
	for left > 0 {
		n, err := c.src.read(c.scratch)
		n -= n % int(ch)
		if int64(n) > left {
			c.pending = c.scratch[left:n]
			left = 0
		} else {
			left -= int64(n)
		}
		if err != nil {
			if errors.Is(err, io.EOF) {
				c.eof = true
				break
			}
			return err
		}
		if n == 0 {
			break
		}
	}
	c.frame = frames - left/ch
	return nil
}

func (c *compressedCodec) close() error {
	if c.src == nil {
		return nil
	}
	err := c.src.close()
	c.src = nil
	return err
}
