// ABOUTME: AIFF codec backed by go-audio/aiff
// ABOUTME: Needs a seekable stream, so online sources wait until complete
package decode

import (
	"fmt"
	"io"

	"github.com/go-audio/aiff"
	goaudio "github.com/go-audio/audio"
)

type aiffSource struct {
	dec  *aiff.Decoder
	bits int
	buf  *goaudio.IntBuffer
}

func openAIFF(r io.Reader, seekable bool, info *sourceInfo) (pcmSource, error) {
	rs, ok := r.(io.ReadSeeker)
	if !ok || !seekable {
		return nil, fmt.Errorf("%w: aiff needs a seekable stream", ErrInvalidFormat)
	}

	dec := aiff.NewDecoder(rs)
	if !dec.IsValidFile() {
		return nil, fmt.Errorf("%w: not an aiff file", ErrInvalidFormat)
	}
	dec.ReadInfo()

	format := dec.Format()
	if format == nil {
		return nil, fmt.Errorf("%w: aiff without a COMM chunk", ErrInvalidFormat)
	}
	bits := int(dec.BitDepth)
	if bits != 8 && bits != 16 && bits != 24 && bits != 32 {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bits)
	}

	info.channels = format.NumChannels
	info.sampleRate = format.SampleRate
	return &aiffSource{dec: dec, bits: bits}, nil
}

func (s *aiffSource) read(dst []int16) (int, error) {
	if s.buf == nil || cap(s.buf.Data) < len(dst) {
		s.buf = &goaudio.IntBuffer{Data: make([]int, len(dst)), Format: s.dec.Format()}
	}
	s.buf.Data = s.buf.Data[:len(dst)]

	n, err := s.dec.PCMBuffer(s.buf)
	for i, v := range s.buf.Data[:n] {
		switch {
		case s.bits > 16:
			dst[i] = int16(v >> (s.bits - 16))
		case s.bits < 16:
			dst[i] = int16(v << (16 - s.bits))
		default:
			dst[i] = int16(v)
		}
	}
	if n == 0 && err == nil {
		err = io.EOF
	}
	return n, err
}

func (s *aiffSource) seek(frame int64) error {
	return errSeekUnsupported
}

func (s *aiffSource) close() error { return nil }
