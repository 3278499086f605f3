// ABOUTME: Ogg Vorbis codec backed by jfreymuth/oggvorbis
// ABOUTME: Converts float samples to 16-bit
package decode

import (
	"fmt"
	"io"

	"github.com/jfreymuth/oggvorbis"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

type vorbisSource struct {
	dec      *oggvorbis.Reader
	seekable bool
	buf      []float32
}

func openVorbis(r io.Reader, seekable bool, info *sourceInfo) (pcmSource, error) {
	dec, err := oggvorbis.NewReader(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create vorbis decoder: %w", err)
	}

	info.channels = dec.Channels()
	info.sampleRate = dec.SampleRate()
	info.numFrames = dec.Length()
	return &vorbisSource{dec: dec, seekable: seekable}, nil
}

func (s *vorbisSource) read(dst []int16) (int, error) {
	if cap(s.buf) < len(dst) {
		s.buf = make([]float32, len(dst))
	}
	buf := s.buf[:len(dst)]

	// Read returns the number of float values, not frames
	n, err := s.dec.Read(buf)
	for i, v := range buf[:n] {
		dst[i] = audio.FloatToInt16(v)
	}
	return n, err
}

func (s *vorbisSource) seek(frame int64) error {
	if !s.seekable {
		return errSeekUnsupported
	}
	return s.dec.SetPosition(frame)
}

func (s *vorbisSource) close() error { return nil }
