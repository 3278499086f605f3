// ABOUTME: FLAC codec backed by mewkiz/flac
// ABOUTME: Interleaves subframes and scales any bit depth to 16-bit
package decode

import (
	"fmt"
	"io"

	"github.com/mewkiz/flac"
)

type flacSource struct {
	stream   *flac.Stream
	seekable bool
	bits     int
	channels int
	pending  []int16
}

func openFLAC(r io.Reader, seekable bool, info *sourceInfo) (pcmSource, error) {
	var s *flac.Stream
	var err error
	if rs, ok := r.(io.ReadSeeker); ok && seekable {
		s, err = flac.NewSeek(rs)
	} else {
		s, err = flac.New(r)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to decode FLAC: %w", err)
	}

	info.channels = int(s.Info.NChannels)
	info.sampleRate = int(s.Info.SampleRate)
	info.numFrames = int64(s.Info.NSamples)

	return &flacSource{
		stream:   s,
		seekable: seekable,
		bits:     int(s.Info.BitsPerSample),
		channels: info.channels,
	}, nil
}

func (s *flacSource) read(dst []int16) (int, error) {
	n := 0
	for n < len(dst) {
		if len(s.pending) > 0 {
			k := copy(dst[n:], s.pending)
			s.pending = s.pending[k:]
			n += k
			continue
		}

		frame, err := s.stream.ParseNext()
		if err != nil {
			return n, err
		}

		size := len(frame.Subframes[0].Samples)
		out := make([]int16, 0, size*s.channels)
		for i := 0; i < size; i++ {
			for ch := 0; ch < s.channels; ch++ {
				out = append(out, s.scale(frame.Subframes[ch].Samples[i]))
			}
		}
		s.pending = out
	}
	return n, nil
}

func (s *flacSource) scale(v int32) int16 {
	switch {
	case s.bits > 16:
		return int16(v >> (s.bits - 16))
	case s.bits < 16:
		return int16(v << (16 - s.bits))
	default:
		return int16(v)
	}
}

func (s *flacSource) seek(frame int64) error {
	if !s.seekable {
		return errSeekUnsupported
	}
	s.pending = nil
	_, err := s.stream.Seek(uint64(frame))
	return err
}

func (s *flacSource) close() error {
	return s.stream.Close()
}
