// ABOUTME: MP3 codec backed by go-mp3
// ABOUTME: Probes for the first frame header, then streams 16-bit stereo PCM
package decode

import (
	"errors"
	"fmt"
	"io"

	"github.com/hajimehoshi/go-mp3"

	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

var errNeedMoreData = errors.New("need more data")

var mpegSampleRates = [3]int{44100, 48000, 32000}

// mpegHeader checks a four byte MPEG audio frame header and returns its sample rate
func mpegHeader(h []byte) (int, bool) {
	if h[0] != 0xFF || h[1]&0xE0 != 0xE0 {
		return 0, false
	}
	version := (h[1] >> 3) & 0x03
	layer := (h[1] >> 1) & 0x03
	bitrate := h[2] >> 4
	rateIndex := (h[2] >> 2) & 0x03
	if version == 1 || layer == 0 || bitrate == 0x0F || rateIndex == 3 {
		return 0, false
	}

	rate := mpegSampleRates[rateIndex]
	switch version {
	case 2: // MPEG 2
		rate /= 2
	case 0: // MPEG 2.5
		rate /= 4
	}
	return rate, true
}

// probeMP3 skips an ID3v2 tag and returns the offset of the first frame
func probeMP3(c stream.Cursor, info *sourceInfo) (int64, error) {
	complete := isComplete(c)

	var head [10]byte
	n, _ := io.ReadFull(c, head[:])
	start := int64(0)
	if n == len(head) && string(head[0:3]) == "ID3" {
		size := int64(head[6])<<21 | int64(head[7])<<14 | int64(head[8])<<7 | int64(head[9])
		start = 10 + size
		if head[5]&0x10 != 0 {
			start += 10
		}
	}

	if _, err := c.Seek(min(start, c.Size()), io.SeekStart); err != nil {
		return 0, err
	}
	if start > c.Size() {
		if complete {
			return 0, fmt.Errorf("%w: id3 tag runs past the end of the stream", ErrInvalidFormat)
		}
		return 0, errNeedMoreData
	}
	if !complete && !c.ReadyReadData(4096) {
		return 0, errNeedMoreData
	}

	buf := make([]byte, initLookahead)
	n, err := io.ReadFull(c, buf)
	if err != nil && !errors.Is(err, io.ErrUnexpectedEOF) && !errors.Is(err, io.EOF) {
		return 0, err
	}
	buf = buf[:n]

	for i := 0; i+4 <= len(buf); i++ {
		if rate, ok := mpegHeader(buf[i:]); ok {
			// go-mp3 always produces stereo
			info.channels = 2
			info.sampleRate = rate
			return start + int64(i), nil
		}
	}
	return 0, fmt.Errorf("%w: no mpeg frame found", ErrInvalidFormat)
}

type mp3Source struct {
	dec      *mp3.Decoder
	seekable bool
	buf      []byte
}

func openMP3(r io.Reader, seekable bool, info *sourceInfo) (pcmSource, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create mp3 decoder: %w", err)
	}

	info.channels = 2
	info.sampleRate = dec.SampleRate()
	if seekable && dec.Length() > 0 {
		info.numFrames = dec.Length() / 4
	}
	return &mp3Source{dec: dec, seekable: seekable}, nil
}

func (s *mp3Source) read(dst []int16) (int, error) {
	if cap(s.buf) < len(dst)*2 {
		s.buf = make([]byte, len(dst)*2)
	}
	buf := s.buf[:len(dst)*2]

	n, err := s.dec.Read(buf)
	samples := n / 2
	for i := 0; i < samples; i++ {
		dst[i] = int16(uint16(buf[i*2]) | uint16(buf[i*2+1])<<8)
	}
	return samples, err
}

func (s *mp3Source) seek(frame int64) error {
	if !s.seekable {
		return errSeekUnsupported
	}
	_, err := s.dec.Seek(frame*4, io.SeekStart)
	return err
}

func (s *mp3Source) close() error { return nil }
