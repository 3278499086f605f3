// ABOUTME: Ogg Opus codec backed by libopusfile through hraban/opus
// ABOUTME: Always decodes at 48 kHz
package decode

import (
	"bytes"
	"fmt"
	"io"

	"gopkg.in/hraban/opus.v2"

	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

const opusSampleRate = 48000

// probeOpus reads the channel count from the OpusHead packet
func probeOpus(c stream.Cursor, info *sourceInfo) (int64, error) {
	buf := make([]byte, 512)
	n, _ := io.ReadFull(c, buf)
	buf = buf[:n]

	i := bytes.Index(buf, []byte("OpusHead"))
	if i < 0 || i+10 > len(buf) {
		return 0, fmt.Errorf("%w: no OpusHead packet", ErrInvalidFormat)
	}
	info.channels = int(buf[i+9])
	info.sampleRate = opusSampleRate
	return 0, nil
}

type opusSource struct {
	stream   *opus.Stream
	channels int
}

func openOpus(r io.Reader, seekable bool, info *sourceInfo) (pcmSource, error) {
	s, err := opus.NewStream(r)
	if err != nil {
		return nil, fmt.Errorf("failed to create opus stream: %w", err)
	}
	return &opusSource{stream: s, channels: info.channels}, nil
}

func (s *opusSource) read(dst []int16) (int, error) {
	// Read reports samples per channel
	n, err := s.stream.Read(dst)
	return n * s.channels, err
}

func (s *opusSource) seek(frame int64) error {
	return errSeekUnsupported
}

func (s *opusSource) close() error {
	return s.stream.Close()
}
