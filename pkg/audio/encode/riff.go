// ABOUTME: Minimal RIFF/WAVE writer
// ABOUTME: Writes chunks with sizes known up front so any io.Writer works
package encode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

type riffChunk struct {
	id   string
	body []byte
}

func writeRIFF(w io.Writer, chunks ...riffChunk) error {
	size := 4
	for _, c := range chunks {
		size += 8 + len(c.body) + len(c.body)&1
	}

	header := make([]byte, 12)
	copy(header[0:4], "RIFF")
	binary.LittleEndian.PutUint32(header[4:8], uint32(size))
	copy(header[8:12], "WAVE")
	if _, err := w.Write(header); err != nil {
		return fmt.Errorf("failed to write riff header: %w", err)
	}

	for _, c := range chunks {
		var ch [8]byte
		copy(ch[0:4], c.id)
		binary.LittleEndian.PutUint32(ch[4:8], uint32(len(c.body)))
		if _, err := w.Write(ch[:]); err != nil {
			return fmt.Errorf("failed to write %q chunk: %w", c.id, err)
		}
		if _, err := w.Write(c.body); err != nil {
			return fmt.Errorf("failed to write %q chunk: %w", c.id, err)
		}
		if len(c.body)&1 == 1 {
			if _, err := w.Write([]byte{0}); err != nil {
				return err
			}
		}
	}
	return nil
}

type fmtFields struct {
	code       uint16
	channels   int
	rate       int
	byteRate   int
	blockAlign int
	bits       int
	ext        []byte
}

func (f fmtFields) bytes() []byte {
	size := 16
	if f.ext != nil {
		size += 2 + len(f.ext)
	}
	b := make([]byte, size)
	binary.LittleEndian.PutUint16(b[0:2], f.code)
	binary.LittleEndian.PutUint16(b[2:4], uint16(f.channels))
	binary.LittleEndian.PutUint32(b[4:8], uint32(f.rate))
	binary.LittleEndian.PutUint32(b[8:12], uint32(f.byteRate))
	binary.LittleEndian.PutUint16(b[12:14], uint16(f.blockAlign))
	binary.LittleEndian.PutUint16(b[14:16], uint16(f.bits))
	if f.ext != nil {
		binary.LittleEndian.PutUint16(b[16:18], uint16(len(f.ext)))
		copy(b[18:], f.ext)
	}
	return b
}

// WriteWAV writes interleaved 16-bit samples as a PCM RIFF file
func WriteWAV(w io.Writer, params audio.TrackParams, samples []int16) error {
	if params.Channels < 1 || params.SampleRate <= 0 {
		return fmt.Errorf("invalid wav parameters: %d channels at %d Hz", params.Channels, params.SampleRate)
	}
	if len(samples)%params.Channels != 0 {
		return fmt.Errorf("sample count %d is not a multiple of %d channels", len(samples), params.Channels)
	}

	blockAlign := params.Channels * 2
	format := fmtFields{
		code:       1,
		channels:   params.Channels,
		rate:       params.SampleRate,
		byteRate:   params.SampleRate * blockAlign,
		blockAlign: blockAlign,
		bits:       16,
	}
	return writeRIFF(w,
		riffChunk{"fmt ", format.bytes()},
		riffChunk{"data", PCM16(samples)},
	)
}
