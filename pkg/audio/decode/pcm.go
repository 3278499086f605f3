// ABOUTME: Uncompressed PCM codec
// ABOUTME: Converts 8/16/24/32-bit integer and 32/64-bit float samples to 16-bit
package decode

import (
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"math"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

type pcmCodec struct {
	data        *dataReader
	channels    int
	sampleBytes int
	frameBytes  int
	float       bool
	frame       int64
	scratch     []byte
}

func newPCMCodec(data *dataReader, channels, bits, blockAlign int, float bool) (*pcmCodec, error) {
	valid := bits == 8 || bits == 16 || bits == 24 || bits == 32
	if float {
		valid = bits == 32 || bits == 64
	}
	if !valid {
		return nil, fmt.Errorf("%w: %d", ErrUnsupportedBitDepth, bits)
	}

	sampleBytes := bits / 8
	frameBytes := channels * sampleBytes
	if blockAlign > frameBytes {
		frameBytes = blockAlign
	}

	return &pcmCodec{
		data:        data,
		channels:    channels,
		sampleBytes: sampleBytes,
		frameBytes:  frameBytes,
		float:       float,
	}, nil
}

func (p *pcmCodec) numFrames() int64 {
	return p.data.total / int64(p.frameBytes)
}

func (p *pcmCodec) seek(frame int64) error {
	if err := p.data.seek(frame * int64(p.frameBytes)); err != nil {
		return err
	}
	p.frame = frame
	return nil
}

func (p *pcmCodec) decode(out []byte, loop bool) (int, audio.Status, error) {
	p.data.refresh()

	outFrame := 2 * p.channels
	want := int64(len(out) / outFrame)

	need := min(want, p.numFrames()-p.frame)
	if p.data.openEnded && !p.data.complete() {
		need = want
	}
	if need > 0 && !p.data.ready(need*int64(p.frameBytes)) {
		return 0, audio.WaitData, nil
	}

	var produced int64
	for produced < want {
		left := p.numFrames() - p.frame
		if left <= 0 {
			if !loop || p.numFrames() == 0 {
				break
			}
			p.seek(0)
			continue
		}

		n := min(want-produced, left)
		raw := p.buffer(int(n) * p.frameBytes)
		got, err := p.data.read(raw)
		frames := int64(got / p.frameBytes)
		p.convert(out[produced*int64(outFrame):], raw, int(frames))
		p.frame += frames
		produced += frames

		if err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				// Shorter than the header claims
				p.data.truncate(p.frame * int64(p.frameBytes))
				continue
			}
			return int(produced) * outFrame, audio.Failed, err
		}
	}
	return int(produced) * outFrame, audio.Success, nil
}

func (p *pcmCodec) buffer(n int) []byte {
	if cap(p.scratch) < n {
		p.scratch = make([]byte, n)
	}
	return p.scratch[:n]
}

// convert writes frames of source samples from raw into out as int16
func (p *pcmCodec) convert(out, raw []byte, frames int) {
	o := 0
	for f := 0; f < frames; f++ {
		base := f * p.frameBytes
		for c := 0; c < p.channels; c++ {
			s := raw[base+c*p.sampleBytes:]
			binary.LittleEndian.PutUint16(out[o:], uint16(p.sample(s)))
			o += 2
		}
	}
}

func (p *pcmCodec) sample(s []byte) int16 {
	if p.float {
		if p.sampleBytes == 8 {
			return audio.FloatToInt16(float32(math.Float64frombits(binary.LittleEndian.Uint64(s))))
		}
		return audio.FloatToInt16(math.Float32frombits(binary.LittleEndian.Uint32(s)))
	}

	switch p.sampleBytes {
	case 1:
		return int16((int32(s[0]) - 128) << 8)
	case 2:
		return int16(binary.LittleEndian.Uint16(s))
	case 3:
		return int16(int32(uint32(s[0])<<8|uint32(s[1])<<16|uint32(s[2])<<24) >> 16)
	default:
		return int16(int32(binary.LittleEndian.Uint32(s)) >> 16)
	}
}
