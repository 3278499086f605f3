// ABOUTME: IMA ADPCM encoder producing RIFF files the decoder reads back
// ABOUTME: Quantises against the decoder's own predictor state
package encode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/skylicht-lab/skyaudio/pkg/audio/decode"
)

// imaNibble quantises sample against the running state and advances it
// exactly as the decoder will
func imaNibble(s *decode.IMAState, sample int16) uint8 {
	step := s.Step()
	diff := int32(sample) - s.Predictor

	var nibble uint8
	if diff < 0 {
		nibble = 8
		diff = -diff
	}
	if diff >= step {
		nibble |= 4
		diff -= step
	}
	step >>= 1
	if diff >= step {
		nibble |= 2
		diff -= step
	}
	step >>= 1
	if diff >= step {
		nibble |= 1
	}

	s.Decode(nibble)
	return nibble
}

// EncodeIMAADPCM writes interleaved samples as an IMA ADPCM RIFF file.
// blockAlign must leave room for whole 4-byte groups per channel after the
// header, for example 512 or 1024 for stereo. The last block is padded with
// silence and the fact chunk records the real length.
func EncodeIMAADPCM(w io.Writer, samples []int16, channels, sampleRate, blockAlign int) error {
	if channels < 1 || channels > 8 || sampleRate <= 0 {
		return fmt.Errorf("invalid ima parameters: %d channels at %d Hz", channels, sampleRate)
	}
	body := blockAlign - 4*channels
	if body <= 0 || body%(4*channels) != 0 {
		return fmt.Errorf("invalid ima block align %d for %d channels", blockAlign, channels)
	}

	spb := decode.IMASamplesPerBlock(blockAlign, channels)
	frames := len(samples) / channels
	blocks := (frames + spb - 1) / spb

	state := make([]decode.IMAState, channels)
	data := make([]byte, 0, blocks*blockAlign)
	frame := func(i, c int) int16 {
		if i < frames {
			return samples[i*channels+c]
		}
		return 0
	}

	for b := 0; b < blocks; b++ {
		start := b * spb

		for c := 0; c < channels; c++ {
			s := &state[c]
			s.Predictor = int32(frame(start, c))
			var h [4]byte
			binary.LittleEndian.PutUint16(h[0:2], uint16(int16(s.Predictor)))
			h[2] = byte(s.Index)
			data = append(data, h[:]...)
		}

		for g := 0; g < (spb-1)/8; g++ {
			for c := 0; c < channels; c++ {
				var word [4]byte
				for k := 0; k < 8; k++ {
					nibble := imaNibble(&state[c], frame(start+1+g*8+k, c))
					word[k/2] |= nibble << (4 * (k % 2))
				}
				data = append(data, word[:]...)
			}
		}
	}

	fact := make([]byte, 4)
	binary.LittleEndian.PutUint32(fact, uint32(frames))

	ext := make([]byte, 2)
	binary.LittleEndian.PutUint16(ext, uint16(spb))

	format := fmtFields{
		code:       0x11,
		channels:   channels,
		rate:       sampleRate,
		byteRate:   sampleRate * blockAlign / spb,
		blockAlign: blockAlign,
		bits:       4,
		ext:        ext,
	}
	return writeRIFF(w,
		riffChunk{"fmt ", format.bytes()},
		riffChunk{"fact", fact},
		riffChunk{"data", data},
	)
}
