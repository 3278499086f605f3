// ABOUTME: IMA ADPCM block decoder (WAV compression code 0x11)
// ABOUTME: Four bits per sample with a per-block predictor and step index
package decode

import (
	"encoding/binary"
	"fmt"
)

var imaStepTable = [89]int32{
	7, 8, 9, 10, 11, 12, 13, 14, 16, 17,
	19, 21, 23, 25, 28, 31, 34, 37, 41, 45,
	50, 55, 60, 66, 73, 80, 88, 97, 107, 118,
	130, 143, 157, 173, 190, 209, 230, 253, 279, 307,
	337, 371, 408, 449, 494, 544, 598, 658, 724, 796,
	876, 963, 1060, 1166, 1282, 1411, 1552, 1707, 1878, 2066,
	2272, 2499, 2749, 3024, 3327, 3660, 4026, 4428, 4871, 5358,
	5894, 6484, 7132, 7845, 8630, 9493, 10442, 11487, 12635, 13899,
	15289, 16818, 18500, 20350, 22385, 24623, 27086, 29794, 32767,
}

var imaIndexTable = [16]int32{
	-1, -1, -1, -1, 2, 4, 6, 8,
	-1, -1, -1, -1, 2, 4, 6, 8,
}

// IMAState is the running predictor of one channel. It is exported for the
// encoder, which has to track the exact same state the decoder will see.
type IMAState struct {
	Predictor int32
	Index     int32
}

// Decode expands one nibble and updates the state
func (s *IMAState) Decode(nibble uint8) int16 {
	step := imaStepTable[s.Index]
	diff := step >> 3
	if nibble&1 != 0 {
		diff += step >> 2
	}
	if nibble&2 != 0 {
		diff += step >> 1
	}
	if nibble&4 != 0 {
		diff += step
	}
	if nibble&8 != 0 {
		s.Predictor -= diff
	} else {
		s.Predictor += diff
	}
	s.Predictor = min(max(s.Predictor, -32768), 32767)
	s.Index = min(max(s.Index+imaIndexTable[nibble&0x0F], 0), int32(len(imaStepTable)-1))
	return int16(s.Predictor)
}

// Step returns the quantizer step for the current index
func (s *IMAState) Step() int32 {
	return imaStepTable[s.Index]
}

// IMASamplesPerBlock is the number of frames in a full block
func IMASamplesPerBlock(blockAlign, channels int) int {
	return (blockAlign-4*channels)*2/channels + 1
}

type imaBlock struct {
	channels int
	state    [maxChannels]IMAState
}

func (b *imaBlock) decode(raw []byte, out []int16) (int, error) {
	ch := b.channels
	for c := 0; c < ch; c++ {
		h := raw[c*4:]
		st := &b.state[c]
		st.Predictor = int32(int16(binary.LittleEndian.Uint16(h)))
		st.Index = min(int32(h[2]), int32(len(imaStepTable)-1))
		out[c] = int16(st.Predictor)
	}

	groups := (len(raw) - 4*ch) / (4 * ch)
	pos := 4 * ch
	for g := 0; g < groups; g++ {
		for c := 0; c < ch; c++ {
			word := raw[pos : pos+4]
			pos += 4
			for k := 0; k < 8; k++ {
				nibble := (word[k/2] >> (4 * (k % 2))) & 0x0F
				frame := 1 + g*8 + k
				out[frame*ch+c] = b.state[c].Decode(nibble)
			}
		}
	}
	return 1 + groups*8, nil
}

func newIMACodec(data *dataReader, h *wavHeader) (*adpcmCodec, error) {
	ch := int(h.format.Channels)
	blockAlign := int(h.format.BlockAlign)
	header := 4 * ch
	if blockAlign < header+4*ch {
		return nil, fmt.Errorf("%w: ima block align %d for %d channels", ErrInvalidFormat, blockAlign, ch)
	}
	if h.format.BitsPerSample != 0 && h.format.BitsPerSample != 4 {
		return nil, fmt.Errorf("%w: ima adpcm with %d bits", ErrUnsupportedBitDepth, h.format.BitsPerSample)
	}

	spb := IMASamplesPerBlock(blockAlign, ch)
	numSamples := h.factSamples
	if !h.hasFact || numSamples == 0 {
		numSamples = adpcmSampleCount(h.dataSize(), blockAlign, header, spb, func(rem int) int {
			return 1 + (rem-header)/(4*ch)*8
		})
	}

	b := &imaBlock{channels: ch}
	return newADPCMCodec(data, ch, blockAlign, header, spb, numSamples, b.decode), nil
}
