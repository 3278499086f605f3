// ABOUTME: Microsoft ADPCM block decoder (WAV compression code 0x02)
// ABOUTME: Two-tap predictor with coefficient sets from the fmt extension
package decode

import (
	"encoding/binary"
	"fmt"
)

var msAdaptTable = [16]int32{
	230, 230, 230, 230, 307, 409, 512, 614,
	768, 614, 512, 409, 307, 230, 230, 230,
}

// msStandardCoefs are used when the fmt chunk carries no coefficient table
var msStandardCoefs = [][2]int32{
	{256, 0}, {512, -256}, {0, 0}, {192, 64}, {240, 0}, {460, -208}, {392, -232},
}

type msState struct {
	coef1, coef2 int32
	delta        int32
	sample1      int32
	sample2      int32
}

func (s *msState) decode(nibble uint8) int16 {
	signed := int32(nibble)
	if signed >= 8 {
		signed -= 16
	}
	predicted := (s.sample1*s.coef1+s.sample2*s.coef2)>>8 + signed*s.delta
	predicted = min(max(predicted, -32768), 32767)

	s.sample2 = s.sample1
	s.sample1 = predicted
	s.delta = (msAdaptTable[nibble] * s.delta) >> 8
	if s.delta < 16 {
		s.delta = 16
	}
	return int16(predicted)
}

type msBlock struct {
	channels        int
	samplesPerBlock int
	coefs           [][2]int32
	state           [2]msState
}

// decode reads a 7*channels byte header (predictor, delta, sample1, sample2
// per channel) followed by nibbles, high nibble first.
func (b *msBlock) decode(raw []byte, out []int16) (int, error) {
	ch := b.channels
	for c := 0; c < ch; c++ {
		pred := int(raw[c])
		if pred >= len(b.coefs) {
			return 0, fmt.Errorf("%w: %d of %d", ErrInvalidPredictor, pred, len(b.coefs))
		}
		st := &b.state[c]
		st.coef1 = b.coefs[pred][0]
		st.coef2 = b.coefs[pred][1]
		st.delta = int32(int16(binary.LittleEndian.Uint16(raw[ch+c*2:])))
		st.sample1 = int32(int16(binary.LittleEndian.Uint16(raw[3*ch+c*2:])))
		st.sample2 = int32(int16(binary.LittleEndian.Uint16(raw[5*ch+c*2:])))

		out[c] = int16(st.sample2)
		out[ch+c] = int16(st.sample1)
	}

	limit := b.samplesPerBlock * ch
	k := 2 * ch
	for _, v := range raw[7*ch:] {
		if k >= limit {
			break
		}
		out[k] = b.state[k%ch].decode(v >> 4)
		k++
		if k >= limit {
			break
		}
		out[k] = b.state[k%ch].decode(v & 0x0F)
		k++
	}
	return k / ch, nil
}

func newMSCodec(data *dataReader, h *wavHeader) (*adpcmCodec, error) {
	ch := int(h.format.Channels)
	if ch > 2 {
		return nil, fmt.Errorf("%w: ms adpcm supports 2, got %d", ErrTooManyChannels, ch)
	}
	blockAlign := int(h.format.BlockAlign)
	header := 7 * ch
	if blockAlign <= header {
		return nil, fmt.Errorf("%w: ms adpcm block align %d for %d channels", ErrInvalidFormat, blockAlign, ch)
	}

	spb := (blockAlign-header)*2/ch + 2
	coefs := msStandardCoefs

	// cbSize, samplesPerBlock, numCoef, then numCoef pairs of int16
	ext := h.ext
	if len(ext) >= 4 {
		if declared := int(binary.LittleEndian.Uint16(ext[2:4])); declared > 0 && declared < spb {
			spb = declared
		}
	}
	if len(ext) >= 6 {
		numCoef := int(binary.LittleEndian.Uint16(ext[4:6]))
		if numCoef > 0 && len(ext) >= 6+numCoef*4 {
			coefs = make([][2]int32, numCoef)
			for i := range coefs {
				p := ext[6+i*4:]
				coefs[i][0] = int32(int16(binary.LittleEndian.Uint16(p[0:2])))
				coefs[i][1] = int32(int16(binary.LittleEndian.Uint16(p[2:4])))
			}
		}
	}

	numSamples := h.factSamples
	if !h.hasFact || numSamples == 0 {
		numSamples = adpcmSampleCount(h.dataSize(), blockAlign, header, spb, func(rem int) int {
			return min((rem-header)*2/ch+2, spb)
		})
	}

	b := &msBlock{channels: ch, samplesPerBlock: spb, coefs: coefs}
	return newADPCMCodec(data, ch, blockAlign, header, spb, numSamples, b.decode), nil
}
