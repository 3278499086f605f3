// ABOUTME: Helpers that build RIFF/WAVE byte streams for decoder tests
// ABOUTME: Keeps fixtures in code so tests need no binary files
package decode

import (
	"bytes"
	"encoding/binary"
)

type chunk struct {
	id   string
	body []byte
}

func riffBytes(chunks ...chunk) []byte {
	var body bytes.Buffer
	body.WriteString("WAVE")
	for _, c := range chunks {
		body.WriteString(c.id)
		binary.Write(&body, binary.LittleEndian, uint32(len(c.body)))
		body.Write(c.body)
		if len(c.body)%2 == 1 {
			body.WriteByte(0)
		}
	}

	var out bytes.Buffer
	out.WriteString("RIFF")
	binary.Write(&out, binary.LittleEndian, uint32(body.Len()))
	out.Write(body.Bytes())
	return out.Bytes()
}

func fmtBody(code, channels, rate, bits, blockAlign int, ext []byte) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint16(code))
	binary.Write(&b, binary.LittleEndian, uint16(channels))
	binary.Write(&b, binary.LittleEndian, uint32(rate))
	binary.Write(&b, binary.LittleEndian, uint32(rate*blockAlign))
	binary.Write(&b, binary.LittleEndian, uint16(blockAlign))
	binary.Write(&b, binary.LittleEndian, uint16(bits))
	if ext != nil {
		binary.Write(&b, binary.LittleEndian, uint16(len(ext)))
		b.Write(ext)
	}
	return b.Bytes()
}

func int16Bytes(samples ...int16) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[i*2:], uint16(s))
	}
	return out
}

func bytesToInt16(b []byte) []int16 {
	out := make([]int16, len(b)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(b[i*2:]))
	}
	return out
}

// ramp returns n interleaved stereo frames with distinct values per channel
func ramp(frames int) []int16 {
	out := make([]int16, frames*2)
	for i := 0; i < frames; i++ {
		out[i*2] = int16(i * 3)
		out[i*2+1] = int16(-i * 5)
	}
	return out
}

func factBody(samples uint32) []byte {
	b := make([]byte, 4)
	binary.LittleEndian.PutUint32(b, samples)
	return b
}
