// ABOUTME: PCM sample packing
// ABOUTME: Encodes int16 samples to little endian 16-bit PCM bytes
package encode

import "encoding/binary"

// PCM16 packs interleaved samples into little endian bytes
func PCM16(samples []int16) []byte {
	output := make([]byte, len(samples)*2)
	for i, sample := range samples {
		binary.LittleEndian.PutUint16(output[i*2:], uint16(sample))
	}
	return output
}
