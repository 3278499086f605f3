// ABOUTME: RIFF/WAVE header parsing
// ABOUTME: Collects the fmt, fact and data chunks and picks the codec variant
package decode

import (
	"encoding/binary"
	"fmt"
	"io"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

const (
	riffHeaderSize  = 12
	chunkHeaderSize = 8
	fmtChunkSize    = 16
)

// WAV compression codes
const (
	wavePCM        = 0x0001
	waveMSADPCM    = 0x0002
	waveFloat      = 0x0003
	waveIMAADPCM   = 0x0011
	waveExtensible = 0xFFFE
)

type fmtChunk struct {
	CompressionCode uint16
	Channels        uint16
	SampleRate      uint32
	ByteRate        uint32
	BlockAlign      uint16
	BitsPerSample   uint16
}

type wavHeader struct {
	format      fmtChunk
	hasFormat   bool
	ext         []byte
	factSamples int64
	hasFact     bool
	nodes       []DataNode
	openEnded   bool
}

// code resolves WAVE_FORMAT_EXTENSIBLE to the sub format it wraps
func (h *wavHeader) code() uint16 {
	if h.format.CompressionCode == waveExtensible && len(h.ext) >= 10 {
		return binary.LittleEndian.Uint16(h.ext[8:10])
	}
	return h.format.CompressionCode
}

// dataSize is the combined size of every data chunk
func (h *wavHeader) dataSize() int64 {
	var size int64
	for _, n := range h.nodes {
		size += n.Size
	}
	return size
}

// parseWAV scans the chunk list from the start of the stream. On an
// incomplete stream it stops at the first data chunk whose payload has not
// fully arrived, which is enough to start playback.
func parseWAV(c stream.Cursor) (*wavHeader, audio.Status, error) {
	if _, err := c.Seek(0, io.SeekStart); err != nil {
		return nil, audio.Failed, err
	}
	if !c.ReadyReadData(riffHeaderSize) {
		return nil, audio.WaitData, nil
	}

	var riff [riffHeaderSize]byte
	if _, err := io.ReadFull(c, riff[:]); err != nil {
		return nil, audio.Failed, fmt.Errorf("%w: %v", ErrNotWAV, err)
	}
	if string(riff[0:4]) != "RIFF" || string(riff[8:12]) != "WAVE" {
		return nil, audio.Failed, ErrNotWAV
	}

	complete := isComplete(c)
	h := &wavHeader{}
	playable := func() bool { return h.hasFormat && len(h.nodes) > 0 }

	var hdr [chunkHeaderSize]byte
scan:
	for !c.EndOfStream() {
		if !c.ReadyReadData(chunkHeaderSize) {
			if playable() || complete {
				break
			}
			return nil, audio.WaitData, nil
		}
		if _, err := io.ReadFull(c, hdr[:]); err != nil {
			break
		}

		id := string(hdr[0:4])
		size := int64(binary.LittleEndian.Uint32(hdr[4:8]))
		padded := size + size&1

		switch id {
		case "fmt ":
			if size < fmtChunkSize {
				return nil, audio.Failed, fmt.Errorf("%w: fmt chunk of %d bytes", ErrInvalidFormat, size)
			}
			if !c.ReadyReadData(int(padded)) {
				return nil, audio.WaitData, nil
			}
			body := make([]byte, size)
			if _, err := io.ReadFull(c, body); err != nil {
				return nil, audio.Failed, fmt.Errorf("%w: truncated fmt chunk", ErrInvalidFormat)
			}
			h.format = fmtChunk{
				CompressionCode: binary.LittleEndian.Uint16(body[0:2]),
				Channels:        binary.LittleEndian.Uint16(body[2:4]),
				SampleRate:      binary.LittleEndian.Uint32(body[4:8]),
				ByteRate:        binary.LittleEndian.Uint32(body[8:12]),
				BlockAlign:      binary.LittleEndian.Uint16(body[12:14]),
				BitsPerSample:   binary.LittleEndian.Uint16(body[14:16]),
			}
			h.ext = body[fmtChunkSize:]
			h.hasFormat = true
			if padded > size {
				c.Seek(padded-size, io.SeekCurrent)
			}

		case "fact":
			if !c.ReadyReadData(int(padded)) {
				if playable() {
					break scan
				}
				return nil, audio.WaitData, nil
			}
			if size >= 4 {
				var v [4]byte
				if _, err := io.ReadFull(c, v[:]); err != nil {
					break scan
				}
				h.factSamples = int64(binary.LittleEndian.Uint32(v[:]))
				h.hasFact = true
				padded -= 4
			}
			if _, err := c.Seek(padded, io.SeekCurrent); err != nil {
				break scan
			}

		case "data":
			offset := c.Tell()
			if size == 0 || size == 0xFFFFFFFF {
				// Streaming writers leave the size unset; the payload runs to the end
				h.nodes = append(h.nodes, DataNode{Offset: offset, Size: max(c.Size()-offset, 0)})
				h.openEnded = !complete
				break scan
			}
			h.nodes = append(h.nodes, DataNode{Offset: offset, Size: size})
			if !c.ReadyReadData(int(padded)) {
				break scan
			}
			if _, err := c.Seek(padded, io.SeekCurrent); err != nil {
				break scan
			}

		default:
			if !c.ReadyReadData(int(padded)) {
				if playable() || complete {
					break scan
				}
				return nil, audio.WaitData, nil
			}
			if _, err := c.Seek(padded, io.SeekCurrent); err != nil {
				break scan
			}
		}
	}

	if !h.hasFormat {
		return nil, audio.Failed, ErrNoFormatChunk
	}
	if len(h.nodes) == 0 {
		return nil, audio.Failed, ErrNoDataChunk
	}

	if complete {
		h.clampNodes(c.Size())
	}
	return h, audio.Success, nil
}

// clampNodes trims data chunks that claim more bytes than the stream holds
func (h *wavHeader) clampNodes(size int64) {
	nodes := h.nodes[:0]
	for _, n := range h.nodes {
		if n.Offset >= size {
			continue
		}
		if n.Offset+n.Size > size {
			n.Size = size - n.Offset
		}
		nodes = append(nodes, n)
	}
	h.nodes = nodes
}

func (d *Decoder) initWAV() (audio.Status, error) {
	h, status, err := parseWAV(d.cursor)
	if status != audio.Success {
		return status, err
	}

	f := h.format
	channels := int(f.Channels)
	if channels == 0 || f.SampleRate == 0 || f.BlockAlign == 0 {
		return audio.Failed, fmt.Errorf("%w: %d channels, %d Hz, block align %d",
			ErrInvalidFormat, channels, f.SampleRate, f.BlockAlign)
	}
	if channels > maxChannels {
		return audio.Failed, fmt.Errorf("%w: %d", ErrTooManyChannels, channels)
	}

	data := newDataReader(d.cursor, h.nodes, h.openEnded)

	var numSamples int64
	switch code := h.code(); code {
	case wavePCM, waveFloat:
		codec, err := newPCMCodec(data, channels, int(f.BitsPerSample), int(f.BlockAlign), code == waveFloat)
		if err != nil {
			return audio.Failed, err
		}
		d.pcm = codec
		d.kind = KindPCM
		numSamples = codec.numFrames()

	case waveIMAADPCM:
		codec, err := newIMACodec(data, h)
		if err != nil {
			return audio.Failed, err
		}
		d.adpcm = codec
		d.kind = KindIMAADPCM
		numSamples = codec.numSamples

	case waveMSADPCM:
		codec, err := newMSCodec(data, h)
		if err != nil {
			return audio.Failed, err
		}
		d.adpcm = codec
		d.kind = KindMSADPCM
		numSamples = codec.numSamples

	default:
		return audio.Failed, fmt.Errorf("%w: 0x%04x", ErrUnsupportedCompression, code)
	}

	d.params = audio.TrackParams{
		Channels:      channels,
		SampleRate:    int(f.SampleRate),
		BitsPerSample: audio.BitsPerSample,
		NumSamples:    numSamples,
	}
	return audio.Success, nil
}
