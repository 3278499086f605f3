// ABOUTME: Block based ADPCM playback shared by the IMA and Microsoft variants
// ABOUTME: Decodes one block at a time and serves frames out of it
package decode

import (
	"encoding/binary"
	"errors"
	"io"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
)

// errBlockPending reports that the next block has not fully arrived yet
var errBlockPending = errors.New("adpcm block not yet received")

// blockFunc decodes one raw block into interleaved samples and returns the frame count
type blockFunc func(raw []byte, out []int16) (int, error)

type adpcmCodec struct {
	data            *dataReader
	channels        int
	blockAlign      int
	headerSize      int
	samplesPerBlock int
	numSamples      int64
	decodeBlock     blockFunc

	raw         []byte
	block       []int16
	blockStart  int64
	blockFrames int
	blockPos    int
	// skip is applied to the next decoded block after a seek
	skip int
}

func newADPCMCodec(data *dataReader, channels, blockAlign, headerSize, samplesPerBlock int, numSamples int64, fn blockFunc) *adpcmCodec {
	return &adpcmCodec{
		data:            data,
		channels:        channels,
		blockAlign:      blockAlign,
		headerSize:      headerSize,
		samplesPerBlock: samplesPerBlock,
		numSamples:      numSamples,
		decodeBlock:     fn,
		raw:             make([]byte, blockAlign),
		block:           make([]int16, samplesPerBlock*channels),
	}
}

// adpcmSampleCount derives the track length from the data size when there is no fact chunk
func adpcmSampleCount(dataSize int64, blockAlign, headerSize, samplesPerBlock int, tail func(rem int) int) int64 {
	full := dataSize / int64(blockAlign)
	n := full * int64(samplesPerBlock)
	if rem := int(dataSize % int64(blockAlign)); rem >= headerSize {
		n += int64(tail(rem))
	}
	return n
}

func (a *adpcmCodec) position() int64 {
	return a.blockStart + int64(max(a.blockPos, a.skip))
}

// seek positions at the block holding frame. The block is decoded on the
// next call to decode so seeking never waits on stream data.
func (a *adpcmCodec) seek(frame int64) error {
	index := frame / int64(a.samplesPerBlock)
	if err := a.data.seek(min(index*int64(a.blockAlign), a.data.total)); err != nil {
		return err
	}
	a.blockStart = index * int64(a.samplesPerBlock)
	a.blockFrames = 0
	a.blockPos = 0
	a.skip = int(frame - a.blockStart)
	return nil
}

// nextBlock advances past the current block and decodes the following one.
// It returns 0 frames at the end of the data and errBlockPending, with
// nothing changed, while the block is still arriving.
func (a *adpcmCodec) nextBlock() (int, error) {
	if n := min(int64(a.blockAlign), a.data.remaining()); n >= int64(a.headerSize) && !a.data.ready(n) {
		return 0, errBlockPending
	}

	a.blockStart += int64(a.blockFrames)
	a.blockFrames = 0
	a.blockPos = 0

	if a.numSamples > 0 && a.blockStart >= a.numSamples {
		return 0, nil
	}
	n := int(min(int64(a.blockAlign), a.data.remaining()))
	if n < a.headerSize {
		return 0, nil
	}

	raw := a.raw[:n]
	got, err := a.data.read(raw)
	if err != nil && !errors.Is(err, io.EOF) && !errors.Is(err, io.ErrUnexpectedEOF) {
		return 0, err
	}
	if got < a.headerSize {
		return 0, nil
	}

	frames, err := a.decodeBlock(raw[:got], a.block)
	if err != nil {
		return 0, err
	}
	if a.numSamples > 0 {
		frames = int(min(int64(frames), a.numSamples-a.blockStart))
	}
	a.blockFrames = frames
	if a.skip > 0 {
		a.blockPos = min(a.skip, frames)
		a.skip = 0
	}
	return frames, nil
}

func (a *adpcmCodec) decode(out []byte, loop bool) (int, audio.Status, error) {
	ch := a.channels
	want := len(out) / (2 * ch)

	// Frames still to be skipped after a seek are decoded before any are served
	if short := want + a.skip - (a.blockFrames - a.blockPos); short > 0 {
		blocks := (short + a.samplesPerBlock - 1) / a.samplesPerBlock
		need := min(int64(blocks*a.blockAlign), a.data.remaining())
		if need > 0 && !a.data.ready(need) {
			return 0, audio.WaitData, nil
		}
	}

	start := a.position()
	produced := 0
	for produced < want {
		if a.blockPos >= a.blockFrames {
			n, err := a.nextBlock()
			if errors.Is(err, errBlockPending) {
				// Roll back so the retry decodes the same frames
				if err := a.seek(start); err != nil {
					return 0, audio.Failed, err
				}
				return 0, audio.WaitData, nil
			}
			if err != nil {
				return produced * 2 * ch, audio.Failed, err
			}
			if n == 0 {
				if !loop || a.blockStart == 0 {
					break
				}
				a.seek(0)
				continue
			}
			if a.blockPos >= a.blockFrames {
				continue
			}
		}

		k := min(want-produced, a.blockFrames-a.blockPos)
		src := a.block[a.blockPos*ch : (a.blockPos+k)*ch]
		dst := out[produced*2*ch:]
		for i, s := range src {
			binary.LittleEndian.PutUint16(dst[i*2:], uint16(s))
		}
		a.blockPos += k
		produced += k
	}
	return produced * 2 * ch, audio.Success, nil
}
