// ABOUTME: Tests for the IMA and Microsoft ADPCM decoders
// ABOUTME: Checks known values, restarts, mid-block seeks and header validation
package decode

import (
	"bytes"
	"encoding/binary"
	"errors"
	"testing"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

func TestIMAStateKnownValues(t *testing.T) {
	var s IMAState

	if got := s.Decode(0x7); got != 11 || s.Index != 8 {
		t.Errorf("nibble 7: expected 11 at index 8, got %d at %d", got, s.Index)
	}
	if got := s.Decode(0xF); got != -19 || s.Index != 16 {
		t.Errorf("nibble 15: expected -19 at index 16, got %d at %d", got, s.Index)
	}

	// Index never leaves the table
	for i := 0; i < 20; i++ {
		s.Decode(0x0)
	}
	if s.Index != 0 {
		t.Errorf("expected index clamped to 0, got %d", s.Index)
	}
}

// imaBlocks builds mono IMA blocks of 36 bytes (65 frames each)
func imaBlocks(count int) []byte {
	var b bytes.Buffer
	for i := 0; i < count; i++ {
		binary.Write(&b, binary.LittleEndian, int16(i*100-50))
		b.WriteByte(byte(10 + i))
		b.WriteByte(0)
		for j := 0; j < 32; j++ {
			b.WriteByte(byte(j*37 + i*11))
		}
	}
	return b.Bytes()
}

func newIMADecoder(t *testing.T, payload []byte, fact uint32) *Decoder {
	t.Helper()
	chunks := []chunk{{"fmt ", fmtBody(waveIMAADPCM, 1, 22050, 4, 36, []byte{65, 0})}}
	if fact > 0 {
		chunks = append(chunks, chunk{"fact", factBody(fact)})
	}
	chunks = append(chunks, chunk{"data", payload})

	d := New(FormatWAV, stream.NewMemoryStream(riffBytes(chunks...)))
	mustInit(t, d)
	if d.Kind() != KindIMAADPCM {
		t.Fatalf("expected ima kind, got %v", d.Kind())
	}
	return d
}

func TestIMARestartAndSeek(t *testing.T) {
	d := newIMADecoder(t, imaBlocks(3), 190)

	if n := d.TrackParams().NumSamples; n != 190 {
		t.Fatalf("expected fact chunk sample count 190, got %d", n)
	}

	full := make([]byte, 1000)
	n, status := d.Decode(full)
	if status != audio.Success || n != 380 {
		t.Fatalf("decode returned %d, %v", n, status)
	}
	full = full[:n]

	if first := bytesToInt16(full)[0]; first != -50 {
		t.Errorf("expected first frame from block header, got %d", first)
	}

	if err := d.Seek(0); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	again := make([]byte, 380)
	d.Decode(again)
	if !bytes.Equal(full, again) {
		t.Error("decoding after a restart produced different samples")
	}

	for _, frame := range []int64{1, 64, 65, 70, 189} {
		if err := d.Seek(frame); err != nil {
			t.Fatalf("seek to %d failed: %v", frame, err)
		}
		if d.Position() != frame {
			t.Errorf("expected position %d, got %d", frame, d.Position())
		}
		out := make([]byte, 2)
		if _, status := d.Decode(out); status != audio.Success {
			t.Fatalf("decode after seek to %d returned %v", frame, status)
		}
		if !bytes.Equal(out, full[frame*2:frame*2+2]) {
			t.Errorf("frame %d after seek does not match sequential decode", frame)
		}
	}
}

func TestIMASeekIntoArrivingStream(t *testing.T) {
	data := riffBytes(
		chunk{"fmt ", fmtBody(waveIMAADPCM, 1, 22050, 4, 36, []byte{65, 0})},
		chunk{"fact", factBody(190)},
		chunk{"data", imaBlocks(3)},
	)

	ref := New(FormatWAV, stream.NewMemoryStream(data))
	mustInit(t, ref)
	if err := ref.Seek(100); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	want := make([]byte, 80)
	if n, status := ref.Decode(want); n != 80 || status != audio.Success {
		t.Fatalf("reference decode returned %d, %v", n, status)
	}

	// Everything but the last block has arrived
	online := stream.NewOnlineStream()
	online.Write(data[:len(data)-36])
	d := New(FormatWAV, online)
	mustInit(t, d)

	if err := d.Seek(100); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	out := make([]byte, 80)
	if n, status := d.Decode(out); n != 0 || status != audio.WaitData {
		t.Fatalf("expected wait-data while the last block is missing, got %d, %v", n, status)
	}
	if d.Position() != 100 {
		t.Errorf("wait-data must not consume, position %d", d.Position())
	}

	online.Write(data[len(data)-36:])
	online.SetComplete()
	n, status := d.Decode(out)
	if n != 80 || status != audio.Success {
		t.Fatalf("decode returned %d, %v", n, status)
	}
	if !bytes.Equal(out, want) {
		t.Error("samples after the stream caught up differ from a complete decode")
	}
}

func TestIMAWaitsForNextBlock(t *testing.T) {
	data := riffBytes(
		chunk{"fmt ", fmtBody(waveIMAADPCM, 1, 22050, 4, 36, []byte{65, 0})},
		chunk{"data", imaBlocks(2)},
	)

	online := stream.NewOnlineStream()
	online.Write(data[:len(data)-10])
	d := New(FormatWAV, online)
	mustInit(t, d)

	out := make([]byte, 40)
	if n, status := d.Decode(out); n != 40 || status != audio.Success {
		t.Fatalf("first block decode returned %d, %v", n, status)
	}
	if n, status := d.Decode(make([]byte, 100)); n != 0 || status != audio.WaitData {
		t.Fatalf("expected wait-data for a partial second block, got %d, %v", n, status)
	}
	if d.Position() != 20 {
		t.Errorf("expected position 20 after wait-data, got %d", d.Position())
	}
}

func TestIMASampleCountWithoutFact(t *testing.T) {
	tests := []struct {
		name    string
		payload []byte
		want    int64
	}{
		{"full blocks", imaBlocks(3), 195},
		{"partial last block", imaBlocks(3)[:36*2+20], 65*2 + 33},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d := newIMADecoder(t, tt.payload, 0)
			if n := d.TrackParams().NumSamples; n != tt.want {
				t.Errorf("expected %d frames, got %d", tt.want, n)
			}

			out := make([]byte, 1000)
			n, _ := d.Decode(out)
			if int64(n) != tt.want*2 {
				t.Errorf("expected %d bytes decoded, got %d", tt.want*2, n)
			}
		})
	}
}

// msExt is the fmt extension: samples per block, coefficient count and the
// standard coefficient table
func msExt(spb int) []byte {
	var b bytes.Buffer
	binary.Write(&b, binary.LittleEndian, uint16(spb))
	binary.Write(&b, binary.LittleEndian, uint16(len(msStandardCoefs)))
	for _, c := range msStandardCoefs {
		binary.Write(&b, binary.LittleEndian, int16(c[0]))
		binary.Write(&b, binary.LittleEndian, int16(c[1]))
	}
	return b.Bytes()
}

func msBlockBytes(predictor byte) []byte {
	var b bytes.Buffer
	b.WriteByte(predictor)
	binary.Write(&b, binary.LittleEndian, int16(16))
	binary.Write(&b, binary.LittleEndian, int16(1000))
	binary.Write(&b, binary.LittleEndian, int16(500))
	b.WriteByte(0x10)
	b.Write(make([]byte, 15))
	return b.Bytes()
}

func TestMSADPCMKnownValues(t *testing.T) {
	block := msBlockBytes(0)
	data := riffBytes(
		chunk{"fmt ", fmtBody(waveMSADPCM, 1, 22050, 4, 23, msExt(34))},
		chunk{"data", append(append([]byte{}, block...), block...)},
	)

	d := New(FormatWAV, stream.NewMemoryStream(data))
	mustInit(t, d)
	if d.TrackParams().NumSamples != 68 {
		t.Fatalf("expected 68 frames, got %d", d.TrackParams().NumSamples)
	}

	out := make([]byte, 8)
	d.Decode(out)
	want := []int16{500, 1000, 1016, 1016}
	for i, s := range bytesToInt16(out) {
		if s != want[i] {
			t.Errorf("frame %d: expected %d, got %d", i, want[i], s)
		}
	}

	// The second block starts over from its own header
	if err := d.Seek(34); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	d.Decode(out)
	if got := bytesToInt16(out); got[0] != 500 || got[1] != 1000 {
		t.Errorf("unexpected second block start %v", got)
	}
}

// msBlocks builds mono MS ADPCM blocks of 23 bytes (34 frames each) with
// varied codes so every frame depends on the running state
func msBlocks(count int) []byte {
	var b bytes.Buffer
	for i := 0; i < count; i++ {
		b.WriteByte(byte(i % 7))
		binary.Write(&b, binary.LittleEndian, int16(16+i*8))
		binary.Write(&b, binary.LittleEndian, int16(1000-i*300))
		binary.Write(&b, binary.LittleEndian, int16(500+i*50))
		for j := 0; j < 16; j++ {
			b.WriteByte(byte(j*29 + i*13))
		}
	}
	return b.Bytes()
}

func TestMSADPCMRestartAndSeek(t *testing.T) {
	data := riffBytes(
		chunk{"fmt ", fmtBody(waveMSADPCM, 1, 22050, 4, 23, msExt(34))},
		chunk{"data", msBlocks(3)},
	)

	d := New(FormatWAV, stream.NewMemoryStream(data))
	mustInit(t, d)
	if n := d.TrackParams().NumSamples; n != 102 {
		t.Fatalf("expected 102 frames, got %d", n)
	}

	full := make([]byte, 500)
	n, status := d.Decode(full)
	if status != audio.Success || n != 204 {
		t.Fatalf("decode returned %d, %v", n, status)
	}
	full = full[:n]

	if err := d.Seek(0); err != nil {
		t.Fatalf("seek failed: %v", err)
	}
	again := make([]byte, 204)
	d.Decode(again)
	if !bytes.Equal(full, again) {
		t.Error("decoding after a restart produced different samples")
	}

	for _, frame := range []int64{1, 2, 17, 33, 35, 50, 68, 90, 101} {
		if err := d.Seek(frame); err != nil {
			t.Fatalf("seek to %d failed: %v", frame, err)
		}
		if d.Position() != frame {
			t.Errorf("expected position %d, got %d", frame, d.Position())
		}
		out := make([]byte, 2)
		if _, status := d.Decode(out); status != audio.Success {
			t.Fatalf("decode after seek to %d returned %v", frame, status)
		}
		if !bytes.Equal(out, full[frame*2:frame*2+2]) {
			t.Errorf("frame %d after seek does not match sequential decode", frame)
		}
	}
}

func TestMSADPCMInvalidPredictor(t *testing.T) {
	data := riffBytes(
		chunk{"fmt ", fmtBody(waveMSADPCM, 1, 22050, 4, 23, msExt(34))},
		chunk{"data", msBlockBytes(7)},
	)

	d := New(FormatWAV, stream.NewMemoryStream(data))
	mustInit(t, d)

	if n, status := d.Decode(make([]byte, 16)); n != 0 || status != audio.Failed {
		t.Fatalf("expected failure, got %d, %v", n, status)
	}
	if !errors.Is(d.Err(), ErrInvalidPredictor) {
		t.Errorf("expected ErrInvalidPredictor, got %v", d.Err())
	}
}

func TestMSADPCMChannelLimit(t *testing.T) {
	data := riffBytes(
		chunk{"fmt ", fmtBody(waveMSADPCM, 3, 22050, 4, 60, msExt(14))},
		chunk{"data", make([]byte, 60)},
	)

	d := New(FormatWAV, stream.NewMemoryStream(data))
	if _, err := d.Init(); !errors.Is(err, ErrTooManyChannels) {
		t.Errorf("expected ErrTooManyChannels, got %v", err)
	}
}
