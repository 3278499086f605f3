// ABOUTME: Tests for the library codec adapter and the MP3 frame probe
// ABOUTME: Uses a fake PCM source so no encoded fixtures are needed
package decode

import (
	"errors"
	"io"
	"testing"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

// countingSource produces mono samples 0, 1, 2, ... up to total
type countingSource struct {
	next     int
	total    int
	seekable bool
}

func (s *countingSource) read(dst []int16) (int, error) {
	// Deliver in small bursts like a frame based codec
	n := min(len(dst), 7, s.total-s.next)
	for i := 0; i < n; i++ {
		dst[i] = int16(s.next + i)
	}
	s.next += n
	if s.next >= s.total {
		return n, io.EOF
	}
	return n, nil
}

func (s *countingSource) seek(frame int64) error {
	if !s.seekable {
		return errSeekUnsupported
	}
	s.next = int(frame)
	return nil
}

func (s *countingSource) close() error { return nil }

func newCountingCodec(t *testing.T, st stream.Stream, total int, seekable bool) *compressedCodec {
	t.Helper()
	cursor, err := st.NewCursor()
	if err != nil {
		t.Fatalf("failed to create cursor: %v", err)
	}

	c := &compressedCodec{
		cursor: cursor,
		codec: codec{
			open: func(r io.Reader, _ bool, info *sourceInfo) (pcmSource, error) {
				info.channels = 1
				info.sampleRate = 8000
				return &countingSource{total: total, seekable: seekable}, nil
			},
		},
		scratch: make([]int16, 64),
	}
	if err := c.openAt(true); err != nil {
		t.Fatalf("open failed: %v", err)
	}
	return c
}

func TestCompressedLoopAndSeek(t *testing.T) {
	for _, seekable := range []bool{true, false} {
		c := newCountingCodec(t, stream.NewMemoryStream(make([]byte, 16)), 20, seekable)

		out := make([]byte, 60)
		n, status, err := c.decode(out, true)
		if err != nil || status != audio.Success || n != 60 {
			t.Fatalf("seekable=%v: decode returned %d, %v, %v", seekable, n, status, err)
		}
		got := bytesToInt16(out)
		if got[19] != 19 || got[20] != 0 || got[29] != 9 {
			t.Errorf("seekable=%v: loop did not wrap: %v", seekable, got)
		}
		if c.frame != 10 {
			t.Errorf("seekable=%v: expected frame 10 after wrapping, got %d", seekable, c.frame)
		}

		if err := c.seek(15); err != nil {
			t.Fatalf("seekable=%v: seek failed: %v", seekable, err)
		}
		out = make([]byte, 4)
		c.decode(out, false)
		if got := bytesToInt16(out); got[0] != 15 || got[1] != 16 {
			t.Errorf("seekable=%v: unexpected samples after seek %v", seekable, got)
		}
	}
}

func TestCompressedEndOfStream(t *testing.T) {
	c := newCountingCodec(t, stream.NewMemoryStream(make([]byte, 16)), 5, true)

	out := make([]byte, 20)
	if n, _, _ := c.decode(out, false); n != 10 {
		t.Fatalf("expected 10 bytes, got %d", n)
	}
	if n, status, _ := c.decode(out, false); n != 0 || status != audio.Success {
		t.Errorf("expected nothing left, got %d, %v", n, status)
	}
}

func TestCompressedWaitsForLookahead(t *testing.T) {
	online := stream.NewOnlineStream()
	online.Write(make([]byte, 100))
	c := newCountingCodec(t, online, 50, false)

	if _, status, _ := c.decode(make([]byte, 10), false); status != audio.WaitData {
		t.Fatalf("expected wait-data below the lookahead, got %v", status)
	}

	online.Write(make([]byte, decodeLookahead))
	if _, status, _ := c.decode(make([]byte, 10), false); status != audio.Success {
		t.Errorf("expected success once buffered, got %v", status)
	}

	if err := c.seek(10); !errors.Is(err, ErrNotReady) {
		t.Errorf("expected ErrNotReady for a discard seek on an incomplete stream, got %v", err)
	}
}

func TestCompressedInitWaitsForData(t *testing.T) {
	online := stream.NewOnlineStream()
	online.Write([]byte("ID3"))

	d := New(FormatMP3, online)
	if status, err := d.Init(); status != audio.WaitData {
		t.Fatalf("expected wait-data, got %v (%v)", status, err)
	}

	online = stream.NewOnlineStream()
	online.Write(make([]byte, 100))
	d = New(FormatAIFF, online)
	if status, _ := d.Init(); status != audio.WaitData {
		t.Errorf("aiff must wait for the complete stream, got %v", status)
	}
}

func TestMPEGHeader(t *testing.T) {
	tests := []struct {
		name   string
		header []byte
		rate   int
		ok     bool
	}{
		{"mpeg1 layer3 44.1k", []byte{0xFF, 0xFB, 0x90, 0x64}, 44100, true},
		{"mpeg1 layer3 48k", []byte{0xFF, 0xFB, 0x94, 0x64}, 48000, true},
		{"mpeg2 layer3 22.05k", []byte{0xFF, 0xF3, 0x90, 0x64}, 22050, true},
		{"no sync", []byte{0xFF, 0x1B, 0x90, 0x64}, 0, false},
		{"reserved version", []byte{0xFF, 0xEB, 0x90, 0x64}, 0, false},
		{"bad bitrate", []byte{0xFF, 0xFB, 0xF0, 0x64}, 0, false},
		{"reserved rate", []byte{0xFF, 0xFB, 0x9C, 0x64}, 0, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rate, ok := mpegHeader(tt.header)
			if ok != tt.ok || rate != tt.rate {
				t.Errorf("expected (%d, %v), got (%d, %v)", tt.rate, tt.ok, rate, ok)
			}
		})
	}
}

func TestProbeMP3SkipsID3(t *testing.T) {
	data := []byte{'I', 'D', '3', 4, 0, 0, 0, 0, 0, 10}
	data = append(data, make([]byte, 10)...)
	data = append(data, 0x00, 0x00)
	data = append(data, 0xFF, 0xFB, 0x90, 0x64)
	data = append(data, make([]byte, 100)...)

	c, _ := stream.NewMemoryStream(data).NewCursor()
	var info sourceInfo
	start, err := probeMP3(c, &info)
	if err != nil {
		t.Fatalf("probe failed: %v", err)
	}
	if start != 22 {
		t.Errorf("expected first frame at 22, got %d", start)
	}
	if info.sampleRate != 44100 || info.channels != 2 {
		t.Errorf("unexpected info %+v", info)
	}

	c, _ = stream.NewMemoryStream(make([]byte, 64)).NewCursor()
	if _, err := probeMP3(c, &info); !errors.Is(err, ErrInvalidFormat) {
		t.Errorf("expected ErrInvalidFormat without a frame, got %v", err)
	}
}
