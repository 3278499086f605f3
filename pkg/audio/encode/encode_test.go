// ABOUTME: Tests for the WAV and IMA ADPCM writers
// ABOUTME: Reads output back with go-audio/wav and the decode package
package encode

import (
	"bytes"
	"math"
	"testing"

	"github.com/go-audio/wav"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/decode"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

func sine(frames, channels int, freq, rate float64) []int16 {
	out := make([]int16, frames*channels)
	for i := 0; i < frames; i++ {
		v := int16(12000 * math.Sin(2*math.Pi*freq*float64(i)/rate))
		for c := 0; c < channels; c++ {
			out[i*channels+c] = v
		}
	}
	return out
}

func TestPCM16(t *testing.T) {
	got := PCM16([]int16{256, -1})
	want := []byte{0x00, 0x01, 0xFF, 0xFF}
	if !bytes.Equal(got, want) {
		t.Errorf("expected %v, got %v", want, got)
	}
}

func TestWriteWAVReadsBack(t *testing.T) {
	samples := sine(500, 2, 440, 44100)
	var buf bytes.Buffer
	params := audio.TrackParams{Channels: 2, SampleRate: 44100}
	if err := WriteWAV(&buf, params, samples); err != nil {
		t.Fatalf("write failed: %v", err)
	}

	dec := wav.NewDecoder(bytes.NewReader(buf.Bytes()))
	if !dec.IsValidFile() {
		t.Fatal("go-audio rejected the file")
	}
	pcm, err := dec.FullPCMBuffer()
	if err != nil {
		t.Fatalf("go-audio decode failed: %v", err)
	}
	if len(pcm.Data) != len(samples) {
		t.Fatalf("expected %d samples, got %d", len(samples), len(pcm.Data))
	}
	for i, s := range samples {
		if pcm.Data[i] != int(s) {
			t.Fatalf("sample %d: expected %d, got %d", i, s, pcm.Data[i])
		}
	}
}

func TestWriteWAVRejectsBadParams(t *testing.T) {
	var buf bytes.Buffer
	if err := WriteWAV(&buf, audio.TrackParams{Channels: 0, SampleRate: 44100}, nil); err == nil {
		t.Error("expected error for zero channels")
	}
	if err := WriteWAV(&buf, audio.TrackParams{Channels: 2, SampleRate: 44100}, []int16{1, 2, 3}); err == nil {
		t.Error("expected error for a partial frame")
	}
}

func TestIMARoundTrip(t *testing.T) {
	tests := []struct {
		name       string
		channels   int
		blockAlign int
		frames     int
	}{
		{"mono", 1, 256, 2000},
		{"stereo", 2, 512, 1500},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			samples := sine(tt.frames, tt.channels, 220, 22050)
			var buf bytes.Buffer
			if err := EncodeIMAADPCM(&buf, samples, tt.channels, 22050, tt.blockAlign); err != nil {
				t.Fatalf("encode failed: %v", err)
			}

			d := decode.New(decode.FormatWAV, stream.NewMemoryStream(buf.Bytes()))
			if status, err := d.Init(); status != audio.Success {
				t.Fatalf("init returned %v: %v", status, err)
			}
			if d.Kind() != decode.KindIMAADPCM {
				t.Fatalf("expected ima kind, got %v", d.Kind())
			}
			if n := d.TrackParams().NumSamples; n != int64(tt.frames) {
				t.Fatalf("expected %d frames from the fact chunk, got %d", tt.frames, n)
			}

			out := make([]byte, len(samples)*2+64)
			n, status := d.Decode(out)
			if status != audio.Success || n != len(samples)*2 {
				t.Fatalf("decode returned %d, %v", n, status)
			}

			var errSum float64
			for i, s := range samples {
				got := int16(uint16(out[i*2]) | uint16(out[i*2+1])<<8)
				errSum += math.Abs(float64(got) - float64(s))
			}
			if mean := errSum / float64(len(samples)); mean > 300 {
				t.Errorf("mean absolute error %.1f is too high", mean)
			}
		})
	}
}

func TestIMARejectsBadBlockAlign(t *testing.T) {
	var buf bytes.Buffer
	if err := EncodeIMAADPCM(&buf, make([]int16, 10), 2, 22050, 10); err == nil {
		t.Error("expected error for block align that does not fit whole groups")
	}
}
