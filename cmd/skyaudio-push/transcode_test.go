// ABOUTME: Tests for push file preparation
// ABOUTME: Checks pass-through, resampling and IMA ADPCM re-encoding
package main

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/decode"
	"github.com/skylicht-lab/skyaudio/pkg/audio/encode"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

func writeTestWAV(t *testing.T, frames int) (string, []byte) {
	t.Helper()
	samples := make([]int16, frames*2)
	for i := range samples {
		samples[i] = int16(i % 2000)
	}
	var buf bytes.Buffer
	params := audio.TrackParams{Channels: 2, SampleRate: 44100, BitsPerSample: 16}
	if err := encode.WriteWAV(&buf, params, samples); err != nil {
		t.Fatalf("failed to encode wav: %v", err)
	}
	path := filepath.Join(t.TempDir(), "in.wav")
	if err := os.WriteFile(path, buf.Bytes(), 0644); err != nil {
		t.Fatalf("failed to write wav: %v", err)
	}
	return path, buf.Bytes()
}

func TestLoadPassThrough(t *testing.T) {
	path, want := writeTestWAV(t, 1000)

	data, format, err := load(path, 0, "pcm")
	if err != nil {
		t.Fatalf("load failed: %v", err)
	}
	if format != "wav" {
		t.Errorf("expected wav format, got %s", format)
	}
	if !bytes.Equal(data, want) {
		t.Error("expected file to be sent untouched")
	}
}

func TestLoadTranscodes(t *testing.T) {
	tests := []struct {
		name     string
		encoding string
		kind     decode.Kind
	}{
		{"pcm", "pcm", decode.KindPCM},
		{"ima", "ima", decode.KindIMAADPCM},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path, _ := writeTestWAV(t, 4410)

			data, format, err := load(path, 22050, tt.encoding)
			if err != nil {
				t.Fatalf("load failed: %v", err)
			}
			if format != "wav" {
				t.Errorf("expected wav format, got %s", format)
			}

			d := decode.New(decode.FormatWAV, stream.NewMemoryStream(data))
			if _, err := d.Init(); err != nil {
				t.Fatalf("failed to decode result: %v", err)
			}
			defer d.Close()

			if d.Kind() != tt.kind {
				t.Errorf("expected %v, got %v", tt.kind, d.Kind())
			}
			params := d.TrackParams()
			if params.SampleRate != 22050 || params.Channels != 2 {
				t.Errorf("unexpected params %+v", params)
			}
			if params.NumSamples < 2200 || params.NumSamples > 2210 {
				t.Errorf("expected about 2205 frames, got %d", params.NumSamples)
			}
		})
	}
}

func TestLoadRejectsUnknownEncoding(t *testing.T) {
	path, _ := writeTestWAV(t, 10)
	if _, _, err := load(path, 0, "mp3"); err == nil {
		t.Error("expected unknown encoding to fail")
	}
}
