// ABOUTME: Prepares a file for pushing
// ABOUTME: Optionally decodes, resamples and re-encodes it as PCM or IMA ADPCM WAV
package main

import (
	"bytes"
	"fmt"
	"os"

	"github.com/skylicht-lab/skyaudio/pkg/audio"
	"github.com/skylicht-lab/skyaudio/pkg/audio/decode"
	"github.com/skylicht-lab/skyaudio/pkg/audio/encode"
	"github.com/skylicht-lab/skyaudio/pkg/audio/resample"
	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

// imaBlockAlign is per channel; 512 leaves whole 4-byte groups after the header
const imaBlockAlign = 512

// load returns the bytes to push and their format name. With rate zero and
// pcm encoding the file is sent untouched.
func load(path string, rate int, encoding string) ([]byte, string, error) {
	if encoding != "pcm" && encoding != "ima" {
		return nil, "", fmt.Errorf("unknown encoding %q", encoding)
	}
	if rate == 0 && encoding == "pcm" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, "", err
		}
		return data, decode.FormatFromName(path).String(), nil
	}

	fs, err := stream.OpenFile(path)
	if err != nil {
		return nil, "", err
	}
	samples, params, err := decodeAll(decode.New(decode.FormatFromName(path), fs))
	if err != nil {
		return nil, "", err
	}

	if rate > 0 && rate != params.SampleRate {
		samples = resampleAll(samples, params.Channels, params.SampleRate, rate)
		params.SampleRate = rate
	}

	var buf bytes.Buffer
	if encoding == "ima" {
		err = encode.EncodeIMAADPCM(&buf, samples, params.Channels, params.SampleRate, imaBlockAlign*params.Channels)
	} else {
		err = encode.WriteWAV(&buf, params, samples)
	}
	if err != nil {
		return nil, "", err
	}
	return buf.Bytes(), decode.FormatWAV.String(), nil
}

// decodeAll decodes a complete file into interleaved samples
func decodeAll(d *decode.Decoder) ([]int16, audio.TrackParams, error) {
	defer d.Close()

	if _, err := d.Init(); err != nil {
		return nil, audio.TrackParams{}, err
	}
	params := d.TrackParams()

	var samples []int16
	buf := make([]byte, 4096*params.FrameSize())
	for {
		n, status := d.Decode(buf)
		switch status {
		case audio.Success:
			for i := 0; i+1 < n; i += 2 {
				samples = append(samples, int16(uint16(buf[i])|uint16(buf[i+1])<<8))
			}
		case audio.EndStream:
			return samples, params, nil
		default:
			return nil, params, fmt.Errorf("decode stopped: %s: %v", status, d.Err())
		}
	}
}

func resampleAll(samples []int16, channels, from, to int) []int16 {
	r := resample.New(from, to, channels)
	out := make([]int16, r.OutputSamplesNeeded(len(samples))+2*channels)
	n := r.Resample(samples, out)
	return out[:n]
}
