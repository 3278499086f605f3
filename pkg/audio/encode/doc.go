// ABOUTME: Audio encoder package writing RIFF/WAVE files
// ABOUTME: PCM16 and IMA ADPCM writers for fixtures, tools and pushes
// Package encode writes PCM into RIFF/WAVE files.
//
// Supports: PCM 16-bit, IMA ADPCM (4:1)
//
// Sizes are computed up front, so the writers work on any io.Writer
// including network connections.
//
// Example:
//
//	err := encode.WriteWAV(f, audio.TrackParams{Channels: 2, SampleRate: 44100}, samples)
package encode
