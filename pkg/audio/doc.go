// ABOUTME: Audio fundamentals package providing core types and utilities
// ABOUTME: Defines Status, TrackParams, Listener and sample conversion helpers
// Package audio provides the fundamental types shared by the skyaudio packages.
//
// This package defines:
//   - Status: the outcome of a decode step (Success, WaitData, EndStream, Failed)
//   - TrackParams: channel count, sample rate and length of decoded PCM
//   - Listener and Vector3: the pose used for 3D panning and distance attenuation
//
// Decoded audio is always interleaved signed 16-bit little-endian PCM. Mixing
// accumulates into int32 and SaturateInt16 folds the result back.
//
// Example:
//
//	params := audio.TrackParams{Channels: 2, SampleRate: 44100, BitsPerSample: 16}
//	slot := params.BytesForDuration(0.0625) // bytes in one 62.5ms buffer
//
//	gain := audio.ClampGain(userGain)
package audio
