// ABOUTME: Audio resampling package using linear interpolation
// ABOUTME: Converts audio between sample rates and stretches buffers for pitch
// Package resample provides sample rate conversion for 16-bit PCM.
//
// Resampler keeps state between calls for continuous streams. Stretch is
// stateless and maps one buffer onto another of a different length, which
// is how emitters change pitch.
//
// Example:
//
//	r := resample.New(44100, 48000, 2)
//	n := r.Resample(input, output)
package resample
