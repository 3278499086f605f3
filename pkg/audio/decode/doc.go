// ABOUTME: Decoder package turning audio streams into 16-bit PCM
// ABOUTME: WAV (PCM, float, IMA and MS ADPCM), MP3, Vorbis, FLAC, Opus, AIFF
// Package decode turns an audio stream into interleaved signed 16-bit PCM.
//
// A Decoder is created for a stream and a Format, then Init is polled until
// it stops returning audio.WaitData. Online streams that are still downloading
// make Init and Decode report audio.WaitData instead of consuming partial data,
// so the caller can simply retry on its next update.
//
// WAV files are parsed by this package (PCM 8/16/24/32-bit, float, IMA ADPCM
// and Microsoft ADPCM, including files with several data chunks). Other
// formats are decoded by third party libraries:
//
//	MP3     github.com/hajimehoshi/go-mp3
//	Vorbis  github.com/jfreymuth/oggvorbis
//	FLAC    github.com/mewkiz/flac
//	Opus    gopkg.in/hraban/opus.v2
//	AIFF    github.com/go-audio/aiff
//
// Example:
//
//	dec := decode.New(decode.FormatFromName(path), s)
//	if status, err := dec.Init(); status != audio.Success { ... }
//	n, status := dec.Decode(buf)
package decode
