// ABOUTME: Sentinel errors returned by decoders
// ABOUTME: Callers match them with errors.Is
package decode

import "errors"

var (
	ErrNotWAV                 = errors.New("not a RIFF/WAVE stream")
	ErrNoFormatChunk          = errors.New("wav stream has no fmt chunk")
	ErrNoDataChunk            = errors.New("wav stream has no data chunk")
	ErrUnsupportedCompression = errors.New("unsupported wav compression code")
	ErrUnsupportedBitDepth    = errors.New("unsupported bit depth")
	ErrTooManyChannels        = errors.New("too many channels")
	ErrInvalidFormat          = errors.New("invalid audio format")
	ErrInvalidPredictor       = errors.New("invalid ms adpcm predictor")
	ErrNotInitialized         = errors.New("decoder not initialized")
	ErrSeekOutOfRange         = errors.New("seek beyond end of track")
	ErrNotReady               = errors.New("stream data not available yet")
	ErrUnsupportedFormat      = errors.New("unsupported audio format")
	errSeekUnsupported        = errors.New("codec can not seek")
)
