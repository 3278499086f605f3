// ABOUTME: Container formats understood by the decoder
// ABOUTME: Maps file extensions onto formats
package decode

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format selects how a stream is parsed
type Format int

const (
	FormatWAV Format = iota
	FormatMP3
	FormatVorbis
	FormatFLAC
	FormatOpus
	FormatAIFF
	// FormatRaw is headerless 16-bit PCM; the caller supplies the track parameters
	FormatRaw
)

var formatNames = map[Format]string{
	FormatWAV:    "wav",
	FormatMP3:    "mp3",
	FormatVorbis: "vorbis",
	FormatFLAC:   "flac",
	FormatOpus:   "opus",
	FormatAIFF:   "aiff",
	FormatRaw:    "raw",
}

func (f Format) String() string {
	if name, ok := formatNames[f]; ok {
		return name
	}
	return "unknown"
}

// FormatFromName picks a format from the extension of name. Anything not
// recognised is treated as WAV, which then validates its own header.
func FormatFromName(name string) Format {
	ext := strings.ToLower(strings.TrimPrefix(filepath.Ext(name), "."))
	switch ext {
	case "mp3":
		return FormatMP3
	case "ogg", "oga":
		return FormatVorbis
	case "flac":
		return FormatFLAC
	case "opus":
		return FormatOpus
	case "aif", "aiff", "aifc":
		return FormatAIFF
	case "pcm", "raw":
		return FormatRaw
	default:
		return FormatWAV
	}
}

// ParseFormat is the inverse of Format.String
func ParseFormat(s string) (Format, error) {
	for f, name := range formatNames {
		if name == strings.ToLower(s) {
			return f, nil
		}
	}
	return FormatWAV, fmt.Errorf("%w: %q", ErrUnsupportedFormat, s)
}
