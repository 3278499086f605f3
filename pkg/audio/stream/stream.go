// ABOUTME: Byte stream and cursor contracts consumed by decoders
// ABOUTME: Cursors are seekable readers that can report partially available data
package stream

import (
	"errors"
	"fmt"
	"io"
)

var (
	// ErrClosed is returned by operations on a closed cursor
	ErrClosed = errors.New("stream: cursor closed")

	// ErrInvalidSeek is returned when a seek lands outside the stream
	ErrInvalidSeek = errors.New("stream: seek out of range")

	// ErrTrimmed is returned when reading bytes an online stream has released
	ErrTrimmed = errors.New("stream: data already released")

	// ErrNotHandled lets a Factory decline a name so the next one is tried
	ErrNotHandled = errors.New("stream: name not handled by factory")
)

// Cursor is an independent read position over a Stream.
//
// ReadyReadData reports whether n bytes past the current position can be
// read without running into data that has not arrived yet. Streams backed by
// complete data always report true.
type Cursor interface {
	io.ReadSeeker
	io.Closer

	Tell() int64
	Size() int64
	EndOfStream() bool
	ReadyReadData(n int) bool
}

// Stream is a shareable byte source. Each decoder takes its own cursor.
type Stream interface {
	NewCursor() (Cursor, error)
}

// resolveSeek applies io.Seeker whence semantics and validates the result
func resolveSeek(pos, size, offset int64, whence int) (int64, error) {
	var next int64
	switch whence {
	case io.SeekStart:
		next = offset
	case io.SeekCurrent:
		next = pos + offset
	case io.SeekEnd:
		next = size + offset
	default:
		return pos, fmt.Errorf("invalid whence %d: %w", whence, ErrInvalidSeek)
	}

	if next < 0 || next > size {
		return pos, fmt.Errorf("position %d (size %d): %w", next, size, ErrInvalidSeek)
	}
	return next, nil
}

// ReadAll drains a cursor from its current position
func ReadAll(c Cursor) ([]byte, error) {
	remaining := c.Size() - c.Tell()
	if remaining < 0 {
		remaining = 0
	}
	buf := make([]byte, remaining)
	n, err := io.ReadFull(c, buf)
	if err != nil && err != io.ErrUnexpectedEOF {
		return nil, err
	}
	return buf[:n], nil
}
