// ABOUTME: In-memory stream over an immutable byte slice
// ABOUTME: Used for cached files and test fixtures
package stream

import "io"

// MemoryStream serves cursors over a byte slice that is never modified
type MemoryStream struct {
	data []byte
}

// NewMemoryStream wraps data. The caller must not modify it afterwards.
func NewMemoryStream(data []byte) *MemoryStream {
	return &MemoryStream{data: data}
}

// NewCursor returns a cursor at position 0
func (s *MemoryStream) NewCursor() (Cursor, error) {
	return &memoryCursor{data: s.data}, nil
}

// Size returns the number of bytes held
func (s *MemoryStream) Size() int64 {
	return int64(len(s.data))
}

type memoryCursor struct {
	data   []byte
	pos    int64
	closed bool
}

func (c *memoryCursor) Read(p []byte) (int, error) {
	if c.closed {
		return 0, ErrClosed
	}
	if c.pos >= int64(len(c.data)) {
		return 0, io.EOF
	}
	n := copy(p, c.data[c.pos:])
	c.pos += int64(n)
	return n, nil
}

func (c *memoryCursor) Seek(offset int64, whence int) (int64, error) {
	next, err := resolveSeek(c.pos, int64(len(c.data)), offset, whence)
	if err != nil {
		return c.pos, err
	}
	c.pos = next
	return next, nil
}

func (c *memoryCursor) Tell() int64 { return c.pos }

func (c *memoryCursor) Size() int64 { return int64(len(c.data)) }

func (c *memoryCursor) EndOfStream() bool { return c.pos >= int64(len(c.data)) }

func (c *memoryCursor) ReadyReadData(n int) bool { return true }

func (c *memoryCursor) Close() error {
	c.closed = true
	return nil
}
