// ABOUTME: Progressively filled stream for downloads and network pushes
// ABOUTME: Writers append bytes while cursors read what has arrived so far
package stream

import (
	"io"
	"sync"
)

// OnlineStream grows as data is written into it. Cursors report through
// ReadyReadData whether the bytes they need have arrived; once SetComplete is
// called every request is considered ready.
//
// Offsets are absolute: bytes released by Trim keep their place, so base is
// the offset of data[0].
type OnlineStream struct {
	mu       sync.Mutex
	data     []byte
	base     int64
	complete bool
	stopped  bool
}

// NewOnlineStream creates an empty stream
func NewOnlineStream() *OnlineStream {
	return &OnlineStream{}
}

// Write appends p. It never blocks on readers.
func (s *OnlineStream) Write(p []byte) (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return 0, io.ErrClosedPipe
	}
	s.data = append(s.data, p...)
	return len(p), nil
}

// SetComplete marks that no more data will be written
func (s *OnlineStream) SetComplete() {
	s.mu.Lock()
	s.complete = true
	s.mu.Unlock()
}

// Complete reports whether all data has arrived
func (s *OnlineStream) Complete() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.complete
}

// Stop drops buffered data and rejects further writes
func (s *OnlineStream) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()

	for i := range s.data {
		s.data[i] = 0
	}
	s.data = s.data[:0]
	s.stopped = true
}

// Size returns the number of bytes received so far, released ones included
func (s *OnlineStream) Size() int64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.end()
}

// Buffered returns the number of bytes still held in memory
func (s *OnlineStream) Buffered() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.data)
}

// end is the absolute offset after the last received byte (must hold s.mu)
func (s *OnlineStream) end() int64 {
	return s.base + int64(len(s.data))
}

// NewCursor returns a cursor at position 0
func (s *OnlineStream) NewCursor() (Cursor, error) {
	return &OnlineCursor{stream: s}, nil
}

// trim releases the bytes before absolute offset off (must hold s.mu)
func (s *OnlineStream) trim(off int64) {
	n := min(off, s.end()) - s.base
	if n <= 0 {
		return
	}
	s.data = append([]byte(nil), s.data[n:]...)
	s.base += n
}

// OnlineCursor reads from an OnlineStream
type OnlineCursor struct {
	stream *OnlineStream
	pos    int64
}

func (c *OnlineCursor) Read(p []byte) (int, error) {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()

	if c.pos < c.stream.base {
		return 0, ErrTrimmed
	}
	if c.pos >= c.stream.end() {
		return 0, io.EOF
	}
	n := copy(p, c.stream.data[c.pos-c.stream.base:])
	c.pos += int64(n)
	return n, nil
}

func (c *OnlineCursor) Seek(offset int64, whence int) (int64, error) {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()

	next, err := resolveSeek(c.pos, c.stream.end(), offset, whence)
	if err != nil {
		return c.pos, err
	}
	c.pos = next
	return next, nil
}

func (c *OnlineCursor) Tell() int64 {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	return c.pos
}

func (c *OnlineCursor) Size() int64 {
	return c.stream.Size()
}

// EndOfStream is only true once the stream is complete and fully read
func (c *OnlineCursor) EndOfStream() bool {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()
	return c.stream.complete && c.pos >= c.stream.end()
}

func (c *OnlineCursor) ReadyReadData(n int) bool {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()

	if c.stream.complete {
		return true
	}
	return c.pos+int64(n) <= c.stream.end()
}

// Trim releases the bytes before the cursor. Offsets do not move, but any
// later read below the cursor fails with ErrTrimmed, so only use it with a
// single reader that never seeks back.
func (c *OnlineCursor) Trim() {
	c.stream.mu.Lock()
	defer c.stream.mu.Unlock()

	c.stream.trim(c.pos)
}

func (c *OnlineCursor) Close() error { return nil }
