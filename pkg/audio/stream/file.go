// ABOUTME: File-backed stream with a buffered read window per cursor
// ABOUTME: Each cursor owns its own file handle
package stream

import (
	"fmt"
	"io"
	"os"
)

const fileWindowSize = 32 * 1024

// FileStream opens a new handle for every cursor so cursors never share a file offset
type FileStream struct {
	path string
	size int64
}

// OpenFile stats path and returns a stream over it
func OpenFile(path string) (*FileStream, error) {
	info, err := os.Stat(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open audio file: %w", err)
	}
	if info.IsDir() {
		return nil, fmt.Errorf("failed to open audio file: %s is a directory", path)
	}
	return &FileStream{path: path, size: info.Size()}, nil
}

// Path returns the file name the stream reads
func (s *FileStream) Path() string {
	return s.path
}

// NewCursor opens the file and positions a cursor at 0
func (s *FileStream) NewCursor() (Cursor, error) {
	f, err := os.Open(s.path)
	if err != nil {
		return nil, fmt.Errorf("failed to open cursor: %w", err)
	}
	return &fileCursor{
		file:   f,
		size:   s.size,
		window: make([]byte, fileWindowSize),
	}, nil
}

// fileCursor keeps a window of the file in memory. winOff is the file offset
// of window[0] and winLen the number of valid bytes in it.
type fileCursor struct {
	file   *os.File
	size   int64
	pos    int64
	window []byte
	winOff int64
	winLen int
}

func (c *fileCursor) Read(p []byte) (int, error) {
	if c.file == nil {
		return 0, ErrClosed
	}
	if c.pos >= c.size {
		return 0, io.EOF
	}

	total := 0
	for len(p) > 0 && c.pos < c.size {
		if c.pos < c.winOff || c.pos >= c.winOff+int64(c.winLen) {
			if err := c.fill(); err != nil {
				if total > 0 {
					return total, nil
				}
				return 0, err
			}
		}

		start := int(c.pos - c.winOff)
		n := copy(p, c.window[start:c.winLen])
		p = p[n:]
		c.pos += int64(n)
		total += n
	}
	return total, nil
}

// fill loads the window starting at the current position
func (c *fileCursor) fill() error {
	n, err := c.file.ReadAt(c.window, c.pos)
	if n == 0 {
		if err == nil {
			err = io.EOF
		}
		return err
	}
	c.winOff = c.pos
	c.winLen = n
	return nil
}

func (c *fileCursor) Seek(offset int64, whence int) (int64, error) {
	if c.file == nil {
		return c.pos, ErrClosed
	}
	next, err := resolveSeek(c.pos, c.size, offset, whence)
	if err != nil {
		return c.pos, err
	}
	c.pos = next
	return next, nil
}

func (c *fileCursor) Tell() int64 { return c.pos }

func (c *fileCursor) Size() int64 { return c.size }

func (c *fileCursor) EndOfStream() bool { return c.file == nil || c.pos >= c.size }

func (c *fileCursor) ReadyReadData(n int) bool { return true }

func (c *fileCursor) Close() error {
	if c.file == nil {
		return nil
	}
	err := c.file.Close()
	c.file = nil
	return err
}
