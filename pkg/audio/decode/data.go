// ABOUTME: Reader over the PCM payload of one or more data chunks
// ABOUTME: Maps logical sample-data offsets onto stream offsets
package decode

import (
	"fmt"
	"io"

	"github.com/skylicht-lab/skyaudio/pkg/audio/stream"
)

// DataNode is one data chunk. Offset is where its payload starts in the stream.
type DataNode struct {
	Offset int64
	Size   int64
}

// dataReader presents the data chunks of a file as one contiguous region.
// Seeks are applied lazily on the next read, so seeking into bytes an online
// stream has not delivered yet is not an error.
type dataReader struct {
	cursor stream.Cursor
	nodes  []DataNode
	total  int64
	pos    int64

	// openEnded means the last node grows with the stream
	openEnded bool

	node  int
	dirty bool
}

func newDataReader(c stream.Cursor, nodes []DataNode, openEnded bool) *dataReader {
	r := &dataReader{cursor: c, nodes: nodes, openEnded: openEnded, dirty: true}
	for _, n := range nodes {
		r.total += n.Size
	}
	return r
}

// refresh extends an open ended region to the bytes received so far
func (r *dataReader) refresh() {
	if !r.openEnded || len(r.nodes) == 0 {
		return
	}
	last := &r.nodes[len(r.nodes)-1]
	if size := r.cursor.Size() - last.Offset; size > last.Size {
		r.total += size - last.Size
		last.Size = size
	}
}

func (r *dataReader) complete() bool {
	return isComplete(r.cursor)
}

func (r *dataReader) remaining() int64 {
	return r.total - r.pos
}

// ready reports whether the next n bytes of sample data have arrived
func (r *dataReader) ready(n int64) bool {
	if r.complete() {
		return true
	}
	if r.openEnded {
		return r.absolute(r.pos)+n <= r.cursor.Size()
	}
	end := r.pos + n
	if end > r.total {
		end = r.total
	}
	return r.absolute(end) <= r.cursor.Size()
}

// absolute maps a logical offset to a stream offset
func (r *dataReader) absolute(off int64) int64 {
	base := int64(0)
	for _, n := range r.nodes {
		if off <= base+n.Size {
			return n.Offset + off - base
		}
		base += n.Size
	}
	if len(r.nodes) == 0 {
		return 0
	}
	last := r.nodes[len(r.nodes)-1]
	return last.Offset + last.Size
}

// locate returns the node holding logical offset off and the offset inside it
func (r *dataReader) locate(off int64) (int, int64) {
	base := int64(0)
	for i, n := range r.nodes {
		if off < base+n.Size {
			return i, off - base
		}
		base += n.Size
	}
	return len(r.nodes), 0
}

func (r *dataReader) seek(off int64) error {
	if off < 0 || off > r.total {
		return fmt.Errorf("%w: data offset %d of %d", ErrSeekOutOfRange, off, r.total)
	}
	r.pos = off
	r.dirty = true
	return nil
}

// truncate ends the region at off, used when a file is shorter than its headers claim
func (r *dataReader) truncate(off int64) {
	if off < r.total {
		r.total = off
		r.openEnded = false
	}
	if r.pos > r.total {
		r.pos = r.total
	}
}

func (r *dataReader) read(p []byte) (int, error) {
	total := 0
	for len(p) > 0 && r.pos < r.total {
		node, within := r.locate(r.pos)
		if node >= len(r.nodes) {
			break
		}
		if r.dirty || node != r.node {
			if _, err := r.cursor.Seek(r.nodes[node].Offset+within, io.SeekStart); err != nil {
				return total, err
			}
			r.node = node
			r.dirty = false
		}

		chunk := p
		if avail := r.nodes[node].Size - within; int64(len(chunk)) > avail {
			chunk = chunk[:avail]
		}
		if left := r.total - r.pos; int64(len(chunk)) > left {
			chunk = chunk[:left]
		}

		n, err := io.ReadFull(r.cursor, chunk)
		r.pos += int64(n)
		total += n
		p = p[n:]
		if err != nil {
			return total, err
		}
	}

	if total == 0 && len(p) > 0 {
		return 0, io.EOF
	}
	return total, nil
}
