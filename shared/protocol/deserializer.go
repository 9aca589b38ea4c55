package protocol

import (
	"encoding/binary"
	"fmt"
)

// ChunkSource hands out the raw reads of one connection without blocking.
// TryRecv returns (nil, true) when nothing has arrived yet and (nil, false)
// once the connection is closed and every chunk has been handed out.
type ChunkSource interface {
	TryRecv() (chunk []byte, open bool)
}

// Deserializer buffers partial reads and yields complete frames.
type Deserializer struct {
	queue []byte
}

// Read moves every chunk currently available from src into the queue. It
// returns false when the connection is closed and this call received
// nothing; frames already queued stay available.
func (d *Deserializer) Read(src ChunkSource) bool {
	received := false
	for {
		chunk, open := src.TryRecv()
		if !open {
			return received
		}
		if chunk == nil {
			return true
		}
		d.queue = append(d.queue, chunk...)
		received = true
	}
}

// Avail reports whether at least one complete frame is queued.
func (d *Deserializer) Avail() bool {
	if len(d.queue) < HeaderSize {
		return false
	}
	size := int(binary.BigEndian.Uint16(d.queue))
	return len(d.queue) >= size
}

// Buffered returns the number of queued bytes.
func (d *Deserializer) Buffered() int {
	return len(d.queue)
}

func (d *Deserializer) pop() ([]byte, error) {
	if !d.Avail() {
		return nil, ErrIncompleteFrame
	}
	size := int(binary.BigEndian.Uint16(d.queue))
	if size <= HeaderSize {
		// Nothing sane can follow a frame that does not even hold a command.
		d.queue = d.queue[:0]
		return nil, fmt.Errorf("%w: frame length %d", ErrShortFrame, size)
	}
	frame := make([]byte, size-HeaderSize)
	copy(frame, d.queue[HeaderSize:size])
	d.queue = d.queue[size:]
	return frame, nil
}
