package protocol

import (
	"encoding/binary"
	"fmt"
	"io"
)

const (
	// HeaderSize is the size of the length prefix. The prefix counts the
	// whole frame, itself included.
	HeaderSize = 2
	// MaxFrameSize is the largest frame the 16 bit prefix can describe.
	MaxFrameSize = 0xFFFF
	// MaxPayloadSize is the largest payload (command byte included).
	MaxPayloadSize = MaxFrameSize - HeaderSize
)

// SendPacket accumulates one frame. The zero value is not usable; call
// NewSendPacket.
type SendPacket struct {
	buf []byte
}

// NewSendPacket starts a frame for cmd.
func NewSendPacket(cmd Cmd) *SendPacket {
	p := &SendPacket{buf: make([]byte, HeaderSize, 64)}
	p.Unsigned8(uint8(cmd))
	return p
}

func (p *SendPacket) reserve(n int) {
	if len(p.buf)+n > MaxFrameSize {
		panic(fmt.Errorf("%w: %d bytes", ErrFrameTooLarge, len(p.buf)+n))
	}
}

func (p *SendPacket) Unsigned8(v uint8) {
	p.reserve(1)
	p.buf = append(p.buf, v)
}

func (p *SendPacket) Unsigned16(v uint16) {
	p.reserve(2)
	p.buf = binary.BigEndian.AppendUint16(p.buf, v)
}

func (p *SendPacket) Unsigned32(v uint32) {
	p.reserve(4)
	p.buf = binary.BigEndian.AppendUint32(p.buf, v)
}

func (p *SendPacket) Signed32(v int32) {
	p.Unsigned32(uint32(v))
}

func (p *SendPacket) Bool(v bool) {
	if v {
		p.Unsigned8(1)
	} else {
		p.Unsigned8(0)
	}
}

// String writes a uint16 length followed by the raw bytes of s.
func (p *SendPacket) String(s string) {
	if len(s) > MaxPayloadSize {
		panic(fmt.Errorf("%w: string of %d bytes", ErrFrameTooLarge, len(s)))
	}
	p.reserve(2 + len(s))
	p.buf = binary.BigEndian.AppendUint16(p.buf, uint16(len(s)))
	p.buf = append(p.buf, s...)
}

// Data appends a raw block with no length prefix; the reader must know its
// size.
func (p *SendPacket) Data(b []byte) {
	p.reserve(len(b))
	p.buf = append(p.buf, b...)
}

// Len returns the size of the frame including the length prefix.
func (p *SendPacket) Len() int {
	return len(p.buf)
}

// Bytes returns the finished frame with its length prefix filled in.
func (p *SendPacket) Bytes() []byte {
	binary.BigEndian.PutUint16(p.buf, uint16(len(p.buf)))
	return p.buf
}

// Send writes the frame with a single Write call.
func (p *SendPacket) Send(w io.Writer) error {
	_, err := w.Write(p.Bytes())
	return err
}

// RecvPacket is one complete frame popped from a Deserializer.
type RecvPacket struct {
	data []byte
	pos  int
}

// NewRecvPacket pops the next complete frame from d.
func NewRecvPacket(d *Deserializer) (*RecvPacket, error) {
	frame, err := d.pop()
	if err != nil {
		return nil, err
	}
	return &RecvPacket{data: frame}, nil
}

// Cmd reads the command byte. It is always the first read on a packet.
func (r *RecvPacket) Cmd() (Cmd, error) {
	v, err := r.Unsigned8()
	return Cmd(v), err
}

func (r *RecvPacket) take(n int) ([]byte, error) {
	if n < 0 || r.pos+n > len(r.data) {
		return nil, fmt.Errorf("%w: want %d bytes at offset %d of %d", ErrShortFrame, n, r.pos, len(r.data))
	}
	b := r.data[r.pos : r.pos+n]
	r.pos += n
	return b, nil
}

func (r *RecvPacket) Unsigned8() (uint8, error) {
	b, err := r.take(1)
	if err != nil {
		return 0, err
	}
	return b[0], nil
}

func (r *RecvPacket) Unsigned16() (uint16, error) {
	b, err := r.take(2)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint16(b), nil
}

func (r *RecvPacket) Unsigned32() (uint32, error) {
	b, err := r.take(4)
	if err != nil {
		return 0, err
	}
	return binary.BigEndian.Uint32(b), nil
}

func (r *RecvPacket) Signed32() (int32, error) {
	v, err := r.Unsigned32()
	return int32(v), err
}

func (r *RecvPacket) Bool() (bool, error) {
	v, err := r.Unsigned8()
	return v != 0, err
}

func (r *RecvPacket) String() (string, error) {
	n, err := r.Unsigned16()
	if err != nil {
		return "", err
	}
	b, err := r.take(int(n))
	if err != nil {
		return "", err
	}
	return string(b), nil
}

// Data reads a raw block of n bytes. The returned slice is a copy.
func (r *RecvPacket) Data(n int) ([]byte, error) {
	b, err := r.take(n)
	if err != nil {
		return nil, err
	}
	return append([]byte(nil), b...), nil
}

// Remaining returns the number of unread payload bytes.
func (r *RecvPacket) Remaining() int {
	return len(r.data) - r.pos
}
