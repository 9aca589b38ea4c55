package protocol

import (
	"bytes"
	"errors"
	"testing"
)

type chunks struct {
	pending [][]byte
	closed  bool
}

func (c *chunks) TryRecv() ([]byte, bool) {
	if len(c.pending) == 0 {
		return nil, !c.closed
	}
	next := c.pending[0]
	c.pending = c.pending[1:]
	return next, true
}

func TestPacketRoundTrip(t *testing.T) {
	p := NewSendPacket(CmdPlayerCommand)
	p.Unsigned8(200)
	p.Unsigned16(0xBEEF)
	p.Unsigned32(0xDEADBEEF)
	p.Signed32(-123456)
	p.String("héllo")
	p.String("")
	p.Bool(true)
	p.Data([]byte{1, 2, 3})

	var d Deserializer
	src := &chunks{pending: [][]byte{append([]byte(nil), p.Bytes()...)}}
	if !d.Read(src) {
		t.Fatalf("Read returned false with data pending")
	}
	if !d.Avail() {
		t.Fatalf("expected a complete frame")
	}
	r, err := NewRecvPacket(&d)
	if err != nil {
		t.Fatalf("NewRecvPacket: %v", err)
	}

	cmd, _ := r.Cmd()
	u8, _ := r.Unsigned8()
	u16, _ := r.Unsigned16()
	u32, _ := r.Unsigned32()
	s32, _ := r.Signed32()
	s1, _ := r.String()
	s2, _ := r.String()
	b, _ := r.Bool()
	data, err := r.Data(3)
	if err != nil {
		t.Fatalf("reading back: %v", err)
	}

	if cmd != CmdPlayerCommand || u8 != 200 || u16 != 0xBEEF || u32 != 0xDEADBEEF || s32 != -123456 {
		t.Fatalf("numeric mismatch: %v %d %x %x %d", cmd, u8, u16, u32, s32)
	}
	if s1 != "héllo" || s2 != "" || !b || !bytes.Equal(data, []byte{1, 2, 3}) {
		t.Fatalf("value mismatch: %q %q %v %v", s1, s2, b, data)
	}
	if r.Remaining() != 0 {
		t.Fatalf("expected frame fully consumed, %d bytes left", r.Remaining())
	}
}

func TestLengthPrefixCountsWholeFrame(t *testing.T) {
	p := NewSendPacket(CmdTime)
	p.Signed32(1000)
	frame := p.Bytes()
	if len(frame) != 7 {
		t.Fatalf("frame length = %d, want 7", len(frame))
	}
	if frame[0] != 0 || frame[1] != 7 {
		t.Fatalf("prefix = %v, want [0 7]", frame[:2])
	}
}

func TestSendUsesSingleWrite(t *testing.T) {
	p := NewSendPacket(CmdChat)
	p.String("gg")
	w := &countingWriter{}
	if err := p.Send(w); err != nil {
		t.Fatalf("Send: %v", err)
	}
	if w.calls != 1 {
		t.Fatalf("Send issued %d writes, want 1", w.calls)
	}
	if !bytes.Equal(w.buf.Bytes(), p.Bytes()) {
		t.Fatalf("written bytes differ from frame")
	}
}

type countingWriter struct {
	buf   bytes.Buffer
	calls int
}

func (w *countingWriter) Write(b []byte) (int, error) {
	w.calls++
	return w.buf.Write(b)
}

func TestFrameTooLargePanics(t *testing.T) {
	p := NewSendPacket(CmdChat)
	p.Data(make([]byte, MaxPayloadSize-1))
	if p.Len() != MaxFrameSize {
		t.Fatalf("Len = %d, want %d", p.Len(), MaxFrameSize)
	}

	defer func() {
		r := recover()
		if r == nil {
			t.Fatalf("expected panic on oversized frame")
		}
		err, ok := r.(error)
		if !ok || !errors.Is(err, ErrFrameTooLarge) {
			t.Fatalf("panic value = %v, want ErrFrameTooLarge", r)
		}
		if p.Len() != MaxFrameSize {
			t.Fatalf("frame was modified: len %d", p.Len())
		}
	}()
	p.Unsigned8(1)
}

func TestReadPastEndFails(t *testing.T) {
	p := NewSendPacket(CmdTime)
	p.Unsigned16(7)

	var d Deserializer
	d.Read(&chunks{pending: [][]byte{p.Bytes()}})
	r, err := NewRecvPacket(&d)
	if err != nil {
		t.Fatalf("NewRecvPacket: %v", err)
	}
	if _, err := r.Cmd(); err != nil {
		t.Fatalf("Cmd: %v", err)
	}
	if _, err := r.Signed32(); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("Signed32 past end: err = %v, want ErrShortFrame", err)
	}
	if _, err := r.String(); !errors.Is(err, ErrShortFrame) {
		t.Fatalf("String past end: err = %v, want ErrShortFrame", err)
	}
}

func TestRecvPacketWithoutFrame(t *testing.T) {
	var d Deserializer
	if _, err := NewRecvPacket(&d); !errors.Is(err, ErrIncompleteFrame) {
		t.Fatalf("err = %v, want ErrIncompleteFrame", err)
	}
}
