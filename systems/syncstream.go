package systems

import (
	"crypto/md5"
	"encoding/binary"
	"hash"

	"github.com/automoto/lockstep/shared/protocol"
)

// SyncStream digests every piece of state that must agree across peers.
// Values are written with fixed widths in big-endian order so the digest is
// platform independent.
type SyncStream struct {
	h   hash.Hash
	buf [8]byte
}

func NewSyncStream() *SyncStream {
	return &SyncStream{h: md5.New()}
}

func (s *SyncStream) Unsigned8(v uint8) {
	s.buf[0] = v
	s.h.Write(s.buf[:1])
}

func (s *SyncStream) Unsigned16(v uint16) {
	binary.BigEndian.PutUint16(s.buf[:2], v)
	s.h.Write(s.buf[:2])
}

func (s *SyncStream) Unsigned32(v uint32) {
	binary.BigEndian.PutUint32(s.buf[:4], v)
	s.h.Write(s.buf[:4])
}

func (s *SyncStream) Signed32(v int32) {
	s.Unsigned32(uint32(v))
}

func (s *SyncStream) Signed64(v int64) {
	binary.BigEndian.PutUint64(s.buf[:8], uint64(v))
	s.h.Write(s.buf[:8])
}

func (s *SyncStream) String(v string) {
	s.Unsigned32(uint32(len(v)))
	s.h.Write([]byte(v))
}

// Sum returns the digest of everything written so far. The stream keeps
// accumulating afterwards.
func (s *SyncStream) Sum() protocol.SyncHash {
	var out protocol.SyncHash
	copy(out[:], s.h.Sum(nil))
	return out
}
