package systems

import "math/rand/v2"

// Random is the logic RNG. Every peer seeds it identically and every draw
// is written to the sync stream, so a peer drawing out of turn shows up in
// the next sync report.
type Random struct {
	r    *rand.Rand
	sync *SyncStream
}

func NewRandom(seed uint64, sync *SyncStream) *Random {
	return &Random{
		r:    rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		sync: sync,
	}
}

// IntN returns a value in [0, n). n must be positive.
func (r *Random) IntN(n int) int {
	v := r.r.IntN(n)
	r.sync.Unsigned32(uint32(v))
	return v
}
