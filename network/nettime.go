package network

import (
	"errors"
	"fmt"
)

// ErrTimeBackwards is returned when the authority reports a network time
// lower than one it already reported.
var ErrTimeBackwards = errors.New("network time running backwards")

// NetworkTime separates how far the local simulation may run this frame from
// the time the network has authorized. It advances smoothly between the
// discrete authority samples and never passes the latest one.
type NetworkTime struct {
	clock Clock

	time        int32 // current estimate handed to the simulation
	networkTime int32 // latest authorized time
	lastFrame   int64 // wall clock of the last update
	latency     int64 // smoothed distance between estimate and authority
}

// NewNetworkTime returns a NetworkTime driven by clock.
func NewNetworkTime(clock Clock) *NetworkTime {
	return &NetworkTime{clock: clock}
}

// Reset sets both the estimate and the network time to t.
func (nt *NetworkTime) Reset(t int32) {
	nt.time = t
	nt.networkTime = t
	nt.lastFrame = nt.clock.Millis()
	nt.latency = 0
}

// Recv records a new authoritative sample.
func (nt *NetworkTime) Recv(t int32) error {
	if t < nt.networkTime {
		return fmt.Errorf("%w: got %d after %d", ErrTimeBackwards, t, nt.networkTime)
	}
	behind := int64(nt.networkTime - nt.time)
	if behind < nt.latency {
		nt.latency = behind
	} else {
		nt.latency = (nt.latency + behind) / 2
	}
	nt.networkTime = t
	return nil
}

// Think advances the estimate by the elapsed wall clock scaled by speed
// (game ms per wall second), catching up on accumulated latency, clamped to
// the network time.
func (nt *NetworkTime) Think(speed uint32) {
	now := nt.clock.Millis()
	delta := now - nt.lastFrame
	nt.lastFrame = now
	if delta <= 0 || speed == 0 {
		return
	}

	step := delta * int64(speed) / 1000
	var speedup int64
	if nt.latency > 10*step {
		speedup = nt.latency - 10*step
	} else if nt.latency > step {
		speedup = step / 8
	}
	nt.latency -= speedup
	step += speedup

	behind := int64(nt.networkTime - nt.time)
	if step > behind {
		step = behind
	}
	nt.time += int32(step)
}

// FastForward snaps the estimate to the network time. Used while the speed
// is zero so that waiting does not show up as lag.
func (nt *NetworkTime) FastForward() {
	nt.time = nt.networkTime
	nt.lastFrame = nt.clock.Millis()
}

func (nt *NetworkTime) Time() int32        { return nt.time }
func (nt *NetworkTime) NetworkTime() int32 { return nt.networkTime }
