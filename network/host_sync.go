package network

import (
	"fmt"

	"github.com/automoto/lockstep/shared/protocol"
)

// advanceTime moves the pseudo network time by the wall clock delta scaled
// by the network speed and commits it at the server heartbeat.
func (h *Host) advanceTime(now int64) {
	delta := now - h.lastFrame
	h.lastFrame = now
	if !h.waiting && delta > 0 {
		h.pseudoCarry += delta * int64(h.networkSpeed)
		h.pseudo += int32(h.pseudoCarry / 1000)
		h.pseudoCarry %= 1000
	}
	if h.pseudo < h.committed {
		h.pseudo = h.committed
	}

	if !h.waiting && h.pseudo > h.committed &&
		now-h.lastHeartbeat >= h.cfg.ServerTimestampInterval.Milliseconds() {
		h.lastHeartbeat = now
		p := protocol.NewSendPacket(protocol.CmdTime)
		p.Signed32(h.pseudo)
		h.broadcast(p)
		h.commit(h.pseudo)
		h.checkHungClients()
	}

	if h.RealSpeed() == 0 {
		h.time.FastForward()
	} else {
		h.time.Think(h.networkSpeed)
	}
}

// commit raises the committed network time. Peers have already been told.
func (h *Host) commit(t int32) {
	if t < h.committed {
		panic(fmt.Sprintf("committed network time running backwards: %d after %d", t, h.committed))
	}
	h.committed = t
	if err := h.time.Recv(t); err != nil {
		h.log.WithError(err).Error("local network time rejected commit")
	}
	if !h.syncPending && h.committed-h.lastSyncTime >= h.cfg.SyncReportInterval {
		h.requestSyncReports()
	}
}

// recvClientTime records the game time c reports having reached.
func (h *Host) recvClientTime(c *hostClient, t int32) error {
	if t < c.time {
		return protocol.Disconnect(protocol.ReasonBackwardsTime,
			fmt.Errorf("reported %d after %d", t, c.time))
	}
	if t > h.committed {
		return protocol.Disconnect(protocol.ReasonSimulateOutOfSync,
			fmt.Errorf("reported %d beyond committed %d", t, h.committed))
	}
	c.time = t
	h.checkHungClients()
	return nil
}

// checkHungClients enters the waiting state when a peer falls too far
// behind and leaves it once every peer has caught up completely.
func (h *Host) checkHungClients() {
	if !h.started {
		return
	}
	now := h.clock.Millis()
	threshold := h.cfg.HangThreshold(h.networkSpeed)
	delayed, hung := 0, 0
	for _, c := range h.clients {
		if c.state != clientPlaying {
			continue
		}
		lag := h.committed - c.time
		if lag == 0 {
			c.hungSince = 0
			continue
		}
		delayed++
		if lag > threshold {
			hung++
			if c.hungSince == 0 {
				c.hungSince = now
				h.log.Infof("%s is hanging %d ms behind", c.describe(), lag)
			}
		}
	}

	if !h.waiting {
		if hung > 0 {
			h.waiting = true
			h.broadcastRealSpeed(0)
			h.broadcast(protocol.NewSendPacket(protocol.CmdWait))
			h.log.Infof("waiting for %d hung peers", hung)
		}
		return
	}
	if delayed == 0 {
		h.waiting = false
		h.broadcastRealSpeed(h.networkSpeed)
		h.log.Info("all peers caught up, resuming")
		if !h.syncPending {
			h.requestSyncReports()
		}
	}
}

// updateNetworkSpeed recomputes the median desired speed and announces it
// when it changed.
func (h *Host) updateNetworkSpeed() {
	var speeds []uint32
	for _, c := range h.clients {
		if c.state == clientPlaying {
			speeds = append(speeds, c.desiredSpeed)
		}
	}
	if h.localPlayer >= 0 || len(speeds) == 0 {
		speeds = append(speeds, h.desiredSpeed)
	}
	speed := medianSpeed(speeds)
	if speed == h.networkSpeed {
		return
	}
	h.networkSpeed = speed
	if h.started && !h.waiting {
		h.broadcastRealSpeed(speed)
	}
}

func (h *Host) broadcastRealSpeed(speed uint32) {
	if speed > 0xFFFF {
		speed = 0xFFFF
	}
	p := protocol.NewSendPacket(protocol.CmdSetSpeed)
	p.Unsigned16(uint16(speed))
	h.broadcast(p)
}

// requestSyncReports asks every peer for its sync hash at committed+1 and
// schedules the host's own check at the same time.
func (h *Host) requestSyncReports() {
	h.syncPending = true
	h.syncArrived = false
	h.syncTime = h.committed + 1
	h.lastSyncTime = h.syncTime
	for _, c := range h.clients {
		c.syncArrived = false
	}

	t := h.syncTime
	p := protocol.NewSendPacket(protocol.CmdSyncRequest)
	p.Signed32(t)
	h.broadcast(p)
	h.sim.EnqueueSyncCheck(t, func(hash protocol.SyncHash) {
		if !h.syncPending || t != h.syncTime {
			return
		}
		h.syncHash = hash
		h.syncArrived = true
		h.checkSyncReports()
	})
	h.commit(t)
}

// checkSyncReports compares the round once every seated peer has reported.
// Peers that disagree with the host are told about the desync and dropped.
func (h *Host) checkSyncReports() {
	if !h.syncPending || !h.syncArrived {
		return
	}
	for _, c := range h.clients {
		if c.state == clientPlaying && !c.syncArrived {
			return
		}
	}
	h.syncPending = false
	h.syncRounds++

	var diverged []*hostClient
	for _, c := range h.clients {
		if c.state == clientPlaying && c.syncHash != h.syncHash {
			diverged = append(diverged, c)
		}
	}
	if len(diverged) == 0 {
		h.log.Debugf("sync %d ok (%s)", h.syncTime, h.syncHash)
		return
	}

	h.desyncs++
	h.broadcast(protocol.NewSendPacket(protocol.CmdDesync))
	for _, c := range diverged {
		h.log.Errorf("desync at %d: host %s, %s reported %s", h.syncTime, h.syncHash, c.describe(), c.syncHash)
		h.systemChat(fmt.Sprintf("%s is out of sync and has been disconnected", c.name))
	}
	for _, c := range diverged {
		h.disconnectClient(c, protocol.ReasonClientDesynced, true)
	}
}
