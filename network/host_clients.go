package network

import (
	"fmt"
	"net"
	"time"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/shared/protocol"
	"golang.org/x/time/rate"
)

type clientState int

const (
	clientAwaitingSlot clientState = iota
	clientPlaying
	clientDisconnected
)

func (s clientState) String() string {
	switch s {
	case clientAwaitingSlot:
		return "awaiting_slot"
	case clientPlaying:
		return "playing"
	case clientDisconnected:
		return "disconnected"
	}
	return "unknown"
}

// hostClient is the host's record of one remote peer.
type hostClient struct {
	stream *stream
	deser  protocol.Deserializer

	state      clientState
	player     int32
	name       string
	dropReason string

	time         int32 // last acknowledged game time
	desiredSpeed uint32
	hungSince    int64

	syncArrived bool
	syncHash    protocol.SyncHash

	pingSent int64
	rtt      int64

	chatLimit *rate.Limiter
}

func newHostClient(conn net.Conn, cfg config.NetworkConfig, speed uint32) *hostClient {
	return &hostClient{
		stream:       newStream(conn),
		state:        clientAwaitingSlot,
		player:       PlayerNotConnected,
		desiredSpeed: speed,
		chatLimit:    rate.NewLimiter(rate.Limit(cfg.ChatRate), cfg.ChatBurst),
	}
}

func (c *hostClient) describe() string {
	if c.name != "" {
		return fmt.Sprintf("%q (player %d)", c.name, c.player)
	}
	return c.stream.RemoteAddr()
}

// receive handles every complete frame c has sent. A frame error ends the
// session of c and nobody else.
func (h *Host) receive(c *hostClient) {
	if c.state == clientDisconnected {
		return
	}
	open := c.deser.Read(c.stream)
	for c.state != clientDisconnected && c.deser.Avail() {
		r, err := protocol.NewRecvPacket(&c.deser)
		if err == nil {
			err = h.handlePacket(c, r)
		}
		if err != nil {
			de := protocol.AsDisconnect(err)
			h.log.WithError(err).Warnf("dropping %s", c.describe())
			h.disconnectClient(c, de.Reason, true)
			return
		}
	}
	if !open && c.state != clientDisconnected {
		h.disconnectClient(c, protocol.ReasonConnectionLost, false)
	}
}

func (h *Host) handlePacket(c *hostClient, r *protocol.RecvPacket) error {
	cmd, err := r.Cmd()
	if err != nil {
		return err
	}

	if c.state == clientAwaitingSlot {
		switch cmd {
		case protocol.CmdHello:
			return h.handleHello(c, r)
		case protocol.CmdDisconnect:
			reason, _ := r.String()
			h.disconnectClient(c, reason, false)
			return nil
		}
		return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s before HELLO", cmd))
	}

	switch cmd {
	case protocol.CmdDisconnect:
		reason, err := r.String()
		if err != nil {
			return err
		}
		h.disconnectClient(c, reason, false)
		return nil

	case protocol.CmdPong:
		if c.pingSent != 0 {
			c.rtt = h.clock.Millis() - c.pingSent
			c.pingSent = 0
		}
		return nil

	case protocol.CmdSettingChangeTribe:
		tribe, err := r.String()
		if err != nil {
			return err
		}
		if h.started {
			return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s after launch", cmd))
		}
		if !h.settings.HasTribe(tribe) {
			h.log.Debugf("%s asked for unknown tribe %q", c.describe(), tribe)
			return nil
		}
		ps := h.settings.Players[c.player]
		ps.Tribe = tribe
		h.setPlayer(int(c.player), ps)
		return nil

	case protocol.CmdSettingChangePosition:
		slot, err := r.Unsigned8()
		if err != nil {
			return err
		}
		if h.started {
			return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s after launch", cmd))
		}
		h.movePlayer(c, int(slot))
		return nil

	case protocol.CmdSetSpeed:
		speed, err := r.Unsigned16()
		if err != nil {
			return err
		}
		c.desiredSpeed = uint32(speed)
		h.updateNetworkSpeed()
		return nil

	case protocol.CmdTime:
		t, err := r.Signed32()
		if err != nil {
			return err
		}
		if !h.started {
			return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s before launch", cmd))
		}
		return h.recvClientTime(c, t)

	case protocol.CmdPlayerCommand:
		if !h.started {
			return protocol.Disconnect(protocol.ReasonPlayerCmdWithoutGame, nil)
		}
		t, err := r.Signed32()
		if err != nil {
			return err
		}
		pc, err := messages.Deserialize(r)
		if err != nil {
			return err
		}
		if int32(pc.Sender()) != c.player {
			return protocol.Disconnect(protocol.ReasonPlayerCmdForOther,
				fmt.Errorf("player %d sent a command for player %d", c.player, pc.Sender()))
		}
		if err := h.recvClientTime(c, t); err != nil {
			return err
		}
		h.relayPlayerCommand(pc)
		return nil

	case protocol.CmdSyncReport:
		t, err := r.Signed32()
		if err != nil {
			return err
		}
		data, err := r.Data(protocol.SyncHashSize)
		if err != nil {
			return err
		}
		if !h.started {
			return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s before launch", cmd))
		}
		if !h.syncPending || t != h.syncTime || c.syncArrived {
			h.log.Debugf("ignoring stale sync report for %d from %s", t, c.describe())
			return nil
		}
		copy(c.syncHash[:], data)
		c.syncArrived = true
		h.checkSyncReports()
		return nil

	case protocol.CmdChat:
		text, err := r.String()
		if err != nil {
			return err
		}
		if !c.chatLimit.AllowN(time.UnixMilli(h.clock.Millis()), 1) {
			h.log.Debugf("chat from %s rate limited", c.describe())
			return nil
		}
		h.broadcastChat(messages.ChatMessage{Sender: c.name, Text: text})
		return nil
	}

	return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s from a seated peer", cmd))
}

func (h *Host) handleHello(c *hostClient, r *protocol.RecvPacket) error {
	version, err := r.Unsigned8()
	if err != nil {
		return err
	}
	name, err := r.String()
	if err != nil {
		return err
	}
	if version != protocol.Version {
		return protocol.Disconnect(protocol.ReasonProtocolMismatch,
			fmt.Errorf("peer speaks version %d, host %d", version, protocol.Version))
	}
	if h.started {
		return protocol.Disconnect(protocol.ReasonGameAlreadyStarted, nil)
	}
	slot, ok := h.freeSlot()
	if !ok {
		return protocol.Disconnect(protocol.ReasonNoFreeSlot, nil)
	}

	c.name = h.uniqueName(name)
	c.player = int32(slot)
	c.state = clientPlaying

	reply := protocol.NewSendPacket(protocol.CmdHello)
	reply.Unsigned8(protocol.Version)
	reply.Signed32(c.player)
	h.send(c, reply)
	h.sendFullSettings(c)

	h.setPlayer(slot, netconfig.PlayerSettings{
		State: netconfig.SlotHuman,
		Name:  c.name,
		Tribe: h.settings.DefaultTribe(),
	})
	h.log.Infof("%s joined", c.describe())
	h.systemChat(fmt.Sprintf("%s has joined the game", c.name))
	h.updateNetworkSpeed()
	return nil
}

func (h *Host) sendFullSettings(c *hostClient) {
	p := protocol.NewSendPacket(protocol.CmdSettingMap)
	netconfig.WriteMap(p, h.settings.Map)
	h.send(c, p)

	p = protocol.NewSendPacket(protocol.CmdSettingTribes)
	netconfig.WriteTribes(p, h.settings.Tribes)
	h.send(c, p)

	p = protocol.NewSendPacket(protocol.CmdSettingAllPlayers)
	netconfig.WriteAllPlayers(p, h.settings.Players)
	h.send(c, p)
}

// movePlayer seats c in slot if it is open. Requests for other slots are
// ignored.
func (h *Host) movePlayer(c *hostClient, slot int) {
	if slot >= len(h.settings.Players) || h.settings.Players[slot].State != netconfig.SlotOpen || h.slotTaken(slot) {
		h.log.Debugf("%s cannot move to slot %d", c.describe(), slot)
		return
	}
	old := int(c.player)
	moved := h.settings.Players[old]
	h.settings.Players[old] = netconfig.PlayerSettings{State: netconfig.SlotOpen}
	h.settings.Players[slot] = moved
	c.player = int32(slot)

	p := protocol.NewSendPacket(protocol.CmdSetPlayerNumber)
	p.Signed32(c.player)
	h.send(c, p)

	all := protocol.NewSendPacket(protocol.CmdSettingAllPlayers)
	netconfig.WriteAllPlayers(all, h.settings.Players)
	h.broadcast(all)
}
