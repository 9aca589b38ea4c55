package network

import (
	"errors"
	"fmt"
	"maps"
	"net"
	"slices"
	"strings"
	"sync"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/shared/protocol"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

// PlayerNotConnected is the player number of a peer that has not been
// given a slot.
const PlayerNotConnected int32 = -2

// ErrAlreadyStarted is returned by host operations that are only valid in
// the lobby.
var ErrAlreadyStarted = errors.New("game already started")

// HostOptions configures a Host. Zero fields fall back to defaults.
type HostOptions struct {
	// LocalName seats a local human player in slot 0. Empty runs a
	// dedicated host without a player of its own.
	LocalName  string
	Settings   netconfig.GameSettings
	Simulation SimulationFactory
	Computer   ComputerFactory
	Clock      Clock
	Logger     logrus.FieldLogger
}

// Host is the authority of a session. It owns the settings, commits network
// time, relays player commands and compares sync reports. All methods must
// be called from the goroutine that calls Think.
type Host struct {
	cfg       config.NetworkConfig
	clock     Clock
	log       logrus.FieldLogger
	sessionID string

	localName   string
	localPlayer int32

	listeners []Listener
	clients   []*hostClient
	settings  netconfig.GameSettings
	chat      chan messages.ChatMessage

	newSim      SimulationFactory
	newComputer ComputerFactory
	computers   map[uint8]ComputerPlayer
	sim         Simulation
	started     bool
	closing     bool

	time          *NetworkTime
	committed     int32
	pseudo        int32
	pseudoCarry   int64
	lastFrame     int64
	lastHeartbeat int64
	lastPing      int64
	frametime     int32

	desiredSpeed uint32
	networkSpeed uint32
	waiting      bool

	syncPending  bool
	syncTime     int32
	lastSyncTime int32
	syncArrived  bool
	syncHash     protocol.SyncHash
	syncRounds   int
	desyncs      int

	statusMu sync.RWMutex
	status   SessionStatus
}

// NewHost creates a host in the lobby state.
func NewHost(cfg config.NetworkConfig, opts HostOptions) (*Host, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("network config: %w", err)
	}
	if opts.Simulation == nil {
		return nil, errors.New("host needs a simulation factory")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	sessionID := uuid.NewString()
	if opts.Logger == nil {
		opts.Logger = defaultLogger("host")
	}

	h := &Host{
		cfg:          cfg,
		clock:        opts.Clock,
		log:          opts.Logger.WithField("session", sessionID),
		sessionID:    sessionID,
		localPlayer:  PlayerNotConnected,
		settings:     opts.Settings.Clone(),
		chat:         make(chan messages.ChatMessage, 64),
		newSim:       opts.Simulation,
		newComputer:  opts.Computer,
		computers:    make(map[uint8]ComputerPlayer),
		time:         NewNetworkTime(opts.Clock),
		desiredSpeed: uint32(cfg.DefaultSpeed),
	}
	if len(h.settings.Players) == 0 {
		h.settings.Players = make([]netconfig.PlayerSettings, cfg.MaxPlayers)
	}
	if opts.LocalName != "" {
		h.localName = opts.LocalName
		h.localPlayer = 0
		h.settings.Players[0] = netconfig.PlayerSettings{
			State: netconfig.SlotHuman,
			Name:  opts.LocalName,
			Tribe: h.settings.DefaultTribe(),
		}
	}
	h.updateNetworkSpeed()
	h.publishStatus()
	return h, nil
}

// AddListener makes the host accept peers from l. The host closes it.
func (h *Host) AddListener(l Listener) {
	h.listeners = append(h.listeners, l)
}

// Accept attaches an already established connection as a new peer.
func (h *Host) Accept(conn net.Conn) {
	c := newHostClient(conn, h.cfg, uint32(h.cfg.DefaultSpeed))
	h.clients = append(h.clients, c)
	h.log.Infof("connection from %s", c.stream.RemoteAddr())
	if h.started {
		h.disconnectClient(c, protocol.ReasonGameAlreadyStarted, true)
	}
}

// Think runs one frame: network input, time commitment, simulation and
// computer players.
func (h *Host) Think() {
	defer h.recoverPanic()

	for _, l := range h.listeners {
		for {
			conn, ok := l.TryAccept()
			if !ok {
				break
			}
			h.Accept(conn)
		}
	}

	for _, c := range h.clients {
		h.receive(c)
	}

	now := h.clock.Millis()
	if h.started {
		h.advanceTime(now)
		h.runSimulation()
		for _, player := range slices.Sorted(maps.Keys(h.computers)) {
			h.computers[player].Think()
		}
	}
	h.pingClients(now)
	h.flushDrops()
	h.reapClients()
	h.publishStatus()
}

func (h *Host) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	h.log.Errorf("panic: %v", r)
	if h.started && h.sim != nil {
		emergencySave(h.sim, "crash", h.log)
	}
	panic(r)
}

func (h *Host) runSimulation() {
	target := h.time.Time()
	ft := target - h.sim.GameTime()
	if ft < 0 {
		ft = 0
	}
	h.frametime = ft
	h.sim.RunQueue(ft)
}

// Launch starts the game for every seated peer.
func (h *Host) Launch() error {
	if h.started {
		return ErrAlreadyStarted
	}
	sim, err := h.newSim(h.settings.Clone())
	if err != nil {
		return fmt.Errorf("create simulation: %w", err)
	}
	for _, c := range h.clients {
		if c.state == clientAwaitingSlot {
			h.disconnectClient(c, protocol.ReasonGameAlreadyStarted, true)
		}
	}

	h.sim = sim
	h.started = true
	now := h.clock.Millis()
	h.time.Reset(0)
	h.committed = 0
	h.pseudo = 0
	h.pseudoCarry = 0
	h.lastFrame = now
	h.lastHeartbeat = now
	h.lastSyncTime = 0

	h.broadcast(protocol.NewSendPacket(protocol.CmdLaunch))
	for slot, p := range h.settings.Players {
		if p.State == netconfig.SlotComputer {
			h.spawnComputer(uint8(slot))
		}
	}
	h.updateNetworkSpeed()
	h.broadcastRealSpeed(h.RealSpeed())
	h.log.Infof("game launched on %q with %d peers", h.settings.Map.Name, h.playingCount())
	return nil
}

// Close tells every peer the host is leaving and releases all connections.
func (h *Host) Close() error {
	h.closing = true
	for _, c := range h.clients {
		h.disconnectClient(c, protocol.ReasonServerLeft, true)
	}
	h.clients = nil
	var errs []error
	for _, l := range h.listeners {
		errs = append(errs, l.Close())
	}
	h.listeners = nil
	return errors.Join(errs...)
}

// SendPlayerCommand schedules cmd for every peer at committed+1.
func (h *Host) SendPlayerCommand(cmd messages.PlayerCommand) {
	if !h.started {
		h.log.Warnf("dropping player command %d before launch", cmd.ID())
		return
	}
	h.relayPlayerCommand(cmd)
}

func (h *Host) relayPlayerCommand(cmd messages.PlayerCommand) {
	due := h.committed + 1
	cmd.SetDuetime(due)
	p := protocol.NewSendPacket(protocol.CmdPlayerCommand)
	p.Signed32(due)
	cmd.Serialize(p)
	h.broadcast(p)
	h.sim.Enqueue(cmd)
	h.commit(due)
}

func (h *Host) FrameTime() int32 { return h.frametime }

func (h *Host) GameDescription() string { return "network host" }

// RealSpeed is the speed every peer currently runs at.
func (h *Host) RealSpeed() uint32 {
	if h.waiting {
		return 0
	}
	return h.networkSpeed
}

func (h *Host) DesiredSpeed() uint32 { return h.desiredSpeed }

func (h *Host) SetDesiredSpeed(speed uint32) {
	h.desiredSpeed = speed
	h.updateNetworkSpeed()
}

// Simulation returns the running simulation, or nil before launch.
func (h *Host) Simulation() Simulation { return h.sim }

func (h *Host) Started() bool { return h.started }

func (h *Host) SessionID() string { return h.sessionID }

// LocalPlayer is the slot of the host's own player, or PlayerNotConnected
// on a dedicated host.
func (h *Host) LocalPlayer() int32 { return h.localPlayer }

// Settings returns a copy of the current session settings.
func (h *Host) Settings() netconfig.GameSettings { return h.settings.Clone() }

// SetMap changes the map in the lobby.
func (h *Host) SetMap(m netconfig.MapInfo) error {
	if h.started {
		return ErrAlreadyStarted
	}
	h.settings.Map = m
	p := protocol.NewSendPacket(protocol.CmdSettingMap)
	netconfig.WriteMap(p, m)
	h.broadcast(p)
	return nil
}

// SetSlotState opens, closes or seats a computer player in an unoccupied
// slot.
func (h *Host) SetSlotState(slot int, state netconfig.SlotState) error {
	if h.started {
		return ErrAlreadyStarted
	}
	if slot < 0 || slot >= len(h.settings.Players) {
		return fmt.Errorf("slot %d out of range", slot)
	}
	if state == netconfig.SlotHuman {
		return errors.New("human slots are taken by joining players")
	}
	if h.slotTaken(slot) {
		return fmt.Errorf("slot %d is occupied by a player", slot)
	}
	ps := netconfig.PlayerSettings{State: state}
	if state == netconfig.SlotComputer {
		ps.Name = computerName(slot)
		ps.Tribe = h.settings.DefaultTribe()
	}
	h.setPlayer(slot, ps)
	return nil
}

// SetLocalTribe changes the tribe of the host's own player.
func (h *Host) SetLocalTribe(tribe string) error {
	if h.started {
		return ErrAlreadyStarted
	}
	if h.localPlayer < 0 {
		return errors.New("dedicated host has no player")
	}
	if !h.settings.HasTribe(tribe) {
		return fmt.Errorf("unknown tribe %q", tribe)
	}
	ps := h.settings.Players[h.localPlayer]
	ps.Tribe = tribe
	h.setPlayer(int(h.localPlayer), ps)
	return nil
}

// Kick disconnects the peer in slot player. The reason is shown in chat.
func (h *Host) Kick(player uint8, reason string) bool {
	for _, c := range h.clients {
		if c.state == clientPlaying && c.player == int32(player) {
			name := c.name
			h.disconnectClient(c, protocol.ReasonKicked, true)
			if reason == "" {
				h.systemChat(fmt.Sprintf("%s was kicked by the host", name))
			} else {
				h.systemChat(fmt.Sprintf("%s was kicked by the host: %s", name, reason))
			}
			return true
		}
	}
	return false
}

// SendChat broadcasts a chat line from the host's own player.
func (h *Host) SendChat(text string) {
	sender := h.localName
	if sender == "" {
		sender = "host"
	}
	h.broadcastChat(messages.ChatMessage{Sender: sender, Text: text})
}

// DrainChat returns all chat lines received since the last call.
func (h *Host) DrainChat() []messages.ChatMessage {
	return drainChan(h.chat)
}

// Status returns the snapshot published at the end of the last Think. It
// is safe to call from any goroutine.
func (h *Host) Status() SessionStatus {
	h.statusMu.RLock()
	defer h.statusMu.RUnlock()
	s := h.status
	s.Peers = append([]PeerStatus(nil), h.status.Peers...)
	return s
}

func (h *Host) publishStatus() {
	s := SessionStatus{
		SessionID:     h.sessionID,
		Map:           h.settings.Map.Name,
		Started:       h.started,
		CommittedTime: h.committed,
		NetworkSpeed:  h.networkSpeed,
		Waiting:       h.waiting,
		SyncPending:   h.syncPending,
		SyncRounds:    h.syncRounds,
		Desyncs:       h.desyncs,
	}
	if h.sim != nil {
		s.GameTime = h.sim.GameTime()
	}
	if h.localPlayer >= 0 {
		s.Peers = append(s.Peers, PeerStatus{
			Name:         h.localName,
			Player:       h.localPlayer,
			State:        "host",
			AckTime:      h.committed,
			DesiredSpeed: h.desiredSpeed,
		})
	}
	for _, c := range h.clients {
		if c.state == clientDisconnected {
			continue
		}
		ps := PeerStatus{
			Name:         c.name,
			Player:       c.player,
			State:        c.state.String(),
			AckTime:      c.time,
			DesiredSpeed: c.desiredSpeed,
			RTTMillis:    c.rtt,
		}
		if h.started && c.state == clientPlaying {
			ps.Lag = h.committed - c.time
		}
		s.Peers = append(s.Peers, ps)
	}

	h.statusMu.Lock()
	h.status = s
	h.statusMu.Unlock()
}

func (h *Host) send(c *hostClient, p *protocol.SendPacket) {
	if c.state == clientDisconnected || c.dropReason != "" {
		return
	}
	if err := c.stream.Send(p); err != nil {
		h.log.WithError(err).Debugf("send to %s failed", c.describe())
		c.dropReason = protocol.ReasonConnectionLost
	}
}

// broadcast sends p to every seated peer.
func (h *Host) broadcast(p *protocol.SendPacket) {
	for _, c := range h.clients {
		if c.state == clientPlaying {
			h.send(c, p)
		}
	}
}

func (h *Host) broadcastChat(msg messages.ChatMessage) {
	p := protocol.NewSendPacket(protocol.CmdChat)
	p.String(msg.Sender)
	p.String(msg.Text)
	h.broadcast(p)
	pushChat(h.chat, msg)
}

func (h *Host) systemChat(text string) {
	h.broadcastChat(messages.ChatMessage{Text: text})
}

func (h *Host) setPlayer(slot int, ps netconfig.PlayerSettings) {
	h.settings.Players[slot] = ps
	p := protocol.NewSendPacket(protocol.CmdSettingPlayer)
	p.Unsigned8(uint8(slot))
	netconfig.WritePlayer(p, ps)
	h.broadcast(p)
}

func (h *Host) slotTaken(slot int) bool {
	if int32(slot) == h.localPlayer {
		return true
	}
	for _, c := range h.clients {
		if c.state == clientPlaying && c.player == int32(slot) {
			return true
		}
	}
	return false
}

func (h *Host) freeSlot() (int, bool) {
	for i, p := range h.settings.Players {
		if p.State == netconfig.SlotOpen && !h.slotTaken(i) {
			return i, true
		}
	}
	return 0, false
}

// uniqueName returns name, suffixed if another seated player already uses it.
func (h *Host) uniqueName(name string) string {
	name = strings.TrimSpace(name)
	if name == "" {
		name = "Player"
	}
	taken := func(candidate string) bool {
		for _, p := range h.settings.Players {
			if p.State != netconfig.SlotOpen && p.State != netconfig.SlotClosed && p.Name == candidate {
				return true
			}
		}
		return false
	}
	if !taken(name) {
		return name
	}
	for i := 2; ; i++ {
		candidate := fmt.Sprintf("%s (%d)", name, i)
		if !taken(candidate) {
			return candidate
		}
	}
}

func (h *Host) spawnComputer(slot uint8) {
	if h.newComputer == nil || h.sim == nil {
		return
	}
	if cp := h.newComputer(h.sim, slot, h.SendPlayerCommand); cp != nil {
		h.computers[slot] = cp
	}
}

func (h *Host) playingCount() int {
	n := 0
	for _, c := range h.clients {
		if c.state == clientPlaying {
			n++
		}
	}
	return n
}

func (h *Host) pingClients(now int64) {
	if now-h.lastPing < h.cfg.PingInterval.Milliseconds() {
		return
	}
	h.lastPing = now
	for _, c := range h.clients {
		if c.state != clientPlaying || c.pingSent != 0 {
			continue
		}
		c.pingSent = now
		h.send(c, protocol.NewSendPacket(protocol.CmdPing))
	}
}

// flushDrops disconnects peers whose sends failed. Disconnecting announces
// the departure, which may fail further sends, so it runs to a fixpoint.
func (h *Host) flushDrops() {
	for {
		dropped := false
		for _, c := range h.clients {
			if c.state != clientDisconnected && c.dropReason != "" {
				h.disconnectClient(c, c.dropReason, false)
				dropped = true
			}
		}
		if !dropped {
			return
		}
	}
}

func (h *Host) reapClients() {
	kept := h.clients[:0]
	for _, c := range h.clients {
		if c.state != clientDisconnected {
			kept = append(kept, c)
		}
	}
	clear(h.clients[len(kept):])
	h.clients = kept
}

// disconnectClient ends the session of c only. With notify set the reason
// is sent to the peer first, best effort.
func (h *Host) disconnectClient(c *hostClient, reason string, notify bool) {
	if c.state == clientDisconnected {
		return
	}
	if notify && c.dropReason == "" {
		p := protocol.NewSendPacket(protocol.CmdDisconnect)
		p.String(reason)
		_ = c.stream.Send(p)
	}
	_ = c.stream.Close()

	prev := c.state
	c.state = clientDisconnected
	h.log.Infof("%s disconnected: %s", c.describe(), reason)
	if prev != clientPlaying || h.closing {
		return
	}

	slot := int(c.player)
	c.player = PlayerNotConnected
	if h.started && h.cfg.BackfillComputer {
		h.setPlayer(slot, netconfig.PlayerSettings{
			State: netconfig.SlotComputer,
			Name:  computerName(slot),
			Tribe: h.settings.Players[slot].Tribe,
		})
		h.spawnComputer(uint8(slot))
	} else {
		h.setPlayer(slot, netconfig.PlayerSettings{State: netconfig.SlotOpen})
	}
	if reason != protocol.ReasonKicked {
		h.systemChat(fmt.Sprintf("%s has left the game (%s)", c.name, protocol.DescribeReason(reason)))
	}

	h.updateNetworkSpeed()
	if h.started {
		h.checkSyncReports()
		h.checkHungClients()
	}
}

func computerName(slot int) string {
	return fmt.Sprintf("Computer %d", slot+1)
}

func pushChat(ch chan messages.ChatMessage, msg messages.ChatMessage) {
	select {
	case ch <- msg:
	default:
		// Full: drop the oldest line so the latest stays visible.
		select {
		case <-ch:
		default:
		}
		select {
		case ch <- msg:
		default:
		}
	}
}

func drainChan[T any](ch chan T) []T {
	var out []T
	for {
		select {
		case v := <-ch:
			out = append(out, v)
		default:
			return out
		}
	}
}
