package network

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/shared/protocol"
	"github.com/sirupsen/logrus"
)

type ClientState int

const (
	StateDisconnected ClientState = iota
	StateConnecting
	StateConnected
	StateJoinedGame
	StatePlaying
	StateError
)

func (s ClientState) String() string {
	switch s {
	case StateDisconnected:
		return "disconnected"
	case StateConnecting:
		return "connecting"
	case StateConnected:
		return "connected"
	case StateJoinedGame:
		return "joined"
	case StatePlaying:
		return "playing"
	case StateError:
		return "error"
	}
	return "unknown"
}

const dialTimeout = 10 * time.Second

// ClientOptions configures a Client. Zero fields fall back to defaults.
type ClientOptions struct {
	Name       string
	Simulation SimulationFactory
	Clock      Clock
	Logger     logrus.FieldLogger
}

// Client mirrors a host's session. The session fields are owned by the
// goroutine calling Think; mu guards state, lastError and the dial
// generation, which the UI and the dial goroutine touch from elsewhere.
type Client struct {
	mu        sync.RWMutex
	state     ClientState
	lastError error
	dialGen   uint64

	cfg    config.NetworkConfig
	clock  Clock
	log    logrus.FieldLogger
	name   string
	newSim SimulationFactory

	dialed chan net.Conn
	stream *stream
	deser  protocol.Deserializer

	player   int32
	settings netconfig.GameSettings
	chat     chan messages.ChatMessage

	sim           Simulation
	time          *NetworkTime
	realSpeed     uint32
	desiredSpeed  uint32
	serverWaiting bool
	frametime     int32
	desynced      bool

	lastTimestamp     int32
	lastTimestampReal int64
}

func NewClient(cfg config.NetworkConfig, opts ClientOptions) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("network config: %w", err)
	}
	if opts.Simulation == nil {
		return nil, errors.New("client needs a simulation factory")
	}
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = defaultLogger("client")
	}
	return &Client{
		state:        StateDisconnected,
		cfg:          cfg,
		clock:        opts.Clock,
		log:          opts.Logger,
		name:         opts.Name,
		newSim:       opts.Simulation,
		dialed:       make(chan net.Conn, 1),
		player:       PlayerNotConnected,
		chat:         make(chan messages.ChatMessage, 64),
		time:         NewNetworkTime(opts.Clock),
		desiredSpeed: uint32(cfg.DefaultSpeed),
	}, nil
}

// Connect dials addr in a background goroutine. The connection is picked
// up by the next Think, which starts the HELLO handshake.
func (c *Client) Connect(addr string) {
	c.mu.Lock()
	c.state = StateConnecting
	c.lastError = nil
	c.dialGen++
	gen := c.dialGen
	c.mu.Unlock()
	c.dropDialed()

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), dialTimeout)
		defer cancel()
		conn, err := Dial(ctx, addr)
		c.finishDial(gen, conn, err)
	}()
}

// finishDial hands a dial result to Think. Results of a dial that a later
// Connect or Disconnect superseded are dropped.
func (c *Client) finishDial(gen uint64, conn net.Conn, err error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if gen != c.dialGen || c.state != StateConnecting {
		if conn != nil {
			_ = conn.Close()
		}
		return
	}
	if err != nil {
		c.state = StateError
		c.lastError = fmt.Errorf("connection failed: %w", err)
		return
	}
	select {
	case c.dialed <- conn:
	default:
		_ = conn.Close()
	}
}

// Attach uses conn as the connection to the host and sends HELLO.
func (c *Client) Attach(conn net.Conn) {
	c.stream = newStream(conn)
	c.deser = protocol.Deserializer{}
	c.setState(StateConnected)
	c.log.Infof("connected to %s", c.stream.RemoteAddr())

	p := protocol.NewSendPacket(protocol.CmdHello)
	p.Unsigned8(protocol.Version)
	p.String(c.name)
	c.send(p)
}

// Disconnect leaves the session.
func (c *Client) Disconnect() {
	if c.stream != nil {
		p := protocol.NewSendPacket(protocol.CmdDisconnect)
		p.String(protocol.ReasonClientLeft)
		_ = c.stream.Send(p)
		_ = c.stream.Close()
		c.stream = nil
	}
	c.mu.Lock()
	c.dialGen++
	c.state = StateDisconnected
	c.mu.Unlock()
	c.dropDialed()
}

func (c *Client) dropDialed() {
	select {
	case conn := <-c.dialed:
		_ = conn.Close()
	default:
	}
}

func (c *Client) State() ClientState {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.state
}

// LastError is the reason the session ended. A host-initiated disconnect
// is a *protocol.DisconnectError.
func (c *Client) LastError() error {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError
}

func (c *Client) setState(s ClientState) {
	c.mu.Lock()
	c.state = s
	c.mu.Unlock()
}

func (c *Client) setError(err error) {
	c.mu.Lock()
	c.state = StateError
	c.lastError = err
	c.mu.Unlock()
}

// Think processes host input and advances the simulation up to the time
// the host has committed.
func (c *Client) Think() {
	defer c.recoverPanic()

	select {
	case conn := <-c.dialed:
		c.Attach(conn)
	default:
	}
	if c.stream == nil {
		return
	}

	c.receive()
	if c.stream == nil || c.State() != StatePlaying {
		return
	}

	if c.realSpeed == 0 || c.serverWaiting {
		c.time.FastForward()
	} else {
		c.time.Think(c.realSpeed)
	}
	ft := c.time.Time() - c.sim.GameTime()
	if ft < 0 {
		ft = 0
	}
	c.frametime = ft
	c.sim.RunQueue(ft)

	gametime := c.sim.GameTime()
	now := c.clock.Millis()
	if c.serverWaiting && gametime == c.time.NetworkTime() {
		c.sendTime(gametime, now)
		c.serverWaiting = false
	} else if gametime != c.lastTimestamp &&
		now-c.lastTimestampReal > c.cfg.ClientTimestampInterval.Milliseconds() {
		c.sendTime(gametime, now)
	}
}

func (c *Client) recoverPanic() {
	r := recover()
	if r == nil {
		return
	}
	c.log.Errorf("panic: %v", r)
	if c.sim != nil && c.State() == StatePlaying {
		emergencySave(c.sim, "crash", c.log)
	}
	panic(r)
}

func (c *Client) sendTime(gametime int32, now int64) {
	p := protocol.NewSendPacket(protocol.CmdTime)
	p.Signed32(gametime)
	c.send(p)
	c.lastTimestamp = gametime
	c.lastTimestampReal = now
}

func (c *Client) receive() {
	open := c.deser.Read(c.stream)
	for c.stream != nil && c.deser.Avail() {
		r, err := protocol.NewRecvPacket(&c.deser)
		if err == nil {
			err = c.handlePacket(r)
		}
		if err != nil {
			de := protocol.AsDisconnect(err)
			c.log.WithError(err).Warn("protocol error")
			if c.stream != nil {
				p := protocol.NewSendPacket(protocol.CmdDisconnect)
				p.String(de.Reason)
				_ = c.stream.Send(p)
			}
			c.fail(de)
			return
		}
	}
	if !open && c.stream != nil {
		c.fail(protocol.Disconnect(protocol.ReasonConnectionLost, nil))
	}
}

// fail ends the session with err and saves a running game.
func (c *Client) fail(err *protocol.DisconnectError) {
	if c.stream != nil {
		_ = c.stream.Close()
		c.stream = nil
	}
	wasPlaying := c.State() == StatePlaying
	c.setError(err)
	c.log.Infof("disconnected: %s", protocol.DescribeReason(err.Reason))
	if wasPlaying && c.sim != nil {
		emergencySave(c.sim, err.Reason, c.log)
	}
}

func (c *Client) send(p *protocol.SendPacket) {
	if c.stream == nil {
		return
	}
	if err := c.stream.Send(p); err != nil {
		c.fail(protocol.Disconnect(protocol.ReasonConnectionLost, err))
	}
}

func (c *Client) handlePacket(r *protocol.RecvPacket) error {
	cmd, err := r.Cmd()
	if err != nil {
		return err
	}
	state := c.State()

	switch cmd {
	case protocol.CmdDisconnect:
		reason, err := r.String()
		if err != nil {
			return err
		}
		c.fail(protocol.Disconnect(reason, nil))
		return nil

	case protocol.CmdHello:
		version, err := r.Unsigned8()
		if err != nil {
			return err
		}
		number, err := r.Signed32()
		if err != nil {
			return err
		}
		if version != protocol.Version {
			return protocol.Disconnect(protocol.ReasonProtocolMismatch,
				fmt.Errorf("host speaks version %d, client %d", version, protocol.Version))
		}
		if state != StateConnected {
			return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s in state %s", cmd, state))
		}
		c.player = number
		c.setState(StateJoinedGame)
		c.log.Infof("joined as player %d", number)
		c.sendDesiredSpeed()
		return nil

	case protocol.CmdPing:
		c.send(protocol.NewSendPacket(protocol.CmdPong))
		return nil

	case protocol.CmdChat:
		sender, err := r.String()
		if err != nil {
			return err
		}
		text, err := r.String()
		if err != nil {
			return err
		}
		pushChat(c.chat, messages.ChatMessage{Sender: sender, Text: text})
		return nil
	}

	if state != StateJoinedGame && state != StatePlaying {
		return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s before HELLO", cmd))
	}

	switch cmd {
	case protocol.CmdSettingMap:
		m, err := netconfig.ReadMap(r)
		if err != nil {
			return err
		}
		c.settings.Map = m
		return nil

	case protocol.CmdSettingTribes:
		tribes, err := netconfig.ReadTribes(r)
		if err != nil {
			return err
		}
		c.settings.Tribes = tribes
		return nil

	case protocol.CmdSettingAllPlayers:
		players, err := netconfig.ReadAllPlayers(r)
		if err != nil {
			return err
		}
		c.settings.Players = players
		return nil

	case protocol.CmdSettingPlayer:
		slot, err := r.Unsigned8()
		if err != nil {
			return err
		}
		ps, err := netconfig.ReadPlayer(r)
		if err != nil {
			return err
		}
		if int(slot) >= len(c.settings.Players) {
			return fmt.Errorf("setting for slot %d of %d", slot, len(c.settings.Players))
		}
		c.settings.Players[slot] = ps
		return nil

	case protocol.CmdSetPlayerNumber:
		number, err := r.Signed32()
		if err != nil {
			return err
		}
		c.player = number
		return nil

	case protocol.CmdSetSpeed:
		speed, err := r.Unsigned16()
		if err != nil {
			return err
		}
		c.realSpeed = uint32(speed)
		return nil

	case protocol.CmdLaunch:
		if state == StatePlaying {
			return protocol.Disconnect(protocol.ReasonUnexpectedCommand, errors.New("second LAUNCH"))
		}
		sim, err := c.newSim(c.settings.Clone())
		if err != nil {
			return fmt.Errorf("create simulation: %w", err)
		}
		c.sim = sim
		c.time.Reset(0)
		c.lastTimestamp = 0
		c.lastTimestampReal = c.clock.Millis()
		c.setState(StatePlaying)
		c.log.Infof("game launched on %q", c.settings.Map.Name)
		return nil
	}

	if state != StatePlaying {
		return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("%s before LAUNCH", cmd))
	}

	switch cmd {
	case protocol.CmdTime:
		t, err := r.Signed32()
		if err != nil {
			return err
		}
		return c.recvTime(t)

	case protocol.CmdPlayerCommand:
		t, err := r.Signed32()
		if err != nil {
			return err
		}
		pc, err := messages.Deserialize(r)
		if err != nil {
			return err
		}
		if err := c.recvTime(t); err != nil {
			return err
		}
		pc.SetDuetime(t)
		c.sim.Enqueue(pc)
		return nil

	case protocol.CmdSyncRequest:
		t, err := r.Signed32()
		if err != nil {
			return err
		}
		if err := c.recvTime(t); err != nil {
			return err
		}
		c.sim.EnqueueSyncCheck(t, func(hash protocol.SyncHash) {
			p := protocol.NewSendPacket(protocol.CmdSyncReport)
			p.Signed32(t)
			p.Data(hash[:])
			c.send(p)
		})
		return nil

	case protocol.CmdWait:
		c.serverWaiting = true
		return nil

	case protocol.CmdDesync:
		c.desynced = true
		c.log.Error("host reported a desync")
		pushChat(c.chat, messages.ChatMessage{Text: "The game is out of sync."})
		emergencySave(c.sim, "desync", c.log)
		return nil
	}

	return protocol.Disconnect(protocol.ReasonUnexpectedCommand, fmt.Errorf("unhandled %s", cmd))
}

func (c *Client) recvTime(t int32) error {
	if err := c.time.Recv(t); err != nil {
		return protocol.Disconnect(protocol.ReasonBackwardsTime, err)
	}
	return nil
}

// SendPlayerCommand forwards cmd to the host. It runs once the host echoes
// it back with a due time.
func (c *Client) SendPlayerCommand(cmd messages.PlayerCommand) {
	if c.State() != StatePlaying {
		c.log.Warnf("dropping player command %d outside a game", cmd.ID())
		return
	}
	if int32(cmd.Sender()) != c.player {
		c.log.Warnf("dropping command for player %d, we are %d", cmd.Sender(), c.player)
		return
	}
	gametime := c.sim.GameTime()
	p := protocol.NewSendPacket(protocol.CmdPlayerCommand)
	p.Signed32(gametime)
	cmd.Serialize(p)
	c.send(p)
	c.lastTimestamp = gametime
	c.lastTimestampReal = c.clock.Millis()
}

// ChangeTribe asks the host to change our tribe in the lobby.
func (c *Client) ChangeTribe(tribe string) {
	p := protocol.NewSendPacket(protocol.CmdSettingChangeTribe)
	p.String(tribe)
	c.send(p)
}

// ChangePosition asks the host to move us to another open slot.
func (c *Client) ChangePosition(slot uint8) {
	p := protocol.NewSendPacket(protocol.CmdSettingChangePosition)
	p.Unsigned8(slot)
	c.send(p)
}

func (c *Client) SendChat(text string) {
	p := protocol.NewSendPacket(protocol.CmdChat)
	p.String(text)
	c.send(p)
}

// DrainChat returns all chat lines received since the last call.
func (c *Client) DrainChat() []messages.ChatMessage {
	return drainChan(c.chat)
}

func (c *Client) FrameTime() int32 { return c.frametime }

func (c *Client) GameDescription() string { return "network client" }

func (c *Client) RealSpeed() uint32 {
	if c.serverWaiting {
		return 0
	}
	return c.realSpeed
}

func (c *Client) DesiredSpeed() uint32 { return c.desiredSpeed }

// SetDesiredSpeed tells the host which speed we would like. The effective
// speed is the host's median over all players.
func (c *Client) SetDesiredSpeed(speed uint32) {
	c.desiredSpeed = speed
	c.sendDesiredSpeed()
}

func (c *Client) sendDesiredSpeed() {
	state := c.State()
	if state != StateJoinedGame && state != StatePlaying {
		return
	}
	speed := c.desiredSpeed
	if speed > 0xFFFF {
		speed = 0xFFFF
	}
	p := protocol.NewSendPacket(protocol.CmdSetSpeed)
	p.Unsigned16(uint16(speed))
	c.send(p)
}

func (c *Client) PlayerNumber() int32 { return c.player }

// Settings returns a copy of the replicated session settings.
func (c *Client) Settings() netconfig.GameSettings { return c.settings.Clone() }

// Simulation returns the running simulation, or nil before launch.
func (c *Client) Simulation() Simulation { return c.sim }

// Desynced reports whether the host told us our game diverged.
func (c *Client) Desynced() bool { return c.desynced }
