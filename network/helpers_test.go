package network

import (
	"io"
	"net"
	"sync/atomic"
	"testing"
	"time"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/shared/protocol"
	"github.com/automoto/lockstep/systems"
	"github.com/sirupsen/logrus"
)

type fakeClock struct {
	ms atomic.Int64
}

func (c *fakeClock) Millis() int64 { return c.ms.Load() }

func (c *fakeClock) Advance(ms int64) { c.ms.Add(ms) }

func quietLogger() logrus.FieldLogger {
	l := logrus.New()
	l.SetOutput(io.Discard)
	return l
}

func lobbySettings() netconfig.GameSettings {
	return netconfig.GameSettings{
		Map: netconfig.MapInfo{Name: "Crossing", Filename: "crossing.map"},
		Tribes: []netconfig.TribeInfo{
			{Name: "barbarians", Initializations: []string{"headquarters"}},
			{Name: "empire", Initializations: []string{"headquarters", "trading outpost"}},
		},
		Players: make([]netconfig.PlayerSettings, 3),
	}
}

func gameFactory(econ config.EconomyConfig) SimulationFactory {
	return func(s netconfig.GameSettings) (Simulation, error) {
		g, err := systems.NewGame(s, econ, systems.GameOptions{Logger: quietLogger()})
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

func newTestHost(t *testing.T, cfg config.NetworkConfig, clock Clock) *Host {
	t.Helper()
	h, err := NewHost(cfg, HostOptions{
		LocalName:  "host",
		Settings:   lobbySettings(),
		Simulation: gameFactory(config.DefaultEconomy()),
		Clock:      clock,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewHost: %v", err)
	}
	t.Cleanup(func() { _ = h.Close() })
	return h
}

// joinClient connects a Client to h over an in-memory pipe.
func joinClient(t *testing.T, h *Host, cfg config.NetworkConfig, clock Clock, name string, econ config.EconomyConfig) *Client {
	t.Helper()
	return joinClientWith(t, h, cfg, clock, name, gameFactory(econ))
}

func joinClientWith(t *testing.T, h *Host, cfg config.NetworkConfig, clock Clock, name string, sims SimulationFactory) *Client {
	t.Helper()
	c, err := NewClient(cfg, ClientOptions{
		Name:       name,
		Simulation: sims,
		Clock:      clock,
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	hostSide, clientSide := net.Pipe()
	h.Accept(hostSide)
	c.Attach(clientSide)
	return c
}

type thinker interface {
	Think()
}

// pump runs Think on every peer until cond holds. Frames travel through
// reader goroutines, so it yields between rounds.
func pump(t *testing.T, cond func() bool, peers ...thinker) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not reached")
		}
		for _, p := range peers {
			p.Think()
		}
		time.Sleep(time.Millisecond)
	}
}

// tick advances the clock by ms and runs one round of Think.
func tick(clock *fakeClock, ms int64, peers ...thinker) thinker {
	return thinkFunc(func() {
		clock.Advance(ms)
		for _, p := range peers {
			p.Think()
		}
	})
}

type thinkFunc func()

func (f thinkFunc) Think() { f() }

// rawPeer speaks the wire protocol by hand.
type rawPeer struct {
	s *stream
	d protocol.Deserializer
}

func newRawPeer(conn net.Conn) *rawPeer {
	return &rawPeer{s: newStream(conn)}
}

func (p *rawPeer) send(t *testing.T, pkt *protocol.SendPacket) {
	t.Helper()
	if err := p.s.Send(pkt); err != nil {
		t.Fatalf("raw send: %v", err)
	}
}

// await pumps the peers until a frame with cmd arrives, skipping others.
func (p *rawPeer) await(t *testing.T, want protocol.Cmd, peers ...thinker) *protocol.RecvPacket {
	t.Helper()
	var got *protocol.RecvPacket
	pump(t, func() bool {
		p.d.Read(p.s)
		for p.d.Avail() {
			r, err := protocol.NewRecvPacket(&p.d)
			if err != nil {
				t.Fatalf("raw recv: %v", err)
			}
			cmd, _ := r.Cmd()
			if cmd == want {
				got = r
				return true
			}
		}
		return false
	}, peers...)
	return got
}

// hello joins the host as name and returns the assigned player number.
func (p *rawPeer) hello(t *testing.T, h *Host, name string) int32 {
	t.Helper()
	pkt := protocol.NewSendPacket(protocol.CmdHello)
	pkt.Unsigned8(protocol.Version)
	pkt.String(name)
	p.send(t, pkt)
	r := p.await(t, protocol.CmdHello, h)
	if _, err := r.Unsigned8(); err != nil {
		t.Fatal(err)
	}
	number, err := r.Signed32()
	if err != nil {
		t.Fatal(err)
	}
	return number
}

func attachRawPeer(h *Host) *rawPeer {
	hostSide, peerSide := net.Pipe()
	p := newRawPeer(peerSide)
	h.Accept(hostSide)
	return p
}

func disconnectReason(t *testing.T, r *protocol.RecvPacket) string {
	t.Helper()
	reason, err := r.String()
	if err != nil {
		t.Fatalf("DISCONNECT payload: %v", err)
	}
	return reason
}

// fakeSim records what a controller asks of it. Sync checks report hash
// once the fake time reaches them.
type fakeSim struct {
	time     int32
	enqueued []messages.PlayerCommand
	runs     []int32
	panicOn  bool
	saved    []string
	hash     protocol.SyncHash
	checks   []fakeSyncCheck
}

type fakeSyncCheck struct {
	due    int32
	report func(protocol.SyncHash)
}

func fixedSim(sim *fakeSim) SimulationFactory {
	return func(netconfig.GameSettings) (Simulation, error) { return sim, nil }
}

func (s *fakeSim) GameTime() int32 { return s.time }

func (s *fakeSim) Enqueue(cmd messages.PlayerCommand) { s.enqueued = append(s.enqueued, cmd) }

func (s *fakeSim) EnqueueSyncCheck(due int32, report func(protocol.SyncHash)) {
	s.checks = append(s.checks, fakeSyncCheck{due: due, report: report})
}

func (s *fakeSim) RunQueue(frametime int32) {
	if s.panicOn {
		panic("simulation exploded")
	}
	s.runs = append(s.runs, frametime)
	s.time += frametime

	pending := s.checks[:0]
	for _, c := range s.checks {
		if c.due <= s.time {
			c.report(s.hash)
		} else {
			pending = append(pending, c)
		}
	}
	s.checks = pending
}

func (s *fakeSim) SyncHash() protocol.SyncHash { return s.hash }

func (s *fakeSim) EmergencySave(reason string) error {
	s.saved = append(s.saved, reason)
	return nil
}
