package network

import (
	"errors"
	"io"
	"net"
	"testing"
	"time"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/shared/protocol"
	"github.com/automoto/lockstep/systems"
)

func lockstepConfig() config.NetworkConfig {
	cfg := config.DefaultNetwork()
	cfg.SyncReportInterval = 300
	return cfg
}

func launch(t *testing.T, h *Host, clock *fakeClock, clients ...*Client) {
	t.Helper()
	peers := []thinker{h}
	for _, c := range clients {
		peers = append(peers, c)
	}
	pump(t, func() bool {
		for _, c := range clients {
			if c.State() != StateJoinedGame {
				return false
			}
		}
		return true
	}, peers...)
	if err := h.Launch(); err != nil {
		t.Fatalf("Launch: %v", err)
	}
	pump(t, func() bool {
		for _, c := range clients {
			if c.State() != StatePlaying || c.RealSpeed() == 0 {
				return false
			}
		}
		return true
	}, peers...)
}

func gameOf(t *testing.T, c interface{ Simulation() Simulation }) *systems.Game {
	t.Helper()
	g, ok := c.Simulation().(*systems.Game)
	if !ok {
		t.Fatalf("simulation is %T", c.Simulation())
	}
	return g
}

func TestClientHandshakeReplicatesSettings(t *testing.T) {
	cfg := config.DefaultNetwork()
	clock := &fakeClock{}
	h := newTestHost(t, cfg, clock)
	c := joinClient(t, h, cfg, clock, "bob", config.DefaultEconomy())

	pump(t, func() bool {
		s := c.Settings()
		return c.State() == StateJoinedGame && len(s.Players) == 3 && s.Players[1].Name == "bob"
	}, h, c)

	if c.PlayerNumber() != 1 {
		t.Fatalf("player number = %d, want 1", c.PlayerNumber())
	}
	s := c.Settings()
	if s.Map.Name != "Crossing" || len(s.Tribes) != 2 {
		t.Fatalf("replicated settings %+v", s)
	}
	if s.Players[0].Name != "host" || s.Players[0].State != netconfig.SlotHuman {
		t.Fatalf("slot 0 = %+v", s.Players[0])
	}
}

func TestClientSettingChangesReachHost(t *testing.T) {
	cfg := config.DefaultNetwork()
	clock := &fakeClock{}
	h := newTestHost(t, cfg, clock)
	c := joinClient(t, h, cfg, clock, "bob", config.DefaultEconomy())
	pump(t, func() bool { return c.State() == StateJoinedGame }, h, c)

	c.ChangeTribe("empire")
	pump(t, func() bool { return c.Settings().Players[1].Tribe == "empire" }, h, c)
	if h.Settings().Players[1].Tribe != "empire" {
		t.Fatal("host did not apply the tribe change")
	}

	c.ChangePosition(2)
	pump(t, func() bool { return c.PlayerNumber() == 2 }, h, c)
	s := c.Settings()
	if s.Players[1].State != netconfig.SlotOpen || s.Players[2].Name != "bob" {
		t.Fatalf("replicated players after move: %+v", s.Players)
	}
}

func TestLockstepPeersAgree(t *testing.T) {
	cfg := lockstepConfig()
	clock := &fakeClock{}
	h := newTestHost(t, cfg, clock)
	a := joinClient(t, h, cfg, clock, "alice", config.DefaultEconomy())
	b := joinClient(t, h, cfg, clock, "bob", config.DefaultEconomy())
	launch(t, h, clock, a, b)

	a.SendPlayerCommand(&messages.Build{
		Header: messages.Header{Player: uint8(a.PlayerNumber())},
		Kind:   uint8(config.BuildingFarm),
		X:      7,
		Y:      7,
	})
	h.SendPlayerCommand(&messages.SetPriority{Header: messages.Header{Player: 0}, Priority: 2})

	step := tick(clock, 20, h, a, b)
	pump(t, func() bool {
		for _, g := range []*systems.Game{gameOf(t, h), gameOf(t, a), gameOf(t, b)} {
			if _, ok := g.BuildingAt(7, 7); !ok {
				return false
			}
		}
		return true
	}, step)

	hostBuilding, _ := gameOf(t, h).BuildingAt(7, 7)
	for _, c := range []*Client{a, b} {
		got, _ := gameOf(t, c).BuildingAt(7, 7)
		if got != hostBuilding {
			t.Fatalf("client building %+v, host %+v", got, hostBuilding)
		}
	}
	if hostBuilding.Owner != uint8(a.PlayerNumber()) {
		t.Fatalf("owner = %d, want %d", hostBuilding.Owner, a.PlayerNumber())
	}

	pump(t, func() bool { return h.Status().SyncRounds >= 3 }, step)
	if d := h.Status().Desyncs; d != 0 {
		t.Fatalf("%d desyncs between identical simulations", d)
	}
	for _, c := range []*Client{a, b} {
		if c.State() != StatePlaying || c.Desynced() {
			t.Fatalf("client in state %s, desynced %v", c.State(), c.Desynced())
		}
		if gt, nt := gameOf(t, c).GameTime(), c.time.NetworkTime(); gt > nt {
			t.Fatalf("client simulated to %d beyond network time %d", gt, nt)
		}
	}
}

func TestDesyncDisconnectsOnlyDivergingClient(t *testing.T) {
	cfg := lockstepConfig()
	clock := &fakeClock{}
	h := newTestHost(t, cfg, clock)
	good := joinClient(t, h, cfg, clock, "good", config.DefaultEconomy())
	divergent := config.DefaultEconomy()
	divergent.StartingCredits = 999
	bad := joinClient(t, h, cfg, clock, "bad", divergent)
	launch(t, h, clock, good, bad)

	pump(t, func() bool { return bad.State() == StateError }, tick(clock, 20, h, good, bad))

	var de *protocol.DisconnectError
	if !errors.As(bad.LastError(), &de) || de.Reason != protocol.ReasonClientDesynced {
		t.Fatalf("bad client error = %v, want %s", bad.LastError(), protocol.ReasonClientDesynced)
	}
	pump(t, good.Desynced, h, good)
	if good.State() != StatePlaying {
		t.Fatalf("good client state = %s", good.State())
	}
	if h.Status().Desyncs != 1 {
		t.Fatalf("desyncs = %d, want 1", h.Status().Desyncs)
	}
}

func TestClientErrorsWhenHostLeaves(t *testing.T) {
	cfg := config.DefaultNetwork()
	clock := &fakeClock{}
	h := newTestHost(t, cfg, clock)
	c := joinClient(t, h, cfg, clock, "bob", config.DefaultEconomy())
	pump(t, func() bool { return c.State() == StateJoinedGame }, h, c)

	if err := h.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	pump(t, func() bool { return c.State() == StateError }, c)

	var de *protocol.DisconnectError
	if !errors.As(c.LastError(), &de) || de.Reason != protocol.ReasonServerLeft {
		t.Fatalf("error = %v, want %s", c.LastError(), protocol.ReasonServerLeft)
	}
}

func TestClientSendsDesiredSpeed(t *testing.T) {
	cfg := config.DefaultNetwork()
	clock := &fakeClock{}
	h := newTestHost(t, cfg, clock)
	c := joinClient(t, h, cfg, clock, "bob", config.DefaultEconomy())
	launch(t, h, clock, c)

	c.SetDesiredSpeed(3000)
	pump(t, func() bool { return c.RealSpeed() == 2000 }, h, c)
	if h.RealSpeed() != 2000 {
		t.Fatalf("host speed = %d, want 2000", h.RealSpeed())
	}
}

func TestClientDropsCommandsForOtherPlayers(t *testing.T) {
	cfg := config.DefaultNetwork()
	clock := &fakeClock{}
	h := newTestHost(t, cfg, clock)
	c := joinClient(t, h, cfg, clock, "bob", config.DefaultEconomy())
	launch(t, h, clock, c)

	c.SendPlayerCommand(&messages.SetPriority{Header: messages.Header{Player: 0}, Priority: 1})
	for i := 0; i < 20; i++ {
		h.Think()
		c.Think()
	}
	if c.State() != StatePlaying {
		t.Fatalf("client state = %s after a foreign command", c.State())
	}
}

func TestPromptAcksNeverTriggerWait(t *testing.T) {
	cfg := config.DefaultNetwork()
	cfg.ServerTimestampInterval = time.Second
	cfg.SyncReportInterval = 2000
	clock := &fakeClock{}
	h := newTestHost(t, cfg, clock)
	c := joinClient(t, h, cfg, clock, "alice", config.DefaultEconomy())
	launch(t, h, clock, c)

	waited := false
	step := tick(clock, 50, h, c)
	watch := func(done func(SessionStatus) bool) func() bool {
		return func() bool {
			s := h.Status()
			waited = waited || s.Waiting
			return done(s)
		}
	}

	pump(t, watch(func(s SessionStatus) bool { return s.CommittedTime > 0 }), step)
	if got := h.Status().CommittedTime; got != 1000 {
		t.Fatalf("first heartbeat committed %d, want 1000", got)
	}

	pump(t, watch(func(s SessionStatus) bool { return s.SyncRounds >= 1 }), step)
	if waited {
		t.Fatal("host waited for a client that acknowledged every heartbeat")
	}
	status := h.Status()
	if status.Desyncs != 0 {
		t.Fatalf("%d desyncs", status.Desyncs)
	}
	if c.State() != StatePlaying {
		t.Fatalf("client state %s", c.State())
	}
	if len(status.Peers) != 2 {
		t.Fatalf("peers = %+v", status.Peers)
	}
}

func idleClient(t *testing.T) *Client {
	t.Helper()
	c, err := NewClient(config.DefaultNetwork(), ClientOptions{
		Name:       "bob",
		Simulation: fixedSim(&fakeSim{}),
		Clock:      &fakeClock{},
		Logger:     quietLogger(),
	})
	if err != nil {
		t.Fatalf("NewClient: %v", err)
	}
	return c
}

// startDial puts c in the state Connect leaves it in without dialing.
func startDial(c *Client) uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.state = StateConnecting
	c.dialGen++
	return c.dialGen
}

func assertClosed(t *testing.T, conn net.Conn) {
	t.Helper()
	if _, err := conn.Read(make([]byte, 1)); err == nil {
		t.Fatal("dialed connection was left open")
	}
}

func TestDisconnectDropsDialFinishingLater(t *testing.T) {
	c := idleClient(t)
	gen := startDial(c)
	c.Disconnect()

	local, remote := net.Pipe()
	c.finishDial(gen, local, nil)
	c.Think()

	if c.State() != StateDisconnected || c.stream != nil {
		t.Fatalf("state %s, stream attached %v", c.State(), c.stream != nil)
	}
	assertClosed(t, remote)
}

func TestDisconnectDropsDeliveredDial(t *testing.T) {
	c := idleClient(t)
	gen := startDial(c)
	local, remote := net.Pipe()
	c.finishDial(gen, local, nil)
	c.Disconnect()
	c.Think()

	if c.State() != StateDisconnected || c.stream != nil {
		t.Fatalf("state %s, stream attached %v", c.State(), c.stream != nil)
	}
	assertClosed(t, remote)
}

func TestSupersededDialIsDropped(t *testing.T) {
	c := idleClient(t)
	stale := startDial(c)
	current := startDial(c)

	staleLocal, staleRemote := net.Pipe()
	c.finishDial(stale, staleLocal, nil)
	c.finishDial(stale, nil, errors.New("connection refused"))
	if c.State() != StateConnecting || c.LastError() != nil {
		t.Fatalf("stale dial changed state to %s (%v)", c.State(), c.LastError())
	}
	assertClosed(t, staleRemote)

	local, remote := net.Pipe()
	defer remote.Close()
	go func() { _, _ = io.Copy(io.Discard, remote) }()
	c.finishDial(current, local, nil)
	c.Think()
	if c.State() != StateConnected || c.stream == nil {
		t.Fatalf("current dial not attached, state %s", c.State())
	}
}

func TestReconnectDropsUnattachedDial(t *testing.T) {
	c := idleClient(t)
	gen := startDial(c)
	local, remote := net.Pipe()
	c.finishDial(gen, local, nil)

	c.Connect("127.0.0.1:1")
	assertClosed(t, remote)
	c.Disconnect()
}
