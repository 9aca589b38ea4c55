package systems

import (
	"testing"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/shared/protocol"
)

func testSettings() netconfig.GameSettings {
	return netconfig.GameSettings{
		Map:    netconfig.MapInfo{Name: "Crossing", Filename: "crossing.map"},
		Tribes: []netconfig.TribeInfo{{Name: "barbarians", Initializations: []string{"headquarters"}}},
		Players: []netconfig.PlayerSettings{
			{State: netconfig.SlotHuman, Name: "alice", Tribe: "barbarians"},
			{State: netconfig.SlotComputer, Name: "Computer 2", Tribe: "barbarians"},
			{State: netconfig.SlotOpen},
		},
	}
}

func newTestGame(t *testing.T) *Game {
	t.Helper()
	g, err := NewGame(testSettings(), config.DefaultEconomy(), GameOptions{})
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	return g
}

func build(player uint8, due int32, kind config.BuildingKind, x, y int16) *messages.Build {
	return &messages.Build{
		Header: messages.Header{Player: player, Due: due},
		Kind:   uint8(kind),
		X:      x,
		Y:      y,
	}
}

func TestNewGameSeatsOccupiedSlots(t *testing.T) {
	g := newTestGame(t)
	players := g.Players()
	if len(players) != 2 {
		t.Fatalf("seated %d players, want 2", len(players))
	}
	if players[0].Name != "alice" || players[1].Slot != 1 {
		t.Fatalf("unexpected players %+v", players)
	}
	if players[0].Credits != int64(config.DefaultEconomy().StartingCredits) {
		t.Fatalf("credits = %d", players[0].Credits)
	}
}

func TestNewGameWithoutPlayers(t *testing.T) {
	s := testSettings()
	for i := range s.Players {
		s.Players[i] = netconfig.PlayerSettings{State: netconfig.SlotOpen}
	}
	if _, err := NewGame(s, config.DefaultEconomy(), GameOptions{}); err == nil {
		t.Fatal("expected an error for a game without players")
	}
}

func TestCommandRunsAtDueTime(t *testing.T) {
	g := newTestGame(t)
	g.Enqueue(build(0, 50, config.BuildingHut, 1, 1))

	g.RunQueue(49)
	if _, ok := g.BuildingAt(1, 1); ok {
		t.Fatal("command ran before its due time")
	}
	g.RunQueue(1)
	b, ok := g.BuildingAt(1, 1)
	if !ok {
		t.Fatal("command did not run at its due time")
	}
	if b.BuiltAt != 50 || b.Owner != 0 {
		t.Fatalf("building = %+v", b)
	}
	if g.GameTime() != 50 {
		t.Fatalf("game time = %d, want 50", g.GameTime())
	}
}

func TestSameDueTimeRunsInEnqueueOrder(t *testing.T) {
	econ := config.DefaultEconomy()
	econ.StartingCredits = econ.Buildings[config.BuildingHut].Cost
	g, err := NewGame(testSettings(), econ, GameOptions{})
	if err != nil {
		t.Fatal(err)
	}
	// Only the first of two builds is affordable.
	g.Enqueue(build(0, 10, config.BuildingHut, 3, 0))
	g.Enqueue(build(0, 10, config.BuildingHut, 4, 0))
	g.RunQueue(10)

	if _, ok := g.BuildingAt(3, 0); !ok {
		t.Fatal("first command lost")
	}
	if _, ok := g.BuildingAt(4, 0); ok {
		t.Fatal("second command ran although credits were spent")
	}
}

func TestSyncCheckSeesCommandsDueWithIt(t *testing.T) {
	g := newTestGame(t)
	var got protocol.SyncHash
	g.EnqueueSyncCheck(20, func(h protocol.SyncHash) { got = h })
	g.Enqueue(build(0, 20, config.BuildingFarm, 0, 0))
	g.RunQueue(20)

	if got != g.SyncHash() {
		t.Fatalf("sync check ran before the command due with it: %s vs %s", got, g.SyncHash())
	}
}

func TestSyncHashIsDeterministic(t *testing.T) {
	run := func(extra bool) protocol.SyncHash {
		g := newTestGame(t)
		g.Enqueue(build(0, 100, config.BuildingFarm, 0, 0))
		g.Enqueue(&messages.SetPriority{Header: messages.Header{Player: 0, Due: 200}, Priority: 2})
		if extra {
			g.Enqueue(build(1, 300, config.BuildingHut, 5, 5))
		}
		for i := 0; i < 50; i++ {
			g.RunQueue(100)
		}
		return g.SyncHash()
	}

	a, b := run(false), run(false)
	if a != b {
		t.Fatalf("identical command streams diverged: %s vs %s", a, b)
	}
	if c := run(true); c == a {
		t.Fatal("different command streams produced the same hash")
	}
}

func TestSyncHashDoesNotAdvanceState(t *testing.T) {
	g := newTestGame(t)
	first := g.SyncHash()
	if second := g.SyncHash(); second != first {
		t.Fatalf("reading the hash changed it: %s vs %s", first, second)
	}
}

func TestEnqueueInThePastPanics(t *testing.T) {
	g := newTestGame(t)
	g.RunQueue(100)
	defer func() {
		if recover() == nil {
			t.Fatal("expected a panic")
		}
	}()
	g.Enqueue(build(0, 99, config.BuildingHut, 0, 0))
}

func TestBulldozeOnlyOwnBuildings(t *testing.T) {
	g := newTestGame(t)
	g.Enqueue(build(0, 1, config.BuildingHut, 0, 0))
	g.RunQueue(1)
	b, _ := g.BuildingAt(0, 0)

	g.Enqueue(&messages.Bulldoze{Header: messages.Header{Player: 1, Due: 2}, Building: b.ID})
	g.RunQueue(1)
	if _, ok := g.BuildingAt(0, 0); !ok {
		t.Fatal("player 1 bulldozed player 0's building")
	}

	before, _ := g.Player(0)
	g.Enqueue(&messages.Bulldoze{Header: messages.Header{Player: 0, Due: 3}, Building: b.ID})
	g.RunQueue(1)
	if _, ok := g.BuildingAt(0, 0); ok {
		t.Fatal("owner could not bulldoze")
	}
	after, _ := g.Player(0)
	refund := int64(config.DefaultEconomy().Buildings[config.BuildingHut].Refund)
	if after.Credits != before.Credits+refund {
		t.Fatalf("credits %d, want %d", after.Credits, before.Credits+refund)
	}
}

func TestEconomyTickPaysIncome(t *testing.T) {
	econ := config.DefaultEconomy()
	g := newTestGame(t)
	g.Enqueue(build(0, 1, config.BuildingMine, 0, 0))
	g.RunQueue(econ.TickInterval)

	p, _ := g.Player(0)
	want := int64(econ.StartingCredits - econ.Buildings[config.BuildingMine].Cost + econ.Buildings[config.BuildingMine].Income)
	if p.Credits != want {
		t.Fatalf("credits after one tick = %d, want %d", p.Credits, want)
	}
}
