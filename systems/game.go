// Package systems holds the deterministic economy simulation driven by the
// network controllers. Everything that changes game state runs from the
// command queue so all peers apply it at the same game time.
package systems

import (
	"errors"
	"fmt"
	"slices"

	"github.com/automoto/lockstep/archetypes"
	"github.com/automoto/lockstep/components"
	cfg "github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/shared/protocol"
	"github.com/sirupsen/logrus"
	"github.com/yohamta/donburi"
)

// GameOptions configures optional collaborators of a Game.
type GameOptions struct {
	Store  Store  // Emergency saves are skipped without one
	Label  string // Identifies the session in saves
	Logger logrus.FieldLogger
}

// Game is the deterministic simulation. Only the goroutine driving the
// controller may touch it.
type Game struct {
	world    donburi.World
	econ     cfg.EconomyConfig
	settings netconfig.GameSettings
	log      logrus.FieldLogger
	store    Store
	label    string

	time    int32
	queue   commandQueue
	sync    *SyncStream
	rng     *Random
	economy *donburi.Entry

	players   map[uint8]*donburi.Entry
	buildings map[uint32]*donburi.Entry
	order     []uint32 // building ids ascending
}

// NewGame seats every human and computer slot of settings.
func NewGame(settings netconfig.GameSettings, econ cfg.EconomyConfig, opts GameOptions) (*Game, error) {
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "game")
	}
	sync := NewSyncStream()
	g := &Game{
		world:     donburi.NewWorld(),
		econ:      econ,
		settings:  settings.Clone(),
		log:       opts.Logger,
		store:     opts.Store,
		label:     opts.Label,
		sync:      sync,
		rng:       NewRandom(econ.Seed, sync),
		players:   make(map[uint8]*donburi.Entry),
		buildings: make(map[uint32]*donburi.Entry),
	}
	g.economy = archetypes.Economy.Spawn(g.world)
	components.Economy.SetValue(g.economy, components.EconomyData{NextBuildingID: 1})

	for slot, ps := range settings.Players {
		if ps.State != netconfig.SlotHuman && ps.State != netconfig.SlotComputer {
			continue
		}
		entry := archetypes.Player.Spawn(g.world)
		components.Player.SetValue(entry, components.PlayerData{
			Slot:    uint8(slot),
			Name:    ps.Name,
			Tribe:   ps.Tribe,
			Credits: int64(econ.StartingCredits),
		})
		g.players[uint8(slot)] = entry
		g.sync.Unsigned8(uint8(slot))
		g.sync.String(ps.Tribe)
		g.sync.Signed64(int64(econ.StartingCredits))
	}
	if len(g.players) == 0 {
		return nil, errors.New("no seated players")
	}

	g.scheduleTick(econ.TickInterval)
	return g, nil
}

// GameTime is the time up to which the queue has run.
func (g *Game) GameTime() int32 { return g.time }

// Enqueue schedules a player command. Scheduling into the past is a
// programming error.
func (g *Game) Enqueue(cmd messages.PlayerCommand) {
	due := cmd.Duetime()
	if due < g.time {
		panic(fmt.Sprintf("player command due at %d enqueued at %d", due, g.time))
	}
	g.queue.push(due, categoryPlayer, func(g *Game) { g.execute(cmd) })
}

// EnqueueSyncCheck reports the sync hash once the queue reaches duetime.
func (g *Game) EnqueueSyncCheck(duetime int32, report func(protocol.SyncHash)) {
	if duetime < g.time {
		panic(fmt.Sprintf("sync check due at %d enqueued at %d", duetime, g.time))
	}
	g.queue.push(duetime, categorySync, func(g *Game) { report(g.SyncHash()) })
}

// RunQueue executes every command due up to GameTime()+frametime.
func (g *Game) RunQueue(frametime int32) {
	target := g.time + max(frametime, 0)
	for {
		cmd, ok := g.queue.popDue(target)
		if !ok {
			break
		}
		g.time = cmd.due
		cmd.run(g)
	}
	g.time = target
}

func (g *Game) SyncHash() protocol.SyncHash {
	return g.sync.Sum()
}

// Player returns the state of the player in slot.
func (g *Game) Player(slot uint8) (components.PlayerData, bool) {
	entry, ok := g.players[slot]
	if !ok {
		return components.PlayerData{}, false
	}
	return *components.Player.Get(entry), true
}

// Players returns every seated player ordered by slot.
func (g *Game) Players() []components.PlayerData {
	out := make([]components.PlayerData, 0, len(g.players))
	for _, slot := range g.slots() {
		out = append(out, *components.Player.Get(g.players[slot]))
	}
	return out
}

// Buildings returns the buildings owned by player, oldest first.
func (g *Game) Buildings(player uint8) []components.BuildingData {
	var out []components.BuildingData
	for _, id := range g.order {
		b := components.Building.Get(g.buildings[id])
		if b.Owner == player {
			out = append(out, *b)
		}
	}
	return out
}

// BuildingAt returns the building occupying x, y.
func (g *Game) BuildingAt(x, y int16) (components.BuildingData, bool) {
	for _, id := range g.order {
		b := components.Building.Get(g.buildings[id])
		if b.X == x && b.Y == y {
			return *b, true
		}
	}
	return components.BuildingData{}, false
}

func (g *Game) Economy() cfg.EconomyConfig { return g.econ }

// Settings returns the settings the game was launched with.
func (g *Game) Settings() netconfig.GameSettings { return g.settings.Clone() }

func (g *Game) slots() []uint8 {
	out := make([]uint8, 0, len(g.players))
	for slot := range g.players {
		out = append(out, slot)
	}
	slices.Sort(out)
	return out
}

func (g *Game) addBuilding(owner uint8, kind cfg.BuildingKind, x, y int16) uint32 {
	econ := components.Economy.Get(g.economy)
	id := econ.NextBuildingID
	econ.NextBuildingID++

	entry := archetypes.Building.Spawn(g.world)
	components.Building.SetValue(entry, components.BuildingData{
		ID:      id,
		Owner:   owner,
		Kind:    kind,
		X:       x,
		Y:       y,
		BuiltAt: g.time,
	})
	g.buildings[id] = entry
	g.order = append(g.order, id)

	g.sync.Unsigned8('B')
	g.sync.Unsigned32(id)
	g.sync.Unsigned8(owner)
	g.sync.Unsigned8(uint8(kind))
	g.sync.Unsigned16(uint16(x))
	g.sync.Unsigned16(uint16(y))
	return id
}

func (g *Game) removeBuilding(id uint32) {
	entry, ok := g.buildings[id]
	if !ok {
		return
	}
	g.world.Remove(entry.Entity())
	delete(g.buildings, id)
	if i := slices.Index(g.order, id); i >= 0 {
		g.order = slices.Delete(g.order, i, i+1)
	}

	g.sync.Unsigned8('R')
	g.sync.Unsigned32(id)
}
