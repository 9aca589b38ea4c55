package systems

import (
	"github.com/automoto/lockstep/components"
	cfg "github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
)

// execute applies a player command. Commands the issuing player cannot
// afford or is not allowed to give are ignored, identically on every peer.
func (g *Game) execute(cmd messages.PlayerCommand) {
	g.sync.Unsigned8(uint8(cmd.ID()))
	g.sync.Unsigned8(cmd.Sender())
	g.sync.Signed32(cmd.Duetime())

	entry, ok := g.players[cmd.Sender()]
	if !ok {
		g.log.Debugf("command %d from unseated player %d", cmd.ID(), cmd.Sender())
		return
	}
	player := components.Player.Get(entry)

	switch c := cmd.(type) {
	case *messages.Build:
		kind := cfg.BuildingKind(c.Kind)
		if kind >= cfg.BuildingCount {
			return
		}
		cost := int64(g.econ.Buildings[kind].Cost)
		if player.Credits < cost {
			return
		}
		if _, taken := g.BuildingAt(c.X, c.Y); taken {
			return
		}
		player.Credits -= cost
		player.Built++
		g.addBuilding(player.Slot, kind, c.X, c.Y)
		g.sync.Signed64(player.Credits)

	case *messages.Bulldoze:
		entry, ok := g.buildings[c.Building]
		if !ok {
			return
		}
		b := components.Building.Get(entry)
		if b.Owner != player.Slot {
			return
		}
		player.Credits += int64(g.econ.Buildings[b.Kind].Refund)
		g.removeBuilding(c.Building)
		g.sync.Signed64(player.Credits)

	case *messages.SetPriority:
		if c.Priority >= g.econ.PriorityLevels {
			return
		}
		player.Priority = c.Priority
		g.sync.Unsigned8(player.Priority)
	}
}

func (g *Game) scheduleTick(due int32) {
	if g.econ.TickInterval <= 0 {
		return
	}
	g.queue.push(due, categoryGame, func(g *Game) {
		g.tick()
		g.scheduleTick(g.time + g.econ.TickInterval)
	})
}

// tick pays out building income. Each player with a non-zero priority also
// draws a random bonus of up to MaxBonus per priority level.
func (g *Game) tick() {
	econ := components.Economy.Get(g.economy)
	econ.Ticks++
	econ.LastTick = g.time

	income := make(map[uint8]int64, len(g.players))
	for _, id := range g.order {
		b := components.Building.Get(g.buildings[id])
		income[b.Owner] += int64(g.econ.Buildings[b.Kind].Income)
	}
	for _, slot := range g.slots() {
		player := components.Player.Get(g.players[slot])
		earned := income[slot]
		if player.Priority > 0 && earned > 0 && g.econ.MaxBonus > 0 {
			earned += int64(player.Priority) * int64(g.rng.IntN(int(g.econ.MaxBonus)+1))
		}
		player.Credits += earned
		g.sync.Unsigned8(slot)
		g.sync.Signed64(player.Credits)
	}
}
