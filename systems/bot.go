package systems

import (
	cfg "github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/shared/messages"
)

// ComputerPlayer runs a simple build order for one slot. It only reads the
// game and acts through send, so its commands are scheduled and relayed
// like any human's. It must never touch the logic RNG.
type ComputerPlayer struct {
	game      *Game
	player    uint8
	send      func(messages.PlayerCommand)
	tuning    cfg.BotDifficultyConfig
	nextThink int32
}

func NewComputerPlayer(g *Game, player uint8, send func(messages.PlayerCommand), tuning cfg.BotDifficultyConfig) *ComputerPlayer {
	return &ComputerPlayer{
		game:      g,
		player:    player,
		send:      send,
		tuning:    tuning,
		nextThink: g.GameTime() + tuning.ThinkInterval,
	}
}

func (b *ComputerPlayer) Think() {
	now := b.game.GameTime()
	if now < b.nextThink {
		return
	}
	b.nextThink = now + b.tuning.ThinkInterval

	p, ok := b.game.Player(b.player)
	if !ok {
		return
	}
	owned := b.game.Buildings(b.player)

	// Keep income focus high once a few buildings stand.
	if len(owned) >= 2 && p.Priority+1 < b.game.econ.PriorityLevels {
		b.send(&messages.SetPriority{
			Header:   messages.Header{Player: b.player},
			Priority: p.Priority + 1,
		})
		return
	}
	if len(owned) >= b.tuning.MaxBuildings {
		return
	}

	kind, ok := b.pickBuilding(p.Credits)
	if !ok {
		return
	}
	x, y := b.site(p.Built)
	b.send(&messages.Build{
		Header: messages.Header{Player: b.player},
		Kind:   uint8(kind),
		X:      x,
		Y:      y,
	})
}

// pickBuilding returns the most expensive kind affordable above the reserve.
func (b *ComputerPlayer) pickBuilding(credits int64) (cfg.BuildingKind, bool) {
	for kind := cfg.BuildingCount - 1; ; kind-- {
		cost := int64(b.game.econ.Buildings[kind].Cost)
		if credits-cost >= int64(b.tuning.CreditReserve) {
			return kind, true
		}
		if kind == 0 {
			return 0, false
		}
	}
}

// site spreads a player's buildings over a row of its own.
func (b *ComputerPlayer) site(n int) (int16, int16) {
	return int16(n % 16), int16(b.player)*16 + int16(n/16)
}
