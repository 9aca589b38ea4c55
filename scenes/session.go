package scenes

import (
	"fmt"
	"strings"
	"sync"

	cfg "github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/network"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/systems"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/hajimehoshi/ebiten/v2/vector"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

const speedStep = 250

// SessionScene drives a running game through its controller and draws the
// building grid of the economy simulation.
type SessionScene struct {
	ecs          *ecs.ECS
	sceneChanger SceneChanger
	controller   network.GameController
	game         *systems.Game
	player       int32
	kind         cfg.BuildingKind
	chat         chatLog
	input        chatInput
	ended        string
	once         sync.Once
}

// NewSessionScene plays sim through controller as player. A negative
// player only watches.
func NewSessionScene(sc SceneChanger, controller network.GameController, sim network.Simulation, player int32) *SessionScene {
	game, _ := sim.(*systems.Game)
	return &SessionScene{
		sceneChanger: sc,
		controller:   controller,
		game:         game,
		player:       player,
		chat:         chatLog{max: cfg.Display.ChatLines},
	}
}

func (ss *SessionScene) Update() {
	ss.once.Do(ss.configure)
	ss.ecs.Update()

	if ss.ended != "" {
		ss.sceneChanger.ChangeScene(NewGameOverScene(ss.sceneChanger, ss.ended))
	}
}

func (ss *SessionScene) Draw(screen *ebiten.Image) {
	screen.Fill(cfg.Background)

	if ss.ecs == nil {
		return
	}
	ss.ecs.Draw(screen)
}

func (ss *SessionScene) configure() {
	ss.ecs = ecs.NewECS(donburi.NewWorld())

	ss.ecs.AddSystem(ss.updateController)
	ss.ecs.AddSystem(ss.updateInput)

	ss.ecs.AddRenderer(layerDefault, ss.drawBoard)
	ss.ecs.AddRenderer(layerOverlay, ss.drawHUD)
}

func (ss *SessionScene) updateController(_ *ecs.ECS) {
	ss.controller.Think()
	if c, ok := ss.controller.(chatter); ok {
		ss.chat.add(c.DrainChat())
	}
	if client, ok := ss.controller.(*network.Client); ok {
		if s := client.State(); s == network.StateError || s == network.StateDisconnected {
			ss.ended = describeError(client.LastError())
		}
	}
}

func (ss *SessionScene) updateInput(_ *ecs.ECS) {
	c, canChat := ss.controller.(chatter)
	typing := ss.input.open
	if canChat {
		if text, ok := ss.input.update(); ok {
			c.SendChat(text)
		}
	}
	if typing || ss.input.open {
		return
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		ss.leave()
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEqual) {
		ss.controller.SetDesiredSpeed(ss.controller.DesiredSpeed() + speedStep)
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyMinus) && ss.controller.DesiredSpeed() >= speedStep {
		ss.controller.SetDesiredSpeed(ss.controller.DesiredSpeed() - speedStep)
	}

	if ss.player < 0 || ss.game == nil {
		return
	}
	me := uint8(ss.player)
	for i, key := range []ebiten.Key{ebiten.Key1, ebiten.Key2, ebiten.Key3} {
		if inpututil.IsKeyJustPressed(key) && i < int(cfg.BuildingCount) {
			ss.kind = cfg.BuildingKind(i)
		}
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyP) {
		if p, ok := ss.game.Player(me); ok && ss.game.Economy().PriorityLevels > 0 {
			next := (p.Priority + 1) % ss.game.Economy().PriorityLevels
			ss.controller.SendPlayerCommand(&messages.SetPriority{Header: messages.Header{Player: me}, Priority: next})
		}
	}

	x, y, onBoard := boardCell(ebiten.CursorPosition())
	if !onBoard {
		return
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonLeft) {
		ss.controller.SendPlayerCommand(&messages.Build{
			Header: messages.Header{Player: me},
			Kind:   uint8(ss.kind),
			X:      x,
			Y:      y,
		})
	}
	if inpututil.IsMouseButtonJustPressed(ebiten.MouseButtonRight) {
		if b, ok := ss.game.BuildingAt(x, y); ok && b.Owner == me {
			ss.controller.SendPlayerCommand(&messages.Bulldoze{Header: messages.Header{Player: me}, Building: b.ID})
		}
	}
}

func (ss *SessionScene) leave() {
	switch c := ss.controller.(type) {
	case *network.Client:
		c.Disconnect()
	case *network.Host:
		if err := c.Close(); err != nil {
			ss.ended = err.Error()
			return
		}
	}
	ss.ended = "You left the game."
}

// boardCell maps screen coordinates to a grid cell.
func boardCell(sx, sy int) (int16, int16, bool) {
	d := cfg.Display
	x := (sx - d.BoardX) / d.CellSize
	y := (sy - d.BoardY) / d.CellSize
	if sx < d.BoardX || sy < d.BoardY || x >= d.BoardSize || y >= d.BoardSize {
		return 0, 0, false
	}
	return int16(x), int16(y), true
}

func (ss *SessionScene) drawBoard(_ *ecs.ECS, screen *ebiten.Image) {
	d := cfg.Display
	size := float32(d.CellSize * d.BoardSize)
	vector.FillRect(screen, float32(d.BoardX), float32(d.BoardY), size, size, cfg.Grid, false)

	if ss.game == nil {
		return
	}
	for _, p := range ss.game.Players() {
		for _, b := range ss.game.Buildings(p.Slot) {
			if int(b.X) >= d.BoardSize || int(b.Y) >= d.BoardSize || b.X < 0 || b.Y < 0 {
				continue
			}
			inset := float32(cfg.BuildingCount-1-b.Kind) // bigger buildings fill more of the cell
			vector.FillRect(screen,
				float32(d.BoardX+int(b.X)*d.CellSize)+inset/2,
				float32(d.BoardY+int(b.Y)*d.CellSize)+inset/2,
				float32(d.CellSize)-inset,
				float32(d.CellSize)-inset,
				cfg.PlayerColor(b.Owner), false)
		}
	}
}

func (ss *SessionScene) drawHUD(_ *ecs.ECS, screen *ebiten.Image) {
	var b strings.Builder
	fmt.Fprintf(&b, "%s  time %s  speed %d/%d (%d)\n",
		ss.controller.GameDescription(), formatGameTime(ss.gameTime()),
		ss.controller.RealSpeed(), ss.controller.DesiredSpeed(), ss.controller.FrameTime())

	if ss.game != nil {
		for _, p := range ss.game.Players() {
			fmt.Fprintf(&b, "%d %-16s credits %6d  buildings %3d  priority %d\n",
				p.Slot, p.Name, p.Credits, len(ss.game.Buildings(p.Slot)), p.Priority)
		}
	}
	ebitenutil.DebugPrintAt(screen, b.String(), 8, 4)

	help := "[1-3] kind  [P] priority\n[LMB] build  [RMB] bulldoze\n[-/=] speed  [Esc] leave"
	if ss.player >= 0 && ss.game != nil {
		help = fmt.Sprintf("building: %s\n%s", ss.game.Economy().Buildings[ss.kind].Name, help)
	}
	right := cfg.Display.BoardX + cfg.Display.CellSize*cfg.Display.BoardSize + 12
	ebitenutil.DebugPrintAt(screen, help, right, cfg.Display.BoardY)

	if client, ok := ss.controller.(*network.Client); ok && client.Desynced() {
		ebitenutil.DebugPrintAt(screen, "DESYNC", right, cfg.Display.BoardY+72)
	}

	chatY := cfg.Display.Height - 16*(cfg.Display.ChatLines+2)
	ebitenutil.DebugPrintAt(screen, strings.Join(ss.chat.lines, "\n"), right, chatY)
	if _, ok := ss.controller.(chatter); ok {
		ebitenutil.DebugPrintAt(screen, ss.input.String(), right, cfg.Display.Height-24)
	}
}

func (ss *SessionScene) gameTime() int32 {
	if ss.game == nil {
		return 0
	}
	return ss.game.GameTime()
}

func formatGameTime(ms int32) string {
	s := ms / 1000
	return fmt.Sprintf("%02d:%02d:%02d", s/3600, s/60%60, s%60)
}
