package scenes

import (
	"sync"

	cfg "github.com/automoto/lockstep/config"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// GameOverScene shows why the session ended until the player quits.
type GameOverScene struct {
	ecs          *ecs.ECS
	sceneChanger SceneChanger
	reason       string
	quit         bool
	once         sync.Once
}

// NewGameOverScene creates a new game over scene
func NewGameOverScene(sc SceneChanger, reason string) *GameOverScene {
	return &GameOverScene{sceneChanger: sc, reason: reason}
}

func (gs *GameOverScene) Update() {
	gs.once.Do(gs.configure)
	gs.ecs.Update()
}

// Done reports whether the player asked to quit.
func (gs *GameOverScene) Done() bool {
	return gs.quit
}

func (gs *GameOverScene) Draw(screen *ebiten.Image) {
	// Always clear screen to prevent white flashes from OS window background
	screen.Fill(cfg.Background)

	if gs.ecs == nil {
		return
	}
	gs.ecs.Draw(screen)
}

func (gs *GameOverScene) configure() {
	gs.ecs = ecs.NewECS(donburi.NewWorld())

	gs.ecs.AddSystem(func(_ *ecs.ECS) {
		if inpututil.IsKeyJustPressed(ebiten.KeyEnter) || inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
			gs.quit = true
		}
	})
	gs.ecs.AddRenderer(layerDefault, func(_ *ecs.ECS, screen *ebiten.Image) {
		ebitenutil.DebugPrintAt(screen, "GAME OVER\n\n"+gs.reason+"\n\n[Enter] quit", 32, cfg.Display.Height/3)
	})
}
