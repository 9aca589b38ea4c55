package scenes

import (
	"fmt"
	"log"
	"strings"
	"sync"

	cfg "github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/network"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/ebitenutil"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/ecs"
)

// LobbyScene shows the replicated session settings until the game launches.
// Exactly one of host and client is set.
type LobbyScene struct {
	ecs          *ecs.ECS
	sceneChanger SceneChanger
	host         *network.Host
	client       *network.Client
	chat         chatLog
	input        chatInput
	once         sync.Once
}

// NewHostLobbyScene runs the lobby of a session hosted by this process.
func NewHostLobbyScene(sc SceneChanger, host *network.Host) *LobbyScene {
	return &LobbyScene{sceneChanger: sc, host: host, chat: chatLog{max: cfg.Display.ChatLines}}
}

// NewClientLobbyScene runs the lobby of a joined session.
func NewClientLobbyScene(sc SceneChanger, client *network.Client) *LobbyScene {
	return &LobbyScene{sceneChanger: sc, client: client, chat: chatLog{max: cfg.Display.ChatLines}}
}

func (ls *LobbyScene) Update() {
	ls.once.Do(ls.configure)
	ls.ecs.Update()

	if ls.host != nil && ls.host.Started() {
		ls.sceneChanger.ChangeScene(NewSessionScene(ls.sceneChanger, ls.host, ls.host.Simulation(), ls.host.LocalPlayer()))
		return
	}
	if ls.client != nil {
		switch ls.client.State() {
		case network.StatePlaying:
			ls.sceneChanger.ChangeScene(NewSessionScene(ls.sceneChanger, ls.client, ls.client.Simulation(), ls.client.PlayerNumber()))
		case network.StateError, network.StateDisconnected:
			ls.sceneChanger.ChangeScene(NewGameOverScene(ls.sceneChanger, describeError(ls.client.LastError())))
		}
	}
}

func (ls *LobbyScene) Draw(screen *ebiten.Image) {
	screen.Fill(cfg.Background)

	if ls.ecs == nil {
		return
	}
	ls.ecs.Draw(screen)
}

func (ls *LobbyScene) configure() {
	ls.ecs = ecs.NewECS(donburi.NewWorld())

	ls.ecs.AddSystem(ls.updateSession)
	ls.ecs.AddSystem(ls.updateInput)

	ls.ecs.AddRenderer(layerDefault, ls.drawLobby)
}

func (ls *LobbyScene) session() chatter {
	if ls.host != nil {
		return ls.host
	}
	return ls.client
}

func (ls *LobbyScene) settings() netconfig.GameSettings {
	if ls.host != nil {
		return ls.host.Settings()
	}
	return ls.client.Settings()
}

func (ls *LobbyScene) localPlayer() int32 {
	if ls.host != nil {
		return ls.host.LocalPlayer()
	}
	return ls.client.PlayerNumber()
}

func (ls *LobbyScene) updateSession(_ *ecs.ECS) {
	if ls.host != nil {
		ls.host.Think()
	} else {
		ls.client.Think()
	}
	ls.chat.add(ls.session().DrainChat())
}

func (ls *LobbyScene) updateInput(_ *ecs.ECS) {
	typing := ls.input.open
	if text, ok := ls.input.update(); ok {
		ls.session().SendChat(text)
	}
	if typing || ls.input.open {
		return
	}

	if inpututil.IsKeyJustPressed(ebiten.KeyTab) {
		ls.cycleTribe()
	}
	if ls.host == nil {
		return
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyC) {
		ls.addComputer()
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		if err := ls.host.Launch(); err != nil {
			log.Printf("[lobby] launch failed: %v", err)
		}
	}
}

func (ls *LobbyScene) cycleTribe() {
	s := ls.settings()
	me := ls.localPlayer()
	if me < 0 || int(me) >= len(s.Players) || len(s.Tribes) == 0 {
		return
	}
	next := s.Tribes[0].Name
	for i, t := range s.Tribes {
		if t.Name == s.Players[me].Tribe {
			next = s.Tribes[(i+1)%len(s.Tribes)].Name
			break
		}
	}
	if ls.host != nil {
		if err := ls.host.SetLocalTribe(next); err != nil {
			log.Printf("[lobby] %v", err)
		}
		return
	}
	ls.client.ChangeTribe(next)
}

func (ls *LobbyScene) addComputer() {
	for i, p := range ls.host.Settings().Players {
		if p.State == netconfig.SlotOpen {
			if err := ls.host.SetSlotState(i, netconfig.SlotComputer); err != nil {
				log.Printf("[lobby] %v", err)
			}
			return
		}
	}
}

func (ls *LobbyScene) drawLobby(_ *ecs.ECS, screen *ebiten.Image) {
	s := ls.settings()
	me := ls.localPlayer()

	var b strings.Builder
	fmt.Fprintf(&b, "LOBBY  map: %s\n\n", s.Map.Name)
	for i, p := range s.Players {
		marker := "  "
		if int32(i) == me {
			marker = "> "
		}
		switch p.State {
		case netconfig.SlotHuman, netconfig.SlotComputer:
			fmt.Fprintf(&b, "%s%d  %-20s %-12s (%s)\n", marker, i, p.Name, p.Tribe, p.State)
		default:
			fmt.Fprintf(&b, "%s%d  %s\n", marker, i, p.State)
		}
	}
	b.WriteString("\n[Tab] tribe")
	if ls.host != nil {
		b.WriteString("  [C] add computer  [Enter] launch")
	} else {
		fmt.Fprintf(&b, "  (%s, waiting for the host to launch)", ls.client.State())
	}
	ebitenutil.DebugPrintAt(screen, b.String(), 16, 16)

	y := cfg.Display.Height - 16*(cfg.Display.ChatLines+2)
	ebitenutil.DebugPrintAt(screen, strings.Join(ls.chat.lines, "\n"), 16, y)
	ebitenutil.DebugPrintAt(screen, ls.input.String(), 16, cfg.Display.Height-24)
}
