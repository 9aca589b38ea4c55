package main

import (
	"flag"
	"fmt"
	"log"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/network"
	"github.com/automoto/lockstep/scenes"
	"github.com/automoto/lockstep/server/core"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/systems"
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/sirupsen/logrus"
)

type Scene interface {
	Update()
	Draw(screen *ebiten.Image)
}

type Game struct {
	scene Scene
}

// ChangeScene switches to a new scene
func (g *Game) ChangeScene(scene interface{}) {
	g.scene = scene.(Scene)
}

func (g *Game) Update() error {
	g.scene.Update()
	if done, ok := g.scene.(interface{ Done() bool }); ok && done.Done() {
		return ebiten.Termination
	}
	return nil
}

func (g *Game) Draw(screen *ebiten.Image) {
	g.scene.Draw(screen)
}

func (g *Game) Layout(width, height int) (int, int) {
	return config.Display.Width, config.Display.Height
}

type options struct {
	name       string
	host       string
	join       string
	mapName    string
	computers  int
	difficulty config.BotDifficulty
	store      systems.Store
}

func main() {
	name := flag.String("name", "Player", "Player name")
	host := flag.String("host", "", "Host a game listening on this address, e.g. :7396")
	join := flag.String("join", "", "Join the game at this address (host:port or ws://host:port)")
	mapName := flag.String("map", "Crossing", "Map of a hosted or single player game")
	computers := flag.Int("computers", 1, "Computer players in a hosted or single player game")
	difficulty := flag.String("difficulty", "normal", "Computer difficulty (easy, normal, hard)")
	saveApp := flag.String("saveapp", "lockstep", "Application name for emergency saves (empty = disabled)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}
	diff, err := config.ParseBotDifficulty(*difficulty)
	if err != nil {
		log.Fatalf("Invalid difficulty: %v", err)
	}
	opts := options{
		name:       *name,
		host:       *host,
		join:       *join,
		mapName:    *mapName,
		computers:  *computers,
		difficulty: diff,
	}

	// Initialize persistence for emergency saves
	if *saveApp != "" {
		if opts.store, err = systems.OpenStore(*saveApp); err != nil {
			log.Printf("Warning: Could not initialize persistence: %v", err)
			opts.store = nil
		} else if pending, err := systems.PendingEmergency(opts.store); err != nil {
			log.Printf("Warning: Could not read emergency save: %v", err)
		} else if pending != "" {
			log.Printf("Found %s", pending)
		}
	}

	g := &Game{}
	switch {
	case opts.join != "":
		g.scene, err = joinGame(g, opts)
	case opts.host != "":
		g.scene, err = hostGame(g, opts)
	default:
		g.scene, err = singlePlayer(g, opts)
	}
	if err != nil {
		log.Fatal(err)
	}

	ebiten.SetWindowSize(config.Display.Width, config.Display.Height)
	ebiten.SetWindowTitle("lockstep: " + opts.name)
	if err := ebiten.RunGame(g); err != nil {
		log.Fatal(err)
	}
}

func lobbySettings(opts options) netconfig.GameSettings {
	return netconfig.GameSettings{
		Map:     netconfig.MapInfo{Name: opts.mapName, Filename: opts.mapName + ".map"},
		Tribes:  core.DefaultTribes,
		Players: make([]netconfig.PlayerSettings, config.DefaultNetwork().MaxPlayers),
	}
}

func sessionLabel(opts options) func() string {
	return func() string { return opts.name + "@" + opts.mapName }
}

func joinGame(g *Game, opts options) (Scene, error) {
	client, err := network.NewClient(config.DefaultNetwork(), network.ClientOptions{
		Name:       opts.name,
		Simulation: core.SimulationFactory(config.DefaultEconomy(), opts.store, sessionLabel(opts), nil),
	})
	if err != nil {
		return nil, err
	}
	client.Connect(opts.join)
	return scenes.NewClientLobbyScene(g, client), nil
}

func hostGame(g *Game, opts options) (Scene, error) {
	netCfg := config.DefaultNetwork()
	host, err := network.NewHost(netCfg, network.HostOptions{
		LocalName:  opts.name,
		Settings:   lobbySettings(opts),
		Simulation: core.SimulationFactory(config.DefaultEconomy(), opts.store, sessionLabel(opts), nil),
		Computer:   core.ComputerFactory(config.DefaultBot()[opts.difficulty]),
	})
	if err != nil {
		return nil, err
	}
	l, err := network.ListenTCP(opts.host)
	if err != nil {
		return nil, fmt.Errorf("listen: %w", err)
	}
	host.AddListener(l)
	log.Printf("Hosting session %s on %s", host.SessionID(), l.Addr())

	for i := 0; i < opts.computers; i++ {
		slot := netCfg.MaxPlayers - 1 - i
		if slot <= 0 {
			break
		}
		if err := host.SetSlotState(slot, netconfig.SlotComputer); err != nil {
			return nil, err
		}
	}
	return scenes.NewHostLobbyScene(g, host), nil
}

func singlePlayer(g *Game, opts options) (Scene, error) {
	settings := lobbySettings(opts)
	settings.Players[0] = netconfig.PlayerSettings{State: netconfig.SlotHuman, Name: opts.name, Tribe: settings.DefaultTribe()}
	var slots []uint8
	for i := 1; i <= opts.computers && i < len(settings.Players); i++ {
		settings.Players[i] = netconfig.PlayerSettings{
			State: netconfig.SlotComputer,
			Name:  fmt.Sprintf("Computer %d", i+1),
			Tribe: settings.DefaultTribe(),
		}
		slots = append(slots, uint8(i))
	}

	sim, err := systems.NewGame(settings, config.DefaultEconomy(), systems.GameOptions{
		Store: opts.store,
		Label: sessionLabel(opts)(),
	})
	if err != nil {
		return nil, err
	}
	sp := network.NewSinglePlayer(sim, network.SinglePlayerOptions{
		Computers: slots,
		Computer:  core.ComputerFactory(config.DefaultBot()[opts.difficulty]),
	})
	return scenes.NewSessionScene(g, sp, sim, 0), nil
}
