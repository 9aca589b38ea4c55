package core

import (
	"errors"
	"fmt"
	"net"
	"net/http"
	"sync"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/network"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/systems"
	"github.com/sirupsen/logrus"
)

// DefaultTribes are offered by the dedicated host.
var DefaultTribes = []netconfig.TribeInfo{
	{Name: "barbarians", Initializations: []string{"headquarters", "trading outpost"}},
	{Name: "empire", Initializations: []string{"headquarters", "fortified village"}},
	{Name: "atlanteans", Initializations: []string{"headquarters"}},
}

// Options configures a dedicated Server.
type Options struct {
	Network  config.NetworkConfig
	Economy  config.EconomyConfig
	Bot      config.BotDifficultyConfig
	TickRate int    // Think calls per second
	Address  string // TCP listen address; empty uses Network.Port on all interfaces
	MapName  string

	MinPlayers int // Launch once this many humans are seated; 0 waits forever
	Computers  int // Slots seated with computer players before launch

	StatusAddr string        // Serves the status API when set
	Store      systems.Store // Emergency saves; nil disables them
	Logger     logrus.FieldLogger
}

// Server runs a dedicated lockstep host. The host is only touched from
// the game loop goroutine; other goroutines read its published status.
type Server struct {
	opts   Options
	host   *network.Host
	loop   *GameLoop
	log    logrus.FieldLogger
	tcp    *network.TCPListener
	status *http.Server

	mu      sync.Mutex
	running bool
	stopped bool
}

// NewServer creates the host and its lobby.
func NewServer(opts Options) (*Server, error) {
	if opts.TickRate <= 0 {
		return nil, fmt.Errorf("tick rate %d must be positive", opts.TickRate)
	}
	if opts.Logger == nil {
		opts.Logger = logrus.WithField("component", "server")
	}
	if opts.Address == "" {
		opts.Address = fmt.Sprintf(":%d", opts.Network.Port)
	}

	settings := netconfig.GameSettings{
		Map:     netconfig.MapInfo{Name: opts.MapName, Filename: opts.MapName + ".map"},
		Tribes:  DefaultTribes,
		Players: make([]netconfig.PlayerSettings, opts.Network.MaxPlayers),
	}
	s := &Server{opts: opts, log: opts.Logger}

	host, err := network.NewHost(opts.Network, network.HostOptions{
		Settings:   settings,
		Simulation: SimulationFactory(opts.Economy, opts.Store, s.label, opts.Logger),
		Computer:   ComputerFactory(opts.Bot),
		Logger:     opts.Logger,
	})
	if err != nil {
		return nil, err
	}
	s.host = host

	for i := 0; i < opts.Computers && i < len(settings.Players); i++ {
		slot := len(settings.Players) - 1 - i
		if err := host.SetSlotState(slot, netconfig.SlotComputer); err != nil {
			return nil, fmt.Errorf("seat computer: %w", err)
		}
	}
	s.loop = NewGameLoop(s, opts.TickRate)
	return s, nil
}

func (s *Server) label() string {
	return s.host.SessionID()
}

// Start opens the listeners and runs the game loop in the background.
func (s *Server) Start() error {
	tcp, err := network.ListenTCP(s.opts.Address)
	if err != nil {
		return err
	}
	s.tcp = tcp
	s.host.AddListener(tcp)

	if s.opts.Network.WebSocketPort != 0 {
		ws, err := network.ListenWebSocket(fmt.Sprintf(":%d", s.opts.Network.WebSocketPort))
		if err != nil {
			_ = tcp.Close()
			return err
		}
		s.host.AddListener(ws)
	}

	if s.opts.StatusAddr != "" {
		s.status = &http.Server{Addr: s.opts.StatusAddr, Handler: SetupRouter(s.host)}
		go func() {
			if err := s.status.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
				s.log.WithError(err).Error("status API stopped")
			}
		}()
	}

	s.mu.Lock()
	s.running = true
	s.mu.Unlock()
	go s.loop.Run()
	s.log.Infof("session %s listening on %s", s.host.SessionID(), tcp.Addr())
	return nil
}

// Addr is the TCP address peers connect to.
func (s *Server) Addr() net.Addr {
	if s.tcp == nil {
		return nil
	}
	return s.tcp.Addr()
}

// Status returns the host's latest published status.
func (s *Server) Status() network.SessionStatus {
	return s.host.Status()
}

// Stop ends the game loop and tells every peer the host is gone.
func (s *Server) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.stopped {
		return
	}
	s.stopped = true

	if s.running {
		s.loop.Stop()
	}
	if err := s.host.Close(); err != nil {
		s.log.WithError(err).Warn("closing listeners")
	}
	if s.status != nil {
		_ = s.status.Close()
	}
}

// think runs one host frame and launches once enough players are seated.
func (s *Server) think() {
	s.host.Think()
	if s.host.Started() || s.opts.MinPlayers <= 0 {
		return
	}
	humans := 0
	for _, p := range s.host.Settings().Players {
		if p.State == netconfig.SlotHuman {
			humans++
		}
	}
	if humans < s.opts.MinPlayers {
		return
	}
	if err := s.host.Launch(); err != nil {
		s.log.WithError(err).Error("launch failed")
	}
}
