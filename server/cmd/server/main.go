package main

import (
	"flag"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/server/core"
	"github.com/automoto/lockstep/systems"
	"github.com/sirupsen/logrus"
)

func main() {
	defaults := config.DefaultNetwork()
	port := flag.Uint("port", defaults.Port, "Server port")
	wsPort := flag.Uint("wsport", 0, "WebSocket port (0 = disabled)")
	tickRate := flag.Int("tickrate", 30, "Server tick rate (updates per second)")
	mapName := flag.String("map", "Crossing", "Map announced to players")
	maxPlayers := flag.Int("maxplayers", defaults.MaxPlayers, "Player slots")
	minPlayers := flag.Int("minplayers", 2, "Launch once this many humans have joined (0 = never)")
	computers := flag.Int("computers", 0, "Slots seated with computer players")
	difficulty := flag.String("difficulty", "normal", "Computer difficulty (easy, normal, hard)")
	statusAddr := flag.String("status", "", "Status API address, e.g. :8080 (empty = disabled)")
	saveApp := flag.String("saveapp", "lockstep_server", "Application name for emergency saves (empty = disabled)")
	verbose := flag.Bool("v", false, "Debug logging")
	flag.Parse()

	if *verbose {
		logrus.SetLevel(logrus.DebugLevel)
	}

	diff, err := config.ParseBotDifficulty(*difficulty)
	if err != nil {
		log.Fatalf("Invalid difficulty: %v", err)
	}

	netCfg := defaults
	netCfg.Port = *port
	netCfg.WebSocketPort = *wsPort
	netCfg.MaxPlayers = *maxPlayers
	if err := netCfg.Validate(); err != nil {
		log.Fatalf("Invalid network config: %v", err)
	}

	var store systems.Store
	if *saveApp != "" {
		if store, err = systems.OpenStore(*saveApp); err != nil {
			log.Printf("Warning: Could not initialize persistence: %v", err)
			store = nil
		}
	}

	server, err := core.NewServer(core.Options{
		Network:    netCfg,
		Economy:    config.DefaultEconomy(),
		Bot:        config.DefaultBot()[diff],
		TickRate:   *tickRate,
		MapName:    *mapName,
		MinPlayers: *minPlayers,
		Computers:  *computers,
		StatusAddr: *statusAddr,
		Store:      store,
		Logger:     logrus.WithField("component", "server"),
	})
	if err != nil {
		log.Fatalf("Failed to create server: %v", err)
	}

	log.Printf("Starting lockstep server on port %d (tick rate: %d/s, map: %s, difficulty: %s)",
		*port, *tickRate, *mapName, diff)
	if err := server.Start(); err != nil {
		log.Fatalf("Server error: %v", err)
	}

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM)
	<-sigChan
	log.Println("Shutting down server...")
	server.Stop()
}
