package core

import (
	"time"
)

type GameLoop struct {
	server   *Server
	tickRate int
	stopChan chan struct{}
	done     chan struct{}
}

func NewGameLoop(server *Server, tickRate int) *GameLoop {
	return &GameLoop{
		server:   server,
		tickRate: tickRate,
		stopChan: make(chan struct{}),
		done:     make(chan struct{}),
	}
}

func (g *GameLoop) Run() {
	defer close(g.done)
	ticker := time.NewTicker(time.Second / time.Duration(g.tickRate))
	defer ticker.Stop()

	g.server.log.Infof("Game loop started at %d ticks/second", g.tickRate)

	for {
		select {
		case <-g.stopChan:
			g.server.log.Info("Game loop stopped")
			return
		case <-ticker.C:
			g.server.think()
		}
	}
}

// Stop ends Run and waits for the current tick to finish, so the host is
// no longer touched once Stop returns.
func (g *GameLoop) Stop() {
	close(g.stopChan)
	<-g.done
}
