package core

import (
	"github.com/automoto/lockstep/config"
	"github.com/automoto/lockstep/network"
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/systems"
	"github.com/sirupsen/logrus"
)

// SimulationFactory builds the economy game for a launching session. label
// is evaluated at launch and names the session in emergency saves.
func SimulationFactory(econ config.EconomyConfig, store systems.Store, label func() string, log logrus.FieldLogger) network.SimulationFactory {
	return func(settings netconfig.GameSettings) (network.Simulation, error) {
		g, err := systems.NewGame(settings, econ, systems.GameOptions{
			Store:  store,
			Label:  label(),
			Logger: log,
		})
		if err != nil {
			return nil, err
		}
		return g, nil
	}
}

// ComputerFactory seats systems.ComputerPlayer in computer slots.
func ComputerFactory(tuning config.BotDifficultyConfig) network.ComputerFactory {
	return func(sim network.Simulation, player uint8, send func(messages.PlayerCommand)) network.ComputerPlayer {
		g, ok := sim.(*systems.Game)
		if !ok {
			return nil
		}
		return systems.NewComputerPlayer(g, player, send, tuning)
	}
}
