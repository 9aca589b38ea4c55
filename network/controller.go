// Package network implements the lockstep session layer: the host that
// commits game time and relays player commands, the clients that mirror it,
// and a single-player controller that runs through the same code path.
package network

import (
	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/netconfig"
	"github.com/automoto/lockstep/shared/protocol"
	"github.com/sirupsen/logrus"
)

// GameController is implemented by SinglePlayer, Host and Client. Think is
// called once per UI frame and is the only place the simulation advances.
// SendPlayerCommand never executes a command synchronously.
type GameController interface {
	Think()
	SendPlayerCommand(cmd messages.PlayerCommand)
	// FrameTime is the game time the simulation advanced in the last Think.
	FrameTime() int32
	GameDescription() string
	RealSpeed() uint32
	DesiredSpeed() uint32
	SetDesiredSpeed(speed uint32)
}

// Simulation is the deterministic game state a controller drives.
type Simulation interface {
	GameTime() int32
	// Enqueue schedules cmd at its due time. Commands due at the same time
	// run in enqueue order.
	Enqueue(cmd messages.PlayerCommand)
	// EnqueueSyncCheck calls report with the sync hash once the simulation
	// reaches duetime, after every player command due at that time.
	EnqueueSyncCheck(duetime int32, report func(protocol.SyncHash))
	// RunQueue advances the game time by frametime, executing every command
	// that becomes due.
	RunQueue(frametime int32)
	SyncHash() protocol.SyncHash
}

// SimulationFactory builds the simulation when a session launches.
type SimulationFactory func(settings netconfig.GameSettings) (Simulation, error)

// EmergencySaver is implemented by simulations that can persist themselves
// when a session dies.
type EmergencySaver interface {
	EmergencySave(reason string) error
}

// ComputerPlayer is an AI seat. It only acts through the send function it
// was built with, so its commands travel the same path as a human's.
type ComputerPlayer interface {
	Think()
}

// ComputerFactory creates the computer player for a slot.
type ComputerFactory func(sim Simulation, player uint8, send func(messages.PlayerCommand)) ComputerPlayer

// emergencySave persists sim if it supports it. Failures are logged and
// never replace the error that caused the save.
func emergencySave(sim Simulation, reason string, log logrus.FieldLogger) {
	saver, ok := sim.(EmergencySaver)
	if !ok {
		return
	}
	defer func() {
		if r := recover(); r != nil {
			log.Errorf("emergency save panicked: %v", r)
		}
	}()
	if err := saver.EmergencySave(reason); err != nil {
		log.WithError(err).Error("emergency save failed")
		return
	}
	log.Infof("emergency save written (%s)", reason)
}

func defaultLogger(component string) logrus.FieldLogger {
	return logrus.WithField("component", component)
}
