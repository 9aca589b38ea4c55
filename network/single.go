package network

import (
	"maps"
	"slices"

	"github.com/automoto/lockstep/shared/messages"
	"github.com/sirupsen/logrus"
)

const maxFrameTime = 1000

// SinglePlayerOptions configures a SinglePlayer. Zero fields fall back to
// defaults.
type SinglePlayerOptions struct {
	Speed     uint32
	Computers []uint8 // slots driven by computer players
	Computer  ComputerFactory
	Clock     Clock
	Logger    logrus.FieldLogger
}

// SinglePlayer drives a local game without any network. Commands still go
// through the queue and execute on the next Think.
type SinglePlayer struct {
	sim       Simulation
	clock     Clock
	log       logrus.FieldLogger
	computers map[uint8]ComputerPlayer

	lastFrame    int64
	time         int32
	frametime    int32
	desiredSpeed uint32
}

func NewSinglePlayer(sim Simulation, opts SinglePlayerOptions) *SinglePlayer {
	if opts.Clock == nil {
		opts.Clock = SystemClock()
	}
	if opts.Logger == nil {
		opts.Logger = defaultLogger("single")
	}
	if opts.Speed == 0 {
		opts.Speed = 1000
	}
	s := &SinglePlayer{
		sim:          sim,
		clock:        opts.Clock,
		log:          opts.Logger,
		computers:    make(map[uint8]ComputerPlayer),
		lastFrame:    opts.Clock.Millis(),
		time:         sim.GameTime(),
		desiredSpeed: opts.Speed,
	}
	if opts.Computer != nil {
		for _, slot := range opts.Computers {
			if cp := opts.Computer(sim, slot, s.SendPlayerCommand); cp != nil {
				s.computers[slot] = cp
			}
		}
	}
	return s
}

// Think advances the game by the elapsed wall clock, clamped to a second
// and scaled by the speed.
func (s *SinglePlayer) Think() {
	defer func() {
		if r := recover(); r != nil {
			s.log.Errorf("panic: %v", r)
			emergencySave(s.sim, "crash", s.log)
			panic(r)
		}
	}()

	now := s.clock.Millis()
	ft := now - s.lastFrame
	s.lastFrame = now
	ft = min(max(ft, 0), maxFrameTime)
	ft = ft * int64(s.desiredSpeed) / 1000

	s.frametime = int32(ft)
	s.time = s.sim.GameTime() + s.frametime
	s.sim.RunQueue(s.frametime)

	for _, slot := range slices.Sorted(maps.Keys(s.computers)) {
		s.computers[slot].Think()
	}
}

// SendPlayerCommand schedules cmd at the time the last Think advanced to.
func (s *SinglePlayer) SendPlayerCommand(cmd messages.PlayerCommand) {
	cmd.SetDuetime(s.time)
	s.sim.Enqueue(cmd)
}

func (s *SinglePlayer) FrameTime() int32 { return s.frametime }

func (s *SinglePlayer) GameDescription() string { return "single player" }

func (s *SinglePlayer) RealSpeed() uint32 { return s.desiredSpeed }

func (s *SinglePlayer) DesiredSpeed() uint32 { return s.desiredSpeed }

func (s *SinglePlayer) SetDesiredSpeed(speed uint32) { s.desiredSpeed = speed }

// Simulation returns the driven game.
func (s *SinglePlayer) Simulation() Simulation { return s.sim }

var (
	_ GameController = (*SinglePlayer)(nil)
	_ GameController = (*Host)(nil)
	_ GameController = (*Client)(nil)
)
