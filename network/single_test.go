package network

import (
	"testing"

	"github.com/automoto/lockstep/shared/messages"
)

func TestSinglePlayerClampsAndScalesFrameTime(t *testing.T) {
	clock := &fakeClock{}
	sim := &fakeSim{}
	sp := NewSinglePlayer(sim, SinglePlayerOptions{Clock: clock, Logger: quietLogger()})

	clock.Advance(40)
	sp.Think()
	if sp.FrameTime() != 40 {
		t.Fatalf("frametime = %d, want 40", sp.FrameTime())
	}

	clock.Advance(5000)
	sp.Think()
	if sp.FrameTime() != 1000 {
		t.Fatalf("frametime = %d, want clamped to 1000", sp.FrameTime())
	}

	sp.SetDesiredSpeed(2000)
	clock.Advance(100)
	sp.Think()
	if sp.FrameTime() != 200 {
		t.Fatalf("frametime = %d, want 200 at double speed", sp.FrameTime())
	}

	sp.SetDesiredSpeed(0)
	clock.Advance(100)
	sp.Think()
	if sp.FrameTime() != 0 || sp.RealSpeed() != 0 {
		t.Fatal("paused game advanced")
	}
}

func TestSinglePlayerCommandIsQueuedNotExecuted(t *testing.T) {
	clock := &fakeClock{}
	sim := &fakeSim{}
	sp := NewSinglePlayer(sim, SinglePlayerOptions{Clock: clock, Logger: quietLogger()})

	clock.Advance(30)
	sp.Think()
	runs := len(sim.runs)

	cmd := &messages.SetPriority{Header: messages.Header{Player: 0}, Priority: 1}
	sp.SendPlayerCommand(cmd)
	if len(sim.runs) != runs {
		t.Fatal("SendPlayerCommand advanced the simulation")
	}
	if len(sim.enqueued) != 1 || cmd.Duetime() != 30 {
		t.Fatalf("enqueued %d commands due at %d, want 1 due at 30", len(sim.enqueued), cmd.Duetime())
	}
}

type countingComputer struct{ thinks int }

func (c *countingComputer) Think() { c.thinks++ }

func TestSinglePlayerDrivesComputers(t *testing.T) {
	clock := &fakeClock{}
	created := map[uint8]*countingComputer{}
	sp := NewSinglePlayer(&fakeSim{}, SinglePlayerOptions{
		Computers: []uint8{1, 2},
		Computer: func(_ Simulation, player uint8, _ func(messages.PlayerCommand)) ComputerPlayer {
			c := &countingComputer{}
			created[player] = c
			return c
		},
		Clock:  clock,
		Logger: quietLogger(),
	})

	sp.Think()
	sp.Think()
	for slot, c := range created {
		if c.thinks != 2 {
			t.Fatalf("computer %d thought %d times, want 2", slot, c.thinks)
		}
	}
	if len(created) != 2 {
		t.Fatalf("created %d computers, want 2", len(created))
	}
}

func TestSinglePlayerSavesOnPanic(t *testing.T) {
	sim := &fakeSim{panicOn: true}
	sp := NewSinglePlayer(sim, SinglePlayerOptions{Clock: &fakeClock{}, Logger: quietLogger()})

	func() {
		defer func() {
			if recover() == nil {
				t.Fatal("panic was swallowed")
			}
		}()
		sp.Think()
	}()
	if len(sim.saved) != 1 || sim.saved[0] != "crash" {
		t.Fatalf("saves = %v, want one crash save", sim.saved)
	}
}
