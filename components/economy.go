package components

import "github.com/yohamta/donburi"

// EconomyData is the world-wide economy bookkeeping.
// This is a singleton component - only one exists per game.
type EconomyData struct {
	NextBuildingID uint32
	Ticks          int64
	LastTick       int32
}

var Economy = donburi.NewComponentType[EconomyData]()
