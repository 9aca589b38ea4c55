package components

import (
	cfg "github.com/automoto/lockstep/config"
	"github.com/yohamta/donburi"
)

type BuildingData struct {
	ID      uint32
	Owner   uint8
	Kind    cfg.BuildingKind
	X, Y    int16
	BuiltAt int32 // Game time of completion
}

var Building = donburi.NewComponentType[BuildingData]()
