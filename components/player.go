package components

import "github.com/yohamta/donburi"

// PlayerData is the economy state of one seated player.
type PlayerData struct {
	Slot     uint8
	Name     string
	Tribe    string
	Credits  int64
	Priority uint8 // Income focus, 0..PriorityLevels-1
	Built    int   // Buildings ever completed
}

var Player = donburi.NewComponentType[PlayerData]()
