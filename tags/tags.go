package tags

import "github.com/yohamta/donburi"

var (
	Player   = donburi.NewTag().SetName("Player")
	Building = donburi.NewTag().SetName("Building")
	Economy  = donburi.NewTag().SetName("Economy")
)
