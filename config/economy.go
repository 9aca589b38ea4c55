package config

// BuildingKind identifies a building type of the demo economy.
type BuildingKind uint8

const (
	BuildingHut BuildingKind = iota
	BuildingFarm
	BuildingMine
	BuildingCount // Must be last - used for array sizing
)

// BuildingConfig holds the tuning values of one building kind.
type BuildingConfig struct {
	Name   string
	Cost   int32 // Credits spent when placed
	Refund int32 // Credits returned when bulldozed
	Income int32 // Credits produced per economy tick
}

// EconomyConfig holds the demo simulation's economy tuning.
type EconomyConfig struct {
	StartingCredits int32
	TickInterval    int32 // Game ms between economy ticks
	MaxBonus        int32 // Upper bound of the random bonus per tick
	PriorityLevels  uint8 // Valid priorities are [0, PriorityLevels)
	Seed            uint64
	Buildings       [BuildingCount]BuildingConfig
}

// DefaultEconomy returns the default economy.
func DefaultEconomy() EconomyConfig {
	return EconomyConfig{
		StartingCredits: 500,
		TickInterval:    1000,
		MaxBonus:        5,
		PriorityLevels:  3,
		Seed:            0x5eed,
		Buildings: [BuildingCount]BuildingConfig{
			BuildingHut:  {Name: "hut", Cost: 50, Refund: 25, Income: 2},
			BuildingFarm: {Name: "farm", Cost: 120, Refund: 60, Income: 6},
			BuildingMine: {Name: "mine", Cost: 300, Refund: 100, Income: 15},
		},
	}
}
