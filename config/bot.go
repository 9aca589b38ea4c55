package config

import "fmt"

// BotDifficulty affects how often a computer player acts and how much it keeps in reserve
type BotDifficulty int

const (
	BotDifficultyEasy BotDifficulty = iota
	BotDifficultyNormal
	BotDifficultyHard
)

// BotDifficultyConfig holds tuning values for a computer player at a specific difficulty
type BotDifficultyConfig struct {
	ThinkInterval int32 // Game ms between decisions
	CreditReserve int32 // Credits kept back when deciding to build
	MaxBuildings  int   // Stops building beyond this count
}

// DefaultBot returns the tuning of every difficulty.
func DefaultBot() map[BotDifficulty]BotDifficultyConfig {
	return map[BotDifficulty]BotDifficultyConfig{
		BotDifficultyEasy: {
			ThinkInterval: 4000,
			CreditReserve: 200,
			MaxBuildings:  4,
		},
		BotDifficultyNormal: {
			ThinkInterval: 2000,
			CreditReserve: 100,
			MaxBuildings:  8,
		},
		BotDifficultyHard: {
			ThinkInterval: 1000,
			CreditReserve: 0,
			MaxBuildings:  16,
		},
	}
}

func (d BotDifficulty) String() string {
	switch d {
	case BotDifficultyEasy:
		return "easy"
	case BotDifficultyNormal:
		return "normal"
	case BotDifficultyHard:
		return "hard"
	}
	return "unknown"
}

// ParseBotDifficulty maps a difficulty name to its value.
func ParseBotDifficulty(name string) (BotDifficulty, error) {
	for _, d := range []BotDifficulty{BotDifficultyEasy, BotDifficultyNormal, BotDifficultyHard} {
		if d.String() == name {
			return d, nil
		}
	}
	return 0, fmt.Errorf("unknown bot difficulty %q", name)
}
