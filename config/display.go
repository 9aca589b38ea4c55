package config

import "image/color"

// DisplayConfig holds the demo client's window and board layout.
type DisplayConfig struct {
	Width     int
	Height    int
	BoardX    int // Top left corner of the building grid
	BoardY    int
	CellSize  int
	BoardSize int // Cells per side
	ChatLines int // Chat lines kept on screen
}

// Display is the demo client's layout.
var Display = DisplayConfig{
	Width:     640,
	Height:    480,
	BoardX:    8,
	BoardY:    96,
	CellSize:  5,
	BoardSize: 64,
	ChatLines: 6,
}

// Shared RGBA color constants
var (
	White        = color.RGBA{R: 255, G: 255, B: 255, A: 255}
	Background   = color.RGBA{R: 20, G: 20, B: 30, A: 255}
	Grid         = color.RGBA{R: 40, G: 40, B: 55, A: 255}
	BlackOverlay = color.RGBA{R: 0, G: 0, B: 0, A: 180}
)

// PlayerColors are indexed by player slot, wrapping around.
var PlayerColors = []color.RGBA{
	{R: 255, G: 60, B: 60, A: 255},
	{R: 0, G: 100, B: 255, A: 255},
	{R: 100, G: 255, B: 100, A: 255},
	{R: 255, G: 180, B: 50, A: 255},
	{R: 128, G: 0, B: 255, A: 255},
	{R: 255, G: 0, B: 255, A: 255},
}

// PlayerColor returns the color of a player slot.
func PlayerColor(slot uint8) color.RGBA {
	return PlayerColors[int(slot)%len(PlayerColors)]
}
