package scenes

import (
	"github.com/hajimehoshi/ebiten/v2"
	"github.com/hajimehoshi/ebiten/v2/inpututil"
)

const maxChatInput = 120

// chatInput collects typed text while open. T opens it, Enter sends and
// Escape cancels.
type chatInput struct {
	open  bool
	runes []rune
}

// update returns the line to send once Enter is pressed.
func (ci *chatInput) update() (string, bool) {
	if !ci.open {
		if inpututil.IsKeyJustPressed(ebiten.KeyT) {
			ci.open = true
			ci.runes = ci.runes[:0]
		}
		return "", false
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEscape) {
		ci.open = false
		return "", false
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyEnter) {
		ci.open = false
		text := string(ci.runes)
		return text, text != ""
	}
	if inpututil.IsKeyJustPressed(ebiten.KeyBackspace) && len(ci.runes) > 0 {
		ci.runes = ci.runes[:len(ci.runes)-1]
	}
	if len(ci.runes) < maxChatInput {
		ci.runes = ebiten.AppendInputChars(ci.runes)
	}
	return "", false
}

func (ci *chatInput) String() string {
	if !ci.open {
		return "[T] chat"
	}
	return "> " + string(ci.runes) + "_"
}
