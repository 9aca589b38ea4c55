package scenes

import (
	"errors"

	"github.com/automoto/lockstep/shared/messages"
	"github.com/automoto/lockstep/shared/protocol"
	"github.com/yohamta/donburi/ecs"
)

// Render layers
const (
	layerDefault ecs.LayerID = iota
	layerOverlay
)

// SceneChanger allows scenes to trigger transitions
type SceneChanger interface {
	ChangeScene(scene interface{})
}

// chatter is implemented by network sessions that carry chat.
type chatter interface {
	SendChat(text string)
	DrainChat() []messages.ChatMessage
}

// describeError turns a session error into text for the player.
func describeError(err error) string {
	if err == nil {
		return "The session ended."
	}
	var de *protocol.DisconnectError
	if errors.As(err, &de) {
		return protocol.DescribeReason(de.Reason)
	}
	return err.Error()
}

// chatLog keeps the last lines of chat for display.
type chatLog struct {
	lines []string
	max   int
}

func (l *chatLog) add(msgs []messages.ChatMessage) {
	for _, m := range msgs {
		line := m.Text
		if !m.IsSystem() {
			line = m.Sender + ": " + m.Text
		}
		l.lines = append(l.lines, line)
	}
	if over := len(l.lines) - l.max; over > 0 {
		l.lines = l.lines[over:]
	}
}
