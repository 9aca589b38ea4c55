package messages

// ChatMessage is a chat line as shown to the local user. System messages
// (joins, leaves, kicks, desyncs) have an empty Sender.
type ChatMessage struct {
	Sender string
	Text   string
}

func (m ChatMessage) IsSystem() bool {
	return m.Sender == ""
}
