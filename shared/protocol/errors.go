package protocol

import (
	"errors"
	"fmt"
)

// Reason codes carried by DISCONNECT frames. They are stable strings so that
// both sides can map them to human readable text.
const (
	ReasonProtocolMismatch     = "PROTOCOL_MISMATCH"
	ReasonMalformedCommands    = "MALFORMED_COMMANDS"
	ReasonGameAlreadyStarted   = "GAME_ALREADY_STARTED"
	ReasonNoFreeSlot           = "NO_FREE_SLOT"
	ReasonUnexpectedCommand    = "UNEXPECTED_COMMAND"
	ReasonPlayerCmdForOther    = "PLAYERCMD_FOR_OTHER"
	ReasonPlayerCmdWithoutGame = "PLAYERCMD_WO_GAME"
	ReasonBackwardsTime        = "BACKWARDS_RUNNING_TIME"
	ReasonSimulateOutOfSync    = "SIMULATE_OUT_OF_SYNC"
	ReasonClientDesynced       = "CLIENT_DESYNCED"
	ReasonKicked               = "KICKED"
	ReasonConnectionLost       = "CONNECTION_LOST"
	ReasonServerLeft           = "SERVER_LEFT"
	ReasonClientLeft           = "CLIENT_LEFT"
)

var reasonText = map[string]string{
	ReasonProtocolMismatch:     "The host and this client run incompatible network protocol versions.",
	ReasonMalformedCommands:    "A malformed network message was received.",
	ReasonGameAlreadyStarted:   "The game has already started.",
	ReasonNoFreeSlot:           "There is no free player slot in this game.",
	ReasonUnexpectedCommand:    "An unexpected network message was received.",
	ReasonPlayerCmdForOther:    "A command was sent on behalf of another player.",
	ReasonPlayerCmdWithoutGame: "A player command was sent before the game started.",
	ReasonBackwardsTime:        "The reported game time ran backwards.",
	ReasonSimulateOutOfSync:    "The simulation ran ahead of the time the host allowed.",
	ReasonClientDesynced:       "The simulation diverged from the host (desync).",
	ReasonKicked:               "You were kicked by the host.",
	ReasonConnectionLost:       "The connection was lost.",
	ReasonServerLeft:           "The host left the game.",
	ReasonClientLeft:           "The player left the game.",
}

// DescribeReason returns human readable text for a reason code. Unknown codes
// are returned verbatim so that newer hosts still produce a message.
func DescribeReason(reason string) string {
	if text, ok := reasonText[reason]; ok {
		return text
	}
	return reason
}

// ErrFrameTooLarge is the panic value raised when a SendPacket would exceed
// the 16 bit length prefix.
var ErrFrameTooLarge = errors.New("protocol: frame exceeds maximum size")

// ErrShortFrame is returned by RecvPacket reads that run past the frame end.
var ErrShortFrame = errors.New("protocol: read past end of frame")

// ErrIncompleteFrame is returned when a RecvPacket is built from a
// Deserializer that does not hold a complete frame.
var ErrIncompleteFrame = errors.New("protocol: no complete frame available")

// DisconnectError ends the session of exactly one peer. Handlers return it
// for protocol violations; the network loop sends the reason in a DISCONNECT
// frame and drops that peer only.
type DisconnectError struct {
	Reason string
	Err    error
}

// Disconnect builds a DisconnectError for reason, optionally wrapping the
// error that caused it.
func Disconnect(reason string, err error) *DisconnectError {
	return &DisconnectError{Reason: reason, Err: err}
}

func (e *DisconnectError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("disconnect %s: %v", e.Reason, e.Err)
	}
	return "disconnect " + e.Reason
}

func (e *DisconnectError) Unwrap() error {
	return e.Err
}

// AsDisconnect converts any handler error into a DisconnectError. Errors that
// are not already one are treated as malformed input.
func AsDisconnect(err error) *DisconnectError {
	var de *DisconnectError
	if errors.As(err, &de) {
		return de
	}
	return Disconnect(ReasonMalformedCommands, err)
}
