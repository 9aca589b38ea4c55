// Package protocol defines the lockstep wire format shared by host and
// clients: command codes, length-prefixed frames and the typed disconnect
// errors that end a peer's session.
package protocol

import "fmt"

// Version must match between host and client builds. It is checked on HELLO
// before anything else is processed.
const Version uint8 = 5

// Cmd identifies the command carried by a frame. It is the first payload
// byte after the length prefix.
type Cmd uint8

const (
	CmdDisconnect Cmd = iota + 1
	CmdHello
	CmdPing
	CmdPong
	CmdSettingMap
	CmdSettingTribes
	CmdSettingAllPlayers
	CmdSettingPlayer
	CmdSetPlayerNumber
	CmdSettingChangeTribe
	CmdSettingChangePosition
	CmdLaunch
	CmdSetSpeed
	CmdTime
	CmdPlayerCommand
	CmdSyncRequest
	CmdSyncReport
	CmdChat
	CmdWait
	CmdDesync
)

var cmdNames = map[Cmd]string{
	CmdDisconnect:            "DISCONNECT",
	CmdHello:                 "HELLO",
	CmdPing:                  "PING",
	CmdPong:                  "PONG",
	CmdSettingMap:            "SETTING_MAP",
	CmdSettingTribes:         "SETTING_TRIBES",
	CmdSettingAllPlayers:     "SETTING_ALLPLAYERS",
	CmdSettingPlayer:         "SETTING_PLAYER",
	CmdSetPlayerNumber:       "SET_PLAYERNUMBER",
	CmdSettingChangeTribe:    "SETTING_CHANGETRIBE",
	CmdSettingChangePosition: "SETTING_CHANGEPOSITION",
	CmdLaunch:                "LAUNCH",
	CmdSetSpeed:              "SETSPEED",
	CmdTime:                  "TIME",
	CmdPlayerCommand:         "PLAYERCOMMAND",
	CmdSyncRequest:           "SYNCREQUEST",
	CmdSyncReport:            "SYNCREPORT",
	CmdChat:                  "CHAT",
	CmdWait:                  "WAIT",
	CmdDesync:                "DESYNC",
}

func (c Cmd) String() string {
	if name, ok := cmdNames[c]; ok {
		return name
	}
	return fmt.Sprintf("CMD(%d)", uint8(c))
}

// SyncHashSize is the size of a sync report digest in bytes.
const SyncHashSize = 16

// SyncHash is the checksum of a simulation at an agreed game time. Peers
// compare it byte for byte.
type SyncHash [SyncHashSize]byte

func (h SyncHash) String() string {
	return fmt.Sprintf("%x", h[:])
}
