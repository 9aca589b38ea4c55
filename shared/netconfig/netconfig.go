// Package netconfig defines the replicated session settings shared between
// host and clients. The host is the only writer; clients keep a read-only
// copy rebuilt from SETTING_* frames.
package netconfig

import (
	"fmt"

	"github.com/automoto/lockstep/shared/protocol"
)

// SlotState describes who controls a player slot.
type SlotState uint8

const (
	SlotOpen SlotState = iota
	SlotClosed
	SlotHuman
	SlotComputer
)

func (s SlotState) String() string {
	switch s {
	case SlotOpen:
		return "open"
	case SlotClosed:
		return "closed"
	case SlotHuman:
		return "human"
	case SlotComputer:
		return "computer"
	}
	return "unknown"
}

// MapInfo identifies the map of the session.
type MapInfo struct {
	Name     string
	Filename string
	Savegame bool
}

// TribeInfo is a playable tribe and its starting conditions.
type TribeInfo struct {
	Name            string
	Initializations []string
}

// PlayerSettings is the replicated state of one slot.
type PlayerSettings struct {
	State     SlotState
	Name      string
	Tribe     string
	InitIndex uint8
}

// GameSettings is the full replicated configuration of a session.
type GameSettings struct {
	Map     MapInfo
	Tribes  []TribeInfo
	Players []PlayerSettings
}

// Clone returns a deep copy.
func (s GameSettings) Clone() GameSettings {
	out := GameSettings{Map: s.Map}
	out.Tribes = make([]TribeInfo, len(s.Tribes))
	for i, t := range s.Tribes {
		out.Tribes[i] = TribeInfo{Name: t.Name, Initializations: append([]string(nil), t.Initializations...)}
	}
	out.Players = append([]PlayerSettings(nil), s.Players...)
	return out
}

// HasTribe reports whether name is one of the playable tribes.
func (s GameSettings) HasTribe(name string) bool {
	for _, t := range s.Tribes {
		if t.Name == name {
			return true
		}
	}
	return false
}

// DefaultTribe returns the first tribe name, or "" if none are configured.
func (s GameSettings) DefaultTribe() string {
	if len(s.Tribes) == 0 {
		return ""
	}
	return s.Tribes[0].Name
}

// WriteMap encodes a SETTING_MAP payload.
func WriteMap(p *protocol.SendPacket, m MapInfo) {
	p.String(m.Name)
	p.String(m.Filename)
	p.Bool(m.Savegame)
}

// ReadMap decodes a SETTING_MAP payload.
func ReadMap(r *protocol.RecvPacket) (MapInfo, error) {
	var m MapInfo
	var err error
	if m.Name, err = r.String(); err != nil {
		return m, err
	}
	if m.Filename, err = r.String(); err != nil {
		return m, err
	}
	m.Savegame, err = r.Bool()
	return m, err
}

// WriteTribes encodes a SETTING_TRIBES payload.
func WriteTribes(p *protocol.SendPacket, tribes []TribeInfo) {
	p.Unsigned8(uint8(len(tribes)))
	for _, t := range tribes {
		p.String(t.Name)
		p.Unsigned8(uint8(len(t.Initializations)))
		for _, init := range t.Initializations {
			p.String(init)
		}
	}
}

// ReadTribes decodes a SETTING_TRIBES payload.
func ReadTribes(r *protocol.RecvPacket) ([]TribeInfo, error) {
	n, err := r.Unsigned8()
	if err != nil {
		return nil, err
	}
	tribes := make([]TribeInfo, n)
	for i := range tribes {
		if tribes[i].Name, err = r.String(); err != nil {
			return nil, err
		}
		m, err := r.Unsigned8()
		if err != nil {
			return nil, err
		}
		for j := 0; j < int(m); j++ {
			init, err := r.String()
			if err != nil {
				return nil, err
			}
			tribes[i].Initializations = append(tribes[i].Initializations, init)
		}
	}
	return tribes, nil
}

// WritePlayer encodes one slot.
func WritePlayer(p *protocol.SendPacket, ps PlayerSettings) {
	p.Unsigned8(uint8(ps.State))
	p.String(ps.Name)
	p.String(ps.Tribe)
	p.Unsigned8(ps.InitIndex)
}

// ReadPlayer decodes one slot.
func ReadPlayer(r *protocol.RecvPacket) (PlayerSettings, error) {
	var ps PlayerSettings
	state, err := r.Unsigned8()
	if err != nil {
		return ps, err
	}
	if state > uint8(SlotComputer) {
		return ps, fmt.Errorf("invalid slot state %d", state)
	}
	ps.State = SlotState(state)
	if ps.Name, err = r.String(); err != nil {
		return ps, err
	}
	if ps.Tribe, err = r.String(); err != nil {
		return ps, err
	}
	ps.InitIndex, err = r.Unsigned8()
	return ps, err
}

// WriteAllPlayers encodes a SETTING_ALLPLAYERS payload.
func WriteAllPlayers(p *protocol.SendPacket, players []PlayerSettings) {
	p.Unsigned8(uint8(len(players)))
	for _, ps := range players {
		WritePlayer(p, ps)
	}
}

// ReadAllPlayers decodes a SETTING_ALLPLAYERS payload.
func ReadAllPlayers(r *protocol.RecvPacket) ([]PlayerSettings, error) {
	n, err := r.Unsigned8()
	if err != nil {
		return nil, err
	}
	players := make([]PlayerSettings, n)
	for i := range players {
		if players[i], err = ReadPlayer(r); err != nil {
			return nil, err
		}
	}
	return players, nil
}
