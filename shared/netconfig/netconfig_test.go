package netconfig

import (
	"reflect"
	"testing"

	"github.com/automoto/lockstep/shared/protocol"
)

type oneChunk struct{ b []byte }

func (o *oneChunk) TryRecv() ([]byte, bool) {
	b := o.b
	o.b = nil
	return b, true
}

func TestSettingsWireRoundTrip(t *testing.T) {
	settings := GameSettings{
		Map: MapInfo{Name: "Crater", Filename: "maps/crater.wmf", Savegame: true},
		Tribes: []TribeInfo{
			{Name: "atlanteans", Initializations: []string{"headquarters", "village"}},
			{Name: "barbarians"},
		},
		Players: []PlayerSettings{
			{State: SlotHuman, Name: "host", Tribe: "atlanteans", InitIndex: 1},
			{State: SlotComputer, Name: "AI", Tribe: "barbarians"},
			{State: SlotOpen},
		},
	}

	p := protocol.NewSendPacket(protocol.CmdSettingAllPlayers)
	WriteMap(p, settings.Map)
	WriteTribes(p, settings.Tribes)
	WriteAllPlayers(p, settings.Players)

	var d protocol.Deserializer
	d.Read(&oneChunk{b: p.Bytes()})
	r, err := protocol.NewRecvPacket(&d)
	if err != nil {
		t.Fatalf("NewRecvPacket: %v", err)
	}
	r.Cmd()

	var got GameSettings
	if got.Map, err = ReadMap(r); err != nil {
		t.Fatalf("ReadMap: %v", err)
	}
	if got.Tribes, err = ReadTribes(r); err != nil {
		t.Fatalf("ReadTribes: %v", err)
	}
	if got.Players, err = ReadAllPlayers(r); err != nil {
		t.Fatalf("ReadAllPlayers: %v", err)
	}
	if !reflect.DeepEqual(got, settings) {
		t.Fatalf("settings differ:\n got %+v\nwant %+v", got, settings)
	}
}

func TestCloneIsDeep(t *testing.T) {
	s := GameSettings{
		Tribes:  []TribeInfo{{Name: "a", Initializations: []string{"x"}}},
		Players: []PlayerSettings{{Name: "p"}},
	}
	c := s.Clone()
	c.Players[0].Name = "changed"
	c.Tribes[0].Initializations[0] = "changed"
	if s.Players[0].Name != "p" || s.Tribes[0].Initializations[0] != "x" {
		t.Fatalf("Clone shares storage with the original")
	}
	if !s.HasTribe("a") || s.HasTribe("b") || s.DefaultTribe() != "a" {
		t.Fatalf("tribe lookups wrong")
	}
}
