// Package messages holds the serializable player commands exchanged between
// peers. Every command knows its own wire format; Deserialize dispatches on
// the leading type tag.
package messages

import (
	"fmt"

	"github.com/automoto/lockstep/shared/protocol"
)

// CommandID is the wire tag of a player command.
type CommandID uint8

const (
	CommandBuild CommandID = iota + 1
	CommandBulldoze
	CommandSetPriority
)

// PlayerCommand is an instruction issued by exactly one player and executed
// by every peer at the same due time.
type PlayerCommand interface {
	ID() CommandID
	Sender() uint8
	Duetime() int32
	SetDuetime(t int32)
	// Serialize writes the tag followed by the command fields.
	Serialize(p *protocol.SendPacket)
	deserialize(r *protocol.RecvPacket) error
}

// Header carries the fields shared by all player commands.
type Header struct {
	Player uint8
	Due    int32
}

func (h *Header) Sender() uint8      { return h.Player }
func (h *Header) Duetime() int32     { return h.Due }
func (h *Header) SetDuetime(t int32) { h.Due = t }

// Build places a building of Kind at (X, Y).
type Build struct {
	Header
	Kind uint8
	X, Y int16
}

func (c *Build) ID() CommandID { return CommandBuild }

func (c *Build) Serialize(p *protocol.SendPacket) {
	p.Unsigned8(uint8(CommandBuild))
	p.Unsigned8(c.Player)
	p.Unsigned8(c.Kind)
	p.Unsigned16(uint16(c.X))
	p.Unsigned16(uint16(c.Y))
}

func (c *Build) deserialize(r *protocol.RecvPacket) error {
	var err error
	if c.Player, err = r.Unsigned8(); err != nil {
		return err
	}
	if c.Kind, err = r.Unsigned8(); err != nil {
		return err
	}
	x, err := r.Unsigned16()
	if err != nil {
		return err
	}
	y, err := r.Unsigned16()
	if err != nil {
		return err
	}
	c.X, c.Y = int16(x), int16(y)
	return nil
}

// Bulldoze removes one of the sender's buildings.
type Bulldoze struct {
	Header
	Building uint32
}

func (c *Bulldoze) ID() CommandID { return CommandBulldoze }

func (c *Bulldoze) Serialize(p *protocol.SendPacket) {
	p.Unsigned8(uint8(CommandBulldoze))
	p.Unsigned8(c.Player)
	p.Unsigned32(c.Building)
}

func (c *Bulldoze) deserialize(r *protocol.RecvPacket) error {
	var err error
	if c.Player, err = r.Unsigned8(); err != nil {
		return err
	}
	c.Building, err = r.Unsigned32()
	return err
}

// SetPriority changes how the sender's economy spends its income.
type SetPriority struct {
	Header
	Priority uint8
}

func (c *SetPriority) ID() CommandID { return CommandSetPriority }

func (c *SetPriority) Serialize(p *protocol.SendPacket) {
	p.Unsigned8(uint8(CommandSetPriority))
	p.Unsigned8(c.Player)
	p.Unsigned8(c.Priority)
}

func (c *SetPriority) deserialize(r *protocol.RecvPacket) error {
	var err error
	if c.Player, err = r.Unsigned8(); err != nil {
		return err
	}
	c.Priority, err = r.Unsigned8()
	return err
}

var factories = map[CommandID]func() PlayerCommand{
	CommandBuild:       func() PlayerCommand { return &Build{} },
	CommandBulldoze:    func() PlayerCommand { return &Bulldoze{} },
	CommandSetPriority: func() PlayerCommand { return &SetPriority{} },
}

// Deserialize reads a tagged command from r. The due time is not part of the
// command encoding; the caller sets it from the surrounding frame.
func Deserialize(r *protocol.RecvPacket) (PlayerCommand, error) {
	tag, err := r.Unsigned8()
	if err != nil {
		return nil, err
	}
	newCmd, ok := factories[CommandID(tag)]
	if !ok {
		return nil, fmt.Errorf("unknown player command tag %d", tag)
	}
	cmd := newCmd()
	if err := cmd.deserialize(r); err != nil {
		return nil, fmt.Errorf("player command %d: %w", tag, err)
	}
	return cmd, nil
}
