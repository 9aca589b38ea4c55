package archetypes

import (
	"github.com/automoto/lockstep/components"
	"github.com/automoto/lockstep/tags"
	"github.com/yohamta/donburi"
)

var (
	Player = newArchetype(
		tags.Player,
		components.Player,
	)
	Building = newArchetype(
		tags.Building,
		components.Building,
	)
	Economy = newArchetype(
		tags.Economy,
		components.Economy,
	)
)

type archetype struct {
	components []donburi.IComponentType
}

func newArchetype(cs ...donburi.IComponentType) *archetype {
	return &archetype{
		components: cs,
	}
}

func (a *archetype) Spawn(w donburi.World, cs ...donburi.IComponentType) *donburi.Entry {
	return w.Entry(w.Create(append(a.components, cs...)...))
}
