// Package registry exposes the simulation's aircraft as addressable
// entities. It is a read-only view: every lookup reflects the world's
// membership at call time.
package registry

import (
	"strings"

	"github.com/atcrelay/agent/internal/sim"
)

type Entity struct {
	ID           string
	Callsign     string
	Controllable bool
	Surface      sim.Handle
}

type Registry struct {
	world *sim.World
}

func New(w *sim.World) *Registry {
	return &Registry{world: w}
}

// MatchCallsign reports whether target addresses callsign: a
// case-insensitive prefix match.
func MatchCallsign(callsign, target string) bool {
	if target == "" {
		return false
	}
	return strings.HasPrefix(strings.ToUpper(callsign), strings.ToUpper(target))
}

// FindByCallsign returns every entity, controllable or not, whose callsign
// matches target, in simulation entry order.
func (r *Registry) FindByCallsign(target string) []Entity {
	var matches []Entity
	for _, m := range r.world.Members() {
		if MatchCallsign(m.Callsign, target) {
			matches = append(matches, r.entity(m))
		}
	}
	return matches
}

func (r *Registry) FindByID(id string) (Entity, bool) {
	for _, m := range r.world.Members() {
		if m.ID == id {
			return r.entity(m), true
		}
	}
	return Entity{}, false
}

func (r *Registry) entity(m sim.Member) Entity {
	return Entity{
		ID:           m.ID,
		Callsign:     m.Callsign,
		Controllable: m.Controllable,
		Surface:      r.world.Handle(m.ID),
	}
}
