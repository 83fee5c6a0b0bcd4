// Package sim holds the shared, mutable simulation state that instructions
// are executed against.
package sim

import (
	"fmt"
	"slices"
	"sync"

	"github.com/atcrelay/agent/internal/aviation"

	"github.com/brunoga/deep"
)

// World is the live set of aircraft plus the airport they operate at.
// Membership may change at any time (aircraft enter and leave); all access
// goes through the World's lock.
type World struct {
	mu       sync.RWMutex
	airport  *aviation.Airport
	aircraft []*aviation.Aircraft // in order of entry
}

// Member is the addressing view of one aircraft.
type Member struct {
	ID           string
	Callsign     string
	Controllable bool
}

// Snapshot is a deep copy of the world; mutating it has no effect on the
// simulation.
type Snapshot struct {
	Airport  aviation.Airport
	Aircraft []aviation.Aircraft
}

func NewWorld(ap *aviation.Airport) *World {
	return &World{airport: ap}
}

func (w *World) Airport() *aviation.Airport {
	return w.airport
}

// Add enters an aircraft into the simulation.
func (w *World) Add(ac aviation.Aircraft) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, other := range w.aircraft {
		if other.Callsign == ac.Callsign || other.ID == ac.ID {
			return fmt.Errorf("%s: %w", ac.Callsign, aviation.ErrDuplicateCallsign)
		}
	}
	w.aircraft = append(w.aircraft, &ac)
	return nil
}

// Remove takes the aircraft with the given id out of the simulation and
// reports whether it was present.
func (w *World) Remove(id string) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	n := len(w.aircraft)
	w.aircraft = slices.DeleteFunc(w.aircraft, func(ac *aviation.Aircraft) bool { return ac.ID == id })
	return len(w.aircraft) != n
}

// SetControllable changes whether an aircraft may be addressed by
// instructions, e.g. after a handoff.
func (w *World) SetControllable(id string, c bool) bool {
	w.mu.Lock()
	defer w.mu.Unlock()

	for _, ac := range w.aircraft {
		if ac.ID == id {
			ac.Controllable = c
			return true
		}
	}
	return false
}

// Members returns the current membership. Each call reflects the world at
// that moment; nothing is cached.
func (w *World) Members() []Member {
	w.mu.RLock()
	defer w.mu.RUnlock()

	m := make([]Member, len(w.aircraft))
	for i, ac := range w.aircraft {
		m[i] = Member{ID: ac.ID, Callsign: ac.Callsign, Controllable: ac.Controllable}
	}
	return m
}

// Control runs fn on the live aircraft with the given id while holding the
// world lock.
func (w *World) Control(id string, fn func(ac *aviation.Aircraft, ap *aviation.Airport) error) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	idx := slices.IndexFunc(w.aircraft, func(ac *aviation.Aircraft) bool { return ac.ID == id })
	if idx == -1 {
		return aviation.ErrNoAircraftForID
	}
	return fn(w.aircraft[idx], w.airport)
}

func (w *World) Snapshot() Snapshot {
	w.mu.RLock()
	defer w.mu.RUnlock()

	acs := deep.MustCopy(w.aircraft)
	s := Snapshot{
		Airport:  deep.MustCopy(*w.airport),
		Aircraft: make([]aviation.Aircraft, len(acs)),
	}
	for i, ac := range acs {
		s.Aircraft[i] = *ac
	}
	return s
}

// Handle returns the control surface for the aircraft with the given id.
func (w *World) Handle(id string) Handle {
	return Handle{w: w, id: id}
}

// Handle is an opaque reference to one aircraft's controls. It stays valid
// after the aircraft leaves the simulation; Apply then fails.
type Handle struct {
	w  *World
	id string
}

func (h Handle) ID() string { return h.id }

func (h Handle) Apply(fn func(ac *aviation.Aircraft, ap *aviation.Airport) error) error {
	return h.w.Control(h.id, fn)
}
