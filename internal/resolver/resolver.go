// Package resolver picks the single aircraft a transmit instruction is
// addressed to.
package resolver

import (
	"errors"

	"github.com/atcrelay/agent/internal/registry"
)

var (
	ErrNoSuchTarget    = errors.New("no such aircraft, say again")
	ErrAmbiguousTarget = errors.New("multiple aircraft match the callsign, say again")
)

type Finder interface {
	FindByCallsign(target string) []registry.Entity
}

type Resolver struct {
	finder Finder
}

func New(f Finder) *Resolver {
	return &Resolver{finder: f}
}

// Resolve returns the one controllable entity matching target. It never
// guesses: several matches are ambiguous even when one of them is the
// whole callsign. Lookups are made fresh on each call.
func (r *Resolver) Resolve(target string) (registry.Entity, error) {
	var matches []registry.Entity
	for _, e := range r.finder.FindByCallsign(target) {
		if e.Controllable {
			matches = append(matches, e)
		}
	}

	switch len(matches) {
	case 0:
		return registry.Entity{}, ErrNoSuchTarget
	case 1:
		return matches[0], nil
	default:
		return registry.Entity{}, ErrAmbiguousTarget
	}
}
