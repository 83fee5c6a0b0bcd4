package registry

import (
	"testing"

	"github.com/atcrelay/agent/internal/aviation"
	"github.com/atcrelay/agent/internal/sim"
)

func TestMatchCallsign(t *testing.T) {
	for _, tc := range []struct {
		callsign, target string
		want             bool
	}{
		{"AAL123", "AAL123", true},
		{"AAL123", "aal12", true},
		{"AAL123", "AAL1234", false},
		{"AAL123", "AL1", false},
		{"AAL123", "", false},
	} {
		if got := MatchCallsign(tc.callsign, tc.target); got != tc.want {
			t.Errorf("MatchCallsign(%q, %q) = %v, want %v", tc.callsign, tc.target, got, tc.want)
		}
	}
}

func TestFindReflectsLiveMembership(t *testing.T) {
	ap := &aviation.Airport{ICAO: "KSEA"}
	w := sim.NewWorld(ap)
	r := New(w)

	if got := r.FindByCallsign("AAL"); len(got) != 0 {
		t.Fatalf("expected no matches in empty world, got %v", got)
	}

	w.Add(aviation.NewAircraft("AAL123", aviation.PhaseAirborne))
	w.Add(aviation.NewAircraft("AAL124", aviation.PhaseAirborne))
	w.Add(aviation.NewAircraft("DAL9", aviation.PhaseApron))

	if got := r.FindByCallsign("aal12"); len(got) != 2 {
		t.Errorf("expected 2 matches, got %d", len(got))
	}

	w.Remove("AAL124")
	got := r.FindByCallsign("AAL12")
	if len(got) != 1 || got[0].Callsign != "AAL123" {
		t.Errorf("registry did not see removal: %+v", got)
	}
	if got[0].Surface.ID() != "AAL123" {
		t.Errorf("surface bound to %q", got[0].Surface.ID())
	}

	if e, ok := r.FindByID("DAL9"); !ok || e.Callsign != "DAL9" {
		t.Errorf("FindByID: %+v %v", e, ok)
	}
	if _, ok := r.FindByID("AAL124"); ok {
		t.Errorf("FindByID found removed aircraft")
	}
}
