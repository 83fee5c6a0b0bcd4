package handlers

import (
	"slices"
	"strings"

	"github.com/atcrelay/agent/internal/aviation"
	"github.com/atcrelay/agent/internal/executor"
	"github.com/atcrelay/agent/internal/parser"
	"github.com/atcrelay/agent/internal/sim"

	"github.com/iancoleman/orderedmap"
)

// SystemHandlers answers system queries from a snapshot of the world taken
// at query time.
type SystemHandlers struct {
	world *sim.World
}

func NewSystem(w *sim.World) *SystemHandlers {
	return &SystemHandlers{world: w}
}

// Register binds all system queries onto the given executor.
func (h *SystemHandlers) Register(exec *executor.Executor) {
	exec.RegisterQuery(parser.VerbRunwayDetails, h.handleRunwayDetails)
	exec.RegisterQuery(parser.VerbRoster, h.handleRoster)
	exec.RegisterQuery(parser.VerbFixes, h.handleFixes)
	exec.RegisterQuery(parser.VerbStrips, h.handleStrips)
	exec.RegisterQuery(parser.VerbAIRAC, h.handleAIRAC)
}

type RunwayState struct {
	Heading    int      `json:"heading"`
	LengthFt   int      `json:"length_ft"`
	Occupied   bool     `json:"occupied"`
	OccupiedBy []string `json:"occupied_by"`
}

func (h *SystemHandlers) handleRunwayDetails([]string) (any, error) {
	snap := h.world.Snapshot()

	runways := orderedmap.New()
	for _, r := range snap.Airport.Runways {
		st := RunwayState{Heading: r.Heading, LengthFt: r.LengthFt, OccupiedBy: []string{}}
		for _, ac := range snap.Aircraft {
			if ac.Runway == r.ID && ac.Phase.OccupiesRunway() {
				st.OccupiedBy = append(st.OccupiedBy, ac.Callsign)
			}
		}
		st.Occupied = len(st.OccupiedBy) > 0
		runways.Set(r.ID, st)
	}

	details := orderedmap.New()
	details.Set("icao", snap.Airport.ICAO)
	details.Set("runways", runways)
	return details, nil
}

type RosterEntry struct {
	ID           string         `json:"id"`
	Callsign     string         `json:"callsign"`
	Type         string         `json:"type,omitempty"`
	Controllable bool           `json:"controllable"`
	Phase        aviation.Phase `json:"phase"`
	Altitude     int            `json:"altitude"`
	Heading      int            `json:"heading"`
	Speed        int            `json:"speed"`
	Runway       string         `json:"runway,omitempty"`
}

func (h *SystemHandlers) handleRoster([]string) (any, error) {
	snap := h.world.Snapshot()
	roster := make([]RosterEntry, 0, len(snap.Aircraft))
	for _, ac := range snap.Aircraft {
		roster = append(roster, RosterEntry{
			ID:           ac.ID,
			Callsign:     ac.Callsign,
			Type:         ac.Type,
			Controllable: ac.Controllable,
			Phase:        ac.Phase,
			Altitude:     ac.Altitude,
			Heading:      ac.Heading,
			Speed:        ac.Speed,
			Runway:       ac.Runway,
		})
	}
	return roster, nil
}

type fixPosition struct {
	Lat float64 `json:"lat"`
	Lon float64 `json:"lon"`
}

func (h *SystemHandlers) handleFixes([]string) (any, error) {
	snap := h.world.Snapshot()
	fixes := orderedmap.New()
	for _, f := range snap.Airport.Fixes { // sorted at load
		fixes.Set(f.Name, fixPosition{Lat: f.Lat, Lon: f.Lon})
	}
	return fixes, nil
}

// Strip is the flight strip for one aircraft: what it has been told.
type Strip struct {
	AssignedAltitude int    `json:"assigned_altitude,omitempty"`
	AssignedHeading  int    `json:"assigned_heading,omitempty"`
	AssignedSpeed    int    `json:"assigned_speed,omitempty"`
	Squawk           string `json:"squawk,omitempty"`
	Direct           string `json:"direct,omitempty"`
	Hold             string `json:"hold,omitempty"`
	Runway           string `json:"runway,omitempty"`
}

func (h *SystemHandlers) handleStrips([]string) (any, error) {
	snap := h.world.Snapshot()
	slices.SortFunc(snap.Aircraft, func(a, b aviation.Aircraft) int {
		return strings.Compare(a.Callsign, b.Callsign)
	})

	strips := orderedmap.New()
	for _, ac := range snap.Aircraft {
		strips.Set(ac.Callsign, Strip{
			AssignedAltitude: ac.Assigned.Altitude,
			AssignedHeading:  ac.Assigned.Heading,
			AssignedSpeed:    ac.Assigned.Speed,
			Squawk:           ac.Squawk,
			Direct:           ac.Assigned.Direct,
			Hold:             ac.Assigned.Hold,
			Runway:           ac.Runway,
		})
	}
	return strips, nil
}

func (h *SystemHandlers) handleAIRAC([]string) (any, error) {
	ap := h.world.Airport()
	cycle := ap.AIRAC
	if cycle == "" {
		cycle = "unknown"
	}
	return ap.ICAO + " AIRAC cycle: " + cycle, nil
}
