// Package aviation holds the controllable aircraft model and the airport
// geometry it is controlled against.
package aviation

import (
	"fmt"
	"slices"
	"strings"
)

type Phase string

const (
	PhaseApron    Phase = "apron"
	PhaseTaxi     Phase = "taxi"
	PhaseHolding  Phase = "holding"
	PhaseLinedUp  Phase = "lined_up"
	PhaseTakeoff  Phase = "takeoff"
	PhaseAirborne Phase = "airborne"
	PhaseApproach Phase = "approach"
	PhaseLanded   Phase = "landed"
)

func (p Phase) Airborne() bool {
	return p == PhaseAirborne || p == PhaseApproach
}

func (p Phase) OnGround() bool {
	return !p.Airborne()
}

// OccupiesRunway reports whether an aircraft in this phase is physically on
// its runway.
func (p Phase) OccupiesRunway() bool {
	return p == PhaseLinedUp || p == PhaseTakeoff || p == PhaseLanded
}

type TurnDirection string

const (
	TurnShortest TurnDirection = ""
	TurnLeft     TurnDirection = "left"
	TurnRight    TurnDirection = "right"
)

// Assignments are the controller-issued targets for an aircraft. Zero
// values mean "nothing assigned".
type Assignments struct {
	Altitude int           `yaml:"altitude,omitempty" json:"altitude,omitempty"`
	Heading  int           `yaml:"heading,omitempty" json:"heading,omitempty"`
	Turn     TurnDirection `yaml:"turn,omitempty" json:"turn,omitempty"`
	Speed    int           `yaml:"speed,omitempty" json:"speed,omitempty"`
	Direct   string        `yaml:"direct,omitempty" json:"direct,omitempty"`
	Hold     string        `yaml:"hold,omitempty" json:"hold,omitempty"`
	Expedite bool          `yaml:"expedite,omitempty" json:"expedite,omitempty"`
}

type Aircraft struct {
	ID           string `yaml:"id"`
	Callsign     string `yaml:"callsign"`
	Type         string `yaml:"type"`
	Controllable bool   `yaml:"controllable"`
	Phase        Phase  `yaml:"phase"`

	Altitude int `yaml:"altitude"` // feet MSL
	Heading  int `yaml:"heading"`  // degrees magnetic, 1-360
	Speed    int `yaml:"speed"`    // knots indicated

	Runway string `yaml:"runway,omitempty"`
	Squawk string `yaml:"squawk,omitempty"`

	Assigned Assignments `yaml:"assigned,omitempty"`

	Ceiling  int `yaml:"ceiling"`
	MinSpeed int `yaml:"min_speed"`
	MaxSpeed int `yaml:"max_speed"`
}

// Default performance limits used when a scenario leaves them out.
const (
	DefaultCeiling  = 41000
	DefaultMinSpeed = 110
	DefaultMaxSpeed = 350
)

func (ac *Aircraft) fillDefaults() {
	ac.Callsign = strings.ToUpper(strings.TrimSpace(ac.Callsign))
	if ac.ID == "" {
		ac.ID = ac.Callsign
	}
	if ac.Phase == "" {
		ac.Phase = PhaseApron
	}
	if ac.Ceiling == 0 {
		ac.Ceiling = DefaultCeiling
	}
	if ac.MinSpeed == 0 {
		ac.MinSpeed = DefaultMinSpeed
	}
	if ac.MaxSpeed == 0 {
		ac.MaxSpeed = DefaultMaxSpeed
	}
	ac.Runway = strings.ToUpper(ac.Runway)
}

func (ac *Aircraft) Check() error {
	if ac.Callsign == "" {
		return fmt.Errorf("%w: missing callsign", ErrInvalidAircraftSpec)
	}
	if strings.ContainsFunc(ac.Callsign, func(r rune) bool { return r == ' ' || r == '\t' }) {
		return fmt.Errorf("%w: %q: callsign contains whitespace", ErrInvalidAircraftSpec, ac.Callsign)
	}
	if ac.MinSpeed > ac.MaxSpeed {
		return fmt.Errorf("%w: %s: min_speed above max_speed", ErrInvalidAircraftSpec, ac.Callsign)
	}
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Control surface

func (ac *Aircraft) AssignAltitude(ft int, expedite bool) error {
	if ft <= 0 || ft > ac.Ceiling {
		return ErrInvalidAltitude
	}
	ac.Assigned.Altitude = ft
	ac.Assigned.Expedite = expedite
	return nil
}

func (ac *Aircraft) AssignHeading(hdg int, turn TurnDirection) error {
	if hdg < 1 || hdg > 360 {
		return ErrInvalidHeading
	}
	if !ac.Phase.Airborne() {
		return ErrNotAirborne
	}
	ac.Assigned.Heading = hdg
	ac.Assigned.Turn = turn
	ac.Assigned.Direct = ""
	ac.Assigned.Hold = ""
	return nil
}

func (ac *Aircraft) AssignSpeed(kts int) error {
	if kts < ac.MinSpeed || kts > ac.MaxSpeed {
		return ErrInvalidSpeed
	}
	ac.Assigned.Speed = kts
	return nil
}

func (ac *Aircraft) AssignSquawk(code string) error {
	if len(code) != 4 || strings.IndexFunc(code, func(r rune) bool { return r < '0' || r > '7' }) != -1 {
		return ErrInvalidSquawk
	}
	ac.Squawk = code
	return nil
}

func (ac *Aircraft) DirectTo(ap *Airport, fix string) error {
	f, ok := ap.Fix(fix)
	if !ok {
		return ErrUnknownFix
	}
	if !ac.Phase.Airborne() {
		return ErrNotAirborne
	}
	ac.Assigned.Direct = f.Name
	ac.Assigned.Heading = 0
	ac.Assigned.Turn = TurnShortest
	ac.Assigned.Hold = ""
	return nil
}

// Hold at the named fix, or at the present position if fix is empty.
func (ac *Aircraft) Hold(ap *Airport, fix string) error {
	name := "present position"
	if fix != "" {
		f, ok := ap.Fix(fix)
		if !ok {
			return ErrUnknownFix
		}
		name = f.Name
	}
	if !ac.Phase.Airborne() {
		return ErrNotAirborne
	}
	ac.Assigned.Hold = name
	return nil
}

func (ac *Aircraft) TaxiTo(ap *Airport, rwy string) error {
	r, ok := ap.Runway(rwy)
	if !ok {
		return ErrUnknownRunway
	}
	switch ac.Phase {
	case PhaseApron, PhaseTaxi, PhaseHolding:
	default:
		return ErrNotOnGround
	}
	ac.Runway = r.ID
	ac.Phase = PhaseHolding
	return nil
}

func (ac *Aircraft) LineUp() error {
	if ac.Phase != PhaseHolding {
		return ErrNotHoldingShort
	}
	ac.Phase = PhaseLinedUp
	return nil
}

func (ac *Aircraft) Takeoff() error {
	if ac.Phase != PhaseHolding && ac.Phase != PhaseLinedUp {
		return ErrNotHoldingShort
	}
	ac.Phase = PhaseTakeoff
	return nil
}

func (ac *Aircraft) ClearedToLand(ap *Airport, rwy string) error {
	r, ok := ap.Runway(rwy)
	if !ok {
		return ErrUnknownRunway
	}
	if !ac.Phase.Airborne() {
		return ErrNotAirborne
	}
	ac.Runway = r.ID
	ac.Phase = PhaseApproach
	ac.Assigned.Heading = 0
	ac.Assigned.Direct = ""
	ac.Assigned.Hold = ""
	return nil
}

///////////////////////////////////////////////////////////////////////////
// Airport

type Runway struct {
	ID       string `yaml:"id"`
	Heading  int    `yaml:"heading"`
	LengthFt int    `yaml:"length_ft"`
}

type Fix struct {
	Name string  `yaml:"name"`
	Lat  float64 `yaml:"lat"`
	Lon  float64 `yaml:"lon"`
}

type Airport struct {
	ICAO    string   `yaml:"icao"`
	AIRAC   string   `yaml:"airac,omitempty"`
	Runways []Runway `yaml:"runways"`
	Fixes   []Fix    `yaml:"fixes"`
}

func (ap *Airport) Runway(id string) (Runway, bool) {
	id = strings.ToUpper(id)
	for _, r := range ap.Runways {
		if r.ID == id {
			return r, true
		}
	}
	return Runway{}, false
}

func (ap *Airport) Fix(name string) (Fix, bool) {
	name = strings.ToUpper(name)
	for _, f := range ap.Fixes {
		if f.Name == name {
			return f, true
		}
	}
	return Fix{}, false
}

func (ap *Airport) normalize() error {
	ap.ICAO = strings.ToUpper(ap.ICAO)
	if ap.ICAO == "" {
		return fmt.Errorf("airport: missing icao")
	}
	seen := make(map[string]bool)
	for i := range ap.Runways {
		r := &ap.Runways[i]
		r.ID = strings.ToUpper(r.ID)
		if r.ID == "" {
			return fmt.Errorf("%s: runway %d: missing id", ap.ICAO, i)
		}
		if seen[r.ID] {
			return fmt.Errorf("%s: runway %s: duplicate", ap.ICAO, r.ID)
		}
		seen[r.ID] = true
	}
	for i := range ap.Fixes {
		ap.Fixes[i].Name = strings.ToUpper(ap.Fixes[i].Name)
	}
	slices.SortFunc(ap.Fixes, func(a, b Fix) int { return strings.Compare(a.Name, b.Name) })
	return nil
}
