package aviation

import "errors"

var (
	ErrInvalidAltitude     = errors.New("invalid altitude")
	ErrInvalidHeading      = errors.New("invalid heading")
	ErrInvalidSpeed        = errors.New("invalid speed")
	ErrInvalidSquawk       = errors.New("invalid squawk code")
	ErrNoAircraftForID     = errors.New("aircraft is no longer in the simulation")
	ErrNotAirborne         = errors.New("unable, not airborne")
	ErrNotOnGround         = errors.New("unable, not on the ground")
	ErrNotHoldingShort     = errors.New("unable, not holding short of a runway")
	ErrUnknownFix          = errors.New("unknown fix")
	ErrUnknownRunway       = errors.New("unknown runway")
	ErrDuplicateCallsign   = errors.New("duplicate callsign")
	ErrInvalidAircraftSpec = errors.New("invalid aircraft definition")
)
