// Package handlers binds aircraft control sub-commands and system queries
// onto the executor.
package handlers

import (
	"fmt"
	"strconv"

	"github.com/atcrelay/agent/internal/aviation"
	"github.com/atcrelay/agent/internal/executor"
	"github.com/atcrelay/agent/internal/parser"
)

// AircraftHandlers implements the transmit sub-commands against an
// aircraft's control surface.
type AircraftHandlers struct{}

func NewAircraft() *AircraftHandlers {
	return &AircraftHandlers{}
}

// Register binds all aircraft sub-command handlers onto the given executor.
func (h *AircraftHandlers) Register(exec *executor.Executor) {
	exec.Register(parser.CmdAltitude, h.handleAltitude)
	exec.Register(parser.CmdHeading, h.handleHeading)
	exec.Register(parser.CmdSpeed, h.handleSpeed)
	exec.Register(parser.CmdSquawk, h.handleSquawk)
	exec.Register(parser.CmdDirect, h.handleDirect)
	exec.Register(parser.CmdHold, h.handleHold)
	exec.Register(parser.CmdTaxi, h.handleTaxi)
	exec.Register(parser.CmdLineUp, h.handleLineUp)
	exec.Register(parser.CmdTakeoff, h.handleTakeoff)
	exec.Register(parser.CmdLand, h.handleLand)
}

// --- sub-command handlers ---

func (h *AircraftHandlers) handleAltitude(ac *aviation.Aircraft, _ *aviation.Airport, args []string) (string, error) {
	hundreds, err := strconv.Atoi(args[0])
	// Range-check in hundreds so the conversion to feet cannot overflow.
	if err != nil || hundreds <= 0 || hundreds > ac.Ceiling/100 {
		return "", aviation.ErrInvalidAltitude
	}
	ft := hundreds * 100
	expedite := len(args) > 1 && args[1] == "x"
	if err := ac.AssignAltitude(ft, expedite); err != nil {
		return "", err
	}

	verb := "maintain"
	switch {
	case ft > ac.Altitude:
		verb = "climb and maintain"
	case ft < ac.Altitude:
		verb = "descend and maintain"
	}
	rb := verb + " " + FormatAltitude(ft)
	if expedite {
		rb += " and expedite"
	}
	return rb, nil
}

func (h *AircraftHandlers) handleHeading(ac *aviation.Aircraft, _ *aviation.Airport, args []string) (string, error) {
	turn := aviation.TurnShortest
	if len(args) == 2 {
		turn = aviation.TurnDirection(args[0])
		args = args[1:]
	}
	hdg, err := strconv.Atoi(args[0])
	if err != nil {
		return "", aviation.ErrInvalidHeading
	}
	if err := ac.AssignHeading(hdg, turn); err != nil {
		return "", err
	}
	if turn == aviation.TurnShortest {
		return fmt.Sprintf("fly heading %03d", hdg), nil
	}
	return fmt.Sprintf("turn %s heading %03d", turn, hdg), nil
}

func (h *AircraftHandlers) handleSpeed(ac *aviation.Aircraft, _ *aviation.Airport, args []string) (string, error) {
	kts, err := strconv.Atoi(args[0])
	if err != nil {
		return "", aviation.ErrInvalidSpeed
	}
	if err := ac.AssignSpeed(kts); err != nil {
		return "", err
	}
	switch {
	case kts > ac.Speed:
		return fmt.Sprintf("increase speed to %d", kts), nil
	case kts < ac.Speed:
		return fmt.Sprintf("reduce speed to %d", kts), nil
	default:
		return fmt.Sprintf("maintain %d knots", kts), nil
	}
}

func (h *AircraftHandlers) handleSquawk(ac *aviation.Aircraft, _ *aviation.Airport, args []string) (string, error) {
	if err := ac.AssignSquawk(args[0]); err != nil {
		return "", err
	}
	return "squawk " + args[0], nil
}

func (h *AircraftHandlers) handleDirect(ac *aviation.Aircraft, ap *aviation.Airport, args []string) (string, error) {
	if err := ac.DirectTo(ap, args[0]); err != nil {
		return "", err
	}
	return "proceed direct " + ac.Assigned.Direct, nil
}

func (h *AircraftHandlers) handleHold(ac *aviation.Aircraft, ap *aviation.Airport, args []string) (string, error) {
	var fix string
	if len(args) > 0 {
		fix = args[0]
	}
	if err := ac.Hold(ap, fix); err != nil {
		return "", err
	}
	return "hold at " + ac.Assigned.Hold, nil
}

func (h *AircraftHandlers) handleTaxi(ac *aviation.Aircraft, ap *aviation.Airport, args []string) (string, error) {
	if err := ac.TaxiTo(ap, args[0]); err != nil {
		return "", err
	}
	return "taxi to runway " + ac.Runway, nil
}

func (h *AircraftHandlers) handleLineUp(ac *aviation.Aircraft, _ *aviation.Airport, _ []string) (string, error) {
	if err := ac.LineUp(); err != nil {
		return "", err
	}
	return "runway " + ac.Runway + ", line up and wait", nil
}

func (h *AircraftHandlers) handleTakeoff(ac *aviation.Aircraft, _ *aviation.Airport, _ []string) (string, error) {
	if err := ac.Takeoff(); err != nil {
		return "", err
	}
	return "runway " + ac.Runway + ", cleared for takeoff", nil
}

func (h *AircraftHandlers) handleLand(ac *aviation.Aircraft, ap *aviation.Airport, args []string) (string, error) {
	if err := ac.ClearedToLand(ap, args[0]); err != nil {
		return "", err
	}
	return "cleared ILS runway " + ac.Runway + " approach", nil
}

// FormatAltitude renders feet the way they are read back: flight levels
// at and above 18,000 feet, thousands otherwise.
func FormatAltitude(ft int) string {
	if ft >= 18000 {
		return fmt.Sprintf("FL%03d", ft/100)
	}
	if ft < 1000 {
		return strconv.Itoa(ft)
	}
	return fmt.Sprintf("%d,%03d", ft/1000, ft%1000)
}
