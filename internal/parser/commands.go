package parser

import (
	"strings"
)

// Canonical sub-command names.
const (
	CmdAltitude = "altitude"
	CmdHeading  = "heading"
	CmdSpeed    = "speed"
	CmdSquawk   = "squawk"
	CmdDirect   = "direct"
	CmdHold     = "hold"
	CmdTaxi     = "taxi"
	CmdLineUp   = "lineup"
	CmdTakeoff  = "takeoff"
	CmdLand     = "land"
)

type subCommandSpec struct {
	name    string
	aliases []string
	// parse consumes this sub-command's arguments from the front of args
	// and returns them along with how many tokens were used.
	parse func(args []string) ([]string, int, error)
}

var subCommands = []subCommandSpec{
	{CmdAltitude, []string{"a", "c", "climb", "d", "descend", "altitude"}, parseAltitude},
	{CmdHeading, []string{"fh", "h", "heading", "t", "turn"}, parseHeading},
	{CmdSpeed, []string{"sp", "speed"}, numberArg},
	{CmdSquawk, []string{"sq", "squawk"}, numberArg},
	{CmdDirect, []string{"dct", "direct", "pd"}, nameArg},
	{CmdHold, []string{"hold"}, optionalNameArg},
	{CmdTaxi, []string{"taxi", "wait", "w"}, nameArg},
	{CmdLineUp, []string{"lu", "lineup"}, noArgs},
	{CmdTakeoff, []string{"to", "cto", "takeoff"}, noArgs},
	{CmdLand, []string{"i", "ils", "land"}, nameArg},
}

var aliasToSpec map[string]*subCommandSpec

func init() {
	aliasToSpec = make(map[string]*subCommandSpec)
	for i := range subCommands {
		for _, a := range subCommands[i].aliases {
			aliasToSpec[a] = &subCommands[i]
		}
	}
}

func lookupSubCommand(alias string) (*subCommandSpec, bool) {
	s, ok := aliasToSpec[alias]
	return s, ok
}

// IsSubCommand reports whether word is a sub-command name or alias.
func IsSubCommand(word string) bool {
	_, ok := aliasToSpec[strings.ToLower(word)]
	return ok
}

func isAllDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, ch := range s {
		if ch < '0' || ch > '9' {
			return false
		}
	}
	return true
}

func noArgs([]string) ([]string, int, error) {
	return nil, 0, nil
}

func numberArg(args []string) ([]string, int, error) {
	if len(args) == 0 || IsSubCommand(args[0]) {
		return nil, 0, ErrMissingArgument
	}
	if !isAllDigits(args[0]) {
		return nil, 0, &Error{Token: args[0], Err: ErrInvalidArgument}
	}
	return []string{args[0]}, 1, nil
}

func nameArg(args []string) ([]string, int, error) {
	if len(args) == 0 || IsSubCommand(args[0]) {
		return nil, 0, ErrMissingArgument
	}
	return []string{strings.ToUpper(args[0])}, 1, nil
}

func optionalNameArg(args []string) ([]string, int, error) {
	if len(args) == 0 || IsSubCommand(args[0]) {
		return nil, 0, nil
	}
	return []string{strings.ToUpper(args[0])}, 1, nil
}

// altitude in hundreds of feet, optionally followed by "x" to expedite.
func parseAltitude(args []string) ([]string, int, error) {
	out, n, err := numberArg(args)
	if err != nil {
		return nil, 0, err
	}
	if len(args) > 1 {
		switch strings.ToLower(args[1]) {
		case "x", "expedite":
			return append(out, "x"), n + 1, nil
		}
	}
	return out, n, nil
}

// heading with an optional leading turn direction: "270", "l 270",
// "right 090".
func parseHeading(args []string) ([]string, int, error) {
	if len(args) == 0 {
		return nil, 0, ErrMissingArgument
	}
	var dir string
	switch strings.ToLower(args[0]) {
	case "l", "left":
		dir = "left"
	case "r", "right":
		dir = "right"
	}
	if dir == "" {
		return headingValue(args)
	}
	out, n, err := headingValue(args[1:])
	if err != nil {
		return nil, 0, err
	}
	return append([]string{dir}, out...), n + 1, nil
}

func headingValue(args []string) ([]string, int, error) {
	out, n, err := numberArg(args)
	if err != nil {
		return nil, 0, err
	}
	if len(out[0]) > 3 {
		return nil, 0, &Error{Token: out[0], Err: ErrInvalidArgument}
	}
	return out, n, nil
}
