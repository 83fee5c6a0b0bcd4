// Package parser turns instruction text into a structured instruction.
//
// An instruction is either a system instruction (a fixed verb such as "rd")
// or a transmit instruction: a callsign followed by one or more
// sub-commands, e.g. "AAL123 fh 270 c 100 sp 210".
package parser

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmpty           = errors.New("empty instruction")
	ErrNoSubCommands   = errors.New("no command given")
	ErrUnknownCommand  = errors.New("unknown command")
	ErrMissingArgument = errors.New("missing argument")
	ErrInvalidArgument = errors.New("invalid argument")
)

// Error is returned for all malformed input.
type Error struct {
	Token string // offending token, if any
	Err   error
}

func (e *Error) Error() string {
	if e.Token == "" {
		return "command not understood: " + e.Err.Error()
	}
	return fmt.Sprintf("command not understood: %s: %v", e.Token, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

type Instruction interface {
	isInstruction()
}

type System struct {
	Verb string
	Args []string
}

type Transmit struct {
	Callsign string
	Commands []SubCommand
}

type SubCommand struct {
	Name string // canonical name, e.g. "heading"
	Args []string
}

func (System) isInstruction()   {}
func (Transmit) isInstruction() {}

func (s SubCommand) String() string {
	return strings.TrimSpace(s.Name + " " + strings.Join(s.Args, " "))
}

// Canonical system verbs.
const (
	VerbRunwayDetails = "rd"
	VerbRoster        = "roster"
	VerbFixes         = "fixes"
	VerbStrips        = "strips"
	VerbAIRAC         = "airac"
)

// Verbs of the simulator's own console. They parse as system instructions
// and take free-form arguments, but the agent has no handler for them.
const (
	VerbPause    = "pause"
	VerbTimewarp = "timewarp"
	VerbTutorial = "tutorial"
	VerbAuto     = "auto"
	VerbClear    = "clear"
	VerbAirport  = "airport"
)

var systemVerbs = map[string]string{
	"rd":       VerbRunwayDetails,
	"runways":  VerbRunwayDetails,
	"roster":   VerbRoster,
	"aircraft": VerbRoster,
	"ac":       VerbRoster,
	"fixes":    VerbFixes,
	"strips":   VerbStrips,
	"airac":    VerbAIRAC,
	"pause":    VerbPause,
	"timewarp": VerbTimewarp,
	"tutorial": VerbTutorial,
	"auto":     VerbAuto,
	"clear":    VerbClear,
	"airport":  VerbAirport,
}

// queryVerbs take no arguments.
var queryVerbs = map[string]bool{
	VerbRunwayDetails: true,
	VerbRoster:        true,
	VerbFixes:         true,
	VerbStrips:        true,
	VerbAIRAC:         true,
}

// Parser is stateless; the zero value is ready to use.
type Parser struct{}

func New() *Parser { return &Parser{} }

func (*Parser) Parse(text string) (Instruction, error) {
	return Parse(text)
}

func Parse(text string) (Instruction, error) {
	tokens := strings.Fields(text)
	if len(tokens) == 0 {
		return nil, &Error{Err: ErrEmpty}
	}

	if verb, ok := systemVerbs[strings.ToLower(tokens[0])]; ok {
		args := tokens[1:]
		if len(args) == 0 {
			return System{Verb: verb}, nil
		}
		if queryVerbs[verb] {
			return nil, &Error{Token: args[0], Err: ErrInvalidArgument}
		}
		return System{Verb: verb, Args: args}, nil
	}

	tx := Transmit{Callsign: strings.ToUpper(tokens[0])}
	rest := tokens[1:]
	if len(rest) == 0 {
		return nil, &Error{Token: tokens[0], Err: ErrNoSubCommands}
	}

	for len(rest) > 0 {
		name := strings.ToLower(rest[0])
		spec, ok := lookupSubCommand(name)
		if !ok {
			return nil, &Error{Token: rest[0], Err: ErrUnknownCommand}
		}
		args, n, err := spec.parse(rest[1:])
		if err != nil {
			var perr *Error
			if errors.As(err, &perr) {
				return nil, perr
			}
			return nil, &Error{Token: rest[0], Err: err}
		}
		tx.Commands = append(tx.Commands, SubCommand{Name: spec.name, Args: args})
		rest = rest[1+n:]
	}
	return tx, nil
}
