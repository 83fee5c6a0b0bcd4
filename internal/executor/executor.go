package executor

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/atcrelay/agent/internal/aviation"
	"github.com/atcrelay/agent/internal/log"
	"github.com/atcrelay/agent/internal/parser"
	"github.com/atcrelay/agent/internal/registry"
)

var (
	ErrUnknownSystemCommand = errors.New("command not found")
	ErrUnknownSubCommand    = errors.New("unsupported command")
)

// Handler applies one sub-command to an aircraft and returns its readback.
// It runs with the world locked and must not block.
type Handler func(ac *aviation.Aircraft, ap *aviation.Airport, args []string) (string, error)

// Query computes the payload of a system instruction. Queries must not
// modify the simulation.
type Query func(args []string) (any, error)

// SubCommandError reports the sub-command that stopped a transmit
// instruction. Sub-commands before Index have already been applied.
type SubCommandError struct {
	Index   int
	Command parser.SubCommand
	Err     error
}

func (e *SubCommandError) Error() string {
	return fmt.Sprintf("%s: %v", e.Command, e.Err)
}

func (e *SubCommandError) Unwrap() error { return e.Err }

// Executor dispatches sub-commands and system verbs to registered handlers.
type Executor struct {
	handlers map[string]Handler
	queries  map[string]Query
	lg       *log.Logger
}

func New(lg *log.Logger) *Executor {
	return &Executor{
		handlers: make(map[string]Handler),
		queries:  make(map[string]Query),
		lg:       lg.With(slog.String("component", "executor")),
	}
}

func (e *Executor) Register(name string, h Handler) {
	e.handlers[name] = h
}

func (e *Executor) RegisterQuery(verb string, q Query) {
	e.queries[verb] = q
}

// Transmit applies cmds to the target strictly in order. The first failure
// stops the instruction; effects of earlier sub-commands are kept. On
// success the combined readback is returned.
func (e *Executor) Transmit(target registry.Entity, cmds []parser.SubCommand) (string, error) {
	readbacks := []string{target.Callsign}

	for i, cmd := range cmds {
		h, ok := e.handlers[cmd.Name]
		if !ok {
			return "", &SubCommandError{Index: i, Command: cmd, Err: ErrUnknownSubCommand}
		}

		var rb string
		err := target.Surface.Apply(func(ac *aviation.Aircraft, ap *aviation.Airport) error {
			var err error
			rb, err = h(ac, ap, cmd.Args)
			return err
		})
		if err != nil {
			e.lg.Info("sub-command failed", slog.String("callsign", target.Callsign),
				slog.String("command", cmd.String()), slog.Int("applied", i), slog.Any("error", err))
			return "", &SubCommandError{Index: i, Command: cmd, Err: err}
		}
		e.lg.Debug("sub-command applied", slog.String("callsign", target.Callsign), slog.String("command", cmd.String()))

		if rb != "" {
			readbacks = append(readbacks, rb)
		}
	}

	return strings.Join(readbacks, ", "), nil
}

// System runs the query registered for verb.
func (e *Executor) System(verb string, args []string) (any, error) {
	q, ok := e.queries[verb]
	if !ok {
		e.lg.Warnf("unknown system command: %s", verb)
		return nil, ErrUnknownSystemCommand
	}
	return q(args)
}
