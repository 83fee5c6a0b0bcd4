package pipeline

import (
	"errors"
	"time"

	"github.com/atcrelay/agent/internal/executor"
	"github.com/atcrelay/agent/internal/parser"
	"github.com/atcrelay/agent/internal/resolver"

	"github.com/google/uuid"
)

// Token correlates a submitted instruction with its outcome. Tokens are
// chosen by the origin.
type Token string

// NewLocalToken returns a token for instructions typed at the local
// console.
func NewLocalToken() Token {
	return Token("local-" + uuid.NewString())
}

type State int

const (
	Idle State = iota
	TypingPlayback
	Parsing
	Resolving
	Executing
	Responding
)

func (s State) String() string {
	switch s {
	case Idle:
		return "Idle"
	case TypingPlayback:
		return "TypingPlayback"
	case Parsing:
		return "Parsing"
	case Resolving:
		return "Resolving"
	case Executing:
		return "Executing"
	case Responding:
		return "Responding"
	default:
		return "State(?)"
	}
}

// QueuedInstruction is an admitted instruction that has not started
// processing yet.
type QueuedInstruction struct {
	Token       Token
	RawText     string
	SubmittedAt time.Time

	origin Origin
}

// Kind classifies why an instruction failed.
type Kind string

const (
	KindNone                 Kind = ""
	KindParseError           Kind = "ParseError"
	KindNoSuchTarget         Kind = "NoSuchTarget"
	KindAmbiguousTarget      Kind = "AmbiguousTarget"
	KindUnknownSystemCommand Kind = "UnknownSystemCommand"
	KindSubCommandFailure    Kind = "SubCommandFailure"
	KindInternal             Kind = "Internal"
)

func Classify(err error) Kind {
	var perr *parser.Error
	var scerr *executor.SubCommandError
	switch {
	case err == nil:
		return KindNone
	case errors.As(err, &perr):
		return KindParseError
	case errors.Is(err, resolver.ErrNoSuchTarget):
		return KindNoSuchTarget
	case errors.Is(err, resolver.ErrAmbiguousTarget):
		return KindAmbiguousTarget
	case errors.Is(err, executor.ErrUnknownSystemCommand):
		return KindUnknownSystemCommand
	case errors.As(err, &scerr):
		return KindSubCommandFailure
	default:
		return KindInternal
	}
}

// Outcome is the single result delivered to the origin of a processed
// instruction.
type Outcome struct {
	Token   Token
	Success bool
	Message string
	// Payload holds the structured result of a successful system query.
	Payload any
	Kind    Kind
}

func failure(tok Token, err error) Outcome {
	return Outcome{Token: tok, Message: err.Error(), Kind: Classify(err)}
}

// Origin receives outcomes for the instructions it submitted. Deliver is
// called from the pipeline's goroutine and should return promptly.
type Origin interface {
	Deliver(Outcome)
}

type OriginFunc func(Outcome)

func (f OriginFunc) Deliver(o Outcome) { f(o) }
