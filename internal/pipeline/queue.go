// Package pipeline admits instructions from any origin and processes them
// one at a time: typing playback into the local surface, parsing, target
// resolution, execution and a single response to the origin.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"runtime/debug"
	"sync"
	"time"

	"github.com/atcrelay/agent/internal/config"
	"github.com/atcrelay/agent/internal/log"
	"github.com/atcrelay/agent/internal/parser"
	"github.com/atcrelay/agent/internal/registry"
)

var ErrAlreadyRunning = errors.New("pipeline already running")

type Parser interface {
	Parse(text string) (parser.Instruction, error)
}

type Resolver interface {
	Resolve(target string) (registry.Entity, error)
}

type Executor interface {
	Transmit(target registry.Entity, cmds []parser.SubCommand) (string, error)
	System(verb string, args []string) (any, error)
}

type Options struct {
	TypingDelay time.Duration
	SettleDelay time.Duration

	// Sleep waits for d or until ctx is done. Defaults to a timer.
	Sleep func(ctx context.Context, d time.Duration)
	Now   func() time.Time

	// OnTransition, when set, is called on the pipeline goroutine for
	// every state change.
	OnTransition func(tok Token, from, to State)
}

func DefaultOptions() Options {
	return Options{
		TypingDelay: config.DefaultTypingDelay,
		SettleDelay: config.DefaultSettleDelay,
	}
}

// Queue holds admitted instructions keyed by token in first-admission
// order and processes them strictly one at a time.
type Queue struct {
	parser   Parser
	resolver Resolver
	executor Executor
	surface  Surface
	lg       *log.Logger
	opts     Options

	mu      sync.Mutex
	pending map[Token]*QueuedInstruction
	order   []Token
	busy    bool
	running bool
	state   State

	wake chan struct{}
}

func New(p Parser, r Resolver, e Executor, s Surface, lg *log.Logger, opts Options) *Queue {
	if s == nil {
		s = &TextBuffer{}
	}
	if opts.Sleep == nil {
		opts.Sleep = sleep
	}
	if opts.Now == nil {
		opts.Now = time.Now
	}
	return &Queue{
		parser:   p,
		resolver: r,
		executor: e,
		surface:  s,
		lg:       lg.With(slog.String("component", "pipeline")),
		opts:     opts,
		pending:  make(map[Token]*QueuedInstruction),
		wake:     make(chan struct{}, 1),
	}
}

func sleep(ctx context.Context, d time.Duration) {
	if d <= 0 {
		return
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
	case <-t.C:
	}
}

// Submit admits text under tok. If tok is already waiting, its text and
// origin are replaced and it keeps its place in line. Submit never blocks
// on processing.
func (q *Queue) Submit(origin Origin, tok Token, text string) {
	q.mu.Lock()
	if qi, ok := q.pending[tok]; ok {
		qi.RawText = text
		qi.origin = origin
		qi.SubmittedAt = q.opts.Now()
		q.mu.Unlock()
		q.lg.Debug("instruction replaced", slog.String("token", string(tok)))
	} else {
		q.pending[tok] = &QueuedInstruction{
			Token:       tok,
			RawText:     text,
			SubmittedAt: q.opts.Now(),
			origin:      origin,
		}
		q.order = append(q.order, tok)
		n := len(q.order)
		q.mu.Unlock()
		q.lg.Debug("instruction admitted", slog.String("token", string(tok)), slog.Int("pending", n))
	}

	select {
	case q.wake <- struct{}{}:
	default:
	}
}

// Pending returns a copy of the instructions waiting to be processed, in
// processing order.
func (q *Queue) Pending() []QueuedInstruction {
	q.mu.Lock()
	defer q.mu.Unlock()
	out := make([]QueuedInstruction, 0, len(q.order))
	for _, tok := range q.order {
		qi := *q.pending[tok]
		qi.origin = nil
		out = append(out, qi)
	}
	return out
}

func (q *Queue) State() State {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.state
}

// Busy reports whether an instruction is being processed.
func (q *Queue) Busy() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.busy
}

// Run processes admitted instructions until ctx is done. An instruction
// in flight when ctx is cancelled still completes and gets its outcome;
// instructions still waiting are discarded.
func (q *Queue) Run(ctx context.Context) error {
	q.mu.Lock()
	if q.running {
		q.mu.Unlock()
		return ErrAlreadyRunning
	}
	q.running = true
	q.mu.Unlock()

	defer func() {
		q.mu.Lock()
		q.running = false
		q.mu.Unlock()
	}()

	for {
		select {
		case <-ctx.Done():
			q.discard()
			return nil
		case <-q.wake:
		}

		for ctx.Err() == nil {
			qi, ok := q.next()
			if !ok {
				break
			}
			q.process(ctx, qi)
		}
	}
}

// next pops the head of the line and marks the queue busy.
func (q *Queue) next() (*QueuedInstruction, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.order) == 0 {
		q.busy = false
		return nil, false
	}
	tok := q.order[0]
	q.order = q.order[1:]
	qi := q.pending[tok]
	delete(q.pending, tok)
	q.busy = true
	return qi, true
}

func (q *Queue) discard() {
	q.mu.Lock()
	n := len(q.order)
	q.pending = make(map[Token]*QueuedInstruction)
	q.order = nil
	q.busy = false
	q.mu.Unlock()

	if n > 0 {
		q.lg.Warn("pending instructions discarded", slog.Int("count", n))
	}
}

func (q *Queue) transition(tok Token, to State) {
	q.mu.Lock()
	from := q.state
	q.state = to
	q.mu.Unlock()

	q.lg.Debug("transition", slog.String("token", string(tok)), slog.String("from", from.String()),
		slog.String("to", to.String()))
	if q.opts.OnTransition != nil {
		q.opts.OnTransition(tok, from, to)
	}
}

func (q *Queue) process(ctx context.Context, qi *QueuedInstruction) {
	start := time.Now()
	lg := q.lg.With(slog.String("token", string(qi.Token)))

	q.transition(qi.Token, TypingPlayback)
	q.playback(ctx, qi.RawText)

	out := q.evaluate(qi)
	if out.Success {
		lg.Info("instruction succeeded", slog.String("text", qi.RawText), slog.Duration("elapsed", time.Since(start)))
	} else {
		lg.Info("instruction failed", slog.String("text", qi.RawText), slog.String("kind", string(out.Kind)),
			slog.String("message", out.Message))
	}

	q.transition(qi.Token, Responding)
	q.deliver(lg, qi.origin, out)

	q.opts.Sleep(ctx, q.opts.SettleDelay)
	q.surface.SetText("")
	q.surface.SetFocus(false)
	if sel, ok := q.surface.(Selector); ok {
		sel.Deselect()
	}

	q.mu.Lock()
	q.busy = len(q.order) > 0
	q.mu.Unlock()
	q.transition(qi.Token, Idle)
}

// playback clears the surface and types text into it one character at a
// time.
func (q *Queue) playback(ctx context.Context, text string) {
	q.surface.SetFocus(true)
	q.surface.SetText("")
	for _, r := range text {
		q.surface.AppendChar(r)
		q.opts.Sleep(ctx, q.opts.TypingDelay)
	}
}

// evaluate parses, resolves and executes the instruction. A panic at any
// of those steps becomes an Internal outcome.
func (q *Queue) evaluate(qi *QueuedInstruction) (out Outcome) {
	defer func() {
		if r := recover(); r != nil {
			q.lg.Error("panic processing instruction", slog.String("token", string(qi.Token)),
				slog.Any("panic", r), slog.String("stack", string(debug.Stack())))
			out = Outcome{Token: qi.Token, Message: fmt.Sprintf("internal error: %v", r), Kind: KindInternal}
		}
	}()

	q.transition(qi.Token, Parsing)
	instr, err := q.parser.Parse(qi.RawText)
	if err != nil {
		return failure(qi.Token, err)
	}

	switch in := instr.(type) {
	case parser.System:
		q.transition(qi.Token, Executing)
		payload, err := q.executor.System(in.Verb, in.Args)
		if err != nil {
			return failure(qi.Token, err)
		}
		if s, ok := payload.(string); ok {
			return Outcome{Token: qi.Token, Success: true, Message: s}
		}
		return Outcome{Token: qi.Token, Success: true, Payload: payload}

	case parser.Transmit:
		q.transition(qi.Token, Resolving)
		target, err := q.resolver.Resolve(in.Callsign)
		if err != nil {
			return failure(qi.Token, err)
		}
		if sel, ok := q.surface.(Selector); ok {
			sel.Select(target.Callsign)
		}

		q.transition(qi.Token, Executing)
		readback, err := q.executor.Transmit(target, in.Commands)
		if err != nil {
			return failure(qi.Token, err)
		}
		return Outcome{Token: qi.Token, Success: true, Message: readback}

	default:
		return failure(qi.Token, fmt.Errorf("unhandled instruction %T", instr))
	}
}

func (q *Queue) deliver(lg *log.Logger, origin Origin, out Outcome) {
	if origin == nil {
		lg.Warn("no origin to deliver outcome to")
		return
	}
	defer func() {
		if r := recover(); r != nil {
			lg.Error("panic delivering outcome", slog.Any("panic", r))
		}
	}()
	origin.Deliver(out)
}
