// Package console is the terminal text field instructions are typed into,
// by the operator or by the pipeline's typing playback, with a log of
// outcomes above it.
package console

import (
	"context"
	"errors"
	"log/slog"
	"sync"

	"github.com/atcrelay/agent/internal/log"
	"github.com/atcrelay/agent/internal/pipeline"

	"github.com/gdamore/tcell/v2"
)

// ErrQuit is returned by Run when the operator closes the console.
var ErrQuit = errors.New("console closed by operator")

type Submitter interface {
	Submit(origin pipeline.Origin, tok pipeline.Token, text string)
}

// Console implements pipeline.Surface, pipeline.Selector and
// pipeline.Origin for locally typed instructions.
type Console struct {
	lg *log.Logger

	mu     sync.Mutex
	st     state
	screen tcell.Screen
}

func New(lg *log.Logger) *Console {
	return &Console{lg: lg.With(slog.String("component", "console"))}
}

func (c *Console) update(fn func(*state)) {
	c.mu.Lock()
	fn(&c.st)
	screen := c.screen
	c.mu.Unlock()

	if screen != nil {
		// Wakes the event loop, which redraws.
		screen.PostEvent(tcell.NewEventInterrupt(nil))
	}
}

func (c *Console) SetText(text string) { c.update(func(s *state) { s.setInput(text) }) }

func (c *Console) Text() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return string(c.st.input)
}

func (c *Console) AppendChar(r rune) {
	c.update(func(s *state) { s.input = append(s.input, r) })
}

func (c *Console) SetFocus(f bool) { c.update(func(s *state) { s.focused = f }) }

func (c *Console) Select(callsign string) { c.update(func(s *state) { s.selected = callsign }) }

func (c *Console) Deselect() { c.Select("") }

func (c *Console) Deliver(o pipeline.Outcome) {
	c.update(func(s *state) { s.addLog(outcomeLine(o)) })
}

func (c *Console) SetConnected(up bool) {
	c.update(func(s *state) { s.connected = up })
}

// Notice shows msg over everything else and blocks until a key is pressed
// or ctx is done.
func (c *Console) Notice(ctx context.Context, msg string) {
	done := make(chan struct{})
	c.update(func(s *state) {
		s.notice = msg
		s.noticeDone = done
	})
	select {
	case <-done:
	case <-ctx.Done():
	}
}

// Run owns the terminal until ctx is done or the operator quits. Entered
// instructions are submitted to q.
func (c *Console) Run(ctx context.Context, q Submitter) error {
	screen, err := tcell.NewScreen()
	if err != nil {
		return err
	}
	if err := screen.Init(); err != nil {
		return err
	}
	defer screen.Fini()

	screen.SetStyle(tcell.StyleDefault.
		Background(tcell.ColorReset).
		Foreground(tcell.ColorReset))

	c.mu.Lock()
	c.screen = screen
	c.mu.Unlock()
	defer func() {
		c.mu.Lock()
		c.screen = nil
		c.mu.Unlock()
	}()

	go func() {
		<-ctx.Done()
		screen.PostEvent(tcell.NewEventInterrupt(nil))
	}()

	for {
		c.mu.Lock()
		render(screen, &c.st)
		c.mu.Unlock()
		screen.Show()

		ev := screen.PollEvent()
		if ctx.Err() != nil {
			return nil
		}

		switch ev := ev.(type) {
		case nil:
			return nil
		case *tcell.EventResize:
			screen.Sync()
		case *tcell.EventKey:
			c.mu.Lock()
			action, text := c.st.handleKey(ev.Key(), ev.Rune())
			c.mu.Unlock()

			switch action {
			case ActionQuit:
				return ErrQuit
			case ActionSubmit:
				tok := pipeline.NewLocalToken()
				c.lg.Debug("local instruction", slog.String("token", string(tok)), slog.String("text", text))
				q.Submit(c, tok, text)
			}
		}
	}
}
