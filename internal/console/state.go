package console

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/atcrelay/agent/internal/pipeline"

	"github.com/gdamore/tcell/v2"
)

const (
	maxHistory = 100
	maxLog     = 500
)

type Action int

const (
	ActionNone Action = iota
	ActionSubmit
	ActionQuit
)

type logLine struct {
	at     time.Time
	text   string
	failed bool
}

// state is everything drawn on screen. It is only touched with
// Console.mu held.
type state struct {
	input    []rune
	focused  bool
	selected string

	history []string
	histPos int // len(history) when not recalling
	draft   string

	log       []logLine
	connected bool

	notice     string
	noticeDone chan struct{}
}

func (s *state) setInput(text string) {
	s.input = []rune(text)
}

func (s *state) addLog(l logLine) {
	s.log = append(s.log, l)
	if len(s.log) > maxLog {
		s.log = s.log[len(s.log)-maxLog:]
	}
}

func (s *state) pushHistory(text string) {
	if n := len(s.history); n == 0 || s.history[n-1] != text {
		s.history = append(s.history, text)
		if len(s.history) > maxHistory {
			s.history = s.history[1:]
		}
	}
	s.histPos = len(s.history)
	s.draft = ""
}

func (s *state) recall(delta int) {
	if len(s.history) == 0 {
		return
	}
	if s.histPos == len(s.history) {
		s.draft = string(s.input)
	}
	pos := min(max(s.histPos+delta, 0), len(s.history))
	s.histPos = pos
	if pos == len(s.history) {
		s.setInput(s.draft)
	} else {
		s.setInput(s.history[pos])
	}
}

// handleKey applies a key press. For ActionSubmit the returned text is the
// instruction to admit; the input has already been cleared. Only quit is
// honoured while playback has focus.
func (s *state) handleKey(key tcell.Key, r rune) (Action, string) {
	if s.notice != "" {
		s.notice = ""
		if s.noticeDone != nil {
			close(s.noticeDone)
			s.noticeDone = nil
		}
		return ActionNone, ""
	}

	if key == tcell.KeyCtrlC {
		return ActionQuit, ""
	}
	// The pipeline owns the input while it is focused.
	if s.focused {
		return ActionNone, ""
	}

	switch key {

	case tcell.KeyEscape:
		s.input = s.input[:0]
		s.histPos = len(s.history)

	case tcell.KeyEnter:
		text := strings.TrimSpace(string(s.input))
		s.input = s.input[:0]
		if text == "" {
			return ActionNone, ""
		}
		s.pushHistory(text)
		return ActionSubmit, text

	case tcell.KeyBackspace, tcell.KeyBackspace2:
		if n := len(s.input); n > 0 {
			s.input = s.input[:n-1]
		}

	case tcell.KeyUp:
		s.recall(-1)

	case tcell.KeyDown:
		s.recall(1)

	case tcell.KeyRune:
		s.input = append(s.input, r)
	}
	return ActionNone, ""
}

func outcomeLine(o pipeline.Outcome) logLine {
	text := o.Message
	if o.Success && o.Payload != nil {
		if b, err := json.Marshal(o.Payload); err == nil {
			text = string(b)
		}
	}
	return logLine{at: time.Now(), text: text, failed: !o.Success}
}
