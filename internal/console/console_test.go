package console

import (
	"context"
	"testing"
	"time"

	"github.com/atcrelay/agent/internal/pipeline"

	"github.com/gdamore/tcell/v2"
	"github.com/iancoleman/orderedmap"
)

func typeText(s *state, text string) {
	for _, r := range text {
		s.handleKey(tcell.KeyRune, r)
	}
}

func TestEnterSubmits(t *testing.T) {
	var s state
	typeText(&s, "  aal123 c 100 ")

	action, text := s.handleKey(tcell.KeyEnter, 0)
	if action != ActionSubmit || text != "aal123 c 100" {
		t.Errorf("got %v %q", action, text)
	}
	if len(s.input) != 0 {
		t.Errorf("input not cleared: %q", string(s.input))
	}

	if action, _ := s.handleKey(tcell.KeyEnter, 0); action != ActionNone {
		t.Errorf("empty line submitted")
	}
}

func TestEditingKeys(t *testing.T) {
	var s state
	typeText(&s, "rdx")
	s.handleKey(tcell.KeyBackspace2, 0)
	if got := string(s.input); got != "rd" {
		t.Errorf("after backspace %q", got)
	}
	s.handleKey(tcell.KeyEscape, 0)
	if len(s.input) != 0 {
		t.Errorf("escape did not clear")
	}
	if action, _ := s.handleKey(tcell.KeyCtrlC, 0); action != ActionQuit {
		t.Errorf("ctrl-c did not quit")
	}
}

func TestKeysIgnoredDuringPlayback(t *testing.T) {
	s := state{focused: true}
	s.setInput("AAL123 c")

	for _, key := range []tcell.Key{tcell.KeyRune, tcell.KeyBackspace2, tcell.KeyEscape, tcell.KeyEnter, tcell.KeyUp} {
		if action, _ := s.handleKey(key, 'x'); action != ActionNone {
			t.Errorf("key %v: action %v", key, action)
		}
	}
	if got := string(s.input); got != "AAL123 c" {
		t.Errorf("input changed during playback: %q", got)
	}
	if action, _ := s.handleKey(tcell.KeyCtrlC, 0); action != ActionQuit {
		t.Errorf("ctrl-c did not quit during playback")
	}

	s.focused = false
	s.handleKey(tcell.KeyRune, '1')
	if got := string(s.input); got != "AAL123 c1" {
		t.Errorf("input after playback %q", got)
	}
}

func TestHistoryRecall(t *testing.T) {
	var s state
	for _, cmd := range []string{"rd", "AAL123 c 100", "AAL123 c 100", "strips"} {
		typeText(&s, cmd)
		s.handleKey(tcell.KeyEnter, 0)
	}
	if len(s.history) != 3 {
		t.Fatalf("history %q", s.history)
	}

	typeText(&s, "dal")
	for _, want := range []string{"strips", "AAL123 c 100", "rd", "rd"} {
		s.handleKey(tcell.KeyUp, 0)
		if got := string(s.input); got != want {
			t.Errorf("up: got %q, want %q", got, want)
		}
	}
	for _, want := range []string{"AAL123 c 100", "strips", "dal", "dal"} {
		s.handleKey(tcell.KeyDown, 0)
		if got := string(s.input); got != want {
			t.Errorf("down: got %q, want %q", got, want)
		}
	}
}

func TestNoticeSwallowsKey(t *testing.T) {
	c := New(nil)

	returned := make(chan struct{})
	go func() {
		c.Notice(context.Background(), "authentication rejected")
		close(returned)
	}()

	deadline := time.Now().Add(5 * time.Second)
	for {
		c.mu.Lock()
		shown := c.st.notice != ""
		c.mu.Unlock()
		if shown {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("notice never shown")
		}
		time.Sleep(time.Millisecond)
	}

	c.mu.Lock()
	action, _ := c.st.handleKey(tcell.KeyEnter, 0)
	c.mu.Unlock()
	if action != ActionNone {
		t.Errorf("key not swallowed by notice")
	}

	select {
	case <-returned:
	case <-time.After(5 * time.Second):
		t.Fatal("notice did not return")
	}
}

func TestSurfaceAndOutcomes(t *testing.T) {
	c := New(nil)
	var _ pipeline.Surface = c
	var _ pipeline.Selector = c
	var _ pipeline.Origin = c

	c.SetText("AAL")
	c.AppendChar('1')
	if c.Text() != "AAL1" {
		t.Errorf("text %q", c.Text())
	}
	c.Select("AAL123")
	if c.st.selected != "AAL123" {
		t.Errorf("selected %q", c.st.selected)
	}
	c.Deselect()

	rd := orderedmap.New()
	rd.Set("icao", "KSEA")
	c.Deliver(pipeline.Outcome{Token: "t1", Success: true, Payload: rd})
	c.Deliver(pipeline.Outcome{Token: "t2", Message: "no such aircraft, say again"})

	if len(c.st.log) != 2 {
		t.Fatalf("log %+v", c.st.log)
	}
	if c.st.log[0].text != `{"icao":"KSEA"}` || c.st.log[0].failed {
		t.Errorf("payload line %+v", c.st.log[0])
	}
	if !c.st.log[1].failed {
		t.Errorf("failure not marked")
	}
}

func TestTruncate(t *testing.T) {
	for _, tc := range []struct {
		in   string
		n    int
		want string
	}{
		{"short", 10, "short"},
		{"climb and maintain", 10, "climb a..."},
		{"abcdef", 2, "ab"},
	} {
		if got := truncate(tc.in, tc.n); got != tc.want {
			t.Errorf("truncate(%q, %d) = %q, want %q", tc.in, tc.n, got, tc.want)
		}
	}
}
