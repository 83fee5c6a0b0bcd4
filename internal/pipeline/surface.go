package pipeline

import (
	"sync"
)

// Surface is the local text field the pipeline types instructions into.
// The pipeline only ever sets, appends to and reads the text.
type Surface interface {
	SetText(string)
	Text() string
	AppendChar(rune)
	SetFocus(bool)
}

// Selector is implemented by surfaces that highlight the aircraft an
// instruction was resolved to.
type Selector interface {
	Select(callsign string)
	Deselect()
}

// TextBuffer is a Surface with nothing to draw; it is used when the agent
// runs without a terminal console.
type TextBuffer struct {
	mu       sync.Mutex
	text     []rune
	focused  bool
	selected string
}

func (b *TextBuffer) SetText(s string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = []rune(s)
}

func (b *TextBuffer) Text() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return string(b.text)
}

func (b *TextBuffer) AppendChar(r rune) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.text = append(b.text, r)
}

func (b *TextBuffer) SetFocus(f bool) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.focused = f
}

func (b *TextBuffer) Focused() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.focused
}

func (b *TextBuffer) Select(callsign string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.selected = callsign
}

func (b *TextBuffer) Deselect() {
	b.Select("")
}

func (b *TextBuffer) Selected() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.selected
}
