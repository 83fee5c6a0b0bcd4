package console

import (
	"fmt"

	"github.com/gdamore/tcell/v2"
)

const prompt = "> "

func render(screen tcell.Screen, st *state) {
	screen.Clear()
	width, height := screen.Size()
	if height < 3 {
		return
	}

	styleHeader := tcell.StyleDefault.Bold(true).Reverse(true)
	styleLog := tcell.StyleDefault
	styleTime := tcell.StyleDefault.Foreground(tcell.ColorGray)
	styleFailed := tcell.StyleDefault.Foreground(tcell.ColorRed)
	styleInput := tcell.StyleDefault.Bold(true)
	styleNotice := tcell.StyleDefault.Background(tcell.ColorRed).Foreground(tcell.ColorWhite).Bold(true)

	status := "disconnected"
	if st.connected {
		status = "connected"
	}
	header := fmt.Sprintf(" atcrelay agent | %s", status)
	if st.selected != "" {
		header += " | " + st.selected
	}
	drawText(screen, 0, 0, width, styleHeader, header)

	// Newest log lines sit right above the input.
	rows := height - 2
	lines := st.log
	if len(lines) > rows {
		lines = lines[len(lines)-rows:]
	}
	y := 1 + rows - len(lines)
	for _, l := range lines {
		ts := l.at.Format("15:04:05 ")
		drawText(screen, 0, y, len(ts), styleTime, ts)
		style := styleLog
		text := l.text
		if l.failed {
			style = styleFailed
			text = "! " + text
		}
		drawText(screen, len(ts), y, width-len(ts), style, truncate(text, width-len(ts)))
		y++
	}

	if st.focused {
		// The pipeline is typing.
		styleInput = styleInput.Foreground(tcell.ColorYellow)
	}
	input := prompt + string(st.input)
	drawText(screen, 0, height-1, width, styleInput, input)
	screen.ShowCursor(min(len([]rune(input)), width-1), height-1)

	if st.notice != "" {
		msg := " " + st.notice + " (press any key) "
		x := max((width-len([]rune(msg)))/2, 0)
		drawText(screen, x, height/2, min(len([]rune(msg)), width), styleNotice, msg)
		screen.HideCursor()
	}
}

// drawText draws text at the given position, padding with spaces to
// maxWidth.
func drawText(screen tcell.Screen, x, y, maxWidth int, style tcell.Style, text string) {
	col := 0
	for _, r := range text {
		if col >= maxWidth {
			break
		}
		screen.SetContent(x+col, y, r, nil, style)
		col++
	}
	for col < maxWidth {
		screen.SetContent(x+col, y, ' ', nil, style)
		col++
	}
}

func truncate(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return string(r[:max(maxLen, 0)])
	}
	return string(r[:maxLen-3]) + "..."
}
