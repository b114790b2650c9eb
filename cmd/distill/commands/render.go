package commands

import (
	"io"
	"os"
	"strings"
	"unicode/utf8"

	"golang.org/x/term"
)

const (
	eraseLine = "\r\x1b[2K"
	cursorUp  = "\x1b[1A"
)

// liveView redraws the latest partial answer in place.
type liveView struct {
	w     io.Writer
	width int
	// rows occupied by the last draw; the cursor sits on the last one.
	rows int
}

// newLiveView returns nil unless w is a terminal.
func newLiveView(w io.Writer) *liveView {
	f, ok := w.(*os.File)
	if !ok || !term.IsTerminal(int(f.Fd())) {
		return nil
	}
	width, _, err := term.GetSize(int(f.Fd()))
	if err != nil {
		width = 0
	}
	return &liveView{w: w, width: width}
}

// Draw replaces the previous text with text.
func (v *liveView) Draw(text string) error {
	v.Clear()
	if _, err := io.WriteString(v.w, text); err != nil {
		return err
	}
	v.rows = countRows(text, v.width)
	return nil
}

// Clear erases whatever the last Draw printed.
func (v *liveView) Clear() {
	if v.rows == 0 {
		return
	}
	var b strings.Builder
	b.WriteString(eraseLine)
	for range v.rows - 1 {
		b.WriteString(cursorUp)
		b.WriteString(eraseLine)
	}
	_, _ = io.WriteString(v.w, b.String())
	v.rows = 0
}

// countRows reports how many terminal rows text occupies at width columns.
// A width of zero disables wrapping.
func countRows(text string, width int) int {
	rows := 0
	for line := range strings.SplitSeq(text, "\n") {
		n := utf8.RuneCountInString(line)
		if width <= 0 || n == 0 {
			rows++
			continue
		}
		rows += (n + width - 1) / width
	}
	return rows
}
